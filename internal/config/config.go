// Package config loads the reference HTTP harness's configuration once at
// startup, grounded on the teacher's internal/config/config.go: a single
// struct populated via caarlos0/env struct tags, validated, and exposed
// through Load/IsDevelopment/IsProduction helpers.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the complete set of environment-driven settings for cmd/server
// and cmd/usedplus-report. The deterministic simulation core itself takes
// no config: it is constructed directly by its caller with an explicit
// seed, a HostGameApi, and a logger (spec.md §9).
type Config struct {
	// Server
	Port            int           `env:"PORT" envDefault:"8080"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Seed is the deterministic PRNG seed for a freshly started core
	// (spec.md §4.1). A snapshot restored at startup is loaded on top of a
	// core built with this seed, so it must match the seed it was taken under.
	Seed int64 `env:"SEED" envDefault:"1"`

	// Persistence (C9): one of "sqlite" (default, embedded) or "postgres"
	// (dedicated multiplayer host).
	PersistenceBackend string `env:"PERSISTENCE_BACKEND" envDefault:"sqlite"`
	SQLitePath         string `env:"SQLITE_PATH" envDefault:"usedplus.db"`
	DatabaseURL        string `env:"DATABASE_URL" envDefault:""`

	// Redis has no component wired to it: every piece of mutable state
	// lives in one of the core's in-memory aggregates and is snapshotted
	// directly by internal/persistence, so nothing needs a cache. Kept for
	// config-shape parity with the teacher; DESIGN.md records this as a
	// deliberately unwired field.
	RedisURL string `env:"REDIS_URL" envDefault:""`

	// Auth
	FarmAuthSecret string        `env:"FARM_AUTH_SECRET" envDefault:"dev-secret-change-me"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Observability
	SentryDSN    string `env:"SENTRY_DSN" envDefault:""`
	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:""`
	MetricsPath  string `env:"METRICS_PATH" envDefault:"/metrics"`

	// Rate limiting (per farm, protects the single-threaded core from
	// request floods)
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"10"`

	// SSE
	SSEKeepaliveInterval time.Duration `env:"SSE_KEEPALIVE_INTERVAL" envDefault:"30s"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173,http://localhost:3000"`

	// SnapshotInterval is how often cmd/server autosaves the core via its
	// configured persistence.Store, independent of the graceful-shutdown
	// save.
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"5m"`

	// Feature flags
	DebugEndpointsEnabled bool `env:"DEBUG_ENDPOINTS_ENABLED" envDefault:"true"`
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// IsDevelopment reports whether the environment is "development".
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the environment is "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate checks invariants Load's defaults alone can't guarantee.
func (c *Config) Validate() error {
	switch c.PersistenceBackend {
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite persistence backend requires SQLITE_PATH")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("postgres persistence backend requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown persistence backend: %q", c.PersistenceBackend)
	}
	if c.IsProduction() {
		if c.FarmAuthSecret == "" || c.FarmAuthSecret == "dev-secret-change-me" {
			return fmt.Errorf("FARM_AUTH_SECRET must be set in production")
		}
		if c.SentryDSN == "" {
			return fmt.Errorf("SENTRY_DSN is required in production")
		}
	}
	return nil
}
