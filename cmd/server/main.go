package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/usedplus/core/internal/config"
	"github.com/usedplus/core/internal/core"
	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/events"
	"github.com/usedplus/core/internal/handler"
	"github.com/usedplus/core/internal/hostapi"
	"github.com/usedplus/core/internal/middleware"
	"github.com/usedplus/core/internal/persistence"
	"github.com/usedplus/core/internal/realtime"
	"github.com/usedplus/core/internal/service"
	"github.com/usedplus/core/internal/tracing"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: 0.1,
		}); err != nil {
			logger.Error("failed to init sentry", slog.String("error", err.Error()))
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx := context.Background()
	tracingShutdown, err := tracing.Init(ctx, cfg.OTLPEndpoint, "usedplus-core", cfg.Environment)
	if err != nil {
		logger.Warn("failed to init tracing", slog.String("error", err.Error()))
	} else {
		defer tracingShutdown(ctx)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open persistence store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	host := hostapi.NewFakeHost()
	gameCore := core.New(cfg.Seed, host, service.NewInventory(), logger)

	if snap, err := store.Load(ctx); err == nil {
		gameCore.Restore(snap)
		logger.Info("snapshot_restored")
	} else if err != persistence.ErrNoSnapshot {
		logger.Error("failed to load snapshot", slog.String("error", err.Error()))
		os.Exit(1)
	}

	broker := realtime.NewBroker(logger)
	broker.Start()
	defer broker.Stop()

	// Forward every core-level notification (credit score changes, tick
	// completions, ...) onto the SSE broker, so a subscribing game client
	// sees them without the tick loop knowing about the transport.
	gameCore.Events.Subscribe("", func(n events.Notification) {
		broker.Broadcast(n)
	})

	farmAuth := middleware.NewFarmAuth(logger, cfg.FarmAuthSecret)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	var coreMu sync.Mutex

	deps := &handler.Deps{
		Dispatcher: gameCore.Dispatcher,
		Logger:     logger,
		Validate:   validator.New(),
	}
	healthHandler := &handler.HealthHandler{Store: store}
	sseHandler := &handler.SSEHandler{Broker: broker, KeepaliveInterval: cfg.SSEKeepaliveInterval}
	sessionHandler := &handler.SessionHandler{Host: host, Auth: farmAuth, TTL: cfg.SessionTTL}

	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/live", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)
	r.Handle(cfg.MetricsPath, promhttp.Handler())

	r.Post("/api/v1/session", sessionHandler.Create)

	r.Group(func(r chi.Router) {
		r.Use(farmAuth.Middleware)
		r.Use(rateLimiter.Middleware)
		r.Use(middleware.Serialize(&coreMu))
		deps.RegisterRoutes(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(farmAuth.Middleware)
		r.Get("/api/v1/stream", sseHandler.Stream)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	tickDone := make(chan struct{})
	go runTickLoop(&coreMu, gameCore, logger, tickDone)

	snapshotDone := make(chan struct{})
	go runSnapshotLoop(ctx, &coreMu, gameCore, store, cfg.SnapshotInterval, logger, snapshotDone)

	pruneDone := make(chan struct{})
	go runRateLimiterPruneLoop(rateLimiter, pruneDone)

	go func() {
		logger.Info("server_starting",
			slog.Int("port", cfg.Port),
			slog.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server_error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server_shutting_down")
	close(tickDone)
	close(snapshotDone)
	close(pruneDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", slog.String("error", err.Error()))
	}

	coreMu.Lock()
	snap := gameCore.Snapshot()
	coreMu.Unlock()
	if err := store.Save(shutdownCtx, snap); err != nil {
		logger.Error("final_snapshot_save_error", slog.String("error", err.Error()))
	}

	logger.Info("server_stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (persistence.Store, error) {
	switch cfg.PersistenceBackend {
	case "postgres":
		return persistence.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return persistence.OpenSQLite(cfg.SQLitePath)
	}
}

// runTickLoop advances MonthTick/FrameTick/HourTick on their own cadences,
// taking coreMu around every tick so HTTP-driven mutations and the tick
// loop never touch gameCore concurrently (spec.md §5's single-threaded
// authoritative core, adapted to a multi-goroutine transport by
// serializing all access to one mutex instead of one OS thread).
func runTickLoop(mu *sync.Mutex, c *core.Core, logger *slog.Logger, done <-chan struct{}) {
	frame := time.NewTicker(100 * time.Millisecond)
	hour := time.NewTicker(time.Minute)
	month := time.NewTicker(30 * time.Minute)
	defer frame.Stop()
	defer hour.Stop()
	defer month.Stop()

	last := time.Now()
	for {
		select {
		case <-done:
			return
		case now := <-frame.C:
			dt := now.Sub(last).Seconds()
			last = now
			mu.Lock()
			c.FrameTick(domain.Millis(now.UnixMilli()), dt)
			mu.Unlock()
		case now := <-hour.C:
			mu.Lock()
			c.HourTick(domain.Millis(now.UnixMilli()))
			mu.Unlock()
		case now := <-month.C:
			mu.Lock()
			result := c.MonthTick(domain.Millis(now.UnixMilli()))
			mu.Unlock()
			logger.Info("month_tick_completed", slog.Int("repossessions", result.Repossessions))
		}
	}
}

func runSnapshotLoop(ctx context.Context, mu *sync.Mutex, c *core.Core, store persistence.Store, interval time.Duration, logger *slog.Logger, done <-chan struct{}) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			mu.Lock()
			snap := c.Snapshot()
			mu.Unlock()
			if err := store.Save(ctx, snap); err != nil {
				logger.Error("periodic_snapshot_save_error", slog.String("error", err.Error()))
			}
		}
	}
}

func runRateLimiterPruneLoop(limiter *middleware.RateLimiter, done <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			limiter.Prune()
		}
	}
}
