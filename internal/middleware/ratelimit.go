package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/usedplus/core/internal/domain"
)

// RateLimiter throttles requests per authenticated farm, protecting the
// single-threaded authoritative core from request floods (spec.md §5's
// single-threaded tick loop has no slack for an unbounded request queue).
// Grounded on polybot's per-caller token-bucket pattern.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	mu      sync.Mutex
	buckets map[domain.FarmId]*rate.Limiter
}

// NewRateLimiter builds a limiter allowing rps requests per second per
// farm, with burst headroom.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[domain.FarmId]*rate.Limiter),
	}
}

func (l *RateLimiter) bucket(farmID domain.FarmId) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[farmID]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[farmID] = b
	}
	return b
}

// Middleware rejects with 429 once a farm's bucket is exhausted. Must run
// after FarmAuth so GetFarmID can resolve the caller.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		farmID, ok := GetFarmID(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if !l.bucket(farmID).Allow() {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Prune drops buckets sitting at a full bucket (i.e. idle), called
// periodically by the reference server so long-lived processes don't
// accumulate one bucket per farm that ever connected.
func (l *RateLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, b := range l.buckets {
		if b.TokensAt(time.Now()) >= float64(l.burst) {
			delete(l.buckets, id)
		}
	}
}
