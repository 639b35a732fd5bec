package middleware

import (
	"net/http"
	"sync"
)

// Serialize funnels every request through a single mutex before it reaches
// next, so the single-threaded deterministic core (spec.md §5) is never
// mutated by two goroutines at once even though net/http dispatches one
// goroutine per connection. The tick loop driving MonthTick/FrameTick/
// HourTick must take the same mutex around each tick.
func Serialize(mu *sync.Mutex) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			defer mu.Unlock()
			next.ServeHTTP(w, r)
		})
	}
}
