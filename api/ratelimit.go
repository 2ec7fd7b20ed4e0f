/*
ratelimit.go - Per-client token-bucket rate limiting

PURPOSE:
  Bounds the rate of mutating requests (uploads, dose additions,
  reservations, cancellations) per remote host. Read-only schedule and
  listing queries are not limited.

  Stale client entries are evicted by a background sweep so the map does
  not grow without bound.
*/
package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type client struct {
	lim  *rate.Limiter
	seen time.Time
}

// RateLimiter hands out one token bucket per remote host.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	r       rate.Limit
	burst   int
	done    chan struct{}
}

// NewRateLimiter allows rps sustained requests with the given burst per host.
// Close stops the background sweep.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*client),
		r:       rate.Limit(rps),
		burst:   burst,
		done:    make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// sweep evicts stale client entries every minute until Close.
func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for host, c := range rl.clients {
				if time.Since(c.seen) > 3*time.Minute {
					delete(rl.clients, host)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Close stops the sweep goroutine. The limiter keeps serving afterwards.
func (rl *RateLimiter) Close() {
	close(rl.done)
}

func (rl *RateLimiter) get(host string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if c, ok := rl.clients[host]; ok {
		c.seen = time.Now()
		return c.lim
	}
	l := rate.NewLimiter(rl.r, rl.burst)
	rl.clients[host] = &client{lim: l, seen: time.Now()}
	return l
}

// Middleware limits mutating methods per remote host.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !rl.get(host).Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
