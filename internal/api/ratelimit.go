package api

import (
    "net/http"
    "sync"

    "golang.org/x/time/rate"
)

// Per-tenant token buckets for the solve endpoint. Tuned via config
// (rateRps / rateBurst, env RATE_RPS / RATE_BURST).
type rateLimiter struct {
    mu    sync.Mutex
    per   map[string]*rate.Limiter
    rps   rate.Limit
    burst int
}

func newRateLimiter(rps float64, burst int) *rateLimiter {
    if rps <= 0 { rps = 5 }
    if burst <= 0 { burst = 10 }
    return &rateLimiter{per: map[string]*rate.Limiter{}, rps: rate.Limit(rps), burst: burst}
}

func (rl *rateLimiter) limiter(key string) *rate.Limiter {
    rl.mu.Lock()
    defer rl.mu.Unlock()
    l := rl.per[key]
    if l == nil {
        l = rate.NewLimiter(rl.rps, rl.burst)
        rl.per[key] = l
    }
    return l
}

// RateLimit wraps a handler with per-tenant limiting.
func (s *Server) RateLimit(next http.HandlerFunc) http.HandlerFunc {
    rl := newRateLimiter(s.RateRPS, s.RateBurst)
    return func(w http.ResponseWriter, r *http.Request) {
        _, tenant := s.withTenant(r)
        if !rl.limiter(tenant).Allow() {
            writeProblem(w, http.StatusTooManyRequests, "Rate limit exceeded", "slow down", r.URL.Path)
            return
        }
        next(w, r)
    }
}
