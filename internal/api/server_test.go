package api

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "fleetroute/internal/config"
)

func TestNewServerWiresConfig(t *testing.T) {
    cfg := config.Config{
        RateRPS:   0.5,
        RateBurst: 3,
        Solver:    config.SolverDefaults{Restarts: 7, SpeedMPH: 35},
    }
    s, err := NewServer(cfg)
    if err != nil { t.Fatalf("NewServer: %v", err) }
    if s.Store == nil { t.Fatalf("empty databaseUrl must select the in-memory store") }
    if s.Defaults.Restarts != 7 || s.Defaults.SpeedMPH != 35 {
        t.Fatalf("solver defaults not carried: %+v", s.Defaults)
    }
    if s.RateRPS != 0.5 || s.RateBurst != 3 {
        t.Fatalf("rate settings not carried: rps=%v burst=%d", s.RateRPS, s.RateBurst)
    }
}

func TestRateLimitHonorsConfiguredBurst(t *testing.T) {
    s := newTestServer(t)
    s.RateRPS = 0.001
    s.RateBurst = 1
    h := s.RateLimit(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

    rr := httptest.NewRecorder()
    h(rr, httptest.NewRequest(http.MethodGet, "/v1/solve", nil))
    if rr.Code != 200 { t.Fatalf("first request: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    h(rr, httptest.NewRequest(http.MethodGet, "/v1/solve", nil))
    if rr.Code != http.StatusTooManyRequests { t.Fatalf("second request: got %d, want 429", rr.Code) }
}
