package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "fleetroute/internal/metrics"
    "fleetroute/internal/model"
    "fleetroute/internal/solver"
)

// SolveHandler handles POST /v1/solve. With "async": true the run is queued
// and the pending run returned; otherwise the solve completes in-request.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost {
        w.WriteHeader(http.StatusMethodNotAllowed)
        return
    }
    p := s.getPrincipal(r)
    if !p.CanSolve() { writeProblem(w, 403, "Forbidden", "planner or admin required", r.URL.Path); return }
    var req model.SolveRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateSolveRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
        return
    }
    _, tenant := s.withTenant(r)
    run, err := s.Store.CreateRun(r.Context(), tenant, req)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
        return
    }
    if req.Async {
        go s.executeRun(context.Background(), tenant, run.ID, req)
        writeJSON(w, http.StatusAccepted, run)
        return
    }
    done, err := s.executeRun(r.Context(), tenant, run.ID, req)
    if err != nil {
        var unserv *solver.UnserviceableSiteError
        if errors.As(err, &unserv) {
            writeProblem(w, http.StatusUnprocessableEntity, "Unserviceable site", err.Error(), r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "Solve failed", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, done)
}

// executeRun drives one solve end to end: status transitions, progress
// events, metrics, and webhook emission.
func (s *Server) executeRun(ctx context.Context, tenant, runID string, req model.SolveRequest) (model.Run, error) {
    mode := "sync"
    if req.Async { mode = "async" }
    s.applyDefaults(&req.Config)
    _ = s.Store.StartRun(ctx, tenant, runID)
    s.Broker.Publish(runID, SSEEvent{Type: "run.started", Data: map[string]any{"runId": runID, "ts": time.Now().UTC().Format(time.RFC3339)}})

    cfg := toSolverConfig(req.Config)
    cfg.Progress = func(ev solver.ProgressEvent) {
        s.Broker.Publish(runID, SSEEvent{Type: "run.progress", Data: map[string]any{
            "runId":      runID,
            "restart":    ev.Restart,
            "state":      ev.State.String(),
            "cost":       ev.Cost,
            "feasible":   ev.Feasible,
            "iterations": ev.Iterations,
        }})
    }
    start := time.Now()
    sol, sm, err := solver.Solve(ctx, toSolverSites(req.Sites), toSolverVehicles(req.Vehicles), cfg)
    if err != nil {
        metrics.SolveRequests.WithLabelValues(mode, "error").Inc()
        metrics.SolveDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
        run, ferr := s.Store.FailRun(ctx, tenant, runID, err.Error())
        if ferr != nil { run = model.Run{ID: runID, TenantID: tenant, Status: model.RunFailed, Error: err.Error()} }
        s.Pub.Emit(ctx, tenant, "run.failed", map[string]any{"runId": runID, "error": err.Error()})
        s.Broker.Publish(runID, SSEEvent{Type: "run.failed", Data: map[string]any{"runId": runID, "error": err.Error()}})
        return run, err
    }
    solver.RecordMetrics(runID, sm)
    outcome := "ok"
    if !sol.Feasible { outcome = "infeasible" }
    metrics.SolveRequests.WithLabelValues(mode, outcome).Inc()
    metrics.SolveDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
    metrics.SolveIterations.Observe(float64(sm.Iterations))
    metrics.SolveBestCost.Set(sol.Cost)

    out := toSolutionOut(sol)
    run, err := s.Store.CompleteRun(ctx, tenant, runID, *out)
    if err != nil {
        return model.Run{}, err
    }
    s.Pub.Emit(ctx, tenant, "run.completed", map[string]any{
        "runId":    runID,
        "cost":     sol.Cost,
        "feasible": sol.Feasible,
        "routes":   len(sol.Routes),
    })
    s.Broker.Publish(runID, SSEEvent{Type: "run.completed", Data: map[string]any{
        "runId":    runID,
        "cost":     sol.Cost,
        "feasible": sol.Feasible,
    }})
    return run, nil
}

// applyDefaults fills zero config fields from service-level defaults.
func (s *Server) applyDefaults(c *model.SolverConfig) {
    if c.Restarts == 0 { c.Restarts = s.Defaults.Restarts }
    if c.Workers == 0 { c.Workers = s.Defaults.Workers }
    if c.TimeBudgetMs == 0 { c.TimeBudgetMs = s.Defaults.TimeBudgetMs }
    if c.SpeedMPH == 0 { c.SpeedMPH = s.Defaults.SpeedMPH }
}

// RunsIndexHandler handles GET /v1/runs
func (s *Server) RunsIndexHandler(w http.ResponseWriter, r *http.Request) {
    if r.URL.Path != "/v1/runs" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    cursor := r.URL.Query().Get("cursor")
    limit := 100
    if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
    items, next, err := s.Store.ListRuns(r.Context(), tenant, cursor, limit)
    if err != nil { writeProblem(w, 500, "List runs failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler handles GET /v1/runs/{id} plus the /events/stream,
// /ws and /metrics subresources.
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
    path := r.URL.Path
    rest := strings.TrimPrefix(path, "/v1/runs/")
    if rest == path || rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    if len(parts) > 1 && parts[1] == "events" && len(parts) > 2 && parts[2] == "stream" {
        s.runEventsStream(w, r, id)
        return
    }
    if len(parts) > 1 && parts[1] == "ws" {
        s.RunWSHandler(w, r, id)
        return
    }
    if len(parts) > 1 && parts[1] == "metrics" {
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        _, tenant := s.withTenant(r)
        if _, err := s.Store.GetRun(r.Context(), tenant, id); err != nil {
            writeProblem(w, http.StatusNotFound, "Run not found", err.Error(), r.URL.Path)
            return
        }
        m, ok := solver.GetMetrics(id)
        if !ok { writeProblem(w, http.StatusNotFound, "No metrics for run", "", r.URL.Path); return }
        writeJSON(w, 200, map[string]any{
            "runId":         id,
            "restarts":      m.Restarts,
            "iterations":    m.Iterations,
            "acceptedMoves": m.AcceptedMoves,
            "repairMoves":   m.RepairMoves,
            "bestCost":      m.BestCost,
            "feasible":      m.Feasible,
            "elapsedMs":     m.Elapsed.Milliseconds(),
        })
        return
    }
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    _, tenant := s.withTenant(r)
    run, err := s.Store.GetRun(r.Context(), tenant, id)
    if err != nil {
        writeProblem(w, http.StatusNotFound, "Run not found", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, run)
}

// runEventsStream serves SSE for run progress events.
func (s *Server) runEventsStream(w http.ResponseWriter, r *http.Request, id string) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    // initial heartbeat
    fmt.Fprintf(w, "event: heartbeat\n")
    fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
    flusher.Flush()
    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", string(b))
            flusher.Flush()
        case <-time.After(15 * time.Second):
            fmt.Fprintf(w, "event: heartbeat\n")
            fmt.Fprintf(w, "data: {\"runId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
            flusher.Flush()
        }
    }
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if req.TenantID == "" { req.TenantID = p.Tenant }
        if req.URL == "" || len(req.Events) == 0 {
            writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events required", r.URL.Path)
            return
        }
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        p := s.getPrincipal(r)
        if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
        cursor := r.URL.Query().Get("cursor")
        limit := 100
        if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
        items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    p := s.getPrincipal(r)
    if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil { writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path); return }
    w.WriteHeader(204)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB connectivity when using Postgres store
    type pinger interface{ Ping(ctx context.Context) error }
    if pg, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}
