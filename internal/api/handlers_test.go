package api

import (
    "bytes"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "fleetroute/internal/auth"
    "fleetroute/internal/model"
    "fleetroute/internal/store"
    "fleetroute/internal/webhooks"
)

func newTestServer(t *testing.T) *Server {
    t.Helper()
    m := store.NewMemory()
    return &Server{Store: m, Pub: webhooks.NewPublisher(m), Auth: auth.NewVerifierFromEnv(), Broker: NewBroker()}
}

func solveBody() []byte {
    req := model.SolveRequest{
        Sites: []model.SiteIn{
            {ID: "s1", Location: model.LatLng{Lat: 40.01, Lng: -75.0}, Demand: 2},
            {ID: "s2", Location: model.LatLng{Lat: 40.02, Lng: -75.01}, Demand: 3},
            {ID: "s3", Location: model.LatLng{Lat: 40.03, Lng: -75.02}, Demand: 1},
        },
        Vehicles: []model.VehicleIn{
            {ID: "v1", Capacity: 10, Depot: &model.LatLng{Lat: 40.0, Lng: -75.0}},
        },
        Config: model.SolverConfig{Seed: 7, Restarts: 2},
    }
    b, _ := json.Marshal(req)
    return b
}

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
}

func TestSolveSync(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader(solveBody()))
    req.Header.Set("Content-Type", "application/json")
    s.SolveHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("solve: got %d: %s", rr.Code, rr.Body.String()) }
    var run model.Run
    if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil { t.Fatalf("decode: %v", err) }
    if run.Status != model.RunCompleted { t.Fatalf("status: %s (%s)", run.Status, run.Error) }
    if run.Solution == nil || !run.Solution.Feasible { t.Fatalf("expected feasible solution: %+v", run.Solution) }
    total := 0
    for _, rt := range run.Solution.Routes { total += len(rt.Stops) }
    if total != 3 { t.Fatalf("expected 3 stops across routes, got %d", total) }

    // run is retrievable and metrics were recorded
    rr = httptest.NewRecorder()
    s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID, nil))
    if rr.Code != 200 { t.Fatalf("get run: %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID+"/metrics", nil))
    if rr.Code != 200 { t.Fatalf("run metrics: %d: %s", rr.Code, rr.Body.String()) }
}

func TestSolveAsync(t *testing.T) {
    s := newTestServer(t)
    body := solveBody()
    var req model.SolveRequest
    _ = json.Unmarshal(body, &req)
    req.Async = true
    b, _ := json.Marshal(req)

    rr := httptest.NewRecorder()
    hreq := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader(b))
    hreq.Header.Set("Content-Type", "application/json")
    s.SolveHandler(rr, hreq)
    if rr.Code != http.StatusAccepted { t.Fatalf("async solve: got %d", rr.Code) }
    var run model.Run
    if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil { t.Fatalf("decode: %v", err) }
    if run.ID == "" || run.Status != model.RunPending { t.Fatalf("unexpected pending run: %+v", run) }

    // Wait for completion
    deadline := time.Now().Add(5 * time.Second)
    for {
        rr = httptest.NewRecorder()
        s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/"+run.ID, nil))
        var got model.Run
        _ = json.Unmarshal(rr.Body.Bytes(), &got)
        if got.Status == model.RunCompleted { break }
        if got.Status == model.RunFailed { t.Fatalf("run failed: %s", got.Error) }
        if time.Now().After(deadline) { t.Fatalf("run did not complete; last status %s", got.Status) }
        time.Sleep(10 * time.Millisecond)
    }
}

func TestSolveValidationAndRBAC(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader([]byte(`{"sites":[],"vehicles":[]}`)))
    s.SolveHandler(rr, req)
    if rr.Code != http.StatusBadRequest { t.Fatalf("empty request: got %d", rr.Code) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader(solveBody()))
    req.Header.Set("X-Role", "viewer")
    s.SolveHandler(rr, req)
    if rr.Code != http.StatusForbidden { t.Fatalf("viewer solve: got %d", rr.Code) }

    // unknown move name
    var sreq model.SolveRequest
    _ = json.Unmarshal(solveBody(), &sreq)
    sreq.Config.Moves = []string{"three_opt"}
    b, _ := json.Marshal(sreq)
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader(b))
    s.SolveHandler(rr, req)
    if rr.Code != http.StatusBadRequest { t.Fatalf("bad move: got %d", rr.Code) }
}

func TestSolveUnserviceableSite(t *testing.T) {
    s := newTestServer(t)
    req := model.SolveRequest{
        Sites:    []model.SiteIn{{ID: "big", Location: model.LatLng{Lat: 40, Lng: -75}, Demand: 50}},
        Vehicles: []model.VehicleIn{{ID: "v1", Capacity: 10}},
    }
    b, _ := json.Marshal(req)
    rr := httptest.NewRecorder()
    hreq := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader(b))
    s.SolveHandler(rr, hreq)
    if rr.Code != http.StatusUnprocessableEntity { t.Fatalf("unserviceable: got %d: %s", rr.Code, rr.Body.String()) }
}

func TestRunsIndexAndNotFound(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.RunsIndexHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs?limit=5", nil))
    if rr.Code != 200 { t.Fatalf("runs index: %d", rr.Code) }

    rr = httptest.NewRecorder()
    s.RunByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/runs/nope", nil))
    if rr.Code != http.StatusNotFound { t.Fatalf("missing run: %d", rr.Code) }
}

func TestSubscriptionsCRUD(t *testing.T) {
    s := newTestServer(t)
    body := []byte(`{"url":"https://example.test/hook","events":["run.completed"],"secret":"sh"}`)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    s.SubscriptionsHandler(rr, req)
    if rr.Code != http.StatusCreated { t.Fatalf("create sub: %d: %s", rr.Code, rr.Body.String()) }
    var sub model.Subscription
    _ = json.Unmarshal(rr.Body.Bytes(), &sub)

    rr = httptest.NewRecorder()
    s.SubscriptionsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil))
    if rr.Code != 200 { t.Fatalf("list subs: %d", rr.Code) }

    rr = httptest.NewRecorder()
    s.SubscriptionByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil))
    if rr.Code != 204 { t.Fatalf("delete sub: %d", rr.Code) }

    // non-admin rejected
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(body))
    req.Header.Set("X-Role", "planner")
    s.SubscriptionsHandler(rr, req)
    if rr.Code != http.StatusForbidden { t.Fatalf("planner create sub: %d", rr.Code) }
}

func TestSolveEmitsWebhook(t *testing.T) {
    s := newTestServer(t)
    _, err := s.Store.CreateSubscription(
        httptest.NewRequest(http.MethodGet, "/", nil).Context(),
        model.SubscriptionRequest{TenantID: "t_demo", URL: "https://example.test/hook", Events: []string{"run.completed"}, Secret: "s"},
    )
    if err != nil { t.Fatalf("subscribe: %v", err) }

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader(solveBody()))
    s.SolveHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("solve: %d", rr.Code) }

    due, err := s.Store.FetchDueWebhookDeliveries(req.Context(), 10)
    if err != nil || len(due) != 1 {
        t.Fatalf("expected 1 webhook delivery, got %d (%v)", len(due), err)
    }
    if due[0].EventType != "run.completed" { t.Fatalf("event type: %s", due[0].EventType) }
}
