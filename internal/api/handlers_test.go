package api

import (
    "bytes"
    "context"
    "encoding/json"
    "io"
    "log/slog"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"

    "pdproute/internal/config"
    "pdproute/internal/model"
)

func newTestServer(t *testing.T, mut ...func(*config.Config)) *Server {
    t.Helper()
    cfg := config.Default()
    cfg.Solver.Seed = 1
    for _, m := range mut { m(&cfg) }
    s, err := NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
    if err != nil { t.Fatalf("NewServer: %v", err) }
    t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
    return s
}

// lineRequest places four cities on a line: A=0, B=5, C=8, D=20.
func lineRequest() model.SolveRequest {
    return model.SolveRequest{
        Network: model.Network{Cities: []model.CityIn{{Name: "A"}, {Name: "B", X: 5}, {Name: "C", X: 8}, {Name: "D", X: 20}}},
        Vehicles: []model.VehicleIn{
            {ID: "v1", Capacity: 10, CostPerKm: 2, Start: "A"},
            {ID: "v2", Capacity: 10, CostPerKm: 1, Start: "D"},
        },
        Tasks: []model.TaskIn{
            {ID: "t1", Pickup: "A", Delivery: "B", Weight: 4},
            {ID: "t2", Pickup: "C", Delivery: "D", Weight: 3},
        },
    }
}

func solve(t *testing.T, s *Server, req model.SolveRequest, role string) *httptest.ResponseRecorder {
    t.Helper()
    b, _ := json.Marshal(req)
    rr := httptest.NewRecorder()
    r := httptest.NewRequest(http.MethodPost, "/v1/solve", bytes.NewReader(b))
    r.Header.Set("Content-Type", "application/json")
    r.Header.Set("X-Tenant-Id", "t_test")
    if role != "" { r.Header.Set("X-Role", role) }
    s.SolveHandler(rr, r)
    return rr
}

func get(s http.HandlerFunc, path, role string) *httptest.ResponseRecorder {
    rr := httptest.NewRecorder()
    r := httptest.NewRequest(http.MethodGet, path, nil)
    r.Header.Set("X-Tenant-Id", "t_test")
    if role != "" { r.Header.Set("X-Role", role) }
    s(rr, r)
    return rr
}

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    if rr := get(s.HealthHandler, "/healthz", ""); rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    if rr := get(s.ReadyHandler, "/readyz", ""); rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
    if rr := get(s.DebugJSON, "/debug/info", ""); !strings.Contains(rr.Body.String(), `"solver"`) { t.Fatalf("debug: %s", rr.Body.String()) }
}

func TestSolveSync(t *testing.T) {
    s := newTestServer(t)
    rr := solve(t, s, lineRequest(), "dispatcher")
    if rr.Code != 200 { t.Fatalf("solve: %d %s", rr.Code, rr.Body.String()) }
    var run model.Run
    if err := json.Unmarshal(rr.Body.Bytes(), &run); err != nil { t.Fatalf("decode: %v", err) }
    if run.Status != model.RunCompleted { t.Fatalf("status: %s", run.Status) }
    if run.InitialCost != 40 { t.Fatalf("initial cost: %v", run.InitialCost) }
    if run.Cost > run.InitialCost { t.Fatalf("cost %v worse than initial %v", run.Cost, run.InitialCost) }
    if len(run.Plans) != 2 || run.Metrics == nil { t.Fatalf("plans/metrics missing: %+v", run) }
    total := 0.0
    for _, p := range run.Plans { total += p.Cost }
    if d := total - run.Cost; d > 1e-6 || d < -1e-6 { t.Fatalf("plan costs %v != run cost %v", total, run.Cost) }

    // persisted and listed
    rr = get(s.RunByIDHandler, "/v1/runs/"+run.ID, "")
    if rr.Code != 200 { t.Fatalf("get run: %d", rr.Code) }
    rr = get(s.RunsIndexHandler, "/v1/runs?limit=5", "")
    var idx struct{ Items []model.Run `json:"items"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &idx)
    if len(idx.Items) != 1 || idx.Items[0].ID != run.ID { t.Fatalf("runs index: %s", rr.Body.String()) }

    rr = get(s.SolverMetricsHandler, "/v1/admin/solver-metrics?strategy=steepest", "admin")
    if rr.Code != 200 || !strings.Contains(rr.Body.String(), `"runs":`) { t.Fatalf("solver metrics: %d %s", rr.Code, rr.Body.String()) }
}

func TestSolveErrors(t *testing.T) {
    s := newTestServer(t)

    heavy := lineRequest()
    heavy.Tasks[1].Weight = 50
    if rr := solve(t, s, heavy, ""); rr.Code != http.StatusUnprocessableEntity { t.Fatalf("unsolvable: %d %s", rr.Code, rr.Body.String()) }

    unknown := lineRequest()
    unknown.Tasks[0].Delivery = "Q"
    if rr := solve(t, s, unknown, ""); rr.Code != http.StatusBadRequest { t.Fatalf("unknown city: %d", rr.Code) }

    bad := lineRequest()
    bad.Solver = &model.SolverOverrides{Strategy: "tabu"}
    if rr := solve(t, s, bad, ""); rr.Code != http.StatusBadRequest { t.Fatalf("bad strategy: %d", rr.Code) }

    if rr := solve(t, s, lineRequest(), "viewer"); rr.Code != http.StatusForbidden { t.Fatalf("viewer: %d", rr.Code) }

    rr := httptest.NewRecorder()
    s.SolveHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/solve", strings.NewReader("{")))
    if rr.Code != http.StatusBadRequest { t.Fatalf("bad json: %d", rr.Code) }

    if rr := get(s.RunByIDHandler, "/v1/runs/nope", ""); rr.Code != 404 { t.Fatalf("missing run: %d", rr.Code) }
}

func TestSolveRateLimited(t *testing.T) {
    s := newTestServer(t, func(c *config.Config) { c.Server.RateRPS = 0.001; c.Server.RateBurst = 1 })
    if rr := solve(t, s, lineRequest(), ""); rr.Code != 200 { t.Fatalf("first: %d", rr.Code) }
    rr := solve(t, s, lineRequest(), "")
    if rr.Code != http.StatusTooManyRequests { t.Fatalf("second: %d", rr.Code) }
    if rr.Header().Get("Retry-After") == "" { t.Fatal("missing Retry-After") }
}

func waitRun(t *testing.T, s *Server, id string) model.Run {
    t.Helper()
    deadline := time.Now().Add(5 * time.Second)
    for time.Now().Before(deadline) {
        run, err := s.Store.GetRun(context.Background(), "t_test", id)
        if err == nil && run.Status != model.RunRunning { return run }
        time.Sleep(10 * time.Millisecond)
    }
    t.Fatalf("run %s did not finish", id)
    return model.Run{}
}

func TestSolveAsync(t *testing.T) {
    s := newTestServer(t)
    req := lineRequest()
    req.Async = true
    req.Solver = &model.SolverOverrides{Strategy: "anneal", MaxIterations: 200}
    rr := solve(t, s, req, "")
    if rr.Code != http.StatusAccepted { t.Fatalf("async: %d %s", rr.Code, rr.Body.String()) }
    var body struct{ RunID string `json:"runId"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &body)
    if body.RunID == "" { t.Fatal("missing runId") }
    run := waitRun(t, s, body.RunID)
    if run.Status != model.RunCompleted || run.Metrics.Strategy != "anneal" { t.Fatalf("run: %+v", run) }
    if run.Metrics.Iterations > 200 { t.Fatalf("iterations over budget: %d", run.Metrics.Iterations) }
}

func TestRunStream(t *testing.T) {
    s := newTestServer(t)
    mux := http.NewServeMux()
    mux.HandleFunc("/v1/runs/", s.RunByIDHandler)
    ts := httptest.NewServer(mux)
    defer ts.Close()

    req := lineRequest()
    req.Async = true
    rr := solve(t, s, req, "")
    var body struct{ RunID string `json:"runId"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &body)

    hdr := http.Header{}
    hdr.Set("X-Tenant-Id", "t_test")
    url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/runs/" + body.RunID + "/stream"
    c, _, err := websocket.DefaultDialer.Dial(url, hdr)
    if err != nil { t.Fatalf("dial: %v", err) }
    defer c.Close()
    _ = c.SetReadDeadline(time.Now().Add(5 * time.Second))

    if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil { t.Fatal(err) }
    var ack wsMessage
    if err := c.ReadJSON(&ack); err != nil || ack.Type != "connection_ack" { t.Fatalf("ack: %+v %v", ack, err) }
    if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1"}); err != nil { t.Fatal(err) }

    sawFinal := false
    for {
        var msg wsMessage
        if err := c.ReadJSON(&msg); err != nil { t.Fatalf("read: %v", err) }
        if msg.Type == "complete" { break }
        if msg.Type != "next" { continue }
        var pl struct{ Data struct{ RunEvents Event `json:"runEvents"` } `json:"data"` }
        if err := json.Unmarshal(msg.Payload, &pl); err != nil { t.Fatalf("payload: %v", err) }
        if pl.Data.RunEvents.Type == EventCompleted { sawFinal = true }
    }
    if !sawFinal { t.Fatal("stream completed without a run.completed event") }
}

func TestAdminSolverConfig(t *testing.T) {
    s := newTestServer(t)
    put := func(body, role string) int {
        rr := httptest.NewRecorder()
        r := httptest.NewRequest(http.MethodPut, "/v1/admin/solver/config", strings.NewReader(body))
        r.Header.Set("X-Tenant-Id", "t_test")
        r.Header.Set("X-Role", role)
        s.AdminSolverConfigHandler(rr, r)
        return rr.Code
    }
    if code := put(`{"config":{"strategy":"anneal","max_iterations":50}}`, "dispatcher"); code != 403 { t.Fatalf("non-admin put: %d", code) }
    if code := put(`{"config":{"strategy":"tabu"}}`, "admin"); code != 400 { t.Fatalf("invalid put: %d", code) }
    if code := put(`{"config":{"strategy":"anneal","max_iterations":50}}`, "admin"); code != 200 { t.Fatalf("put: %d", code) }

    rr := get(s.SolverConfigHandler, "/v1/solver/config", "viewer")
    var out struct{ Defaults config.SolverConfig `json:"defaults"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &out)
    if out.Defaults.Strategy != "anneal" || out.Defaults.MaxIterations != 50 { t.Fatalf("effective config: %s", rr.Body.String()) }

    // tenant overrides drive the next solve
    rr = solve(t, s, lineRequest(), "")
    var run model.Run
    _ = json.Unmarshal(rr.Body.Bytes(), &run)
    if run.Metrics == nil || run.Metrics.Strategy != "anneal" || run.Metrics.Iterations > 50 { t.Fatalf("override not applied: %s", rr.Body.String()) }
}

func TestOpenAPIDocument(t *testing.T) {
    s := newTestServer(t)
    rr := get(s.OpenAPIHandler, "/openapi.json", "")
    var doc struct{ Paths map[string]any `json:"paths"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil { t.Fatalf("decode: %v", err) }
    for _, p := range []string{"/v1/solve", "/v1/runs/{id}/stream", "/v1/admin/solver/config"} {
        if _, ok := doc.Paths[p]; !ok { t.Fatalf("openapi missing %s", p) }
    }
    if rr := get(s.OpenAPIHandler, "/openapi.yaml", ""); rr.Header().Get("Content-Type") != "application/yaml" { t.Fatal("yaml content type") }
}

func TestSolveAsyncCallback(t *testing.T) {
    got := make(chan []byte, 1)
    cb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        b, _ := io.ReadAll(r.Body)
        if r.Header.Get("X-Signature") == "" { w.WriteHeader(400); return }
        got <- b
    }))
    defer cb.Close()

    s := newTestServer(t)
    req := lineRequest()
    req.Async = true
    req.Callback = &model.Callback{URL: cb.URL, Secret: "s3cret"}
    rr := solve(t, s, req, "")
    if rr.Code != http.StatusAccepted { t.Fatalf("async: %d %s", rr.Code, rr.Body.String()) }

    select {
    case b := <-got:
        var n struct{ Type string `json:"type"`; Data map[string]any `json:"data"` }
        if err := json.Unmarshal(b, &n); err != nil { t.Fatalf("decode: %v", err) }
        if n.Type != EventCompleted || n.Data["status"] != model.RunCompleted { t.Fatalf("notification: %s", b) }
    case <-time.After(5 * time.Second):
        t.Fatal("callback not delivered")
    }

    sync := lineRequest()
    sync.Callback = &model.Callback{URL: cb.URL}
    if rr := solve(t, s, sync, ""); rr.Code != http.StatusBadRequest { t.Fatalf("sync callback: %d", rr.Code) }
}
