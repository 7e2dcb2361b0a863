package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"pdproute/internal/model"
	"pdproute/internal/opt"
	"pdproute/internal/plan"
	"pdproute/internal/store"
)

// SolveHandler handles POST /v1/solve
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanSolve() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "solve rate limit exceeded", r.URL.Path)
		return
	}
	var req model.SolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSolveRequest(&req, s.Config.Solver.MaxTasks); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}
	if req.TenantID == "" {
		req.TenantID = p.Tenant
	}

	sc, err := s.solverConfig(r.Context(), req.TenantID)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Load solver config failed", err.Error(), r.URL.Path)
		return
	}
	sc = sc.Apply(req.Solver)
	if err := sc.Validate(); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solver settings", err.Error(), r.URL.Path)
		return
	}
	problem, graph, err := plan.Problem(r.Context(), req, s.Cache)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid problem", err.Error(), r.URL.Path)
		return
	}

	run := model.Run{
		ID:        uuid.Must(uuid.NewV7()).String(),
		TenantID:  req.TenantID,
		Status:    model.RunRunning,
		Strategy:  sc.Strategy,
		Vehicles:  len(problem.Vehicles),
		Tasks:     len(problem.Tasks),
		CreatedAt: time.Now().UTC(),
	}

	if req.Async {
		if err := s.Store.SaveRun(r.Context(), run); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Save run failed", err.Error(), r.URL.Path)
			return
		}
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			done, _ := s.execute(s.base, run, problem, graph, sc)
			if req.Callback != nil {
				s.notify(done, req.Callback)
			}
		}()
		w.Header().Set("Location", "/v1/runs/"+run.ID)
		writeJSON(w, http.StatusAccepted, map[string]any{"runId": run.ID, "status": run.Status})
		return
	}

	run, err = s.execute(r.Context(), run, problem, graph, sc)
	if err != nil {
		var ue *opt.UnsolvableError
		switch {
		case errors.As(err, &ue):
			writeProblem(w, http.StatusUnprocessableEntity, "Unsolvable", err.Error(), r.URL.Path)
		case errors.Is(err, opt.ErrInvalidProblem), errors.Is(err, opt.ErrUnknownStrategy):
			writeProblem(w, http.StatusBadRequest, "Invalid problem", err.Error(), r.URL.Path)
		default:
			writeProblem(w, http.StatusInternalServerError, "Solve failed", err.Error(), r.URL.Path)
		}
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// RunsIndexHandler handles GET /v1/runs
func (s *Server) RunsIndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/runs" { writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path); return }
	if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
	p := s.getPrincipal(r)
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" { fmt.Sscanf(v, "%d", &limit) }
	items, next, err := s.Store.ListRuns(r.Context(), p.Tenant, cursor, limit)
	if err != nil { writeProblem(w, 500, "List runs failed", err.Error(), r.URL.Path); return }
	writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler handles GET /v1/runs/{id} and the /v1/runs/{id}/stream websocket
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	rest := strings.TrimPrefix(path, "/v1/runs/")
	if rest == path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	run, err := s.Store.GetRun(r.Context(), p.Tenant, id)
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Run not found", id, path)
		return
	}
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Get run failed", err.Error(), path)
		return
	}
	switch {
	case len(parts) == 1:
		writeJSON(w, http.StatusOK, run)
	case len(parts) == 2 && parts[1] == "stream":
		s.streamRun(w, r, p.Tenant, id)
	default:
		writeProblem(w, http.StatusNotFound, "Not Found", "", path)
	}
}

// SolverConfigHandler returns the effective solver configuration for the tenant
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/solver/config" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
	p := s.getPrincipal(r)
	sc, err := s.solverConfig(r.Context(), p.Tenant)
	if err != nil { writeProblem(w, 500, "Load solver config failed", err.Error(), r.URL.Path); return }
	writeJSON(w, 200, map[string]any{"defaults": sc})
}

// AdminSolverConfigHandler gets or replaces the tenant's solver overrides
func (s *Server) AdminSolverConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/solver/config" { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
	p := s.getPrincipal(r)
	if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
	switch r.Method {
	case http.MethodGet:
		cfg, err := s.Store.GetSolverConfig(r.Context(), p.Tenant)
		if err != nil { writeProblem(w, 500, "Load solver config failed", err.Error(), r.URL.Path); return }
		if cfg == nil { cfg = map[string]any{} }
		writeJSON(w, 200, map[string]any{"config": cfg})
	case http.MethodPut:
		var body struct{ Config map[string]any `json:"config"` }
		if err := decodeJSON(w, r, &body); err != nil { writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path); return }
		if body.Config == nil { writeProblem(w, 400, "Missing config", "", r.URL.Path); return }
		merged, err := s.Config.Solver.WithOverrides(body.Config)
		if err == nil {
			err = merged.Validate()
		}
		if err != nil { writeProblem(w, 400, "Invalid solver config", err.Error(), r.URL.Path); return }
		if err := s.Store.SaveSolverConfig(r.Context(), p.Tenant, body.Config); err != nil { writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path); return }
		writeJSON(w, 200, map[string]any{"ok": true, "effective": merged})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SolverMetricsHandler reports per-strategy run summaries for the tenant
func (s *Server) SolverMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/solver-metrics" || r.Method != http.MethodGet { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
	p := s.getPrincipal(r)
	if !p.IsAdmin() { writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path); return }
	strategy := r.URL.Query().Get("strategy")
	items := []map[string]any{}
	for name, sum := range opt.GetMetrics(p.Tenant) {
		if strategy != "" && name != strategy { continue }
		items = append(items, map[string]any{
			"strategy":        name,
			"runs":            sum.Runs,
			"totalIterations": sum.TotalIterations,
			"bestCost":        sum.BestCost,
			"last":            sum.Last,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i]["strategy"].(string) < items[j]["strategy"].(string) })
	writeJSON(w, 200, map[string]any{"items": items})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
