package api

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"pdproute/internal/config"
	"pdproute/internal/metrics"
	"pdproute/internal/model"
	"pdproute/internal/opt"
	"pdproute/internal/plan"
	"pdproute/internal/topology"
)

// solverConfig layers the tenant's stored overrides on the service defaults.
func (s *Server) solverConfig(ctx context.Context, tenant string) (config.SolverConfig, error) {
	over, err := s.Store.GetSolverConfig(ctx, tenant)
	if err != nil {
		return config.SolverConfig{}, err
	}
	return s.Config.Solver.WithOverrides(over)
}

// execute solves p and persists the outcome under run. Progress and the
// final state are published on the run's stream.
func (s *Server) execute(ctx context.Context, run model.Run, p *opt.Problem, g *topology.Graph, sc config.SolverConfig) (model.Run, error) {
	logger := s.Logger.With("run_id", run.ID, "tenant", run.TenantID)
	opts := sc.Options()
	opts.Logger = logger
	opts.Observer = s.progressObserver(run.ID)

	metrics.ActiveSolves.Inc()
	res, err := opt.Solve(ctx, p, opts)
	metrics.ActiveSolves.Dec()

	now := time.Now().UTC()
	run.FinishedAt = &now
	if err != nil {
		run.Status = model.RunFailed
		run.Error = err.Error()
		metrics.ObserveFailure(sc.Strategy, outcome(err))
		logger.Warn("solve failed", "err", err)
		s.save(run)
		s.Broker.Publish(run.ID, Event{Type: EventFailed, Data: map[string]any{"runId": run.ID, "error": run.Error}})
		return run, err
	}

	m := res.Metrics
	run.Status = model.RunCompleted
	run.Strategy = m.Strategy
	run.InitialCost = m.InitialCost
	run.Cost = res.Solution.Cost()
	run.Plans = plan.Build(res.Solution, g)
	run.Metrics = &model.RunMetrics{
		Strategy:      m.Strategy,
		Seed:          m.Seed,
		Iterations:    m.Iterations,
		Accepted:      m.Accepted,
		Improvements:  m.Improvements,
		AcceptedWorse: m.AcceptedWorse,
		Candidates:    m.Candidates,
		Infeasible:    m.Infeasible,
		Structural:    m.Structural,
		InitialCost:   m.InitialCost,
		BestCost:      m.BestCost,
		StopReason:    m.StopReason,
		ElapsedMs:     m.Elapsed.Milliseconds(),
	}
	metrics.ObserveRun(metrics.Run{
		Strategy:    m.Strategy,
		StopReason:  m.StopReason,
		Iterations:  m.Iterations,
		Candidates:  m.Candidates,
		Infeasible:  m.Infeasible,
		Structural:  m.Structural,
		InitialCost: m.InitialCost,
		BestCost:    m.BestCost,
		Elapsed:     m.Elapsed,
	})
	opt.RecordMetrics(run.TenantID, m)
	s.save(run)
	s.Broker.Publish(run.ID, Event{Type: EventCompleted, Data: map[string]any{
		"runId": run.ID, "cost": run.Cost, "initialCost": run.InitialCost, "stopReason": m.StopReason,
	}})
	return run, nil
}

func (s *Server) save(run model.Run) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Store.SaveRun(ctx, run); err != nil {
		s.Logger.Error("save run failed", "run_id", run.ID, "err", err)
	}
}

// progressObserver publishes every new best cost and a sample of the other
// iterations.
func (s *Server) progressObserver(runID string) opt.Observer {
	sometimes := &rate.Sometimes{First: 1, Interval: 100 * time.Millisecond}
	best := 0.0
	return func(p opt.Progress) {
		publish := func() {
			s.Broker.Publish(runID, Event{Type: EventProgress, Data: map[string]any{
				"runId":       runID,
				"iteration":   p.Iteration,
				"currentCost": p.CurrentCost,
				"bestCost":    p.BestCost,
				"temperature": p.Temperature,
				"accepted":    p.Accepted,
			}})
		}
		if p.Iteration == 1 || p.BestCost < best {
			best = p.BestCost
			publish()
			return
		}
		sometimes.Do(publish)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, opt.ErrUnsolvable):
		return "unsolvable"
	case errors.Is(err, opt.ErrInvalidProblem), errors.Is(err, opt.ErrUnknownStrategy):
		return "invalid"
	}
	return "failed"
}

// notify posts the run outcome to the request's callback.
func (s *Server) notify(run model.Run, cb *model.Callback) {
	evt := EventCompleted
	if run.Status == model.RunFailed {
		evt = EventFailed
	}
	data := map[string]any{"runId": run.ID, "status": run.Status, "cost": run.Cost, "initialCost": run.InitialCost, "error": run.Error}
	if err := s.Notify.Deliver(s.base, cb.URL, cb.Secret, run.TenantID, evt, data); err != nil {
		s.Logger.Error("run callback dropped", "run_id", run.ID, "err", err)
	}
}
