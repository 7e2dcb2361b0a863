package opt

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("pdproute/internal/opt")

// Options configures one Solve call.
type Options struct {
	Strategy      string
	Init          InitOptions
	MaxIterations int
	TimeLimit     time.Duration
	InitialTemp   float64
	// Seed 0 draws a seed from the clock; the seed used is reported in Metrics.
	Seed     int64
	Workers  int
	Observer Observer
	Logger   *slog.Logger
}

// Result is the outcome of Solve.
type Result struct {
	Solution *Solution
	Initial  *Solution
	Metrics  Metrics
}

// NewStrategy builds the strategy named by o.Strategy with its own seeded
// random source.
func NewStrategy(o Options, seed int64) (Strategy, error) {
	nb := &Neighborhood{Workers: o.Workers, Logger: o.Logger}
	switch o.Strategy {
	case StrategySteepest, "":
		return &SteepestDescent{Neighborhood: nb, Observer: o.Observer}, nil
	case StrategyAnneal:
		return &Annealing{
			Neighborhood: nb,
			Rand:         rand.New(rand.NewSource(seed)),
			InitialTemp:  o.InitialTemp,
			Observer:     o.Observer,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, o.Strategy)
}

// Solve validates p, builds the initial solution, improves it with the
// configured strategy and verifies the result. Only ErrInvalidProblem,
// ErrUnknownStrategy, ErrUnsolvable and ErrStructural are returned.
func Solve(ctx context.Context, p *Problem, o Options) (res Result, err error) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	seed := o.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ctx, span := tracer.Start(ctx, "pdp.solve", trace.WithAttributes(
		attribute.String("pdp.strategy", o.Strategy),
		attribute.Int("pdp.vehicles", len(p.Vehicles)),
		attribute.Int("pdp.tasks", len(p.Tasks)),
		attribute.Int64("pdp.seed", seed),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := p.Validate(); err != nil {
		return Result{}, fmt.Errorf("solve: %w", err)
	}
	strat, err := NewStrategy(o, seed)
	if err != nil {
		return Result{}, fmt.Errorf("solve: %w", err)
	}
	init, err := Initial(p, o.Init)
	if err != nil {
		return Result{}, fmt.Errorf("solve: build initial solution: %w", err)
	}
	if !finite(init.Cost()) {
		return Result{}, fmt.Errorf("solve: %w: initial cost %v, some locations are not connected", ErrInvalidProblem, init.Cost())
	}
	logger.Info("solve started", "strategy", strat.Name(), "vehicles", len(p.Vehicles), "tasks", len(p.Tasks), "initial_cost", init.Cost(), "seed", seed)

	budget := NewBudget(o.MaxIterations, o.TimeLimit)
	best, m := strat.Search(ctx, init.Clone(), budget)
	m.Seed = seed
	if err := Verify(best); err != nil {
		return Result{}, fmt.Errorf("solve: verify result: %w", err)
	}
	span.SetAttributes(
		attribute.Int("pdp.iterations", m.Iterations),
		attribute.Float64("pdp.initial_cost", m.InitialCost),
		attribute.Float64("pdp.best_cost", m.BestCost),
		attribute.String("pdp.stop_reason", m.StopReason),
	)
	logger.Info("solve finished", "strategy", m.Strategy, "iterations", m.Iterations, "initial_cost", m.InitialCost, "best_cost", m.BestCost, "stop", m.StopReason, "elapsed", m.Elapsed)
	return Result{Solution: best, Initial: init, Metrics: m}, nil
}
