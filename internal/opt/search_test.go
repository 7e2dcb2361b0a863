package opt

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleTaskSingleVehicle(t *testing.T) {
	p := &Problem{
		Network:  lineNet{"A": 0, "B": 5},
		Vehicles: []Vehicle{{ID: "v1", Capacity: 10, CostPerKm: 1, Start: "A"}},
		Tasks:    []Task{{ID: "t1", Pickup: "A", Delivery: "B", Weight: 4}},
	}
	res, err := Solve(context.Background(), p, Options{Strategy: StrategySteepest, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Solution.Cost())
	assert.Equal(t, []string{"+t1", "-t1"}, routeTasks(res.Solution, 0))
	assert.Equal(t, StopConverged, res.Metrics.StopReason)
	assert.Equal(t, 1, res.Metrics.Iterations)
}

func TestRelocationToDistantVehicleIsRejected(t *testing.T) {
	p := &Problem{
		Network: lineNet{"A": 0, "B": 5, "Z": 100},
		Vehicles: []Vehicle{
			{ID: "near", Capacity: 10, CostPerKm: 1, Start: "A"},
			{ID: "far", Capacity: 5, CostPerKm: 1, Start: "Z"},
		},
		Tasks: []Task{{ID: "t1", Pickup: "A", Delivery: "B", Weight: 4}},
	}
	res, err := Solve(context.Background(), p, Options{Strategy: StrategySteepest, Init: InitOptions{Vehicle: -1}})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Solution.Cost())
	assert.Equal(t, []string{"+t1", "-t1"}, routeTasks(res.Solution, 0))
	assert.Empty(t, routeTasks(res.Solution, 1))
	assert.Equal(t, 0, res.Metrics.Accepted)
}

func TestSteepestImprovesSequentialTour(t *testing.T) {
	p := &Problem{
		Network:  lineNet{"X0": 0, "X1": 1, "X2": 2, "X3": 3, "X4": 4, "X10": 10},
		Vehicles: []Vehicle{{ID: "v1", Capacity: 10, CostPerKm: 1, Start: "X0"}},
		Tasks: []Task{
			{ID: "t1", Pickup: "X0", Delivery: "X10", Weight: 3},
			{ID: "t2", Pickup: "X1", Delivery: "X2", Weight: 3},
			{ID: "t3", Pickup: "X3", Delivery: "X4", Weight: 3},
		},
	}
	var costs []float64
	res, err := Solve(context.Background(), p, Options{
		Strategy: StrategySteepest,
		Observer: func(pr Progress) { costs = append(costs, pr.CurrentCost) },
	})
	require.NoError(t, err)
	assert.Equal(t, 22.0, res.Metrics.InitialCost)
	assert.Less(t, res.Solution.Cost(), res.Metrics.InitialCost)
	require.NoError(t, Verify(res.Solution))
	for i := 1; i < len(costs)-1; i++ {
		assert.Less(t, costs[i], costs[i-1], "accepted moves strictly decrease cost")
	}
	assert.Equal(t, res.Metrics.Improvements, res.Metrics.Iterations-1)
}

func TestOverweightTaskIsUnsolvable(t *testing.T) {
	p := lineProblem()
	p.Tasks = append(p.Tasks, Task{ID: "heavy", Pickup: "A", Delivery: "B", Weight: 11})
	_, err := Solve(context.Background(), p, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsolvable)
	var ue *UnsolvableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "heavy", ue.TaskID)
	assert.Equal(t, 10, ue.MaxCapacity)
}

func TestUnknownStrategy(t *testing.T) {
	_, err := Solve(context.Background(), lineProblem(), Options{Strategy: "tabu"})
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestInvalidProblem(t *testing.T) {
	p := lineProblem()
	p.Tasks[1].ID = p.Tasks[0].ID
	_, err := Solve(context.Background(), p, Options{})
	assert.ErrorIs(t, err, ErrInvalidProblem)
}

func TestSolveProperties(t *testing.T) {
	for _, strategy := range []string{StrategySteepest, StrategyAnneal} {
		for seed := int64(1); seed <= 8; seed++ {
			p := randomProblem(seed, 3, 6)
			res, err := Solve(context.Background(), p, Options{
				Strategy:      strategy,
				Init:          InitOptions{Policy: InitSingle, Vehicle: -1},
				MaxIterations: 400,
				Seed:          seed,
			})
			require.NoError(t, err, "%s seed %d", strategy, seed)
			require.NoError(t, Verify(res.Solution))
			assert.LessOrEqual(t, res.Solution.Cost(), res.Metrics.InitialCost+1e-9)
			assert.InDelta(t, res.Solution.model.TotalCost(res.Solution), res.Solution.Cost(), 1e-6)
		}
	}
}

func TestAnnealingIsReproducible(t *testing.T) {
	p := randomProblem(3, 4, 8)
	opts := Options{Strategy: StrategyAnneal, MaxIterations: 500, Seed: 99, Init: InitOptions{Policy: InitPack}}
	a, err := Solve(context.Background(), p, opts)
	require.NoError(t, err)
	b, err := Solve(context.Background(), p, opts)
	require.NoError(t, err)
	assert.Equal(t, a.Solution.Cost(), b.Solution.Cost())
	assert.Equal(t, a.Metrics.Accepted, b.Metrics.Accepted)
	for v := 0; v < a.Solution.Vehicles(); v++ {
		assert.Equal(t, routeTasks(a.Solution, v), routeTasks(b.Solution, v))
	}
	assert.Equal(t, 500, a.Metrics.Iterations)
	assert.Equal(t, StopIterations, a.Metrics.StopReason)
}

func TestAnnealingReturnsBestSeen(t *testing.T) {
	p := randomProblem(11, 3, 8)
	var best = math.Inf(1)
	res, err := Solve(context.Background(), p, Options{
		Strategy:      StrategyAnneal,
		MaxIterations: 300,
		Seed:          5,
		InitialTemp:   1e6,
		Observer: func(pr Progress) {
			best = math.Min(best, pr.CurrentCost)
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, math.Min(best, res.Metrics.InitialCost), res.Solution.Cost(), 1e-6)
}

func TestWorkersDoNotChangeResult(t *testing.T) {
	p := randomProblem(4, 3, 7)
	seq, err := Solve(context.Background(), p, Options{Strategy: StrategySteepest})
	require.NoError(t, err)
	par, err := Solve(context.Background(), p, Options{Strategy: StrategySteepest, Workers: 4})
	require.NoError(t, err)
	assert.Equal(t, seq.Solution.Cost(), par.Solution.Cost())
	assert.Equal(t, seq.Metrics.Iterations, par.Metrics.Iterations)
	for v := 0; v < seq.Solution.Vehicles(); v++ {
		assert.Equal(t, routeTasks(seq.Solution, v), routeTasks(par.Solution, v))
	}
}

func TestBudgetStopsSearch(t *testing.T) {
	p := randomProblem(2, 3, 10)
	res, err := Solve(context.Background(), p, Options{Strategy: StrategySteepest, MaxIterations: 1})
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Metrics.Iterations, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err = Solve(ctx, p, Options{Strategy: StrategyAnneal})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Metrics.Iterations)
	assert.Equal(t, StopCanceled, res.Metrics.StopReason)
	assert.Equal(t, res.Metrics.InitialCost, res.Solution.Cost())
}

func TestBudgetTimeLimit(t *testing.T) {
	b := NewBudget(0, time.Millisecond)
	time.Sleep(2 * time.Millisecond)
	assert.False(t, b.Next(context.Background()))
	assert.Equal(t, StopTime, b.ExhaustedBy())

	b = NewBudget(2, 0)
	assert.True(t, b.Next(context.Background()))
	assert.True(t, b.Next(context.Background()))
	assert.False(t, b.Next(context.Background()))
	assert.Equal(t, StopIterations, b.ExhaustedBy())
	assert.Equal(t, 2, b.Used())
}

func TestTemperatureSchedule(t *testing.T) {
	assert.Equal(t, 10.0, Temperature(10, 0, 100))
	assert.InDelta(t, 5.0, Temperature(10, 50, 100), 1e-12)
	assert.Equal(t, minTemperature, Temperature(10, 100, 100))
	assert.Greater(t, Temperature(10, 99, 100), 0.0)
}

func TestAcceptProbability(t *testing.T) {
	assert.Equal(t, 1.0, AcceptProbability(-3, 1))
	assert.Equal(t, 1.0, AcceptProbability(0, 1))
	assert.InDelta(t, math.Exp(-1), AcceptProbability(2, 2), 1e-12)
	assert.Less(t, AcceptProbability(5, 1), AcceptProbability(5, 10))
}

func TestDisconnectedNetwork(t *testing.T) {
	net := islandNet{"A": {0, 0}, "B": {0, 3}, "C": {1, 0}, "D": {1, 4}}

	t.Run("initial route crosses islands", func(t *testing.T) {
		p := &Problem{
			Network: net,
			Vehicles: []Vehicle{
				{ID: "v1", Capacity: 10, CostPerKm: 1, Start: "A"},
				{ID: "v2", Capacity: 10, CostPerKm: 1, Start: "C"},
			},
			Tasks: []Task{
				{ID: "t1", Pickup: "A", Delivery: "B", Weight: 2},
				{ID: "t2", Pickup: "C", Delivery: "D", Weight: 2},
			},
		}
		_, err := Solve(context.Background(), p, Options{Strategy: StrategySteepest, MaxIterations: 50})
		assert.ErrorIs(t, err, ErrInvalidProblem)
	})

	t.Run("relocation to an island is discarded", func(t *testing.T) {
		p := &Problem{
			Network: net,
			Vehicles: []Vehicle{
				{ID: "v1", Capacity: 10, CostPerKm: 1, Start: "A"},
				{ID: "v2", Capacity: 10, CostPerKm: 1, Start: "C"},
			},
			Tasks: []Task{
				{ID: "t1", Pickup: "A", Delivery: "B", Weight: 2},
				{ID: "t2", Pickup: "B", Delivery: "A", Weight: 2},
			},
		}
		for _, strategy := range []string{StrategySteepest, StrategyAnneal} {
			res, err := Solve(context.Background(), p, Options{Strategy: strategy, MaxIterations: 200, Seed: 5, Init: InitOptions{Vehicle: 0}})
			require.NoError(t, err, strategy)
			assert.False(t, math.IsNaN(res.Solution.Cost()) || math.IsInf(res.Solution.Cost(), 0), strategy)
			assert.Equal(t, 6.0, res.Solution.Cost(), strategy)
			assert.Empty(t, routeTasks(res.Solution, 1), strategy)
		}
	})
}
