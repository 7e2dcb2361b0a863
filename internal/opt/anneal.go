package opt

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// DefaultAnnealIterations is the schedule length used when neither the
// strategy nor the budget sets one.
const DefaultAnnealIterations = 10000

const minTemperature = 1e-9

// Annealing draws one stochastic neighbor per iteration and accepts it with
// probability exp(-delta/T). Temperature falls linearly to zero over the
// iteration schedule. The best solution seen is tracked and returned.
type Annealing struct {
	Neighborhood *Neighborhood
	Rand         *rand.Rand
	// InitialTemp <= 0 derives T0 from the initial cost.
	InitialTemp float64
	// Iterations is the schedule length; 0 falls back to the budget.
	Iterations int
	Observer   Observer
}

func (a *Annealing) Name() string { return StrategyAnneal }

// Temperature returns T at iteration i of an n-iteration schedule.
func Temperature(t0 float64, i, n int) float64 {
	if n <= 0 {
		return t0
	}
	return math.Max(t0*(1-float64(i)/float64(n)), minTemperature)
}

// AcceptProbability is 1 for non-worsening moves and exp(-delta/temp)
// otherwise.
func AcceptProbability(delta, temp float64) float64 {
	if delta <= 0 {
		return 1
	}
	return math.Exp(-delta / temp)
}

func (a *Annealing) schedule(budget *Budget) int {
	switch {
	case a.Iterations > 0:
		return a.Iterations
	case budget.MaxIterations > 0:
		return budget.MaxIterations
	}
	return DefaultAnnealIterations
}

func (a *Annealing) Search(ctx context.Context, init *Solution, budget *Budget) (*Solution, Metrics) {
	start := time.Now()
	n := a.schedule(budget)
	t0 := a.InitialTemp
	if t0 <= 0 {
		t0 = math.Max(1, 0.02*init.Cost())
	}
	m := Metrics{Strategy: a.Name(), InitialCost: init.Cost()}
	cur, best := init, init
	for i := 0; i < n; i++ {
		if !budget.Next(ctx) {
			break
		}
		m.Iterations++
		temp := Temperature(t0, i, n)
		cand, ok, st := a.Neighborhood.Sample(cur, a.Rand)
		m.addStats(st)
		accepted := false
		if ok {
			delta := cand.Solution.Cost() - cur.Cost()
			if a.Rand.Float64() <= AcceptProbability(delta, temp) {
				accepted = true
				m.Accepted++
				if delta > 0 {
					m.AcceptedWorse++
				}
				cur = cand.Solution
				if cur.Cost() < best.Cost()-ImprovementEpsilon {
					best = cur
					m.Improvements++
				}
			}
		}
		a.Observer.notify(Progress{Iteration: m.Iterations, CurrentCost: cur.Cost(), BestCost: best.Cost(), Temperature: temp, Accepted: accepted})
	}
	m.StopReason = budget.ExhaustedBy()
	if m.StopReason == "" {
		m.StopReason = StopIterations
	}
	m.BestCost = best.Cost()
	m.FinalCost = best.Cost()
	m.Elapsed = time.Since(start)
	return best, m
}
