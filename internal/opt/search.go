package opt

import (
	"context"
	"time"
)

// Strategy names accepted by NewStrategy.
const (
	StrategySteepest = "steepest"
	StrategyAnneal   = "anneal"
)

// ImprovementEpsilon is the margin by which a neighbor must undercut the
// current cost to count as strictly cheaper.
const ImprovementEpsilon = 1e-9

// Strategy is an improvement loop over a Neighborhood. Search never returns a
// solution costlier than the best it has seen.
type Strategy interface {
	Name() string
	Search(ctx context.Context, init *Solution, budget *Budget) (*Solution, Metrics)
}

// Progress is reported to an Observer after every iteration.
type Progress struct {
	Iteration   int     `json:"iteration"`
	CurrentCost float64 `json:"currentCost"`
	BestCost    float64 `json:"bestCost"`
	Temperature float64 `json:"temperature,omitempty"`
	Accepted    bool    `json:"accepted"`
}

// Observer receives search progress. It runs on the search goroutine.
type Observer func(Progress)

func (o Observer) notify(p Progress) {
	if o != nil {
		o(p)
	}
}

// Metrics summarises one search run.
type Metrics struct {
	Strategy      string        `json:"strategy"`
	Seed          int64         `json:"seed"`
	Iterations    int           `json:"iterations"`
	Accepted      int           `json:"accepted"`
	Improvements  int           `json:"improvements"`
	AcceptedWorse int           `json:"acceptedWorse"`
	Candidates    int           `json:"candidates"`
	Infeasible    int           `json:"infeasible"`
	Structural    int           `json:"structural"`
	InitialCost   float64       `json:"initialCost"`
	BestCost      float64       `json:"bestCost"`
	FinalCost     float64       `json:"finalCost"`
	StopReason    string        `json:"stopReason"`
	Elapsed       time.Duration `json:"elapsedNs"`
}

func (m *Metrics) addStats(st Stats) {
	m.Candidates += st.Evaluated
	m.Infeasible += st.Infeasible
	m.Structural += st.Structural
}

// SteepestDescent moves to the cheapest feasible neighbor while it is
// strictly cheaper than the current solution.
type SteepestDescent struct {
	Neighborhood *Neighborhood
	Observer     Observer
}

func (d *SteepestDescent) Name() string { return StrategySteepest }

func (d *SteepestDescent) Search(ctx context.Context, init *Solution, budget *Budget) (*Solution, Metrics) {
	start := time.Now()
	m := Metrics{Strategy: d.Name(), InitialCost: init.Cost()}
	cur := init
	for budget.Next(ctx) {
		m.Iterations++
		best, ok, st := d.Neighborhood.Best(cur)
		m.addStats(st)
		if !ok || best.Solution.Cost() >= cur.Cost()-ImprovementEpsilon {
			m.StopReason = StopConverged
			d.Observer.notify(Progress{Iteration: m.Iterations, CurrentCost: cur.Cost(), BestCost: cur.Cost()})
			break
		}
		cur = best.Solution
		m.Accepted++
		m.Improvements++
		d.Observer.notify(Progress{Iteration: m.Iterations, CurrentCost: cur.Cost(), BestCost: cur.Cost(), Accepted: true})
	}
	if m.StopReason == "" {
		m.StopReason = budget.ExhaustedBy()
	}
	m.BestCost = cur.Cost()
	m.FinalCost = cur.Cost()
	m.Elapsed = time.Since(start)
	return cur, m
}
