package opt

// CostModel prices route edits incrementally. Only the edges touching the
// edited action change, so every delta is O(1) distance lookups.
type CostModel struct {
	problem *Problem
}

func NewCostModel(p *Problem) CostModel { return CostModel{problem: p} }

// Location returns where an action takes place.
func (m CostModel) Location(a Action) Location {
	t := m.problem.Tasks[a.Task]
	if a.Pickup {
		return t.Pickup
	}
	return t.Delivery
}

// InsertDelta is the cost change of placing a between prev and next on
// vehicle v. A nil prev stands for the vehicle start; a nil next means a is
// appended at the tail.
func (m CostModel) InsertDelta(v int, prev *Action, a Action, next *Action) float64 {
	veh := m.problem.Vehicles[v]
	net := m.problem.Network
	from := veh.Start
	if prev != nil {
		from = m.Location(*prev)
	}
	at := m.Location(a)
	d := net.Distance(from, at)
	if next != nil {
		to := m.Location(*next)
		d += net.Distance(at, to) - net.Distance(from, to)
	}
	return veh.CostPerKm * d
}

// RemoveDelta is the exact inverse of InsertDelta.
func (m CostModel) RemoveDelta(v int, prev *Action, a Action, next *Action) float64 {
	return -m.InsertDelta(v, prev, a, next)
}

// RouteCost recomputes the cost of one route from scratch.
func (m CostModel) RouteCost(s *Solution, v int) float64 {
	veh := m.problem.Vehicles[v]
	r := &s.routes[v]
	at := veh.Start
	dist := 0.0
	for i := r.head; i != none; i = r.nodes[i].next {
		loc := m.Location(r.nodes[i].Action)
		dist += m.problem.Network.Distance(at, loc)
		at = loc
	}
	return veh.CostPerKm * dist
}

// TotalCost recomputes the aggregate cost of s from scratch.
func (m CostModel) TotalCost(s *Solution) float64 {
	total := 0.0
	for v := range s.routes {
		total += m.RouteCost(s, v)
	}
	return total
}
