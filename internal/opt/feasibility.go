package opt

import (
	"fmt"
	"math"
)

// Feasible reports whether every route respects pickup-before-delivery and
// vehicle capacity. Each route is traversed once with a set of outstanding
// pickups and a running load.
func Feasible(s *Solution) bool {
	open := make([]bool, len(s.problem.Tasks))
	for v := range s.routes {
		if !routeFeasible(s, v, open) {
			return false
		}
	}
	return true
}

// routeFeasible expects open to be all false and leaves it that way.
func routeFeasible(s *Solution, v int, open []bool) bool {
	r := &s.routes[v]
	capacity := s.problem.Vehicles[v].Capacity
	load := 0
	ok := true
	for i := r.head; i != none && ok; i = r.nodes[i].next {
		a := r.nodes[i].Action
		w := s.problem.Tasks[a.Task].Weight
		switch {
		case a.Pickup && open[a.Task]:
			ok = false
		case a.Pickup:
			open[a.Task] = true
			load += w
			ok = load <= capacity
		case !open[a.Task]:
			ok = false
		default:
			open[a.Task] = false
			load -= w
		}
	}
	for i := r.head; i != none; i = r.nodes[i].next {
		if open[r.nodes[i].Task] {
			ok = false
			open[r.nodes[i].Task] = false
		}
	}
	return ok
}

// costTolerance bounds drift between the incremental and recomputed cost.
const costTolerance = 1e-6

// Verify checks every solution invariant: each task appears exactly once
// (pickup and delivery on the same vehicle), routes are feasible, load
// counters match the assigned tasks, and the incremental cost is finite and
// matches a from-scratch recomputation. Violations wrap ErrStructural.
func Verify(s *Solution) error {
	p := s.problem
	if !finite(s.cost) {
		return structural("verify", "non-finite cost %v", s.cost)
	}
	owner := make([]int, len(p.Tasks))
	for i := range owner {
		owner[i] = none
	}
	seen := make([][2]bool, len(p.Tasks))
	for v := range s.routes {
		load := 0
		for _, a := range s.routes[v].Actions() {
			half := 1
			if a.Pickup {
				half = 0
				load += p.Tasks[a.Task].Weight
			}
			if seen[a.Task][half] {
				return structural("verify", "task %s appears twice", p.Tasks[a.Task].ID)
			}
			seen[a.Task][half] = true
			if owner[a.Task] != none && owner[a.Task] != v {
				return structural("verify", "task %s split across vehicles %s and %s", p.Tasks[a.Task].ID, p.Vehicles[owner[a.Task]].ID, p.Vehicles[v].ID)
			}
			owner[a.Task] = v
		}
		if load != s.loads[v] {
			return structural("verify", "vehicle %s load counter %d, assigned %d", p.Vehicles[v].ID, s.loads[v], load)
		}
	}
	for t := range p.Tasks {
		if !seen[t][0] || !seen[t][1] {
			return structural("verify", "task %s is not fully assigned", p.Tasks[t].ID)
		}
	}
	if !Feasible(s) {
		return structural("verify", "%s", "a route violates precedence or capacity")
	}
	want := s.model.TotalCost(s)
	if math.Abs(want-s.cost) > costTolerance*math.Max(1, math.Abs(want)) {
		return fmt.Errorf("%w: incremental cost %.9f differs from recomputed %.9f", ErrStructural, s.cost, want)
	}
	return nil
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
