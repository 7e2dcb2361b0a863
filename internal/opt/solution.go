package opt

import (
	"fmt"
	"strings"
)

// Solution holds one route per vehicle plus the running aggregate cost and
// the per-vehicle load counter (sum of pickup weights assigned to the
// vehicle). Every structural edit goes through a method that also applies
// the matching cost delta, so Cost always equals the recomputed cost.
type Solution struct {
	problem *Problem
	model   CostModel
	routes  []Route
	loads   []int
	cost    float64
}

// NewSolution returns an empty solution (no actions on any vehicle).
func NewSolution(p *Problem) *Solution {
	s := &Solution{
		problem: p,
		model:   NewCostModel(p),
		routes:  make([]Route, len(p.Vehicles)),
		loads:   make([]int, len(p.Vehicles)),
	}
	for v := range s.routes {
		s.routes[v] = newRoute()
	}
	return s
}

func (s *Solution) Problem() *Problem { return s.problem }

// Cost returns the incrementally maintained total cost.
func (s *Solution) Cost() float64 { return s.cost }

// Vehicles returns the number of routes.
func (s *Solution) Vehicles() int { return len(s.routes) }

// Route exposes the read-only view of vehicle v's route.
func (s *Solution) Route(v int) *Route { return &s.routes[v] }

// Load returns the sum of pickup weights assigned to vehicle v.
func (s *Solution) Load(v int) int { return s.loads[v] }

// ActionAt returns the action at position pos of vehicle v. Positions past
// the end report false.
func (s *Solution) ActionAt(v, pos int) (Action, bool) {
	if v < 0 || v >= len(s.routes) {
		return Action{}, false
	}
	idx, ok := s.routes[v].at(pos)
	if !ok {
		return Action{}, false
	}
	return s.routes[v].nodes[idx].Action, true
}

// Clone returns a deep copy sharing only the immutable problem.
func (s *Solution) Clone() *Solution {
	c := &Solution{
		problem: s.problem,
		model:   s.model,
		routes:  make([]Route, len(s.routes)),
		loads:   append([]int(nil), s.loads...),
		cost:    s.cost,
	}
	for v := range s.routes {
		c.routes[v] = s.routes[v].clone()
	}
	return c
}

// insert links a after node ref of vehicle v and applies the cost delta.
func (s *Solution) insert(v, ref int, a Action) int {
	r := &s.routes[v]
	s.cost += s.model.InsertDelta(v, r.action(ref), a, r.action(r.successor(ref)))
	if a.Pickup {
		s.loads[v] += s.problem.Tasks[a.Task].Weight
	}
	return r.insertAfter(ref, a)
}

// unlink removes node idx of vehicle v and applies the cost delta.
func (s *Solution) unlink(v, idx int) (Action, error) {
	r := &s.routes[v]
	prev, a, err := r.remove(idx)
	if err != nil {
		return Action{}, err
	}
	s.cost += s.model.RemoveDelta(v, r.action(prev), a, r.action(r.successor(prev)))
	if a.Pickup {
		s.loads[v] -= s.problem.Tasks[a.Task].Weight
	}
	return a, nil
}

// InsertAt places a so that it ends up at position pos (0 = head,
// Len = tail) of vehicle v.
func (s *Solution) InsertAt(v, pos int, a Action) error {
	if v < 0 || v >= len(s.routes) {
		return structural("insert", "vehicle %d out of range", v)
	}
	if a.Task < 0 || a.Task >= len(s.problem.Tasks) {
		return structural("insert", "task %d out of range", a.Task)
	}
	ref := none
	if pos > 0 {
		var ok bool
		if ref, ok = s.routes[v].at(pos - 1); !ok {
			return structural("insert", "position %d past end of route %d (len %d)", pos, v, s.routes[v].count)
		}
	} else if pos < 0 {
		return structural("insert", "negative position %d", pos)
	}
	s.insert(v, ref, a)
	return nil
}

// RemoveAt removes and returns the action at position pos of vehicle v.
func (s *Solution) RemoveAt(v, pos int) (Action, error) {
	if v < 0 || v >= len(s.routes) {
		return Action{}, structural("remove", "vehicle %d out of range", v)
	}
	idx, ok := s.routes[v].at(pos)
	if !ok {
		return Action{}, structural("remove", "no action at position %d of route %d", pos, v)
	}
	return s.unlink(v, idx)
}

// RemoveTask removes one half of task from vehicle v.
func (s *Solution) RemoveTask(v, task int, pickup bool) error {
	if v < 0 || v >= len(s.routes) {
		return structural("remove task", "vehicle %d out of range", v)
	}
	idx, ok := s.routes[v].find(task, pickup)
	if !ok {
		return structural("remove task", "task %d (pickup=%t) is not on vehicle %d", task, pickup, v)
	}
	_, err := s.unlink(v, idx)
	return err
}

// String renders one line per vehicle: start, actions, load and route cost.
func (s *Solution) String() string {
	var b strings.Builder
	for v := range s.routes {
		veh := s.problem.Vehicles[v]
		fmt.Fprintf(&b, "%s [%s]:", veh.ID, veh.Start)
		for _, a := range s.routes[v].Actions() {
			sign := "-"
			if a.Pickup {
				sign = "+"
			}
			fmt.Fprintf(&b, " %s%s@%s", sign, s.problem.Tasks[a.Task].ID, s.model.Location(a))
		}
		fmt.Fprintf(&b, " | load %d cost %.2f\n", s.loads[v], s.model.RouteCost(s, v))
	}
	fmt.Fprintf(&b, "total %.2f\n", s.cost)
	return b.String()
}
