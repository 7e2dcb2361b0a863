package opt

import (
	"log/slog"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// MoveKind identifies a neighborhood operator family.
type MoveKind uint8

const (
	// Reorder swaps two actions on the same route.
	Reorder MoveKind = iota
	// Relocate moves one task from a source vehicle to the head of another.
	Relocate
)

func (k MoveKind) String() string {
	switch k {
	case Reorder:
		return "reorder"
	case Relocate:
		return "relocate"
	}
	return "unknown"
}

// Move is a replayable neighborhood step.
type Move struct {
	Kind    MoveKind
	Vehicle int // reordered route, or relocation source
	Target  int // relocation destination
	A, B    int // reorder positions, A < B
	Task    int // relocated task
}

// Apply replays m on s in place.
func (m Move) Apply(s *Solution) error {
	switch m.Kind {
	case Reorder:
		return s.swap(m.Vehicle, m.A, m.B)
	case Relocate:
		return s.relocate(m.Vehicle, m.Target, m.Task)
	}
	return structural("apply", "unknown move kind %d", m.Kind)
}

// swap exchanges the actions at positions a < b of vehicle v: the action at
// b is spliced in after a, then a is spliced in where b used to be.
func (s *Solution) swap(v, a, b int) error {
	if v < 0 || v >= len(s.routes) {
		return structural("reorder", "vehicle %d out of range", v)
	}
	if n := s.routes[v].count; a < 0 || b <= a || b >= n {
		return structural("reorder", "positions %d,%d invalid for route of length %d", a, b, n)
	}
	if b == a+1 {
		first, err := s.RemoveAt(v, a)
		if err != nil {
			return err
		}
		return s.InsertAt(v, b, first)
	}
	second, err := s.RemoveAt(v, b)
	if err != nil {
		return err
	}
	if err := s.InsertAt(v, a+1, second); err != nil {
		return err
	}
	first, err := s.RemoveAt(v, a)
	if err != nil {
		return err
	}
	return s.InsertAt(v, b, first)
}

// relocate moves both halves of task from src to the head of dst, pickup first.
func (s *Solution) relocate(src, dst, task int) error {
	if src == dst {
		return structural("relocate", "source and destination are both vehicle %d", src)
	}
	if dst < 0 || dst >= len(s.routes) {
		return structural("relocate", "vehicle %d out of range", dst)
	}
	if err := s.RemoveTask(src, task, true); err != nil {
		return err
	}
	if err := s.RemoveTask(src, task, false); err != nil {
		return err
	}
	if err := s.InsertAt(dst, 0, Action{Task: task}); err != nil {
		return err
	}
	return s.InsertAt(dst, 0, Action{Task: task, Pickup: true})
}

// Candidate is a feasible neighbor together with the move that produced it.
type Candidate struct {
	Move     Move
	Solution *Solution
}

// Stats counts candidate verdicts.
type Stats struct {
	Evaluated  int
	Infeasible int
	Structural int
}

func (st *Stats) add(o Stats) {
	st.Evaluated += o.Evaluated
	st.Infeasible += o.Infeasible
	st.Structural += o.Structural
}

type verdict uint8

const (
	feasible verdict = iota
	infeasible
	broken
)

func (st *Stats) count(v verdict) {
	st.Evaluated++
	switch v {
	case infeasible:
		st.Infeasible++
	case broken:
		st.Structural++
	}
}

// maxSampleAttempts bounds the draws Sample makes before giving up.
const maxSampleAttempts = 64

// Neighborhood generates feasible neighbors of a solution. With Workers > 1
// the exhaustive neighborhood is evaluated concurrently, each move on its own
// clone; results are merged in enumeration order.
type Neighborhood struct {
	Workers int
	Logger  *slog.Logger
}

func (n *Neighborhood) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

// Moves enumerates the exhaustive neighborhood: every (vehicle, a<b)
// reorder, then for every ordered (source, destination) pair with a
// non-empty source, the relocation of the task at the head of the source.
func (n *Neighborhood) Moves(s *Solution) []Move {
	var moves []Move
	for v := range s.routes {
		size := s.routes[v].count
		for a := 0; a < size; a++ {
			for b := a + 1; b < size; b++ {
				moves = append(moves, Move{Kind: Reorder, Vehicle: v, A: a, B: b})
			}
		}
	}
	for src := range s.routes {
		head, ok := s.ActionAt(src, 0)
		if !ok {
			continue
		}
		for dst := range s.routes {
			if dst == src {
				continue
			}
			moves = append(moves, Move{Kind: Relocate, Vehicle: src, Target: dst, Task: head.Task})
		}
	}
	return moves
}

func (n *Neighborhood) evaluate(s *Solution, m Move) (Candidate, verdict) {
	c := s.Clone()
	if err := m.Apply(c); err != nil {
		n.logger().Debug("candidate discarded", "move", m.Kind.String(), "vehicle", m.Vehicle, "err", err)
		return Candidate{}, broken
	}
	// A leg between disconnected locations has no finite cost.
	if !finite(c.cost) || !Feasible(c) {
		return Candidate{}, infeasible
	}
	return Candidate{Move: m, Solution: c}, feasible
}

// Exhaustive evaluates every move of s and returns the feasible candidates in
// enumeration order.
func (n *Neighborhood) Exhaustive(s *Solution) ([]Candidate, Stats) {
	moves := n.Moves(s)
	cands := make([]Candidate, len(moves))
	verdicts := make([]verdict, len(moves))
	if n.Workers > 1 && len(moves) > 1 {
		var g errgroup.Group
		g.SetLimit(n.Workers)
		for i, m := range moves {
			g.Go(func() error {
				cands[i], verdicts[i] = n.evaluate(s, m)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, m := range moves {
			cands[i], verdicts[i] = n.evaluate(s, m)
		}
	}
	var st Stats
	out := cands[:0]
	for i := range moves {
		st.count(verdicts[i])
		if verdicts[i] == feasible {
			out = append(out, cands[i])
		}
	}
	return out, st
}

// Best returns the cheapest feasible neighbor of s. Ties go to the candidate
// enumerated first.
func (n *Neighborhood) Best(s *Solution) (Candidate, bool, Stats) {
	cands, st := n.Exhaustive(s)
	if len(cands) == 0 {
		return Candidate{}, false, st
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Solution.Cost() < best.Solution.Cost() {
			best = c
		}
	}
	return best, true, st
}

// Sample draws one feasible neighbor of s. The operator family is chosen
// uniformly; infeasible and malformed draws are retried up to
// maxSampleAttempts times.
func (n *Neighborhood) Sample(s *Solution, rng *rand.Rand) (Candidate, bool, Stats) {
	var st Stats
	for attempt := 0; attempt < maxSampleAttempts; attempt++ {
		var (
			m  Move
			ok bool
		)
		if rng.Intn(2) == 0 {
			m, ok = drawReorder(s, rng)
		} else {
			m, ok = drawRelocate(s, rng)
		}
		if !ok {
			continue
		}
		c, v := n.evaluate(s, m)
		st.count(v)
		if v == feasible {
			return c, true, st
		}
	}
	return Candidate{}, false, st
}

// drawReorder picks a uniform vehicle and two distinct uniform positions.
// Routes with fewer than four actions are rejected.
func drawReorder(s *Solution, rng *rand.Rand) (Move, bool) {
	v := rng.Intn(len(s.routes))
	size := s.routes[v].count
	if size < 4 {
		return Move{}, false
	}
	a := rng.Intn(size)
	b := rng.Intn(size - 1)
	if b >= a {
		b++
	}
	if a > b {
		a, b = b, a
	}
	return Move{Kind: Reorder, Vehicle: v, A: a, B: b}, true
}

// drawRelocate picks a source with at least one task, a different
// destination, and the task of a uniform action on the source.
func drawRelocate(s *Solution, rng *rand.Rand) (Move, bool) {
	vs := len(s.routes)
	if vs < 2 {
		return Move{}, false
	}
	src := rng.Intn(vs)
	size := s.routes[src].count
	if size < 2 {
		return Move{}, false
	}
	dst := rng.Intn(vs - 1)
	if dst >= src {
		dst++
	}
	a, ok := s.ActionAt(src, rng.Intn(size))
	if !ok {
		return Move{}, false
	}
	return Move{Kind: Relocate, Vehicle: src, Target: dst, Task: a.Task}, true
}
