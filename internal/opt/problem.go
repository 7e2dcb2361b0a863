package opt

import (
	"fmt"
)

// Location is an opaque city identifier resolved by the Network.
type Location string

// Network answers distance queries between locations. Implementations must
// return non-negative values.
type Network interface {
	Distance(from, to Location) float64
}

// Task is a transport order: carry Weight from Pickup to Delivery.
type Task struct {
	ID       string
	Pickup   Location
	Delivery Location
	Weight   int
}

// Vehicle is one fleet member; it starts at Start and pays CostPerKm per unit distance.
type Vehicle struct {
	ID        string
	Capacity  int
	CostPerKm float64
	Start     Location
}

// Problem is the immutable input of a solve. Solutions keep a pointer to it.
type Problem struct {
	Vehicles []Vehicle
	Tasks    []Task
	Network  Network
}

// Validate checks the structural preconditions of a problem. Capacity
// shortfalls are reported later by initial construction as ErrUnsolvable.
func (p *Problem) Validate() error {
	if p.Network == nil {
		return fmt.Errorf("%w: network is required", ErrInvalidProblem)
	}
	if len(p.Vehicles) == 0 {
		return fmt.Errorf("%w: at least one vehicle is required", ErrInvalidProblem)
	}
	vids := make(map[string]struct{}, len(p.Vehicles))
	for i, v := range p.Vehicles {
		if v.ID == "" {
			return fmt.Errorf("%w: vehicle %d has no id", ErrInvalidProblem, i)
		}
		if _, dup := vids[v.ID]; dup {
			return fmt.Errorf("%w: duplicate vehicle id %q", ErrInvalidProblem, v.ID)
		}
		vids[v.ID] = struct{}{}
		if v.Capacity < 0 {
			return fmt.Errorf("%w: vehicle %q has negative capacity", ErrInvalidProblem, v.ID)
		}
		if v.CostPerKm < 0 {
			return fmt.Errorf("%w: vehicle %q has negative cost rate", ErrInvalidProblem, v.ID)
		}
	}
	tids := make(map[string]struct{}, len(p.Tasks))
	for i, t := range p.Tasks {
		if t.ID == "" {
			return fmt.Errorf("%w: task %d has no id", ErrInvalidProblem, i)
		}
		if _, dup := tids[t.ID]; dup {
			return fmt.Errorf("%w: duplicate task id %q", ErrInvalidProblem, t.ID)
		}
		tids[t.ID] = struct{}{}
		if t.Weight <= 0 {
			return fmt.Errorf("%w: task %q must have a positive weight", ErrInvalidProblem, t.ID)
		}
	}
	return nil
}

// maxCapacity returns the largest vehicle capacity and the index of the
// first vehicle that has it.
func (p *Problem) maxCapacity() (int, int) {
	best, idx := -1, -1
	for i, v := range p.Vehicles {
		if v.Capacity > best {
			best, idx = v.Capacity, i
		}
	}
	return best, idx
}
