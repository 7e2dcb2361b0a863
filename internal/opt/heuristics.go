package opt

import (
	"fmt"
)

// InitPolicy selects how tasks are laid out before the search starts.
type InitPolicy string

const (
	// InitSingle puts every task on one designated vehicle.
	InitSingle InitPolicy = "single"
	// InitPack deals tasks round-robin over the fleet in input order.
	InitPack InitPolicy = "pack"
)

// CapacityPolicy decides what happens when the vehicle chosen by the
// InitPolicy cannot carry a task.
type CapacityPolicy string

const (
	// CapacityFallback moves the task to the first vehicle that can carry it.
	CapacityFallback CapacityPolicy = "fallback"
	// CapacityStrict reports the task as unsolvable.
	CapacityStrict CapacityPolicy = "strict"
)

// InitOptions selects the initial construction policy.
type InitOptions struct {
	Policy   InitPolicy
	Capacity CapacityPolicy
	// Vehicle is the designated vehicle for InitSingle; negative selects the
	// largest-capacity vehicle (lowest index on ties).
	Vehicle int
}

// Initial builds the starting solution: each task contributes its pickup
// immediately followed by its delivery, appended in input order.
func Initial(p *Problem, o InitOptions) (*Solution, error) {
	maxCap, largest := p.maxCapacity()
	designated := largest
	if o.Vehicle >= 0 {
		if o.Vehicle >= len(p.Vehicles) {
			return nil, fmt.Errorf("%w: designated vehicle %d out of range", ErrInvalidProblem, o.Vehicle)
		}
		designated = o.Vehicle
	}
	s := NewSolution(p)
	tails := make([]int, len(p.Vehicles))
	for v := range tails {
		tails[v] = none
	}
	for t, task := range p.Tasks {
		if task.Weight > maxCap {
			return nil, &UnsolvableError{TaskID: task.ID, Weight: task.Weight, MaxCapacity: maxCap}
		}
		var v int
		switch o.Policy {
		case InitPack:
			v = t % len(p.Vehicles)
		case InitSingle, "":
			v = designated
		default:
			return nil, fmt.Errorf("%w: unknown init policy %q", ErrInvalidProblem, o.Policy)
		}
		if p.Vehicles[v].Capacity < task.Weight {
			if o.Capacity == CapacityStrict {
				return nil, &UnsolvableError{TaskID: task.ID, Weight: task.Weight, MaxCapacity: p.Vehicles[v].Capacity}
			}
			v = firstFit(p, task.Weight)
		}
		tails[v] = s.insert(v, tails[v], Action{Task: t, Pickup: true})
		tails[v] = s.insert(v, tails[v], Action{Task: t})
	}
	return s, nil
}

func firstFit(p *Problem, weight int) int {
	for v, veh := range p.Vehicles {
		if veh.Capacity >= weight {
			return v
		}
	}
	return none
}
