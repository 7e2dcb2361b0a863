package plan

import (
	"context"
	"fmt"

	"pdproute/internal/model"
	"pdproute/internal/opt"
	"pdproute/internal/topology"
)

// Problem builds the road graph of req and the solver problem over it.
// Every referenced city must exist, and every vehicle start, pickup and
// delivery must be mutually reachable. Failures wrap opt.ErrInvalidProblem.
func Problem(ctx context.Context, req model.SolveRequest, cache topology.MatrixCache) (*opt.Problem, *topology.Graph, error) {
	cities := make([]topology.City, len(req.Network.Cities))
	for i, c := range req.Network.Cities {
		cities[i] = topology.City{Name: c.Name, X: c.X, Y: c.Y}
	}
	roads := make([]topology.Road, len(req.Network.Roads))
	for i, r := range req.Network.Roads {
		roads[i] = topology.Road{From: r.From, To: r.To, Distance: r.Distance}
	}
	g, err := topology.Build(ctx, cities, roads, cache)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", opt.ErrInvalidProblem, err)
	}

	p := &opt.Problem{Network: g}
	for _, v := range req.Vehicles {
		if !g.Contains(opt.Location(v.Start)) {
			return nil, nil, fmt.Errorf("%w: vehicle %q starts at unknown city %q", opt.ErrInvalidProblem, v.ID, v.Start)
		}
		p.Vehicles = append(p.Vehicles, opt.Vehicle{ID: v.ID, Capacity: v.Capacity, CostPerKm: v.CostPerKm, Start: opt.Location(v.Start)})
	}
	for _, t := range req.Tasks {
		for _, c := range []string{t.Pickup, t.Delivery} {
			if !g.Contains(opt.Location(c)) {
				return nil, nil, fmt.Errorf("%w: task %q references unknown city %q", opt.ErrInvalidProblem, t.ID, c)
			}
		}
		if !g.Reachable(opt.Location(t.Pickup), opt.Location(t.Delivery)) {
			return nil, nil, fmt.Errorf("%w: task %q delivery %q is unreachable from pickup %q", opt.ErrInvalidProblem, t.ID, t.Delivery, t.Pickup)
		}
		p.Tasks = append(p.Tasks, opt.Task{ID: t.ID, Pickup: opt.Location(t.Pickup), Delivery: opt.Location(t.Delivery), Weight: t.Weight})
	}
	if err := connected(g, p); err != nil {
		return nil, nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	return p, g, nil
}

// connected checks that every location the problem uses reaches, and is
// reached from, the first vehicle start. Route costs across disconnected
// components are infinite.
func connected(g *topology.Graph, p *opt.Problem) error {
	if len(p.Vehicles) == 0 {
		return nil
	}
	root := p.Vehicles[0].Start
	check := func(what string, loc opt.Location) error {
		if !g.Reachable(root, loc) || !g.Reachable(loc, root) {
			return fmt.Errorf("%w: %s %q is not connected to %q", opt.ErrInvalidProblem, what, loc, root)
		}
		return nil
	}
	for _, v := range p.Vehicles[1:] {
		if err := check("start of vehicle "+v.ID, v.Start); err != nil {
			return err
		}
	}
	for _, t := range p.Tasks {
		if err := check("pickup of task "+t.ID, t.Pickup); err != nil {
			return err
		}
		if err := check("delivery of task "+t.ID, t.Delivery); err != nil {
			return err
		}
	}
	return nil
}
