// Package plan turns a solution into per-vehicle step lists: the cities
// driven through, plus pickup and delivery markers.
package plan

import (
	"pdproute/internal/model"
	"pdproute/internal/opt"
)

// PathFinder is a network that can also list the cities along a shortest path.
type PathFinder interface {
	opt.Network
	PathTo(from, to opt.Location) []opt.Location
}

// Build materialises every route of s, in vehicle order.
func Build(s *opt.Solution, pf PathFinder) []model.VehiclePlan {
	p := s.Problem()
	cm := opt.NewCostModel(p)
	plans := make([]model.VehiclePlan, 0, s.Vehicles())
	for v := 0; v < s.Vehicles(); v++ {
		veh := p.Vehicles[v]
		vp := model.VehiclePlan{
			VehicleID: veh.ID,
			Start:     string(veh.Start),
			Steps:     []model.PlanStep{},
			Load:      s.Load(v),
		}
		at := veh.Start
		for _, a := range s.Route(v).Actions() {
			loc := cm.Location(a)
			for _, c := range pf.PathTo(at, loc) {
				vp.Steps = append(vp.Steps, model.PlanStep{Kind: model.StepMove, City: string(c)})
			}
			vp.Distance += pf.Distance(at, loc)
			at = loc
			kind := model.StepDeliver
			if a.Pickup {
				kind = model.StepPickup
			}
			vp.Steps = append(vp.Steps, model.PlanStep{Kind: kind, City: string(loc), TaskID: p.Tasks[a.Task].ID})
		}
		vp.Cost = vp.Distance * veh.CostPerKm
		plans = append(plans, vp)
	}
	return plans
}
