package opt

import (
	"fmt"
	"math"
	"math/rand"
)

// lineNet places every location on the integer number line, so distances
// and costs stay exact.
type lineNet map[Location]int

func (n lineNet) Distance(a, b Location) float64 {
	d := n[a] - n[b]
	if d < 0 {
		d = -d
	}
	return float64(d)
}

// islandNet is a lineNet split into components; locations on different
// islands are unreachable.
type islandNet map[Location][2]int

func (n islandNet) Distance(a, b Location) float64 {
	ia, ib := n[a], n[b]
	if ia[0] != ib[0] {
		return math.Inf(1)
	}
	d := ia[1] - ib[1]
	if d < 0 {
		d = -d
	}
	return float64(d)
}

// planeNet is a Euclidean network used for randomised instances.
type planeNet map[Location][2]float64

func (n planeNet) Distance(a, b Location) float64 {
	pa, pb := n[a], n[b]
	return math.Hypot(pa[0]-pb[0], pa[1]-pb[1])
}

// randomProblem builds a reproducible instance with nv vehicles and nt tasks.
func randomProblem(seed int64, nv, nt int) *Problem {
	rng := rand.New(rand.NewSource(seed))
	net := planeNet{}
	cities := make([]Location, 12)
	for i := range cities {
		cities[i] = Location(fmt.Sprintf("c%d", i))
		net[cities[i]] = [2]float64{rng.Float64() * 100, rng.Float64() * 100}
	}
	p := &Problem{Network: net}
	for v := 0; v < nv; v++ {
		p.Vehicles = append(p.Vehicles, Vehicle{
			ID:        fmt.Sprintf("v%d", v),
			Capacity:  10 + rng.Intn(20),
			CostPerKm: 1 + float64(rng.Intn(4)),
			Start:     cities[rng.Intn(len(cities))],
		})
	}
	for t := 0; t < nt; t++ {
		p.Tasks = append(p.Tasks, Task{
			ID:       fmt.Sprintf("t%d", t),
			Pickup:   cities[rng.Intn(len(cities))],
			Delivery: cities[rng.Intn(len(cities))],
			Weight:   1 + rng.Intn(9),
		})
	}
	return p
}

// routeTasks renders a route as signed task ids, e.g. "+t0 -t0".
func routeTasks(s *Solution, v int) []string {
	var out []string
	for _, a := range s.Route(v).Actions() {
		sign := "-"
		if a.Pickup {
			sign = "+"
		}
		out = append(out, sign+s.Problem().Tasks[a.Task].ID)
	}
	return out
}
