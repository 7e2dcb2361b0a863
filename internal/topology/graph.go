// Package topology models the road network: cities, roads, shortest-path
// distances and the hop-by-hop path between any two cities.
package topology

import (
	"container/heap"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"pdproute/internal/opt"
)

// ErrInvalidNetwork wraps malformed city or road definitions.
var ErrInvalidNetwork = errors.New("invalid network")

type City struct {
	Name string  `json:"name" yaml:"name"`
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
}

// Road is an undirected edge. A zero Distance means the straight-line
// length between the two cities.
type Road struct {
	From     string  `json:"from" yaml:"from"`
	To       string  `json:"to" yaml:"to"`
	Distance float64 `json:"distance,omitempty" yaml:"distance,omitempty"`
}

// Matrix is the all-pairs result: Dist[i][j] is the shortest distance (-1
// when unreachable) and Next[i][j] the first hop from i toward j (-1 when
// unreachable or i == j).
type Matrix struct {
	Names []string    `json:"names"`
	Dist  [][]float64 `json:"dist"`
	Next  [][]int     `json:"next"`
}

func (m *Matrix) valid(n int) bool {
	if m == nil || len(m.Names) != n || len(m.Dist) != n || len(m.Next) != n {
		return false
	}
	for i := range m.Dist {
		if len(m.Dist[i]) != n || len(m.Next[i]) != n {
			return false
		}
	}
	return true
}

// Graph answers distance and path queries; it implements opt.Network.
type Graph struct {
	m           *Matrix
	index       map[opt.Location]int
	fingerprint string
}

// Build computes the shortest-path matrix for the network, consulting cache
// first when one is given. Cache failures are logged and otherwise ignored.
func Build(ctx context.Context, cities []City, roads []Road, cache MatrixCache) (*Graph, error) {
	fp := Fingerprint(cities, roads)
	if cache != nil {
		m, ok, err := cache.Get(ctx, fp)
		switch {
		case err != nil:
			slog.Warn("distance matrix cache read failed", "fingerprint", fp, "err", err)
		case ok && m.valid(len(cities)):
			return newGraph(m, fp), nil
		}
	}
	m, err := compute(cities, roads)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		if err := cache.Put(ctx, fp, m); err != nil {
			slog.Warn("distance matrix cache write failed", "fingerprint", fp, "err", err)
		}
	}
	return newGraph(m, fp), nil
}

func newGraph(m *Matrix, fp string) *Graph {
	idx := make(map[opt.Location]int, len(m.Names))
	for i, n := range m.Names {
		idx[opt.Location(n)] = i
	}
	return &Graph{m: m, index: idx, fingerprint: fp}
}

// Fingerprint identifies a network definition.
func Fingerprint(cities []City, roads []Road) string {
	b, _ := json.Marshal(struct {
		C []City `json:"c"`
		R []Road `json:"r"`
	}{cities, roads})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:16])
}

func (g *Graph) Fingerprint() string { return g.fingerprint }

// Contains reports whether name is a known city.
func (g *Graph) Contains(name opt.Location) bool {
	_, ok := g.index[name]
	return ok
}

// Distance returns the shortest-path distance, or +Inf for unknown or
// disconnected cities.
func (g *Graph) Distance(from, to opt.Location) float64 {
	i, ok := g.index[from]
	if !ok {
		return math.Inf(1)
	}
	j, ok := g.index[to]
	if !ok {
		return math.Inf(1)
	}
	if d := g.m.Dist[i][j]; d >= 0 {
		return d
	}
	return math.Inf(1)
}

// Reachable reports whether a path exists between the two cities.
func (g *Graph) Reachable(from, to opt.Location) bool {
	return !math.IsInf(g.Distance(from, to), 1)
}

// PathTo lists the cities visited after leaving from, ending with to. It is
// empty when from == to and nil when no path exists.
func (g *Graph) PathTo(from, to opt.Location) []opt.Location {
	i, ok := g.index[from]
	if !ok {
		return nil
	}
	j, ok := g.index[to]
	if !ok {
		return nil
	}
	if i == j {
		return []opt.Location{}
	}
	var path []opt.Location
	for cur := i; cur != j; {
		cur = g.m.Next[cur][j]
		if cur < 0 {
			return nil
		}
		path = append(path, opt.Location(g.m.Names[cur]))
	}
	return path
}

type edge struct {
	to int
	w  float64
}

func compute(cities []City, roads []Road) (*Matrix, error) {
	n := len(cities)
	index := make(map[string]int, n)
	names := make([]string, n)
	for i, c := range cities {
		if c.Name == "" {
			return nil, fmt.Errorf("%w: city %d has no name", ErrInvalidNetwork, i)
		}
		if _, dup := index[c.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate city %q", ErrInvalidNetwork, c.Name)
		}
		index[c.Name] = i
		names[i] = c.Name
	}
	adj := make([][]edge, n)
	if len(roads) == 0 {
		for i := range cities {
			for j := range cities {
				if i != j {
					adj[i] = append(adj[i], edge{to: j, w: euclid(cities[i], cities[j])})
				}
			}
		}
	}
	for _, r := range roads {
		a, ok := index[r.From]
		if !ok {
			return nil, fmt.Errorf("%w: road references unknown city %q", ErrInvalidNetwork, r.From)
		}
		b, ok := index[r.To]
		if !ok {
			return nil, fmt.Errorf("%w: road references unknown city %q", ErrInvalidNetwork, r.To)
		}
		w := r.Distance
		if w < 0 {
			return nil, fmt.Errorf("%w: road %s-%s has negative length", ErrInvalidNetwork, r.From, r.To)
		}
		if w == 0 {
			w = euclid(cities[a], cities[b])
		}
		adj[a] = append(adj[a], edge{to: b, w: w})
		adj[b] = append(adj[b], edge{to: a, w: w})
	}
	m := &Matrix{Names: names, Dist: make([][]float64, n), Next: make([][]int, n)}
	for s := 0; s < n; s++ {
		m.Dist[s], m.Next[s] = dijkstra(adj, s)
	}
	return m, nil
}

func euclid(a, b City) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }

// dijkstra returns distances from s (-1 when unreachable) and the first hop
// on a shortest path from s to every city.
func dijkstra(adj [][]edge, s int) ([]float64, []int) {
	n := len(adj)
	dist := make([]float64, n)
	first := make([]int, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		first[i] = -1
	}
	dist[s] = 0
	pq := &queue{{node: s}}
	for pq.Len() > 0 {
		it := heap.Pop(pq).(item)
		if it.dist > dist[it.node] {
			continue
		}
		for _, e := range adj[it.node] {
			nd := it.dist + e.w
			if nd < dist[e.to] {
				dist[e.to] = nd
				if it.node == s {
					first[e.to] = e.to
				} else {
					first[e.to] = first[it.node]
				}
				heap.Push(pq, item{node: e.to, dist: nd})
			}
		}
	}
	for i := range dist {
		if math.IsInf(dist[i], 1) {
			dist[i] = -1
		}
	}
	return dist, first
}

type item struct {
	node int
	dist float64
}

type queue []item

func (q queue) Len() int           { return len(q) }
func (q queue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q queue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *queue) Push(x any)        { *q = append(*q, x.(item)) }
func (q *queue) Pop() any {
	old := *q
	it := old[len(old)-1]
	*q = old[:len(old)-1]
	return it
}
