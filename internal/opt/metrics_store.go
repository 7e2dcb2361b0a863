package opt

import "sync"

type key struct {
	Tenant   string
	Strategy string
}

// RunSummary aggregates the finished runs of one strategy for a tenant.
type RunSummary struct {
	Runs            int     `json:"runs"`
	TotalIterations int     `json:"totalIterations"`
	BestCost        float64 `json:"bestCost"`
	Last            Metrics `json:"last"`
}

var (
	mu    sync.Mutex
	store = map[key]RunSummary{}
)

func RecordMetrics(tenant string, m Metrics) {
	mu.Lock()
	k := key{Tenant: tenant, Strategy: m.Strategy}
	s := store[k]
	if s.Runs == 0 || m.BestCost < s.BestCost {
		s.BestCost = m.BestCost
	}
	s.Runs++
	s.TotalIterations += m.Iterations
	s.Last = m
	store[k] = s
	mu.Unlock()
}

func GetMetrics(tenant string) map[string]RunSummary {
	mu.Lock()
	defer mu.Unlock()
	out := map[string]RunSummary{}
	for k, v := range store {
		if k.Tenant == tenant {
			out[k.Strategy] = v
		}
	}
	return out
}
