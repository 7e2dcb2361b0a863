package store

import (
	"context"
	"sort"
	"sync"

	"pdproute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu        sync.Mutex
	runs      map[string]model.Run      // id -> run
	byTen     map[string][]string       // tenant -> run ids
	solverCfg map[string]map[string]any // tenant -> config
}

func NewMemory() *Memory {
	return &Memory{
		runs:      map[string]model.Run{},
		byTen:     map[string][]string{},
		solverCfg: map[string]map[string]any{},
	}
}

func (m *Memory) SaveRun(ctx context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		m.byTen[run.TenantID] = append(m.byTen[run.TenantID], run.ID)
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetRun(ctx context.Context, tenantID, id string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok || run.TenantID != tenantID {
		return model.Run{}, ErrNotFound
	}
	return run, nil
}

// ListRuns pages by id; ids are time-ordered so descending id is newest first.
func (m *Memory) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.Run, string, error) {
	limit = clampLimit(limit)
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append([]string(nil), m.byTen[tenantID]...)
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	out := []model.Run{}
	for _, id := range ids {
		if cursor != "" && id >= cursor {
			continue
		}
		if len(out) == limit {
			return out, out[len(out)-1].ID, nil
		}
		run := m.runs[id]
		run.Plans = nil
		out = append(out, run)
	}
	return out, "", nil
}

func (m *Memory) GetSolverConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.solverCfg[tenantID]; ok {
		return cfg, nil
	}
	return nil, nil
}

func (m *Memory) SaveSolverConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.solverCfg[tenantID] = cfg
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
