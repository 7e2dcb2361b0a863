package store

import (
	"context"
	"errors"

	"pdproute/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Runs
	SaveRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, tenantID, id string) (model.Run, error)
	// ListRuns returns runs newest first without their plans.
	ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.Run, string, error)

	// Solver config per tenant
	GetSolverConfig(ctx context.Context, tenantID string) (map[string]any, error)
	SaveSolverConfig(ctx context.Context, tenantID string, cfg map[string]any) error

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
