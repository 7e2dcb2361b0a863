package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pdproute/internal/model"
)

//go:embed schema.sql
var schema string

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// Migrate creates the tables if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// SaveRun upserts a run by id.
func (p *Postgres) SaveRun(ctx context.Context, run model.Run) error {
	plans, err := jsonOrNull(run.Plans)
	if err != nil {
		return fmt.Errorf("save run: encode plans: %w", err)
	}
	metrics, err := jsonOrNull(run.Metrics)
	if err != nil {
		return fmt.Errorf("save run: encode metrics: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO solve_runs
        (id, tenant_id, status, strategy, vehicles, tasks, initial_cost, cost, plans, metrics, error, created_at, finished_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''),$12,$13)
        ON CONFLICT (id) DO UPDATE SET status=$3, strategy=$4, initial_cost=$7, cost=$8, plans=$9, metrics=$10, error=NULLIF($11,''), finished_at=$13`,
		run.ID, run.TenantID, run.Status, run.Strategy, run.Vehicles, run.Tasks, run.InitialCost, run.Cost,
		plans, metrics, run.Error, run.CreatedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	return nil
}

const runColumns = `id::text, tenant_id, status, strategy, vehicles, tasks, initial_cost, cost, metrics, COALESCE(error,''), created_at, finished_at`

type scanner interface{ Scan(dest ...any) error }

func scanRun(row scanner, extra ...any) (model.Run, error) {
	var (
		run      model.Run
		metrics  []byte
		finished sql.NullTime
	)
	dest := []any{&run.ID, &run.TenantID, &run.Status, &run.Strategy, &run.Vehicles, &run.Tasks,
		&run.InitialCost, &run.Cost, &metrics, &run.Error, &run.CreatedAt, &finished}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.Run{}, err
	}
	if len(metrics) > 0 {
		run.Metrics = &model.RunMetrics{}
		if err := json.Unmarshal(metrics, run.Metrics); err != nil {
			return model.Run{}, fmt.Errorf("decode metrics: %w", err)
		}
	}
	if finished.Valid {
		t := finished.Time
		run.FinishedAt = &t
	}
	return run, nil
}

func (p *Postgres) GetRun(ctx context.Context, tenantID, id string) (model.Run, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+`, plans FROM solve_runs WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
	var plans []byte
	run, err := scanRun(row, &plans)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	if err != nil {
		return model.Run{}, fmt.Errorf("get run: %w", err)
	}
	if len(plans) > 0 {
		if err := json.Unmarshal(plans, &run.Plans); err != nil {
			return model.Run{}, fmt.Errorf("get run: decode plans: %w", err)
		}
	}
	return run, nil
}

func (p *Postgres) ListRuns(ctx context.Context, tenantID, cursor string, limit int) ([]model.Run, string, error) {
	limit = clampLimit(limit)
	var (
		rows *sql.Rows
		err  error
	)
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM solve_runs WHERE tenant_id=$1 AND id::text < $2 ORDER BY id DESC LIMIT $3`, tenantID, cursor, limit+1)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+runColumns+` FROM solve_runs WHERE tenant_id=$1 ORDER BY id DESC LIMIT $2`, tenantID, limit+1)
	}
	if err != nil {
		return nil, "", fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	out := []model.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, "", fmt.Errorf("list runs: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("list runs: %w", err)
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].ID
	}
	return out, next, nil
}

func (p *Postgres) GetSolverConfig(ctx context.Context, tenantID string) (map[string]any, error) {
	row := p.db.QueryRowContext(ctx, `SELECT config FROM solver_config WHERE tenant_id=$1`, tenantID)
	var js []byte
	if err := row.Scan(&js); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var cfg map[string]any
	if err := json.Unmarshal(js, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (p *Postgres) SaveSolverConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
	js, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO solver_config (tenant_id, config, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=$2, updated_at=now()`, tenantID, js)
	return err
}

// jsonOrNull encodes v, mapping nil pointers and slices to SQL NULL.
func jsonOrNull(v any) (any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, nil
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map:
		if rv.IsNil() {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}
