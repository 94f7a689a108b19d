// Package postgres persists search outcomes and run bookkeeping in Postgres.
// Tables are expected to exist; no schema is managed here.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/heir-finder/internal/scraper"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const (
	defaultOutcomesTable = "search_outcomes"
	defaultRunsTable     = "search_runs"
)

// Config controls the Postgres connection pool and target tables.
type Config struct {
	DSN             string
	OutcomesTable   string
	RunsTable       string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes kept outcomes and run records.
type Store struct {
	pool     execCloser
	outcomes string
	runs     string
}

var _ scraper.OutcomeSink = (*Store)(nil)

// New connects a pool using cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(pool, cfg.OutcomesTable, cfg.RunsTable)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, outcomesTable, runsTable string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if outcomesTable == "" {
		outcomesTable = defaultOutcomesTable
	}
	if runsTable == "" {
		runsTable = defaultRunsTable
	}
	for _, table := range []string{outcomesTable, runsTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &Store{pool: pool, outcomes: outcomesTable, runs: runsTable}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Record inserts one kept outcome.
func (s *Store) Record(ctx context.Context, o scraper.SearchOutcome) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("outcome store is not configured")
	}
	fields, err := json.Marshal(nonNil(o.Result.Fields()))
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	property, err := json.Marshal(o.Property)
	if err != nil {
		return fmt.Errorf("marshal property: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	item_index,
	row_label,
	raw_owner,
	first_name,
	middle_name,
	last_name,
	search_term,
	status,
	result_count,
	item_disqualified,
	fields,
	property,
	worker,
	finished_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
)`, s.outcomes)

	args := []any{
		o.RunID,
		o.Item.Index,
		o.Item.Label,
		o.Item.Raw,
		o.Identity.FirstName,
		o.Identity.MiddleName,
		o.Identity.LastName,
		o.Identity.SearchTerm,
		string(o.Result.Status()),
		o.Result.Count(),
		o.ItemDisqualified,
		fields,
		property,
		o.Worker,
		o.FinishedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
