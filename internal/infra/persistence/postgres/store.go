// Package postgres provides a Postgres-backed ledger store that writes through
// to a steps table and serves reads from the in-memory store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"plantsim/internal/infra/persistence/memory"
	"plantsim/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

var _ domain.LedgerStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/plantsim?sslmode=disable"
)

const stepsDDL = `CREATE TABLE IF NOT EXISTS steps (
	seq BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	step BIGINT NOT NULL,
	payload JSONB NOT NULL,
	UNIQUE (run_id, step)
)`

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists step records to Postgres.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a store using dsn, falling back to a local default. It
// ensures the steps table exists and hydrates the cache from it.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, stepsDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure steps table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM steps ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("select steps: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var snap memory.Snapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scan step: %w", err)
		}
		var rec domain.StepRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("decode step: %w", err)
		}
		if err := snap.Add(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate steps: %w", err)
	}
	s.Store.ImportState(snap)
	return nil
}

// AppendStep inserts record, then caches it.
func (s *Store) AppendStep(ctx context.Context, record domain.StepRecord) error {
	if record.RunID == "" {
		record.RunID = record.Ledger.RunID
	}
	if record.RunID == "" {
		return fmt.Errorf("%w: record has no run id", domain.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Contains(record.RunID, record.Ledger.Step) {
		return fmt.Errorf("%w: run %s step %d", domain.ErrDuplicateStep, record.RunID, record.Ledger.Step)
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode step: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO steps(run_id,step,payload) VALUES($1,$2,$3)`, record.RunID, record.Ledger.Step, payload); err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return s.Store.AppendStep(ctx, record)
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
