// Package sqlite persists step records to an embedded SQLite file while
// serving reads from an in-memory cache.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"plantsim/internal/infra/persistence/memory"
	"plantsim/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.LedgerStore = (*Store)(nil)

// DefaultPath is used when NewStore receives an empty path.
const DefaultPath = "plantsim.db"

// Store writes every appended record through to SQLite. Reads are served by
// the embedded memory store, hydrated on open.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens or creates the database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS steps (
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		payload BLOB NOT NULL,
		PRIMARY KEY (run_id, step)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create steps table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT payload FROM steps ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("select steps: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var snap memory.Snapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return fmt.Errorf("scan: %w", err)
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
	if _, err := s.db.ExecContext(ctx, `INSERT INTO steps(run_id,step,payload) VALUES(?,?,?)`, record.RunID, record.Ledger.Step, payload); err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return s.Store.AppendStep(ctx, record)
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
