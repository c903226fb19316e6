// Package badger stores step records in an embedded BadgerDB keyed by run and
// zero-padded step index, so prefix scans return steps in order.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"plantsim/pkg/domain"
)

var _ domain.LedgerStore = (*Store)(nil)

const (
	stepPrefix = "step/"
	runPrefix  = "run/"
)

// Config selects the database location.
type Config struct {
	// Path is required unless InMemory is set.
	Path     string
	InMemory bool
	Logger   *slog.Logger
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a LedgerStore over BadgerDB.
type Store struct {
	db *badger.DB
}

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("%w: badger path is required", domain.ErrInvalidArgument)
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger dir %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

func stepKey(runID string, step int64) []byte {
	return []byte(fmt.Sprintf("%s%s/%020d", stepPrefix, runID, step))
}

// run keys carry a sequence number so Runs keeps first-append order.
func runKey(seq uint64, runID string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", runPrefix, seq, runID))
}

// AppendStep stores record. A second record for the same key is rejected
// inside the same transaction.
func (s *Store) AppendStep(_ context.Context, record domain.StepRecord) error {
	if record.RunID == "" {
		record.RunID = record.Ledger.RunID
	}
	if record.RunID == "" || strings.Contains(record.RunID, "/") {
		return fmt.Errorf("%w: run id %q", domain.ErrInvalidArgument, record.RunID)
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode step: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := stepKey(record.RunID, record.Ledger.Step)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("%w: run %s step %d", domain.ErrDuplicateStep, record.RunID, record.Ledger.Step)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		known, err := runKnown(txn, record.RunID)
		if err != nil {
			return err
		}
		if !known {
			n, err := countPrefix(txn, []byte(runPrefix))
			if err != nil {
				return err
			}
			if err := txn.Set(runKey(uint64(n), record.RunID), nil); err != nil {
				return err
			}
		}
		return txn.Set(key, payload)
	})
}

func runKnown(txn *badger.Txn, runID string) (bool, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(stepPrefix + runID + "/")
	it := txn.NewIterator(opts)
	defer it.Close()
	it.Rewind()
	return it.Valid(), nil
}

func countPrefix(txn *badger.Txn, prefix []byte) (int, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()
	n := 0
	for it.Rewind(); it.Valid(); it.Next() {
		n++
	}
	return n, nil
}

// GetStep returns one record.
func (s *Store) GetStep(_ context.Context, runID string, step int64) (domain.StepRecord, bool, error) {
	var rec domain.StepRecord
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stepKey(runID, step))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return domain.StepRecord{}, false, fmt.Errorf("get step: %w", err)
	}
	return rec, found, nil
}

// ListSteps returns a run's records ordered by step. Negative step indices
// are not produced by the coordinator and would sort after positive ones.
func (s *Store) ListSteps(_ context.Context, runID string) ([]domain.StepRecord, error) {
	var out []domain.StepRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(stepPrefix + runID + "/")
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var rec domain.StepRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	return out, nil
}

// Runs returns run IDs in first-append order.
func (s *Store) Runs(context.Context) ([]string, error) {
	var out []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			// run/<seq>/<id>
			parts := strings.SplitN(strings.TrimPrefix(key, runPrefix), "/", 2)
			if len(parts) == 2 {
				out = append(out, parts[1])
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
