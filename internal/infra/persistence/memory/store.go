// Package memory provides an in-memory ledger store used for tests, ephemeral
// runs and as the read cache of the SQL-backed stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"plantsim/pkg/domain"
)

var _ domain.LedgerStore = (*Store)(nil)

// Snapshot is the full store contents, keyed by run ID. Steps within a run are
// ordered by step index. Order lists run IDs in first-append order.
type Snapshot struct {
	Runs  map[string][]domain.StepRecord `json:"runs"`
	Order []string                       `json:"order,omitempty"`
}

// Add appends rec to its run. It is how persistent stores build the snapshot
// they hydrate from.
func (s *Snapshot) Add(rec domain.StepRecord) error {
	runID := rec.RunID
	if runID == "" {
		runID = rec.Ledger.RunID
	}
	if runID == "" {
		return fmt.Errorf("%w: record has no run id", domain.ErrInvalidArgument)
	}
	if s.Runs == nil {
		s.Runs = make(map[string][]domain.StepRecord)
	}
	if _, ok := s.Runs[runID]; !ok {
		s.Order = append(s.Order, runID)
	}
	rec.RunID = runID
	s.Runs[runID] = append(s.Runs[runID], rec)
	return nil
}

// Store keeps step records in memory. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	runs  map[string]map[int64]domain.StepRecord
	order []string
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{runs: make(map[string]map[int64]domain.StepRecord)}
}

// AppendStep stores record, rejecting a second record for the same run and step.
func (s *Store) AppendStep(_ context.Context, record domain.StepRecord) error {
	runID := record.RunID
	if runID == "" {
		runID = record.Ledger.RunID
	}
	if runID == "" {
		return fmt.Errorf("%w: record has no run id", domain.ErrInvalidArgument)
	}
	record.RunID = runID
	s.mu.Lock()
	defer s.mu.Unlock()
	steps, ok := s.runs[runID]
	if !ok {
		steps = make(map[int64]domain.StepRecord)
		s.runs[runID] = steps
		s.order = append(s.order, runID)
	}
	if _, dup := steps[record.Ledger.Step]; dup {
		return fmt.Errorf("%w: run %s step %d", domain.ErrDuplicateStep, runID, record.Ledger.Step)
	}
	steps[record.Ledger.Step] = record.Clone()
	return nil
}

// Contains reports whether a record exists for the run and step.
func (s *Store) Contains(runID string, step int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.runs[runID][step]
	return ok
}

// GetStep returns one record.
func (s *Store) GetStep(_ context.Context, runID string, step int64) (domain.StepRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID][step]
	if !ok {
		return domain.StepRecord{}, false, nil
	}
	return rec.Clone(), true, nil
}

// ListSteps returns a run's records ordered by step.
func (s *Store) ListSteps(_ context.Context, runID string) ([]domain.StepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedSteps(s.runs[runID]), nil
}

// Runs returns run IDs in first-append order.
func (s *Store) Runs(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// ImportState replaces the store contents with snap. Runs keep snap.Order;
// runs missing from it follow, sorted by ID. A later record for the same
// step replaces an earlier one.
func (s *Store) ImportState(snap Snapshot) {
	runs := make(map[string]map[int64]domain.StepRecord, len(snap.Runs))
	for id, recs := range snap.Runs {
		steps := make(map[int64]domain.StepRecord, len(recs))
		for _, rec := range recs {
			rec.RunID = id
			steps[rec.Ledger.Step] = rec.Clone()
		}
		runs[id] = steps
	}
	order := make([]string, 0, len(runs))
	listed := make(map[string]bool, len(snap.Order))
	for _, id := range snap.Order {
		if _, ok := runs[id]; ok && !listed[id] {
			listed[id] = true
			order = append(order, id)
		}
	}
	var rest []string
	for id := range runs {
		if !listed[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)
	s.mu.Lock()
	s.runs = runs
	s.order = order
	s.mu.Unlock()
}

func sortedSteps(steps map[int64]domain.StepRecord) []domain.StepRecord {
	out := make([]domain.StepRecord, 0, len(steps))
	for _, rec := range steps {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ledger.Step < out[j].Ledger.Step })
	return out
}
