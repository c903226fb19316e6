package domain

import "context"

// LedgerStore is the append-only history of step records, keyed by run and
// step index. Implementations must reject a second record for the same key.
type LedgerStore interface {
	AppendStep(ctx context.Context, record StepRecord) error
	GetStep(ctx context.Context, runID string, step int64) (StepRecord, bool, error)
	ListSteps(ctx context.Context, runID string) ([]StepRecord, error)
	Runs(ctx context.Context) ([]string, error)
	Close() error
}
