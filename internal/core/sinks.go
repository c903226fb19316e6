package core

import (
	"context"

	"plantsim/pkg/domain"
)

// StoreSink appends every step record to a ledger store.
type StoreSink struct {
	store domain.LedgerStore
}

// NewStoreSink wraps store as a StepSink.
func NewStoreSink(store domain.LedgerStore) *StoreSink {
	return &StoreSink{store: store}
}

// Record implements StepSink.
func (s *StoreSink) Record(ctx context.Context, record domain.StepRecord) error {
	return s.store.AppendStep(ctx, record)
}
