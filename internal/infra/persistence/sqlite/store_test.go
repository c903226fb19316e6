package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"plantsim/pkg/domain"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	s, err := NewStore(path)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	return s, path
}

func rec(run string, step int64) domain.StepRecord {
	return domain.StepRecord{
		RunID:  run,
		Ledger: domain.TransferLedger{RunID: run, Step: step, SimTimeSec: float64(step) * 10},
		Plant:  domain.PlantState{PressurePsia: 2235},
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)
	for _, r := range []domain.StepRecord{rec("b-run", 1), rec("a-run", 1), rec("b-run", 2)} {
		if err := s.AppendStep(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if s.Path() != path || s.DB() == nil {
		t.Fatalf("unexpected accessors")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	runs, _ := reopened.Runs(ctx)
	if len(runs) != 2 || runs[0] != "b-run" {
		t.Fatalf("runs should keep first-append order, got %v", runs)
	}
	got, ok, err := reopened.GetStep(ctx, "b-run", 2)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Ledger.SimTimeSec != 20 || got.Plant.PressurePsia != 2235 {
		t.Fatalf("unexpected record %+v", got)
	}
	if err := reopened.AppendStep(ctx, rec("b-run", 2)); !errors.Is(err, domain.ErrDuplicateStep) {
		t.Fatalf("expected ErrDuplicateStep after reopen, got %v", err)
	}
}

func TestStoreRejectsRecordWithoutRun(t *testing.T) {
	s, _ := openTemp(t)
	defer func() { _ = s.Close() }()
	if err := s.AppendStep(context.Background(), domain.StepRecord{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
