package badger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"plantsim/pkg/domain"
)

func rec(run string, step int64) domain.StepRecord {
	return domain.StepRecord{
		RunID: run,
		Ledger: domain.TransferLedger{
			RunID: run, Step: step,
			Events: []domain.TransferEvent{{Step: step, Signal: domain.SignalHeaterPower, Quantity: domain.QuantityEnergy, Magnitude: 900}},
		},
	}
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()

	for _, step := range []int64{10, 2, 1} {
		if err := s.AppendStep(ctx, rec("zz", step)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.AppendStep(ctx, rec("aa", 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendStep(ctx, rec("zz", 2)); !errors.Is(err, domain.ErrDuplicateStep) {
		t.Fatalf("expected ErrDuplicateStep, got %v", err)
	}
	steps, err := s.ListSteps(ctx, "zz")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(steps) != 3 || steps[0].Ledger.Step != 1 || steps[2].Ledger.Step != 10 {
		t.Fatalf("steps must be ordered numerically, got %+v", steps)
	}
	runs, _ := s.Runs(ctx)
	if len(runs) != 2 || runs[0] != "zz" || runs[1] != "aa" {
		t.Fatalf("runs must keep first-append order, got %v", runs)
	}
	got, ok, err := s.GetStep(ctx, "zz", 10)
	if err != nil || !ok || got.Ledger.Events[0].Magnitude != 900 {
		t.Fatalf("unexpected get result %+v ok=%v err=%v", got, ok, err)
	}
	if _, ok, _ := s.GetStep(ctx, "zz", 99); ok {
		t.Fatalf("missing step must report not found")
	}
}

func TestPersistentStoreReopens(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(Config{Path: dir, Logger: logger})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.AppendStep(ctx, rec("run", 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	s, err = Open(Config{Path: dir})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s.Close() }()
	if _, ok, _ := s.GetStep(ctx, "run", 1); !ok {
		t.Fatalf("record lost across reopen")
	}
}

func TestOpenAndAppendValidation(t *testing.T) {
	if _, err := Open(Config{}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	s, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = s.Close() }()
	if err := s.AppendStep(context.Background(), rec("bad/run", 1)); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for slash in run id, got %v", err)
	}
}
