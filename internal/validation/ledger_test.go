package validation

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"plantsim/internal/core"
	"plantsim/internal/legacy"
	"plantsim/pkg/domain"
)

func newValidator(t *testing.T) *LedgerValidator {
	t.Helper()
	v, err := NewLedgerValidator()
	if err != nil {
		t.Fatalf("compile schema: %v", err)
	}
	return v
}

func runCoordinator(t *testing.T, flags domain.FeatureFlags, steps int, opts ...legacy.Option) []domain.TransferLedger {
	t.Helper()
	engine, err := legacy.New(legacy.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	c, err := core.NewCoordinator(engine, flags, core.WithRunID("schema-run"))
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	out := make([]domain.TransferLedger, 0, steps)
	for i := 0; i < steps; i++ {
		l, err := c.Step(context.Background(), 1)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		out = append(out, l)
	}
	return out
}

func TestProducedLedgersMatchSchema(t *testing.T) {
	v := newValidator(t)
	modular := domain.FeatureFlags{
		CoordinatorEnabled: true,
		PZR:                domain.SubsystemFlags{UseModular: true, BypassLegacy: true, EnableComparator: true},
	}
	cases := map[string][]domain.TransferLedger{
		"legacy":     runCoordinator(t, domain.FeatureFlags{}, 40),
		"modular":    runCoordinator(t, modular, 40),
		"unledgered": runCoordinator(t, domain.FeatureFlags{}, 5, legacy.WithUnledgeredSurge()),
	}
	for name, ledgers := range cases {
		for _, l := range ledgers {
			if err := v.Validate(l); err != nil {
				t.Fatalf("%s step %d: %v", name, l.Step, err)
			}
		}
	}
	if !cases["unledgered"][0].UnledgeredMutationDetected {
		t.Fatalf("expected the unledgered case to carry a flagged ledger")
	}
}

func TestSchemaRejectsMalformedLedgers(t *testing.T) {
	v := newValidator(t)
	valid := domain.TransferLedger{
		RunID: "r", Step: 2, SimTimeSec: 2,
		Events: []domain.TransferEvent{{
			Step: 2, Signal: domain.SignalSurgeFlow, Quantity: domain.QuantityFlow,
			From: domain.NodeRCS, To: domain.NodePZR, Magnitude: 10, Authority: domain.AuthorityLegacy,
		}},
	}
	if err := v.Validate(valid); err != nil {
		t.Fatalf("valid ledger rejected: %v", err)
	}

	cases := map[string]func(*domain.TransferLedger){
		"empty run id":     func(l *domain.TransferLedger) { l.RunID = "" },
		"step zero":        func(l *domain.TransferLedger) { l.Step = 0; l.Events[0].Step = 0 },
		"bad quantity":     func(l *domain.TransferLedger) { l.Events[0].Quantity = "volume" },
		"bad authority":    func(l *domain.TransferLedger) { l.Events[0].Authority = "MODULAR_TURBINE" },
		"negative":         func(l *domain.TransferLedger) { l.Events[0].Magnitude = -1 },
		"event step drift": func(l *domain.TransferLedger) { l.Events[0].Step = 1 },
		"flag without reason": func(l *domain.TransferLedger) {
			l.UnledgeredMutationDetected = true
			l.Violations = []domain.Violation{{Rule: "x", Severity: domain.SeverityMutation, Message: "m"}}
		},
		"flag without violation": func(l *domain.TransferLedger) {
			l.UnledgeredMutationDetected = true
			l.Reason = "r"
		},
		"mutation not flagged": func(l *domain.TransferLedger) {
			l.Violations = []domain.Violation{{Rule: "x", Severity: domain.SeverityMutation, Message: "m"}}
		},
	}
	for name, mutate := range cases {
		l := valid.Clone()
		mutate(&l)
		if err := v.Validate(l); err == nil {
			t.Fatalf("%s: expected rejection", name)
		}
	}
}

func TestValidateJSONRejectsUnknownFields(t *testing.T) {
	v := newValidator(t)
	raw, _ := json.Marshal(map[string]any{
		"run_id": "r", "step": 1, "sim_time_sec": 0, "events": []any{},
		"unledgered_mutation_detected": false, "extra": true,
	})
	if err := v.ValidateJSON(raw); err == nil {
		t.Fatalf("expected additionalProperties rejection")
	}
	if err := v.ValidateJSON([]byte("{")); err == nil || !strings.Contains(err.Error(), "decode") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestSinkValidatesEveryStep(t *testing.T) {
	engine, err := legacy.New(legacy.DefaultConfig())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	c, err := core.NewCoordinator(engine, domain.FeatureFlags{}, core.WithStepSink(NewSink(newValidator(t))))
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	for i := 0; i < 20; i++ {
		if _, err := c.Step(context.Background(), 1); err != nil {
			t.Fatalf("step: %v", err)
		}
	}
	if c.SinkFailures() != 0 {
		t.Fatalf("expected all ledgers to validate, %d failed", c.SinkFailures())
	}

	bad := domain.StepRecord{Ledger: domain.TransferLedger{Step: 4}}
	if err := NewSink(newValidator(t)).Record(context.Background(), bad); err == nil || !strings.Contains(err.Error(), "step 4") {
		t.Fatalf("expected step-tagged validation error, got %v", err)
	}
}

func TestLedgerSchemaIsCopied(t *testing.T) {
	a := LedgerSchema()
	a[0] = 'x'
	if LedgerSchema()[0] == 'x' {
		t.Fatalf("LedgerSchema must return a copy")
	}
}
