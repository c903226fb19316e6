package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestTransferLedgerHasSignalMatchesBothFields(t *testing.T) {
	ledger := TransferLedger{Events: []TransferEvent{{
		Signal:   SignalSurgeFlow,
		Quantity: QuantityFlow,
	}}}
	if !ledger.HasSignal(SignalSurgeFlow, QuantityFlow) {
		t.Fatalf("expected surge flow to be present")
	}
	if ledger.HasSignal(SignalSurgeFlow, QuantityMass) {
		t.Fatalf("expected quantity type to be part of the match")
	}
}

func TestTransferLedgerCloneIsDeep(t *testing.T) {
	ledger := TransferLedger{
		Events:     []TransferEvent{{Signal: SignalSprayFlow, Magnitude: 1}},
		Violations: []Violation{{Rule: "r"}},
	}
	cp := ledger.Clone()
	cp.Events[0].Magnitude = 99
	cp.Violations[0].Rule = "changed"
	if ledger.Events[0].Magnitude != 1 || ledger.Violations[0].Rule != "r" {
		t.Fatalf("expected clone to leave the original untouched")
	}
}

func TestHeaterModeTextEncoding(t *testing.T) {
	data, err := json.Marshal(struct {
		Mode HeaterMode `json:"mode"`
	}{HeaterAutomaticPID})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"AUTOMATIC_PID"`) {
		t.Fatalf("expected mode name in JSON, got %s", data)
	}
	var decoded struct {
		Mode HeaterMode `json:"mode"`
	}
	if err := json.Unmarshal([]byte(`{"mode":"pressurize_auto"}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Mode != HeaterPressurizeAuto {
		t.Fatalf("expected PRESSURIZE_AUTO, got %s", decoded.Mode)
	}
	if _, err := ParseHeaterMode("TURBO"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for unknown mode, got %v", err)
	}
	if _, err := HeaterMode(42).MarshalText(); err == nil {
		t.Fatalf("expected out-of-range mode to fail encoding")
	}
}

func TestOutputsCombine(t *testing.T) {
	intent := ControlIntent{HeaterPowerKW: 10}
	pending := PendingOutputs(intent)
	if pending.HasObserved {
		t.Fatalf("pending outputs must not claim observations")
	}
	combined := CombineOutputs(intent, ObservedEffect{SurgeFlowGpm: 150})
	if !combined.HasObserved || combined.Observed.SurgeFlowGpm != 150 || combined.Intent.HeaterPowerKW != 10 {
		t.Fatalf("unexpected combined outputs %+v", combined)
	}
}

func TestAuthorityForModules(t *testing.T) {
	if AuthorityFor(ModulePZR) != AuthorityModularPZR {
		t.Fatalf("expected PZR to map to MODULAR_PZR")
	}
	if AuthorityFor(ModuleLegacy) != AuthorityLegacy {
		t.Fatalf("expected unknown module to map to LEGACY")
	}
}
