package bridge

import (
	"errors"
	"testing"

	"plantsim/pkg/domain"
)

type fakeOwner struct {
	fields domain.EngineFields
	bundle domain.StepSnapshot
	has    bool
}

func (f *fakeOwner) ReadFields() domain.EngineFields { return f.fields }
func (f *fakeOwner) RunLegacySimulationStep(float64, bool) error {
	return nil
}
func (f *fakeOwner) ApplyModularPressurizerOutputs(domain.ControlIntent) {}
func (f *fakeOwner) StepSnapshot() (domain.StepSnapshot, bool)           { return f.bundle, f.has }

func sampleFields() domain.EngineFields {
	return domain.EngineFields{
		Plant: domain.PlantState{
			SimTimeSec:   120,
			PressurePsia: 2100,
			TavgF:        550,
			TcoldF:       545,
			TpzrF:        640,
			PzrLevelPct:  40,
			SurgeFlowGpm: -12,
			RCPCount:     4,
			Mass:         domain.MassConservation{LedgerLbm: 510000},
		},
		Pressurizer: domain.PressurizerFields{
			PressureRatePsiPerSec: 0.5,
			WaterVolumeFt3:        720,
			SteamVolumeFt3:        1080,
			BubbleFormed:          true,
			HeaterMode:            domain.HeaterPressurizeAuto,
			SmoothedHeaterOutput:  0.8,
		},
	}
}

func TestBuildPressurizerSnapshotMapsFields(t *testing.T) {
	snap := BuildPressurizerSnapshot(sampleFields(), 10)
	if snap.DtSec != 10 || snap.PressurePsia != 2100 || snap.LevelPct != 40 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.SteamVolumeFt3 != 1080 || snap.HeaterMode != domain.HeaterPressurizeAuto || !snap.BubbleFormed {
		t.Fatalf("pressurizer fields not mapped: %+v", snap)
	}
	if snap.SurgeFlowGpm != 0 || snap.MassLedgerLbm != 0 {
		t.Fatalf("pre-step snapshot must not carry observations")
	}
}

func TestBuildPostStepSnapshotCarriesObservations(t *testing.T) {
	snap := BuildPostStepSnapshot(sampleFields(), 10)
	if snap.SurgeFlowGpm != -12 || snap.MassLedgerLbm != 510000 {
		t.Fatalf("expected observations, got %+v", snap)
	}
}

func TestPreStepSnapshotPrefersEngineBundle(t *testing.T) {
	owner := &fakeOwner{fields: sampleFields()}
	snap, err := PreStepSnapshot(owner, 5)
	if err != nil || snap.PressurePsia != 2100 {
		t.Fatalf("expected derived snapshot, got %+v (%v)", snap, err)
	}

	owner.has = true
	owner.bundle = domain.StepSnapshot{HasPressurizer: false, Pressurizer: domain.PressurizerSnapshot{PressurePsia: 1}}
	snap, _ = PreStepSnapshot(owner, 5)
	if snap.PressurePsia != 2100 {
		t.Fatalf("empty bundle must fall back to bridge, got %v", snap.PressurePsia)
	}

	owner.bundle = domain.StepSnapshot{HasPressurizer: true, Pressurizer: domain.PressurizerSnapshot{PressurePsia: 1999}}
	snap, _ = PreStepSnapshot(owner, 5)
	if snap.PressurePsia != 1999 || snap.DtSec != 5 {
		t.Fatalf("expected engine bundle, got %+v", snap)
	}
}

func TestNilOwner(t *testing.T) {
	if _, err := Read(nil); !errors.Is(err, domain.ErrNilArgument) {
		t.Fatalf("expected ErrNilArgument, got %v", err)
	}
	if _, err := PreStepSnapshot(nil, 1); !errors.Is(err, domain.ErrNilArgument) {
		t.Fatalf("expected ErrNilArgument, got %v", err)
	}
}

func TestShadowFromFields(t *testing.T) {
	sh := ShadowFromFields(sampleFields())
	if sh.PressurePsia != 2100 || sh.LevelPct != 40 || sh.MassLedgerLbm != 510000 {
		t.Fatalf("unexpected shadow %+v", sh)
	}
}
