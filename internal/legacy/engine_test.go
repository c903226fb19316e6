package legacy

import (
	"math"
	"testing"

	"plantsim/internal/bus"
	"plantsim/pkg/domain"
)

func newEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestNewRejectsBadLoopCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Loops = -1
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected loop count error")
	}
}

func TestLegacyStepConservesMassAndLedgersItself(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	b := bus.New()
	for i := 0; i < 120; i++ {
		b.ClearStep()
		if err := e.RunLegacySimulationStep(10, false); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		e.RecordLegacyTransfers(e.Step(), b)
		p := e.ReadFields().Plant
		if !p.Mass.ConservationOK {
			t.Fatalf("step %d: conservation drift %v", i, p.Mass.DriftLbm)
		}
		if math.Abs(p.SurgeFlowGpm) > domain.EventThreshold && !b.HasSignal(domain.SignalSurgeFlow, domain.QuantityFlow) {
			t.Fatalf("step %d: surge not ledgered", i)
		}
		if p.HeaterPowerKW > domain.EventThreshold && !b.HasSignal(domain.SignalHeaterPower, domain.QuantityEnergy) {
			t.Fatalf("step %d: heater power not ledgered", i)
		}
		if !b.HasSignal(domain.SignalPrimaryBoundaryInMass, domain.QuantityMass) || !b.HasSignal(domain.SignalPrimaryBoundaryOutMass, domain.QuantityMass) {
			t.Fatalf("step %d: boundary mass not ledgered", i)
		}
	}
	p := e.ReadFields()
	if p.Plant.SimTimeSec != 1200 {
		t.Fatalf("unexpected sim time %v", p.Plant.SimTimeSec)
	}
	if p.Plant.PressurePsia <= DefaultConfig().InitialPressurePsia {
		t.Fatalf("heaters should pressurize the plant, got %v", p.Plant.PressurePsia)
	}
	if p.Pressurizer.Hold.Active || !p.Pressurizer.Hold.ReleaseLogged {
		t.Fatalf("startup hold should have released: %+v", p.Pressurizer.Hold)
	}
	if p.Plant.ThotF <= p.Plant.TcoldF {
		t.Fatalf("expected a loop deltaT with pumps running")
	}
}

func TestBypassHonorsAppliedIntent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StartupHoldSec = 0
	e := newEngine(t, cfg)
	twin := newEngine(t, cfg)
	e.ApplyModularPressurizerOutputs(domain.ControlIntent{
		HeaterPowerKW: 0,
		HeaterMode:    domain.HeaterAutomaticPID,
		PIDState:      domain.HeaterPIDState{Initialized: true, SetpointPsig: 2235},
	})
	if err := e.RunLegacySimulationStep(10, true); err != nil {
		t.Fatalf("step: %v", err)
	}
	_ = twin.RunLegacySimulationStep(10, false)
	f := e.ReadFields()
	if f.Plant.HeaterPowerKW != 0 {
		t.Fatalf("bypassed step must use the applied heater power, got %v", f.Plant.HeaterPowerKW)
	}
	if twin.ReadFields().Plant.HeaterPowerKW == 0 {
		t.Fatalf("legacy control should energize heaters")
	}
	if f.Plant.PressurePsia >= twin.ReadFields().Plant.PressurePsia {
		t.Fatalf("without heaters pressure should lag the legacy-controlled twin")
	}
	if f.Pressurizer.HeaterMode != domain.HeaterAutomaticPID {
		t.Fatalf("applied mode lost: %s", f.Pressurizer.HeaterMode)
	}

	b := bus.New()
	e.RecordLegacyTransfers(e.Step(), b)
	for _, ev := range b.SnapshotEvents() {
		if ev.Signal != domain.SignalPrimaryBoundaryInMass && ev.Signal != domain.SignalPrimaryBoundaryOutMass {
			t.Fatalf("bypassed engine must only ledger boundary mass, got %+v", ev)
		}
	}
}

func TestUnledgeredSurgeOption(t *testing.T) {
	e := newEngine(t, DefaultConfig(), WithUnledgeredSurge())
	_ = e.RunLegacySimulationStep(10, false)
	b := bus.New()
	e.RecordLegacyTransfers(e.Step(), b)
	if b.HasSignal(domain.SignalSurgeFlow, domain.QuantityFlow) {
		t.Fatalf("surge should be withheld")
	}
	if math.Abs(e.ReadFields().Plant.SurgeFlowGpm) <= domain.EventThreshold {
		t.Fatalf("expected a nonzero surge")
	}
}

func TestStepSnapshotBundle(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	ss, ok := e.StepSnapshot()
	if !ok || ss.Empty() || ss.Pressurizer.PressurePsia != DefaultConfig().InitialPressurePsia {
		t.Fatalf("unexpected bundle %+v", ss)
	}
	plain := newEngine(t, DefaultConfig(), WithoutStepSnapshots())
	if _, ok := plain.StepSnapshot(); ok {
		t.Fatalf("bundles disabled")
	}
}

func TestDescriptors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialTavgF = 150
	cfg.InitialPressurePsia = 350
	cfg.Solid = true
	cfg.RCPCount = 0
	e := newEngine(t, cfg)
	p := e.ReadFields().Plant
	if p.PlantMode != 5 || p.PlantModeName != "COLD_SHUTDOWN" || p.HeatupPhase != "SOLID_PLANT" || p.RHRState != "IN_SERVICE" {
		t.Fatalf("unexpected descriptors %+v", p)
	}
	if p.PzrLevelPct != 100 {
		t.Fatalf("solid pressurizer should read 100%%, got %v", p.PzrLevelPct)
	}
	if math.Abs(saturationTempF(2250)-653) > 5 {
		t.Fatalf("saturation fit off: %v", saturationTempF(2250))
	}
}
