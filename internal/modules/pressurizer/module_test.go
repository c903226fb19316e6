package pressurizer

import (
	"errors"
	"math"
	"strings"
	"testing"

	"plantsim/internal/bus"
	"plantsim/pkg/domain"
)

type recordingLogger struct {
	messages []string
}

func (r *recordingLogger) Info(msg string, _ ...any) {
	r.messages = append(r.messages, msg)
}

func (r *recordingLogger) count(substr string) int {
	n := 0
	for _, m := range r.messages {
		if strings.Contains(m, substr) {
			n++
		}
	}
	return n
}

func baseSnapshot(t, pressure float64) *domain.PressurizerSnapshot {
	return &domain.PressurizerSnapshot{
		SimTimeSec:     t,
		DtSec:          10,
		PressurePsia:   pressure,
		LevelPct:       40,
		TavgF:          557,
		TcoldF:         550,
		TpzrF:          650,
		WaterVolumeFt3: 720,
		SteamVolumeFt3: 1080,
		RCPCount:       4,
		BubbleFormed:   true,
		HeaterMode:     domain.HeaterPressurizeAuto,
	}
}

func TestHeaterModeProgressesToPIDExactlyOnce(t *testing.T) {
	m := New()
	b := bus.New()
	transitions := 0
	prev := domain.HeaterPressurizeAuto
	for i := 0; i <= 20; i++ {
		b.ClearStep()
		p := 2100.0 + 10*float64(i)
		out, err := m.StepAuthoritative(int64(i+1), baseSnapshot(float64(i)*10, p), b)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		mode := out.Intent.HeaterMode
		if mode != prev {
			transitions++
			if mode != domain.HeaterAutomaticPID {
				t.Fatalf("unexpected transition to %s", mode)
			}
			if p != TransitionPressurePsia {
				t.Fatalf("transition at %.1f psia, want %.1f", p, TransitionPressurePsia)
			}
			wantErr := PIDSetpointPsig - (p - PsigOffset)
			if !out.Intent.PIDState.Initialized || math.Abs(out.Intent.PIDState.LastError-wantErr) > 1e-9 {
				t.Fatalf("PID not initialized from gauge pressure: %+v", out.Intent.PIDState)
			}
		}
		if p < TransitionPressurePsia && mode != domain.HeaterPressurizeAuto {
			t.Fatalf("premature transition at %.1f", p)
		}
		prev = mode
	}
	if transitions != 1 || prev != domain.HeaterAutomaticPID {
		t.Fatalf("expected exactly one transition to PID, got %d (final %s)", transitions, prev)
	}

	// Falling pressure must not leave PID.
	out, _ := m.StepAuthoritative(30, baseSnapshot(300, 2000), b)
	if out.Intent.HeaterMode != domain.HeaterAutomaticPID {
		t.Fatalf("PID mode left automatically: %s", out.Intent.HeaterMode)
	}
}

func TestStartupHoldFlagsAreSingleShot(t *testing.T) {
	logger := &recordingLogger{}
	m := New(WithLogger(logger))
	b := bus.New()

	first := baseSnapshot(0, 2000)
	first.HeaterMode = domain.HeaterOff
	first.Hold = domain.StartupHoldState{Active: true, ReleaseTimeSec: 50}

	activations, releases := 0, 0
	lastAct, lastRel := false, false
	for i := 0; i <= 10; i++ {
		snap := first
		if i > 0 {
			snap = baseSnapshot(float64(i)*10, 2000)
			snap.HeaterMode = domain.HeaterOff
		}
		out, err := m.StepAuthoritative(int64(i+1), snap, b)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if out.Intent.HoldActivationLogged && !lastAct {
			activations++
		}
		if !out.Intent.HoldActivationLogged && lastAct {
			t.Fatalf("activation flag reset")
		}
		if out.Intent.HoldReleaseLogged && !lastRel {
			releases++
		}
		lastAct, lastRel = out.Intent.HoldActivationLogged, out.Intent.HoldReleaseLogged

		if out.Intent.StartupHoldActive {
			if out.Intent.HeaterPowerKW != 0 || out.Intent.PIDActive {
				t.Fatalf("hold must force heaters off, got %+v", out.Intent)
			}
		}
		simTime := float64(i) * 10
		if simTime < 50 && !out.Intent.StartupHoldActive {
			t.Fatalf("hold released early at %.0f", simTime)
		}
		if simTime >= 50 {
			if out.Intent.StartupHoldActive {
				t.Fatalf("hold still active at %.0f", simTime)
			}
			if out.Intent.HeaterMode != domain.HeaterPressurizeAuto {
				t.Fatalf("OFF must re-arm to PRESSURIZE_AUTO on release, got %s", out.Intent.HeaterMode)
			}
		}
	}
	if activations != 1 || releases != 1 {
		t.Fatalf("expected single-shot flags, got activations=%d releases=%d", activations, releases)
	}
	if logger.count("hold active") != 1 || logger.count("hold released") != 1 {
		t.Fatalf("expected one notice each, got %v", logger.messages)
	}
}

func TestPostStepCaptureEmitsSingleSurgeEvent(t *testing.T) {
	m := New()
	b := bus.New()
	if _, err := m.StepAuthoritative(7, baseSnapshot(100, 2250), b); err != nil {
		t.Fatalf("step: %v", err)
	}
	post := baseSnapshot(100, 2251)
	post.SurgeFlowGpm = 150
	post.MassLedgerLbm = 500000
	out, err := m.CapturePostStepSnapshot(7, post, b)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !out.HasObserved || out.Observed.SurgeFlowGpm != 150 || out.Observed.PressurePsia != 2251 {
		t.Fatalf("unexpected outputs %+v", out)
	}

	var surge []domain.TransferEvent
	for _, ev := range b.SnapshotEvents() {
		if ev.Signal == domain.SignalSurgeFlow {
			surge = append(surge, ev)
		}
	}
	if len(surge) != 1 {
		t.Fatalf("expected one surge event, got %d", len(surge))
	}
	ev := surge[0]
	if ev.Magnitude != 150 || ev.From != domain.NodeRCS || ev.To != domain.NodePZR || ev.Quantity != domain.QuantityFlow || ev.Step != 7 {
		t.Fatalf("unexpected surge event %+v", ev)
	}
	if sh := m.Shadow(); sh.PressurePsia != 2251 || sh.MassLedgerLbm != 500000 {
		t.Fatalf("unexpected shadow %+v", sh)
	}
}

func TestOutsurgeIsRecordedTowardRCS(t *testing.T) {
	m := New()
	b := bus.New()
	_, _ = m.StepAuthoritative(1, baseSnapshot(0, 2100), b)
	post := baseSnapshot(0, 2100)
	post.SurgeFlowGpm = -42
	if _, err := m.CapturePostStepSnapshot(1, post, b); err != nil {
		t.Fatalf("capture: %v", err)
	}
	events := b.SnapshotEvents()
	ev := events[len(events)-1]
	if ev.Signal != domain.SignalSurgeFlow || ev.From != domain.NodePZR || ev.To != domain.NodeRCS || ev.Magnitude != 42 {
		t.Fatalf("unexpected outsurge event %+v", ev)
	}
}

func TestNoiseLevelTransfersAreSuppressed(t *testing.T) {
	m := New()
	b := bus.New()
	snap := baseSnapshot(0, 2000)
	snap.HeaterMode = domain.HeaterOff
	snap.RCPCount = 0
	if _, err := m.StepAuthoritative(1, snap, b); err != nil {
		t.Fatalf("step: %v", err)
	}
	post := baseSnapshot(0, 2000)
	post.SurgeFlowGpm = 1e-7
	if _, err := m.CapturePostStepSnapshot(1, post, b); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected no events, got %+v", b.SnapshotEvents())
	}

	// Across a busy run nothing at or below the threshold is emitted.
	m2 := New()
	for i := 0; i < 30; i++ {
		_, _ = m2.StepAuthoritative(int64(i), baseSnapshot(float64(i)*5, 2150+float64(i)*6), b)
	}
	for _, ev := range b.SnapshotEvents() {
		if math.Abs(ev.Magnitude) <= domain.EventThreshold {
			t.Fatalf("noise event emitted: %+v", ev)
		}
	}
}

func TestStepEmitsHeaterAndSprayIntents(t *testing.T) {
	m := New()
	b := bus.New()
	snap := baseSnapshot(0, 2330)
	snap.HeaterMode = domain.HeaterStartupFullPower
	snap.SmoothedHeaterOutput = 1
	snap.DtSec = 60
	if _, err := m.StepAuthoritative(3, snap, b); err != nil {
		t.Fatalf("step: %v", err)
	}
	if !b.HasSignal(domain.SignalSprayFlow, domain.QuantityFlow) {
		t.Fatalf("expected spray flow event")
	}
	if !b.HasSignal(domain.SignalSprayCondensedMass, domain.QuantityMass) {
		t.Fatalf("expected condensed mass event")
	}
	for _, ev := range b.SnapshotEvents() {
		if ev.Authority != domain.AuthorityModularPZR {
			t.Fatalf("unexpected authority %s", ev.Authority)
		}
		if ev.Signal == domain.SignalHeaterPower && (!ev.IsBoundary || ev.From != domain.NodeGrid || ev.Quantity != domain.QuantityEnergy) {
			t.Fatalf("heater event malformed: %+v", ev)
		}
	}
}

func TestRewindReseedsFromSnapshot(t *testing.T) {
	m := New()
	b := bus.New()
	_, _ = m.StepAuthoritative(1, baseSnapshot(100, 2250), b)
	if m.State().HeaterMode != domain.HeaterAutomaticPID {
		t.Fatalf("expected PID after crossing threshold, got %s", m.State().HeaterMode)
	}

	forward := baseSnapshot(110, 2250)
	forward.HeaterMode = domain.HeaterOff
	_, _ = m.StepAuthoritative(2, forward, b)
	if m.State().HeaterMode != domain.HeaterAutomaticPID {
		t.Fatalf("forward step must keep persistent mode, got %s", m.State().HeaterMode)
	}

	rewound := baseSnapshot(50, 400)
	rewound.HeaterMode = domain.HeaterBubbleFormationAuto
	rewound.BubbleFormed = false
	rewound.Solid = true
	_, _ = m.StepAuthoritative(3, rewound, b)
	st := m.State()
	if st.HeaterMode != domain.HeaterBubbleFormationAuto || st.LastSimTimeSec != 50 {
		t.Fatalf("expected re-seed from rewound snapshot, got %+v", st)
	}
	if st.PID.Initialized {
		t.Fatalf("rewind must drop stale PID state")
	}
}

func TestLifecycleIsIdempotent(t *testing.T) {
	m := New()
	m.Initialize()
	once := m.State()
	m.Initialize()
	if m.State() != once || once != (State{}) {
		t.Fatalf("Initialize not idempotent: %+v vs %+v", once, m.State())
	}

	b := bus.New()
	_, _ = m.StepAuthoritative(1, baseSnapshot(0, 2250), b)
	post := baseSnapshot(0, 2250)
	post.SurgeFlowGpm = 3
	_, _ = m.CapturePostStepSnapshot(1, post, b)
	if m.State() == (State{}) {
		t.Fatalf("expected state after stepping")
	}

	m.Shutdown()
	m.Shutdown()
	m.Initialize()
	if m.State() != (State{}) || m.Shadow() != (domain.ModuleShadowState{}) {
		t.Fatalf("Shutdown+Initialize must restore defaults, got %+v", m.State())
	}
	if m.Outputs().HasObserved {
		t.Fatalf("outputs must be cleared")
	}
	if err := m.Step(1); err != nil || m.ModuleID() != domain.ModulePZR {
		t.Fatalf("unexpected module contract behavior")
	}
}

func TestNilArgumentsFailFast(t *testing.T) {
	m := New()
	b := bus.New()
	if _, err := m.StepAuthoritative(1, nil, b); !errors.Is(err, domain.ErrNilArgument) {
		t.Fatalf("expected ErrNilArgument for nil snapshot, got %v", err)
	}
	if _, err := m.StepAuthoritative(1, baseSnapshot(0, 2000), nil); !errors.Is(err, domain.ErrNilArgument) {
		t.Fatalf("expected ErrNilArgument for nil bus, got %v", err)
	}
	if _, err := m.CapturePostStepSnapshot(1, nil, b); !errors.Is(err, domain.ErrNilArgument) {
		t.Fatalf("expected ErrNilArgument for nil post snapshot, got %v", err)
	}
	if _, err := m.CapturePostStepSnapshot(1, baseSnapshot(0, 2000), b); !errors.Is(err, domain.ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation before StepAuthoritative, got %v", err)
	}
}
