// Package pressurizer is the extracted pressurizer control module: heater mode
// state machine, heater PID, spray control and the transfer intents they imply.
//
// The module is driven in two phases per step. StepAuthoritative computes the
// control intent from a pre-step snapshot and emits heater, spray and
// condensation transfers before the engine integrates. CapturePostStepSnapshot
// reconciles the observed effect afterwards and emits the surge transfer.
package pressurizer

import (
	"fmt"
	"math"

	"plantsim/pkg/domain"
)

// Logger receives one-time hold and mode transition notices. *slog.Logger
// satisfies it.
type Logger interface {
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}

// State is the module's persistent controller state. The zero value is the
// documented default restored by Initialize and Shutdown.
type State struct {
	Initialized    bool                     `json:"initialized"`
	LastSimTimeSec float64                  `json:"last_sim_time_sec"`
	Hold           domain.StartupHoldState  `json:"startup_hold"`
	HeaterMode     domain.HeaterMode        `json:"heater_mode"`
	SmoothedOutput float64                  `json:"smoothed_output"`
	PID            domain.HeaterPIDState    `json:"heater_pid"`
	Spray          domain.SprayControlState `json:"spray"`
}

// Option configures a Module.
type Option func(*Module)

// WithLogger sets the notice logger.
func WithLogger(l Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.logger = l
		}
	}
}

// Module is the pressurizer module. It is not safe for concurrent use.
type Module struct {
	logger Logger
	state  State

	intent      domain.ControlIntent
	hasIntent   bool
	observed    domain.ObservedEffect
	hasObserved bool
}

var _ domain.Module = (*Module)(nil)
var _ domain.ShadowProvider = (*Module)(nil)

// New constructs a module in its default state.
func New(opts ...Option) *Module {
	m := &Module{logger: noopLogger{}}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ModuleID implements domain.Module.
func (m *Module) ModuleID() domain.ModuleID { return domain.ModulePZR }

// Initialize resets persistent state to defaults. State is seeded lazily from
// the first snapshot.
func (m *Module) Initialize() { m.reset() }

// Step is a no-op: the pressurizer is driven through StepAuthoritative.
func (m *Module) Step(float64) error { return nil }

// Shutdown resets persistent state to defaults.
func (m *Module) Shutdown() { m.reset() }

func (m *Module) reset() {
	m.state = State{}
	m.intent = domain.ControlIntent{}
	m.hasIntent = false
	m.observed = domain.ObservedEffect{}
	m.hasObserved = false
}

// State returns a copy of the persistent controller state.
func (m *Module) State() State { return m.state }

// Shadow reports the last observed pressure, level and mass ledger.
func (m *Module) Shadow() domain.ModuleShadowState {
	return domain.ModuleShadowState{
		PressurePsia:  m.observed.PressurePsia,
		LevelPct:      m.observed.LevelPct,
		MassLedgerLbm: m.observed.MassLedgerLbm,
	}
}

// StepAuthoritative computes the step's control intent from snap and emits
// the corresponding transfer intents on out.
func (m *Module) StepAuthoritative(step int64, snap *domain.PressurizerSnapshot, out domain.TransferRecorder) (domain.PressurizerOutputs, error) {
	if snap == nil {
		return domain.PressurizerOutputs{}, fmt.Errorf("%w: pressurizer snapshot", domain.ErrNilArgument)
	}
	if out == nil {
		return domain.PressurizerOutputs{}, fmt.Errorf("%w: plant bus", domain.ErrNilArgument)
	}

	if !m.state.Initialized || snap.SimTimeSec < m.state.LastSimTimeSec {
		m.seed(snap)
	}

	m.updateHold(snap.SimTimeSec)
	m.advanceMode(snap)

	setpoint := LevelSetpoint(snap.Solid, snap.PreDrainBubble, snap.TavgF)
	heaterKW := m.runHeaterPath(snap, setpoint)
	spray := updateSpray(m.state.Spray, snap)
	m.state.Spray = spray.state

	intent := domain.ControlIntent{
		HeaterPowerKW:        heaterKW,
		HeaterOn:             heaterKW > domain.EventThreshold,
		PIDOutput:            m.state.PID.Output,
		PIDActive:            m.state.PID.Active,
		PIDState:             m.state.PID,
		Spray:                spray.state,
		SprayFlowGpm:         spray.flowGpm,
		SprayCondensedLbm:    spray.condensed,
		HeaterMode:           m.state.HeaterMode,
		SmoothedHeaterOutput: m.state.SmoothedOutput,
		LevelSetpointPct:     setpoint,
		StartupHoldActive:    m.state.Hold.Active,
		HoldActivationLogged: m.state.Hold.ActivationLogged,
		HoldReleaseLogged:    m.state.Hold.ReleaseLogged,
	}

	auth := domain.AuthorityModularPZR
	if math.Abs(intent.HeaterPowerKW) > domain.EventThreshold {
		out.EmitEnergyTransfer(step, domain.SignalHeaterPower, domain.NodeGrid, domain.NodePZR, intent.HeaterPowerKW, true, auth)
	}
	if math.Abs(intent.SprayFlowGpm) > domain.EventThreshold {
		out.EmitFlowTransfer(step, domain.SignalSprayFlow, domain.NodeRCS, domain.NodePZR, intent.SprayFlowGpm, false, auth)
	}
	if math.Abs(intent.SprayCondensedLbm) > domain.EventThreshold {
		out.EmitMassTransfer(step, domain.SignalSprayCondensedMass, domain.NodePZRSteam, domain.NodePZRWater, intent.SprayCondensedLbm, false, auth)
	}

	m.state.LastSimTimeSec = snap.SimTimeSec
	m.intent = intent
	m.hasIntent = true
	m.hasObserved = false
	return domain.PendingOutputs(intent), nil
}

// CapturePostStepSnapshot joins the step's intent with the effect observed in
// post and emits the surge transfer. Insurge is RCS to PZR; outsurge is
// recorded PZR to RCS with a positive magnitude.
func (m *Module) CapturePostStepSnapshot(step int64, post *domain.PressurizerSnapshot, out domain.TransferRecorder) (domain.PressurizerOutputs, error) {
	if post == nil {
		return domain.PressurizerOutputs{}, fmt.Errorf("%w: post-step snapshot", domain.ErrNilArgument)
	}
	if out == nil {
		return domain.PressurizerOutputs{}, fmt.Errorf("%w: plant bus", domain.ErrNilArgument)
	}
	if !m.hasIntent {
		return domain.PressurizerOutputs{}, fmt.Errorf("%w: post-step capture before StepAuthoritative", domain.ErrInvalidOperation)
	}

	observed := domain.ObservedEffect{
		PressurePsia:   post.PressurePsia,
		LevelPct:       post.LevelPct,
		WaterVolumeFt3: post.WaterVolumeFt3,
		SteamVolumeFt3: post.SteamVolumeFt3,
		SurgeFlowGpm:   post.SurgeFlowGpm,
		MassLedgerLbm:  post.MassLedgerLbm,
	}
	surge := post.SurgeFlowGpm
	switch {
	case surge > domain.EventThreshold:
		out.EmitFlowTransfer(step, domain.SignalSurgeFlow, domain.NodeRCS, domain.NodePZR, surge, false, domain.AuthorityModularPZR)
	case surge < -domain.EventThreshold:
		out.EmitFlowTransfer(step, domain.SignalSurgeFlow, domain.NodePZR, domain.NodeRCS, -surge, false, domain.AuthorityModularPZR)
	}

	m.observed = observed
	m.hasObserved = true
	return domain.CombineOutputs(m.intent, observed), nil
}

// Outputs returns the latest outputs; HasObserved is false until the post-step
// capture for the current step has run.
func (m *Module) Outputs() domain.PressurizerOutputs {
	if m.hasObserved {
		return domain.CombineOutputs(m.intent, m.observed)
	}
	return domain.PendingOutputs(m.intent)
}

// seed replaces persistent state with the snapshot's view. Used on the first
// call and whenever sim time rewinds.
func (m *Module) seed(snap *domain.PressurizerSnapshot) {
	m.state = State{
		Initialized:    true,
		LastSimTimeSec: snap.SimTimeSec,
		Hold:           snap.Hold,
		HeaterMode:     snap.HeaterMode,
		SmoothedOutput: snap.SmoothedHeaterOutput,
		PID:            snap.HeaterPID,
		Spray:          snap.Spray,
	}
	if !m.state.HeaterMode.Valid() {
		m.state.HeaterMode = domain.HeaterOff
	}
}

func (m *Module) updateHold(simTime float64) {
	h := &m.state.Hold
	if !h.Active {
		return
	}
	if !h.ActivationLogged {
		h.ActivationLogged = true
		m.logger.Info("pressurizer startup hold active", "release_time_sec", h.ReleaseTimeSec)
	}
	if simTime < h.ReleaseTimeSec {
		return
	}
	h.Active = false
	if !h.ReleaseLogged {
		h.ReleaseLogged = true
		m.logger.Info("pressurizer startup hold released", "sim_time_sec", simTime)
	}
	m.transition(condHoldReleased)
}

func (m *Module) advanceMode(snap *domain.PressurizerSnapshot) {
	if snap.BubbleFormed && !snap.Solid {
		m.transition(condBubbleEstablished)
	}
	if finite(snap.PressurePsia) && snap.PressurePsia >= TransitionPressurePsia {
		if m.transition(condPressureAtHandoff) {
			m.state.PID = initPID(snap.PressurePsia)
		}
	}
}

func (m *Module) transition(cond condition) bool {
	next, ok := nextMode(m.state.HeaterMode, cond)
	if !ok {
		return false
	}
	m.logger.Info("pressurizer heater mode transition", "from", m.state.HeaterMode.String(), "to", next.String(), "condition", cond.String())
	m.state.HeaterMode = next
	return true
}

// runHeaterPath executes exactly one heater path and returns heater power.
func (m *Module) runHeaterPath(snap *domain.PressurizerSnapshot, levelSetpoint float64) float64 {
	switch selectPath(m.state.Hold.Active, m.state.HeaterMode) {
	case pathHold:
		m.state.PID.Active = false
		m.state.PID.Output = 0
		m.state.SmoothedOutput = 0
		return 0
	case pathPID:
		m.state.PID = updatePID(m.state.PID, snap.PressurePsia, snap.DtSec)
		frac := m.state.PID.Output
		if snap.LevelPct-levelSetpoint > BackupHeaterDeviationPct {
			frac = 1
		}
		if lowLevelTrip(snap) {
			frac = 0
		}
		return frac * HeaterCapacityKW
	default:
		m.state.PID.Active = false
		demand := calculatedDemand(m.state.HeaterMode)
		if lowLevelTrip(snap) {
			demand = 0
		}
		s := m.state.SmoothedOutput
		s += (demand - s) * lagAlpha(snap.DtSec, heaterSmoothingTauSec)
		m.state.SmoothedOutput = clamp01(s)
		return m.state.SmoothedOutput * HeaterCapacityKW
	}
}
