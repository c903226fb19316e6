// Package legacy is a lumped-parameter four-loop primary plant model that owns
// the canonical mutable plant state. It implements domain.PlantStateOwner so
// the coordinator can migrate pressurizer control away from it.
package legacy

import (
	"math"

	"plantsim/internal/rcs"
	"plantsim/pkg/domain"
)

const (
	pzrTotalVolumeFt3 = 1800.0
	rcsWaterMassLbm   = 520000.0
	rcsExpansionFt3F  = 34.5
	galPerFt3         = 7.48052
	boundaryLbmPerGal = 8.3
	rcpHeatPerPumpMW  = rcs.StandardRCPHeatMW / 4
	heatLossMWPerF    = 0.003
	metalBtuPerF      = 1.0e6

	heaterPsiPerKWs  = 0.0006
	ambientPsiPerSec = 0.09
	sprayPsiPerGpmS  = 0.005
	surgePsiPerGpmS  = 0.002
	solidPsiPerGpmS  = 0.5
	steamDensityLbm  = 6.0
	waterDensityLbm  = 37.0
	conservationBand = 50.0
)

// Config seeds an Engine.
type Config struct {
	Loops               int
	InitialTavgF        float64
	InitialPressurePsia float64
	InitialLevelPct     float64
	RCPCount            int
	HeaterMode          domain.HeaterMode
	StartupHoldSec      float64
	ChargingGpm         float64
	LetdownGpm          float64
	ReactorPowerMWt     float64
	RHRHeatMW           float64
	BoronPPM            float64
	Solid               bool
}

// DefaultConfig is a hot standby pressurization: bubble drawn, four pumps
// running, heaters pressurizing toward normal operating pressure.
func DefaultConfig() Config {
	return Config{
		Loops:               4,
		InitialTavgF:        547,
		InitialPressurePsia: 2050,
		InitialLevelPct:     30,
		RCPCount:            4,
		HeaterMode:          domain.HeaterPressurizeAuto,
		StartupHoldSec:      30,
		ChargingGpm:         87,
		LetdownGpm:          75,
		BoronPPM:            1200,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithoutStepSnapshots makes StepSnapshot report no bundle so callers derive
// snapshots through the bridge.
func WithoutStepSnapshots() Option {
	return func(e *Engine) { e.bundles = false }
}

// WithUnledgeredSurge stops the engine from recording its own surge transfer.
// Used to exercise the unledgered-mutation audit.
func WithUnledgeredSurge() Option {
	return func(e *Engine) { e.dropSurge = true }
}

// stepTransfers holds the quantities moved by the last integration.
type stepTransfers struct {
	bypassed    bool
	heaterKW    float64
	sprayGpm    float64
	condensed   float64
	surgeGpm    float64
	boundaryIn  float64
	boundaryOut float64
}

// Engine is the legacy plant model. It is not safe for concurrent use.
type Engine struct {
	cfg   Config
	loops *rcs.LoopManager

	step   int64
	plant  domain.PlantState
	pzr    domain.PressurizerFields
	intent *domain.ControlIntent

	rcsWaterLbm float64
	pzrWaterLbm float64
	steamLbm    float64
	initialLbm  float64
	netBoundary float64

	last      stepTransfers
	bundles   bool
	dropSurge bool
}

var _ domain.PlantStateOwner = (*Engine)(nil)
var _ domain.LedgeringEngine = (*Engine)(nil)

// New constructs an engine from cfg.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Loops == 0 {
		cfg.Loops = 4
	}
	loops, err := rcs.NewLoopManager(cfg.Loops)
	if err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg, loops: loops, bundles: true}
	for _, opt := range opts {
		opt(e)
	}
	e.reset()
	return e, nil
}

func (e *Engine) reset() {
	cfg := e.cfg
	water := clamp(cfg.InitialLevelPct, 0, 100) / 100 * pzrTotalVolumeFt3
	steam := pzrTotalVolumeFt3 - water
	if cfg.Solid {
		water, steam = pzrTotalVolumeFt3, 0
	}
	e.step = 0
	e.intent = nil
	e.last = stepTransfers{}
	e.pzr = domain.PressurizerFields{
		WaterVolumeFt3: water,
		SteamVolumeFt3: steam,
		Solid:          cfg.Solid,
		BubbleFormed:   !cfg.Solid,
		HeaterMode:     cfg.HeaterMode,
		Hold: domain.StartupHoldState{
			Active:         cfg.StartupHoldSec > 0,
			ReleaseTimeSec: cfg.StartupHoldSec,
		},
	}
	e.rcsWaterLbm = rcsWaterMassLbm
	e.pzrWaterLbm = water * waterDensityLbm
	e.steamLbm = steam * steamDensityLbm / 10
	e.initialLbm = e.rcsWaterLbm + e.pzrWaterLbm + e.steamLbm
	e.netBoundary = 0
	e.plant = domain.PlantState{
		PressurePsia:    cfg.InitialPressurePsia,
		TavgF:           cfg.InitialTavgF,
		PzrLevelPct:     water / pzrTotalVolumeFt3 * 100,
		ChargingFlowGpm: cfg.ChargingGpm,
		LetdownFlowGpm:  cfg.LetdownGpm,
		ReactorPowerMWt: cfg.ReactorPowerMWt,
		RCPCount:        cfg.RCPCount,
		BoronPPM:        cfg.BoronPPM,
		VCSState:        "NORMAL",
	}
	e.refreshDerived()
}

// Step returns the engine's own step counter.
func (e *Engine) Step() int64 { return e.step }

// ReadFields implements domain.PlantStateOwner.
func (e *Engine) ReadFields() domain.EngineFields {
	return domain.EngineFields{Plant: e.plant, Pressurizer: e.pzr}
}

// StepSnapshot implements domain.PlantStateOwner with a bundle of the current
// pre-step state.
func (e *Engine) StepSnapshot() (domain.StepSnapshot, bool) {
	if !e.bundles {
		return domain.StepSnapshot{}, false
	}
	p, z := e.plant, e.pzr
	return domain.StepSnapshot{
		Step:           e.step,
		Plant:          p,
		HasPressurizer: true,
		Pressurizer: domain.PressurizerSnapshot{
			SimTimeSec:            p.SimTimeSec,
			PressurePsia:          p.PressurePsia,
			PressureRatePsiPerSec: z.PressureRatePsiPerSec,
			LevelPct:              p.PzrLevelPct,
			TavgF:                 p.TavgF,
			TcoldF:                p.TcoldF,
			TpzrF:                 p.TpzrF,
			WaterVolumeFt3:        z.WaterVolumeFt3,
			SteamVolumeFt3:        z.SteamVolumeFt3,
			RCPCount:              p.RCPCount,
			Solid:                 z.Solid,
			BubbleFormed:          z.BubbleFormed,
			PreDrainBubble:        z.PreDrainBubble,
			Hold:                  z.Hold,
			HeaterMode:            z.HeaterMode,
			SmoothedHeaterOutput:  z.SmoothedHeaterOutput,
			HeaterPID:             z.HeaterPID,
			Spray:                 z.Spray,
			SprayOutputs:          z.SprayOutputs,
		},
	}, true
}

// ApplyModularPressurizerOutputs writes the modular control intent onto the
// engine's fields. It is consumed by the next bypassed integration.
func (e *Engine) ApplyModularPressurizerOutputs(intent domain.ControlIntent) {
	cp := intent
	e.intent = &cp
	e.pzr.HeaterMode = intent.HeaterMode
	e.pzr.SmoothedHeaterOutput = intent.SmoothedHeaterOutput
	e.pzr.HeaterPID = intent.PIDState
	e.pzr.Spray = intent.Spray
	e.pzr.SprayOutputs = domain.SprayOutputs{FlowGpm: intent.SprayFlowGpm, CondensedMassLbm: intent.SprayCondensedLbm}
	e.pzr.Hold.Active = intent.StartupHoldActive
	e.pzr.Hold.ActivationLogged = intent.HoldActivationLogged
	e.pzr.Hold.ReleaseLogged = intent.HoldReleaseLogged
	e.plant.HeaterPowerKW = intent.HeaterPowerKW
	e.plant.SprayFlowGpm = intent.SprayFlowGpm
}

// RunLegacySimulationStep integrates one step of dt seconds. When
// bypassPressurizerControl is set the applied modular intent drives heaters
// and spray instead of the engine's own control.
func (e *Engine) RunLegacySimulationStep(dt float64, bypassPressurizerControl bool) error {
	if dt < 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		dt = 0
	}
	e.step++
	tr := stepTransfers{bypassed: bypassPressurizerControl}

	if bypassPressurizerControl && e.intent != nil {
		tr.heaterKW = e.intent.HeaterPowerKW
		tr.sprayGpm = e.intent.SprayFlowGpm
		tr.condensed = e.intent.SprayCondensedLbm
	} else {
		ctl := legacyControl(&e.pzr, e.plant, dt)
		tr.heaterKW, tr.sprayGpm, tr.condensed = ctl.heaterKW, ctl.sprayGpm, ctl.condensed
	}
	e.intent = nil

	e.integrate(dt, &tr)
	e.last = tr
	return nil
}

func (e *Engine) integrate(dt float64, tr *stepTransfers) {
	p := &e.plant
	prevPressure := p.PressurePsia

	rhrHeat := 0.0
	if p.RHRState == "IN_SERVICE" {
		rhrHeat = e.cfg.RHRHeatMW
	}
	qNetMW := float64(p.RCPCount)*rcpHeatPerPumpMW + p.ReactorPowerMWt + tr.heaterKW/1000 -
		rhrHeat - heatLossMWPerF*math.Max(p.TavgF-100, 0)
	capacity := e.rcsWaterLbm*1.2 + metalBtuPerF
	dT := 0.0
	if capacity > 0 {
		dT = qNetMW * 947.817 * dt / capacity
	}
	p.TavgF += dT

	// Thermal expansion plus net charging lands in the pressurizer.
	expansionGpm := 0.0
	if dt > 0 {
		expansionGpm = dT / dt * rcsExpansionFt3F * galPerFt3 * 60
	}
	surge := expansionGpm + p.ChargingFlowGpm - p.LetdownFlowGpm
	tr.surgeGpm = surge
	tr.boundaryIn = p.ChargingFlowGpm * dt / 60 * boundaryLbmPerGal
	tr.boundaryOut = p.LetdownFlowGpm * dt / 60 * boundaryLbmPerGal

	surgeFt3 := surge * dt / 60 / galPerFt3
	z := &e.pzr
	if !z.Solid {
		z.WaterVolumeFt3 = clamp(z.WaterVolumeFt3+surgeFt3, 0, pzrTotalVolumeFt3)
		z.SteamVolumeFt3 = pzrTotalVolumeFt3 - z.WaterVolumeFt3
	}
	surgeLbm := surgeFt3 * waterDensityLbm
	e.rcsWaterLbm += tr.boundaryIn - tr.boundaryOut - surgeLbm
	e.pzrWaterLbm += surgeLbm + tr.condensed
	e.steamLbm -= tr.condensed
	e.netBoundary += tr.boundaryIn - tr.boundaryOut

	dP := tr.heaterKW*heaterPsiPerKWs - ambientPsiPerSec - tr.sprayGpm*sprayPsiPerGpmS + surge*surgePsiPerGpmS
	if z.Solid {
		dP = surge * solidPsiPerGpmS
	}
	p.PressurePsia = math.Max(14.7, p.PressurePsia+dP*dt)
	if dt > 0 {
		z.PressureRatePsiPerSec = (p.PressurePsia - prevPressure) / dt
	}

	p.SimTimeSec += dt
	p.SurgeFlowGpm = surge
	p.HeaterPowerKW = tr.heaterKW
	p.SprayFlowGpm = tr.sprayGpm
	z.SprayOutputs = domain.SprayOutputs{FlowGpm: tr.sprayGpm, CondensedMassLbm: tr.condensed}
	e.refreshDerived()
}

// refreshDerived recomputes loop temperatures, level, mass bookkeeping and
// the textual descriptors from the integrated state.
func (e *Engine) refreshDerived() {
	p := &e.plant
	inputs := make([]rcs.LoopInput, e.loops.LoopCount())
	for i := range inputs {
		running := 0
		if i < p.RCPCount {
			running = 1
		}
		inputs[i] = rcs.LoopInput{
			TavgF:        p.TavgF,
			PressurePsia: p.PressurePsia,
			RCPsRunning:  running,
			RCPHeatMW:    float64(running) * rcpHeatPerPumpMW,
			TpzrF:        p.TpzrF,
		}
	}
	_ = e.loops.UpdateAll(inputs)
	agg := e.loops.Aggregate()
	p.ThotF = agg.AverageThotF
	p.TcoldF = agg.AverageTcoldF
	p.TsatF = saturationTempF(p.PressurePsia)
	p.TpzrF = p.TsatF
	p.PzrLevelPct = e.pzr.WaterVolumeFt3 / pzrTotalVolumeFt3 * 100

	components := e.rcsWaterLbm + e.pzrWaterLbm + e.steamLbm
	expected := e.initialLbm + e.netBoundary
	p.Mass = domain.MassConservation{
		LedgerLbm:        expected,
		ComponentsLbm:    components,
		DriftLbm:         components - expected,
		BoundaryErrorLbm: 0,
		ExpectedLbm:      expected,
		TotalSystemLbm:   components,
		ConservationOK:   math.Abs(components-expected) <= conservationBand,
	}

	if p.TavgF < 350 && p.PressurePsia < 425 {
		p.RHRState = "IN_SERVICE"
	} else {
		p.RHRState = "ISOLATED"
	}
	if p.RHRState == "IN_SERVICE" {
		p.RHRHeatMW = e.cfg.RHRHeatMW
	} else {
		p.RHRHeatMW = 0
	}
	p.PlantMode, p.PlantModeName = plantMode(p.TavgF, p.ReactorPowerMWt)
	p.HeatupPhase = heatupPhase(e.pzr, p.PressurePsia)
}

// RecordLegacyTransfers implements domain.LedgeringEngine. Boundary mass is
// always the engine's to record; pressurizer transfers only when its own
// control ran.
func (e *Engine) RecordLegacyTransfers(step int64, rec domain.TransferRecorder) {
	if rec == nil {
		return
	}
	auth := domain.AuthorityLegacy
	tr := e.last
	if tr.boundaryIn > domain.EventThreshold {
		rec.EmitMassTransfer(step, domain.SignalPrimaryBoundaryInMass, domain.NodeCVCS, domain.NodeRCS, tr.boundaryIn, true, auth)
	}
	if tr.boundaryOut > domain.EventThreshold {
		rec.EmitMassTransfer(step, domain.SignalPrimaryBoundaryOutMass, domain.NodeRCS, domain.NodeCVCS, tr.boundaryOut, true, auth)
	}
	if tr.bypassed {
		return
	}
	if math.Abs(tr.heaterKW) > domain.EventThreshold {
		rec.EmitEnergyTransfer(step, domain.SignalHeaterPower, domain.NodeGrid, domain.NodePZR, tr.heaterKW, true, auth)
	}
	if math.Abs(tr.sprayGpm) > domain.EventThreshold {
		rec.EmitFlowTransfer(step, domain.SignalSprayFlow, domain.NodeRCS, domain.NodePZR, tr.sprayGpm, false, auth)
	}
	if math.Abs(tr.condensed) > domain.EventThreshold {
		rec.EmitMassTransfer(step, domain.SignalSprayCondensedMass, domain.NodePZRSteam, domain.NodePZRWater, tr.condensed, false, auth)
	}
	if e.dropSurge {
		return
	}
	switch {
	case tr.surgeGpm > domain.EventThreshold:
		rec.EmitFlowTransfer(step, domain.SignalSurgeFlow, domain.NodeRCS, domain.NodePZR, tr.surgeGpm, false, auth)
	case tr.surgeGpm < -domain.EventThreshold:
		rec.EmitFlowTransfer(step, domain.SignalSurgeFlow, domain.NodePZR, domain.NodeRCS, -tr.surgeGpm, false, auth)
	}
}

// Loops exposes the engine's loop manager aggregate.
func (e *Engine) Loops() rcs.Aggregate { return e.loops.Aggregate() }

// saturationTempF is a power-law fit of water saturation temperature,
// good to a few degrees between atmospheric and 2500 psia.
func saturationTempF(psia float64) float64 {
	if psia <= 0 {
		return 0
	}
	return 115.1 * math.Pow(psia, 0.225)
}

func plantMode(tavgF, powerMWt float64) (int, string) {
	switch {
	case powerMWt > 170:
		return 1, "POWER_OPERATION"
	case powerMWt > 0:
		return 2, "STARTUP"
	case tavgF >= 350:
		return 3, "HOT_STANDBY"
	case tavgF > 200:
		return 4, "HOT_SHUTDOWN"
	default:
		return 5, "COLD_SHUTDOWN"
	}
}

func heatupPhase(z domain.PressurizerFields, psia float64) string {
	switch {
	case z.Solid:
		return "SOLID_PLANT"
	case !z.BubbleFormed || z.PreDrainBubble:
		return "BUBBLE_FORMATION"
	case psia < 2200:
		return "PRESSURIZATION"
	default:
		return "NORMAL_OPERATING_PRESSURE"
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
