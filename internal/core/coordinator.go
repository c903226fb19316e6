// Package core hosts the simulation coordinator: per-step authority
// reconciliation between the legacy engine and extracted modules, the module
// registry, transfer-ledger construction and the unledgered-mutation audit.
package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"plantsim/internal/bridge"
	"plantsim/internal/bus"
	"plantsim/internal/compare"
	"plantsim/internal/modules/facade"
	"plantsim/internal/modules/pressurizer"
	"plantsim/pkg/domain"
)

const (
	opStep = "coordinator.step"
	opSink = "coordinator.sink"
)

// DefaultRCSLoops is the loop count given to the default RCS façade.
const DefaultRCSLoops = 4

// Coordinator steps a PlantStateOwner and the extracted modules. It is not
// safe for concurrent use.
type Coordinator struct {
	owner      domain.PlantStateOwner
	flags      domain.FeatureFlags
	bus        *bus.PlantBus
	pzr        *pressurizer.Module
	registry   *ModuleRegistry
	comparator *compare.Comparator
	rules      *domain.RulesEngine

	logger     Logger
	clock      Clock
	metrics    MetricsRecorder
	tracer     Tracer
	sinks      []StepSink
	runID      string
	tolerances domain.Tolerances
	extraRules []domain.Rule
	overrides  []domain.Module

	initialized  bool
	step         int64
	lastLedger   domain.TransferLedger
	results      []domain.ComparatorResult
	sinkFailures int64
}

// NewCoordinator constructs a coordinator over owner. flags is copied; only
// ResetFlags changes the coordinator's copy afterwards.
func NewCoordinator(owner domain.PlantStateOwner, flags domain.FeatureFlags, opts ...Option) (*Coordinator, error) {
	if owner == nil {
		return nil, fmt.Errorf("%w: plant state owner", domain.ErrNilArgument)
	}
	c := &Coordinator{
		owner:      owner,
		flags:      flags,
		bus:        bus.New(),
		logger:     noopLogger{},
		clock:      systemClock{},
		metrics:    noopMetrics{},
		tracer:     noopTracer{},
		tolerances: domain.DefaultTolerances(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.runID == "" {
		c.runID = uuid.NewString()
	}
	c.pzr = pressurizer.New(pressurizer.WithLogger(c.logger))
	c.comparator = compare.New(c.tolerances)

	c.rules = NewDefaultRulesEngine()
	for _, r := range c.extraRules {
		c.rules.Register(r)
	}

	reg, err := c.defaultRegistry()
	if err != nil {
		return nil, err
	}
	for _, m := range c.overrides {
		if m.ModuleID() == domain.ModulePZR {
			return nil, fmt.Errorf("%w: the pressurizer module is built in and cannot be replaced", domain.ErrInvalidArgument)
		}
		if err := reg.Replace(m); err != nil {
			return nil, err
		}
	}
	c.registry = reg
	return c, nil
}

func (c *Coordinator) defaultRegistry() (*ModuleRegistry, error) {
	plant := func() domain.PlantState { return c.owner.ReadFields().Plant }
	rcsFacade, err := facade.NewRCS(c.legacyShadow, plant, DefaultRCSLoops)
	if err != nil {
		return nil, err
	}
	builtin := map[domain.ModuleID]domain.Module{
		domain.ModuleReactor: facade.NewReactor(c.legacyShadow),
		domain.ModuleRCP:     facade.NewRCP(c.legacyShadow),
		domain.ModuleRCS:     rcsFacade,
		domain.ModulePZR:     c.pzr,
		domain.ModuleCVCS:    facade.NewCVCS(c.legacyShadow),
		domain.ModuleRHR:     facade.NewRHR(c.legacyShadow),
	}
	reg := NewModuleRegistry()
	for _, id := range domain.DefaultModuleOrder {
		m, ok := builtin[id]
		if !ok {
			return nil, fmt.Errorf("%w: no built-in module for %s", domain.ErrInvalidArgument, id)
		}
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Step advances the plant by dt seconds and returns the step's ledger. A
// single-writer violation fails the step before any module executes.
func (c *Coordinator) Step(ctx context.Context, dt float64) (domain.TransferLedger, error) {
	ctx = ContextWithStep(ctx, c.step+1)
	ctx, span := c.tracer.Start(ctx, opStep)
	started := c.clock.Now()
	ledger, err := c.runStep(ctx, dt)
	span.End(err)
	c.metrics.Observe(ctx, opStep, err == nil, c.clock.Now().Sub(started))
	return ledger, err
}

func (c *Coordinator) runStep(ctx context.Context, dt float64) (domain.TransferLedger, error) {
	if !c.initialized {
		c.registry.InitializeAll()
		c.initialized = true
	}
	c.step++
	c.bus.ClearStep()
	c.results = nil
	step := c.step

	if err := c.flags.Validate(); err != nil {
		c.logger.Error("single-writer violation", "run_id", c.runID, "step", step, "error", err)
		return domain.TransferLedger{}, fmt.Errorf("step %d: %w", step, err)
	}

	pzrAuthoritative := c.flags.PZR.UseModular
	if pzrAuthoritative {
		snap, err := bridge.PreStepSnapshot(c.owner, dt)
		if err != nil {
			return domain.TransferLedger{}, fmt.Errorf("step %d: %w", step, err)
		}
		out, err := c.pzr.StepAuthoritative(step, &snap, c.bus)
		if err != nil {
			return domain.TransferLedger{}, fmt.Errorf("step %d: pressurizer: %w", step, err)
		}
		c.owner.ApplyModularPressurizerOutputs(out.Intent)
	}

	if err := c.owner.RunLegacySimulationStep(dt, pzrAuthoritative); err != nil {
		return domain.TransferLedger{}, fmt.Errorf("step %d: legacy step: %w", step, err)
	}
	if le, ok := c.owner.(domain.LedgeringEngine); ok {
		le.RecordLegacyTransfers(step, c.bus)
	}

	fields, err := bridge.Read(c.owner)
	if err != nil {
		return domain.TransferLedger{}, fmt.Errorf("step %d: %w", step, err)
	}
	if pzrAuthoritative {
		post := bridge.BuildPostStepSnapshot(fields, dt)
		if _, err := c.pzr.CapturePostStepSnapshot(step, &post, c.bus); err != nil {
			return domain.TransferLedger{}, fmt.Errorf("step %d: pressurizer capture: %w", step, err)
		}
	}

	legacy := func() domain.ModuleShadowState { return bridge.ShadowFromFields(fields) }
	if err := c.runModules(step, dt, pzrAuthoritative, legacy); err != nil {
		return domain.TransferLedger{}, err
	}

	plant := fields.Plant
	events := c.bus.SnapshotEvents()
	audit, err := c.rules.Evaluate(ctx, stepView{step: step, plant: plant, events: events})
	if err != nil {
		return domain.TransferLedger{}, fmt.Errorf("step %d: audit: %w", step, err)
	}
	for _, v := range audit.Violations {
		c.logger.Warn("audit violation", "run_id", c.runID, "step", step, "rule", v.Rule, "signal", string(v.Signal), "reason", v.Message)
	}

	ledger := domain.TransferLedger{
		RunID:                      c.runID,
		Step:                       step,
		SimTimeSec:                 plant.SimTimeSec,
		Events:                     events,
		UnledgeredMutationDetected: audit.HasMutation(),
		Reason:                     audit.MutationReason(),
		Violations:                 audit.Violations,
	}
	c.lastLedger = ledger
	c.publish(ctx, ledger, plant)
	return ledger.Clone(), nil
}

// runModules steps switched-on modules in registry order and runs their
// comparators against the post-step legacy capture.
func (c *Coordinator) runModules(step int64, dt float64, pzrStepped bool, legacy compare.Capture) error {
	for _, m := range c.registry.Ordered() {
		id := m.ModuleID()
		sub := c.flags.For(id)
		if !sub.UseModular {
			continue
		}
		if !(id == domain.ModulePZR && pzrStepped) {
			if err := m.Step(dt); err != nil {
				c.logger.Error("module step failed", "run_id", c.runID, "step", step, "module", string(id), "error", err)
				return fmt.Errorf("step %d: module %s: %w", step, id, err)
			}
		}
		if !sub.EnableComparator {
			continue
		}
		res := c.comparator.Compare(step, id, legacy, shadowOf(m, legacy))
		if !res.Pass {
			c.logger.Warn("comparator mismatch", "run_id", c.runID, "step", step, "module", string(id),
				"pressure_delta", res.PressureDelta, "level_delta", res.LevelDelta, "mass_delta", res.MassDelta)
		}
		c.results = append(c.results, res)
	}
	return nil
}

func (c *Coordinator) legacyShadow() domain.ModuleShadowState {
	return bridge.ShadowFromFields(c.owner.ReadFields())
}

func shadowOf(m domain.Module, fallback compare.Capture) compare.Capture {
	if sp, ok := m.(domain.ShadowProvider); ok {
		return sp.Shadow
	}
	return fallback
}

func (c *Coordinator) publish(ctx context.Context, ledger domain.TransferLedger, plant domain.PlantState) {
	if len(c.sinks) == 0 {
		return
	}
	record := domain.StepRecord{
		RunID:       c.runID,
		Ledger:      ledger,
		Comparisons: c.ComparatorResults(),
		Plant:       plant,
		RecordedAt:  c.clock.Now(),
	}
	for _, sink := range c.sinks {
		started := c.clock.Now()
		err := sink.Record(ctx, record.Clone())
		c.metrics.Observe(ctx, opSink, err == nil, c.clock.Now().Sub(started))
		if err != nil {
			c.sinkFailures++
			c.logger.Error("step sink failed", "run_id", c.runID, "step", ledger.Step, "error", err)
		}
	}
}

// StepIndex returns the index of the last started step.
func (c *Coordinator) StepIndex() int64 { return c.step }

// LastLedger returns a copy of the last completed step's ledger.
func (c *Coordinator) LastLedger() domain.TransferLedger { return c.lastLedger.Clone() }

// ComparatorResults returns the comparisons made during the last step.
func (c *Coordinator) ComparatorResults() []domain.ComparatorResult {
	if len(c.results) == 0 {
		return nil
	}
	out := make([]domain.ComparatorResult, len(c.results))
	copy(out, c.results)
	return out
}

// Flags returns a copy of the coordinator's feature flags.
func (c *Coordinator) Flags() domain.FeatureFlags { return c.flags }

// ResetFlags returns every flag to legacy-only.
func (c *Coordinator) ResetFlags() {
	c.flags.ResetAll()
	c.logger.Info("feature flags reset", "run_id", c.runID)
}

// RunID returns the identifier stamped on ledgers and records.
func (c *Coordinator) RunID() string { return c.runID }

// Pressurizer returns the pressurizer module.
func (c *Coordinator) Pressurizer() *pressurizer.Module { return c.pzr }

// Registry returns the module registry.
func (c *Coordinator) Registry() *ModuleRegistry { return c.registry }

// SinkFailures counts step sink errors since construction.
func (c *Coordinator) SinkFailures() int64 { return c.sinkFailures }

// Shutdown shuts every module down. The next Step re-initializes them.
func (c *Coordinator) Shutdown() {
	if !c.initialized {
		return
	}
	c.registry.ShutdownAll()
	c.initialized = false
}
