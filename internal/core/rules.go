package core

import (
	"context"
	"fmt"
	"math"

	"plantsim/pkg/domain"
)

// Audit rule names.
const (
	RuleUnledgeredSurgeFlow   = "unledgered_surge_flow"
	RuleUnledgeredSprayFlow   = "unledgered_spray_flow"
	RuleUnledgeredHeaterPower = "unledgered_heater_power"
	RuleMassConservation      = "mass_conservation"
)

// NewDefaultRulesEngine builds a rules engine with the built-in audit set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewUnledgeredSurgeFlowRule())
	engine.Register(NewUnledgeredSprayFlowRule())
	engine.Register(NewUnledgeredHeaterPowerRule())
	engine.Register(NewMassConservationRule())
	return engine
}

// NewUnledgeredSurgeFlowRule flags surge flow with no surge transfer recorded.
func NewUnledgeredSurgeFlowRule() domain.Rule {
	return unledgeredRule{
		name:     RuleUnledgeredSurgeFlow,
		signal:   domain.SignalSurgeFlow,
		quantity: domain.QuantityFlow,
		value:    func(p domain.PlantState) float64 { return p.SurgeFlowGpm },
	}
}

// NewUnledgeredSprayFlowRule flags spray flow with no spray transfer recorded.
func NewUnledgeredSprayFlowRule() domain.Rule {
	return unledgeredRule{
		name:     RuleUnledgeredSprayFlow,
		signal:   domain.SignalSprayFlow,
		quantity: domain.QuantityFlow,
		value:    func(p domain.PlantState) float64 { return p.SprayFlowGpm },
	}
}

// NewUnledgeredHeaterPowerRule flags heater power with no energy transfer recorded.
func NewUnledgeredHeaterPowerRule() domain.Rule {
	return unledgeredRule{
		name:     RuleUnledgeredHeaterPower,
		signal:   domain.SignalHeaterPower,
		quantity: domain.QuantityEnergy,
		value:    func(p domain.PlantState) float64 { return p.HeaterPowerKW },
	}
}

type unledgeredRule struct {
	name     string
	signal   domain.SignalKind
	quantity domain.QuantityType
	value    func(domain.PlantState) float64
}

func (r unledgeredRule) Name() string { return r.name }

func (r unledgeredRule) Evaluate(_ context.Context, view domain.StepView) (domain.Result, error) {
	v := r.value(view.Plant())
	if !(math.Abs(v) > domain.EventThreshold) || view.HasSignal(r.signal, r.quantity) {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     r.name,
		Severity: domain.SeverityMutation,
		Message:  fmt.Sprintf("%s changed by %.6g with no %s transfer on the bus", r.signal, v, r.quantity),
		Signal:   r.signal,
	}}}, nil
}

// NewMassConservationRule surfaces the engine's own conservation verdict. It
// does not mark the step as an unledgered mutation.
func NewMassConservationRule() domain.Rule {
	return massConservationRule{}
}

type massConservationRule struct{}

func (massConservationRule) Name() string { return RuleMassConservation }

func (massConservationRule) Evaluate(_ context.Context, view domain.StepView) (domain.Result, error) {
	m := view.Plant().Mass
	if m.ConservationOK {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{
		Rule:     RuleMassConservation,
		Severity: domain.SeverityWarn,
		Message:  fmt.Sprintf("primary mass drift %.3f lbm (components %.1f, expected %.1f)", m.DriftLbm, m.ComponentsLbm, m.ExpectedLbm),
	}}}, nil
}

// stepView is the read-only view audit rules evaluate against.
type stepView struct {
	step   int64
	plant  domain.PlantState
	events []domain.TransferEvent
}

func (v stepView) Step() int64              { return v.step }
func (v stepView) Plant() domain.PlantState { return v.plant }

func (v stepView) HasSignal(signal domain.SignalKind, quantity domain.QuantityType) bool {
	for _, ev := range v.events {
		if ev.Signal == signal && ev.Quantity == quantity {
			return true
		}
	}
	return false
}

func (v stepView) Events() []domain.TransferEvent {
	out := make([]domain.TransferEvent, len(v.events))
	copy(out, v.events)
	return out
}
