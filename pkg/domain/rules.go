package domain

import (
	"context"
	"strings"
)

// Severity captures audit rule outcomes.
type Severity string

// Audit severities decide how a violation surfaces on the ledger.
const (
	// SeverityMutation marks the step as having an unledgered mutation.
	SeverityMutation Severity = "unledgered_mutation"
	// SeverityWarn is surfaced to operators but does not flag the ledger.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed audit rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Signal   SignalKind `json:"signal,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasMutation returns true if any violation flags an unledgered mutation.
func (r Result) HasMutation() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityMutation {
			return true
		}
	}
	return false
}

// MutationReason joins the messages of all mutation violations.
func (r Result) MutationReason() string {
	var parts []string
	for _, v := range r.Violations {
		if v.Severity == SeverityMutation {
			parts = append(parts, v.Message)
		}
	}
	return strings.Join(parts, "; ")
}

// StepView provides read-only access to a completed step for audit rules.
type StepView interface {
	Step() int64
	Plant() PlantState
	HasSignal(signal SignalKind, quantity QuantityType) bool
	Events() []TransferEvent
}

// Rule defines an audit evaluated after the engine has integrated a step.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view StepView) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	if rule == nil {
		return
	}
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rules in evaluation order.
func (e *RulesEngine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view StepView) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
