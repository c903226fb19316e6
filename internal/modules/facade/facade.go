// Package facade provides the data-free module façades for subsystems whose
// physics still lives in the legacy engine, plus the adapter that exposes the
// legacy engine itself through the module contract.
package facade

import (
	"fmt"

	"plantsim/pkg/domain"
)

// ShadowFunc captures the legacy shadow a façade reports as its own.
type ShadowFunc func() domain.ModuleShadowState

// Facade is a lifecycle-only module. Until a subsystem's physics is migrated
// its Step does nothing and its shadow is the legacy engine's.
type Facade struct {
	id          domain.ModuleID
	shadow      ShadowFunc
	initialized bool
	steps       int64
}

var _ domain.Module = (*Facade)(nil)
var _ domain.ShadowProvider = (*Facade)(nil)

// New constructs a façade for id. A nil shadow reports zero values.
func New(id domain.ModuleID, shadow ShadowFunc) *Facade {
	return &Facade{id: id, shadow: shadow}
}

// NewReactor returns the reactor façade.
func NewReactor(shadow ShadowFunc) *Facade { return New(domain.ModuleReactor, shadow) }

// NewRCP returns the reactor coolant pump façade.
func NewRCP(shadow ShadowFunc) *Facade { return New(domain.ModuleRCP, shadow) }

// NewCVCS returns the chemical and volume control façade.
func NewCVCS(shadow ShadowFunc) *Facade { return New(domain.ModuleCVCS, shadow) }

// NewRHR returns the residual heat removal façade.
func NewRHR(shadow ShadowFunc) *Facade { return New(domain.ModuleRHR, shadow) }

// ModuleID implements domain.Module.
func (f *Facade) ModuleID() domain.ModuleID { return f.id }

// Initialize marks the façade ready and clears its step count.
func (f *Facade) Initialize() {
	f.initialized = true
	f.steps = 0
}

// Step counts a step. It fails before Initialize.
func (f *Facade) Step(float64) error {
	if !f.initialized {
		return fmt.Errorf("%w: %s stepped before Initialize", domain.ErrInvalidOperation, f.id)
	}
	f.steps++
	return nil
}

// Shutdown returns the façade to its constructed state.
func (f *Facade) Shutdown() {
	f.initialized = false
	f.steps = 0
}

// Steps reports how many times the façade was stepped since Initialize.
func (f *Facade) Steps() int64 { return f.steps }

// Initialized reports whether Initialize has run since the last Shutdown.
func (f *Facade) Initialized() bool { return f.initialized }

// Shadow reports the legacy-derived shadow, or zero values without one.
func (f *Facade) Shadow() domain.ModuleShadowState {
	if f.shadow == nil {
		return domain.ModuleShadowState{}
	}
	return f.shadow()
}
