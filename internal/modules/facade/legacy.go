package facade

import (
	"fmt"

	"plantsim/internal/bridge"
	"plantsim/pkg/domain"
)

//plantsim:legacy-owner

// LegacyAdapter exposes the whole legacy engine as a module. It is used when
// the coordinator is disabled and the engine runs on its own.
type LegacyAdapter struct {
	owner       domain.PlantStateOwner
	initialized bool
}

var _ domain.Module = (*LegacyAdapter)(nil)
var _ domain.ShadowProvider = (*LegacyAdapter)(nil)

// NewLegacyAdapter wraps owner.
func NewLegacyAdapter(owner domain.PlantStateOwner) (*LegacyAdapter, error) {
	if owner == nil {
		return nil, fmt.Errorf("%w: plant state owner", domain.ErrNilArgument)
	}
	return &LegacyAdapter{owner: owner}, nil
}

// ModuleID implements domain.Module.
func (a *LegacyAdapter) ModuleID() domain.ModuleID { return domain.ModuleLegacy }

// Initialize marks the adapter ready.
func (a *LegacyAdapter) Initialize() { a.initialized = true }

// Step runs a full legacy integration with the engine's own pressurizer control.
func (a *LegacyAdapter) Step(dt float64) error {
	if !a.initialized {
		a.Initialize()
	}
	return a.owner.RunLegacySimulationStep(dt, false)
}

// Shutdown marks the adapter stopped. The engine keeps its state.
func (a *LegacyAdapter) Shutdown() { a.initialized = false }

// Shadow reads the engine's pressure, level and mass ledger.
func (a *LegacyAdapter) Shadow() domain.ModuleShadowState {
	return bridge.ShadowFromFields(a.owner.ReadFields())
}

// Plant returns the engine's current plant projection.
func (a *LegacyAdapter) Plant() domain.PlantState { return a.owner.ReadFields().Plant }
