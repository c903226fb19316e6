package core

import (
	"fmt"

	"plantsim/pkg/domain"
)

// ModuleRegistry holds modules in execution order. Adding a module is a
// registration change; the coordinator iterates the registry once per step.
type ModuleRegistry struct {
	order   []domain.ModuleID
	modules map[domain.ModuleID]domain.Module
}

// NewModuleRegistry constructs an empty registry.
func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{modules: make(map[domain.ModuleID]domain.Module)}
}

// Register appends a module to the execution order.
func (r *ModuleRegistry) Register(module domain.Module) error {
	if module == nil {
		return fmt.Errorf("%w: module", domain.ErrNilArgument)
	}
	id := module.ModuleID()
	if _, exists := r.modules[id]; exists {
		return fmt.Errorf("%w: module %s already registered", domain.ErrInvalidArgument, id)
	}
	r.order = append(r.order, id)
	r.modules[id] = module
	return nil
}

// Replace swaps the module registered under the same ID, keeping its position.
func (r *ModuleRegistry) Replace(module domain.Module) error {
	if module == nil {
		return fmt.Errorf("%w: module", domain.ErrNilArgument)
	}
	id := module.ModuleID()
	if _, exists := r.modules[id]; !exists {
		return fmt.Errorf("%w: module %s not registered", domain.ErrInvalidArgument, id)
	}
	r.modules[id] = module
	return nil
}

// Get returns the module registered under id.
func (r *ModuleRegistry) Get(id domain.ModuleID) (domain.Module, bool) {
	m, ok := r.modules[id]
	return m, ok
}

// Ordered returns the modules in execution order.
func (r *ModuleRegistry) Ordered() []domain.Module {
	out := make([]domain.Module, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.modules[id])
	}
	return out
}

// IDs returns the execution order.
func (r *ModuleRegistry) IDs() []domain.ModuleID {
	out := make([]domain.ModuleID, len(r.order))
	copy(out, r.order)
	return out
}

// InitializeAll initializes every module in order.
func (r *ModuleRegistry) InitializeAll() {
	for _, m := range r.Ordered() {
		m.Initialize()
	}
}

// ShutdownAll shuts modules down in reverse order.
func (r *ModuleRegistry) ShutdownAll() {
	mods := r.Ordered()
	for i := len(mods) - 1; i >= 0; i-- {
		mods[i].Shutdown()
	}
}
