package domain

import (
	"errors"
	"fmt"
)

// SubsystemFlags gates one subsystem's migration state.
type SubsystemFlags struct {
	UseModular       bool `json:"use_modular" yaml:"use_modular"`
	BypassLegacy     bool `json:"bypass_legacy" yaml:"bypass_legacy"`
	EnableComparator bool `json:"enable_comparator" yaml:"enable_comparator"`
}

// Any reports whether any switch is on.
func (f SubsystemFlags) Any() bool {
	return f.UseModular || f.BypassLegacy || f.EnableComparator
}

// FeatureFlags is the migration configuration consumed at the start of every
// step. The zero value is legacy-only behavior.
type FeatureFlags struct {
	CoordinatorEnabled bool           `json:"coordinator_enabled" yaml:"coordinator_enabled"`
	Reactor            SubsystemFlags `json:"reactor" yaml:"reactor"`
	RCP                SubsystemFlags `json:"rcp" yaml:"rcp"`
	RCS                SubsystemFlags `json:"rcs" yaml:"rcs"`
	PZR                SubsystemFlags `json:"pzr" yaml:"pzr"`
	CVCS               SubsystemFlags `json:"cvcs" yaml:"cvcs"`
	RHR                SubsystemFlags `json:"rhr" yaml:"rhr"`
}

// For returns the flags of one subsystem. Unknown IDs yield all-false flags.
func (f FeatureFlags) For(id ModuleID) SubsystemFlags {
	switch id {
	case ModuleReactor:
		return f.Reactor
	case ModuleRCP:
		return f.RCP
	case ModuleRCS:
		return f.RCS
	case ModulePZR:
		return f.PZR
	case ModuleCVCS:
		return f.CVCS
	case ModuleRHR:
		return f.RHR
	default:
		return SubsystemFlags{}
	}
}

// AnyEnabled reports whether any switch, including the coordinator toggle, is on.
func (f FeatureFlags) AnyEnabled() bool {
	if f.CoordinatorEnabled {
		return true
	}
	for _, id := range DefaultModuleOrder {
		if f.For(id).Any() {
			return true
		}
	}
	return false
}

// ResetAll returns every switch to its legacy-only default.
func (f *FeatureFlags) ResetAll() {
	*f = FeatureFlags{}
}

// ValidateSubsystem enforces the single-writer rule for one subsystem.
func (f FeatureFlags) ValidateSubsystem(id ModuleID) error {
	sub := f.For(id)
	if sub.UseModular && !sub.BypassLegacy {
		return fmt.Errorf("%w: %s is modular-authoritative but legacy bypass is off", ErrSingleWriterViolation, id)
	}
	return nil
}

// Validate enforces the single-writer rule for every subsystem.
func (f FeatureFlags) Validate() error {
	var errs []error
	for _, id := range DefaultModuleOrder {
		if err := f.ValidateSubsystem(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
