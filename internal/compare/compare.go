// Package compare diffs a module's shadow state against the legacy engine's.
package compare

import (
	"math"

	"plantsim/pkg/domain"
)

// Capture returns a shadow state. Captures must not mutate anything.
type Capture func() domain.ModuleShadowState

// Comparator checks shadow states against per-field tolerances.
type Comparator struct {
	tol domain.Tolerances
}

// New constructs a comparator. Negative or NaN tolerances fall back to the
// defaults for that field.
func New(tol domain.Tolerances) *Comparator {
	def := domain.DefaultTolerances()
	if !(tol.PressurePsi >= 0) {
		tol.PressurePsi = def.PressurePsi
	}
	if !(tol.LevelPct >= 0) {
		tol.LevelPct = def.LevelPct
	}
	if !(tol.MassLbm >= 0) {
		tol.MassLbm = def.MassLbm
	}
	return &Comparator{tol: tol}
}

// Tolerances returns the effective tolerances.
func (c *Comparator) Tolerances() domain.Tolerances { return c.tol }

// Compare invokes each capture exactly once and reports modular minus legacy
// deltas. A nil capture is treated as the zero shadow. Mismatches are
// reported, never returned as errors.
func (c *Comparator) Compare(step int64, id domain.ModuleID, legacy, modular Capture) domain.ComparatorResult {
	l := run(legacy)
	m := run(modular)
	res := domain.ComparatorResult{
		ModuleID:      id,
		Step:          step,
		PressureDelta: m.PressurePsia - l.PressurePsia,
		LevelDelta:    m.LevelPct - l.LevelPct,
		MassDelta:     m.MassLedgerLbm - l.MassLedgerLbm,
		Legacy:        l,
		Modular:       m,
	}
	res.PressureOK = within(res.PressureDelta, c.tol.PressurePsi)
	res.LevelOK = within(res.LevelDelta, c.tol.LevelPct)
	res.MassOK = within(res.MassDelta, c.tol.MassLbm)
	res.Pass = res.PressureOK && res.LevelOK && res.MassOK
	return res
}

func run(capture Capture) domain.ModuleShadowState {
	if capture == nil {
		return domain.ModuleShadowState{}
	}
	return capture()
}

// within is false for NaN deltas.
func within(delta, tol float64) bool {
	return math.Abs(delta) <= tol
}
