package domain

// ModuleShadowState is the minimal capture used for comparator diffing.
type ModuleShadowState struct {
	PressurePsia  float64 `json:"pressure_psia"`
	LevelPct      float64 `json:"level_pct"`
	MassLedgerLbm float64 `json:"mass_ledger_lbm"`
}

// Tolerances bound the per-field deltas a comparison accepts.
type Tolerances struct {
	PressurePsi float64 `json:"pressure_psi" yaml:"pressure_psi" validate:"gte=0"`
	LevelPct    float64 `json:"level_pct" yaml:"level_pct" validate:"gte=0"`
	MassLbm     float64 `json:"mass_lbm" yaml:"mass_lbm" validate:"gte=0"`
}

// DefaultTolerances are the epsilons used when none are configured.
func DefaultTolerances() Tolerances {
	return Tolerances{PressurePsi: 0.01, LevelPct: 0.01, MassLbm: 1.0}
}

// ComparatorResult is the diagnostic outcome of one legacy/modular comparison.
// Deltas are modular minus legacy.
type ComparatorResult struct {
	ModuleID      ModuleID          `json:"module_id"`
	Step          int64             `json:"step"`
	Pass          bool              `json:"pass"`
	PressureDelta float64           `json:"pressure_delta"`
	LevelDelta    float64           `json:"level_delta"`
	MassDelta     float64           `json:"mass_delta"`
	PressureOK    bool              `json:"pressure_ok"`
	LevelOK       bool              `json:"level_ok"`
	MassOK        bool              `json:"mass_ok"`
	Legacy        ModuleShadowState `json:"legacy"`
	Modular       ModuleShadowState `json:"modular"`
}
