// Package domain defines the plant-state value types, transfer ledger vocabulary,
// module contract and audit rule primitives shared by plantsim packages.
package domain

// MassConservation groups the redundant primary-mass bookkeeping fields the
// legacy engine maintains. All masses are in lbm.
type MassConservation struct {
	LedgerLbm        float64 `json:"ledger_lbm"`
	ComponentsLbm    float64 `json:"components_lbm"`
	DriftLbm         float64 `json:"drift_lbm"`
	BoundaryErrorLbm float64 `json:"boundary_error_lbm"`
	ExpectedLbm      float64 `json:"expected_lbm"`
	TotalSystemLbm   float64 `json:"total_system_lbm"`
	ConservationOK   bool    `json:"conservation_ok"`
}

// PlantState is the read-only projection of the engine's live fields at a step
// boundary. It is produced once per step by the bridge and copied by value.
type PlantState struct {
	SimTimeSec    float64 `json:"sim_time_sec"`
	PlantMode     int     `json:"plant_mode"`
	PlantModeName string  `json:"plant_mode_name"`
	HeatupPhase   string  `json:"heatup_phase"`

	PressurePsia float64 `json:"pressure_psia"`
	TavgF        float64 `json:"tavg_f"`
	ThotF        float64 `json:"thot_f"`
	TcoldF       float64 `json:"tcold_f"`
	TpzrF        float64 `json:"tpzr_f"`
	TsatF        float64 `json:"tsat_f"`
	PzrLevelPct  float64 `json:"pzr_level_pct"`

	SprayFlowGpm    float64 `json:"spray_flow_gpm"`
	ChargingFlowGpm float64 `json:"charging_flow_gpm"`
	LetdownFlowGpm  float64 `json:"letdown_flow_gpm"`
	SurgeFlowGpm    float64 `json:"surge_flow_gpm"`
	HeaterPowerKW   float64 `json:"heater_power_kw"`

	ReactorPowerMWt float64 `json:"reactor_power_mwt"`
	RHRHeatMW       float64 `json:"rhr_heat_mw"`

	Mass MassConservation `json:"mass"`

	RCPCount int     `json:"rcp_count"`
	RHRState string  `json:"rhr_state"`
	VCSState string  `json:"vcs_state"`
	BoronPPM float64 `json:"boron_ppm"`
}

// PressurizerFields carries the legacy engine's pressurizer internals that are
// not part of PlantState but are required to build a PressurizerSnapshot.
type PressurizerFields struct {
	PressureRatePsiPerSec float64 `json:"pressure_rate_psi_per_sec"`
	WaterVolumeFt3        float64 `json:"water_volume_ft3"`
	SteamVolumeFt3        float64 `json:"steam_volume_ft3"`
	Solid                 bool    `json:"solid"`
	BubbleFormed          bool    `json:"bubble_formed"`
	PreDrainBubble        bool    `json:"pre_drain_bubble"`

	Hold                 StartupHoldState  `json:"startup_hold"`
	HeaterMode           HeaterMode        `json:"heater_mode"`
	SmoothedHeaterOutput float64           `json:"smoothed_heater_output"`
	HeaterPID            HeaterPIDState    `json:"heater_pid"`
	Spray                SprayControlState `json:"spray"`
	SprayOutputs         SprayOutputs      `json:"spray_outputs"`
}

// EngineFields is the complete set of live fields an engine exposes through
// PlantStateOwner.ReadFields.
type EngineFields struct {
	Plant       PlantState        `json:"plant"`
	Pressurizer PressurizerFields `json:"pressurizer"`
}

// StepSnapshot is an optional pre-built bundle an engine may hand to the
// coordinator instead of having the bridge derive one.
type StepSnapshot struct {
	Step           int64               `json:"step"`
	Plant          PlantState          `json:"plant"`
	Pressurizer    PressurizerSnapshot `json:"pressurizer"`
	HasPressurizer bool                `json:"has_pressurizer"`
}

// Empty reports whether the bundle carries no pressurizer snapshot.
func (s StepSnapshot) Empty() bool {
	return !s.HasPressurizer
}
