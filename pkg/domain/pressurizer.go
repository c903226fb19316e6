package domain

import (
	"fmt"
	"strings"
)

// HeaterMode enumerates the pressurizer heater control modes.
type HeaterMode int

const (
	// HeaterOff disables heater control until re-armed.
	HeaterOff HeaterMode = iota
	// HeaterStartupFullPower drives all heater banks at full output.
	HeaterStartupFullPower
	// HeaterBubbleFormationAuto is used while the initial steam bubble is drawn.
	HeaterBubbleFormationAuto
	// HeaterPressurizeAuto raises pressure toward the PID handoff threshold.
	HeaterPressurizeAuto
	// HeaterAutomaticPID is the steady-state pressure control mode.
	HeaterAutomaticPID
)

var heaterModeNames = map[HeaterMode]string{
	HeaterOff:                 "OFF",
	HeaterStartupFullPower:    "STARTUP_FULL_POWER",
	HeaterBubbleFormationAuto: "BUBBLE_FORMATION_AUTO",
	HeaterPressurizeAuto:      "PRESSURIZE_AUTO",
	HeaterAutomaticPID:        "AUTOMATIC_PID",
}

func (m HeaterMode) String() string {
	if name, ok := heaterModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("HeaterMode(%d)", int(m))
}

// Valid reports whether the mode is one of the enumerated values.
func (m HeaterMode) Valid() bool {
	_, ok := heaterModeNames[m]
	return ok
}

// MarshalText encodes the mode by name so ledgers and snapshots stay readable.
func (m HeaterMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: heater mode %d", ErrInvalidArgument, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *HeaterMode) UnmarshalText(text []byte) error {
	mode, err := ParseHeaterMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseHeaterMode resolves a mode name, case-insensitively.
func ParseHeaterMode(name string) (HeaterMode, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for mode, candidate := range heaterModeNames {
		if candidate == upper {
			return mode, nil
		}
	}
	return HeaterOff, fmt.Errorf("%w: unknown heater mode %q", ErrInvalidArgument, name)
}

// HeaterPIDState is the persistent state of the heater pressure controller.
type HeaterPIDState struct {
	Initialized  bool    `json:"initialized"`
	SetpointPsig float64 `json:"setpoint_psig"`
	Integral     float64 `json:"integral"`
	LastError    float64 `json:"last_error"`
	Output       float64 `json:"output"`
	Active       bool    `json:"active"`
}

// StartupHoldState tracks the transient heater suppression after start.
type StartupHoldState struct {
	Active           bool    `json:"active"`
	ReleaseTimeSec   float64 `json:"release_time_sec"`
	ActivationLogged bool    `json:"activation_logged"`
	ReleaseLogged    bool    `json:"release_logged"`
}

// SprayControlState is the persistent state of the spray valve controller.
type SprayControlState struct {
	ValvePosition float64 `json:"valve_position"`
	ValveDemand   float64 `json:"valve_demand"`
	Active        bool    `json:"active"`
}

// SprayOutputs are the spray flow effects computed for a step.
type SprayOutputs struct {
	FlowGpm          float64 `json:"flow_gpm"`
	CondensedMassLbm float64 `json:"condensed_mass_lbm"`
}

// PressurizerSnapshot is the input contract to the pressurizer module. The
// module treats it as authoritative and never mutates it.
type PressurizerSnapshot struct {
	SimTimeSec            float64 `json:"sim_time_sec"`
	DtSec                 float64 `json:"dt_sec"`
	PressurePsia          float64 `json:"pressure_psia"`
	PressureRatePsiPerSec float64 `json:"pressure_rate_psi_per_sec"`
	LevelPct              float64 `json:"level_pct"`
	TavgF                 float64 `json:"tavg_f"`
	TcoldF                float64 `json:"tcold_f"`
	TpzrF                 float64 `json:"tpzr_f"`
	WaterVolumeFt3        float64 `json:"water_volume_ft3"`
	SteamVolumeFt3        float64 `json:"steam_volume_ft3"`
	RCPCount              int     `json:"rcp_count"`
	Solid                 bool    `json:"solid"`
	BubbleFormed          bool    `json:"bubble_formed"`
	PreDrainBubble        bool    `json:"pre_drain_bubble"`

	Hold                 StartupHoldState  `json:"startup_hold"`
	HeaterMode           HeaterMode        `json:"heater_mode"`
	SmoothedHeaterOutput float64           `json:"smoothed_heater_output"`
	HeaterPID            HeaterPIDState    `json:"heater_pid"`
	Spray                SprayControlState `json:"spray"`
	SprayOutputs         SprayOutputs      `json:"spray_outputs"`

	// Post-step observations. Populated only on the snapshot handed to
	// CapturePostStepSnapshot.
	SurgeFlowGpm  float64 `json:"surge_flow_gpm"`
	MassLedgerLbm float64 `json:"mass_ledger_lbm"`
}

// ControlIntent is the pre-step half of the pressurizer outputs: control
// decisions announced before the physics integrator runs.
type ControlIntent struct {
	HeaterPowerKW float64        `json:"heater_power_kw"`
	HeaterOn      bool           `json:"heater_on"`
	PIDOutput     float64        `json:"pid_output"`
	PIDActive     bool           `json:"pid_active"`
	PIDState      HeaterPIDState `json:"pid_state"`

	Spray             SprayControlState `json:"spray"`
	SprayFlowGpm      float64           `json:"spray_flow_gpm"`
	SprayCondensedLbm float64           `json:"spray_condensed_lbm"`

	HeaterMode           HeaterMode `json:"heater_mode"`
	SmoothedHeaterOutput float64    `json:"smoothed_heater_output"`
	LevelSetpointPct     float64    `json:"level_setpoint_pct"`

	StartupHoldActive    bool `json:"startup_hold_active"`
	HoldActivationLogged bool `json:"hold_activation_logged"`
	HoldReleaseLogged    bool `json:"hold_release_logged"`
}

// ObservedEffect is the post-step half of the pressurizer outputs, filled from
// the engine's state after integration.
type ObservedEffect struct {
	PressurePsia   float64 `json:"pressure_psia"`
	LevelPct       float64 `json:"level_pct"`
	WaterVolumeFt3 float64 `json:"water_volume_ft3"`
	SteamVolumeFt3 float64 `json:"steam_volume_ft3"`
	SurgeFlowGpm   float64 `json:"surge_flow_gpm"`
	MassLedgerLbm  float64 `json:"mass_ledger_lbm"`
}

// PressurizerOutputs joins a step's control intent with its observed effect.
type PressurizerOutputs struct {
	Intent      ControlIntent  `json:"intent"`
	Observed    ObservedEffect `json:"observed"`
	HasObserved bool           `json:"has_observed"`
}

// PendingOutputs wraps an intent that has not been reconciled yet.
func PendingOutputs(intent ControlIntent) PressurizerOutputs {
	return PressurizerOutputs{Intent: intent}
}

// CombineOutputs joins both causal halves of a step.
func CombineOutputs(intent ControlIntent, observed ObservedEffect) PressurizerOutputs {
	return PressurizerOutputs{Intent: intent, Observed: observed, HasObserved: true}
}
