package pressurizer

import "plantsim/pkg/domain"

const (
	// HeaterCapacityKW is the installed heater capacity (proportional plus backup).
	HeaterCapacityKW = 1800.0
	// LowLevelCutoffPct de-energizes all heaters to protect uncovered elements.
	LowLevelCutoffPct = 17.0
	// BackupHeaterDeviationPct energizes backup heaters in PID mode when level
	// exceeds its setpoint by this much.
	BackupHeaterDeviationPct = 5.0

	heaterSmoothingTauSec = 20.0

	levelProgramLowTempF  = 557.0
	levelProgramHighTempF = 584.7
	levelProgramLowPct    = 25.0
	levelProgramHighPct   = 61.5
)

// LevelSetpoint is the pressurizer level program: full while water solid or
// drawing the pre-drain bubble, otherwise linear in T_avg between no-load and
// full-power temperatures.
func LevelSetpoint(solid, preDrainBubble bool, tavgF float64) float64 {
	if solid || preDrainBubble {
		return 100
	}
	if !finite(tavgF) || tavgF <= levelProgramLowTempF {
		return levelProgramLowPct
	}
	if tavgF >= levelProgramHighTempF {
		return levelProgramHighPct
	}
	frac := (tavgF - levelProgramLowTempF) / (levelProgramHighTempF - levelProgramLowTempF)
	return levelProgramLowPct + frac*(levelProgramHighPct-levelProgramLowPct)
}

// calculatedDemand is the open-loop heater demand for modes other than PID.
func calculatedDemand(mode domain.HeaterMode) float64 {
	switch mode {
	case domain.HeaterStartupFullPower, domain.HeaterBubbleFormationAuto, domain.HeaterPressurizeAuto:
		return 1
	default:
		return 0
	}
}

func lowLevelTrip(snap *domain.PressurizerSnapshot) bool {
	return !snap.Solid && finite(snap.LevelPct) && snap.LevelPct < LowLevelCutoffPct
}
