package legacy

import (
	"math"

	"plantsim/pkg/domain"
)

const (
	legacyHeaterKW      = 1800.0
	legacySetpointPsig  = 2235.0
	legacyBandPsi       = 30.0
	legacyHandoffPsia   = 2200.0
	legacySprayStart    = 2260.0
	legacySprayFull     = 2310.0
	legacySprayMaxGpm   = 840.0
	legacyLowLevelPct   = 17.0
	legacySprayLbmPerG  = 6.15
	legacyCondenseRatio = 1.2 / 465.0
)

type controlResult struct {
	heaterKW  float64
	sprayGpm  float64
	condensed float64
}

// legacyControl is the engine's built-in pressurizer heater and spray logic.
// It updates the pressurizer fields in place.
func legacyControl(z *domain.PressurizerFields, p domain.PlantState, dt float64) controlResult {
	psig := p.PressurePsia - 14.7

	if z.Hold.Active {
		z.Hold.ActivationLogged = true
		if p.SimTimeSec >= z.Hold.ReleaseTimeSec {
			z.Hold.Active = false
			z.Hold.ReleaseLogged = true
			if z.HeaterMode == domain.HeaterOff {
				z.HeaterMode = domain.HeaterPressurizeAuto
			}
		}
	}
	if z.BubbleFormed && !z.Solid && (z.HeaterMode == domain.HeaterStartupFullPower || z.HeaterMode == domain.HeaterBubbleFormationAuto) {
		z.HeaterMode = domain.HeaterPressurizeAuto
	}
	if z.HeaterMode == domain.HeaterPressurizeAuto && p.PressurePsia >= legacyHandoffPsia {
		z.HeaterMode = domain.HeaterAutomaticPID
		z.HeaterPID = domain.HeaterPIDState{Initialized: true, SetpointPsig: legacySetpointPsig}
	}

	frac := 0.0
	switch {
	case z.Hold.Active:
		z.HeaterPID.Active = false
	case z.HeaterMode == domain.HeaterAutomaticPID:
		err := legacySetpointPsig - psig
		frac = math.Max(0, math.Min(1, 0.5+err/legacyBandPsi))
		z.HeaterPID.LastError = err
		z.HeaterPID.Output = frac
		z.HeaterPID.Active = true
	case z.HeaterMode != domain.HeaterOff:
		frac = 1
		z.HeaterPID.Active = false
	}
	if !z.Solid && p.PzrLevelPct < legacyLowLevelPct {
		frac = 0
	}
	z.SmoothedHeaterOutput = frac

	res := controlResult{heaterKW: frac * legacyHeaterKW}
	if p.RCPCount >= 1 && z.SteamVolumeFt3 > 0 && !z.Solid {
		demand := math.Max(0, math.Min(1, (psig-legacySprayStart)/(legacySprayFull-legacySprayStart)))
		z.Spray = domain.SprayControlState{ValvePosition: demand, ValveDemand: demand, Active: demand > 0}
		res.sprayGpm = demand * legacySprayMaxGpm
		if sub := p.TpzrF - p.TcoldF; sub > 0 && dt > 0 {
			res.condensed = res.sprayGpm * legacySprayLbmPerG * dt / 60 * legacyCondenseRatio * sub
		}
	} else {
		z.Spray = domain.SprayControlState{}
	}
	return res
}
