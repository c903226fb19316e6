package pressurizer

import (
	"math"

	"plantsim/pkg/domain"
)

const (
	// SprayStartPsig and SprayFullPsig bound the proportional spray band.
	SprayStartPsig = 2260.0
	SprayFullPsig  = 2310.0
	// SprayMaxFlowGpm is the combined flow of both spray valves fully open.
	SprayMaxFlowGpm = 840.0

	sprayValveTauSec = 5.0
	// Hot-leg water density (lbm/gal) and properties near normal operating
	// pressure, used for the condensation estimate.
	sprayDensityLbmPerGal = 6.15
	waterCpBtuPerLbmF     = 1.2
	hfgBtuPerLbm          = 465.0
)

// sprayResult is the spray controller outcome for one step.
type sprayResult struct {
	state     domain.SprayControlState
	flowGpm   float64
	condensed float64
}

// updateSpray moves the valve toward its demand with a first-order lag and
// derives flow and steam condensed by the spray. Spray needs a running RCP for
// driving head and a steam space to spray into.
func updateSpray(s domain.SprayControlState, snap *domain.PressurizerSnapshot) sprayResult {
	available := snap.RCPCount >= 1 && snap.SteamVolumeFt3 > 0 && !snap.Solid
	demand := 0.0
	if available && finite(snap.PressurePsia) {
		demand = clamp01((gauge(snap.PressurePsia) - SprayStartPsig) / (SprayFullPsig - SprayStartPsig))
	}
	s.ValveDemand = demand
	s.ValvePosition = clamp01(s.ValvePosition + (demand-s.ValvePosition)*lagAlpha(snap.DtSec, sprayValveTauSec))

	res := sprayResult{}
	if available {
		res.flowGpm = s.ValvePosition * SprayMaxFlowGpm
	}
	if res.flowGpm <= domain.EventThreshold {
		res.flowGpm = 0
	}
	s.Active = res.flowGpm > 0
	res.state = s
	res.condensed = condensedMass(res.flowGpm, snap)
	return res
}

// condensedMass estimates the steam (lbm) condensed in a step by spray water
// heated from T_cold to pressurizer saturation.
func condensedMass(flowGpm float64, snap *domain.PressurizerSnapshot) float64 {
	subcool := snap.TpzrF - snap.TcoldF
	if flowGpm <= 0 || subcool <= 0 || !finite(subcool) || snap.DtSec <= 0 {
		return 0
	}
	sprayLbm := flowGpm * sprayDensityLbmPerGal * snap.DtSec / 60.0
	return sprayLbm * waterCpBtuPerLbmF * subcool / hfgBtuPerLbm
}

// lagAlpha is the first-order lag weight for a step of dt.
func lagAlpha(dt, tau float64) float64 {
	if dt <= 0 || !finite(dt) {
		return 0
	}
	return 1 - math.Exp(-dt/tau)
}
