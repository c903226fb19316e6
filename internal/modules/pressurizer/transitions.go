package pressurizer

import "plantsim/pkg/domain"

// TransitionPressurePsia is the pressure at which PRESSURIZE_AUTO hands off to
// AUTOMATIC_PID.
const TransitionPressurePsia = 2200.0

type condition int

const (
	// condBubbleEstablished: the steam bubble exists and the pressurizer is no
	// longer water solid.
	condBubbleEstablished condition = iota
	// condPressureAtHandoff: pressure has reached TransitionPressurePsia.
	condPressureAtHandoff
	// condHoldReleased: the startup hold cleared this step.
	condHoldReleased
)

func (c condition) String() string {
	switch c {
	case condBubbleEstablished:
		return "bubble_established"
	case condPressureAtHandoff:
		return "pressure_at_handoff"
	case condHoldReleased:
		return "hold_released"
	default:
		return "unknown"
	}
}

type transitionKey struct {
	from domain.HeaterMode
	cond condition
}

// transitions lists every automatic mode change. AUTOMATIC_PID has no outgoing
// entry: it is left only by manual override, which is not modeled. The
// OFF re-arm on hold release is a legacy parity behavior (CS-0098).
var transitions = map[transitionKey]domain.HeaterMode{
	{domain.HeaterStartupFullPower, condBubbleEstablished}:    domain.HeaterPressurizeAuto,
	{domain.HeaterBubbleFormationAuto, condBubbleEstablished}: domain.HeaterPressurizeAuto,
	{domain.HeaterPressurizeAuto, condPressureAtHandoff}:      domain.HeaterAutomaticPID,
	{domain.HeaterOff, condHoldReleased}:                      domain.HeaterPressurizeAuto,
}

// nextMode looks up the transition for a mode under a condition that holds.
func nextMode(mode domain.HeaterMode, cond condition) (domain.HeaterMode, bool) {
	next, ok := transitions[transitionKey{from: mode, cond: cond}]
	if !ok {
		return mode, false
	}
	return next, true
}

type heaterPath int

const (
	pathHold heaterPath = iota
	pathPID
	pathCalculated
)

func (p heaterPath) String() string {
	switch p {
	case pathHold:
		return "hold"
	case pathPID:
		return "pid"
	default:
		return "calculated"
	}
}

// selectPath picks the single heater path for a step: hold > PID > calculated.
func selectPath(holdActive bool, mode domain.HeaterMode) heaterPath {
	switch {
	case holdActive:
		return pathHold
	case mode == domain.HeaterAutomaticPID:
		return pathPID
	default:
		return pathCalculated
	}
}
