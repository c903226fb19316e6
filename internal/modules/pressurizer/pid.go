package pressurizer

import (
	"math"

	"plantsim/pkg/domain"
)

const (
	// PsigOffset converts absolute to gauge pressure.
	PsigOffset = 14.7
	// PIDSetpointPsig is the normal operating pressure setpoint.
	PIDSetpointPsig = 2235.0

	// Proportional heaters run at half output at setpoint and span the band.
	pidBias          = 0.5
	pidBandPsi       = 30.0
	pidIntegralGain  = 1.0 / 3000.0
	pidIntegralLimit = pidBias / pidIntegralGain
)

func gauge(pressurePsia float64) float64 {
	return pressurePsia - PsigOffset
}

// initPID returns a freshly initialized controller for the current pressure.
func initPID(pressurePsia float64) domain.HeaterPIDState {
	err := pidError(pressurePsia)
	return domain.HeaterPIDState{
		Initialized:  true,
		SetpointPsig: PIDSetpointPsig,
		LastError:    err,
		Output:       clamp01(pidBias + err/pidBandPsi),
		Active:       true,
	}
}

func pidError(pressurePsia float64) float64 {
	if !finite(pressurePsia) {
		return 0
	}
	return PIDSetpointPsig - gauge(pressurePsia)
}

// updatePID advances the controller by dt. The integral only accumulates while
// the output is unsaturated or the error drives it back into range.
func updatePID(s domain.HeaterPIDState, pressurePsia, dt float64) domain.HeaterPIDState {
	if !s.Initialized {
		s = initPID(pressurePsia)
	}
	err := s.SetpointPsig - gauge(pressurePsia)
	if !finite(pressurePsia) {
		err = 0
	}
	if dt < 0 || !finite(dt) {
		dt = 0
	}
	integral := s.Integral + err*dt
	integral = math.Max(-pidIntegralLimit, math.Min(pidIntegralLimit, integral))
	raw := pidBias + err/pidBandPsi + pidIntegralGain*integral
	out := clamp01(raw)
	if raw == out || (raw > 1 && err < 0) || (raw < 0 && err > 0) {
		s.Integral = integral
	}
	s.LastError = err
	s.Output = out
	s.Active = true
	return s
}

func clamp01(v float64) float64 {
	if !finite(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
