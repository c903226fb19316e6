// Package rcs aggregates per-loop reactor coolant system thermal and flow
// results for an N-loop plant.
package rcs

import "math"

const (
	// FlowPerRCPGpm is the rated flow of one reactor coolant pump.
	FlowPerRCPGpm = 97600.0
	// StandardRCPHeatMW is the combined pump heat of four running RCPs.
	StandardRCPHeatMW = 21.0

	btuPerSecPerMW = 947.817
	ft3PerGal      = 1.0 / 7.48052
)

// LoopInput is the state driving one loop's thermal calculation.
type LoopInput struct {
	TavgF        float64 `json:"tavg_f"`
	PressurePsia float64 `json:"pressure_psia"`
	RCPsRunning  int     `json:"rcps_running"`
	RCPHeatMW    float64 `json:"rcp_heat_mw"`
	TpzrF        float64 `json:"tpzr_f"`
}

// LoopOutput is the thermal result of one loop.
type LoopOutput struct {
	FlowGpm    float64 `json:"flow_gpm"`
	MassFlowLb float64 `json:"mass_flow_lbm_per_sec"`
	ThotF      float64 `json:"thot_f"`
	TcoldF     float64 `json:"tcold_f"`
	TavgF      float64 `json:"tavg_f"`
	DeltaTF    float64 `json:"delta_t_f"`
	PzrDeltaF  float64 `json:"pzr_delta_f"`
	ForcedFlow bool    `json:"forced_flow"`
}

// SingleLoopThermal is the reference lumped single-loop calculation. Pump
// heat is carried by forced flow as a hot-to-cold leg temperature split
// centered on T_avg. Without forced flow there is no split.
func SingleLoopThermal(tavgF, pressurePsia float64, rcps int, rcpHeatMW, tpzrF float64) LoopOutput {
	tavgF = sanitize(tavgF)
	pressurePsia = sanitize(pressurePsia)
	rcpHeatMW = sanitize(rcpHeatMW)
	tpzrF = sanitize(tpzrF)
	if rcps < 0 {
		rcps = 0
	}

	out := LoopOutput{
		TavgF:     tavgF,
		ThotF:     tavgF,
		TcoldF:    tavgF,
		PzrDeltaF: tpzrF - tavgF,
	}
	if rcps == 0 {
		return out
	}
	out.ForcedFlow = true
	out.FlowGpm = float64(rcps) * FlowPerRCPGpm
	out.MassFlowLb = out.FlowGpm * ft3PerGal * density(tavgF, pressurePsia) / 60.0
	if out.MassFlowLb <= 0 {
		return out
	}
	dt := rcpHeatMW * btuPerSecPerMW / (out.MassFlowLb * heatCapacity(tavgF))
	out.DeltaTF = dt
	out.ThotF = tavgF + dt/2
	out.TcoldF = tavgF - dt/2
	return out
}

// density approximates subcooled water density (lbm/ft3).
func density(tF, pPsia float64) float64 {
	x := tF - 60
	rho := 62.4 * (1 - 2.5e-4*x - 6e-7*x*x) * (1 + 3e-6*(pPsia-14.7))
	return math.Max(rho, 1)
}

// heatCapacity approximates subcooled water cp (BTU/lbm-F).
func heatCapacity(tF float64) float64 {
	x := tF - 60
	return 1.0 + 1.2e-6*x*x
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
