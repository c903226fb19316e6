package rcs

import (
	"fmt"
	"math"

	"plantsim/pkg/domain"
)

// N1Tolerance bounds the single-loop parity check.
const N1Tolerance = 1e-4

// Reference inputs for the N=1 parity check.
const (
	ReferenceTavgF        = 557.0
	ReferencePressurePsia = 2249.7
	ReferenceRCPs         = 4
	ReferenceTpzrF        = 560.0
)

// Loop is one coolant loop's latest input and result.
type Loop struct {
	Index  int        `json:"index"`
	Input  LoopInput  `json:"input"`
	Output LoopOutput `json:"output"`
}

// Aggregate summarizes all loops. Temperatures and deltas are unweighted means.
type Aggregate struct {
	LoopCount      int     `json:"loop_count"`
	TotalFlowGpm   float64 `json:"total_flow_gpm"`
	AverageTavgF   float64 `json:"average_tavg_f"`
	AverageThotF   float64 `json:"average_thot_f"`
	AverageTcoldF  float64 `json:"average_tcold_f"`
	AverageDeltaTF float64 `json:"average_delta_t_f"`
	MinDeltaTF     float64 `json:"min_delta_t_f"`
	MaxDeltaTF     float64 `json:"max_delta_t_f"`
	AnyForcedFlow  bool    `json:"any_forced_flow"`
}

// N1Report is the outcome of ValidateN1Compatibility.
type N1Report struct {
	Pass       bool       `json:"pass"`
	Reference  LoopOutput `json:"reference"`
	Aggregate  Aggregate  `json:"aggregate"`
	FlowDelta  float64    `json:"flow_delta"`
	ThotDelta  float64    `json:"thot_delta"`
	TcoldDelta float64    `json:"tcold_delta"`
	TavgDelta  float64    `json:"tavg_delta"`
	DTDelta    float64    `json:"delta_t_delta"`
	MaxDelta   float64    `json:"max_delta"`
}

// LoopManager owns N loops and recomputes the aggregate after every update.
// It is not safe for concurrent use.
type LoopManager struct {
	loops []Loop
	agg   Aggregate
}

// NewLoopManager constructs a manager with n loops.
func NewLoopManager(n int) (*LoopManager, error) {
	m := &LoopManager{}
	if err := m.ConfigureLoopCount(n); err != nil {
		return nil, err
	}
	return m, nil
}

// ConfigureLoopCount resets all loop state to n idle loops.
func (m *LoopManager) ConfigureLoopCount(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: loop count %d must be at least 1", domain.ErrInvalidArgument, n)
	}
	m.loops = make([]Loop, n)
	for i := range m.loops {
		m.loops[i].Index = i
	}
	m.recompute()
	return nil
}

// LoopCount returns the configured number of loops.
func (m *LoopManager) LoopCount() int { return len(m.loops) }

// Loops returns a copy of the per-loop state.
func (m *LoopManager) Loops() []Loop {
	out := make([]Loop, len(m.loops))
	copy(out, m.loops)
	return out
}

// Aggregate returns the latest aggregate.
func (m *LoopManager) Aggregate() Aggregate { return m.agg }

// UpdateLoop updates one loop and recomputes the aggregate.
func (m *LoopManager) UpdateLoop(index int, in LoopInput) error {
	if index < 0 || index >= len(m.loops) {
		return fmt.Errorf("%w: loop index %d out of range [0,%d)", domain.ErrInvalidArgument, index, len(m.loops))
	}
	m.apply(index, in)
	m.recompute()
	return nil
}

// UpdateAll updates every loop, then recomputes the aggregate once.
func (m *LoopManager) UpdateAll(inputs []LoopInput) error {
	if len(inputs) != len(m.loops) {
		return fmt.Errorf("%w: %d inputs for %d loops", domain.ErrInvalidArgument, len(inputs), len(m.loops))
	}
	for i, in := range inputs {
		m.apply(i, in)
	}
	m.recompute()
	return nil
}

// UpdateSingleLoopCompatibility drives a single-loop manager with the legacy
// single-loop inputs.
func (m *LoopManager) UpdateSingleLoopCompatibility(tavgF, pressurePsia float64, rcps int, rcpHeatMW, tpzrF float64) error {
	if len(m.loops) != 1 {
		return fmt.Errorf("%w: single-loop compatibility needs 1 loop, have %d", domain.ErrInvalidOperation, len(m.loops))
	}
	return m.UpdateLoop(0, LoopInput{
		TavgF:        tavgF,
		PressurePsia: pressurePsia,
		RCPsRunning:  rcps,
		RCPHeatMW:    rcpHeatMW,
		TpzrF:        tpzrF,
	})
}

// ValidateN1Compatibility checks that a single-loop aggregate reproduces
// SingleLoopThermal for the reference inputs. The receiver's loops are not
// touched.
func (m *LoopManager) ValidateN1Compatibility() N1Report {
	scratch := &LoopManager{}
	_ = scratch.ConfigureLoopCount(1)
	_ = scratch.UpdateSingleLoopCompatibility(ReferenceTavgF, ReferencePressurePsia, ReferenceRCPs, StandardRCPHeatMW, ReferenceTpzrF)
	ref := SingleLoopThermal(ReferenceTavgF, ReferencePressurePsia, ReferenceRCPs, StandardRCPHeatMW, ReferenceTpzrF)
	agg := scratch.Aggregate()

	r := N1Report{
		Reference:  ref,
		Aggregate:  agg,
		FlowDelta:  agg.TotalFlowGpm - ref.FlowGpm,
		ThotDelta:  agg.AverageThotF - ref.ThotF,
		TcoldDelta: agg.AverageTcoldF - ref.TcoldF,
		TavgDelta:  agg.AverageTavgF - ref.TavgF,
		DTDelta:    agg.AverageDeltaTF - ref.DeltaTF,
	}
	for _, d := range []float64{r.FlowDelta, r.ThotDelta, r.TcoldDelta, r.TavgDelta, r.DTDelta} {
		r.MaxDelta = math.Max(r.MaxDelta, math.Abs(d))
	}
	r.Pass = r.MaxDelta <= N1Tolerance && agg.AnyForcedFlow == ref.ForcedFlow
	return r
}

func (m *LoopManager) apply(i int, in LoopInput) {
	m.loops[i].Input = in
	m.loops[i].Output = SingleLoopThermal(in.TavgF, in.PressurePsia, in.RCPsRunning, in.RCPHeatMW, in.TpzrF)
}

func (m *LoopManager) recompute() {
	agg := Aggregate{LoopCount: len(m.loops)}
	if len(m.loops) == 0 {
		m.agg = agg
		return
	}
	agg.MinDeltaTF = math.Inf(1)
	agg.MaxDeltaTF = math.Inf(-1)
	for _, l := range m.loops {
		o := l.Output
		agg.TotalFlowGpm += o.FlowGpm
		agg.AverageTavgF += o.TavgF
		agg.AverageThotF += o.ThotF
		agg.AverageTcoldF += o.TcoldF
		agg.AverageDeltaTF += o.DeltaTF
		agg.MinDeltaTF = math.Min(agg.MinDeltaTF, o.DeltaTF)
		agg.MaxDeltaTF = math.Max(agg.MaxDeltaTF, o.DeltaTF)
		agg.AnyForcedFlow = agg.AnyForcedFlow || o.ForcedFlow
	}
	n := float64(len(m.loops))
	agg.AverageTavgF /= n
	agg.AverageThotF /= n
	agg.AverageTcoldF /= n
	agg.AverageDeltaTF /= n
	m.agg = agg
}
