package facade

import (
	"plantsim/internal/rcs"
	"plantsim/pkg/domain"
)

// PlantFunc reads the current plant projection.
type PlantFunc func() domain.PlantState

// RCS is the reactor coolant system façade. Each step it refreshes a loop
// manager from the plant projection so per-loop aggregates are available
// alongside the legacy integration.
type RCS struct {
	*Facade
	plant PlantFunc
	loops *rcs.LoopManager
	count int
}

// NewRCS returns an RCS façade over loopCount loops.
func NewRCS(shadow ShadowFunc, plant PlantFunc, loopCount int) (*RCS, error) {
	loops, err := rcs.NewLoopManager(loopCount)
	if err != nil {
		return nil, err
	}
	return &RCS{Facade: New(domain.ModuleRCS, shadow), plant: plant, loops: loops, count: loopCount}, nil
}

// Initialize resets the loops as well as the lifecycle state.
func (r *RCS) Initialize() {
	r.Facade.Initialize()
	_ = r.loops.ConfigureLoopCount(r.count)
}

// Step refreshes the loop aggregate. Running pumps are assigned one per loop.
func (r *RCS) Step(dt float64) error {
	if err := r.Facade.Step(dt); err != nil {
		return err
	}
	if r.plant == nil {
		return nil
	}
	p := r.plant()
	inputs := make([]rcs.LoopInput, r.loops.LoopCount())
	perPump := rcs.StandardRCPHeatMW / float64(len(inputs))
	for i := range inputs {
		running := 0
		if i < p.RCPCount {
			running = 1
		}
		inputs[i] = rcs.LoopInput{
			TavgF:        p.TavgF,
			PressurePsia: p.PressurePsia,
			RCPsRunning:  running,
			RCPHeatMW:    float64(running) * perPump,
			TpzrF:        p.TpzrF,
		}
	}
	return r.loops.UpdateAll(inputs)
}

// Aggregate returns the latest loop aggregate.
func (r *RCS) Aggregate() rcs.Aggregate { return r.loops.Aggregate() }
