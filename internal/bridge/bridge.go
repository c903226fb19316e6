// Package bridge projects a PlantStateOwner's live fields into the immutable
// snapshot types consumed by the coordinator and the extracted modules.
package bridge

import (
	"fmt"

	"plantsim/pkg/domain"
)

// Read copies the engine's fields once so every projection made for a step
// derives from the same read.
func Read(owner domain.PlantStateOwner) (domain.EngineFields, error) {
	if owner == nil {
		return domain.EngineFields{}, fmt.Errorf("%w: plant state owner", domain.ErrNilArgument)
	}
	return owner.ReadFields(), nil
}

// BuildPressurizerSnapshot derives the pre-step pressurizer input from engine
// fields. Post-step observation fields are left zero.
func BuildPressurizerSnapshot(fields domain.EngineFields, dt float64) domain.PressurizerSnapshot {
	p := fields.Plant
	z := fields.Pressurizer
	return domain.PressurizerSnapshot{
		SimTimeSec:            p.SimTimeSec,
		DtSec:                 dt,
		PressurePsia:          p.PressurePsia,
		PressureRatePsiPerSec: z.PressureRatePsiPerSec,
		LevelPct:              p.PzrLevelPct,
		TavgF:                 p.TavgF,
		TcoldF:                p.TcoldF,
		TpzrF:                 p.TpzrF,
		WaterVolumeFt3:        z.WaterVolumeFt3,
		SteamVolumeFt3:        z.SteamVolumeFt3,
		RCPCount:              p.RCPCount,
		Solid:                 z.Solid,
		BubbleFormed:          z.BubbleFormed,
		PreDrainBubble:        z.PreDrainBubble,
		Hold:                  z.Hold,
		HeaterMode:            z.HeaterMode,
		SmoothedHeaterOutput:  z.SmoothedHeaterOutput,
		HeaterPID:             z.HeaterPID,
		Spray:                 z.Spray,
		SprayOutputs:          z.SprayOutputs,
	}
}

// BuildPostStepSnapshot is BuildPressurizerSnapshot plus the observed surge
// flow and mass ledger after integration.
func BuildPostStepSnapshot(fields domain.EngineFields, dt float64) domain.PressurizerSnapshot {
	snap := BuildPressurizerSnapshot(fields, dt)
	snap.SurgeFlowGpm = fields.Plant.SurgeFlowGpm
	snap.MassLedgerLbm = fields.Plant.Mass.LedgerLbm
	return snap
}

// PreStepSnapshot prefers the engine's own bundle when it carries a
// pressurizer snapshot and falls back to deriving one from live fields.
func PreStepSnapshot(owner domain.PlantStateOwner, dt float64) (domain.PressurizerSnapshot, error) {
	if owner == nil {
		return domain.PressurizerSnapshot{}, fmt.Errorf("%w: plant state owner", domain.ErrNilArgument)
	}
	if bundle, ok := owner.StepSnapshot(); ok && !bundle.Empty() {
		snap := bundle.Pressurizer
		snap.DtSec = dt
		return snap, nil
	}
	return BuildPressurizerSnapshot(owner.ReadFields(), dt), nil
}

// ShadowFromFields captures the comparable quantities of the legacy path.
func ShadowFromFields(fields domain.EngineFields) domain.ModuleShadowState {
	return domain.ModuleShadowState{
		PressurePsia:  fields.Plant.PressurePsia,
		LevelPct:      fields.Plant.PzrLevelPct,
		MassLedgerLbm: fields.Plant.Mass.LedgerLbm,
	}
}
