package domain

// ModuleID is the stable identifier of a steppable plant module.
type ModuleID string

// Module identifiers. The coordinator steps switched-on modules in the order
// of DefaultModuleOrder.
const (
	ModuleReactor ModuleID = "REACTOR"
	ModuleRCP     ModuleID = "RCP"
	ModuleRCS     ModuleID = "RCS"
	ModulePZR     ModuleID = "PZR"
	ModuleCVCS    ModuleID = "CVCS"
	ModuleRHR     ModuleID = "RHR"
	ModuleLegacy  ModuleID = "LEGACY"
)

// DefaultModuleOrder is the deterministic execution order for modular steps.
var DefaultModuleOrder = []ModuleID{
	ModuleReactor,
	ModuleRCP,
	ModuleRCS,
	ModulePZR,
	ModuleCVCS,
	ModuleRHR,
}

// AuthorityFor maps a module to the authority path it writes under.
func AuthorityFor(id ModuleID) AuthorityPath {
	switch id {
	case ModulePZR:
		return AuthorityModularPZR
	case ModuleCVCS:
		return AuthorityModularCVCS
	case ModuleRHR:
		return AuthorityModularRHR
	case ModuleRCP:
		return AuthorityModularRCP
	case ModuleRCS:
		return AuthorityModularRCS
	case ModuleReactor:
		return AuthorityModularReactor
	default:
		return AuthorityLegacy
	}
}

// Module is the uniform lifecycle implemented by the legacy-delegating adapter
// and every extracted module. Initialize and Shutdown must be idempotent.
type Module interface {
	ModuleID() ModuleID
	Initialize()
	Step(dt float64) error
	Shutdown()
}

// ShadowProvider is implemented by modules that can report their own view of
// the comparable quantities. Shadow must not mutate any state.
type ShadowProvider interface {
	Shadow() ModuleShadowState
}

// PlantStateOwner is the narrow contract the coordinator needs from the engine
// that owns the canonical mutable plant state.
type PlantStateOwner interface {
	// ReadFields returns a copy of the engine's live fields.
	ReadFields() EngineFields
	// RunLegacySimulationStep integrates one step. When bypassPressurizerControl
	// is set the engine must not run its own heater/spray control and instead
	// honor the outputs applied through ApplyModularPressurizerOutputs.
	RunLegacySimulationStep(dt float64, bypassPressurizerControl bool) error
	// ApplyModularPressurizerOutputs writes the modular control intent onto the
	// engine's mutable fields.
	ApplyModularPressurizerOutputs(intent ControlIntent)
	// StepSnapshot returns a pre-built snapshot bundle when the engine has one.
	StepSnapshot() (StepSnapshot, bool)
}

// TransferRecorder is the write side of the plant bus.
type TransferRecorder interface {
	EmitFlowTransfer(step int64, signal SignalKind, from, to string, magnitude float64, isBoundary bool, authority AuthorityPath)
	EmitEnergyTransfer(step int64, signal SignalKind, from, to string, magnitude float64, isBoundary bool, authority AuthorityPath)
	EmitMassTransfer(step int64, signal SignalKind, from, to string, magnitude float64, isBoundary bool, authority AuthorityPath)
}

// LedgeringEngine is implemented by engines that record the transfers their
// own integration performed. The coordinator calls it once per step after
// RunLegacySimulationStep.
type LedgeringEngine interface {
	RecordLegacyTransfers(step int64, rec TransferRecorder)
}
