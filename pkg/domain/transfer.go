package domain

import "time"

// SignalKind names a physical transfer recorded on the plant bus. The constants
// below are the canonical vocabulary; the bus accepts any value.
type SignalKind string

// Canonical signal kinds shared with ledger consumers.
const (
	SignalSurgeFlow             SignalKind = "PZR_SURGE_FLOW"
	SignalSprayFlow             SignalKind = "PZR_SPRAY_FLOW"
	SignalHeaterPower           SignalKind = "PZR_HEATER_POWER"
	SignalSprayCondensedMass    SignalKind = "PZR_SPRAY_CONDENSED_MASS"
	SignalPrimaryBoundaryInMass SignalKind = "PRIMARY_BOUNDARY_IN_MASS"
	// SignalPrimaryBoundaryOutMass records mass leaving the primary boundary.
	SignalPrimaryBoundaryOutMass SignalKind = "PRIMARY_BOUNDARY_OUT_MASS"
)

// QuantityType classifies what a transfer moves.
type QuantityType string

const (
	QuantityFlow   QuantityType = "flow"
	QuantityEnergy QuantityType = "energy"
	QuantityMass   QuantityType = "mass"
)

// AuthorityPath tags the execution path that emitted a transfer.
type AuthorityPath string

// Authority path tags. Exactly one path may write a given quantity per step.
const (
	AuthorityLegacy         AuthorityPath = "LEGACY"
	AuthorityModularPZR     AuthorityPath = "MODULAR_PZR"
	AuthorityModularCVCS    AuthorityPath = "MODULAR_CVCS"
	AuthorityModularRHR     AuthorityPath = "MODULAR_RHR"
	AuthorityModularRCP     AuthorityPath = "MODULAR_RCP"
	AuthorityModularRCS     AuthorityPath = "MODULAR_RCS"
	AuthorityModularReactor AuthorityPath = "MODULAR_REACTOR"
)

// Node tags used as transfer sources and destinations.
const (
	NodeGrid     = "GRID"
	NodeRCS      = "RCS"
	NodePZR      = "PZR"
	NodePZRSteam = "PZR_STEAM"
	NodePZRWater = "PZR_WATER"
	NodeCVCS     = "CVCS"
	NodeRHR      = "RHR"
)

// EventThreshold is the magnitude at or below which transfers are not emitted.
const EventThreshold = 1e-6

// TransferEvent records one transfer intent emitted during a step.
type TransferEvent struct {
	Step       int64         `json:"step"`
	Signal     SignalKind    `json:"signal"`
	Quantity   QuantityType  `json:"quantity"`
	From       string        `json:"from"`
	To         string        `json:"to"`
	Magnitude  float64       `json:"magnitude"`
	IsBoundary bool          `json:"is_boundary"`
	Authority  AuthorityPath `json:"authority"`
}

// TransferLedger is the per-step record built from the bus once a step
// completes. Values handed out by the coordinator are copies; treat them as
// read-only.
type TransferLedger struct {
	RunID                      string          `json:"run_id"`
	Step                       int64           `json:"step"`
	SimTimeSec                 float64         `json:"sim_time_sec"`
	Events                     []TransferEvent `json:"events"`
	UnledgeredMutationDetected bool            `json:"unledgered_mutation_detected"`
	Reason                     string          `json:"reason,omitempty"`
	Violations                 []Violation     `json:"violations,omitempty"`
}

// HasSignal reports whether the ledger holds an event with the given signal
// and quantity type.
func (l TransferLedger) HasSignal(signal SignalKind, quantity QuantityType) bool {
	for _, ev := range l.Events {
		if ev.Signal == signal && ev.Quantity == quantity {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (l TransferLedger) Clone() TransferLedger {
	cp := l
	if l.Events != nil {
		cp.Events = append([]TransferEvent(nil), l.Events...)
	}
	if l.Violations != nil {
		cp.Violations = append([]Violation(nil), l.Violations...)
	}
	return cp
}

// StepRecord is what the coordinator hands to step sinks after every step.
type StepRecord struct {
	RunID       string             `json:"run_id"`
	Ledger      TransferLedger     `json:"ledger"`
	Comparisons []ComparatorResult `json:"comparisons,omitempty"`
	Plant       PlantState         `json:"plant"`
	RecordedAt  time.Time          `json:"recorded_at"`
}

// Clone returns a deep copy.
func (r StepRecord) Clone() StepRecord {
	cp := r
	cp.Ledger = r.Ledger.Clone()
	if r.Comparisons != nil {
		cp.Comparisons = append([]ComparatorResult(nil), r.Comparisons...)
	}
	return cp
}
