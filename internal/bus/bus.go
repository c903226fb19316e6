// Package bus implements the plant bus: the per-step buffer of transfer
// intents from which the coordinator builds each step's ledger.
//
// The bus is pure bookkeeping. It accepts any signal or node tag, never fails,
// and keeps nothing across steps once ClearStep is called. It is not safe for
// concurrent use; stepping is single-threaded.
package bus

import "plantsim/pkg/domain"

// PlantBus accumulates transfer events within a step.
type PlantBus struct {
	events []domain.TransferEvent
}

// New constructs an empty bus.
func New() *PlantBus {
	return &PlantBus{}
}

// EmitFlowTransfer records a flow transfer (gpm).
func (b *PlantBus) EmitFlowTransfer(step int64, signal domain.SignalKind, from, to string, magnitude float64, isBoundary bool, authority domain.AuthorityPath) {
	b.emit(step, signal, domain.QuantityFlow, from, to, magnitude, isBoundary, authority)
}

// EmitEnergyTransfer records an energy transfer (kW).
func (b *PlantBus) EmitEnergyTransfer(step int64, signal domain.SignalKind, from, to string, magnitude float64, isBoundary bool, authority domain.AuthorityPath) {
	b.emit(step, signal, domain.QuantityEnergy, from, to, magnitude, isBoundary, authority)
}

// EmitMassTransfer records a mass transfer (lbm).
func (b *PlantBus) EmitMassTransfer(step int64, signal domain.SignalKind, from, to string, magnitude float64, isBoundary bool, authority domain.AuthorityPath) {
	b.emit(step, signal, domain.QuantityMass, from, to, magnitude, isBoundary, authority)
}

func (b *PlantBus) emit(step int64, signal domain.SignalKind, quantity domain.QuantityType, from, to string, magnitude float64, isBoundary bool, authority domain.AuthorityPath) {
	b.events = append(b.events, domain.TransferEvent{
		Step:       step,
		Signal:     signal,
		Quantity:   quantity,
		From:       from,
		To:         to,
		Magnitude:  magnitude,
		IsBoundary: isBoundary,
		Authority:  authority,
	})
}

// HasSignal reports whether an event matching both the signal and quantity
// type has been emitted since the last ClearStep.
func (b *PlantBus) HasSignal(signal domain.SignalKind, quantity domain.QuantityType) bool {
	for _, ev := range b.events {
		if ev.Signal == signal && ev.Quantity == quantity {
			return true
		}
	}
	return false
}

// SnapshotEvents returns a copy of the buffered events in emission order. The
// buffer itself is left intact.
func (b *PlantBus) SnapshotEvents() []domain.TransferEvent {
	out := make([]domain.TransferEvent, len(b.events))
	copy(out, b.events)
	return out
}

// Len returns the number of buffered events.
func (b *PlantBus) Len() int {
	return len(b.events)
}

// ClearStep discards the current step's buffer.
func (b *PlantBus) ClearStep() {
	b.events = b.events[:0]
}
