// Package validation checks produced ledgers against the published wire
// schema and scans module source for ledger-bypassing patterns.
package validation

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"plantsim/internal/core"
	"plantsim/pkg/domain"
)

const ledgerSchemaURL = "https://plantsim.local/schema/ledger.schema.json"

//go:embed schema/ledger.schema.json
var ledgerSchema []byte

// LedgerSchema returns the embedded JSON schema for TransferLedger.
func LedgerSchema() []byte { return append([]byte(nil), ledgerSchema...) }

// LedgerValidator checks ledgers against the embedded schema plus the
// cross-field rules a schema cannot express.
type LedgerValidator struct {
	schema *jsonschema.Schema
}

// NewLedgerValidator compiles the embedded schema.
func NewLedgerValidator() (*LedgerValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(ledgerSchemaURL, bytes.NewReader(ledgerSchema)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(ledgerSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &LedgerValidator{schema: schema}, nil
}

// ValidateJSON validates one encoded ledger.
func (v *LedgerValidator) ValidateJSON(raw []byte) error {
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("decode ledger: %w", err)
	}
	if err := v.schema.Validate(payload); err != nil {
		return err
	}
	var ledger domain.TransferLedger
	if err := json.Unmarshal(raw, &ledger); err != nil {
		return fmt.Errorf("decode ledger: %w", err)
	}
	return checkConsistency(ledger)
}

// Validate encodes ledger and validates the encoding.
func (v *LedgerValidator) Validate(ledger domain.TransferLedger) error {
	raw, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	return v.ValidateJSON(raw)
}

func checkConsistency(l domain.TransferLedger) error {
	var errs []error
	for i, ev := range l.Events {
		if ev.Step != l.Step {
			errs = append(errs, fmt.Errorf("events[%d]: step %d in ledger for step %d", i, ev.Step, l.Step))
		}
	}
	mutation := false
	for _, vio := range l.Violations {
		if vio.Severity == domain.SeverityMutation {
			mutation = true
		}
	}
	if mutation != l.UnledgeredMutationDetected {
		errs = append(errs, fmt.Errorf("unledgered_mutation_detected=%t disagrees with violations", l.UnledgeredMutationDetected))
	}
	if l.UnledgeredMutationDetected && l.Reason == "" {
		errs = append(errs, errors.New("flagged ledger has no reason"))
	}
	return errors.Join(errs...)
}

// Sink validates the ledger of every step record. Failures surface through
// the coordinator's sink error accounting.
type Sink struct {
	v *LedgerValidator
}

var _ core.StepSink = (*Sink)(nil)

// NewSink returns a validating step sink.
func NewSink(v *LedgerValidator) *Sink { return &Sink{v: v} }

// Record implements core.StepSink.
func (s *Sink) Record(_ context.Context, record domain.StepRecord) error {
	if err := s.v.Validate(record.Ledger); err != nil {
		return fmt.Errorf("ledger step %d: %w", record.Ledger.Step, err)
	}
	return nil
}
