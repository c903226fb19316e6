package domain

import "errors"

var (
	// ErrSingleWriterViolation is returned when a subsystem is modular-authoritative
	// while its legacy control path still writes. It is fatal for the step.
	ErrSingleWriterViolation = errors.New("single-writer violation")
	// ErrInvalidArgument reports a caller-supplied value outside the contract.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidOperation reports a call that is not valid in the current configuration.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrNilArgument reports a missing required collaborator.
	ErrNilArgument = errors.New("nil argument")
	// ErrDuplicateStep is returned by ledger stores when a step is appended twice.
	ErrDuplicateStep = errors.New("step already recorded")
)
