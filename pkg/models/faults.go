package models

import (
	"errors"
	"fmt"
)

// FaultKind classifies an evaluation failure
type FaultKind string

const (
	FaultValidation       FaultKind = "validation"        // caller supplied an out-of-contract parameter
	FaultModelUnavailable FaultKind = "model_unavailable" // no usable model or artifact
	FaultUpstream         FaultKind = "upstream"          // collaborator outside the core failed
	FaultPersistence      FaultKind = "persistence"       // history could not be recorded
)

// Fault is an error tagged with its kind and the operation that raised it
type Fault struct {
	Kind FaultKind
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	if f.Op == "" {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("%s: %s: %v", f.Kind, f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// NewValidationFault wraps err as a ValidationFault
func NewValidationFault(op string, err error) error {
	return &Fault{Kind: FaultValidation, Op: op, Err: err}
}

// NewModelUnavailableFault wraps err as a ModelUnavailableFault
func NewModelUnavailableFault(op string, err error) error {
	return &Fault{Kind: FaultModelUnavailable, Op: op, Err: err}
}

// NewUpstreamFault wraps err as an UpstreamFault
func NewUpstreamFault(op string, err error) error {
	return &Fault{Kind: FaultUpstream, Op: op, Err: err}
}

// NewPersistenceFault wraps err as a PersistenceFault
func NewPersistenceFault(op string, err error) error {
	return &Fault{Kind: FaultPersistence, Op: op, Err: err}
}

// IsFault reports whether any error in err's chain is a Fault of the given kind
func IsFault(err error, kind FaultKind) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind == kind
	}
	return false
}
