package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownCommand   = errors.New("protocol: unknown command")
	ErrMissingField     = errors.New("protocol: missing field")
	ErrInvalidValue     = errors.New("protocol: invalid field value")
	ErrDuplicateCommand = errors.New("protocol: duplicate command registration")
)

// ProtocolError is a malformed or unroutable packet. It is always answered
// with a failure response.
type ProtocolError struct {
	Command uint16
	Err     error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: command=0x%04x: %v", e.Command, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ValidationError is a request whose fields are missing or out of range.
type ValidationError struct {
	FieldID uint16
	Field   string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: field=0x%04x: %v", e.FieldID, e.Err)
	}
	return fmt.Sprintf("validation: %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// VendorActionError is a failure reported by a device-side action.
type VendorActionError struct {
	Action string
	Err    error
}

func (e *VendorActionError) Error() string {
	return fmt.Sprintf("vendor action %s failed: %v", e.Action, e.Err)
}

func (e *VendorActionError) Unwrap() error { return e.Err }

// Missing builds a ValidationError for an absent field.
func Missing(id uint16, name string) error {
	return &ValidationError{FieldID: id, Field: name, Err: ErrMissingField}
}

// Invalid builds a ValidationError for a malformed field.
func Invalid(id uint16, name string, reason string) error {
	return &ValidationError{FieldID: id, Field: name, Err: fmt.Errorf("%w: %s", ErrInvalidValue, reason)}
}
