package crudox

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("crudox: record not found")

	// ErrUnsupported is returned when an operation is invoked against a
	// service that does not implement the required capability.
	ErrUnsupported = errors.New("crudox: operation not supported by this service")

	// ErrTxStarted is returned when attempting to start a new transaction
	// within an existing transaction.
	ErrTxStarted = errors.New("crudox: cannot start a transaction within a transaction")
)

// NotFoundError represents an error when a record is not found.
type NotFoundError struct {
	label string
	id    any // Optional: the ID that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("crudox: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("crudox: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the ID that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ValidationError represents a malformed query input: an operator that does
// not apply to the field's type, an order path through a to-many relation,
// an unknown groupBy field, and so on. It is raised per request and surfaced
// to the caller as a structured rejection.
type ValidationError struct {
	Name string // Field or path that failed validation
	Err  error  // Underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("crudox: invalid query input for %q: %s", e.Name, e.Err)
	}
	return fmt.Sprintf("crudox: invalid query input: %s", e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError for the given field or path.
func NewValidationError(name string, err error) *ValidationError {
	return &ValidationError{Name: name, Err: err}
}

// NewValidationErrorf formats a new ValidationError.
func NewValidationErrorf(name, format string, args ...any) *ValidationError {
	return &ValidationError{Name: name, Err: fmt.Errorf(format, args...)}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// ConfigError represents an invalid structure or schema descriptor: an unknown
// field name in an inclusion map, a duplicate aggregate alias, an operation
// enabled against a service lacking the capability. Configuration errors are
// raised at composition time and are fatal to startup.
type ConfigError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("crudox: invalid configuration: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.wrap
}

// NewConfigError returns a new ConfigError with the given message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{msg: fmt.Sprintf(format, args...)}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e)
}

// UnsupportedOperationError is returned when a composed operation is invoked
// against a service that does not implement the extended capability, for
// example a soft-delete operation against a plain service.
type UnsupportedOperationError struct {
	Operation string
	Service   string
}

// Error returns the error string.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("crudox: operation %q not supported by service %q", e.Operation, e.Service)
}

// Is reports whether the target error matches UnsupportedOperationError.
func (e *UnsupportedOperationError) Is(err error) bool {
	return err == ErrUnsupported
}

// NewUnsupportedOperationError returns a new UnsupportedOperationError.
func NewUnsupportedOperationError(operation, service string) *UnsupportedOperationError {
	return &UnsupportedOperationError{Operation: operation, Service: service}
}

// IsUnsupportedOperation returns true if the error is an UnsupportedOperationError.
func IsUnsupportedOperation(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedOperationError
	return errors.As(err, &e) || errors.Is(err, ErrUnsupported)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("crudox: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("crudox: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}
