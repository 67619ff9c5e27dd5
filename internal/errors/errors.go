// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrDomain          = errors.New("numeric domain error")
	ErrUnknownTemplate = errors.New("unknown strategy template")
	ErrInvalidLeg      = errors.New("invalid option leg")
	ErrLegNotFound     = errors.New("leg not found")
	ErrSessionClosed   = errors.New("session closed")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrInputValidation = errors.New("input validation failed")
)

// DomainError is returned when an input lies outside the domain of the
// closed-form pricing formula (non-positive strike, volatility or spot).
type DomainError struct {
	Op     string
	Field  string
	Value  float64
	Reason string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("domain error [%s]: %s=%g: %s", e.Op, e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrDomain) match any DomainError.
func (e *DomainError) Is(target error) bool {
	return target == ErrDomain
}

// NewDomainError creates a new DomainError.
func NewDomainError(op, field string, value float64, reason string) *DomainError {
	return &DomainError{
		Op:     op,
		Field:  field,
		Value:  value,
		Reason: reason,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Is lets errors.Is(err, ErrInputValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// LegError ties a failure to one leg of a portfolio.
type LegError struct {
	Portfolio string
	Index     int
	Err       error
}

func (e *LegError) Error() string {
	if e.Portfolio == "" {
		return fmt.Sprintf("leg %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("portfolio %s leg %d: %v", e.Portfolio, e.Index, e.Err)
}

func (e *LegError) Unwrap() error {
	return e.Err
}

// NewLegError creates a new LegError.
func NewLegError(portfolio string, index int, err error) *LegError {
	return &LegError{
		Portfolio: portfolio,
		Index:     index,
		Err:       err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
