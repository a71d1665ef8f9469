package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is wrapped by repositories when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is wrapped inside a PersistenceError on uniqueness conflicts.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInvalidTransition is returned when a document status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError reports malformed input caught before any calculation or write.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// PolicyViolation is returned when an out movement would break the negative-stock rule.
// CurrentStock is the on-hand quantity at the time of the rejection.
type PolicyViolation struct {
	ProductID    int64
	Requested    decimal.Decimal
	CurrentStock decimal.Decimal
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: on hand %s, requested %s",
		e.ProductID, e.CurrentStock.String(), e.Requested.String())
}

// PersistenceError wraps a storage failure. The enclosing transaction is always rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ConfigurationError reports a missing or malformed configuration record.
// Callers log it and continue with safe defaults.
type ConfigurationError struct {
	Source string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Source, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(source, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Source: source, Err: fmt.Errorf(format, args...)}
}
