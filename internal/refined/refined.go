package refined

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationError reports malformed input at a construction boundary.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation: %s", e.Message)
}

// NonEmptyString is a string guaranteed non-blank after trimming.
type NonEmptyString struct {
	s string
}

// NewNonEmptyString validates and wraps s. Whitespace-only input is
// rejected; surrounding whitespace is preserved, not trimmed.
func NewNonEmptyString(field, s string) (NonEmptyString, error) {
	if strings.TrimSpace(s) == "" {
		return NonEmptyString{}, &ValidationError{Field: field, Message: "must be non-empty"}
	}
	return NonEmptyString{s: s}, nil
}

// String returns the wrapped value.
func (n NonEmptyString) String() string {
	return n.s
}

// IsZero reports whether n is the (invalid) zero value, i.e. was never
// constructed through the factory.
func (n NonEmptyString) IsZero() bool {
	return n.s == ""
}

// PositiveDecimal is an exact decimal guaranteed strictly greater than
// zero.
type PositiveDecimal struct {
	d decimal.Decimal
}

// NewPositiveDecimal validates and wraps d.
func NewPositiveDecimal(field string, d decimal.Decimal) (PositiveDecimal, error) {
	if !d.IsPositive() {
		return PositiveDecimal{}, &ValidationError{Field: field, Message: fmt.Sprintf("must be > 0, got %s", d)}
	}
	return PositiveDecimal{d: d}, nil
}

// Decimal returns the wrapped value.
func (p PositiveDecimal) Decimal() decimal.Decimal {
	return p.d
}

// NonZeroDecimal is an exact decimal guaranteed non-zero.
type NonZeroDecimal struct {
	d decimal.Decimal
}

// NewNonZeroDecimal validates and wraps d.
func NewNonZeroDecimal(field string, d decimal.Decimal) (NonZeroDecimal, error) {
	if d.IsZero() {
		return NonZeroDecimal{}, &ValidationError{Field: field, Message: "must be non-zero"}
	}
	return NonZeroDecimal{d: d}, nil
}

// Decimal returns the wrapped value.
func (n NonZeroDecimal) Decimal() decimal.Decimal {
	return n.d
}
