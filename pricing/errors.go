/*
errors.go - Error types for the pricing engine

ERROR CATEGORIES:
  1. Missing inputs  - formula cannot run because a field is unknown
  2. Uncomputable    - an input was supplied but is not a finite number

Callers distinguish the two: missing inputs are a hard validation
failure (the write is rejected), while uncomputable inputs mean the
previously stored totals must be retained.
*/
package pricing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingFields is returned when the total formula cannot be
	// evaluated because one or more inputs are unknown.
	ErrMissingFields = errors.New("missing fields for calculation")

	// ErrUncomputable is returned when an input was supplied but does
	// not coerce to a finite number.
	ErrUncomputable = errors.New("charge fields are not computable")
)

// MissingFieldsError names the formula inputs that were resolvable from
// neither the update nor the stored reservation.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing fields for calculation: %s", strings.Join(e.Fields, ", "))
}

func (e *MissingFieldsError) Unwrap() error {
	return ErrMissingFields
}

// IsMissingFields reports whether err is a missing-input failure.
func IsMissingFields(err error) bool {
	return errors.Is(err, ErrMissingFields)
}
