/*
errors.go - Centralized error types for the reservation domain

ERROR CATEGORIES:
  1. Validation errors  - malformed input, bad filter combinations,
     illegal workflow transitions; rejected before any store mutation
  2. Not-found errors   - operation targets a missing reservation/payment
  3. Conflict errors    - optimistic version check failed
  4. Persistence errors - store failures, wrapped with operation context

Side-effect failures (documents, email) are NOT here: they travel on a
separate channel and never fail the primary operation. See notify.
*/
package reservation

import (
	"errors"
	"fmt"

	"github.com/lodgeworks/booking-engine/pricing"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a reservation or payment id does not exist.
	ErrNotFound = errors.New("reservation not found")

	// ErrVersionConflict is returned when an update carries a stale
	// version token. The caller should re-read and retry.
	ErrVersionConflict = errors.New("reservation was modified concurrently")

	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransitionError describes an illegal workflow move.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition reservation from %q to %q", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrValidation }

// FilterError describes a rejected filter parameter combination. It is
// raised before any query executes.
type FilterError struct {
	Param  string
	Reason string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid filter parameter %q: %s", e.Param, e.Reason)
}

func (e *FilterError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is an optimistic concurrency conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsClientError reports whether err is the caller's fault: validation
// failures, bad filter combinations, illegal transitions, or pricing
// inputs that could not be resolved.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || pricing.IsMissingFields(err)
}
