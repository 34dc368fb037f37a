/*
Package reservation is the domain layer of the booking engine.

PURPOSE:
  Defines the reservation and payment-ledger records, the workflow state
  machine, the query filter, the storage interface, and the lifecycle
  service that orchestrates pricing, persistence, and side effects.

KEY CONCEPTS IN THIS FILE (types.go):
  - Reservation: one stay booking with charge, derived, and payment fields
  - Payment: one immutable ledger entry of money received
  - Status: workflow enum with explicit transition rules

DESIGN PRINCIPLES:
  1. Derived fields (total_amount, amount_due, payment_status) are only
     ever written by the pricing engine, never authored directly
  2. Timestamps are stored as real time.Time values in UTC; display
     formatting happens at the API boundary only
  3. Every reservation carries an optimistic version token; stale writes
     are rejected as conflicts instead of silently winning

SEE ALSO:
  - service.go: Lifecycle orchestration
  - filter.go: Query filter and its combination rules
  - store.go: Persistence interface
*/
package reservation

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgeworks/booking-engine/pricing"
)

// =============================================================================
// WORKFLOW STATUS
// =============================================================================

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked_in"
	StatusCheckedOut Status = "checked_out"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is a known workflow state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCheckedIn, StatusCheckedOut, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the workflow ends at s.
func (s Status) Terminal() bool {
	return s == StatusCheckedOut || s == StatusCancelled
}

// CanTransitionTo enforces the workflow:
//
//	pending -> confirmed -> checked_in -> checked_out
//
// with cancelled reachable from any non-terminal state. Restating the
// current state is a no-op, not a violation.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusConfirmed
	case StatusConfirmed:
		return next == StatusCheckedIn
	case StatusCheckedIn:
		return next == StatusCheckedOut
	}
	return false
}

// =============================================================================
// RESERVATION
// =============================================================================

// Reservation is one stay booking. Charge pointers are nil only when a
// stored record is incomplete; the pricing engine refuses to compute
// over such records and names the holes instead.
type Reservation struct {
	ID          string
	ApartmentID string
	ClientID    string

	CheckIn  *time.Time
	CheckOut *time.Time

	// Charge fields. Independently settable, all non-negative.
	Nights          *decimal.Decimal
	PricePerNight   *decimal.Decimal
	CleaningFee     *decimal.Decimal
	CancellationFee *decimal.Decimal
	OtherExpenses   *decimal.Decimal
	ParkingFee      *decimal.Decimal
	Taxes           *decimal.Decimal

	// Derived fields, owned by the pricing engine.
	TotalAmount decimal.Decimal
	AmountDue   decimal.Decimal

	AmountPaid    decimal.Decimal
	PaymentStatus pricing.PaymentStatus

	Status  Status
	Notes   string
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time

	// Denormalized display fields from read-only joins. Never written
	// through this engine.
	ClientName     string
	ClientLastname string
	ClientEmail    string
	ApartmentName  string
	ApartmentAddr  string
}

// Charges projects the stored charge fields into the pricing input set.
// CancellationFee is deliberately absent: it is stored and settable but
// never part of the total formula.
func (r *Reservation) Charges() pricing.Charges {
	return pricing.Charges{
		Nights:        r.Nights,
		PricePerNight: r.PricePerNight,
		CleaningFee:   r.CleaningFee,
		OtherExpenses: r.OtherExpenses,
		ParkingFee:    r.ParkingFee,
		Taxes:         r.Taxes,
	}
}

// PricingState projects the stored record into the reconciliation input.
func (r *Reservation) PricingState() pricing.Current {
	return pricing.Current{
		Charges:     r.Charges(),
		TotalAmount: r.TotalAmount,
		AmountDue:   r.AmountDue,
		AmountPaid:  r.AmountPaid,
	}
}

// =============================================================================
// PAYMENT LEDGER ENTRY
// =============================================================================

// Payment is one immutable ledger entry. Normal flows only ever append;
// corrections happen through administrative tooling outside this engine.
type Payment struct {
	ID            string
	ReservationID string
	Amount        decimal.Decimal
	PaymentDate   time.Time
	Method        string
	Reference     string
	Notes         string
	CreatedAt     time.Time
}

// =============================================================================
// REFERENCE DATA (read-only joins)
// =============================================================================

// Client is catalog reference data owned by an external collaborator.
type Client struct {
	ID       string
	Name     string
	Lastname string
	Email    string
	Phone    string
}

// Apartment is catalog reference data owned by an external collaborator.
type Apartment struct {
	ID      string
	Name    string
	Address string
}
