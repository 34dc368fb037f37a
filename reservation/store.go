/*
store.go - Persistence interface for the reservation ledger

PURPOSE:
  Defines what the engine needs from durable storage. Implementations:
  - store/sqlite: production store (WAL-mode SQLite)
  - store/memory: in-memory store for tests

CONTRACT NOTES:
  - Get* returns (nil, nil) when the record does not exist; callers
    translate that to ErrNotFound at the operation boundary
  - Update takes the expected version and returns ErrVersionConflict
    when it is stale; the later write never silently wins
  - RegisterPayment appends the ledger row and updates the parent
    reservation in ONE atomic unit; a ledger entry must never exist
    without its balance update
  - ListPayments returns the ledger most-recent-first; it is the audit
    trail and is never mutated by normal flows
*/
package reservation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgeworks/booking-engine/pricing"
)

// Update is the set of fields a reservation write may touch. Nil
// pointers leave the stored value alone. Derived fields appear here
// because the service writes reconciled output, but the service is the
// only author of them.
type Update struct {
	ApartmentID *string
	ClientID    *string

	CheckIn  *time.Time
	CheckOut *time.Time

	Nights          *decimal.Decimal
	PricePerNight   *decimal.Decimal
	CleaningFee     *decimal.Decimal
	CancellationFee *decimal.Decimal
	OtherExpenses   *decimal.Decimal
	ParkingFee      *decimal.Decimal
	Taxes           *decimal.Decimal

	TotalAmount *decimal.Decimal
	AmountDue   *decimal.Decimal
	AmountPaid  *decimal.Decimal

	PaymentStatus *pricing.PaymentStatus
	Status        *Status
	Notes         *string
}

// Store is the ledger store: reservations, their payment ledger, and
// read-only catalog reference data for joins.
type Store interface {
	InsertReservation(ctx context.Context, r *Reservation) error
	GetReservation(ctx context.Context, id string) (*Reservation, error)
	ListReservations(ctx context.Context, f Filter) ([]*Reservation, error)
	UpdateReservation(ctx context.Context, id string, expectedVersion int64, upd Update) (*Reservation, error)
	DeleteReservation(ctx context.Context, id string) error

	// RegisterPayment atomically appends p and applies upd to the
	// parent reservation, returning its post-payment state.
	RegisterPayment(ctx context.Context, p *Payment, expectedVersion int64, upd Update) (*Reservation, error)
	ListPayments(ctx context.Context, reservationID string) ([]*Payment, error)

	GetClient(ctx context.Context, id string) (*Client, error)
	GetApartment(ctx context.Context, id string) (*Apartment, error)
}
