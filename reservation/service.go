/*
service.go - Reservation lifecycle orchestration

PURPOSE:
  The one place where pricing, persistence, and the workflow state
  machine meet. Every write path runs through here:

    Create          -> validate, quote, insert
    Update          -> read, reconcile, versioned write
    UpdateStatus    -> transition check, lightweight status-only write
    RegisterPayment -> append ledger row + balance update, atomically
    Delete          -> explicit admin removal

  Reads go through an optional cache; every write invalidates it.

ORDERING:
  Within one request the service always reads current state before
  merging, then writes once with the version observed at read time.
  A concurrent writer bumps the version and the later write fails with
  ErrVersionConflict instead of silently discarding derived totals.

SIDE EFFECTS:
  Documents and email are NOT triggered here. The API layer requests
  them explicitly after the primary operation commits, on a separate
  error channel.
*/
package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lodgeworks/booking-engine/pricing"
)

// Cache is the optional read-through layer in front of GetReservation.
// Implementations live in the cache package; a nil Cache is valid.
type Cache interface {
	Get(ctx context.Context, id string) (*Reservation, bool)
	Set(ctx context.Context, r *Reservation)
	Invalidate(ctx context.Context, id string)
}

// Service orchestrates the reservation lifecycle.
type Service struct {
	store Store
	cache Cache
	log   zerolog.Logger
	now   func() time.Time
}

// NewService wires the service. cache may be nil.
func NewService(store Store, cache Cache, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		cache: cache,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// WithClock pins the service clock. Tests only.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// =============================================================================
// CREATE
// =============================================================================

// CreateInput carries the initial terms of a stay. Absent charge fields
// default to zero at creation; partial updates later never default.
type CreateInput struct {
	ApartmentID     string
	ClientID        string
	CheckIn         *time.Time
	CheckOut        *time.Time
	Nights          int64
	PricePerNight   decimal.Decimal
	CleaningFee     decimal.Decimal
	CancellationFee decimal.Decimal
	OtherExpenses   decimal.Decimal
	ParkingFee      decimal.Decimal
	Taxes           decimal.Decimal
	Notes           string
}

func (in CreateInput) validate() error {
	if in.ApartmentID == "" {
		return &ValidationError{Field: "apartmentId", Reason: "is required"}
	}
	if in.ClientID == "" {
		return &ValidationError{Field: "clientId", Reason: "is required"}
	}
	if in.Nights < 1 {
		return &ValidationError{Field: "nights", Reason: "must be at least 1"}
	}
	for field, v := range map[string]decimal.Decimal{
		"pricePerNight":   in.PricePerNight,
		"cleaningFee":     in.CleaningFee,
		"cancellationFee": in.CancellationFee,
		"otherExpenses":   in.OtherExpenses,
		"parkingFee":      in.ParkingFee,
		"taxes":           in.Taxes,
	} {
		if v.IsNegative() {
			return &ValidationError{Field: field, Reason: "must not be negative"}
		}
	}
	if in.CheckIn != nil && in.CheckOut != nil && !in.CheckOut.After(*in.CheckIn) {
		return &ValidationError{Field: "checkOutDate", Reason: "must be after checkInDate"}
	}
	return nil
}

// Create validates the stay terms, derives the initial quote, and
// persists the reservation with status pending.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Reservation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	nights := decimal.NewFromInt(in.Nights)
	r := &Reservation{
		ID:              uuid.NewString(),
		ApartmentID:     in.ApartmentID,
		ClientID:        in.ClientID,
		CheckIn:         in.CheckIn,
		CheckOut:        in.CheckOut,
		Nights:          &nights,
		PricePerNight:   dup(in.PricePerNight),
		CleaningFee:     dup(in.CleaningFee),
		CancellationFee: dup(in.CancellationFee),
		OtherExpenses:   dup(in.OtherExpenses),
		ParkingFee:      dup(in.ParkingFee),
		Taxes:           dup(in.Taxes),
		AmountPaid:      decimal.Zero,
		Status:          StatusPending,
		Notes:           in.Notes,
		Version:         1,
		CreatedAt:       s.now(),
		UpdatedAt:       s.now(),
	}

	quote, err := pricing.Compute(r.Charges(), decimal.Zero)
	if err != nil {
		return nil, err
	}
	r.TotalAmount = quote.TotalAmount
	r.AmountDue = quote.AmountDue
	r.PaymentStatus = pricing.DerivePaymentStatus(decimal.Zero, quote.AmountDue)

	if err := s.store.InsertReservation(ctx, r); err != nil {
		return nil, fmt.Errorf("insert reservation: %w", err)
	}

	// Re-read for the joined display fields.
	created, err := s.store.GetReservation(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("read back reservation %s: %w", r.ID, err)
	}
	if created == nil {
		created = r
	}
	s.log.Info().Str("reservation_id", r.ID).Str("client_id", r.ClientID).Msg("reservation created")
	return created, nil
}

// =============================================================================
// READ
// =============================================================================

// Get returns one reservation with joined display fields.
func (s *Service) Get(ctx context.Context, id string) (*Reservation, error) {
	if s.cache != nil {
		if r, ok := s.cache.Get(ctx, id); ok {
			return r, nil
		}
	}
	r, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", id, err)
	}
	if r == nil {
		return nil, ErrNotFound
	}
	if s.cache != nil {
		s.cache.Set(ctx, r)
	}
	return r, nil
}

// List answers a filtered query. Combination errors surface before any
// store access.
func (s *Service) List(ctx context.Context, f Filter) ([]*Reservation, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	rs, err := s.store.ListReservations(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return rs, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateInput is a partial update. Nil pointers and unset pricing
// fields leave stored values untouched.
type UpdateInput struct {
	Pricing pricing.Patch

	ApartmentID *string
	ClientID    *string
	CheckIn     *time.Time
	CheckOut    *time.Time
	Status      *Status
	Notes       *string

	// ExpectedVersion enables caller-held optimistic tokens. When nil,
	// the version observed at read time is used.
	ExpectedVersion *int64
}

// statusOnly reports whether the caller's intent is purely a workflow
// transition, which skips reconciliation entirely.
func (in UpdateInput) statusOnly() bool {
	return in.Status != nil &&
		in.Pricing.Empty() &&
		in.ApartmentID == nil && in.ClientID == nil &&
		in.CheckIn == nil && in.CheckOut == nil && in.Notes == nil
}

// Update merges in over the stored reservation, recalculating derived
// totals when charge fields are touched.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Reservation, error) {
	cur, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", id, err)
	}
	if cur == nil {
		return nil, ErrNotFound
	}

	version := cur.Version
	if in.ExpectedVersion != nil {
		version = *in.ExpectedVersion
	}

	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, &ValidationError{Field: "status", Reason: "unknown workflow state"}
		}
		if !cur.Status.CanTransitionTo(*in.Status) {
			return nil, &TransitionError{From: cur.Status, To: *in.Status}
		}
	}

	// Cheap, common path: a pure transition pays no merge cost.
	if in.statusOnly() {
		return s.writeUpdate(ctx, id, version, Update{Status: in.Status})
	}

	if err := validatePatch(in.Pricing); err != nil {
		return nil, err
	}

	resolved, err := pricing.Reconcile(cur.PricingState(), in.Pricing)
	if err != nil {
		return nil, err
	}

	upd := Update{
		ApartmentID: in.ApartmentID,
		ClientID:    in.ClientID,
		CheckIn:     in.CheckIn,
		CheckOut:    in.CheckOut,
		Status:      in.Status,
		Notes:       in.Notes,

		Nights:        resolved.Applied.Nights,
		PricePerNight: resolved.Applied.PricePerNight,
		CleaningFee:   resolved.Applied.CleaningFee,
		OtherExpenses: resolved.Applied.OtherExpenses,
		ParkingFee:    resolved.Applied.ParkingFee,
		Taxes:         resolved.Applied.Taxes,

		AmountPaid:    resolved.AmountPaid,
		PaymentStatus: resolved.PaymentStatus,
	}

	// Derived fields always travel as a pair, and only when the merge
	// actually produced them.
	if !in.Pricing.Empty() {
		upd.TotalAmount = &resolved.TotalAmount
		upd.AmountDue = &resolved.AmountDue
	}

	return s.writeUpdate(ctx, id, version, upd)
}

// UpdateStatus is the status-only endpoint variant.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status) (*Reservation, error) {
	return s.Update(ctx, id, UpdateInput{Status: &next})
}

// OverridePaymentStatus is the explicit admin override path for the
// otherwise derived payment status.
func (s *Service) OverridePaymentStatus(ctx context.Context, id string, ps pricing.PaymentStatus) (*Reservation, error) {
	switch ps {
	case pricing.PaymentPending, pricing.PaymentPartial, pricing.PaymentComplete:
	default:
		return nil, &ValidationError{Field: "paymentStatus", Reason: "unknown payment status"}
	}
	cur, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", id, err)
	}
	if cur == nil {
		return nil, ErrNotFound
	}
	return s.writeUpdate(ctx, id, cur.Version, Update{PaymentStatus: &ps})
}

func (s *Service) writeUpdate(ctx context.Context, id string, version int64, upd Update) (*Reservation, error) {
	r, err := s.store.UpdateReservation(ctx, id, version, upd)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	return r, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// PaymentInput carries one ledger entry to register.
type PaymentInput struct {
	Amount      decimal.Decimal
	Method      string
	Reference   string
	Notes       string
	PaymentDate *time.Time
}

// RegisterPayment appends an immutable ledger entry and re-derives the
// parent reservation's balance in one atomic store operation. Returns
// the reservation in its post-payment state.
func (s *Service) RegisterPayment(ctx context.Context, reservationID string, in PaymentInput) (*Reservation, error) {
	if !in.Amount.IsPositive() {
		return nil, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if in.Method == "" {
		return nil, &ValidationError{Field: "paymentMethod", Reason: "is required"}
	}

	cur, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", reservationID, err)
	}
	if cur == nil {
		return nil, ErrNotFound
	}

	paid := cur.AmountPaid.Add(in.Amount)
	due := pricing.AmountDueFor(cur.TotalAmount, paid)
	status := pricing.DerivePaymentStatus(paid, due)

	when := s.now()
	if in.PaymentDate != nil {
		when = *in.PaymentDate
	}
	p := &Payment{
		ID:            uuid.NewString(),
		ReservationID: reservationID,
		Amount:        in.Amount,
		PaymentDate:   when,
		Method:        in.Method,
		Reference:     in.Reference,
		Notes:         in.Notes,
		CreatedAt:     s.now(),
	}

	updated, err := s.store.RegisterPayment(ctx, p, cur.Version, Update{
		AmountPaid:    &paid,
		AmountDue:     &due,
		PaymentStatus: &status,
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, reservationID)
	}
	s.log.Info().
		Str("reservation_id", reservationID).
		Str("payment_id", p.ID).
		Str("amount", in.Amount.String()).
		Str("payment_status", string(status)).
		Msg("payment registered")
	return updated, nil
}

// ListPayments returns the audit trail, most recent first.
func (s *Service) ListPayments(ctx context.Context, reservationID string) ([]*Payment, error) {
	cur, err := s.store.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", reservationID, err)
	}
	if cur == nil {
		return nil, ErrNotFound
	}
	return s.store.ListPayments(ctx, reservationID)
}

// =============================================================================
// DELETE
// =============================================================================

// Delete is the explicit admin removal path. Checked-out and cancelled
// reservations otherwise remain for record keeping.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteReservation(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, id)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func validatePatch(p pricing.Patch) error {
	for field, f := range map[string]pricing.Field{
		"pricePerNight": p.PricePerNight,
		"cleaningFee":   p.CleaningFee,
		"otherExpenses": p.OtherExpenses,
		"parkingFee":    p.ParkingFee,
		"taxes":         p.Taxes,
		"amountPaid":    p.AmountPaid,
	} {
		if f.Set && !f.Invalid && f.Value.IsNegative() {
			return &ValidationError{Field: field, Reason: "must not be negative"}
		}
	}
	if p.Nights.Set && !p.Nights.Invalid {
		if !p.Nights.Value.IsInteger() || p.Nights.Value.LessThan(decimal.NewFromInt(1)) {
			return &ValidationError{Field: "nights", Reason: "must be a whole number of at least 1"}
		}
	}
	return nil
}

func dup(d decimal.Decimal) *decimal.Decimal {
	return &d
}
