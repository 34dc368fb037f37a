/*
Package memory provides an in-memory implementation of the ledger store.

Used by tests and demos. Mirrors the SQLite store's semantics exactly:
version-checked updates, atomic payment registration, most-recent-first
payment listing, and filter evaluation identical to the compiled WHERE
clauses (it delegates to Filter.Matches).
*/
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgeworks/booking-engine/reservation"
)

// Store keeps everything in maps behind one mutex. Safe for concurrent
// use; not durable.
type Store struct {
	mu           sync.RWMutex
	reservations map[string]*reservation.Reservation
	payments     map[string][]*reservation.Payment
	clients      map[string]*reservation.Client
	apartments   map[string]*reservation.Apartment
}

func New() *Store {
	return &Store{
		reservations: make(map[string]*reservation.Reservation),
		payments:     make(map[string][]*reservation.Payment),
		clients:      make(map[string]*reservation.Client),
		apartments:   make(map[string]*reservation.Apartment),
	}
}

// =============================================================================
// RESERVATIONS
// =============================================================================

func (s *Store) InsertReservation(ctx context.Context, r *reservation.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := clone(r)
	s.join(cp)
	s.reservations[r.ID] = cp
	return nil
}

func (s *Store) GetReservation(ctx context.Context, id string) (*reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[id]
	if !ok {
		return nil, nil
	}
	return clone(r), nil
}

func (s *Store) ListReservations(ctx context.Context, f reservation.Filter) ([]*reservation.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*reservation.Reservation
	for _, r := range s.reservations {
		if f.Matches(r) {
			out = append(out, clone(r))
		}
	}
	// Most-recent check-in first; records without a check-in sink.
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].CheckIn, out[j].CheckIn
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return out, nil
}

func (s *Store) UpdateReservation(ctx context.Context, id string, expectedVersion int64, upd reservation.Update) (*reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyUpdate(id, expectedVersion, upd)
}

func (s *Store) DeleteReservation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reservations[id]; !ok {
		return reservation.ErrNotFound
	}
	delete(s.reservations, id)
	delete(s.payments, id)
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) RegisterPayment(ctx context.Context, p *reservation.Payment, expectedVersion int64, upd reservation.Update) (*reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Both effects happen under one lock or not at all, matching the
	// SQL transaction in the durable store.
	updated, err := s.applyUpdate(p.ReservationID, expectedVersion, upd)
	if err != nil {
		return nil, err
	}
	cp := *p
	s.payments[p.ReservationID] = append(s.payments[p.ReservationID], &cp)
	return updated, nil
}

func (s *Store) ListPayments(ctx context.Context, reservationID string) ([]*reservation.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.payments[reservationID]
	out := make([]*reservation.Payment, len(entries))
	for i, p := range entries {
		cp := *p
		out[i] = &cp
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PaymentDate.After(out[j].PaymentDate)
	})
	return out, nil
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

func (s *Store) GetClient(ctx context.Context, id string) (*reservation.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *Store) GetApartment(ctx context.Context, id string) (*reservation.Apartment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apartments[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

// SeedClient registers reference data for joins. Test/bootstrap only.
func (s *Store) SeedClient(c reservation.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.ID] = &c
	for _, r := range s.reservations {
		if r.ClientID == c.ID {
			s.join(r)
		}
	}
}

// SeedApartment registers reference data for joins. Test/bootstrap only.
func (s *Store) SeedApartment(a reservation.Apartment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apartments[a.ID] = &a
	for _, r := range s.reservations {
		if r.ApartmentID == a.ID {
			s.join(r)
		}
	}
}

// =============================================================================
// INTERNALS
// =============================================================================

func (s *Store) applyUpdate(id string, expectedVersion int64, upd reservation.Update) (*reservation.Reservation, error) {
	r, ok := s.reservations[id]
	if !ok {
		return nil, reservation.ErrNotFound
	}
	if r.Version != expectedVersion {
		return nil, reservation.ErrVersionConflict
	}

	if upd.ApartmentID != nil {
		r.ApartmentID = *upd.ApartmentID
	}
	if upd.ClientID != nil {
		r.ClientID = *upd.ClientID
	}
	if upd.CheckIn != nil {
		t := *upd.CheckIn
		r.CheckIn = &t
	}
	if upd.CheckOut != nil {
		t := *upd.CheckOut
		r.CheckOut = &t
	}
	if upd.Nights != nil {
		v := *upd.Nights
		r.Nights = &v
	}
	if upd.PricePerNight != nil {
		v := *upd.PricePerNight
		r.PricePerNight = &v
	}
	if upd.CleaningFee != nil {
		v := *upd.CleaningFee
		r.CleaningFee = &v
	}
	if upd.CancellationFee != nil {
		v := *upd.CancellationFee
		r.CancellationFee = &v
	}
	if upd.OtherExpenses != nil {
		v := *upd.OtherExpenses
		r.OtherExpenses = &v
	}
	if upd.ParkingFee != nil {
		v := *upd.ParkingFee
		r.ParkingFee = &v
	}
	if upd.Taxes != nil {
		v := *upd.Taxes
		r.Taxes = &v
	}
	if upd.TotalAmount != nil {
		r.TotalAmount = *upd.TotalAmount
	}
	if upd.AmountDue != nil {
		r.AmountDue = *upd.AmountDue
	}
	if upd.AmountPaid != nil {
		r.AmountPaid = *upd.AmountPaid
	}
	if upd.PaymentStatus != nil {
		r.PaymentStatus = *upd.PaymentStatus
	}
	if upd.Status != nil {
		r.Status = *upd.Status
	}
	if upd.Notes != nil {
		r.Notes = *upd.Notes
	}

	r.Version++
	r.UpdatedAt = time.Now().UTC()
	s.join(r)
	return clone(r), nil
}

func (s *Store) join(r *reservation.Reservation) {
	if c, ok := s.clients[r.ClientID]; ok {
		r.ClientName = c.Name
		r.ClientLastname = c.Lastname
		r.ClientEmail = c.Email
	}
	if a, ok := s.apartments[r.ApartmentID]; ok {
		r.ApartmentName = a.Name
		r.ApartmentAddr = a.Address
	}
}

func clone(r *reservation.Reservation) *reservation.Reservation {
	cp := *r
	cp.CheckIn = copyTime(r.CheckIn)
	cp.CheckOut = copyTime(r.CheckOut)
	cp.Nights = copyDec(r.Nights)
	cp.PricePerNight = copyDec(r.PricePerNight)
	cp.CleaningFee = copyDec(r.CleaningFee)
	cp.CancellationFee = copyDec(r.CancellationFee)
	cp.OtherExpenses = copyDec(r.OtherExpenses)
	cp.ParkingFee = copyDec(r.ParkingFee)
	cp.Taxes = copyDec(r.Taxes)
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyDec(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
