/*
service_test.go - Reservation lifecycle tests

Tests for:
- Create: quote derivation, validation, defaults
- Update: partial merge, recalculation, version conflicts
- Status transitions and terminal states
- Payment registration and balance derivation
- Payment status overrides
*/
package reservation_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgeworks/booking-engine/pricing"
	"github.com/lodgeworks/booking-engine/reservation"
	"github.com/lodgeworks/booking-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func strp(s string) *string { return &s }

func numField(v float64) pricing.Field { return pricing.NewField(dec(v)) }

func newService(t *testing.T) (*reservation.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	store.SeedClient(reservation.Client{
		ID: "client-1", Name: "Ada", Lastname: "Lovelace", Email: "ada@example.com",
	})
	store.SeedApartment(reservation.Apartment{
		ID: "apt-1", Name: "Seaview Loft", Address: "1 Harbor St",
	})
	return reservation.NewService(store, nil, zerolog.Nop()), store
}

// createReference persists the reference stay: 3 nights at 100 with 50
// cleaning and 10 taxes, totalling 360.
func createReference(t *testing.T, svc *reservation.Service) *reservation.Reservation {
	t.Helper()
	checkIn := time.Date(2026, 9, 10, 15, 0, 0, 0, time.UTC)
	checkOut := time.Date(2026, 9, 13, 11, 0, 0, 0, time.UTC)
	r, err := svc.Create(context.Background(), reservation.CreateInput{
		ApartmentID:   "apt-1",
		ClientID:      "client-1",
		CheckIn:       &checkIn,
		CheckOut:      &checkOut,
		Nights:        3,
		PricePerNight: dec(100),
		CleaningFee:   dec(50),
		Taxes:         dec(10),
	})
	require.NoError(t, err)
	return r
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_DerivesInitialQuote(t *testing.T) {
	svc, _ := newService(t)

	r := createReference(t, svc)

	assert.True(t, r.TotalAmount.Equal(dec(360)), "total: %s", r.TotalAmount)
	assert.True(t, r.AmountDue.Equal(dec(360)))
	assert.True(t, r.AmountPaid.IsZero())
	assert.Equal(t, pricing.PaymentPending, r.PaymentStatus)
	assert.Equal(t, reservation.StatusPending, r.Status)
	assert.Equal(t, int64(1), r.Version)
	assert.Equal(t, "Ada", r.ClientName)
	assert.Equal(t, "Seaview Loft", r.ApartmentName)
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   reservation.CreateInput
	}{
		{"missing apartment", reservation.CreateInput{ClientID: "client-1", Nights: 1}},
		{"missing client", reservation.CreateInput{ApartmentID: "apt-1", Nights: 1}},
		{"zero nights", reservation.CreateInput{ApartmentID: "apt-1", ClientID: "client-1", Nights: 0}},
		{"negative fee", reservation.CreateInput{
			ApartmentID: "apt-1", ClientID: "client-1", Nights: 1, CleaningFee: dec(-5),
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.in)
			require.Error(t, err)
			assert.True(t, reservation.IsClientError(err))
		})
	}
}

func TestCreate_CheckOutMustFollowCheckIn(t *testing.T) {
	svc, _ := newService(t)
	checkIn := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
	checkOut := checkIn.AddDate(0, 0, -1)

	_, err := svc.Create(context.Background(), reservation.CreateInput{
		ApartmentID: "apt-1", ClientID: "client-1", Nights: 1,
		CheckIn: &checkIn, CheckOut: &checkOut,
	})

	require.Error(t, err)
	assert.True(t, reservation.IsClientError(err))
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdate_SingleChargeRecalculates(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)

	// WHEN: only the cleaning fee changes
	updated, err := svc.Update(context.Background(), r.ID, reservation.UpdateInput{
		Pricing: pricing.Patch{CleaningFee: numField(110)},
	})
	require.NoError(t, err)

	// THEN: the total reflects the merge of new and stored values
	assert.True(t, updated.TotalAmount.Equal(dec(420)), "total: %s", updated.TotalAmount)
	assert.True(t, updated.AmountDue.Equal(dec(420)))
	assert.Equal(t, int64(2), updated.Version)
}

func TestUpdate_NotesOnlyKeepsTotals(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)

	updated, err := svc.Update(context.Background(), r.ID, reservation.UpdateInput{
		Notes: strp("late arrival"),
	})
	require.NoError(t, err)

	assert.Equal(t, "late arrival", updated.Notes)
	assert.True(t, updated.TotalAmount.Equal(dec(360)))
}

func TestUpdate_InvalidChargeRetainsStoredTotals(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)

	// WHEN: a charge arrives present but unparseable
	updated, err := svc.Update(context.Background(), r.ID, reservation.UpdateInput{
		Pricing: pricing.Patch{Taxes: pricing.InvalidField()},
	})
	require.NoError(t, err)

	// THEN: derived totals survive untouched
	assert.True(t, updated.TotalAmount.Equal(dec(360)))
	assert.True(t, updated.AmountDue.Equal(dec(360)))
}

func TestUpdate_AmountPaidRederivesBalance(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)

	updated, err := svc.Update(context.Background(), r.ID, reservation.UpdateInput{
		Pricing: pricing.Patch{AmountPaid: numField(200)},
	})
	require.NoError(t, err)

	assert.True(t, updated.AmountPaid.Equal(dec(200)))
	assert.True(t, updated.AmountDue.Equal(dec(160)))
	assert.Equal(t, pricing.PaymentPartial, updated.PaymentStatus)
}

func TestUpdate_StaleVersionConflicts(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)

	// First writer bumps the version.
	_, err := svc.Update(context.Background(), r.ID, reservation.UpdateInput{
		Notes: strp("first"),
	})
	require.NoError(t, err)

	// Second writer still holds version 1.
	stale := r.Version
	_, err = svc.Update(context.Background(), r.ID, reservation.UpdateInput{
		Notes:           strp("second"),
		ExpectedVersion: &stale,
	})

	require.Error(t, err)
	assert.True(t, reservation.IsConflict(err))
}

func TestUpdate_UnknownReservation(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Update(context.Background(), "nope", reservation.UpdateInput{
		Notes: strp("x"),
	})

	assert.True(t, reservation.IsNotFound(err))
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

func TestUpdateStatus_ForwardPath(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)
	ctx := context.Background()

	for _, next := range []reservation.Status{
		reservation.StatusConfirmed,
		reservation.StatusCheckedIn,
		reservation.StatusCheckedOut,
	} {
		updated, err := svc.UpdateStatus(ctx, r.ID, next)
		require.NoError(t, err, "transition to %s", next)
		assert.Equal(t, next, updated.Status)
	}
}

func TestUpdateStatus_SameStateIsNoOp(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)

	updated, err := svc.UpdateStatus(context.Background(), r.ID, reservation.StatusPending)

	require.NoError(t, err)
	assert.Equal(t, reservation.StatusPending, updated.Status)
}

func TestUpdateStatus_RejectsSkippedStates(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)

	_, err := svc.UpdateStatus(context.Background(), r.ID, reservation.StatusCheckedOut)

	require.Error(t, err)
	assert.True(t, reservation.IsClientError(err))
}

func TestUpdateStatus_CancelFromAnyActiveState(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	r := createReference(t, svc)
	_, err := svc.UpdateStatus(ctx, r.ID, reservation.StatusConfirmed)
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, r.ID, reservation.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, updated.Status)

	// Terminal: nothing leaves cancelled.
	_, err = svc.UpdateStatus(ctx, r.ID, reservation.StatusConfirmed)
	require.Error(t, err)
	assert.True(t, reservation.IsClientError(err))
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestRegisterPayment_DerivesBalanceAndStatus(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)
	ctx := context.Background()

	// WHEN: 200 of 360 lands
	updated, err := svc.RegisterPayment(ctx, r.ID, reservation.PaymentInput{
		Amount: dec(200), Method: "card",
	})
	require.NoError(t, err)

	assert.True(t, updated.AmountPaid.Equal(dec(200)))
	assert.True(t, updated.AmountDue.Equal(dec(160)))
	assert.Equal(t, pricing.PaymentPartial, updated.PaymentStatus)

	// WHEN: the remainder lands
	updated, err = svc.RegisterPayment(ctx, r.ID, reservation.PaymentInput{
		Amount: dec(160), Method: "transfer",
	})
	require.NoError(t, err)

	assert.True(t, updated.AmountDue.IsZero())
	assert.Equal(t, pricing.PaymentComplete, updated.PaymentStatus)

	// THEN: both ledger entries are retained, most recent first
	payments, err := svc.ListPayments(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.True(t, payments[0].Amount.Equal(dec(160)))
	assert.True(t, payments[1].Amount.Equal(dec(200)))
}

func TestRegisterPayment_OverpaymentClampsDue(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)

	updated, err := svc.RegisterPayment(context.Background(), r.ID, reservation.PaymentInput{
		Amount: dec(500), Method: "cash",
	})
	require.NoError(t, err)

	assert.True(t, updated.AmountDue.IsZero())
	assert.True(t, updated.AmountPaid.Equal(dec(500)))
	assert.Equal(t, pricing.PaymentComplete, updated.PaymentStatus)
}

func TestRegisterPayment_RejectsNonPositiveAmount(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)

	_, err := svc.RegisterPayment(context.Background(), r.ID, reservation.PaymentInput{
		Amount: dec(0), Method: "cash",
	})

	require.Error(t, err)
	assert.True(t, reservation.IsClientError(err))
}

func TestRegisterPayment_RequiresMethod(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)

	_, err := svc.RegisterPayment(context.Background(), r.ID, reservation.PaymentInput{
		Amount: dec(50),
	})

	require.Error(t, err)
	assert.True(t, reservation.IsClientError(err))
}

func TestListPayments_UnknownReservation(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.ListPayments(context.Background(), "nope")

	assert.True(t, reservation.IsNotFound(err))
}

// =============================================================================
// PAYMENT STATUS OVERRIDE
// =============================================================================

func TestOverridePaymentStatus(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)

	updated, err := svc.OverridePaymentStatus(context.Background(), r.ID, pricing.PaymentComplete)
	require.NoError(t, err)
	assert.Equal(t, pricing.PaymentComplete, updated.PaymentStatus)

	// Amounts are untouched by the override.
	assert.True(t, updated.AmountDue.Equal(dec(360)))
}

func TestOverridePaymentStatus_RejectsUnknown(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)

	_, err := svc.OverridePaymentStatus(context.Background(), r.ID, "settled")

	require.Error(t, err)
	assert.True(t, reservation.IsClientError(err))
}

// =============================================================================
// DELETE
// =============================================================================

func TestDelete_RemovesReservation(t *testing.T) {
	svc, _ := newService(t)
	r := createReference(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, r.ID))

	_, err := svc.Get(ctx, r.ID)
	assert.True(t, reservation.IsNotFound(err))
}
