package pricing_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgeworks/booking-engine/pricing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func decp(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func field(v float64) pricing.Field { return pricing.NewField(dec(v)) }

// fullCharges returns the complete input set for the reference stay:
// 3 nights at 100 with 50 cleaning and 10 taxes.
func fullCharges() pricing.Charges {
	return pricing.Charges{
		Nights:        decp(3),
		PricePerNight: decp(100),
		CleaningFee:   decp(50),
		OtherExpenses: decp(0),
		ParkingFee:    decp(0),
		Taxes:         decp(10),
	}
}

// =============================================================================
// CALCULATOR TESTS
// =============================================================================

func TestCompute_ReferenceStay(t *testing.T) {
	quote, err := pricing.Compute(fullCharges(), decimal.Zero)
	require.NoError(t, err)

	assert.True(t, quote.TotalAmount.Equal(dec(360)), "total: %s", quote.TotalAmount)
	assert.True(t, quote.AmountDue.Equal(dec(360)))
}

func TestCompute_AmountDueClampedAtZero(t *testing.T) {
	// GIVEN: An overpayment larger than the total
	quote, err := pricing.Compute(fullCharges(), dec(500))
	require.NoError(t, err)

	// THEN: amountDue never goes negative
	assert.True(t, quote.AmountDue.IsZero())
	assert.True(t, quote.TotalAmount.Equal(dec(360)))
}

func TestCompute_MissingFieldsNamed(t *testing.T) {
	c := fullCharges()
	c.CleaningFee = nil
	c.Taxes = nil

	_, err := pricing.Compute(c, decimal.Zero)
	require.Error(t, err)
	require.True(t, pricing.IsMissingFields(err))

	var missing *pricing.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"cleaningFee", "taxes"}, missing.Fields)
}

func TestDerivePaymentStatus(t *testing.T) {
	assert.Equal(t, pricing.PaymentPending, pricing.DerivePaymentStatus(dec(0), dec(360)))
	assert.Equal(t, pricing.PaymentPartial, pricing.DerivePaymentStatus(dec(200), dec(160)))
	assert.Equal(t, pricing.PaymentComplete, pricing.DerivePaymentStatus(dec(360), dec(0)))
	// Overpayment still reads complete.
	assert.Equal(t, pricing.PaymentComplete, pricing.DerivePaymentStatus(dec(500), dec(-140)))
}

// =============================================================================
// RECONCILIATION TESTS
// =============================================================================

func currentReference() pricing.Current {
	return pricing.Current{
		Charges:     fullCharges(),
		TotalAmount: dec(360),
		AmountDue:   dec(360),
		AmountPaid:  decimal.Zero,
	}
}

func TestReconcile_EmptyPatchPassesThrough(t *testing.T) {
	// GIVEN: An update touching no pricing fields (e.g. notes only)
	out, err := pricing.Reconcile(currentReference(), pricing.Patch{})
	require.NoError(t, err)

	// THEN: Totals are untouched and no recalculation happened
	assert.False(t, out.Recalculated)
	assert.True(t, out.TotalAmount.Equal(dec(360)))
	assert.True(t, out.AmountDue.Equal(dec(360)))
	assert.Nil(t, out.AmountPaid)
	assert.Nil(t, out.PaymentStatus)
}

func TestReconcile_SingleChargeTriggersRecalculation(t *testing.T) {
	// WHEN: Only pricePerNight changes, everything else resolves from storage
	out, err := pricing.Reconcile(currentReference(), pricing.Patch{
		PricePerNight: field(120),
	})
	require.NoError(t, err)

	require.True(t, out.Recalculated)
	assert.True(t, out.TotalAmount.Equal(dec(420)), "3*120 + 50 + 10 = 420, got %s", out.TotalAmount)
	assert.True(t, out.AmountDue.Equal(dec(420)))
	require.NotNil(t, out.Applied.PricePerNight)
	assert.True(t, out.Applied.PricePerNight.Equal(dec(120)))
	assert.Nil(t, out.Applied.Nights, "untouched fields stay out of the applied set")
}

func TestReconcile_Idempotent(t *testing.T) {
	// GIVEN: A patch restating the already-current values
	out, err := pricing.Reconcile(currentReference(), pricing.Patch{
		Nights:        field(3),
		PricePerNight: field(100),
	})
	require.NoError(t, err)

	assert.True(t, out.TotalAmount.Equal(dec(360)))
	assert.True(t, out.AmountDue.Equal(dec(360)))
}

func TestReconcile_MissingFromBothSidesFails(t *testing.T) {
	// GIVEN: A stored record with a corrupted (absent) cleaningFee
	cur := currentReference()
	cur.Charges.CleaningFee = nil

	// WHEN: An update touches pricePerNight without supplying cleaningFee
	_, err := pricing.Reconcile(cur, pricing.Patch{PricePerNight: field(120)})

	// THEN: The merge fails naming the field; nothing is guessed
	require.Error(t, err)
	var missing *pricing.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"cleaningFee"}, missing.Fields)
}

func TestReconcile_InvalidValueRetainsStoredTotals(t *testing.T) {
	// GIVEN: A patch whose taxes value failed numeric parsing
	out, err := pricing.Reconcile(currentReference(), pricing.Patch{
		Taxes: pricing.InvalidField(),
	})
	require.NoError(t, err)

	// THEN: Stored totals survive; the invalid value never lands
	assert.False(t, out.Recalculated)
	assert.True(t, out.TotalAmount.Equal(dec(360)))
	assert.True(t, out.AmountDue.Equal(dec(360)))
	assert.Nil(t, out.Applied.Taxes)
}

func TestReconcile_ParseFieldFeedsInvalidPath(t *testing.T) {
	raw := "not-a-number"
	f := pricing.ParseField(&raw)
	assert.True(t, f.Set)
	assert.True(t, f.Invalid)

	good := "12.50"
	f = pricing.ParseField(&good)
	require.True(t, f.Set)
	require.False(t, f.Invalid)
	assert.True(t, f.Value.Equal(dec(12.5)))

	assert.False(t, pricing.ParseField(nil).Set)
}

func TestReconcile_AmountPaidDerivesStatus(t *testing.T) {
	// WHEN: The patch carries a partial payment
	out, err := pricing.Reconcile(currentReference(), pricing.Patch{
		AmountPaid: field(200),
	})
	require.NoError(t, err)

	require.NotNil(t, out.AmountPaid)
	assert.True(t, out.AmountPaid.Equal(dec(200)))
	assert.True(t, out.AmountDue.Equal(dec(160)))
	require.NotNil(t, out.PaymentStatus)
	assert.Equal(t, pricing.PaymentPartial, *out.PaymentStatus)
}

func TestReconcile_AmountPaidAgainstRecalculatedTotal(t *testing.T) {
	// WHEN: Charges and payment change in the same update
	out, err := pricing.Reconcile(currentReference(), pricing.Patch{
		PricePerNight: field(120),
		AmountPaid:    field(420),
	})
	require.NoError(t, err)

	assert.True(t, out.TotalAmount.Equal(dec(420)))
	assert.True(t, out.AmountDue.IsZero())
	require.NotNil(t, out.PaymentStatus)
	assert.Equal(t, pricing.PaymentComplete, *out.PaymentStatus)
}

func TestReconcile_OverpaymentClamps(t *testing.T) {
	out, err := pricing.Reconcile(currentReference(), pricing.Patch{
		AmountPaid: field(1000),
	})
	require.NoError(t, err)

	assert.True(t, out.AmountDue.IsZero())
	assert.Equal(t, pricing.PaymentComplete, *out.PaymentStatus)
}
