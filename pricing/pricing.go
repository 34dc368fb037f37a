/*
Package pricing computes the monetary invariants of a reservation.

PURPOSE:
  This package contains the pure pricing logic: deriving a reservation's
  total_amount and amount_due from its charge fields, and reconciling a
  partial update against stored state without corrupting previously
  derived values. No I/O, no store access, fully deterministic.

KEY CONCEPTS IN THIS FILE (pricing.go):
  - Field: an optional numeric input that tracks both presence and
    validity (a value that failed numeric parsing is "invalid", which
    is not the same as absent)
  - Charges: the merged set of charge inputs the calculator consumes
  - Quote: the derived {TotalAmount, AmountDue} pair
  - PaymentStatus: pending/partial/complete, derived from the quote

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, never float math on money
  2. Explicit failure: missing inputs produce a typed error naming the
     fields; invalid inputs signal "uncomputable" so callers retain
     the previously stored totals instead of writing garbage
  3. Consistency: a quote is always a complete pair; TotalAmount and
     AmountDue are never produced independently

SEE ALSO:
  - reconcile.go: Partial-update merge built on the calculator
  - errors.go: Error types used here
*/
package pricing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// OPTIONAL NUMERIC FIELD
// =============================================================================

// Field is an optional numeric input. Set reports whether the caller
// supplied the field at all; Invalid reports that a value was supplied
// but could not be read as a finite number.
type Field struct {
	Set     bool
	Invalid bool
	Value   decimal.Decimal
}

// NewField wraps a known-good decimal value.
func NewField(v decimal.Decimal) Field {
	return Field{Set: true, Value: v}
}

// InvalidField marks a field that was present but unparseable.
func InvalidField() Field {
	return Field{Set: true, Invalid: true}
}

// ParseField reads an optional raw string into a Field. A nil pointer
// means absent; a string that does not parse as a decimal is invalid.
func ParseField(raw *string) Field {
	if raw == nil {
		return Field{}
	}
	v, err := decimal.NewFromString(*raw)
	if err != nil {
		return InvalidField()
	}
	return NewField(v)
}

// =============================================================================
// CHARGES AND QUOTE
// =============================================================================

// Charges holds the inputs of the total formula. A nil pointer means the
// value is unknown; the calculator refuses to guess defaults for unknowns.
type Charges struct {
	Nights        *decimal.Decimal
	PricePerNight *decimal.Decimal
	CleaningFee   *decimal.Decimal
	OtherExpenses *decimal.Decimal
	ParkingFee    *decimal.Decimal
	Taxes         *decimal.Decimal
}

// chargeFields is the canonical order used in error reporting.
var chargeFields = []string{
	"nights", "pricePerNight", "cleaningFee", "otherExpenses", "parkingFee", "taxes",
}

func (c Charges) get(name string) *decimal.Decimal {
	switch name {
	case "nights":
		return c.Nights
	case "pricePerNight":
		return c.PricePerNight
	case "cleaningFee":
		return c.CleaningFee
	case "otherExpenses":
		return c.OtherExpenses
	case "parkingFee":
		return c.ParkingFee
	case "taxes":
		return c.Taxes
	}
	return nil
}

// Missing returns the names of formula inputs that are unknown.
func (c Charges) Missing() []string {
	var missing []string
	for _, name := range chargeFields {
		if c.get(name) == nil {
			missing = append(missing, name)
		}
	}
	return missing
}

// Quote is the derived pair. The two values are always computed together.
type Quote struct {
	TotalAmount decimal.Decimal
	AmountDue   decimal.Decimal
}

// Compute evaluates the invariant:
//
//	totalAmount = nights*pricePerNight + cleaningFee + otherExpenses + parkingFee + taxes
//	amountDue   = max(0, totalAmount - amountPaid)
//
// Taxes is an absolute amount supplied by the caller, never a derived
// percentage. Any unknown input fails with a MissingFieldsError.
func Compute(c Charges, amountPaid decimal.Decimal) (Quote, error) {
	if missing := c.Missing(); len(missing) > 0 {
		return Quote{}, &MissingFieldsError{Fields: missing}
	}

	total := c.Nights.Mul(*c.PricePerNight).
		Add(*c.CleaningFee).
		Add(*c.OtherExpenses).
		Add(*c.ParkingFee).
		Add(*c.Taxes)

	return Quote{
		TotalAmount: total,
		AmountDue:   AmountDueFor(total, amountPaid),
	}, nil
}

// AmountDueFor clamps the outstanding balance at zero.
func AmountDueFor(totalAmount, amountPaid decimal.Decimal) decimal.Decimal {
	due := totalAmount.Sub(amountPaid)
	if due.IsNegative() {
		return decimal.Zero
	}
	return due
}

// =============================================================================
// PAYMENT STATUS
// =============================================================================

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPartial  PaymentStatus = "partial"
	PaymentComplete PaymentStatus = "complete"
)

// DerivePaymentStatus maps the paid/due pair onto the status enum:
// complete when nothing is due, partial when some money has landed but
// a balance remains, pending otherwise.
func DerivePaymentStatus(amountPaid, amountDue decimal.Decimal) PaymentStatus {
	switch {
	case amountDue.LessThanOrEqual(decimal.Zero):
		return PaymentComplete
	case amountPaid.IsPositive():
		return PaymentPartial
	default:
		return PaymentPending
	}
}
