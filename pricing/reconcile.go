/*
reconcile.go - Merging a partial update against stored pricing state

PURPOSE:
  A reservation update rarely carries every charge field. This file
  merges the supplied fields over the stored ones, decides whether the
  totals must be recalculated, and guarantees the output is internally
  consistent: TotalAmount and AmountDue always move together.

MERGE RULES:
  1. No charge field touched, no amountPaid -> pass-through, zero risk.
  2. Any charge field touched -> every formula input must resolve from
     the update or from the stored record; otherwise fail naming the
     missing fields. Nothing is guessed.
  3. A touched-but-invalid value makes the quote uncomputable: the
     stored totals are retained and the invalid value is never written.
  4. amountPaid in the update re-derives amountDue against the current
     (possibly just recalculated) total, clamped at zero, and re-derives
     the payment status.

SEE ALSO:
  - pricing.go: Compute, the formula itself
*/
package pricing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUTS
// =============================================================================

// Current is the stored pricing state of a reservation. Charge pointers
// may be nil when the stored record itself is incomplete.
type Current struct {
	Charges     Charges
	TotalAmount decimal.Decimal
	AmountDue   decimal.Decimal
	AmountPaid  decimal.Decimal
}

// Patch is the pricing-relevant slice of a partial update. Absent fields
// leave the stored values alone.
type Patch struct {
	Nights        Field
	PricePerNight Field
	CleaningFee   Field
	OtherExpenses Field
	ParkingFee    Field
	Taxes         Field
	AmountPaid    Field
}

func (p Patch) chargeFields() map[string]Field {
	return map[string]Field{
		"nights":        p.Nights,
		"pricePerNight": p.PricePerNight,
		"cleaningFee":   p.CleaningFee,
		"otherExpenses": p.OtherExpenses,
		"parkingFee":    p.ParkingFee,
		"taxes":         p.Taxes,
	}
}

// TouchesCharges reports whether any formula input appears in the patch.
func (p Patch) TouchesCharges() bool {
	for _, f := range p.chargeFields() {
		if f.Set {
			return true
		}
	}
	return false
}

// Empty reports whether the patch carries no pricing content at all.
// Callers use this to short-circuit status-only updates past the merge.
func (p Patch) Empty() bool {
	return !p.TouchesCharges() && !p.AmountPaid.Set
}

// =============================================================================
// OUTPUT
// =============================================================================

// Resolved is the complete, internally consistent result of a merge.
// Charge values appear in Applied only when the patch carried a valid
// new value for them; totals are always present and always a pair.
type Resolved struct {
	Applied       Charges
	TotalAmount   decimal.Decimal
	AmountDue     decimal.Decimal
	AmountPaid    *decimal.Decimal
	PaymentStatus *PaymentStatus
	Recalculated  bool
}

// =============================================================================
// RECONCILE
// =============================================================================

// Reconcile merges patch over cur. See the file header for the rules.
func Reconcile(cur Current, patch Patch) (Resolved, error) {
	out := Resolved{
		TotalAmount: cur.TotalAmount,
		AmountDue:   cur.AmountDue,
	}

	if patch.Empty() {
		return out, nil
	}

	if patch.TouchesCharges() {
		merged := cur.Charges
		uncomputable := false
		for name, f := range patch.chargeFields() {
			if !f.Set {
				continue
			}
			if f.Invalid {
				uncomputable = true
				continue
			}
			v := f.Value
			setCharge(&merged, name, &v)
			setCharge(&out.Applied, name, &v)
		}

		// Every formula input must resolve from somewhere before the
		// uncomputable fallback is even considered.
		if missing := merged.Missing(); len(missing) > 0 {
			return Resolved{}, &MissingFieldsError{Fields: missing}
		}

		if uncomputable {
			// Retain the stored totals; the invalid values never land.
			out.Recalculated = false
		} else {
			paid := cur.AmountPaid
			if patch.AmountPaid.Set && !patch.AmountPaid.Invalid {
				paid = patch.AmountPaid.Value
			}
			quote, err := Compute(merged, paid)
			if err != nil {
				return Resolved{}, err
			}
			out.TotalAmount = quote.TotalAmount
			out.AmountDue = quote.AmountDue
			out.Recalculated = true
		}
	}

	if patch.AmountPaid.Set && !patch.AmountPaid.Invalid {
		paid := patch.AmountPaid.Value
		out.AmountPaid = &paid
		out.AmountDue = AmountDueFor(out.TotalAmount, paid)
		status := DerivePaymentStatus(paid, out.AmountDue)
		out.PaymentStatus = &status
	}

	return out, nil
}

func setCharge(c *Charges, name string, v *decimal.Decimal) {
	switch name {
	case "nights":
		c.Nights = v
	case "pricePerNight":
		c.PricePerNight = v
	case "cleaningFee":
		c.CleaningFee = v
	case "otherExpenses":
		c.OtherExpenses = v
	case "parkingFee":
		c.ParkingFee = v
	case "taxes":
		c.Taxes = v
	}
}
