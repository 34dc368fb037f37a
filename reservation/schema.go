/*
schema.go - Single bidirectional field-name dictionary

The outward API speaks camelCase, the store speaks snake_case. All
translation lives in this one table instead of inline string transforms
scattered across the update path.
*/
package reservation

// fieldColumns maps API field names onto store column names.
var fieldColumns = map[string]string{
	"apartmentId":     "apartment_id",
	"clientId":        "client_id",
	"checkInDate":     "check_in",
	"checkOutDate":    "check_out",
	"nights":          "nights",
	"pricePerNight":   "price_per_night",
	"cleaningFee":     "cleaning_fee",
	"cancellationFee": "cancellation_fee",
	"otherExpenses":   "other_expenses",
	"parkingFee":      "parking_fee",
	"taxes":           "taxes",
	"totalAmount":     "total_amount",
	"amountDue":       "amount_due",
	"amountPaid":      "amount_paid",
	"paymentStatus":   "payment_status",
	"status":          "status",
	"notes":           "notes",
	"createdAt":       "created_at",
	"updatedAt":       "updated_at",
}

// columnFields is the reverse mapping, built once at init.
var columnFields = func() map[string]string {
	m := make(map[string]string, len(fieldColumns))
	for field, column := range fieldColumns {
		m[column] = field
	}
	return m
}()

// ColumnFor translates an API field name to its store column.
func ColumnFor(field string) (string, bool) {
	c, ok := fieldColumns[field]
	return c, ok
}

// FieldFor translates a store column back to its API field name.
func FieldFor(column string) (string, bool) {
	f, ok := columnFields[column]
	return f, ok
}
