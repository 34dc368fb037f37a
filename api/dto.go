/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures of the HTTP surface, decoupled from the
  domain types. Outward field names are camelCase; the single mapping
  onto store column names lives in reservation/schema.go.

DATES:
  Stored timestamps are real time values; responses format them as
  MM-DD-YYYY HH:mm for display. Requests accept either that format,
  bare dates (MM-DD-YYYY / YYYY-MM-DD), or RFC3339.

NUMBERS:
  Update requests carry monetary fields as json.Number so that a
  present-but-unparseable value is distinguishable from an absent one.
  The pricing engine treats the former as uncomputable and keeps the
  stored totals, never writing garbage.
*/
package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lodgeworks/booking-engine/pricing"
	"github.com/lodgeworks/booking-engine/reservation"
)

// displayTime is the presentation format for all response dates.
const displayTime = "01-02-2006 15:04"

// requestDateLayouts are accepted on input, tried in order.
var requestDateLayouts = []string{
	time.RFC3339,
	"01-02-2006 15:04",
	"2006-01-02 15:04",
	"01-02-2006",
	"2006-01-02",
}

// =============================================================================
// RESERVATION DTOs
// =============================================================================

// ReservationDTO is a reservation in API responses.
type ReservationDTO struct {
	ID          string `json:"id"`
	ApartmentID string `json:"apartmentId"`
	ClientID    string `json:"clientId"`

	CheckInDate  string `json:"checkInDate,omitempty"`
	CheckOutDate string `json:"checkOutDate,omitempty"`

	Nights          *float64 `json:"nights,omitempty"`
	PricePerNight   *float64 `json:"pricePerNight,omitempty"`
	CleaningFee     *float64 `json:"cleaningFee,omitempty"`
	CancellationFee *float64 `json:"cancellationFee,omitempty"`
	OtherExpenses   *float64 `json:"otherExpenses,omitempty"`
	ParkingFee      *float64 `json:"parkingFee,omitempty"`
	Taxes           *float64 `json:"taxes,omitempty"`

	TotalAmount   float64 `json:"totalAmount"`
	AmountDue     float64 `json:"amountDue"`
	AmountPaid    float64 `json:"amountPaid"`
	PaymentStatus string  `json:"paymentStatus"`

	Status  string `json:"status"`
	Notes   string `json:"notes,omitempty"`
	Version int64  `json:"version"`

	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`

	ClientName       string `json:"clientName,omitempty"`
	ClientLastname   string `json:"clientLastname,omitempty"`
	ClientEmail      string `json:"clientEmail,omitempty"`
	ApartmentName    string `json:"apartmentName,omitempty"`
	ApartmentAddress string `json:"apartmentAddress,omitempty"`
}

// CreateReservationRequest carries the initial stay terms. Charge
// fields default to zero; partial updates later never default.
type CreateReservationRequest struct {
	ApartmentID     string  `json:"apartmentId" validate:"required"`
	ClientID        string  `json:"clientId" validate:"required"`
	CheckInDate     string  `json:"checkInDate"`
	CheckOutDate    string  `json:"checkOutDate"`
	Nights          int64   `json:"nights" validate:"required,gte=1"`
	PricePerNight   float64 `json:"pricePerNight" validate:"gte=0"`
	CleaningFee     float64 `json:"cleaningFee" validate:"gte=0"`
	CancellationFee float64 `json:"cancellationFee" validate:"gte=0"`
	OtherExpenses   float64 `json:"otherExpenses" validate:"gte=0"`
	ParkingFee      float64 `json:"parkingFee" validate:"gte=0"`
	Taxes           float64 `json:"taxes" validate:"gte=0"`
	Notes           string  `json:"notes"`
}

// UpdateReservationRequest is a partial update. Absent fields leave
// stored values untouched. Numeric fields arrive as raw JSON so that a
// present-but-unparseable value ("abc", true) reaches the pricing
// engine as invalid instead of failing the whole body decode.
type UpdateReservationRequest struct {
	ApartmentID  *string `json:"apartmentId"`
	ClientID     *string `json:"clientId"`
	CheckInDate  *string `json:"checkInDate"`
	CheckOutDate *string `json:"checkOutDate"`

	Nights        json.RawMessage `json:"nights"`
	PricePerNight json.RawMessage `json:"pricePerNight"`
	CleaningFee   json.RawMessage `json:"cleaningFee"`
	OtherExpenses json.RawMessage `json:"otherExpenses"`
	ParkingFee    json.RawMessage `json:"parkingFee"`
	Taxes         json.RawMessage `json:"taxes"`
	AmountPaid    json.RawMessage `json:"amountPaid"`

	Status *string `json:"status"`
	Notes  *string `json:"notes"`

	ExpectedVersion *int64 `json:"expectedVersion"`
}

// Patch projects the request's pricing fields into the engine's input.
func (r UpdateReservationRequest) Patch() pricing.Patch {
	return pricing.Patch{
		Nights:        rawField(r.Nights),
		PricePerNight: rawField(r.PricePerNight),
		CleaningFee:   rawField(r.CleaningFee),
		OtherExpenses: rawField(r.OtherExpenses),
		ParkingFee:    rawField(r.ParkingFee),
		Taxes:         rawField(r.Taxes),
		AmountPaid:    rawField(r.AmountPaid),
	}
}

// StatusUpdateRequest is the status-only endpoint body.
type StatusUpdateRequest struct {
	Status string `json:"status" validate:"required"`
}

// PaymentStatusUpdateRequest is the payment-status override body.
type PaymentStatusUpdateRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required"`
}

// =============================================================================
// PAYMENT DTOs
// =============================================================================

// PaymentDTO is one ledger entry in API responses.
type PaymentDTO struct {
	ID               string  `json:"id"`
	ReservationID    string  `json:"reservationId"`
	Amount           float64 `json:"amount"`
	PaymentDate      string  `json:"paymentDate"`
	PaymentMethod    string  `json:"paymentMethod"`
	PaymentReference string  `json:"paymentReference,omitempty"`
	Notes            string  `json:"notes,omitempty"`
	CreatedAt        string  `json:"createdAt,omitempty"`
}

// RegisterPaymentRequest appends one ledger entry.
type RegisterPaymentRequest struct {
	Amount           json.Number `json:"amount" validate:"required"`
	PaymentMethod    string      `json:"paymentMethod" validate:"required"`
	PaymentReference string      `json:"paymentReference"`
	PaymentDate      string      `json:"paymentDate"`
	Notes            string      `json:"notes"`
}

// =============================================================================
// NOTIFICATION DTOs
// =============================================================================

// NotifyRequest asks for one explicit email side effect.
type NotifyRequest struct {
	Kind          string `json:"kind" validate:"required"`
	To            string `json:"to" validate:"required"`
	AttachInvoice bool   `json:"attachInvoice"`
}

// NotifyResponse reports delivery on its own channel. The primary
// reservation state is already committed regardless of Delivered.
type NotifyResponse struct {
	Delivered         bool   `json:"delivered"`
	NotificationError string `json:"notificationError,omitempty"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toReservationDTO(r *reservation.Reservation) ReservationDTO {
	dto := ReservationDTO{
		ID:               r.ID,
		ApartmentID:      r.ApartmentID,
		ClientID:         r.ClientID,
		CheckInDate:      formatTime(r.CheckIn),
		CheckOutDate:     formatTime(r.CheckOut),
		Nights:           decFloat(r.Nights),
		PricePerNight:    decFloat(r.PricePerNight),
		CleaningFee:      decFloat(r.CleaningFee),
		CancellationFee:  decFloat(r.CancellationFee),
		OtherExpenses:    decFloat(r.OtherExpenses),
		ParkingFee:       decFloat(r.ParkingFee),
		Taxes:            decFloat(r.Taxes),
		TotalAmount:      r.TotalAmount.InexactFloat64(),
		AmountDue:        r.AmountDue.InexactFloat64(),
		AmountPaid:       r.AmountPaid.InexactFloat64(),
		PaymentStatus:    string(r.PaymentStatus),
		Status:           string(r.Status),
		Notes:            r.Notes,
		Version:          r.Version,
		ClientName:       r.ClientName,
		ClientLastname:   r.ClientLastname,
		ClientEmail:      r.ClientEmail,
		ApartmentName:    r.ApartmentName,
		ApartmentAddress: r.ApartmentAddr,
	}
	if !r.CreatedAt.IsZero() {
		dto.CreatedAt = r.CreatedAt.Format(displayTime)
	}
	if !r.UpdatedAt.IsZero() {
		dto.UpdatedAt = r.UpdatedAt.Format(displayTime)
	}
	return dto
}

func toReservationDTOs(rs []*reservation.Reservation) []ReservationDTO {
	dtos := make([]ReservationDTO, len(rs))
	for i, r := range rs {
		dtos[i] = toReservationDTO(r)
	}
	return dtos
}

func toPaymentDTO(p *reservation.Payment) PaymentDTO {
	return PaymentDTO{
		ID:               p.ID,
		ReservationID:    p.ReservationID,
		Amount:           p.Amount.InexactFloat64(),
		PaymentDate:      p.PaymentDate.Format(displayTime),
		PaymentMethod:    p.Method,
		PaymentReference: p.Reference,
		Notes:            p.Notes,
		CreatedAt:        p.CreatedAt.Format(displayTime),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(displayTime)
}

func rawField(raw json.RawMessage) pricing.Field {
	if len(raw) == 0 {
		return pricing.Field{}
	}
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		return pricing.Field{}
	}
	s = strings.Trim(s, `"`)
	return pricing.ParseField(&s)
}

func decFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// parseRequestDate accepts any supported request layout and normalizes
// to UTC. Bare dates land at midnight.
func parseRequestDate(raw string) (time.Time, error) {
	for _, layout := range requestDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
