/*
handlers.go - HTTP API handlers for the booking engine

PURPOSE:
  Exposes the reservation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Reservations:
    GET    /api/reservations                    List with filters
    POST   /api/reservations                    Create reservation
    GET    /api/reservations/upcoming           Upcoming check-ins
    GET    /api/reservations/{id}               Get one reservation
    PUT    /api/reservations/{id}               Partial update
    DELETE /api/reservations/{id}               Remove reservation
    PUT    /api/reservations/{id}/status        Workflow transition
    PUT    /api/reservations/{id}/payment-status Manual override

  Payments:
    GET    /api/reservations/{id}/payments      Payment ledger
    POST   /api/reservations/{id}/payments      Register payment

  Documents:
    GET    /api/reservations/{id}/invoice       Invoice workbook (xlsx)
    GET    /api/reports/monthly                 Monthly summary (xlsx)

  Notifications:
    POST   /api/reservations/{id}/notify        Explicit email side effect

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call the reservation service
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, bad filter combinations
  - 404: Reservation not found
  - 409: Version conflict on concurrent update
  - 500: Internal errors
  Notification failures never override the primary operation's status;
  they ride in a notificationError field of a 200 response.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/lodgeworks/booking-engine/document"
	"github.com/lodgeworks/booking-engine/metrics"
	"github.com/lodgeworks/booking-engine/notify"
	"github.com/lodgeworks/booking-engine/pricing"
	"github.com/lodgeworks/booking-engine/reservation"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *reservation.Service
	Docs     *document.Renderer
	Notifier *notify.Notifier

	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a new handler. notifier may be nil when email is
// disabled; the notify endpoint then answers 503.
func NewHandler(svc *reservation.Service, docs *document.Renderer, notifier *notify.Notifier, log zerolog.Logger) *Handler {
	return &Handler{
		Service:  svc,
		Docs:     docs,
		Notifier: notifier,
		validate: validator.New(),
		log:      log,
	}
}

// =============================================================================
// RESERVATION HANDLERS
// =============================================================================

// ListReservations answers a filtered query.
// GET /api/reservations
func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}

	rs, err := h.Service.List(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, "Failed to list reservations", err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTOs(rs))
}

// UpcomingReservations is a shorthand for upcoming=true.
// GET /api/reservations/upcoming
func (h *Handler) UpcomingReservations(w http.ResponseWriter, r *http.Request) {
	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filter", err)
		return
	}
	f.Upcoming = true

	rs, err := h.Service.List(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, "Failed to list upcoming reservations", err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTOs(rs))
}

// CreateReservation creates a reservation from the initial stay terms.
// POST /api/reservations
func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	in := reservation.CreateInput{
		ApartmentID:     req.ApartmentID,
		ClientID:        req.ClientID,
		Nights:          req.Nights,
		PricePerNight:   decimal.NewFromFloat(req.PricePerNight),
		CleaningFee:     decimal.NewFromFloat(req.CleaningFee),
		CancellationFee: decimal.NewFromFloat(req.CancellationFee),
		OtherExpenses:   decimal.NewFromFloat(req.OtherExpenses),
		ParkingFee:      decimal.NewFromFloat(req.ParkingFee),
		Taxes:           decimal.NewFromFloat(req.Taxes),
		Notes:           req.Notes,
	}
	if req.CheckInDate != "" {
		t, err := parseRequestDate(req.CheckInDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid checkInDate", err)
			return
		}
		in.CheckIn = &t
	}
	if req.CheckOutDate != "" {
		t, err := parseRequestDate(req.CheckOutDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid checkOutDate", err)
			return
		}
		in.CheckOut = &t
	}

	created, err := h.Service.Create(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, "Failed to create reservation", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationDTO(created))
}

// GetReservation returns one reservation with joined display fields.
// GET /api/reservations/{id}
func (h *Handler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to get reservation", err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(res))
}

// UpdateReservation applies a partial update. Charge fields touch the
// pricing engine; everything else passes through.
// PUT /api/reservations/{id}
func (h *Handler) UpdateReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := reservation.UpdateInput{
		Pricing:         req.Patch(),
		ApartmentID:     req.ApartmentID,
		ClientID:        req.ClientID,
		Notes:           req.Notes,
		ExpectedVersion: req.ExpectedVersion,
	}
	if req.Status != nil {
		st := reservation.Status(*req.Status)
		in.Status = &st
	}
	if req.CheckInDate != nil {
		t, err := parseRequestDate(*req.CheckInDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid checkInDate", err)
			return
		}
		in.CheckIn = &t
	}
	if req.CheckOutDate != nil {
		t, err := parseRequestDate(*req.CheckOutDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid checkOutDate", err)
			return
		}
		in.CheckOut = &t
	}

	updated, err := h.Service.Update(r.Context(), id, in)
	if err != nil {
		h.writeServiceError(w, "Failed to update reservation", err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(updated))
}

// UpdateStatus performs a workflow transition.
// PUT /api/reservations/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	updated, err := h.Service.UpdateStatus(r.Context(), id, reservation.Status(req.Status))
	if err != nil {
		h.writeServiceError(w, "Failed to update status", err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(updated))
}

// UpdatePaymentStatus is the manual override for the derived payment
// status.
// PUT /api/reservations/{id}/payment-status
func (h *Handler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req PaymentStatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	updated, err := h.Service.OverridePaymentStatus(r.Context(), id, pricing.PaymentStatus(req.PaymentStatus))
	if err != nil {
		h.writeServiceError(w, "Failed to update payment status", err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationDTO(updated))
}

// DeleteReservation removes a reservation. Admin path.
// DELETE /api/reservations/{id}
func (h *Handler) DeleteReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Service.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, "Failed to delete reservation", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns the payment ledger, most recent first.
// GET /api/reservations/{id}/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	payments, err := h.Service.ListPayments(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to list payments", err)
		return
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RegisterPayment appends one ledger entry and returns the reservation
// in its post-payment state.
// POST /api/reservations/{id}/payments
func (h *Handler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var req RegisterPaymentRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	amount, err := decimal.NewFromString(req.Amount.String())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	in := reservation.PaymentInput{
		Amount:    amount,
		Method:    req.PaymentMethod,
		Reference: req.PaymentReference,
		Notes:     req.Notes,
	}
	if req.PaymentDate != "" {
		t, perr := parseRequestDate(req.PaymentDate)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "Invalid paymentDate", perr)
			return
		}
		in.PaymentDate = &t
	}

	updated, err := h.Service.RegisterPayment(r.Context(), id, in)
	if err != nil {
		h.writeServiceError(w, "Failed to register payment", err)
		return
	}
	metrics.IncPayment()
	writeJSON(w, http.StatusCreated, toReservationDTO(updated))
}

// =============================================================================
// DOCUMENT HANDLERS
// =============================================================================

// Invoice renders the reservation's invoice workbook.
// GET /api/reservations/{id}/invoice
func (h *Handler) Invoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to get reservation", err)
		return
	}
	payments, err := h.Service.ListPayments(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to list payments", err)
		return
	}

	data, err := h.Docs.Invoice(res, payments)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render invoice", err)
		return
	}
	metrics.IncDocument("invoice")
	writeWorkbook(w, fmt.Sprintf("invoice-%s.xlsx", res.ID), data)
}

// MonthlyReport renders the monthly summary workbook for ?year=&month=.
// Defaults to the current month.
// GET /api/reports/monthly
func (h *Handler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year, month := now.Year(), now.Month()

	if raw := r.URL.Query().Get("year"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 2000 || y > 2200 {
			writeError(w, http.StatusBadRequest, "Invalid year", nil)
			return
		}
		year = y
	}
	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := strconv.Atoi(raw)
		if err != nil || m < 1 || m > 12 {
			writeError(w, http.StatusBadRequest, "Invalid month", nil)
			return
		}
		month = time.Month(m)
	}

	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	rs, err := h.Service.List(r.Context(), reservation.Filter{StartDate: &start, EndDate: &end})
	if err != nil {
		h.writeServiceError(w, "Failed to list reservations", err)
		return
	}

	data, err := h.Docs.MonthlySummary(year, month, rs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to render report", err)
		return
	}
	metrics.IncDocument("monthly_summary")
	writeWorkbook(w, fmt.Sprintf("summary-%d-%02d.xlsx", year, int(month)), data)
}

// =============================================================================
// NOTIFICATION HANDLER
// =============================================================================

// Notify sends one explicit email about a reservation. Delivery failure
// is reported in the response body, never as an HTTP error, because the
// reservation state this notifies about is already committed.
// POST /api/reservations/{id}/notify
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	if h.Notifier == nil {
		writeError(w, http.StatusServiceUnavailable, "Email is not configured", nil)
		return
	}
	id := chi.URLParam(r, "id")

	var req NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	res, err := h.Service.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to get reservation", err)
		return
	}

	msg, err := notify.BuildMessage(notify.Kind(req.Kind), req.To, res)
	if err != nil {
		h.writeServiceError(w, "Failed to build notification", err)
		return
	}

	if req.AttachInvoice {
		payments, perr := h.Service.ListPayments(r.Context(), id)
		if perr != nil {
			h.writeServiceError(w, "Failed to list payments", perr)
			return
		}
		data, derr := h.Docs.Invoice(res, payments)
		if derr != nil {
			writeError(w, http.StatusInternalServerError, "Failed to render invoice", derr)
			return
		}
		msg.Attachment = &notify.Attachment{
			Filename: fmt.Sprintf("invoice-%s.xlsx", res.ID),
			Content:  data,
		}
	}

	resp := NotifyResponse{Delivered: true}
	if err := h.Notifier.Deliver(r.Context(), msg); err != nil {
		if reservation.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid notification request", err)
			return
		}
		metrics.IncNotificationFailure()
		h.log.Warn().Err(err).Str("reservation_id", id).Msg("notification delivery failed")
		resp.Delivered = false
		resp.NotificationError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// FILTER PARSING
// =============================================================================

// filterFromQuery maps query parameters onto a reservation.Filter.
// Combination rules are enforced by Filter.Validate in the service.
func filterFromQuery(r *http.Request) (reservation.Filter, error) {
	q := r.URL.Query()
	f := reservation.Filter{
		Status:         reservation.Status(q.Get("status")),
		ClientName:     q.Get("clientName"),
		ClientLastname: q.Get("clientLastname"),
		ClientEmail:    q.Get("clientEmail"),
		Q:              q.Get("q"),
	}

	if raw := q.Get("startDate"); raw != "" {
		t, err := parseRequestDate(raw)
		if err != nil {
			return f, &reservation.FilterError{Param: "startDate", Reason: err.Error()}
		}
		f.StartDate = &t
	}
	if raw := q.Get("endDate"); raw != "" {
		t, err := parseRequestDate(raw)
		if err != nil {
			return f, &reservation.FilterError{Param: "endDate", Reason: err.Error()}
		}
		// A bare end date bounds the whole day, inclusively.
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
			t = t.Add(24*time.Hour - time.Second)
		}
		f.EndDate = &t
	}
	if raw := q.Get("upcoming"); raw != "" {
		up, err := strconv.ParseBool(raw)
		if err != nil {
			return f, &reservation.FilterError{Param: "upcoming", Reason: "must be true or false"}
		}
		f.Upcoming = up
	}
	if raw := q.Get("fromDate"); raw != "" {
		t, err := parseRequestDate(raw)
		if err != nil {
			return f, &reservation.FilterError{Param: "fromDate", Reason: err.Error()}
		}
		f.FromDate = &t
	}
	if raw := q.Get("withinDays"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, &reservation.FilterError{Param: "withinDays", Reason: "must be a number"}
		}
		f.WithinDays = &n
	}
	return f, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// writeServiceError maps domain errors onto HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case reservation.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Reservation not found", nil)
	case reservation.IsConflict(err):
		writeError(w, http.StatusConflict, "Reservation was modified concurrently, re-read and retry", err)
	case reservation.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.log.Error().Err(err).Msg(message)
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeWorkbook streams an xlsx attachment.
func writeWorkbook(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
