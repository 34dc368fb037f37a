/*
handlers_test.go - HTTP API tests

Exercises the full request path over an in-memory store:
- Reservation CRUD with derived totals in responses
- Partial updates, unparseable charges, version conflicts
- Filter parameter validation at the HTTP boundary
- Payment registration end to end
- Notification delivery reporting
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodgeworks/booking-engine/document"
	"github.com/lodgeworks/booking-engine/notify"
	"github.com/lodgeworks/booking-engine/reservation"
	"github.com/lodgeworks/booking-engine/store/memory"
)

// =============================================================================
// TEST HARNESS
// =============================================================================

type failSender struct{ err error }

func (f *failSender) Send(context.Context, notify.Message) error { return f.err }

func newServer(t *testing.T, senderErr error) *httptest.Server {
	t.Helper()
	store := memory.New()
	store.SeedClient(reservation.Client{
		ID: "client-1", Name: "Ada", Lastname: "Lovelace", Email: "ada@example.com",
	})
	store.SeedApartment(reservation.Apartment{
		ID: "apt-1", Name: "Seaview Loft", Address: "1 Harbor St",
	})

	svc := reservation.NewService(store, nil, zerolog.Nop())
	notifier := notify.NewNotifier(&failSender{err: senderErr}, notify.RetryPolicy{MaxRetries: 0}, zerolog.Nop())
	h := NewHandler(svc, document.NewRenderer(), notifier, zerolog.Nop())

	srv := httptest.NewServer(NewRouter(h, RouterOptions{}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		ct := resp.Header.Get("Content-Type")
		if ct == "application/json" {
			_ = json.NewDecoder(resp.Body).Decode(&decoded)
		}
	}
	return resp, decoded
}

// createReference posts the reference stay: 3 nights at 100 with 50
// cleaning and 10 taxes, totalling 360.
func createReference(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/reservations", map[string]any{
		"apartmentId":   "apt-1",
		"clientId":      "client-1",
		"checkInDate":   "2026-09-10",
		"checkOutDate":  "2026-09-13",
		"nights":        3,
		"pricePerNight": 100,
		"cleaningFee":   50,
		"taxes":         10,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)
	return id
}

// =============================================================================
// CREATE AND READ
// =============================================================================

func TestCreateReservation_ReturnsDerivedQuote(t *testing.T) {
	srv := newServer(t, nil)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/reservations", map[string]any{
		"apartmentId":   "apt-1",
		"clientId":      "client-1",
		"checkInDate":   "2026-09-10",
		"checkOutDate":  "2026-09-13",
		"nights":        3,
		"pricePerNight": 100,
		"cleaningFee":   50,
		"taxes":         10,
	})

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 360, body["totalAmount"])
	assert.EqualValues(t, 360, body["amountDue"])
	assert.EqualValues(t, 0, body["amountPaid"])
	assert.Equal(t, "pending", body["paymentStatus"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "Ada", body["clientName"])
	// Dates render in display format
	assert.Equal(t, "09-10-2026 00:00", body["checkInDate"])
}

func TestCreateReservation_ValidationFailure(t *testing.T) {
	srv := newServer(t, nil)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/reservations", map[string]any{
		"apartmentId": "apt-1",
		"clientId":    "client-1",
		"nights":      0,
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetReservation_NotFound(t *testing.T) {
	srv := newServer(t, nil)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/reservations/nope", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdateReservation_SingleChargeRecalculates(t *testing.T) {
	srv := newServer(t, nil)
	id := createReference(t, srv)

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/reservations/"+id, map[string]any{
		"cleaningFee": 110,
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 420, body["totalAmount"])
	assert.EqualValues(t, 420, body["amountDue"])
	assert.EqualValues(t, 2, body["version"])
}

func TestUpdateReservation_UnparseableChargeKeepsTotals(t *testing.T) {
	srv := newServer(t, nil)
	id := createReference(t, srv)

	// Raw JSON: taxes is a string that fails numeric parsing.
	req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/reservations/"+id,
		bytes.NewBufferString(`{"taxes": "abc"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 360, body["totalAmount"])
	assert.EqualValues(t, 360, body["amountDue"])
}

func TestUpdateReservation_AmountPaidRederives(t *testing.T) {
	srv := newServer(t, nil)
	id := createReference(t, srv)

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/reservations/"+id, map[string]any{
		"amountPaid": 200,
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 200, body["amountPaid"])
	assert.EqualValues(t, 160, body["amountDue"])
	assert.Equal(t, "partial", body["paymentStatus"])
}

func TestUpdateReservation_StaleVersionConflicts(t *testing.T) {
	srv := newServer(t, nil)
	id := createReference(t, srv)

	resp, _ := doJSON(t, http.MethodPut, srv.URL+"/api/reservations/"+id, map[string]any{
		"notes": "first",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/reservations/"+id, map[string]any{
		"notes":           "second",
		"expectedVersion": 1,
	})

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// STATUS
// =============================================================================

func TestUpdateStatus_TransitionAndRejection(t *testing.T) {
	srv := newServer(t, nil)
	id := createReference(t, srv)

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/reservations/"+id+"/status", map[string]any{
		"status": "confirmed",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirmed", body["status"])

	// Skipping from confirmed straight to checked_out is rejected.
	resp, _ = doJSON(t, http.MethodPut, srv.URL+"/api/reservations/"+id+"/status", map[string]any{
		"status": "checked_out",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdatePaymentStatus_Override(t *testing.T) {
	srv := newServer(t, nil)
	id := createReference(t, srv)

	resp, body := doJSON(t, http.MethodPut, srv.URL+"/api/reservations/"+id+"/payment-status", map[string]any{
		"paymentStatus": "complete",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "complete", body["paymentStatus"])
}

// =============================================================================
// FILTERS
// =============================================================================

func TestListReservations_FromDateWithoutUpcomingIs400(t *testing.T) {
	srv := newServer(t, nil)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/reservations?fromDate=2026-09-01", nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListReservations_WithinDaysWithoutUpcomingIs400(t *testing.T) {
	srv := newServer(t, nil)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/reservations?withinDays=7", nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListReservations_StatusFilter(t *testing.T) {
	srv := newServer(t, nil)
	createReference(t, srv)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/reservations?status=pending", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 1)
}

func TestUpcomingEndpoint_ForcesUpcoming(t *testing.T) {
	srv := newServer(t, nil)
	createReference(t, srv)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/reservations/upcoming?fromDate=2026-09-01", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 1)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestRegisterPayment_EndToEnd(t *testing.T) {
	srv := newServer(t, nil)
	id := createReference(t, srv)

	// 200 of 360
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/reservations/"+id+"/payments", map[string]any{
		"amount":        200,
		"paymentMethod": "card",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 200, body["amountPaid"])
	assert.EqualValues(t, 160, body["amountDue"])
	assert.Equal(t, "partial", body["paymentStatus"])

	// Remainder
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/reservations/"+id+"/payments", map[string]any{
		"amount":        160,
		"paymentMethod": "transfer",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.EqualValues(t, 0, body["amountDue"])
	assert.Equal(t, "complete", body["paymentStatus"])

	// Ledger holds both entries
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/reservations/"+id+"/payments", nil)
	require.NoError(t, err)
	lresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer lresp.Body.Close()
	var payments []map[string]any
	require.NoError(t, json.NewDecoder(lresp.Body).Decode(&payments))
	assert.Len(t, payments, 2)
}

func TestRegisterPayment_RejectsNonPositive(t *testing.T) {
	srv := newServer(t, nil)
	id := createReference(t, srv)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/reservations/"+id+"/payments", map[string]any{
		"amount":        -5,
		"paymentMethod": "card",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func TestInvoiceEndpoint_ServesWorkbook(t *testing.T) {
	srv := newServer(t, nil)
	id := createReference(t, srv)

	resp, err := http.Get(srv.URL + "/api/reservations/" + id + "/invoice")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), fmt.Sprintf("invoice-%s.xlsx", id))
}

func TestMonthlyReport_RejectsBadMonth(t *testing.T) {
	srv := newServer(t, nil)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/reports/monthly?month=13", nil)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestNotify_DeliveryFailureReportedNotFatal(t *testing.T) {
	srv := newServer(t, errors.New("relay down"))
	id := createReference(t, srv)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/reservations/"+id+"/notify", map[string]any{
		"kind": "confirmation",
		"to":   "ada@example.com",
	})

	// The primary state is committed; failure rides its own channel.
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["delivered"])
	assert.Contains(t, body["notificationError"], "relay down")
}

func TestNotify_Success(t *testing.T) {
	srv := newServer(t, nil)
	id := createReference(t, srv)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/reservations/"+id+"/notify", map[string]any{
		"kind": "payment_received",
		"to":   "ada@example.com",
	})

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["delivered"])
}

func TestNotify_BadRecipientIs400(t *testing.T) {
	srv := newServer(t, nil)
	id := createReference(t, srv)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/reservations/"+id+"/notify", map[string]any{
		"kind": "confirmation",
		"to":   "not-an-address",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// DELETE AND HEALTH
// =============================================================================

func TestDeleteReservation(t *testing.T) {
	srv := newServer(t, nil)
	id := createReference(t, srv)

	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/api/reservations/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/reservations/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv := newServer(t, nil)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
