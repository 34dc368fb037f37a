/*
Package notify delivers reservation emails.

PURPOSE:
  The email collaborator of the booking engine. Delivery is always
  triggered explicitly (confirmation, status change, payment received,
  monthly summary) and is strictly best-effort: a failed delivery is
  logged and reported on its own channel, never rolling back the
  reservation or payment state that triggered it.

PIPELINE:
  1. Validate the recipient address before attempting anything
  2. Build the message for the requested kind
  3. Deliver through a Sender with bounded exponential-backoff retries

The SMTP sender is the production implementation; tests plug in fakes.
*/
package notify

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/rs/zerolog"

	"github.com/lodgeworks/booking-engine/reservation"
)

// =============================================================================
// KINDS AND MESSAGES
// =============================================================================

type Kind string

const (
	KindConfirmation    Kind = "confirmation"
	KindStatusChange    Kind = "status_change"
	KindPaymentReceived Kind = "payment_received"
	KindMonthlySummary  Kind = "monthly_summary"
)

// Valid reports whether k is a known notification kind.
func (k Kind) Valid() bool {
	switch k {
	case KindConfirmation, KindStatusChange, KindPaymentReceived, KindMonthlySummary:
		return true
	}
	return false
}

// Attachment is an optional binary payload, e.g. a rendered invoice.
type Attachment struct {
	Filename string
	Content  []byte
}

// Message is one outbound email.
type Message struct {
	To         string
	Subject    string
	Body       string
	Attachment *Attachment
}

// ValidateRecipient rejects malformed addresses before any delivery
// attempt happens.
func ValidateRecipient(addr string) error {
	if addr == "" {
		return &reservation.ValidationError{Field: "to", Reason: "recipient address is required"}
	}
	if _, err := mail.ParseAddress(addr); err != nil {
		return &reservation.ValidationError{Field: "to", Reason: "not a valid email address"}
	}
	return nil
}

// BuildMessage renders the body for a notification kind from the
// reservation's current state.
func BuildMessage(kind Kind, to string, r *reservation.Reservation) (Message, error) {
	if !kind.Valid() {
		return Message{}, &reservation.ValidationError{Field: "kind", Reason: "unknown notification kind"}
	}

	name := r.ClientName
	if name == "" {
		name = "guest"
	}

	var subject, body string
	switch kind {
	case KindConfirmation:
		subject = fmt.Sprintf("Reservation %s confirmed", shortID(r.ID))
		body = fmt.Sprintf(
			"Hello %s,\n\nYour reservation at %s is confirmed.\nCheck-in: %s\nTotal amount: %s\n\nThank you.",
			name, r.ApartmentName, formatDate(r.CheckIn), r.TotalAmount.StringFixed(2))
	case KindStatusChange:
		subject = fmt.Sprintf("Reservation %s update", shortID(r.ID))
		body = fmt.Sprintf(
			"Hello %s,\n\nThe status of your reservation at %s is now: %s.\n",
			name, r.ApartmentName, r.Status)
	case KindPaymentReceived:
		subject = fmt.Sprintf("Payment received for reservation %s", shortID(r.ID))
		body = fmt.Sprintf(
			"Hello %s,\n\nWe received your payment.\nPaid so far: %s\nOutstanding balance: %s\nPayment status: %s\n",
			name, r.AmountPaid.StringFixed(2), r.AmountDue.StringFixed(2), r.PaymentStatus)
	case KindMonthlySummary:
		subject = "Monthly reservation summary"
		body = "The monthly reservation summary is attached.\n"
	}

	return Message{To: to, Subject: subject, Body: body}, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "not set"
	}
	return t.Format("01-02-2006 15:04")
}

// =============================================================================
// NOTIFIER
// =============================================================================

// Sender is the delivery transport. Production uses SMTPSender; tests
// plug in fakes.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier wraps a Sender with retries and logging.
type Notifier struct {
	sender Sender
	retry  RetryPolicy
	log    zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewNotifier(sender Sender, retry RetryPolicy, log zerolog.Logger) *Notifier {
	return &Notifier{
		sender: sender,
		retry:  retry,
		log:    log,
		sleep:  sleepCtx,
	}
}

// Deliver validates the recipient and sends with bounded retries.
// The returned error is a side-effect failure: callers report it on a
// separate channel and never fail the primary operation because of it.
func (n *Notifier) Deliver(ctx context.Context, msg Message) error {
	if err := ValidateRecipient(msg.To); err != nil {
		return err
	}

	var lastErr error
	attempts := n.retry.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = n.sender.Send(ctx, msg)
		if lastErr == nil {
			n.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("notification delivered")
			return nil
		}
		n.log.Warn().Err(lastErr).Str("to", msg.To).Int("attempt", attempt).Msg("notification delivery failed")
		if attempt < attempts {
			if err := n.sleep(ctx, n.retry.NextDelay(attempt)); err != nil {
				return fmt.Errorf("delivery aborted: %w", err)
			}
		}
	}
	return fmt.Errorf("delivery failed after %d attempts: %w", attempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
