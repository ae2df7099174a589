package handler

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/morningtable/breakfast-market/internal/model"
	"github.com/morningtable/breakfast-market/internal/payment"
)

// PaymentStore is the slice of booking persistence the webhook needs.  It
// is an interface so tests can count how many calls reach storage when a
// signature is rejected.
type PaymentStore interface {
	ConfirmPaymentByIntent(ctx context.Context, intentID string, paidAt time.Time) (*model.Booking, bool, error)
	FailPaymentByIntent(ctx context.Context, intentID string) (bool, error)
}

// WebhookHandler receives asynchronous payment events from the gateway.
// The signature is verified against the raw body before anything touches
// storage; an unsigned or tampered payload never reaches the database.
type WebhookHandler struct {
	Secret    string
	Tolerance time.Duration
	Store     PaymentStore
	Publish   PublishFunc
}

// NewWebhookHandler constructs a WebhookHandler with the default signature
// tolerance.
func NewWebhookHandler(secret string, store PaymentStore, publish PublishFunc) *WebhookHandler {
	if store == nil {
		panic("nil store passed to NewWebhookHandler")
	}
	return &WebhookHandler{
		Secret:    secret,
		Tolerance: payment.DefaultTolerance,
		Store:     store,
		Publish:   publish,
	}
}

// Handle processes POST /v1/webhooks/payments.  Recognized events mutate the
// matching booking through the same conditional updates the synchronous
// confirm path uses; unknown event types and events with no matching
// booking are acknowledged and dropped so the gateway stops retrying.
func (h *WebhookHandler) Handle(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	sig := c.Request().Header.Get("Stripe-Signature")
	if err := payment.VerifySignature(body, sig, h.Secret, h.Tolerance); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	}

	ev, err := payment.ParseEvent(body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed event"})
	}

	ctx := c.Request().Context()
	switch ev.Type {
	case payment.EventPaymentSucceeded:
		now := time.Now().UTC()
		b, applied, err := h.Store.ConfirmPaymentByIntent(ctx, ev.Data.Object.ID, now)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		switch {
		case b == nil:
			log.Printf("webhook: no booking for intent %s, dropping event %s", ev.Data.Object.ID, ev.ID)
		case applied:
			if h.Publish != nil {
				h.Publish(c, confirmEvent(b, now))
			}
		default:
			// Already confirmed by the synchronous path; nothing to do.
			log.Printf("webhook: booking %d already confirmed, event %s is a no-op", b.ID, ev.ID)
		}
	case payment.EventPaymentFailed:
		applied, err := h.Store.FailPaymentByIntent(ctx, ev.Data.Object.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
		}
		if !applied {
			log.Printf("webhook: failure event %s matched no pending payment", ev.ID)
		}
	default:
		log.Printf("webhook: ignoring event type %s", ev.Type)
	}

	return c.JSON(http.StatusOK, echo.Map{"received": true})
}
