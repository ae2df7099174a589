package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/morningtable/breakfast-market/internal/model"
	"github.com/morningtable/breakfast-market/internal/payment"
	"github.com/morningtable/breakfast-market/internal/queue"
	"github.com/morningtable/breakfast-market/internal/repository"
)

// PublishFunc sends a booking-confirmed event to the broker.  It is a
// field rather than a hard dependency so tests can count invocations.
type PublishFunc func(ctx echo.Context, ev queue.BookingConfirmedEvent)

// PaymentHandler drives card payments: creating a gateway intent for a
// pending booking and confirming it synchronously after the client
// completes the card flow.  The webhook path in WebhookHandler converges
// on the same conditional update, so whichever arrives first wins and the
// other is a no-op.
type PaymentHandler struct {
	Bookings *repository.BookingRepo
	Gateway  *payment.Client
	Currency string
	Publish  PublishFunc
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(bookings *repository.BookingRepo, gateway *payment.Client, currency string, publish PublishFunc) *PaymentHandler {
	if bookings == nil || gateway == nil {
		panic("nil dependency passed to NewPaymentHandler")
	}
	return &PaymentHandler{Bookings: bookings, Gateway: gateway, Currency: currency, Publish: publish}
}

// confirmEvent builds the broker payload for a just-confirmed booking.
func confirmEvent(b *model.Booking, at time.Time) queue.BookingConfirmedEvent {
	return queue.BookingConfirmedEvent{
		BookingID:    b.ID,
		UserID:       b.UserID,
		ProviderID:   b.ProviderID,
		DeliveryDate: b.DeliveryDate,
		DeliveryTime: b.DeliveryTime,
		DeliveryType: b.DeliveryType,
		TotalCents:   b.Pricing.TotalCents,
		ConfirmedAt:  at.UTC().Format(time.RFC3339),
	}
}

// CreateIntent handles POST /v1/bookings/:id/payment-intent.  Only the
// booking owner may pay, the booking must still be pending with a card
// payment method, and the gateway amount always comes from the stored
// pricing, never the request.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx := c.Request().Context()
	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if b.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if b.Status != model.StatusPending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking is not awaiting payment"})
	}
	if b.Payment.Method != model.MethodCard {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking is not a card payment"})
	}
	if b.Pricing.TotalCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking total must be greater than zero"})
	}

	intent, err := h.Gateway.CreateIntent(ctx, int64(b.Pricing.TotalCents), h.Currency, b.ID, b.UserID)
	if err != nil {
		if ge, ok := err.(*payment.GatewayError); ok {
			log.Printf("payment: create intent failed for booking %d: %v", b.ID, ge)
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway rejected the request"})
		}
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unreachable"})
	}
	if err := h.Bookings.SetPaymentIntent(ctx, b.ID, intent.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store payment intent failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"client_secret":     intent.ClientSecret,
		"payment_intent_id": intent.ID,
	})
}

// Confirm handles POST /v1/bookings/:id/payment/confirm.  The intent is
// re-fetched from the gateway and the booking only moves when the gateway
// reports success; the client's word alone never confirms an order.  A
// repeat call after the webhook already landed is an idempotent success.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx := c.Request().Context()
	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if b.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if b.Payment.IntentID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no payment intent on booking"})
	}

	intent, err := h.Gateway.RetrieveIntent(ctx, *b.Payment.IntentID)
	if err != nil {
		if ge, ok := err.(*payment.GatewayError); ok {
			log.Printf("payment: retrieve intent failed for booking %d: %v", b.ID, ge)
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway rejected the request"})
		}
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unreachable"})
	}
	if intent.Status != payment.StatusSucceeded {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":         "payment has not succeeded",
			"intent_status": intent.Status,
		})
	}

	now := time.Now().UTC()
	applied, err := h.Bookings.ConfirmPayment(ctx, b.ID, now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirm payment failed"})
	}
	if applied {
		b.Status = model.StatusConfirmed
		b.Payment.Status = model.PaymentCompleted
		b.Payment.PaidAt = &now
		if h.Publish != nil {
			h.Publish(c, confirmEvent(b, now))
		}
	} else {
		// The webhook (or a concurrent confirm) got there first; reload so
		// the response reflects the stored state.
		if fresh, err := h.Bookings.GetByID(ctx, b.ID); err == nil {
			b = fresh
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": b})
}
