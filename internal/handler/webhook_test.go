package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morningtable/breakfast-market/internal/model"
	"github.com/morningtable/breakfast-market/internal/queue"
)

const webhookSecret = "whsec_handler_test"

// countingStore records every call that reaches storage so tests can assert
// that rejected payloads never touch it.
type countingStore struct {
	confirmCalls int
	failCalls    int

	confirmBooking *model.Booking
	confirmApplied bool
	failApplied    bool
}

func (s *countingStore) ConfirmPaymentByIntent(ctx context.Context, intentID string, paidAt time.Time) (*model.Booking, bool, error) {
	s.confirmCalls++
	return s.confirmBooking, s.confirmApplied, nil
}

func (s *countingStore) FailPaymentByIntent(ctx context.Context, intentID string) (bool, error) {
	s.failCalls++
	return s.failApplied, nil
}

func signBody(body []byte, secret string) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postWebhook(t *testing.T, h *WebhookHandler, body []byte, sig string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", bytes.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if sig != "" {
		req.Header.Set("Stripe-Signature", sig)
	}
	rec := httptest.NewRecorder()
	require.NoError(t, h.Handle(e.NewContext(req, rec)))
	return rec
}

func succeededEvent(intentID string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": %q, "status": "succeeded"}}
	}`, intentID))
}

func TestWebhookRejectsBadSignatureBeforeStorage(t *testing.T) {
	store := &countingStore{}
	h := NewWebhookHandler(webhookSecret, store, nil)
	body := succeededEvent("pi_1")

	// Missing header.
	rec := postWebhook(t, h, body, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Signed with the wrong secret.
	rec = postWebhook(t, h, body, signBody(body, "whsec_wrong"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Body tampered after signing.
	sig := signBody(body, webhookSecret)
	rec = postWebhook(t, h, succeededEvent("pi_other"), sig)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, store.confirmCalls)
	assert.Zero(t, store.failCalls)
}

func TestWebhookPaymentSucceeded(t *testing.T) {
	published := 0
	store := &countingStore{
		confirmBooking: &model.Booking{ID: 42, UserID: 7, ProviderID: 3, Status: model.StatusConfirmed},
		confirmApplied: true,
	}
	h := NewWebhookHandler(webhookSecret, store, func(c echo.Context, ev queue.BookingConfirmedEvent) {
		published++
		assert.Equal(t, uint64(42), ev.BookingID)
	})

	body := succeededEvent("pi_1")
	rec := postWebhook(t, h, body, signBody(body, webhookSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())
	assert.Equal(t, 1, store.confirmCalls)
	assert.Equal(t, 1, published)
}

func TestWebhookSucceededAfterSyncConfirmIsNoOp(t *testing.T) {
	published := 0
	store := &countingStore{
		confirmBooking: &model.Booking{ID: 42, Status: model.StatusConfirmed},
		confirmApplied: false, // the synchronous path already confirmed
	}
	h := NewWebhookHandler(webhookSecret, store, func(c echo.Context, ev queue.BookingConfirmedEvent) {
		published++
	})

	body := succeededEvent("pi_1")
	rec := postWebhook(t, h, body, signBody(body, webhookSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())
	assert.Zero(t, published)
}

func TestWebhookSucceededUnknownIntent(t *testing.T) {
	store := &countingStore{confirmBooking: nil}
	h := NewWebhookHandler(webhookSecret, store, nil)

	body := succeededEvent("pi_unknown")
	rec := postWebhook(t, h, body, signBody(body, webhookSecret))

	// Acknowledged and dropped so the gateway stops retrying.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())
	assert.Equal(t, 1, store.confirmCalls)
}

func TestWebhookPaymentFailed(t *testing.T) {
	store := &countingStore{failApplied: true}
	h := NewWebhookHandler(webhookSecret, store, nil)

	body := []byte(`{
		"id": "evt_2",
		"type": "payment_intent.payment_failed",
		"data": {"object": {"id": "pi_1", "status": "requires_payment_method"}}
	}`)
	rec := postWebhook(t, h, body, signBody(body, webhookSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())
	assert.Equal(t, 1, store.failCalls)
	assert.Zero(t, store.confirmCalls)
}

func TestWebhookIgnoresUnknownEventType(t *testing.T) {
	store := &countingStore{}
	h := NewWebhookHandler(webhookSecret, store, nil)

	body := []byte(`{"id": "evt_3", "type": "charge.refunded", "data": {"object": {"id": "ch_1"}}}`)
	rec := postWebhook(t, h, body, signBody(body, webhookSecret))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received": true}`, rec.Body.String())
	assert.Zero(t, store.confirmCalls)
	assert.Zero(t, store.failCalls)
}
