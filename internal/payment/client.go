// Package payment wraps all interaction with the Stripe payment processor:
// creating and retrieving payment intents over its REST API, and verifying
// the signatures on inbound webhook deliveries.  Nothing outside this
// package talks to the processor.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Intent statuses reported by the processor.  Only succeeded triggers a
// booking confirmation; every other value is surfaced to the caller as-is.
const StatusSucceeded = "succeeded"

// Intent is the subset of the processor's payment intent object this
// application consumes.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// GatewayError carries the processor's own error message alongside the HTTP
// status it responded with, so handlers can report gateway failures without
// masking them.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway error (%d): %s", e.StatusCode, e.Message)
}

// Client issues payment intent operations against the processor's REST API
// using basic auth with the account's secret key.  BaseURL is settable for
// tests.
type Client struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

// NewClient builds a Client for the given secret key.
func NewClient(secretKey string) *Client {
	return &Client{
		secretKey: secretKey,
		baseURL:   "https://api.stripe.com",
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// NewClientWithBaseURL is NewClient pointed at a different endpoint, used in
// tests against a local stub server.
func NewClientWithBaseURL(secretKey, baseURL string) *Client {
	c := NewClient(secretKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// CreateIntent creates a payment intent for the given amount in minor units,
// tagged with the booking and user IDs as metadata so webhook events can be
// traced back even without the local intent reference.
func (c *Client) CreateIntent(ctx context.Context, amountCents int64, currency string, bookingID, userID uint64) (*Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountCents, 10))
	form.Set("currency", currency)
	form.Set("metadata[booking_id]", strconv.FormatUint(bookingID, 10))
	form.Set("metadata[user_id]", strconv.FormatUint(userID, 10))
	return c.do(ctx, http.MethodPost, "/v1/payment_intents", strings.NewReader(form.Encode()))
}

// RetrieveIntent fetches the current state of a previously created intent.
func (c *Client) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	return c.do(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*Intent, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	// Basic auth: username = secret key, empty password.
	req.SetBasicAuth(c.secretKey, "")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &GatewayError{StatusCode: 0, Message: err.Error()}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &GatewayError{StatusCode: res.StatusCode, Message: msg}
	}

	var in Intent
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("parse intent json: %w", err)
	}
	return &in, nil
}
