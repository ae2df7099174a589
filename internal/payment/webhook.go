package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Webhook event types this application reacts to.  Every other type is
// acknowledged and ignored so the processor does not retry deliveries we
// have no use for.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// ErrInvalidSignature is returned when a webhook payload fails
// authentication.  Callers must reject the request before any storage
// lookup when they see this error.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// DefaultTolerance bounds how old a webhook's signed timestamp may be.
// Deliveries outside the window are rejected to blunt replay of captured
// payloads.
const DefaultTolerance = 5 * time.Minute

// Event is the subset of a processor webhook payload this application
// consumes: the event type and the payment intent it concerns.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"object"`
	} `json:"data"`
}

// VerifySignature checks the processor's signature header against the raw
// request body using the shared endpoint secret.  The header format is
// "t=<unix>,v1=<hex hmac>[,v1=...]"; the MAC covers "<t>.<body>" with
// HMAC-SHA256.  Verification fails closed: any parse problem, stale
// timestamp or MAC mismatch yields ErrInvalidSignature and the payload must
// not be trusted.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) error {
	return verifySignatureAt(payload, header, secret, tolerance, time.Now())
}

func verifySignatureAt(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return ErrInvalidSignature
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return ErrInvalidSignature
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, s := range sigs {
		got, err := hex.DecodeString(s)
		if err != nil {
			continue
		}
		if hmac.Equal(got, expected) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// ParseEvent decodes a verified webhook body.  It must only be called after
// VerifySignature has accepted the payload.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
