package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test_secret"

// signHeader produces a header the way the processor would: HMAC-SHA256 of
// "<t>.<body>" keyed with the endpoint secret.
func signHeader(payload []byte, secret string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignatureValid(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	header := signHeader(payload, testSecret, now)

	assert.NoError(t, verifySignatureAt(payload, header, testSecret, DefaultTolerance, now))
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1"}`)
	header := signHeader(payload, "whsec_other", now)

	err := verifySignatureAt(payload, header, testSecret, DefaultTolerance, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignatureTamperedBody(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"amount":100}`)
	header := signHeader(payload, testSecret, now)

	err := verifySignatureAt([]byte(`{"amount":99999}`), header, testSecret, DefaultTolerance, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignatureStaleTimestamp(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1"}`)
	header := signHeader(payload, testSecret, now.Add(-10*time.Minute))

	err := verifySignatureAt(payload, header, testSecret, DefaultTolerance, now)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	// Inside the window the same header passes.
	recent := signHeader(payload, testSecret, now.Add(-time.Minute))
	assert.NoError(t, verifySignatureAt(payload, recent, testSecret, DefaultTolerance, now))
}

func TestVerifySignatureMalformedHeader(t *testing.T) {
	payload := []byte(`{}`)
	for _, header := range []string{
		"",
		"v1=deadbeef",
		"t=123",
		"t=notanumber,v1=deadbeef",
		"garbage",
	} {
		err := verifySignatureAt(payload, header, testSecret, DefaultTolerance, time.Now())
		assert.ErrorIs(t, err, ErrInvalidSignature, "header %q", header)
	}
}

func TestVerifySignatureMultipleV1(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_2"}`)
	good := signHeader(payload, testSecret, now)
	// Prepend a bogus v1; verification should accept as long as any MAC
	// matches.
	header := fmt.Sprintf("t=%d,v1=%s,%s", now.Unix(), "00ff00ff", good[len(fmt.Sprintf("t=%d,", now.Unix())):])

	assert.NoError(t, verifySignatureAt(payload, header, testSecret, DefaultTolerance, now))
}

func TestParseEvent(t *testing.T) {
	body := []byte(`{
		"id": "evt_123",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": "pi_123", "status": "succeeded"}}
	}`)
	ev, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, "evt_123", ev.ID)
	assert.Equal(t, EventPaymentSucceeded, ev.Type)
	assert.Equal(t, "pi_123", ev.Data.Object.ID)
	assert.Equal(t, "succeeded", ev.Data.Object.Status)

	_, err = ParseEvent([]byte(`not json`))
	assert.Error(t, err)
}
