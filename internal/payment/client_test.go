package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)

		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sk_test_123", user)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "2916", r.PostFormValue("amount"))
		assert.Equal(t, "usd", r.PostFormValue("currency"))
		assert.Equal(t, "42", r.PostFormValue("metadata[booking_id]"))
		assert.Equal(t, "7", r.PostFormValue("metadata[user_id]"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "pi_abc",
			"client_secret": "pi_abc_secret_xyz",
			"status": "requires_payment_method",
			"amount": 2916,
			"currency": "usd"
		}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("sk_test_123", srv.URL)
	in, err := c.CreateIntent(context.Background(), 2916, "usd", 42, 7)
	require.NoError(t, err)
	assert.Equal(t, "pi_abc", in.ID)
	assert.Equal(t, "pi_abc_secret_xyz", in.ClientSecret)
	assert.Equal(t, "requires_payment_method", in.Status)
	assert.Equal(t, int64(2916), in.Amount)
}

func TestRetrieveIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payment_intents/pi_abc", r.URL.Path)
		w.Write([]byte(`{"id": "pi_abc", "status": "succeeded", "amount": 2916, "currency": "usd"}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("sk_test_123", srv.URL)
	in, err := c.RetrieveIntent(context.Background(), "pi_abc")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, in.Status)
}

func TestGatewayErrorPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error": {"message": "Your card was declined."}}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("sk_test_123", srv.URL)
	_, err := c.CreateIntent(context.Background(), 1000, "usd", 1, 1)
	require.Error(t, err)

	ge, ok := err.(*GatewayError)
	require.True(t, ok)
	assert.Equal(t, http.StatusPaymentRequired, ge.StatusCode)
	assert.Equal(t, "Your card was declined.", ge.Message)
}

func TestGatewayErrorNonJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`upstream exploded`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("sk_test_123", srv.URL)
	_, err := c.RetrieveIntent(context.Background(), "pi_abc")
	require.Error(t, err)

	ge, ok := err.(*GatewayError)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, ge.StatusCode)
	assert.Equal(t, "upstream exploded", ge.Message)
}
