package checkout

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	contract "github.com/arrowtech/storefront/pkg/checkout"
)

func TestHTTPGatewayCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, createSessionPath, r.URL.Path)
		assert.Equal(t, "cart-9", r.Header.Get("X-Cart-Id"))
		assert.Empty(t, r.Header.Get("Idempotency-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		amount := body["amount"].(map[string]any)
		assert.EqualValues(t, 1200, amount["value"])
		assert.Equal(t, "GBP", amount["currency"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"CS1","sessionData":"abc","amount":{"value":1200,"currency":"GBP"},"reference":"order-1"}`)
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL+"/", WithCartID("cart-9"))
	session, err := gw.CreateSession(context.Background(), contract.SessionRequest{
		Amount:    contract.Amount{Value: 1200, Currency: "GBP"},
		ReturnURL: "http://localhost/result",
	})
	require.NoError(t, err)
	assert.Equal(t, "CS1", session.ID)
	assert.Equal(t, "order-1", session.Reference)
}

func TestHTTPGatewayIncompleteSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id":"CS1"}`)
	}))
	defer srv.Close()

	_, err := NewHTTPGateway(srv.URL).CreateSession(context.Background(), contract.SessionRequest{})
	require.ErrorIs(t, err, ErrIncompleteSession)
}

func TestHTTPGatewaySubmitPaymentSendsIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, submitPaymentPath, r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		_, _ = io.WriteString(w, `{"resultCode":"Refused","refusalReason":"CVC Declined","pspReference":"P1"}`)
	}))
	defer srv.Close()

	result, err := NewHTTPGateway(srv.URL).SubmitPayment(context.Background(), contract.PaymentRequest{SessionID: "CS1"}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, "Refused", result.ResultCode)
	assert.Equal(t, "CVC Declined", result.RefusalReason)
}

func TestHTTPGatewayErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"error":"Details submission failed","details":{"errorCode":"14_0"},"status":422}`)
	}))
	defer srv.Close()

	_, err := NewHTTPGateway(srv.URL).SubmitDetails(context.Background(), contract.DetailsRequest{Details: json.RawMessage(`{}`)}, "k")
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, http.StatusUnprocessableEntity, gwErr.Status)
	assert.Equal(t, "Details submission failed", gwErr.Message)
	assert.JSONEq(t, `{"errorCode":"14_0"}`, string(gwErr.Details))
}

func TestHTTPGatewayNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "upstream down")
	}))
	defer srv.Close()

	_, err := NewHTTPGateway(srv.URL).SubmitPayment(context.Background(), contract.PaymentRequest{}, "")
	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "Bad Gateway", gwErr.Message)
}

func TestHTTPGatewayMalformedSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	_, err := NewHTTPGateway(srv.URL).SubmitPayment(context.Background(), contract.PaymentRequest{}, "")
	require.ErrorIs(t, err, ErrMalformedResponse)
}
