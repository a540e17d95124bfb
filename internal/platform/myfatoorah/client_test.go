package myfatoorah

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mazadapp/mazad/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:     srv.URL,
		APIKey:      "test-key",
		CallbackURL: "https://shop.example/payments/callback",
		ErrorURL:    "https://shop.example/payments/error",
		Currency:    "KWD",
	})
}

func TestInitiatePayment(t *testing.T) {
	var gotAuth string
	var gotBody sendPaymentRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v2/SendPayment", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(sendPaymentResponse{
			IsSuccess: true,
			Data: struct {
				InvoiceID  int64  `json:"InvoiceId"`
				InvoiceURL string `json:"InvoiceURL"`
			}{InvoiceID: 4481, InvoiceURL: "https://pay.example/4481"},
		})
	})

	handle, err := client.InitiatePayment(context.Background(), domain.PaymentRequest{
		OrderID:      "ord-1",
		Amount:       2500,
		CustomerName: "Sara",
	})
	require.NoError(t, err)

	assert.Equal(t, "4481", handle.InvoiceID)
	assert.Equal(t, "https://pay.example/4481", handle.PaymentURL)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "LNK", gotBody.NotificationOption)
	assert.InDelta(t, 25.0, gotBody.InvoiceValue, 0.001)
	assert.Equal(t, "https://shop.example/payments/callback", gotBody.CallBackUrl)
}

func TestInitiatePaymentRejectsNonPositiveAmount(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused"})

	_, err := client.InitiatePayment(context.Background(), domain.PaymentRequest{
		OrderID: "ord-1",
		Amount:  0,
	})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestInitiatePaymentGatewayRejection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sendPaymentResponse{
			IsSuccess: false,
			Message:   "invalid token",
		})
	})

	_, err := client.InitiatePayment(context.Background(), domain.PaymentRequest{
		OrderID: "ord-1",
		Amount:  100,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGateway))
	assert.Contains(t, err.Error(), "invalid token")
}

func TestInitiatePaymentHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(errorResponse{Message: "bad api key"})
	})

	_, err := client.InitiatePayment(context.Background(), domain.PaymentRequest{
		OrderID: "ord-1",
		Amount:  100,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGateway))
}

func TestVerifyPayment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/getPaymentStatus", r.URL.Path)

		var body getPaymentStatusRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pay-77", body.Key)
		assert.Equal(t, "PaymentId", body.KeyType)

		var resp getPaymentStatusResponse
		resp.IsSuccess = true
		resp.Data.InvoiceID = 4481
		resp.Data.InvoiceStatus = "Paid"
		resp.Data.InvoiceTransactions = []invoiceTransaction{
			{TransactionID: "tx-1", TransactionStatus: "Failed"},
			{TransactionID: "tx-2", TransactionStatus: "Succss"},
		}
		json.NewEncoder(w).Encode(resp)
	})

	result, err := client.VerifyPayment(context.Background(), "pay-77")
	require.NoError(t, err)

	assert.Equal(t, domain.PaymentPaid, result.Status)
	assert.Equal(t, "4481", result.InvoiceID)
	assert.Equal(t, "tx-2", result.TransactionID)
}

func TestVerifyPaymentUnpaid(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var resp getPaymentStatusResponse
		resp.IsSuccess = true
		resp.Data.InvoiceID = 4481
		resp.Data.InvoiceStatus = "Expired"
		json.NewEncoder(w).Encode(resp)
	})

	result, err := client.VerifyPayment(context.Background(), "pay-77")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentFailed, result.Status)
}

func TestMapInvoiceStatus(t *testing.T) {
	assert.Equal(t, domain.PaymentPaid, mapInvoiceStatus("Paid"))
	assert.Equal(t, domain.PaymentPending, mapInvoiceStatus("Pending"))
	assert.Equal(t, domain.PaymentFailed, mapInvoiceStatus("Expired"))
	assert.Equal(t, domain.PaymentFailed, mapInvoiceStatus("Canceled"))
}
