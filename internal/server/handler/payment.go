package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mazadapp/mazad/internal/domain"
)

// PaymentService defines what the payment callback handler needs from the
// service layer.
type PaymentService interface {
	ConfirmPayment(ctx context.Context, orderID, paymentID string) (domain.Order, error)
	FailPayment(ctx context.Context, orderID, paymentID string) (domain.Order, error)
}

// PaymentHandler serves the gateway's redirect callbacks. These endpoints
// are unauthenticated: the customer's browser lands here after checkout, and
// the outcome is verified against the gateway rather than the query string.
type PaymentHandler struct {
	payments PaymentService
	logger   *slog.Logger
}

// NewPaymentHandler creates a PaymentHandler.
func NewPaymentHandler(payments PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, logger: logger}
}

// Callback settles an order after the customer returns from the gateway.
// GET /api/payments/callback?order_id=...&paymentId=...
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderID := q.Get("order_id")
	paymentID := q.Get("paymentId")
	if orderID == "" || paymentID == "" {
		writeError(w, http.StatusBadRequest, "order_id and paymentId query parameters are required")
		return
	}

	order, err := h.payments.ConfirmPayment(r.Context(), orderID, paymentID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: payment callback failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// Error marks an order failed after the gateway's error redirect.
// GET /api/payments/error?order_id=...&paymentId=...
func (h *PaymentHandler) Error(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderID := q.Get("order_id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "order_id query parameter is required")
		return
	}

	order, err := h.payments.FailPayment(r.Context(), orderID, q.Get("paymentId"))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: payment error callback failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}
