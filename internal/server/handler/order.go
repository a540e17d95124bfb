package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mazadapp/mazad/internal/domain"
	"github.com/mazadapp/mazad/internal/server/middleware"
	"github.com/mazadapp/mazad/internal/service"
)

// OrderService defines what the order handler needs from the service layer.
type OrderService interface {
	Create(ctx context.Context, in service.CreateOrderInput, buyer domain.User) (domain.Order, error)
	GetByID(ctx context.Context, orderID, userID string) (domain.Order, error)
	RetryPayment(ctx context.Context, orderID string, buyer domain.User) (domain.Order, error)
}

// OrderHandler serves checkout endpoints.
type OrderHandler struct {
	orders OrderService
	logger *slog.Logger
}

// NewOrderHandler creates an OrderHandler.
func NewOrderHandler(orders OrderService, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

type createOrderRequest struct {
	Lines []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"lines"`
}

// Create checks out the requested products. The Idempotency-Key header makes
// retried requests safe.
// POST /api/orders
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := service.CreateOrderInput{
		UserID:         user.ID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, service.OrderLineInput{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	order, err := h.orders.Create(r.Context(), in, user)
	if err != nil {
		// The order was created but the gateway could not issue an invoice:
		// hand the order back with the 502 so the client can retry payment.
		if order.ID != "" && errors.Is(err, domain.ErrGateway) {
			h.logger.ErrorContext(r.Context(), "handler: order created without payment url",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
			writeJSON(w, http.StatusBadGateway, toOrderResponse(order))
			return
		}
		if !domain.IsValidation(err) {
			h.logger.ErrorContext(r.Context(), "handler: create order failed", slog.String("error", err.Error()))
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// Get returns one of the authenticated user's orders.
// GET /api/orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	order, err := h.orders.GetByID(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// RetryPayment re-initiates payment for an order still awaiting one.
// POST /api/orders/{id}/pay
func (h *OrderHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	order, err := h.orders.RetryPayment(r.Context(), r.PathValue("id"), user)
	if err != nil {
		if !domain.IsValidation(err) {
			h.logger.ErrorContext(r.Context(), "handler: retry payment failed",
				slog.String("order_id", r.PathValue("id")),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order))
}
