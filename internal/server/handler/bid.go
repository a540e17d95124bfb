package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mazadapp/mazad/internal/domain"
	"github.com/mazadapp/mazad/internal/server/middleware"
)

// BidService defines what the bid handler needs from the service layer.
type BidService interface {
	Place(ctx context.Context, productID, userID string, amount int64) (domain.Bid, error)
	ListByProduct(ctx context.Context, productID string, opts domain.ListOpts) ([]domain.Bid, error)
}

// BidHandler serves bidding endpoints.
type BidHandler struct {
	bids   BidService
	logger *slog.Logger
}

// NewBidHandler creates a BidHandler.
func NewBidHandler(bids BidService, logger *slog.Logger) *BidHandler {
	return &BidHandler{bids: bids, logger: logger}
}

type placeBidRequest struct {
	Amount int64 `json:"amount"`
}

// Place records a bid on an auction product for the authenticated user.
// POST /api/products/{id}/bids
func (h *BidHandler) Place(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bid, err := h.bids.Place(r.Context(), r.PathValue("id"), user.ID, req.Amount)
	if err != nil {
		if !domain.IsValidation(err) {
			h.logger.ErrorContext(r.Context(), "handler: place bid failed",
				slog.String("product_id", r.PathValue("id")),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBidResponse(bid))
}

// List returns the bids on a product.
// GET /api/products/{id}/bids
func (h *BidHandler) List(w http.ResponseWriter, r *http.Request) {
	bids, err := h.bids.ListByProduct(r.Context(), r.PathValue("id"), parseListOpts(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": toBidResponses(bids)})
}
