package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mazadapp/mazad/internal/domain"
	"github.com/mazadapp/mazad/internal/service"
)

// ProductService defines what the product handler needs from the service
// layer.
type ProductService interface {
	Create(ctx context.Context, in service.CreateProductInput) (domain.Product, error)
	Update(ctx context.Context, id string, in service.UpdateProductInput) (domain.Product, error)
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (domain.Product, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Product, error)
}

// ProductHandler serves the catalog endpoints.
type ProductHandler struct {
	products ProductService
	logger   *slog.Logger
}

// NewProductHandler creates a ProductHandler.
func NewProductHandler(products ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{products: products, logger: logger}
}

type createProductRequest struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Kind           string     `json:"kind"`
	Price          int64      `json:"price"`
	StockQuantity  int        `json:"stock_quantity"`
	StartingPrice  int64      `json:"starting_price"`
	AuctionEndTime *time.Time `json:"auction_end_time"`
}

type updateProductRequest struct {
	Name           *string    `json:"name"`
	Description    *string    `json:"description"`
	Price          *int64     `json:"price"`
	StockQuantity  *int       `json:"stock_quantity"`
	StartingPrice  *int64     `json:"starting_price"`
	AuctionEndTime *time.Time `json:"auction_end_time"`
}

// List returns a catalog page.
// GET /api/products?limit=50&offset=0
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list products failed", slog.String("error", err.Error()))
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": toProductResponses(products)})
}

// Get returns one product.
// GET /api/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Create adds a product to the catalog.
// POST /api/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.products.Create(r.Context(), service.CreateProductInput{
		Name:           req.Name,
		Description:    req.Description,
		Kind:           domain.ProductKind(req.Kind),
		Price:          req.Price,
		StockQuantity:  req.StockQuantity,
		StartingPrice:  req.StartingPrice,
		AuctionEndTime: req.AuctionEndTime,
	})
	if err != nil {
		if !domain.IsValidation(err) {
			h.logger.ErrorContext(r.Context(), "handler: create product failed", slog.String("error", err.Error()))
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// Update modifies a product.
// PUT /api/products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.products.Update(r.Context(), r.PathValue("id"), service.UpdateProductInput{
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		StockQuantity:  req.StockQuantity,
		StartingPrice:  req.StartingPrice,
		AuctionEndTime: req.AuctionEndTime,
	})
	if err != nil {
		if !domain.IsValidation(err) {
			h.logger.ErrorContext(r.Context(), "handler: update product failed", slog.String("error", err.Error()))
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Delete removes a product.
// DELETE /api/products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.products.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "product_id": id})
}
