package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mazadapp/mazad/internal/clock"
	"github.com/mazadapp/mazad/internal/domain"
)

// CreateProductInput carries the fields a seller submits for a new product.
// Auction products use StartingPrice and AuctionEndTime; fixed-price products
// use Price and StockQuantity.
type CreateProductInput struct {
	Name           string
	Description    string
	Kind           domain.ProductKind
	Price          int64
	StockQuantity  int
	StartingPrice  int64
	AuctionEndTime *time.Time
}

// UpdateProductInput carries the mutable fields of an existing product. Nil
// fields are left unchanged. Kind is immutable after creation.
type UpdateProductInput struct {
	Name           *string
	Description    *string
	Price          *int64
	StockQuantity  *int
	StartingPrice  *int64
	AuctionEndTime *time.Time
}

// ProductService manages the catalog. List reads go through the cache; every
// write invalidates it.
type ProductService struct {
	products domain.ProductStore
	cache    domain.ProductCache
	clock    clock.Clock
	logger   *slog.Logger
}

// NewProductService creates a ProductService. cache may be nil to bypass
// caching entirely.
func NewProductService(products domain.ProductStore, cache domain.ProductCache, clk clock.Clock, logger *slog.Logger) *ProductService {
	return &ProductService{
		products: products,
		cache:    cache,
		clock:    clk,
		logger:   logger,
	}
}

// Create validates and stores a new product.
func (s *ProductService) Create(ctx context.Context, in CreateProductInput) (domain.Product, error) {
	if in.Name == "" {
		return domain.Product{}, domain.Validationf("name", "name is required")
	}

	now := s.clock.Now().UTC()
	product := domain.Product{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Description: in.Description,
		Kind:        in.Kind,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	switch in.Kind {
	case domain.ProductFixedPrice:
		if in.Price <= 0 {
			return domain.Product{}, domain.Validationf("price", "price must be positive")
		}
		if in.StockQuantity < 0 {
			return domain.Product{}, domain.Validationf("stock_quantity", "stock quantity cannot be negative")
		}
		product.Price = in.Price
		product.StockQuantity = in.StockQuantity
	case domain.ProductAuction:
		if in.StartingPrice <= 0 {
			return domain.Product{}, domain.Validationf("starting_price", "starting price must be positive")
		}
		if in.AuctionEndTime == nil {
			return domain.Product{}, domain.Validationf("auction_end_time", "auction end time is required")
		}
		if !in.AuctionEndTime.After(now) {
			return domain.Product{}, domain.Validationf("auction_end_time", "auction end time must be in the future")
		}
		product.StartingPrice = in.StartingPrice
		endsAt := in.AuctionEndTime.UTC()
		product.AuctionEndTime = &endsAt
	default:
		return domain.Product{}, domain.Validationf("kind", "unknown product kind %q", in.Kind)
	}

	if err := s.products.Create(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("product_service: create: %w", err)
	}
	s.invalidate(ctx)

	s.logger.InfoContext(ctx, "product_service: product created",
		slog.String("product_id", product.ID),
		slog.String("kind", string(product.Kind)),
	)

	return product, nil
}

// Update applies the non-nil fields of in to the product.
func (s *ProductService) Update(ctx context.Context, id string, in UpdateProductInput) (domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product_service: load %s: %w", id, err)
	}

	if in.Name != nil {
		if *in.Name == "" {
			return domain.Product{}, domain.Validationf("name", "name cannot be empty")
		}
		product.Name = *in.Name
	}
	if in.Description != nil {
		product.Description = *in.Description
	}

	switch product.Kind {
	case domain.ProductFixedPrice:
		if in.Price != nil {
			if *in.Price <= 0 {
				return domain.Product{}, domain.Validationf("price", "price must be positive")
			}
			product.Price = *in.Price
		}
		if in.StockQuantity != nil {
			if *in.StockQuantity < 0 {
				return domain.Product{}, domain.Validationf("stock_quantity", "stock quantity cannot be negative")
			}
			product.StockQuantity = *in.StockQuantity
		}
	case domain.ProductAuction:
		if product.Concluded() {
			return domain.Product{}, domain.Validationf("product_id", "a concluded auction cannot be modified")
		}
		if in.StartingPrice != nil {
			if product.CurrentHighestBid != nil {
				return domain.Product{}, domain.Validationf("starting_price", "starting price cannot change after the first bid")
			}
			if *in.StartingPrice <= 0 {
				return domain.Product{}, domain.Validationf("starting_price", "starting price must be positive")
			}
			product.StartingPrice = *in.StartingPrice
		}
		if in.AuctionEndTime != nil {
			endsAt := in.AuctionEndTime.UTC()
			if !endsAt.After(s.clock.Now().UTC()) {
				return domain.Product{}, domain.Validationf("auction_end_time", "auction end time must be in the future")
			}
			product.AuctionEndTime = &endsAt
		}
	}

	product.UpdatedAt = s.clock.Now().UTC()
	if err := s.products.Update(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("product_service: update %s: %w", id, err)
	}
	s.invalidate(ctx)

	return product, nil
}

// Delete removes a product from the catalog.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return fmt.Errorf("product_service: delete %s: %w", id, err)
	}
	s.invalidate(ctx)
	return nil
}

// GetByID returns one product.
func (s *ProductService) GetByID(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("product_service: load %s: %w", id, err)
	}
	return product, nil
}

// List returns a catalog page, served from the cache when possible. Cache
// errors degrade to a store read.
func (s *ProductService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Product, error) {
	if s.cache != nil {
		products, hit, err := s.cache.GetList(ctx, opts)
		if err != nil {
			s.logger.WarnContext(ctx, "product_service: cache read failed", slog.String("error", err.Error()))
		} else if hit {
			return products, nil
		}
	}

	products, err := s.products.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("product_service: list: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetList(ctx, opts, products); err != nil {
			s.logger.WarnContext(ctx, "product_service: cache write failed", slog.String("error", err.Error()))
		}
	}

	return products, nil
}

func (s *ProductService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "product_service: cache invalidation failed", slog.String("error", err.Error()))
	}
}
