package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mazadapp/mazad/internal/clock"
	"github.com/mazadapp/mazad/internal/domain"
)

// BidConfig holds the tunable parameters for bid acceptance.
type BidConfig struct {
	// RateLimit and RateWindow bound bids per user. Zero disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

// BidService validates and records bids on auction products. Acceptance is
// serialized per product through a row lock so the highest-bid cache can
// never go backwards.
type BidService struct {
	tx       domain.TxRunner
	products domain.ProductStore
	bids     domain.BidStore
	bus      domain.EventBus
	limiter  domain.RateLimiter
	clock    clock.Clock
	cfg      BidConfig
	logger   *slog.Logger
}

// NewBidService creates a BidService with all required dependencies.
// limiter may be nil when rate limiting is disabled.
func NewBidService(
	tx domain.TxRunner,
	products domain.ProductStore,
	bids domain.BidStore,
	bus domain.EventBus,
	limiter domain.RateLimiter,
	clk clock.Clock,
	cfg BidConfig,
	logger *slog.Logger,
) *BidService {
	return &BidService{
		tx:       tx,
		products: products,
		bids:     bids,
		bus:      bus,
		limiter:  limiter,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
	}
}

// Place validates and records a bid of amount on productID by userID.
//
// The bid is rejected with a ValidationError when the product is not an
// auction, the auction window has closed, or the amount does not strictly
// exceed the current threshold (highest bid when one exists, otherwise the
// starting price). The rejection message embeds the threshold.
func (s *BidService) Place(ctx context.Context, productID, userID string, amount int64) (domain.Bid, error) {
	if amount <= 0 {
		return domain.Bid{}, domain.Validationf("amount", "bid amount must be positive")
	}

	if s.limiter != nil && s.cfg.RateLimit > 0 {
		ok, err := s.limiter.Allow(ctx, "bids:"+userID, s.cfg.RateLimit, s.cfg.RateWindow)
		if err != nil {
			// A broken limiter should not take bidding down with it.
			s.logger.WarnContext(ctx, "bid_service: rate limiter unavailable",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		} else if !ok {
			return domain.Bid{}, fmt.Errorf("bid_service: user %s: %w", userID, domain.ErrRateLimited)
		}
	}

	now := s.clock.Now().UTC()
	bid := domain.Bid{
		ID:        uuid.NewString(),
		ProductID: productID,
		UserID:    userID,
		Amount:    amount,
		CreatedAt: now,
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		product, err := s.products.GetForUpdate(ctx, productID)
		if err != nil {
			return fmt.Errorf("bid_service: load product %s: %w", productID, err)
		}

		if !product.IsAuction() {
			return domain.Validationf("product_id", "product %s is not an auction", productID)
		}
		if product.AuctionEnded(now) || product.Concluded() {
			return domain.Validationf("product_id", "the auction for this product has ended")
		}

		if threshold := product.MinNextBid(); amount <= threshold {
			if product.CurrentHighestBid != nil {
				return domain.Validationf("amount",
					"your bid must be higher than the current highest bid of %s", formatAmount(threshold))
			}
			return domain.Validationf("amount",
				"your bid must be higher than the starting price of %s", formatAmount(threshold))
		}

		if err := s.bids.Insert(ctx, bid); err != nil {
			return fmt.Errorf("bid_service: insert bid: %w", err)
		}
		if err := s.products.SetHighestBid(ctx, productID, amount); err != nil {
			return fmt.Errorf("bid_service: update highest bid: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Bid{}, err
	}

	s.publish(ctx, domain.Event{
		Type:      domain.EventBidPlaced,
		ProductID: productID,
		UserID:    userID,
		Amount:    amount,
		At:        now,
	})

	s.logger.InfoContext(ctx, "bid_service: bid accepted",
		slog.String("bid_id", bid.ID),
		slog.String("product_id", productID),
		slog.String("user_id", userID),
		slog.Int64("amount", amount),
	)

	return bid, nil
}

// ListByProduct returns the bids on a product, newest first.
func (s *BidService) ListByProduct(ctx context.Context, productID string, opts domain.ListOpts) ([]domain.Bid, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, fmt.Errorf("bid_service: load product %s: %w", productID, err)
	}
	bids, err := s.bids.ListByProduct(ctx, productID, opts)
	if err != nil {
		return nil, fmt.Errorf("bid_service: list bids: %w", err)
	}
	return bids, nil
}

func (s *BidService) publish(ctx context.Context, ev domain.Event) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.WarnContext(ctx, "bid_service: marshal event", slog.String("error", err.Error()))
		return
	}
	for _, channel := range []string{domain.ChannelBids, domain.ProductChannel(ev.ProductID)} {
		if err := s.bus.Publish(ctx, channel, payload); err != nil {
			s.logger.WarnContext(ctx, "bid_service: publish event",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
		}
	}
}

// formatAmount renders minor units as a decimal string for user-facing
// validation messages.
func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
