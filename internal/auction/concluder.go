// Package auction holds the scheduled concluder that settles auctions whose
// bidding window has closed.
package auction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mazadapp/mazad/internal/clock"
	"github.com/mazadapp/mazad/internal/domain"
)

// concludeLockKey guards the sweep so only one instance runs it at a time.
const concludeLockKey = "locks:auction-concluder"

// ConcluderConfig holds the tunable parameters of the sweep.
type ConcluderConfig struct {
	// Parallelism bounds how many auctions settle concurrently per sweep.
	Parallelism int
	// LockTTL is how long the sweep lock is held before it expires on its own.
	LockTTL time.Duration
}

// Concluder finds ended, unconcluded auctions and settles each one exactly
// once: the winning bid (if any) becomes a pending order for the winner, and
// the product is stamped concluded.
type Concluder struct {
	tx       domain.TxRunner
	products domain.ProductStore
	bids     domain.BidStore
	orders   domain.OrderStore
	locks    domain.LockManager
	bus      domain.EventBus
	clock    clock.Clock
	cfg      ConcluderConfig
	logger   *slog.Logger
}

// NewConcluder creates a Concluder with all required dependencies. locks may
// be nil when the process is known to be the only concluder.
func NewConcluder(
	tx domain.TxRunner,
	products domain.ProductStore,
	bids domain.BidStore,
	orders domain.OrderStore,
	locks domain.LockManager,
	bus domain.EventBus,
	clk clock.Clock,
	cfg ConcluderConfig,
	logger *slog.Logger,
) *Concluder {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	return &Concluder{
		tx:       tx,
		products: products,
		bids:     bids,
		orders:   orders,
		locks:    locks,
		bus:      bus,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
	}
}

// RunLoop runs a sweep immediately and then on every tick until ctx ends.
func (c *Concluder) RunLoop(ctx context.Context, interval time.Duration) error {
	c.logger.Info("concluder: loop starting", slog.Duration("interval", interval))

	if err := c.RunOnce(ctx); err != nil {
		c.logger.Error("concluder: sweep failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("concluder: loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := c.RunOnce(ctx); err != nil {
				c.logger.Error("concluder: sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce performs a single sweep. A sweep that loses the distributed lock
// returns nil: another instance is already doing the work. Per-auction
// failures are logged and skipped; the failed auction stays unconcluded and
// is retried on the next sweep.
func (c *Concluder) RunOnce(ctx context.Context) error {
	if c.locks != nil {
		unlock, err := c.locks.Acquire(ctx, concludeLockKey, c.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				c.logger.Debug("concluder: sweep lock held elsewhere, skipping")
				return nil
			}
			return fmt.Errorf("concluder: acquire lock: %w", err)
		}
		defer unlock()
	}

	now := c.clock.Now().UTC()
	ended, err := c.products.ListEndedUnconcluded(ctx, now)
	if err != nil {
		return fmt.Errorf("concluder: list ended auctions: %w", err)
	}
	if len(ended) == 0 {
		return nil
	}

	c.logger.Info("concluder: sweep starting", slog.Int("auctions", len(ended)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Parallelism)

	for _, product := range ended {
		g.Go(func() error {
			if err := c.concludeOne(ctx, product, now); err != nil {
				c.logger.Error("concluder: auction failed",
					slog.String("product_id", product.ID),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}

	return g.Wait()
}

// concludeOne settles a single auction inside one transaction. The row lock
// plus the guarded conclusion stamp make the settlement happen at most once
// even when two sweeps race.
func (c *Concluder) concludeOne(ctx context.Context, product domain.Product, now time.Time) error {
	var winner *domain.Bid
	var orderID string

	err := c.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := c.products.GetForUpdate(ctx, product.ID)
		if err != nil {
			return fmt.Errorf("load product: %w", err)
		}
		if current.Concluded() || !current.AuctionEnded(now) {
			// Another sweep got here first.
			return nil
		}

		bid, err := c.bids.WinningBid(ctx, product.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// No bids: the auction concludes without a winner.
		case err != nil:
			return fmt.Errorf("winning bid: %w", err)
		default:
			winner = &bid
			order := domain.Order{
				ID:          uuid.NewString(),
				UserID:      bid.UserID,
				TotalAmount: bid.Amount,
				Status:      domain.OrderPendingPayment,
				Lines: []domain.OrderLine{{
					ProductID: product.ID,
					Quantity:  1,
					UnitPrice: bid.Amount,
				}},
				CreatedAt: now,
				UpdatedAt: now,
			}
			order.Lines[0].OrderID = order.ID
			if err := c.orders.Create(ctx, order); err != nil {
				return fmt.Errorf("create winner order: %w", err)
			}
			orderID = order.ID
		}

		ok, err := c.products.SetConcluded(ctx, product.ID, now)
		if err != nil {
			return fmt.Errorf("stamp conclusion: %w", err)
		}
		if !ok {
			return fmt.Errorf("auction concluded concurrently: %w", domain.ErrConflict)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ev := domain.Event{
		Type:      domain.EventAuctionConcluded,
		ProductID: product.ID,
		At:        now,
	}
	if winner != nil {
		ev.UserID = winner.UserID
		ev.Amount = winner.Amount
		ev.OrderID = orderID
		c.logger.Info("concluder: auction concluded",
			slog.String("product_id", product.ID),
			slog.String("winner_id", winner.UserID),
			slog.Int64("amount", winner.Amount),
			slog.String("order_id", orderID),
		)
	} else {
		c.logger.Info("concluder: auction concluded without bids",
			slog.String("product_id", product.ID),
		)
	}
	c.publish(ctx, ev)

	return nil
}

func (c *Concluder) publish(ctx context.Context, ev domain.Event) {
	if c.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		c.logger.Warn("concluder: marshal event", slog.String("error", err.Error()))
		return
	}
	for _, channel := range []string{domain.ChannelAuctions, domain.ProductChannel(ev.ProductID)} {
		if err := c.bus.Publish(ctx, channel, payload); err != nil {
			c.logger.Warn("concluder: publish event",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
		}
	}
}
