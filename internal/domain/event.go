package domain

import (
	"context"
	"time"
)

// Event channels published on the event bus. Product-scoped events also go
// out on "product:<id>" so feed clients can watch a single lot.
const (
	ChannelBids     = "bids"
	ChannelAuctions = "auctions"
	ChannelOrders   = "orders"
)

// ProductChannel returns the per-product event channel name.
func ProductChannel(productID string) string {
	return "product:" + productID
}

// EventType identifies what happened.
type EventType string

const (
	EventBidPlaced        EventType = "bid_placed"
	EventAuctionConcluded EventType = "auction_concluded"
	EventPaymentSettled   EventType = "payment_settled"
)

// Event is the JSON payload broadcast to live-feed clients.
type Event struct {
	Type      EventType `json:"type"`
	ProductID string    `json:"product_id,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Status    string    `json:"status,omitempty"`
	At        time.Time `json:"at"`
}

// EventMessage is a raw message received from a subscription.
type EventMessage struct {
	Channel string
	Data    []byte
}

// EventBus is a fire-and-forget pub/sub fabric between services and the
// WebSocket hub. Publish failures are logged by callers, never surfaced to
// API clients.
type EventBus interface {
	Publish(ctx context.Context, channel string, data []byte) error
	// Subscribe returns a receive channel for the given pattern channels and
	// a stop function releasing the subscription.
	Subscribe(ctx context.Context, channels ...string) (<-chan EventMessage, func(), error)
}

// LockManager provides distributed mutual exclusion (one concluder sweep at a
// time across instances). Acquire returns ErrLockHeld when another holder has
// the lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter bounds request rates per key (bid spam control).
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ProductCache caches product list pages for the read-heavy catalog endpoint.
type ProductCache interface {
	GetList(ctx context.Context, opts ListOpts) ([]Product, bool, error)
	SetList(ctx context.Context, opts ListOpts, products []Product) error
	Invalidate(ctx context.Context) error
}
