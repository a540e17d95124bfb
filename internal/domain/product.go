// Package domain holds the core entities of the marketplace (users, products,
// bids, orders) and the store interfaces the rest of the system depends on.
// Monetary amounts are int64 minor units (halalas for SAR) throughout.
package domain

import "time"

// ProductKind distinguishes directly purchasable products from auction lots.
type ProductKind string

const (
	ProductFixedPrice ProductKind = "fixed_price"
	ProductAuction    ProductKind = "auction"
)

// Product is a sellable item. Fixed-price products carry Price and
// StockQuantity; auction products carry StartingPrice, AuctionEndTime, the
// cached CurrentHighestBid, and ConcludedAt once the concluder has processed
// them. Fields of the other kind are zero/nil.
type Product struct {
	ID          string
	Name        string
	Description string
	Kind        ProductKind

	// Fixed-price fields.
	Price         int64
	StockQuantity int

	// Auction fields. CurrentHighestBid is nil until the first accepted bid.
	// ConcludedAt is set exactly once, by the concluder.
	StartingPrice     int64
	CurrentHighestBid *int64
	AuctionEndTime    *time.Time
	ConcludedAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsFixedPrice reports whether the product is sold at a fixed price.
func (p Product) IsFixedPrice() bool { return p.Kind == ProductFixedPrice }

// IsAuction reports whether the product is sold by auction.
func (p Product) IsAuction() bool { return p.Kind == ProductAuction }

// MinNextBid returns the amount a new bid must strictly exceed: the cached
// highest bid when one exists, otherwise the starting price.
func (p Product) MinNextBid() int64 {
	if p.CurrentHighestBid != nil {
		return *p.CurrentHighestBid
	}
	return p.StartingPrice
}

// AuctionEnded reports whether the auction window has closed at the given
// instant. Auctions without an end time never end on their own.
func (p Product) AuctionEnded(now time.Time) bool {
	return p.AuctionEndTime != nil && now.After(*p.AuctionEndTime)
}

// Concluded reports whether the concluder has already processed the auction.
func (p Product) Concluded() bool { return p.ConcludedAt != nil }
