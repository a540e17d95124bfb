package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// TxRunner executes fn inside a single database transaction. Store calls made
// with the context fn receives join that transaction; the transaction commits
// when fn returns nil and rolls back otherwise. Nested calls reuse the
// ambient transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductStore persists products of both kinds.
type ProductStore interface {
	Create(ctx context.Context, p Product) error
	Update(ctx context.Context, p Product) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Product, error)
	// GetForUpdate locks the product row for the duration of the ambient
	// transaction, serializing concurrent bids and stock checks.
	GetForUpdate(ctx context.Context, id string) (Product, error)
	List(ctx context.Context, opts ListOpts) ([]Product, error)
	SetHighestBid(ctx context.Context, id string, amount int64) error
	// DecrementStock reduces stock by qty only when enough remains; it
	// reports false when the guard rejects the decrement.
	DecrementStock(ctx context.Context, id string, qty int) (bool, error)
	// ListEndedUnconcluded returns auction products whose end time has passed
	// and whose concluded_at is still null.
	ListEndedUnconcluded(ctx context.Context, now time.Time) ([]Product, error)
	// SetConcluded stamps concluded_at, guarded so it succeeds at most once
	// per product; it reports false when the auction was already concluded.
	SetConcluded(ctx context.Context, id string, at time.Time) (bool, error)
}

// BidStore persists bids.
type BidStore interface {
	Insert(ctx context.Context, b Bid) error
	ListByProduct(ctx context.Context, productID string, opts ListOpts) ([]Bid, error)
	// WinningBid returns the highest bid on the product, ties broken by
	// earliest creation time. ErrNotFound when the product has no bids.
	WinningBid(ctx context.Context, productID string) (Bid, error)
}

// OrderStore persists orders and their line items.
type OrderStore interface {
	// Create inserts the order row and all of its lines.
	Create(ctx context.Context, o Order) error
	GetByID(ctx context.Context, id string) (Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (Order, error)
	SetPaymentRef(ctx context.Context, id, invoiceID, paymentURL string) error
	// UpdateStatus moves the order to status; setting the current status
	// again is a no-op, not an error. transactionID may be empty.
	UpdateStatus(ctx context.Context, id string, status OrderStatus, transactionID string) error
	// ListSettledBefore feeds the cold-storage archiver.
	ListSettledBefore(ctx context.Context, before time.Time) ([]Order, error)
	DeleteSettledBefore(ctx context.Context, before time.Time) (int64, error)
}

// UserStore persists accounts and their API tokens.
type UserStore interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	// UpsertByEmail creates the user or updates name/google id on the
	// existing account with the same email, returning the stored user.
	UpsertByEmail(ctx context.Context, u User) (User, error)
	InsertToken(ctx context.Context, userID, digest string, issuedAt time.Time) error
	GetUserByTokenDigest(ctx context.Context, digest string) (User, error)
	DeleteTokensForUser(ctx context.Context, userID string) error
}
