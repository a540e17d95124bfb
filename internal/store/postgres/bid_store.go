package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mazadapp/mazad/internal/domain"
)

// BidStore implements domain.BidStore using PostgreSQL.
type BidStore struct {
	pool *pgxpool.Pool
}

// NewBidStore creates a new BidStore backed by the given pool.
func NewBidStore(pool *pgxpool.Pool) *BidStore {
	return &BidStore{pool: pool}
}

const bidCols = `id, product_id, user_id, amount, created_at`

func scanBid(row pgx.Row) (domain.Bid, error) {
	var b domain.Bid
	err := row.Scan(&b.ID, &b.ProductID, &b.UserID, &b.Amount, &b.CreatedAt)
	return b, err
}

// Insert records a new bid. Bids are immutable; there is no update path.
func (s *BidStore) Insert(ctx context.Context, b domain.Bid) error {
	_, err := querier(ctx, s.pool).Exec(ctx,
		`INSERT INTO bids (id, product_id, user_id, amount, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		b.ID, b.ProductID, b.UserID, b.Amount, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert bid %s: %w", b.ID, err)
	}
	return nil
}

// ListByProduct returns bids on a product, highest first.
func (s *BidStore) ListByProduct(ctx context.Context, productID string, opts domain.ListOpts) ([]domain.Bid, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := querier(ctx, s.pool).Query(ctx,
		`SELECT `+bidCols+` FROM bids
		 WHERE product_id = $1
		 ORDER BY amount DESC, created_at ASC
		 LIMIT $2 OFFSET $3`, productID, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids for %s: %w", productID, err)
	}
	defer rows.Close()

	var bids []domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bid: %w", err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// WinningBid returns the highest bid on the product; ties go to the earlier
// bid. ErrNotFound when the product has no bids.
func (s *BidStore) WinningBid(ctx context.Context, productID string) (domain.Bid, error) {
	row := querier(ctx, s.pool).QueryRow(ctx,
		`SELECT `+bidCols+` FROM bids
		 WHERE product_id = $1
		 ORDER BY amount DESC, created_at ASC
		 LIMIT 1`, productID)

	b, err := scanBid(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Bid{}, domain.ErrNotFound
		}
		return domain.Bid{}, fmt.Errorf("postgres: winning bid for %s: %w", productID, err)
	}
	return b, nil
}

// Compile-time interface check.
var _ domain.BidStore = (*BidStore)(nil)
