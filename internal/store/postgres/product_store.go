package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mazadapp/mazad/internal/domain"
)

// ProductStore implements domain.ProductStore using PostgreSQL.
type ProductStore struct {
	pool *pgxpool.Pool
}

// NewProductStore creates a new ProductStore backed by the given pool.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

const productCols = `id, name, description, kind,
	price, stock_quantity,
	starting_price, current_highest_bid, auction_end_time, concluded_at,
	created_at, updated_at`

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product
	var kind string
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &kind,
		&p.Price, &p.StockQuantity,
		&p.StartingPrice, &p.CurrentHighestBid, &p.AuctionEndTime, &p.ConcludedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}
	p.Kind = domain.ProductKind(kind)
	return p, nil
}

// Create inserts a new product.
func (s *ProductStore) Create(ctx context.Context, p domain.Product) error {
	const query = `
		INSERT INTO products (
			id, name, description, kind,
			price, stock_quantity,
			starting_price, current_highest_bid, auction_end_time, concluded_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())`

	_, err := querier(ctx, s.pool).Exec(ctx, query,
		p.ID, p.Name, p.Description, string(p.Kind),
		p.Price, p.StockQuantity,
		p.StartingPrice, p.CurrentHighestBid, p.AuctionEndTime, p.ConcludedAt,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create product %s: %w", p.ID, err)
	}
	return nil
}

// Update overwrites the mutable fields of an existing product.
func (s *ProductStore) Update(ctx context.Context, p domain.Product) error {
	const query = `
		UPDATE products SET
			name = $2, description = $3,
			price = $4, stock_quantity = $5,
			starting_price = $6, auction_end_time = $7,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := querier(ctx, s.pool).Exec(ctx, query,
		p.ID, p.Name, p.Description,
		p.Price, p.StockQuantity,
		p.StartingPrice, p.AuctionEndTime,
	)
	if err != nil {
		return fmt.Errorf("postgres: update product %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a product.
func (s *ProductStore) Delete(ctx context.Context, id string) error {
	tag, err := querier(ctx, s.pool).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete product %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a single product.
func (s *ProductStore) GetByID(ctx context.Context, id string) (domain.Product, error) {
	row := querier(ctx, s.pool).QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id = $1`, id)

	p, err := scanProduct(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("postgres: get product %s: %w", id, err)
	}
	return p, nil
}

// GetForUpdate retrieves a product holding a row lock for the rest of the
// ambient transaction. Concurrent bids and stock checks on the same product
// serialize here.
func (s *ProductStore) GetForUpdate(ctx context.Context, id string) (domain.Product, error) {
	row := querier(ctx, s.pool).QueryRow(ctx,
		`SELECT `+productCols+` FROM products WHERE id = $1 FOR UPDATE`, id)

	p, err := scanProduct(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("postgres: lock product %s: %w", id, err)
	}
	return p, nil
}

// List returns a page of products, newest first.
func (s *ProductStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Product, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	rows, err := querier(ctx, s.pool).Query(ctx,
		`SELECT `+productCols+` FROM products
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// SetHighestBid updates the cached highest bid on the product row.
func (s *ProductStore) SetHighestBid(ctx context.Context, id string, amount int64) error {
	tag, err := querier(ctx, s.pool).Exec(ctx,
		`UPDATE products SET current_highest_bid = $2, updated_at = NOW() WHERE id = $1`,
		id, amount)
	if err != nil {
		return fmt.Errorf("postgres: set highest bid on %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DecrementStock atomically reduces stock, refusing to go below zero. It
// reports false when the product has less stock than qty.
func (s *ProductStore) DecrementStock(ctx context.Context, id string, qty int) (bool, error) {
	tag, err := querier(ctx, s.pool).Exec(ctx,
		`UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		 WHERE id = $1 AND stock_quantity >= $2`,
		id, qty)
	if err != nil {
		return false, fmt.Errorf("postgres: decrement stock on %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListEndedUnconcluded returns auction products whose window has closed and
// that the concluder has not processed yet.
func (s *ProductStore) ListEndedUnconcluded(ctx context.Context, now time.Time) ([]domain.Product, error) {
	rows, err := querier(ctx, s.pool).Query(ctx,
		`SELECT `+productCols+` FROM products
		 WHERE kind = 'auction' AND auction_end_time <= $1 AND concluded_at IS NULL
		 ORDER BY auction_end_time ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ended auctions: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan ended auction: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListConcludedBefore returns auctions concluded before the cutoff, feeding
// the cold-storage archiver.
func (s *ProductStore) ListConcludedBefore(ctx context.Context, before time.Time) ([]domain.Product, error) {
	rows, err := querier(ctx, s.pool).Query(ctx,
		`SELECT `+productCols+` FROM products
		 WHERE kind = 'auction' AND concluded_at < $1
		 ORDER BY concluded_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list concluded auctions: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan concluded auction: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// SetConcluded stamps concluded_at. The IS NULL guard makes the stamp
// single-shot: a second attempt reports false instead of overwriting.
func (s *ProductStore) SetConcluded(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := querier(ctx, s.pool).Exec(ctx,
		`UPDATE products SET concluded_at = $2, updated_at = NOW()
		 WHERE id = $1 AND concluded_at IS NULL`,
		id, at)
	if err != nil {
		return false, fmt.Errorf("postgres: conclude product %s: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Compile-time interface check.
var _ domain.ProductStore = (*ProductStore)(nil)
