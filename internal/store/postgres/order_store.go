package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mazadapp/mazad/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderCols = `id, user_id, total_amount, status, idempotency_key,
	payment_ref, payment_url, transaction_id, created_at, updated_at`

func scanOrder(row pgx.Row) (domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(
		&o.ID, &o.UserID, &o.TotalAmount, &status, &o.IdempotencyKey,
		&o.PaymentRef, &o.PaymentURL, &o.TransactionID, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	return o, nil
}

// Create inserts the order row and all of its line items. Callers run it
// inside a transaction so the order and lines land together. A duplicate
// idempotency key maps to domain.ErrConflict.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) error {
	q := querier(ctx, s.pool)

	_, err := q.Exec(ctx,
		`INSERT INTO orders (
			id, user_id, total_amount, status, idempotency_key,
			payment_ref, payment_url, transaction_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
		o.ID, o.UserID, o.TotalAmount, string(o.Status), o.IdempotencyKey,
		o.PaymentRef, o.PaymentURL, o.TransactionID, o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("postgres: create order %s: %w", o.ID, err)
	}

	for _, line := range o.Lines {
		_, err := q.Exec(ctx,
			`INSERT INTO order_lines (order_id, product_id, quantity, unit_price)
			 VALUES ($1, $2, $3, $4)`,
			o.ID, line.ProductID, line.Quantity, line.UnitPrice)
		if err != nil {
			return fmt.Errorf("postgres: create order line %s/%s: %w", o.ID, line.ProductID, err)
		}
	}
	return nil
}

func (s *OrderStore) loadLines(ctx context.Context, o *domain.Order) error {
	rows, err := querier(ctx, s.pool).Query(ctx,
		`SELECT order_id, product_id, quantity, unit_price
		 FROM order_lines WHERE order_id = $1`, o.ID)
	if err != nil {
		return fmt.Errorf("postgres: load order lines %s: %w", o.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPrice); err != nil {
			return fmt.Errorf("postgres: scan order line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	return rows.Err()
}

func (s *OrderStore) getBy(ctx context.Context, where string, arg any) (domain.Order, error) {
	row := querier(ctx, s.pool).QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE `+where, arg)

	o, err := scanOrder(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Order{}, domain.ErrNotFound
		}
		return domain.Order{}, fmt.Errorf("postgres: get order: %w", err)
	}
	if err := s.loadLines(ctx, &o); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// GetByID retrieves an order with its lines.
func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	return s.getBy(ctx, `id = $1`, id)
}

// GetByIdempotencyKey retrieves the order created with the given key.
func (s *OrderStore) GetByIdempotencyKey(ctx context.Context, key string) (domain.Order, error) {
	return s.getBy(ctx, `idempotency_key = $1`, key)
}

// SetPaymentRef records the gateway invoice id and checkout URL after
// payment initiation.
func (s *OrderStore) SetPaymentRef(ctx context.Context, id, invoiceID, paymentURL string) error {
	tag, err := querier(ctx, s.pool).Exec(ctx,
		`UPDATE orders SET payment_ref = $2, payment_url = $3, updated_at = NOW() WHERE id = $1`,
		id, invoiceID, paymentURL)
	if err != nil {
		return fmt.Errorf("postgres: set payment ref on %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateStatus moves the order to status, recording the gateway transaction
// id when given. Re-delivering the same status is a no-op, so duplicate
// gateway callbacks are harmless.
func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, transactionID string) error {
	var tid *string
	if transactionID != "" {
		tid = &transactionID
	}

	tag, err := querier(ctx, s.pool).Exec(ctx,
		`UPDATE orders SET
			status = $2,
			transaction_id = COALESCE($3, transaction_id),
			updated_at = CASE WHEN status = $2 THEN updated_at ELSE NOW() END
		 WHERE id = $1`,
		id, string(status), tid)
	if err != nil {
		return fmt.Errorf("postgres: update order status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListSettledBefore returns settled orders last touched before the cutoff,
// with lines, for the cold-storage archiver.
func (s *OrderStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Order, error) {
	rows, err := querier(ctx, s.pool).Query(ctx,
		`SELECT `+orderCols+` FROM orders
		 WHERE status IN ('paid', 'failed', 'cancelled') AND updated_at < $1
		 ORDER BY updated_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan settled order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if err := s.loadLines(ctx, &orders[i]); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// DeleteSettledBefore prunes settled orders already exported to cold
// storage. Lines go with them via ON DELETE CASCADE.
func (s *OrderStore) DeleteSettledBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := querier(ctx, s.pool).Exec(ctx,
		`DELETE FROM orders
		 WHERE status IN ('paid', 'failed', 'cancelled') AND updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete settled orders: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.OrderStore = (*OrderStore)(nil)
