package domain

import "time"

// OrderStatus tracks the payment lifecycle of an order. Transitions are
// one-directional: pending_payment moves to paid or failed and stops there.
// A failed purchase is retried with a fresh order, never by reusing the row.
type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderPaid           OrderStatus = "paid"
	OrderFailed         OrderStatus = "failed"
	OrderCancelled      OrderStatus = "cancelled"
)

// Settled reports whether the status is terminal.
func (s OrderStatus) Settled() bool {
	return s == OrderPaid || s == OrderFailed || s == OrderCancelled
}

// Order is a purchase with its line items. The order exclusively owns its
// lines: they are created and deleted together.
type Order struct {
	ID          string
	UserID      string
	TotalAmount int64
	Status      OrderStatus

	// IdempotencyKey is the optional client-supplied token that makes retried
	// creation requests return this order instead of inserting a duplicate.
	// Unique across all orders when present.
	IdempotencyKey *string

	// PaymentRef is the gateway invoice id, set after payment initiation.
	// PaymentURL is the checkout URL the gateway returned alongside it.
	// TransactionID is the gateway transaction recorded on confirmation.
	PaymentRef    *string
	PaymentURL    *string
	TransactionID *string

	Lines []OrderLine

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderLine captures one purchased product with the quantity and the unit
// price locked in at order-creation time.
type OrderLine struct {
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice int64
}
