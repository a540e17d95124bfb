package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mazadapp/mazad/internal/clock"
	"github.com/mazadapp/mazad/internal/domain"
)

// OrderLineInput is one requested product/quantity pair in a checkout.
type OrderLineInput struct {
	ProductID string
	Quantity  int
}

// CreateOrderInput is a checkout request. IdempotencyKey is optional; when a
// settled or pending order already carries the same key, that order is
// returned instead of creating a new one.
type CreateOrderInput struct {
	UserID         string
	IdempotencyKey string
	Lines          []OrderLineInput
}

// OrderService creates orders against current stock, initiates payment with
// the gateway, and settles orders from verified gateway results.
type OrderService struct {
	tx       domain.TxRunner
	orders   domain.OrderStore
	products domain.ProductStore
	gateway  domain.PaymentGateway
	bus      domain.EventBus
	clock    clock.Clock
	logger   *slog.Logger
}

// NewOrderService creates an OrderService with all required dependencies.
func NewOrderService(
	tx domain.TxRunner,
	orders domain.OrderStore,
	products domain.ProductStore,
	gateway domain.PaymentGateway,
	bus domain.EventBus,
	clk clock.Clock,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		tx:       tx,
		orders:   orders,
		products: products,
		gateway:  gateway,
		bus:      bus,
		clock:    clk,
		logger:   logger,
	}
}

// Create checks out the requested lines for the buyer.
//
// Inside one transaction it locks each product, verifies it is purchasable
// (fixed-price, enough stock), decrements stock, and inserts the order in
// pending_payment with unit prices locked in. Payment initiation happens
// after commit: an unreachable gateway never loses the order, it is returned
// alongside the gateway error so the caller can retry payment later.
func (s *OrderService) Create(ctx context.Context, in CreateOrderInput, buyer domain.User) (domain.Order, error) {
	if len(in.Lines) == 0 {
		return domain.Order{}, domain.Validationf("lines", "order must contain at least one line")
	}
	seen := make(map[string]struct{}, len(in.Lines))
	for _, line := range in.Lines {
		if line.Quantity <= 0 {
			return domain.Order{}, domain.Validationf("quantity", "quantity for product %s must be positive", line.ProductID)
		}
		if _, dup := seen[line.ProductID]; dup {
			return domain.Order{}, domain.Validationf("lines", "product %s appears more than once", line.ProductID)
		}
		seen[line.ProductID] = struct{}{}
	}

	// Idempotent replay: a previous request with the same key wins outright.
	if in.IdempotencyKey != "" {
		existing, err := s.orders.GetByIdempotencyKey(ctx, in.IdempotencyKey)
		if err == nil {
			return s.replay(ctx, existing, buyer)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Order{}, fmt.Errorf("order_service: idempotency lookup: %w", err)
		}
	}

	now := s.clock.Now().UTC()
	order := domain.Order{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		Status:    domain.OrderPendingPayment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		order.IdempotencyKey = &key
	}

	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		for _, line := range in.Lines {
			product, err := s.products.GetForUpdate(ctx, line.ProductID)
			if err != nil {
				return fmt.Errorf("order_service: load product %s: %w", line.ProductID, err)
			}
			if !product.IsFixedPrice() {
				return domain.Validationf("product_id", "product %s is an auction and cannot be purchased directly", line.ProductID)
			}
			if product.StockQuantity < line.Quantity {
				return domain.Validationf("quantity",
					"insufficient stock for product %s: %d requested, %d available",
					line.ProductID, line.Quantity, product.StockQuantity)
			}

			ok, err := s.products.DecrementStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return fmt.Errorf("order_service: decrement stock %s: %w", line.ProductID, err)
			}
			if !ok {
				// Lost a race despite the row lock; treat like the check above.
				return domain.Validationf("quantity", "insufficient stock for product %s", line.ProductID)
			}

			order.Lines = append(order.Lines, domain.OrderLine{
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: product.Price,
			})
			order.TotalAmount += product.Price * int64(line.Quantity)
		}

		if err := s.orders.Create(ctx, order); err != nil {
			return fmt.Errorf("order_service: create order: %w", err)
		}
		return nil
	})
	if err != nil {
		// A concurrent request with the same key inserted first; replay it.
		if in.IdempotencyKey != "" && errors.Is(err, domain.ErrConflict) {
			existing, lookupErr := s.orders.GetByIdempotencyKey(ctx, in.IdempotencyKey)
			if lookupErr == nil {
				return s.replay(ctx, existing, buyer)
			}
		}
		return domain.Order{}, err
	}

	s.logger.InfoContext(ctx, "order_service: order created",
		slog.String("order_id", order.ID),
		slog.String("user_id", order.UserID),
		slog.Int64("total_amount", order.TotalAmount),
		slog.Int("lines", len(order.Lines)),
	)

	if err := s.initiatePayment(ctx, &order, buyer); err != nil {
		// The order stands and payment can be retried, but the caller has to
		// know there is no checkout URL yet.
		s.logger.ErrorContext(ctx, "order_service: payment initiation failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		return order, err
	}

	return order, nil
}

// replay resolves an idempotent re-submission against the order already
// holding the key. A pending order that never got a gateway invoice (the
// gateway was down on the first attempt) gets payment re-initiated; anything
// else is returned as stored.
func (s *OrderService) replay(ctx context.Context, order domain.Order, buyer domain.User) (domain.Order, error) {
	if order.Status != domain.OrderPendingPayment || order.PaymentRef != nil {
		return order, nil
	}
	if err := s.initiatePayment(ctx, &order, buyer); err != nil {
		s.logger.ErrorContext(ctx, "order_service: payment initiation failed on replay",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
		return order, err
	}
	return order, nil
}

// initiatePayment opens a gateway invoice for the order and records the
// invoice id and checkout URL.
func (s *OrderService) initiatePayment(ctx context.Context, order *domain.Order, buyer domain.User) error {
	handle, err := s.gateway.InitiatePayment(ctx, domain.PaymentRequest{
		OrderID:       order.ID,
		Amount:        order.TotalAmount,
		CustomerName:  buyer.Name,
		CustomerEmail: buyer.Email,
	})
	if err != nil {
		return fmt.Errorf("order_service: initiate payment: %w", err)
	}

	if err := s.orders.SetPaymentRef(ctx, order.ID, handle.InvoiceID, handle.PaymentURL); err != nil {
		return fmt.Errorf("order_service: record payment ref: %w", err)
	}

	order.PaymentRef = &handle.InvoiceID
	order.PaymentURL = &handle.PaymentURL
	return nil
}

// RetryPayment re-initiates payment for an order still awaiting one. Orders
// that already hold a payment URL return it unchanged.
func (s *OrderService) RetryPayment(ctx context.Context, orderID string, buyer domain.User) (domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: load order %s: %w", orderID, err)
	}
	if order.UserID != buyer.ID {
		return domain.Order{}, fmt.Errorf("order_service: order %s: %w", orderID, domain.ErrUnauthorized)
	}
	if order.Status != domain.OrderPendingPayment {
		return domain.Order{}, domain.Validationf("order_id", "order %s is %s and cannot be paid", orderID, order.Status)
	}
	if order.PaymentURL != nil {
		return order, nil
	}
	if err := s.initiatePayment(ctx, &order, buyer); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// ConfirmPayment settles an order from a gateway callback. The paymentID
// comes from the callback query string and is never trusted: the outcome is
// re-verified against the gateway before any state changes. Duplicate
// callbacks settle to the same status and are harmless.
func (s *OrderService) ConfirmPayment(ctx context.Context, orderID, paymentID string) (domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: load order %s: %w", orderID, err)
	}

	result, err := s.gateway.VerifyPayment(ctx, paymentID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: verify payment %s: %w", paymentID, err)
	}

	status := domain.OrderFailed
	if result.Status == domain.PaymentPaid {
		status = domain.OrderPaid
	} else if result.Status == domain.PaymentPending {
		// Not settled yet; leave the order alone.
		return order, nil
	}

	if order.Status.Settled() && order.Status != status {
		return domain.Order{}, fmt.Errorf("order_service: order %s already settled as %s: %w", orderID, order.Status, domain.ErrConflict)
	}

	wasFailed := order.Status == domain.OrderFailed

	if err := s.orders.UpdateStatus(ctx, orderID, status, result.TransactionID); err != nil {
		return domain.Order{}, fmt.Errorf("order_service: settle order %s: %w", orderID, err)
	}
	order.Status = status
	if result.TransactionID != "" {
		txID := result.TransactionID
		order.TransactionID = &txID
	}

	// Restock exactly once: a duplicate callback for an already-failed order
	// must not return the quantities a second time.
	if status == domain.OrderFailed && !wasFailed {
		s.restock(ctx, order)
	}

	s.publish(ctx, domain.Event{
		Type:    domain.EventPaymentSettled,
		OrderID: order.ID,
		UserID:  order.UserID,
		Amount:  order.TotalAmount,
		Status:  string(status),
		At:      s.clock.Now().UTC(),
	})

	s.logger.InfoContext(ctx, "order_service: payment settled",
		slog.String("order_id", order.ID),
		slog.String("status", string(status)),
		slog.String("transaction_id", result.TransactionID),
	)

	return order, nil
}

// FailPayment marks an order failed when the gateway redirects the customer
// to the error URL. It verifies against the gateway first when a payment id
// is available.
func (s *OrderService) FailPayment(ctx context.Context, orderID, paymentID string) (domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: load order %s: %w", orderID, err)
	}

	if paymentID != "" {
		// The error redirect can race a successful retry; trust the gateway.
		result, err := s.gateway.VerifyPayment(ctx, paymentID)
		if err == nil && result.Status == domain.PaymentPaid {
			return s.ConfirmPayment(ctx, orderID, paymentID)
		}
	}

	if order.Status == domain.OrderPaid {
		return domain.Order{}, fmt.Errorf("order_service: order %s already paid: %w", orderID, domain.ErrConflict)
	}

	if err := s.orders.UpdateStatus(ctx, orderID, domain.OrderFailed, ""); err != nil {
		return domain.Order{}, fmt.Errorf("order_service: fail order %s: %w", orderID, err)
	}
	if order.Status != domain.OrderFailed {
		order.Status = domain.OrderFailed
		s.restock(ctx, order)
	}

	s.publish(ctx, domain.Event{
		Type:    domain.EventPaymentSettled,
		OrderID: order.ID,
		UserID:  order.UserID,
		Amount:  order.TotalAmount,
		Status:  string(domain.OrderFailed),
		At:      s.clock.Now().UTC(),
	})

	return order, nil
}

// GetByID returns an order if it belongs to the requesting user.
func (s *OrderService) GetByID(ctx context.Context, orderID, userID string) (domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("order_service: load order %s: %w", orderID, err)
	}
	if order.UserID != userID {
		return domain.Order{}, fmt.Errorf("order_service: order %s: %w", orderID, domain.ErrUnauthorized)
	}
	return order, nil
}

// restock returns reserved quantities to stock after a failed payment.
// Restock failures are logged, not surfaced: the settlement already happened.
func (s *OrderService) restock(ctx context.Context, order domain.Order) {
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		for _, line := range order.Lines {
			product, err := s.products.GetForUpdate(ctx, line.ProductID)
			if err != nil {
				return fmt.Errorf("load product %s: %w", line.ProductID, err)
			}
			// Auction lines (a concluder-created winner order) carry no stock.
			if !product.IsFixedPrice() {
				continue
			}
			product.StockQuantity += line.Quantity
			if err := s.products.Update(ctx, product); err != nil {
				return fmt.Errorf("restock product %s: %w", line.ProductID, err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "order_service: restock failed",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *OrderService) publish(ctx context.Context, ev domain.Event) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.WarnContext(ctx, "order_service: marshal event", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelOrders, payload); err != nil {
		s.logger.WarnContext(ctx, "order_service: publish event", slog.String("error", err.Error()))
	}
}
