package auction

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mazadapp/mazad/internal/clock"
	"github.com/mazadapp/mazad/internal/domain"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type passTx struct{}

func (passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memProducts struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func newMemProducts(products ...domain.Product) *memProducts {
	s := &memProducts{products: make(map[string]domain.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *memProducts) Create(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

func (s *memProducts) Update(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

func (s *memProducts) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
	return nil
}

func (s *memProducts) GetByID(_ context.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *memProducts) GetForUpdate(ctx context.Context, id string) (domain.Product, error) {
	return s.GetByID(ctx, id)
}

func (s *memProducts) List(context.Context, domain.ListOpts) ([]domain.Product, error) {
	return nil, nil
}

func (s *memProducts) SetHighestBid(_ context.Context, id string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.products[id]
	p.CurrentHighestBid = &amount
	s.products[id] = p
	return nil
}

func (s *memProducts) DecrementStock(context.Context, string, int) (bool, error) {
	return false, nil
}

func (s *memProducts) ListEndedUnconcluded(_ context.Context, now time.Time) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Product
	for _, p := range s.products {
		if p.IsAuction() && p.AuctionEnded(now) && !p.Concluded() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memProducts) SetConcluded(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.ConcludedAt != nil {
		return false, nil
	}
	p.ConcludedAt = &at
	s.products[id] = p
	return true, nil
}

type memBids struct {
	bids []domain.Bid
}

func (s *memBids) Insert(_ context.Context, b domain.Bid) error {
	s.bids = append(s.bids, b)
	return nil
}

func (s *memBids) ListByProduct(context.Context, string, domain.ListOpts) ([]domain.Bid, error) {
	return nil, nil
}

func (s *memBids) WinningBid(_ context.Context, productID string) (domain.Bid, error) {
	var best *domain.Bid
	for i := range s.bids {
		b := s.bids[i]
		if b.ProductID != productID {
			continue
		}
		if best == nil ||
			b.Amount > best.Amount ||
			(b.Amount == best.Amount && b.CreatedAt.Before(best.CreatedAt)) {
			best = &b
		}
	}
	if best == nil {
		return domain.Bid{}, domain.ErrNotFound
	}
	return *best, nil
}

type memOrders struct {
	mu     sync.Mutex
	orders []domain.Order
	failOn string
}

func (s *memOrders) Create(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && len(o.Lines) > 0 && o.Lines[0].ProductID == s.failOn {
		return errors.New("insert failed")
	}
	s.orders = append(s.orders, o)
	return nil
}

func (s *memOrders) GetByID(context.Context, string) (domain.Order, error) {
	return domain.Order{}, domain.ErrNotFound
}

func (s *memOrders) GetByIdempotencyKey(context.Context, string) (domain.Order, error) {
	return domain.Order{}, domain.ErrNotFound
}

func (s *memOrders) SetPaymentRef(context.Context, string, string, string) error { return nil }

func (s *memOrders) UpdateStatus(context.Context, string, domain.OrderStatus, string) error {
	return nil
}

func (s *memOrders) ListSettledBefore(context.Context, time.Time) ([]domain.Order, error) {
	return nil, nil
}

func (s *memOrders) DeleteSettledBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type memLocks struct {
	held bool
}

func (l *memLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	if l.held {
		return nil, domain.ErrLockHeld
	}
	return func() {}, nil
}

func endedAuction(id string) domain.Product {
	endsAt := testNow.Add(-time.Hour)
	return domain.Product{
		ID:             id,
		Name:           "lot " + id,
		Kind:           domain.ProductAuction,
		StartingPrice:  10_00,
		AuctionEndTime: &endsAt,
	}
}

func newConcluder(products *memProducts, bids *memBids, orders *memOrders, locks domain.LockManager) *Concluder {
	return NewConcluder(
		passTx{}, products, bids, orders, locks, nil,
		clock.NewFixed(testNow),
		ConcluderConfig{Parallelism: 2, LockTTL: time.Minute},
		slog.New(slog.DiscardHandler),
	)
}

func TestRunOnceCreatesWinnerOrder(t *testing.T) {
	products := newMemProducts(endedAuction("a1"))
	bids := &memBids{bids: []domain.Bid{
		{ID: "b1", ProductID: "a1", UserID: "u1", Amount: 20_00, CreatedAt: testNow.Add(-3 * time.Hour)},
		{ID: "b2", ProductID: "a1", UserID: "u2", Amount: 30_00, CreatedAt: testNow.Add(-2 * time.Hour)},
	}}
	orders := &memOrders{}
	c := newConcluder(products, bids, orders, nil)

	require.NoError(t, c.RunOnce(context.Background()))

	require.Len(t, orders.orders, 1)
	order := orders.orders[0]
	assert.Equal(t, "u2", order.UserID)
	assert.Equal(t, int64(30_00), order.TotalAmount)
	assert.Equal(t, domain.OrderPendingPayment, order.Status)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, "a1", order.Lines[0].ProductID)
	assert.Equal(t, 1, order.Lines[0].Quantity)

	p, err := products.GetByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, p.Concluded())
}

func TestRunOnceTieGoesToEarliestBid(t *testing.T) {
	products := newMemProducts(endedAuction("a1"))
	bids := &memBids{bids: []domain.Bid{
		{ID: "b1", ProductID: "a1", UserID: "late", Amount: 30_00, CreatedAt: testNow.Add(-time.Hour)},
		{ID: "b2", ProductID: "a1", UserID: "early", Amount: 30_00, CreatedAt: testNow.Add(-2 * time.Hour)},
	}}
	orders := &memOrders{}
	c := newConcluder(products, bids, orders, nil)

	require.NoError(t, c.RunOnce(context.Background()))

	require.Len(t, orders.orders, 1)
	assert.Equal(t, "early", orders.orders[0].UserID)
}

func TestRunOnceNoBidsConcludesWithoutOrder(t *testing.T) {
	products := newMemProducts(endedAuction("a1"))
	orders := &memOrders{}
	c := newConcluder(products, &memBids{}, orders, nil)

	require.NoError(t, c.RunOnce(context.Background()))

	assert.Empty(t, orders.orders)
	p, err := products.GetByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, p.Concluded())
}

func TestRunOnceSkipsLiveAndConcludedAuctions(t *testing.T) {
	live := endedAuction("live")
	endsAt := testNow.Add(time.Hour)
	live.AuctionEndTime = &endsAt

	done := endedAuction("done")
	concludedAt := testNow.Add(-30 * time.Minute)
	done.ConcludedAt = &concludedAt

	products := newMemProducts(live, done)
	orders := &memOrders{}
	c := newConcluder(products, &memBids{}, orders, nil)

	require.NoError(t, c.RunOnce(context.Background()))
	assert.Empty(t, orders.orders)
}

func TestRunOnceIsIdempotent(t *testing.T) {
	products := newMemProducts(endedAuction("a1"))
	bids := &memBids{bids: []domain.Bid{
		{ID: "b1", ProductID: "a1", UserID: "u1", Amount: 20_00, CreatedAt: testNow.Add(-time.Hour)},
	}}
	orders := &memOrders{}
	c := newConcluder(products, bids, orders, nil)

	require.NoError(t, c.RunOnce(context.Background()))
	require.NoError(t, c.RunOnce(context.Background()))

	assert.Len(t, orders.orders, 1, "second sweep must not settle again")
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	products := newMemProducts(endedAuction("a1"))
	orders := &memOrders{}
	c := newConcluder(products, &memBids{}, orders, &memLocks{held: true})

	require.NoError(t, c.RunOnce(context.Background()))

	p, err := products.GetByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, p.Concluded(), "lock held elsewhere: nothing settles here")
}

func TestRunOnceFailedAuctionIsRetried(t *testing.T) {
	products := newMemProducts(endedAuction("a1"), endedAuction("a2"))
	bids := &memBids{bids: []domain.Bid{
		{ID: "b1", ProductID: "a1", UserID: "u1", Amount: 20_00, CreatedAt: testNow.Add(-time.Hour)},
		{ID: "b2", ProductID: "a2", UserID: "u2", Amount: 25_00, CreatedAt: testNow.Add(-time.Hour)},
	}}
	orders := &memOrders{failOn: "a1"}
	c := newConcluder(products, bids, orders, nil)

	// First sweep: a1 fails, a2 settles.
	require.NoError(t, c.RunOnce(context.Background()))
	require.Len(t, orders.orders, 1)
	assert.Equal(t, "u2", orders.orders[0].UserID)

	a1, err := products.GetByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, a1.Concluded(), "failed auction stays unconcluded")

	// Next sweep picks a1 up again once the fault clears.
	orders.failOn = ""
	require.NoError(t, c.RunOnce(context.Background()))
	require.Len(t, orders.orders, 2)

	a1, err = products.GetByID(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, a1.Concluded())
}
