package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mazadapp/mazad/internal/domain"
)

// The fakes below are in-memory implementations of the domain interfaces,
// shared by the service tests in this package.

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeProductStore struct {
	mu       sync.Mutex
	products map[string]domain.Product
}

func newFakeProductStore(products ...domain.Product) *fakeProductStore {
	s := &fakeProductStore{products: make(map[string]domain.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeProductStore) Create(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	return nil
}

func (s *fakeProductStore) Update(_ context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return domain.ErrNotFound
	}
	s.products[p.ID] = p
	return nil
}

func (s *fakeProductStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *fakeProductStore) GetByID(_ context.Context, id string) (domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.Product{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *fakeProductStore) GetForUpdate(ctx context.Context, id string) (domain.Product, error) {
	return s.GetByID(ctx, id)
}

func (s *fakeProductStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if opts.Offset > len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (s *fakeProductStore) SetHighestBid(_ context.Context, id string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.CurrentHighestBid = &amount
	s.products[id] = p
	return nil
}

func (s *fakeProductStore) DecrementStock(_ context.Context, id string, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.StockQuantity < qty {
		return false, nil
	}
	p.StockQuantity -= qty
	s.products[id] = p
	return true, nil
}

func (s *fakeProductStore) ListEndedUnconcluded(_ context.Context, now time.Time) ([]domain.Product, error) {
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

func (s *fakeProductStore) SetConcluded(_ context.Context, id string, at time.Time) (bool, error) {
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

type fakeBidStore struct {
	mu   sync.Mutex
	bids []domain.Bid
}

func (s *fakeBidStore) Insert(_ context.Context, b domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids = append(s.bids, b)
	return nil
}

func (s *fakeBidStore) ListByProduct(_ context.Context, productID string, opts domain.ListOpts) ([]domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Bid
	for _, b := range s.bids {
		if b.ProductID == productID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeBidStore) WinningBid(_ context.Context, productID string) (domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
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

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[string]domain.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]domain.Order)}
}

func (s *fakeOrderStore) Create(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.IdempotencyKey != nil {
		for _, existing := range s.orders {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *o.IdempotencyKey {
				return domain.ErrConflict
			}
		}
	}
	s.orders[o.ID] = o
	return nil
}

func (s *fakeOrderStore) GetByID(_ context.Context, id string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *fakeOrderStore) GetByIdempotencyKey(_ context.Context, key string) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			return o, nil
		}
	}
	return domain.Order{}, domain.ErrNotFound
}

func (s *fakeOrderStore) SetPaymentRef(_ context.Context, id, invoiceID, paymentURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.PaymentRef = &invoiceID
	o.PaymentURL = &paymentURL
	s.orders[id] = o
	return nil
}

func (s *fakeOrderStore) UpdateStatus(_ context.Context, id string, status domain.OrderStatus, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = status
	if transactionID != "" {
		o.TransactionID = &transactionID
	}
	s.orders[id] = o
	return nil
}

func (s *fakeOrderStore) ListSettledBefore(_ context.Context, before time.Time) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.orders {
		if o.Status.Settled() && o.UpdatedAt.Before(before) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeOrderStore) DeleteSettledBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, o := range s.orders {
		if o.Status.Settled() && o.UpdatedAt.Before(before) {
			delete(s.orders, id)
			n++
		}
	}
	return n, nil
}

type fakeUserStore struct {
	mu     sync.Mutex
	users  map[string]domain.User
	tokens map[string]string // digest -> user id
}

func newFakeUserStore(users ...domain.User) *fakeUserStore {
	s := &fakeUserStore{
		users:  make(map[string]domain.User),
		tokens: make(map[string]string),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) Create(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return domain.ErrAlreadyExists
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (s *fakeUserStore) UpsertByEmail(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.users {
		if existing.Email == u.Email {
			existing.Name = u.Name
			existing.GoogleID = u.GoogleID
			s.users[id] = existing
			return existing, nil
		}
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *fakeUserStore) InsertToken(_ context.Context, userID, digest string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[digest] = userID
	return nil
}

func (s *fakeUserStore) GetUserByTokenDigest(_ context.Context, digest string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.tokens[digest]
	if !ok {
		return domain.User{}, domain.ErrUnauthorized
	}
	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUnauthorized
	}
	return u, nil
}

func (s *fakeUserStore) DeleteTokensForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for digest, id := range s.tokens {
		if id == userID {
			delete(s.tokens, digest)
		}
	}
	return nil
}

type fakeGateway struct {
	mu          sync.Mutex
	initiateErr error
	verifyErr   error
	result      domain.PaymentResult
	initiated   []domain.PaymentRequest
	nextInvoice int
}

func (g *fakeGateway) InitiatePayment(_ context.Context, req domain.PaymentRequest) (domain.PaymentHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initiateErr != nil {
		return domain.PaymentHandle{}, g.initiateErr
	}
	g.initiated = append(g.initiated, req)
	g.nextInvoice++
	return domain.PaymentHandle{
		InvoiceID:  "inv-" + req.OrderID,
		PaymentURL: "https://pay.example/" + req.OrderID,
	}, nil
}

func (g *fakeGateway) VerifyPayment(_ context.Context, _ string) (domain.PaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return domain.PaymentResult{}, g.verifyErr
	}
	return g.result, nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []struct {
		Channel string
		Data    []byte
	}
}

func (b *fakeBus) Publish(_ context.Context, channel string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, struct {
		Channel string
		Data    []byte
	}{channel, data})
	return nil
}

func (b *fakeBus) Subscribe(context.Context, ...string) (<-chan domain.EventMessage, func(), error) {
	ch := make(chan domain.EventMessage)
	return ch, func() { close(ch) }, nil
}

func (b *fakeBus) channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.events))
	for _, ev := range b.events {
		out = append(out, ev.Channel)
	}
	return out
}

type fakeLimiter struct {
	mu    sync.Mutex
	allow bool
	err   error
	calls int
}

func (l *fakeLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	return l.allow, l.err
}

type fakeProductCache struct {
	mu          sync.Mutex
	entries     map[domain.ListOpts][]domain.Product
	invalidated int
	getErr      error
}

func newFakeProductCache() *fakeProductCache {
	return &fakeProductCache{entries: make(map[domain.ListOpts][]domain.Product)}
}

func (c *fakeProductCache) GetList(_ context.Context, opts domain.ListOpts) ([]domain.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	entry, ok := c.entries[opts]
	return entry, ok, nil
}

func (c *fakeProductCache) SetList(_ context.Context, opts domain.ListOpts, products []domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[opts] = products
	return nil
}

func (c *fakeProductCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[domain.ListOpts][]domain.Product)
	c.invalidated++
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
