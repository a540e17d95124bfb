package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mazadapp/mazad/internal/clock"
	"github.com/mazadapp/mazad/internal/domain"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func auctionProduct(id string, starting int64, highest *int64, endsAt time.Time) domain.Product {
	return domain.Product{
		ID:                id,
		Name:              "lot " + id,
		Kind:              domain.ProductAuction,
		StartingPrice:     starting,
		CurrentHighestBid: highest,
		AuctionEndTime:    timePtr(endsAt),
	}
}

func newBidService(products *fakeProductStore, bids *fakeBidStore, bus *fakeBus, limiter domain.RateLimiter) *BidService {
	return NewBidService(
		fakeTxRunner{}, products, bids, bus, limiter,
		clock.NewFixed(testNow),
		BidConfig{RateLimit: 10, RateWindow: time.Minute},
		testLogger(),
	)
}

func TestPlaceBidAcceptsHigherAmount(t *testing.T) {
	products := newFakeProductStore(auctionProduct("p1", 10_00, int64Ptr(15_00), testNow.Add(time.Hour)))
	bids := &fakeBidStore{}
	bus := &fakeBus{}
	svc := newBidService(products, bids, bus, nil)

	bid, err := svc.Place(context.Background(), "p1", "u1", 16_00)
	require.NoError(t, err)

	assert.NotEmpty(t, bid.ID)
	assert.Equal(t, int64(16_00), bid.Amount)
	assert.Equal(t, testNow, bid.CreatedAt)

	product, err := products.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, product.CurrentHighestBid)
	assert.Equal(t, int64(16_00), *product.CurrentHighestBid)

	assert.Equal(t, []string{domain.ChannelBids, domain.ProductChannel("p1")}, bus.channels())
}

func TestPlaceBidValidation(t *testing.T) {
	tests := []struct {
		name    string
		product domain.Product
		amount  int64
		wantMsg string
	}{
		{
			name:    "equal to highest bid",
			product: auctionProduct("p1", 10_00, int64Ptr(15_00), testNow.Add(time.Hour)),
			amount:  15_00,
			wantMsg: "current highest bid of 15.00",
		},
		{
			name:    "below starting price with no bids",
			product: auctionProduct("p1", 10_00, nil, testNow.Add(time.Hour)),
			amount:  9_00,
			wantMsg: "starting price of 10.00",
		},
		{
			name:    "equal to starting price",
			product: auctionProduct("p1", 10_00, nil, testNow.Add(time.Hour)),
			amount:  10_00,
			wantMsg: "starting price of 10.00",
		},
		{
			name:    "auction ended",
			product: auctionProduct("p1", 10_00, nil, testNow.Add(-time.Minute)),
			amount:  20_00,
			wantMsg: "has ended",
		},
		{
			name: "fixed-price product",
			product: domain.Product{
				ID:    "p1",
				Kind:  domain.ProductFixedPrice,
				Price: 10_00,
			},
			amount:  20_00,
			wantMsg: "not an auction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bids := &fakeBidStore{}
			svc := newBidService(newFakeProductStore(tt.product), bids, &fakeBus{}, nil)

			_, err := svc.Place(context.Background(), "p1", "u1", tt.amount)
			require.Error(t, err)
			assert.True(t, domain.IsValidation(err), "want validation error, got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Empty(t, bids.bids, "rejected bid must not be persisted")
		})
	}
}

func TestPlaceBidUnknownProduct(t *testing.T) {
	svc := newBidService(newFakeProductStore(), &fakeBidStore{}, &fakeBus{}, nil)

	_, err := svc.Place(context.Background(), "missing", "u1", 10_00)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPlaceBidRateLimited(t *testing.T) {
	products := newFakeProductStore(auctionProduct("p1", 10_00, nil, testNow.Add(time.Hour)))
	limiter := &fakeLimiter{allow: false}
	svc := newBidService(products, &fakeBidStore{}, &fakeBus{}, limiter)

	_, err := svc.Place(context.Background(), "p1", "u1", 20_00)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRateLimited))
	assert.Equal(t, 1, limiter.calls)
}

func TestPlaceBidLimiterFailureDoesNotBlock(t *testing.T) {
	products := newFakeProductStore(auctionProduct("p1", 10_00, nil, testNow.Add(time.Hour)))
	limiter := &fakeLimiter{err: errors.New("redis down")}
	svc := newBidService(products, &fakeBidStore{}, &fakeBus{}, limiter)

	_, err := svc.Place(context.Background(), "p1", "u1", 20_00)
	require.NoError(t, err)
}

func TestPlaceBidSequenceIsMonotone(t *testing.T) {
	products := newFakeProductStore(auctionProduct("p1", 10_00, nil, testNow.Add(time.Hour)))
	bids := &fakeBidStore{}
	svc := newBidService(products, bids, &fakeBus{}, nil)

	amounts := []int64{11_00, 12_50, 20_00}
	for _, amount := range amounts {
		_, err := svc.Place(context.Background(), "p1", "u1", amount)
		require.NoError(t, err)
	}

	// A repeat of the current maximum is rejected.
	_, err := svc.Place(context.Background(), "p1", "u2", 20_00)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))

	require.Len(t, bids.bids, 3)
	for i := 1; i < len(bids.bids); i++ {
		assert.Greater(t, bids.bids[i].Amount, bids.bids[i-1].Amount)
	}
}

func TestListBidsByProduct(t *testing.T) {
	products := newFakeProductStore(auctionProduct("p1", 10_00, nil, testNow.Add(time.Hour)))
	bids := &fakeBidStore{}
	svc := newBidService(products, bids, &fakeBus{}, nil)

	_, err := svc.Place(context.Background(), "p1", "u1", 11_00)
	require.NoError(t, err)
	_, err = svc.Place(context.Background(), "p1", "u2", 12_00)
	require.NoError(t, err)

	got, err := svc.ListByProduct(context.Background(), "p1", domain.ListOpts{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = svc.ListByProduct(context.Background(), "missing", domain.ListOpts{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
