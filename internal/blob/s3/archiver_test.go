package s3blob

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mazadapp/mazad/internal/clock"
	"github.com/mazadapp/mazad/internal/domain"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type memWriter struct {
	objects map[string][]byte
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.objects == nil {
		w.objects = make(map[string][]byte)
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.objects[path] = b
	return nil
}

type memOrderArchive struct {
	orders  []domain.Order
	deleted int64
}

func (s *memOrderArchive) ListSettledBefore(_ context.Context, before time.Time) ([]domain.Order, error) {
	var out []domain.Order
	for _, o := range s.orders {
		if o.Status.Settled() && o.UpdatedAt.Before(before) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memOrderArchive) DeleteSettledBefore(_ context.Context, before time.Time) (int64, error) {
	kept := s.orders[:0]
	var n int64
	for _, o := range s.orders {
		if o.Status.Settled() && o.UpdatedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, o)
	}
	s.orders = kept
	s.deleted = n
	return n, nil
}

type memAuctionArchive struct {
	auctions []domain.Product
}

func (s *memAuctionArchive) ListConcludedBefore(_ context.Context, before time.Time) ([]domain.Product, error) {
	var out []domain.Product
	for _, p := range s.auctions {
		if p.ConcludedAt != nil && p.ConcludedAt.Before(before) {
			out = append(out, p)
		}
	}
	return out, nil
}

func TestArchiverRunOnce(t *testing.T) {
	old := testNow.Add(-60 * 24 * time.Hour)
	recent := testNow.Add(-time.Hour)

	orders := &memOrderArchive{orders: []domain.Order{
		{ID: "o1", Status: domain.OrderPaid, UpdatedAt: old},
		{ID: "o2", Status: domain.OrderFailed, UpdatedAt: old},
		{ID: "o3", Status: domain.OrderPaid, UpdatedAt: recent},
		{ID: "o4", Status: domain.OrderPendingPayment, UpdatedAt: old},
	}}
	auctions := &memAuctionArchive{auctions: []domain.Product{
		{ID: "a1", Kind: domain.ProductAuction, ConcludedAt: &old},
		{ID: "a2", Kind: domain.ProductAuction, ConcludedAt: &recent},
	}}
	writer := &memWriter{}

	a := NewArchiver(writer, orders, auctions, 30*24*time.Hour, true,
		clock.NewFixed(testNow), slog.New(slog.DiscardHandler))

	require.NoError(t, a.RunOnce(context.Background()))

	cutoff := testNow.Add(-30 * 24 * time.Hour)
	orderKey := archivePath("orders", cutoff)
	auctionKey := archivePath("auctions", cutoff)

	require.Contains(t, writer.objects, orderKey)
	require.Contains(t, writer.objects, auctionKey)

	// Two settled old orders, one JSON line each.
	lines := bytes.Count(writer.objects[orderKey], []byte("\n"))
	assert.Equal(t, 2, lines)
	assert.Equal(t, 1, bytes.Count(writer.objects[auctionKey], []byte("\n")))

	// Archived orders were pruned; pending and recent stay.
	assert.Equal(t, int64(2), orders.deleted)
	assert.Len(t, orders.orders, 2)
}

// stepClock lets a test advance time between archiver runs.
type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func TestArchiverExportsEachAuctionOnce(t *testing.T) {
	old := testNow.Add(-60 * 24 * time.Hour)
	auctions := &memAuctionArchive{auctions: []domain.Product{
		{ID: "a1", Kind: domain.ProductAuction, ConcludedAt: &old},
	}}
	writer := &memWriter{}
	clk := &stepClock{now: testNow}

	a := NewArchiver(writer, &memOrderArchive{}, auctions, 30*24*time.Hour, true,
		clk, slog.New(slog.DiscardHandler))

	require.NoError(t, a.RunOnce(context.Background()))
	firstKey := archivePath("auctions", testNow.Add(-30*24*time.Hour))
	require.Contains(t, writer.objects, firstKey)

	// Auctions stay in the catalog, so later runs see a1 again. It is already
	// in cold storage and must not land in another month's object.
	clk.now = testNow.Add(40 * 24 * time.Hour)
	concluded := testNow.Add(5 * 24 * time.Hour)
	auctions.auctions = append(auctions.auctions,
		domain.Product{ID: "a2", Kind: domain.ProductAuction, ConcludedAt: &concluded})

	require.NoError(t, a.RunOnce(context.Background()))

	secondKey := archivePath("auctions", clk.now.Add(-30*24*time.Hour))
	require.Contains(t, writer.objects, secondKey)
	second := writer.objects[secondKey]
	assert.Equal(t, 1, bytes.Count(second, []byte("\n")))
	assert.Contains(t, string(second), `"a2"`)
	assert.NotContains(t, string(second), `"a1"`)
}

func TestArchiverRunOnceNothingToDo(t *testing.T) {
	writer := &memWriter{}
	a := NewArchiver(writer, &memOrderArchive{}, &memAuctionArchive{}, 30*24*time.Hour, true,
		clock.NewFixed(testNow), slog.New(slog.DiscardHandler))

	require.NoError(t, a.RunOnce(context.Background()))
	assert.Empty(t, writer.objects)
}

func TestArchiverNoPrune(t *testing.T) {
	old := testNow.Add(-60 * 24 * time.Hour)
	orders := &memOrderArchive{orders: []domain.Order{
		{ID: "o1", Status: domain.OrderPaid, UpdatedAt: old},
	}}
	a := NewArchiver(&memWriter{}, orders, &memAuctionArchive{}, 30*24*time.Hour, false,
		clock.NewFixed(testNow), slog.New(slog.DiscardHandler))

	require.NoError(t, a.RunOnce(context.Background()))
	assert.Len(t, orders.orders, 1, "prune disabled leaves the primary store alone")
}
