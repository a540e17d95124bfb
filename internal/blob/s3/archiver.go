package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mazadapp/mazad/internal/clock"
	"github.com/mazadapp/mazad/internal/domain"
)

// Narrow store interfaces holding only the queries the archiver makes. The
// Postgres stores satisfy these implicitly.

// OrderArchiveStore provides the settled-order queries used for archival.
type OrderArchiveStore interface {
	ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Order, error)
	DeleteSettledBefore(ctx context.Context, before time.Time) (int64, error)
}

// AuctionArchiveStore lists auctions concluded before a cutoff.
type AuctionArchiveStore interface {
	ListConcludedBefore(ctx context.Context, before time.Time) ([]domain.Product, error)
}

// Archiver moves cold records out of the primary store: settled orders and
// concluded auctions older than the retention window are serialized to JSONL
// and uploaded, then archived orders are pruned from Postgres. Auctions stay
// in the catalog; only their archive copy is written.
type Archiver struct {
	writer    domain.BlobWriter
	orders    OrderArchiveStore
	auctions  AuctionArchiveStore
	retention time.Duration
	prune     bool
	clock     clock.Clock
	logger    *slog.Logger

	// auctionCutoff is the upper bound of the last successful auction export.
	// Auctions concluded before it stay in the catalog but are already in
	// cold storage and must not be exported again.
	auctionCutoff time.Time
}

// NewArchiver creates an Archiver. When prune is false the archived orders
// are left in the primary store.
func NewArchiver(
	writer domain.BlobWriter,
	orders OrderArchiveStore,
	auctions AuctionArchiveStore,
	retention time.Duration,
	prune bool,
	clk clock.Clock,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer:    writer,
		orders:    orders,
		auctions:  auctions,
		retention: retention,
		prune:     prune,
		clock:     clk,
		logger:    logger,
	}
}

// RunLoop archives on every tick until ctx ends.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	a.logger.Info("archiver: loop starting",
		slog.Duration("interval", interval),
		slog.Duration("retention", a.retention),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver: loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.RunOnce(ctx); err != nil {
				a.logger.Error("archiver: run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce archives everything older than the retention window.
func (a *Archiver) RunOnce(ctx context.Context) error {
	before := a.clock.Now().UTC().Add(-a.retention)

	orderCount, err := a.archiveOrders(ctx, before)
	if err != nil {
		return err
	}
	auctionCount, err := a.archiveAuctions(ctx, before)
	if err != nil {
		return err
	}

	if orderCount > 0 || auctionCount > 0 {
		a.logger.Info("archiver: run complete",
			slog.Int64("orders", orderCount),
			slog.Int64("auctions", auctionCount),
			slog.Time("before", before),
		)
	}
	return nil
}

// archiveOrders uploads settled orders older than the cutoff and prunes them
// from the primary store once the upload has succeeded.
func (a *Archiver) archiveOrders(ctx context.Context, before time.Time) (int64, error) {
	orders, err := a.orders.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	if len(orders) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(orders)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders marshal: %w", err)
	}

	path := archivePath("orders", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive orders upload: %w", err)
	}

	if a.prune {
		deleted, err := a.orders.DeleteSettledBefore(ctx, before)
		if err != nil {
			return int64(len(orders)), fmt.Errorf("s3blob: prune archived orders: %w", err)
		}
		a.logger.Info("archiver: pruned settled orders", slog.Int64("deleted", deleted))
	}

	return int64(len(orders)), nil
}

// archiveAuctions uploads auctions concluded since the last export and
// before the cutoff. Unlike orders, auctions are never pruned, so without the
// watermark every run would re-export the whole history.
func (a *Archiver) archiveAuctions(ctx context.Context, before time.Time) (int64, error) {
	listed, err := a.auctions.ListConcludedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive auctions query: %w", err)
	}
	auctions := listed[:0:0]
	for _, p := range listed {
		if p.ConcludedAt != nil && !p.ConcludedAt.Before(a.auctionCutoff) {
			auctions = append(auctions, p)
		}
	}
	if len(auctions) == 0 {
		a.auctionCutoff = before
		return 0, nil
	}

	buf, err := marshalJSONL(auctions)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive auctions marshal: %w", err)
	}

	path := archivePath("auctions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive auctions upload: %w", err)
	}

	a.auctionCutoff = before
	return int64(len(auctions)), nil
}

// archivePath builds the object key, partitioned by the cutoff's year-month:
//
//	archive/orders/2026-02.jsonl
//	archive/auctions/2026-02.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
