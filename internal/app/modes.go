package app

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mazadapp/mazad/internal/auction"
	s3blob "github.com/mazadapp/mazad/internal/blob/s3"
	"github.com/mazadapp/mazad/internal/clock"
	"github.com/mazadapp/mazad/internal/server"
	"github.com/mazadapp/mazad/internal/server/handler"
	"github.com/mazadapp/mazad/internal/server/ws"
	"github.com/mazadapp/mazad/internal/service"
)

// services bundles the domain services shared by the modes.
type services struct {
	auth     *service.AuthService
	products *service.ProductService
	bids     *service.BidService
	orders   *service.OrderService
}

// buildServices constructs the domain services from the wired dependencies.
func (a *App) buildServices(deps *Dependencies) *services {
	clk := clock.NewSystem()

	var google service.GoogleExchanger
	if deps.Google != nil {
		google = deps.Google
	}

	return &services{
		auth: service.NewAuthService(deps.Users, google, clk, a.logger),
		products: service.NewProductService(
			deps.Products, deps.ProductCache, clk, a.logger,
		),
		bids: service.NewBidService(
			deps.Tx, deps.Products, deps.Bids, deps.Bus, deps.Limiter, clk,
			service.BidConfig{
				RateLimit:  a.cfg.Auction.BidRateLimit,
				RateWindow: a.cfg.Auction.BidRateWindow.Duration,
			},
			a.logger,
		),
		orders: service.NewOrderService(
			deps.Tx, deps.Orders, deps.Products, deps.Gateway, deps.Bus, clk, a.logger,
		),
	}
}

// ServeMode runs the HTTP API, the WebSocket hub, and the alerter.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startAlerter(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps, svcs)

	return waitGroup(g)
}

// ConcludeMode runs a single auction sweep and exits. The exit status only
// reports whether the sweep itself could run; failures on individual auctions
// are logged and retried on the next invocation.
func (a *App) ConcludeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running conclude sweep")
	return a.newConcluder(deps).RunOnce(ctx)
}

// FullMode runs the API and the background workers in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startAlerter(ctx, g, deps)
	a.startConcluder(ctx, g, deps)
	a.startArchiver(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps, svcs)

	return waitGroup(g)
}

// startHTTPServer registers routes and runs the API server plus the
// WebSocket hub on the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	hub := ws.NewHub(deps.Bus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(a.logger),
		Auth:     handler.NewAuthHandler(svcs.auth, a.logger),
		Products: handler.NewProductHandler(svcs.products, a.logger),
		Bids:     handler.NewBidHandler(svcs.bids, a.logger),
		Orders:   handler.NewOrderHandler(svcs.orders, a.logger),
		Payments: handler.NewPaymentHandler(svcs.orders, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, svcs.auth, deps.Limiter, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func (a *App) newConcluder(deps *Dependencies) *auction.Concluder {
	return auction.NewConcluder(
		deps.Tx, deps.Products, deps.Bids, deps.Orders, deps.Locks, deps.Bus,
		clock.NewSystem(),
		auction.ConcluderConfig{
			Parallelism: a.cfg.Auction.Parallelism,
			LockTTL:     a.cfg.Auction.LockTTL.Duration,
		},
		a.logger,
	)
}

// startConcluder runs the auction sweep loop on the errgroup.
func (a *App) startConcluder(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	concluder := a.newConcluder(deps)
	g.Go(func() error {
		return concluder.RunLoop(ctx, a.cfg.Auction.SweepInterval.Duration)
	})
}

// startArchiver runs the cold-storage export loop when archiving is enabled.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.BlobWriter == nil {
		return
	}

	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	archiver := s3blob.NewArchiver(
		deps.BlobWriter, deps.OrderArchive, deps.AuctionArchive,
		retention, a.cfg.Archive.Prune,
		clock.NewSystem(), a.logger,
	)
	g.Go(func() error {
		return archiver.RunLoop(ctx, a.cfg.Archive.Interval.Duration)
	})
}

// startAlerter runs the operator notification subscriber.
func (a *App) startAlerter(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Alerter == nil {
		return
	}
	g.Go(func() error {
		return deps.Alerter.Run(ctx)
	})
}

// waitGroup blocks on the errgroup and suppresses the cancellation error
// from a clean shutdown.
func waitGroup(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
