// Package server provides the HTTP + WebSocket API for the marketplace:
// product catalog, bidding, orders, payment callbacks, and a live event feed.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mazadapp/mazad/internal/domain"
	"github.com/mazadapp/mazad/internal/server/handler"
	"github.com/mazadapp/mazad/internal/server/middleware"
	"github.com/mazadapp/mazad/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	RateLimit   int           // requests per window per client IP; 0 disables
	RateWindow  time.Duration // sliding window for the API rate limit
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Auth     *handler.AuthHandler
	Products *handler.ProductHandler
	Bids     *handler.BidHandler
	Orders   *handler.OrderHandler
	Payments *handler.PaymentHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux.
// Routes that act on behalf of a buyer or seller are wrapped with the auth
// middleware; catalog reads, payment gateway callbacks, and the health check
// stay public. The limiter may be nil to disable API rate limiting.
func NewServer(cfg Config, handlers Handlers, resolver middleware.UserResolver, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	authed := middleware.Auth(resolver)
	private := func(h http.HandlerFunc) http.Handler {
		return authed(h)
	}

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Authentication.
	mux.HandleFunc("POST /api/auth/register", handlers.Auth.Register)
	mux.HandleFunc("POST /api/auth/login", handlers.Auth.Login)
	mux.Handle("POST /api/auth/logout", private(handlers.Auth.Logout))
	mux.HandleFunc("GET /api/auth/google", handlers.Auth.GoogleRedirect)
	mux.HandleFunc("GET /api/auth/google/callback", handlers.Auth.GoogleCallback)
	mux.Handle("GET /api/user", private(handlers.Auth.Me))

	// Product catalog. Reads are public, writes require a signed-in account.
	mux.HandleFunc("GET /api/products", handlers.Products.List)
	mux.HandleFunc("GET /api/products/{id}", handlers.Products.Get)
	mux.Handle("POST /api/products", private(handlers.Products.Create))
	mux.Handle("PUT /api/products/{id}", private(handlers.Products.Update))
	mux.Handle("DELETE /api/products/{id}", private(handlers.Products.Delete))

	// Bidding.
	mux.HandleFunc("GET /api/products/{id}/bids", handlers.Bids.List)
	mux.Handle("POST /api/products/{id}/bids", private(handlers.Bids.Place))

	// Orders.
	mux.Handle("POST /api/orders", private(handlers.Orders.Create))
	mux.Handle("GET /api/orders/{id}", private(handlers.Orders.Get))
	mux.Handle("POST /api/orders/{id}/pay", private(handlers.Orders.RetryPayment))

	// Payment gateway redirects. The gateway cannot carry a bearer token, so
	// these stay public; the handler verifies status server-side.
	mux.HandleFunc("GET /api/payments/callback", handlers.Payments.Callback)
	mux.HandleFunc("GET /api/payments/error", handlers.Payments.Error)

	// WebSocket event feed.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain (outermost last).
	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	return s.httpServer.Shutdown(ctx)
}
