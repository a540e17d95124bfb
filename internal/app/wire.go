package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/mazadapp/mazad/internal/blob/s3"
	"github.com/mazadapp/mazad/internal/cache/redis"
	"github.com/mazadapp/mazad/internal/config"
	"github.com/mazadapp/mazad/internal/domain"
	"github.com/mazadapp/mazad/internal/notify"
	"github.com/mazadapp/mazad/internal/platform/google"
	"github.com/mazadapp/mazad/internal/platform/myfatoorah"
	"github.com/mazadapp/mazad/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Stores
	Tx       domain.TxRunner
	Products domain.ProductStore
	Bids     domain.BidStore
	Orders   domain.OrderStore
	Users    domain.UserStore

	// Redis
	Bus          domain.EventBus
	Locks        domain.LockManager
	Limiter      domain.RateLimiter
	ProductCache domain.ProductCache

	// External platforms
	Gateway domain.PaymentGateway
	Google  *google.Client // nil when OAuth is not configured

	// Blob storage (nil unless archiving is enabled)
	BlobWriter     domain.BlobWriter
	AuctionArchive s3blob.AuctionArchiveStore
	OrderArchive   s3blob.OrderArchiveStore

	// Notifications
	Alerter *notify.Alerter
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	productStore := postgres.NewProductStore(pool)
	orderStore := postgres.NewOrderStore(pool)
	deps.Tx = pgClient
	deps.Products = productStore
	deps.Bids = postgres.NewBidStore(pool)
	deps.Orders = orderStore
	deps.Users = postgres.NewUserStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Bus = redis.NewEventBus(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.Limiter = redis.NewRateLimiter(redisClient)
	deps.ProductCache = redis.NewProductCache(redisClient, cfg.Redis.CacheTTL.Duration)

	// --- Payment gateway ---
	deps.Gateway = myfatoorah.NewClient(myfatoorah.Config{
		BaseURL:     cfg.Gateway.BaseURL,
		APIKey:      cfg.Gateway.APIKey,
		CallbackURL: cfg.Gateway.CallbackBaseURL + "/api/payments/callback",
		ErrorURL:    cfg.Gateway.CallbackBaseURL + "/api/payments/error",
		Currency:    cfg.Gateway.Currency,
		Timeout:     cfg.Gateway.Timeout.Duration,
	})

	// --- Google OAuth (optional) ---
	if cfg.Google.ClientID != "" {
		deps.Google = google.NewClient(
			cfg.Google.ClientID,
			cfg.Google.ClientSecret,
			cfg.Google.RedirectURL,
		)
	}

	// --- S3 blob storage (only when archiving is enabled) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.OrderArchive = orderStore
		deps.AuctionArchive = productStore
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Alerter = notify.NewAlerter(deps.Bus, senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
