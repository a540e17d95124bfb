package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MAZAD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MAZAD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// --- Postgres ---
	setStr(&cfg.Postgres.DSN, "MAZAD_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "MAZAD_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MAZAD_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MAZAD_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MAZAD_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MAZAD_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MAZAD_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MAZAD_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MAZAD_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MAZAD_POSTGRES_RUN_MIGRATIONS")

	// --- Redis ---
	setStr(&cfg.Redis.Addr, "MAZAD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MAZAD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MAZAD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MAZAD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MAZAD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MAZAD_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.CacheTTL, "MAZAD_REDIS_CACHE_TTL")

	// --- S3 ---
	setStr(&cfg.S3.Endpoint, "MAZAD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MAZAD_S3_REGION")
	setStr(&cfg.S3.Bucket, "MAZAD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MAZAD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MAZAD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MAZAD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MAZAD_S3_FORCE_PATH_STYLE")

	// --- Gateway ---
	setStr(&cfg.Gateway.BaseURL, "MAZAD_GATEWAY_BASE_URL")
	setStr(&cfg.Gateway.APIKey, "MAZAD_GATEWAY_API_KEY")
	setStr(&cfg.Gateway.Currency, "MAZAD_GATEWAY_CURRENCY")
	setStr(&cfg.Gateway.CallbackBaseURL, "MAZAD_GATEWAY_CALLBACK_BASE_URL")
	setDuration(&cfg.Gateway.Timeout, "MAZAD_GATEWAY_TIMEOUT")

	// --- Google ---
	setStr(&cfg.Google.ClientID, "MAZAD_GOOGLE_CLIENT_ID")
	setStr(&cfg.Google.ClientSecret, "MAZAD_GOOGLE_CLIENT_SECRET")
	setStr(&cfg.Google.RedirectURL, "MAZAD_GOOGLE_REDIRECT_URL")

	// --- Auction ---
	setDuration(&cfg.Auction.SweepInterval, "MAZAD_AUCTION_SWEEP_INTERVAL")
	setInt(&cfg.Auction.Parallelism, "MAZAD_AUCTION_PARALLELISM")
	setDuration(&cfg.Auction.LockTTL, "MAZAD_AUCTION_LOCK_TTL")
	setInt(&cfg.Auction.BidRateLimit, "MAZAD_AUCTION_BID_RATE_LIMIT")
	setDuration(&cfg.Auction.BidRateWindow, "MAZAD_AUCTION_BID_RATE_WINDOW")

	// --- Archive ---
	setBool(&cfg.Archive.Enabled, "MAZAD_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "MAZAD_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "MAZAD_ARCHIVE_RETENTION_DAYS")
	setBool(&cfg.Archive.Prune, "MAZAD_ARCHIVE_PRUNE")

	// --- Server ---
	setInt(&cfg.Server.Port, "MAZAD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MAZAD_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "MAZAD_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "MAZAD_SERVER_RATE_WINDOW")

	// --- Notify ---
	setStr(&cfg.Notify.TelegramToken, "MAZAD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MAZAD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MAZAD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MAZAD_NOTIFY_EVENTS")

	// --- Top-level ---
	setStr(&cfg.Mode, "MAZAD_MODE")
	setStr(&cfg.LogLevel, "MAZAD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
