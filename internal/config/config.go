package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	DBHost            string        `env:"DB_HOST,required"`
	DBPort            int           `env:"DB_PORT,default=5432"`
	DBUser            string        `env:"DB_USER,required"`
	DBPassword        string        `env:"DB_PASSWORD,required"`
	DBName            string        `env:"DB_NAME,required"`
	DBSSLMode         string        `env:"DB_SSLMODE,default=disable"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=10"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`

	CoinGeckoBaseURL         string        `env:"COINGECKO_BASE_URL,default=https://api.coingecko.com/api/v3"`
	CoinGeckoPrimaryTimeout  time.Duration `env:"COINGECKO_PRIMARY_TIMEOUT,default=10s"`
	CoinGeckoFallbackTimeout time.Duration `env:"COINGECKO_FALLBACK_TIMEOUT,default=15s"`
	CoinGeckoUserAgent       string        `env:"COINGECKO_USER_AGENT,default=PriceWatch/1.0"`

	// PriceUpdateInterval is expressed in minutes.
	PriceUpdateInterval    int      `env:"PRICE_UPDATE_INTERVAL,default=1"`
	PriceUpdateConcurrency int      `env:"PRICE_UPDATE_CONCURRENCY,default=8"`
	TrackedAssets          []string `env:"TRACKED_ASSETS,default=bitcoin:BTC:Bitcoin,ethereum:ETH:Ethereum,solana:SOL:Solana"`

	NotifyHandlerTimeout time.Duration `env:"NOTIFY_HANDLER_TIMEOUT,default=30s"`
	EmailSimulatorDelay  time.Duration `env:"EMAIL_SIMULATOR_DELAY,default=100ms"`
	PushSimulatorDelay   time.Duration `env:"PUSH_SIMULATOR_DELAY,default=50ms"`

	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`

	TelegramBotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramPollTimeout int    `env:"TELEGRAM_POLL_TIMEOUT,default=60"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`
}

// TrackedAsset is one catalog entry parsed from TRACKED_ASSETS.
type TrackedAsset struct {
	ID     string
	Symbol string
	Name   string
}

func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.PriceUpdateInterval < 1 {
		errs = append(errs, fmt.Errorf("PRICE_UPDATE_INTERVAL must be at least 1 minute, got %d", c.PriceUpdateInterval))
	}
	if c.PriceUpdateConcurrency < 1 {
		errs = append(errs, fmt.Errorf("PRICE_UPDATE_CONCURRENCY must be positive, got %d", c.PriceUpdateConcurrency))
	}
	if c.CoinGeckoPrimaryTimeout <= 0 || c.CoinGeckoFallbackTimeout <= 0 {
		errs = append(errs, errors.New("coingecko timeouts must be positive"))
	}
	if c.NotifyHandlerTimeout <= 0 {
		errs = append(errs, errors.New("NOTIFY_HANDLER_TIMEOUT must be positive"))
	}
	if _, err := c.Catalog(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) UpdateInterval() time.Duration {
	return time.Duration(c.PriceUpdateInterval) * time.Minute
}

// Catalog parses TRACKED_ASSETS entries of the form id:SYMBOL:Name.
// Symbol and name are optional; the symbol defaults to the upper-cased id.
func (c Config) Catalog() ([]TrackedAsset, error) {
	assets := make([]TrackedAsset, 0, len(c.TrackedAssets))
	seen := make(map[string]struct{}, len(c.TrackedAssets))
	for _, entry := range c.TrackedAssets {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		id := strings.TrimSpace(parts[0])
		if id == "" {
			return nil, fmt.Errorf("invalid TRACKED_ASSETS entry %q", entry)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate TRACKED_ASSETS id %q", id)
		}
		seen[id] = struct{}{}

		asset := TrackedAsset{ID: id, Symbol: strings.ToUpper(id), Name: id}
		if len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
			asset.Symbol = strings.ToUpper(strings.TrimSpace(parts[1]))
		}
		if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
			asset.Name = strings.TrimSpace(parts[2])
		}
		assets = append(assets, asset)
	}
	return assets, nil
}
