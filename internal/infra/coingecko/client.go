package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	serviceName    = "coingecko"
	quoteCurrency  = "usd"
	minMarketsPage = 100
	maxMarketsPage = 250
)

type Client struct {
	baseURL         string
	client          *http.Client
	primaryTimeout  time.Duration
	fallbackTimeout time.Duration
	userAgent       string
	logger          *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) { c.userAgent = userAgent }
}

// NewClient builds a client whose calls are bounded by primaryTimeout on the
// bulk price endpoint and fallbackTimeout on the market listing endpoint.
func NewClient(baseURL string, primaryTimeout, fallbackTimeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		client:          &http.Client{},
		primaryTimeout:  primaryTimeout,
		fallbackTimeout: fallbackTimeout,
		userAgent:       "PriceWatch/1.0",
		logger:          logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPrices returns USD prices for the given ids. The bulk /simple/price
// endpoint is tried first and /coins/markets is used when it fails. Ids
// without a positive price are left out of the result.
func (c *Client) FetchPrices(ctx context.Context, assetIDs []string) (map[string]decimal.Decimal, error) {
	ids := normalizeIDs(assetIDs)
	if len(ids) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	prices, primaryErr := c.fetchSimplePrices(ctx, ids)
	if primaryErr == nil {
		return prices, nil
	}
	c.logger.Warn("coingecko primary endpoint failed, trying fallback", zap.Int("asset_count", len(ids)), zap.Error(primaryErr))

	listings, fallbackErr := c.fetchMarkets(ctx, ids)
	if fallbackErr != nil {
		c.logger.Error(
			"coingecko endpoints failed",
			zap.Int("asset_count", len(ids)),
			zap.NamedError("primary_error", primaryErr),
			zap.NamedError("fallback_error", fallbackErr),
		)
		return nil, &domain.ExternalServiceError{Service: serviceName, PrimaryErr: primaryErr, FallbackErr: fallbackErr}
	}

	prices = make(map[string]decimal.Decimal, len(listings))
	for _, listing := range listings {
		if listing.CurrentPrice.Positive() {
			prices[listing.ID] = listing.CurrentPrice.Decimal
		}
	}
	c.logger.Info("coingecko fallback endpoint succeeded", zap.Int("asset_count", len(ids)), zap.Int("priced", len(prices)))
	return prices, nil
}

// FetchMarkets returns the market listing records for the given ids.
func (c *Client) FetchMarkets(ctx context.Context, assetIDs []string) ([]domain.MarketListing, error) {
	ids := normalizeIDs(assetIDs)
	if len(ids) == 0 {
		return nil, nil
	}
	records, err := c.fetchMarkets(ctx, ids)
	if err != nil {
		return nil, err
	}

	listings := make([]domain.MarketListing, 0, len(records))
	for _, record := range records {
		listing := domain.MarketListing{
			ID:          record.ID,
			Symbol:      strings.ToUpper(record.Symbol),
			Name:        record.Name,
			LastUpdated: record.LastUpdated,
		}
		if record.CurrentPrice.Positive() {
			price := record.CurrentPrice.Decimal
			listing.CurrentPrice = &price
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

func (c *Client) fetchSimplePrices(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", quoteCurrency)

	var payload simplePriceResponse
	if err := c.getJSON(ctx, "/simple/price", query, c.primaryTimeout, &payload); err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(payload))
	for id, quotes := range payload {
		if price, ok := quotes[quoteCurrency]; ok && price.Positive() {
			prices[id] = price.Decimal
		}
	}
	return prices, nil
}

func (c *Client) fetchMarkets(ctx context.Context, ids []string) ([]marketRecord, error) {
	perPage := len(ids)
	if perPage < minMarketsPage {
		perPage = minMarketsPage
	}
	if perPage > maxMarketsPage {
		perPage = maxMarketsPage
	}

	query := url.Values{}
	query.Set("vs_currency", quoteCurrency)
	query.Set("ids", strings.Join(ids, ","))
	query.Set("order", "market_cap_desc")
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("page", "1")
	query.Set("sparkline", "false")

	var records []marketRecord
	if err := c.getJSON(ctx, "/coins/markets", query, c.fallbackTimeout, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, timeout time.Duration, out interface{}) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	endpoint := c.baseURL + path + "?" + query.Encode()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	request.Header.Set("User-Agent", c.userAgent)
	request.Header.Set("Accept", "application/json")

	start := time.Now()
	c.logger.Debug("coingecko request start", zap.String("path", path))
	response, err := c.client.Do(request)
	if err != nil {
		return fmt.Errorf("coingecko %s: %w", path, err)
	}
	defer response.Body.Close()

	c.logger.Debug(
		"coingecko request complete",
		zap.String("path", path),
		zap.Int("status", response.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
		return fmt.Errorf("coingecko %s: status %d", path, response.StatusCode)
	}

	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("coingecko %s: decode: %w", path, err)
	}
	return nil
}

func normalizeIDs(assetIDs []string) []string {
	seen := make(map[string]struct{}, len(assetIDs))
	ids := make([]string, 0, len(assetIDs))
	for _, id := range assetIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
