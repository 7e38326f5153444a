package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceSource returns current USD prices keyed by asset id. Assets without a
// positive price are absent from the result.
type PriceSource interface {
	FetchPrices(ctx context.Context, assetIDs []string) (map[string]decimal.Decimal, error)
}

// MarketListing is a richer per-asset record from the market listing endpoint.
type MarketListing struct {
	ID           string
	Symbol       string
	Name         string
	CurrentPrice *decimal.Decimal
	LastUpdated  *time.Time
}

// ExternalServiceError reports that both the primary and the fallback
// endpoint of a remote service failed.
type ExternalServiceError struct {
	Service     string
	PrimaryErr  error
	FallbackErr error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s unavailable: primary: %v; fallback: %v", e.Service, e.PrimaryErr, e.FallbackErr)
}

func (e *ExternalServiceError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.PrimaryErr != nil {
		errs = append(errs, e.PrimaryErr)
	}
	if e.FallbackErr != nil {
		errs = append(errs, e.FallbackErr)
	}
	return errs
}
