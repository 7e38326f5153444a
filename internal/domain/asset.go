package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset is a tracked market instrument. ID is the stable external key used by
// the market data source.
type Asset struct {
	ID           string
	Symbol       string
	Name         string
	CurrentPrice *decimal.Decimal
	LastUpdated  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
