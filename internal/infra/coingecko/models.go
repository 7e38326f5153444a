package coingecko

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// simplePriceResponse is the body of /simple/price: {"bitcoin": {"usd": 64000.1}}.
type simplePriceResponse map[string]map[string]NullableDecimal

// marketRecord is one element of the /coins/markets array.
type marketRecord struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	CurrentPrice NullableDecimal `json:"current_price"`
	LastUpdated  *time.Time      `json:"last_updated"`
}

// NullableDecimal decodes JSON numbers, quoted numbers and null.
type NullableDecimal struct {
	Decimal decimal.Decimal
	Valid   bool
}

// Positive reports whether the value is present and greater than zero.
func (n NullableDecimal) Positive() bool {
	return n.Valid && n.Decimal.IsPositive()
}

func (n *NullableDecimal) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		n.Valid = false
		return nil
	}
	trimmed := strings.TrimSpace(string(data))
	if len(trimmed) == 0 {
		n.Valid = false
		return nil
	}
	if trimmed[0] == '"' && trimmed[len(trimmed)-1] == '"' {
		trimmed = strings.Trim(trimmed, "\"")
	}
	dec, err := decimal.NewFromString(trimmed)
	if err != nil {
		n.Valid = false
		return err
	}
	n.Decimal = dec
	n.Valid = true
	return nil
}

func (n NullableDecimal) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Decimal.String())
}
