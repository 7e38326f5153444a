package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TriggerEvent is the snapshot handed to notification handlers when an alert
// fires. It carries everything a handler needs so it never reads the store.
type TriggerEvent struct {
	AlertID        uuid.UUID       `json:"alert_id"`
	UserID         uuid.UUID       `json:"user_id"`
	AssetID        string          `json:"asset_id"`
	AssetSymbol    string          `json:"asset_symbol"`
	AssetName      string          `json:"asset_name"`
	Direction      Direction       `json:"direction"`
	TargetPrice    decimal.Decimal `json:"target_price"`
	TriggeredPrice decimal.Decimal `json:"triggered_price"`
	TriggeredAt    time.Time       `json:"triggered_at"`
	UserEmail      string          `json:"user_email"`
	UserName       string          `json:"user_name"`
	UserTelegramID *int64          `json:"-"`
}
