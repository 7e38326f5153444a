package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

type AssetRepository interface {
	ListAll(ctx context.Context) ([]Asset, error)
	GetByID(ctx context.Context, assetID string) (*Asset, error)
	UpdatePrice(ctx context.Context, assetID string, price decimal.Decimal, at time.Time) error
	Upsert(ctx context.Context, asset *Asset) error
}

type AlertRepository interface {
	FindUntriggered(ctx context.Context, assetID string) ([]Alert, error)
	FindByID(ctx context.Context, alertID, userID uuid.UUID) (*Alert, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Alert, error)
	ListTriggeredByUser(ctx context.Context, userID uuid.UUID) ([]Alert, error)
	Create(ctx context.Context, alert *Alert) error
	Update(ctx context.Context, alert *Alert) error
	Delete(ctx context.Context, alertID, userID uuid.UUID) error
	// MarkTriggered flips an untriggered alert to triggered. It returns false
	// when the alert was already triggered (or no longer exists).
	MarkTriggered(ctx context.Context, alertID uuid.UUID, price decimal.Decimal, at time.Time) (bool, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*User, error)
	GetByTelegramID(ctx context.Context, telegramUserID int64) (*User, error)
	Create(ctx context.Context, user *User) error
}
