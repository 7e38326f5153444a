package db

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type userModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email          string    `gorm:"index"`
	FirstName      string
	LastName       string
	TelegramUserID *int64 `gorm:"uniqueIndex"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (userModel) TableName() string { return "users" }

type assetModel struct {
	ID           string              `gorm:"primaryKey"`
	Symbol       string              `gorm:"not null"`
	Name         string              `gorm:"not null;index"`
	CurrentPrice decimal.NullDecimal `gorm:"type:numeric(30,10)"`
	LastUpdated  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (assetModel) TableName() string { return "assets" }

type alertModel struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey"`
	UserID         uuid.UUID           `gorm:"type:uuid;not null;index"`
	AssetID        string              `gorm:"not null;index:idx_alerts_asset_triggered,priority:1"`
	Direction      string              `gorm:"not null"`
	TargetPrice    decimal.Decimal     `gorm:"type:numeric(30,10);not null"`
	Triggered      bool                `gorm:"not null;index:idx_alerts_asset_triggered,priority:2"`
	TriggeredPrice decimal.NullDecimal `gorm:"type:numeric(30,10)"`
	TriggeredAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Asset *assetModel `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE"`
	User  *userModel  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (alertModel) TableName() string { return "alerts" }
