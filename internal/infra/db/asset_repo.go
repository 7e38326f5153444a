package db

import (
	"context"
	"errors"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AssetRepository struct {
	db *gorm.DB
}

func NewAssetRepository(db *gorm.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

func (r *AssetRepository) ListAll(ctx context.Context) ([]domain.Asset, error) {
	var models []assetModel
	if err := r.db.WithContext(ctx).Order("name").Order("id").Find(&models).Error; err != nil {
		return nil, err
	}
	assets := make([]domain.Asset, 0, len(models))
	for _, model := range models {
		assets = append(assets, *mapAssetToDomain(model))
	}
	return assets, nil
}

func (r *AssetRepository) GetByID(ctx context.Context, assetID string) (*domain.Asset, error) {
	var model assetModel
	if err := r.db.WithContext(ctx).Where("id = ?", assetID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return mapAssetToDomain(model), nil
}

// UpdatePrice overwrites the stored price. Concurrent writers race with
// last-writer-wins semantics.
func (r *AssetRepository) UpdatePrice(ctx context.Context, assetID string, price decimal.Decimal, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&assetModel{}).
		Where("id = ?", assetID).
		Updates(map[string]interface{}{
			"current_price": price,
			"last_updated":  at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Upsert inserts a catalog entry or refreshes its symbol and name. Price
// fields of an existing row are left alone.
func (r *AssetRepository) Upsert(ctx context.Context, asset *domain.Asset) error {
	model := mapAssetToModel(*asset)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"symbol", "name", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return err
	}

	stored, err := r.GetByID(ctx, asset.ID)
	if err != nil {
		return err
	}
	*asset = *stored
	return nil
}

func mapAssetToDomain(model assetModel) *domain.Asset {
	asset := &domain.Asset{
		ID:          model.ID,
		Symbol:      model.Symbol,
		Name:        model.Name,
		LastUpdated: model.LastUpdated,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
	if model.CurrentPrice.Valid {
		price := model.CurrentPrice.Decimal
		asset.CurrentPrice = &price
	}
	return asset
}

func mapAssetToModel(asset domain.Asset) assetModel {
	model := assetModel{
		ID:          asset.ID,
		Symbol:      asset.Symbol,
		Name:        asset.Name,
		LastUpdated: asset.LastUpdated,
		CreatedAt:   asset.CreatedAt,
		UpdatedAt:   asset.UpdatedAt,
	}
	if asset.CurrentPrice != nil {
		model.CurrentPrice = decimal.NewNullDecimal(*asset.CurrentPrice)
	}
	return model
}
