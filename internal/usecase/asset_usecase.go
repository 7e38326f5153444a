package usecase

import (
	"context"
	"errors"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"go.uber.org/zap"
)

type AssetUsecase struct {
	assets domain.AssetRepository
	logger *zap.Logger
}

func NewAssetUsecase(assets domain.AssetRepository, logger *zap.Logger) *AssetUsecase {
	return &AssetUsecase{assets: assets, logger: logger}
}

// SeedCatalog makes sure every configured asset is tracked. Existing rows
// keep their prices.
func (u *AssetUsecase) SeedCatalog(ctx context.Context, catalog []domain.Asset) error {
	for i := range catalog {
		asset := catalog[i]
		if err := u.assets.Upsert(ctx, &asset); err != nil {
			return err
		}
	}
	u.logger.Info("asset catalog seeded", zap.Int("count", len(catalog)))
	return nil
}

func (u *AssetUsecase) ListAssets(ctx context.Context) ([]domain.Asset, error) {
	return u.assets.ListAll(ctx)
}

func (u *AssetUsecase) GetAsset(ctx context.Context, assetID string) (*domain.Asset, error) {
	asset, err := u.assets.GetByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}
	return asset, nil
}
