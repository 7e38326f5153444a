package db

import (
	"context"
	"errors"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// FindUntriggered returns the untriggered alerts of an asset together with the
// asset and owner rows, so evaluation never needs a second lookup per alert.
func (r *AlertRepository) FindUntriggered(ctx context.Context, assetID string) ([]domain.Alert, error) {
	var models []alertModel
	err := r.db.WithContext(ctx).
		Preload("Asset").
		Preload("User").
		Where("asset_id = ? AND triggered = ?", assetID, false).
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return mapAlertsToDomain(models), nil
}

func (r *AlertRepository) FindByID(ctx context.Context, alertID, userID uuid.UUID) (*domain.Alert, error) {
	var model alertModel
	err := r.db.WithContext(ctx).
		Preload("Asset").
		Where("id = ? AND user_id = ?", alertID, userID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	alert := mapAlertToDomain(model)
	return &alert, nil
}

func (r *AlertRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Alert, error) {
	var models []alertModel
	err := r.db.WithContext(ctx).
		Preload("Asset").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return mapAlertsToDomain(models), nil
}

func (r *AlertRepository) ListTriggeredByUser(ctx context.Context, userID uuid.UUID) ([]domain.Alert, error) {
	var models []alertModel
	err := r.db.WithContext(ctx).
		Preload("Asset").
		Where("user_id = ? AND triggered = ?", userID, true).
		Order("triggered_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return mapAlertsToDomain(models), nil
}

func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	model := mapAlertToModel(*alert)
	if err := r.db.WithContext(ctx).Omit("Asset", "User").Create(&model).Error; err != nil {
		return err
	}
	alert.CreatedAt = model.CreatedAt
	alert.UpdatedAt = model.UpdatedAt
	return nil
}

// Update changes the direction and target of an alert owned by alert.UserID.
// Trigger state is never written here, so editing keeps the trigger history.
func (r *AlertRepository) Update(ctx context.Context, alert *domain.Alert) error {
	result := r.db.WithContext(ctx).
		Model(&alertModel{}).
		Where("id = ? AND user_id = ?", alert.ID, alert.UserID).
		Updates(map[string]interface{}{
			"direction":    string(alert.Direction),
			"target_price": alert.TargetPrice,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}

	stored, err := r.FindByID(ctx, alert.ID, alert.UserID)
	if err != nil {
		return err
	}
	*alert = *stored
	return nil
}

func (r *AlertRepository) Delete(ctx context.Context, alertID, userID uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", alertID, userID).Delete(&alertModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkTriggered is a conditional write guarded by triggered = false. Of any
// number of concurrent callers for the same alert exactly one gets true.
func (r *AlertRepository) MarkTriggered(ctx context.Context, alertID uuid.UUID, price decimal.Decimal, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&alertModel{}).
		Where("id = ? AND triggered = ?", alertID, false).
		Updates(map[string]interface{}{
			"triggered":       true,
			"triggered_price": price,
			"triggered_at":    at,
			"updated_at":      at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func mapAlertsToDomain(models []alertModel) []domain.Alert {
	alerts := make([]domain.Alert, 0, len(models))
	for _, model := range models {
		alerts = append(alerts, mapAlertToDomain(model))
	}
	return alerts
}

func mapAlertToDomain(model alertModel) domain.Alert {
	alert := domain.Alert{
		ID:          model.ID,
		UserID:      model.UserID,
		AssetID:     model.AssetID,
		Direction:   domain.Direction(model.Direction),
		TargetPrice: model.TargetPrice,
		Triggered:   model.Triggered,
		TriggeredAt: model.TriggeredAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
	if model.TriggeredPrice.Valid {
		price := model.TriggeredPrice.Decimal
		alert.TriggeredPrice = &price
	}
	if model.Asset != nil {
		alert.Asset = mapAssetToDomain(*model.Asset)
	}
	if model.User != nil {
		alert.User = mapUserToDomain(*model.User)
	}
	return alert
}

func mapAlertToModel(alert domain.Alert) alertModel {
	model := alertModel{
		ID:          alert.ID,
		UserID:      alert.UserID,
		AssetID:     alert.AssetID,
		Direction:   string(alert.Direction),
		TargetPrice: alert.TargetPrice,
		Triggered:   alert.Triggered,
		TriggeredAt: alert.TriggeredAt,
		CreatedAt:   alert.CreatedAt,
		UpdatedAt:   alert.UpdatedAt,
	}
	if alert.TriggeredPrice != nil {
		model.TriggeredPrice = decimal.NewNullDecimal(*alert.TriggeredPrice)
	}
	return model
}
