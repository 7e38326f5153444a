package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrUserNotRegistered     = errors.New("user not registered")
	ErrInvalidDirection      = errors.New("invalid direction")
	ErrInvalidTargetPrice    = errors.New("invalid target price")
	ErrAlertNotFound         = errors.New("alert not found")
	ErrAssetNotFound         = errors.New("asset not found")
	ErrAlertAlreadyTriggered = errors.New("alert already triggered")
)

type AlertUsecase struct {
	users  domain.UserRepository
	alerts domain.AlertRepository
	assets domain.AssetRepository
	logger *zap.Logger
}

func NewAlertUsecase(users domain.UserRepository, alerts domain.AlertRepository, assets domain.AssetRepository, logger *zap.Logger) *AlertUsecase {
	return &AlertUsecase{users: users, alerts: alerts, assets: assets, logger: logger}
}

func (u *AlertUsecase) CreateAlert(ctx context.Context, userID uuid.UUID, assetID, direction, targetPrice string) (*domain.Alert, error) {
	if _, err := u.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUserNotRegistered
		}
		return nil, err
	}

	dir, target, err := parseThreshold(direction, targetPrice)
	if err != nil {
		return nil, err
	}

	asset, err := u.assets.GetByID(ctx, strings.TrimSpace(assetID))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrAssetNotFound
		}
		return nil, err
	}

	alert := &domain.Alert{
		UserID:      userID,
		AssetID:     asset.ID,
		Direction:   dir,
		TargetPrice: target,
		Asset:       asset,
	}
	if err := u.alerts.Create(ctx, alert); err != nil {
		return nil, err
	}

	u.logger.Info(
		"alert created",
		zap.String("alert_id", alert.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("asset_id", asset.ID),
		zap.String("direction", string(dir)),
		zap.String("target_price", target.String()),
	)
	return alert, nil
}

func (u *AlertUsecase) ListAlerts(ctx context.Context, userID uuid.UUID) ([]domain.Alert, error) {
	return u.alerts.ListByUser(ctx, userID)
}

func (u *AlertUsecase) ListTriggeredAlerts(ctx context.Context, userID uuid.UUID) ([]domain.Alert, error) {
	return u.alerts.ListTriggeredByUser(ctx, userID)
}

func (u *AlertUsecase) GetAlert(ctx context.Context, alertID, userID uuid.UUID) (*domain.Alert, error) {
	alert, err := u.alerts.FindByID(ctx, alertID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}
	return alert, nil
}

// UpdateAlert edits the direction and target of an untriggered alert.
func (u *AlertUsecase) UpdateAlert(ctx context.Context, alertID, userID uuid.UUID, direction, targetPrice string) (*domain.Alert, error) {
	dir, target, err := parseThreshold(direction, targetPrice)
	if err != nil {
		return nil, err
	}

	existing, err := u.GetAlert(ctx, alertID, userID)
	if err != nil {
		return nil, err
	}
	if existing.Triggered {
		return nil, ErrAlertAlreadyTriggered
	}

	existing.Direction = dir
	existing.TargetPrice = target
	if err := u.alerts.Update(ctx, existing); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}

	u.logger.Info("alert updated", zap.String("alert_id", alertID.String()), zap.String("user_id", userID.String()))
	return existing, nil
}

func (u *AlertUsecase) DeleteAlert(ctx context.Context, alertID, userID uuid.UUID) error {
	if err := u.alerts.Delete(ctx, alertID, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrAlertNotFound
		}
		return err
	}
	u.logger.Info("alert deleted", zap.String("alert_id", alertID.String()), zap.String("user_id", userID.String()))
	return nil
}

func parseThreshold(direction, targetPrice string) (domain.Direction, decimal.Decimal, error) {
	dir, err := domain.ParseDirection(direction)
	if err != nil {
		return "", decimal.Decimal{}, ErrInvalidDirection
	}
	target, err := decimal.NewFromString(strings.TrimSpace(targetPrice))
	if err != nil || !target.IsPositive() {
		return "", decimal.Decimal{}, ErrInvalidTargetPrice
	}
	return dir, target, nil
}
