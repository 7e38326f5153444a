package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Publisher delivers trigger events to notification handlers.
type Publisher interface {
	Publish(ctx context.Context, event domain.TriggerEvent)
}

type AlertEvaluator struct {
	alerts      domain.AlertRepository
	publisher   Publisher
	logger      *zap.Logger
	now         func() time.Time
	concurrency int
}

type EvaluatorOption func(*AlertEvaluator)

func WithEvaluatorClock(now func() time.Time) EvaluatorOption {
	return func(e *AlertEvaluator) { e.now = now }
}

// WithAlertConcurrency bounds how many alerts of one asset are processed at once.
func WithAlertConcurrency(n int) EvaluatorOption {
	return func(e *AlertEvaluator) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func NewAlertEvaluator(alerts domain.AlertRepository, publisher Publisher, logger *zap.Logger, opts ...EvaluatorOption) *AlertEvaluator {
	e := &AlertEvaluator{
		alerts:      alerts,
		publisher:   publisher,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate triggers every untriggered alert of assetID whose threshold is
// crossed by price and publishes one event per alert it actually flipped.
// Only the initial lookup can fail; per-alert failures are logged and skipped.
func (e *AlertEvaluator) Evaluate(ctx context.Context, assetID string, price decimal.Decimal) ([]domain.TriggerEvent, error) {
	alerts, err := e.alerts.FindUntriggered(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("find untriggered alerts for %s: %w", assetID, err)
	}

	due := make([]domain.Alert, 0, len(alerts))
	for _, alert := range alerts {
		if alert.Direction.Crossed(price, alert.TargetPrice) {
			due = append(due, alert)
		}
	}

	e.logger.Debug(
		"alerts evaluated",
		zap.String("asset_id", assetID),
		zap.String("price", price.String()),
		zap.Int("checked", len(alerts)),
		zap.Int("due", len(due)),
	)
	if len(due) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	events := make([]domain.TriggerEvent, 0, len(due))
	var group errgroup.Group
	group.SetLimit(e.concurrency)
	for _, alert := range due {
		group.Go(func() error {
			event, err := e.trigger(ctx, alert, price)
			if err != nil {
				e.logger.Error(
					"failed to process triggered alert",
					zap.String("alert_id", alert.ID.String()),
					zap.String("user_id", alert.UserID.String()),
					zap.String("asset_id", assetID),
					zap.Error(err),
				)
				return nil
			}
			if event != nil {
				mu.Lock()
				events = append(events, *event)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = group.Wait()

	return events, nil
}

var errIncompleteSnapshot = errors.New("alert is missing its asset or user snapshot")

// trigger returns a nil event without error when another evaluation already
// triggered the alert.
func (e *AlertEvaluator) trigger(ctx context.Context, alert domain.Alert, price decimal.Decimal) (*domain.TriggerEvent, error) {
	at := e.now()
	event, err := newTriggerEvent(alert, price, at)
	if err != nil {
		return nil, err
	}

	marked, err := e.alerts.MarkTriggered(ctx, alert.ID, price, at)
	if err != nil {
		return nil, fmt.Errorf("mark triggered: %w", err)
	}
	if !marked {
		e.logger.Debug("alert already triggered, skipping", zap.String("alert_id", alert.ID.String()))
		return nil, nil
	}

	e.logger.Info(
		"alert triggered",
		zap.String("alert_id", alert.ID.String()),
		zap.String("user_id", alert.UserID.String()),
		zap.String("asset_id", alert.AssetID),
		zap.String("direction", string(alert.Direction)),
		zap.String("target_price", alert.TargetPrice.String()),
		zap.String("triggered_price", price.String()),
	)
	e.publisher.Publish(ctx, event)
	return &event, nil
}

func newTriggerEvent(alert domain.Alert, price decimal.Decimal, at time.Time) (domain.TriggerEvent, error) {
	if alert.Asset == nil || alert.User == nil {
		return domain.TriggerEvent{}, errIncompleteSnapshot
	}
	return domain.TriggerEvent{
		AlertID:        alert.ID,
		UserID:         alert.UserID,
		AssetID:        alert.AssetID,
		AssetSymbol:    alert.Asset.Symbol,
		AssetName:      alert.Asset.Name,
		Direction:      alert.Direction,
		TargetPrice:    alert.TargetPrice,
		TriggeredPrice: price,
		TriggeredAt:    at,
		UserEmail:      alert.User.Email,
		UserName:       alert.User.DisplayName(),
		UserTelegramID: alert.User.TelegramUserID,
	}, nil
}
