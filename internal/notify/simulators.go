package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"go.uber.org/zap"
)

// EmailSimulator logs the email a real mailer would send. Users without an
// email address are skipped.
func EmailSimulator(logger *zap.Logger, delay time.Duration) Handler {
	return func(ctx context.Context, event domain.TriggerEvent) error {
		if event.UserEmail == "" {
			logger.Debug("email notification skipped, no address", zap.String("alert_id", event.AlertID.String()))
			return nil
		}
		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("email to %s: %w", event.UserEmail, err)
		}
		logger.Info(
			"email notification sent",
			zap.String("alert_id", event.AlertID.String()),
			zap.String("to", event.UserEmail),
			zap.String("subject", EmailSubject(event)),
			zap.String("current_price", event.TriggeredPrice.String()),
			zap.String("target_price", event.TargetPrice.String()),
		)
		return nil
	}
}

func PushSimulator(logger *zap.Logger, delay time.Duration) Handler {
	return func(ctx context.Context, event domain.TriggerEvent) error {
		if err := sleep(ctx, delay); err != nil {
			return fmt.Errorf("push to %s: %w", event.UserID, err)
		}
		title, body := PushMessage(event)
		logger.Info(
			"push notification sent",
			zap.String("alert_id", event.AlertID.String()),
			zap.String("user_id", event.UserID.String()),
			zap.String("title", title),
			zap.String("message", body),
		)
		return nil
	}
}

func EmailSubject(event domain.TriggerEvent) string {
	return fmt.Sprintf("Price Alert - %s %s %s", event.AssetSymbol, event.Direction, event.TargetPrice.String())
}

func PushMessage(event domain.TriggerEvent) (title, body string) {
	title = fmt.Sprintf("%s Alert Triggered!", event.AssetSymbol)
	body = fmt.Sprintf("%s is now $%s", event.AssetName, event.TriggeredPrice.StringFixedBank(2))
	return title, body
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
