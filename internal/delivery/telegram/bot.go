package telegram

import (
	"context"
	"fmt"

	"github.com/NasaVasa/pricewatch/internal/domain"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of the Bot API used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api         *tgbotapi.BotAPI
	handlers    *Handlers
	pollTimeout int
}

func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

func NewBot(api *tgbotapi.BotAPI, handlers *Handlers, pollTimeout int) *Bot {
	return &Bot{api: api, handlers: handlers, pollTimeout: pollTimeout}
}

func (b *Bot) Start(ctx context.Context) error {
	config := tgbotapi.NewUpdate(0)
	config.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(config)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handlers.HandleUpdate(ctx, update)
		}
	}
}

// Notifier delivers trigger events to users who registered through Telegram.
type Notifier struct {
	sender Sender
	logger *zap.Logger
}

func NewNotifier(sender Sender, logger *zap.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

// Handle is a notification bus handler.
func (n *Notifier) Handle(ctx context.Context, event domain.TriggerEvent) error {
	if event.UserTelegramID == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(*event.UserTelegramID, FormatTriggerMessage(event))
	if _, err := n.sender.Send(msg); err != nil {
		n.logger.Warn("failed to notify", zap.Int64("telegram_user_id", *event.UserTelegramID), zap.Error(err))
		return err
	}
	n.logger.Info(
		"telegram notification sent",
		zap.Int64("telegram_user_id", *event.UserTelegramID),
		zap.String("alert_id", event.AlertID.String()),
	)
	return nil
}

func FormatTriggerMessage(event domain.TriggerEvent) string {
	return fmt.Sprintf(
		"%s (%s) is now $%s\nYour alert %s %s fired.\nAlert: %s",
		event.AssetName,
		event.AssetSymbol,
		event.TriggeredPrice.String(),
		directionLabel(event.Direction),
		event.TargetPrice.String(),
		event.AlertID,
	)
}

func directionLabel(direction domain.Direction) string {
	if direction == domain.DirectionBelow {
		return "below"
	}
	return "above"
}
