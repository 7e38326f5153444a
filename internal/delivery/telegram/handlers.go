package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/usecase"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const maxMessageLen = 3800

type Handlers struct {
	userUC  *usecase.UserUsecase
	alertUC *usecase.AlertUsecase
	assetUC *usecase.AssetUsecase
	sender  Sender
	logger  *zap.Logger
}

func NewHandlers(userUC *usecase.UserUsecase, alertUC *usecase.AlertUsecase, assetUC *usecase.AssetUsecase, sender Sender, logger *zap.Logger) *Handlers {
	return &Handlers{userUC: userUC, alertUC: alertUC, assetUC: assetUC, sender: sender, logger: logger}
}

func (h *Handlers) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil {
		return
	}
	if update.Message.From == nil {
		return
	}
	if !update.Message.IsCommand() {
		return
	}

	chatID := update.Message.Chat.ID
	reply := h.Execute(ctx, update.Message.From.ID, update.Message.From.UserName, update.Message.Command(), update.Message.CommandArguments())
	h.reply(chatID, reply)
}

// Execute runs one command for a Telegram user and returns the reply text.
func (h *Handlers) Execute(ctx context.Context, telegramUserID int64, username, command, args string) string {
	h.logger.Info(
		"telegram command received",
		zap.Int64("telegram_user_id", telegramUserID),
		zap.String("username", username),
		zap.String("command", command),
		zap.String("args", args),
	)

	switch command {
	case "start":
		if _, err := h.userUC.StartOrGetTelegramUser(ctx, telegramUserID, username); err != nil {
			h.logger.Warn("start command failed", zap.Int64("telegram_user_id", telegramUserID), zap.Error(err))
			return "Failed to register. Please try again."
		}
		return "Welcome to PriceWatch.\n\n" + HelpText
	case "help":
		return HelpText
	case "assets":
		return h.listAssets(ctx)
	case "alerts":
		return h.listAlerts(ctx, telegramUserID, false)
	case "triggered":
		return h.listAlerts(ctx, telegramUserID, true)
	case "add":
		return h.addAlert(ctx, telegramUserID, args)
	case "edit":
		return h.editAlert(ctx, telegramUserID, args)
	case "delete":
		return h.deleteAlert(ctx, telegramUserID, args)
	default:
		h.logger.Warn("unknown command", zap.Int64("telegram_user_id", telegramUserID), zap.String("command", command))
		return "Unknown command.\n\n" + HelpText
	}
}

func (h *Handlers) listAssets(ctx context.Context) string {
	assets, err := h.assetUC.ListAssets(ctx)
	if err != nil {
		return h.alertErrorMessage(err)
	}
	if len(assets) == 0 {
		return "No tracked assets."
	}

	var builder strings.Builder
	builder.WriteString("Tracked assets:\n")
	for _, asset := range assets {
		price := "n/a"
		if asset.CurrentPrice != nil {
			price = "$" + asset.CurrentPrice.String()
		}
		builder.WriteString(fmt.Sprintf("%s (%s) %s: %s\n", asset.Name, asset.Symbol, asset.ID, price))
	}
	return builder.String()
}

func (h *Handlers) listAlerts(ctx context.Context, telegramUserID int64, triggeredOnly bool) string {
	user, err := h.userUC.GetTelegramUser(ctx, telegramUserID)
	if err != nil {
		return h.alertErrorMessage(err)
	}

	var alerts []domain.Alert
	if triggeredOnly {
		alerts, err = h.alertUC.ListTriggeredAlerts(ctx, user.ID)
	} else {
		alerts, err = h.alertUC.ListAlerts(ctx, user.ID)
	}
	if err != nil {
		h.logger.Warn("alerts list failed", zap.Int64("telegram_user_id", telegramUserID), zap.Error(err))
		return h.alertErrorMessage(err)
	}
	if len(alerts) == 0 {
		if triggeredOnly {
			return "None of your alerts have fired yet."
		}
		return "No alerts yet. Use /add to create one."
	}

	header := "Your alerts:\n"
	if triggeredOnly {
		header = "Triggered alerts:\n"
	}
	var builder strings.Builder
	builder.WriteString(header)
	for i, alert := range alerts {
		line := formatAlertLine(alert)
		if builder.Len()+len(line) > maxMessageLen {
			builder.WriteString(fmt.Sprintf("...and %d more", len(alerts)-i))
			break
		}
		builder.WriteString(line)
	}
	return builder.String()
}

func (h *Handlers) addAlert(ctx context.Context, telegramUserID int64, args string) string {
	assetID, direction, price, err := ParseThresholdArgs(args)
	if err != nil {
		return "Usage: /add <asset_id> <above|below> <price>"
	}
	user, err := h.userUC.GetTelegramUser(ctx, telegramUserID)
	if err != nil {
		return h.alertErrorMessage(err)
	}
	alert, err := h.alertUC.CreateAlert(ctx, user.ID, assetID, direction, price)
	if err != nil {
		h.logger.Warn("add failed", zap.Int64("telegram_user_id", telegramUserID), zap.Error(err))
		return h.alertErrorMessage(err)
	}
	return "Alert created:\n" + formatAlertLine(*alert)
}

func (h *Handlers) editAlert(ctx context.Context, telegramUserID int64, args string) string {
	rawID, direction, price, err := ParseThresholdArgs(args)
	if err != nil {
		return "Usage: /edit <alert_id> <above|below> <price>"
	}
	alertID, err := ParseAlertID(rawID)
	if err != nil {
		return "Usage: /edit <alert_id> <above|below> <price>"
	}
	user, err := h.userUC.GetTelegramUser(ctx, telegramUserID)
	if err != nil {
		return h.alertErrorMessage(err)
	}
	alert, err := h.alertUC.UpdateAlert(ctx, alertID, user.ID, direction, price)
	if err != nil {
		h.logger.Warn("edit failed", zap.Int64("telegram_user_id", telegramUserID), zap.String("alert_id", alertID.String()), zap.Error(err))
		return h.alertErrorMessage(err)
	}
	return "Alert updated:\n" + formatAlertLine(*alert)
}

func (h *Handlers) deleteAlert(ctx context.Context, telegramUserID int64, args string) string {
	alertID, err := ParseAlertID(args)
	if err != nil {
		return "Usage: /delete <alert_id>"
	}
	user, err := h.userUC.GetTelegramUser(ctx, telegramUserID)
	if err != nil {
		return h.alertErrorMessage(err)
	}
	if err := h.alertUC.DeleteAlert(ctx, alertID, user.ID); err != nil {
		h.logger.Warn("delete failed", zap.Int64("telegram_user_id", telegramUserID), zap.String("alert_id", alertID.String()), zap.Error(err))
		return h.alertErrorMessage(err)
	}
	return fmt.Sprintf("Alert %s deleted.", alertID)
}

func (h *Handlers) alertErrorMessage(err error) string {
	switch {
	case errors.Is(err, usecase.ErrUserNotRegistered):
		return "Please /start to register first."
	case errors.Is(err, usecase.ErrInvalidDirection):
		return "Invalid direction. Use above or below."
	case errors.Is(err, usecase.ErrInvalidTargetPrice):
		return "Invalid price. Use a positive number like 65000.50."
	case errors.Is(err, usecase.ErrAlertNotFound):
		return "Alert not found."
	case errors.Is(err, usecase.ErrAssetNotFound):
		return "Unknown asset. Use /assets to see tracked ids."
	case errors.Is(err, usecase.ErrAlertAlreadyTriggered):
		return "That alert already fired and can no longer be edited."
	}

	h.logger.Warn("unhandled error", zap.Error(err))
	return "Something went wrong. Please try again."
}

func formatAlertLine(alert domain.Alert) string {
	symbol := alert.AssetID
	if alert.Asset != nil {
		symbol = alert.Asset.Symbol
	}
	line := fmt.Sprintf("%s %s %s $%s", alert.ID, symbol, directionLabel(alert.Direction), alert.TargetPrice.String())
	if alert.Triggered && alert.TriggeredPrice != nil {
		line += " fired at $" + alert.TriggeredPrice.String()
		if alert.TriggeredAt != nil {
			line += " on " + alert.TriggeredAt.UTC().Format(time.RFC822)
		}
	}
	return line + "\n"
}

func (h *Handlers) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.sender.Send(msg); err != nil {
		h.logger.Warn("failed to send message", zap.Error(err))
	}
}
