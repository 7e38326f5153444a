package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/infra/db"
	"github.com/NasaVasa/pricewatch/internal/usecase"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	err  error
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return tgbotapi.Message{}, s.err
	}
	s.sent = append(s.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

type harness struct {
	handlers *Handlers
	sender   *recordingSender
	users    *usecase.UserUsecase
	alerts   *db.AlertRepository
}

func newHarness(t *testing.T) harness {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := db.OpenDialector(sqlite.Open(dsn), db.PoolConfig{MaxIdleConns: 1, MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(conn) })

	assetRepo := db.NewAssetRepository(conn)
	alertRepo := db.NewAlertRepository(conn)
	userRepo := db.NewUserRepository(conn)
	require.NoError(t, assetRepo.Upsert(context.Background(), &domain.Asset{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin"}))

	users := usecase.NewUserUsecase(userRepo)
	sender := &recordingSender{}
	handlers := NewHandlers(
		users,
		usecase.NewAlertUsecase(userRepo, alertRepo, assetRepo, zap.NewNop()),
		usecase.NewAssetUsecase(assetRepo, zap.NewNop()),
		sender,
		zap.NewNop(),
	)
	return harness{handlers: handlers, sender: sender, users: users, alerts: alertRepo}
}

func TestParseThresholdArgs(t *testing.T) {
	subject, direction, price, err := ParseThresholdArgs("  bitcoin   above 100000.5 ")
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", subject)
	assert.Equal(t, "above", direction)
	assert.Equal(t, "100000.5", price)

	_, _, _, err = ParseThresholdArgs("bitcoin above")
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestParseAlertID(t *testing.T) {
	id := uuid.New()
	parsed, err := ParseAlertID(" " + id.String() + " ")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	for _, raw := range []string{"", "42", "not-a-uuid"} {
		_, err := ParseAlertID(raw)
		assert.ErrorIs(t, err, ErrInvalidArguments, raw)
	}
}

func TestHandlers_AlertLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const tgID = int64(4242)

	assert.Equal(t, "Please /start to register first.", h.handlers.Execute(ctx, tgID, "ada", "alerts", ""))
	assert.Contains(t, h.handlers.Execute(ctx, tgID, "ada", "start", ""), "Welcome to PriceWatch.")
	assert.Contains(t, h.handlers.Execute(ctx, tgID, "ada", "assets", ""), "Bitcoin (BTC) bitcoin: n/a")

	assert.Equal(t, "Usage: /add <asset_id> <above|below> <price>", h.handlers.Execute(ctx, tgID, "ada", "add", "bitcoin"))
	assert.Contains(t, h.handlers.Execute(ctx, tgID, "ada", "add", "dogecoin above 1"), "Unknown asset")
	assert.Contains(t, h.handlers.Execute(ctx, tgID, "ada", "add", "bitcoin sideways 1"), "Invalid direction")
	assert.Contains(t, h.handlers.Execute(ctx, tgID, "ada", "add", "bitcoin above -3"), "Invalid price")
	assert.Contains(t, h.handlers.Execute(ctx, tgID, "ada", "add", "bitcoin above 100"), "Alert created")

	user, err := h.users.GetTelegramUser(ctx, tgID)
	require.NoError(t, err)
	list, err := h.alerts.ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	alertID := list[0].ID

	assert.Contains(t, h.handlers.Execute(ctx, tgID, "ada", "alerts", ""), alertID.String()+" BTC above $100")
	assert.Equal(t, "None of your alerts have fired yet.", h.handlers.Execute(ctx, tgID, "ada", "triggered", ""))

	edited := h.handlers.Execute(ctx, tgID, "ada", "edit", alertID.String()+" below 90")
	assert.Contains(t, edited, "Alert updated")
	assert.Contains(t, edited, "below $90")

	marked, err := h.alerts.MarkTriggered(ctx, alertID, decimal.NewFromInt(85), time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, marked)

	assert.Contains(t, h.handlers.Execute(ctx, tgID, "ada", "triggered", ""), "fired at $85")
	assert.Contains(t, h.handlers.Execute(ctx, tgID, "ada", "edit", alertID.String()+" above 1"), "already fired")

	h.handlers.Execute(ctx, 999, "eve", "start", "")
	assert.Equal(t, "Alert not found.", h.handlers.Execute(ctx, 999, "eve", "delete", alertID.String()))
	assert.Equal(t, fmt.Sprintf("Alert %s deleted.", alertID), h.handlers.Execute(ctx, tgID, "ada", "delete", alertID.String()))
	assert.Equal(t, "Alert not found.", h.handlers.Execute(ctx, tgID, "ada", "delete", alertID.String()))
}

func TestHandlers_HandleUpdateReplies(t *testing.T) {
	h := newHarness(t)

	h.handlers.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     "/help",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 5}},
		Chat:     &tgbotapi.Chat{ID: 77},
		From:     &tgbotapi.User{ID: 42, UserName: "ada"},
	}})
	h.handlers.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Text: "hello",
		Chat: &tgbotapi.Chat{ID: 77},
		From: &tgbotapi.User{ID: 42},
	}})

	require.Len(t, h.sender.sent, 1)
	assert.Equal(t, int64(77), h.sender.sent[0].ChatID)
	assert.Equal(t, HelpText, h.sender.sent[0].Text)
}

func TestNotifier_Handle(t *testing.T) {
	tgID := int64(4242)
	event := domain.TriggerEvent{
		AlertID:        uuid.New(),
		AssetSymbol:    "BTC",
		AssetName:      "Bitcoin",
		Direction:      domain.DirectionAbove,
		TargetPrice:    decimal.NewFromInt(100),
		TriggeredPrice: decimal.RequireFromString("101.5"),
		UserTelegramID: &tgID,
	}

	sender := &recordingSender{}
	notifier := NewNotifier(sender, zap.NewNop())
	require.NoError(t, notifier.Handle(context.Background(), event))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, tgID, sender.sent[0].ChatID)
	assert.True(t, strings.HasPrefix(sender.sent[0].Text, "Bitcoin (BTC) is now $101.5\nYour alert above 100 fired."))

	event.UserTelegramID = nil
	require.NoError(t, notifier.Handle(context.Background(), event))
	assert.Len(t, sender.sent, 1)

	event.UserTelegramID = &tgID
	failing := NewNotifier(&recordingSender{err: errors.New("blocked by user")}, zap.NewNop())
	assert.EqualError(t, failing.Handle(context.Background(), event), "blocked by user")
}
