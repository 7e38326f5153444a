package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// memStore backs the in-memory repositories used across usecase tests.
// MarkTriggered has the same conditional semantics as the SQL repository.
type memStore struct {
	mu     sync.Mutex
	assets map[string]domain.Asset
	alerts map[uuid.UUID]domain.Alert
	users  map[uuid.UUID]domain.User

	findErr    error
	markErr    map[uuid.UUID]error
	updateErr  map[string]error
	markCalls  int
	priceCalls int
}

func newMemStore() *memStore {
	return &memStore{
		assets:    make(map[string]domain.Asset),
		alerts:    make(map[uuid.UUID]domain.Alert),
		users:     make(map[uuid.UUID]domain.User),
		markErr:   make(map[uuid.UUID]error),
		updateErr: make(map[string]error),
	}
}

func (s *memStore) addAsset(id, symbol, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[id] = domain.Asset{ID: id, Symbol: symbol, Name: name}
}

func (s *memStore) addUser(email, firstName string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := domain.User{ID: uuid.New(), Email: email, FirstName: firstName}
	s.users[user.ID] = user
	return user
}

func (s *memStore) addAlert(userID uuid.UUID, assetID string, direction domain.Direction, target int64) domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert := domain.Alert{
		ID:          uuid.New(),
		UserID:      userID,
		AssetID:     assetID,
		Direction:   direction,
		TargetPrice: decimal.NewFromInt(target),
		CreatedAt:   time.Now(),
	}
	s.alerts[alert.ID] = alert
	return alert
}

func (s *memStore) alert(id uuid.UUID) domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alerts[id]
}

func (s *memStore) asset(id string) domain.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assets[id]
}

// withSnapshot must be called with mu held.
func (s *memStore) withSnapshot(alert domain.Alert) domain.Alert {
	if asset, ok := s.assets[alert.AssetID]; ok {
		alert.Asset = &asset
	}
	if user, ok := s.users[alert.UserID]; ok {
		alert.User = &user
	}
	return alert
}

type memAssets struct{ *memStore }

func (r memAssets) ListAll(ctx context.Context) ([]domain.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	assets := make([]domain.Asset, 0, len(r.assets))
	for _, asset := range r.assets {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].Name < assets[j].Name })
	return assets, nil
}

func (r memAssets) GetByID(ctx context.Context, assetID string) (*domain.Asset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	asset, ok := r.assets[assetID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &asset, nil
}

func (r memAssets) UpdatePrice(ctx context.Context, assetID string, price decimal.Decimal, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.priceCalls++
	if err := r.updateErr[assetID]; err != nil {
		return err
	}
	asset, ok := r.assets[assetID]
	if !ok {
		return domain.ErrNotFound
	}
	asset.CurrentPrice = &price
	asset.LastUpdated = &at
	r.assets[assetID] = asset
	return nil
}

func (r memAssets) Upsert(ctx context.Context, asset *domain.Asset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.assets[asset.ID]; ok {
		existing.Symbol = asset.Symbol
		existing.Name = asset.Name
		r.assets[asset.ID] = existing
		*asset = existing
		return nil
	}
	r.assets[asset.ID] = *asset
	return nil
}

type memAlerts struct{ *memStore }

func (r memAlerts) FindUntriggered(ctx context.Context, assetID string) ([]domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	var alerts []domain.Alert
	for _, alert := range r.alerts {
		if alert.AssetID == assetID && !alert.Triggered {
			alerts = append(alerts, r.withSnapshot(alert))
		}
	}
	return alerts, nil
}

func (r memAlerts) FindByID(ctx context.Context, alertID, userID uuid.UUID) (*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[alertID]
	if !ok || alert.UserID != userID {
		return nil, domain.ErrNotFound
	}
	alert = r.withSnapshot(alert)
	return &alert, nil
}

func (r memAlerts) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Alert, error) {
	return r.list(userID, false)
}

func (r memAlerts) ListTriggeredByUser(ctx context.Context, userID uuid.UUID) ([]domain.Alert, error) {
	return r.list(userID, true)
}

func (r memAlerts) list(userID uuid.UUID, triggeredOnly bool) ([]domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var alerts []domain.Alert
	for _, alert := range r.alerts {
		if alert.UserID == userID && (!triggeredOnly || alert.Triggered) {
			alerts = append(alerts, alert)
		}
	}
	return alerts, nil
}

func (r memAlerts) Create(ctx context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	stored := *alert
	stored.Asset, stored.User = nil, nil
	r.alerts[alert.ID] = stored
	return nil
}

func (r memAlerts) Update(ctx context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.alerts[alert.ID]
	if !ok || stored.UserID != alert.UserID {
		return domain.ErrNotFound
	}
	stored.Direction = alert.Direction
	stored.TargetPrice = alert.TargetPrice
	r.alerts[alert.ID] = stored
	return nil
}

func (r memAlerts) Delete(ctx context.Context, alertID, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.alerts[alertID]
	if !ok || stored.UserID != userID {
		return domain.ErrNotFound
	}
	delete(r.alerts, alertID)
	return nil
}

func (r memAlerts) MarkTriggered(ctx context.Context, alertID uuid.UUID, price decimal.Decimal, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markCalls++
	if err := r.markErr[alertID]; err != nil {
		return false, err
	}
	alert, ok := r.alerts[alertID]
	if !ok || alert.Triggered {
		return false, nil
	}
	alert.Triggered = true
	alert.TriggeredPrice = &price
	alert.TriggeredAt = &at
	r.alerts[alertID] = alert
	return true, nil
}

type memUsers struct{ *memStore }

func (r memUsers) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

func (r memUsers) GetByTelegramID(ctx context.Context, telegramUserID int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.TelegramUserID != nil && *user.TelegramUserID == telegramUserID {
			return &user, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r memUsers) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.users[user.ID] = *user
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.TriggerEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, event domain.TriggerEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []domain.TriggerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.TriggerEvent(nil), p.events...)
}

// MockPriceSource is a testify mock of domain.PriceSource.
type MockPriceSource struct {
	mock.Mock
}

func (m *MockPriceSource) FetchPrices(ctx context.Context, assetIDs []string) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx, assetIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

// staticPrices serves a mutable price table.
type staticPrices struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func (s *staticPrices) set(id string, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prices == nil {
		s.prices = make(map[string]decimal.Decimal)
	}
	s.prices[id] = decimal.NewFromInt(price)
}

func (s *staticPrices) FetchPrices(ctx context.Context, assetIDs []string) (map[string]decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]decimal.Decimal)
	for _, id := range assetIDs {
		if price, ok := s.prices[id]; ok {
			out[id] = price
		}
	}
	return out, nil
}

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }
