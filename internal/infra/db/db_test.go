package db

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// openTestDB returns an isolated in-memory database. A single connection keeps
// the shared-cache database alive and serializes writers.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	conn, err := OpenDialector(sqlite.Open(dsn), PoolConfig{MaxIdleConns: 1, MaxOpenConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(conn) })
	return conn
}

type fixture struct {
	assets *AssetRepository
	alerts *AlertRepository
	users  *UserRepository
}

func newFixture(t *testing.T) fixture {
	conn := openTestDB(t)
	return fixture{
		assets: NewAssetRepository(conn),
		alerts: NewAlertRepository(conn),
		users:  NewUserRepository(conn),
	}
}

func (f fixture) seedAsset(t *testing.T, id, symbol, name string) *domain.Asset {
	t.Helper()
	asset := &domain.Asset{ID: id, Symbol: symbol, Name: name}
	require.NoError(t, f.assets.Upsert(context.Background(), asset))
	return asset
}

func (f fixture) seedUser(t *testing.T, email, firstName string) *domain.User {
	t.Helper()
	user := &domain.User{Email: email, FirstName: firstName}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f fixture) seedAlert(t *testing.T, userID uuid.UUID, assetID string, direction domain.Direction, target string) *domain.Alert {
	t.Helper()
	alert := &domain.Alert{
		UserID:      userID,
		AssetID:     assetID,
		Direction:   direction,
		TargetPrice: decimal.RequireFromString(target),
	}
	require.NoError(t, f.alerts.Create(context.Background(), alert))
	return alert
}

func mustTime(t *testing.T) time.Time {
	t.Helper()
	return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
}
