package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var ErrCycleInProgress = errors.New("price update cycle already in progress")

// Evaluator checks the alerts of one asset against its new price.
type Evaluator interface {
	Evaluate(ctx context.Context, assetID string, price decimal.Decimal) ([]domain.TriggerEvent, error)
}

type CycleReport struct {
	Assets    int
	Priced    int
	Updated   int
	Triggered int
	Failed    int
	Duration  time.Duration
}

type PriceStatus struct {
	Total       int
	LastUpdated *time.Time
	Assets      []domain.Asset
}

// PriceUpdater runs update cycles: fetch prices for the catalog, store them
// and evaluate alerts per asset. At most one cycle runs at a time.
type PriceUpdater struct {
	assets      domain.AssetRepository
	source      domain.PriceSource
	evaluator   Evaluator
	logger      *zap.Logger
	now         func() time.Time
	concurrency int

	running atomic.Bool
}

type UpdaterOption func(*PriceUpdater)

func WithUpdaterClock(now func() time.Time) UpdaterOption {
	return func(u *PriceUpdater) { u.now = now }
}

func WithAssetConcurrency(n int) UpdaterOption {
	return func(u *PriceUpdater) {
		if n > 0 {
			u.concurrency = n
		}
	}
}

func NewPriceUpdater(assets domain.AssetRepository, source domain.PriceSource, evaluator Evaluator, logger *zap.Logger, opts ...UpdaterOption) *PriceUpdater {
	u := &PriceUpdater{
		assets:      assets,
		source:      source,
		evaluator:   evaluator,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// RunCycle updates every tracked asset. A fetch failure aborts the cycle and
// is returned; per-asset failures are logged and counted in the report.
func (u *PriceUpdater) RunCycle(ctx context.Context) (CycleReport, error) {
	if !u.running.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInProgress
	}
	defer u.running.Store(false)

	assets, err := u.assets.ListAll(ctx)
	if err != nil {
		return CycleReport{}, fmt.Errorf("list assets: %w", err)
	}
	return u.run(ctx, assets)
}

// Refresh runs a cycle restricted to the given asset ids.
func (u *PriceUpdater) Refresh(ctx context.Context, assetIDs []string) (CycleReport, error) {
	if !u.running.CompareAndSwap(false, true) {
		return CycleReport{}, ErrCycleInProgress
	}
	defer u.running.Store(false)

	all, err := u.assets.ListAll(ctx)
	if err != nil {
		return CycleReport{}, fmt.Errorf("list assets: %w", err)
	}

	wanted := make(map[string]struct{}, len(assetIDs))
	for _, id := range assetIDs {
		wanted[id] = struct{}{}
	}
	selected := make([]domain.Asset, 0, len(assetIDs))
	for _, asset := range all {
		if _, ok := wanted[asset.ID]; ok {
			selected = append(selected, asset)
		}
	}
	if len(selected) == 0 {
		u.logger.Warn("no tracked assets match refresh request", zap.Strings("asset_ids", assetIDs))
	}
	return u.run(ctx, selected)
}

func (u *PriceUpdater) Running() bool {
	return u.running.Load()
}

func (u *PriceUpdater) Status(ctx context.Context) (PriceStatus, error) {
	assets, err := u.assets.ListAll(ctx)
	if err != nil {
		return PriceStatus{}, fmt.Errorf("list assets: %w", err)
	}
	status := PriceStatus{Total: len(assets), Assets: assets}
	for _, asset := range assets {
		if asset.LastUpdated == nil {
			continue
		}
		if status.LastUpdated == nil || asset.LastUpdated.After(*status.LastUpdated) {
			last := *asset.LastUpdated
			status.LastUpdated = &last
		}
	}
	return status, nil
}

func (u *PriceUpdater) run(ctx context.Context, assets []domain.Asset) (CycleReport, error) {
	start := time.Now()
	report := CycleReport{Assets: len(assets)}
	if len(assets) == 0 {
		u.logger.Warn("no tracked assets, skipping price update")
		return report, nil
	}

	ids := make([]string, 0, len(assets))
	for _, asset := range assets {
		ids = append(ids, asset.ID)
	}

	prices, err := u.source.FetchPrices(ctx, ids)
	if err != nil {
		return report, fmt.Errorf("fetch prices: %w", err)
	}

	var (
		updated, triggered, failed atomic.Int64
		group                      errgroup.Group
	)
	group.SetLimit(u.concurrency)
	for _, asset := range assets {
		price, ok := prices[asset.ID]
		if !ok || !price.IsPositive() {
			u.logger.Debug("no price for asset this cycle", zap.String("asset_id", asset.ID))
			continue
		}
		report.Priced++

		group.Go(func() error {
			if err := u.assets.UpdatePrice(ctx, asset.ID, price, u.now()); err != nil {
				failed.Add(1)
				u.logger.Warn("failed to store asset price", zap.String("asset_id", asset.ID), zap.Error(err))
				return nil
			}
			updated.Add(1)

			events, err := u.evaluator.Evaluate(ctx, asset.ID, price)
			if err != nil {
				failed.Add(1)
				u.logger.Error("failed to evaluate alerts", zap.String("asset_id", asset.ID), zap.Error(err))
				return nil
			}
			triggered.Add(int64(len(events)))
			return nil
		})
	}
	_ = group.Wait()

	report.Updated = int(updated.Load())
	report.Triggered = int(triggered.Load())
	report.Failed = int(failed.Load())
	report.Duration = time.Since(start)

	u.logger.Info(
		"price update completed",
		zap.Int("assets", report.Assets),
		zap.Int("priced", report.Priced),
		zap.Int("updated", report.Updated),
		zap.Int("triggered", report.Triggered),
		zap.Int("failed", report.Failed),
		zap.String("success_rate", fmt.Sprintf("%.1f%%", float64(report.Updated)/float64(report.Assets)*100)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}
