package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/NasaVasa/pricewatch/internal/config"
	"github.com/NasaVasa/pricewatch/internal/delivery/httpapi"
	"github.com/NasaVasa/pricewatch/internal/delivery/telegram"
	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/infra/coingecko"
	"github.com/NasaVasa/pricewatch/internal/infra/db"
	"github.com/NasaVasa/pricewatch/internal/infra/log"
	"github.com/NasaVasa/pricewatch/internal/notify"
	"github.com/NasaVasa/pricewatch/internal/scheduler"
	"github.com/NasaVasa/pricewatch/internal/usecase"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	db        *gorm.DB
	bus       *notify.Bus
	updater   *usecase.PriceUpdater
	scheduler *scheduler.UpdateScheduler
	server    *httpapi.Server
	bot       *telegram.Bot
	logger    *zap.Logger

	shutdownOnce sync.Once
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := log.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return nil, err
	}

	a, err := build(ctx, cfg, dbConn, logger)
	if err != nil {
		_ = db.Close(dbConn)
		return nil, err
	}

	if cfg.TelegramBotToken != "" {
		api, err := telegram.NewAPI(cfg.TelegramBotToken)
		if err != nil {
			_ = db.Close(dbConn)
			return nil, err
		}
		users := db.NewUserRepository(dbConn)
		alerts := db.NewAlertRepository(dbConn)
		assets := db.NewAssetRepository(dbConn)
		handlers := telegram.NewHandlers(
			usecase.NewUserUsecase(users),
			usecase.NewAlertUsecase(users, alerts, assets, logger),
			usecase.NewAssetUsecase(assets, logger),
			api,
			logger,
		)
		a.bot = telegram.NewBot(api, handlers, cfg.TelegramPollTimeout)
		a.bus.Subscribe("telegram", telegram.NewNotifier(api, logger).Handle)
	} else {
		logger.Info("telegram bot token not set, chat surface disabled")
	}

	return a, nil
}

// build wires everything that only needs the database.
func build(ctx context.Context, cfg config.Config, dbConn *gorm.DB, logger *zap.Logger) (*App, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	assetRepo := db.NewAssetRepository(dbConn)
	alertRepo := db.NewAlertRepository(dbConn)

	seed := make([]domain.Asset, 0, len(catalog))
	for _, tracked := range catalog {
		seed = append(seed, domain.Asset{ID: tracked.ID, Symbol: tracked.Symbol, Name: tracked.Name})
	}
	if err := usecase.NewAssetUsecase(assetRepo, logger).SeedCatalog(ctx, seed); err != nil {
		return nil, err
	}

	market := coingecko.NewClient(
		cfg.CoinGeckoBaseURL,
		cfg.CoinGeckoPrimaryTimeout,
		cfg.CoinGeckoFallbackTimeout,
		logger.Named("coingecko"),
		coingecko.WithUserAgent(cfg.CoinGeckoUserAgent),
	)

	bus := notify.NewBus(logger.Named("notify"), notify.WithHandlerTimeout(cfg.NotifyHandlerTimeout))
	hub := httpapi.NewHub(logger.Named("stream"))
	bus.Subscribe("email", notify.EmailSimulator(logger.Named("email"), cfg.EmailSimulatorDelay))
	bus.Subscribe("push", notify.PushSimulator(logger.Named("push"), cfg.PushSimulatorDelay))
	bus.Subscribe("websocket", hub.Handle)

	evaluator := usecase.NewAlertEvaluator(alertRepo, bus, logger)
	updater := usecase.NewPriceUpdater(assetRepo, market, evaluator, logger, usecase.WithAssetConcurrency(cfg.PriceUpdateConcurrency))
	sched := scheduler.New(cfg.UpdateInterval(), updateJob(updater, logger), logger.Named("scheduler"))

	ping := func(ctx context.Context) error { return db.Ping(ctx, dbConn) }
	server := httpapi.NewServer(cfg.HTTPAddr, ping, sched, updater, hub, logger.Named("http"))

	return &App{
		db:        dbConn,
		bus:       bus,
		updater:   updater,
		scheduler: sched,
		server:    server,
		logger:    logger,
	}, nil
}

func updateJob(updater *usecase.PriceUpdater, logger *zap.Logger) scheduler.Job {
	return func(ctx context.Context) error {
		_, err := updater.RunCycle(ctx)
		if errors.Is(err, usecase.ErrCycleInProgress) {
			logger.Warn("previous price update still running, skipping tick")
			return nil
		}
		return err
	}
}

// Run blocks until ctx is cancelled or the HTTP server fails.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("pricewatch service starting")
	if err := a.scheduler.Initialize(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(a.server.Run)
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	if a.bot != nil {
		group.Go(func() error { return a.bot.Start(groupCtx) })
	}

	a.logger.Info("pricewatch service started", zap.Duration("update_interval", a.scheduler.Status().Interval))
	return group.Wait()
}

func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		a.logger.Info("pricewatch service shutting down")
		a.scheduler.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("failed to stop http server", zap.Error(err))
		}
		if err := a.bus.Wait(ctx); err != nil {
			a.logger.Warn("notifications still in flight at shutdown", zap.Error(err))
		}
		if err := db.Close(a.db); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
		_ = a.logger.Sync()
	})
}
