// Package httpapi exposes health, asset and live alert endpoints over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/NasaVasa/pricewatch/internal/domain"
	"github.com/NasaVasa/pricewatch/internal/scheduler"
	"github.com/NasaVasa/pricewatch/internal/usecase"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const pingTimeout = 2 * time.Second

// PingFunc reports whether the database is reachable.
type PingFunc func(ctx context.Context) error

type SchedulerStatus interface {
	Status() scheduler.Status
}

type PriceService interface {
	Status(ctx context.Context) (usecase.PriceStatus, error)
	RunCycle(ctx context.Context) (usecase.CycleReport, error)
	Refresh(ctx context.Context, assetIDs []string) (usecase.CycleReport, error)
	Running() bool
}

type Server struct {
	engine    *gin.Engine
	http      *http.Server
	ping      PingFunc
	scheduler SchedulerStatus
	prices    PriceService
	hub       *Hub
	logger    *zap.Logger
}

func NewServer(addr string, ping PingFunc, sched SchedulerStatus, prices PriceService, hub *Hub, logger *zap.Logger) *Server {
	s := &Server{
		engine:    gin.New(),
		ping:      ping,
		scheduler: sched,
		prices:    prices,
		hub:       hub,
		logger:    logger,
	}
	s.engine.Use(gin.Recovery(), requestLogger(logger))
	s.routes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.http.Shutdown(ctx)
}

func (s *Server) routes() {
	s.engine.GET("/health", s.health)
	s.engine.GET("/health/scheduler", s.schedulerStatus)
	s.engine.GET("/assets", s.listAssets)
	s.engine.POST("/assets/refresh", s.refreshAssets)
	s.engine.GET("/ws/alerts", s.hub.serveWS)
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	code := http.StatusOK
	database := gin.H{"status": "ok"}
	if err := s.ping(ctx); err != nil {
		code = http.StatusServiceUnavailable
		database = gin.H{"status": "unavailable", "error": err.Error()}
	}

	body := gin.H{
		"status":    "ok",
		"database":  database,
		"scheduler": newSchedulerView(s.scheduler.Status(), s.prices.Running()),
	}
	if code != http.StatusOK {
		body["status"] = "degraded"
	}

	if status, err := s.prices.Status(ctx); err == nil {
		body["prices"] = gin.H{"total": status.Total, "last_updated": status.LastUpdated}
	}
	c.JSON(code, body)
}

func (s *Server) schedulerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, newSchedulerView(s.scheduler.Status(), s.prices.Running()))
}

func (s *Server) listAssets(c *gin.Context) {
	status, err := s.prices.Status(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list assets", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assets"})
		return
	}

	assets := make([]assetView, 0, len(status.Assets))
	for _, asset := range status.Assets {
		assets = append(assets, newAssetView(asset))
	}
	c.JSON(http.StatusOK, gin.H{"data": assets, "total": status.Total, "last_updated": status.LastUpdated})
}

type refreshRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) refreshAssets(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	var (
		report usecase.CycleReport
		err    error
	)
	if len(req.IDs) == 0 {
		report, err = s.prices.RunCycle(c.Request.Context())
	} else {
		report, err = s.prices.Refresh(c.Request.Context(), req.IDs)
	}

	switch {
	case errors.Is(err, usecase.ErrCycleInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		s.logger.Warn("manual price refresh failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{
			"assets":      report.Assets,
			"priced":      report.Priced,
			"updated":     report.Updated,
			"triggered":   report.Triggered,
			"failed":      report.Failed,
			"duration_ms": report.Duration.Milliseconds(),
		})
	}
}

type schedulerView struct {
	IsRunning        bool       `json:"is_running"`
	UpdateInProgress bool       `json:"update_in_progress"`
	Interval         string     `json:"interval"`
	NextUpdate       *time.Time `json:"next_update,omitempty"`
	LastRunAt        *time.Time `json:"last_run_at,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
}

func newSchedulerView(status scheduler.Status, inProgress bool) schedulerView {
	return schedulerView{
		IsRunning:        status.IsRunning,
		UpdateInProgress: inProgress,
		Interval:         status.Interval.String(),
		NextUpdate:       status.NextUpdate,
		LastRunAt:        status.LastRunAt,
		LastError:        status.LastError,
	}
}

type assetView struct {
	ID           string     `json:"id"`
	Symbol       string     `json:"symbol"`
	Name         string     `json:"name"`
	CurrentPrice *string    `json:"current_price"`
	LastUpdated  *time.Time `json:"last_updated"`
}

func newAssetView(asset domain.Asset) assetView {
	view := assetView{
		ID:          asset.ID,
		Symbol:      asset.Symbol,
		Name:        asset.Name,
		LastUpdated: asset.LastUpdated,
	}
	if asset.CurrentPrice != nil {
		price := asset.CurrentPrice.String()
		view.CurrentPrice = &price
	}
	return view
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		start := time.Now()
		c.Next()
		if path == "/health" {
			return
		}

		duration := time.Since(start)
		if c.Writer.Status() >= http.StatusBadRequest || duration > time.Second {
			logger.Warn(
				"http request",
				zap.String("method", c.Request.Method),
				zap.String("path", path),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("duration", duration),
			)
			return
		}
		logger.Debug("http request", zap.String("method", c.Request.Method), zap.String("path", path), zap.Int("status", c.Writer.Status()))
	}
}
