package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/config"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/gateway/coincap"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/gateway/pricefeed"
	httphandler "github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/handler/http"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/websocket"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/storage/redis"
	"github.com/gin-gonic/gin"
)

type App struct {
	cfg        *config.Config
	log        *slog.Logger
	httpServer *http.Server
	cache      *redis.Cache
	wsManager  *websocket.Manager

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

func New(log *slog.Logger, cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	var fetcher coincap.Fetcher = coincap.NewClient(cfg.CoinCap, log)

	var cache *redis.Cache
	if cfg.Cache.Enabled {
		cache = redis.New(cfg.Cache, log)
		if err := cache.Ping(ctx); err != nil {
			log.Warn("snapshot cache unavailable, serving upstream directly", "error", err)
			cache.Close()
			cache = nil
		} else {
			fetcher = coincap.NewCachedFetcher(fetcher, cache, log)
			log.Info("snapshot cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
		}
	}

	feed := pricefeed.NewClient(cfg.Feed, log)
	wsManager := websocket.NewManager(log)

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())
	httpHandler := httphandler.NewHandler(fetcher, feed, wsManager, log)
	httpHandler.RegisterRoutes(ginEngine)

	httpServer := &http.Server{
		Addr:    net.JoinHostPort("", strconv.FormatUint(uint64(cfg.HTTP.Port), 10)),
		Handler: ginEngine,
	}

	return &App{
		log:        log,
		cfg:        cfg,
		httpServer: httpServer,
		cache:      cache,
		wsManager:  wsManager,
		ctx:        ctx,
		cancel:     cancel,
	}
}

func (a *App) Run() error {
	errChan := make(chan error, 1)
	a.log.Info("starting application components...")

	go func() {
		a.log.Info("websocket manager started")
		a.wsManager.Run(a.ctx)
		a.log.Info("websocket manager stopped")
	}()

	go func() {
		if err := a.runHTTP(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		a.log.Warn("shutting down application due to an error", "error", err)
		a.Stop()
		return err
	case <-a.ctx.Done():
		return nil
	}
}

func (a *App) Stop() {
	a.stopOnce.Do(a.stop)
}

func (a *App) stop() {
	a.log.Info("stopping application components gracefully...")

	// closes every websocket client and with it their feed subscriptions
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.HTTP.Timeout)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("failed to gracefully shutdown HTTP server", "error", err)
	} else {
		a.log.Info("HTTP server stopped")
	}

	if a.cache != nil {
		a.cache.Close()
	}
}

func (a *App) runHTTP() error {
	const op = "app.runHTTP"

	a.log.Info("HTTP server is running", "addr", a.httpServer.Addr)

	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
