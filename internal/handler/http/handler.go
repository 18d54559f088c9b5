package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/gateway/coincap"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/handler/middleware"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/models"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/view"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/websocket"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/lib/errs"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorilla_ws "github.com/gorilla/websocket"
)

const (
	refreshCommand = "refresh"
	refreshTimeout = 10 * time.Second
)

type Handler struct {
	fetcher   coincap.Fetcher
	feed      view.LiveFeed
	search    *view.SearchView
	wsManager *websocket.Manager
	log       *slog.Logger
	upgrader  gorilla_ws.Upgrader
}

func NewHandler(fetcher coincap.Fetcher, feed view.LiveFeed, wsManager *websocket.Manager, log *slog.Logger) *Handler {
	return &Handler{
		fetcher:   fetcher,
		feed:      feed,
		search:    view.NewSearchView(fetcher, log),
		wsManager: wsManager,
		log:       log,
		upgrader: gorilla_ws.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(middleware.RequestLogger(h.log))
	router.GET("/healthz", h.healthz)

	api := router.Group("/api/v1")
	{
		api.GET("/rates", h.getRates)
		api.GET("/rates/:id", h.getRate)
		api.GET("/search", h.searchAssets)

		ws := api.Group("/ws")
		{
			ws.GET("/rates", h.wsRates)
			ws.GET("/rates/:id", h.wsRate)
		}
	}
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": h.wsManager.Count()})
}

func (h *Handler) getRates(c *gin.Context) {
	v := view.NewListView(h.fetcher, nil, h.log)
	defer v.Unmount()

	if err := v.Mount(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, v.Render())
}

func (h *Handler) getRate(c *gin.Context) {
	interval, err := models.ParseInterval(c.Query("interval"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	v := view.NewDetailView(h.fetcher, nil, h.log)
	defer v.Unmount()

	if err := v.Mount(c.Request.Context(), c.Param("id"), interval); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, v.Render())
}

func (h *Handler) searchAssets(c *gin.Context) {
	state, err := h.search.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(statusFor(err), state)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *Handler) wsRates(c *gin.Context) {
	v := view.NewListView(h.fetcher, h.feed, h.log)

	client, ok := h.upgrade(c, v.ID())
	if !ok {
		v.Unmount()
		return
	}
	client.Render = func() any { return v.Render() }
	client.Unmount = v.Unmount
	client.OnMessage = func(msg []byte) {
		if string(bytes.TrimSpace(msg)) != refreshCommand {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := v.Refresh(ctx); err != nil {
			h.log.Debug("ws: refresh failed", "clientID", client.ID, "error", err)
		}
	}
	if !h.serve(client) {
		return
	}

	v.OnChange(client.Push)
	if err := v.Mount(c.Request.Context()); err != nil {
		h.log.Debug("ws: list mounted in error state", "clientID", client.ID, "error", err)
	}
}

func (h *Handler) wsRate(c *gin.Context) {
	interval, err := models.ParseInterval(c.Query("interval"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	v := view.NewDetailView(h.fetcher, h.feed, h.log)

	client, ok := h.upgrade(c, v.ID())
	if !ok {
		v.Unmount()
		return
	}
	client.Render = func() any { return v.Render() }
	client.Unmount = v.Unmount
	if !h.serve(client) {
		return
	}

	v.OnChange(client.Push)
	if err := v.Mount(c.Request.Context(), c.Param("id"), interval); err != nil {
		h.log.Debug("ws: detail mounted in error state", "clientID", client.ID, "error", err)
	}
}

func (h *Handler) upgrade(c *gin.Context, id uuid.UUID) (*websocket.Client, bool) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("failed to upgrade connection", "error", err)
		return nil, false
	}

	return websocket.NewClient(h.wsManager, conn, id), true
}

// serve registers client and starts its pumps.
func (h *Handler) serve(client *websocket.Client) bool {
	if !h.wsManager.Register(client) {
		h.log.Warn("ws: manager stopped, rejecting client", "clientID", client.ID)
		client.Unmount()
		client.Conn.Close()
		return false
	}

	go client.Writer()
	go client.Reader()

	return true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.log.Error("unexpected handler error", slog.Any("error", err))
		msg = errs.ErrInternal.Error()
	}

	c.JSON(status, gin.H{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrFetchAssets),
		errors.Is(err, errs.ErrFetchAsset),
		errors.Is(err, errs.ErrFetchHistory):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
