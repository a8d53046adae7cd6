// Package mockapi serves a deterministic synthetic timeline over the same
// endpoints the real API exposes. It exists for demos and local development
// against predictable data, including optional injected rate limiting.
package mockapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/feedcomb/app/timeline"
)

type Handler struct {
	store *Store

	// RateLimitEvery makes every Nth request fail with 429 when > 0.
	rateLimitEvery int
	requests       atomic.Int64
}

func NewHandler(store *Store, rateLimitEvery int) *Handler {
	return &Handler{
		store:          store,
		rateLimitEvery: rateLimitEvery,
	}
}

// NewServer creates a new HTTP server with all routes configured
func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	setupRoutes(r, handler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	r.GET("/api/v1/timelines/home", handler.GetTimeline)
	r.GET("/api/v1/timelines/public", handler.GetTimeline)
	r.GET("/api/v1/timelines/tag/:tag", handler.GetTimeline)
	r.GET("/api/v1/accounts/:id/statuses", handler.GetTimeline)
	r.GET("/api/v1/statuses/:id", handler.GetStatus)
	r.GET("/api/v1/statuses/:id/context", handler.GetStatusContext)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

func (h *Handler) GetTimeline(c *gin.Context) {
	if h.rateLimited(c) {
		return
	}

	params := timeline.CursorParams{
		MaxID:   c.Query("max_id"),
		MinID:   c.Query("min_id"),
		SinceID: c.Query("since_id"),
	}

	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		params.Limit = n
	}

	page := h.store.Page(params)
	slog.Debug("Timeline page served", "path", c.FullPath(), "count", len(page))

	c.JSON(http.StatusOK, page)
}

func (h *Handler) GetStatus(c *gin.Context) {
	if h.rateLimited(c) {
		return
	}

	post, ok := h.store.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	c.JSON(http.StatusOK, post)
}

func (h *Handler) GetStatusContext(c *gin.Context) {
	if h.rateLimited(c) {
		return
	}

	pctx, ok := h.store.Context(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ancestors":   pctx.Ancestors,
		"descendants": pctx.Descendants,
	})
}

func (h *Handler) rateLimited(c *gin.Context) bool {
	if h.rateLimitEvery <= 0 {
		return false
	}

	n := h.requests.Add(1)
	if n%int64(h.rateLimitEvery) != 0 {
		return false
	}

	c.Header("Retry-After", "1")
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
	return true
}
