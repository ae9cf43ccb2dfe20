package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/care-api/internal/middleware"
	"github.com/jwalitptl/care-api/pkg/logger"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

const checkTimeout = 2 * time.Second

// Handler serves the relay's health and metrics endpoints.
type Handler struct {
	checks   map[string]Check
	gatherer prometheus.Gatherer
}

// NewHandler creates a new handler instance
func NewHandler(gatherer prometheus.Gatherer, checks map[string]Check) *Handler {
	return &Handler{checks: checks, gatherer: gatherer}
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "UP",
		"time":   time.Now().UTC(),
	})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := gin.H{}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "UP"
	}

	state := "UP"
	if status != http.StatusOK {
		state = "DOWN"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": results,
		"time":   time.Now().UTC(),
	})
}

func (h *Handler) MetricsHandler(c *gin.Context) {
	promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
}

// NewOpsRouter mounts the handler on a bare gin engine.
func NewOpsRouter(h *Handler, log *logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(log))

	health := r.Group("/health")
	{
		health.GET("/live", h.LivenessCheck)
		health.GET("/ready", h.ReadinessCheck)
	}
	r.GET("/metrics", h.MetricsHandler)
	return r
}
