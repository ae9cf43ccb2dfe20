package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/care-api/pkg/logger"
	"github.com/jwalitptl/care-api/pkg/metrics"
)

func serve(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	NewOpsRouter(h, logger.Nop()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func ok(context.Context) error { return nil }

func TestLiveness(t *testing.T) {
	w := serve(t, NewHandler(prometheus.NewRegistry(), nil), "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"UP"`)
}

func TestReadiness(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		h := NewHandler(prometheus.NewRegistry(), map[string]Check{"database": ok, "broker": ok})
		w := serve(t, h, "/health/ready")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("broker down", func(t *testing.T) {
		h := NewHandler(prometheus.NewRegistry(), map[string]Check{
			"database": ok,
			"broker":   func(context.Context) error { return errors.New("dial tcp: connection refused") },
		})
		w := serve(t, h, "/health/ready")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "DOWN", body.Status)
		assert.Equal(t, "UP", body.Checks["database"])
		assert.Contains(t, body.Checks["broker"], "connection refused")
	})
}

func TestMetricsExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "care")
	m.OutboxEventsProcessed.Add(3)

	w := serve(t, NewHandler(reg, nil), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "care_outbox_events_processed_total 3")
}
