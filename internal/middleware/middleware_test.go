package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/care-api/pkg/logger"
)

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Recovery(logger.Nop()))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(ContextRequestID)) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })
	return r
}

func TestRequestIDKeepsIncomingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(HeaderXRequestID, "abc-123")
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))
}

func TestRequestIDGeneratesOne(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.NotEmpty(t, w.Header().Get(HeaderXRequestID))
	assert.Equal(t, w.Header().Get(HeaderXRequestID), w.Body.String())
}

func TestRecoveryReturns500(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}
