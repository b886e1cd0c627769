package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinesync/internal/core/domain"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusCollector(reg)

	p.RoomCreated()
	p.JoinAttempt("ok")
	p.JoinAttempt("full")
	p.JoinAttempt("ok")
	p.ConnectionOpened()
	p.ConnectionOpened()
	p.ConnectionClosed()
	p.EventDelivered("chat", 3)
	p.StreamTransition(domain.StreamPaused)

	w := httptest.NewRecorder()
	p.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	for _, line := range []string{
		"cinesync_rooms_created_total 1",
		`cinesync_room_join_attempts_total{result="ok"} 2`,
		`cinesync_room_join_attempts_total{result="full"} 1`,
		"cinesync_websocket_connections 1",
		"cinesync_websocket_connections_total 2",
		`cinesync_stream_transitions_total{status="PAUSED"} 1`,
		`cinesync_event_fanout_sockets_count{kind="chat"} 1`,
	} {
		assert.True(t, strings.Contains(body, line), line)
	}
}

func TestHealthChecker_Readiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHealthChecker()
	h.AddCheck("database", func(ctx context.Context) error { return nil }, time.Second)

	router := gin.New()
	router.GET("/ready", h.ReadinessHandler)
	router.GET("/health", h.LivenessHandler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	h.AddCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") }, time.Second)
	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["database"])
	assert.Equal(t, "connection refused", status.Checks["redis"])

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthChecker_CheckTimeout(t *testing.T) {
	h := NewHealthChecker()
	h.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 20*time.Millisecond)

	status := h.CheckAll(context.Background())
	assert.Equal(t, "unhealthy", status.Status)
}
