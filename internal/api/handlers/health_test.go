package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/rotation-optimizer/pkg/logger"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type breakerState gobreaker.State

func (b breakerState) BreakerState() gobreaker.State { return gobreaker.State(b) }

func getHealth(t *testing.T, h *HealthHandler) HealthStatus {
	t.Helper()
	router := gin.New()
	router.GET("/health", h.GetHealth)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	return status
}

func TestGetHealth(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	status := getHealth(t, NewHealthHandler(nil, nil, logger.NewDiscardLogger()))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "not_configured", status.Checks["redis"])

	status = getHealth(t, NewHealthHandler(ok, breakerState(gobreaker.StateClosed), logger.NewDiscardLogger()))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "closed", status.Checks["fangraphs"])

	status = getHealth(t, NewHealthHandler(down, nil, logger.NewDiscardLogger()))
	assert.Equal(t, "degraded", status.Status)
	assert.Contains(t, status.Checks["redis"], "connection refused")

	status = getHealth(t, NewHealthHandler(ok, breakerState(gobreaker.StateOpen), logger.NewDiscardLogger()))
	assert.Equal(t, "degraded", status.Status)
}
