package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// Pinger is a dependency that can report reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter exposes a circuit breaker state
type BreakerReporter interface {
	BreakerState() gobreaker.State
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	cache   Pinger
	breaker BreakerReporter
	logger  *logrus.Logger
}

// NewHealthHandler creates a new health handler. Either dependency may be
// nil when it is not configured.
func NewHealthHandler(cache Pinger, breaker BreakerReporter, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		cache:   cache,
		breaker: breaker,
		logger:  logger,
	}
}

// GetHealth returns the service health
func (h *HealthHandler) GetHealth(c *gin.Context) {
	response := HealthStatus{
		Status:    "ok",
		Service:   "rotation-optimizer",
		Timestamp: time.Now(),
		Checks:    make(map[string]string),
	}

	// Redis only speeds up relation builds, so a failure degrades
	if h.cache != nil {
		if err := h.cache.Ping(c.Request.Context()); err != nil {
			response.Status = "degraded"
			response.Checks["redis"] = "failed: " + err.Error()
			h.logger.WithError(err).Warn("Relation cache unreachable")
		} else {
			response.Checks["redis"] = "ok"
		}
	} else {
		response.Checks["redis"] = "not_configured"
	}

	if h.breaker != nil {
		state := h.breaker.BreakerState()
		response.Checks["fangraphs"] = state.String()
		if state == gobreaker.StateOpen {
			response.Status = "degraded"
		}
	} else {
		response.Checks["fangraphs"] = "not_configured"
	}

	c.JSON(http.StatusOK, response)
}
