package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/rotation-optimizer/internal/api/handlers"
	"github.com/stitts-dev/rotation-optimizer/internal/api/middleware"
	"github.com/stitts-dev/rotation-optimizer/pkg/metrics"
)

// NewRouter builds the HTTP router
func NewRouter(
	rotationHandler *handlers.RotationHandler,
	healthHandler *handlers.HealthHandler,
	m *metrics.Manager,
	logger *logrus.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestMetrics(m, logger))

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/rotations", rotationHandler.SolveRotation)
		apiV1.GET("/franchises", rotationHandler.ListFranchises)
	}

	router.GET("/health", healthHandler.GetHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{})))

	return router
}
