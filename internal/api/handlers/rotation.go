package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/rotation-optimizer/internal/franchise"
	"github.com/stitts-dev/rotation-optimizer/internal/providers"
	"github.com/stitts-dev/rotation-optimizer/internal/rotation"
	"github.com/stitts-dev/rotation-optimizer/internal/services"
	"github.com/stitts-dev/rotation-optimizer/internal/teammates"
)

// RotationSolver is the part of the rotation service the handler needs
type RotationSolver interface {
	Solve(ctx context.Context, req services.RotationRequest) (*services.RotationResult, error)
}

// RotationHandler handles rotation endpoints
type RotationHandler struct {
	service RotationSolver
	logger  *logrus.Logger
	timeout time.Duration
}

// NewRotationHandler creates a new rotation handler. A positive timeout
// bounds every solve request.
func NewRotationHandler(service RotationSolver, logger *logrus.Logger, timeout time.Duration) *RotationHandler {
	return &RotationHandler{
		service: service,
		logger:  logger,
		timeout: timeout,
	}
}

// SolveRotation handles POST /rotations
func (h *RotationHandler) SolveRotation(c *gin.Context) {
	var req services.RotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request format",
			Code:  "INVALID_REQUEST",
			Details: map[string]string{
				"validation_error": err.Error(),
			},
		})
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.service.Solve(ctx, req)
	if err != nil {
		status, code := classify(err)
		entry := h.logger.WithError(err).WithField("franchise", req.Franchise)
		if status >= http.StatusInternalServerError {
			entry.Error("Rotation solve failed")
		} else {
			entry.Warn("Rotation request rejected")
		}
		c.JSON(status, ErrorResponse{
			Error: err.Error(),
			Code:  code,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListFranchises handles GET /franchises
func (h *RotationHandler) ListFranchises(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"franchises": franchise.All(),
	})
}

// classify maps service errors onto HTTP statuses
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, franchise.ErrUnknownFranchise):
		return http.StatusNotFound, "UNKNOWN_FRANCHISE"
	case errors.Is(err, teammates.ErrDataIntegrity):
		return http.StatusUnprocessableEntity, "DATA_INTEGRITY"
	case providers.IsNotExist(err):
		return http.StatusNotFound, "DATA_NOT_FOUND"
	case errors.Is(err, rotation.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, rotation.ErrInfeasible):
		return http.StatusUnprocessableEntity, "INFEASIBLE"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	}
	return http.StatusInternalServerError, "OPTIMIZATION_ERROR"
}
