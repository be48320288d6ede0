package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/authgate/internal/auth"
)

const (
	msgConfiguration      = "Server configuration error."
	msgStoreUnavailable   = "Database connection failed. Please try again later."
	msgValidation         = "Please provide all required fields."
	msgInvalidCredentials = "Invalid credentials."
	msgTokenGeneration    = "Failed to generate authentication token."
	msgInternal           = "Internal server error."
	msgRouteNotFound      = "API route not found."
)

type errorResponse struct {
	Message string `json:"message"`
}

// failure is the client-facing rendering of a service error.
type failure struct {
	status  int
	message string
	outcome string
}

func translateError(err error) failure {
	var conflict *auth.ConflictError

	switch {
	case errors.Is(err, auth.ErrConfiguration):
		return failure{http.StatusInternalServerError, msgConfiguration, "configuration"}
	case errors.Is(err, auth.ErrStoreUnavailable):
		return failure{http.StatusServiceUnavailable, msgStoreUnavailable, "store_unavailable"}
	case errors.As(err, &conflict):
		return failure{http.StatusConflict, conflict.DisplayField() + " already exists.", "conflict"}
	case errors.Is(err, auth.ErrValidation):
		return failure{http.StatusBadRequest, msgValidation, "validation"}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return failure{http.StatusUnauthorized, msgInvalidCredentials, "invalid_credentials"}
	case errors.Is(err, auth.ErrTokenGeneration):
		return failure{http.StatusInternalServerError, msgTokenGeneration, "token_generation"}
	default:
		return failure{http.StatusInternalServerError, msgInternal, "internal"}
	}
}

// writeServiceError renders err for operation and records the outcome.
func (h *Handler) writeServiceError(c *gin.Context, operation string, err error) {
	f := translateError(err)
	h.metrics.ObserveAuth(operation, f.outcome)

	if f.status >= http.StatusInternalServerError {
		h.logger.Error("auth request failed",
			zap.String("operation", operation),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Int("status", f.status),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(f.status, errorResponse{Message: f.message})
}

func handleNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, errorResponse{Message: msgRouteNotFound})
}

func recoverPanic(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Message: msgInternal})
	})
}
