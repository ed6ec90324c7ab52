package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shieldforce/guard-dispatch/internal/middleware"
	"github.com/shieldforce/guard-dispatch/internal/models"
	"github.com/shieldforce/guard-dispatch/internal/services"
	"github.com/sirupsen/logrus"
)

// statusForKind maps an engine failure to an HTTP status
func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindInvalidTransition, services.KindAlreadyFilled, services.KindInvalidState:
		return http.StatusConflict
	case services.KindUnauthorized:
		return http.StatusForbidden
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err in the API's error shape. Engine errors keep
// their kind as the code; anything else is an opaque 500.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	if engineErr, ok := services.AsEngineError(err); ok {
		c.JSON(statusForKind(engineErr.Kind), gin.H{
			"error":          engineErr.Kind,
			"message":        engineErr.Message,
			"code":           engineErr.Kind,
			"current_state":  engineErr.CurrentState,
			"allowed_states": engineErr.AllowedStates,
		})
		return
	}

	logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "internal_error",
		"message": "An unexpected error occurred",
		"code":    "INTERNAL_ERROR",
	})
}

// respondOutcome writes a state-machine style result. body is what gets
// serialized (it usually embeds tr); the status comes from tr.Error.
func respondOutcome(c *gin.Context, logger *logrus.Logger, body interface{}, tr *services.TransitionResult, err error) {
	if err != nil {
		respondError(c, logger, err)
		return
	}
	if tr != nil && !tr.Success && tr.Error != nil {
		c.JSON(statusForKind(tr.Error.Kind), body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "validation_error",
		"message": message,
		"code":    "INVALID_REQUEST",
	})
}

// actorFrom returns the authenticated caller, writing a 401 if missing
func actorFrom(c *gin.Context) (models.Actor, bool) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "User context not found",
			"code":    "MISSING_USER_CONTEXT",
		})
		return models.Actor{}, false
	}
	return userCtx.Actor(), true
}

// uuidParam parses a path parameter, writing a 400 on failure
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
