package handler

import (
	"errors"
	"net/http"

	"projectcompanion/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps domain errors onto HTTP statuses: validation failures to
// 400, missing entities to 404, everything else to 500.
func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	var verr *store.ValidationError
	if errors.As(err, &verr) {
		logger.Warn(op+": validation failed",
			zap.String("field", verr.Field),
			zap.String("reason", verr.Reason),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
		return
	}

	var nerr *store.NotFoundError
	if errors.As(err, &nerr) {
		logger.Warn(op+": not found",
			zap.String("kind", nerr.Kind),
			zap.String("id", nerr.ID),
		)
		c.JSON(http.StatusNotFound, gin.H{"error": nerr.Error()})
		return
	}

	logger.Error(op+": failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
