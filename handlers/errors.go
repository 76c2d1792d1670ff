package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"traffic-counts-api/analytics"

	"github.com/gin-gonic/gin"
)

// respondError maps analytics errors to HTTP: input problems are 400,
// everything else is a 500 without internal detail.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, analytics.ErrInvalidRange), errors.Is(err, analytics.ErrInvalidDate):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
	}
}
