package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"traffic-counts-api/analytics"
	"traffic-counts-api/models"
	"traffic-counts-api/store"

	"github.com/gin-gonic/gin"
)

type CountsHandler struct {
	store  *store.Store
	loc    *time.Location
	logger *slog.Logger
}

func NewCountsHandler(s *store.Store, loc *time.Location, logger *slog.Logger) *CountsHandler {
	return &CountsHandler{store: s, loc: loc, logger: logger}
}

func (h *CountsHandler) GetCounts(c *gin.Context) {
	h.listCounts(c, "")
}

func (h *CountsHandler) GetPedestrianCounts(c *gin.Context) {
	h.listCounts(c, models.ClassPedestrian)
}

func (h *CountsHandler) listCounts(c *gin.Context, class string) {
	date, err := requiredString(c, "date")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sensorID, err := requiredInt(c, "sensor")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := ParsePagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	from, to, err := analytics.DayBounds(date, h.loc)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	approach := analytics.NormalizeFilter(c.Query("approach"))

	rows, err := h.store.ListCounts(c.Request.Context(), store.CountFilter{
		SensorID: sensorID,
		From:     from,
		To:       to,
		Class:    class,
		Approach: approach,
		Offset:   p.Offset,
		Limit:    p.Limit,
	})
	if err != nil {
		respondError(c, h.logger, errors.Join(analytics.ErrStoreUnavailable, err))
		return
	}

	c.JSON(http.StatusOK, rows)
}
