package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"traffic-counts-api/analytics"
	"traffic-counts-api/services"

	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	aggregator *analytics.Aggregator
	detector   *analytics.GapDetector
	cache      *services.CacheService
	ttl        time.Duration
	logger     *slog.Logger
}

func NewAnalyticsHandler(aggregator *analytics.Aggregator, detector *analytics.GapDetector, cache *services.CacheService, ttl time.Duration, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{aggregator: aggregator, detector: detector, cache: cache, ttl: ttl, logger: logger}
}

func (h *AnalyticsHandler) GetHourlyData(c *gin.Context) {
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
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Without a limit the page runs to the end of the day.
	limit, err := queryInt(c, "limit", analytics.HoursPerDay-offset)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q := analytics.HourlyQuery{
		Date:     date,
		SensorID: sensorID,
		Approach: c.DefaultQuery("approach", "All"),
		Class:    c.DefaultQuery("class_", "All"),
		Offset:   offset,
		Limit:    limit,
	}
	cacheKey := h.cache.Key("hourly", q.Date, q.SensorID, q.Approach, q.Class, q.Offset, q.Limit)

	var cached analytics.HourlyPage
	if found, err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && found {
		cacheHits.WithLabelValues("hourly").Inc()
		c.JSON(http.StatusOK, cached)
		return
	}

	page, err := h.aggregator.AggregateHourly(c.Request.Context(), q)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	go h.cache.Set(context.Background(), cacheKey, page, h.ttl)

	c.JSON(http.StatusOK, page)
}

func (h *AnalyticsHandler) GetDataGaps(c *gin.Context) {
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

	cacheKey := h.cache.Key("gaps", date, sensorID, h.detector.Threshold())

	var cached []analytics.GapInterval
	if found, err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && found {
		cacheHits.WithLabelValues("gaps").Inc()
		c.JSON(http.StatusOK, cached)
		return
	}

	gaps, err := h.detector.Gaps(c.Request.Context(), date, sensorID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	go h.cache.Set(context.Background(), cacheKey, gaps, h.ttl)

	c.JSON(http.StatusOK, gaps)
}

type DailySummaryResponse struct {
	Date     string `json:"date"`
	SensorID int    `json:"sensor_id"`
	analytics.DailySummary
}

func (h *AnalyticsHandler) GetDailySummary(c *gin.Context) {
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

	ctx := c.Request.Context()
	buckets, err := h.aggregator.AggregateDay(ctx, date, sensorID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	gaps, err := h.detector.Gaps(ctx, date, sensorID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, DailySummaryResponse{
		Date:         date,
		SensorID:     sensorID,
		DailySummary: analytics.Summarize(buckets, gaps),
	})
}
