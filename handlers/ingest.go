package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"traffic-counts-api/models"
	"traffic-counts-api/store"

	"github.com/gin-gonic/gin"
)

type ConfigurationPayload struct {
	CountsRate            float64 `json:"counts_rate" binding:"gt=0"`
	VehicleProbability    float64 `json:"vehicle_probability" binding:"gte=0,lte=1"`
	PedestrianProbability float64 `json:"pedestrian_probability" binding:"gte=0,lte=1"`
	DowntimeProbability   float64 `json:"downtime_probability" binding:"gte=0,lte=1"`
	TrafficPattern        string  `json:"traffic_pattern" binding:"required"`
}

type IngestHandler struct {
	store  *store.Store
	logger *slog.Logger
}

func NewIngestHandler(s *store.Store, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{store: s, logger: logger}
}

func (h *IngestHandler) IngestCounts(c *gin.Context) {
	var req []models.CountPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		ingestFailures.WithLabelValues("counts").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events := make([]models.CountEvent, 0, len(req))
	for i, p := range req {
		ev, err := p.Event()
		if err != nil {
			ingestFailures.WithLabelValues("counts").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("record %d: %v", i, err)})
			return
		}
		events = append(events, ev)
	}

	if err := h.store.InsertCounts(c.Request.Context(), events); err != nil {
		ingestFailures.WithLabelValues("counts").Inc()
		h.logger.Error("error ingesting counts", "records", len(events), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	recordsIngested.WithLabelValues("counts").Add(float64(len(events)))
	c.JSON(http.StatusOK, gin.H{"status": "success", "stored": len(events)})
}

func (h *IngestHandler) IngestSystemHealth(c *gin.Context) {
	var req []models.HealthPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		ingestFailures.WithLabelValues("system_health").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pings := make([]models.HealthPing, 0, len(req))
	for i, p := range req {
		ping, err := p.Ping()
		if err != nil {
			ingestFailures.WithLabelValues("system_health").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("record %d: %v", i, err)})
			return
		}
		pings = append(pings, ping)
	}

	if err := h.store.InsertHealthPings(c.Request.Context(), pings); err != nil {
		ingestFailures.WithLabelValues("system_health").Inc()
		h.logger.Error("error ingesting system health", "records", len(pings), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	recordsIngested.WithLabelValues("system_health").Add(float64(len(pings)))
	c.JSON(http.StatusOK, gin.H{"status": "success", "stored": len(pings)})
}

func (h *IngestHandler) IngestConfigure(c *gin.Context) {
	var req ConfigurationPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cfg := models.GeneratorConfiguration{
		CountsRate:            req.CountsRate,
		VehicleProbability:    req.VehicleProbability,
		PedestrianProbability: req.PedestrianProbability,
		DowntimeProbability:   req.DowntimeProbability,
		TrafficPattern:        req.TrafficPattern,
		Timestamp:             time.Now().UTC(),
	}
	if err := h.store.SaveConfiguration(c.Request.Context(), &cfg); err != nil {
		h.logger.Error("error ingesting configuration", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *IngestHandler) GetConfiguration(c *gin.Context) {
	cfg, err := h.store.LatestConfiguration(c.Request.Context())
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no configuration recorded"})
		return
	}
	if err != nil {
		h.logger.Error("error reading configuration", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// Health reports whether the database answers within two seconds.
func (h *IngestHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"message": "database unreachable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"message": "Traffic Counts API is running",
	})
}
