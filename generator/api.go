package generator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ControlHandler exposes the generator over HTTP. runCtx bounds every run
// started through it, so runs outlive the request that started them.
type ControlHandler struct {
	gen      *Generator
	runCtx   context.Context
	recorder ConfigRecorder
	logger   *slog.Logger
}

// NewControlHandler builds the handler. recorder may be nil.
func NewControlHandler(runCtx context.Context, gen *Generator, recorder ConfigRecorder, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{gen: gen, runCtx: runCtx, recorder: recorder, logger: logger}
}

func (h *ControlHandler) Start(c *gin.Context) {
	st, err := h.gen.Start(h.runCtx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "Generator started", "generator": st})
}

func (h *ControlHandler) Stop(c *gin.Context) {
	st := h.gen.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "Generator stopped", "generator": st})
}

func (h *ControlHandler) Configure(c *gin.Context) {
	// Fields missing from the body keep their current values.
	settings := h.gen.Status().Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st, err := h.gen.Configure(settings)
	if errors.Is(err, ErrInvalidSettings) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	if h.recorder != nil {
		if err := h.recorder.RecordSettings(c.Request.Context(), settings); err != nil {
			h.logger.Warn("failed to record configuration", "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "Configuration updated", "generator": st})
}

func (h *ControlHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.gen.Status())
}

func (h *ControlHandler) Count(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"count": h.gen.Generated()})
}

func (h *ControlHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/generator")
	{
		api.POST("/start", h.Start)
		api.POST("/stop", h.Stop)
		api.POST("/configure", h.Configure)
		api.GET("/status", h.Status)
		api.GET("/count", h.Count)
	}
}
