package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(r gin.IRouter, analyticsHandler *AnalyticsHandler, countsHandler *CountsHandler, ingestHandler *IngestHandler) {
	r.GET("/health", ingestHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/ingest", ingestHandler.IngestCounts)
		api.POST("/ingest/counts", ingestHandler.IngestCounts)
		api.POST("/ingest/system_health", ingestHandler.IngestSystemHealth)
		api.POST("/ingest/configure", ingestHandler.IngestConfigure)
		api.GET("/configuration", ingestHandler.GetConfiguration)

		api.GET("/counts", countsHandler.GetCounts)
		api.GET("/pedestrian_counts", countsHandler.GetPedestrianCounts)

		api.GET("/hourly_data", analyticsHandler.GetHourlyData)
		api.GET("/data_gaps", analyticsHandler.GetDataGaps)
		api.GET("/daily_summary", analyticsHandler.GetDailySummary)
	}
}
