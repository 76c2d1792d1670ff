package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	schemaAnomalies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficcounts_schema_anomalies_total",
		Help: "Total number of count events excluded from hourly buckets because their class/approach pair is outside the schema.",
	})
	gapsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficcounts_gaps_detected_total",
		Help: "Total number of heartbeat gaps reported.",
	})
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trafficcounts_store_fetch_duration_seconds",
		Help:    "Duration of store fetches issued by the analytics queries.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5},
	}, []string{"query"})
)
