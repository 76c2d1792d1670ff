package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficcounts_api_records_ingested_total",
		Help: "Total number of records stored through the ingest endpoints.",
	}, []string{"kind"})
	ingestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficcounts_api_ingest_failures_total",
		Help: "Total number of ingest requests rejected or failed to store.",
	}, []string{"kind"})
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficcounts_api_cache_hits_total",
		Help: "Total number of query responses served from the cache.",
	}, []string{"query"})
)
