package generator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficcounts_generator_records_sent_total",
		Help: "Total number of synthetic records delivered to the sink, by kind.",
	}, []string{"kind"})
	sendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficcounts_generator_send_failures_total",
		Help: "Total number of batches the sink failed to deliver, by kind.",
	}, []string{"kind"})
	heartbeatsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficcounts_generator_heartbeats_skipped_total",
		Help: "Total number of heartbeats withheld to simulate sensor downtime.",
	})
)
