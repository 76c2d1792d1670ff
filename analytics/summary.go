package analytics

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DailySummary condenses a day of hourly buckets and heartbeat gaps.
type DailySummary struct {
	Totals        map[string]int `json:"totals"`
	Total         int            `json:"total"`
	PeakHour      int            `json:"peak_hour"`
	PeakCount     int            `json:"peak_count"`
	MeanPerHour   float64        `json:"mean_per_hour"`
	StdDevPerHour float64        `json:"stddev_per_hour"`
	Anomalies     int            `json:"anomalies"`
	GapCount      int            `json:"gap_count"`
	Downtime      string         `json:"downtime"`
	LongestGap    string         `json:"longest_gap"`
}

// Summarize totals buckets per key and describes the spread of hourly
// totals. PeakHour is the index of the first busiest bucket, -1 when there
// are no buckets. Pass the buckets of AggregateDay so that totals cover the
// same calendar day as the gaps.
func Summarize(buckets []HourlyBucket, gaps []GapInterval) DailySummary {
	var totals Counts
	hourly := make([]float64, len(buckets))
	summary := DailySummary{PeakHour: -1}

	for i, b := range buckets {
		for k, n := range b.Counts {
			totals[k] += n
		}
		for _, an := range b.Anomalies {
			summary.Anomalies += an.Count
		}
		t := b.Counts.Total()
		hourly[i] = float64(t)
		if summary.PeakHour < 0 || t > summary.PeakCount {
			summary.PeakHour = i
			summary.PeakCount = t
		}
	}

	summary.Totals = totals.Map()
	summary.Total = totals.Total()
	if len(hourly) > 0 {
		summary.MeanPerHour = stat.Mean(hourly, nil)
		summary.StdDevPerHour = math.Sqrt(stat.PopVariance(hourly, nil))
	}

	var downtime, longest time.Duration
	for _, g := range gaps {
		downtime += g.Duration
		if g.Duration > longest {
			longest = g.Duration
		}
	}
	summary.GapCount = len(gaps)
	summary.Downtime = FormatDuration(downtime)
	summary.LongestGap = FormatDuration(longest)

	return summary
}
