package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"traffic-counts-api/models"

	"github.com/sosodev/duration"
)

const DefaultGapThreshold = 5 * time.Minute

// HealthStore returns a sensor's heartbeats in [from, to), ordered by time
// and then by insertion order.
type HealthStore interface {
	FetchHealthPings(ctx context.Context, sensorID int, from, to time.Time) ([]models.HealthPing, error)
}

// GapInterval is a stretch between two consecutive heartbeats that exceeded
// the threshold.
type GapInterval struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

type gapIntervalJSON struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Duration    string    `json:"duration"`
	DurationISO string    `json:"duration_iso"`
}

func (g GapInterval) MarshalJSON() ([]byte, error) {
	return json.Marshal(gapIntervalJSON{
		StartTime:   g.StartTime,
		EndTime:     g.EndTime,
		Duration:    FormatDuration(g.Duration),
		DurationISO: duration.Format(g.Duration),
	})
}

func (g *GapInterval) UnmarshalJSON(data []byte) error {
	var raw gapIntervalJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*g = GapInterval{
		StartTime: raw.StartTime,
		EndTime:   raw.EndTime,
		Duration:  raw.EndTime.Sub(raw.StartTime),
	}
	return nil
}

// DetectGaps scans consecutive heartbeats once and reports every pair more
// than threshold apart. Nothing is reported before the first or after the
// last ping.
func DetectGaps(pings []models.HealthPing, threshold time.Duration) []GapInterval {
	gaps := []GapInterval{}
	for i := 1; i < len(pings); i++ {
		prev, cur := pings[i-1].Time, pings[i].Time
		if d := cur.Sub(prev); d > threshold {
			gaps = append(gaps, GapInterval{StartTime: prev, EndTime: cur, Duration: d})
		}
	}
	return gaps
}

// FormatDuration renders d as H:MM:SS, with microseconds appended when
// present and a leading day count for spans of a day or more.
func FormatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	us := (d - s*time.Second) / time.Microsecond

	out := fmt.Sprintf("%d:%02d:%02d", h, m, s)
	if us > 0 {
		out += fmt.Sprintf(".%06d", us)
	}
	switch {
	case days == 1:
		out = "1 day, " + out
	case days > 1:
		out = fmt.Sprintf("%d days, %s", days, out)
	}
	return sign + out
}

type GapDetector struct {
	store     HealthStore
	threshold time.Duration
	loc       *time.Location
	logger    *slog.Logger
}

func NewGapDetector(store HealthStore, threshold time.Duration, loc *time.Location, logger *slog.Logger) (*GapDetector, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidThreshold, threshold)
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GapDetector{store: store, threshold: threshold, loc: loc, logger: logger}, nil
}

func (d *GapDetector) Threshold() time.Duration { return d.threshold }

// Gaps reports the heartbeat gaps of one sensor on one calendar day.
func (d *GapDetector) Gaps(ctx context.Context, date string, sensorID int) ([]GapInterval, error) {
	from, to, err := DayBounds(date, d.loc)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	pings, err := d.store.FetchHealthPings(ctx, sensorID, from, to)
	queryDuration.WithLabelValues("gaps").Observe(time.Since(began).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: fetch health pings: %w", ErrStoreUnavailable, err)
	}

	gaps := DetectGaps(pings, d.threshold)
	gapsDetected.Add(float64(len(gaps)))
	d.logger.Debug("data gaps", "sensor_id", sensorID, "date", date, "pings", len(pings), "gaps", len(gaps))
	return gaps, nil
}
