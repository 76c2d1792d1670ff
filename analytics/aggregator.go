package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"traffic-counts-api/models"
)

const (
	HoursPerDay = 24

	// HourLabelLayout is the display form of a bucket's start, e.g. "01-05-2024 02:00 PM".
	HourLabelLayout = "02-01-2006 03:04 PM"

	dateLayout = "2006-01-02"
)

// EventQuery selects raw count events. Empty Class/Approach match everything.
type EventQuery struct {
	SensorID int
	From     time.Time
	To       time.Time
	Class    string
	Approach string
}

// EventStore returns the count events of a sensor in [From, To), ordered by time.
type EventStore interface {
	FetchEvents(ctx context.Context, q EventQuery) ([]models.CountEvent, error)
}

type HourlyQuery struct {
	Date     string
	SensorID int
	Approach string
	Class    string
	Offset   int
	Limit    int
}

// SchemaAnomaly records events whose class/approach pair has no bucket key.
type SchemaAnomaly struct {
	Class    string `json:"class_"`
	Approach string `json:"approach"`
	Count    int    `json:"count"`
}

type HourlyBucket struct {
	HourStart time.Time
	Counts    Counts
	Anomalies []SchemaAnomaly
}

type hourlyBucketJSON struct {
	Hour      string          `json:"hour"`
	HourStart time.Time       `json:"hour_start"`
	Anomalies []SchemaAnomaly `json:"anomalies,omitempty"`
}

// MarshalJSON flattens the twelve counts next to the hour fields, so every
// record carries the same columns.
func (b HourlyBucket) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, int(NumKeys)+3)
	for k, n := range b.Counts.Map() {
		out[k] = n
	}
	out["hour"] = b.HourStart.Format(HourLabelLayout)
	out["hour_start"] = b.HourStart
	if len(b.Anomalies) > 0 {
		out["anomalies"] = b.Anomalies
	}
	return json.Marshal(out)
}

func (b *HourlyBucket) UnmarshalJSON(data []byte) error {
	var head hourlyBucketJSON
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	var cols map[string]json.RawMessage
	if err := json.Unmarshal(data, &cols); err != nil {
		return err
	}
	var counts Counts
	for _, k := range AllKeys() {
		raw, ok := cols[k.String()]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &counts[k]); err != nil {
			return fmt.Errorf("column %s: %w", k, err)
		}
	}
	*b = HourlyBucket{HourStart: head.HourStart, Counts: counts, Anomalies: head.Anomalies}
	return nil
}

type HourlyPage struct {
	Buckets []HourlyBucket `json:"data"`
	Total   int            `json:"total"`
}

type Aggregator struct {
	store  EventStore
	loc    *time.Location
	logger *slog.Logger
}

func NewAggregator(store EventStore, loc *time.Location, logger *slog.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{store: store, loc: loc, logger: logger}
}

// AggregateHourly counts a sensor's events per hour for hours
// offset..offset+limit-1 of the given day. Total is always HoursPerDay.
func (a *Aggregator) AggregateHourly(ctx context.Context, q HourlyQuery) (HourlyPage, error) {
	if err := ValidateRange(q.Offset, q.Limit); err != nil {
		return HourlyPage{}, err
	}
	day, err := ParseDate(q.Date, a.loc)
	if err != nil {
		return HourlyPage{}, err
	}

	start := day.Add(time.Duration(q.Offset) * time.Hour)
	end := start.Add(time.Duration(q.Limit) * time.Hour)

	began := time.Now()
	events, err := a.store.FetchEvents(ctx, EventQuery{
		SensorID: q.SensorID,
		From:     start,
		To:       end,
		Class:    NormalizeFilter(q.Class),
		Approach: NormalizeFilter(q.Approach),
	})
	queryDuration.WithLabelValues("hourly").Observe(time.Since(began).Seconds())
	if err != nil {
		return HourlyPage{}, fmt.Errorf("%w: fetch events: %w", ErrStoreUnavailable, err)
	}

	buckets := Bucketize(events, start, q.Limit)
	a.report(buckets, q.SensorID, q.Offset)

	return HourlyPage{Buckets: buckets, Total: HoursPerDay}, nil
}

// AggregateDay buckets a sensor's events over the calendar day
// [midnight, next midnight) in the aggregator's location. The day has 23
// or 25 buckets across DST changes, the last one possibly ending early.
func (a *Aggregator) AggregateDay(ctx context.Context, date string, sensorID int) ([]HourlyBucket, error) {
	from, to, err := DayBounds(date, a.loc)
	if err != nil {
		return nil, err
	}

	began := time.Now()
	events, err := a.store.FetchEvents(ctx, EventQuery{SensorID: sensorID, From: from, To: to})
	queryDuration.WithLabelValues("day").Observe(time.Since(began).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: fetch events: %w", ErrStoreUnavailable, err)
	}

	hours := int((to.Sub(from) + time.Hour - 1) / time.Hour)
	buckets := Bucketize(events, from, hours)
	a.report(buckets, sensorID, 0)
	return buckets, nil
}

func (a *Aggregator) report(buckets []HourlyBucket, sensorID, firstHour int) {
	for i, b := range buckets {
		for _, an := range b.Anomalies {
			schemaAnomalies.Add(float64(an.Count))
			a.logger.Warn("unexpected bucket key",
				"key", strings.ToLower(an.Class)+"_"+strings.ToLower(an.Approach),
				"count", an.Count,
				"sensor_id", sensorID,
				"hour", firstHour+i,
			)
		}
		a.logger.Debug("hourly bucket", "sensor_id", sensorID, "hour", firstHour+i, "total", b.Counts.Total())
	}
}

// Bucketize partitions events into hours consecutive one-hour buckets
// starting at start. Events outside the window are ignored. Pairs without a
// bucket key are collected as anomalies, sorted by class then approach.
func Bucketize(events []models.CountEvent, start time.Time, hours int) []HourlyBucket {
	buckets := make([]HourlyBucket, hours)
	for i := range buckets {
		buckets[i].HourStart = start.Add(time.Duration(i) * time.Hour)
	}

	type pair struct{ class, approach string }
	var stray map[int]map[pair]int

	for _, ev := range events {
		if ev.Time.Before(start) {
			continue
		}
		idx := int(ev.Time.Sub(start) / time.Hour)
		if idx >= hours {
			continue
		}
		if key, ok := KeyFor(ev.Class, ev.Approach); ok {
			buckets[idx].Counts[key]++
			continue
		}
		if stray == nil {
			stray = make(map[int]map[pair]int)
		}
		if stray[idx] == nil {
			stray[idx] = make(map[pair]int)
		}
		stray[idx][pair{ev.Class, ev.Approach}]++
	}

	for idx, pairs := range stray {
		list := make([]SchemaAnomaly, 0, len(pairs))
		for p, n := range pairs {
			list = append(list, SchemaAnomaly{Class: p.class, Approach: p.approach, Count: n})
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Class != list[j].Class {
				return list[i].Class < list[j].Class
			}
			return list[i].Approach < list[j].Approach
		})
		buckets[idx].Anomalies = list
	}

	return buckets
}

// ValidateRange checks that offset..offset+limit-1 lies within a single day.
func ValidateRange(offset, limit int) error {
	if offset < 0 || offset >= HoursPerDay {
		return fmt.Errorf("%w: offset %d outside [0,%d)", ErrInvalidRange, offset, HoursPerDay)
	}
	if limit < 1 {
		return fmt.Errorf("%w: limit must be at least 1, got %d", ErrInvalidRange, limit)
	}
	if offset+limit > HoursPerDay {
		return fmt.Errorf("%w: hours %d..%d exceed day", ErrInvalidRange, offset, offset+limit-1)
	}
	return nil
}

// ParseDate returns local midnight of a YYYY-MM-DD date in loc.
func ParseDate(date string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: expected YYYY-MM-DD", ErrInvalidDate, date)
	}
	return day, nil
}

// DayBounds returns [midnight, next midnight) of date in loc.
func DayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	day, err := ParseDate(date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return day, day.AddDate(0, 0, 1), nil
}

// NormalizeFilter trims a class or approach filter and maps "All" in any
// case to the empty match-everything filter.
func NormalizeFilter(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}
