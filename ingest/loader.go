// Package ingest bulk-loads counts and system-health CSV exports.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"traffic-counts-api/models"
)

const flushSize = 5000

// Store is the subset of store.Store the loader writes through.
type Store interface {
	InsertCounts(ctx context.Context, events []models.CountEvent) error
	InsertHealthPings(ctx context.Context, pings []models.HealthPing) error
	HasCounts(ctx context.Context, sensorID int, from, to time.Time) (bool, error)
	HasHealthPings(ctx context.Context, sensorID int, from, to time.Time) (bool, error)
}

// Result summarises one file load.
type Result struct {
	Rows    int
	Loaded  int
	Skipped int
	Invalid int
}

type Loader struct {
	store  Store
	loc    *time.Location
	logger *slog.Logger
}

func NewLoader(store Store, loc *time.Location, logger *slog.Logger) *Loader {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{store: store, loc: loc, logger: logger}
}

// dayKey identifies the sensor-days already present before a load.
type dayKey struct {
	date     string
	sensorID int
}

// presence memoises one existence query per sensor-day, taken before any
// row of that sensor-day is written.
type presence struct {
	loc   *time.Location
	check func(ctx context.Context, sensorID int, from, to time.Time) (bool, error)
	known map[dayKey]bool
}

func (p *presence) existed(ctx context.Context, t time.Time, sensorID int) (dayKey, bool, error) {
	local := t.In(p.loc)
	key := dayKey{date: local.Format("2006-01-02"), sensorID: sensorID}
	if found, ok := p.known[key]; ok {
		return key, found, nil
	}
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.loc)
	found, err := p.check(ctx, sensorID, from, from.AddDate(0, 0, 1))
	if err != nil {
		return key, false, err
	}
	p.known[key] = found
	return key, found, nil
}

func (l *Loader) LoadCountsFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open counts CSV: %w", err)
	}
	defer f.Close()
	return l.LoadCounts(ctx, f)
}

func (l *Loader) LoadSystemHealthFile(ctx context.Context, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open system health CSV: %w", err)
	}
	defer f.Close()
	return l.LoadSystemHealth(ctx, f)
}

// LoadCounts reads a time,class,sensor_id,approach CSV. Rows for a
// sensor-day that already had counts before the load are skipped.
func (l *Loader) LoadCounts(ctx context.Context, r io.Reader) (Result, error) {
	var res Result
	seen := &presence{loc: l.loc, check: l.store.HasCounts, known: make(map[dayKey]bool)}
	batch := make([]models.CountEvent, 0, flushSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.store.InsertCounts(ctx, batch); err != nil {
			return fmt.Errorf("insert counts: %w", err)
		}
		res.Loaded += len(batch)
		batch = batch[:0]
		return nil
	}

	err := l.readRows(r, []string{"time", "class", "sensor_id", "approach"}, func(line int, get func(string) string) error {
		res.Rows++
		t, err := models.ParseTimestamp(get("time"), l.loc)
		if err != nil {
			res.Invalid++
			l.logger.Warn("skipping counts row", "line", line, "err", err)
			return nil
		}
		sensorID, err := strconv.Atoi(strings.TrimSpace(get("sensor_id")))
		if err != nil {
			res.Invalid++
			l.logger.Warn("skipping counts row", "line", line, "err", fmt.Errorf("invalid sensor_id: %w", err))
			return nil
		}
		class, approach := strings.TrimSpace(get("class")), strings.TrimSpace(get("approach"))
		if class == "" || approach == "" {
			res.Invalid++
			l.logger.Warn("skipping counts row", "line", line, "err", "empty class or approach")
			return nil
		}

		key, existed, err := seen.existed(ctx, t, sensorID)
		if err != nil {
			return fmt.Errorf("check existing counts: %w", err)
		}
		if existed {
			res.Skipped++
			l.logger.Debug("counts already loaded", "date", key.date, "sensor_id", sensorID)
			return nil
		}

		batch = append(batch, models.CountEvent{Time: t, Class: class, SensorID: sensorID, Approach: approach})
		if len(batch) >= flushSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	l.logger.Info("counts load finished", "rows", res.Rows, "loaded", res.Loaded, "skipped", res.Skipped, "invalid", res.Invalid)
	return res, err
}

// LoadSystemHealth reads a time,sensorId (or time,sensor_id) CSV of heartbeats.
func (l *Loader) LoadSystemHealth(ctx context.Context, r io.Reader) (Result, error) {
	var res Result
	seen := &presence{loc: l.loc, check: l.store.HasHealthPings, known: make(map[dayKey]bool)}
	batch := make([]models.HealthPing, 0, flushSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.store.InsertHealthPings(ctx, batch); err != nil {
			return fmt.Errorf("insert system health: %w", err)
		}
		res.Loaded += len(batch)
		batch = batch[:0]
		return nil
	}

	err := l.readRows(r, []string{"time", "sensor_id"}, func(line int, get func(string) string) error {
		res.Rows++
		t, err := models.ParseTimestamp(get("time"), l.loc)
		if err != nil {
			res.Invalid++
			l.logger.Warn("skipping system health row", "line", line, "err", err)
			return nil
		}
		sensorID, err := strconv.Atoi(strings.TrimSpace(get("sensor_id")))
		if err != nil {
			res.Invalid++
			l.logger.Warn("skipping system health row", "line", line, "err", fmt.Errorf("invalid sensor id: %w", err))
			return nil
		}

		key, existed, err := seen.existed(ctx, t, sensorID)
		if err != nil {
			return fmt.Errorf("check existing system health: %w", err)
		}
		if existed {
			res.Skipped++
			l.logger.Debug("system health already loaded", "date", key.date, "sensor_id", sensorID)
			return nil
		}

		batch = append(batch, models.HealthPing{Time: t, SensorID: sensorID})
		if len(batch) >= flushSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	l.logger.Info("system health load finished", "rows", res.Rows, "loaded", res.Loaded, "skipped", res.Skipped, "invalid", res.Invalid)
	return res, err
}

// columnAliases maps alternative header spellings onto canonical names.
var columnAliases = map[string]string{
	"sensorid": "sensor_id",
	"class_":   "class",
}

// readRows maps the header onto column indices and calls fn per data row.
// Unreadable rows are logged and skipped; an error from fn stops the read.
func (l *Loader) readRows(r io.Reader, required []string, fn func(line int, get func(string) string) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	colMap := make(map[string]int, len(header))
	for i, col := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		if alias, ok := columnAliases[name]; ok {
			name = alias
		}
		colMap[name] = i
	}
	for _, col := range required {
		if _, ok := colMap[col]; !ok {
			return fmt.Errorf("CSV header %v is missing column %q", header, col)
		}
	}

	line := 1
	for {
		row, err := reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			l.logger.Warn("error reading CSV row", "line", line, "err", err)
			continue
		}
		get := func(col string) string {
			idx := colMap[col]
			if idx >= len(row) {
				return ""
			}
			return row[idx]
		}
		if err := fn(line, get); err != nil {
			return err
		}
	}
}
