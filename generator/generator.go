// Package generator produces synthetic counts and heartbeats for
// development and load testing.
package generator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"traffic-counts-api/models"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	KindCounts = "counts"
	KindHealth = "health"
)

// Sink delivers generated batches somewhere the backend can read them.
type Sink interface {
	SendCounts(ctx context.Context, events []models.CountEvent) error
	SendHealth(ctx context.Context, pings []models.HealthPing) error
	Close() error
}

type Options struct {
	Sensors           []int
	BatchInterval     time.Duration
	HeartbeatInterval time.Duration
	// Rand drives every random choice; seeded from the clock when nil.
	Rand   *rand.Rand
	Now    func() time.Time
	Logger *slog.Logger
}

type Status struct {
	Running   bool     `json:"running"`
	Generated int64    `json:"generated"`
	RunID     string   `json:"run_id,omitempty"`
	Settings  Settings `json:"settings"`
}

// Generator owns the run state. Start, Stop and Configure are safe for
// concurrent use.
type Generator struct {
	sink Sink
	opts Options

	mu       sync.Mutex
	settings Settings
	running  bool
	runID    string
	cancel   context.CancelFunc
	done     chan struct{}

	rngMu sync.Mutex
	rng   *rand.Rand

	generated atomic.Int64
}

func New(sink Sink, opts Options) *Generator {
	if len(opts.Sensors) == 0 {
		opts.Sensors = []int{0, 1}
	}
	if opts.BatchInterval <= 0 {
		opts.BatchInterval = time.Second
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	rng := opts.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Generator{sink: sink, opts: opts, settings: DefaultSettings(), rng: rng}
}

// Start launches the counts and heartbeat loops. ctx bounds the lifetime of
// the run, not of the call. Starting a running generator is a no-op.
func (g *Generator) Start(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return g.Status(), err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return g.statusLocked(), nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(runCtx)
	done := make(chan struct{})
	runID := uuid.NewString()

	g.running = true
	g.runID = runID
	g.cancel = cancel
	g.done = done

	logger := g.opts.Logger.With("run_id", runID)
	eg.Go(func() error { return g.countsLoop(egCtx, logger) })
	eg.Go(func() error { return g.heartbeatLoop(egCtx, logger) })

	go func() {
		err := eg.Wait()
		cancel()
		g.mu.Lock()
		if g.runID == runID {
			g.running = false
		}
		g.mu.Unlock()
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("generator stopped", "err", err)
		} else {
			logger.Info("generator stopped", "generated", g.generated.Load())
		}
		close(done)
	}()

	logger.Info("generator started", "sensors", g.opts.Sensors, "batch_interval", g.opts.BatchInterval)
	return g.statusLocked(), nil
}

// Stop cancels the current run and waits for both loops to exit. Stopping
// a stopped generator is a no-op.
func (g *Generator) Stop() Status {
	g.mu.Lock()
	if !g.running {
		st := g.statusLocked()
		g.mu.Unlock()
		return st
	}
	cancel, done := g.cancel, g.done
	g.running = false
	g.mu.Unlock()

	cancel()
	<-done
	return g.Status()
}

// Configure replaces the settings. A running generator picks them up on
// its next batch.
func (g *Generator) Configure(s Settings) (Status, error) {
	if err := s.Validate(); err != nil {
		return g.Status(), err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settings = s
	g.opts.Logger.Info("generator configured",
		"counts_rate", s.CountsRate, "traffic_pattern", s.TrafficPattern,
		"vehicle_probability", s.VehicleProbability, "downtime_probability", s.DowntimeProbability)
	return g.statusLocked(), nil
}

func (g *Generator) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusLocked()
}

func (g *Generator) statusLocked() Status {
	return Status{
		Running:   g.running,
		Generated: g.generated.Load(),
		RunID:     g.runID,
		Settings:  g.settings,
	}
}

// Generated is the number of count events the sink has accepted.
func (g *Generator) Generated() int64 {
	return g.generated.Load()
}

func (g *Generator) currentSettings() Settings {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settings
}

func (g *Generator) countsLoop(ctx context.Context, logger *slog.Logger) error {
	ticker := time.NewTicker(g.opts.BatchInterval)
	defer ticker.Stop()

	for {
		batch := g.CountsBatch(g.currentSettings())
		if err := g.sink.SendCounts(ctx, batch); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			sendFailures.WithLabelValues(KindCounts).Inc()
			logger.Warn("failed to send count data", "records", len(batch), "err", err)
		} else {
			g.generated.Add(int64(len(batch)))
			recordsGenerated.WithLabelValues(KindCounts).Add(float64(len(batch)))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (g *Generator) heartbeatLoop(ctx context.Context, logger *slog.Logger) error {
	ticker := time.NewTicker(g.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		pings := g.HeartbeatBatch(g.currentSettings())
		if len(pings) > 0 {
			if err := g.sink.SendHealth(ctx, pings); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				sendFailures.WithLabelValues(KindHealth).Inc()
				logger.Warn("failed to send system health data", "records", len(pings), "err", err)
			} else {
				recordsGenerated.WithLabelValues(KindHealth).Add(float64(len(pings)))
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// CountsBatch draws one interval's worth of count events.
func (g *Generator) CountsBatch(s Settings) []models.CountEvent {
	n := s.BatchSize(g.opts.BatchInterval)
	now := g.opts.Now().UTC()
	share := s.VehicleShare()

	g.rngMu.Lock()
	defer g.rngMu.Unlock()

	batch := make([]models.CountEvent, n)
	for i := range batch {
		class := models.ClassPedestrian
		if g.rng.Float64() < share {
			class = models.VehicleClasses[g.rng.IntN(len(models.VehicleClasses))]
		}
		batch[i] = models.CountEvent{
			Time:     now,
			Class:    class,
			SensorID: g.opts.Sensors[g.rng.IntN(len(g.opts.Sensors))],
			Approach: models.Approaches[g.rng.IntN(len(models.Approaches))],
		}
	}
	return batch
}

// HeartbeatBatch emits one ping per sensor, withholding each with the
// downtime probability.
func (g *Generator) HeartbeatBatch(s Settings) []models.HealthPing {
	now := g.opts.Now().UTC()

	g.rngMu.Lock()
	defer g.rngMu.Unlock()

	pings := make([]models.HealthPing, 0, len(g.opts.Sensors))
	for _, id := range g.opts.Sensors {
		if g.rng.Float64() < s.DowntimeProbability {
			heartbeatsSkipped.Inc()
			continue
		}
		pings = append(pings, models.HealthPing{Time: now, SensorID: id})
	}
	return pings
}
