package generator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"traffic-counts-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	counts []models.CountEvent
	pings  []models.HealthPing
	err    error
	closed bool
}

func (s *recordingSink) SendCounts(_ context.Context, events []models.CountEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.counts = append(s.counts, events...)
	return nil
}

func (s *recordingSink) SendHealth(_ context.Context, pings []models.HealthPing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.pings = append(s.pings, pings...)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func (s *recordingSink) received() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counts), len(s.pings)
}

var fixedNow = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

func newTestGenerator(sink Sink) *Generator {
	return New(sink, Options{
		Sensors:           []int{4, 7},
		BatchInterval:     10 * time.Millisecond,
		HeartbeatInterval: 10 * time.Millisecond,
		Rand:              rand.New(rand.NewPCG(1, 2)),
		Now:               func() time.Time { return fixedNow },
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Settings)
		wantErr bool
	}{
		{"defaults", func(*Settings) {}, false},
		{"rush hour", func(s *Settings) { s.TrafficPattern = PatternRushHour }, false},
		{"zero rate", func(s *Settings) { s.CountsRate = 0 }, true},
		{"negative rate", func(s *Settings) { s.CountsRate = -5 }, true},
		{"vehicle above one", func(s *Settings) { s.VehicleProbability = 1.2 }, true},
		{"negative downtime", func(s *Settings) { s.DowntimeProbability = -0.1 }, true},
		{"no classes", func(s *Settings) { s.VehicleProbability, s.PedestrianProbability = 0, 0 }, true},
		{"unknown pattern", func(s *Settings) { s.TrafficPattern = "gridlock" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			err := s.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSettings)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBatchSize(t *testing.T) {
	tests := []struct {
		pattern  string
		rate     float64
		interval time.Duration
		want     int
	}{
		{PatternNormal, 100, time.Second, 100},
		{PatternRushHour, 100, time.Second, 200},
		{PatternLight, 100, time.Second, 50},
		{PatternNormal, 100, 500 * time.Millisecond, 50},
		{PatternLight, 0.1, time.Second, 1},
	}
	for _, tt := range tests {
		s := Settings{CountsRate: tt.rate, TrafficPattern: tt.pattern}
		assert.Equal(t, tt.want, s.BatchSize(tt.interval), "%s at %v/s", tt.pattern, tt.rate)
	}
}

func TestCountsBatch(t *testing.T) {
	g := newTestGenerator(&recordingSink{})

	t.Run("vehicles only", func(t *testing.T) {
		s := DefaultSettings()
		s.VehicleProbability, s.PedestrianProbability = 1, 0
		batch := g.CountsBatch(s)
		require.Len(t, batch, 1)
		for _, ev := range batch {
			assert.Contains(t, models.VehicleClasses, ev.Class)
		}
	})

	t.Run("pedestrians only", func(t *testing.T) {
		s := DefaultSettings()
		s.CountsRate = 1000
		s.VehicleProbability, s.PedestrianProbability = 0, 0.5
		batch := g.CountsBatch(s)
		require.Len(t, batch, 10)
		for _, ev := range batch {
			assert.Equal(t, models.ClassPedestrian, ev.Class)
		}
	})

	t.Run("fields drawn from configured sets", func(t *testing.T) {
		s := DefaultSettings()
		s.CountsRate = 50_000
		batch := g.CountsBatch(s)
		require.Len(t, batch, 500)
		classes := map[string]int{}
		for _, ev := range batch {
			assert.Contains(t, []int{4, 7}, ev.SensorID)
			assert.Contains(t, models.Approaches, ev.Approach)
			assert.True(t, ev.Time.Equal(fixedNow))
			classes[ev.Class]++
		}
		assert.Greater(t, classes[models.ClassPedestrian], 0)
		assert.Greater(t, classes[models.ClassCar], 0)
		assert.Greater(t, classes[models.ClassCar]+classes[models.ClassTruck]+classes[models.ClassBus], classes[models.ClassPedestrian])
	})
}

func TestHeartbeatBatch(t *testing.T) {
	g := newTestGenerator(&recordingSink{})

	s := DefaultSettings()
	s.DowntimeProbability = 0
	pings := g.HeartbeatBatch(s)
	require.Len(t, pings, 2)
	assert.Equal(t, 4, pings[0].SensorID)
	assert.Equal(t, 7, pings[1].SensorID)

	s.DowntimeProbability = 1
	assert.Empty(t, g.HeartbeatBatch(s))
}

func TestStartStop(t *testing.T) {
	sink := &recordingSink{}
	g := newTestGenerator(sink)

	st := g.Status()
	assert.False(t, st.Running)
	assert.Equal(t, DefaultSettings(), st.Settings)

	st, err := g.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Running)
	require.NotEmpty(t, st.RunID)

	again, err := g.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, st.RunID, again.RunID, "start while running keeps the current run")

	require.Eventually(t, func() bool {
		counts, pings := sink.received()
		return counts > 0 && pings > 0
	}, 2*time.Second, 5*time.Millisecond)

	stopped := g.Stop()
	assert.False(t, stopped.Running)
	counts, _ := sink.received()
	assert.Equal(t, int64(counts), stopped.Generated)
	assert.Equal(t, stopped.Generated, g.Generated())

	assert.False(t, g.Stop().Running, "stop while stopped is a no-op")

	restarted, err := g.Start(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, st.RunID, restarted.RunID)
	g.Stop()
}

func TestStartWithCancelledContext(t *testing.T) {
	g := newTestGenerator(&recordingSink{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, err := g.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, st.Running)
}

func TestRunEndsWithParentContext(t *testing.T) {
	g := newTestGenerator(&recordingSink{})
	ctx, cancel := context.WithCancel(context.Background())

	_, err := g.Start(ctx)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool { return !g.Status().Running }, 2*time.Second, 5*time.Millisecond)
}

func TestSinkFailuresAreNotCounted(t *testing.T) {
	sink := &recordingSink{err: errors.New("backend down")}
	g := newTestGenerator(sink)

	_, err := g.Start(context.Background())
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	st := g.Stop()

	assert.Zero(t, st.Generated)
}

func TestConfigure(t *testing.T) {
	g := newTestGenerator(&recordingSink{})

	s := DefaultSettings()
	s.TrafficPattern = PatternRushHour
	s.CountsRate = 250
	st, err := g.Configure(s)
	require.NoError(t, err)
	assert.Equal(t, s, st.Settings)

	bad := s
	bad.DowntimeProbability = 3
	st, err = g.Configure(bad)
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Equal(t, s, st.Settings, "rejected settings leave the current ones in place")
}
