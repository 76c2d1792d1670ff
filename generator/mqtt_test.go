package generator

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"traffic-counts-api/collector"
	"traffic-counts-api/config"
	"traffic-counts-api/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncWriter struct {
	mu     sync.Mutex
	counts []models.CountEvent
	pings  []models.HealthPing
}

func (w *syncWriter) InsertCounts(_ context.Context, events []models.CountEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.counts = append(w.counts, events...)
	return nil
}

func (w *syncWriter) InsertHealthPings(_ context.Context, pings []models.HealthPing) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pings = append(w.pings, pings...)
	return nil
}

func (w *syncWriter) snapshot() ([]models.CountEvent, []models.HealthPing) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]models.CountEvent(nil), w.counts...), append([]models.HealthPing(nil), w.pings...)
}

// startBroker runs an in-process broker on a free local port and returns
// its tcp:// URL.
func startBroker(t *testing.T) (*mochi.Server, string) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	broker := mochi.New(&mochi.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, broker.AddHook(&auth.AllowHook{}, nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{ID: "t1", Type: "tcp", Address: addr})))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { _ = broker.Close() })

	return broker, "tcp://" + addr
}

func TestMQTTSinkToCollector(t *testing.T) {
	broker, url := startBroker(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writer := &syncWriter{}
	c := collector.New(writer, "traffic", logger)
	client := mqtt.NewClient(c.ClientOptions(ctx, url))
	token := client.Connect()
	require.True(t, token.WaitTimeout(10*time.Second))
	require.NoError(t, token.Error())
	defer client.Disconnect(100)

	// Both wildcard filters are in place before anything is published.
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&broker.Info.Subscriptions) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	sink, err := NewMQTTSink(config.MQTTConfig{URL: url, TopicPrefix: "traffic"}, logger)
	require.NoError(t, err)
	defer sink.Close()

	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, sink.SendCounts(ctx, []models.CountEvent{
		{Time: at, Class: "car", SensorID: 0, Approach: "NB"},
		{Time: at, Class: "pedestrian", SensorID: 1, Approach: "SB"},
		{Time: at, Class: "truck", SensorID: 1, Approach: "EB"},
	}))
	require.NoError(t, sink.SendHealth(ctx, []models.HealthPing{{Time: at, SensorID: 0}, {Time: at, SensorID: 1}}))

	require.Eventually(t, func() bool {
		counts, pings := writer.snapshot()
		return len(counts) == 3 && len(pings) == 2
	}, 5*time.Second, 10*time.Millisecond)

	counts, pings := writer.snapshot()
	bySensor := map[int]int{}
	for _, ev := range counts {
		bySensor[ev.SensorID]++
		assert.True(t, ev.Time.Equal(at))
	}
	assert.Equal(t, map[int]int{0: 1, 1: 2}, bySensor)
	assert.ElementsMatch(t, []int{0, 1}, []int{pings[0].SensorID, pings[1].SensorID})
}

func TestMQTTSinkPublishesPerSensorTopic(t *testing.T) {
	_, url := startBroker(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	received := make(chan string, 4)
	opts := mqtt.NewClientOptions().AddBroker(url).SetClientID("observer")
	observer := mqtt.NewClient(opts)
	token := observer.Connect()
	require.True(t, token.WaitTimeout(10*time.Second))
	require.NoError(t, token.Error())
	defer observer.Disconnect(100)

	sub := observer.Subscribe("metro/#", 1, func(_ mqtt.Client, m mqtt.Message) {
		received <- m.Topic()
	})
	require.True(t, sub.WaitTimeout(5*time.Second))
	require.NoError(t, sub.Error())

	sink, err := NewMQTTSink(config.MQTTConfig{URL: url, TopicPrefix: "metro"}, logger)
	require.NoError(t, err)
	defer sink.Close()

	now := time.Now().UTC()
	require.NoError(t, sink.SendHealth(context.Background(), []models.HealthPing{{Time: now, SensorID: 7}}))
	require.NoError(t, sink.SendCounts(context.Background(), []models.CountEvent{{Time: now, Class: "car", SensorID: 3, Approach: "WB"}}))

	var topics []string
	for range 2 {
		select {
		case topic := <-received:
			topics = append(topics, topic)
		case <-time.After(5 * time.Second):
			t.Fatalf("received %v, want two messages", topics)
		}
	}
	assert.ElementsMatch(t, []string{"metro/health/7", "metro/counts/3"}, topics)
}
