// Package collector stores count and heartbeat batches published over MQTT.
package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"traffic-counts-api/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	KindCounts = "counts"
	KindHealth = "health"
)

var ErrUnknownTopic = errors.New("unknown topic")

var (
	msgsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficcounts_collector_messages_received_total",
		Help: "Total number of MQTT messages received by collector.",
	})
	msgsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficcounts_collector_messages_stored_total",
		Help: "Total number of messages whose batch was written to the database.",
	})
	msgsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trafficcounts_collector_messages_failed_total",
		Help: "Total number of messages rejected or failed to store.",
	})
	recordsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trafficcounts_collector_records_stored_total",
		Help: "Total number of records written by the collector, by kind.",
	}, []string{"kind"})
)

// Writer persists decoded batches. store.PgxWriter implements it.
type Writer interface {
	InsertCounts(ctx context.Context, events []models.CountEvent) error
	InsertHealthPings(ctx context.Context, pings []models.HealthPing) error
}

type Collector struct {
	writer Writer
	prefix string
	logger *slog.Logger
}

func New(writer Writer, topicPrefix string, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{writer: writer, prefix: strings.Trim(topicPrefix, "/"), logger: logger}
}

// CountsTopic and HealthTopic are the per-sensor topics publishers use.
func CountsTopic(prefix string, sensorID int) string {
	return fmt.Sprintf("%s/%s/%d", strings.Trim(prefix, "/"), KindCounts, sensorID)
}

func HealthTopic(prefix string, sensorID int) string {
	return fmt.Sprintf("%s/%s/%d", strings.Trim(prefix, "/"), KindHealth, sensorID)
}

// Filters returns the subscription filters, one wildcard per kind.
func (c *Collector) Filters() map[string]byte {
	return map[string]byte{
		c.prefix + "/" + KindCounts + "/+": 0,
		c.prefix + "/" + KindHealth + "/+": 0,
	}
}

func (c *Collector) kindOf(topic string) (string, error) {
	rest, ok := strings.CutPrefix(topic, c.prefix+"/")
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	kind, sensor, ok := strings.Cut(rest, "/")
	if !ok || sensor == "" || strings.Contains(sensor, "/") {
		return "", fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	switch kind {
	case KindCounts, KindHealth:
		return kind, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
}

// HandleMessage decodes one message and writes its batch. The payload is a
// JSON array of records; a single object is accepted as a batch of one.
// A record that fails validation rejects the whole message.
func (c *Collector) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	msgsReceived.Inc()

	n, kind, err := c.handle(ctx, topic, payload)
	if err != nil {
		msgsFailed.Inc()
		c.logger.Warn("collector message rejected", "topic", topic, "err", err)
		return err
	}

	msgsStored.Inc()
	recordsStored.WithLabelValues(kind).Add(float64(n))
	c.logger.Debug("collector batch stored", "topic", topic, "kind", kind, "records", n)
	return nil
}

func (c *Collector) handle(ctx context.Context, topic string, payload []byte) (int, string, error) {
	kind, err := c.kindOf(topic)
	if err != nil {
		return 0, "", err
	}

	switch kind {
	case KindCounts:
		var batch []models.CountPayload
		if err := decodeBatch(payload, &batch); err != nil {
			return 0, kind, err
		}
		events := make([]models.CountEvent, 0, len(batch))
		for i, p := range batch {
			ev, err := p.Event()
			if err != nil {
				return 0, kind, fmt.Errorf("record %d: %w", i, err)
			}
			events = append(events, ev)
		}
		if err := c.writer.InsertCounts(ctx, events); err != nil {
			return 0, kind, fmt.Errorf("db insert failed: %w", err)
		}
		return len(events), kind, nil

	default:
		var batch []models.HealthPayload
		if err := decodeBatch(payload, &batch); err != nil {
			return 0, kind, err
		}
		pings := make([]models.HealthPing, 0, len(batch))
		for i, p := range batch {
			ping, err := p.Ping()
			if err != nil {
				return 0, kind, fmt.Errorf("record %d: %w", i, err)
			}
			pings = append(pings, ping)
		}
		if err := c.writer.InsertHealthPings(ctx, pings); err != nil {
			return 0, kind, fmt.Errorf("db insert failed: %w", err)
		}
		return len(pings), kind, nil
	}
}

func decodeBatch[T any](payload []byte, batch *[]T) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var one T
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		*batch = []T{one}
		return nil
	}
	if err := json.Unmarshal(trimmed, batch); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// ClientOptions configures a paho client that resubscribes on every
// (re)connect and feeds messages to HandleMessage.
func (c *Collector) ClientOptions(ctx context.Context, brokerURL string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID("collector-" + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetDefaultPublishHandler(func(_ mqtt.Client, message mqtt.Message) {
		_ = c.HandleMessage(ctx, message.Topic(), message.Payload())
	})
	opts.OnConnect = func(client mqtt.Client) {
		filters := c.Filters()
		token := client.SubscribeMultiple(filters, nil)
		token.Wait()
		if token.Error() != nil {
			c.logger.Error("mqtt subscribe error", "err", token.Error())
			return
		}
		c.logger.Info("collector subscribed", "prefix", c.prefix, "filters", len(filters))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.logger.Warn("mqtt connection lost", "err", err)
	}
	return opts
}

// Pinger reports database reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// MetricsHandler serves /metrics and /health.
func MetricsHandler(db Pinger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db unreachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
