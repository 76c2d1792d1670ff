package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"traffic-counts-api/collector"
	"traffic-counts-api/config"
	"traffic-counts-api/models"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	SinkHTTP  = "http"
	SinkMQTT  = "mqtt"
	SinkKafka = "kafka"
)

// ConfigRecorder is implemented by sinks that can persist a settings
// snapshot next to the data.
type ConfigRecorder interface {
	RecordSettings(ctx context.Context, s Settings) error
}

// NewSink builds the sink named by cfg.Generator.Sink.
func NewSink(cfg *config.Config, logger *slog.Logger) (Sink, error) {
	switch strings.ToLower(cfg.Generator.Sink) {
	case SinkHTTP:
		return NewHTTPSink(cfg.Generator.BackendURL, nil), nil
	case SinkMQTT:
		return NewMQTTSink(cfg.MQTT, logger)
	case SinkKafka:
		return NewKafkaSink(cfg.Kafka, logger)
	}
	return nil, fmt.Errorf("unknown generator sink %q", cfg.Generator.Sink)
}

func countPayloads(events []models.CountEvent) []models.CountPayload {
	out := make([]models.CountPayload, len(events))
	for i, ev := range events {
		out[i] = models.NewCountPayload(ev)
	}
	return out
}

func healthPayloads(pings []models.HealthPing) []models.HealthPayload {
	out := make([]models.HealthPayload, len(pings))
	for i, p := range pings {
		out[i] = models.NewHealthPayload(p)
	}
	return out
}

// HTTPSink posts batches to the API's ingest endpoints.
type HTTPSink struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSink(baseURL string, client *http.Client) *HTTPSink {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPSink{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (s *HTTPSink) SendCounts(ctx context.Context, events []models.CountEvent) error {
	return s.post(ctx, "/api/ingest/counts", countPayloads(events))
}

func (s *HTTPSink) SendHealth(ctx context.Context, pings []models.HealthPing) error {
	return s.post(ctx, "/api/ingest/system_health", healthPayloads(pings))
}

func (s *HTTPSink) RecordSettings(ctx context.Context, settings Settings) error {
	return s.post(ctx, "/api/ingest/configure", settings)
}

func (s *HTTPSink) post(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("POST %s: %s: %s", path, resp.Status, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (s *HTTPSink) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// MQTTSink publishes one message per sensor and batch on the collector's
// topics.
type MQTTSink struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration
}

func NewMQTTSink(cfg config.MQTTConfig, logger *slog.Logger) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	opts.SetClientID("generator-" + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "err", err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return nil, fmt.Errorf("mqtt connection to %s timed out", cfg.URL)
	}
	if token.Error() != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", token.Error())
	}
	logger.Info("mqtt sink connected", "broker", cfg.URL, "prefix", cfg.TopicPrefix)
	return NewMQTTSinkWithClient(client, cfg.TopicPrefix), nil
}

func NewMQTTSinkWithClient(client mqtt.Client, prefix string) *MQTTSink {
	return &MQTTSink{client: client, prefix: prefix, timeout: 5 * time.Second}
}

func (s *MQTTSink) SendCounts(ctx context.Context, events []models.CountEvent) error {
	bySensor := make(map[int][]models.CountPayload)
	for _, ev := range events {
		bySensor[ev.SensorID] = append(bySensor[ev.SensorID], models.NewCountPayload(ev))
	}
	for id, batch := range bySensor {
		if err := s.publish(ctx, collector.CountsTopic(s.prefix, id), batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *MQTTSink) SendHealth(ctx context.Context, pings []models.HealthPing) error {
	bySensor := make(map[int][]models.HealthPayload)
	for _, p := range pings {
		bySensor[p.SensorID] = append(bySensor[p.SensorID], models.NewHealthPayload(p))
	}
	for id, batch := range bySensor {
		if err := s.publish(ctx, collector.HealthTopic(s.prefix, id), batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *MQTTSink) publish(ctx context.Context, topic string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	token := s.client.Publish(topic, 1, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}

// KafkaSink produces one message per record, keyed by sensor id so a
// sensor's records stay ordered within a partition.
type KafkaSink struct {
	producer *kafka.Producer
	topic    string
	logger   *slog.Logger
	wg       sync.WaitGroup
}

func NewKafkaSink(cfg config.KafkaConfig, logger *slog.Logger) (*KafkaSink, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":   cfg.BootstrapServers,
		"acks":                "all",
		"linger.ms":           50,
		"compression.type":    "snappy",
		"enable.idempotence":  true,
		"delivery.timeout.ms": 120000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	s := &KafkaSink{producer: p, topic: cfg.Topic, logger: logger}
	s.wg.Add(1)
	go s.handleDeliveryReports()

	logger.Info("kafka sink initialized", "topic", cfg.Topic, "servers", cfg.BootstrapServers)
	return s, nil
}

func (s *KafkaSink) handleDeliveryReports() {
	defer s.wg.Done()
	for e := range s.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				sendFailures.WithLabelValues("kafka_delivery").Inc()
				s.logger.Warn("kafka delivery failed", "err", ev.TopicPartition.Error)
			}
		case kafka.Error:
			s.logger.Warn("kafka error", "err", ev)
		}
	}
}

func (s *KafkaSink) SendCounts(ctx context.Context, events []models.CountEvent) error {
	for _, ev := range events {
		if err := s.produce(ctx, KindCounts, ev.SensorID, models.NewCountPayload(ev)); err != nil {
			return err
		}
	}
	return nil
}

func (s *KafkaSink) SendHealth(ctx context.Context, pings []models.HealthPing) error {
	for _, p := range pings {
		if err := s.produce(ctx, KindHealth, p.SensorID, models.NewHealthPayload(p)); err != nil {
			return err
		}
	}
	return nil
}

func (s *KafkaSink) produce(ctx context.Context, kind string, sensorID int, body any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to serialize %s record: %w", kind, err)
	}
	err = s.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &s.topic, Partition: kafka.PartitionAny},
		Key:            []byte(strconv.Itoa(sensorID)),
		Value:          payload,
		Headers:        []kafka.Header{{Key: "kind", Value: []byte(kind)}},
	}, nil)
	if err != nil {
		return fmt.Errorf("produce %s record: %w", kind, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	if remaining := s.producer.Flush(30_000); remaining > 0 {
		s.logger.Warn("kafka messages still queued after flush", "remaining", remaining)
	}
	s.producer.Close()
	s.wg.Wait()
	return nil
}
