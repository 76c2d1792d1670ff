package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Analytics AnalyticsConfig
	Log       LogConfig
	MQTT      MQTTConfig
	Collector CollectorConfig
	Kafka     KafkaConfig
	Generator GeneratorConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	// Path is the SQLite file used when Driver is "sqlite".
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins string
}

type AnalyticsConfig struct {
	GapThreshold time.Duration
	Location     *time.Location
	CacheTTL     time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	File   string
}

type MQTTConfig struct {
	URL         string
	TopicPrefix string
}

type CollectorConfig struct {
	MetricsAddr string
}

type KafkaConfig struct {
	BootstrapServers string
	Topic            string
}

type GeneratorConfig struct {
	Port              int
	Sink              string
	BackendURL        string
	Sensors           []int
	BatchInterval     time.Duration
	HeartbeatInterval time.Duration
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// GetURL returns the connection string in URL form, as pgxpool expects it.
func (d DatabaseConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

func LoadConfig() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	serverPort, err := getIntEnv("SERVER_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	redisPort, err := getIntEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}

	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	gapThreshold, err := getDurationEnv("GAP_THRESHOLD", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid GAP_THRESHOLD: %w", err)
	}
	if gapThreshold <= 0 {
		return nil, fmt.Errorf("invalid GAP_THRESHOLD: must be positive, got %s", gapThreshold)
	}

	cacheTTL, err := getDurationEnv("CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}

	loc, err := time.LoadLocation(getEnv("APP_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	generatorPort, err := getIntEnv("GENERATOR_PORT", 5001)
	if err != nil {
		return nil, fmt.Errorf("invalid GENERATOR_PORT: %w", err)
	}

	sensors, err := getIntListEnv("GENERATOR_SENSORS", []int{0, 1})
	if err != nil {
		return nil, fmt.Errorf("invalid GENERATOR_SENSORS: %w", err)
	}

	batchInterval, err := getDurationEnv("GENERATOR_BATCH_INTERVAL", time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid GENERATOR_BATCH_INTERVAL: %w", err)
	}

	heartbeatInterval, err := getDurationEnv("GENERATOR_HEARTBEAT_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid GENERATOR_HEARTBEAT_INTERVAL: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: serverPort,
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "traffic"),
			Password: getEnv("DB_PASSWORD", "traffic_dev_password"),
			Name:     getEnv("DB_NAME", "traffic"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Path:     getEnv("DB_PATH", "traffic.db"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Analytics: AnalyticsConfig{
			GapThreshold: gapThreshold,
			Location:     loc,
			CacheTTL:     cacheTTL,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
			File:   getEnv("LOG_FILE", ""),
		},
		MQTT: MQTTConfig{
			URL:         getEnv("MQTT_URL", "tcp://localhost:1883"),
			TopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "traffic"),
		},
		Collector: CollectorConfig{
			MetricsAddr: getEnv("COLLECTOR_METRICS_ADDR", ":8080"),
		},
		Kafka: KafkaConfig{
			BootstrapServers: getEnv("KAFKA_BOOTSTRAP_SERVERS", "localhost:9092"),
			Topic:            getEnv("KAFKA_TOPIC", "traffic-events"),
		},
		Generator: GeneratorConfig{
			Port:              generatorPort,
			Sink:              getEnv("GENERATOR_SINK", "http"),
			BackendURL:        getEnv("BACKEND_URL", "http://localhost:8000"),
			Sensors:           sensors,
			BatchInterval:     batchInterval,
			HeartbeatInterval: heartbeatInterval,
		},
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}

func getIntListEnv(key string, fallback []int) ([]int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s has no values", key)
	}
	return out, nil
}
