// Package store persists counts, heartbeats and generator configurations
// with gorm, and serves the analytics fetches.
package store

import (
	"context"
	"errors"
	"time"

	"traffic-counts-api/analytics"
	"traffic-counts-api/models"

	"gorm.io/gorm"
)

const insertBatchSize = 500

var ErrNotFound = errors.New("not found")

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB { return s.db }

// Migrate creates or updates the counts, system_health and configuration tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&models.CountEvent{}, &models.HealthPing{}, &models.GeneratorConfiguration{})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// FetchEvents implements analytics.EventStore.
func (s *Store) FetchEvents(ctx context.Context, q analytics.EventQuery) ([]models.CountEvent, error) {
	query := s.db.WithContext(ctx).
		Where("sensor_id = ? AND time >= ? AND time < ?", q.SensorID, q.From.UTC(), q.To.UTC()).
		Order("time ASC, id ASC")
	if q.Class != "" {
		query = query.Where("class_ = ?", q.Class)
	}
	if q.Approach != "" {
		query = query.Where("approach = ?", q.Approach)
	}

	var rows []models.CountEvent
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FetchHealthPings implements analytics.HealthStore.
func (s *Store) FetchHealthPings(ctx context.Context, sensorID int, from, to time.Time) ([]models.HealthPing, error) {
	var rows []models.HealthPing
	err := s.db.WithContext(ctx).
		Where("sensor_id = ? AND time >= ? AND time < ?", sensorID, from.UTC(), to.UTC()).
		Order("time ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

type CountFilter struct {
	SensorID int
	From     time.Time
	To       time.Time
	Class    string
	Approach string
	Offset   int
	Limit    int
}

// ListCounts pages through raw count events ordered by time.
func (s *Store) ListCounts(ctx context.Context, f CountFilter) ([]models.CountEvent, error) {
	query := s.db.WithContext(ctx).
		Where("sensor_id = ? AND time >= ? AND time < ?", f.SensorID, f.From.UTC(), f.To.UTC()).
		Order("time ASC, id ASC").
		Offset(f.Offset).
		Limit(f.Limit)
	if f.Class != "" {
		query = query.Where("class_ = ?", f.Class)
	}
	if f.Approach != "" {
		query = query.Where("approach = ?", f.Approach)
	}

	rows := []models.CountEvent{}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// InsertCounts stores events in one transaction. Times are stored in UTC.
func (s *Store) InsertCounts(ctx context.Context, events []models.CountEvent) error {
	if len(events) == 0 {
		return nil
	}
	for i := range events {
		events[i].Time = events[i].Time.UTC()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(events, insertBatchSize).Error
	})
}

func (s *Store) InsertHealthPings(ctx context.Context, pings []models.HealthPing) error {
	if len(pings) == 0 {
		return nil
	}
	for i := range pings {
		pings[i].Time = pings[i].Time.UTC()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(pings, insertBatchSize).Error
	})
}

func (s *Store) HasCounts(ctx context.Context, sensorID int, from, to time.Time) (bool, error) {
	return s.exists(ctx, &models.CountEvent{}, sensorID, from, to)
}

func (s *Store) HasHealthPings(ctx context.Context, sensorID int, from, to time.Time) (bool, error) {
	return s.exists(ctx, &models.HealthPing{}, sensorID, from, to)
}

func (s *Store) exists(ctx context.Context, model any, sensorID int, from, to time.Time) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(model).
		Where("sensor_id = ? AND time >= ? AND time < ?", sensorID, from.UTC(), to.UTC()).
		Limit(1).
		Count(&n).Error
	return n > 0, err
}

func (s *Store) SaveConfiguration(ctx context.Context, cfg *models.GeneratorConfiguration) error {
	if cfg.Timestamp.IsZero() {
		cfg.Timestamp = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Create(cfg).Error
}

// LatestConfiguration returns the most recently saved configuration, or
// ErrNotFound.
func (s *Store) LatestConfiguration(ctx context.Context) (models.GeneratorConfiguration, error) {
	var cfg models.GeneratorConfiguration
	err := s.db.WithContext(ctx).Order("timestamp DESC, id DESC").First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cfg, ErrNotFound
	}
	return cfg, err
}
