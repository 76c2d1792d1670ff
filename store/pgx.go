package store

import (
	"context"
	"fmt"

	"traffic-counts-api/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxWriter bulk-loads batches with COPY. It is used by the collector,
// where batches arrive continuously and ORM inserts are too slow.
type PgxWriter struct {
	pool *pgxpool.Pool
}

func NewPgxWriter(ctx context.Context, url string) (*PgxWriter, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("db pool init failed: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return &PgxWriter{pool: pool}, nil
}

func (w *PgxWriter) InsertCounts(ctx context.Context, events []models.CountEvent) error {
	if len(events) == 0 {
		return nil
	}
	_, err := w.pool.CopyFrom(ctx,
		pgx.Identifier{models.CountEvent{}.TableName()},
		[]string{"time", "class_", "sensor_id", "approach"},
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			ev := events[i]
			return []any{ev.Time.UTC(), ev.Class, ev.SensorID, ev.Approach}, nil
		}),
	)
	return err
}

func (w *PgxWriter) InsertHealthPings(ctx context.Context, pings []models.HealthPing) error {
	if len(pings) == 0 {
		return nil
	}
	_, err := w.pool.CopyFrom(ctx,
		pgx.Identifier{models.HealthPing{}.TableName()},
		[]string{"time", "sensor_id"},
		pgx.CopyFromSlice(len(pings), func(i int) ([]any, error) {
			return []any{pings[i].Time.UTC(), pings[i].SensorID}, nil
		}),
	)
	return err
}

func (w *PgxWriter) Ping(ctx context.Context) error {
	return w.pool.Ping(ctx)
}

func (w *PgxWriter) Close() {
	w.pool.Close()
}
