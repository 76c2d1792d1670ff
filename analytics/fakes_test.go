package analytics

import (
	"context"
	"sync/atomic"
	"time"

	"traffic-counts-api/models"
)

// memStore applies the same filtering contract as the real store.
type memStore struct {
	events []models.CountEvent
	pings  []models.HealthPing
	err    error
	calls  atomic.Int32
}

func (m *memStore) FetchEvents(_ context.Context, q EventQuery) ([]models.CountEvent, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	var out []models.CountEvent
	for _, ev := range m.events {
		if ev.SensorID != q.SensorID || ev.Time.Before(q.From) || !ev.Time.Before(q.To) {
			continue
		}
		if q.Class != "" && ev.Class != q.Class {
			continue
		}
		if q.Approach != "" && ev.Approach != q.Approach {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (m *memStore) FetchHealthPings(_ context.Context, sensorID int, from, to time.Time) ([]models.HealthPing, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	var out []models.HealthPing
	for _, p := range m.pings {
		if p.SensorID == sensorID && !p.Time.Before(from) && p.Time.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 5, 1, hour, minute, 0, 0, time.UTC)
}

func event(hour, minute int, class, approach string) models.CountEvent {
	return models.CountEvent{Time: at(hour, minute), Class: class, SensorID: 1, Approach: approach}
}
