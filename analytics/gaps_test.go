package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"traffic-counts-api/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pings(times ...time.Time) []models.HealthPing {
	out := make([]models.HealthPing, len(times))
	for i, t := range times {
		out[i] = models.HealthPing{ID: uint(i + 1), Time: t, SensorID: 1}
	}
	return out
}

func TestDetectGapsSingleGap(t *testing.T) {
	gaps := DetectGaps(pings(at(0, 0), at(0, 4), at(0, 12), at(0, 13)), 5*time.Minute)

	require.Len(t, gaps, 1)
	assert.Equal(t, at(0, 4), gaps[0].StartTime)
	assert.Equal(t, at(0, 12), gaps[0].EndTime)
	assert.Equal(t, 8*time.Minute, gaps[0].Duration)
}

func TestDetectGapsPristineSequence(t *testing.T) {
	var times []time.Time
	for m := 0; m < 60; m += 5 {
		times = append(times, at(3, m))
	}
	assert.Empty(t, DetectGaps(pings(times...), 5*time.Minute), "gaps equal to the threshold are not outages")
}

func TestDetectGapsShortInput(t *testing.T) {
	assert.Empty(t, DetectGaps(nil, 5*time.Minute))
	assert.Empty(t, DetectGaps(pings(at(1, 0)), 5*time.Minute))
	assert.NotNil(t, DetectGaps(nil, 5*time.Minute), "empty result encodes as []")
}

func TestDetectGapsMultiple(t *testing.T) {
	gaps := DetectGaps(pings(at(0, 0), at(1, 0), at(1, 1), at(1, 7), at(1, 7)), 5*time.Minute)

	require.Len(t, gaps, 2)
	assert.Equal(t, time.Hour, gaps[0].Duration)
	assert.Equal(t, at(1, 1), gaps[1].StartTime)
	assert.Equal(t, 6*time.Minute, gaps[1].Duration)
}

func TestDetectGapsCustomThreshold(t *testing.T) {
	seq := pings(at(0, 0), at(0, 4), at(0, 12), at(0, 13))
	assert.Len(t, DetectGaps(seq, 3*time.Minute), 2)
	assert.Empty(t, DetectGaps(seq, 10*time.Minute))
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{8 * time.Minute, "0:08:00"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
		{5*time.Minute + 1500*time.Millisecond, "0:05:01.500000"},
		{26 * time.Hour, "1 day, 2:00:00"},
		{49 * time.Hour, "2 days, 1:00:00"},
		{0, "0:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.in))
		})
	}
}

func TestGapIntervalJSON(t *testing.T) {
	data, err := json.Marshal(GapInterval{StartTime: at(0, 4), EndTime: at(0, 12), Duration: 8 * time.Minute})
	require.NoError(t, err)

	var raw map[string]string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "0:08:00", raw["duration"])
	assert.Equal(t, "PT8M", raw["duration_iso"])
	assert.Equal(t, "2024-05-01T00:04:00Z", raw["start_time"])

	var back GapInterval
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 8*time.Minute, back.Duration)
}

func TestGapDetectorGaps(t *testing.T) {
	store := &memStore{pings: append(
		pings(at(0, 0), at(0, 4), at(0, 12), at(0, 13)),
		models.HealthPing{ID: 9, Time: at(0, 30), SensorID: 2},
		models.HealthPing{ID: 10, Time: time.Date(2024, 5, 2, 0, 30, 0, 0, time.UTC), SensorID: 1},
	)}
	detector, err := NewGapDetector(store, DefaultGapThreshold, time.UTC, nil)
	require.NoError(t, err)

	gaps, err := detector.Gaps(context.Background(), "2024-05-01", 1)
	require.NoError(t, err)
	require.Len(t, gaps, 1, "the next day's ping must not close a gap")
	assert.Equal(t, 8*time.Minute, gaps[0].Duration)
}

func TestGapDetectorErrors(t *testing.T) {
	_, err := NewGapDetector(&memStore{}, 0, time.UTC, nil)
	assert.ErrorIs(t, err, ErrInvalidThreshold)

	cause := errors.New("timeout")
	detector, err := NewGapDetector(&memStore{err: cause}, time.Minute, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, detector.Threshold())

	gaps, err := detector.Gaps(context.Background(), "2024-05-01", 1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, gaps)

	_, err = detector.Gaps(context.Background(), "May 1st", 1)
	assert.ErrorIs(t, err, ErrInvalidDate)
}
