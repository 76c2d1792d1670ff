package generator

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	PatternNormal   = "normal"
	PatternRushHour = "rush_hour"
	PatternLight    = "light"
)

var ErrInvalidSettings = errors.New("invalid generator settings")

// patternMultipliers scale the configured rate.
var patternMultipliers = map[string]float64{
	PatternNormal:   1.0,
	PatternRushHour: 2.0,
	PatternLight:    0.5,
}

// Settings mirror the configuration snapshot persisted by the API.
type Settings struct {
	CountsRate            float64 `json:"counts_rate"`
	VehicleProbability    float64 `json:"vehicle_probability"`
	PedestrianProbability float64 `json:"pedestrian_probability"`
	DowntimeProbability   float64 `json:"downtime_probability"`
	TrafficPattern        string  `json:"traffic_pattern"`
}

func DefaultSettings() Settings {
	return Settings{
		CountsRate:            100,
		VehicleProbability:    0.7,
		PedestrianProbability: 0.3,
		DowntimeProbability:   0.1,
		TrafficPattern:        PatternNormal,
	}
}

func (s Settings) Validate() error {
	if !(s.CountsRate > 0) || math.IsInf(s.CountsRate, 0) {
		return fmt.Errorf("%w: counts_rate must be positive, got %v", ErrInvalidSettings, s.CountsRate)
	}
	for name, p := range map[string]float64{
		"vehicle_probability":    s.VehicleProbability,
		"pedestrian_probability": s.PedestrianProbability,
		"downtime_probability":   s.DowntimeProbability,
	} {
		if !(p >= 0 && p <= 1) {
			return fmt.Errorf("%w: %s must be within [0,1], got %v", ErrInvalidSettings, name, p)
		}
	}
	if s.VehicleProbability+s.PedestrianProbability == 0 {
		return fmt.Errorf("%w: vehicle_probability and pedestrian_probability are both zero", ErrInvalidSettings)
	}
	if _, ok := patternMultipliers[s.TrafficPattern]; !ok {
		return fmt.Errorf("%w: unknown traffic_pattern %q", ErrInvalidSettings, s.TrafficPattern)
	}
	return nil
}

// BatchSize is the number of count events produced per interval, at least one.
func (s Settings) BatchSize(interval time.Duration) int {
	n := int(math.Round(s.CountsRate * interval.Seconds() * patternMultipliers[s.TrafficPattern]))
	return max(n, 1)
}

// VehicleShare is the chance that a generated event is a vehicle.
func (s Settings) VehicleShare() float64 {
	total := s.VehicleProbability + s.PedestrianProbability
	if total == 0 {
		return 0
	}
	return s.VehicleProbability / total
}
