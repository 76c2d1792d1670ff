package models

import "time"

type GeneratorConfiguration struct {
	ID                    uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CountsRate            float64   `gorm:"column:counts_rate" json:"counts_rate"`
	VehicleProbability    float64   `gorm:"column:vehicle_probability" json:"vehicle_probability"`
	PedestrianProbability float64   `gorm:"column:pedestrian_probability" json:"pedestrian_probability"`
	DowntimeProbability   float64   `gorm:"column:downtime_probability" json:"downtime_probability"`
	TrafficPattern        string    `gorm:"column:traffic_pattern" json:"traffic_pattern"`
	Timestamp             time.Time `gorm:"column:timestamp;index" json:"timestamp"`
}

func (GeneratorConfiguration) TableName() string { return "configuration" }
