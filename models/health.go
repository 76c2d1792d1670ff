package models

import "time"

// HealthPing is a sensor heartbeat.
type HealthPing struct {
	ID       uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Time     time.Time `gorm:"column:time;index" json:"time"`
	SensorID int       `gorm:"column:sensor_id;index" json:"sensor_id"`
}

func (HealthPing) TableName() string { return "system_health" }
