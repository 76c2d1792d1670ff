package models

import "time"

const (
	ClassCar        = "car"
	ClassTruck      = "truck"
	ClassBus        = "bus"
	ClassPedestrian = "pedestrian"
)

const (
	ApproachNB = "NB"
	ApproachSB = "SB"
	ApproachEB = "EB"
	ApproachWB = "WB"
)

var (
	VehicleClasses = []string{ClassCar, ClassTruck, ClassBus}
	Approaches     = []string{ApproachNB, ApproachSB, ApproachEB, ApproachWB}
)

// CountEvent is one detection reported by a sensor. Rows are append-only.
type CountEvent struct {
	ID       uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Time     time.Time `gorm:"column:time;index" json:"time"`
	Class    string    `gorm:"column:class_;index" json:"class_"`
	SensorID int       `gorm:"column:sensor_id;index" json:"sensor_id"`
	Approach string    `gorm:"column:approach;index" json:"approach"`
}

func (CountEvent) TableName() string { return "counts" }
