package models

import "errors"

var errIncomplete = errors.New("time and sensor_id are required")

// CountPayload is the wire form of a count event shared by the HTTP ingest
// endpoints, the MQTT collector and the generator. The class key is
// "class_" for compatibility with existing sensor firmware.
type CountPayload struct {
	Time     Timestamp `json:"time"`
	Class    string    `json:"class_" binding:"required"`
	SensorID *int      `json:"sensor_id" binding:"required"`
	Approach string    `json:"approach" binding:"required"`
}

// Event converts the payload, rejecting records without a time or sensor.
func (p CountPayload) Event() (CountEvent, error) {
	if p.Time.Time().IsZero() || p.SensorID == nil {
		return CountEvent{}, errIncomplete
	}
	if p.Class == "" || p.Approach == "" {
		return CountEvent{}, errors.New("class_ and approach are required")
	}
	return CountEvent{Time: p.Time.Time(), Class: p.Class, SensorID: *p.SensorID, Approach: p.Approach}, nil
}

type HealthPayload struct {
	Time     Timestamp `json:"time"`
	SensorID *int      `json:"sensor_id" binding:"required"`
}

func (p HealthPayload) Ping() (HealthPing, error) {
	if p.Time.Time().IsZero() || p.SensorID == nil {
		return HealthPing{}, errIncomplete
	}
	return HealthPing{Time: p.Time.Time(), SensorID: *p.SensorID}, nil
}

func NewCountPayload(ev CountEvent) CountPayload {
	id := ev.SensorID
	return CountPayload{Time: Timestamp(ev.Time), Class: ev.Class, SensorID: &id, Approach: ev.Approach}
}

func NewHealthPayload(p HealthPing) HealthPayload {
	id := p.SensorID
	return HealthPayload{Time: Timestamp(p.Time), SensorID: &id}
}
