package events

import (
	"time"
)

type EventType string

// Topic is the bus topic terminal sensor outcomes are published to.
const Topic = "sentinel.sensor.outcomes"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	SensorCompletedEvent EventType = "sensor.completed"
	SensorFailedEvent    EventType = "sensor.failed"
	SensorSkippedEvent   EventType = "sensor.skipped"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SensorID  string         `json:"sensor_id"`
	RunnerID  string         `json:"runner_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SensorCompleted is published once when a sensor finishes successfully.
type SensorCompleted struct {
	BaseEvent

	Deferrals int            `json:"deferrals"`
	Result    map[string]any `json:"result,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

func (s SensorCompleted) GetType() EventType {
	return SensorCompletedEvent
}

// SensorFailed is published once when a sensor fails hard, including
// deferral-timeout failures.
type SensorFailed struct {
	BaseEvent

	Deferrals int           `json:"deferrals"`
	Error     string        `json:"error"`
	Duration  time.Duration `json:"duration"`
}

func (s SensorFailed) GetType() EventType {
	return SensorFailedEvent
}

// SensorSkipped is published once when a soft-fail sensor converts an error
// into a skip outcome.
type SensorSkipped struct {
	BaseEvent

	Reason   string        `json:"reason"`
	Duration time.Duration `json:"duration"`
}

func (s SensorSkipped) GetType() EventType {
	return SensorSkippedEvent
}
