// Package events defines the event types exchanged between triggers, sensors
// and the host event queue.
package events

import (
	"time"
)

// Status tags the outcome carried by a TriggerEvent.
type Status string

const (
	// StatusRunning means the condition is not met yet; the sensor decides
	// whether to finish or defer again. Carries the current listing for
	// predicate-based checks.
	StatusRunning Status = "running"

	// StatusSuccess is the terminal "condition met" outcome.
	StatusSuccess Status = "success"

	// StatusError is the terminal "condition cannot be met" outcome.
	StatusError Status = "error"
)

// ObjectMeta describes one stored object in a listing returned by a trigger.
type ObjectMeta struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified,omitzero"`
}

// TriggerEvent is the single result a trigger run delivers back to its
// owning sensor.
type TriggerEvent struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`

	// SoftFail mirrors the sensor's soft-fail flag on error events so the
	// resume path can decide skip vs. hard failure without reloading config.
	SoftFail bool `json:"soft_fail,omitempty"`

	// Files carries the current listing on running events.
	Files []ObjectMeta `json:"files,omitempty"`

	// Payload carries integration-specific result data on success events.
	Payload map[string]any `json:"payload,omitempty"`
}

// Success builds a terminal success event.
func Success(payload map[string]any) TriggerEvent {
	return TriggerEvent{Status: StatusSuccess, Payload: payload}
}

// Running builds a non-terminal event carrying the current listing.
func Running(files []ObjectMeta) TriggerEvent {
	return TriggerEvent{Status: StatusRunning, Files: files}
}

// Error builds a terminal error event.
func Error(message string, softFail bool) TriggerEvent {
	return TriggerEvent{Status: StatusError, Message: message, SoftFail: softFail}
}

// Terminal reports whether the event ends a sensor run outright. Running
// events are decided by the sensor, not the trigger.
func (e TriggerEvent) Terminal() bool {
	return e.Status == StatusSuccess || e.Status == StatusError
}
