// Package persistence stores serialized triggers so the host can discard
// live trigger objects and reconstruct them after a process restart.
package persistence

import (
	"context"
	"errors"
	"time"
)

// ErrTriggerNotFound is returned when no trigger is stored under an ID.
var ErrTriggerNotFound = errors.New("trigger not found")

// TriggerSpec is the restartable form of a trigger: the registry tag plus
// the parameter mapping its factory rebuilds it from. Params hold only
// plain serializable values, never live handles.
type TriggerSpec struct {
	ID        string         `json:"id"`
	SensorID  string         `json:"sensor_id"`
	Type      string         `json:"type"`
	Params    map[string]any `json:"params"`
	TimeoutAt time.Time      `json:"timeout_at,omitzero"`
	CreatedAt time.Time      `json:"created_at"`
}

// TriggerStore persists trigger specs across host restarts.
type TriggerStore interface {
	Save(ctx context.Context, spec TriggerSpec) error
	Get(ctx context.Context, id string) (TriggerSpec, error)
	List(ctx context.Context) ([]TriggerSpec, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
