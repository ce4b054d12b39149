package protocol

import (
	"context"
	"log/slog"

	"github.com/lodeflow/sentinel/pkg/events"
)

// EmitFunc delivers one event from a running trigger to the host. The host
// wraps it so that delivery after cancellation, or after a previous event,
// is refused with an error.
type EmitFunc func(ctx context.Context, event events.TriggerEvent) error

// Trigger is a restartable polling unit scheduled by the host event loop.
//
// Run polls until it has delivered exactly one event through emit, the
// context is cancelled, or the poll itself fails. A returned error is a
// coroutine-level failure: the host maps it to the same outcome as an error
// event. A used Trigger is never restarted; the host reconstructs a fresh
// one from its serialized form.
type Trigger interface {
	Run(ctx context.Context, emit EmitFunc) error

	// Serialize returns the registered type name and a mapping of plain
	// serializable values sufficient to reconstruct this trigger, including
	// any polling state accumulated so far.
	Serialize() (string, map[string]any)

	Validate() error
}

// TriggerFactory reconstructs triggers of one registered type from their
// serialized parameter mapping.
type TriggerFactory interface {
	Create(config map[string]any, logger *slog.Logger) (Trigger, error)
	ID() string

	// Schema returns a JSON Schema describing the parameter mapping; the
	// registry validates params against it before Create.
	Schema() map[string]any
}
