// Package keysunchanged implements the inactivity trigger: it polls an
// object storage prefix until its object set has stopped changing for a
// configured window.
package keysunchanged

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lodeflow/sentinel/pkg/events"
	"github.com/lodeflow/sentinel/pkg/protocol"
	"github.com/lodeflow/sentinel/pkg/storage"
)

// TypeName is the registry tag this trigger serializes under.
const TypeName = "storage_keys_unchanged"

// Trigger succeeds once the object set under Prefix has been stable for
// InactivityWindow with at least MinObjects present. Its state survives
// serialization so re-deferral never resets the accumulated history.
type Trigger struct {
	Bucket           string
	Prefix           string
	ConnID           string
	InactivityWindow time.Duration
	MinObjects       int
	AllowDelete      bool
	PokeInterval     time.Duration

	mu    sync.Mutex
	state State

	store  storage.ObjectStore
	logger *slog.Logger
}

func New(cfg Trigger, state State, store storage.ObjectStore, logger *slog.Logger) (*Trigger, error) {
	trigger := &Trigger{
		Bucket:           cfg.Bucket,
		Prefix:           cfg.Prefix,
		ConnID:           cfg.ConnID,
		InactivityWindow: cfg.InactivityWindow,
		MinObjects:       cfg.MinObjects,
		AllowDelete:      cfg.AllowDelete,
		PokeInterval:     cfg.PokeInterval,
		state:            state,
		store:            store,
		logger:           logger.With("module", "keysunchanged_trigger", "bucket", cfg.Bucket, "prefix", cfg.Prefix),
	}

	if trigger.state.Previous == nil {
		trigger.state = NewState()
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

func (t *Trigger) Validate() error {
	if t.Bucket == "" {
		return errors.New("bucket is required")
	}

	if t.InactivityWindow < 0 {
		return errors.New("inactivity window must not be negative")
	}

	if t.MinObjects < 0 {
		return errors.New("minimum object count must not be negative")
	}

	if t.PokeInterval <= 0 {
		return errors.New("poke interval must be positive")
	}

	return nil
}

func (t *Trigger) Serialize() (string, map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lastActivity := ""
	if !t.state.LastActivity.IsZero() {
		lastActivity = t.state.LastActivity.UTC().Format(time.RFC3339Nano)
	}

	return TypeName, map[string]any{
		"bucket":             t.Bucket,
		"prefix":             t.Prefix,
		"conn_id":            t.ConnID,
		"inactivity_window":  t.InactivityWindow.Seconds(),
		"min_objects":        t.MinObjects,
		"allow_delete":       t.AllowDelete,
		"poke_interval":      t.PokeInterval.Seconds(),
		"previous_objects":   t.state.Keys(),
		"inactivity_seconds": t.state.Inactivity.Seconds(),
		"last_activity_time": lastActivity,
	}
}

func (t *Trigger) Run(ctx context.Context, emit protocol.EmitFunc) error {
	for {
		listing, err := t.store.List(ctx, t.Bucket, t.Prefix)
		if err != nil {
			return emit(ctx, events.Error(err.Error(), false))
		}

		satisfied, err := t.observe(listing)
		if err != nil {
			// Disallowed deletion is a semantic violation, always hard.
			return emit(ctx, events.Error(err.Error(), false))
		}

		if satisfied {
			return emit(ctx, events.Success(map[string]any{
				"bucket":       t.Bucket,
				"prefix":       t.Prefix,
				"object_count": len(listing),
			}))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.PokeInterval):
		}
	}
}

func (t *Trigger) observe(listing []events.ObjectMeta) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.state.Advance(listing, t.PokeInterval, t.AllowDelete, t.logger); err != nil {
		return false, err
	}

	t.logger.Debug("Observed object set",
		"object_count", len(t.state.Previous),
		"inactivity", t.state.Inactivity)

	return t.state.Satisfied(t.InactivityWindow, t.MinObjects), nil
}
