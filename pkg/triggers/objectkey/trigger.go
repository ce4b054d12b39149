// Package objectkey implements the existence/predicate trigger: it polls an
// object storage namespace until one or more key patterns resolve.
package objectkey

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lodeflow/sentinel/pkg/events"
	"github.com/lodeflow/sentinel/pkg/protocol"
	"github.com/lodeflow/sentinel/pkg/storage"
)

// TypeName is the registry tag this trigger serializes under.
const TypeName = "storage_key"

// Trigger polls until the configured key patterns resolve. All patterns
// must match unless MatchAny is set. When a predicate is configured on the
// owning sensor, the trigger delivers a running event with the listing and
// ends its run; the sensor evaluates the predicate and defers again if
// needed.
type Trigger struct {
	Bucket       string
	Keys         []string
	Mode         storage.MatchMode
	MatchAny     bool
	ConnID       string
	PokeInterval time.Duration
	SoftFail     bool
	HasPredicate bool

	store  storage.ObjectStore
	logger *slog.Logger
}

func New(cfg Trigger, store storage.ObjectStore, logger *slog.Logger) (*Trigger, error) {
	trigger := cfg
	trigger.store = store
	trigger.logger = logger.With("module", "objectkey_trigger", "bucket", cfg.Bucket)

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	// Validate accepted the mode, so this cannot fail; it maps "" to exact.
	trigger.Mode, _ = storage.ParseMatchMode(string(trigger.Mode))

	return &trigger, nil
}

func (t *Trigger) Validate() error {
	if t.Bucket == "" {
		return errors.New("bucket is required")
	}

	if len(t.Keys) == 0 {
		return errors.New("at least one key pattern is required")
	}

	if t.PokeInterval <= 0 {
		return errors.New("poke interval must be positive")
	}

	if _, err := storage.ParseMatchMode(string(t.Mode)); err != nil {
		return err
	}

	return nil
}

func (t *Trigger) Serialize() (string, map[string]any) {
	return TypeName, map[string]any{
		"bucket":        t.Bucket,
		"keys":          t.Keys,
		"mode":          string(t.Mode),
		"match_any":     t.MatchAny,
		"conn_id":       t.ConnID,
		"poke_interval": t.PokeInterval.Seconds(),
		"soft_fail":     t.SoftFail,
		"has_predicate": t.HasPredicate,
	}
}

func (t *Trigger) Run(ctx context.Context, emit protocol.EmitFunc) error {
	for {
		satisfied, files, err := t.poke(ctx)
		if err != nil {
			// Access failures surface immediately; retry semantics belong
			// to the sensor's re-deferral, not this loop.
			return emit(ctx, events.Error(err.Error(), t.SoftFail))
		}

		if satisfied {
			if t.HasPredicate {
				return emit(ctx, events.Running(files))
			}

			return emit(ctx, events.Success(map[string]any{
				"bucket":        t.Bucket,
				"matched_count": len(files),
			}))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.PokeInterval):
		}
	}
}

// poke resolves every configured pattern once. It reports whether the
// configured match semantics are satisfied and returns all matched objects.
func (t *Trigger) poke(ctx context.Context) (bool, []events.ObjectMeta, error) {
	var matched []events.ObjectMeta

	resolvedPatterns := 0

	for _, pattern := range t.Keys {
		files, err := storage.Resolve(ctx, t.store, t.Bucket, pattern, t.Mode)
		if err != nil {
			return false, nil, fmt.Errorf("resolve pattern %q: %w", pattern, err)
		}

		if len(files) > 0 {
			resolvedPatterns++

			matched = append(matched, files...)
		}
	}

	if t.MatchAny {
		return resolvedPatterns > 0, matched, nil
	}

	return resolvedPatterns == len(t.Keys), matched, nil
}
