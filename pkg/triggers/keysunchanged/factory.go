package keysunchanged

import (
	"log/slog"
	"time"

	"github.com/lodeflow/sentinel/pkg/config"
	"github.com/lodeflow/sentinel/pkg/protocol"
	"github.com/lodeflow/sentinel/pkg/storage"
)

// TriggerFactory reconstructs keysunchanged triggers, including their
// accumulated change-detection state, from serialized params.
type TriggerFactory struct {
	resolver storage.ClientResolver
}

func NewTriggerFactory(resolver storage.ClientResolver) *TriggerFactory {
	return &TriggerFactory{resolver: resolver}
}

func (f *TriggerFactory) ID() string {
	return TypeName
}

func (f *TriggerFactory) Create(params map[string]any, logger *slog.Logger) (protocol.Trigger, error) {
	connID := config.StringDefault(params, "conn_id", storage.DefaultConnID)

	store, err := f.resolver.ObjectStore(connID)
	if err != nil {
		return nil, err
	}

	var lastActivity time.Time

	if raw := config.String(params, "last_activity_time"); raw != "" {
		lastActivity, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, err
		}
	}

	state := StateFromKeys(
		config.Strings(params, "previous_objects"),
		config.DurationSeconds(params, "inactivity_seconds", 0),
		lastActivity,
	)

	return New(Trigger{
		Bucket:           config.String(params, "bucket"),
		Prefix:           config.String(params, "prefix"),
		ConnID:           connID,
		InactivityWindow: config.DurationSeconds(params, "inactivity_window", 0),
		MinObjects:       config.Int(params, "min_objects"),
		AllowDelete:      config.Bool(params, "allow_delete"),
		PokeInterval:     config.DurationSeconds(params, "poke_interval", 60*time.Second),
	}, state, store, logger)
}

func (f *TriggerFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"bucket":            map[string]any{"type": "string"},
			"prefix":            map[string]any{"type": "string"},
			"conn_id":           map[string]any{"type": "string"},
			"inactivity_window": map[string]any{"type": "number", "minimum": 0},
			"min_objects":       map[string]any{"type": "integer", "minimum": 0},
			"allow_delete":      map[string]any{"type": "boolean"},
			"poke_interval":     map[string]any{"type": "number", "exclusiveMinimum": 0},
			"previous_objects": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"inactivity_seconds": map[string]any{"type": "number", "minimum": 0},
			"last_activity_time": map[string]any{"type": "string"},
		},
		"required":             []string{"bucket"},
		"additionalProperties": false,
	}
}

var _ protocol.TriggerFactory = (*TriggerFactory)(nil)
