package objectkey

import (
	"log/slog"
	"time"

	"github.com/lodeflow/sentinel/pkg/config"
	"github.com/lodeflow/sentinel/pkg/protocol"
	"github.com/lodeflow/sentinel/pkg/storage"
)

// TriggerFactory reconstructs objectkey triggers from serialized params.
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
	mode, err := storage.ParseMatchMode(config.String(params, "mode"))
	if err != nil {
		return nil, err
	}

	connID := config.StringDefault(params, "conn_id", storage.DefaultConnID)

	store, err := f.resolver.ObjectStore(connID)
	if err != nil {
		return nil, err
	}

	return New(Trigger{
		Bucket:       config.String(params, "bucket"),
		Keys:         config.Strings(params, "keys"),
		Mode:         mode,
		MatchAny:     config.Bool(params, "match_any"),
		ConnID:       connID,
		PokeInterval: config.DurationSeconds(params, "poke_interval", 60*time.Second),
		SoftFail:     config.Bool(params, "soft_fail"),
		HasPredicate: config.Bool(params, "has_predicate"),
	}, store, logger)
}

func (f *TriggerFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"bucket": map[string]any{"type": "string"},
			"keys": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 1,
			},
			"mode": map[string]any{
				"type": "string",
				"enum": []string{"exact", "wildcard", "regex"},
			},
			"match_any":     map[string]any{"type": "boolean"},
			"conn_id":       map[string]any{"type": "string"},
			"poke_interval": map[string]any{"type": "number", "exclusiveMinimum": 0},
			"soft_fail":     map[string]any{"type": "boolean"},
			"has_predicate": map[string]any{"type": "boolean"},
		},
		"required":             []string{"bucket", "keys"},
		"additionalProperties": false,
	}
}

var _ protocol.TriggerFactory = (*TriggerFactory)(nil)
