package httpcheck

import (
	"log/slog"
	"time"

	"github.com/lodeflow/sentinel/pkg/config"
	"github.com/lodeflow/sentinel/pkg/protocol"
)

type TriggerFactory struct{}

func NewTriggerFactory() *TriggerFactory {
	return &TriggerFactory{}
}

func (f *TriggerFactory) ID() string {
	return TypeName
}

func (f *TriggerFactory) Create(params map[string]any, logger *slog.Logger) (protocol.Trigger, error) {
	return New(Trigger{
		URL:          config.String(params, "url"),
		Method:       config.String(params, "method"),
		Headers:      config.StringMap(params, "headers"),
		Body:         config.String(params, "body"),
		PokeInterval: config.DurationSeconds(params, "poke_interval", 5*time.Second),
	}, logger)
}

func (f *TriggerFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":    map[string]any{"type": "string"},
			"method": map[string]any{"type": "string", "enum": []string{"GET", "POST"}},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"body":          map[string]any{"type": "string"},
			"poke_interval": map[string]any{"type": "number", "exclusiveMinimum": 0},
		},
		"required":             []string{"url"},
		"additionalProperties": false,
	}
}

var _ protocol.TriggerFactory = (*TriggerFactory)(nil)
