package warehouse

import (
	"log/slog"
	"time"

	"github.com/lodeflow/sentinel/pkg/config"
	"github.com/lodeflow/sentinel/pkg/protocol"
	"github.com/lodeflow/sentinel/pkg/warehouse"
)

type TriggerFactory struct {
	client warehouse.JobClient
}

func NewTriggerFactory(client warehouse.JobClient) *TriggerFactory {
	return &TriggerFactory{client: client}
}

func (f *TriggerFactory) ID() string {
	return TypeName
}

func (f *TriggerFactory) Create(params map[string]any, logger *slog.Logger) (protocol.Trigger, error) {
	return New(
		config.String(params, "job_id"),
		config.DurationSeconds(params, "poke_interval", 10*time.Second),
		f.client,
		logger,
	)
}

func (f *TriggerFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"job_id":        map[string]any{"type": "string"},
			"poke_interval": map[string]any{"type": "number", "exclusiveMinimum": 0},
		},
		"required":             []string{"job_id"},
		"additionalProperties": false,
	}
}

var _ protocol.TriggerFactory = (*TriggerFactory)(nil)
