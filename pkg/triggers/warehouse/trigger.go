// Package warehouse implements the warehouse job trigger: it polls a
// submitted job until it reaches a terminal state.
package warehouse

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lodeflow/sentinel/pkg/events"
	"github.com/lodeflow/sentinel/pkg/protocol"
	"github.com/lodeflow/sentinel/pkg/warehouse"
)

// TypeName is the registry tag this trigger serializes under.
const TypeName = "warehouse_job"

type Trigger struct {
	JobID        string
	PokeInterval time.Duration

	client warehouse.JobClient
	logger *slog.Logger
}

func New(jobID string, pokeInterval time.Duration, client warehouse.JobClient, logger *slog.Logger) (*Trigger, error) {
	trigger := &Trigger{
		JobID:        jobID,
		PokeInterval: pokeInterval,
		client:       client,
		logger:       logger.With("module", "warehouse_trigger", "job_id", jobID),
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

func (t *Trigger) Validate() error {
	if t.JobID == "" {
		return errors.New("job id is required")
	}

	if t.PokeInterval <= 0 {
		return errors.New("poke interval must be positive")
	}

	return nil
}

func (t *Trigger) Serialize() (string, map[string]any) {
	return TypeName, map[string]any{
		"job_id":        t.JobID,
		"poke_interval": t.PokeInterval.Seconds(),
	}
}

func (t *Trigger) Run(ctx context.Context, emit protocol.EmitFunc) error {
	for {
		status, err := t.client.JobStatus(ctx, t.JobID)
		if err != nil {
			return emit(ctx, events.Error(err.Error(), false))
		}

		switch status.State {
		case warehouse.StateSucceeded:
			return emit(ctx, events.Success(map[string]any{
				"job_id": t.JobID,
			}))
		case warehouse.StateFailed:
			return emit(ctx, events.Error(status.Message, false))
		default:
			t.logger.Debug("Job still in progress", "state", status.State)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.PokeInterval):
		}
	}
}
