package sensors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lodeflow/sentinel/pkg/events"
	"github.com/lodeflow/sentinel/pkg/protocol"
	whtrigger "github.com/lodeflow/sentinel/pkg/triggers/warehouse"
	"github.com/lodeflow/sentinel/pkg/warehouse"
)

// WarehouseJobConfig configures a WarehouseJobOperator. JobID is optional;
// when set and the job already exists the operator reattaches instead of
// submitting a duplicate.
type WarehouseJobConfig struct {
	Query        string `validate:"required"`
	JobID        string
	PokeInterval time.Duration `validate:"gt=0"`
	Timeout      time.Duration `validate:"gt=0"`
}

// WarehouseJobOperator submits a warehouse job and suspends until it
// reaches a terminal state.
type WarehouseJobOperator struct {
	id     string
	cfg    WarehouseJobConfig
	client warehouse.JobClient
	logger *slog.Logger

	jobID string
}

func NewWarehouseJobOperator(id string, cfg WarehouseJobConfig, client warehouse.JobClient, logger *slog.Logger) (*WarehouseJobOperator, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid warehouse job config: %w", err)
	}

	return &WarehouseJobOperator{
		id:     id,
		cfg:    cfg,
		client: client,
		logger: logger.With("module", "warehouse_operator", "sensor_id", id),
	}, nil
}

func (o *WarehouseJobOperator) ID() string {
	return o.id
}

// JobID returns the submitted job's ID, empty before Execute.
func (o *WarehouseJobOperator) JobID() string {
	return o.jobID
}

func (o *WarehouseJobOperator) Execute(ctx context.Context) (*protocol.Deferral, error) {
	jobID, err := o.client.SubmitJob(ctx, o.cfg.JobID, o.cfg.Query)
	if err != nil {
		return nil, err
	}

	o.jobID = jobID
	o.logger.Info("Submitted warehouse job", "job_id", jobID)

	status, err := o.client.JobStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if status.State.Terminal() {
		return nil, o.terminalOutcome(status)
	}

	trigger, err := whtrigger.New(jobID, o.cfg.PokeInterval, o.client, o.logger)
	if err != nil {
		return nil, err
	}

	return &protocol.Deferral{Trigger: trigger, Timeout: o.cfg.Timeout}, nil
}

func (o *WarehouseJobOperator) ExecuteComplete(_ context.Context, event events.TriggerEvent) (*protocol.Deferral, error) {
	switch event.Status {
	case events.StatusSuccess:
		o.logger.Info("Warehouse job finished", "job_id", o.jobID)

		return nil, nil
	case events.StatusError:
		return nil, errors.New(event.Message)
	}

	return nil, fmt.Errorf("unexpected event status %q", event.Status)
}

func (o *WarehouseJobOperator) terminalOutcome(status warehouse.JobStatus) error {
	if status.State == warehouse.StateSucceeded {
		o.logger.Info("Warehouse job already finished", "job_id", status.JobID)

		return nil
	}

	if status.Message != "" {
		return fmt.Errorf("warehouse job %s failed: %s", status.JobID, status.Message)
	}

	return fmt.Errorf("warehouse job %s failed", status.JobID)
}
