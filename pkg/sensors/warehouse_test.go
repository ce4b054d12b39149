package sensors

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodeflow/sentinel/pkg/deferral"
	"github.com/lodeflow/sentinel/pkg/log"
	"github.com/lodeflow/sentinel/pkg/warehouse"
)

// fakeJobClient tracks submitted jobs and walks each one through a scripted
// sequence of states, one step per status poll.
type fakeJobClient struct {
	mu     sync.Mutex
	script []warehouse.JobState
	step   map[string]int
	jobs   map[string]string
	failed string
}

func newFakeJobClient(script ...warehouse.JobState) *fakeJobClient {
	return &fakeJobClient{
		script: script,
		step:   make(map[string]int),
		jobs:   make(map[string]string),
	}
}

func (c *fakeJobClient) SubmitJob(_ context.Context, jobID, query string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if jobID == "" {
		jobID = "job-" + uuid.New().String()
	}

	if _, ok := c.jobs[jobID]; !ok {
		c.jobs[jobID] = query
	}

	return jobID, nil
}

func (c *fakeJobClient) JobStatus(_ context.Context, jobID string) (warehouse.JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.jobs[jobID]; !ok {
		return warehouse.JobStatus{}, warehouse.ErrJobNotFound
	}

	i := c.step[jobID]
	if i >= len(c.script) {
		i = len(c.script) - 1
	}

	c.step[jobID]++

	status := warehouse.JobStatus{JobID: jobID, State: c.script[i]}
	if status.State == warehouse.StateFailed {
		status.Message = c.failed
	}

	return status, nil
}

func warehouseConfig() WarehouseJobConfig {
	return WarehouseJobConfig{
		Query:        "COPY INTO reports FROM @stage",
		PokeInterval: time.Millisecond,
		Timeout:      time.Minute,
	}
}

func TestWarehouseJobOperator_CompletesWithoutDeferralWhenAlreadyTerminal(t *testing.T) {
	client := newFakeJobClient(warehouse.StateSucceeded)

	operator, err := NewWarehouseJobOperator("op1", warehouseConfig(), client, log.Discard())
	require.NoError(t, err)

	d, err := operator.Execute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.NotEmpty(t, operator.JobID())
}

func TestWarehouseJobOperator_DefersWhileJobRuns(t *testing.T) {
	client := newFakeJobClient(warehouse.StateRunning, warehouse.StateSucceeded)

	operator, err := NewWarehouseJobOperator("op1", warehouseConfig(), client, log.Discard())
	require.NoError(t, err)

	d, err := operator.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d)

	typeName, params := d.Trigger.Serialize()
	assert.Equal(t, "warehouse_job", typeName)
	assert.Equal(t, operator.JobID(), params["job_id"])
}

func TestWarehouseJobOperator_ImmediateFailureCarriesMessage(t *testing.T) {
	client := newFakeJobClient(warehouse.StateFailed)
	client.failed = "syntax error at line 3"

	operator, err := NewWarehouseJobOperator("op1", warehouseConfig(), client, log.Discard())
	require.NoError(t, err)

	_, err = operator.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syntax error at line 3")
}

func TestWarehouseJobOperator_ReattachesToExplicitJobID(t *testing.T) {
	client := newFakeJobClient(warehouse.StateSucceeded)

	cfg := warehouseConfig()
	cfg.JobID = "nightly-load"

	operator, err := NewWarehouseJobOperator("op1", cfg, client, log.Discard())
	require.NoError(t, err)

	d, err := operator.Execute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Equal(t, "nightly-load", operator.JobID())
}

func TestWarehouseJobOperator_EndToEndThroughRunner(t *testing.T) {
	client := newFakeJobClient(
		warehouse.StatePending,
		warehouse.StateRunning,
		warehouse.StateRunning,
		warehouse.StateSucceeded,
	)

	operator, err := NewWarehouseJobOperator("op1", warehouseConfig(), client, log.Discard())
	require.NoError(t, err)

	runner := deferral.NewRunner("runner-1", nil, log.Discard())

	require.NoError(t, runner.RunSensor(context.Background(), operator))
}

func TestWarehouseJobOperator_RunnerSurfacesJobFailure(t *testing.T) {
	client := newFakeJobClient(
		warehouse.StateRunning,
		warehouse.StateFailed,
	)
	client.failed = "disk quota exceeded"

	operator, err := NewWarehouseJobOperator("op1", warehouseConfig(), client, log.Discard())
	require.NoError(t, err)

	runner := deferral.NewRunner("runner-1", nil, log.Discard())

	err = runner.RunSensor(context.Background(), operator)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk quota exceeded")
}

func TestNewWarehouseJobOperator_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  WarehouseJobConfig
	}{
		{name: "missing query", cfg: WarehouseJobConfig{PokeInterval: time.Second, Timeout: time.Second}},
		{name: "zero poke interval", cfg: WarehouseJobConfig{Query: "SELECT 1", Timeout: time.Second}},
		{name: "zero timeout", cfg: WarehouseJobConfig{Query: "SELECT 1", PokeInterval: time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWarehouseJobOperator("op1", tt.cfg, newFakeJobClient(warehouse.StateSucceeded), log.Discard())
			require.Error(t, err)
		})
	}
}
