package protocol

import (
	"context"
	"time"

	"github.com/lodeflow/sentinel/pkg/events"
)

// Deferral is a sensor's request to suspend: register Trigger with the host
// event loop and resume the sensor with the trigger's event, failing the
// sensor if Timeout elapses first.
type Deferral struct {
	Trigger Trigger
	Timeout time.Duration
}

// Sensor is a deferrable unit of work. Execute runs once per scheduling
// attempt and performs one fast, non-blocking check; ExecuteComplete runs
// once per resume.
//
// Both return (nil, nil) when the sensor is done, a non-nil Deferral to
// suspend, or an error to fail. A skip outcome is signalled with an error
// matching deferral.IsSkip.
type Sensor interface {
	ID() string
	Execute(ctx context.Context) (*Deferral, error)
	ExecuteComplete(ctx context.Context, event events.TriggerEvent) (*Deferral, error)
}
