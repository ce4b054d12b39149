package deferral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lodeflow/sentinel/pkg/eventbus"
	"github.com/lodeflow/sentinel/pkg/events"
	"github.com/lodeflow/sentinel/pkg/otelhelper"
	"github.com/lodeflow/sentinel/pkg/persistence"
	"github.com/lodeflow/sentinel/pkg/protocol"
)

var (
	// ErrNoEvent means a trigger run returned without delivering an event
	// and without failing, which violates the trigger contract.
	ErrNoEvent = errors.New("trigger run finished without emitting an event")

	// ErrDeferralTimeout means the deferral timeout elapsed before the
	// trigger fired; the sensor is failed, never resumed with a synthetic
	// event.
	ErrDeferralTimeout = errors.New("deferral timed out")

	errEventAlreadyDelivered = errors.New("trigger already delivered its event")
)

// RunInfo describes one sensor currently suspended on a trigger.
type RunInfo struct {
	SensorID    string    `json:"sensor_id"`
	TriggerType string    `json:"trigger_type"`
	StartedAt   time.Time `json:"started_at"`
	Deferrals   int       `json:"deferrals"`
}

// Runner is the host-side event loop driving deferrable sensors: it executes
// the sensor, fires its trigger on suspension, resumes the sensor with the
// trigger's event and repeats until the sensor is terminal. Terminal
// outcomes are published exactly once to the event bus.
type Runner struct {
	id        string
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	tracer    trace.Tracer
	store     persistence.TriggerStore

	mu     sync.RWMutex
	active map[string]RunInfo
}

func NewRunner(id string, publisher eventbus.EventPublisher, logger *slog.Logger) *Runner {
	return &Runner{
		id:        id,
		publisher: publisher,
		logger:    logger.With("module", "deferral_runner", "runner_id", id),
		active:    make(map[string]RunInfo),
	}
}

// WithTracer enables span creation around sensor runs.
func (r *Runner) WithTracer(tracer trace.Tracer) *Runner {
	r.tracer = tracer

	return r
}

// WithStore persists each deferral's serialized trigger before it is fired,
// so only the serialized form needs to survive a host restart.
func (r *Runner) WithStore(store persistence.TriggerStore) *Runner {
	r.store = store

	return r
}

// Active returns a snapshot of sensors currently suspended on triggers.
func (r *Runner) Active() []RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]RunInfo, 0, len(r.active))
	for _, info := range r.active {
		infos = append(infos, info)
	}

	return infos
}

// RunSensor drives one sensor to a terminal outcome. The returned error is
// nil on success, matches IsSkip on a skip outcome, and is the failure
// otherwise.
func (r *Runner) RunSensor(ctx context.Context, sensor protocol.Sensor) error {
	logger := r.logger.With("sensor_id", sensor.ID())
	started := time.Now()

	var span trace.Span

	if r.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, r.tracer, "sensor.run",
			attribute.String(otelhelper.SensorIDKey, sensor.ID()),
			attribute.String(otelhelper.RunnerIDKey, r.id),
		)
		defer span.End()
	}

	deferrals := 0

	d, err := sensor.Execute(ctx)
	for err == nil && d != nil {
		deferrals++

		triggerType, params := d.Trigger.Serialize()
		logger.Info("Sensor deferred",
			"trigger_type", triggerType,
			"timeout", d.Timeout,
			"deferrals", deferrals)

		if span != nil {
			span.SetAttributes(attribute.String(otelhelper.TriggerTypeKey, triggerType))
		}

		r.persistTrigger(ctx, sensor.ID(), triggerType, params, d.Timeout)

		r.track(sensor.ID(), RunInfo{
			SensorID:    sensor.ID(),
			TriggerType: triggerType,
			StartedAt:   started,
			Deferrals:   deferrals,
		})

		var event events.TriggerEvent

		event, err = r.fire(ctx, d)
		if err != nil {
			break
		}

		if span != nil {
			span.SetAttributes(attribute.String(otelhelper.EventStatusKey, string(event.Status)))
		}

		d, err = sensor.ExecuteComplete(ctx, event)
	}

	if span != nil && err != nil && !IsSkip(err) && !errors.Is(err, context.Canceled) {
		otelhelper.SetError(span, err,
			attribute.Int(otelhelper.DeferralsKey, deferrals))
	}

	r.untrack(sensor.ID())
	r.discardTrigger(ctx, sensor.ID())
	r.publishOutcome(ctx, sensor.ID(), deferrals, time.Since(started), err)

	return err
}

// ResumeTrigger fires a rehydrated trigger whose owning sensor did not
// survive a host restart. The trigger's terminal event is published
// directly; a running event cannot be evaluated without the sensor's
// predicate and is reported as a failure.
func (r *Runner) ResumeTrigger(ctx context.Context, spec persistence.TriggerSpec, trigger protocol.Trigger) error {
	timeout := time.Duration(0)
	if !spec.TimeoutAt.IsZero() {
		timeout = time.Until(spec.TimeoutAt)
		if timeout <= 0 {
			r.discardTrigger(ctx, spec.ID)
			r.publishOutcome(ctx, spec.SensorID, 1, 0, ErrDeferralTimeout)

			return ErrDeferralTimeout
		}
	}

	started := time.Now()

	r.track(spec.ID, RunInfo{
		SensorID:    spec.SensorID,
		TriggerType: spec.Type,
		StartedAt:   started,
		Deferrals:   1,
	})
	defer r.untrack(spec.ID)

	event, err := r.fire(ctx, &protocol.Deferral{Trigger: trigger, Timeout: timeout})
	if err == nil {
		switch event.Status {
		case events.StatusSuccess:
		case events.StatusError:
			if event.SoftFail {
				err = Skip("%s", event.Message)
			} else {
				err = errors.New(event.Message)
			}
		default:
			err = fmt.Errorf("cannot evaluate %s event without the owning sensor", event.Status)
		}
	}

	r.discardTrigger(ctx, spec.ID)
	r.publishOutcome(ctx, spec.SensorID, 1, time.Since(started), err)

	return err
}

func (r *Runner) persistTrigger(ctx context.Context, sensorID, triggerType string, params map[string]any, timeout time.Duration) {
	if r.store == nil {
		return
	}

	spec := persistence.TriggerSpec{
		ID:        sensorID,
		SensorID:  sensorID,
		Type:      triggerType,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}
	if timeout > 0 {
		spec.TimeoutAt = spec.CreatedAt.Add(timeout)
	}

	if err := r.store.Save(ctx, spec); err != nil {
		r.logger.ErrorContext(ctx, "Failed to persist trigger", "sensor_id", sensorID, "error", err)
	}
}

func (r *Runner) discardTrigger(ctx context.Context, sensorID string) {
	if r.store == nil {
		return
	}

	if err := r.store.Delete(ctx, sensorID); err != nil {
		r.logger.ErrorContext(ctx, "Failed to discard persisted trigger", "sensor_id", sensorID, "error", err)
	}
}

// fire runs one trigger under the deferral timeout and waits for its single
// event. A coroutine-level failure of the trigger maps to an error event; a
// timeout or cancellation is returned as an error without any event.
func (r *Runner) fire(ctx context.Context, d *protocol.Deferral) (events.TriggerEvent, error) {
	runCtx := ctx

	var cancel context.CancelFunc

	if d.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	eventCh := make(chan events.TriggerEvent, 1)

	var once sync.Once

	emit := func(emitCtx context.Context, event events.TriggerEvent) error {
		// A cancelled trigger must not deliver anything.
		if runCtx.Err() != nil {
			return runCtx.Err()
		}

		delivered := false

		once.Do(func() {
			eventCh <- event
			delivered = true
		})

		if !delivered {
			return errEventAlreadyDelivered
		}

		return nil
	}

	runErr := make(chan error, 1)

	go func() {
		runErr <- d.Trigger.Run(runCtx, emit)
	}()

	select {
	case event := <-eventCh:
		return event, nil
	case err := <-runErr:
		// The run may have emitted and returned in the same instant; a
		// delivered event always wins over the return value.
		select {
		case event := <-eventCh:
			return event, nil
		default:
		}

		if err == nil {
			return events.TriggerEvent{}, ErrNoEvent
		}

		if ctx.Err() != nil {
			return events.TriggerEvent{}, ctx.Err()
		}

		if runCtx.Err() != nil {
			return events.TriggerEvent{}, fmt.Errorf("after %s: %w", d.Timeout, ErrDeferralTimeout)
		}

		// An uncaught trigger failure is equivalent to an error event.
		return events.Error(err.Error(), false), nil
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return events.TriggerEvent{}, ctx.Err()
		}

		return events.TriggerEvent{}, fmt.Errorf("after %s: %w", d.Timeout, ErrDeferralTimeout)
	}
}

func (r *Runner) track(sensorID string, info RunInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.active[sensorID] = info
}

func (r *Runner) untrack(sensorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.active, sensorID)
}

func (r *Runner) publishOutcome(ctx context.Context, sensorID string, deferrals int, duration time.Duration, err error) {
	if r.publisher == nil {
		return
	}

	// A cancelled run has no outcome to report; the host owns cancellation.
	if errors.Is(err, context.Canceled) {
		return
	}

	base := events.BaseEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		SensorID:  sensorID,
		RunnerID:  r.id,
	}

	var (
		event      eventbus.Event
		outcomeErr error
	)

	switch {
	case err == nil:
		base.Type = events.SensorCompletedEvent
		event = events.SensorCompleted{BaseEvent: base, Deferrals: deferrals, Duration: duration}
	case IsSkip(err):
		base.Type = events.SensorSkippedEvent
		event = events.SensorSkipped{BaseEvent: base, Reason: err.Error(), Duration: duration}
	default:
		base.Type = events.SensorFailedEvent
		event = events.SensorFailed{BaseEvent: base, Deferrals: deferrals, Error: err.Error(), Duration: duration}
	}

	outcomeErr = r.publisher.Publish(ctx, sensorID, event)
	if outcomeErr != nil {
		r.logger.ErrorContext(ctx, "Failed to publish sensor outcome",
			"sensor_id", sensorID,
			"error", outcomeErr)
	}
}
