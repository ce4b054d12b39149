package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gofiber/fiber/v3"
	"github.com/robfig/cron/v3"
	cli "github.com/urfave/cli/v3"

	"github.com/lodeflow/sentinel/pkg/channels/gochannel"
	"github.com/lodeflow/sentinel/pkg/channels/kafka"
	"github.com/lodeflow/sentinel/pkg/deferral"
	"github.com/lodeflow/sentinel/pkg/eventbus"
	"github.com/lodeflow/sentinel/pkg/events"
	"github.com/lodeflow/sentinel/pkg/otelhelper"
	"github.com/lodeflow/sentinel/pkg/persistence"
	filestore "github.com/lodeflow/sentinel/pkg/persistence/file"
	"github.com/lodeflow/sentinel/pkg/persistence/redisstore"
	"github.com/lodeflow/sentinel/pkg/registry"
	"github.com/lodeflow/sentinel/pkg/storage"
	"github.com/lodeflow/sentinel/pkg/triggers/httpcheck"
	"github.com/lodeflow/sentinel/pkg/triggers/keysunchanged"
	"github.com/lodeflow/sentinel/pkg/triggers/objectkey"
	whtrigger "github.com/lodeflow/sentinel/pkg/triggers/warehouse"
	"github.com/lodeflow/sentinel/pkg/warehouse"
	"github.com/lodeflow/sentinel/pkg/web"
)

// Triggerer hosts the trigger event loop: it resumes persisted triggers on
// start, reports health on a schedule and serves the status API.
type Triggerer struct {
	id       string
	logger   *slog.Logger
	bus      eventbus.EventBus
	runner   *deferral.Runner
	registry *registry.Registry
	store    persistence.TriggerStore
	apiPort  int
}

func NewTriggerer(ctx context.Context, id string, command *cli.Command, logger *slog.Logger) (*Triggerer, error) {
	bus, err := newEventBus(command.String("event-bus"), logger)
	if err != nil {
		return nil, err
	}

	store, err := newTriggerStore(ctx, command)
	if err != nil {
		return nil, err
	}

	reg := registry.NewRegistry(logger)
	resolver := storage.NewResolverFromEnv()

	reg.RegisterTrigger(objectkey.NewTriggerFactory(resolver))
	reg.RegisterTrigger(keysunchanged.NewTriggerFactory(resolver))
	reg.RegisterTrigger(httpcheck.NewTriggerFactory())

	if url := command.String("warehouse-url"); url != "" {
		client, err := warehouse.NewPostgresJobClient(ctx, url, logger)
		if err != nil {
			return nil, err
		}

		reg.RegisterTrigger(whtrigger.NewTriggerFactory(client))
	}

	runner := deferral.NewRunner(id, bus, logger)
	if store != nil {
		runner = runner.WithStore(store)
	}

	if command.Bool("tracing") {
		tracer, err := otelhelper.NewTracer(ctx, "sentinel-triggerer")
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}

		runner = runner.WithTracer(tracer)
	}

	return &Triggerer{
		id:       id,
		logger:   logger,
		bus:      bus,
		runner:   runner,
		registry: reg,
		store:    store,
		apiPort:  int(command.Int("api-port")),
	}, nil
}

func (t *Triggerer) Run(ctx context.Context) error {
	defer func() {
		if err := t.bus.Close(); err != nil {
			t.logger.Error("Failed to close event bus", "error", err)
		}

		if t.store != nil {
			if err := t.store.Close(); err != nil {
				t.logger.Error("Failed to close trigger store", "error", err)
			}
		}
	}()

	if err := t.consumeOutcomes(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to sensor outcomes: %w", err)
	}

	t.resumePersisted(ctx)

	healthCron := cron.New()

	_, err := healthCron.AddFunc("@every 1m", func() {
		t.logger.Info("Triggerer health", "active_triggers", len(t.runner.Active()))
	})
	if err != nil {
		return err
	}

	healthCron.Start()
	defer healthCron.Stop()

	app := fiber.New()
	web.NewAPIHandlers(t.runner, t.registry, t.store).Register(app)

	go func() {
		if err := app.Listen(":" + strconv.Itoa(t.apiPort)); err != nil {
			t.logger.Error("Status API stopped", "error", err)
		}
	}()

	t.logger.InfoContext(ctx, "Triggerer started", "api_port", t.apiPort)

	<-ctx.Done()
	t.logger.Info("Shutting down triggerer")

	return app.Shutdown()
}

// consumeOutcomes subscribes the triggerer to its own outcome topic and logs
// each terminal sensor result. External consumers attach to the same topic.
func (t *Triggerer) consumeOutcomes(ctx context.Context) error {
	handler := func(ctx context.Context, event any) error {
		switch e := event.(type) {
		case *events.SensorCompleted:
			t.logger.InfoContext(ctx, "Sensor completed",
				"sensor_id", e.SensorID,
				"deferrals", e.Deferrals,
				"duration", e.Duration)
		case *events.SensorFailed:
			t.logger.WarnContext(ctx, "Sensor failed",
				"sensor_id", e.SensorID,
				"deferrals", e.Deferrals,
				"error", e.Error)
		case *events.SensorSkipped:
			t.logger.InfoContext(ctx, "Sensor skipped",
				"sensor_id", e.SensorID,
				"reason", e.Reason)
		}

		return nil
	}

	outcomes := []events.EventType{
		events.SensorCompletedEvent,
		events.SensorFailedEvent,
		events.SensorSkippedEvent,
	}

	for _, eventType := range outcomes {
		if err := t.bus.Handle(eventType, handler); err != nil {
			return err
		}
	}

	return t.bus.Subscribe(ctx)
}

// resumePersisted reconstructs persisted triggers from their serialized
// form and fires each on its own goroutine.
func (t *Triggerer) resumePersisted(ctx context.Context) {
	if t.store == nil {
		return
	}

	specs, err := t.store.List(ctx)
	if err != nil {
		t.logger.Error("Failed to list persisted triggers", "error", err)

		return
	}

	for _, spec := range specs {
		trigger, err := t.registry.CreateTrigger(spec.Type, spec.Params)
		if err != nil {
			t.logger.Error("Failed to reconstruct trigger",
				"trigger_id", spec.ID,
				"trigger_type", spec.Type,
				"error", err)

			continue
		}

		t.logger.Info("Resuming persisted trigger", "trigger_id", spec.ID, "trigger_type", spec.Type)

		go func(spec persistence.TriggerSpec) {
			if err := t.runner.ResumeTrigger(ctx, spec, trigger); err != nil {
				t.logger.Warn("Resumed trigger finished with failure",
					"trigger_id", spec.ID,
					"error", err)
			}
		}(spec)
	}
}

func newEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "sentinel")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider %q", provider)
	}
}

func newTriggerStore(ctx context.Context, command *cli.Command) (persistence.TriggerStore, error) {
	switch command.String("trigger-store") {
	case "file":
		store, err := filestore.NewStore(command.String("trigger-store-path"))
		if err != nil {
			return nil, err
		}

		return store, nil
	case "redis":
		store, err := redisstore.NewStore(ctx, command.String("redis-url"))
		if err != nil {
			return nil, err
		}

		return store, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported trigger store %q", command.String("trigger-store"))
	}
}
