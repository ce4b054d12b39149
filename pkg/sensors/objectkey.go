package sensors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lodeflow/sentinel/pkg/deferral"
	"github.com/lodeflow/sentinel/pkg/events"
	"github.com/lodeflow/sentinel/pkg/protocol"
	"github.com/lodeflow/sentinel/pkg/storage"
	"github.com/lodeflow/sentinel/pkg/triggers/objectkey"
)

// ObjectKeyConfig configures an ObjectKeySensor.
type ObjectKeyConfig struct {
	Bucket       string   `validate:"required"`
	Keys         []string `validate:"required,min=1,dive,required"`
	Mode         storage.MatchMode
	MatchAny     bool
	ConnID       string
	PokeInterval time.Duration `validate:"gt=0"`
	Timeout      time.Duration `validate:"gt=0"`
	SoftFail     bool

	// Predicate gates success on the matched objects' metadata. When set,
	// the trigger reports listings with running events and the sensor
	// evaluates the predicate on each resume.
	Predicate PredicateFunc `validate:"-"`
}

// ObjectKeySensor succeeds once the configured key patterns exist in the
// bucket, optionally gated by a predicate over the matched objects.
type ObjectKeySensor struct {
	id       string
	cfg      ObjectKeyConfig
	resolver storage.ClientResolver
	logger   *slog.Logger
}

func NewObjectKeySensor(id string, cfg ObjectKeyConfig, resolver storage.ClientResolver, logger *slog.Logger) (*ObjectKeySensor, error) {
	if cfg.ConnID == "" {
		cfg.ConnID = storage.DefaultConnID
	}

	mode, err := storage.ParseMatchMode(string(cfg.Mode))
	if err != nil {
		return nil, err
	}

	cfg.Mode = mode

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid object key sensor config: %w", err)
	}

	return &ObjectKeySensor{
		id:       id,
		cfg:      cfg,
		resolver: resolver,
		logger:   logger.With("module", "objectkey_sensor", "sensor_id", id),
	}, nil
}

func (s *ObjectKeySensor) ID() string {
	return s.id
}

// Execute performs one immediate existence check and suspends when it is
// not satisfied. A failing check is a skip under soft-fail, a hard failure
// otherwise.
func (s *ObjectKeySensor) Execute(ctx context.Context) (*protocol.Deferral, error) {
	satisfied, err := s.poke(ctx)
	if err != nil {
		if s.cfg.SoftFail {
			return nil, deferral.Skip("%s", err.Error())
		}

		return nil, err
	}

	if satisfied {
		s.logger.Info("Keys already present, completing without deferral")

		return nil, nil
	}

	return s.suspend(ctx)
}

func (s *ObjectKeySensor) ExecuteComplete(ctx context.Context, event events.TriggerEvent) (*protocol.Deferral, error) {
	switch event.Status {
	case events.StatusSuccess:
		return nil, nil
	case events.StatusRunning:
		if s.cfg.Predicate != nil && s.cfg.Predicate(event.Files) {
			return nil, nil
		}

		s.logger.Info("Predicate not satisfied, deferring again", "files", len(event.Files))

		return s.suspend(ctx)
	case events.StatusError:
		if event.SoftFail {
			return nil, deferral.Skip("%s", event.Message)
		}

		return nil, errors.New(event.Message)
	}

	return nil, fmt.Errorf("unexpected event status %q", event.Status)
}

func (s *ObjectKeySensor) poke(ctx context.Context) (bool, error) {
	store, err := s.resolver.ObjectStore(s.cfg.ConnID)
	if err != nil {
		return false, err
	}

	var matched []events.ObjectMeta

	resolved := 0

	for _, pattern := range s.cfg.Keys {
		files, err := storage.Resolve(ctx, store, s.cfg.Bucket, pattern, s.cfg.Mode)
		if err != nil {
			return false, fmt.Errorf("poke pattern %q: %w", pattern, err)
		}

		if len(files) > 0 {
			resolved++

			matched = append(matched, files...)
		}
	}

	satisfied := resolved == len(s.cfg.Keys)
	if s.cfg.MatchAny {
		satisfied = resolved > 0
	}

	if satisfied && s.cfg.Predicate != nil {
		satisfied = s.cfg.Predicate(matched)
	}

	return satisfied, nil
}

// suspend builds a fresh, equivalent trigger; existence polling is stateless
// so nothing is carried over.
func (s *ObjectKeySensor) suspend(_ context.Context) (*protocol.Deferral, error) {
	store, err := s.resolver.ObjectStore(s.cfg.ConnID)
	if err != nil {
		return nil, err
	}

	trigger, err := objectkey.New(objectkey.Trigger{
		Bucket:       s.cfg.Bucket,
		Keys:         s.cfg.Keys,
		Mode:         s.cfg.Mode,
		MatchAny:     s.cfg.MatchAny,
		ConnID:       s.cfg.ConnID,
		PokeInterval: s.cfg.PokeInterval,
		SoftFail:     s.cfg.SoftFail,
		HasPredicate: s.cfg.Predicate != nil,
	}, store, s.logger)
	if err != nil {
		return nil, err
	}

	return &protocol.Deferral{Trigger: trigger, Timeout: s.cfg.Timeout}, nil
}
