package sensors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lodeflow/sentinel/pkg/events"
	"github.com/lodeflow/sentinel/pkg/protocol"
	"github.com/lodeflow/sentinel/pkg/storage"
	"github.com/lodeflow/sentinel/pkg/triggers/keysunchanged"
)

// KeysUnchangedConfig configures a KeysUnchangedSensor. A negative
// inactivity window is a configuration error raised at construction.
type KeysUnchangedConfig struct {
	Bucket           string `validate:"required"`
	Prefix           string `validate:"required"`
	ConnID           string
	InactivityWindow time.Duration `validate:"gte=0"`
	MinObjects       int           `validate:"gte=0"`
	AllowDelete      bool
	PokeInterval     time.Duration `validate:"gt=0"`
	Timeout          time.Duration `validate:"gt=0"`
}

// KeysUnchangedSensor succeeds once the object set under a prefix has
// stopped changing for the configured window. Its change-detection history
// is threaded into every trigger it defers with, so repeated suspension
// never resets accumulated inactivity.
type KeysUnchangedSensor struct {
	id       string
	cfg      KeysUnchangedConfig
	resolver storage.ClientResolver
	logger   *slog.Logger

	state keysunchanged.State
}

func NewKeysUnchangedSensor(id string, cfg KeysUnchangedConfig, resolver storage.ClientResolver, logger *slog.Logger) (*KeysUnchangedSensor, error) {
	if cfg.ConnID == "" {
		cfg.ConnID = storage.DefaultConnID
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid keys unchanged sensor config: %w", err)
	}

	return &KeysUnchangedSensor{
		id:       id,
		cfg:      cfg,
		resolver: resolver,
		logger:   logger.With("module", "keysunchanged_sensor", "sensor_id", id),
		state:    keysunchanged.NewState(),
	}, nil
}

func (s *KeysUnchangedSensor) ID() string {
	return s.id
}

// Execute performs one listing to seed (or advance) the history, then
// suspends with a trigger carrying the exact accumulated state.
func (s *KeysUnchangedSensor) Execute(ctx context.Context) (*protocol.Deferral, error) {
	store, err := s.resolver.ObjectStore(s.cfg.ConnID)
	if err != nil {
		return nil, err
	}

	listing, err := store.List(ctx, s.cfg.Bucket, s.cfg.Prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", s.cfg.Bucket, s.cfg.Prefix, err)
	}

	if err := s.state.Advance(listing, s.cfg.PokeInterval, s.cfg.AllowDelete, s.logger); err != nil {
		return nil, err
	}

	if s.state.Satisfied(s.cfg.InactivityWindow, s.cfg.MinObjects) {
		s.logger.Info("Inactivity window already satisfied, completing without deferral")

		return nil, nil
	}

	trigger, err := keysunchanged.New(keysunchanged.Trigger{
		Bucket:           s.cfg.Bucket,
		Prefix:           s.cfg.Prefix,
		ConnID:           s.cfg.ConnID,
		InactivityWindow: s.cfg.InactivityWindow,
		MinObjects:       s.cfg.MinObjects,
		AllowDelete:      s.cfg.AllowDelete,
		PokeInterval:     s.cfg.PokeInterval,
	}, s.state, store, s.logger)
	if err != nil {
		return nil, err
	}

	return &protocol.Deferral{Trigger: trigger, Timeout: s.cfg.Timeout}, nil
}

// ExecuteComplete has no soft-fail path: an error event here is always a
// hard failure.
func (s *KeysUnchangedSensor) ExecuteComplete(_ context.Context, event events.TriggerEvent) (*protocol.Deferral, error) {
	switch event.Status {
	case events.StatusSuccess:
		return nil, nil
	case events.StatusError:
		return nil, errors.New(event.Message)
	}

	return nil, fmt.Errorf("unexpected event status %q", event.Status)
}
