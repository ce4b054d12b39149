// Package registry maps serialized trigger type names back to factories so
// persisted triggers can be reconstructed after a host restart.
package registry

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/lodeflow/sentinel/pkg/protocol"
)

type Registry struct {
	logger    *slog.Logger
	factories map[string]protocol.TriggerFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		factories: make(map[string]protocol.TriggerFactory),
	}
}

func (r *Registry) RegisterTrigger(factory protocol.TriggerFactory) {
	r.factories[factory.ID()] = factory
}

// TriggerTypes returns the registered type names.
func (r *Registry) TriggerTypes() []string {
	types := make([]string, 0, len(r.factories))
	for id := range r.factories {
		types = append(types, id)
	}

	return types
}

// CreateTrigger reconstructs a trigger from its serialized form. Params are
// validated against the factory's schema first, so a corrupted persisted
// mapping fails here rather than mid-poll.
func (r *Registry) CreateTrigger(typeName string, params map[string]any) (protocol.Trigger, error) {
	factory, ok := r.factories[typeName]
	if !ok {
		return nil, fmt.Errorf("trigger type '%s' not registered", typeName)
	}

	if err := validateParams(factory.Schema(), params); err != nil {
		return nil, fmt.Errorf("invalid params for trigger type '%s': %w", typeName, err)
	}

	return factory.Create(params, r.logger)
}

func validateParams(schema, params map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(params),
	)
	if err != nil {
		return err
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}

	return fmt.Errorf("schema validation failed: %s", strings.Join(details, "; "))
}
