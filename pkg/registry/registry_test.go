package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodeflow/sentinel/pkg/events"
	"github.com/lodeflow/sentinel/pkg/log"
	"github.com/lodeflow/sentinel/pkg/storage"
	"github.com/lodeflow/sentinel/pkg/triggers/httpcheck"
	"github.com/lodeflow/sentinel/pkg/triggers/objectkey"
)

type emptyStore struct{}

func (emptyStore) Head(context.Context, string, string) (events.ObjectMeta, error) {
	return events.ObjectMeta{}, storage.ErrNotFound
}

func (emptyStore) List(context.Context, string, string) ([]events.ObjectMeta, error) {
	return nil, nil
}

type emptyResolver struct{}

func (emptyResolver) ObjectStore(string) (storage.ObjectStore, error) {
	return emptyStore{}, nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	registry := NewRegistry(log.Discard())
	registry.RegisterTrigger(objectkey.NewTriggerFactory(emptyResolver{}))
	registry.RegisterTrigger(httpcheck.NewTriggerFactory())

	return registry
}

func TestRegistry_TriggerTypes(t *testing.T) {
	registry := newTestRegistry(t)

	assert.ElementsMatch(t, []string{objectkey.TypeName, httpcheck.TypeName}, registry.TriggerTypes())
}

func TestRegistry_UnknownTypeIsAnError(t *testing.T) {
	registry := newTestRegistry(t)

	_, err := registry.CreateTrigger("no_such_trigger", map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegistry_RejectsParamsFailingSchema(t *testing.T) {
	registry := newTestRegistry(t)

	tests := []struct {
		name   string
		params map[string]any
	}{
		{
			name:   "missing required bucket",
			params: map[string]any{"keys": []any{"a"}},
		},
		{
			name:   "empty key list",
			params: map[string]any{"bucket": "lake", "keys": []any{}},
		},
		{
			name: "unknown property",
			params: map[string]any{
				"bucket": "lake",
				"keys":   []any{"a"},
				"bukket": "typo",
			},
		},
		{
			name: "non-positive poke interval",
			params: map[string]any{
				"bucket":        "lake",
				"keys":          []any{"a"},
				"poke_interval": 0,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.CreateTrigger(objectkey.TypeName, tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid params")
		})
	}
}

func TestRegistry_RebuildsSerializedTrigger(t *testing.T) {
	registry := newTestRegistry(t)

	original, err := objectkey.New(objectkey.Trigger{
		Bucket:       "lake",
		Keys:         []string{"in/a", "in/b"},
		Mode:         storage.MatchExact,
		PokeInterval: 30 * time.Second,
		SoftFail:     true,
	}, emptyStore{}, log.Discard())
	require.NoError(t, err)

	typeName, params := original.Serialize()

	restored, err := registry.CreateTrigger(typeName, params)
	require.NoError(t, err)

	rebuilt, ok := restored.(*objectkey.Trigger)
	require.True(t, ok)
	assert.Equal(t, original.Bucket, rebuilt.Bucket)
	assert.Equal(t, original.Keys, rebuilt.Keys)
	assert.Equal(t, original.PokeInterval, rebuilt.PokeInterval)
	assert.Equal(t, original.SoftFail, rebuilt.SoftFail)
}
