package keysunchanged

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodeflow/sentinel/pkg/events"
	"github.com/lodeflow/sentinel/pkg/log"
	"github.com/lodeflow/sentinel/pkg/storage"
)

// scriptedStore replays one listing per List call, holding the last
// listing once the script is exhausted.
type scriptedStore struct {
	mu       sync.Mutex
	listings [][]events.ObjectMeta
	err      error
	calls    int
}

func (s *scriptedStore) Head(_ context.Context, _, _ string) (events.ObjectMeta, error) {
	return events.ObjectMeta{}, storage.ErrNotFound
}

func (s *scriptedStore) List(_ context.Context, _, _ string) ([]events.ObjectMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}

	s.calls++
	if len(s.listings) == 0 {
		return nil, nil
	}

	listing := s.listings[0]
	if len(s.listings) > 1 {
		s.listings = s.listings[1:]
	}

	return listing, nil
}

func collectEvent(t *testing.T, trigger *Trigger) (events.TriggerEvent, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		got  events.TriggerEvent
		seen int
	)

	err := trigger.Run(ctx, func(_ context.Context, event events.TriggerEvent) error {
		got = event
		seen++

		return nil
	})

	require.Equal(t, 1, seen, "trigger must deliver exactly one event")

	return got, err
}

func TestTrigger_SucceedsAfterInactivityWindow(t *testing.T) {
	store := &scriptedStore{listings: [][]events.ObjectMeta{
		listing("data/part-0"),
	}}

	trigger, err := New(Trigger{
		Bucket:           "lake",
		Prefix:           "data/",
		InactivityWindow: 100 * time.Millisecond,
		MinObjects:       1,
		PokeInterval:     10 * time.Millisecond,
	}, NewState(), store, log.Discard())
	require.NoError(t, err)

	event, err := collectEvent(t, trigger)
	require.NoError(t, err)

	assert.Equal(t, events.StatusSuccess, event.Status)
	assert.Equal(t, "lake", event.Payload["bucket"])
	assert.Equal(t, "data/", event.Payload["prefix"])
	assert.Equal(t, 1, event.Payload["object_count"])
	// First poke is the change observation, then ceil(100/10) unchanged pokes.
	assert.GreaterOrEqual(t, store.calls, 11)
}

func TestTrigger_GrowthDefersSuccess(t *testing.T) {
	store := &scriptedStore{listings: [][]events.ObjectMeta{
		listing("a"),
		listing("a"),
		listing("a", "b"), // growth resets the window
		listing("a", "b"),
	}}

	trigger, err := New(Trigger{
		Bucket:           "lake",
		InactivityWindow: 20 * time.Millisecond,
		MinObjects:       1,
		PokeInterval:     10 * time.Millisecond,
	}, NewState(), store, log.Discard())
	require.NoError(t, err)

	event, err := collectEvent(t, trigger)
	require.NoError(t, err)

	assert.Equal(t, events.StatusSuccess, event.Status)
	assert.Equal(t, 2, event.Payload["object_count"])
	// Reset means the window must elapse again after the growth poke.
	assert.GreaterOrEqual(t, store.calls, 5)
}

func TestTrigger_DisallowedDeletionEmitsHardError(t *testing.T) {
	store := &scriptedStore{listings: [][]events.ObjectMeta{
		listing("a", "b"),
		listing("a"),
	}}

	trigger, err := New(Trigger{
		Bucket:           "lake",
		InactivityWindow: time.Hour,
		PokeInterval:     time.Millisecond,
	}, NewState(), store, log.Discard())
	require.NoError(t, err)

	event, err := collectEvent(t, trigger)
	require.NoError(t, err)

	assert.Equal(t, events.StatusError, event.Status)
	assert.False(t, event.SoftFail)
	assert.Contains(t, event.Message, "illegal deletion")
}

func TestTrigger_ListFailureEmitsErrorEvent(t *testing.T) {
	store := &scriptedStore{err: errors.New("connection refused")}

	trigger, err := New(Trigger{
		Bucket:           "lake",
		InactivityWindow: time.Hour,
		PokeInterval:     time.Millisecond,
	}, NewState(), store, log.Discard())
	require.NoError(t, err)

	event, err := collectEvent(t, trigger)
	require.NoError(t, err)

	assert.Equal(t, events.StatusError, event.Status)
	assert.Contains(t, event.Message, "connection refused")
}

func TestTrigger_ValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Trigger
		want string
	}{
		{
			name: "missing bucket",
			cfg:  Trigger{PokeInterval: time.Second},
			want: "bucket is required",
		},
		{
			name: "negative window",
			cfg:  Trigger{Bucket: "lake", InactivityWindow: -time.Second, PokeInterval: time.Second},
			want: "inactivity window must not be negative",
		},
		{
			name: "negative min objects",
			cfg:  Trigger{Bucket: "lake", MinObjects: -1, PokeInterval: time.Second},
			want: "minimum object count must not be negative",
		},
		{
			name: "zero poke interval",
			cfg:  Trigger{Bucket: "lake"},
			want: "poke interval must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, NewState(), &scriptedStore{}, log.Discard())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTrigger_SerializeCarriesAccumulatedState(t *testing.T) {
	store := &scriptedStore{listings: [][]events.ObjectMeta{
		listing("a", "b"),
	}}

	trigger, err := New(Trigger{
		Bucket:           "lake",
		Prefix:           "in/",
		InactivityWindow: time.Hour,
		MinObjects:       2,
		PokeInterval:     30 * time.Second,
	}, StateFromKeys([]string{"a", "b"}, 90*time.Second, time.Now().UTC()), store, log.Discard())
	require.NoError(t, err)

	typeName, params := trigger.Serialize()

	assert.Equal(t, TypeName, typeName)
	assert.Equal(t, "lake", params["bucket"])
	assert.Equal(t, []string{"a", "b"}, params["previous_objects"])
	assert.Equal(t, 90.0, params["inactivity_seconds"])
	assert.Equal(t, 3600.0, params["inactivity_window"])
	assert.NotEmpty(t, params["last_activity_time"])
}

func TestTriggerFactory_RoundTrip(t *testing.T) {
	store := &scriptedStore{}
	factory := NewTriggerFactory(staticResolver{store: store})

	original, err := New(Trigger{
		Bucket:           "lake",
		Prefix:           "in/",
		ConnID:           "storage_default",
		InactivityWindow: 100 * time.Second,
		MinObjects:       3,
		AllowDelete:      true,
		PokeInterval:     10 * time.Second,
	}, StateFromKeys([]string{"x", "y"}, 40*time.Second, time.Now().UTC()), store, log.Discard())
	require.NoError(t, err)

	typeName, params := original.Serialize()
	require.Equal(t, TypeName, typeName)

	restored, err := factory.Create(params, log.Discard())
	require.NoError(t, err)

	rebuilt, ok := restored.(*Trigger)
	require.True(t, ok)

	assert.Equal(t, original.Bucket, rebuilt.Bucket)
	assert.Equal(t, original.Prefix, rebuilt.Prefix)
	assert.Equal(t, original.InactivityWindow, rebuilt.InactivityWindow)
	assert.Equal(t, original.MinObjects, rebuilt.MinObjects)
	assert.Equal(t, original.AllowDelete, rebuilt.AllowDelete)
	assert.Equal(t, original.PokeInterval, rebuilt.PokeInterval)
	assert.Equal(t, []string{"x", "y"}, rebuilt.state.Keys())
	assert.Equal(t, 40*time.Second, rebuilt.state.Inactivity)
}

type staticResolver struct {
	store storage.ObjectStore
}

func (r staticResolver) ObjectStore(string) (storage.ObjectStore, error) {
	return r.store, nil
}
