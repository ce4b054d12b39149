package sensors

import (
	"context"
	"strings"
	"sync"

	"github.com/lodeflow/sentinel/pkg/events"
	"github.com/lodeflow/sentinel/pkg/storage"
)

// memoryStore is a mutable in-memory ObjectStore shared by the sensor tests.
type memoryStore struct {
	mu      sync.Mutex
	objects map[string]events.ObjectMeta
	headErr error
	listErr error
}

func newMemoryStore(keys ...string) *memoryStore {
	store := &memoryStore{objects: make(map[string]events.ObjectMeta)}
	for _, key := range keys {
		store.objects[key] = events.ObjectMeta{Key: key, Size: 1}
	}

	return store
}

func (s *memoryStore) put(key string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[key] = events.ObjectMeta{Key: key, Size: size}
}

func (s *memoryStore) Head(_ context.Context, _, key string) (events.ObjectMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.headErr != nil {
		return events.ObjectMeta{}, s.headErr
	}

	meta, ok := s.objects[key]
	if !ok {
		return events.ObjectMeta{}, storage.ErrNotFound
	}

	return meta, nil
}

func (s *memoryStore) List(_ context.Context, _, prefix string) ([]events.ObjectMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}

	var listing []events.ObjectMeta

	for key, meta := range s.objects {
		if strings.HasPrefix(key, prefix) {
			listing = append(listing, meta)
		}
	}

	return listing, nil
}

type staticResolver struct {
	store storage.ObjectStore
}

func (r staticResolver) ObjectStore(string) (storage.ObjectStore, error) {
	return r.store, nil
}
