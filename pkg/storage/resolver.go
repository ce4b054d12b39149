package storage

import (
	"fmt"
	"os"
	"sync"
)

// DefaultConnID is the connection used when a sensor does not name one.
const DefaultConnID = "storage_default"

// StaticResolver maps connection IDs to endpoint configs registered up
// front. Every ObjectStore call builds a fresh client so concurrent
// triggers never share a handle.
type StaticResolver struct {
	mu    sync.RWMutex
	conns map[string]Config
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{conns: make(map[string]Config)}
}

// NewResolverFromEnv registers the default connection from
// STORAGE_ENDPOINT / STORAGE_ACCESS_KEY / STORAGE_SECRET_KEY.
func NewResolverFromEnv() *StaticResolver {
	resolver := NewStaticResolver()

	if endpoint := os.Getenv("STORAGE_ENDPOINT"); endpoint != "" {
		resolver.Register(DefaultConnID, Config{
			Endpoint:        endpoint,
			AccessKeyID:     os.Getenv("STORAGE_ACCESS_KEY"),
			SecretAccessKey: os.Getenv("STORAGE_SECRET_KEY"),
			UseSSL:          os.Getenv("STORAGE_USE_SSL") == "true",
		})
	}

	return resolver
}

func (r *StaticResolver) Register(connID string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[connID] = cfg
}

func (r *StaticResolver) ObjectStore(connID string) (ObjectStore, error) {
	r.mu.RLock()
	cfg, ok := r.conns[connID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("storage connection %q not registered", connID)
	}

	return NewMinioStore(cfg)
}
