// Package storage abstracts the object storage namespace sensors poll
// against, plus the key pattern matching modes they use.
package storage

import (
	"context"
	"errors"

	"github.com/lodeflow/sentinel/pkg/events"
)

// ErrNotFound is returned by Head when the exact key does not exist.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the minimal capability triggers need from object storage.
// Implementations are fallible, latency-bearing network clients; each
// trigger obtains its own instance on construction.
type ObjectStore interface {
	// Head returns metadata for an exact key, ErrNotFound if it is absent.
	Head(ctx context.Context, bucket, key string) (events.ObjectMeta, error)

	// List returns all objects whose key starts with prefix.
	List(ctx context.Context, bucket, prefix string) ([]events.ObjectMeta, error)
}

// ClientResolver maps a connection ID carried in serialized trigger params
// to a fresh client. Triggers never share client handles.
type ClientResolver interface {
	ObjectStore(connID string) (ObjectStore, error)
}
