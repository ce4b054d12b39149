// Package file provides a filesystem-backed trigger store, one JSON file
// per trigger, for development and single-node deployments.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/lodeflow/sentinel/pkg/persistence"
)

type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create trigger store directory: %w", err)
	}

	return &Store{root: root}, nil
}

func (s *Store) Save(_ context.Context, spec persistence.TriggerSpec) error {
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal trigger %s: %w", spec.ID, err)
	}

	if err := os.WriteFile(s.path(spec.ID), data, 0o644); err != nil {
		return fmt.Errorf("write trigger %s: %w", spec.ID, err)
	}

	return nil
}

func (s *Store) Get(_ context.Context, id string) (persistence.TriggerSpec, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.TriggerSpec{}, persistence.ErrTriggerNotFound
		}

		return persistence.TriggerSpec{}, fmt.Errorf("read trigger %s: %w", id, err)
	}

	var spec persistence.TriggerSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return persistence.TriggerSpec{}, fmt.Errorf("decode trigger %s: %w", id, err)
	}

	return spec, nil
}

func (s *Store) List(ctx context.Context) ([]persistence.TriggerSpec, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("list trigger store: %w", err)
	}

	specs := make([]persistence.TriggerSpec, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		spec, err := s.Get(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}

		specs = append(specs, spec)
	}

	return specs, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	err := os.Remove(s.path(id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete trigger %s: %w", id, err)
	}

	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.root, id+".json")
}

var _ persistence.TriggerStore = (*Store)(nil)
