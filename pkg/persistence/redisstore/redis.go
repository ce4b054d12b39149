// Package redisstore provides a Redis-backed trigger store for deployments
// where the triggerer restarts on another node.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/lodeflow/sentinel/pkg/persistence"
)

const keyPrefix = "sentinel:triggers:"

type Store struct {
	client redis.UniversalClient
}

func NewStore(ctx context.Context, redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Save(ctx context.Context, spec persistence.TriggerSpec) error {
	data, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal trigger %s: %w", spec.ID, err)
	}

	if err := s.client.Set(ctx, keyPrefix+spec.ID, data, 0).Err(); err != nil {
		return fmt.Errorf("store trigger %s: %w", spec.ID, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (persistence.TriggerSpec, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return persistence.TriggerSpec{}, persistence.ErrTriggerNotFound
		}

		return persistence.TriggerSpec{}, fmt.Errorf("load trigger %s: %w", id, err)
	}

	var spec persistence.TriggerSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return persistence.TriggerSpec{}, fmt.Errorf("decode trigger %s: %w", id, err)
	}

	return spec, nil
}

func (s *Store) List(ctx context.Context) ([]persistence.TriggerSpec, error) {
	var specs []persistence.TriggerSpec

	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		spec, err := s.Get(ctx, iter.Val()[len(keyPrefix):])
		if err != nil {
			if errors.Is(err, persistence.ErrTriggerNotFound) {
				continue
			}

			return nil, err
		}

		specs = append(specs, spec)
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan triggers: %w", err)
	}

	return specs, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete trigger %s: %w", id, err)
	}

	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ persistence.TriggerStore = (*Store)(nil)
