// Package redis provides a Redis-backed KeyValueStore.
package redis

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"

	"github.com/voltpacks/packmint/internal/app/storage"
)

// Store implements storage.KeyValueStore on top of a Redis client.
type Store struct {
	client *redis.Client
}

var _ storage.KeyValueStore = (*Store)(nil)

// New creates a Store from connection options.
func New(opts *redis.Options) *Store {
	return &Store{client: redis.NewClient(opts)}
}

// NewWithClient wraps an existing client, mainly for tests.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
