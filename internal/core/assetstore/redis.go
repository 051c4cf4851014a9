package assetstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps every blob as a field of one hash, <namespace>:assets,
// keyed by the asset UUID.
type RedisStore struct {
	c   *redis.Client
	key string
}

func NewRedisStore(c *redis.Client, namespace string) *RedisStore {
	if namespace == "" {
		namespace = "metacore"
	}
	return &RedisStore{c: c, key: namespace + ":assets"}
}

func (s *RedisStore) Key() string { return s.key }

func (s *RedisStore) Load(ctx context.Context, id uuid.UUID) ([]byte, error) {
	data, err := s.c.HGet(ctx, s.key, id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", id, err)
	}
	return data, nil
}

func (s *RedisStore) Save(ctx context.Context, id uuid.UUID, data []byte) error {
	if id == uuid.Nil {
		return ErrNilID
	}
	if err := s.c.HSet(ctx, s.key, id.String(), data).Err(); err != nil {
		return fmt.Errorf("redis save %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.c.HDel(ctx, s.key, id.String()).Result()
	if err != nil {
		return fmt.Errorf("redis delete %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List skips hash fields that are not UUIDs.
func (s *RedisStore) List(ctx context.Context) ([]uuid.UUID, error) {
	keys, err := s.c.HKeys(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(keys))
	for _, k := range keys {
		if id, err := uuid.Parse(k); err == nil {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	return ids, nil
}
