package municipality

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"geoincra-portal/internal/models"
)

// KeyPrefix namespaces the shared cache entries in redis.
const KeyPrefix = "municipios:"

// SharedStore is a second cache level shared between processes. Entries
// are written once and never expire.
type SharedStore interface {
	Get(ctx context.Context, key string) ([]models.Municipality, bool, error)
	PutIfAbsent(ctx context.Context, key string, matches []models.Municipality) error
}

// RedisStore keeps entries as JSON under municipios:<key>.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]models.Municipality, bool, error) {
	data, err := s.client.Get(ctx, KeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var matches []models.Municipality
	if err := json.Unmarshal(data, &matches); err != nil {
		return nil, false, fmt.Errorf("decode cached matches: %w", err)
	}
	return matches, true, nil
}

// PutIfAbsent uses SETNX so the first writer wins.
func (s *RedisStore) PutIfAbsent(ctx context.Context, key string, matches []models.Municipality) error {
	if matches == nil {
		matches = []models.Municipality{}
	}
	data, err := json.Marshal(matches)
	if err != nil {
		return fmt.Errorf("encode matches: %w", err)
	}
	if err := s.client.SetNX(ctx, KeyPrefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	return nil
}
