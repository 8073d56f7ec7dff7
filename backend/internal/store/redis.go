package store

import (
	"context"
	"errors"

	redis "github.com/redis/go-redis/v9"

	"autoformat-service/backend/internal/persist"
)

// RedisStore 每个 slot 一个 string key，只保留最新一份
type RedisStore struct {
	rdb redis.UniversalClient
}

// NewRedisStore 单机 *redis.Client 和 *redis.ClusterClient 都可以传进来
func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Save(ctx context.Context, slot string, data []byte) error {
	return s.rdb.Set(ctx, slotKey(slot), data, 0).Err()
}

func (s *RedisStore) Load(ctx context.Context, slot string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, slotKey(slot)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persist.ErrSlotEmpty
		}
		return nil, err
	}
	return data, nil
}

var _ persist.Store = (*RedisStore)(nil)
