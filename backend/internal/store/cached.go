package store

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	redis "github.com/redis/go-redis/v9"

	"autoformat-service/backend/internal/persist"
)

const (
	cacheBaseTTL = 24 * time.Hour   // 基础过期时间
	cacheJitter  = 60 * time.Minute // 随机抖动范围
)

// 随机 TTL，防止大量 slot 同时过期
func cacheTTL() time.Duration {
	return cacheBaseTTL + time.Duration(rand.Int63n(int64(cacheJitter)))
}

// CachedStore redis 读缓存 + 持久后端（mysql/sqlite）。
// 写：先写持久后端，成功后刷新缓存；读：缓存未命中回源并回填。
// 缓存出错只打日志，不影响读写结果。
type CachedStore struct {
	rdb     redis.UniversalClient
	durable persist.Store
}

func NewCachedStore(rdb redis.UniversalClient, durable persist.Store) *CachedStore {
	return &CachedStore{rdb: rdb, durable: durable}
}

func (s *CachedStore) Save(ctx context.Context, slot string, data []byte) error {
	if err := s.durable.Save(ctx, slot, data); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, slotKey(slot), data, cacheTTL()).Err(); err != nil {
		// 旧缓存会让读到过期数据，删掉让下次回源
		log.Printf("store: refresh cache %s: %v", slot, err)
		s.rdb.Del(ctx, slotKey(slot))
	}
	return nil
}

func (s *CachedStore) Load(ctx context.Context, slot string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, slotKey(slot)).Bytes()
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, redis.Nil) {
		log.Printf("store: read cache %s: %v", slot, err)
	}

	// 回源
	data, err = s.durable.Load(ctx, slot)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.Set(ctx, slotKey(slot), data, cacheTTL()).Err(); err != nil {
		log.Printf("store: fill cache %s: %v", slot, err)
	}
	return data, nil
}

var _ persist.Store = (*CachedStore)(nil)
