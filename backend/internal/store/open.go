package store

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"autoformat-service/backend/internal/persist"
)

type Options struct {
	RedisAddrs    []string
	RedisPassword string
	MySQLDSN      string
	SQLitePath    string
	// mysql/sqlite 前面再挂一层 redis 读缓存（用 RedisAddrs）
	RedisCache bool
}

// Open 按后端名构造存储，返回的 close 用于退出时释放连接
func Open(ctx context.Context, backend string, opt Options) (persist.Store, func() error, error) {
	st, closeFn, err := openBackend(ctx, backend, opt)
	if err != nil || !opt.RedisCache || (backend != "mysql" && backend != "sqlite") {
		return st, closeFn, err
	}
	rdb, err := connectRedis(ctx, opt)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return NewCachedStore(rdb, st), func() error {
		_ = rdb.Close()
		return closeFn()
	}, nil
}

// 一个地址用单机客户端，多个地址用集群客户端
func connectRedis(ctx context.Context, opt Options) (redis.UniversalClient, error) {
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    opt.RedisAddrs,
		Password: opt.RedisPassword,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rdb, nil
}

func openBackend(ctx context.Context, backend string, opt Options) (persist.Store, func() error, error) {
	noop := func() error { return nil }
	switch backend {
	case "", "memory":
		return NewMemoryStore(), noop, nil

	case "redis":
		rdb, err := connectRedis(ctx, opt)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(rdb), rdb.Close, nil

	case "mysql":
		db, err := InitMySQL(opt.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mysql: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		return NewGormStore(db), sqlDB.Close, nil

	case "sqlite":
		s, err := NewSQLiteStore(opt.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", backend)
}
