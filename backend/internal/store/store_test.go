package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	redis "github.com/redis/go-redis/v9"

	"autoformat-service/backend/internal/content"
	"autoformat-service/backend/internal/persist"
)

// 所有后端共用的行为检查
func exerciseStore(t *testing.T, s persist.Store, slot string) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Load(ctx, slot); !errors.Is(err, persist.ErrSlotEmpty) {
		t.Fatalf("Load(empty) error = %v, want ErrSlotEmpty", err)
	}
	if err := s.Save(ctx, slot, []byte(`first`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Save(ctx, slot, []byte(`second`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.Load(ctx, slot)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != "second" {
		t.Fatalf("Load() = %q, want latest write", got)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(), "doc-1")
}

func TestMemoryStore_CopiesData(t *testing.T) {
	s := NewMemoryStore()
	buf := []byte("abc")
	_ = s.Save(context.Background(), "s", buf)
	buf[0] = 'x'
	got, _ := s.Load(context.Background(), "s")
	if string(got) != "abc" {
		t.Fatalf("stored data aliased caller buffer: %q", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "slots.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()
	exerciseStore(t, s, "doc-1")
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.db")
	ctx := context.Background()

	doc := content.FromBlocks(content.Block{
		Key:          "b1",
		Type:         content.BlockHeaderOne,
		Text:         "持久化",
		InlineStyles: []content.StyleRange{{Style: content.StyleRedColor, Start: 1, End: 3}},
	})

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := persist.NewAdapter(s).Save(ctx, "doc-1", doc, persist.RecordingOn); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	_ = s.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()
	got, ok, err := persist.NewAdapter(s2).Load(ctx, "doc-1")
	if err != nil || !ok {
		t.Fatalf("Load() = ok %v, err %v", ok, err)
	}
	if !content.Equal(got, doc) {
		t.Fatalf("Load() = %+v, want %+v", got, doc)
	}
}

func TestRedisStore(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	// 若 Redis 未启动则跳过
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skip: redis not available: %v", err)
	}
	defer rdb.Close()
	slot := "store-test"
	defer rdb.Del(context.Background(), slotKey(slot))
	rdb.Del(context.Background(), slotKey(slot))

	exerciseStore(t, NewRedisStore(rdb), slot)
}

func TestGormStore(t *testing.T) {
	dsn := os.Getenv("AUTOFORMAT_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skipf("skip: AUTOFORMAT_TEST_MYSQL_DSN not set")
	}
	db, err := InitMySQL(dsn)
	if err != nil {
		t.Skipf("skip: mysql not available: %v", err)
	}
	slot := "store-test"
	db.Where("slot = ?", slot).Delete(&DocumentSnapshot{})
	defer db.Where("slot = ?", slot).Delete(&DocumentSnapshot{})

	s := NewGormStore(db)
	exerciseStore(t, s, slot)

	n, err := s.Revisions(context.Background(), slot)
	if err != nil || n != 2 {
		t.Fatalf("Revisions() = %d, %v, want 2 appended rows", n, err)
	}
}

func TestSlotKey(t *testing.T) {
	if got := slotKey("doc-1"); got != "autoformat:slot:{doc-1}" {
		t.Fatalf("slotKey() = %q", got)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, closeFn, err := Open(ctx, "memory", Options{})
	if err != nil {
		t.Fatalf("Open(memory) error = %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Fatalf("Open(memory) = %T", s)
	}
	_ = closeFn()

	s, closeFn, err = Open(ctx, "sqlite", Options{SQLitePath: filepath.Join(t.TempDir(), "a.db")})
	if err != nil {
		t.Fatalf("Open(sqlite) error = %v", err)
	}
	exerciseStore(t, s, "doc-open")
	if err := closeFn(); err != nil {
		t.Fatalf("close error = %v", err)
	}

	if _, _, err := Open(ctx, "cassandra", Options{}); err == nil {
		t.Fatalf("Open(unknown) error = nil")
	}
}

func TestCachedStore(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	// 若 Redis 未启动则跳过
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skip: redis not available: %v", err)
	}
	defer rdb.Close()
	ctx := context.Background()
	slot := "cached-store-test"
	rdb.Del(ctx, slotKey(slot))
	defer rdb.Del(ctx, slotKey(slot))

	durable := NewMemoryStore()
	s := NewCachedStore(rdb, durable)
	exerciseStore(t, s, slot)

	// 回源后回填缓存
	rdb.Del(ctx, slotKey(slot))
	if _, err := s.Load(ctx, slot); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got, err := rdb.Get(ctx, slotKey(slot)).Result(); err != nil || got != "second" {
		t.Fatalf("cache not refilled: %q, %v", got, err)
	}
}

func TestCacheTTLJitter(t *testing.T) {
	for i := 0; i < 100; i++ {
		ttl := cacheTTL()
		if ttl < cacheBaseTTL || ttl >= cacheBaseTTL+cacheJitter {
			t.Fatalf("cacheTTL() = %v out of range", ttl)
		}
	}
}
