package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"autoformat-service/backend/internal/persist"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS slots (
    name       TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    updated_at DATETIME NOT NULL
);`

// SQLiteStore 本地文件，单机部署不想依赖 redis/mysql 时用
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore path 可以是 ":memory:"
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create sqlite data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if path == ":memory:" {
		// 每个连接是一份独立的内存库
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, slot string, data []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO slots (name, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		slot,
		data,
		time.Now().UTC(),
	)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, slot string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM slots WHERE name = ?`, slot).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persist.ErrSlotEmpty
		}
		return nil, err
	}
	return data, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

var _ persist.Store = (*SQLiteStore)(nil)
