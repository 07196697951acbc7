package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const kvSchema = `CREATE TABLE IF NOT EXISTS kv_entries (
    namespace  TEXT    NOT NULL,
    key        TEXT    NOT NULL,
    value      BLOB    NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (namespace, key)
)`

// SQLiteStore 是基于 SQLite 的键值命名空间。
// 多个命名空间可以共享同一个数据库，Clear 只影响自身命名空间。
type SQLiteStore struct {
	db        *sql.DB
	namespace string
}

// NewSQLiteStore 在 db 上创建命名空间 namespace 的存储，并确保表结构存在。
func NewSQLiteStore(ctx context.Context, db *sql.DB, namespace string) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("kv: sqlite db is required")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return nil, fmt.Errorf("kv: namespace is required")
	}
	if _, err := db.ExecContext(ctx, kvSchema); err != nil {
		return nil, fmt.Errorf("create kv schema: %w", err)
	}
	return &SQLiteStore{db: db, namespace: namespace}, nil
}

// Get 读取 key 对应的值。
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("kv: key is required")
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	)
	var value []byte
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get kv entry: %w", err)
	}
	return value, nil
}

// Set upsert 写入 key。
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("kv: key is required")
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET
		    value = excluded.value,
		    updated_at = excluded.updated_at`,
		s.namespace, key, value, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put kv entry: %w", err)
	}
	return nil
}

// Delete 删除 key。
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	); err != nil {
		return fmt.Errorf("delete kv entry: %w", err)
	}
	return nil
}

// Clear 删除命名空间内全部条目。
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE namespace = ?`,
		s.namespace,
	); err != nil {
		return fmt.Errorf("clear kv namespace: %w", err)
	}
	return nil
}
