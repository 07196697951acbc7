// Package kv 定义持久化键值命名空间的抽象及其实现（内存、文件、SQLite）。
package kv

import (
	"context"
	"errors"
)

// ErrNotFound 表示指定 key 在命名空间中不存在。
var ErrNotFound = errors.New("kv: key not found")

// Store manages one opaque key-value namespace.
// Values are stored as whole blobs; there is no partial addressing.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear removes every key in the namespace.
	Clear(ctx context.Context) error
}
