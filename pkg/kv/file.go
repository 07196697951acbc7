package kv

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const fileSuffix = ".json"

// FileStore 实现了基于文件系统的键值命名空间。
// 每个 key 存储在 baseDir 下的单独文件中，baseDir 即命名空间边界。
type FileStore struct {
	baseDir string
	mu      sync.RWMutex // 全局锁，保护文件系统操作并发安全
}

// NewFileStore 创建一个新的 FileStore。
// baseDir: 命名空间目录路径，不存在时自动创建。
func NewFileStore(baseDir string) (*FileStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("kv: base directory is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create kv directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// getFilePath 返回指定 key 的文件路径。
// key 经 url.PathEscape 编码：不同 key 对应不同文件，且不会逃出 baseDir。
func (s *FileStore) getFilePath(key string) string {
	return filepath.Join(s.baseDir, url.PathEscape(key)+fileSuffix)
}

// Get 读取 key 对应的文件内容。
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("kv: key is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.getFilePath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read kv file: %w", err)
	}
	return data, nil
}

// Set 先写临时文件再 rename，保证读者看不到半写入的值。
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("kv: key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.getFilePath(key)
	tmp, err := os.CreateTemp(s.baseDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp kv file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write kv file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close kv file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace kv file: %w", err)
	}
	return nil
}

// Delete 删除 key 对应的文件。
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.getFilePath(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete kv file: %w", err)
	}
	return nil
}

// Clear 删除命名空间目录下的全部值文件，目录本身保留。
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("list kv directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.baseDir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear kv file %s: %w", entry.Name(), err)
		}
	}
	return nil
}
