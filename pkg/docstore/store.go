// Package docstore 提供按集合与文档 ID 寻址的文档读写抽象。
package docstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound 表示集合中不存在指定文档。
var ErrNotFound = errors.New("docstore: document not found")

// Document 是一个按 (Collection, ID) 寻址的 JSON 对象。
type Document struct {
	Collection string
	ID         string
	Data       map[string]any
	UpdatedAt  time.Time
}

// Store reads and writes whole documents.
type Store interface {
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Put creates or replaces a document.
	Put(ctx context.Context, doc Document) error
}

// cloneData 复制文档字段（浅拷贝），避免共享引用。
func cloneData(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
