package docstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type docKey struct {
	collection string
	id         string
}

// MemoryStore 是进程内的文档存储。
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[docKey]Document
}

// NewMemoryStore 创建内存文档存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[docKey]Document)}
}

// Get 返回文档副本。
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := validateRef(collection, id); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[docKey{collection, id}]
	if !ok {
		return Document{}, ErrNotFound
	}
	doc.Data = cloneData(doc.Data)
	return doc, nil
}

// Put 写入文档副本。
func (s *MemoryStore) Put(ctx context.Context, doc Document) error {
	if err := validateRef(doc.Collection, doc.ID); err != nil {
		return err
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	doc.Data = cloneData(doc.Data)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[docKey{doc.Collection, doc.ID}] = doc
	return nil
}

func validateRef(collection, id string) error {
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("docstore: collection is required")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("docstore: document id is required")
	}
	return nil
}
