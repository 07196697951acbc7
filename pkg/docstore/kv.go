package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/IMBotPlatform/imagestudio/pkg/kv"
)

// KVStore 将文档以 JSON 形式保存在 kv 命名空间中，key 为 "collection~id"。
type KVStore struct {
	store kv.Store
}

// storedDocument 是用于 JSON 序列化的中间结构
type storedDocument struct {
	Data      map[string]any `json:"data"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewKVStore 在 store 之上创建文档存储。
func NewKVStore(store kv.Store) *KVStore {
	return &KVStore{store: store}
}

func docKeyString(collection, id string) string {
	return url.PathEscape(collection) + "~" + url.PathEscape(id)
}

// Get 读取并解码文档。
func (s *KVStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := validateRef(collection, id); err != nil {
		return Document{}, err
	}
	raw, err := s.store.Get(ctx, docKeyString(collection, id))
	if errors.Is(err, kv.ErrNotFound) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	var sd storedDocument
	if err := json.Unmarshal(raw, &sd); err != nil {
		return Document{}, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	return Document{Collection: collection, ID: id, Data: sd.Data, UpdatedAt: sd.UpdatedAt}, nil
}

// Put 编码并写入文档。
func (s *KVStore) Put(ctx context.Context, doc Document) error {
	if err := validateRef(doc.Collection, doc.ID); err != nil {
		return err
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(storedDocument{Data: doc.Data, UpdatedAt: doc.UpdatedAt})
	if err != nil {
		return fmt.Errorf("encode document %s/%s: %w", doc.Collection, doc.ID, err)
	}
	if err := s.store.Set(ctx, docKeyString(doc.Collection, doc.ID), raw); err != nil {
		return fmt.Errorf("put document: %w", err)
	}
	return nil
}
