// Package history 维护生成图片的本地历史记录：最新在前、容量受限，
// 整个列表作为单个值存储在键值命名空间的固定 key 下。
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IMBotPlatform/imagestudio/pkg/kv"
)

const (
	// DefaultKey 是历史列表在命名空间中的固定 key。
	DefaultKey = "images"
	// DefaultLimit 是历史列表的最大长度。
	DefaultLimit = 25
	// DefaultAPIType 在批次未指定 apiType 时使用。
	DefaultAPIType = "anime"
)

// ErrNoHistory 表示命名空间中尚无历史列表。
var ErrNoHistory = errors.New("history: no history stored")

// Record 是一条生成图片的历史记录。
type Record struct {
	Image   string `json:"image"`
	Prompt  string `json:"prompt"`
	APIType string `json:"apiType"`
}

// Batch 描述一次生成请求的输出图片及其共享的 prompt/apiType。
type Batch struct {
	Images  []string
	Prompt  string
	APIType string
}

// Cache 是容量受限的图片历史缓存。
type Cache struct {
	store          kv.Store
	key            string
	limit          int
	defaultAPIType string
	logger         *slog.Logger

	// mu 串行化进程内的读-改-写；跨进程写入仍可能互相覆盖。
	mu sync.Mutex
}

// Option 自定义 Cache 行为。
type Option func(*Cache)

// WithKey 覆盖存储 key。
func WithKey(key string) Option {
	return func(c *Cache) {
		if key != "" {
			c.key = key
		}
	}
}

// WithLimit 覆盖最大记录数，非正数被忽略。
func WithLimit(limit int) Option {
	return func(c *Cache) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

// WithDefaultAPIType 覆盖默认 apiType。
func WithDefaultAPIType(apiType string) Option {
	return func(c *Cache) {
		if apiType != "" {
			c.defaultAPIType = apiType
		}
	}
}

// WithLogger 注入自定义日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// New 在 store 之上创建历史缓存。
func New(store kv.Store, opts ...Option) *Cache {
	c := &Cache{
		store:          store,
		key:            DefaultKey,
		limit:          DefaultLimit,
		defaultAPIType: DefaultAPIType,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpdateHistory 将批次中的图片转换为记录，插入到已有列表前部，
// 截断到 limit 后整体写回。
//
// 读失败时不写入；写失败时保留原有状态。两种失败都会记录日志并返回。
func (c *Cache) UpdateHistory(ctx context.Context, batch Batch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.load(ctx)
	if err != nil && !errors.Is(err, ErrNoHistory) {
		c.logger.Error("history read failed", "key", c.key, "error", err)
		return fmt.Errorf("update history: %w", err)
	}

	apiType := batch.APIType
	if apiType == "" {
		apiType = c.defaultAPIType
	}

	size := len(batch.Images) + len(existing)
	if size > c.limit {
		size = c.limit
	}
	records := make([]Record, 0, size)
	for _, img := range batch.Images {
		if len(records) == c.limit {
			break
		}
		records = append(records, Record{Image: img, Prompt: batch.Prompt, APIType: apiType})
	}
	for _, rec := range existing {
		if len(records) == c.limit {
			break
		}
		records = append(records, rec)
	}

	data, err := json.Marshal(records)
	if err != nil {
		c.logger.Error("history encode failed", "key", c.key, "error", err)
		return fmt.Errorf("update history: encode: %w", err)
	}
	if err := c.store.Set(ctx, c.key, data); err != nil {
		c.logger.Error("history write failed", "key", c.key, "error", err)
		return fmt.Errorf("update history: %w", err)
	}
	c.logger.Debug("history updated", "key", c.key, "added", len(batch.Images), "total", len(records))
	return nil
}

// FetchHistory 返回已存储的历史列表；不存在时返回 ErrNoHistory。
func (c *Cache) FetchHistory(ctx context.Context) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoHistory) {
			c.logger.Error("history fetch failed", "key", c.key, "error", err)
		}
		return nil, err
	}
	return records, nil
}

// ClearHistory 清空缓存所在的整个命名空间，而不只是历史 key。
// 需要保留的其他数据应放在独立的命名空间中。
func (c *Cache) ClearHistory(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error("history clear failed", "error", err)
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// DeleteHistory 只删除历史 key。
func (c *Cache) DeleteHistory(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Delete(ctx, c.key); err != nil {
		c.logger.Error("history delete failed", "key", c.key, "error", err)
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

// load 读取并解码历史列表，调用方需持有 mu。
func (c *Cache) load(ctx context.Context) ([]Record, error) {
	data, err := c.store.Get(ctx, c.key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, ErrNoHistory
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return records, nil
}
