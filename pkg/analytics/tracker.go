// Package analytics 将已认证用户的标识上报给可观测性后端。
package analytics

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/IMBotPlatform/imagestudio/pkg/analytics"
	// UserIDKey 是携带用户标识的属性名。
	UserIDKey = attribute.Key("enduser.id")
)

// OTelTracker 通过 OpenTelemetry 记录用户标识。
// 若 ctx 中存在正在记录的 span，则直接在其上设置属性；
// 否则创建一个短 span "analytics.identify"。
type OTelTracker struct {
	tracer trace.Tracer

	mu     sync.RWMutex
	userID string
}

// NewOTelTracker 使用 tp 创建 tracker；tp 为 nil 时使用全局 provider。
func NewOTelTracker(tp trace.TracerProvider) *OTelTracker {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &OTelTracker{tracer: tp.Tracer(instrumentationName)}
}

// SetUserID 记录当前用户标识。
func (t *OTelTracker) SetUserID(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("analytics: user id is required")
	}

	t.mu.Lock()
	t.userID = id
	t.mu.Unlock()

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(UserIDKey.String(id))
		return nil
	}
	_, span := t.tracer.Start(ctx, "analytics.identify", trace.WithAttributes(UserIDKey.String(id)))
	span.End()
	return nil
}

// UserID 返回最近一次记录的用户标识。
func (t *OTelTracker) UserID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.userID
}

// Nop 丢弃所有上报。
type Nop struct{}

// SetUserID 实现 tracker 接口。
func (Nop) SetUserID(context.Context, string) error { return nil }
