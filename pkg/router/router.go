// Package router 维护界面的命名路由表与当前位置。
package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrRouteNotFound 表示路径没有匹配任何路由且未设置回退路由。
var ErrRouteNotFound = errors.New("router: no route matches path")

// Matcher 定义路由匹配逻辑。
// 返回 true 表示该路由负责此路径。
type Matcher func(path string) bool

// Route 定义单条路由规则。
type Route struct {
	Name    string
	Path    string
	Matcher Matcher
}

// Location 是一次导航的结果。
type Location struct {
	Name string
	Path string
}

// Router 按顺序检查路由，首个匹配者成为当前位置。
// 如果所有路由都不匹配，且设置了回退路由，则导航到回退路由。
type Router struct {
	mu       sync.RWMutex
	routes   []Route
	fallback *Route
	current  Location
	history  []Location
}

// New 创建一个新的路由器。
func New() *Router {
	return &Router{routes: make([]Route, 0)}
}

// AddRoute 添加一条路由规则；matcher 为 nil 时按 path 精确匹配。
func (r *Router) AddRoute(name, path string, matcher Matcher) {
	if matcher == nil {
		matcher = MatchExact(path)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, Route{Name: name, Path: path, Matcher: matcher})
}

// SetFallback 设置未匹配时使用的路由。
func (r *Router) SetFallback(name, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = &Route{Name: name, Path: path}
}

// Push 导航到 path。查询串与片段不参与匹配。
func (r *Router) Push(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	clean := normalize(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	// 1. 遍历路由表
	for _, route := range r.routes {
		if route.Matcher(clean) {
			r.moveLocked(Location{Name: route.Name, Path: path})
			return nil
		}
	}

	// 2. 没有任何匹配，使用回退路由
	if r.fallback != nil {
		r.moveLocked(Location{Name: r.fallback.Name, Path: r.fallback.Path})
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRouteNotFound, path)
}

// CurrentRouteName 返回当前路由名；尚未导航时为空。
func (r *Router) CurrentRouteName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current.Name
}

// Current 返回当前位置。
func (r *Router) Current() Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// History 返回导航记录副本，最早的在前。
func (r *Router) History() []Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Location, len(r.history))
	copy(out, r.history)
	return out
}

func (r *Router) moveLocked(loc Location) {
	r.current = loc
	r.history = append(r.history, loc)
}

// normalize 去掉查询串、片段与多余的尾部斜杠。
func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

// MatchExact 返回一个精确匹配路径的 Matcher。
func MatchExact(path string) Matcher {
	want := normalize(path)
	return func(p string) bool {
		return p == want
	}
}

// MatchPrefix 返回一个匹配路径前缀的 Matcher。
func MatchPrefix(prefix string) Matcher {
	return func(p string) bool {
		return strings.HasPrefix(p, prefix)
	}
}

// MatchAny 返回一个总是匹配的 Matcher。
func MatchAny() Matcher {
	return func(string) bool {
		return true
	}
}
