// Package session 保存当前登录用户的内存会话状态，负责从资料服务加载用户、
// 在登录/登出时驱动界面导航。
//
// 状态流转:
//
//	Anonymous --FetchUser--> Loading --ok--> Authenticated
//	    ^                       |
//	    +-------fail------------+
//	Authenticated --LogUserOut--> Anonymous
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/IMBotPlatform/imagestudio/pkg/analytics"
	"github.com/IMBotPlatform/imagestudio/pkg/docstore"
)

// Phase 描述会话所处阶段。
type Phase int

const (
	// Anonymous 尚未加载到用户资料。
	Anonymous Phase = iota
	// Loading 正在加载用户资料。
	Loading
	// Authenticated 用户资料已加载且初始加载完成。
	Authenticated
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// PaymentConfig 描述付款链接的组成部分。
type PaymentConfig struct {
	BaseURL string
	APIKey  string
}

// Config 是 Store 的静态配置。
type Config struct {
	UsersCollection string
	AuthRouteName   string
	AuthPath        string
	HomePath        string
	Payment         PaymentConfig
}

// DefaultConfig 返回默认配置。
func DefaultConfig() Config {
	return Config{
		UsersCollection: "users",
		AuthRouteName:   "auth",
		AuthPath:        "/auth",
		HomePath:        "/",
		Payment: PaymentConfig{
			BaseURL: "https://buy.stripe.com",
		},
	}
}

// State 是会话状态快照。
type State struct {
	User                Profile
	InitialLoadComplete bool
	ImageVariation      any
}

func initialState() State {
	return State{User: Profile{}}
}

// Store 持有单个会话的状态。
// 外部调用期间不持锁；状态只在调用返回后整体替换。
type Store struct {
	id     string
	deps   Deps
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	state   State
	loading int
}

// Option 自定义 Store 行为。
type Option func(*Store)

// WithLogger 注入自定义日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New 创建会话 Store。Analytics 缺省时不上报；cfg 的空字段（含 Payment.BaseURL）取 DefaultConfig 的值。
func New(deps Deps, cfg Config, opts ...Option) (*Store, error) {
	var missing []string
	if deps.Auth == nil {
		missing = append(missing, "auth")
	}
	if deps.Profiles == nil {
		missing = append(missing, "profiles")
	}
	if deps.Navigator == nil {
		missing = append(missing, "navigator")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingDependency, strings.Join(missing, ", "))
	}
	if deps.Analytics == nil {
		deps.Analytics = analytics.Nop{}
	}

	defaults := DefaultConfig()
	if cfg.UsersCollection == "" {
		cfg.UsersCollection = defaults.UsersCollection
	}
	if cfg.AuthRouteName == "" {
		cfg.AuthRouteName = defaults.AuthRouteName
	}
	if cfg.AuthPath == "" {
		cfg.AuthPath = defaults.AuthPath
	}
	if cfg.HomePath == "" {
		cfg.HomePath = defaults.HomePath
	}
	if cfg.Payment.BaseURL == "" {
		cfg.Payment.BaseURL = defaults.Payment.BaseURL
	}

	s := &Store{
		id:     uuid.Must(uuid.NewV7()).String(),
		deps:   deps,
		cfg:    cfg,
		logger: slog.Default(),
		state:  initialState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id)
	return s, nil
}

// ID 返回 Store 实例标识。
func (s *Store) ID() string {
	return s.id
}

// FetchUser 读取当前身份对应的资料文档并写入状态，随后上报用户标识。
// 任一步骤失败时状态保持不变；分析上报失败只记录日志。
func (s *Store) FetchUser(ctx context.Context) error {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading--
		s.mu.Unlock()
	}()

	ident, err := s.deps.Auth.CurrentUser(ctx)
	if err != nil {
		s.logger.Error("fetch user: resolve identity failed", "error", err)
		return fmt.Errorf("fetch user: %w", err)
	}

	doc, err := s.deps.Profiles.Get(ctx, s.cfg.UsersCollection, ident.UID)
	if errors.Is(err, docstore.ErrNotFound) {
		s.logger.Error("fetch user: profile missing", "uid", ident.UID)
		return fmt.Errorf("fetch user %s: %w", ident.UID, ErrProfileNotFound)
	}
	if err != nil {
		s.logger.Error("fetch user: read profile failed", "uid", ident.UID, "error", err)
		return fmt.Errorf("fetch user %s: %w", ident.UID, err)
	}

	profile := Profile(doc.Data).clone()
	s.mu.Lock()
	s.state.User = profile
	s.mu.Unlock()

	if err := s.deps.Analytics.SetUserID(ctx, profile.ID()); err != nil {
		s.logger.Warn("fetch user: analytics identify failed", "uid", ident.UID, "error", err)
	}
	s.logger.Info("user loaded", "uid", ident.UID, "user_id", profile.ID())
	return nil
}

// FetchInitialData 是会话初始化时的一次性引导：加载用户，
// 无论成败都标记初始加载完成；若已登录且当前位于登录页，则跳转到首页。
func (s *Store) FetchInitialData(ctx context.Context) error {
	fetchErr := s.FetchUser(ctx)

	s.mu.Lock()
	s.state.InitialLoadComplete = true
	userID := s.state.User.ID()
	s.mu.Unlock()

	if userID != "" && s.deps.Navigator.CurrentRouteName() == s.cfg.AuthRouteName {
		if err := s.deps.Navigator.Push(ctx, s.cfg.HomePath); err != nil {
			s.logger.Error("initial data: redirect failed", "path", s.cfg.HomePath, "error", err)
			return errors.Join(fetchErr, fmt.Errorf("redirect to %s: %w", s.cfg.HomePath, err))
		}
	}
	return fetchErr
}

// LogUserOut 登出、重置本实例状态并跳转到登录页。
// 登出失败时状态保持不变。
func (s *Store) LogUserOut(ctx context.Context) error {
	if err := s.deps.Auth.SignOut(ctx); err != nil {
		s.logger.Error("log out: sign out failed", "error", err)
		return fmt.Errorf("log out: %w", err)
	}

	s.Reset()

	if err := s.deps.Navigator.Push(ctx, s.cfg.AuthPath); err != nil {
		s.logger.Error("log out: redirect failed", "path", s.cfg.AuthPath, "error", err)
		return fmt.Errorf("log out: redirect to %s: %w", s.cfg.AuthPath, err)
	}
	s.logger.Info("user logged out")
	return nil
}

// Reset 将状态恢复为初始值。
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = initialState()
}

// State 返回状态快照。
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.User = st.User.clone()
	return st
}

// User 返回当前用户资料副本。
func (s *Store) User() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User.clone()
}

// InitialLoadComplete 报告引导加载是否已结束。
func (s *Store) InitialLoadComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.InitialLoadComplete
}

// Phase 返回当前会话阶段。
func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.loading > 0:
		return Loading
	case s.state.InitialLoadComplete && s.state.User.ID() != "":
		return Authenticated
	default:
		return Anonymous
	}
}

// SetImageVariation 记录界面当前选中的变体来源。
func (s *Store) SetImageVariation(v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ImageVariation = v
}

// ImageVariation 返回界面当前选中的变体来源。
func (s *Store) ImageVariation() any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ImageVariation
}

// PaymentLink 每次调用时根据当前用户生成付款链接。
// 未配置 BaseURL 时返回空串。
func (s *Store) PaymentLink() string {
	base := strings.TrimRight(s.cfg.Payment.BaseURL, "/")
	if base == "" {
		return ""
	}
	link := base
	if s.cfg.Payment.APIKey != "" {
		link += "/" + url.PathEscape(s.cfg.Payment.APIKey)
	}
	q := url.Values{}
	q.Set("client_reference_id", s.User().ID())
	return link + "?" + q.Encode()
}
