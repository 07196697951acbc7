// Package auth 提供基于 HS256 JWT 的登录会话：签发、登录、读取当前身份与登出。
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/IMBotPlatform/imagestudio/pkg/kv"
)

// tokenKey 是会话令牌在 kv 命名空间中的 key。
const tokenKey = "session_token"

// Identity 是已认证用户的身份。
type Identity struct {
	UID       string
	Email     string
	ExpiresAt time.Time
}

// Config 配置令牌签发与校验。
type Config struct {
	SigningKey []byte
	Issuer     string
	Now        func() time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// TokenProvider 持有当前会话令牌。
// 可选地将令牌持久化到 kv.Store，使会话跨进程保留。
type TokenProvider struct {
	cfg   Config
	store kv.Store

	mu    sync.Mutex
	token string
}

// Option 自定义 TokenProvider。
type Option func(*TokenProvider)

// WithTokenStore 将会话令牌持久化到 store。
func WithTokenStore(store kv.Store) Option {
	return func(p *TokenProvider) {
		p.store = store
	}
}

// NewTokenProvider 校验配置并创建 TokenProvider。
func NewTokenProvider(cfg Config, opts ...Option) (*TokenProvider, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("auth: signing key is required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("auth: issuer is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	p := &TokenProvider{cfg: cfg}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Issue 为 uid 签发有效期为 ttl 的会话令牌。
func (p *TokenProvider) Issue(uid, email string, ttl time.Duration) (string, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return "", fmt.Errorf("auth: uid is required")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("auth: ttl must be positive")
	}
	now := p.cfg.Now().UTC()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.cfg.Issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// SignIn 校验令牌并将其设为当前会话。
func (p *TokenProvider) SignIn(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	ident, err := p.verify(token)
	if err != nil {
		return Identity{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store != nil {
		if err := p.store.Set(ctx, tokenKey, []byte(token)); err != nil {
			return Identity{}, fmt.Errorf("persist session token: %w", err)
		}
	}
	p.token = token
	return ident, nil
}

// CurrentUser 返回当前会话的身份。
// 内存中无令牌时尝试从持久化存储恢复。
func (p *TokenProvider) CurrentUser(ctx context.Context) (Identity, error) {
	p.mu.Lock()
	token := p.token
	if token == "" && p.store != nil {
		raw, err := p.store.Get(ctx, tokenKey)
		switch {
		case errors.Is(err, kv.ErrNotFound):
		case err != nil:
			p.mu.Unlock()
			return Identity{}, fmt.Errorf("load session token: %w", err)
		default:
			token = string(raw)
			p.token = token
		}
	}
	p.mu.Unlock()

	if token == "" {
		return Identity{}, ErrNotSignedIn
	}
	return p.verify(token)
}

// SignOut 丢弃当前会话令牌（包括持久化副本）。
func (p *TokenProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.store != nil {
		if err := p.store.Delete(ctx, tokenKey); err != nil {
			return fmt.Errorf("delete session token: %w", err)
		}
	}
	p.token = ""
	return nil
}

// verify 校验签名、签发者与过期时间。
func (p *TokenProvider) verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrNotSignedIn
	}
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return p.cfg.SigningKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.cfg.Now),
	)
	if err != nil {
		return Identity{}, mapJWTError(err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Identity{}, fmt.Errorf("%w: subject is required", ErrInvalidToken)
	}
	return Identity{
		UID:       claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// mapJWTError 将 jwt 库错误映射为本包的哨兵错误。
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}
