package auth

import "errors"

var (
	// ErrNotSignedIn 表示当前没有已登录的会话。
	ErrNotSignedIn = errors.New("auth: not signed in")
	// ErrInvalidToken 表示会话令牌签名或声明无效。
	ErrInvalidToken = errors.New("auth: invalid session token")
	// ErrTokenExpired 表示会话令牌已过期。
	ErrTokenExpired = errors.New("auth: session token expired")
)
