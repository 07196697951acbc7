package session

import (
	"context"

	"github.com/IMBotPlatform/imagestudio/pkg/auth"
	"github.com/IMBotPlatform/imagestudio/pkg/docstore"
)

// Authenticator 提供当前登录身份与登出能力。
type Authenticator interface {
	CurrentUser(ctx context.Context) (auth.Identity, error)
	SignOut(ctx context.Context) error
}

// ProfileReader 读取用户资料文档。
type ProfileReader interface {
	Get(ctx context.Context, collection, id string) (docstore.Document, error)
}

// IdentityTracker 将用户标识上报给分析服务。
type IdentityTracker interface {
	SetUserID(ctx context.Context, id string) error
}

// Navigator 读取当前路由并执行导航。
type Navigator interface {
	CurrentRouteName() string
	Push(ctx context.Context, path string) error
}

// Deps 汇总 Store 的外部协作者。
type Deps struct {
	Auth      Authenticator
	Profiles  ProfileReader
	Analytics IdentityTracker
	Navigator Navigator
}
