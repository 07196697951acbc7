package session

import "errors"

var (
	// ErrMissingDependency 表示构造 Store 时缺少必需的协作者。
	ErrMissingDependency = errors.New("session: missing dependency")
	// ErrProfileNotFound 表示当前身份在用户集合中没有资料文档。
	ErrProfileNotFound = errors.New("session: user profile not found")
)
