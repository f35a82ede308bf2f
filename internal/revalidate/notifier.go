// Package revalidate invalidates cached renders of public pages after a mutation.
package revalidate

import (
	"context"
	"errors"
	"path"
	"postbase/internal/logger"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrEmptyPath      = errors.New("revalidate: empty path")
	ErrRelativePath   = errors.New("revalidate: path must start with /")
	ErrPathNotAllowed = errors.New("revalidate: path outside allowed prefixes")
)

// Invalidator removes one cached page.
type Invalidator interface {
	Delete(key string)
}

// Broadcaster forwards processed paths to other server instances.
type Broadcaster interface {
	Publish(ctx context.Context, paths []string) error
}

type Notifier struct {
	store    Invalidator
	prefixes []string
	bus      Broadcaster
}

// NewNotifier bus 可以为 nil（单实例部署）
func NewNotifier(store Invalidator, prefixes []string, bus Broadcaster) *Notifier {
	if len(prefixes) == 0 {
		prefixes = []string{"/"}
	}
	return &Notifier{store: store, prefixes: prefixes, bus: bus}
}

// Revalidate 逐个失效 paths 对应的页面缓存，原样返回成功处理的那些路径。
// 缓存 key 用规范化后的路径。单个路径失败不影响其他路径；广播失败只记日志。
func (n *Notifier) Revalidate(ctx context.Context, paths []string) []string {
	revalidated := []string{}
	if len(paths) == 0 {
		return revalidated
	}

	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		clean, err := n.Resolve(p)
		if err != nil {
			logger.L().Warn("skip revalidate path", zap.String("path", p), zap.Error(err))
			continue
		}
		n.store.Delete(clean)
		cleaned = append(cleaned, clean)
		revalidated = append(revalidated, p)
	}

	if n.bus != nil && len(cleaned) > 0 {
		if err := n.bus.Publish(ctx, cleaned); err != nil {
			logger.L().Warn("broadcast revalidate failed", zap.Strings("paths", cleaned), zap.Error(err))
		}
	}

	return revalidated
}

// Apply 处理其他实例广播过来的路径，只清本地缓存，不再转发
func (n *Notifier) Apply(paths []string) {
	for _, p := range paths {
		if clean, err := n.Resolve(p); err == nil {
			n.store.Delete(clean)
		}
	}
}

// Resolve 规范化路径并检查是否在允许的前缀内
func (n *Notifier) Resolve(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", ErrEmptyPath
	}
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return "", ErrRelativePath
	}
	if strings.ContainsAny(p, "?#") {
		return "", ErrPathNotAllowed
	}

	clean := path.Clean(p)
	for _, prefix := range n.prefixes {
		if prefix == "/" || clean == prefix || strings.HasPrefix(clean, strings.TrimSuffix(prefix, "/")+"/") {
			return clean, nil
		}
	}
	return "", ErrPathNotAllowed
}
