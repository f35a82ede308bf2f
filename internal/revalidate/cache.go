package revalidate

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheItem 包装缓存数据和过期时间
type CacheItem struct {
	Data      interface{}
	ExpiresAt time.Time
}

// PageCache 公开页面渲染数据的本地缓存，key 为页面路径
type PageCache struct {
	lruCache *lru.Cache[string, CacheItem]
	ttl      time.Duration
}

// NewPageCache 创建容量为 size 的 LRU 缓存
func NewPageCache(size int, ttl time.Duration) (*PageCache, error) {
	l, err := lru.New[string, CacheItem](size)
	if err != nil {
		return nil, fmt.Errorf("create page cache: %w", err)
	}
	return &PageCache{lruCache: l, ttl: ttl}, nil
}

// Set 写入缓存，使用默认 TTL
func (c *PageCache) Set(key string, data interface{}) {
	c.lruCache.Add(key, CacheItem{
		Data:      data,
		ExpiresAt: time.Now().Add(c.ttl),
	})
}

// Get 获取缓存，若不存在或已过期则返回 nil
func (c *PageCache) Get(key string) interface{} {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return nil
	}

	if time.Now().After(val.ExpiresAt) {
		c.lruCache.Remove(key)
		return nil
	}

	return val.Data
}

// Delete 删除指定缓存，key 不存在时什么也不做
func (c *PageCache) Delete(key string) {
	c.lruCache.Remove(key)
}

func (c *PageCache) Len() int {
	return c.lruCache.Len()
}
