package main

import (
	"context"
	"testing"
	"time"

	"postbase/internal/config"
	"postbase/internal/revalidate"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_LeavesBusOpen(t *testing.T) {
	cache, err := revalidate.NewPageCache(8, time.Minute)
	require.NoError(t, err)

	// 没有 redis 在监听，订阅会立刻失败
	bus := revalidate.NewRedisBus(config.RedisConfig{Addr: "127.0.0.1:1", Channel: "postbase:test"})
	defer bus.Close()
	a := &app{bus: bus, notifier: revalidate.NewNotifier(cache, nil, bus)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.subscribe(ctx)

	// 订阅退出后，Shutdown 期间的请求仍会走 Publish
	pubCtx, pubCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer pubCancel()
	err = bus.Publish(pubCtx, []string{"/u1"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, redis.ErrClosed)
}
