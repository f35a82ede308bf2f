package revalidate

import (
	"context"
	"encoding/json"
	"fmt"
	"postbase/internal/config"
	"postbase/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type message struct {
	Origin string   `json:"origin"`
	Paths  []string `json:"paths"`
}

// RedisBus 通过 Redis pub/sub 在多个实例之间同步 revalidate
type RedisBus struct {
	client  *redis.Client
	channel string
	origin  string
}

func NewRedisBus(cfg config.RedisConfig) *RedisBus {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisBus{client: c, channel: cfg.Channel, origin: uuid.NewString()}
}

func (b *RedisBus) Publish(ctx context.Context, paths []string) error {
	payload, err := json.Marshal(message{Origin: b.origin, Paths: paths})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Subscribe 阻塞直到 ctx 结束，把其他实例发来的路径交给 apply
func (b *RedisBus) Subscribe(ctx context.Context, apply func(paths []string)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	logger.L().Info("Revalidate subscriber started", zap.String("channel", b.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(msg.Payload, apply)
		}
	}
}

func (b *RedisBus) handle(payload string, apply func(paths []string)) {
	var m message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		logger.L().Warn("bad revalidate message", zap.Error(err))
		return
	}
	// 自己发出的消息本地已经处理过
	if m.Origin == b.origin {
		return
	}
	apply(m.Paths)
}

func (b *RedisBus) Close() error {
	return b.client.Close()
}
