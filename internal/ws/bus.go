package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus publishes feed events on a Redis channel so every instance's
// hub sees them, not just the one that handled the write.
type RedisBus struct {
	rdb     *redis.Client
	channel string
	log     *zap.Logger
}

func NewRedisBus(rdb *redis.Client, channel string, log *zap.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, channel: channel, log: log}
}

// Notify publishes an event to all subscribed instances.
func (b *RedisBus) Notify(ctx context.Context, eventType string, data interface{}) error {
	payload, err := json.Marshal(Message{Type: eventType, Data: data})
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish feed event: %w", err)
	}
	return nil
}

// Forward subscribes to the feed channel and relays every payload into hub.
// It returns once the subscription is confirmed; relaying continues in the
// background until ctx is done.
func (b *RedisBus) Forward(ctx context.Context, hub *Hub) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := hub.Broadcast(ctx, []byte(msg.Payload)); err != nil {
					b.log.Warn("relay feed event", zap.Error(err))
					return
				}
			}
		}
	}()
	return nil
}
