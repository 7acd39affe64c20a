/*
redis.go - Redis-backed notifier for multi-process deployments

PURPOSE:
  Publishes ledger events as JSON on a Redis channel so UI gateways in
  other processes can fan them out to connected clients. One channel per
  deployment; subscribers filter by account id.
*/
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the Redis channel ledger events are published on.
const DefaultChannel = "rewards.ledger"

// RedisNotifier publishes events to a Redis channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

var _ Notifier = (*RedisNotifier)(nil)

// NewRedisNotifier connects to Redis and verifies the connection.
func NewRedisNotifier(addr, password string, db int, channel string) (*RedisNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}, nil
}

// Publish serializes the event and publishes it on the channel.
func (r *RedisNotifier) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, r.channel, data).Err()
}

// Close releases the Redis connection.
func (r *RedisNotifier) Close() error {
	return r.client.Close()
}
