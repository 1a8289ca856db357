package queue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message represents a message read from a Redis stream. Values holds
// the raw stream fields; the worker parses them so it can decide what
// to do with payloads that fail to parse.
type Message struct {
	ID     string // Redis message ID (e.g., "1702000000000-0")
	Values map[string]interface{}
}

// Consumer defines the interface for consuming events from a stream.
type Consumer interface {
	// EnsureGroup creates the consumer group if it doesn't exist.
	// Should be called at worker startup.
	EnsureGroup(ctx context.Context, stream, group string) error

	// Read reads new messages from the stream for this consumer using
	// XREADGROUP, blocking up to `block` for fresh entries.
	Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error)

	// ReadPending re-reads messages that were delivered to this consumer
	// but never acknowledged. Fan-out retries-to-completion run through
	// here: an unacked message stays pending until a retry succeeds.
	ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error)

	// Ack acknowledges that a message has been fully processed.
	Ack(ctx context.Context, stream, group string, messageIDs ...string) error

	// Pending returns the number of unacknowledged messages for the group.
	Pending(ctx context.Context, stream, group string) (int64, error)
}

// RedisConsumer implements Consumer using Redis Streams.
type RedisConsumer struct {
	client *redis.Client
}

// NewConsumer creates a new Consumer backed by Redis Streams.
func NewConsumer(client *redis.Client) Consumer {
	return &RedisConsumer{client: client}
}

// EnsureGroup creates the consumer group with MKSTREAM so the stream is
// created too. Starting at "0" replays any messages already present.
func (c *RedisConsumer) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil {
		// "BUSYGROUP" means group already exists - that's fine
		if err.Error() == "BUSYGROUP Consumer Group name already exists" {
			return nil
		}
		return fmt.Errorf("create consumer group: %w", err)
	}

	log.Printf("[Consumer] EnsureGroup OK: stream=%s group=%s (created)", stream, group)
	return nil
}

// Read reads messages not yet delivered to any consumer (">").
func (c *RedisConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()

	if err == redis.Nil {
		// Timeout - no new messages
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	return collectMessages(streams), nil
}

// ReadPending reads messages that were delivered but not acknowledged,
// using "0" in place of ">".
func (c *RedisConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, "0"},
		Count:    count,
	}).Result()

	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup pending: %w", err)
	}

	return collectMessages(streams), nil
}

// Ack acknowledges messages using XACK.
func (c *RedisConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	if _, err := c.client.XAck(ctx, stream, group, messageIDs...).Result(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// Pending returns the count of pending messages for the consumer group.
func (c *RedisConsumer) Pending(ctx context.Context, stream, group string) (int64, error) {
	info, err := c.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending: %w", err)
	}
	return info.Count, nil
}

func collectMessages(streams []redis.XStream) []Message {
	var messages []Message
	for _, s := range streams {
		for _, msg := range s.Messages {
			messages = append(messages, Message{ID: msg.ID, Values: msg.Values})
		}
	}
	return messages
}
