package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"StockWatch/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisPublisher pushes messages onto a Redis list for external workers (LPUSH / BRPOP).
type RedisPublisher struct {
	logger *logger.Logger
	client *redis.Client
	key    string
}

// RedisPublisherOption configures RedisPublisher.
type RedisPublisherOption func(*RedisPublisher)

// WithQueueKey sets the list key messages are pushed to.
func WithQueueKey(key string) RedisPublisherOption {
	return func(r *RedisPublisher) {
		if key != "" {
			r.key = key
		}
	}
}

// NewRedisPublisher creates a publisher-only queue.
func NewRedisPublisher(lgr *logger.Logger, client *redis.Client, opts ...RedisPublisherOption) *RedisPublisher {
	if lgr == nil {
		lgr = logger.Nop()
	}
	r := &RedisPublisher{
		logger: lgr,
		client: client,
		key:    "stockwatch:queue:messages",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue adds a message to the queue and returns its id.
func (r *RedisPublisher) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	msg := Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	msgData, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	if err := r.client.LPush(ctx, r.key, msgData).Err(); err != nil {
		return "", fmt.Errorf("lpush: %w", err)
	}

	r.logger.Debug("message enqueued",
		logger.String("key", r.key),
		logger.String("type", msgType),
		logger.String("id", msg.ID))
	return msg.ID, nil
}

// PublishMessage publishes a message (implements QueueService).
func (r *RedisPublisher) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	_, err := r.Enqueue(ctx, msgType, payload)
	return err
}
