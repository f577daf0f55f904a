package repository

import (
	"context"
	"fmt"

	"StockWatch/internal/domain/models"
	"StockWatch/internal/domain/repository"
	"StockWatch/pkg/queue"
)

// RecommendationMessageType is the queue message type of dispatched recommendations.
const RecommendationMessageType = "recommendation"

// RedisRecommendationChannel pushes recommendations onto a Redis list.
type RedisRecommendationChannel struct {
	publisher queue.QueueService
}

func NewRedisRecommendationChannel(publisher queue.QueueService) *RedisRecommendationChannel {
	return &RedisRecommendationChannel{publisher: publisher}
}

func (c *RedisRecommendationChannel) Name() string { return "redis" }

func (c *RedisRecommendationChannel) Send(ctx context.Context, rec *models.Recommendation) error {
	if err := c.publisher.PublishMessage(ctx, RecommendationMessageType, rec); err != nil {
		return fmt.Errorf("redis enqueue %s: %w", rec.Ticker, err)
	}
	return nil
}

var _ repository.RecommendationChannel = (*RedisRecommendationChannel)(nil)
