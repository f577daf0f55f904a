package repository

import (
	"context"
	"fmt"

	"StockWatch/internal/domain/models"
	"StockWatch/internal/domain/repository"
	pkgkafka "StockWatch/pkg/kafka"
)

// KafkaRecommendationChannel publishes each recommendation as a JSON message keyed by ticker.
type KafkaRecommendationChannel struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaRecommendationChannel(producer *pkgkafka.Producer, topic string) *KafkaRecommendationChannel {
	return &KafkaRecommendationChannel{producer: producer, topic: topic}
}

func (c *KafkaRecommendationChannel) Name() string { return "kafka" }

func (c *KafkaRecommendationChannel) Send(ctx context.Context, rec *models.Recommendation) error {
	if err := c.producer.Publish(ctx, c.topic, []byte(rec.Ticker), rec); err != nil {
		return fmt.Errorf("kafka publish %s: %w", rec.Ticker, err)
	}
	return nil
}

var _ repository.RecommendationChannel = (*KafkaRecommendationChannel)(nil)
