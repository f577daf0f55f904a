package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"StockWatch/internal/domain/models"
	drepo "StockWatch/internal/domain/repository"
	"StockWatch/pkg/logger"
)

// NewsEvaluator classifies rated news against a caller supplied sell threshold.
type NewsEvaluator struct {
	source  drepo.NewsSource
	metrics drepo.Metrics
	logger  *logger.Logger
	timeout time.Duration
}

func NewNewsEvaluator(source drepo.NewsSource, metrics drepo.Metrics, lgr *logger.Logger, timeout time.Duration) *NewsEvaluator {
	if lgr == nil {
		lgr = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NewsEvaluator{source: source, metrics: metrics, logger: lgr, timeout: timeout}
}

// Evaluate fetches apiURL and marks items with rating <= minRatingForSell as SELL.
// The threshold is clamped to the rating range. Items without a name or with an
// out-of-range rating are dropped. Source order is kept.
func (e *NewsEvaluator) Evaluate(ctx context.Context, apiURL string, minRatingForSell int) ([]models.NewsItem, error) {
	u, err := url.Parse(apiURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: api_url must be an absolute http(s) URL", models.ErrValidation)
	}
	threshold := models.ClampRating(minRatingForSell)

	start := time.Now()
	fctx, cancel := context.WithTimeout(ctx, e.timeout)
	rated, err := e.source.Fetch(fctx, apiURL)
	cancel()
	e.metrics.RecordLatency("news_fetch", time.Since(start).Seconds())
	if err != nil {
		e.metrics.RecordError("news_source")
		if !errors.Is(err, models.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
		}
		return nil, err
	}

	items := make([]models.NewsItem, 0, len(rated))
	sell := 0
	for _, r := range rated {
		if r.Name == "" || !models.ValidRating(r.Rating) {
			e.logger.Warn("dropping news item",
				logger.String("name", r.Name),
				logger.Int("rating", r.Rating))
			continue
		}
		item := models.Classify(r, threshold)
		if item.Sell {
			sell++
		}
		items = append(items, item)
	}
	e.metrics.RecordNewsItems(sell, len(items)-sell)
	return items, nil
}
