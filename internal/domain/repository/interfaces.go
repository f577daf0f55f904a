package repository

import (
	"context"

	"StockWatch/internal/domain/models"
)

// HistoryStore keeps the daily close history of every tracked ticker.
// Points are returned ascending by date with at most one point per date.
type HistoryStore interface {
	// Get returns models.ErrNotFound for tickers that were never added or were removed.
	Get(ctx context.Context, ticker string) ([]models.PricePoint, error)
	// Append inserts p in date order, replacing the close of an existing date.
	Append(ctx context.Context, ticker string, p models.PricePoint) error
	// AppendBatch merges points the same way and creates the ticker when missing.
	AppendBatch(ctx context.Context, ticker string, points []models.PricePoint) error
	Remove(ctx context.Context, ticker string) error
	Tickers(ctx context.Context) ([]string, error)
	Close() error
}

// MarketData resolves a symbol and returns its recent daily closes.
// Unknown symbols wrap models.ErrNotFound; transport failures wrap models.ErrUpstreamUnavailable.
type MarketData interface {
	Name() string
	FetchDailyHistory(ctx context.Context, ticker string, days int) (*models.MarketHistory, error)
}

// RecommendationChannel delivers one flagged ticker.
type RecommendationChannel interface {
	Name() string
	Send(ctx context.Context, rec *models.Recommendation) error
}

// NewsSource fetches rated news items from a caller supplied URL.
type NewsSource interface {
	Fetch(ctx context.Context, url string) ([]models.RatedNews, error)
}

// QuoteStream is a live trade feed whose subscriptions follow the registry.
type QuoteStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols ...string) error
	Unsubscribe(ctx context.Context, symbols ...string) error
	Read(ctx context.Context) (<-chan *models.Trade, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Metrics interface {
	RecordTracked(count int)
	RecordDispatched(channel, ticker string)
	RecordError(kind string)
	RecordLastClose(ticker string, close float64)
	RecordLatency(op string, seconds float64)
	RecordNewsItems(sell, hold int)
}
