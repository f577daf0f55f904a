//go:build wireinject
// +build wireinject

package di

import (
	"StockWatch/pkg/config"
	"StockWatch/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories and upstreams
		ProvideHistoryStore,
		ProvideMarketData,
		ProvideRecommendationChannel,

		// Use cases
		ProvideTickerRegistry,
		ProvideDispatcher,
		ProvideNewsEvaluator,

		// Transport and workers
		ProvideRateLimiter,
		ProvideHTTPHandler,
		ProvideKafkaConsumer,
		ProvideQuoteCollector,
		ProvideScheduler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
