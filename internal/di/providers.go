package di

import (
	"context"
	"fmt"
	"time"

	"StockWatch/internal/domain/repository"
	"StockWatch/internal/handler/api"
	mid "StockWatch/internal/middleware"
	internalrepo "StockWatch/internal/repository"
	"StockWatch/internal/scheduler"
	"StockWatch/internal/service/finnhub"
	"StockWatch/internal/service/marketdata"
	"StockWatch/internal/service/news"
	"StockWatch/internal/service/notifier"
	"StockWatch/internal/service/ratelimit"
	"StockWatch/internal/usecase"
	"StockWatch/pkg/cache"
	pkgch "StockWatch/pkg/clickhouse"
	"StockWatch/pkg/config"
	xhttp "StockWatch/pkg/http"
	"StockWatch/pkg/http/middleware"
	pkgkafka "StockWatch/pkg/kafka"
	"StockWatch/pkg/logger"
	"StockWatch/pkg/metrics"
	"StockWatch/pkg/queue"
	"StockWatch/pkg/server"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisClient returns nil when neither the store nor the channel uses Redis.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.UsesRedis() {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideClickHouseClient connects and creates the history tables. Nil unless the store backend is clickhouse.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.Store.Backend != "clickhouse" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if err := client.InitSchema(ctx, internalrepo.ClickHouseSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer returns nil unless the recommendation channel is kafka.
func ProvideKafkaProducer(cfg *config.Config, lgr *logger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.UsesKafkaProducer() {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerLogger(lgr),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideHistoryStore selects the price history backend.
func ProvideHistoryStore(cfg *config.Config, lgr *logger.Logger, rdb *redis.Client, ch *pkgch.Client) (repository.HistoryStore, error) {
	opts := []internalrepo.StoreOption{
		internalrepo.WithMaxPoints(cfg.Store.MaxPoints),
		internalrepo.WithStoreLogger(lgr),
	}
	switch cfg.Store.Backend {
	case "redis":
		return internalrepo.NewRedisHistoryStore(rdb, cfg.Redis.KeyPrefix, opts...), nil
	case "sqlite":
		s, err := internalrepo.NewSQLiteHistoryStore(cfg.SQLite.Path, opts...)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		return s, nil
	case "clickhouse":
		return internalrepo.NewClickHouseHistoryStore(ch.DB(), cfg.ClickHouse.Database, opts...), nil
	default:
		return internalrepo.NewMemoryHistoryStore(opts...), nil
	}
}

// ProvideMarketData selects the market-data provider and puts the response cache in front of it.
func ProvideMarketData(cfg *config.Config, rdb *redis.Client) (repository.MarketData, error) {
	provider, err := marketdata.New(cfg.MarketData)
	if err != nil {
		return nil, err
	}
	cc := cfg.MarketData.Cache
	switch cc.Backend {
	case "memory":
		return marketdata.NewCached(provider, cache.NewMemoryCache(cache.WithMemoryMaxSize(cc.MaxEntries)), cc.TTL), nil
	case "redis":
		return marketdata.NewCached(provider, cache.NewRedisCache(rdb, cfg.Redis.KeyPrefix), cc.TTL), nil
	default:
		return provider, nil
	}
}

// ProvideRecommendationChannel selects where flagged tickers are delivered.
func ProvideRecommendationChannel(cfg *config.Config, lgr *logger.Logger, producer *pkgkafka.Producer, rdb *redis.Client) (repository.RecommendationChannel, error) {
	rc := cfg.Recommendation
	client := xhttp.NewClient(xhttp.WithTimeout(rc.Timeout))

	switch rc.Channel {
	case "webhook":
		return notifier.NewWebhookChannel(rc.WebhookURL, client), nil
	case "telegram":
		return notifier.NewTelegramChannel(rc.Telegram.BotToken, rc.Telegram.ChatID, client,
			notifier.WithBaseURL(rc.Telegram.BaseURL),
			notifier.WithRetry(rc.Telegram.MaxRetries, 500*time.Millisecond),
			notifier.WithTelegramLogger(lgr),
		), nil
	case "kafka":
		if producer == nil {
			return nil, fmt.Errorf("kafka channel: producer not configured")
		}
		return internalrepo.NewKafkaRecommendationChannel(producer, rc.KafkaTopic), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis channel: client not configured")
		}
		return internalrepo.NewRedisRecommendationChannel(
			queue.NewRedisPublisher(lgr, rdb, queue.WithQueueKey(rc.RedisKey)),
		), nil
	default:
		return notifier.NewLogChannel(lgr), nil
	}
}

// ProvideTickerRegistry creates the registry over the configured store and provider.
func ProvideTickerRegistry(cfg *config.Config, store repository.HistoryStore, market repository.MarketData, m repository.Metrics, lgr *logger.Logger) *usecase.TickerRegistry {
	return usecase.NewTickerRegistry(store, market, m,
		usecase.WithFetchTimeout(cfg.MarketData.Timeout),
		usecase.WithHistoryDays(cfg.MarketData.HistoryDays),
		usecase.WithRegistryLogger(lgr),
	)
}

func ProvideDispatcher(cfg *config.Config, registry *usecase.TickerRegistry, channel repository.RecommendationChannel, m repository.Metrics, lgr *logger.Logger) *usecase.Dispatcher {
	return usecase.NewDispatcher(registry, channel, m, lgr, cfg.Recommendation.Timeout)
}

func ProvideNewsEvaluator(cfg *config.Config, m repository.Metrics, lgr *logger.Logger) *usecase.NewsEvaluator {
	source := news.NewClient(xhttp.NewClient(xhttp.WithTimeout(cfg.News.Timeout)), lgr)
	return usecase.NewNewsEvaluator(source, m, lgr, cfg.News.Timeout)
}

// ProvideRateLimiter returns nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.Server.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New()
}

// ProvideHTTPHandler registers every API route.
func ProvideHTTPHandler(
	cfg *config.Config,
	lgr *logger.Logger,
	registry *usecase.TickerRegistry,
	dispatcher *usecase.Dispatcher,
	evaluator *usecase.NewsEvaluator,
	limiter *ratelimit.Limiter,
) xhttp.Handler {
	var allow middleware.AllowFunc
	if limiter != nil {
		allow = limiter.Allower(cfg.Server.RateLimit.Capacity, cfg.Server.RateLimit.RefillPerSec)
	}
	return xhttp.Handlers{
		api.NewStocksEchoHandler(lgr, registry, allow),
		api.NewRecommendEchoHandler(lgr, dispatcher, allow),
		api.NewNewsEchoHandler(lgr, evaluator, allow),
	}
}

// ProvideKafkaConsumer returns nil unless kafka.prices_topic is set.
func ProvideKafkaConsumer(cfg *config.Config, lgr *logger.Logger, registry *usecase.TickerRegistry, m repository.Metrics) (*pkgkafka.Consumer, error) {
	if cfg.Kafka.PricesTopic == "" {
		return nil, nil
	}
	cc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cc.GroupID),
		pkgkafka.WithConsumerWorkers(cc.Workers),
		pkgkafka.WithConsumerBufferSize(cc.BufferSize),
		pkgkafka.WithConsumerRetry(cc.RetryMax, cc.BackoffMin, cc.BackoffMax),
		pkgkafka.WithConsumerDLQ(cc.DLQTopic),
		pkgkafka.WithConsumerFetch(cc.MinBytes, cc.MaxBytes),
		pkgkafka.WithConsumerLogger(lgr),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(usecase.NewKafkaPricesHandler(cfg.Kafka.PricesTopic, registry, m))
	consumer.WithConsumerHook(metricsHook(m))
	return consumer, nil
}

type startKey struct{}

// metricsHook times each handler call and counts messages that exhausted their retries.
func metricsHook(m repository.Metrics) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, _ kafka.Message, data []byte) (context.Context, []byte, error) {
			return context.WithValue(ctx, startKey{}, time.Now()), data, nil
		},
		After: func(ctx context.Context, _ string, _ kafka.Message, _ error) {
			if start, ok := ctx.Value(startKey{}).(time.Time); ok {
				m.RecordLatency("kafka_prices_handle", time.Since(start).Seconds())
			}
		},
		Err: func(context.Context, string, kafka.Message, error) {
			m.RecordError("kafka_prices")
		},
	}
}

// ProvideQuoteCollector returns nil unless the Finnhub stream is enabled.
func ProvideQuoteCollector(cfg *config.Config, lgr *logger.Logger, registry *usecase.TickerRegistry, m repository.Metrics) (*usecase.QuoteCollector, error) {
	if !cfg.Finnhub.Enabled {
		return nil, nil
	}
	loc, err := time.LoadLocation(cfg.Finnhub.ExchangeTZ)
	if err != nil {
		return nil, fmt.Errorf("finnhub exchange tz: %w", err)
	}
	stream := finnhub.New(lgr,
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
	)
	return usecase.NewQuoteCollector(stream, registry, m, lgr, loc,
		mid.WithMaxRPS(cfg.Finnhub.MaxRPS),
		mid.WithBufferSize(256),
	), nil
}

// ProvideScheduler returns nil unless scheduling is enabled.
func ProvideScheduler(cfg *config.Config, lgr *logger.Logger, registry *usecase.TickerRegistry, dispatcher *usecase.Dispatcher) (*scheduler.Scheduler, error) {
	if !cfg.Schedule.Enabled {
		return nil, nil
	}
	s := scheduler.New(registry, dispatcher, lgr, 5*time.Minute)
	if err := s.Register(cfg.Schedule.RefreshCron, cfg.Schedule.DispatchCron); err != nil {
		return nil, err
	}
	return s, nil
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	registry *usecase.TickerRegistry,
	handler xhttp.Handler,
	store repository.HistoryStore,
	rdb *redis.Client,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	collector *usecase.QuoteCollector,
	sched *scheduler.Scheduler,
	limiter *ratelimit.Limiter,
) *server.App {
	closers := []server.Closer{{Name: "history_store", Closer: store}}
	if producer != nil {
		closers = append(closers, server.Closer{Name: "kafka_producer", Closer: producer})
	}
	if rdb != nil {
		closers = append(closers, server.Closer{Name: "redis", Closer: rdb})
	}
	if ch != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", Closer: ch})
	}

	return server.New(cfg, lgr, registry, handler, server.Options{
		Consumer:  consumer,
		Collector: collector,
		Scheduler: sched,
		Limiter:   limiter,
		Closers:   closers,
	})
}
