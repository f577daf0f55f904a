package di

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"StockWatch/internal/service/marketdata"
	"StockWatch/pkg/config"
	"StockWatch/pkg/logger"
	"StockWatch/pkg/metrics"

	"github.com/segmentio/kafka-go"
)

type recordingMetrics struct {
	metrics.Noop
	mu      sync.Mutex
	errors  []string
	latency []string
}

func (m *recordingMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors = append(m.errors, kind)
	m.mu.Unlock()
}

func (m *recordingMetrics) RecordLatency(op string, _ float64) {
	m.mu.Lock()
	m.latency = append(m.latency, op)
	m.mu.Unlock()
}

func TestProvideHistoryStoreBackends(t *testing.T) {
	cfg := config.Default()
	store, err := ProvideHistoryStore(cfg, logger.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if _, err := store.Tickers(context.Background()); err != nil {
		t.Fatalf("memory tickers: %v", err)
	}
	_ = store.Close()

	cfg.Store.Backend = "sqlite"
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "history.db")
	store, err = ProvideHistoryStore(cfg, logger.Nop(), nil, nil)
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	defer store.Close()
	if _, err := store.Tickers(context.Background()); err != nil {
		t.Fatalf("sqlite tickers: %v", err)
	}
}

func TestProvideRecommendationChannel(t *testing.T) {
	cfg := config.Default()
	ch, err := ProvideRecommendationChannel(cfg, logger.Nop(), nil, nil)
	if err != nil || ch.Name() != "log" {
		t.Fatalf("default channel: %v %v", ch, err)
	}

	cfg.Recommendation.Channel = "webhook"
	cfg.Recommendation.WebhookURL = "http://hooks.local/stock"
	if ch, _ = ProvideRecommendationChannel(cfg, logger.Nop(), nil, nil); ch.Name() != "webhook" {
		t.Fatalf("webhook channel: %s", ch.Name())
	}

	cfg.Recommendation.Channel = "redis"
	if _, err := ProvideRecommendationChannel(cfg, logger.Nop(), nil, nil); err == nil {
		t.Fatalf("redis channel without a client must fail")
	}
	rdb := ProvideRedisClient(cfg)
	if rdb == nil {
		t.Fatalf("redis client expected for the redis channel")
	}
	defer rdb.Close()
	if ch, _ = ProvideRecommendationChannel(cfg, logger.Nop(), nil, rdb); ch.Name() != "redis" {
		t.Fatalf("redis channel: %s", ch.Name())
	}

	cfg.Recommendation.Channel = "kafka"
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	producer, err := ProvideKafkaProducer(cfg, logger.Nop())
	if err != nil || producer == nil {
		t.Fatalf("kafka producer: %v", err)
	}
	defer producer.Close()
	if ch, _ = ProvideRecommendationChannel(cfg, logger.Nop(), producer, nil); ch.Name() != "kafka" {
		t.Fatalf("kafka channel: %s", ch.Name())
	}
}

func TestOptionalComponentsDisabledByDefault(t *testing.T) {
	cfg := config.Default()
	if ProvideRedisClient(cfg) != nil {
		t.Fatalf("redis client should be nil for the memory backend and log channel")
	}
	if ch, err := ProvideClickHouseClient(cfg); ch != nil || err != nil {
		t.Fatalf("clickhouse client should be nil: %v", err)
	}
	if p, err := ProvideKafkaProducer(cfg, logger.Nop()); p != nil || err != nil {
		t.Fatalf("kafka producer should be nil: %v", err)
	}
	if c, err := ProvideKafkaConsumer(cfg, logger.Nop(), nil, metrics.Noop{}); c != nil || err != nil {
		t.Fatalf("kafka consumer should be nil: %v", err)
	}
	if c, err := ProvideQuoteCollector(cfg, logger.Nop(), nil, metrics.Noop{}); c != nil || err != nil {
		t.Fatalf("quote collector should be nil: %v", err)
	}
	if s, err := ProvideScheduler(cfg, logger.Nop(), nil, nil); s != nil || err != nil {
		t.Fatalf("scheduler should be nil: %v", err)
	}
	cfg.Server.RateLimit.Enabled = false
	if ProvideRateLimiter(cfg) != nil {
		t.Fatalf("limiter should be nil when disabled")
	}
}

func TestProvideSchedulerRejectsBadCron(t *testing.T) {
	cfg := config.Default()
	cfg.Schedule.Enabled = true
	cfg.Schedule.RefreshCron = "every day"
	if _, err := ProvideScheduler(cfg, logger.Nop(), nil, nil); err == nil {
		t.Fatalf("expected error for invalid cron")
	}
}

func TestMetricsHook(t *testing.T) {
	m := &recordingMetrics{}
	hook := metricsHook(m)

	ctx, data, err := hook.BeforeHandle(context.Background(), "prices", kafka.Message{}, []byte("x"))
	if err != nil || string(data) != "x" {
		t.Fatalf("before: %q %v", data, err)
	}
	hook.AfterHandle(ctx, "prices", kafka.Message{}, nil)
	hook.OnError(ctx, "prices", kafka.Message{}, errors.New("bad payload"))

	if len(m.latency) != 1 || m.latency[0] != "kafka_prices_handle" {
		t.Fatalf("latency not recorded: %v", m.latency)
	}
	if len(m.errors) != 1 || m.errors[0] != "kafka_prices" {
		t.Fatalf("error not recorded: %v", m.errors)
	}
}

func TestProvideMarketDataCache(t *testing.T) {
	cfg := config.Default()
	md, err := ProvideMarketData(cfg, nil)
	if err != nil {
		t.Fatalf("market data: %v", err)
	}
	if _, ok := md.(*marketdata.Cached); !ok || md.Name() != "yahoo" {
		t.Fatalf("default provider should be a cached yahoo, got %T %s", md, md.Name())
	}

	cfg.MarketData.Cache.Backend = "none"
	md, _ = ProvideMarketData(cfg, nil)
	if _, ok := md.(*marketdata.Cached); ok {
		t.Fatalf("cache backend none must return the bare provider")
	}
}
