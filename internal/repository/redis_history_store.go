package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"StockWatch/internal/domain/models"
	"StockWatch/internal/domain/repository"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisHistoryStore keeps one hash per ticker (field = date, value = close)
// and a set of tracked tickers.
type RedisHistoryStore struct {
	client    *redis.Client
	keyPrefix string
	opts      storeOptions
}

func NewRedisHistoryStore(client *redis.Client, keyPrefix string, opts ...StoreOption) *RedisHistoryStore {
	if keyPrefix == "" {
		keyPrefix = "stockwatch"
	}
	return &RedisHistoryStore{client: client, keyPrefix: keyPrefix, opts: newStoreOptions(opts)}
}

func (s *RedisHistoryStore) tickersKey() string { return s.keyPrefix + ":tickers" }

func (s *RedisHistoryStore) historyKey(ticker string) string {
	return fmt.Sprintf("%s:history:%s", s.keyPrefix, ticker)
}

func (s *RedisHistoryStore) Get(ctx context.Context, ticker string) ([]models.PricePoint, error) {
	tracked, err := s.client.SIsMember(ctx, s.tickersKey(), ticker).Result()
	if err != nil {
		return nil, fmt.Errorf("redis sismember %s: %w", ticker, err)
	}
	if !tracked {
		return nil, fmt.Errorf("history %s: %w", ticker, models.ErrNotFound)
	}
	fields, err := s.client.HGetAll(ctx, s.historyKey(ticker)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", ticker, err)
	}
	return decodeHash(fields)
}

func (s *RedisHistoryStore) Append(ctx context.Context, ticker string, p models.PricePoint) error {
	return s.AppendBatch(ctx, ticker, []models.PricePoint{p})
}

func (s *RedisHistoryStore) AppendBatch(ctx context.Context, ticker string, points []models.PricePoint) error {
	values := encodeHash(points)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.tickersKey(), ticker)
		if len(values) > 0 {
			pipe.HSet(ctx, s.historyKey(ticker), values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append %s: %w", ticker, err)
	}
	if s.opts.maxPoints > 0 {
		return s.trim(ctx, ticker)
	}
	return nil
}

func (s *RedisHistoryStore) trim(ctx context.Context, ticker string) error {
	dates, err := s.client.HKeys(ctx, s.historyKey(ticker)).Result()
	if err != nil {
		return fmt.Errorf("redis hkeys %s: %w", ticker, err)
	}
	stale := staleDates(dates, s.opts.maxPoints)
	if len(stale) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, s.historyKey(ticker), stale...).Err(); err != nil {
		return fmt.Errorf("redis trim %s: %w", ticker, err)
	}
	return nil
}

func (s *RedisHistoryStore) Remove(ctx context.Context, ticker string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.historyKey(ticker))
		pipe.SRem(ctx, s.tickersKey(), ticker)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis remove %s: %w", ticker, err)
	}
	return nil
}

func (s *RedisHistoryStore) Tickers(ctx context.Context) ([]string, error) {
	out, err := s.client.SMembers(ctx, s.tickersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// Close is a no-op; the client is shared and closed by its owner.
func (s *RedisHistoryStore) Close() error { return nil }

func encodeHash(points []models.PricePoint) map[string]interface{} {
	values := make(map[string]interface{}, len(points))
	for _, p := range points {
		p = models.NewPricePoint(p.Date, p.Close)
		values[p.Date.Format(models.DateLayout)] = p.Close.String()
	}
	return values
}

func decodeHash(fields map[string]string) ([]models.PricePoint, error) {
	out := make([]models.PricePoint, 0, len(fields))
	for day, v := range fields {
		d, err := time.Parse(models.DateLayout, day)
		if err != nil {
			return nil, fmt.Errorf("bad date field %q: %w", day, err)
		}
		c, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("bad close for %s: %w", day, err)
		}
		out = append(out, models.PricePoint{Date: d, Close: c})
	}
	sortPoints(out)
	return out, nil
}

// staleDates returns the dates that fall outside the newest max entries.
// YYYY-MM-DD sorts lexically in date order.
func staleDates(dates []string, max int) []string {
	if max <= 0 || len(dates) <= max {
		return nil
	}
	sorted := append([]string(nil), dates...)
	sort.Strings(sorted)
	return sorted[:len(sorted)-max]
}

var _ repository.HistoryStore = (*RedisHistoryStore)(nil)
