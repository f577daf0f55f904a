package marketdata

import (
	"context"
	"fmt"
	"time"

	"StockWatch/internal/domain/models"
	"StockWatch/internal/domain/repository"
	"StockWatch/pkg/cache"

	"github.com/shopspring/decimal"
)

// Cached serves repeated history requests for the same symbol from a cache.
// Only successful responses are stored.
type Cached struct {
	inner repository.MarketData
	cache cache.Service
	ttl   time.Duration
}

var _ repository.MarketData = (*Cached)(nil)

func NewCached(inner repository.MarketData, c cache.Service, ttl time.Duration) *Cached {
	return &Cached{inner: inner, cache: c, ttl: ttl}
}

func (c *Cached) Name() string { return c.inner.Name() }

type cachedPoint struct {
	Date  string          `json:"d"`
	Close decimal.Decimal `json:"c"`
}

type cachedHistory struct {
	Ticker      string        `json:"t"`
	CompanyName string        `json:"n,omitempty"`
	Points      []cachedPoint `json:"p"`
}

func (c *Cached) FetchDailyHistory(ctx context.Context, ticker string, days int) (*models.MarketHistory, error) {
	key := fmt.Sprintf("md:%s:%s:%d", c.inner.Name(), ticker, days)

	var hit cachedHistory
	if err := c.cache.Get(ctx, key, &hit); err == nil {
		if h, ok := hit.decode(); ok {
			return h, nil
		}
	}

	h, err := c.inner.FetchDailyHistory(ctx, ticker, days)
	if err != nil {
		return nil, err
	}
	// a failed cache write only costs a refetch
	_ = c.cache.Set(ctx, key, encodeHistory(h), c.ttl)
	return h, nil
}

func encodeHistory(h *models.MarketHistory) cachedHistory {
	out := cachedHistory{Ticker: h.Ticker, CompanyName: h.CompanyName, Points: make([]cachedPoint, len(h.Points))}
	for i, p := range h.Points {
		out.Points[i] = cachedPoint{Date: p.Date.Format(models.DateLayout), Close: p.Close}
	}
	return out
}

func (ch cachedHistory) decode() (*models.MarketHistory, bool) {
	h := &models.MarketHistory{Ticker: ch.Ticker, CompanyName: ch.CompanyName, Points: make([]models.PricePoint, 0, len(ch.Points))}
	for _, p := range ch.Points {
		d, err := time.Parse(models.DateLayout, p.Date)
		if err != nil {
			return nil, false
		}
		h.Points = append(h.Points, models.NewPricePoint(d, p.Close))
	}
	return h, true
}
