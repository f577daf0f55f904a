package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"StockWatch/internal/domain/models"

	"github.com/shopspring/decimal"
)

var baseDay = time.Date(2024, 4, 8, 0, 0, 0, 0, time.UTC)

// closes builds consecutive daily points, oldest first.
func closes(values ...string) []models.PricePoint {
	out := make([]models.PricePoint, len(values))
	for i, v := range values {
		out[i] = models.NewPricePoint(baseDay.AddDate(0, 0, i), decimal.RequireFromString(v))
	}
	return out
}

type fakeMarket struct {
	mu      sync.Mutex
	data    map[string]*models.MarketHistory
	failing map[string]error
	calls   map[string]int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		data:    make(map[string]*models.MarketHistory),
		failing: make(map[string]error),
		calls:   make(map[string]int),
	}
}

func (m *fakeMarket) set(ticker, name string, points []models.PricePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[ticker] = &models.MarketHistory{Ticker: ticker, CompanyName: name, Points: points}
}

func (m *fakeMarket) Name() string { return "fake" }

func (m *fakeMarket) FetchDailyHistory(_ context.Context, ticker string, _ int) (*models.MarketHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[ticker]++
	if err, ok := m.failing[ticker]; ok {
		return nil, err
	}
	h, ok := m.data[ticker]
	if !ok {
		return nil, fmt.Errorf("fake: %s: %w", ticker, models.ErrNotFound)
	}
	cp := *h
	cp.Points = append([]models.PricePoint(nil), h.Points...)
	return &cp, nil
}

type fakeChannel struct {
	mu     sync.Mutex
	reject map[string]bool
	sent   []*models.Recommendation
}

func (c *fakeChannel) Name() string { return "fake" }

func (c *fakeChannel) Send(_ context.Context, rec *models.Recommendation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reject[rec.Ticker] || c.reject["*"] {
		return errors.New("channel refused")
	}
	c.sent = append(c.sent, rec)
	return nil
}

type fakeNews struct {
	items []models.RatedNews
	err   error
	urls  []string
}

func (n *fakeNews) Fetch(_ context.Context, url string) ([]models.RatedNews, error) {
	n.urls = append(n.urls, url)
	return n.items, n.err
}

type recordingListener struct {
	mu      sync.Mutex
	added   []string
	removed []string
}

func (l *recordingListener) TickerAdded(_ context.Context, t string) {
	l.mu.Lock()
	l.added = append(l.added, t)
	l.mu.Unlock()
}

func (l *recordingListener) TickerRemoved(_ context.Context, t string) {
	l.mu.Lock()
	l.removed = append(l.removed, t)
	l.mu.Unlock()
}
