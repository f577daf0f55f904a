package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"StockWatch/internal/domain/models"
	"StockWatch/pkg/metrics"
)

func TestKafkaPricesHandler(t *testing.T) {
	market := newFakeMarket()
	market.set("AAPL", "Apple", closes("170", "168"))
	reg, store := newRegistry(t, market)
	reg.AddAndCheck(context.Background(), "AAPL")
	h := NewKafkaPricesHandler("prices", reg, metrics.Noop{})

	if h.Topic() != "prices" {
		t.Fatalf("topic = %s", h.Topic())
	}
	msg := `{"symbol":"aapl","date":"2024-04-10","close":"165.123456"}`
	if err := h.Handle(context.Background(), []byte(msg)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	points, _ := store.Get(context.Background(), "AAPL")
	if len(points) != 3 || points[2].Close.String() != "165.123456" {
		t.Fatalf("unexpected history %v", points)
	}

	// untracked tickers are skipped without error
	if err := h.Handle(context.Background(), []byte(`{"ticker":"AMD","date":1712707200,"close":150}`)); err != nil {
		t.Fatalf("untracked: %v", err)
	}

	for _, bad := range []string{`{`, `{"ticker":"AAPL","date":"soon","close":1}`, `{"ticker":"AAPL","date":"2024-04-10","close":-1}`} {
		if err := h.Handle(context.Background(), []byte(bad)); err == nil {
			t.Fatalf("%s: expected error", bad)
		}
	}
}

type fakeStream struct {
	mu         sync.Mutex
	connected  bool
	subscribed map[string]bool
	trades     chan *models.Trade
	errs       chan error
	reconnects int
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		subscribed: make(map[string]bool),
		trades:     make(chan *models.Trade, 8),
		errs:       make(chan error, 1),
	}
}

func (s *fakeStream) Connect(context.Context) error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) Subscribe(_ context.Context, symbols ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sym := range symbols {
		s.subscribed[sym] = true
	}
	return nil
}

func (s *fakeStream) Unsubscribe(_ context.Context, symbols ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sym := range symbols {
		delete(s.subscribed, sym)
	}
	return nil
}

func (s *fakeStream) Read(context.Context) (<-chan *models.Trade, <-chan error) {
	return s.trades, s.errs
}

func (s *fakeStream) Reconnect(context.Context) error {
	s.mu.Lock()
	s.reconnects++
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
	return nil
}

func (s *fakeStream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeStream) isSubscribed(sym string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed[sym]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestQuoteCollector(t *testing.T) {
	market := newFakeMarket()
	market.set("NVDA", "Nvidia", closes("880", "870"))
	market.set("AMD", "AMD", closes("160", "158"))
	reg, store := newRegistry(t, market)
	reg.AddAndCheck(context.Background(), "NVDA")

	stream := newFakeStream()
	c := NewQuoteCollector(stream, reg, metrics.Noop{}, nil, newYork(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !c.IsConnected() || !stream.isSubscribed("NVDA") {
		t.Fatalf("tracked tickers not subscribed")
	}

	reg.AddAndCheck(context.Background(), "AMD")
	if !stream.isSubscribed("AMD") {
		t.Fatalf("added ticker not subscribed")
	}
	_, _ = reg.Remove(context.Background(), "AMD")
	if stream.isSubscribed("AMD") {
		t.Fatalf("removed ticker still subscribed")
	}

	// a trade on the day after the last close appends a new point
	ts := baseDay.AddDate(0, 0, 2).Add(15 * time.Hour).Unix()
	stream.trades <- &models.Trade{Symbol: "NVDA", Timestamp: ts, Price: 861.5, Volume: 100}
	waitFor(t, "trade to be stored", func() bool {
		points, _ := store.Get(context.Background(), "NVDA")
		return len(points) == 3 && points[2].Close.String() == "861.5"
	})

	stream.errs <- errors.New("read: connection reset")
	waitFor(t, "reconnect", func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return stream.reconnects == 1
	})

	cancel()
	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if stream.IsConnected() {
		t.Fatalf("stream not closed")
	}
}

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

type appendRecorder struct {
	points map[string][]models.PricePoint
}

func (a *appendRecorder) AppendPrice(_ context.Context, ticker string, p models.PricePoint) error {
	if a.points == nil {
		a.points = make(map[string][]models.PricePoint)
	}
	a.points[ticker] = append(a.points[ticker], p)
	return nil
}

func TestTradePriceWriterUsesExchangeDay(t *testing.T) {
	ny := newYork(t)
	rec := &appendRecorder{}
	w := NewTradePriceWriter(rec, ny)

	// Friday 19:30 EST is already Saturday in UTC
	friday := time.Date(2024, 1, 12, 19, 30, 0, 0, ny)
	if err := w.Process(context.Background(), &models.Trade{Symbol: "AAPL", Timestamp: friday.Unix(), Price: 99, Volume: 10}); err != nil {
		t.Fatalf("process: %v", err)
	}
	got := rec.points["AAPL"]
	if len(got) != 1 {
		t.Fatalf("points = %v", got)
	}
	if d := got[0].Date.Format(models.DateLayout); d != "2024-01-12" || got[0].Date.Weekday() != time.Friday {
		t.Fatalf("after-hours trade dated %s (%s), want 2024-01-12", d, got[0].Date.Weekday())
	}

	saturday := time.Date(2024, 1, 13, 11, 0, 0, 0, ny)
	sunday := time.Date(2024, 1, 14, 16, 0, 0, 0, ny)
	for _, ts := range []time.Time{saturday, sunday} {
		if err := w.Process(context.Background(), &models.Trade{Symbol: "AAPL", Timestamp: ts.Unix(), Price: 98, Volume: 1}); err != nil {
			t.Fatalf("weekend trade: %v", err)
		}
	}
	if len(rec.points["AAPL"]) != 1 {
		t.Fatalf("weekend trades must not create points: %v", rec.points["AAPL"])
	}
}

func TestTradePriceWriterDefaultsToUTC(t *testing.T) {
	rec := &appendRecorder{}
	w := NewTradePriceWriter(rec, nil)
	ts := time.Date(2024, 4, 10, 23, 59, 0, 0, time.UTC).Unix()
	if err := w.Process(context.Background(), &models.Trade{Symbol: "MSFT", Timestamp: ts, Price: 420, Volume: 1}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if d := rec.points["MSFT"][0].Date.Format(models.DateLayout); d != "2024-04-10" {
		t.Fatalf("date = %s", d)
	}
}
