package usecase

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"StockWatch/internal/domain/models"
	drepo "StockWatch/internal/domain/repository"
	"StockWatch/internal/services/decline"
	"StockWatch/pkg/logger"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,9}$`)

// NormalizeTicker trims and uppercases raw and checks it looks like a ticker symbol.
func NormalizeTicker(raw string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(raw))
	if !tickerPattern.MatchString(t) {
		return t, fmt.Errorf("%w: invalid ticker symbol %q", models.ErrValidation, raw)
	}
	return t, nil
}

// TickerListener is told about membership changes. Calls happen outside registry locks.
type TickerListener interface {
	TickerAdded(ctx context.Context, ticker string)
	TickerRemoved(ctx context.Context, ticker string)
}

// TickerRegistry owns the set of tracked tickers and keeps their history in the store.
type TickerRegistry struct {
	store        drepo.HistoryStore
	market       drepo.MarketData
	metrics      drepo.Metrics
	logger       *logger.Logger
	fetchTimeout time.Duration
	historyDays  int
	parallelism  int

	mu        sync.RWMutex
	tracked   map[string]string // ticker -> company name
	listeners []TickerListener

	locks *keyedMutex
}

// RegistryOption configures TickerRegistry.
type RegistryOption func(*TickerRegistry)

// WithFetchTimeout bounds each market data call.
func WithFetchTimeout(d time.Duration) RegistryOption {
	return func(r *TickerRegistry) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// WithHistoryDays sets how many trading days are fetched per ticker.
func WithHistoryDays(n int) RegistryOption {
	return func(r *TickerRegistry) {
		if n > 0 {
			r.historyDays = n
		}
	}
}

// WithParallelism caps concurrent fetches of one batch add.
func WithParallelism(n int) RegistryOption {
	return func(r *TickerRegistry) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithRegistryLogger sets the logger.
func WithRegistryLogger(l *logger.Logger) RegistryOption {
	return func(r *TickerRegistry) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewTickerRegistry(store drepo.HistoryStore, market drepo.MarketData, metrics drepo.Metrics, opts ...RegistryOption) *TickerRegistry {
	r := &TickerRegistry{
		store:        store,
		market:       market,
		metrics:      metrics,
		logger:       logger.Nop(),
		fetchTimeout: 10 * time.Second,
		historyDays:  30,
		parallelism:  4,
		tracked:      make(map[string]string),
		locks:        newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddListener registers l for future membership changes.
func (r *TickerRegistry) AddListener(l TickerListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, l)
	r.mu.Unlock()
}

// AddAndCheck tracks every ticker, fetching and storing its history, and returns one view per
// normalized symbol. Failures are reported inline; one bad symbol never blocks the others.
// Re-adding a tracked ticker refreshes its history.
func (r *TickerRegistry) AddAndCheck(ctx context.Context, tickers ...string) map[string]models.StockView {
	results := make(map[string]models.StockView, len(tickers))
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, r.parallelism)
	)

	seen := make(map[string]struct{}, len(tickers))
	for _, raw := range tickers {
		ticker, err := NormalizeTicker(raw)
		key := ticker
		if key == "" {
			key = raw
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if err != nil {
			results[key] = models.ErrorView(err.Error())
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			view := r.addOne(ctx, ticker)
			mu.Lock()
			results[ticker] = view
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func (r *TickerRegistry) addOne(ctx context.Context, ticker string) models.StockView {
	unlock := r.locks.Lock(ticker)
	defer unlock()

	start := time.Now()
	fctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	hist, err := r.market.FetchDailyHistory(fctx, ticker, r.historyDays)
	cancel()
	r.metrics.RecordLatency("market_data_fetch", time.Since(start).Seconds())
	if err != nil {
		r.metrics.RecordError("market_data")
		r.logger.Warn("market data fetch failed", logger.String("ticker", ticker), logger.Error(err))
		return models.ErrorView(fetchErrorMessage(ticker, err))
	}

	if err := r.store.AppendBatch(ctx, ticker, hist.Points); err != nil {
		r.metrics.RecordError("store")
		r.logger.Error("store history failed", logger.String("ticker", ticker), logger.Error(err))
		return models.ErrorView("failed to store price history")
	}

	r.mu.Lock()
	_, existed := r.tracked[ticker]
	name := hist.CompanyName
	if name == "" {
		name = r.tracked[ticker]
	}
	r.tracked[ticker] = name
	count := len(r.tracked)
	listeners := append([]TickerListener(nil), r.listeners...)
	r.mu.Unlock()

	r.metrics.RecordTracked(count)
	if !existed {
		r.logger.Info("ticker added", logger.String("ticker", ticker), logger.Int("points", len(hist.Points)))
		for _, l := range listeners {
			l.TickerAdded(ctx, ticker)
		}
	}

	points, err := r.store.Get(ctx, ticker)
	if err != nil {
		r.metrics.RecordError("store")
		return models.ErrorView("failed to read price history")
	}
	return r.view(ticker, name, points)
}

func fetchErrorMessage(ticker string, err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return fmt.Sprintf("unknown ticker symbol %s", ticker)
	case errors.Is(err, context.DeadlineExceeded):
		return "market data request timed out"
	default:
		return "market data unavailable"
	}
}

// Remove stops tracking ticker and deletes its history. Removing an untracked ticker succeeds.
func (r *TickerRegistry) Remove(ctx context.Context, raw string) (bool, error) {
	ticker, err := NormalizeTicker(raw)
	if err != nil {
		return false, err
	}

	unlock := r.locks.Lock(ticker)
	defer unlock()

	if err := r.store.Remove(ctx, ticker); err != nil {
		r.metrics.RecordError("store")
		return false, fmt.Errorf("remove %s: %w", ticker, err)
	}

	r.mu.Lock()
	_, existed := r.tracked[ticker]
	delete(r.tracked, ticker)
	count := len(r.tracked)
	listeners := append([]TickerListener(nil), r.listeners...)
	r.mu.Unlock()

	r.metrics.RecordTracked(count)
	if existed {
		r.logger.Info("ticker removed", logger.String("ticker", ticker))
		for _, l := range listeners {
			l.TickerRemoved(ctx, ticker)
		}
	}
	return true, nil
}

// List returns a view of every tracked ticker.
func (r *TickerRegistry) List(ctx context.Context) map[string]models.StockView {
	r.mu.RLock()
	snapshot := make(map[string]string, len(r.tracked))
	for t, name := range r.tracked {
		snapshot[t] = name
	}
	r.mu.RUnlock()

	out := make(map[string]models.StockView, len(snapshot))
	for ticker, name := range snapshot {
		points, err := r.store.Get(ctx, ticker)
		switch {
		case errors.Is(err, models.ErrNotFound):
			// removed after the snapshot was taken
			continue
		case err != nil:
			r.metrics.RecordError("store")
			r.logger.Warn("read history failed", logger.String("ticker", ticker), logger.Error(err))
			out[ticker] = models.ErrorView("failed to read price history")
		default:
			out[ticker] = r.view(ticker, name, points)
		}
	}
	return out
}

func (r *TickerRegistry) view(ticker, name string, points []models.PricePoint) models.StockView {
	stock := models.Stock{Ticker: ticker, CompanyName: name, History: points}
	latest, ok := stock.LatestClose()
	if !ok {
		return models.ErrorView("no price history")
	}
	f, _ := latest.Float64()
	r.metrics.RecordLastClose(ticker, f)

	flags := decline.Evaluate(points)
	return models.StockView{
		CompanyName:                name,
		LatestClose:                &latest,
		DeclinedLast3Days:          flags.DeclinedLast3Days,
		MoreThan2DeclinesLast5Days: flags.MoreThan2DeclinesLast5Days,
		History:                    points,
	}
}

// Tickers returns the tracked symbols in order.
func (r *TickerRegistry) Tickers() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.tracked))
	for t := range r.tracked {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// IsTracked reports registry membership.
func (r *TickerRegistry) IsTracked(ticker string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tracked[ticker]
	return ok
}

// RefreshAll re-fetches every tracked ticker.
func (r *TickerRegistry) RefreshAll(ctx context.Context) map[string]models.StockView {
	return r.AddAndCheck(ctx, r.Tickers()...)
}

// AppendPrice records one close for a tracked ticker. Untracked tickers yield models.ErrNotFound.
func (r *TickerRegistry) AppendPrice(ctx context.Context, raw string, p models.PricePoint) error {
	ticker, err := NormalizeTicker(raw)
	if err != nil {
		return err
	}
	if !r.IsTracked(ticker) {
		return fmt.Errorf("append %s: %w", ticker, models.ErrNotFound)
	}

	unlock := r.locks.Lock(ticker)
	defer unlock()

	// removal may have won the race for the lock
	if !r.IsTracked(ticker) {
		return fmt.Errorf("append %s: %w", ticker, models.ErrNotFound)
	}
	if err := r.store.Append(ctx, ticker, p); err != nil {
		r.metrics.RecordError("store")
		return fmt.Errorf("append %s: %w", ticker, err)
	}
	f, _ := p.Close.Float64()
	r.metrics.RecordLastClose(ticker, f)
	return nil
}

// Restore loads membership from a durable store. Company names return with the next refresh.
func (r *TickerRegistry) Restore(ctx context.Context) (int, error) {
	tickers, err := r.store.Tickers(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore tickers: %w", err)
	}

	r.mu.Lock()
	for _, t := range tickers {
		if _, ok := r.tracked[t]; !ok {
			r.tracked[t] = ""
		}
	}
	count := len(r.tracked)
	r.mu.Unlock()

	r.metrics.RecordTracked(count)
	return len(tickers), nil
}

// Seed adds the defaults that are not tracked yet.
func (r *TickerRegistry) Seed(ctx context.Context, defaults []string) map[string]models.StockView {
	missing := make([]string, 0, len(defaults))
	for _, d := range defaults {
		t, err := NormalizeTicker(d)
		if err != nil || !r.IsTracked(t) {
			missing = append(missing, d)
		}
	}
	if len(missing) == 0 {
		return map[string]models.StockView{}
	}
	return r.AddAndCheck(ctx, missing...)
}
