package usecase

import (
	"context"
	"time"

	"StockWatch/internal/domain/models"
	drepo "StockWatch/internal/domain/repository"
	mid "StockWatch/internal/middleware"
	"StockWatch/pkg/logger"

	"github.com/shopspring/decimal"
)

// PriceAppender records a close for a tracked ticker.
type PriceAppender interface {
	AppendPrice(ctx context.Context, ticker string, p models.PricePoint) error
}

// TradePriceWriter turns a live trade into the close of its session day.
// Days are taken in the exchange's time zone; weekend prints are skipped.
type TradePriceWriter struct {
	prices PriceAppender
	loc    *time.Location
}

// NewTradePriceWriter dates trades in loc. A nil loc means UTC.
func NewTradePriceWriter(prices PriceAppender, loc *time.Location) *TradePriceWriter {
	if loc == nil {
		loc = time.UTC
	}
	return &TradePriceWriter{prices: prices, loc: loc}
}

func (w *TradePriceWriter) Process(ctx context.Context, t *models.Trade) error {
	local := time.Unix(t.Timestamp, 0).In(w.loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return nil
	}
	p := models.NewPricePoint(local, decimal.NewFromFloat(t.Price))
	return w.prices.AppendPrice(ctx, t.Symbol, p)
}

// QuoteCollector streams live trades into the registry and keeps the
// stream subscriptions in line with registry membership.
type QuoteCollector struct {
	stream   drepo.QuoteStream
	pipe     *mid.QuotePipeline
	registry *TickerRegistry
	metrics  drepo.Metrics
	logger   *logger.Logger
	done     chan struct{}
	started  bool
}

// NewQuoteCollector builds a collector whose trades are dated in exchangeLoc (UTC when nil).
func NewQuoteCollector(stream drepo.QuoteStream, registry *TickerRegistry, metrics drepo.Metrics, lgr *logger.Logger, exchangeLoc *time.Location, opts ...mid.PipelineOption) *QuoteCollector {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &QuoteCollector{
		stream:   stream,
		pipe:     mid.NewQuotePipeline(NewTradePriceWriter(registry, exchangeLoc), metrics, opts...),
		registry: registry,
		metrics:  metrics,
		logger:   lgr,
		done:     make(chan struct{}),
	}
}

// IsConnected returns true if the quote stream is connected.
func (c *QuoteCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes to every tracked ticker and consumes trades until ctx ends.
func (c *QuoteCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx, c.registry.Tickers()...); err != nil {
		return err
	}
	c.registry.AddListener(c)
	c.pipe.Start(ctx)

	c.started = true
	trCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, trCh, errCh)
	return nil
}

func (c *QuoteCollector) TickerAdded(ctx context.Context, ticker string) {
	if err := c.stream.Subscribe(ctx, ticker); err != nil {
		c.logger.Warn("quote subscribe failed", logger.String("ticker", ticker), logger.Error(err))
	}
}

func (c *QuoteCollector) TickerRemoved(ctx context.Context, ticker string) {
	if err := c.stream.Unsubscribe(ctx, ticker); err != nil {
		c.logger.Warn("quote unsubscribe failed", logger.String("ticker", ticker), logger.Error(err))
	}
}

func (c *QuoteCollector) consume(ctx context.Context, trCh <-chan *models.Trade, errCh <-chan error) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			c.metrics.RecordError("stream")
			c.logger.Warn("quote stream error", logger.Error(err))
			if !c.reconnect(ctx) {
				return
			}
			trCh, errCh = c.stream.Read(ctx)
		case t, ok := <-trCh:
			if !ok {
				trCh = nil
				continue
			}
			if err := c.pipe.Process(ctx, t); err != nil {
				c.logger.Debug("trade not stored", logger.String("symbol", t.Symbol), logger.Error(err))
			}
		}
	}
}

func (c *QuoteCollector) reconnect(ctx context.Context) bool {
	for {
		err := c.stream.Reconnect(ctx)
		if err == nil {
			c.logger.Info("quote stream reconnected")
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.metrics.RecordError("stream_reconnect")
		c.logger.Warn("quote stream reconnect failed", logger.Error(err))
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *QuoteCollector) Shutdown(ctx context.Context) error {
	c.pipe.Stop()
	err := c.stream.Close()
	if !c.started {
		return err
	}
	select {
	case <-c.done:
	case <-ctx.Done():
	}
	return err
}
