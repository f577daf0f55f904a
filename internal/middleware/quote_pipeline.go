package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"StockWatch/internal/domain/models"
	domrepo "StockWatch/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, t *models.Trade) error
}

// QuotePipeline sits between the live trade stream and the history store.
// It validates trades, throttles each symbol and buffers trades the downstream rejected.
type QuotePipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.Trade
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
	stored   map[string]int64     // per-symbol timestamp of the newest stored trade
}

type PipelineOption func(*QuotePipeline)

// WithMaxRPS sets the max trades per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *QuotePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *QuotePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewQuotePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *QuotePipeline {
	p := &QuotePipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   5,
		bufSize:  256,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
		stored:   make(map[string]int64),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Trade, p.bufSize)
	return p
}

// Start launches background flushing of buffered trades.
func (p *QuotePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case t := <-p.bufCh:
				if p.superseded(t) {
					p.metrics.RecordError("pipeline_stale_drop")
					continue
				}
				err := p.proc.Process(ctx, t)
				if err == nil {
					p.markStored(t)
				}
				if err == nil || errors.Is(err, models.ErrNotFound) {
					backoff = 50 * time.Millisecond
					continue
				}
				p.metrics.RecordError("pipeline_flush")
				if backoff < 2*time.Second {
					backoff *= 2
				}
				select {
				case <-time.After(backoff):
				case <-p.stopCh:
					return
				}
				select {
				case p.bufCh <- t:
				default:
					p.metrics.RecordError("pipeline_buffer_drop")
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *QuotePipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
}

// Process validates, throttles, and forwards t. Trades for untracked symbols are dropped;
// other downstream failures are buffered for retry. A buffered trade is discarded instead of
// replayed once a newer trade for its symbol has been stored.
func (p *QuotePipeline) Process(ctx context.Context, t *models.Trade) error {
	start := time.Now()
	if err := validateTrade(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(t.Symbol, start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	err := p.proc.Process(ctx, t)
	switch {
	case err == nil:
		p.markStored(t)
		p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
		return nil
	case errors.Is(err, models.ErrNotFound):
		return nil
	}

	p.metrics.RecordError("pipeline_process")
	select {
	case p.bufCh <- t:
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
	return fmt.Errorf("pipeline downstream: %w", err)
}

// Buffered returns the number of trades waiting for retry.
func (p *QuotePipeline) Buffered() int { return len(p.bufCh) }

// superseded reports whether a newer trade for the symbol was stored after t failed.
func (p *QuotePipeline) superseded(t *models.Trade) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stored[t.Symbol] > t.Timestamp
}

func (p *QuotePipeline) markStored(t *models.Trade) {
	p.mu.Lock()
	if t.Timestamp > p.stored[t.Symbol] {
		p.stored[t.Symbol] = t.Timestamp
	}
	p.mu.Unlock()
}

func validateTrade(t *models.Trade) error {
	if t == nil {
		return fmt.Errorf("trade nil")
	}
	if t.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if t.Price <= 0 || t.Volume < 0 {
		return fmt.Errorf("non-positive price or negative volume")
	}
	return nil
}

func (p *QuotePipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[symbol]
	if ok && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
