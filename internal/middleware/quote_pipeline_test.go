package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"StockWatch/internal/domain/models"
	"StockWatch/pkg/metrics"
)

type recordingProc struct {
	mu     sync.Mutex
	err    error
	trades []*models.Trade
}

func (p *recordingProc) Process(_ context.Context, t *models.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.trades = append(p.trades, t)
	return nil
}

func (p *recordingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.trades)
}

func trade(sym string) *models.Trade {
	return &models.Trade{Symbol: sym, Timestamp: 1713360600, Price: 168.0, Volume: 5}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &recordingProc{}
	p := NewQuotePipeline(proc, metrics.Noop{}, WithMaxRPS(1))

	for i := 0; i < 3; i++ {
		if err := p.Process(context.Background(), trade("AAPL")); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	_ = p.Process(context.Background(), trade("MSFT"))

	if proc.count() != 2 {
		t.Fatalf("forwarded %d trades, want 2", proc.count())
	}
}

func TestPipelineRejectsInvalid(t *testing.T) {
	p := NewQuotePipeline(&recordingProc{}, metrics.Noop{})
	for _, tr := range []*models.Trade{nil, {Price: 1, Timestamp: 1}, {Symbol: "A", Price: 1}, {Symbol: "A", Timestamp: 1}} {
		if err := p.Process(context.Background(), tr); err == nil {
			t.Fatalf("expected error for %+v", tr)
		}
	}
}

func TestPipelineDropsUntracked(t *testing.T) {
	proc := &recordingProc{err: models.ErrNotFound}
	p := NewQuotePipeline(proc, metrics.Noop{})
	if err := p.Process(context.Background(), trade("ZZZ")); err != nil {
		t.Fatalf("untracked trade should be dropped silently: %v", err)
	}
	if p.Buffered() != 0 {
		t.Fatalf("untracked trade buffered")
	}
}

func TestPipelineBuffersAndFlushes(t *testing.T) {
	proc := &recordingProc{err: errors.New("store down")}
	p := NewQuotePipeline(proc, metrics.Noop{}, WithBufferSize(4))

	if err := p.Process(context.Background(), trade("AAPL")); err == nil {
		t.Fatalf("expected downstream error")
	}
	if p.Buffered() != 1 {
		t.Fatalf("buffered = %d", p.Buffered())
	}

	proc.mu.Lock()
	proc.err = nil
	proc.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for proc.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("buffered trade was not flushed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type errorKinds struct {
	metrics.Noop
	mu    sync.Mutex
	kinds []string
}

func (m *errorKinds) RecordError(kind string) {
	m.mu.Lock()
	m.kinds = append(m.kinds, kind)
	m.mu.Unlock()
}

func (m *errorKinds) has(kind string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func TestPipelineDropsBufferedTradeOnceNewerStored(t *testing.T) {
	proc := &recordingProc{err: errors.New("store down")}
	m := &errorKinds{}
	p := NewQuotePipeline(proc, m, WithMaxRPS(1000))

	older := &models.Trade{Symbol: "AAPL", Timestamp: 1713360600, Price: 168.0, Volume: 5}
	if err := p.Process(context.Background(), older); err == nil {
		t.Fatalf("expected downstream error")
	}

	proc.mu.Lock()
	proc.err = nil
	proc.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	newer := &models.Trade{Symbol: "AAPL", Timestamp: older.Timestamp + 60, Price: 170.5, Volume: 5}
	if err := p.Process(context.Background(), newer); err != nil {
		t.Fatalf("process newer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for !m.has("pipeline_stale_drop") {
		if time.Now().After(deadline) {
			t.Fatalf("stale buffered trade was not discarded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	proc.mu.Lock()
	defer proc.mu.Unlock()
	if len(proc.trades) != 1 || proc.trades[0].Price != 170.5 {
		t.Fatalf("stored trades = %+v, want only the newer one", proc.trades)
	}
}
