package usecase

import (
	"context"
	"errors"
	"testing"

	"StockWatch/internal/domain/models"
	"StockWatch/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func flaggedRegistry(t *testing.T) *TickerRegistry {
	t.Helper()
	market := newFakeMarket()
	market.set("AAPL", "Apple", closes("10", "9", "8", "7"))           // 3-day decline
	market.set("MSFT", "Microsoft", closes("10", "9", "10", "9", "8")) // 3 of 4 pairs declined
	market.set("NVDA", "Nvidia", closes("10", "11", "12", "13"))       // rising
	reg, _ := newRegistry(t, market)
	reg.AddAndCheck(context.Background(), "AAPL", "MSFT", "NVDA")
	return reg
}

func TestDispatchSendsFlaggedTickers(t *testing.T) {
	ch := &fakeChannel{}
	reg := flaggedRegistry(t)
	promReg := prometheus.NewRegistry()
	recorder := metrics.NewWithRegisterer(promReg)

	run, err := NewDispatcher(reg, ch, recorder, nil, 0).Dispatch(context.Background())
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(run.Sent) != 2 || run.Sent[0] != "AAPL" || run.Sent[1] != "MSFT" {
		t.Fatalf("sent = %v", run.Sent)
	}
	if run.ID == "" || ch.sent[0].RunID != run.ID {
		t.Fatalf("run id not propagated")
	}
	if ch.sent[0].CompanyName != "Apple" || ch.sent[0].LatestClose.String() != "7" {
		t.Fatalf("unexpected recommendation %+v", ch.sent[0])
	}
	families, err := promReg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	series := 0
	for _, f := range families {
		if f.GetName() == "stockwatch_recommendations_sent_total" {
			series = len(f.GetMetric())
		}
	}
	if series != 2 {
		t.Fatalf("dispatched series = %d", series)
	}
}

func TestDispatchNothingToSend(t *testing.T) {
	market := newFakeMarket()
	market.set("NVDA", "Nvidia", closes("10", "11"))
	reg, _ := newRegistry(t, market)
	reg.AddAndCheck(context.Background(), "NVDA")

	ch := &fakeChannel{reject: map[string]bool{"*": true}}
	run, err := NewDispatcher(reg, ch, metrics.Noop{}, nil, 0).Dispatch(context.Background())
	if err != nil {
		t.Fatalf("empty selection must not fail: %v", err)
	}
	if run.Sent == nil || len(run.Sent) != 0 {
		t.Fatalf("sent = %#v, want empty non-nil", run.Sent)
	}
}

func TestDispatchAllSendsFail(t *testing.T) {
	ch := &fakeChannel{reject: map[string]bool{"*": true}}
	_, err := NewDispatcher(flaggedRegistry(t), ch, metrics.Noop{}, nil, 0).Dispatch(context.Background())
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestDispatchPartialFailure(t *testing.T) {
	ch := &fakeChannel{reject: map[string]bool{"AAPL": true}}
	run, err := NewDispatcher(flaggedRegistry(t), ch, metrics.Noop{}, nil, 0).Dispatch(context.Background())
	if err != nil {
		t.Fatalf("partial failure should not error: %v", err)
	}
	if len(run.Sent) != 1 || run.Sent[0] != "MSFT" {
		t.Fatalf("sent = %v", run.Sent)
	}
}
