package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type countingHandler struct {
	failures int
	calls    int
}

func (h *countingHandler) Topic() string { return "prices" }

func (h *countingHandler) Handle(_ context.Context, _ []byte) error {
	h.calls++
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func newTestConsumer(t *testing.T) *Consumer {
	t.Helper()
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return c
}

func TestHandleWithRetryRecovers(t *testing.T) {
	c := newTestConsumer(t)
	h := &countingHandler{failures: 2}

	attempts, err := c.handleWithRetry(h, "prices", kafka.Message{Value: []byte("{}")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 || h.calls != 3 {
		t.Fatalf("attempts=%d calls=%d, want 3", attempts, h.calls)
	}
}

func TestHandleWithRetryGivesUp(t *testing.T) {
	c := newTestConsumer(t)
	h := &countingHandler{failures: 100}
	var onError int
	c.WithConsumerHook(HookFuncs{
		Err: func(context.Context, string, kafka.Message, error) { onError++ },
	})

	attempts, err := c.handleWithRetry(h, "prices", kafka.Message{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	if onError != 1 {
		t.Fatalf("OnError called %d times", onError)
	}
}

func TestBeforeHookErrorSkipsHandler(t *testing.T) {
	c := newTestConsumer(t)
	h := &countingHandler{}
	c.WithConsumerHook(HookFuncs{
		Before: func(ctx context.Context, _ string, _ kafka.Message, data []byte) (context.Context, []byte, error) {
			return ctx, data, errors.New("rejected")
		},
	})

	if _, err := c.handleWithRetry(h, "prices", kafka.Message{}); err == nil {
		t.Fatalf("expected error")
	}
	if h.calls != 0 {
		t.Fatalf("handler called %d times", h.calls)
	}
}

func TestHandlerPanicBecomesError(t *testing.T) {
	c := newTestConsumer(t)
	err := c.safeHandle(context.Background(), panicHandler{}, nil)
	if err == nil {
		t.Fatalf("expected error from panic")
	}
}

type panicHandler struct{}

func (panicHandler) Topic() string                        { return "prices" }
func (panicHandler) Handle(context.Context, []byte) error { panic("boom") }

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestBackoffWithJitter(t *testing.T) {
	min, max := 10*time.Millisecond, 40*time.Millisecond
	for attempt := 1; attempt <= 6; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]string{"ticker": "AAPL"})
	if err != nil || string(b) != `{"ticker":"AAPL"}` {
		t.Fatalf("got %s %v", b, err)
	}
	b, _ = encodeValue("raw")
	if string(b) != "raw" {
		t.Fatalf("got %s", b)
	}
	if _, err := encodeValue(make(chan int)); err == nil {
		t.Fatalf("expected marshal error")
	}
}

func TestParseCompression(t *testing.T) {
	if parseCompression("zstd") != kafka.Zstd || parseCompression("unknown") != kafka.Gzip {
		t.Fatalf("unexpected compression mapping")
	}
}
