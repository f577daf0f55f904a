package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"StockWatch/internal/domain/models"
	xhttp "StockWatch/pkg/http"

	"github.com/shopspring/decimal"
)

func sampleRecommendation() *models.Recommendation {
	return &models.Recommendation{
		RunID:             "run-1",
		Ticker:            "TSLA",
		CompanyName:       "Tesla, Inc.",
		LatestClose:       decimal.RequireFromString("161.4799"),
		DeclinedLast3Days: true,
		CreatedAt:         time.Date(2024, 4, 17, 22, 0, 0, 0, time.UTC),
	}
}

func TestTelegramSendWithRetry(t *testing.T) {
	var calls int32
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"ok":false}`))
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegramChannel("token", "42", xhttp.NewClient(),
		WithBaseURL(srv.URL), WithRetry(2, time.Millisecond))
	if err := tg.Send(context.Background(), sampleRecommendation()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
	if got["chat_id"] != "42" || got["parse_mode"] != "HTML" || !strings.Contains(got["text"], "<b>TSLA</b>") {
		t.Fatalf("unexpected payload %v", got)
	}
}

func TestTelegramGivesUp(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	tg := NewTelegramChannel("token", "42", xhttp.NewClient(),
		WithBaseURL(srv.URL), WithRetry(1, time.Millisecond))
	err := tg.Send(context.Background(), sampleRecommendation())
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("expected API error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestWebhookChannel(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(srv.URL, xhttp.NewClient())
	if err := ch.Send(context.Background(), sampleRecommendation()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if body["ticker"] != "TSLA" || body["run_id"] != "run-1" || body["declined_last_3_days"] != true {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestWebhookChannelRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := NewWebhookChannel(srv.URL, xhttp.NewClient()).Send(context.Background(), sampleRecommendation()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFormatRecommendation(t *testing.T) {
	msg := FormatRecommendation(sampleRecommendation())
	for _, want := range []string{"<b>TSLA</b>", "Tesla, Inc.", "161.48", "3 days in a row"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
	if strings.Contains(msg, "more than 2") {
		t.Fatalf("unset flag rendered: %q", msg)
	}
}

func TestLogChannelNeverFails(t *testing.T) {
	if err := NewLogChannel(nil).Send(context.Background(), sampleRecommendation()); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
