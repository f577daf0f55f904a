package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"StockWatch/internal/domain/models"
	"StockWatch/pkg/config"
	xhttp "StockWatch/pkg/http"
)

const yahooBody = `{"chart":{"result":[{
	"meta":{"symbol":"AAPL","longName":"Apple Inc.","gmtoffset":-14400},
	"timestamp":[1712928600,1713187800,1713274200,1713360600],
	"indicators":{"quote":[{"close":[176.55,null,169.38,168.0]}]}
}],"error":null}}`

func TestYahooFetchDailyHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v8/finance/chart/AAPL":
			if r.URL.Query().Get("interval") != "1d" || r.URL.Query().Get("range") != "3mo" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			if r.Header.Get("User-Agent") == "" {
				t.Errorf("missing user agent")
			}
			_, _ = w.Write([]byte(yahooBody))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
		}
	}))
	defer srv.Close()

	y := NewYahoo(srv.URL, xhttp.NewClient(xhttp.WithTimeout(time.Second)))
	h, err := y.FetchDailyHistory(context.Background(), "AAPL", 30)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if h.CompanyName != "Apple Inc." {
		t.Fatalf("company = %q", h.CompanyName)
	}
	if len(h.Points) != 3 {
		t.Fatalf("points = %d, want 3 (null bar skipped)", len(h.Points))
	}
	want := []string{"2024-04-12", "2024-04-16", "2024-04-17"}
	for i, p := range h.Points {
		if got := p.Date.Format(models.DateLayout); got != want[i] {
			t.Fatalf("point %d date = %s, want %s", i, got, want[i])
		}
	}
	if h.Points[2].Close.String() != "168" {
		t.Fatalf("last close = %s", h.Points[2].Close)
	}

	_, err = y.FetchDailyHistory(context.Background(), "NOPE", 30)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestYahooUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	y := NewYahoo(srv.URL, xhttp.NewClient())
	_, err := y.FetchDailyHistory(context.Background(), "AAPL", 10)
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}

	srv.Close()
	_, err = y.FetchDailyHistory(context.Background(), "AAPL", 10)
	if !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("closed server: expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestTiingoFetchDailyHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/tiingo/daily/msft":
			_, _ = w.Write([]byte(`{"ticker":"MSFT","name":"Microsoft Corporation"}`))
		case "/tiingo/daily/msft/prices":
			if r.URL.Query().Get("startDate") != "2024-03-27" {
				t.Errorf("startDate = %s", r.URL.Query().Get("startDate"))
			}
			_, _ = w.Write([]byte(`[
				{"date":"2024-04-16T00:00:00.000Z","close":414.58},
				{"date":"2024-04-15T00:00:00.000Z","close":413.64},
				{"date":"2024-04-17T00:00:00.000Z","close":411.840000001}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Not found."}`))
		}
	}))
	defer srv.Close()

	tg := NewTiingo(srv.URL, "key", xhttp.NewClient())
	tg.now = func() time.Time { return time.Date(2024, 4, 17, 12, 0, 0, 0, time.UTC) }

	h, err := tg.FetchDailyHistory(context.Background(), "MSFT", 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if h.CompanyName != "Microsoft Corporation" || len(h.Points) != 3 {
		t.Fatalf("unexpected history %+v", h)
	}
	if h.Points[0].Date.Format(models.DateLayout) != "2024-04-15" {
		t.Fatalf("points not sorted: %v", h.Points[0].Date)
	}
	if h.Points[2].Close.String() != "411.840000001" {
		t.Fatalf("precision lost: %s", h.Points[2].Close)
	}

	_, err = tg.FetchDailyHistory(context.Background(), "ZZZZ", 10)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLastN(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 4, d, 0, 0, 0, 0, time.UTC) }
	h := &models.MarketHistory{}
	for _, d := range []int{5, 1, 3, 3, 2} {
		h.Points = append(h.Points, models.PricePoint{Date: day(d)})
	}
	got := lastN(h.Points, 3)
	if len(got) != 3 || !got[0].Date.Equal(day(2)) || !got[2].Date.Equal(day(5)) {
		t.Fatalf("unexpected %v", got)
	}
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := config.Default().MarketData
	p, err := New(cfg)
	if err != nil || p.Name() != "yahoo" {
		t.Fatalf("default provider: %v %v", p, err)
	}
	cfg.Provider = "tiingo"
	if p, _ = New(cfg); p.Name() != "tiingo" {
		t.Fatalf("provider = %s", p.Name())
	}
	cfg.Provider = "bloomberg"
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error")
	}
}
