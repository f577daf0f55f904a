package marketdata

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"StockWatch/internal/domain/models"
	"StockWatch/internal/domain/repository"
	"StockWatch/pkg/config"
	xhttp "StockWatch/pkg/http"
)

// New builds the provider selected in config.
func New(cfg config.MarketDataConfig) (repository.MarketData, error) {
	client := xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout))
	switch cfg.Provider {
	case "", "yahoo":
		return NewYahoo(cfg.Yahoo.BaseURL, client), nil
	case "tiingo":
		return NewTiingo(cfg.Tiingo.BaseURL, cfg.Tiingo.APIKey, client), nil
	default:
		return nil, fmt.Errorf("unknown market data provider %q", cfg.Provider)
	}
}

// classify maps transport errors onto the domain sentinels.
func classify(provider, ticker string, err error) error {
	var se *xhttp.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return fmt.Errorf("%s: unknown symbol %s: %w", provider, ticker, models.ErrNotFound)
	}
	return fmt.Errorf("%s: fetch %s: %w: %v", provider, ticker, models.ErrUpstreamUnavailable, err)
}

// lastN sorts points ascending, collapses duplicate dates and keeps the newest n.
func lastN(points []models.PricePoint, n int) []models.PricePoint {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	out := points[:0]
	for _, p := range points {
		if len(out) > 0 && out[len(out)-1].Date.Equal(p.Date) {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}
