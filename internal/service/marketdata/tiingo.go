package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"StockWatch/internal/domain/models"
	xhttp "StockWatch/pkg/http"
	"StockWatch/pkg/util"

	"github.com/shopspring/decimal"
)

// Tiingo reads end-of-day prices from the Tiingo daily API.
type Tiingo struct {
	client  *xhttp.Client
	baseURL string
	apiKey  string
	now     func() time.Time
}

func NewTiingo(baseURL, apiKey string, client *xhttp.Client) *Tiingo {
	if baseURL == "" {
		baseURL = "https://api.tiingo.com"
	}
	return &Tiingo{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		now:     time.Now,
	}
}

func (t *Tiingo) Name() string { return "tiingo" }

type tiingoMeta struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

type tiingoPrice struct {
	Date  string      `json:"date"`
	Close json.Number `json:"close"`
}

func (t *Tiingo) FetchDailyHistory(ctx context.Context, ticker string, days int) (*models.MarketHistory, error) {
	base := fmt.Sprintf("%s/tiingo/daily/%s", t.baseURL, url.PathEscape(strings.ToLower(ticker)))
	token := map[string][]string{"token": {t.apiKey}}

	// metadata doubles as symbol resolution
	var meta tiingoMeta
	if err := t.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         base,
		QueryParams: token,
	}, &meta); err != nil {
		return nil, classify(t.Name(), ticker, err)
	}

	// calendar lookback wide enough to hold days trading sessions
	start := t.now().UTC().AddDate(0, 0, -(days*7/5 + 7))
	var prices []tiingoPrice
	if err := t.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    base + "/prices",
		QueryParams: map[string][]string{
			"startDate": {start.Format(models.DateLayout)},
			"token":     {t.apiKey},
		},
	}, &prices); err != nil {
		return nil, classify(t.Name(), ticker, err)
	}

	points := make([]models.PricePoint, 0, len(prices))
	for _, p := range prices {
		day, ok := util.ParseDate(p.Date)
		if !ok {
			continue
		}
		c, err := decimal.NewFromString(p.Close.String())
		if err != nil {
			continue
		}
		points = append(points, models.NewPricePoint(day, c))
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("tiingo: no prices for %s: %w", ticker, models.ErrNotFound)
	}

	return &models.MarketHistory{
		Ticker:      ticker,
		CompanyName: meta.Name,
		Points:      lastN(points, days),
	}, nil
}
