package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"StockWatch/internal/domain/models"
	xhttp "StockWatch/pkg/http"

	"github.com/shopspring/decimal"
)

// Yahoo reads daily closes from the public Yahoo Finance chart API.
type Yahoo struct {
	client  *xhttp.Client
	baseURL string
}

func NewYahoo(baseURL string, client *xhttp.Client) *Yahoo {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &Yahoo{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (y *Yahoo) Name() string { return "yahoo" }

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				LongName  string `json:"longName"`
				ShortName string `json:"shortName"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// chartRange picks the smallest Yahoo range covering days trading sessions.
func chartRange(days int) string {
	switch {
	case days <= 20:
		return "1mo"
	case days <= 60:
		return "3mo"
	case days <= 120:
		return "6mo"
	case days <= 250:
		return "1y"
	default:
		return "2y"
	}
}

func (y *Yahoo) FetchDailyHistory(ctx context.Context, ticker string, days int) (*models.MarketHistory, error) {
	var chart yahooChart
	err := y.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     fmt.Sprintf("%s/v8/finance/chart/%s", y.baseURL, url.PathEscape(ticker)),
		Headers: map[string]string{"User-Agent": "Mozilla/5.0"},
		QueryParams: map[string][]string{
			"interval": {"1d"},
			"range":    {chartRange(days)},
		},
	}, &chart)
	if err != nil {
		return nil, classify(y.Name(), ticker, err)
	}
	if e := chart.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return nil, fmt.Errorf("yahoo: %s: %s: %w", ticker, e.Description, models.ErrNotFound)
		}
		return nil, fmt.Errorf("yahoo: %s: %s: %w", ticker, e.Description, models.ErrUpstreamUnavailable)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: no data for %s: %w", ticker, models.ErrNotFound)
	}

	result := chart.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close
	points := make([]models.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue // null bars (holidays, halted sessions)
		}
		// shift into exchange local time so the session keeps its own date
		day := time.Unix(ts+result.Meta.GMTOffset, 0).UTC()
		points = append(points, models.NewPricePoint(day, decimal.NewFromFloat(*closes[i])))
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("yahoo: no closes for %s: %w", ticker, models.ErrNotFound)
	}

	name := result.Meta.LongName
	if name == "" {
		name = result.Meta.ShortName
	}
	return &models.MarketHistory{
		Ticker:      ticker,
		CompanyName: name,
		Points:      lastN(points, days),
	}, nil
}
