package news

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"StockWatch/internal/domain/models"
	"StockWatch/internal/domain/repository"
	xhttp "StockWatch/pkg/http"
	"StockWatch/pkg/logger"
	"StockWatch/pkg/util"
)

// Client fetches rated news from a caller supplied URL.
// The body may be a JSON array of items or an object wrapping them in "data".
type Client struct {
	http   *xhttp.Client
	logger *logger.Logger
}

func NewClient(httpClient *xhttp.Client, lgr *logger.Logger) *Client {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Client{http: httpClient, logger: lgr}
}

type ratedItem struct {
	Name   string          `json:"name"`
	Date   json.RawMessage `json:"date"`
	Rating json.Number     `json:"rating"`
}

type envelope struct {
	Data []ratedItem `json:"data"`
}

// Fetch returns items in source order. Items whose date or rating cannot be read are skipped.
func (c *Client) Fetch(ctx context.Context, url string) ([]models.RatedNews, error) {
	var body []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodGet,
		URL:     url,
		Headers: map[string]string{"Accept": "application/json"},
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("news source: %w: %v", models.ErrUpstreamUnavailable, err)
	}

	items, err := decodeItems(body)
	if err != nil {
		return nil, fmt.Errorf("news source: %w: %v", models.ErrUpstreamUnavailable, err)
	}

	out := make([]models.RatedNews, 0, len(items))
	for i, it := range items {
		n, err := it.toRated()
		if err != nil {
			c.logger.Warn("skipping news item", logger.Int("index", i), logger.Error(err))
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func decodeItems(body []byte) ([]ratedItem, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if body[0] == '[' {
		var items []ratedItem
		if err := dec.Decode(&items); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
		return items, nil
	}

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return env.Data, nil
}

func (it ratedItem) toRated() (models.RatedNews, error) {
	rating, err := it.Rating.Int64()
	if err != nil {
		return models.RatedNews{}, fmt.Errorf("rating %q is not an integer", it.Rating.String())
	}

	raw := strings.Trim(string(it.Date), `"`)
	date, ok := util.ParseDate(raw)
	if !ok {
		return models.RatedNews{}, fmt.Errorf("unreadable date %q", raw)
	}

	return models.RatedNews{
		Name:   strings.TrimSpace(it.Name),
		Date:   models.CalendarDay(date),
		Rating: int(rating),
	}, nil
}

var _ repository.NewsSource = (*Client)(nil)
