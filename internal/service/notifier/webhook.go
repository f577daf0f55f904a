package notifier

import (
	"context"
	"fmt"

	"StockWatch/internal/domain/models"
	xhttp "StockWatch/pkg/http"
)

// WebhookChannel POSTs each recommendation as JSON. Any 2xx counts as accepted.
type WebhookChannel struct {
	client *xhttp.Client
	url    string
}

func NewWebhookChannel(url string, client *xhttp.Client) *WebhookChannel {
	return &WebhookChannel{client: client, url: url}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Send(ctx context.Context, rec *models.Recommendation) error {
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     c.url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    rec,
	}, nil)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", rec.Ticker, err)
	}
	return nil
}
