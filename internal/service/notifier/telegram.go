package notifier

import (
	"context"
	"fmt"
	"strings"
	"time"

	"StockWatch/internal/domain/models"
	xhttp "StockWatch/pkg/http"
	"StockWatch/pkg/logger"
)

// TelegramChannel sends recommendations via the Telegram Bot API.
type TelegramChannel struct {
	client     *xhttp.Client
	logger     *logger.Logger
	baseURL    string
	botToken   string
	chatID     string
	maxRetries int
	backoff    time.Duration
}

// TelegramOption configures TelegramChannel.
type TelegramOption func(*TelegramChannel)

// WithBaseURL overrides the Bot API endpoint.
func WithBaseURL(u string) TelegramOption {
	return func(t *TelegramChannel) {
		if u != "" {
			t.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithRetry sets retries after the first attempt and the initial backoff, doubled per retry.
func WithRetry(maxRetries int, backoff time.Duration) TelegramOption {
	return func(t *TelegramChannel) {
		t.maxRetries = maxRetries
		t.backoff = backoff
	}
}

// WithTelegramLogger sets the logger.
func WithTelegramLogger(l *logger.Logger) TelegramOption {
	return func(t *TelegramChannel) {
		t.logger = l
	}
}

func NewTelegramChannel(botToken, chatID string, client *xhttp.Client, opts ...TelegramOption) *TelegramChannel {
	t := &TelegramChannel{
		client:     client,
		logger:     logger.Nop(),
		baseURL:    "https://api.telegram.org",
		botToken:   botToken,
		chatID:     chatID,
		maxRetries: 2,
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TelegramChannel) Name() string { return "telegram" }

func (t *TelegramChannel) Send(ctx context.Context, rec *models.Recommendation) error {
	return t.SendWithRetry(ctx, FormatRecommendation(rec))
}

// SendText posts a single message.
func (t *TelegramChannel) SendText(ctx context.Context, text string) error {
	var resp struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	err := t.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken),
		Headers: map[string]string{"Content-Type": "application/json"},
		Body: map[string]string{
			"chat_id":    t.chatID,
			"text":       text,
			"parse_mode": "HTML",
		},
	}, &resp)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("telegram API error: %s", resp.Description)
	}
	return nil
}

// SendWithRetry sends text with exponential backoff between attempts.
func (t *TelegramChannel) SendWithRetry(ctx context.Context, text string) error {
	var lastErr error
	for i := 0; i <= t.maxRetries; i++ {
		if lastErr = t.SendText(ctx, text); lastErr == nil {
			return nil
		}
		if i == t.maxRetries {
			break
		}
		wait := t.backoff << uint(i)
		t.logger.Warn("telegram send failed",
			logger.Int("attempt", i+1),
			logger.Int("max_attempts", t.maxRetries+1),
			logger.Duration("retry_in", wait),
			logger.Error(lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("all %d attempts exhausted: %w", t.maxRetries+1, lastErr)
}
