package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"StockWatch/internal/domain/models"
	domrepo "StockWatch/internal/domain/repository"
	pkgkafka "StockWatch/pkg/kafka"
	"StockWatch/pkg/util"

	"github.com/shopspring/decimal"
)

// KafkaPricesHandler appends daily closes published on a Kafka topic.
type KafkaPricesHandler struct {
	topic   string
	prices  PriceAppender
	metrics domrepo.Metrics
}

func NewKafkaPricesHandler(topic string, prices PriceAppender, metrics domrepo.Metrics) *KafkaPricesHandler {
	return &KafkaPricesHandler{topic: topic, prices: prices, metrics: metrics}
}

func (h *KafkaPricesHandler) Topic() string { return h.topic }

// incoming message schema: {ticker|symbol, date, close}
func (h *KafkaPricesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Ticker string          `json:"ticker"`
		Symbol string          `json:"symbol"`
		Date   json.RawMessage `json:"date"`
		Close  json.Number     `json:"close"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode price: %w", err)
	}

	ticker := m.Ticker
	if ticker == "" {
		ticker = m.Symbol
	}
	date, ok := util.ParseDate(strings.Trim(string(m.Date), `"`))
	if !ok {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("price for %q: unreadable date %s", ticker, m.Date)
	}
	closePrice, err := decimal.NewFromString(m.Close.String())
	if err != nil || !closePrice.IsPositive() {
		h.metrics.RecordError("consumer_invalid")
		return fmt.Errorf("price for %q: invalid close %q", ticker, m.Close.String())
	}

	start := time.Now()
	err = h.prices.AppendPrice(ctx, ticker, models.NewPricePoint(date, closePrice))
	h.metrics.RecordLatency("kafka_price_append", time.Since(start).Seconds())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrNotFound):
		// only tracked tickers accumulate history
		return nil
	default:
		h.metrics.RecordError("consumer_store")
		return err
	}
}

var _ pkgkafka.MessageHandler = (*KafkaPricesHandler)(nil)
