package notifier

import (
	"context"

	"StockWatch/internal/domain/models"
	"StockWatch/pkg/logger"
)

// LogChannel only logs recommendations. It is the default channel and never fails.
type LogChannel struct {
	logger *logger.Logger
}

func NewLogChannel(l *logger.Logger) *LogChannel {
	if l == nil {
		l = logger.Nop()
	}
	return &LogChannel{logger: l}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, rec *models.Recommendation) error {
	c.logger.Info("recommendation",
		logger.String("run_id", rec.RunID),
		logger.String("ticker", rec.Ticker),
		logger.String("latest_close", rec.LatestClose.String()),
		logger.Bool("declined_last_3_days", rec.DeclinedLast3Days),
		logger.Bool("more_than_2_declines_last_5_days", rec.MoreThan2DeclinesLast5Days))
	return nil
}
