package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"StockWatch/internal/domain/models"
	drepo "StockWatch/internal/domain/repository"
	"StockWatch/pkg/logger"

	"github.com/google/uuid"
)

// StockLister is the registry read side used by the dispatcher.
type StockLister interface {
	List(ctx context.Context) map[string]models.StockView
}

// Dispatcher forwards every flagged ticker to the recommendation channel.
type Dispatcher struct {
	stocks  StockLister
	channel drepo.RecommendationChannel
	metrics drepo.Metrics
	logger  *logger.Logger
	timeout time.Duration
	now     func() time.Time
}

func NewDispatcher(stocks StockLister, channel drepo.RecommendationChannel, metrics drepo.Metrics, lgr *logger.Logger, timeout time.Duration) *Dispatcher {
	if lgr == nil {
		lgr = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		stocks:  stocks,
		channel: channel,
		metrics: metrics,
		logger:  lgr,
		timeout: timeout,
		now:     time.Now,
	}
}

// Dispatch sends each stock with a decline flag and returns the tickers the channel accepted.
// Nothing to send yields an empty run and no error. When every send fails the error wraps
// models.ErrUpstreamUnavailable; partial failures only shrink Sent.
func (d *Dispatcher) Dispatch(ctx context.Context) (*models.RecommendationRun, error) {
	start := time.Now()
	run := &models.RecommendationRun{ID: uuid.NewString(), Sent: []string{}}

	views := d.stocks.List(ctx)
	selected := make([]string, 0, len(views))
	for ticker, v := range views {
		if v.Failed() || !(v.DeclinedLast3Days || v.MoreThan2DeclinesLast5Days) {
			continue
		}
		selected = append(selected, ticker)
	}
	sort.Strings(selected)

	log := d.logger.With(logger.String("run_id", run.ID), logger.String("channel", d.channel.Name()))
	if len(selected) == 0 {
		log.Info("dispatch: nothing to send", logger.Int("tracked", len(views)))
		return run, nil
	}

	var lastErr error
	for _, ticker := range selected {
		v := views[ticker]
		rec := &models.Recommendation{
			RunID:                      run.ID,
			Ticker:                     ticker,
			CompanyName:                v.CompanyName,
			DeclinedLast3Days:          v.DeclinedLast3Days,
			MoreThan2DeclinesLast5Days: v.MoreThan2DeclinesLast5Days,
			CreatedAt:                  d.now().UTC(),
		}
		if v.LatestClose != nil {
			rec.LatestClose = *v.LatestClose
		}

		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.channel.Send(sctx, rec)
		cancel()
		if err != nil {
			lastErr = err
			d.metrics.RecordError("dispatch")
			log.Warn("dispatch send failed", logger.String("ticker", ticker), logger.Error(err))
			continue
		}
		run.Sent = append(run.Sent, ticker)
		d.metrics.RecordDispatched(d.channel.Name(), ticker)
	}
	d.metrics.RecordLatency("dispatch", time.Since(start).Seconds())

	log.Info("dispatch finished",
		logger.Int("selected", len(selected)),
		logger.Strings("sent", run.Sent))
	if len(run.Sent) == 0 {
		return run, fmt.Errorf("%w: %s rejected all %d recommendations: %v",
			models.ErrUpstreamUnavailable, d.channel.Name(), len(selected), lastErr)
	}
	return run, nil
}
