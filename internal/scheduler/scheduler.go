package scheduler

import (
	"context"
	"fmt"
	"time"

	"StockWatch/internal/domain/models"
	"StockWatch/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Refresher re-fetches the history of every tracked ticker.
type Refresher interface {
	RefreshAll(ctx context.Context) map[string]models.StockView
}

// Dispatcher runs one recommendation dispatch.
type Dispatcher interface {
	Dispatch(ctx context.Context) (*models.RecommendationRun, error)
}

// Scheduler runs the periodic refresh and dispatch jobs.
type Scheduler struct {
	cron       *cron.Cron
	refresher  Refresher
	dispatcher Dispatcher
	logger     *logger.Logger
	timeout    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func New(refresher Refresher, dispatcher Dispatcher, lgr *logger.Logger, timeout time.Duration) *Scheduler {
	if lgr == nil {
		lgr = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:       cron.New(cron.WithSeconds()),
		refresher:  refresher,
		dispatcher: dispatcher,
		logger:     lgr,
		timeout:    timeout,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Register adds both jobs. Expressions use the six-field form with seconds.
func (s *Scheduler) Register(refreshCron, dispatchCron string) error {
	if _, err := s.cron.AddFunc(refreshCron, s.RefreshNow); err != nil {
		return fmt.Errorf("register refresh job: %w", err)
	}
	if _, err := s.cron.AddFunc(dispatchCron, s.DispatchNow); err != nil {
		return fmt.Errorf("register dispatch job: %w", err)
	}
	s.logger.Info("scheduler jobs registered",
		logger.String("refresh_cron", refreshCron),
		logger.String("dispatch_cron", dispatchCron))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop().Done()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

func (s *Scheduler) RefreshNow() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	views := s.refresher.RefreshAll(ctx)
	failed := 0
	for ticker, v := range views {
		if v.Failed() {
			failed++
			s.logger.Warn("scheduled refresh failed", logger.String("ticker", ticker), logger.String("reason", v.Error))
		}
	}
	s.logger.Info("scheduled refresh finished",
		logger.Int("tickers", len(views)),
		logger.Int("failed", failed),
		logger.Duration("took", time.Since(start)))
}

func (s *Scheduler) DispatchNow() {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	run, err := s.dispatcher.Dispatch(ctx)
	if err != nil {
		s.logger.Error("scheduled dispatch failed", logger.Error(err))
		return
	}
	s.logger.Info("scheduled dispatch finished",
		logger.String("run_id", run.ID),
		logger.Strings("sent", run.Sent))
}
