package server

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StockWatch/internal/scheduler"
	"StockWatch/internal/service/ratelimit"
	"StockWatch/internal/usecase"
	"StockWatch/pkg/config"
	xhttp "StockWatch/pkg/http"
	pkgkafka "StockWatch/pkg/kafka"
	applogger "StockWatch/pkg/logger"
)

// Closer is a named resource released on shutdown, after every worker has stopped.
type Closer struct {
	Name string
	io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	registry   *usecase.TickerRegistry
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	collector  *usecase.QuoteCollector
	scheduler  *scheduler.Scheduler
	limiter    *ratelimit.Limiter
	closers    []Closer

	cancel context.CancelFunc
}

// Options carries the optional parts of the App. Nil fields are disabled.
type Options struct {
	Consumer  *pkgkafka.Consumer
	Collector *usecase.QuoteCollector
	Scheduler *scheduler.Scheduler
	Limiter   *ratelimit.Limiter
	Closers   []Closer
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, lgr *applogger.Logger, registry *usecase.TickerRegistry, handler xhttp.Handler, opts Options) *App {
	if lgr == nil {
		lgr = applogger.Nop()
	}
	return &App{
		cfg:      cfg,
		logger:   lgr,
		registry: registry,
		httpServer: xhttp.NewServer(handler,
			xhttp.WithPort(cfg.Server.Port),
			xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
			xhttp.WithSlowRequest(cfg.Server.SlowRequest),
			xhttp.WithLogger(lgr),
			xhttp.WithCORS(cfg.Server.CORS.Enabled),
			xhttp.WithCORSOrigins(cfg.Server.CORS.AllowOrigins),
		),
		consumer:  opts.Consumer,
		collector: opts.Collector,
		scheduler: opts.Scheduler,
		limiter:   opts.Limiter,
		closers:   opts.Closers,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	a.logger.Info("shutdown signal received", applogger.String("signal", sig.String()))
	shutdownCtx, stop := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer stop()
	return a.Shutdown(shutdownCtx)
}

// Start restores tracked tickers, starts the optional workers and the HTTP server.
func (a *App) Start(ctx context.Context) error {
	restored, err := a.registry.Restore(ctx)
	if err != nil {
		a.logger.Warn("restore tracked tickers failed", applogger.Error(err))
	} else if restored > 0 {
		a.logger.Info("tracked tickers restored", applogger.Int("count", restored))
	}

	if a.cfg.Registry.SeedOnStart && len(a.cfg.Registry.DefaultTickers) > 0 {
		go a.seed(ctx)
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.logger.Error("kafka consumer start failed", applogger.Error(err))
		}
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			a.logger.Error("quote collector start failed", applogger.Error(err))
		} else {
			a.logger.Info("quote collector started", applogger.Strings("tickers", a.registry.Tickers()))
		}
	}

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	if a.limiter != nil {
		go a.sweepLimiter(ctx)
	}

	return a.httpServer.Start()
}

func (a *App) seed(ctx context.Context) {
	views := a.registry.Seed(ctx, a.cfg.Registry.DefaultTickers)
	failed := 0
	for ticker, v := range views {
		if v.Failed() {
			failed++
			a.logger.Warn("seed ticker failed", applogger.String("ticker", ticker), applogger.String("reason", v.Error))
		}
	}
	a.logger.Info("default tickers seeded", applogger.Int("added", len(views)-failed), applogger.Int("failed", failed))
}

func (a *App) sweepLimiter(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Sweep(10 * time.Minute); n > 0 {
				a.logger.Debug("rate limiter buckets swept", applogger.Int("count", n))
			}
		}
	}
}

// Shutdown stops intake first, then background workers, then releases clients.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.logger.Warn("scheduler stop error", applogger.Error(err))
		}
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.logger.Warn("quote collector stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close error", applogger.String("resource", c.Name), applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
