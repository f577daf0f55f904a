package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	tracked     prometheus.Gauge
	dispatched  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastClose   *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
	news        *prometheus.CounterVec
}

// New creates a recorder registered on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		tracked: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "stockwatch_tracked_tickers",
				Help: "Number of tickers currently tracked",
			},
		),
		dispatched: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockwatch_recommendations_sent_total",
				Help: "Total number of recommendations accepted by a channel",
			},
			[]string{"channel", "ticker"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockwatch_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastClose: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockwatch_last_close",
				Help: "Most recent close for a ticker",
			},
			[]string{"ticker"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockwatch_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		news: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockwatch_news_items_total",
				Help: "Rated news items classified, by verdict",
			},
			[]string{"verdict"},
		),
	}
}

func (r *Recorder) RecordTracked(count int) {
	r.tracked.Set(float64(count))
}

func (r *Recorder) RecordDispatched(channel, ticker string) {
	r.dispatched.WithLabelValues(channel, ticker).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastClose(ticker string, close float64) {
	r.lastClose.WithLabelValues(ticker).Set(close)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordNewsItems(sell, hold int) {
	r.news.WithLabelValues("sell").Add(float64(sell))
	r.news.WithLabelValues("hold").Add(float64(hold))
}

// Noop discards all measurements.
type Noop struct{}

func (Noop) RecordTracked(int)               {}
func (Noop) RecordDispatched(string, string) {}
func (Noop) RecordError(string)              {}
func (Noop) RecordLastClose(string, float64) {}
func (Noop) RecordLatency(string, float64)   {}
func (Noop) RecordNewsItems(int, int)        {}
