package repository

import (
	"sort"

	"StockWatch/internal/domain/models"
	applogger "StockWatch/pkg/logger"
)

// StoreOption configures a HistoryStore backend.
type StoreOption func(*storeOptions)

type storeOptions struct {
	maxPoints int
	logger    *applogger.Logger
}

// WithMaxPoints keeps only the most recent n points per ticker. n <= 0 keeps everything.
func WithMaxPoints(n int) StoreOption {
	return func(o *storeOptions) {
		if n > 0 {
			o.maxPoints = n
		}
	}
}

// WithStoreLogger sets the logger used by the backend.
func WithStoreLogger(l *applogger.Logger) StoreOption {
	return func(o *storeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

func newStoreOptions(opts []StoreOption) storeOptions {
	o := storeOptions{logger: applogger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// mergePoints returns a new ascending slice containing existing with incoming
// applied. A point on an existing date replaces that date's close.
func mergePoints(existing []models.PricePoint, incoming ...models.PricePoint) []models.PricePoint {
	out := make([]models.PricePoint, len(existing), len(existing)+len(incoming))
	copy(out, existing)
	for _, p := range incoming {
		p = models.NewPricePoint(p.Date, p.Close)
		i := sort.Search(len(out), func(i int) bool { return !out[i].Date.Before(p.Date) })
		if i < len(out) && out[i].Date.Equal(p.Date) {
			out[i] = p
			continue
		}
		out = append(out, models.PricePoint{})
		copy(out[i+1:], out[i:])
		out[i] = p
	}
	return out
}

// trimHistory drops the oldest points beyond max.
func trimHistory(points []models.PricePoint, max int) []models.PricePoint {
	if max <= 0 || len(points) <= max {
		return points
	}
	return points[len(points)-max:]
}

func sortPoints(points []models.PricePoint) {
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
}
