package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"StockWatch/internal/domain/models"
	"StockWatch/internal/domain/repository"
)

// MemoryHistoryStore keeps histories in process memory. Nothing survives a restart.
type MemoryHistoryStore struct {
	mu   sync.RWMutex
	data map[string][]models.PricePoint
	opts storeOptions
}

func NewMemoryHistoryStore(opts ...StoreOption) *MemoryHistoryStore {
	return &MemoryHistoryStore{
		data: make(map[string][]models.PricePoint),
		opts: newStoreOptions(opts),
	}
}

func (s *MemoryHistoryStore) Get(_ context.Context, ticker string) ([]models.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.data[ticker]
	if !ok {
		return nil, fmt.Errorf("history %s: %w", ticker, models.ErrNotFound)
	}
	out := make([]models.PricePoint, len(h))
	copy(out, h)
	return out, nil
}

func (s *MemoryHistoryStore) Append(ctx context.Context, ticker string, p models.PricePoint) error {
	return s.AppendBatch(ctx, ticker, []models.PricePoint{p})
}

func (s *MemoryHistoryStore) AppendBatch(_ context.Context, ticker string, points []models.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[ticker] = trimHistory(mergePoints(s.data[ticker], points...), s.opts.maxPoints)
	return nil
}

func (s *MemoryHistoryStore) Remove(_ context.Context, ticker string) error {
	s.mu.Lock()
	delete(s.data, ticker)
	s.mu.Unlock()
	return nil
}

func (s *MemoryHistoryStore) Tickers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	out := make([]string, 0, len(s.data))
	for t := range s.data {
		out = append(out, t)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

func (s *MemoryHistoryStore) Close() error { return nil }

var _ repository.HistoryStore = (*MemoryHistoryStore)(nil)
