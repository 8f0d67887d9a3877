package memory

import (
	"context"
	"sort"
	"sync"

	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/storage"
)

// PriceTickStore is an in-memory implementation of storage.PriceTickStore.
type PriceTickStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PriceTick // keyed by tick_id
}

// NewPriceTickStore creates a new in-memory price tick store.
func NewPriceTickStore() *PriceTickStore {
	return &PriceTickStore{
		data: make(map[string]*domain.PriceTick),
	}
}

// InsertBulk adds multiple ticks. A tick_id already present is overwritten,
// matching the ReplacingMergeTree semantics of the ClickHouse store.
func (s *PriceTickStore) InsertBulk(_ context.Context, ticks []*domain.PriceTick) error {
	if len(ticks) == 0 {
		return nil
	}
	for _, t := range ticks {
		if t == nil || t.TickID == "" || t.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range ticks {
		tickCopy := *t
		s.data[t.TickID] = &tickCopy
	}
	return nil
}

// GetByTimeRange retrieves ticks of a mint within [start, end] (inclusive).
func (s *PriceTickStore) GetByTimeRange(_ context.Context, mint string, start, end int64) ([]*domain.PriceTick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceTick
	for _, t := range s.data {
		if t.Mint == mint && t.TimestampMs >= start && t.TimestampMs <= end {
			tickCopy := *t
			result = append(result, &tickCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TimestampMs != result[j].TimestampMs {
			return result[i].TimestampMs < result[j].TimestampMs
		}
		return result[i].Source < result[j].Source
	})
	return result, nil
}

// Len returns the number of stored ticks.
func (s *PriceTickStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ storage.PriceTickStore = (*PriceTickStore)(nil)
