package memory

import (
	"context"
	"sort"
	"sync"

	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/storage"
)

// TradeRecordStore is an in-memory implementation of storage.TradeRecordStore.
type TradeRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeRecord // keyed by trade_id
}

// NewTradeRecordStore creates a new in-memory trade record store.
func NewTradeRecordStore() *TradeRecordStore {
	return &TradeRecordStore{
		data: make(map[string]*domain.TradeRecord),
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(_ context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	tradeCopy := *t
	s.data[t.TradeID] = &tradeCopy
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(_ context.Context, tradeID string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	tradeCopy := *t
	return &tradeCopy, nil
}

// GetByMint retrieves all trades of a mint, ordered by closed_at ASC.
func (s *TradeRecordStore) GetByMint(_ context.Context, mint string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, t := range s.data {
		if t.Mint == mint {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}
	sortByClose(result)
	return result, nil
}

// GetRecent retrieves the newest limit trades, ordered by closed_at DESC.
func (s *TradeRecordStore) GetRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}
	all, _ := s.GetAll(ctx)
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// GetAll retrieves every trade, ordered by closed_at ASC.
func (s *TradeRecordStore) GetAll(_ context.Context) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeRecord, 0, len(s.data))
	for _, t := range s.data {
		tradeCopy := *t
		result = append(result, &tradeCopy)
	}
	sortByClose(result)
	return result, nil
}

// Prune deletes all but the newest keep trades.
func (s *TradeRecordStore) Prune(_ context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.data) <= keep {
		return 0, nil
	}
	all := make([]*domain.TradeRecord, 0, len(s.data))
	for _, t := range s.data {
		all = append(all, t)
	}
	sortByClose(all)

	removed := len(all) - keep
	for _, t := range all[:removed] {
		delete(s.data, t.TradeID)
	}
	return removed, nil
}

// sortByClose orders trades by closed_at, then trade_id for stability.
func sortByClose(trades []*domain.TradeRecord) {
	sort.Slice(trades, func(i, j int) bool {
		if trades[i].ClosedAt != trades[j].ClosedAt {
			return trades[i].ClosedAt < trades[j].ClosedAt
		}
		return trades[i].TradeID < trades[j].TradeID
	})
}

var (
	_ storage.TradeRecordStore = (*TradeRecordStore)(nil)
	_ storage.LedgerPruner     = (*TradeRecordStore)(nil)
)
