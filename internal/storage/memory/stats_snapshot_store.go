package memory

import (
	"context"
	"maps"
	"sync"

	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/storage"
)

// StatsSnapshotStore is an in-memory implementation of storage.StatsSnapshotStore.
type StatsSnapshotStore struct {
	mu        sync.RWMutex
	snapshots []*domain.StatsSnapshot
}

// NewStatsSnapshotStore creates a new in-memory stats snapshot store.
func NewStatsSnapshotStore() *StatsSnapshotStore {
	return &StatsSnapshotStore{}
}

// Save appends a snapshot.
func (s *StatsSnapshotStore) Save(_ context.Context, snap *domain.StatsSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, cloneStats(snap))
	return nil
}

// Latest returns the newest snapshot.
func (s *StatsSnapshotStore) Latest(_ context.Context) (*domain.StatsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.snapshots) == 0 {
		return nil, storage.ErrNotFound
	}
	return cloneStats(s.snapshots[len(s.snapshots)-1]), nil
}

// Len returns the number of saved snapshots.
func (s *StatsSnapshotStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

func cloneStats(snap *domain.StatsSnapshot) *domain.StatsSnapshot {
	c := *snap
	c.FilterStats = maps.Clone(snap.FilterStats)
	c.TokenTradeCounts = maps.Clone(snap.TokenTradeCounts)
	c.LastTradeTime = maps.Clone(snap.LastTradeTime)
	return &c
}

var _ storage.StatsSnapshotStore = (*StatsSnapshotStore)(nil)
