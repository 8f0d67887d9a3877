package memory

import (
	"context"
	"sync"

	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/storage"
)

// SnapshotPublisher keeps the last published snapshots in memory.
type SnapshotPublisher struct {
	mu        sync.RWMutex
	positions []domain.PositionSnapshot
	stats     *domain.StatsSnapshot
	published int
}

// NewSnapshotPublisher creates an empty publisher.
func NewSnapshotPublisher() *SnapshotPublisher {
	return &SnapshotPublisher{}
}

// PublishPositions replaces the open-position snapshot.
func (p *SnapshotPublisher) PublishPositions(_ context.Context, positions []domain.PositionSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positions = append([]domain.PositionSnapshot(nil), positions...)
	p.published++
	return nil
}

// PublishStats replaces the stats snapshot.
func (p *SnapshotPublisher) PublishStats(_ context.Context, stats *domain.StatsSnapshot) error {
	if stats == nil {
		return storage.ErrInvalidInput
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = cloneStats(stats)
	return nil
}

// Positions returns the last published positions.
func (p *SnapshotPublisher) Positions() []domain.PositionSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]domain.PositionSnapshot(nil), p.positions...)
}

// Stats returns the last published stats, or nil.
func (p *SnapshotPublisher) Stats() *domain.StatsSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stats == nil {
		return nil
	}
	return cloneStats(p.stats)
}

// Published returns how many position snapshots were published.
func (p *SnapshotPublisher) Published() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.published
}

var _ storage.SnapshotPublisher = (*SnapshotPublisher)(nil)
