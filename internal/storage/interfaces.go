package storage

import (
	"context"

	"pumpfun-engine/internal/domain"
)

// TradeRecordStore provides access to the trade_records ledger.
type TradeRecordStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByMint retrieves all trades of a mint, ordered by closed_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.TradeRecord, error)

	// GetRecent retrieves the newest limit trades, ordered by closed_at DESC.
	GetRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error)

	// GetAll retrieves every trade, ordered by closed_at ASC.
	GetAll(ctx context.Context) ([]*domain.TradeRecord, error)
}

// LedgerPruner applies ledger retention.
type LedgerPruner interface {
	// Prune deletes all but the newest keep trades and returns how many
	// were removed.
	Prune(ctx context.Context, keep int) (int, error)
}

// StatsSnapshotStore provides access to stats_snapshots storage.
type StatsSnapshotStore interface {
	// Save appends a snapshot. Returns ErrInvalidInput for nil.
	Save(ctx context.Context, s *domain.StatsSnapshot) error

	// Latest returns the newest snapshot. Returns ErrNotFound when empty.
	Latest(ctx context.Context) (*domain.StatsSnapshot, error)
}

// PriceTickStore provides access to price_ticks storage.
type PriceTickStore interface {
	// InsertBulk adds multiple ticks. Ticks are keyed by tick_id; replays
	// of the same tick collapse.
	InsertBulk(ctx context.Context, ticks []*domain.PriceTick) error

	// GetByTimeRange retrieves ticks of a mint within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.PriceTick, error)
}

// SnapshotPublisher pushes live snapshots to downstream consumers.
type SnapshotPublisher interface {
	PublishPositions(ctx context.Context, positions []domain.PositionSnapshot) error
	PublishStats(ctx context.Context, stats *domain.StatsSnapshot) error
}
