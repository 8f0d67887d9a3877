package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/storage"
)

// StatsSnapshotStore implements storage.StatsSnapshotStore using PostgreSQL.
// Map fields are stored as JSONB.
type StatsSnapshotStore struct {
	pool *Pool
}

// NewStatsSnapshotStore creates a new StatsSnapshotStore.
func NewStatsSnapshotStore(pool *Pool) *StatsSnapshotStore {
	return &StatsSnapshotStore{pool: pool}
}

var _ storage.StatsSnapshotStore = (*StatsSnapshotStore)(nil)

// Save appends a snapshot.
func (s *StatsSnapshotStore) Save(ctx context.Context, snap *domain.StatsSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	filterStats, err := marshalMap(snap.FilterStats)
	if err != nil {
		return fmt.Errorf("encode filter stats: %w", err)
	}
	tradeCounts, err := marshalMap(snap.TokenTradeCounts)
	if err != nil {
		return fmt.Errorf("encode token trade counts: %w", err)
	}
	lastTrade, err := marshalMap(snap.LastTradeTime)
	if err != nil {
		return fmt.Errorf("encode last trade time: %w", err)
	}

	query := `
		INSERT INTO stats_snapshots (
			total_txs, failed_txs, program_txs, buy_txs, filter_stats,
			open_positions, trades_total, wins, losses, total_pnl_sol,
			token_trade_counts, last_trade_time, sol_price_usd,
			cooldown_active, cooldown_start, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16
		)
	`

	_, err = s.pool.Exec(ctx, query,
		snap.TotalTxs, snap.FailedTxs, snap.ProgramTxs, snap.BuyTxs, filterStats,
		snap.OpenPositions, snap.TradesTotal, snap.Wins, snap.Losses, snap.TotalPnLSOL,
		tradeCounts, lastTrade, snap.SolPriceUSD,
		snap.CooldownActive, snap.CooldownStart, snap.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert stats snapshot: %w", err)
	}
	return nil
}

// Latest returns the newest snapshot. Returns ErrNotFound when empty.
func (s *StatsSnapshotStore) Latest(ctx context.Context) (*domain.StatsSnapshot, error) {
	query := `
		SELECT
			total_txs, failed_txs, program_txs, buy_txs, filter_stats,
			open_positions, trades_total, wins, losses, total_pnl_sol,
			token_trade_counts, last_trade_time, sol_price_usd,
			cooldown_active, cooldown_start, updated_at
		FROM stats_snapshots
		ORDER BY updated_at DESC, id DESC
		LIMIT 1
	`

	var (
		snap                               domain.StatsSnapshot
		filterStats, tradeCounts, lastTrade []byte
	)
	err := s.pool.QueryRow(ctx, query).Scan(
		&snap.TotalTxs, &snap.FailedTxs, &snap.ProgramTxs, &snap.BuyTxs, &filterStats,
		&snap.OpenPositions, &snap.TradesTotal, &snap.Wins, &snap.Losses, &snap.TotalPnLSOL,
		&tradeCounts, &lastTrade, &snap.SolPriceUSD,
		&snap.CooldownActive, &snap.CooldownStart, &snap.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest stats snapshot: %w", err)
	}

	if err := json.Unmarshal(filterStats, &snap.FilterStats); err != nil {
		return nil, fmt.Errorf("decode filter stats: %w", err)
	}
	if err := json.Unmarshal(tradeCounts, &snap.TokenTradeCounts); err != nil {
		return nil, fmt.Errorf("decode token trade counts: %w", err)
	}
	if err := json.Unmarshal(lastTrade, &snap.LastTradeTime); err != nil {
		return nil, fmt.Errorf("decode last trade time: %w", err)
	}
	return &snap, nil
}

// marshalMap encodes m as a JSON object, writing {} for nil.
func marshalMap[V any](m map[string]V) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
