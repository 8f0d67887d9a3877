package clickhouse

import (
	"context"
	"fmt"
	"time"

	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/observability"
	"pumpfun-engine/internal/storage"
)

// PriceTickStore implements storage.PriceTickStore using ClickHouse.
// The table is a ReplacingMergeTree keyed on tick_id, so replayed ticks
// collapse at merge time and reads use FINAL.
type PriceTickStore struct {
	conn *Conn
}

// NewPriceTickStore creates a new PriceTickStore.
func NewPriceTickStore(conn *Conn) *PriceTickStore {
	return &PriceTickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceTickStore = (*PriceTickStore)(nil)

// InsertBulk adds multiple ticks in one batch.
func (s *PriceTickStore) InsertBulk(ctx context.Context, ticks []*domain.PriceTick) (err error) {
	if len(ticks) == 0 {
		return nil
	}
	for _, t := range ticks {
		if t == nil || t.TickID == "" || t.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	start := time.Now()
	defer func() {
		observability.RecordDBQuery("clickhouse", "insert_price_ticks", time.Since(start).Seconds(), err)
	}()

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_ticks (
			tick_id, mint, source, timestamp_ms, price, market_cap_sol,
			virtual_sol_reserves, virtual_token_reserves
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range ticks {
		err = batch.Append(
			t.TickID, t.Mint, t.Source, uint64(t.TimestampMs), t.Price, t.MarketCapSOL,
			t.VirtualSolReserves, t.VirtualTokenReserves,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves ticks of a mint within [start, end] (inclusive).
func (s *PriceTickStore) GetByTimeRange(ctx context.Context, mint string, start, end int64) ([]*domain.PriceTick, error) {
	query := `
		SELECT tick_id, mint, source, timestamp_ms, price, market_cap_sol,
			virtual_sol_reserves, virtual_token_reserves
		FROM price_ticks FINAL
		WHERE mint = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC, source ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanPriceTicks(rows)
}

func scanPriceTicks(rows chRows) ([]*domain.PriceTick, error) {
	var ticks []*domain.PriceTick

	for rows.Next() {
		var t domain.PriceTick
		var timestampMs uint64

		err := rows.Scan(
			&t.TickID, &t.Mint, &t.Source, &timestampMs, &t.Price, &t.MarketCapSOL,
			&t.VirtualSolReserves, &t.VirtualTokenReserves,
		)
		if err != nil {
			return nil, fmt.Errorf("scan price tick row: %w", err)
		}

		t.TimestampMs = int64(timestampMs)
		ticks = append(ticks, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price tick rows: %w", err)
	}
	return ticks, nil
}
