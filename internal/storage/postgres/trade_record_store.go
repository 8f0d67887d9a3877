package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/observability"
	"pumpfun-engine/internal/storage"
)

const tradeRecordColumns = `
	trade_id, mint, name, symbol,
	entry_price, exit_price, entry_market_cap_usd, exit_market_cap_usd,
	pnl_percent, net_pnl_sol, fees_sol,
	hold_seconds, exit_reason, win,
	amount_sol, trade_sequence, volume_sol, buys_in_window,
	last_price_update, sell_signature, entry_time, closed_at`

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface checks.
var (
	_ storage.TradeRecordStore = (*TradeRecordStore)(nil)
	_ storage.LedgerPruner     = (*TradeRecordStore)(nil)
)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	if t == nil {
		return storage.ErrInvalidInput
	}
	start := time.Now()

	query := `
		INSERT INTO trade_records (` + tradeRecordColumns + `
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11,
			$12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21, $22
		)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID, t.Mint, t.Name, t.Symbol,
		t.EntryPrice, t.ExitPrice, t.EntryMarketCapUSD, t.ExitMarketCapUSD,
		t.PnLPercent, t.NetPnLSOL, t.FeesSOL,
		t.HoldSeconds, string(t.ExitReason), t.Win,
		t.AmountSOL, t.TradeSequence, t.VolumeSOL, t.BuysInWindow,
		t.LastPriceUpdate, t.SellSignature, t.EntryTime, t.ClosedAt,
	)
	observability.RecordDBQuery("postgres", "insert_trade_record", time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	query := `SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE trade_id = $1
	`

	t, err := scanTradeRecord(s.pool.QueryRow(ctx, query, tradeID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// GetByMint retrieves all trades of a mint.
func (s *TradeRecordStore) GetByMint(ctx context.Context, mint string) ([]*domain.TradeRecord, error) {
	query := `SELECT ` + tradeRecordColumns + `
		FROM trade_records
		WHERE mint = $1
		ORDER BY closed_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get trade records by mint: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// GetRecent retrieves the newest limit trades.
func (s *TradeRecordStore) GetRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `SELECT ` + tradeRecordColumns + `
		FROM trade_records
		ORDER BY closed_at DESC, trade_id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent trade records: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// GetAll retrieves all trades.
func (s *TradeRecordStore) GetAll(ctx context.Context) ([]*domain.TradeRecord, error) {
	query := `SELECT ` + tradeRecordColumns + `
		FROM trade_records
		ORDER BY closed_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all trade records: %w", err)
	}
	defer rows.Close()

	return scanTradeRecords(rows)
}

// Prune deletes all but the newest keep trades.
func (s *TradeRecordStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, storage.ErrInvalidInput
	}

	query := `
		DELETE FROM trade_records
		WHERE trade_id NOT IN (
			SELECT trade_id FROM trade_records
			ORDER BY closed_at DESC, trade_id DESC
			LIMIT $1
		)
	`

	tag, err := s.pool.Exec(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("prune trade records: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// scanTradeRecord scans a single row into a TradeRecord.
func scanTradeRecord(row pgx.Row) (*domain.TradeRecord, error) {
	var (
		t      domain.TradeRecord
		reason string
	)

	err := row.Scan(
		&t.TradeID, &t.Mint, &t.Name, &t.Symbol,
		&t.EntryPrice, &t.ExitPrice, &t.EntryMarketCapUSD, &t.ExitMarketCapUSD,
		&t.PnLPercent, &t.NetPnLSOL, &t.FeesSOL,
		&t.HoldSeconds, &reason, &t.Win,
		&t.AmountSOL, &t.TradeSequence, &t.VolumeSOL, &t.BuysInWindow,
		&t.LastPriceUpdate, &t.SellSignature, &t.EntryTime, &t.ClosedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ExitReason = domain.ExitReason(reason)

	return &t, nil
}

// scanTradeRecords scans multiple rows into a slice of TradeRecord.
func scanTradeRecords(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade record rows: %w", err)
	}

	return trades, nil
}
