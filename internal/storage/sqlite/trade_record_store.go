package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/storage"
)

const tradeRecordColumns = `
	trade_id, mint, name, symbol,
	entry_price, exit_price, entry_market_cap_usd, exit_market_cap_usd,
	pnl_percent, net_pnl_sol, fees_sol,
	hold_seconds, exit_reason, win,
	amount_sol, trade_sequence, volume_sol, buys_in_window,
	last_price_update, sell_signature, entry_time, closed_at`

// TradeRecordStore implements storage.TradeRecordStore on SQLite.
type TradeRecordStore struct {
	db *sql.DB
}

// NewTradeRecordStore creates a TradeRecordStore over an opened database.
func NewTradeRecordStore(db *sql.DB) *TradeRecordStore {
	return &TradeRecordStore{db: db}
}

var (
	_ storage.TradeRecordStore = (*TradeRecordStore)(nil)
	_ storage.LedgerPruner     = (*TradeRecordStore)(nil)
)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	if t == nil {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO trade_records (` + tradeRecordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		t.TradeID, t.Mint, t.Name, t.Symbol,
		t.EntryPrice, t.ExitPrice, t.EntryMarketCapUSD, t.ExitMarketCapUSD,
		t.PnLPercent, t.NetPnLSOL, t.FeesSOL,
		t.HoldSeconds, string(t.ExitReason), t.Win,
		t.AmountSOL, t.TradeSequence, t.VolumeSOL, t.BuysInWindow,
		t.LastPriceUpdate, t.SellSignature, t.EntryTime, t.ClosedAt,
	)
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
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tradeRecordColumns+` FROM trade_records WHERE trade_id = ?`, tradeID)

	t, err := scanTradeRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record by id: %w", err)
	}
	return t, nil
}

// GetByMint retrieves all trades of a mint, oldest first.
func (s *TradeRecordStore) GetByMint(ctx context.Context, mint string) ([]*domain.TradeRecord, error) {
	return s.query(ctx, "get trade records by mint",
		`SELECT `+tradeRecordColumns+` FROM trade_records
		WHERE mint = ? ORDER BY closed_at ASC, trade_id ASC`, mint)
}

// GetRecent retrieves the newest limit trades, newest first.
func (s *TradeRecordStore) GetRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}
	return s.query(ctx, "get recent trade records",
		`SELECT `+tradeRecordColumns+` FROM trade_records
		ORDER BY closed_at DESC, trade_id DESC LIMIT ?`, limit)
}

// GetAll retrieves every trade, oldest first.
func (s *TradeRecordStore) GetAll(ctx context.Context) ([]*domain.TradeRecord, error) {
	return s.query(ctx, "get all trade records",
		`SELECT `+tradeRecordColumns+` FROM trade_records
		ORDER BY closed_at ASC, trade_id ASC`)
}

// Prune deletes all but the newest keep trades.
func (s *TradeRecordStore) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, storage.ErrInvalidInput
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM trade_records
		WHERE trade_id NOT IN (
			SELECT trade_id FROM trade_records
			ORDER BY closed_at DESC, trade_id DESC
			LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune trade records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune trade records: %w", err)
	}
	return int(n), nil
}

func (s *TradeRecordStore) query(ctx context.Context, op, query string, args ...any) ([]*domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var trades []*domain.TradeRecord
	for rows.Next() {
		t, err := scanTradeRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return trades, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTradeRecord(row scanner) (*domain.TradeRecord, error) {
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

// isDuplicateKeyError matches SQLite primary key and unique violations.
func isDuplicateKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
