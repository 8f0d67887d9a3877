package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/storage"
)

func createTestTradeRecord(tradeID, mint string, closedAt int64, win bool) *domain.TradeRecord {
	reason := domain.ExitStopLoss
	net := -0.012
	if win {
		reason = domain.ExitTakeProfit
		net = 0.2
	}
	return &domain.TradeRecord{
		TradeID:           tradeID,
		Mint:              mint,
		Name:              "Test Token",
		Symbol:            "TEST",
		EntryPrice:        0.000000031,
		ExitPrice:         0.000000062,
		EntryMarketCapUSD: 4650,
		ExitMarketCapUSD:  9300,
		PnLPercent:        100,
		NetPnLSOL:         net,
		FeesSOL:           0.0021,
		HoldSeconds:       12,
		ExitReason:        reason,
		Win:               win,
		AmountSOL:         0.2,
		TradeSequence:     1,
		VolumeSOL:         14.5,
		BuysInWindow:      9,
		LastPriceUpdate:   closedAt - 150,
		SellSignature:     "sig-" + tradeID,
		EntryTime:         closedAt - 12_000,
		ClosedAt:          closedAt,
	}
}

func TestTradeRecordStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeRecordStore(pool)

	trade := createTestTradeRecord("trade-001", "mint-a", 1_700_000_012_000, true)
	require.NoError(t, store.Insert(ctx, trade))

	retrieved, err := store.GetByID(ctx, "trade-001")
	require.NoError(t, err)

	assert.Equal(t, trade.Mint, retrieved.Mint)
	assert.Equal(t, trade.Symbol, retrieved.Symbol)
	assert.InDelta(t, trade.EntryPrice, retrieved.EntryPrice, 1e-15)
	assert.InDelta(t, trade.ExitPrice, retrieved.ExitPrice, 1e-15)
	assert.InDelta(t, trade.NetPnLSOL, retrieved.NetPnLSOL, 1e-9)
	assert.Equal(t, trade.ExitReason, retrieved.ExitReason)
	assert.True(t, retrieved.Win)
	assert.Equal(t, trade.BuysInWindow, retrieved.BuysInWindow)
	assert.Equal(t, trade.EntryTime, retrieved.EntryTime)
	assert.Equal(t, trade.ClosedAt, retrieved.ClosedAt)
	assert.Equal(t, *trade, *retrieved)
}

func TestTradeRecordStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeRecordStore(pool)

	trade := createTestTradeRecord("trade-dup", "mint-a", 1000, true)
	require.NoError(t, store.Insert(ctx, trade))

	err := store.Insert(ctx, trade)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTradeRecordStore_GetByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeRecordStore(pool)

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeRecordStore_Ordering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeRecordStore(pool)

	require.NoError(t, store.Insert(ctx, createTestTradeRecord("t3", "mint-a", 3000, false)))
	require.NoError(t, store.Insert(ctx, createTestTradeRecord("t1", "mint-a", 1000, true)))
	require.NoError(t, store.Insert(ctx, createTestTradeRecord("t2", "mint-b", 2000, true)))

	byMint, err := store.GetByMint(ctx, "mint-a")
	require.NoError(t, err)
	require.Len(t, byMint, 2)
	assert.Equal(t, "t1", byMint[0].TradeID)
	assert.Equal(t, "t3", byMint[1].TradeID)

	recent, err := store.GetRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "t3", recent[0].TradeID)
	assert.Equal(t, "t2", recent[1].TradeID)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"t1", "t2", "t3"}, []string{all[0].TradeID, all[1].TradeID, all[2].TradeID})

	_, err = store.GetRecent(ctx, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTradeRecordStore_Prune(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeRecordStore(pool)

	for i, id := range []string{"t1", "t2", "t3", "t4"} {
		require.NoError(t, store.Insert(ctx, createTestTradeRecord(id, "mint-a", int64(1000*(i+1)), true)))
	}

	removed, err := store.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "t3", all[0].TradeID)
	assert.Equal(t, "t4", all[1].TradeID)
}

func TestTradeRecordStore_EmptyResult(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeRecordStore(pool)

	trades, err := store.GetByMint(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, trades)
}
