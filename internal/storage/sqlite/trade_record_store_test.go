package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/storage"
)

func newTestStore(t *testing.T) *TradeRecordStore {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTradeRecordStore(db)
}

func trade(id, mint string, closedAt int64, win bool) *domain.TradeRecord {
	reason := domain.ExitLossProtection
	if win {
		reason = domain.ExitMomentumFaded
	}
	return &domain.TradeRecord{
		TradeID:           id,
		Mint:              mint,
		Name:              "Doge Two",
		Symbol:            "DOGE2",
		EntryPrice:        0.00000003,
		ExitPrice:         0.000000036,
		EntryMarketCapUSD: 4500,
		ExitMarketCapUSD:  5400,
		PnLPercent:        20,
		NetPnLSOL:         0.04,
		FeesSOL:           0.002,
		HoldSeconds:       7,
		ExitReason:        reason,
		Win:               win,
		AmountSOL:         0.2,
		TradeSequence:     2,
		VolumeSOL:         11.25,
		BuysInWindow:      6,
		LastPriceUpdate:   closedAt - 300,
		SellSignature:     "sig-" + id,
		EntryTime:         closedAt - 7000,
		ClosedAt:          closedAt,
	}
}

func TestTradeRecordStore_InsertAndGetByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := trade("t1", "mint-a", 10_000, true)
	require.NoError(t, store.Insert(ctx, want))

	got, err := store.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = store.GetByID(ctx, "t2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeRecordStore_InsertDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, trade("t1", "mint-a", 1000, true)))
	assert.ErrorIs(t, store.Insert(ctx, trade("t1", "mint-a", 1000, true)), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
}

func TestTradeRecordStore_Ordering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, trade("t3", "mint-a", 3000, false)))
	require.NoError(t, store.Insert(ctx, trade("t1", "mint-a", 1000, true)))
	require.NoError(t, store.Insert(ctx, trade("t2", "mint-b", 2000, true)))

	byMint, err := store.GetByMint(ctx, "mint-a")
	require.NoError(t, err)
	require.Len(t, byMint, 2)
	assert.Equal(t, "t1", byMint[0].TradeID)
	assert.False(t, byMint[1].Win)

	recent, err := store.GetRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "t3", recent[0].TradeID)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "t2", all[1].TradeID)

	_, err = store.GetRecent(ctx, -1)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestTradeRecordStore_Prune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"t1", "t2", "t3"} {
		require.NoError(t, store.Insert(ctx, trade(id, "mint-a", int64(i+1)*1000, true)))
	}

	removed, err := store.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "t3", all[0].TradeID)

	removed, err = store.Prune(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, NewTradeRecordStore(db).Insert(ctx, trade("t1", "mint-a", 1000, true)))
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	all, err := NewTradeRecordStore(db).GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
