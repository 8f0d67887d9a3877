package signal

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpfun-engine/internal/config"
	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/ingestion"
)

type fakeOwnership struct {
	frac float64
	err  error
}

func (f fakeOwnership) Fraction(context.Context, string, string, uint64) (float64, error) {
	return f.frac, f.err
}

type fakeLiquidity struct {
	locked bool
	err    error
}

func (f fakeLiquidity) Locked(context.Context, string) (bool, error) { return f.locked, f.err }

type fakeListing struct {
	paid  bool
	err   error
	calls atomic.Int32
}

func (f *fakeListing) IsPaid(ctx context.Context, _ string) (bool, error) {
	f.calls.Add(1)
	return f.paid, f.err
}

// qualifying is a snapshot that passes every local check under config.Example.
func qualifying() ingestion.Snapshot {
	ts := domain.TokenState{
		Mint:         "mint",
		Creator:      "creator",
		Price:        1.1e-7,
		LastPrice:    1e-7,
		MarketCapSOL: 50,
		TotalSupply:  1_000_000_000_000_000,
	}
	for i := 0; i < 3; i++ {
		ts.RecordBuy(0.2, int64(i))
	}
	return ingestion.Snapshot{Token: ts, VolumeSpike: 120, CurrentVolumeUSD: 90}
}

func TestEvaluateLocal(t *testing.T) {
	cfg := config.Example()

	tests := []struct {
		name   string
		mutate func(s *ingestion.Snapshot)
		failed Check
	}{
		{"pass", func(*ingestion.Snapshot) {}, ""},
		{"mc below", func(s *ingestion.Snapshot) { s.Token.MarketCapSOL = 27.9 }, CheckMarketCap},
		{"mc above", func(s *ingestion.Snapshot) { s.Token.MarketCapSOL = 400.1 }, CheckMarketCap},
		{"mc at bound", func(s *ingestion.Snapshot) { s.Token.MarketCapSOL = 28 }, ""},
		{"no history", func(s *ingestion.Snapshot) { s.Token.LastPrice = 0 }, CheckPump},
		{"pump small", func(s *ingestion.Snapshot) { s.Token.Price = 1.04e-7 }, CheckPump},
		{"few buys", func(s *ingestion.Snapshot) { s.Token.Buys = s.Token.Buys[:2] }, CheckBuys},
		{"spike low", func(s *ingestion.Snapshot) { s.VolumeSpike = 9.9 }, CheckVolume},
		{"volume low", func(s *ingestion.Snapshot) { s.CurrentVolumeUSD = 1.4 }, CheckVolume},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := qualifying()
			tt.mutate(&snap)
			d := EvaluateLocal(snap, cfg)
			assert.Equal(t, tt.failed == "", d.Pass)
			assert.Equal(t, tt.failed, d.Failed)
		})
	}
}

func TestEvaluateLocal_ShortCircuits(t *testing.T) {
	snap := qualifying()
	snap.Token.MarketCapSOL = 1
	d := EvaluateLocal(snap, config.Example())
	require.Len(t, d.Results, 1)
	last, ok := d.Last()
	require.True(t, ok)
	assert.Equal(t, CheckMarketCap, last.Check)
}

func TestFilter_Evaluate(t *testing.T) {
	cfg := config.Example()
	boom := errors.New("oracle down")

	tests := []struct {
		name      string
		ownership fakeOwnership
		liquidity fakeLiquidity
		listing   *fakeListing
		failed    Check
	}{
		{"pass", fakeOwnership{frac: 0.2}, fakeLiquidity{locked: true}, &fakeListing{paid: true}, ""},
		{"creator heavy", fakeOwnership{frac: 0.21}, fakeLiquidity{locked: true}, &fakeListing{paid: true}, CheckOwnership},
		{"ownership error", fakeOwnership{err: boom}, fakeLiquidity{locked: true}, &fakeListing{paid: true}, CheckOwnership},
		{"unlocked", fakeOwnership{}, fakeLiquidity{locked: false}, &fakeListing{paid: true}, CheckLiquidity},
		{"liquidity error", fakeOwnership{}, fakeLiquidity{err: boom}, &fakeListing{paid: true}, CheckLiquidity},
		{"not paid", fakeOwnership{}, fakeLiquidity{locked: true}, &fakeListing{}, CheckDexPaid},
		{"listing error", fakeOwnership{}, fakeLiquidity{locked: true}, &fakeListing{paid: true, err: boom}, CheckDexPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := NewStats()
			f := NewFilter(FilterOptions{Ownership: tt.ownership, Liquidity: tt.liquidity, Listing: tt.listing, Stats: stats})

			d := f.Evaluate(context.Background(), qualifying(), cfg)
			assert.Equal(t, tt.failed == "", d.Pass)
			assert.Equal(t, tt.failed, d.Failed)
			assert.Equal(t, int32(1), tt.listing.calls.Load(), "listing lookup starts with the other oracles")
			if tt.failed != "" {
				assert.Equal(t, int64(1), stats.Snapshot()[string(tt.failed)])
			}
		})
	}
}

func TestFilter_ListingDisabled(t *testing.T) {
	cfg := *config.Example()
	cfg.UseDexScreenerFilter = false
	listing := &fakeListing{}
	f := NewFilter(FilterOptions{Ownership: fakeOwnership{}, Liquidity: fakeLiquidity{locked: true}, Listing: listing})

	d := f.Evaluate(context.Background(), qualifying(), &cfg)
	assert.True(t, d.Pass)
	assert.Zero(t, listing.calls.Load())
}

func TestStats_SnapshotHasEveryCheck(t *testing.T) {
	s := NewStats()
	s.Reject(CheckPump)
	s.Reject(CheckPump)
	s.Reject(CheckCooldown)

	snap := s.Snapshot()
	assert.Len(t, snap, len(Checks))
	assert.Equal(t, int64(2), snap["pump"])
	assert.Equal(t, []string{"pump", "cooldown"}, Names(snap)[:2])
}
