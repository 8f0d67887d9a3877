package domain

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpfun-engine/internal/pumpfun"
)

func TestTokenState_Windows(t *testing.T) {
	var ts TokenState
	now := int64(100_000)

	ts.RecordBuy(0.05, now-61_000) // too small for buys, expires from volume
	ts.RecordBuy(0.2, now-30_000)  // exactly at the buys boundary
	ts.RecordBuy(0.6, now-10_000)  // too large for buys
	ts.RecordBuy(0.5, now)

	ts.PruneWindows(now)

	require.Len(t, ts.Buys, 2)
	assert.Equal(t, now-30_000, ts.Buys[0].Timestamp)
	require.Len(t, ts.Volume, 3)
	assert.InDelta(t, 1.3, ts.VolumeSOL(), 1e-9)

	ts.PruneWindows(now + 1)
	assert.Len(t, ts.Buys, 1)
}

func TestTokenState_ApplyCurveShiftsPrice(t *testing.T) {
	ts := TokenState{Price: 1e-8}
	creator := pumpfun.MustPublicKey("9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM")
	curve := pumpfun.CurveState{
		VirtualSolReserves:   30_000_000_000,
		VirtualTokenReserves: 1_073_000_000_000_000,
		TokenTotalSupply:     1_000_000_000_000_000,
		Creator:              creator,
		HasCreator:           true,
	}

	ts.ApplyCurve(curve, 5)

	assert.Equal(t, 1e-8, ts.LastPrice)
	assert.InDelta(t, 2.7958e-8, ts.Price, 1e-15)
	assert.InDelta(t, 179.58, ts.PumpPercent(), 1e-6)
	assert.Equal(t, creator.String(), ts.Creator)
	assert.Equal(t, int64(5), ts.UpdatedAt)

	back := ts.Curve()
	assert.Equal(t, curve.VirtualSolReserves, back.VirtualSolReserves)
	assert.True(t, back.HasCreator)
}

func TestTokenState_CloneIsIndependent(t *testing.T) {
	ts := TokenState{}
	ts.RecordBuy(0.2, 1)
	c := ts.Clone()
	ts.Buys[0].AmountSOL = 9
	assert.Equal(t, 0.2, c.Buys[0].AmountSOL)
}

func TestPosition_StatusTransitions(t *testing.T) {
	p := NewPosition("mint", 0.2, 1, 10)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, PositionPending, p.Status())
	assert.False(t, p.TryBeginClose(), "pending positions cannot close")

	require.True(t, p.Open(EntryFill{Price: 1e-7, Time: 20}))
	assert.Equal(t, PositionOpen, p.Status())
	assert.InDelta(t, 0.03, p.ProfitLoss(1.03e-7), 1e-9)

	require.True(t, p.TryBeginClose())
	assert.False(t, p.TryBeginClose())
	require.True(t, p.AbortClose())
	assert.Equal(t, PositionOpen, p.Status())

	require.True(t, p.TryBeginClose())
	require.True(t, p.MarkClosed())
	assert.Equal(t, "CLOSED", p.Status().String())
}

func TestPosition_TryBeginCloseSingleWinner(t *testing.T) {
	p := NewPosition("mint", 0.2, 1, 0)
	p.Open(EntryFill{Price: 1})

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if p.TryBeginClose() {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), winners.Load())
}
