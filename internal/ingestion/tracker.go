package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pumpfun-engine/internal/curve"
	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/pumpfun"
)

var (
	// ErrPositionHeld means the mint has a position; only windows were updated.
	ErrPositionHeld = errors.New("position held for mint")
	// ErrCurveUnavailable means the authoritative curve could not be read.
	ErrCurveUnavailable = errors.New("curve state unavailable")
)

// TokenStore is the engine's per-mint state registry.
type TokenStore interface {
	HasPosition(mint string) bool
	UpdateToken(mint string, fn func(*domain.TokenState)) domain.TokenState
}

// CurveSource loads curve and metadata accounts.
type CurveSource interface {
	Fetch(ctx context.Context, mint pumpfun.PublicKey) (curve.Account, error)
}

// PriceSource yields the SOL/USD price.
type PriceSource interface {
	Price() float64
}

// Snapshot is the immutable view handed to the signal filter.
type Snapshot struct {
	Token            domain.TokenState
	Event            BuyEvent
	CurrentVolumeUSD float64
	VolumeSpike      float64 // percent of the previous snapshot's volume
	SolPriceUSD      float64
}

// Tracker applies buy events to token state.
type Tracker struct {
	store  TokenStore
	curves CurveSource
	sol    PriceSource
	now    func() time.Time
}

// NewTracker creates a tracker.
func NewTracker(store TokenStore, curves CurveSource, sol PriceSource) *Tracker {
	return &Tracker{store: store, curves: curves, sol: sol, now: time.Now}
}

// Apply records ev. Mints with a position only get window entries and
// ErrPositionHeld. Other mints get a fresh curve read; a failed read drops
// the event with ErrCurveUnavailable.
func (t *Tracker) Apply(ctx context.Context, ev BuyEvent) (Snapshot, error) {
	now := t.now().UnixMilli()

	if t.store.HasPosition(ev.Mint) {
		t.recordOnly(ev, now)
		return Snapshot{}, ErrPositionHeld
	}

	mint, err := pumpfun.ParsePublicKey(ev.Mint)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCurveUnavailable, err)
	}
	acc, err := t.curves.Fetch(ctx, mint)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCurveUnavailable, err)
	}

	solPrice := t.sol.Price()
	snap := Snapshot{Event: ev, SolPriceUSD: solPrice}
	held := false

	state := t.store.UpdateToken(ev.Mint, func(ts *domain.TokenState) {
		// A position may have opened while the curve was in flight.
		if t.store.HasPosition(ev.Mint) {
			held = true
			ts.RecordBuy(ev.AmountSOL, now)
			ts.PruneWindows(now)
			return
		}
		ts.Mint = ev.Mint
		if acc.HasMetadata {
			ts.Name = acc.Metadata.Name
			ts.Symbol = acc.Metadata.Symbol
		}
		ts.BondingCurve = acc.BondingCurve.String()
		ts.AssociatedBondingCurve = pumpfun.AssociatedTokenAddress(acc.BondingCurve, mint).String()
		ts.ApplyCurve(acc.State, now)

		ts.RecordBuy(ev.AmountSOL, now)
		ts.PruneWindows(now)

		current := ts.VolumeSOL() * solPrice
		if ts.LastVolume > 0 {
			snap.VolumeSpike = current / ts.LastVolume * 100
		}
		ts.LastVolume = current
		snap.CurrentVolumeUSD = current
	})
	if held {
		return Snapshot{}, ErrPositionHeld
	}
	snap.Token = state
	return snap, nil
}

func (t *Tracker) recordOnly(ev BuyEvent, now int64) {
	t.store.UpdateToken(ev.Mint, func(ts *domain.TokenState) {
		ts.Mint = ev.Mint
		ts.RecordBuy(ev.AmountSOL, now)
		ts.PruneWindows(now)
	})
}
