package domain

import "pumpfun-engine/internal/pumpfun"

// Rolling window retention and qualifying-buy bounds.
const (
	BuysWindowMs   int64 = 30_000
	VolumeWindowMs int64 = 60_000

	QualifyingBuyMinSOL = 0.1
	QualifyingBuyMaxSOL = 0.5
)

// WindowEntry is one timestamped amount in a rolling window.
type WindowEntry struct {
	Timestamp int64   // Unix ms
	AmountSOL float64 // SOL spent by the buyer
}

// TokenState is the tracked state of one bonding-curve token.
// Timestamps are Unix milliseconds.
type TokenState struct {
	Mint   string
	Name   string
	Symbol string

	Price        float64 // SOL per token, from the curve account
	LastPrice    float64 // previous Price
	MarketCapSOL float64
	LastVolume   float64 // USD volume of the previous snapshot

	Buys   []WindowEntry // qualifying buys, 30s
	Volume []WindowEntry // all buys, 60s

	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64
	TotalSupply          uint64
	Complete             bool

	Creator                string
	BondingCurve           string
	AssociatedBondingCurve string

	UpdatedAt int64
}

// Clone returns a deep copy safe to hand to another goroutine.
func (t *TokenState) Clone() TokenState {
	c := *t
	c.Buys = append([]WindowEntry(nil), t.Buys...)
	c.Volume = append([]WindowEntry(nil), t.Volume...)
	return c
}

// RecordBuy appends a buy to the volume window, and to the buys window when
// the amount is inside the qualifying band.
func (t *TokenState) RecordBuy(amountSOL float64, now int64) {
	if amountSOL >= QualifyingBuyMinSOL && amountSOL <= QualifyingBuyMaxSOL {
		t.Buys = append(t.Buys, WindowEntry{Timestamp: now, AmountSOL: amountSOL})
	}
	t.Volume = append(t.Volume, WindowEntry{Timestamp: now, AmountSOL: amountSOL})
}

// PruneWindows drops entries older than their window. An entry exactly at
// the window boundary is kept.
func (t *TokenState) PruneWindows(now int64) {
	t.Buys = pruneWindow(t.Buys, now, BuysWindowMs)
	t.Volume = pruneWindow(t.Volume, now, VolumeWindowMs)
}

func pruneWindow(entries []WindowEntry, now, window int64) []WindowEntry {
	kept := entries[:0]
	for _, e := range entries {
		if now-e.Timestamp <= window {
			kept = append(kept, e)
		}
	}
	return kept
}

// VolumeSOL sums the volume window.
func (t *TokenState) VolumeSOL() float64 {
	var sum float64
	for _, e := range t.Volume {
		sum += e.AmountSOL
	}
	return sum
}

// ApplyCurve shifts the current price into LastPrice and adopts the curve's
// authoritative price, market cap and reserves.
func (t *TokenState) ApplyCurve(curve pumpfun.CurveState, now int64) {
	t.LastPrice = t.Price
	t.Price = curve.Price()
	t.MarketCapSOL = curve.MarketCapSOL()
	t.VirtualSolReserves = curve.VirtualSolReserves
	t.VirtualTokenReserves = curve.VirtualTokenReserves
	t.RealSolReserves = curve.RealSolReserves
	t.RealTokenReserves = curve.RealTokenReserves
	t.TotalSupply = curve.TokenTotalSupply
	t.Complete = curve.Complete
	if curve.HasCreator {
		t.Creator = curve.Creator.String()
	}
	t.UpdatedAt = now
}

// PumpPercent is the percent change from LastPrice to Price, 0 without history.
func (t *TokenState) PumpPercent() float64 {
	if t.LastPrice == 0 {
		return 0
	}
	return (t.Price/t.LastPrice - 1) * 100
}

// Curve returns the reserve fields as a curve state for quoting.
func (t *TokenState) Curve() pumpfun.CurveState {
	cs := pumpfun.CurveState{
		VirtualSolReserves:   t.VirtualSolReserves,
		VirtualTokenReserves: t.VirtualTokenReserves,
		RealSolReserves:      t.RealSolReserves,
		RealTokenReserves:    t.RealTokenReserves,
		TokenTotalSupply:     t.TotalSupply,
		Complete:             t.Complete,
	}
	if creator, err := pumpfun.ParsePublicKey(t.Creator); err == nil {
		cs.Creator = creator
		cs.HasCreator = true
	}
	return cs
}
