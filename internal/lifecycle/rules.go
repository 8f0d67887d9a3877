// Package lifecycle owns open positions from confirmed entry to close.
package lifecycle

import (
	"math"

	"pumpfun-engine/internal/config"
	"pumpfun-engine/internal/domain"
)

// Band is the P/L zone that selects the active stagnation rule.
type Band int

const (
	BandMomentum     Band = iota // P/L at or above the momentum base
	BandNeutral                  // 0 <= P/L < momentum base
	BandEarlyLoss                // -trail <= P/L < 0
	BandTrailingLoss             // P/L < -trail
	bandCount
)

var bandReasons = [bandCount]struct {
	reason domain.ExitReason
	win    bool
}{
	BandMomentum:     {domain.ExitMomentumFaded, true},
	BandNeutral:      {domain.ExitNeutralStagnation, true},
	BandEarlyLoss:    {domain.ExitEarlyLoss, false},
	BandTrailingLoss: {domain.ExitLossProtection, false},
}

// Tracker is the per-position memory of the exit rules. A zero StagnantSince
// entry means the band's timer is not running.
type Tracker struct {
	LastPrice     float64
	StagnantSince [bandCount]int64
}

// NewTracker starts tracking from the entry price.
func NewTracker(entryPrice float64) Tracker {
	return Tracker{LastPrice: entryPrice}
}

// Tick is the input of one decision.
type Tick struct {
	Price      float64
	EntryPrice float64
	EntryTime  int64 // Unix ms
	Now        int64 // Unix ms
}

// ProfitLoss is the fractional unrealized P/L.
func (t Tick) ProfitLoss() float64 {
	if t.EntryPrice == 0 {
		return 0
	}
	return (t.Price - t.EntryPrice) / t.EntryPrice
}

// Exit is a close decision. The zero value means hold.
type Exit struct {
	Reason domain.ExitReason
	Win    bool
}

// Triggered reports whether the position should close.
func (e Exit) Triggered() bool { return e.Reason != "" }

// Evaluate runs the exit rules for one tick and returns the decision with the
// updated tracker. Hard take-profit and stop-loss are checked before the
// stagnation bands: a tick that crosses either closes with that reason even
// when a band would also have fired on it, and the stagnation timers are left
// untouched. The hold timeout is checked last.
func Evaluate(tr Tracker, tick Tick, cfg *config.Strategy) (Exit, Tracker) {
	if tick.EntryPrice <= 0 || tick.Price <= 0 {
		return Exit{}, tr
	}
	pl := tick.ProfitLoss()

	if pl >= cfg.ProfitThreshold {
		return Exit{Reason: domain.ExitTakeProfit, Win: true}, tr
	}
	if pl <= cfg.LossThreshold {
		return Exit{Reason: domain.ExitStopLoss}, tr
	}

	band, threshold := SelectBand(pl, cfg)
	for b := range tr.StagnantSince {
		if Band(b) != band {
			tr.StagnantSince[b] = 0
		}
	}

	last := tr.LastPrice
	if last <= 0 {
		last = tick.EntryPrice
	}
	change := math.Abs(tick.Price-last) / last

	var exit Exit
	if change < threshold {
		switch since := tr.StagnantSince[band]; {
		case since == 0:
			tr.StagnantSince[band] = tick.Now
		case tick.Now-since >= cfg.MomentumStagnantTimeMs:
			exit = Exit{Reason: bandReasons[band].reason, Win: bandReasons[band].win}
		}
	} else {
		tr.StagnantSince[band] = 0
	}
	tr.LastPrice = tick.Price
	if exit.Triggered() {
		return exit, tr
	}

	if tick.Now-tick.EntryTime >= cfg.MaxHoldTimeMs {
		return Exit{Reason: domain.ExitTimeout, Win: pl > 0}, tr
	}
	return Exit{}, tr
}

// SelectBand returns the band for pl and its minimum price move.
func SelectBand(pl float64, cfg *config.Strategy) (Band, float64) {
	switch {
	case pl >= cfg.MomentumProfitThreshold:
		return BandMomentum, momentumThreshold(pl, cfg)
	case pl >= 0:
		return BandNeutral, cfg.NeutralZonePriceChangeThreshold
	case pl >= -cfg.LossThresholdTrail:
		return BandEarlyLoss, cfg.LossEarlyPriceChangeThreshold
	default:
		return BandTrailingLoss, cfg.LossPriceChangeThresholdTrail
	}
}

// momentumThreshold steps the required move up with profit.
func momentumThreshold(pl float64, cfg *config.Strategy) float64 {
	bands, moves := cfg.MomentumProfitThresholds, cfg.MomentumPriceChangeThresholds
	switch {
	case pl >= bands.Threshold4:
		return moves.Threshold4
	case pl >= bands.Threshold3:
		return moves.Threshold3
	case pl >= bands.Threshold2:
		return moves.Threshold2
	case pl >= bands.Threshold1:
		return moves.Threshold1
	default:
		return moves.Base
	}
}

// Hint labels a position for snapshot consumers.
func Hint(pl float64, remainingSeconds int64, cfg *config.Strategy) string {
	switch {
	case pl >= cfg.ProfitThreshold:
		return domain.HintTakeProfit
	case pl <= cfg.LossThreshold:
		return domain.HintStopLoss
	case remainingSeconds <= 0:
		return domain.HintTimeout
	default:
		return domain.HintActive
	}
}
