package execution

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"pumpfun-engine/internal/observability"
	"pumpfun-engine/internal/solana"
)

// Compute budget defaults and congestion tiers, in compute units and
// µlamports per unit.
const (
	DefaultUnitLimit   uint32 = 200_000
	MediumUnitLimit    uint32 = 250_000
	HighUnitLimit      uint32 = 300_000
	MinPriorityFee     uint64 = 1_000_000
	FallbackUnitPrice  uint64 = 100_000
	mediumFeeThreshold uint64 = 500_000

	feeSampleSize = 20
	feePercentile = 75
)

// ComputeBudget is the compute unit limit and price attached to a trade.
type ComputeBudget struct {
	UnitLimit uint32
	UnitPrice uint64 // µlamports per compute unit
}

// FeeSource reads recent prioritization fee samples.
type FeeSource interface {
	GetRecentPrioritizationFees(ctx context.Context, accounts []string) ([]solana.PrioritizationFee, error)
}

// FeeEstimator derives a compute budget from recent network fees.
type FeeEstimator struct {
	rpc    FeeSource
	maxFee uint64
	logger zerolog.Logger
}

// NewFeeEstimator creates an estimator. maxPriorityFee caps the unit price;
// zero disables the cap.
func NewFeeEstimator(rpc FeeSource, maxPriorityFee uint64, logger *zerolog.Logger) *FeeEstimator {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &FeeEstimator{
		rpc:    rpc,
		maxFee: maxPriorityFee,
		logger: l.With().Str("component", "fees").Logger(),
	}
}

// Estimate returns the budget for the next transaction. It never fails; RPC
// problems fall back to fixed defaults.
func (e *FeeEstimator) Estimate(ctx context.Context) ComputeBudget {
	samples, err := e.rpc.GetRecentPrioritizationFees(ctx, nil)
	if err != nil {
		e.logger.Debug().Err(err).Msg("prioritization fees unavailable, using fallback")
		return e.publish(ComputeBudget{UnitLimit: DefaultUnitLimit, UnitPrice: FallbackUnitPrice})
	}
	if len(samples) == 0 {
		return e.publish(ComputeBudget{UnitLimit: DefaultUnitLimit, UnitPrice: MinPriorityFee})
	}

	recent := append([]solana.PrioritizationFee(nil), samples...)
	sort.Slice(recent, func(i, j int) bool { return recent[i].Slot > recent[j].Slot })
	if len(recent) > feeSampleSize {
		recent = recent[:feeSampleSize]
	}

	values := make([]uint64, len(recent))
	for i, s := range recent {
		values[i] = s.PrioritizationFee
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	p75 := percentile(values, feePercentile)
	fee := max(p75, MinPriorityFee)

	limit := DefaultUnitLimit
	switch {
	case fee > MinPriorityFee:
		limit = HighUnitLimit
	case fee > mediumFeeThreshold:
		limit = MediumUnitLimit
	}

	if e.maxFee > 0 && fee > e.maxFee {
		fee = e.maxFee
	}

	e.logger.Debug().
		Int("samples", len(values)).
		Uint64("p75", p75).
		Uint64("unit_price", fee).
		Uint32("unit_limit", limit).
		Msg("compute budget estimated")

	return e.publish(ComputeBudget{UnitLimit: limit, UnitPrice: fee})
}

func (e *FeeEstimator) publish(b ComputeBudget) ComputeBudget {
	observability.SetPriorityFee(b.UnitPrice)
	return b
}

// percentile indexes sorted at floor(len·p/100).
func percentile(sorted []uint64, p int) uint64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
