package signal

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"pumpfun-engine/internal/config"
	"pumpfun-engine/internal/ingestion"
)

// OwnershipOracle measures the creator's share of supply.
type OwnershipOracle interface {
	Fraction(ctx context.Context, creator, mint string, totalSupply uint64) (float64, error)
}

// LiquidityOracle reports whether liquidity is locked.
type LiquidityOracle interface {
	Locked(ctx context.Context, mint string) (bool, error)
}

// ListingOracle reports whether the token has a paid listing.
type ListingOracle interface {
	IsPaid(ctx context.Context, mint string) (bool, error)
}

// Filter runs the entry checks in order and stops at the first failure.
type Filter struct {
	ownership OwnershipOracle
	liquidity LiquidityOracle
	listing   ListingOracle
	stats     *Stats
}

// FilterOptions configures a Filter.
type FilterOptions struct {
	Ownership OwnershipOracle
	Liquidity LiquidityOracle
	Listing   ListingOracle // optional when useDexScreenerFilter is off
	Stats     *Stats        // Default: new counters
}

// NewFilter creates a filter.
func NewFilter(opts FilterOptions) *Filter {
	stats := opts.Stats
	if stats == nil {
		stats = NewStats()
	}
	return &Filter{
		ownership: opts.Ownership,
		liquidity: opts.Liquidity,
		listing:   opts.Listing,
		stats:     stats,
	}
}

// Stats returns the rejection counters.
func (f *Filter) Stats() *Stats {
	return f.stats
}

// Evaluate runs the local checks, then the oracle checks.
func (f *Filter) Evaluate(ctx context.Context, snap ingestion.Snapshot, cfg *config.Strategy) Decision {
	d := f.EvaluateLocal(snap, cfg)
	if !d.Pass {
		return d
	}
	o := f.EvaluateOracles(ctx, snap, cfg)
	o.Results = append(d.Results, o.Results...)
	return o
}

// EvaluateLocal runs the I/O-free checks and counts a rejection.
func (f *Filter) EvaluateLocal(snap ingestion.Snapshot, cfg *config.Strategy) Decision {
	d := EvaluateLocal(snap, cfg)
	if !d.Pass {
		f.stats.Reject(d.Failed)
	}
	return d
}

// EvaluateLocal runs market cap, pump, buys and volume checks.
func EvaluateLocal(snap ingestion.Snapshot, cfg *config.Strategy) Decision {
	d := Decision{Pass: true}
	ts := snap.Token

	mc := ts.MarketCapSOL
	if !d.add(CheckResult{
		Check:     CheckMarketCap,
		Threshold: fmt.Sprintf("%.2f..%.2f SOL", cfg.MarketCapLimits.Min, cfg.MarketCapLimits.Max),
		Actual:    fmt.Sprintf("%.2f SOL", mc),
		Pass:      mc >= cfg.MarketCapLimits.Min && mc <= cfg.MarketCapLimits.Max,
	}) {
		return d
	}

	pump := ts.PumpPercent()
	if !d.add(CheckResult{
		Check:     CheckPump,
		Threshold: fmt.Sprintf(">= %.2f%%", cfg.PumpThreshold*100),
		Actual:    fmt.Sprintf("%.2f%%", pump),
		Pass:      pump >= cfg.PumpThreshold*100,
	}) {
		return d
	}

	buys := len(ts.Buys)
	if !d.add(CheckResult{
		Check:     CheckBuys,
		Threshold: fmt.Sprintf(">= %d", cfg.BuyThreshold),
		Actual:    fmt.Sprintf("%d", buys),
		Pass:      buys >= cfg.BuyThreshold,
	}) {
		return d
	}

	d.add(CheckResult{
		Check:     CheckVolume,
		Threshold: fmt.Sprintf("spike >= %.2f%%, volume >= $%.2f", cfg.VolumeThreshold, cfg.MinVolume),
		Actual:    fmt.Sprintf("spike %.2f%%, volume $%.2f", snap.VolumeSpike, snap.CurrentVolumeUSD),
		Pass:      snap.VolumeSpike >= cfg.VolumeThreshold && snap.CurrentVolumeUSD >= cfg.MinVolume,
	})
	return d
}

// EvaluateOracles runs ownership, liquidity and paid-listing checks. The
// listing lookup starts with the others and is joined last. An oracle error
// is a failure of its check.
func (f *Filter) EvaluateOracles(ctx context.Context, snap ingestion.Snapshot, cfg *config.Strategy) Decision {
	d := Decision{Pass: true}
	ts := snap.Token

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var paid bool
	var paidErr error
	var g errgroup.Group
	useListing := cfg.UseDexScreenerFilter && f.listing != nil
	if useListing {
		g.Go(func() error {
			paid, paidErr = f.listing.IsPaid(ctx, ts.Mint)
			return nil
		})
	}
	reject := func(c Check) Decision {
		cancel()
		_ = g.Wait()
		f.stats.Reject(c)
		return d
	}

	frac, err := f.ownership.Fraction(ctx, ts.Creator, ts.Mint, ts.TotalSupply)
	if !d.add(CheckResult{
		Check:     CheckOwnership,
		Threshold: fmt.Sprintf("<= %.2f%%", cfg.CreatorOwnershipMax*100),
		Actual:    actual(err, fmt.Sprintf("%.2f%%", frac*100)),
		Pass:      err == nil && frac <= cfg.CreatorOwnershipMax,
	}) {
		return reject(CheckOwnership)
	}

	locked, err := f.liquidity.Locked(ctx, ts.Mint)
	if !d.add(CheckResult{
		Check:     CheckLiquidity,
		Threshold: "locked",
		Actual:    actual(err, fmt.Sprintf("locked=%t", locked)),
		Pass:      err == nil && locked,
	}) {
		return reject(CheckLiquidity)
	}

	if useListing {
		_ = g.Wait()
		if !d.add(CheckResult{
			Check:     CheckDexPaid,
			Threshold: "paid listing",
			Actual:    actual(paidErr, fmt.Sprintf("paid=%t", paid)),
			Pass:      paidErr == nil && paid,
		}) {
			f.stats.Reject(CheckDexPaid)
			return d
		}
	}
	return d
}

func actual(err error, v string) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return v
}
