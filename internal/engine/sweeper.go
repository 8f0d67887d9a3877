package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pumpfun-engine/internal/execution"
	"pumpfun-engine/internal/lifecycle"
	"pumpfun-engine/internal/pumpfun"
	"pumpfun-engine/internal/solana"
)

// DefaultSweepInterval is the period between wallet sweeps.
const DefaultSweepInterval = 30 * time.Second

// TokenAccountLister lists a wallet's SPL token accounts.
type TokenAccountLister interface {
	GetTokenAccountsByOwner(ctx context.Context, owner string, filter solana.TokenAccountsFilter) ([]solana.TokenAccount, error)
}

// PositionChecker reports whether a mint is accounted for.
type PositionChecker interface {
	HasPosition(mint string) bool
}

// SweeperOptions configures a Sweeper.
type SweeperOptions struct {
	RPC       TokenAccountLister
	Seller    lifecycle.Seller
	Positions PositionChecker
	Wallet    pumpfun.PublicKey
	Interval  time.Duration // Default: 30s
	Logger    *zerolog.Logger
}

// Sweeper sells token balances the engine holds no position for, such as
// leftovers of a sell that landed after it was abandoned.
type Sweeper struct {
	rpc       TokenAccountLister
	seller    lifecycle.Seller
	positions PositionChecker
	wallet    pumpfun.PublicKey
	interval  time.Duration
	logger    zerolog.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(opts SweeperOptions) *Sweeper {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		rpc:       opts.RPC,
		seller:    opts.Seller,
		positions: opts.Positions,
		wallet:    opts.Wallet,
		interval:  interval,
		logger:    logger.With().Str("component", "sweeper").Logger(),
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn().Err(err).Msg("sweep failed")
			}
		}
	}
}

// SweepOnce sells every unaccounted non-zero balance and returns how many
// sells landed.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	accounts, err := s.rpc.GetTokenAccountsByOwner(ctx, s.wallet.String(), solana.TokenAccountsFilter{
		ProgramID: pumpfun.TokenProgramID.String(),
	})
	if err != nil {
		return 0, err
	}

	native := pumpfun.NativeMint.String()
	sold := 0
	for _, acc := range accounts {
		if acc.Mint == native || acc.Amount.Amount == "" || acc.Amount.Amount == "0" {
			continue
		}
		if s.positions.HasPosition(acc.Mint) {
			continue
		}
		mint, err := pumpfun.ParsePublicKey(acc.Mint)
		if err != nil {
			continue
		}

		log := s.logger.With().Str("mint", acc.Mint).Str("amount", acc.Amount.Amount).Logger()
		log.Warn().Msg("selling unaccounted balance")
		fill, err := s.seller.Sell(context.WithoutCancel(ctx), execution.SellRequest{Mint: mint})
		if err != nil {
			log.Error().Err(err).Msg("sweep sell failed")
			continue
		}
		sold++
		log.Info().Str("sig", fill.Signature).Float64("sol", fill.SolChange).Msg("swept")
	}
	return sold, nil
}
