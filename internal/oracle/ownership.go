package oracle

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"pumpfun-engine/internal/pumpfun"
	"pumpfun-engine/internal/solana"
)

// TokenAccountLister lists a wallet's token accounts.
type TokenAccountLister interface {
	GetTokenAccountsByOwner(ctx context.Context, owner string, filter solana.TokenAccountsFilter) ([]solana.TokenAccount, error)
}

// CreatorOwnership measures how much of the supply the creator holds.
type CreatorOwnership struct {
	rpc TokenAccountLister
}

// NewCreatorOwnership creates the oracle.
func NewCreatorOwnership(rpc TokenAccountLister) *CreatorOwnership {
	return &CreatorOwnership{rpc: rpc}
}

// Fraction returns the creator's balance of mint divided by totalSupply.
// Both are raw token units.
func (o *CreatorOwnership) Fraction(ctx context.Context, creator, mint string, totalSupply uint64) (float64, error) {
	if creator == "" {
		return 0, errors.New("creator unknown")
	}
	if totalSupply == 0 {
		return 0, errors.New("zero total supply")
	}
	accounts, err := o.rpc.GetTokenAccountsByOwner(ctx, creator, solana.TokenAccountsFilter{Mint: mint})
	if err != nil {
		return 0, fmt.Errorf("creator token accounts: %w", err)
	}
	var held uint64
	for _, a := range accounts {
		n, err := strconv.ParseUint(a.Amount.Amount, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("token amount %q: %w", a.Amount.Amount, err)
		}
		held += n
	}
	return float64(held) / float64(totalSupply), nil
}

// CurveStateReader reads a fresh curve.
type CurveStateReader interface {
	FetchState(ctx context.Context, mint pumpfun.PublicKey) (pumpfun.CurveState, error)
}

// CurveLiquidity reports liquidity as locked while the bonding curve has not
// completed, since the program holds the reserves until migration.
type CurveLiquidity struct {
	curves CurveStateReader
}

// NewCurveLiquidity creates the oracle.
func NewCurveLiquidity(curves CurveStateReader) *CurveLiquidity {
	return &CurveLiquidity{curves: curves}
}

// Locked reports whether mint's liquidity is still program-held.
func (l *CurveLiquidity) Locked(ctx context.Context, mint string) (bool, error) {
	key, err := pumpfun.ParsePublicKey(mint)
	if err != nil {
		return false, err
	}
	state, err := l.curves.FetchState(ctx, key)
	if err != nil {
		return false, err
	}
	return !state.Complete, nil
}
