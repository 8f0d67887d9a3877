// Package curve reads bonding-curve and metadata accounts from the chain.
package curve

import (
	"context"
	"fmt"

	"pumpfun-engine/internal/pumpfun"
	"pumpfun-engine/internal/solana"
)

// Account is the on-chain view of one token.
type Account struct {
	Mint         pumpfun.PublicKey
	BondingCurve pumpfun.PublicKey
	State        pumpfun.CurveState
	Metadata     pumpfun.Metadata
	HasMetadata  bool
}

// AccountReader is the RPC subset the fetcher needs.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
	GetMultipleAccounts(ctx context.Context, pubkeys []string) ([]*solana.AccountInfo, error)
}

// Fetcher loads and validates curve accounts.
type Fetcher struct {
	rpc AccountReader
}

// NewFetcher creates a fetcher over rpc.
func NewFetcher(rpc AccountReader) *Fetcher {
	return &Fetcher{rpc: rpc}
}

// Fetch loads the bonding curve and metadata accounts in one batched call.
// A missing or undecodable metadata account is not an error; an invalid
// curve is.
func (f *Fetcher) Fetch(ctx context.Context, mint pumpfun.PublicKey) (Account, error) {
	curvePDA := pumpfun.BondingCurvePDA(mint)
	metaPDA := pumpfun.MetadataPDA(mint)

	infos, err := f.rpc.GetMultipleAccounts(ctx, []string{curvePDA.String(), metaPDA.String()})
	if err != nil {
		return Account{}, fmt.Errorf("fetch curve accounts: %w", err)
	}

	acc := Account{Mint: mint, BondingCurve: curvePDA}
	acc.State, err = decodeCurve(infos[0])
	if err != nil {
		return Account{}, err
	}

	if infos[1] != nil {
		if data, err := infos[1].DecodeData(); err == nil {
			if md, err := pumpfun.DecodeMetadata(data); err == nil {
				acc.Metadata = md
				acc.HasMetadata = true
			}
		}
	}
	return acc, nil
}

// FetchState loads only the bonding curve account.
func (f *Fetcher) FetchState(ctx context.Context, mint pumpfun.PublicKey) (pumpfun.CurveState, error) {
	info, err := f.rpc.GetAccountInfo(ctx, pumpfun.BondingCurvePDA(mint).String())
	if err != nil {
		return pumpfun.CurveState{}, fmt.Errorf("fetch curve account: %w", err)
	}
	return decodeCurve(info)
}

func decodeCurve(info *solana.AccountInfo) (pumpfun.CurveState, error) {
	if info == nil {
		return pumpfun.CurveState{}, fmt.Errorf("%w: bonding curve account not found", pumpfun.ErrInvalidAccount)
	}
	data, err := info.DecodeData()
	if err != nil {
		return pumpfun.CurveState{}, fmt.Errorf("%w: %v", pumpfun.ErrInvalidAccount, err)
	}
	state, err := pumpfun.DecodeBondingCurve(data)
	if err != nil {
		return pumpfun.CurveState{}, err
	}
	if err := state.Validate(); err != nil {
		return pumpfun.CurveState{}, err
	}
	return state, nil
}
