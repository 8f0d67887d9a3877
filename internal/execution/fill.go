package execution

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"pumpfun-engine/internal/pumpfun"
	"pumpfun-engine/internal/solana"
)

// Fill is the wallet-side effect of a confirmed trade.
type Fill struct {
	Signature string
	// SolChange is SOL leaving the wallet: positive on a buy, negative on a
	// sell. It includes network fees.
	SolChange float64
	// TokenChange is whole tokens entering the wallet: positive on a buy.
	TokenChange float64
	TokenAmount uint64 // raw units moved
	Price       float64
	FeeSOL      float64
	Timestamp   int64 // Unix ms, block time
}

// ExtractFill reads the wallet's SOL and token deltas from a confirmed
// transaction and derives the realized price.
func ExtractFill(tx *solana.Transaction, mint, wallet string) (Fill, error) {
	if tx == nil || tx.Meta == nil || tx.Message == nil {
		return Fill{}, fmt.Errorf("extract fill: %w: incomplete transaction", pumpfun.ErrInvalidAccount)
	}
	idx := slices.Index(tx.Message.AccountKeys, wallet)
	if idx < 0 || idx >= len(tx.Meta.PreBalances) || idx >= len(tx.Meta.PostBalances) {
		return Fill{}, fmt.Errorf("extract fill %s: %w", tx.Signature, ErrWalletNotInTransaction)
	}

	lamports := int64(tx.Meta.PreBalances[idx]) - int64(tx.Meta.PostBalances[idx])
	solChange := float64(lamports) / pumpfun.LamportsPerSOL

	pre, decimals := ownerBalance(tx.Meta.PreTokenBalances, mint, wallet)
	post, postDecimals := ownerBalance(tx.Meta.PostTokenBalances, mint, wallet)
	if postDecimals > 0 {
		decimals = postDecimals
	}
	rawDelta := post.Sub(pre)
	tokenChange, _ := rawDelta.Shift(-decimals).Float64()

	fill := Fill{
		Signature:   tx.Signature,
		SolChange:   solChange,
		TokenChange: tokenChange,
		TokenAmount: uint64(rawDelta.Abs().IntPart()),
		FeeSOL:      float64(tx.Meta.Fee) / pumpfun.LamportsPerSOL,
		Timestamp:   tx.BlockTime * 1000,
	}
	if tokenChange != 0 {
		p := solChange / tokenChange
		if p < 0 {
			p = -p
		}
		fill.Price = p
	}
	return fill, nil
}

// ownerBalance returns the raw balance held by owner for mint, or zero.
func ownerBalance(balances []solana.TokenBalance, mint, owner string) (decimal.Decimal, int32) {
	for _, b := range balances {
		if b.Mint != mint || b.Owner != owner {
			continue
		}
		amount, err := decimal.NewFromString(b.UITokenAmount.Amount)
		if err != nil {
			return decimal.Zero, int32(b.UITokenAmount.Decimals)
		}
		return amount, int32(b.UITokenAmount.Decimals)
	}
	return decimal.Zero, 0
}
