package pumpfun

import (
	"errors"
	"math"
	"math/big"
)

var (
	// ErrZeroReserves is returned when a curve has no virtual liquidity.
	ErrZeroReserves = errors.New("zero curve reserves")
	// ErrZeroAmount is returned for a zero trade input or output.
	ErrZeroAmount = errors.New("zero trade amount")
)

// BuyQuoteResult is a priced buy against fixed virtual reserves.
type BuyQuoteResult struct {
	TokensOut   uint64
	MaxSolCost  uint64
	PriceImpact float64
}

// SellQuoteResult is a priced sell against fixed virtual reserves.
type SellQuoteResult struct {
	SolOut      uint64
	MinSolOut   uint64
	PriceImpact float64
}

// BuyQuote prices spending solIn lamports on a constant-product curve.
func BuyQuote(vSol, vTok, solIn uint64, slippage float64) (BuyQuoteResult, error) {
	if vSol == 0 || vTok == 0 {
		return BuyQuoteResult{}, ErrZeroReserves
	}
	if solIn == 0 {
		return BuyQuoteResult{}, ErrZeroAmount
	}

	num := new(big.Int).Mul(new(big.Int).SetUint64(vTok), new(big.Int).SetUint64(solIn))
	den := new(big.Int).Add(new(big.Int).SetUint64(vSol), new(big.Int).SetUint64(solIn))
	out := num.Quo(num, den)
	if out.Sign() == 0 {
		return BuyQuoteResult{}, ErrZeroAmount
	}
	tokensOut := out.Uint64()

	ideal := float64(vSol) / float64(vTok)
	actual := float64(solIn) / float64(tokensOut)
	impact := (actual - ideal) / ideal

	maxCost := math.Round(float64(solIn) * (1 + impact + slippage))
	if maxCost < 0 {
		maxCost = 0
	}

	return BuyQuoteResult{
		TokensOut:   tokensOut,
		MaxSolCost:  uint64(maxCost),
		PriceImpact: impact,
	}, nil
}

// SellQuote prices selling tokenIn raw units. The minimum output is anchored
// on the market-cap implied price rather than the curve output.
func SellQuote(vSol, vTok, tokenIn uint64, slippage float64, marketCapLamports, totalSupply uint64) (SellQuoteResult, error) {
	if vSol == 0 || vTok == 0 || totalSupply == 0 {
		return SellQuoteResult{}, ErrZeroReserves
	}
	if tokenIn == 0 {
		return SellQuoteResult{}, ErrZeroAmount
	}

	num := new(big.Int).Mul(new(big.Int).SetUint64(vSol), new(big.Int).SetUint64(tokenIn))
	den := new(big.Int).Add(new(big.Int).SetUint64(vTok), new(big.Int).SetUint64(tokenIn))
	solOut := num.Quo(num, den).Uint64()

	ideal := float64(vSol) / float64(vTok)
	actual := float64(solOut) / float64(tokenIn)
	impact := 1 - actual/ideal

	value := new(big.Float).SetInt(new(big.Int).Mul(
		new(big.Int).SetUint64(tokenIn),
		new(big.Int).SetUint64(marketCapLamports),
	))
	value.Quo(value, new(big.Float).SetUint64(totalSupply))
	value.Mul(value, big.NewFloat(1-impact-slippage))

	var minOut uint64
	if value.Sign() > 0 {
		f, _ := value.Float64()
		minOut = uint64(math.Floor(f))
	}

	return SellQuoteResult{
		SolOut:      solOut,
		MinSolOut:   minOut,
		PriceImpact: impact,
	}, nil
}
