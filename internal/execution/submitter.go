package execution

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"pumpfun-engine/internal/observability"
	"pumpfun-engine/internal/pumpfun"
	"pumpfun-engine/internal/solana"
)

// Slippage and capital margins.
const (
	BuySlippage  = 0.05
	SellSlippage = 0.1

	// NetworkFeeSOL and RentReserveSOL are held back on top of the trade
	// amount before a buy is attempted.
	NetworkFeeSOL  = 0.000005
	RentReserveSOL = 0.002
)

// Trade sides for metrics and logs.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// CurveReader re-reads a bonding curve before a sell.
type CurveReader interface {
	FetchState(ctx context.Context, mint pumpfun.PublicKey) (pumpfun.CurveState, error)
}

// Estimator yields a compute budget.
type Estimator interface {
	Estimate(ctx context.Context) ComputeBudget
}

// BuyRequest is an entry order sized in SOL.
type BuyRequest struct {
	Mint      pumpfun.PublicKey
	AmountSOL float64
	Curve     pumpfun.CurveState
}

// SellRequest liquidates the wallet's whole balance of Mint.
type SellRequest struct {
	Mint pumpfun.PublicKey
}

// Submitter sends buy and sell transactions and waits for confirmation.
type Submitter struct {
	rpc     solana.RPCClient
	builder *Builder
	fees    Estimator
	curves  CurveReader
	confirm RetryPolicy
	sell    RetryPolicy
	logger  zerolog.Logger
}

// SubmitterOptions configures a Submitter.
type SubmitterOptions struct {
	RPC           solana.RPCClient
	Builder       *Builder
	Fees          Estimator
	Curves        CurveReader
	ConfirmPolicy *RetryPolicy
	SellPolicy    *RetryPolicy
	Logger        *zerolog.Logger
}

// NewSubmitter creates a Submitter. Nil policies use the package defaults.
func NewSubmitter(opts SubmitterOptions) *Submitter {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	s := &Submitter{
		rpc:     opts.RPC,
		builder: opts.Builder,
		fees:    opts.Fees,
		curves:  opts.Curves,
		confirm: ConfirmPolicy,
		sell:    SellPolicy,
		logger:  logger.With().Str("component", "submitter").Logger(),
	}
	if opts.ConfirmPolicy != nil {
		s.confirm = *opts.ConfirmPolicy
	}
	if opts.SellPolicy != nil {
		s.sell = *opts.SellPolicy
	}
	return s
}

// Wallet returns the trading wallet address.
func (s *Submitter) Wallet() pumpfun.PublicKey {
	return s.builder.Wallet()
}

// Buy spends req.AmountSOL on req.Mint. A rejected or unconfirmed buy is not
// retried.
func (s *Submitter) Buy(ctx context.Context, req BuyRequest) (Fill, error) {
	wallet := s.builder.Wallet()
	mint := req.Mint.String()

	balance, err := s.rpc.GetBalance(ctx, wallet.String())
	if err != nil {
		return Fill{}, fmt.Errorf("read wallet balance: %w", err)
	}
	required := req.AmountSOL + NetworkFeeSOL + RentReserveSOL
	if float64(balance)/pumpfun.LamportsPerSOL < required {
		return Fill{}, fmt.Errorf("%w: have %.6f SOL, need %.6f", ErrInsufficientBalance,
			float64(balance)/pumpfun.LamportsPerSOL, required)
	}
	if !req.Curve.HasCreator {
		return Fill{}, fmt.Errorf("%w: curve of %s has no creator", pumpfun.ErrInvalidAccount, mint)
	}

	accounts := pumpfun.NewTradeAccounts(req.Mint, wallet, req.Curve.Creator)
	ata, err := s.rpc.GetAccountInfo(ctx, accounts.UserTokenAccount.String())
	if err != nil {
		return Fill{}, fmt.Errorf("read token account: %w", err)
	}

	quote, err := pumpfun.BuyQuote(req.Curve.VirtualSolReserves, req.Curve.VirtualTokenReserves,
		toLamports(req.AmountSOL), BuySlippage)
	if err != nil {
		return Fill{}, fmt.Errorf("quote buy: %w", err)
	}

	budget := s.fees.Estimate(ctx)
	blockhash, err := s.rpc.GetLatestBlockhash(ctx, solana.CommitmentFinalized)
	if err != nil {
		return Fill{}, fmt.Errorf("latest blockhash: %w", err)
	}
	signed, err := s.builder.Buy(blockhash, BuyTx{
		Accounts:   accounts,
		Tokens:     quote.TokensOut,
		MaxSolCost: quote.MaxSolCost,
		Budget:     &budget,
		CreateATA:  ata == nil,
	})
	if err != nil {
		return Fill{}, err
	}

	var fill Fill
	start := time.Now()
	sig, err := s.send(ctx, SideBuy, signed)
	if err == nil {
		fill, err = s.confirmFill(ctx, SideBuy, sig, mint, start)
	}
	if err != nil {
		observability.RecordTrade(SideBuy, resultOf(err))
		return Fill{}, err
	}
	observability.RecordTrade(SideBuy, "ok")

	s.logger.Info().
		Str("mint", mint).
		Str("sig", fill.Signature).
		Uint64("tokens_quoted", quote.TokensOut).
		Float64("max_sol_cost", float64(quote.MaxSolCost)/pumpfun.LamportsPerSOL).
		Float64("price", fill.Price).
		Uint32("cu_limit", budget.UnitLimit).
		Uint64("cu_price", budget.UnitPrice).
		Msg("buy confirmed")
	return fill, nil
}

// Sell liquidates the wallet's balance of req.Mint. Each attempt first
// checks whether an earlier unconfirmed send has landed, then re-reads the
// balance and the curve. A wallet that holds nothing is a permanent failure
// wrapping ErrNothingToSell, unless an earlier send of this call is pending,
// in which case that send is taken as the fill. When all attempts fail the
// error wraps ErrSellAbandoned.
func (s *Submitter) Sell(ctx context.Context, req SellRequest) (Fill, error) {
	mint := req.Mint.String()
	var (
		fill    Fill
		pending []pendingSell
	)
	err := s.sell.Do(ctx, func(attempt int) error {
		if f, ok := s.settle(ctx, &pending, mint); ok {
			fill = f
			return nil
		}

		f, err := s.sellOnce(ctx, req, &pending)
		switch {
		case err == nil:
			fill = f
			return nil
		case errors.Is(err, ErrNothingToSell) && len(pending) > 0:
			last := pending[len(pending)-1]
			fill = last.quotedFill()
			s.logger.Warn().Str("mint", mint).Str("sig", last.signature).Msg("balance gone after unconfirmed sell, using quoted fill")
			return nil
		case errors.Is(err, ErrNothingToSell):
			return Permanent(err)
		}
		s.logger.Warn().Err(err).Str("mint", mint).Int("attempt", attempt).Msg("sell attempt failed")
		return err
	})
	if err != nil {
		observability.RecordTrade(SideSell, "abandoned")
		return Fill{}, fmt.Errorf("%w: %s: %w", ErrSellAbandoned, req.Mint, err)
	}
	observability.RecordTrade(SideSell, "ok")
	return fill, nil
}

// pendingSell is a sent sell whose outcome is not known yet.
type pendingSell struct {
	signature string
	tokens    uint64 // raw units sent
	solOut    uint64 // quoted lamports
}

// quotedFill prices the sell at its quote.
func (p pendingSell) quotedFill() Fill {
	tokens := float64(p.tokens) / math.Pow10(pumpfun.TokenDecimals)
	sol := float64(p.solOut) / pumpfun.LamportsPerSOL
	f := Fill{
		Signature:   p.signature,
		SolChange:   -sol,
		TokenChange: -tokens,
		TokenAmount: p.tokens,
	}
	if tokens > 0 {
		f.Price = sol / tokens
	}
	return f
}

// settle looks up every pending send. Sends rejected on chain are dropped;
// the first one that landed is returned as the fill.
func (s *Submitter) settle(ctx context.Context, pending *[]pendingSell, mint string) (Fill, bool) {
	kept := (*pending)[:0]
	for _, p := range *pending {
		tx, err := s.rpc.GetTransaction(ctx, p.signature)
		switch {
		case err != nil || tx == nil:
			kept = append(kept, p)
		case tx.Meta != nil && tx.Meta.Err != nil:
		default:
			fill, err := ExtractFill(tx, mint, s.builder.Wallet().String())
			if err != nil {
				fill = p.quotedFill()
			}
			s.logger.Info().Str("mint", mint).Str("sig", p.signature).Msg("earlier sell landed")
			return fill, true
		}
	}
	*pending = kept
	return Fill{}, false
}

func (s *Submitter) sellOnce(ctx context.Context, req SellRequest, pending *[]pendingSell) (Fill, error) {
	wallet := s.builder.Wallet()
	mint := req.Mint.String()

	cs, err := s.curves.FetchState(ctx, req.Mint)
	if err != nil {
		return Fill{}, fmt.Errorf("fetch curve: %w", err)
	}
	if !cs.HasCreator {
		return Fill{}, fmt.Errorf("%w: curve of %s has no creator", pumpfun.ErrInvalidAccount, mint)
	}
	accounts := pumpfun.NewTradeAccounts(req.Mint, wallet, cs.Creator)

	tokens, err := s.tokenBalance(ctx, accounts.UserTokenAccount.String())
	if err != nil {
		return Fill{}, err
	}

	quote, err := pumpfun.SellQuote(cs.VirtualSolReserves, cs.VirtualTokenReserves, tokens,
		SellSlippage, cs.MarketCapLamports(), cs.TokenTotalSupply)
	if err != nil {
		return Fill{}, fmt.Errorf("quote sell: %w", err)
	}

	budget := s.fees.Estimate(ctx)
	blockhash, err := s.rpc.GetLatestBlockhash(ctx, solana.CommitmentFinalized)
	if err != nil {
		return Fill{}, fmt.Errorf("latest blockhash: %w", err)
	}
	signed, err := s.builder.Sell(blockhash, SellTx{
		Accounts:  accounts,
		Tokens:    tokens,
		MinSolOut: quote.MinSolOut,
		Budget:    &budget,
		CloseATA:  true,
	})
	if err != nil {
		return Fill{}, err
	}

	start := time.Now()
	sig, err := s.send(ctx, SideSell, signed)
	if err != nil {
		return Fill{}, err
	}
	*pending = append(*pending, pendingSell{signature: sig, tokens: tokens, solOut: quote.SolOut})

	fill, err := s.confirmFill(ctx, SideSell, sig, mint, start)
	if err != nil {
		if errors.Is(err, ErrOnChainRejected) {
			*pending = (*pending)[:len(*pending)-1]
		}
		return Fill{}, err
	}
	s.logger.Info().
		Str("mint", mint).
		Str("sig", fill.Signature).
		Uint64("tokens", tokens).
		Float64("min_sol_out", float64(quote.MinSolOut)/pumpfun.LamportsPerSOL).
		Float64("price", fill.Price).
		Msg("sell confirmed")
	return fill, nil
}

// tokenBalance reads the raw balance of a token account. A closed or empty
// account is ErrNothingToSell; a failed read is not.
func (s *Submitter) tokenBalance(ctx context.Context, account string) (uint64, error) {
	bal, err := s.rpc.GetTokenAccountBalance(ctx, account)
	if err != nil {
		info, infoErr := s.rpc.GetAccountInfo(ctx, account)
		if infoErr != nil || info != nil {
			return 0, fmt.Errorf("read token balance: %w", err)
		}
		return 0, fmt.Errorf("%w: token account %s is closed", ErrNothingToSell, account)
	}
	if bal == nil {
		return 0, fmt.Errorf("%w: token account %s is closed", ErrNothingToSell, account)
	}
	tokens, err := strconv.ParseUint(bal.Amount, 10, 64)
	if err != nil || tokens == 0 {
		return 0, fmt.Errorf("%w: balance %q", ErrNothingToSell, bal.Amount)
	}
	return tokens, nil
}

func (s *Submitter) send(ctx context.Context, side string, signed SignedTx) (string, error) {
	sig, err := s.rpc.SendTransaction(ctx, signed.Raw)
	if err != nil {
		return "", fmt.Errorf("send %s: %w", side, err)
	}
	if sig == "" {
		sig = signed.Signature
	}
	return sig, nil
}

func (s *Submitter) confirmFill(ctx context.Context, side, sig, mint string, start time.Time) (Fill, error) {
	tx, err := Confirm(ctx, s.rpc, sig, s.confirm)
	if err != nil {
		return Fill{}, err
	}
	observability.RecordConfirm(side, time.Since(start))
	return ExtractFill(tx, mint, s.builder.Wallet().String())
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, ErrOnChainRejected):
		return "rejected"
	case errors.Is(err, ErrNotConfirmed):
		return "unconfirmed"
	default:
		return "error"
	}
}

func toLamports(sol float64) uint64 {
	return uint64(math.Round(sol * pumpfun.LamportsPerSOL))
}
