package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpfun-engine/internal/curve"
	"pumpfun-engine/internal/pumpfun"
	"pumpfun-engine/internal/solana"
	"pumpfun-engine/internal/solana/stub"
)

var fastPolicy = Fixed(3, time.Millisecond)

func testCurve() pumpfun.CurveState {
	return pumpfun.CurveState{
		VirtualTokenReserves: 1_000_000_000_000_000,
		VirtualSolReserves:   30_000_000_000,
		RealTokenReserves:    793_100_000_000_000,
		RealSolReserves:      0,
		TokenTotalSupply:     1_000_000_000_000_000,
		Creator:              testCreator,
		HasCreator:           true,
	}
}

type submitterFixture struct {
	rpc       *stub.RPCClient
	submitter *Submitter
	wallet    string
}

func newSubmitterFixture(t *testing.T) *submitterFixture {
	t.Helper()
	rpc := stub.NewRPCClient()
	b := newTestBuilder(t)
	s := NewSubmitter(SubmitterOptions{
		RPC:           rpc,
		Builder:       b,
		Fees:          NewFeeEstimator(rpc, 0, nil),
		Curves:        curve.NewFetcher(rpc),
		ConfirmPolicy: &fastPolicy,
		SellPolicy:    &fastPolicy,
	})
	return &submitterFixture{rpc: rpc, submitter: s, wallet: b.Wallet().String()}
}

// landWith makes every sent transaction visible with the given balances.
func (f *submitterFixture) landWith(preSOL, postSOL uint64, preTok, postTok string, chainErr interface{}) {
	f.rpc.SendHook = func(raw []byte) (string, error) {
		sig := base58.Encode(raw[1:65])
		tx := &solana.Transaction{
			Signature: sig,
			Slot:      1,
			BlockTime: 1_700_000_000,
			Meta: &solana.TransactionMeta{
				Err:          chainErr,
				Fee:          5_000,
				PreBalances:  []uint64{preSOL},
				PostBalances: []uint64{postSOL},
			},
			Message: &solana.TransactionMessage{AccountKeys: []string{f.wallet}},
		}
		if preTok != "" {
			tx.Meta.PreTokenBalances = []solana.TokenBalance{tokenBalance(f.wallet, preTok)}
		}
		if postTok != "" {
			tx.Meta.PostTokenBalances = []solana.TokenBalance{tokenBalance(f.wallet, postTok)}
		}
		f.rpc.SetTransaction(tx)
		return sig, nil
	}
}

func tokenBalance(owner, amount string) solana.TokenBalance {
	return solana.TokenBalance{
		Mint:          testMint.String(),
		Owner:         owner,
		UITokenAmount: solana.TokenAmount{Amount: amount, Decimals: pumpfun.TokenDecimals},
	}
}

func TestSubmitter_Buy(t *testing.T) {
	f := newSubmitterFixture(t)
	f.rpc.SetBalance(f.wallet, 1_000_000_000)
	f.landWith(1_000_000_000, 899_995_000, "", "3300000000000", nil)

	fill, err := f.submitter.Buy(context.Background(), BuyRequest{Mint: testMint, AmountSOL: 0.1, Curve: testCurve()})
	require.NoError(t, err)

	assert.InDelta(t, 0.100005, fill.SolChange, 1e-12)
	assert.InDelta(t, 3_300_000, fill.TokenChange, 1e-9)
	assert.Equal(t, uint64(3_300_000_000_000), fill.TokenAmount)
	assert.InDelta(t, 0.100005/3_300_000, fill.Price, 1e-15)
	assert.Equal(t, int64(1_700_000_000_000), fill.Timestamp)

	assert.Equal(t, 1, f.rpc.Calls("sendTransaction"))
	assert.Equal(t, 1, f.rpc.Calls("getTransaction"))

	// missing ATA means the create instruction is included
	tx := decodeTx(t, f.rpc.Sent[0])
	assert.Len(t, tx.Message.Instructions, 4)
}

func TestSubmitter_BuyInsufficientBalance(t *testing.T) {
	f := newSubmitterFixture(t)
	// 0.1 + 0.000005 + 0.002 is required
	f.rpc.SetBalance(f.wallet, 102_000_000)

	_, err := f.submitter.Buy(context.Background(), BuyRequest{Mint: testMint, AmountSOL: 0.1, Curve: testCurve()})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, 0, f.rpc.Calls("sendTransaction"))
}

func TestSubmitter_BuyRejectedIsNotRetried(t *testing.T) {
	f := newSubmitterFixture(t)
	f.rpc.SetBalance(f.wallet, 1_000_000_000)
	f.landWith(1_000_000_000, 999_995_000, "", "", map[string]interface{}{"InstructionError": []interface{}{3, "Custom"}})

	_, err := f.submitter.Buy(context.Background(), BuyRequest{Mint: testMint, AmountSOL: 0.1, Curve: testCurve()})
	assert.ErrorIs(t, err, ErrOnChainRejected)
	assert.Equal(t, 1, f.rpc.Calls("sendTransaction"))
	assert.Equal(t, 1, f.rpc.Calls("getTransaction"))
}

func TestSubmitter_BuyNeverConfirmed(t *testing.T) {
	f := newSubmitterFixture(t)
	f.rpc.SetBalance(f.wallet, 1_000_000_000)

	_, err := f.submitter.Buy(context.Background(), BuyRequest{Mint: testMint, AmountSOL: 0.1, Curve: testCurve()})
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Equal(t, fastPolicy.MaxAttempts, f.rpc.Calls("getTransaction"))
}

func TestSubmitter_Sell(t *testing.T) {
	f := newSubmitterFixture(t)
	f.rpc.SetCurve(testMint, testCurve())
	ata := pumpfun.AssociatedTokenAddress(f.submitter.Wallet(), testMint).String()
	f.rpc.SetTokenBalance(ata, &solana.TokenAmount{Amount: "3300000000000", Decimals: pumpfun.TokenDecimals})
	f.landWith(900_000_000, 1_010_000_000, "3300000000000", "0", nil)

	fill, err := f.submitter.Sell(context.Background(), SellRequest{Mint: testMint})
	require.NoError(t, err)

	assert.InDelta(t, -0.11, fill.SolChange, 1e-12)
	assert.InDelta(t, -3_300_000, fill.TokenChange, 1e-9)
	assert.InDelta(t, 0.11/3_300_000, fill.Price, 1e-15)

	tx := decodeTx(t, f.rpc.Sent[0])
	require.Len(t, tx.Message.Instructions, 4)
	assert.Equal(t, pumpfun.EncodeSell(3_300_000_000_000, mustSellMin(t, 3_300_000_000_000)),
		[]byte(tx.Message.Instructions[2].Data))
}

func mustSellMin(t *testing.T, tokens uint64) uint64 {
	t.Helper()
	cs := testCurve()
	q, err := pumpfun.SellQuote(cs.VirtualSolReserves, cs.VirtualTokenReserves, tokens, SellSlippage,
		cs.MarketCapLamports(), cs.TokenTotalSupply)
	require.NoError(t, err)
	return q.MinSolOut
}

func TestSubmitter_SellRetriesThenAbandons(t *testing.T) {
	f := newSubmitterFixture(t)
	f.rpc.SetCurve(testMint, testCurve())
	ata := pumpfun.AssociatedTokenAddress(f.submitter.Wallet(), testMint).String()
	f.rpc.SetTokenBalance(ata, &solana.TokenAmount{Amount: "1000", Decimals: pumpfun.TokenDecimals})
	f.rpc.SendHook = func([]byte) (string, error) { return "", stub.ErrUnavailable }

	_, err := f.submitter.Sell(context.Background(), SellRequest{Mint: testMint})
	assert.ErrorIs(t, err, ErrSellAbandoned)
	assert.ErrorIs(t, err, stub.ErrUnavailable)
	assert.Equal(t, fastPolicy.MaxAttempts, f.rpc.Calls("sendTransaction"))
}

func TestSubmitter_SellRetriesAfterRejection(t *testing.T) {
	f := newSubmitterFixture(t)
	f.rpc.SetCurve(testMint, testCurve())
	ata := pumpfun.AssociatedTokenAddress(f.submitter.Wallet(), testMint).String()
	f.rpc.SetTokenBalance(ata, &solana.TokenAmount{Amount: "1000", Decimals: pumpfun.TokenDecimals})

	sends := 0
	f.rpc.SendHook = func(raw []byte) (string, error) {
		sends++
		sig := base58.Encode(raw[1:65])
		var chainErr interface{}
		if sends == 1 {
			chainErr = "slippage"
		}
		f.rpc.SetTransaction(&solana.Transaction{
			Signature: sig,
			BlockTime: 1,
			Meta: &solana.TransactionMeta{
				Err:               chainErr,
				PreBalances:       []uint64{10},
				PostBalances:      []uint64{20},
				PreTokenBalances:  []solana.TokenBalance{tokenBalance(f.wallet, "1000")},
				PostTokenBalances: []solana.TokenBalance{tokenBalance(f.wallet, "0")},
			},
			Message: &solana.TransactionMessage{AccountKeys: []string{f.wallet}},
		})
		return sig, nil
	}

	_, err := f.submitter.Sell(context.Background(), SellRequest{Mint: testMint})
	require.NoError(t, err)
	assert.Equal(t, 2, sends)
}

func TestSubmitter_SellNothingHeld(t *testing.T) {
	f := newSubmitterFixture(t)
	f.rpc.SetCurve(testMint, testCurve())

	_, err := f.submitter.Sell(context.Background(), SellRequest{Mint: testMint})
	assert.ErrorIs(t, err, ErrSellAbandoned)
	assert.ErrorIs(t, err, ErrNothingToSell)
	assert.Equal(t, 0, f.rpc.Calls("sendTransaction"))
}

func TestSubmitter_SellLandedUnconfirmedUsesQuote(t *testing.T) {
	f := newSubmitterFixture(t)
	f.rpc.SetCurve(testMint, testCurve())
	ata := pumpfun.AssociatedTokenAddress(f.submitter.Wallet(), testMint).String()
	f.rpc.SetTokenBalance(ata, &solana.TokenAmount{Amount: "3300000000000", Decimals: pumpfun.TokenDecimals})

	// the sell lands and closes the token account, but the node never
	// shows the transaction
	var sig string
	f.rpc.SendHook = func(raw []byte) (string, error) {
		sig = base58.Encode(raw[1:65])
		f.rpc.SetTokenBalance(ata, nil)
		return sig, nil
	}

	fill, err := f.submitter.Sell(context.Background(), SellRequest{Mint: testMint})
	require.NoError(t, err)
	assert.Equal(t, 1, f.rpc.Calls("sendTransaction"))
	assert.Equal(t, sig, fill.Signature)

	cs := testCurve()
	q, err := pumpfun.SellQuote(cs.VirtualSolReserves, cs.VirtualTokenReserves, 3_300_000_000_000, SellSlippage,
		cs.MarketCapLamports(), cs.TokenTotalSupply)
	require.NoError(t, err)
	wantSOL := float64(q.SolOut) / pumpfun.LamportsPerSOL
	assert.InDelta(t, -wantSOL, fill.SolChange, 1e-12)
	assert.InDelta(t, wantSOL/3_300_000, fill.Price, 1e-15)
}

// lateRPC hides transactions from the first hidden lookups.
type lateRPC struct {
	*stub.RPCClient
	mu     sync.Mutex
	hidden int
}

func (r *lateRPC) GetTransaction(ctx context.Context, sig string) (*solana.Transaction, error) {
	r.mu.Lock()
	if r.hidden > 0 {
		r.hidden--
		r.mu.Unlock()
		return nil, nil
	}
	r.mu.Unlock()
	return r.RPCClient.GetTransaction(ctx, sig)
}

func TestSubmitter_SellLandedLateIsNotResent(t *testing.T) {
	f := newSubmitterFixture(t)
	rpc := &lateRPC{RPCClient: f.rpc, hidden: fastPolicy.MaxAttempts}
	s := NewSubmitter(SubmitterOptions{
		RPC:           rpc,
		Builder:       f.submitter.builder,
		Fees:          NewFeeEstimator(rpc, 0, nil),
		Curves:        curve.NewFetcher(rpc),
		ConfirmPolicy: &fastPolicy,
		SellPolicy:    &fastPolicy,
	})
	f.rpc.SetCurve(testMint, testCurve())
	ata := pumpfun.AssociatedTokenAddress(s.Wallet(), testMint).String()
	f.rpc.SetTokenBalance(ata, &solana.TokenAmount{Amount: "3300000000000", Decimals: pumpfun.TokenDecimals})
	f.landWith(900_000_000, 1_010_000_000, "3300000000000", "0", nil)

	fill, err := s.Sell(context.Background(), SellRequest{Mint: testMint})
	require.NoError(t, err)
	assert.Equal(t, 1, f.rpc.Calls("sendTransaction"), "landed sell must not be sent again")
	assert.InDelta(t, 0.11/3_300_000, fill.Price, 1e-15)
}

func TestSubmitter_SellBalanceReadFailureIsRetried(t *testing.T) {
	f := newSubmitterFixture(t)
	f.rpc.SetCurve(testMint, testCurve())
	ata := pumpfun.AssociatedTokenAddress(f.submitter.Wallet(), testMint).String()
	// the account exists but its balance cannot be read
	f.rpc.SetAccount(ata, &solana.AccountInfo{Owner: pumpfun.TokenProgramID.String()})

	_, err := f.submitter.Sell(context.Background(), SellRequest{Mint: testMint})
	assert.ErrorIs(t, err, ErrSellAbandoned)
	assert.NotErrorIs(t, err, ErrNothingToSell)
	assert.Equal(t, fastPolicy.MaxAttempts, f.rpc.Calls("getTokenAccountBalance"))
}

type transportErrGetter struct{ calls int }

func (g *transportErrGetter) GetTransaction(context.Context, string) (*solana.Transaction, error) {
	g.calls++
	return nil, errors.New("connection reset")
}

func TestConfirm_TransportErrorsBecomeNotConfirmed(t *testing.T) {
	g := &transportErrGetter{}
	_, err := Confirm(context.Background(), g, "sig", fastPolicy)
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.Equal(t, 3, g.calls)
}

func TestExtractFill(t *testing.T) {
	wallet := "Wallet1111111111111111111111111111111111111"
	tx := &solana.Transaction{
		Signature: "sig",
		BlockTime: 10,
		Meta: &solana.TransactionMeta{
			PreBalances:  []uint64{5, 2_000_000_000},
			PostBalances: []uint64{5, 1_500_000_000},
			PreTokenBalances: []solana.TokenBalance{
				{Mint: testMint.String(), Owner: "someone-else", UITokenAmount: solana.TokenAmount{Amount: "999", Decimals: 6}},
			},
			PostTokenBalances: []solana.TokenBalance{
				{Mint: testMint.String(), Owner: "someone-else", UITokenAmount: solana.TokenAmount{Amount: "1", Decimals: 6}},
				{Mint: testMint.String(), Owner: wallet, UITokenAmount: solana.TokenAmount{Amount: "10000000000", Decimals: 6}},
			},
		},
		Message: &solana.TransactionMessage{AccountKeys: []string{"payer", wallet}},
	}

	fill, err := ExtractFill(tx, testMint.String(), wallet)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, fill.SolChange, 1e-12)
	assert.InDelta(t, 10_000, fill.TokenChange, 1e-9)
	assert.InDelta(t, 0.00005, fill.Price, 1e-15)
	assert.Equal(t, int64(10_000), fill.Timestamp)

	_, err = ExtractFill(tx, testMint.String(), "absent")
	assert.ErrorIs(t, err, ErrWalletNotInTransaction)
}
