package ingestion

import (
	"strings"

	"pumpfun-engine/internal/solana"
)

const (
	buyLog  = "Instruction: Buy"
	sellLog = "Instruction: Sell"

	lamportsPerSOL = 1e9
)

// BuyEvent is a qualifying program buy extracted from a confirmed transaction.
type BuyEvent struct {
	Signature    string
	Slot         int64
	Timestamp    int64 // Unix ms, block time when known
	Mint         string
	Buyer        string
	AmountSOL    float64
	TokenDelta   float64 // UI units
	ImpliedPrice float64 // SOL per token, qualification only
}

// IsSell reports whether any log line is a program sell.
func IsSell(logs []string) bool {
	return containsLog(logs, sellLog)
}

// IsBuy reports whether logs contain a program buy and no sell.
func IsBuy(logs []string) bool {
	return containsLog(logs, buyLog) && !IsSell(logs)
}

func containsLog(logs []string, needle string) bool {
	for _, l := range logs {
		if strings.Contains(l, needle) {
			return true
		}
	}
	return false
}

// Decode extracts a BuyEvent. ok is false for failed transactions, sells,
// non-buys, and transactions without a SOL outflow or token inflow.
func Decode(tx *solana.Transaction) (BuyEvent, bool) {
	if tx == nil || tx.Meta == nil || tx.Meta.Err != nil {
		return BuyEvent{}, false
	}
	meta := tx.Meta
	if !IsBuy(meta.LogMessages) {
		return BuyEvent{}, false
	}

	if len(meta.PreBalances) == 0 || len(meta.PostBalances) == 0 || meta.PostBalances[0] >= meta.PreBalances[0] {
		return BuyEvent{}, false
	}
	amountSOL := float64(meta.PreBalances[0]-meta.PostBalances[0]) / lamportsPerSOL

	mint, delta := firstTokenInflow(meta.PreTokenBalances, meta.PostTokenBalances)
	if mint == "" || delta <= 0 {
		return BuyEvent{}, false
	}

	ev := BuyEvent{
		Signature:    tx.Signature,
		Slot:         tx.Slot,
		Timestamp:    tx.BlockTime * 1000,
		Mint:         mint,
		AmountSOL:    amountSOL,
		TokenDelta:   delta,
		ImpliedPrice: amountSOL / delta,
	}
	if tx.Message != nil && len(tx.Message.AccountKeys) > 0 {
		ev.Buyer = tx.Message.AccountKeys[0]
	}
	return ev, true
}

// firstTokenInflow returns the first post balance that grew against its
// matching pre balance (same account index and mint, zero when absent).
func firstTokenInflow(pre, post []solana.TokenBalance) (string, float64) {
	for _, p := range post {
		before := 0.0
		for _, q := range pre {
			if q.AccountIndex == p.AccountIndex && q.Mint == p.Mint {
				before = q.UITokenAmount.UI()
				break
			}
		}
		if delta := p.UITokenAmount.UI() - before; delta > 0 {
			return p.Mint, delta
		}
	}
	return "", 0
}
