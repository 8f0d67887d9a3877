package domain

// ExitReason labels why a position was closed.
type ExitReason string

// Exit reasons.
const (
	ExitMomentumFaded     ExitReason = "Momentum Faded"
	ExitNeutralStagnation ExitReason = "Neutral Zone Stagnation"
	ExitEarlyLoss         ExitReason = "Early Loss Protection"
	ExitLossProtection    ExitReason = "Loss Protection"
	ExitTakeProfit        ExitReason = "Take Profit"
	ExitStopLoss          ExitReason = "Stop Loss"
	ExitTimeout           ExitReason = "Time Out"
	ExitProfitCap         ExitReason = "Cooldown: Profit cap reached"
	ExitShutdown          ExitReason = "Shutdown"
	ExitSweep             ExitReason = "Sweep"
	ExitUnsupervised      ExitReason = "Supervision Failed"
)

// TradeRecord is the append-only ledger entry of a closed position.
// Corresponds to the trade_records table.
type TradeRecord struct {
	TradeID string // deterministic hash of mint|sequence|entry time
	Mint    string
	Name    string
	Symbol  string

	EntryPrice        float64 // SOL per token
	ExitPrice         float64 // realized, from the confirmed sell
	EntryMarketCapUSD float64
	ExitMarketCapUSD  float64

	PnLPercent float64
	NetPnLSOL  float64
	FeesSOL    float64

	HoldSeconds int64
	ExitReason  ExitReason
	Win         bool

	AmountSOL     float64
	TradeSequence int
	VolumeSOL     float64 // 60s window at exit
	BuysInWindow  int     // 30s window at exit

	LastPriceUpdate int64 // Unix ms
	SellSignature   string
	EntryTime       int64 // Unix ms
	ClosedAt        int64 // Unix ms
}

// Outcome class constants
const (
	OutcomeClassWin  = "WIN"
	OutcomeClassLoss = "LOSS"
)

// OutcomeClass returns WIN or LOSS.
func (r *TradeRecord) OutcomeClass() string {
	if r.Win {
		return OutcomeClassWin
	}
	return OutcomeClassLoss
}
