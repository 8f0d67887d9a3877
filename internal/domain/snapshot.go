package domain

// PricePoint is one sampled price of an open position.
type PricePoint struct {
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
}

// Position status hints in snapshots.
const (
	HintTakeProfit = "take_profit"
	HintStopLoss   = "stop_loss"
	HintTimeout    = "timeout"
	HintActive     = "active"
)

// PositionSnapshot is the unrealized view of one open position.
type PositionSnapshot struct {
	PositionID          string       `json:"positionId"`
	Mint                string       `json:"mint"`
	Name                string       `json:"name"`
	Symbol              string       `json:"symbol"`
	Status              string       `json:"status"`
	EntryPrice          float64      `json:"entryPrice"`
	CurrentPrice        float64      `json:"currentPrice"`
	EntryMarketCapUSD   float64      `json:"entryMc"`
	CurrentMarketCapUSD float64      `json:"currentMc"`
	PnLPercent          float64      `json:"pnl"`
	NetPnLSOL           float64      `json:"netPnL"`
	AmountSOL           float64      `json:"amount"`
	HeldSeconds         int64        `json:"timeHeld"`
	RemainingSeconds    int64        `json:"timeRemaining"`
	Hint                string       `json:"hint"`
	VolumeSOL           float64      `json:"volume"`
	BuysInWindow        int          `json:"buys"`
	PriceHistory        []PricePoint `json:"priceHistory"`
	UpdatedAt           int64        `json:"updatedAt"`
}

// StatsSnapshot is the aggregate engine and risk view.
type StatsSnapshot struct {
	TotalTxs         int64            `json:"totalTxs"`
	FailedTxs        int64            `json:"failedTxs"`
	ProgramTxs       int64            `json:"pumpFunTxs"`
	BuyTxs           int64            `json:"buyTxs"`
	FilterStats      map[string]int64 `json:"filterStats"`
	OpenPositions    int              `json:"openPositions"`
	TradesTotal      int              `json:"totalTrades"`
	Wins             int              `json:"wins"`
	Losses           int              `json:"losses"`
	TotalPnLSOL      float64          `json:"totalPnL"`
	TokenTradeCounts map[string]int   `json:"tokenTradeCounts"`
	LastTradeTime    map[string]int64 `json:"lastTradeTime"`
	SolPriceUSD      float64          `json:"solPrice"`
	CooldownActive   bool             `json:"cooldownActive"`
	CooldownStart    int64            `json:"cooldownStart"`
	UpdatedAt        int64            `json:"updatedAt"`
}
