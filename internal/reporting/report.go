package reporting

import (
	"time"

	"pumpfun-engine/internal/domain"
)

// Report is the ledger summary printed by the ledger tool.
type Report struct {
	GeneratedAt time.Time

	Summary Summary

	// Sorted by trade count DESC, then reason.
	ExitReasons []ExitReasonRow

	// Sorted by net P/L DESC, then mint.
	Tokens []TokenRow

	// Newest first.
	Recent []*domain.TradeRecord
}

// Summary aggregates the whole ledger.
type Summary struct {
	TotalTrades int
	Wins        int
	Losses      int
	WinRate     float64 // wins / total, 0 when empty

	TotalPnLSOL   float64
	AvgPnLPercent float64
	BestPnLSOL    float64
	WorstPnLSOL   float64

	// MaxDrawdownSOL is the largest peak-to-trough drop of cumulative net P/L.
	MaxDrawdownSOL       float64
	MaxConsecutiveLosses int
	AvgHoldSeconds       float64

	DateRangeStart int64 // Unix ms, first close
	DateRangeEnd   int64 // Unix ms, last close
}

// ExitReasonRow breaks trades down by exit reason.
type ExitReasonRow struct {
	Reason    domain.ExitReason
	Trades    int
	Wins      int
	NetPnLSOL float64
}

// TokenRow breaks trades down by mint.
type TokenRow struct {
	Mint      string
	Symbol    string
	Trades    int
	NetPnLSOL float64
}
