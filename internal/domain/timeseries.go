package domain

import "pumpfun-engine/internal/idhash"

// Price tick sources.
const (
	TickSourceIngestion = "ingestion" // curve read after a qualifying buy
	TickSourcePoll      = "poll"      // lifecycle price poll of a held mint
)

// PriceTick is one authoritative curve price sample.
// Corresponds to the price_ticks table in ClickHouse.
type PriceTick struct {
	TickID               string  // deterministic hash of mint|source|timestamp
	Mint                 string  // token mint address
	Source               string  // ingestion or poll
	TimestampMs          int64   // Unix timestamp in milliseconds
	Price                float64 // SOL per token
	MarketCapSOL         float64 // curve-implied market cap
	VirtualSolReserves   uint64  // lamports
	VirtualTokenReserves uint64  // raw token units
}

// NewPriceTick samples the curve fields of t.
func NewPriceTick(source string, t TokenState) PriceTick {
	return PriceTick{
		TickID:               idhash.ComputeTickID(t.Mint, source, t.UpdatedAt),
		Mint:                 t.Mint,
		Source:               source,
		TimestampMs:          t.UpdatedAt,
		Price:                t.Price,
		MarketCapSOL:         t.MarketCapSOL,
		VirtualSolReserves:   t.VirtualSolReserves,
		VirtualTokenReserves: t.VirtualTokenReserves,
	}
}
