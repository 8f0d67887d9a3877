package domain

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// PositionStatus is the lifecycle stage of a position.
type PositionStatus int32

const (
	PositionPending PositionStatus = iota
	PositionOpen
	PositionClosing
	PositionClosed
)

// String returns the status name.
func (s PositionStatus) String() string {
	switch s {
	case PositionPending:
		return "PENDING"
	case PositionOpen:
		return "OPEN"
	case PositionClosing:
		return "CLOSING"
	case PositionClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Position is one entry into a token, from reservation to close.
// Status transitions are atomic; fill fields are written once by Open.
type Position struct {
	ID        string
	Mint      string
	AmountSOL float64 // committed capital
	Sequence  int     // per-token trade number, 1-based
	CreatedAt int64

	mu                sync.RWMutex
	entryPrice        float64
	entryTime         int64
	entryMarketCapUSD float64
	tokenAmount       uint64
	buySignature      string
	name              string
	symbol            string

	status atomic.Int32
}

// NewPosition creates a PENDING reservation.
func NewPosition(mint string, amountSOL float64, sequence int, now int64) *Position {
	p := &Position{
		ID:        uuid.NewString(),
		Mint:      mint,
		AmountSOL: amountSOL,
		Sequence:  sequence,
		CreatedAt: now,
	}
	p.status.Store(int32(PositionPending))
	return p
}

// EntryFill is the confirmed buy that opens a position.
type EntryFill struct {
	Price        float64
	Time         int64
	MarketCapUSD float64
	TokenAmount  uint64
	Signature    string
	Name         string
	Symbol       string
}

// Status returns the current status.
func (p *Position) Status() PositionStatus {
	return PositionStatus(p.status.Load())
}

// Open records the buy fill and moves PENDING to OPEN.
func (p *Position) Open(fill EntryFill) bool {
	p.mu.Lock()
	p.entryPrice = fill.Price
	p.entryTime = fill.Time
	p.entryMarketCapUSD = fill.MarketCapUSD
	p.tokenAmount = fill.TokenAmount
	p.buySignature = fill.Signature
	p.name = fill.Name
	p.symbol = fill.Symbol
	p.mu.Unlock()
	return p.status.CompareAndSwap(int32(PositionPending), int32(PositionOpen))
}

// Entry returns the recorded buy fill.
func (p *Position) Entry() EntryFill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return EntryFill{
		Price:        p.entryPrice,
		Time:         p.entryTime,
		MarketCapUSD: p.entryMarketCapUSD,
		TokenAmount:  p.tokenAmount,
		Signature:    p.buySignature,
		Name:         p.name,
		Symbol:       p.symbol,
	}
}

// TryBeginClose moves OPEN to CLOSING. Exactly one concurrent caller wins.
func (p *Position) TryBeginClose() bool {
	return p.status.CompareAndSwap(int32(PositionOpen), int32(PositionClosing))
}

// AbortClose returns a CLOSING position to OPEN after a failed sell.
func (p *Position) AbortClose() bool {
	return p.status.CompareAndSwap(int32(PositionClosing), int32(PositionOpen))
}

// MarkClosed finalizes a CLOSING position.
func (p *Position) MarkClosed() bool {
	return p.status.CompareAndSwap(int32(PositionClosing), int32(PositionClosed))
}

// ProfitLoss returns the fractional P/L at price, 0 before the entry fill.
func (p *Position) ProfitLoss(price float64) float64 {
	entry := p.Entry().Price
	if entry == 0 {
		return 0
	}
	return (price - entry) / entry
}
