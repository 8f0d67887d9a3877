// Package risk enforces the capital ceiling and per-token entry limits.
package risk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"pumpfun-engine/internal/config"
	"pumpfun-engine/internal/observability"
	"pumpfun-engine/internal/signal"
)

// Entry rejections.
var (
	ErrMaxTrades    = errors.New("open position ceiling reached")
	ErrPositionOpen = errors.New("position already open for mint")
	ErrTokenLimit   = errors.New("per-token trade limit reached")
	ErrMintCooldown = errors.New("mint cooldown active")
	ErrProfitCap    = errors.New("profit cap cooldown active")
)

// CheckFor maps an entry rejection to its taxonomy category.
func CheckFor(err error) signal.Check {
	switch {
	case errors.Is(err, ErrMaxTrades), errors.Is(err, ErrTokenLimit):
		return signal.CheckMaxTrades
	case errors.Is(err, ErrPositionOpen):
		return signal.CheckPosition
	case errors.Is(err, ErrMintCooldown):
		return signal.CheckCooldown
	case errors.Is(err, ErrProfitCap):
		return signal.CheckProfitCap
	default:
		return ""
	}
}

// Controller holds the risk state. All methods are safe for concurrent use.
type Controller struct {
	cfg config.Source

	mu        sync.Mutex
	open      int             // reserved plus open positions
	slots     map[string]bool // mints holding a slot
	counts    map[string]int
	lastTrade map[string]int64 // Unix ms

	realized decimal.Decimal
	wins     int
	losses   int

	cooldownActive bool
	cooldownStart  int64           // Unix ms
	cooldownBase   decimal.Decimal // realized P/L when the last cooldown began
}

// NewController creates an empty controller.
func NewController(cfg config.Source) *Controller {
	return &Controller{
		cfg:       cfg,
		slots:     make(map[string]bool),
		counts:    make(map[string]int),
		lastTrade: make(map[string]int64),
	}
}

// CanEnter reports whether mint may be entered at now. It does not reserve.
func (c *Controller) CanEnter(mint string, now int64, cfg *config.Strategy) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.check(mint, now, cfg)
}

func (c *Controller) check(mint string, now int64, cfg *config.Strategy) error {
	if c.open >= cfg.MaxTrades {
		return fmt.Errorf("%w: %d/%d", ErrMaxTrades, c.open, cfg.MaxTrades)
	}
	if c.slots[mint] {
		return ErrPositionOpen
	}
	if n := c.counts[mint]; n >= cfg.MaxTradesPerToken {
		return fmt.Errorf("%w: %d/%d", ErrTokenLimit, n, cfg.MaxTradesPerToken)
	}
	if last, ok := c.lastTrade[mint]; ok && now-last < cfg.TradeCooldownMs {
		return fmt.Errorf("%w: %ds remaining", ErrMintCooldown, (cfg.TradeCooldownMs-(now-last))/1000)
	}
	if c.profitCapActive(now, cfg) {
		return ErrProfitCap
	}
	return nil
}

// Reserve re-checks and atomically takes a slot for mint. It returns the
// per-token trade sequence number of the new position.
func (c *Controller) Reserve(mint string, now int64) (int, error) {
	cfg := c.cfg.Current()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(mint, now, cfg); err != nil {
		return 0, err
	}
	c.open++
	c.slots[mint] = true
	c.counts[mint]++
	c.lastTrade[mint] = now
	observability.SetOpenPositions(c.open)
	return c.counts[mint], nil
}

// Release frees the slot after a failed buy. The trade count and cooldown
// stay in effect.
func (c *Controller) Release(mint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.free(mint)
}

func (c *Controller) free(mint string) {
	if !c.slots[mint] {
		return
	}
	delete(c.slots, mint)
	c.open--
	observability.SetOpenPositions(c.open)
}

// RecordClose frees mint's slot and books the result. triggered is true when
// this close activated the profit-cap cooldown. The cap is measured against
// realized P/L booked since the previous activation, not the session total,
// so each cooldown requires a fresh TradeCooldownProfitCap of profit.
func (c *Controller) RecordClose(mint string, netPnL float64, win bool, now int64) (triggered bool) {
	cfg := c.cfg.Current()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.free(mint)

	c.realized = c.realized.Add(decimal.NewFromFloat(netPnL))
	if win {
		c.wins++
	} else {
		c.losses++
	}
	observability.SetRealizedPnL(c.realized.InexactFloat64())

	if !cfg.TradeCooldownEnabled || c.profitCapActive(now, cfg) {
		return false
	}
	limit := decimal.NewFromFloat(cfg.TradeCooldownProfitCap)
	if c.realized.Sub(c.cooldownBase).GreaterThanOrEqual(limit) {
		c.cooldownActive = true
		c.cooldownStart = now
		c.cooldownBase = c.realized
		return true
	}
	return false
}

// ProfitCapActive reports whether the profit-cap cooldown is in effect.
func (c *Controller) ProfitCapActive(now int64) bool {
	cfg := c.cfg.Current()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profitCapActive(now, cfg)
}

// profitCapActive expires the cooldown once its duration has elapsed.
func (c *Controller) profitCapActive(now int64, cfg *config.Strategy) bool {
	if !c.cooldownActive {
		return false
	}
	if now-c.cooldownStart >= cfg.ProfitCapDuration().Milliseconds() {
		c.cooldownActive = false
		c.cooldownStart = 0
		return false
	}
	return true
}

// Snapshot is a copy of the risk state.
type Snapshot struct {
	Open           int
	TokenCounts    map[string]int
	LastTradeTime  map[string]int64
	RealizedPnLSOL decimal.Decimal
	Wins           int
	Losses         int
	CooldownActive bool
	CooldownStart  int64
}

// Total is the number of closed trades.
func (s Snapshot) Total() int { return s.Wins + s.Losses }

// Snapshot copies the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		Open:           c.open,
		TokenCounts:    make(map[string]int, len(c.counts)),
		LastTradeTime:  make(map[string]int64, len(c.lastTrade)),
		RealizedPnLSOL: c.realized,
		Wins:           c.wins,
		Losses:         c.losses,
		CooldownActive: c.cooldownActive,
		CooldownStart:  c.cooldownStart,
	}
	for k, v := range c.counts {
		s.TokenCounts[k] = v
	}
	for k, v := range c.lastTrade {
		s.LastTradeTime[k] = v
	}
	return s
}

// Restore seeds closed-trade totals, e.g. from the ledger after a restart.
func (c *Controller) Restore(realized decimal.Decimal, wins, losses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.realized = realized
	c.cooldownBase = realized
	c.wins = wins
	c.losses = losses
	observability.SetRealizedPnL(realized.InexactFloat64())
}
