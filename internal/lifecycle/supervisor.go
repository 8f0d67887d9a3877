package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pumpfun-engine/internal/config"
	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/execution"
	"pumpfun-engine/internal/idhash"
	"pumpfun-engine/internal/pumpfun"
)

// Default tick intervals.
const (
	DefaultPollInterval     = 300 * time.Millisecond
	DefaultDecisionInterval = 100 * time.Millisecond
	DefaultSellRetryDelay   = 2 * time.Second

	priceHistoryLen = 30
	// snapshotFeeReserveSOL is deducted from unrealized P/L in snapshots to
	// approximate round-trip costs.
	snapshotFeeReserveSOL = 0.024
)

// ErrAlreadySupervised is returned when a mint already has a running task.
var ErrAlreadySupervised = errors.New("position already supervised")

// TokenStore is the shared token state.
type TokenStore interface {
	Token(mint string) (domain.TokenState, bool)
	UpdateToken(mint string, fn func(*domain.TokenState)) domain.TokenState
}

// CurveReader fetches authoritative curve state.
type CurveReader interface {
	FetchState(ctx context.Context, mint pumpfun.PublicKey) (pumpfun.CurveState, error)
}

// Seller liquidates a position.
type Seller interface {
	Sell(ctx context.Context, req execution.SellRequest) (execution.Fill, error)
}

// Ledger appends closed trades.
type Ledger interface {
	Insert(ctx context.Context, t *domain.TradeRecord) error
}

// RiskRecorder is the part of the risk controller a close touches.
type RiskRecorder interface {
	RecordClose(mint string, netPnL float64, win bool, now int64) bool
	ProfitCapActive(now int64) bool
}

// PriceSource yields the SOL/USD price.
type PriceSource interface {
	Price() float64
}

// TickRecorder accepts price samples without blocking.
type TickRecorder interface {
	Record(tick domain.PriceTick)
}

// CloseFunc runs after a position is closed and recorded. triggered reports
// whether the close activated the profit-cap cooldown.
type CloseFunc func(ctx context.Context, rec *domain.TradeRecord, triggered bool)

// SupervisorOptions configures a Supervisor.
type SupervisorOptions struct {
	Tokens   TokenStore
	Curves   CurveReader
	Seller   Seller
	Ledger   Ledger
	Risk     RiskRecorder
	Config   config.Source
	SolPrice PriceSource
	Ticks    TickRecorder // optional
	OnClose  CloseFunc    // optional

	PollInterval     time.Duration
	DecisionInterval time.Duration
	SellRetryDelay   time.Duration // wait after an abandoned sell before exit rules fire again
	Now              func() time.Time
	Logger           *zerolog.Logger
}

// Supervisor runs one task per open position.
type Supervisor struct {
	opts   SupervisorOptions
	logger zerolog.Logger

	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
}

type task struct {
	pos    *domain.Position
	key    pumpfun.PublicKey
	cancel context.CancelFunc

	mu       sync.Mutex
	tracker  Tracker
	history  []domain.PricePoint
	lastPoll int64
	retryAt  int64 // Unix ms before which exit rules do not sell again
}

func (t *task) sellDue(now int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return now >= t.retryAt
}

// NewSupervisor creates a Supervisor.
func NewSupervisor(opts SupervisorOptions) *Supervisor {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.DecisionInterval <= 0 {
		opts.DecisionInterval = DefaultDecisionInterval
	}
	if opts.SellRetryDelay <= 0 {
		opts.SellRetryDelay = DefaultSellRetryDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Supervisor{
		opts:   opts,
		logger: logger.With().Str("component", "lifecycle").Logger(),
		tasks:  make(map[string]*task),
	}
}

// Spawn starts supervising an OPEN position until it closes or ctx ends.
func (s *Supervisor) Spawn(ctx context.Context, pos *domain.Position) error {
	key, err := pumpfun.ParsePublicKey(pos.Mint)
	if err != nil {
		return err
	}
	if pos.Status() != domain.PositionOpen {
		return fmt.Errorf("spawn %s: position is %s", pos.Mint, pos.Status())
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{
		pos:     pos,
		key:     key,
		cancel:  cancel,
		tracker: NewTracker(pos.Entry().Price),
	}

	s.mu.Lock()
	if _, exists := s.tasks[pos.Mint]; exists {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("%w: %s", ErrAlreadySupervised, pos.Mint)
	}
	s.tasks[pos.Mint] = t
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.remove(t)
		defer cancel()

		g, gctx := errgroup.WithContext(taskCtx)
		g.Go(func() error {
			s.pollLoop(gctx, t)
			return nil
		})
		g.Go(func() error {
			s.decideLoop(gctx, t)
			return nil
		})
		_ = g.Wait()
	}()

	s.logger.Info().Str("mint", pos.Mint).Str("position", pos.ID).Msg("supervising position")
	return nil
}

func (s *Supervisor) remove(t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[t.pos.Mint] == t {
		delete(s.tasks, t.pos.Mint)
	}
}

// Len returns the number of running tasks.
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Supervisor) running() []*task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].pos.Mint < out[j].pos.Mint })
	return out
}

func (s *Supervisor) pollLoop(ctx context.Context, t *task) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	s.pollOnce(ctx, t)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollOnce(ctx, t)
		}
	}
}

// pollOnce refreshes the token from its curve. One attempt per tick.
func (s *Supervisor) pollOnce(ctx context.Context, t *task) {
	cs, err := s.opts.Curves.FetchState(ctx, t.key)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Debug().Err(err).Str("mint", t.pos.Mint).Msg("price poll failed")
		}
		return
	}

	now := s.opts.Now().UnixMilli()
	state := s.opts.Tokens.UpdateToken(t.pos.Mint, func(ts *domain.TokenState) {
		ts.ApplyCurve(cs, now)
		ts.PruneWindows(now)
	})

	t.mu.Lock()
	t.lastPoll = now
	t.history = append(t.history, domain.PricePoint{Timestamp: now, Price: state.Price})
	if len(t.history) > priceHistoryLen {
		t.history = t.history[len(t.history)-priceHistoryLen:]
	}
	t.mu.Unlock()

	if s.opts.Ticks != nil {
		s.opts.Ticks.Record(domain.NewPriceTick(domain.TickSourcePoll, state))
	}

	if s.opts.Risk.ProfitCapActive(now) && t.pos.ProfitLoss(state.Price) > 0 && t.sellDue(now) {
		s.Close(ctx, t.pos.Mint, domain.ExitProfitCap, true)
	}
}

func (s *Supervisor) decideLoop(ctx context.Context, t *task) {
	ticker := time.NewTicker(s.opts.DecisionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !t.sellDue(s.opts.Now().UnixMilli()) {
				continue
			}
			if exit := s.decide(t); exit.Triggered() {
				s.Close(ctx, t.pos.Mint, exit.Reason, exit.Win)
			}
		}
	}
}

// decide reads the latest committed token state for every tick.
func (s *Supervisor) decide(t *task) Exit {
	if t.pos.Status() != domain.PositionOpen {
		return Exit{}
	}
	state, ok := s.opts.Tokens.Token(t.pos.Mint)
	if !ok || state.Price <= 0 {
		return Exit{}
	}
	entry := t.pos.Entry()

	t.mu.Lock()
	defer t.mu.Unlock()
	exit, tr := Evaluate(t.tracker, Tick{
		Price:      state.Price,
		EntryPrice: entry.Price,
		EntryTime:  entry.Time,
		Now:        s.opts.Now().UnixMilli(),
	}, s.opts.Config.Current())
	t.tracker = tr
	return exit
}

// Close sells and records the position of mint. Exactly one concurrent
// caller proceeds; the others return false. An abandoned sell returns the
// position to OPEN and exit rules wait SellRetryDelay before trying again.
// A wallet with nothing left to sell closes the position at the last known
// price. The sell itself is not cancelled by ctx.
func (s *Supervisor) Close(ctx context.Context, mint string, reason domain.ExitReason, win bool) bool {
	s.mu.Lock()
	t, ok := s.tasks[mint]
	s.mu.Unlock()
	if !ok || !t.pos.TryBeginClose() {
		return false
	}
	return s.finish(ctx, t, reason, win)
}

// Liquidate sells an OPEN position that has no task, such as one whose
// supervision could not start, and records it like any other close. On a
// failed sell the position is back to OPEN and the error is returned.
func (s *Supervisor) Liquidate(ctx context.Context, pos *domain.Position, reason domain.ExitReason) error {
	key, err := pumpfun.ParsePublicKey(pos.Mint)
	if err != nil {
		return err
	}
	if !pos.TryBeginClose() {
		return fmt.Errorf("liquidate %s: position is %s", pos.Mint, pos.Status())
	}
	t := &task{pos: pos, key: key, cancel: func() {}}
	if !s.finish(ctx, t, reason, false) {
		return fmt.Errorf("liquidate %s: sell failed", pos.Mint)
	}
	return nil
}

// finish sells a CLOSING position and records the result.
func (s *Supervisor) finish(ctx context.Context, t *task, reason domain.ExitReason, win bool) bool {
	mint := t.pos.Mint
	ctx = context.WithoutCancel(ctx)
	log := s.logger.With().Str("mint", mint).Str("reason", string(reason)).Logger()

	fill, err := s.opts.Seller.Sell(ctx, execution.SellRequest{Mint: t.key})
	switch {
	case errors.Is(err, execution.ErrNothingToSell):
		log.Warn().Err(err).Msg("no balance left, closing at last price")
		fill = execution.Fill{}
	case err != nil:
		t.mu.Lock()
		t.retryAt = s.opts.Now().Add(s.opts.SellRetryDelay).UnixMilli()
		t.mu.Unlock()
		t.pos.AbortClose()
		log.Error().Err(err).Dur("retry_in", s.opts.SellRetryDelay).Msg("sell failed, position stays open")
		return false
	}

	now := s.opts.Now().UnixMilli()
	state, _ := s.opts.Tokens.Token(mint)
	rec := s.record(t, state, fill, reason, win, now)

	if err := s.opts.Ledger.Insert(ctx, rec); err != nil {
		log.Error().Err(err).Str("trade_id", rec.TradeID).Msg("append trade record")
	}
	triggered := s.opts.Risk.RecordClose(mint, rec.NetPnLSOL, win, now)
	t.pos.MarkClosed()
	t.cancel()

	log.Info().
		Float64("pnl_pct", rec.PnLPercent).
		Float64("net_sol", rec.NetPnLSOL).
		Int64("held_s", rec.HoldSeconds).
		Str("sig", rec.SellSignature).
		Msg("position closed")

	if s.opts.OnClose != nil {
		s.opts.OnClose(ctx, rec, triggered)
	}
	return true
}

// record builds the ledger entry from the realized sell price.
func (s *Supervisor) record(t *task, state domain.TokenState, fill execution.Fill, reason domain.ExitReason, win bool, now int64) *domain.TradeRecord {
	entry := t.pos.Entry()
	exitPrice := fill.Price
	if exitPrice == 0 {
		exitPrice = state.Price
	}
	var pl float64
	if entry.Price > 0 {
		pl = (exitPrice - entry.Price) / entry.Price
	}

	name, symbol := entry.Name, entry.Symbol
	if name == "" {
		name, symbol = state.Name, state.Symbol
	}

	t.mu.Lock()
	lastPoll := t.lastPoll
	t.mu.Unlock()

	return &domain.TradeRecord{
		TradeID:           idhash.ComputeTradeID(t.pos.Mint, t.pos.Sequence, entry.Time),
		Mint:              t.pos.Mint,
		Name:              name,
		Symbol:            symbol,
		EntryPrice:        entry.Price,
		ExitPrice:         exitPrice,
		EntryMarketCapUSD: entry.MarketCapUSD,
		ExitMarketCapUSD:  exitPrice * pumpfun.TokenSupply * s.opts.SolPrice.Price(),
		PnLPercent:        pl * 100,
		NetPnLSOL:         pl * t.pos.AmountSOL,
		FeesSOL:           fill.FeeSOL,
		HoldSeconds:       (now - entry.Time) / 1000,
		ExitReason:        reason,
		Win:               win,
		AmountSOL:         t.pos.AmountSOL,
		TradeSequence:     t.pos.Sequence,
		VolumeSOL:         state.VolumeSOL(),
		BuysInWindow:      len(state.Buys),
		LastPriceUpdate:   lastPoll,
		SellSignature:     fill.Signature,
		EntryTime:         entry.Time,
		ClosedAt:          now,
	}
}

// ForceCloseProfitable closes every open position currently in profit, in
// parallel, and returns how many closed.
func (s *Supervisor) ForceCloseProfitable(ctx context.Context, reason domain.ExitReason) int {
	var (
		g      errgroup.Group
		closed atomic.Int32
	)
	for _, t := range s.running() {
		state, ok := s.opts.Tokens.Token(t.pos.Mint)
		if !ok || t.pos.Status() != domain.PositionOpen || t.pos.ProfitLoss(state.Price) <= 0 {
			continue
		}
		mint := t.pos.Mint
		g.Go(func() error {
			if s.Close(ctx, mint, reason, true) {
				closed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(closed.Load())
}

// Shutdown stops every task and waits for them, including sells already in
// flight, until ctx ends.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	for _, t := range s.running() {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshots returns the unrealized view of every supervised position.
func (s *Supervisor) Snapshots(now int64) []domain.PositionSnapshot {
	cfg := s.opts.Config.Current()
	sol := s.opts.SolPrice.Price()
	maxHold := cfg.MaxHoldTimeMs / 1000

	tasks := s.running()
	out := make([]domain.PositionSnapshot, 0, len(tasks))
	for _, t := range tasks {
		entry := t.pos.Entry()
		state, _ := s.opts.Tokens.Token(t.pos.Mint)
		price := state.Price
		if price <= 0 {
			price = entry.Price
		}
		pl := t.pos.ProfitLoss(price)
		held := (now - entry.Time) / 1000
		remaining := max(maxHold-held, 0)

		name, symbol := entry.Name, entry.Symbol
		if name == "" {
			name, symbol = state.Name, state.Symbol
		}

		t.mu.Lock()
		history := append([]domain.PricePoint(nil), t.history...)
		t.mu.Unlock()

		out = append(out, domain.PositionSnapshot{
			PositionID:          t.pos.ID,
			Mint:                t.pos.Mint,
			Name:                name,
			Symbol:              symbol,
			Status:              t.pos.Status().String(),
			EntryPrice:          entry.Price,
			CurrentPrice:        price,
			EntryMarketCapUSD:   entry.MarketCapUSD,
			CurrentMarketCapUSD: price * pumpfun.TokenSupply * sol,
			PnLPercent:          pl * 100,
			NetPnLSOL:           pl*t.pos.AmountSOL - snapshotFeeReserveSOL,
			AmountSOL:           t.pos.AmountSOL,
			HeldSeconds:         held,
			RemainingSeconds:    remaining,
			Hint:                Hint(pl, remaining, cfg),
			VolumeSOL:           state.VolumeSOL(),
			BuysInWindow:        len(state.Buys),
			PriceHistory:        history,
			UpdatedAt:           now,
		})
	}
	return out
}
