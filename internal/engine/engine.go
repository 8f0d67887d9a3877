package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"pumpfun-engine/internal/config"
	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/execution"
	"pumpfun-engine/internal/ingestion"
	"pumpfun-engine/internal/lifecycle"
	"pumpfun-engine/internal/observability"
	"pumpfun-engine/internal/pumpfun"
	"pumpfun-engine/internal/risk"
	"pumpfun-engine/internal/signal"
	"pumpfun-engine/internal/storage"
)

// DefaultPublishInterval is the snapshot publishing period.
const DefaultPublishInterval = 500 * time.Millisecond

// Filter is the entry check pipeline.
type Filter interface {
	EvaluateLocal(snap ingestion.Snapshot, cfg *config.Strategy) signal.Decision
	EvaluateOracles(ctx context.Context, snap ingestion.Snapshot, cfg *config.Strategy) signal.Decision
	Stats() *signal.Stats
}

// Risk is the capital and per-token gate.
type Risk interface {
	lifecycle.RiskRecorder
	CanEnter(mint string, now int64, cfg *config.Strategy) error
	Reserve(mint string, now int64) (int, error)
	Release(mint string)
	Snapshot() risk.Snapshot
	Restore(realized decimal.Decimal, wins, losses int)
}

// Trader submits buys and sells.
type Trader interface {
	lifecycle.Seller
	Buy(ctx context.Context, req execution.BuyRequest) (execution.Fill, error)
}

// CounterSource exposes the ingestion counters.
type CounterSource interface {
	Counts() ingestion.Counts
}

// Options configures an Engine.
type Options struct {
	Registry *Registry
	Config   config.Source
	Filter   Filter
	Risk     Risk
	Trader   Trader
	Curves   lifecycle.CurveReader
	Ledger   lifecycle.Ledger
	SolPrice lifecycle.PriceSource

	Stats     storage.StatsSnapshotStore // optional
	Publisher storage.SnapshotPublisher  // optional
	Ticks     lifecycle.TickRecorder     // optional
	Counters  CounterSource              // optional

	PublishInterval  time.Duration // Default: 500ms
	PollInterval     time.Duration // Default: lifecycle default
	DecisionInterval time.Duration // Default: lifecycle default
	Now              func() time.Time
	Logger           *zerolog.Logger
}

// Engine turns qualifying snapshots into supervised positions.
type Engine struct {
	registry  *Registry
	cfg       config.Source
	filter    Filter
	risk      Risk
	trader    Trader
	sol       lifecycle.PriceSource
	stats     storage.StatsSnapshotStore
	publisher storage.SnapshotPublisher
	ticks     lifecycle.TickRecorder
	counters  CounterSource
	sup       *lifecycle.Supervisor

	interval time.Duration
	kick     chan struct{}
	now      func() time.Time
	logger   zerolog.Logger
}

// New creates an Engine and its position supervisor.
func New(opts Options) *Engine {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	interval := opts.PublishInterval
	if interval <= 0 {
		interval = DefaultPublishInterval
	}
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	e := &Engine{
		registry:  registry,
		cfg:       opts.Config,
		filter:    opts.Filter,
		risk:      opts.Risk,
		trader:    opts.Trader,
		sol:       opts.SolPrice,
		stats:     opts.Stats,
		publisher: opts.Publisher,
		ticks:     opts.Ticks,
		counters:  opts.Counters,
		interval:  interval,
		kick:      make(chan struct{}, 1),
		now:       now,
		logger:    logger.With().Str("component", "engine").Logger(),
	}
	e.sup = lifecycle.NewSupervisor(lifecycle.SupervisorOptions{
		Tokens:           registry,
		Curves:           opts.Curves,
		Seller:           opts.Trader,
		Ledger:           opts.Ledger,
		Risk:             opts.Risk,
		Config:           opts.Config,
		SolPrice:         opts.SolPrice,
		Ticks:            opts.Ticks,
		OnClose:          e.onClose,
		PollInterval:     opts.PollInterval,
		DecisionInterval: opts.DecisionInterval,
		Now:              now,
		Logger:           opts.Logger,
	})
	return e
}

// Registry returns the shared registry.
func (e *Engine) Registry() *Registry { return e.registry }

// Supervisor returns the position supervisor.
func (e *Engine) Supervisor() *lifecycle.Supervisor { return e.sup }

// Evaluate runs one snapshot through the entry pipeline: local checks, risk
// pre-check, oracle checks, reservation, buy, then supervision. Every failure
// after the reservation releases it.
func (e *Engine) Evaluate(ctx context.Context, snap ingestion.Snapshot) {
	if e.ticks != nil {
		e.ticks.Record(domain.NewPriceTick(domain.TickSourceIngestion, snap.Token))
	}

	cfg := e.cfg.Current()
	mint := snap.Token.Mint
	if d := e.filter.EvaluateLocal(snap, cfg); !d.Pass {
		return
	}

	if err := e.risk.CanEnter(mint, e.now().UnixMilli(), cfg); err != nil {
		e.filter.Stats().Reject(risk.CheckFor(err))
		return
	}

	if d := e.filter.EvaluateOracles(ctx, snap, cfg); !d.Pass {
		last, _ := d.Last()
		e.logger.Debug().Str("mint", mint).Str("check", string(d.Failed)).Str("actual", last.Actual).Msg("oracle rejection")
		return
	}

	if err := e.enter(ctx, snap, cfg); err != nil {
		e.logger.Warn().Err(err).Str("mint", mint).Msg("entry failed")
	}
}

func (e *Engine) enter(ctx context.Context, snap ingestion.Snapshot, cfg *config.Strategy) error {
	mint := snap.Token.Mint
	key, err := pumpfun.ParsePublicKey(mint)
	if err != nil {
		return err
	}

	now := e.now().UnixMilli()
	seq, err := e.risk.Reserve(mint, now)
	if err != nil {
		e.filter.Stats().Reject(risk.CheckFor(err))
		return nil
	}

	pos := domain.NewPosition(mint, cfg.TradeAmount, seq, now)
	if err := e.registry.AddPosition(pos); err != nil {
		e.risk.Release(mint)
		return err
	}

	e.logger.Info().
		Str("mint", mint).
		Str("symbol", snap.Token.Symbol).
		Float64("mc_sol", snap.Token.MarketCapSOL).
		Float64("pump_pct", snap.Token.PumpPercent()).
		Float64("volume_usd", snap.CurrentVolumeUSD).
		Int("seq", seq).
		Msg("entry signal")

	fill, err := e.trader.Buy(context.WithoutCancel(ctx), execution.BuyRequest{
		Mint:      key,
		AmountSOL: cfg.TradeAmount,
		Curve:     snap.Token.Curve(),
	})
	if err != nil {
		e.registry.RemovePosition(pos)
		e.risk.Release(mint)
		return fmt.Errorf("buy: %w", err)
	}

	price := fill.Price
	if price <= 0 {
		price = snap.Token.Price
	}
	entryTime := fill.Timestamp
	if entryTime == 0 {
		entryTime = e.now().UnixMilli()
	}
	pos.Open(domain.EntryFill{
		Price:        price,
		Time:         entryTime,
		MarketCapUSD: price * pumpfun.TokenSupply * e.sol.Price(),
		TokenAmount:  fill.TokenAmount,
		Signature:    fill.Signature,
		Name:         snap.Token.Name,
		Symbol:       snap.Token.Symbol,
	})

	// The position is live on chain from here; supervise it past ctx.
	if err := e.sup.Spawn(context.WithoutCancel(ctx), pos); err != nil {
		e.logger.Error().Err(err).Str("mint", mint).Msg("supervision failed, liquidating")
		if lerr := e.sup.Liquidate(ctx, pos, domain.ExitUnsupervised); lerr != nil {
			// Unaccounted balances are left to the sweeper.
			e.registry.RemovePosition(pos)
			e.risk.Release(mint)
			return fmt.Errorf("supervise: %w; liquidate: %w", err, lerr)
		}
		return fmt.Errorf("supervise: %w", err)
	}
	e.logger.Info().Str("mint", mint).Float64("price", price).Str("sig", fill.Signature).Msg("position opened")
	e.requestPublish()
	return nil
}

// onClose runs after the supervisor recorded a close.
func (e *Engine) onClose(ctx context.Context, rec *domain.TradeRecord, triggered bool) {
	if pos, ok := e.registry.Position(rec.Mint); ok && pos.Status() == domain.PositionClosed {
		e.registry.RemovePosition(pos)
	}

	if triggered {
		n := e.sup.ForceCloseProfitable(ctx, domain.ExitProfitCap)
		e.logger.Warn().Int("closed", n).Msg("profit cap reached, cooldown active")
	}

	if e.stats != nil {
		if err := e.stats.Save(ctx, e.Stats(e.now().UnixMilli())); err != nil {
			e.logger.Error().Err(err).Msg("save stats snapshot")
		}
	}
	e.requestPublish()
}

// RestoreFromLedger seeds the risk totals from recorded trades.
func (e *Engine) RestoreFromLedger(ctx context.Context, ledger storage.TradeRecordStore) error {
	trades, err := ledger.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	realized := decimal.Zero
	var wins, losses int
	for _, t := range trades {
		realized = realized.Add(decimal.NewFromFloat(t.NetPnLSOL))
		if t.Win {
			wins++
		} else {
			losses++
		}
	}
	e.risk.Restore(realized, wins, losses)
	e.logger.Info().Int("trades", len(trades)).Str("realized_sol", realized.StringFixed(4)).Msg("risk restored from ledger")
	return nil
}

// Stats builds the aggregate stats snapshot.
func (e *Engine) Stats(now int64) *domain.StatsSnapshot {
	rs := e.risk.Snapshot()
	var c ingestion.Counts
	if e.counters != nil {
		c = e.counters.Counts()
	}
	return &domain.StatsSnapshot{
		TotalTxs:         c.Total,
		FailedTxs:        c.Failed,
		ProgramTxs:       c.Program,
		BuyTxs:           c.Buys,
		FilterStats:      e.filter.Stats().Snapshot(),
		OpenPositions:    rs.Open,
		TradesTotal:      rs.Total(),
		Wins:             rs.Wins,
		Losses:           rs.Losses,
		TotalPnLSOL:      rs.RealizedPnLSOL.InexactFloat64(),
		TokenTradeCounts: rs.TokenCounts,
		LastTradeTime:    rs.LastTradeTime,
		SolPriceUSD:      e.sol.Price(),
		CooldownActive:   rs.CooldownActive,
		CooldownStart:    rs.CooldownStart,
		UpdatedAt:        now,
	}
}

func (e *Engine) requestPublish() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Publish pushes the current position and stats snapshots.
func (e *Engine) Publish(ctx context.Context) {
	if e.publisher == nil {
		return
	}
	now := e.now().UnixMilli()
	if err := e.publisher.PublishPositions(ctx, e.sup.Snapshots(now)); err != nil {
		observability.RecordSnapshotFailure("positions")
		e.logger.Debug().Err(err).Msg("publish positions")
	}
	if err := e.publisher.PublishStats(ctx, e.Stats(now)); err != nil {
		observability.RecordSnapshotFailure("stats")
		e.logger.Debug().Err(err).Msg("publish stats")
	}
}

// Run publishes snapshots every interval and after every open or close
// until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-e.kick:
		}
		e.Publish(ctx)
	}
}

// Shutdown stops every position task, then flushes a final snapshot.
// Positions stay open on chain.
func (e *Engine) Shutdown(ctx context.Context) error {
	open := len(e.registry.Positions())
	err := e.sup.Shutdown(ctx)

	flushCtx := context.WithoutCancel(ctx)
	e.Publish(flushCtx)
	if e.stats != nil {
		if serr := e.stats.Save(flushCtx, e.Stats(e.now().UnixMilli())); serr != nil {
			e.logger.Error().Err(serr).Msg("save final stats snapshot")
		}
	}
	e.logger.Info().Int("open_positions", open).Msg("engine stopped")
	return err
}
