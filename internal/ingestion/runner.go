package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pumpfun-engine/internal/execution"
	"pumpfun-engine/internal/observability"
	"pumpfun-engine/internal/pumpfun"
	"pumpfun-engine/internal/solana"
)

// TxFetcher loads confirmed transactions.
type TxFetcher interface {
	GetTransaction(ctx context.Context, signature string) (*solana.Transaction, error)
}

// Applier turns buy events into snapshots.
type Applier interface {
	Apply(ctx context.Context, ev BuyEvent) (Snapshot, error)
}

// SnapshotHandler receives every snapshot that passed tracking.
type SnapshotHandler func(ctx context.Context, snap Snapshot)

// Runner streams program logs and feeds qualifying buys to the engine.
type Runner struct {
	ws          solana.WSClient
	rpc         TxFetcher
	tracker     Applier
	onSnapshot  SnapshotHandler
	program     string
	fetchPolicy execution.RetryPolicy
	workers     int
	logger      zerolog.Logger

	total   atomic.Int64
	failed  atomic.Int64
	progTx  atomic.Int64
	buys    atomic.Int64
}

// Counts are the runner's notification counters.
type Counts struct {
	Total   int64 // every notification received
	Failed  int64 // notifications of failed transactions
	Program int64 // successful program transactions
	Buys    int64 // program transactions with a buy instruction
}

// Counts returns the current counters.
func (r *Runner) Counts() Counts {
	return Counts{
		Total:   r.total.Load(),
		Failed:  r.failed.Load(),
		Program: r.progTx.Load(),
		Buys:    r.buys.Load(),
	}
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	WS          solana.WSClient
	RPC         TxFetcher
	Tracker     Applier
	OnSnapshot  SnapshotHandler
	Program     string                // Default: pump.fun program
	FetchPolicy execution.RetryPolicy // Default: execution.FetchPolicy
	Workers     int                   // Default: 16 concurrent transaction fetches
	Logger      *zerolog.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	program := opts.Program
	if program == "" {
		program = pumpfun.ProgramID.String()
	}

	policy := opts.FetchPolicy
	if policy.MaxAttempts == 0 {
		policy = execution.FetchPolicy
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 16
	}

	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Runner{
		ws:          opts.WS,
		rpc:         opts.RPC,
		tracker:     opts.Tracker,
		onSnapshot:  opts.OnSnapshot,
		program:     program,
		fetchPolicy: policy,
		workers:     workers,
		logger:      logger.With().Str("component", "ingestion").Logger(),
	}
}

// Run subscribes to program logs and blocks until ctx is cancelled or the
// feed closes. In-flight notifications finish before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	logsCh, err := r.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{r.program}})
	if err != nil {
		return fmt.Errorf("subscribe logs: %w", err)
	}
	r.logger.Info().Str("program", r.program).Int("workers", r.workers).Msg("ingestion runner started")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for {
		select {
		case <-ctx.Done():
			_ = g.Wait()
			r.logger.Info().Msg("ingestion runner stopping")
			return ctx.Err()

		case notif, ok := <-logsCh:
			if !ok {
				_ = g.Wait()
				return errors.New("logs channel closed")
			}
			r.total.Add(1)
			if notif.Err != nil {
				r.failed.Add(1)
				continue
			}
			r.progTx.Add(1)
			if !IsBuy(notif.Logs) {
				continue
			}
			r.buys.Add(1)
			observability.RecordEvent(observability.OutcomeSeen)
			g.Go(func() error {
				r.handle(gctx, notif)
				return nil
			})
		}
	}
}

// handle fetches, decodes and applies one notification.
func (r *Runner) handle(ctx context.Context, notif solana.LogNotification) {
	tx, err := r.fetchTransaction(ctx, notif.Signature)
	if err != nil {
		observability.RecordEvent(observability.OutcomeDropped)
		r.logger.Debug().Err(err).Str("sig", notif.Signature).Msg("transaction fetch failed")
		return
	}

	ev, ok := Decode(tx)
	if !ok {
		observability.RecordEvent(observability.OutcomeDropped)
		return
	}

	snap, err := r.tracker.Apply(ctx, ev)
	switch {
	case errors.Is(err, ErrPositionHeld):
		observability.RecordEvent(observability.OutcomeTracked)
		return
	case err != nil:
		observability.RecordEvent(observability.OutcomeDropped)
		r.logger.Debug().Err(err).Str("mint", ev.Mint).Msg("buy event dropped")
		return
	}

	observability.RecordEvent(observability.OutcomeProcessed)
	if r.onSnapshot != nil {
		r.onSnapshot(ctx, snap)
	}
}

// fetchTransaction retries until the node has the transaction.
func (r *Runner) fetchTransaction(ctx context.Context, sig string) (*solana.Transaction, error) {
	var tx *solana.Transaction
	err := r.fetchPolicy.Do(ctx, func(attempt int) error {
		var err error
		tx, err = r.rpc.GetTransaction(ctx, sig)
		if err != nil {
			return err
		}
		if tx == nil {
			return fmt.Errorf("transaction %s not visible yet", sig)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tx, nil
}
