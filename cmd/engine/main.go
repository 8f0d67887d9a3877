package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pumpfun-engine/internal/config"
	"pumpfun-engine/internal/curve"
	"pumpfun-engine/internal/engine"
	"pumpfun-engine/internal/execution"
	"pumpfun-engine/internal/ingestion"
	"pumpfun-engine/internal/observability"
	"pumpfun-engine/internal/oracle"
	"pumpfun-engine/internal/reporting"
	entry "pumpfun-engine/internal/signal"
	"pumpfun-engine/internal/risk"
	"pumpfun-engine/internal/solana"
)

type options struct {
	configPath      string
	configWatch     time.Duration
	rpcURL          string
	wsURL           string
	postgresDSN     string
	clickhouseDSN   string
	redisAddr       string
	sqlitePath      string
	useMemory       bool
	metricsAddr     string
	consoleInterval time.Duration
	ledgerKeep      int
}

func main() {
	var opts options
	envFile := flag.String("env-file", ".env", "Dotenv file with secrets and endpoints")
	flag.StringVar(&opts.configPath, "config", "configs/strategy.yaml", "Strategy document (.yaml, .json or .toml)")
	flag.DurationVar(&opts.configWatch, "config-watch", 2*time.Second, "Strategy file poll interval (0 to disable reload)")
	flag.StringVar(&opts.rpcURL, "rpc-url", "", "Solana RPC HTTP endpoint (overrides RPC_URL)")
	flag.StringVar(&opts.wsURL, "ws-url", "", "Solana WebSocket endpoint (overrides WS_URL)")
	flag.StringVar(&opts.postgresDSN, "postgres-dsn", "", "PostgreSQL ledger DSN (overrides POSTGRES_DSN)")
	flag.StringVar(&opts.clickhouseDSN, "clickhouse-dsn", "", "ClickHouse price tick DSN (overrides CLICKHOUSE_DSN)")
	flag.StringVar(&opts.redisAddr, "redis-addr", "", "Redis snapshot publisher address (overrides REDIS_ADDR)")
	flag.StringVar(&opts.sqlitePath, "sqlite-path", "", "SQLite ledger file (overrides SQLITE_PATH)")
	flag.BoolVar(&opts.useMemory, "use-memory", false, "Use in-memory storage for everything")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	flag.DurationVar(&opts.consoleInterval, "console-interval", reporting.DefaultConsoleInterval, "Console stats period (0 to disable)")
	flag.IntVar(&opts.ledgerKeep, "ledger-keep", 1000, "Trades kept in the ledger at startup (0 to keep all)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	logger := newLogger(*logLevel)

	env := config.LoadEnv(*envFile)
	overrideEnv(&env, opts)
	if err := env.ValidateTrading(); err != nil {
		logger.Fatal().Err(err).Msg("invalid environment")
	}

	provider, err := config.NewProvider(opts.configPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("path", opts.configPath).Msg("load strategy config")
	}

	if opts.metricsAddr != "" {
		go serveMetrics(opts.metricsAddr, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, logger, env, provider, opts)

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("engine stopped")
	}
	logger.Info().Msg("shutdown complete")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("component", "engine").Logger()
}

func overrideEnv(env *config.Env, opts options) {
	for dst, v := range map[*string]string{
		&env.RPCURL:        opts.rpcURL,
		&env.WSURL:         opts.wsURL,
		&env.PostgresDSN:   opts.postgresDSN,
		&env.ClickhouseDSN: opts.clickhouseDSN,
		&env.RedisAddr:     opts.redisAddr,
		&env.SQLitePath:    opts.sqlitePath,
	} {
		if v != "" {
			*dst = v
		}
	}
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Info().Str("addr", addr).Msg("starting metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

// run wires the engine and blocks until ctx is cancelled or a component
// fails, then shuts down.
func run(ctx context.Context, logger zerolog.Logger, env config.Env, provider *config.Provider, opts options) error {
	st, err := openStores(ctx, logger, env, opts.useMemory)
	if err != nil {
		return err
	}
	defer st.Close()

	if opts.ledgerKeep > 0 {
		if removed, err := st.Prune(ctx, opts.ledgerKeep); err != nil {
			logger.Warn().Err(err).Msg("ledger prune failed")
		} else if removed > 0 {
			logger.Info().Int("removed", removed).Int("kept", opts.ledgerKeep).Msg("ledger pruned")
		}
	}

	rpc := solana.NewHTTPClient(env.RPCURL, solana.WithObserver(observability.RecordRPCLatency))

	wsCfg := solana.DefaultWSConfig()
	wsCfg.Logger = &logger
	ws, err := solana.NewWSClient(ctx, env.WSURL, &wsCfg)
	if err != nil {
		return err
	}
	defer ws.Close()

	sol := oracle.NewSolPriceFeed(oracle.SolPriceFeedOptions{Logger: &logger})

	curves := curve.NewFetcher(rpc)
	filter := entry.NewFilter(entry.FilterOptions{
		Ownership: oracle.NewCreatorOwnership(rpc),
		Liquidity: oracle.NewCurveLiquidity(curves),
		Listing:   oracle.NewDexScreener("", nil),
	})
	riskCtl := risk.NewController(provider)

	builder, err := execution.NewBuilder(env.WalletPrivateKey)
	if err != nil {
		return err
	}
	submitter := execution.NewSubmitter(execution.SubmitterOptions{
		RPC:     rpc,
		Builder: builder,
		Fees:    execution.NewFeeEstimator(rpc, env.MaxPriorityFee, &logger),
		Curves:  curves,
		Logger:  &logger,
	})
	logger.Info().Str("wallet", submitter.Wallet().String()).Msg("trading wallet loaded")

	registry := engine.NewRegistry()

	var ticks *engine.TickBuffer
	engOpts := engine.Options{
		Registry:  registry,
		Config:    provider,
		Filter:    filter,
		Risk:      riskCtl,
		Trader:    submitter,
		Curves:    curves,
		Ledger:    st.Ledger,
		SolPrice:  sol,
		Stats:     st.Stats,
		Publisher: st.Publisher,
		Logger:    &logger,
	}
	if st.Ticks != nil {
		ticks = engine.NewTickBuffer(engine.TickBufferOptions{Store: st.Ticks, Logger: &logger})
		engOpts.Ticks = ticks
	}

	var eng *engine.Engine
	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		WS:      ws,
		RPC:     rpc,
		Tracker: ingestion.NewTracker(registry, curves, sol),
		OnSnapshot: func(ctx context.Context, snap ingestion.Snapshot) {
			eng.Evaluate(ctx, snap)
		},
		Logger: &logger,
	})
	engOpts.Counters = runner
	eng = engine.New(engOpts)

	if err := eng.RestoreFromLedger(ctx, st.Ledger); err != nil {
		return err
	}

	provider.Subscribe(func(s *config.Strategy) {
		logger.Info().Float64("tradeAmount", s.TradeAmount).Int("maxTrades", s.MaxTrades).Msg("strategy reloaded")
	})

	sweeper := engine.NewSweeper(engine.SweeperOptions{
		RPC:       rpc,
		Seller:    submitter,
		Positions: registry,
		Wallet:    submitter.Wallet(),
		Interval:  env.SweepInterval,
		Logger:    &logger,
	})

	// Ticks outlive the group so the closes recorded during shutdown land.
	tickCtx, stopTicks := context.WithCancel(context.WithoutCancel(ctx))
	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		if ticks != nil {
			_ = ticks.Run(tickCtx)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCanceled(runner.Run(gctx)) })
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error { return sol.Run(gctx) })
	if opts.configWatch > 0 {
		g.Go(func() error {
			provider.Watch(gctx, opts.configWatch)
			return nil
		})
	}
	if opts.consoleInterval > 0 {
		console := reporting.NewConsole(os.Stdout, eng, eng.Supervisor(), opts.consoleInterval)
		g.Go(func() error { return console.Run(gctx) })
	}

	logger.Info().Msg("engine running")
	runErr := g.Wait()

	shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 20*time.Second)
	defer cancel()
	if err := eng.Shutdown(shutCtx); err != nil {
		logger.Error().Err(err).Msg("engine shutdown")
	}
	stopTicks()
	<-tickDone
	if ticks != nil && ticks.Dropped() > 0 {
		logger.Warn().Int64("dropped", ticks.Dropped()).Msg("price ticks dropped")
	}

	return runErr
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
