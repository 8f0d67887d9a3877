package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"pumpfun-engine/internal/config"
	"pumpfun-engine/internal/storage"
	chstore "pumpfun-engine/internal/storage/clickhouse"
	"pumpfun-engine/internal/storage/memory"
	"pumpfun-engine/internal/storage/migrations"
	pgstore "pumpfun-engine/internal/storage/postgres"
	redisstore "pumpfun-engine/internal/storage/redis"
	sqlitestore "pumpfun-engine/internal/storage/sqlite"
)

// stores groups the persistence collaborators. Ticks is nil when no tick
// store is configured.
type stores struct {
	Ledger    storage.TradeRecordStore
	Stats     storage.StatsSnapshotStore
	Ticks     storage.PriceTickStore
	Publisher storage.SnapshotPublisher

	closers []func()
}

// openStores picks a backend per concern: postgres or sqlite for the ledger,
// postgres for stats, clickhouse for ticks, redis for snapshots. Anything
// unconfigured falls back to memory; the ledger must be durable unless
// useMemory is set.
func openStores(ctx context.Context, logger zerolog.Logger, env config.Env, useMemory bool) (_ *stores, err error) {
	s := &stores{
		Ledger:    memory.NewTradeRecordStore(),
		Stats:     memory.NewStatsSnapshotStore(),
		Publisher: memory.NewSnapshotPublisher(),
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	if useMemory {
		s.Ticks = memory.NewPriceTickStore()
		logger.Info().Msg("using in-memory storage")
		return s, nil
	}

	switch {
	case env.PostgresDSN != "":
		pool, err := pgstore.NewPool(ctx, env.PostgresDSN)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, err
		}
		s.Ledger = pgstore.NewTradeRecordStore(pool)
		s.Stats = pgstore.NewStatsSnapshotStore(pool)
		logger.Info().Msg("ledger: postgres")
	case env.SQLitePath != "":
		db, err := sqlitestore.Open(ctx, env.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, closeDB(db))
		s.Ledger = sqlitestore.NewTradeRecordStore(db)
		logger.Info().Str("path", env.SQLitePath).Msg("ledger: sqlite")
	default:
		return nil, errors.New("a ledger is required: set POSTGRES_DSN or SQLITE_PATH (or use --use-memory)")
	}

	if env.ClickhouseDSN != "" {
		conn, err := migrations.PrepareTickStore(ctx, env.ClickhouseDSN, migrations.TickStoreOptions{Logger: &logger})
		if err != nil {
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { conn.Close() })
		s.Ticks = chstore.NewPriceTickStore(conn)
		logger.Info().Msg("price ticks: clickhouse")
	}

	if env.RedisAddr != "" {
		client, err := redisstore.New(ctx, redisstore.ClientConfig{
			Addr:     env.RedisAddr,
			Password: env.RedisPassword,
			DB:       env.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { client.Close() })
		s.Publisher = redisstore.NewSnapshotPublisher(client, "")
		logger.Info().Str("addr", env.RedisAddr).Msg("snapshots: redis")
	}

	return s, nil
}

// Prune applies ledger retention when the ledger supports it.
func (s *stores) Prune(ctx context.Context, keep int) (int, error) {
	p, ok := s.Ledger.(storage.LedgerPruner)
	if !ok {
		return 0, nil
	}
	return p.Prune(ctx, keep)
}

// Close releases connections in reverse order.
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func closeDB(db *sql.DB) func() {
	return func() { db.Close() }
}
