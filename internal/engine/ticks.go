package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/storage"
)

// TickBufferOptions configures a TickBuffer.
type TickBufferOptions struct {
	Store         storage.PriceTickStore
	Capacity      int           // Default: 4096 pending ticks
	BatchSize     int           // Default: 500
	FlushInterval time.Duration // Default: 1s
	Logger        *zerolog.Logger
}

// TickBuffer batches price ticks into a PriceTickStore off the hot path.
// Record never blocks; ticks beyond capacity are dropped and counted.
type TickBuffer struct {
	store    storage.PriceTickStore
	ch       chan domain.PriceTick
	batch    int
	interval time.Duration
	dropped  atomic.Int64
	logger   zerolog.Logger
}

// NewTickBuffer creates a TickBuffer.
func NewTickBuffer(opts TickBufferOptions) *TickBuffer {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = 4096
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 500
	}
	interval := opts.FlushInterval
	if interval <= 0 {
		interval = time.Second
	}
	return &TickBuffer{
		store:    opts.Store,
		ch:       make(chan domain.PriceTick, capacity),
		batch:    batch,
		interval: interval,
		logger:   logger.With().Str("component", "ticks").Logger(),
	}
}

// Record queues a tick.
func (b *TickBuffer) Record(tick domain.PriceTick) {
	select {
	case b.ch <- tick:
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns the number of ticks lost to a full buffer.
func (b *TickBuffer) Dropped() int64 {
	return b.dropped.Load()
}

// Run writes batches until ctx is cancelled, then drains and flushes what
// is queued.
func (b *TickBuffer) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	pending := make([]*domain.PriceTick, 0, b.batch)
	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if err := b.store.InsertBulk(ctx, pending); err != nil {
			b.logger.Error().Err(err).Int("ticks", len(pending)).Msg("write price ticks")
		}
		pending = make([]*domain.PriceTick, 0, b.batch)
	}

	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case tick := <-b.ch:
					pending = append(pending, &tick)
				default:
					break drain
				}
			}
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			flush(flushCtx)
			cancel()
			return nil

		case tick := <-b.ch:
			pending = append(pending, &tick)
			if len(pending) >= b.batch {
				flush(ctx)
			}

		case <-ticker.C:
			flush(ctx)
		}
	}
}
