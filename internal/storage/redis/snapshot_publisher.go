package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"pumpfun-engine/internal/domain"
	"pumpfun-engine/internal/storage"
)

// Default key names. Each snapshot is stored under its key and published on
// a channel of the same name.
const (
	DefaultPositionsKey = "pumpfun:positions"
	DefaultStatsKey     = "pumpfun:stats"
)

// SnapshotPublisher implements storage.SnapshotPublisher. Every publish
// overwrites the latest value and notifies subscribers in one transaction.
type SnapshotPublisher struct {
	rdb          *redis.Client
	positionsKey string
	statsKey     string
}

// NewSnapshotPublisher creates a publisher. An empty prefix keeps the
// default keys; otherwise keys become prefix + ":positions" and ":stats".
func NewSnapshotPublisher(c *Client, prefix string) *SnapshotPublisher {
	p := &SnapshotPublisher{
		rdb:          c.rdb,
		positionsKey: DefaultPositionsKey,
		statsKey:     DefaultStatsKey,
	}
	if prefix != "" {
		p.positionsKey = prefix + ":positions"
		p.statsKey = prefix + ":stats"
	}
	return p
}

var _ storage.SnapshotPublisher = (*SnapshotPublisher)(nil)

// PublishPositions stores and announces the open-position snapshot.
func (p *SnapshotPublisher) PublishPositions(ctx context.Context, positions []domain.PositionSnapshot) error {
	if positions == nil {
		positions = []domain.PositionSnapshot{}
	}
	return p.publish(ctx, p.positionsKey, positions)
}

// PublishStats stores and announces the stats snapshot.
func (p *SnapshotPublisher) PublishStats(ctx context.Context, stats *domain.StatsSnapshot) error {
	if stats == nil {
		return storage.ErrInvalidInput
	}
	return p.publish(ctx, p.statsKey, stats)
}

// Positions reads the latest open-position snapshot.
// Returns storage.ErrNotFound before the first publish.
func (p *SnapshotPublisher) Positions(ctx context.Context) ([]domain.PositionSnapshot, error) {
	var out []domain.PositionSnapshot
	if err := p.get(ctx, p.positionsKey, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats reads the latest stats snapshot.
// Returns storage.ErrNotFound before the first publish.
func (p *SnapshotPublisher) Stats(ctx context.Context) (*domain.StatsSnapshot, error) {
	var out domain.StatsSnapshot
	if err := p.get(ctx, p.statsKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *SnapshotPublisher) publish(ctx context.Context, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", key, err)
	}
	_, err = p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, payload, 0)
		pipe.Publish(ctx, key, payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: publish %s: %w", key, err)
	}
	return nil
}

func (p *SnapshotPublisher) get(ctx context.Context, key string, v any) error {
	payload, err := p.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("redis: get %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return nil
}
