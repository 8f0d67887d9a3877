package config

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Source yields the strategy in effect. Consumers read it per decision so a
// reload takes effect on the next tick.
type Source interface {
	Current() *Strategy
}

// Static is a fixed Source.
type Static struct {
	S *Strategy
}

// Current returns the fixed strategy.
func (s Static) Current() *Strategy { return s.S }

// Provider serves the most recent valid strategy loaded from a file.
type Provider struct {
	path   string
	logger zerolog.Logger

	current atomic.Pointer[Strategy]

	mu      sync.Mutex
	subs    []func(*Strategy)
	modTime time.Time
}

// NewProvider loads path. A load failure here is fatal to the caller.
func NewProvider(path string, logger zerolog.Logger) (*Provider, error) {
	p := &Provider{path: path, logger: logger.With().Str("component", "config").Logger()}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat strategy config: %w", err)
	}
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	p.current.Store(s)
	p.modTime = info.ModTime()
	return p, nil
}

// Current returns the active snapshot.
func (p *Provider) Current() *Strategy {
	return p.current.Load()
}

// Subscribe registers fn to run after every successful reload.
func (p *Provider) Subscribe(fn func(*Strategy)) {
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	p.mu.Unlock()
}

// Reload re-reads the file. On error the previous snapshot stays active.
func (p *Provider) Reload() error {
	s, err := Load(p.path)
	if err != nil {
		return err
	}
	p.current.Store(s)

	p.mu.Lock()
	subs := slices.Clone(p.subs)
	p.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
	return nil
}

// Watch polls the file's modification time and reloads on change until ctx
// is done.
func (p *Provider) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(p.path)
			if err != nil {
				p.logger.Warn().Err(err).Msg("stat strategy config")
				continue
			}
			p.mu.Lock()
			changed := !info.ModTime().Equal(p.modTime)
			p.modTime = info.ModTime()
			p.mu.Unlock()
			if !changed {
				continue
			}
			if err := p.Reload(); err != nil {
				p.logger.Error().Err(err).Msg("strategy reload failed, keeping previous config")
				continue
			}
			p.logger.Info().Str("path", p.path).Msg("strategy config reloaded")
		}
	}
}
