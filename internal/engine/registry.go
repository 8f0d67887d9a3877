// Package engine wires ingestion, the entry filter, risk, execution and the
// position lifecycle around one shared registry.
package engine

import (
	"errors"
	"sort"
	"sync"

	"pumpfun-engine/internal/domain"
)

// ErrPositionExists is returned by AddPosition for a mint that already has one.
var ErrPositionExists = errors.New("position exists for mint")

// Registry is the shared per-mint state: token state and the position, if
// any. Each token has its own lock so updates to different mints never
// contend.
type Registry struct {
	mu        sync.RWMutex
	tokens    map[string]*tokenEntry
	positions map[string]*domain.Position
}

type tokenEntry struct {
	mu    sync.Mutex
	state domain.TokenState
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tokens:    make(map[string]*tokenEntry),
		positions: make(map[string]*domain.Position),
	}
}

func (r *Registry) entry(mint string) *tokenEntry {
	r.mu.RLock()
	e, ok := r.tokens[mint]
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok = r.tokens[mint]; !ok {
		e = &tokenEntry{state: domain.TokenState{Mint: mint}}
		r.tokens[mint] = e
	}
	return e
}

// UpdateToken applies fn to the state of mint under its lock, creating the
// state on first use, and returns a copy of the result. fn may call the
// position methods of r.
func (r *Registry) UpdateToken(mint string, fn func(*domain.TokenState)) domain.TokenState {
	e := r.entry(mint)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.state)
	return e.state.Clone()
}

// Token returns a copy of the state of mint.
func (r *Registry) Token(mint string) (domain.TokenState, bool) {
	r.mu.RLock()
	e, ok := r.tokens[mint]
	r.mu.RUnlock()
	if !ok {
		return domain.TokenState{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone(), true
}

// TokenCount returns the number of tracked tokens.
func (r *Registry) TokenCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}

// HasPosition reports whether mint has a position in any status.
func (r *Registry) HasPosition(mint string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.positions[mint]
	return ok
}

// AddPosition registers pos for its mint.
func (r *Registry) AddPosition(pos *domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.positions[pos.Mint]; ok {
		return ErrPositionExists
	}
	r.positions[pos.Mint] = pos
	return nil
}

// RemovePosition unregisters pos. A different position registered for the
// same mint is left alone.
func (r *Registry) RemovePosition(pos *domain.Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.positions[pos.Mint] == pos {
		delete(r.positions, pos.Mint)
	}
}

// Position returns the position of mint.
func (r *Registry) Position(mint string) (*domain.Position, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pos, ok := r.positions[mint]
	return pos, ok
}

// Positions returns every registered position ordered by mint.
func (r *Registry) Positions() []*domain.Position {
	r.mu.RLock()
	out := make([]*domain.Position, 0, len(r.positions))
	for _, p := range r.positions {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Mint < out[j].Mint })
	return out
}
