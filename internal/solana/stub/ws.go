package stub

import (
	"context"
	"sync"

	"pumpfun-engine/internal/solana"
)

// WSClient implements solana.WSClient with a caller-fed channel.
type WSClient struct {
	mu      sync.Mutex
	ch      chan solana.LogNotification
	filters []solana.LogsFilter
	closed  bool
}

var _ solana.WSClient = (*WSClient)(nil)

// NewWSClient creates a stub feed with the given buffer.
func NewWSClient(buffer int) *WSClient {
	return &WSClient{ch: make(chan solana.LogNotification, buffer)}
}

// SubscribeLogs records filter and returns the shared feed channel.
func (c *WSClient) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = append(c.filters, filter)
	return c.ch, nil
}

// Push delivers a notification to subscribers.
func (c *WSClient) Push(n solana.LogNotification) {
	c.ch <- n
}

// Filters returns the filters subscribed so far.
func (c *WSClient) Filters() []solana.LogsFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]solana.LogsFilter(nil), c.filters...)
}

// Close closes the feed channel.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
	return nil
}
