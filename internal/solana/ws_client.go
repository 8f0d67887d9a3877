package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is the fixed wait between reconnect attempts.
	ReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription id.
	SubscribeTimeout time.Duration
	// Commitment is the logsSubscribe commitment level.
	Commitment string
	// Logger receives connection lifecycle events.
	Logger *zerolog.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:   2 * time.Second,
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		SubscribeTimeout: 30 * time.Second,
		Commitment:       CommitmentProcessed,
	}
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	log      zerolog.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs is keyed by the server's subscription id.
	subs   map[int64]*logSubscription
	subsMu sync.RWMutex

	// pendingSubs is keyed by the logsSubscribe request id.
	pendingSubs   map[uint64]*pendingSub
	pendingSubsMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
	reconnects   atomic.Uint64
}

var _ WSClient = (*WSClientImpl)(nil)

type logSubscription struct {
	filter LogsFilter
	ch     chan LogNotification
}

// pendingSub is a logsSubscribe request awaiting its ack. The ack handler
// installs sub under the new id, replacing replaces when non-zero, before
// the waiter is released, so no notification can arrive for an unknown id.
type pendingSub struct {
	sub      *logSubscription
	replaces int64
	acked    chan subAck
}

// subAck is the server's answer to a logsSubscribe: the new id or a
// rejection.
type subAck struct {
	id  int64
	err error
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Commitment == "" {
		cfg.Commitment = CommitmentProcessed
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = 30 * time.Second
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	c := &WSClientImpl{
		endpoint:    endpoint,
		config:      cfg,
		log:         logger.With().Str("component", "ws").Logger(),
		subs:        make(map[int64]*logSubscription),
		pendingSubs: make(map[uint64]*pendingSub),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.pingLoop()

	return c, nil
}

// Reconnects returns how many times the connection was re-established.
func (c *WSClientImpl) Reconnects() uint64 {
	return c.reconnects.Load()
}

func (c *WSClientImpl) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeLogs subscribes to program logs matching the filter. The channel
// is buffered for bursts; a full channel applies backpressure to the reader.
func (c *WSClientImpl) SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error) {
	sub := &logSubscription{filter: filter, ch: make(chan LogNotification, 10000)}
	if _, err := c.subscribe(ctx, sub, 0); err != nil {
		return nil, err
	}
	return sub.ch, nil
}

// subscribe sends logsSubscribe for sub and waits until the ack has
// installed it. replaces is the id sub was known by on a previous
// connection, or zero.
func (c *WSClientImpl) subscribe(ctx context.Context, sub *logSubscription, replaces int64) (int64, error) {
	if c.closed.Load() {
		return 0, errors.New("client closed")
	}

	params := map[string]any{"all": nil}
	if len(sub.filter.Mentions) > 0 {
		params = map[string]any{"mentions": sub.filter.Mentions}
	}
	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "logsSubscribe",
		Params:  []any{params, map[string]string{"commitment": c.config.Commitment}},
	}

	pending := &pendingSub{sub: sub, replaces: replaces, acked: make(chan subAck, 1)}
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = pending
	c.pendingSubsMu.Unlock()

	// abandon reports whether the request was still pending. When it was
	// not, the ack handler owns it and is about to deliver the id.
	abandon := func() bool {
		c.pendingSubsMu.Lock()
		defer c.pendingSubsMu.Unlock()
		if _, ok := c.pendingSubs[reqID]; !ok {
			return false
		}
		delete(c.pendingSubs, reqID)
		return true
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		abandon()
		return 0, errors.New("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()
	if err != nil {
		abandon()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	timer := time.NewTimer(c.config.SubscribeTimeout)
	defer timer.Stop()

	var cause error
	select {
	case ack, ok := <-pending.acked:
		if !ok {
			return 0, errors.New("client closed")
		}
		return ack.id, ack.err
	case <-timer.C:
		cause = fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-ctx.Done():
		cause = ctx.Err()
	case <-c.done:
		return 0, errors.New("client closed")
	}
	if abandon() {
		return 0, cause
	}
	ack, ok := <-pending.acked
	if !ok {
		return 0, errors.New("client closed")
	}
	return ack.id, ack.err
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()

	c.subsMu.Lock()
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingSubsMu.Lock()
	for id, p := range c.pendingSubs {
		close(p.acked)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	return nil
}

// readLoop reads messages and hands failed connections to the reconnector.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if !c.reconnecting.Swap(true) {
				c.log.Warn().Err(err).Msg("connection lost, reconnecting")
				c.wg.Add(1)
				go c.reconnect(conn)
			}
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		c.handleMessage(message)
	}
}

// reconnect redials with a fixed delay until it succeeds or the client closes.
func (c *WSClientImpl) reconnect(stale *websocket.Conn) {
	defer c.wg.Done()
	defer c.reconnecting.Store(false)

	c.connMu.Lock()
	if c.conn == stale && c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	for attempt := 1; ; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(c.config.ReconnectDelay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.connect(ctx)
		cancel()
		if err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			continue
		}

		c.reconnects.Add(1)
		c.log.Info().Int("attempt", attempt).Msg("reconnected")
		c.resubscribeAll()
		return
	}
}

// resubscribeAll re-issues every subscription on the new connection. Each
// ack swaps the subscription to its new id.
func (c *WSClientImpl) resubscribeAll() {
	c.subsMu.RLock()
	current := make(map[int64]*logSubscription, len(c.subs))
	maps.Copy(current, c.subs)
	c.subsMu.RUnlock()

	for oldID, sub := range current {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newID, err := c.subscribe(ctx, sub, oldID)
		cancel()
		if err != nil {
			c.log.Error().Err(err).Int64("subscription", oldID).Msg("resubscribe failed")
			continue
		}
		c.log.Debug().Int64("old", oldID).Int64("new", newID).Msg("resubscribed")
	}
}

func (c *WSClientImpl) handleMessage(message []byte) {
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 {
		c.handleSubscribeResponse(&resp)
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "logsNotification" {
		c.handleLogsNotification(&notif)
		return
	}

	var errResp struct {
		ID    uint64    `json:"id"`
		Error *rpcError `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		c.log.Error().Err(errResp.Error).Uint64("request", errResp.ID).Msg("ws error response")
		if pending := c.takePending(errResp.ID); pending != nil {
			pending.acked <- subAck{err: fmt.Errorf("logsSubscribe rejected: %w", errResp.Error)}
		}
	}
}

// takePending removes and returns the request awaiting id, or nil.
func (c *WSClientImpl) takePending(id uint64) *pendingSub {
	c.pendingSubsMu.Lock()
	defer c.pendingSubsMu.Unlock()
	pending, ok := c.pendingSubs[id]
	if !ok {
		return nil
	}
	delete(c.pendingSubs, id)
	return pending
}

func (c *WSClientImpl) handleSubscribeResponse(resp *wsSubscribeResponse) {
	pending := c.takePending(resp.ID)
	if pending == nil {
		return
	}

	c.subsMu.Lock()
	if pending.replaces != 0 && c.subs[pending.replaces] == pending.sub {
		delete(c.subs, pending.replaces)
	}
	c.subs[resp.Result] = pending.sub
	c.subsMu.Unlock()

	pending.acked <- subAck{id: resp.Result}
}

func (c *WSClientImpl) handleLogsNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	value := notif.Params.Result.Value
	logNotif := LogNotification{
		Signature: value.Signature,
		Logs:      value.Logs,
		Err:       value.Err,
	}
	if notif.Params.Result.Context != nil {
		logNotif.Slot = notif.Params.Result.Context.Slot
	}

	c.subsMu.RLock()
	sub, ok := c.subs[notif.Params.Subscription]
	c.subsMu.RUnlock()

	if ok {
		select {
		case sub.ch <- logNotif:
		case <-c.done:
		}
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// The reader notices the dead connection and reconnects.
					c.log.Debug().Err(err).Msg("ping failed")
				}
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  int64  `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext  `json:"context"`
	Value   wsLogsValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsLogsValue struct {
	Signature string      `json:"signature"`
	Logs      []string    `json:"logs"`
	Err       interface{} `json:"err"`
}
