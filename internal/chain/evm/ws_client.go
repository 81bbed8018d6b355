package evm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig configures WebSocket subscription behavior.
type WSConfig struct {
	// ReconnectDelay is the fixed delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay: 5 * time.Second,
		PingInterval:   30 * time.Second,
		ReadTimeout:    90 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Head is a new-block notification.
type Head struct {
	Number int64
}

// WSClient subscribes to eth_subscribe feeds over gorilla/websocket,
// reconnecting with a fixed delay and resubscribing after transport
// errors.
type WSClient struct {
	endpoint string
	config   WSConfig
	logger   *log.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subscription ID -> delivery target
	heads   map[string]chan Head
	pending map[string]chan string
	subsMu  sync.RWMutex

	// subscription kind per active sub, for resubscription
	kinds map[string]string

	// request ID -> channel waiting for the subscription ID
	pendingReqs   map[uint64]chan string
	pendingReqsMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewWSClient connects to the endpoint and starts the read/ping loops.
func NewWSClient(ctx context.Context, endpoint string, config *WSConfig, logger *log.Logger) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	c := &WSClient{
		endpoint:    endpoint,
		config:      cfg,
		logger:      logger,
		heads:       make(map[string]chan Head),
		pending:     make(map[string]chan string),
		kinds:       make(map[string]string),
		pendingReqs: make(map[uint64]chan string),
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

func (c *WSClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn
	return nil
}

// SubscribeNewHeads subscribes to new block headers.
func (c *WSClient) SubscribeNewHeads(ctx context.Context) (<-chan Head, error) {
	subID, err := c.subscribe(ctx, "newHeads")
	if err != nil {
		return nil, err
	}

	ch := make(chan Head, 256)
	c.subsMu.Lock()
	c.heads[subID] = ch
	c.kinds[subID] = "newHeads"
	c.subsMu.Unlock()
	return ch, nil
}

// SubscribePendingTxs subscribes to pending transaction hashes.
func (c *WSClient) SubscribePendingTxs(ctx context.Context) (<-chan string, error) {
	subID, err := c.subscribe(ctx, "newPendingTransactions")
	if err != nil {
		return nil, err
	}

	ch := make(chan string, 4096)
	c.subsMu.Lock()
	c.pending[subID] = ch
	c.kinds[subID] = "newPendingTransactions"
	c.subsMu.Unlock()
	return ch, nil
}

// subscribe issues eth_subscribe and waits for the subscription ID.
func (c *WSClient) subscribe(ctx context.Context, kind string) (string, error) {
	if c.closed.Load() {
		return "", fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "eth_subscribe",
		Params:  []interface{}{kind},
	}

	confirmCh := make(chan string, 1)
	c.pendingReqsMu.Lock()
	c.pendingReqs[reqID] = confirmCh
	c.pendingReqsMu.Unlock()

	cleanup := func() {
		c.pendingReqsMu.Lock()
		delete(c.pendingReqs, reqID)
		c.pendingReqsMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		cleanup()
		return "", fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()
	if err != nil {
		cleanup()
		return "", fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(30 * time.Second):
		cleanup()
		return "", fmt.Errorf("subscription timeout")
	case <-c.done:
		return "", fmt.Errorf("client closed")
	case <-ctx.Done():
		cleanup()
		return "", ctx.Err()
	}
}

// Close closes the connection and all subscription channels.
func (c *WSClient) Close() error {
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

	c.subsMu.Lock()
	for id, ch := range c.heads {
		close(ch)
		delete(c.heads, id)
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.subsMu.Unlock()

	c.pendingReqsMu.Lock()
	for id, ch := range c.pendingReqs {
		close(ch)
		delete(c.pendingReqs, id)
	}
	c.pendingReqsMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages and dispatches notifications. On transport
// error the provider connection is torn down and recreated after a
// single fixed delay per failure event.
func (c *WSClient) readLoop() {
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
				go c.reconnect()
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

// reconnect tears down the provider and recreates it after the fixed
// reconnect delay, then resubscribes all active feeds.
func (c *WSClient) reconnect() {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(c.config.ReconnectDelay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		c.logger.Printf("reconnect failed: %v", err)
		return
	}
	c.resubscribeAll(ctx)
}

func (c *WSClient) resubscribeAll(ctx context.Context) {
	c.subsMu.Lock()
	oldHeads := c.heads
	oldPending := c.pending
	oldKinds := c.kinds
	c.heads = make(map[string]chan Head)
	c.pending = make(map[string]chan string)
	c.kinds = make(map[string]string)
	c.subsMu.Unlock()

	for oldID, kind := range oldKinds {
		newID, err := c.subscribe(ctx, kind)
		if err != nil {
			c.logger.Printf("resubscribe %s failed: %v", kind, err)
			continue
		}
		c.subsMu.Lock()
		if ch, ok := oldHeads[oldID]; ok {
			c.heads[newID] = ch
		}
		if ch, ok := oldPending[oldID]; ok {
			c.pending[newID] = ch
		}
		c.kinds[newID] = kind
		c.subsMu.Unlock()
	}
}

func (c *WSClient) handleMessage(message []byte) {
	// Subscription confirmation first
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result != "" && resp.ID > 0 {
		c.pendingReqsMu.Lock()
		ch, ok := c.pendingReqs[resp.ID]
		if ok {
			delete(c.pendingReqs, resp.ID)
		}
		c.pendingReqsMu.Unlock()
		if ok {
			select {
			case ch <- resp.Result:
			default:
			}
		}
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "eth_subscription" || notif.Params == nil {
		return
	}
	subID := notif.Params.Subscription

	c.subsMu.RLock()
	headCh, isHead := c.heads[subID]
	pendingCh, isPending := c.pending[subID]
	c.subsMu.RUnlock()

	switch {
	case isHead:
		var head struct {
			Number string `json:"number"`
		}
		if err := json.Unmarshal(notif.Params.Result, &head); err != nil {
			return
		}
		n, err := parseHexInt64(head.Number)
		if err != nil {
			return
		}
		select {
		case headCh <- Head{Number: n}:
		default:
			// Slow consumer, drop
		}
	case isPending:
		var hash string
		if err := json.Unmarshal(notif.Params.Result, &hash); err != nil {
			return
		}
		select {
		case pendingCh <- hash:
		default:
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (c *WSClient) pingLoop() {
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
				c.conn.WriteMessage(websocket.PingMessage, nil)
			}
			c.connMu.Unlock()
		}
	}
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  string `json:"result"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}
