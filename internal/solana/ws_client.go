package solana

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

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectAttempts is how many reconnects are tried before the client
	// gives up with a terminal error.
	ReconnectAttempts int
	// ReconnectDelay is the fixed delay between reconnect attempts.
	ReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectAttempts: 5,
		ReconnectDelay:    3 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	logger   *log.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to notification channel
	subs   map[int64]chan AccountNotification
	subsMu sync.RWMutex

	// addrBySub and subByAddr track which address a subscription covers,
	// for unsubscribe and for resubscription after reconnect
	addrBySub map[int64]string
	subByAddr map[string]int64
	addrMu    sync.RWMutex

	// pendingReqs maps request ID to channel waiting for the int result
	// (subscription ID for subscribes, deliberately unused for unsubscribes)
	pendingReqs   map[uint64]chan int64
	pendingReqsMu sync.Mutex

	terminated chan error

	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig, logger *log.Logger) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ws] ", log.LstdFlags)
	}

	c := &WSClientImpl{
		endpoint:    endpoint,
		config:      cfg,
		logger:      logger,
		subs:        make(map[int64]chan AccountNotification),
		addrBySub:   make(map[int64]string),
		subByAddr:   make(map[string]int64),
		pendingReqs: make(map[uint64]chan int64),
		terminated:  make(chan error, 1),
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

// connect establishes the WebSocket connection.
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

// SubscribeAccount subscribes to state changes of the given account.
func (c *WSClientImpl) SubscribeAccount(ctx context.Context, address string) (<-chan AccountNotification, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("client closed")
	}

	c.addrMu.RLock()
	existing, ok := c.subByAddr[address]
	c.addrMu.RUnlock()
	if ok {
		c.subsMu.RLock()
		ch := c.subs[existing]
		c.subsMu.RUnlock()
		if ch != nil {
			return ch, nil
		}
	}

	subID, err := c.subscribeAccountInternal(ctx, address)
	if err != nil {
		return nil, err
	}

	// Buffer absorbs change bursts; delivery blocks rather than drops.
	ch := make(chan AccountNotification, 1024)
	c.subsMu.Lock()
	c.subs[subID] = ch
	c.subsMu.Unlock()

	c.addrMu.Lock()
	c.addrBySub[subID] = address
	c.subByAddr[address] = subID
	c.addrMu.Unlock()

	return ch, nil
}

// subscribeAccountInternal sends accountSubscribe and waits for the
// subscription ID, without registering a channel.
func (c *WSClientImpl) subscribeAccountInternal(ctx context.Context, address string) (int64, error) {
	reqID := c.requestID.Add(1)

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "accountSubscribe",
		Params: []interface{}{
			address,
			map[string]string{"encoding": "base64", "commitment": "confirmed"},
		},
	}

	confirmCh := make(chan int64, 1)
	c.pendingReqsMu.Lock()
	c.pendingReqs[reqID] = confirmCh
	c.pendingReqsMu.Unlock()

	clearPending := func() {
		c.pendingReqsMu.Lock()
		delete(c.pendingReqs, reqID)
		c.pendingReqsMu.Unlock()
	}

	if err := c.writeJSON(req); err != nil {
		clearPending()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID := <-confirmCh:
		return subID, nil
	case <-time.After(30 * time.Second):
		clearPending()
		return 0, fmt.Errorf("subscription timeout after 30s")
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		clearPending()
		return 0, ctx.Err()
	}
}

// UnsubscribeAccount tears down the subscription for an address.
func (c *WSClientImpl) UnsubscribeAccount(_ context.Context, address string) error {
	c.addrMu.Lock()
	subID, ok := c.subByAddr[address]
	if ok {
		delete(c.subByAddr, address)
		delete(c.addrBySub, subID)
	}
	c.addrMu.Unlock()

	if !ok {
		return fmt.Errorf("no subscription for %s", address)
	}

	c.subsMu.Lock()
	if ch, open := c.subs[subID]; open {
		close(ch)
		delete(c.subs, subID)
	}
	c.subsMu.Unlock()

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "accountUnsubscribe",
		Params:  []interface{}{subID},
	}
	if err := c.writeJSON(req); err != nil {
		return fmt.Errorf("write unsubscribe: %w", err)
	}
	return nil
}

// Terminated reports a terminal transport failure.
func (c *WSClientImpl) Terminated() <-chan error {
	return c.terminated
}

// writeJSON writes a JSON message under the connection lock.
func (c *WSClientImpl) writeJSON(v interface{}) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(v)
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

	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
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

// readLoop reads messages from the WebSocket and dispatches to subscribers.
// On transport failure it runs the bounded reconnect policy.
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

// reconnect attempts a bounded number of reconnects with a fixed delay.
// After the last failed attempt the client surfaces a terminal error and
// stops; it does not auto-resubscribe past that point.
func (c *WSClientImpl) reconnect() {
	defer c.reconnecting.Store(false)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= c.config.ReconnectAttempts; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(c.config.ReconnectDelay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := c.connect(ctx)
		cancel()
		if err == nil {
			c.logger.Printf("reconnected after %d attempt(s)", attempt)
			c.resubscribeAll()
			return
		}
		lastErr = err
		c.logger.Printf("reconnect attempt %d/%d failed: %v", attempt, c.config.ReconnectAttempts, err)
	}

	select {
	case c.terminated <- fmt.Errorf("reconnect exhausted after %d attempts: %w", c.config.ReconnectAttempts, lastErr):
	default:
	}
	c.Close()
}

// resubscribeAll resubscribes every tracked address after a reconnect,
// rebinding existing channels to the new subscription IDs.
func (c *WSClientImpl) resubscribeAll() {
	c.addrMu.RLock()
	addrs := make(map[int64]string, len(c.addrBySub))
	for id, addr := range c.addrBySub {
		addrs[id] = addr
	}
	c.addrMu.RUnlock()

	for oldSubID, address := range addrs {
		c.subsMu.RLock()
		ch := c.subs[oldSubID]
		c.subsMu.RUnlock()
		if ch == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newSubID, err := c.subscribeAccountInternal(ctx, address)
		cancel()
		if err != nil {
			c.logger.Printf("resubscribe %s failed: %v", address, err)
			continue
		}

		c.subsMu.Lock()
		delete(c.subs, oldSubID)
		c.subs[newSubID] = ch
		c.subsMu.Unlock()

		c.addrMu.Lock()
		delete(c.addrBySub, oldSubID)
		c.addrBySub[newSubID] = address
		c.subByAddr[address] = newSubID
		c.addrMu.Unlock()
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	// Subscription confirmation first
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result > 0 && resp.ID > 0 {
		c.handleRequestResponse(&resp)
		return
	}

	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "accountNotification" {
		c.handleAccountNotification(&notif)
		return
	}

	var errResp struct {
		ID    uint64 `json:"id"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		c.logger.Printf("error response: code=%d msg=%s", errResp.Error.Code, errResp.Error.Message)
	}
}

// handleRequestResponse completes the pending request waiting on this ID.
func (c *WSClientImpl) handleRequestResponse(resp *wsSubscribeResponse) {
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
}

// handleAccountNotification dispatches an account change to its subscriber.
func (c *WSClientImpl) handleAccountNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}

	subID := notif.Params.Subscription

	c.addrMu.RLock()
	address := c.addrBySub[subID]
	c.addrMu.RUnlock()

	n := AccountNotification{
		Address:  address,
		Lamports: notif.Params.Result.Value.Lamports,
	}
	if notif.Params.Result.Context != nil {
		n.Slot = notif.Params.Result.Context.Slot
	}

	c.subsMu.RLock()
	ch, ok := c.subs[subID]
	c.subsMu.RUnlock()

	if ok {
		select {
		case ch <- n:
		case <-c.done:
		}
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
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
					// Connection might be dead, reader handles reconnect
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
	Context *wsContext     `json:"context"`
	Value   wsAccountValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsAccountValue struct {
	Lamports uint64 `json:"lamports"`
}

// Compile-time interface check.
var _ WSClient = (*WSClientImpl)(nil)
