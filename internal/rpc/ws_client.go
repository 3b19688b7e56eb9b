package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription id.
	SubscribeTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
	}
}

// signatureSub is an active signature subscription.
type signatureSub struct {
	sig        solana.Signature
	commitment Commitment
	ch         chan SignatureNotification
}

// pendingSub is a signatureSubscribe request awaiting its subscription id.
// The read loop registers sub under the id before reading further messages,
// so a notification sent right after the reply is not lost.
type pendingSub struct {
	sub      *signatureSub
	replaces *int64 // id this request supersedes after a reconnect
	ready    chan int64
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to its subscription
	subs   map[int64]*signatureSub
	subsMu sync.Mutex

	// pendingSubs maps request ID to the subscription waiting for its ID
	pendingSubs   map[uint64]*pendingSub
	pendingSubsMu sync.Mutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSClientImpl{
		endpoint:    endpoint,
		config:      cfg,
		subs:        make(map[int64]*signatureSub),
		pendingSubs: make(map[uint64]*pendingSub),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	// Start reader goroutine
	c.wg.Add(1)
	go c.readLoop()

	// Start ping goroutine
	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// Compile-time interface check.
var _ WSClient = (*WSClientImpl)(nil)

// connect establishes WebSocket connection.
func (c *WSClientImpl) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.closed.Load() {
		return fmt.Errorf("client closed")
	}

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

// SubscribeSignature subscribes to a signature reaching commitment.
func (c *WSClientImpl) SubscribeSignature(ctx context.Context, sig solana.Signature, commitment Commitment) (<-chan SignatureNotification, error) {
	sub := &signatureSub{sig: sig, commitment: commitment, ch: make(chan SignatureNotification, 1)}
	if _, err := c.subscribeInternal(ctx, &pendingSub{sub: sub}); err != nil {
		return nil, err
	}
	return sub.ch, nil
}

// Unsubscribe drops the subscription for sig, closes its channel and sends
// signatureUnsubscribe. Signatures without a live subscription are ignored.
func (c *WSClientImpl) Unsubscribe(sig solana.Signature) error {
	c.subsMu.Lock()
	var (
		subID int64
		found bool
	)
	for id, sub := range c.subs {
		if sub.sig == sig {
			subID, found = id, true
			delete(c.subs, id)
			close(sub.ch)
			break
		}
	}
	c.subsMu.Unlock()

	if !found || c.closed.Load() {
		return nil
	}

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "signatureUnsubscribe",
		Params:  []interface{}{subID},
	}
	if err := c.write(req); err != nil {
		return fmt.Errorf("write unsubscribe: %w", err)
	}
	return nil
}

func (c *WSClientImpl) write(req wsRequest) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(req)
}

// subscribeInternal sends signatureSubscribe for p.sub and waits until the
// read loop has registered it.
func (c *WSClientImpl) subscribeInternal(ctx context.Context, p *pendingSub) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			p.sub.sig.String(),
			map[string]string{"commitment": string(p.sub.commitment)},
		},
	}

	p.ready = make(chan int64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = p
	c.pendingSubsMu.Unlock()

	if err := c.write(req); err != nil {
		c.dropPending(reqID)
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID, ok := <-p.ready:
		if !ok {
			return 0, fmt.Errorf("client closed")
		}
		return subID, nil
	case <-time.After(c.config.SubscribeTimeout):
		c.abandon(reqID, p)
		return 0, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		c.abandon(reqID, p)
		return 0, ctx.Err()
	}
}

// abandon withdraws a subscribe request whose caller stopped waiting. A
// reply that raced in is undone so the subscription does not linger.
func (c *WSClientImpl) abandon(reqID uint64, p *pendingSub) {
	if c.dropPending(reqID) {
		return
	}
	// The read loop took the reply and sends the id without blocking.
	if _, ok := <-p.ready; ok && p.replaces == nil {
		_ = c.Unsubscribe(p.sub.sig)
	}
}

// dropPending removes reqID and reports whether it was still waiting.
func (c *WSClientImpl) dropPending(reqID uint64) bool {
	c.pendingSubsMu.Lock()
	defer c.pendingSubsMu.Unlock()
	_, ok := c.pendingSubs[reqID]
	delete(c.pendingSubs, reqID)
	return ok
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	// Close all subscription channels
	c.subsMu.Lock()
	for id, sub := range c.subs {
		close(sub.ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	// Close pending subscription channels
	c.pendingSubsMu.Lock()
	for id, p := range c.pendingSubs {
		close(p.ready)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop dispatches incoming messages. A read error drops the connection;
// the next iteration redials with exponential backoff.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	backoff := c.config.ReconnectDelay
	for !c.closed.Load() {
		conn := c.currentConn()
		if conn == nil {
			if !c.redial(&backoff) {
				return
			}
			continue
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.dropConn(conn)
			continue
		}

		backoff = c.config.ReconnectDelay
		c.handleMessage(message)
	}
}

func (c *WSClientImpl) currentConn() *websocket.Conn {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn
}

func (c *WSClientImpl) dropConn(conn *websocket.Conn) {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == conn {
		conn.Close()
		c.conn = nil
	}
}

// redial waits out backoff, reconnects and re-issues open subscriptions.
// It returns false once the client is closed.
func (c *WSClientImpl) redial(backoff *time.Duration) bool {
	select {
	case <-c.done:
		return false
	case <-time.After(*backoff):
	}
	*backoff = min(*backoff*2, c.config.MaxReconnectDelay)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := c.connect(ctx)
	cancel()
	if err != nil {
		log.Printf("[ws] Reconnect to %s failed: %v", c.endpoint, err)
		return true
	}

	// Subscription replies arrive on this loop, so resubscribe elsewhere.
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.resubscribeAll()
	}()
	return true
}

// resubscribeAll moves every outstanding signature onto a fresh subscription id.
func (c *WSClientImpl) resubscribeAll() {
	c.subsMu.Lock()
	stale := make(map[int64]*signatureSub, len(c.subs))
	for id, sub := range c.subs {
		stale[id] = sub
	}
	c.subsMu.Unlock()

	for oldID, sub := range stale {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		// On failure the old mapping stays; the confirmer's poll covers it.
		_, _ = c.subscribeInternal(ctx, &pendingSub{sub: sub, replaces: &oldID})
		cancel()
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return
	}

	switch {
	case env.Method == "signatureNotification" && env.Params != nil:
		c.handleSignatureNotification(env.Params)
	case env.ID != nil && env.Error != nil:
		// Subscription will time out; surface the reason.
		log.Printf("[ws] Error response: id=%d code=%d msg=%s", *env.ID, env.Error.Code, env.Error.Message)
	case env.ID != nil && env.Result != nil:
		var subID int64
		if err := json.Unmarshal(env.Result, &subID); err != nil {
			// signatureUnsubscribe replies with a bool.
			return
		}
		c.handleSubscribeResponse(*env.ID, subID)
	}
}

// handleSubscribeResponse registers the subscription under its new id
// and releases the waiting subscriber.
func (c *WSClientImpl) handleSubscribeResponse(reqID uint64, subID int64) {
	c.pendingSubsMu.Lock()
	p, ok := c.pendingSubs[reqID]
	if ok {
		delete(c.pendingSubs, reqID)
	}
	c.pendingSubsMu.Unlock()
	if !ok {
		return
	}

	c.subsMu.Lock()
	if p.replaces == nil {
		c.subs[subID] = p.sub
	} else if _, live := c.subs[*p.replaces]; live {
		delete(c.subs, *p.replaces)
		c.subs[subID] = p.sub
	}
	c.subsMu.Unlock()

	p.ready <- subID
}

// handleSignatureNotification delivers the single notification and drops the subscription.
func (c *WSClientImpl) handleSignatureNotification(params *wsNotificationParams) {
	var value wsSignatureValue
	if err := json.Unmarshal(params.Result.Value, &value); err != nil {
		return
	}

	c.subsMu.Lock()
	sub, ok := c.subs[params.Subscription]
	if ok {
		delete(c.subs, params.Subscription)
	}
	c.subsMu.Unlock()

	if !ok {
		return
	}

	notif := SignatureNotification{
		Signature: sub.sig,
		Err:       value.Err,
	}
	if params.Result.Context != nil {
		notif.Slot = params.Result.Context.Slot
	}

	sub.ch <- notif
	close(sub.ch)
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
				// Write errors surface on the reader, which reconnects.
				_ = c.conn.WriteMessage(websocket.PingMessage, nil)
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

type wsEnvelope struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      *uint64               `json:"id,omitempty"`
	Result  json.RawMessage       `json:"result,omitempty"`
	Error   *rpcError             `json:"error,omitempty"`
	Method  string                `json:"method,omitempty"`
	Params  *wsNotificationParams `json:"params,omitempty"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext      `json:"context"`
	Value   json.RawMessage `json:"value"`
}

type wsContext struct {
	Slot uint64 `json:"slot"`
}

type wsSignatureValue struct {
	Err interface{} `json:"err"`
}
