package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConfig configures WebSocket stream behavior.
type WSConfig struct {
	// HandshakeTimeout bounds the initial dial.
	HandshakeTimeout time.Duration
	// SubscribeTimeout bounds waiting for subscription confirmation.
	SubscribeTimeout time.Duration
	// ReadTimeout is the per-message read deadline.
	ReadTimeout time.Duration
	// WriteTimeout is the per-message write deadline.
	WriteTimeout time.Duration
	// UpdateBuffer sizes the notification channel; bursts beyond it block the
	// read loop rather than dropping events.
	UpdateBuffer int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		HandshakeTimeout: 10 * time.Second,
		SubscribeTimeout: 30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		UpdateBuffer:     10000,
	}
}

// WSDialer opens one WebSocket connection per stream subscription.
type WSDialer struct {
	endpoint string
	config   WSConfig
}

// NewWSDialer creates a dialer for the given WebSocket endpoint.
func NewWSDialer(endpoint string, config *WSConfig) *WSDialer {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	return &WSDialer{endpoint: endpoint, config: cfg}
}

var _ StreamDialer = (*WSDialer)(nil)

// Dial connects, subscribes with the filter, and starts the read loop.
func (d *WSDialer) Dial(ctx context.Context, filter SubscriptionFilter) (StreamConn, error) {
	if len(filter.Accounts) == 0 && len(filter.Programs) == 0 {
		return nil, fmt.Errorf("empty subscription filter")
	}

	dialer := websocket.Dialer{HandshakeTimeout: d.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, d.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	c := &wsStreamConn{
		conn:    conn,
		config:  d.config,
		updates: make(chan FeedNotification, d.config.UpdateBuffer),
		done:    make(chan struct{}),
	}

	if err := c.subscribe(ctx, filter); err != nil {
		conn.Close()
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	return c, nil
}

// wsStreamConn implements StreamConn over gorilla/websocket.
type wsStreamConn struct {
	conn    *websocket.Conn
	config  WSConfig
	writeMu sync.Mutex

	updates chan FeedNotification
	subID   int64

	closed  atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
	errMu   sync.Mutex
	termErr error

	requestID atomic.Uint64
	pongSeen  atomic.Int64 // unix nano of last pong
}

// subscribe sends transactionSubscribe and waits for the confirmation frame.
func (c *wsStreamConn) subscribe(ctx context.Context, filter SubscriptionFilter) error {
	commitment := filter.Commitment
	if commitment == "" {
		commitment = "confirmed"
	}

	txFilter := map[string]interface{}{"vote": false, "failed": false}
	if len(filter.Accounts) > 0 {
		txFilter["accountInclude"] = filter.Accounts
	}
	if len(filter.Programs) > 0 {
		txFilter["accountRequired"] = filter.Programs
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "transactionSubscribe",
		Params: []interface{}{
			txFilter,
			map[string]interface{}{
				"commitment":                     commitment,
				"encoding":                       "json",
				"maxSupportedTransactionVersion": 0,
			},
		},
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	// Confirmation is the first frame on a fresh connection.
	deadline := time.Now().Add(c.config.SubscribeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	c.conn.SetReadDeadline(deadline)

	_, message, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read subscribe response: %w", err)
	}

	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return fmt.Errorf("unmarshal subscribe response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("subscribe rejected: code=%d msg=%s", resp.Error.Code, resp.Error.Message)
	}
	if resp.ID != reqID || resp.Result == 0 {
		return fmt.Errorf("unexpected subscribe response: id=%d result=%d", resp.ID, resp.Result)
	}

	c.subID = resp.Result
	return nil
}

// Updates yields feed notifications in arrival order.
func (c *wsStreamConn) Updates() <-chan FeedNotification {
	return c.updates
}

// Ping probes connection liveness with a ping control frame.
func (c *wsStreamConn) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return fmt.Errorf("stream closed")
	}

	deadline := time.Now().Add(c.config.WriteTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	c.writeMu.Lock()
	err := c.conn.WriteControl(websocket.PingMessage, nil, deadline)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write ping: %w", err)
	}
	return nil
}

// Err returns the error that terminated the stream.
func (c *wsStreamConn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.termErr
}

// Close tears down the subscription and connection.
func (c *wsStreamConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.config.WriteTimeout))
	c.writeMu.Unlock()
	c.conn.Close()

	c.wg.Wait()
	return nil
}

// readLoop reads frames until error or Close and dispatches notifications.
func (c *wsStreamConn) readLoop() {
	defer c.wg.Done()
	defer close(c.updates)

	c.conn.SetPongHandler(func(string) error {
		c.pongSeen.Store(time.Now().UnixNano())
		return nil
	})

	for {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.errMu.Lock()
				c.termErr = err
				c.errMu.Unlock()
			}
			return
		}

		notif, ok := c.parseMessage(message)
		if !ok {
			continue
		}

		select {
		case c.updates <- notif:
		case <-c.done:
			return
		}
	}
}

// parseMessage converts a raw frame into a feed notification.
func (c *wsStreamConn) parseMessage(message []byte) (FeedNotification, bool) {
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err != nil || notif.Params == nil {
		return FeedNotification{}, false
	}

	switch notif.Method {
	case "transactionNotification":
		return c.parseTransaction(notif.Params)
	case "accountNotification":
		return c.parseAccount(notif.Params)
	default:
		return FeedNotification{}, false
	}
}

func (c *wsStreamConn) parseTransaction(params *wsNotificationParams) (FeedNotification, bool) {
	var result wsTransactionResult
	if err := json.Unmarshal(params.Result, &result); err != nil {
		return FeedNotification{}, false
	}

	tx := &TransactionNotification{
		Signature: result.Signature,
		Slot:      result.Slot,
		Raw:       params.Result,
	}
	if result.Transaction != nil {
		if result.Transaction.BlockTime != nil {
			tx.BlockTime = *result.Transaction.BlockTime
		}
		if result.Transaction.Transaction != nil && result.Transaction.Transaction.Message != nil {
			tx.Accounts = result.Transaction.Transaction.Message.AccountKeys
		}
	}

	return FeedNotification{Kind: NotificationKindTransaction, Transaction: tx}, true
}

func (c *wsStreamConn) parseAccount(params *wsNotificationParams) (FeedNotification, bool) {
	var result wsAccountResult
	if err := json.Unmarshal(params.Result, &result); err != nil {
		return FeedNotification{}, false
	}

	acc := &AccountNotification{
		Lamports: result.Value.Lamports,
		Owner:    result.Value.Owner,
	}
	if result.Context != nil {
		acc.Slot = result.Context.Slot
	}

	return FeedNotification{Kind: NotificationKindAccount, Account: acc}, true
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string   `json:"jsonrpc"`
	ID      uint64   `json:"id"`
	Result  int64    `json:"result"` // subscription ID
	Error   *wsError `json:"error,omitempty"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64           `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type wsTransactionResult struct {
	Signature   string               `json:"signature"`
	Slot        int64                `json:"slot"`
	Transaction *wsTransactionDetail `json:"transaction"`
}

type wsTransactionDetail struct {
	BlockTime   *int64         `json:"blockTime"`
	Transaction *wsTransaction `json:"transaction"`
}

type wsTransaction struct {
	Message *wsTransactionMessage `json:"message"`
}

type wsTransactionMessage struct {
	AccountKeys []string `json:"accountKeys"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsAccountResult struct {
	Context *wsContext     `json:"context"`
	Value   wsAccountValue `json:"value"`
}

type wsAccountValue struct {
	Lamports uint64 `json:"lamports"`
	Owner    string `json:"owner"`
}
