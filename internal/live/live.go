package live

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnState is the push connection's lifecycle state. The UI treats
// anything other than StateConnected as "data may be stale".
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Subscription identifies one logical change feed: all entities of a
// model whose property has the given value.
type Subscription struct {
	Model    string `json:"model"`
	Property string `json:"property"`
	Value    int64  `json:"value"`
}

// ChangeKind tags a notification.
type ChangeKind string

const (
	Created ChangeKind = "created"
	Updated ChangeKind = "updated"
	Deleted ChangeKind = "deleted"
)

// Notification is a server push. It carries identity and change kind
// only; consumers must refetch to learn the new content.
type Notification struct {
	Model string     `json:"model"`
	ID    int64      `json:"id"`
	Kind  ChangeKind `json:"action"`
}

// request is the client -> server control message.
type request struct {
	Action   string `json:"action"`
	Model    string `json:"model"`
	Property string `json:"property"`
	Value    int64  `json:"value"`
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	baseReconnectDelay = time.Second
	maxReconnectDelay  = 30 * time.Second
)

// handler receives notifications for one consumer of a subscription.
type handler struct {
	id int64
	fn func(Notification)
}

// subState is the reference-counted state for one distinct
// subscription tuple.
type subState struct {
	handlers []handler
}

// Client maintains one websocket connection to the push channel and
// multiplexes reference-counted subscriptions over it. Exactly one
// subscribe message is sent per distinct subscription tuple no matter
// how many consumers register; the last consumer's cancel sends
// exactly one unsubscribe.
type Client struct {
	url    string
	header http.Header
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	state   ConnState
	subs    map[Subscription]*subState
	nextID  int64
	send    chan request
	cancel  context.CancelFunc
	stateCh []chan ConnState
}

// NewClient prepares a push channel client for the given websocket
// URL. The connection is established by Run.
func NewClient(wsURL string, header http.Header) *Client {
	return &Client{
		url:    wsURL,
		header: header,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		subs:   make(map[Subscription]*subState),
		send:   make(chan request, 32),
		state:  StateDisconnected,
	}
}

// Connected reports whether the push channel is live. False means the
// UI should warn that data may be stale.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StateChanges returns a channel receiving every connection state
// transition. Sends never block.
func (c *Client) StateChanges() <-chan ConnState {
	ch := make(chan ConnState, 8)
	c.mu.Lock()
	c.stateCh = append(c.stateCh, ch)
	c.mu.Unlock()
	return ch
}

func (c *Client) setState(s ConnState) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	listeners := c.stateCh
	c.mu.Unlock()
	for _, ch := range listeners {
		select {
		case ch <- s:
		default:
		}
	}
}

// Subscribe registers fn for notifications matching sub. The returned
// cancel is idempotent; notifications arriving after cancel are
// dropped, including any already queued when cancel raced a push.
func (c *Client) Subscribe(sub Subscription, fn func(Notification)) (cancel func()) {
	c.mu.Lock()
	state, ok := c.subs[sub]
	if !ok {
		state = &subState{}
		c.subs[sub] = state
	}
	c.nextID++
	id := c.nextID
	state.handlers = append(state.handlers, handler{id: id, fn: fn})
	if len(state.handlers) == 1 && c.state == StateConnected {
		c.sendLocked(request{Action: "subscribe", Model: sub.Model, Property: sub.Property, Value: sub.Value})
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			state, ok := c.subs[sub]
			if !ok {
				c.mu.Unlock()
				return
			}
			for i, h := range state.handlers {
				if h.id == id {
					state.handlers = append(state.handlers[:i], state.handlers[i+1:]...)
					break
				}
			}
			if len(state.handlers) == 0 {
				delete(c.subs, sub)
				if c.state == StateConnected {
					c.sendLocked(request{Action: "unsubscribe", Model: sub.Model, Property: sub.Property, Value: sub.Value})
				}
			}
			c.mu.Unlock()
		})
	}
}

// sendLocked hands a control message to the write pump without
// blocking. Callers hold mu, which keeps the send ordered with respect
// to subscription set changes and connection transitions; messages
// produced while disconnected are never queued (reconnection replays
// the active subscription set instead).
func (c *Client) sendLocked(req request) {
	select {
	case c.send <- req:
	default:
		log.Printf("live: dropping control message %s %s", req.Action, req.Model)
	}
}

// Run dials the push channel and services it until ctx is cancelled,
// reconnecting with exponential backoff on failure. Active
// subscriptions are re-sent after every reconnect: server-side
// subscription state does not survive a connection loss.
func (c *Client) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	failures := 0
	first := true
	for {
		if ctx.Err() != nil {
			c.setState(StateDisconnected)
			return
		}
		if first {
			c.setState(StateConnecting)
			first = false
		} else {
			c.setState(StateReconnecting)
		}

		conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			failures++
			delay := calculateBackoff(failures, baseReconnectDelay)
			log.Printf("live: dial failed (attempt %d, retrying in %s): %v", failures, delay, err)
			select {
			case <-ctx.Done():
				c.setState(StateDisconnected)
				return
			case <-time.After(delay):
			}
			continue
		}

		failures = 0
		c.connect(conn)

		c.service(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}
}

// Close tears the connection down and stops Run.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// connect installs a fresh connection, discards control messages left
// over from the previous one, and replays one subscribe message per
// active subscription tuple. The whole transition happens under mu so
// a concurrent Subscribe is either included in the replay or sends its
// own message, never both and never neither.
func (c *Client) connect(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
drain:
	for {
		select {
		case <-c.send:
		default:
			break drain
		}
	}
	for sub := range c.subs {
		c.sendLocked(request{Action: "subscribe", Model: sub.Model, Property: sub.Property, Value: sub.Value})
	}
	listeners := c.stateCh
	c.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- StateConnected:
		default:
		}
	}
}

// service runs the read and write pumps for one connection and
// returns when either fails or ctx is cancelled.
func (c *Client) service(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})

	// Read pump. Deadlines are refreshed by pongs so a silent peer is
	// detected within pongWait.
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var note Notification
			if err := json.Unmarshal(payload, &note); err != nil {
				log.Printf("live: bad notification payload: %v", err)
				continue
			}
			c.dispatch(note)
		}
	}()

	// Write pump.
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-done:
			return
		case req := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(req); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch fans a notification out to the handlers whose subscription
// tuple matches the notification's model. Notifications for models
// with no live subscription are dropped, which also covers the race
// between an unsubscribe in flight and a pending event.
func (c *Client) dispatch(note Notification) {
	c.mu.Lock()
	var fns []func(Notification)
	for sub, state := range c.subs {
		if sub.Model != note.Model {
			continue
		}
		for _, h := range state.handlers {
			fns = append(fns, h.fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(note)
	}
}

// calculateBackoff doubles the base delay per consecutive failure,
// capped at maxReconnectDelay.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	delay := base
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= maxReconnectDelay {
			return maxReconnectDelay
		}
	}
	return delay
}
