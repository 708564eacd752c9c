package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"pkt.systems/pslog"
)

// ErrNotConnected is returned by Send while the socket is down. The command
// is dropped, not queued.
var ErrNotConnected = errors.New("websocket not connected")

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
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

const (
	defaultReconnectDelay   = 5 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultHandshakeTimeout = 5 * time.Second
	closeGracePeriod        = time.Second

	sessionHeader = "X-Tarsdeck-Session"
)

// Options configure a Client.
type Options struct {
	URL              string
	SessionID        string // generated when empty
	ReconnectDelay   time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	Logger           pslog.Logger
	Dialer           *websocket.Dialer
}

// Client owns the single dashboard websocket. It multiplexes named streams
// over it, replays them after every reconnect, and routes inbound frames by
// type. Construct one per process and share it.
type Client struct {
	ctx            context.Context
	url            string
	sessionID      string
	header         http.Header
	dialer         *websocket.Dialer
	log            pslog.Logger
	reconnectDelay time.Duration
	writeTimeout   time.Duration

	router    *Router
	streams   *streamRegistry
	listeners callbackList[func(State)]

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	gen            uint64
	manualClose    bool
	reconnectTimer *time.Timer

	writeMu sync.Mutex
}

// New builds a disconnected Client. The client disconnects for good when ctx
// is cancelled.
func New(ctx context.Context, opts Options) *Client {
	if ctx == nil {
		ctx = context.Background()
	}
	sessionID := strings.TrimSpace(opts.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	logger = logger.With("ws_session", sessionID)

	dialer := opts.Dialer
	if dialer == nil {
		handshake := opts.HandshakeTimeout
		if handshake <= 0 {
			handshake = defaultHandshakeTimeout
		}
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshake,
		}
	}
	reconnectDelay := opts.ReconnectDelay
	if reconnectDelay <= 0 {
		reconnectDelay = defaultReconnectDelay
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	header := http.Header{}
	header.Set(sessionHeader, sessionID)

	c := &Client{
		ctx:            ctx,
		url:            opts.URL,
		sessionID:      sessionID,
		header:         header,
		dialer:         dialer,
		log:            logger,
		reconnectDelay: reconnectDelay,
		writeTimeout:   writeTimeout,
		router:         NewRouter(logger),
	}
	c.streams = newStreamRegistry(c.Send)
	context.AfterFunc(ctx, c.Disconnect)
	return c
}

// SessionID returns the id sent with every handshake.
func (c *Client) SessionID() string { return c.sessionID }

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange registers fn for connected and disconnected transitions.
func (c *Client) OnStateChange(fn func(State)) (cancel func()) {
	if fn == nil {
		return func() {}
	}
	return c.listeners.add(fn)
}

// On registers a message handler. See Router.On.
func (c *Client) On(t MessageType, h Handler) (off func()) {
	return c.router.On(t, h)
}

// Router exposes the message router.
func (c *Client) Router() *Router { return c.router }

// Connect opens the socket unless it is already open or opening. A dial
// failure is returned for logging only; a reconnect is already scheduled.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return c.ctx.Err()
	}
	c.manualClose = false
	c.stopReconnectTimerLocked()
	c.state = StateConnecting
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	return c.dial(ctx, gen)
}

// Disconnect stops every stream, closes the socket and suppresses reconnects
// until the next Connect.
func (c *Client) Disconnect() {
	c.streams.stopAll()

	c.mu.Lock()
	c.manualClose = true
	c.stopReconnectTimerLocked()
	c.gen++
	conn := c.conn
	c.conn = nil
	prev := c.state
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
		_ = conn.Close()
	}
	if prev != StateDisconnected {
		c.log.Info("websocket disconnected", "reason", "manual")
		c.emit(StateDisconnected)
	}
}

// Send writes one command frame. It never blocks on a reconnect: while the
// socket is down the command is logged and dropped and ErrNotConnected is
// returned.
func (c *Client) Send(command string, params map[string]any) error {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != StateConnected || conn == nil {
		c.log.Warn("websocket command dropped", "command", command, "state", state.String())
		return ErrNotConnected
	}

	if params == nil {
		params = map[string]any{}
	}
	frame, err := json.Marshal(Command{Command: command, Params: params})
	if err != nil {
		return fmt.Errorf("encode %s: %w", command, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		// a failed write leaves the conn unusable; the read loop picks up the close
		c.log.Warn("websocket send failed", "command", command, "err", err)
		_ = conn.Close()
		return fmt.Errorf("send %s: %w", command, err)
	}
	c.log.Trace("websocket command sent", "command", command)
	return nil
}

// StartStream asks the server to start pushing name. Repeated starts are
// no-ops.
func (c *Client) StartStream(name string) error {
	added, err := c.streams.start(name)
	if added {
		c.log.Debug("stream started", "stream", name)
	}
	return err
}

// StopStream forgets name and asks the server to stop it.
func (c *Client) StopStream(name string) error {
	removed, err := c.streams.stop(name)
	if removed {
		c.log.Debug("stream stopped", "stream", name)
	}
	return err
}

// Streams returns the desired streams in the order they were started.
func (c *Client) Streams() []string {
	return c.streams.snapshot()
}

// Dismiss acknowledges a frontend message.
func (c *Client) Dismiss(id string) error {
	return c.Send(commandDismissMessage, map[string]any{"message_id": id})
}

func (c *Client) dial(ctx context.Context, gen uint64) error {
	if ctx == nil {
		ctx = c.ctx
	}
	conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)

	c.mu.Lock()
	if gen != c.gen {
		// superseded by Disconnect or a newer Connect
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return nil
	}
	if err != nil {
		c.state = StateReconnecting
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.log.Warn("websocket dial failed", "url", c.url, "err", err, "retry_in", c.reconnectDelay.String())
		c.emit(StateReconnecting)
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.stopReconnectTimerLocked()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	c.log.Info("websocket connected", "url", c.url)
	c.emit(StateConnected)
	c.streams.replay()

	go c.readLoop(conn, gen)
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, gen, err)
			return
		}
		if !c.current(conn, gen) {
			return
		}
		c.router.Dispatch(frame)
	}
}

func (c *Client) current(conn *websocket.Conn, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen && c.conn == conn
}

func (c *Client) handleClose(conn *websocket.Conn, gen uint64, cause error) {
	c.mu.Lock()
	if c.gen != gen || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	_ = conn.Close()
	if c.manualClose || c.ctx.Err() != nil {
		c.state = StateDisconnected
	} else {
		c.state = StateReconnecting
		c.scheduleReconnectLocked()
	}
	state := c.state
	c.mu.Unlock()

	c.log.Warn("websocket closed", "err", cause, "state", state.String())
	c.emit(state)
}

// scheduleReconnectLocked arms the reconnect timer unless one is pending.
func (c *Client) scheduleReconnectLocked() {
	if c.reconnectTimer != nil {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(c.reconnectDelay, func() {
		c.mu.Lock()
		if c.reconnectTimer != timer {
			c.mu.Unlock()
			return
		}
		c.reconnectTimer = nil
		if c.manualClose || c.state != StateReconnecting || c.ctx.Err() != nil {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		c.gen++
		gen := c.gen
		c.mu.Unlock()

		c.log.Debug("websocket reconnecting", "url", c.url)
		_ = c.dial(c.ctx, gen)
	})
	c.reconnectTimer = timer
}

func (c *Client) stopReconnectTimerLocked() {
	if c.reconnectTimer == nil {
		return
	}
	c.reconnectTimer.Stop()
	c.reconnectTimer = nil
}

func (c *Client) reconnectPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectTimer != nil
}

func (c *Client) emit(state State) {
	for _, fn := range c.listeners.get() {
		fn(state)
	}
}

// WebSocketURL derives the websocket endpoint from the REST server URL.
func WebSocketURL(serverURL, path string) (string, error) {
	trimmed := strings.TrimSpace(serverURL)
	if trimmed == "" {
		return "", fmt.Errorf("server url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse server url %q: %w", serverURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
