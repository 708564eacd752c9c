package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/websocket"
	"pkt.systems/pslog"
)

func testLogger() pslog.Logger {
	return pslog.NewWithOptions(io.Discard, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: pslog.ErrorLevel,
	})
}

// wsServer is a minimal dashboard endpoint that records commands and lets
// tests push frames or drop connections.
type wsServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	conns    []*websocket.Conn
	accepts  int
	commands []string
	sessions []string
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()
	s := &wsServer{}
	upgrader := websocket.Upgrader{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.accepts++
		s.sessions = append(s.sessions, r.Header.Get(sessionHeader))
		s.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var cmd Command
			if err := json.Unmarshal(data, &cmd); err != nil {
				continue
			}
			s.mu.Lock()
			s.commands = append(s.commands, cmd.Command)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(func() {
		s.dropAll()
		s.srv.Close()
	})
	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *wsServer) acceptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepts
}

func (s *wsServer) sentCommands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.commands)
}

func (s *wsServer) resetCommands() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = nil
}

func (s *wsServer) push(t *testing.T, frame string) {
	t.Helper()
	s.mu.Lock()
	conn := s.conns[len(s.conns)-1]
	s.mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("push frame: %v", err)
	}
}

func (s *wsServer) dropAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestClient(t *testing.T, url string, delay time.Duration) *Client {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, Options{
		URL:            url,
		ReconnectDelay: delay,
		Logger:         testLogger(),
	})
}

func TestConnectIsIdempotent(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url(), time.Minute)

	assert.Equal(t, c.Connect(context.Background()), nil)
	assert.Equal(t, c.Connect(context.Background()), nil)
	assert.Equal(t, c.State(), StateConnected)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, srv.acceptCount(), 1)

	srv.mu.Lock()
	session := srv.sessions[0]
	srv.mu.Unlock()
	assert.Equal(t, session, c.SessionID())
}

func TestSendWhileDisconnectedIsReported(t *testing.T) {
	c := newTestClient(t, "ws://127.0.0.1:1/unmanic/websocket", time.Minute)

	err := c.Send("start_workers_info", nil)
	assert.Equal(t, errors.Is(err, ErrNotConnected), true)

	// the stream stays desired and is started once the socket opens
	assert.Equal(t, errors.Is(c.StartStream(StreamWorkersInfo), ErrNotConnected), true)
	assert.Equal(t, c.Streams(), []string{StreamWorkersInfo})
}

func TestStreamsStartedBeforeConnectAreReplayedOnOpen(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url(), time.Minute)

	_ = c.StartStream(StreamWorkersInfo)
	_ = c.StartStream(StreamPendingTasks)

	assert.Equal(t, c.Connect(context.Background()), nil)
	waitFor(t, "replayed starts", func() bool { return len(srv.sentCommands()) == 2 })
	assert.Equal(t, srv.sentCommands(), []string{"start_workers_info", "start_pending_tasks_info"})
}

func TestReconnectReplaysOnlyDesiredStreams(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url(), 20*time.Millisecond)

	assert.Equal(t, c.Connect(context.Background()), nil)
	_ = c.StartStream(StreamWorkersInfo)
	_ = c.StartStream(StreamPendingTasks)
	_ = c.StartStream(StreamFrontendMessages)
	_ = c.StartStream(StreamWorkersInfo)
	_ = c.StopStream(StreamPendingTasks)

	waitFor(t, "initial commands", func() bool { return len(srv.sentCommands()) == 4 })
	assert.Equal(t, srv.sentCommands(), []string{
		"start_workers_info",
		"start_pending_tasks_info",
		"start_frontend_messages",
		"stop_pending_tasks_info",
	})

	srv.resetCommands()
	srv.dropAll()

	waitFor(t, "reconnect", func() bool { return srv.acceptCount() == 2 && c.State() == StateConnected })
	waitFor(t, "replay", func() bool { return len(srv.sentCommands()) == 2 })
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, srv.sentCommands(), []string{"start_workers_info", "start_frontend_messages"})
}

func TestNonManualCloseSchedulesExactlyOneReconnect(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url(), 100*time.Millisecond)

	var states []State
	var statesMu sync.Mutex
	c.OnStateChange(func(s State) {
		statesMu.Lock()
		states = append(states, s)
		statesMu.Unlock()
	})

	assert.Equal(t, c.Connect(context.Background()), nil)
	srv.dropAll()

	waitFor(t, "reconnecting", func() bool { return c.State() == StateReconnecting })
	assert.Equal(t, c.reconnectPending(), true)

	c.mu.Lock()
	first := c.reconnectTimer
	c.scheduleReconnectLocked()
	same := c.reconnectTimer == first
	c.mu.Unlock()
	assert.Equal(t, same, true)

	waitFor(t, "reconnected", func() bool { return c.State() == StateConnected })
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, srv.acceptCount(), 2)
	assert.Equal(t, c.reconnectPending(), false)

	statesMu.Lock()
	defer statesMu.Unlock()
	assert.Equal(t, states, []State{StateConnected, StateReconnecting, StateConnected})
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url(), 150*time.Millisecond)

	assert.Equal(t, c.Connect(context.Background()), nil)
	_ = c.StartStream(StreamWorkersInfo)
	srv.dropAll()

	waitFor(t, "reconnecting", func() bool { return c.State() == StateReconnecting })
	c.Disconnect()

	assert.Equal(t, c.reconnectPending(), false)
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, srv.acceptCount(), 1)
	assert.Equal(t, c.State(), StateDisconnected)
	assert.Equal(t, len(c.Streams()), 0)
}

func TestDisconnectStopsAllStreams(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url(), time.Minute)

	assert.Equal(t, c.Connect(context.Background()), nil)
	_ = c.StartStream(StreamWorkersInfo)
	_ = c.StartStream(StreamCompletedTasks)
	waitFor(t, "starts", func() bool { return len(srv.sentCommands()) == 2 })

	c.Disconnect()

	waitFor(t, "stops", func() bool { return len(srv.sentCommands()) == 4 })
	assert.Equal(t, srv.sentCommands()[2:], []string{"stop_workers_info", "stop_completed_tasks_info"})
	assert.Equal(t, len(c.Streams()), 0)
	assert.Equal(t, c.reconnectPending(), false)

	// a manual close never reconnects on its own
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, srv.acceptCount(), 1)
}

func TestDialFailureArmsReconnect(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	c := newTestClient(t, url, time.Minute)
	err := c.Connect(context.Background())
	assert.NotEqual(t, err, nil)
	assert.Equal(t, c.State(), StateReconnecting)
	assert.Equal(t, c.reconnectPending(), true)

	c.Disconnect()
	assert.Equal(t, c.reconnectPending(), false)
	assert.Equal(t, c.State(), StateDisconnected)
}

func TestMalformedFrameDoesNotDropConnection(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url(), time.Minute)

	received := make(chan Message, 1)
	c.On(TypeWorkersInfo, func(m Message) { received <- m })

	assert.Equal(t, c.Connect(context.Background()), nil)
	srv.push(t, "{not json")
	srv.push(t, `{"success":true}`)
	srv.push(t, `{"success":true,"type":"workers_info","workers":[{"id":"w1"}]}`)

	select {
	case msg := <-received:
		info := msg.Payload.(*WorkersInfo)
		assert.Equal(t, info.Workers[0].ID, "w1")
	case <-time.After(3 * time.Second):
		t.Fatalf("workers_info frame not routed")
	}
	assert.Equal(t, c.State(), StateConnected)
	assert.Equal(t, srv.acceptCount(), 1)
}

func TestDismissSendsMessageID(t *testing.T) {
	var got Command
	done := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err := conn.ReadJSON(&got); err == nil {
			close(done)
		}
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(t, "ws"+strings.TrimPrefix(srv.URL, "http"), time.Minute)
	assert.Equal(t, c.Connect(context.Background()), nil)
	assert.Equal(t, c.Dismiss("m-17"), nil)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("dismiss frame not received")
	}
	assert.Equal(t, got.Command, "dismiss_message")
	assert.Equal(t, got.Params["message_id"], "m-17")
	c.Disconnect()
}

func TestCancelledContextDisconnects(t *testing.T) {
	srv := newWSServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	c := New(ctx, Options{URL: srv.url(), ReconnectDelay: 20 * time.Millisecond, Logger: testLogger()})

	assert.Equal(t, c.Connect(context.Background()), nil)
	cancel()

	waitFor(t, "disconnect", func() bool { return c.State() == StateDisconnected })
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, srv.acceptCount(), 1)
	assert.NotEqual(t, c.Connect(context.Background()), nil)
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		server string
		path   string
		want   string
	}{
		{"http://10.0.0.5:8888", "/unmanic/websocket", "ws://10.0.0.5:8888/unmanic/websocket"},
		{"https://tars.example.com/ui?x=1", "unmanic/websocket", "wss://tars.example.com/unmanic/websocket"},
		{"localhost:8888", "/ws", "ws://localhost:8888/ws"},
	}
	for _, tt := range tests {
		got, err := WebSocketURL(tt.server, tt.path)
		assert.Equal(t, err, nil)
		assert.Equal(t, got, tt.want)
	}

	_, err := WebSocketURL("ftp://host", "/ws")
	assert.NotEqual(t, err, nil)
	_, err = WebSocketURL("  ", "/ws")
	assert.NotEqual(t, err, nil)
}
