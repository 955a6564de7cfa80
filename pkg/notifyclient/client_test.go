package notifyclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"opsdash/pkg/realtime"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer acknowledges every register event and lets the test script
// what happens afterwards on each connection.
type fakeServer struct {
	t         *testing.T
	srv       *httptest.Server
	mu        sync.Mutex
	register  []realtime.Identity
	received  []realtime.Event
	reject    string
	beforeAck func()
	after     func(n int, conn *websocket.Conn)
}

func newFakeServer(t *testing.T) *fakeServer {
	f := &fakeServer{t: t}
	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var evt realtime.Event
		if err := conn.ReadJSON(&evt); err != nil || evt.Event != realtime.EventRegister {
			return
		}
		var identity realtime.Identity
		_ = evt.Decode(&identity)

		f.mu.Lock()
		f.register = append(f.register, identity)
		n := len(f.register)
		reject := f.reject
		f.mu.Unlock()

		if reject != "" {
			_ = conn.WriteJSON(realtime.MustEvent(realtime.EventError, realtime.ErrorPayload{Message: reject}))
			return
		}
		if f.beforeAck != nil {
			f.beforeAck()
		}
		_ = conn.WriteJSON(realtime.MustEvent(realtime.EventRegistered, realtime.Registered{ConnectionID: "c", UserID: identity.UserID}))

		if f.after != nil {
			f.after(n, conn)
			return
		}
		for {
			var in realtime.Event
			if err := conn.ReadJSON(&in); err != nil {
				return
			}
			f.mu.Lock()
			f.received = append(f.received, in)
			f.mu.Unlock()
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

func (f *fakeServer) registrations() []realtime.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]realtime.Identity(nil), f.register...)
}

func (f *fakeServer) events() []realtime.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]realtime.Event(nil), f.received...)
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

var alice = realtime.Identity{UserID: "alice", Name: "Alice"}

func runClient(t *testing.T, c *Client) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Connect(context.Background()) }()
	t.Cleanup(func() { _ = c.Close() })
	return done
}

func TestClient_RegistersAndReceives(t *testing.T) {
	server := newFakeServer(t)
	server.after = func(_ int, conn *websocket.Conn) {
		_ = conn.WriteJSON(realtime.MustEvent(realtime.EventNewNotification, realtime.NewNotification{SenderName: "Bob", Message: "hi"}))
		var evt realtime.Event
		_ = conn.ReadJSON(&evt)
	}

	got := make(chan realtime.NewNotification, 1)
	c := New(alice, server.url(), OnNotification(func(n realtime.NewNotification) { got <- n }))
	runClient(t, c)

	select {
	case n := <-got:
		assert.Equal(t, "hi", n.Message)
		assert.Equal(t, "Bob", n.SenderName)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification received")
	}
	assert.True(t, c.Connected())
	require.Len(t, server.registrations(), 1)
	assert.Equal(t, alice, server.registrations()[0])
}

func TestClient_ReregistersAfterDrop(t *testing.T) {
	server := newFakeServer(t)
	server.after = func(n int, conn *websocket.Conn) {
		if n == 1 {
			return
		}
		var evt realtime.Event
		_ = conn.ReadJSON(&evt)
	}

	c := New(alice, server.url(), WithReconnectDelay(10*time.Millisecond))
	runClient(t, c)

	require.Eventually(t, func() bool {
		return len(server.registrations()) == 2 && c.Connected()
	}, 5*time.Second, 10*time.Millisecond)
	for _, identity := range server.registrations() {
		assert.Equal(t, alice, identity)
	}
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	server := newFakeServer(t)
	url := server.url()
	server.srv.Close()

	recorder := &stateRecorder{}
	c := New(alice, url,
		WithReconnectDelay(5*time.Millisecond),
		WithMaxAttempts(3),
		OnStateChange(recorder.record),
	)

	err := c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, StateFailed, c.State())
	assert.Equal(t, []State{
		StateConnecting, StateDisconnected,
		StateConnecting, StateDisconnected,
		StateConnecting, StateFailed,
	}, recorder.all())
}

func TestClient_RejectedRegistrationCountsAsFailure(t *testing.T) {
	server := newFakeServer(t)
	server.reject = "identity does not match token"

	c := New(alice, server.url(), WithReconnectDelay(5*time.Millisecond), WithMaxAttempts(2))
	err := c.Connect(context.Background())

	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Contains(t, err.Error(), "identity does not match token")
	assert.Len(t, server.registrations(), 2)
}

func TestClient_SendToUser(t *testing.T) {
	server := newFakeServer(t)
	c := New(alice, server.url())

	assert.ErrorIs(t, c.SendToUser("bob", "early"), ErrNotConnected)

	runClient(t, c)
	require.Eventually(t, c.Connected, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, c.SendToUser("bob", "one"))
	require.NoError(t, c.SendToUser("bob", "two"))

	require.Eventually(t, func() bool { return len(server.events()) == 2 }, 5*time.Second, 10*time.Millisecond)
	for i, want := range []string{"one", "two"} {
		evt := server.events()[i]
		assert.Equal(t, realtime.EventSendNotification, evt.Event)
		var payload realtime.SendNotification
		require.NoError(t, evt.Decode(&payload))
		assert.Equal(t, "bob", payload.TargetUserID)
		assert.Equal(t, "Alice", payload.SenderName)
		assert.Equal(t, want, payload.Message)
	}
}

func TestClient_CloseStopsLoop(t *testing.T) {
	server := newFakeServer(t)
	c := New(alice, server.url(), WithReconnectDelay(10*time.Millisecond))
	done := runClient(t, c)
	require.Eventually(t, c.Connected, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Connect did not return after Close")
	}
	assert.Equal(t, StateDisconnected, c.State())
	assert.ErrorIs(t, c.SendToUser("bob", "late"), ErrNotConnected)
}

func TestClient_ContextCancel(t *testing.T) {
	server := newFakeServer(t)
	c := New(alice, server.url())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Connect(ctx) }()
	require.Eventually(t, c.Connected, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("Connect did not return after cancel")
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestClient_CloseDuringHandshakeNeverReportsConnected(t *testing.T) {
	server := newFakeServer(t)
	recorder := &stateRecorder{}
	c := New(alice, server.url(), WithReconnectDelay(10*time.Millisecond), OnStateChange(recorder.record))
	server.beforeAck = func() { _ = c.Close() }

	done := runClient(t, c)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Connect did not return after Close")
	}

	assert.NotContains(t, recorder.all(), StateConnected)
	assert.Equal(t, StateDisconnected, c.State())
	err := c.SendToUser("bob", "hi")
	assert.ErrorIs(t, err, ErrNotConnected)
}
