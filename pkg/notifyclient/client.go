// Package notifyclient is the client side of the notification websocket. It
// registers an identity on every connection and reconnects with a fixed delay
// until an attempt budget runs out.
package notifyclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"opsdash/pkg/logger"
	"opsdash/pkg/realtime"

	"github.com/gorilla/websocket"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrUnreachable  = errors.New("notifyclient: server unreachable")
	ErrNotConnected = errors.New("notifyclient: not connected")
)

const (
	DefaultReconnectDelay = 2 * time.Second
	DefaultMaxAttempts    = 5
	handshakeTimeout      = 10 * time.Second
)

type Client struct {
	identity    realtime.Identity
	url         string
	dialer      *websocket.Dialer
	header      http.Header
	delay       time.Duration
	maxAttempts int
	logger      *logger.Logger

	onNotification func(realtime.NewNotification)
	onStateChange  func(State)

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	writeMu sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once
}

type Option func(*Client)

func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithMaxAttempts sets how many consecutive failed connection attempts are
// tolerated before the client gives up.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func WithHeader(h http.Header) Option {
	return func(c *Client) { c.header = h }
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// OnNotification is called from the read loop for every newNotification event.
func OnNotification(fn func(realtime.NewNotification)) Option {
	return func(c *Client) { c.onNotification = fn }
}

func OnStateChange(fn func(State)) Option {
	return func(c *Client) { c.onStateChange = fn }
}

func New(identity realtime.Identity, url string, opts ...Option) *Client {
	c := &Client{
		identity:    identity,
		url:         url,
		dialer:      websocket.DefaultDialer,
		delay:       DefaultReconnectDelay,
		maxAttempts: DefaultMaxAttempts,
		logger:      logger.Discard(),
		closed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Connected() bool {
	return c.State() == StateConnected
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	if c.onStateChange != nil {
		c.onStateChange(s)
	}
}

// Connect runs the connection loop and blocks until ctx is done, Close is
// called, or maxAttempts consecutive attempts fail. In the last case the
// state becomes StateFailed and the error wraps ErrUnreachable.
func (c *Client) Connect(ctx context.Context) error {
	failures := 0
	for {
		if c.stopped(ctx) {
			c.setState(StateDisconnected)
			return ctx.Err()
		}

		c.setState(StateConnecting)
		conn, err := c.dial(ctx)
		if err != nil {
			failures++
			c.logger.Warn("[WS] Connection attempt %d/%d to %s failed: %v", failures, c.maxAttempts, c.url, err)
			if failures >= c.maxAttempts {
				c.setState(StateFailed)
				return fmt.Errorf("%w after %d attempts: %v", ErrUnreachable, failures, err)
			}
			c.setState(StateDisconnected)
			if !c.wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		failures = 0
		if c.stopped(ctx) {
			_ = conn.Close()
			c.setState(StateDisconnected)
			return ctx.Err()
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.setState(StateConnected)
		c.logger.Info("[WS] Connected to %s as %s", c.url, c.identity.UserID)

		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		err = c.readLoop(conn)
		stop()

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
		c.setState(StateDisconnected)

		if c.stopped(ctx) {
			return ctx.Err()
		}
		c.logger.Warn("[WS] Disconnected from %s: %v", c.url, err)
		if !c.wait(ctx) {
			return ctx.Err()
		}
	}
}

// dial opens a connection and registers the identity. The connection is
// only handed back once the server acknowledged the registration.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(dialCtx, c.url, c.header)
	if err != nil {
		return nil, err
	}

	_ = conn.SetWriteDeadline(time.Now().Add(handshakeTimeout))
	if err := conn.WriteJSON(realtime.MustEvent(realtime.EventRegister, c.identity)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Time{})

	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var ack realtime.Event
	if err := conn.ReadJSON(&ack); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to read registration ack: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	switch ack.Event {
	case realtime.EventRegistered:
		return conn, nil
	case realtime.EventError:
		var payload realtime.ErrorPayload
		_ = ack.Decode(&payload)
		_ = conn.Close()
		return nil, fmt.Errorf("registration rejected: %s", payload.Message)
	default:
		_ = conn.Close()
		return nil, fmt.Errorf("unexpected %q before registration ack", ack.Event)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		var evt realtime.Event
		if err := conn.ReadJSON(&evt); err != nil {
			return err
		}

		switch evt.Event {
		case realtime.EventNewNotification:
			var payload realtime.NewNotification
			if err := evt.Decode(&payload); err != nil {
				c.logger.Warn("[WS] %v", err)
				continue
			}
			if c.onNotification != nil {
				c.onNotification(payload)
			}
		case realtime.EventError:
			var payload realtime.ErrorPayload
			_ = evt.Decode(&payload)
			c.logger.Warn("[WS] Server rejected an event: %s", payload.Message)
		}
	}
}

// wait sleeps for the reconnect delay. It returns false when the client
// should stop instead.
func (c *Client) wait(ctx context.Context) bool {
	timer := time.NewTimer(c.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		c.setState(StateDisconnected)
		return false
	case <-c.closed:
		c.setState(StateDisconnected)
		return false
	}
}

func (c *Client) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.closed:
		return true
	default:
		return false
	}
}

// SendToUser asks the server to push message to every live connection of
// targetUserID.
func (c *Client) SendToUser(targetUserID, message string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(realtime.MustEvent(realtime.EventSendNotification, realtime.SendNotification{
		TargetUserID: targetUserID,
		SenderName:   c.identity.Name,
		Message:      message,
	}))
}

// Close stops the connection loop and drops the current connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
