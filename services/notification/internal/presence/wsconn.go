package presence

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"opsdash/pkg/logger"
	"opsdash/pkg/realtime"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	DefaultSendBuffer = 64
)

var (
	ErrConnClosed     = errors.New("presence: connection closed")
	ErrSendBufferFull = errors.New("presence: send buffer full")
)

// WSConn is a Handle backed by a gorilla websocket. Outgoing events go
// through a buffered queue drained by WritePump, the only writer on conn, so
// events are written in the order they were accepted.
type WSConn struct {
	id        string
	conn      *websocket.Conn
	send      chan realtime.Event
	done      chan struct{}
	closeOnce sync.Once
	logger    *logger.Logger
}

func NewWSConn(conn *websocket.Conn, bufferSize int, logger *logger.Logger) *WSConn {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBuffer
	}
	return &WSConn{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan realtime.Event, bufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (c *WSConn) ID() string {
	return c.id
}

// Send queues evt without blocking.
func (c *WSConn) Send(evt realtime.Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- evt:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSendBufferFull
	}
}

// Close stops WritePump, which closes the underlying connection.
func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

func (c *WSConn) Done() <-chan struct{} {
	return c.done
}

// WritePump writes queued events and keepalive pings until Close is called
// or a write fails.
func (c *WSConn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case evt := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(evt); err != nil {
				c.logger.Warn("[WS] Write to %s failed: %v", c.id, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// ReadPump decodes incoming events and hands them to handle until the peer
// goes away. A frame that is not a valid event is handed over as an Event
// with an empty name. A normal close returns nil.
func (c *WSConn) ReadPump(handle func(realtime.Event)) error {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return err
			}
			return nil
		}

		var evt realtime.Event
		if err := json.Unmarshal(data, &evt); err != nil {
			evt = realtime.Event{}
		}
		handle(evt)
	}
}
