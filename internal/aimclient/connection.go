package aimclient

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/shottracker/shottracker/pkg/streaming"
)

const (
	sendChSize   = 256
	replyChSize  = 64
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
)

// connection manages a WebSocket connection with a single write goroutine
// per underlying socket.
type connection struct {
	mu       sync.Mutex
	conn     *ws.Conn
	connDone chan struct{} // closed when conn is replaced
	sendCh   chan []byte
	replyCh  chan streaming.Envelope
	done     chan struct{} // closed on shutdown
	closed   bool

	reconnecting bool
	backoff      time.Duration // before the first reconnect attempt

	wsURL string

	// Last message of each type in the order they were sent, replayed so a
	// new server session ends up where the old one was. skip counts the
	// replies to those. pending is the type a caller is still waiting on;
	// its replayed reply is delivered rather than skipped.
	state   map[string][]byte
	order   []string
	skip    int
	pending string

	logger *slog.Logger
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh:  make(chan []byte, sendChSize),
		replyCh: make(chan streaming.Envelope, replyChSize),
		done:    make(chan struct{}),
		state:   make(map[string][]byte),
		backoff: time.Second,
		logger:  logger,
	}
}

// dial connects to the aim stream and starts read/write loops.
func (c *connection) dial(rawURL string) error {
	c.wsURL = rawURL

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.start(conn)
	c.mu.Unlock()
	return nil
}

func (c *connection) dialOnce() (*ws.Conn, error) {
	conn, _, err := ws.DefaultDialer.Dial(c.wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// start installs conn and runs its loops. c.mu must be held.
func (c *connection) start(conn *ws.Conn) {
	c.conn = conn
	c.connDone = make(chan struct{})
	go c.writeLoop(conn, c.connDone)
	go c.readLoop(conn)
}

// writeLoop drains sendCh onto conn until conn is replaced or the
// connection shuts down.
func (c *connection) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	for {
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case data := <-c.sendCh:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				go c.reconnect(conn)
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect(conn)
				return
			}
		}
	}
}

// readLoop routes server envelopes to replyCh, dropping the replies to
// replayed state.
func (c *connection) readLoop(conn *ws.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect(conn)
			return
		}

		var env streaming.Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Debug("Non-envelope message received", "raw", string(message))
			continue
		}

		c.mu.Lock()
		replayed := c.skip > 0
		if replayed {
			c.skip--
		} else {
			c.pending = ""
		}
		c.mu.Unlock()
		if replayed {
			continue
		}

		select {
		case c.replyCh <- env:
		default:
			c.logger.Debug("Reply channel full, dropping", "type", env.Type)
		}
	}
}

// reconnect replaces failed with a fresh connection, with exponential
// backoff. Calls for a connection that was already replaced are ignored.
func (c *connection) reconnect(failed *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.reconnecting || c.conn != failed {
		c.mu.Unlock()
		return
	}
	c.reconnecting = true
	close(c.connDone)
	_ = c.conn.Close()
	c.conn = nil
	backoff := c.backoff
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.reconnecting = false
		c.mu.Unlock()
	}()

	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Reconnecting to aim stream", "attempt", attempt)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		if err := c.replay(conn); err != nil {
			c.logger.Warn("Failed to replay session state", "error", err)
			_ = conn.Close()
			continue
		}

		c.logger.Info("Aim stream reconnected", "attempt", attempt)
		return
	}

	c.logger.Error("Aim stream reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// replay resends cached state on a fresh connection, then hands it to the
// loops.
func (c *connection) replay(conn *ws.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	// Anything still queued is covered by the replayed state.
	for drained := false; !drained; {
		select {
		case <-c.sendCh:
		default:
			drained = true
		}
	}
	for _, typ := range c.order {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		if err := conn.WriteMessage(ws.TextMessage, c.state[typ]); err != nil {
			return err
		}
	}
	c.skip = len(c.order)
	if c.pending != "" && c.skip > 0 && c.order[c.skip-1] == c.pending {
		c.skip--
	}
	c.start(conn)
	return nil
}

// remember caches a state message for replay and marks it as awaiting a
// reply.
func (c *connection) remember(msgType string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = msgType
	if _, ok := c.state[msgType]; ok {
		for i, typ := range c.order {
			if typ == msgType {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	c.state[msgType] = data
	c.order = append(c.order, msgType)
}

// settle clears the awaited reply once the caller stops waiting.
func (c *connection) settle() {
	c.mu.Lock()
	c.pending = ""
	c.mu.Unlock()
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) bool {
	select {
	case c.sendCh <- data:
		return true
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
		return false
	}
}

// drainReplies discards replies nobody waited for.
func (c *connection) drainReplies() {
	for {
		select {
		case <-c.replyCh:
		default:
			return
		}
	}
}

// close sends a WebSocket close frame and shuts down all goroutines.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return conn.Close()
	}
	return nil
}
