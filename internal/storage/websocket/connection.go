package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/opencity/sandbox/pkg/streaming"
)

const (
	sendChSize   = 1_000
	inboxSize    = 32
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

// connection manages a WebSocket connection with a single write goroutine.
type connection struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	inbox  chan inbound
	done   chan struct{} // closed on shutdown
	closed bool

	// exchangeMu allows one outstanding exchange so an answer cannot be
	// claimed by the wrong caller.
	exchangeMu sync.Mutex

	wsURL  string
	secret string

	logger *slog.Logger
}

// inbound is any message from the save server: acks carry For, replies
// carry Payload.
type inbound struct {
	Type    string          `json:"type"`
	For     string          `json:"for,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func newConnection(logger *slog.Logger) *connection {
	return &connection{
		sendCh: make(chan []byte, sendChSize),
		inbox:  make(chan inbound, inboxSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// dial connects to the WebSocket server and starts read/write loops.
func (c *connection) dial(rawURL, secret string) error {
	c.wsURL = rawURL
	c.secret = secret

	conn, err := c.dialOnce()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.writeLoop()
	go c.readLoop()

	return nil
}

// dialOnce performs a single WebSocket dial with the secret query param.
func (c *connection) dialOnce() (*ws.Conn, error) {
	u, err := url.Parse(c.wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", c.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

// writeLoop drains sendCh and writes messages to the WebSocket.
// Only one writeLoop runs at a time; it returns on error or shutdown.
func (c *connection) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.sendCh:
			c.mu.Lock()
			conn := c.conn
			c.mu.Unlock()

			if conn == nil {
				continue
			}

			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				go c.reconnect()
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
				c.logger.Warn("WebSocket write error", "error", err)
				go c.reconnect()
				return
			}
		}
	}
}

// readLoop decodes server messages into the inbox. Messages arriving while
// nobody waits are dropped once the inbox is full.
func (c *connection) readLoop() {
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("WebSocket read error", "error", err)
			go c.reconnect()
			return
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			c.logger.Debug("Malformed message received", "raw", string(message))
			continue
		}

		select {
		case c.inbox <- msg:
		default:
			c.logger.Debug("Inbox full, dropping", "type", msg.Type, "for", msg.For)
		}
	}
}

// reconnect attempts to re-establish the WebSocket connection with
// exponential backoff. On success it restarts the read/write loops.
func (c *connection) reconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		default:
		}

		c.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		time.Sleep(backoff)

		conn, err := c.dialOnce()
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.logger.Info("WebSocket reconnected", "attempt", attempt)
		go c.writeLoop()
		go c.readLoop()
		return
	}

	c.logger.Error("WebSocket reconnect failed after max attempts", "maxAttempts", maxReconnect)
}

// send pushes data to the write loop. Non-blocking; drops if channel full.
func (c *connection) send(data []byte) {
	select {
	case c.sendCh <- data:
	default:
		c.logger.Warn("WebSocket send channel full, dropping message")
	}
}

// sendAndWait sends data and blocks until the server acknowledges it with
// an ack for ackFor.
func (c *connection) sendAndWait(data []byte, ackFor string, timeout time.Duration) error {
	_, err := c.exchange(data, "ack of "+ackFor, timeout, func(m inbound) bool {
		return m.Type == streaming.TypeAck && m.For == ackFor
	})
	return err
}

// request sends data and returns the payload of the first reply of
// replyType.
func (c *connection) request(data []byte, replyType string, timeout time.Duration) (json.RawMessage, error) {
	msg, err := c.exchange(data, replyType+" reply", timeout, func(m inbound) bool {
		return m.Type == replyType
	})
	if err != nil {
		return nil, err
	}
	return msg.Payload, nil
}

// exchange sends data and waits for the first inbound message accepted by
// match, discarding the rest.
func (c *connection) exchange(data []byte, what string, timeout time.Duration, match func(inbound) bool) (inbound, error) {
	c.exchangeMu.Lock()
	defer c.exchangeMu.Unlock()

	c.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case msg := <-c.inbox:
			if match(msg) {
				return msg, nil
			}
			c.logger.Debug("Discarding unexpected message", "type", msg.Type, "for", msg.For, "want", what)
		case <-timer.C:
			return inbound{}, fmt.Errorf("timeout waiting for %s", what)
		case <-c.done:
			return inbound{}, fmt.Errorf("connection closed while waiting for %s", what)
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
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}
