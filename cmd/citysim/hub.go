package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/opencity/sandbox/internal/input"
	"github.com/opencity/sandbox/pkg/core"
	"github.com/opencity/sandbox/pkg/streaming"
)

const (
	clientSendBuffer = 64
	commandBuffer    = 16
	writeWait        = 5 * time.Second
)

// hub is the stream server. Clients send input snapshots and commands;
// every client receives transforms, notifications and status.
type hub struct {
	logger   *slog.Logger
	upgrader ws.Upgrader
	commands chan streaming.CommandPayload

	mu      sync.Mutex
	clients map[*client]struct{}
	held    input.RawSnapshot
	latched input.ActionSet
}

type client struct {
	conn *ws.Conn
	send chan []byte
}

func newHub(logger *slog.Logger) *hub {
	return &hub{
		logger: logger,
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		commands: make(chan streaming.CommandPayload, commandBuffer),
		clients:  make(map[*client]struct{}),
	}
}

// Commands delivers client commands to the tick goroutine.
func (h *hub) Commands() <-chan streaming.CommandPayload { return h.commands }

func (h *hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, clientSendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("Stream client connected", "remote", r.RemoteAddr, "clients", n)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				h.logger.Warn("Stream client read error", "error", err)
			}
			return
		}
		h.handleMessage(data)
	}
}

func (h *hub) handleMessage(data []byte) {
	var env streaming.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.logger.Debug("Malformed stream message", "error", err)
		return
	}
	switch env.Type {
	case streaming.TypeInput:
		var p streaming.InputPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.logger.Debug("Malformed input payload", "error", err)
			return
		}
		h.setInput(p)
	case streaming.TypeCommand:
		var p streaming.CommandPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.logger.Debug("Malformed command payload", "error", err)
			return
		}
		select {
		case h.commands <- p:
		default:
			h.logger.Warn("Command queue full, dropping", "command", p.Name)
		}
	default:
		h.logger.Debug("Unknown stream message", "type", env.Type)
	}
}

// setInput stores the latest snapshot. Actions pressed since the last poll
// are latched so a tap shorter than a tick still registers.
func (h *hub) setInput(p streaming.InputPayload) {
	snap := input.RawSnapshot{
		Actions:  input.NewActionSet(p.Actions...),
		LookX:    p.LookX,
		LookY:    p.LookY,
		Steer:    p.Steer,
		Throttle: p.Throttle,
		Brake:    p.Brake,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	// look deltas accumulate until polled
	snap.LookX += h.held.LookX
	snap.LookY += h.held.LookY
	h.held = snap
	h.latched |= snap.Actions
}

// Poll implements session.InputSource.
func (h *hub) Poll() input.RawSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	snap := h.held
	snap.Actions |= h.latched
	h.latched = 0
	h.held.LookX, h.held.LookY = 0, 0
	return snap
}

// PushTransforms implements session.SceneSink.
func (h *hub) PushTransforms(tick uint64, nodes []core.NodeTransform) {
	h.broadcast(streaming.TypeTransforms, streaming.TransformsPayload{Tick: tick, Nodes: nodes})
}

// Notify implements session.Notifier.
func (h *hub) Notify(n core.Notification) {
	h.broadcast(streaming.TypeNotification, n)
}

func (h *hub) PushStatus(s core.SessionStatus) {
	h.broadcast(streaming.TypeStatus, s)
}

func (h *hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast queues a message for every client. Slow clients miss messages
// rather than stall the tick.
func (h *hub) broadcast(msgType string, payload any) {
	if h.clientCount() == 0 {
		return
	}
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		h.logger.Error("Failed to marshal stream message", "type", msgType, "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *hub) writeLoop(c *client) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
			h.logger.Debug("Stream client write failed", "error", err)
			_ = c.conn.Close()
			return
		}
	}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	_ = c.conn.Close()
	h.logger.Info("Stream client disconnected", "clients", n)
}

// Close disconnects every client.
func (h *hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		_ = c.conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseGoingAway, "shutting down"), time.Now().Add(time.Second))
		_ = c.conn.Close()
	}
}
