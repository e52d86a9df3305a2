package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/opencity/sandbox/internal/config"
	"github.com/opencity/sandbox/internal/storage"
	"github.com/opencity/sandbox/pkg/core"
	"github.com/opencity/sandbox/pkg/streaming"
)

// Backend keeps save games on a remote save server reached over WebSocket.
type Backend struct {
	conn *connection
	cfg  config.WebSocketConfig
}

// New creates a new WebSocket storage backend.
func New(cfg config.WebSocketConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	b.conn.send(data)
	return nil
}

// SaveGame sends the save and waits for the server ack.
func (b *Backend) SaveGame(save *core.SaveGame) error {
	if save.Slot == "" {
		return fmt.Errorf("save has no slot")
	}
	data, err := streaming.Marshal(streaming.TypeSaveGame, streaming.SaveGamePayload{Save: save})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", streaming.TypeSaveGame, err)
	}
	return b.conn.sendAndWait(data, streaming.TypeSaveGame, ackTimeout)
}

// LoadGame requests one slot from the server.
func (b *Backend) LoadGame(slot string) (*core.SaveGame, error) {
	data, err := streaming.Marshal(streaming.TypeLoadGame, streaming.LoadGamePayload{Slot: slot})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", streaming.TypeLoadGame, err)
	}
	raw, err := b.conn.request(data, streaming.TypeSaveGame, ackTimeout)
	if err != nil {
		return nil, err
	}

	var reply streaming.SaveGamePayload
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode %s reply: %w", streaming.TypeSaveGame, err)
	}
	if reply.Save == nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrSlotNotFound, slot)
	}
	return reply.Save, nil
}

// ListSlots requests the slot listing from the server.
func (b *Backend) ListSlots() ([]core.SlotInfo, error) {
	data, err := streaming.Marshal(streaming.TypeListSlots, struct{}{})
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", streaming.TypeListSlots, err)
	}
	raw, err := b.conn.request(data, streaming.TypeSlots, ackTimeout)
	if err != nil {
		return nil, err
	}

	var reply streaming.SlotsPayload
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decode %s reply: %w", streaming.TypeSlots, err)
	}
	return reply.Slots, nil
}

// RecordMissionResult streams the result without waiting.
func (b *Backend) RecordMissionResult(r *core.MissionResult) error {
	return b.sendEnvelope(streaming.TypeMissionResult, r)
}
