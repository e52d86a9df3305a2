package streaming

import (
	"encoding/json"

	"github.com/opencity/sandbox/pkg/core"
)

// Message type constants of the stream protocol.
const (
	// client -> server
	TypeInput   = "input"
	TypeCommand = "command"

	// server -> client
	TypeTransforms   = "transforms"
	TypeNotification = "notification"
	TypeStatus       = "status"

	// save server protocol
	TypeSaveGame      = "save_game"
	TypeLoadGame      = "load_game"
	TypeListSlots     = "list_slots"
	TypeSlots         = "slots"
	TypeMissionResult = "mission_result"
	TypeAck           = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // TypeAck
	For  string `json:"for"`  // the message type being acknowledged
}

// InputPayload is one polled snapshot of the input device.
type InputPayload struct {
	Actions  []string `json:"actions"`
	LookX    float64  `json:"lookX"`
	LookY    float64  `json:"lookY"`
	Steer    float64  `json:"steer"`
	Throttle float64  `json:"throttle"`
	Brake    float64  `json:"brake"`
}

// CommandPayload asks the session to run a command such as pause, save,
// load, list_slots or start_mission. Slot names the save slot; Args carries
// any other arguments.
type CommandPayload struct {
	Name string   `json:"name"`
	Slot string   `json:"slot,omitempty"`
	Args []string `json:"args,omitempty"`
}

// TransformsPayload carries every visible node transform of one tick.
type TransformsPayload struct {
	Tick  uint64               `json:"tick"`
	Nodes []core.NodeTransform `json:"nodes"`
}

// SaveGamePayload is pushed to a remote save server, and returned by it in
// reply to load_game. A nil Save means the slot is unknown.
type SaveGamePayload struct {
	Save *core.SaveGame `json:"save"`
}

// LoadGamePayload asks the save server for one slot.
type LoadGamePayload struct {
	Slot string `json:"slot"`
}

// SlotsPayload is the save server's reply to list_slots.
type SlotsPayload struct {
	Slots []core.SlotInfo `json:"slots"`
}

// Marshal wraps payload in an envelope of the given type.
func Marshal(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
