// pkg/core/status.go
package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// SessionStatus is a point-in-time summary of a running session, safe to
// hand to other goroutines.
type SessionStatus struct {
	SessionID      string        `json:"sessionId"`
	Time           time.Time     `json:"time"`
	Tick           uint64        `json:"tick"`
	Paused         bool          `json:"paused"`
	Mode           ControlMode   `json:"mode"`
	View           ViewMode      `json:"view"`
	Position       [3]float64    `json:"position"`
	ActiveMission  string        `json:"activeMission,omitempty"`
	MissionElapsed float64       `json:"missionElapsed,omitempty"`
	Money          int           `json:"money"`
	Wanted         int           `json:"wanted"`
	Bodies         int           `json:"bodies"`
	TickDuration   time.Duration `json:"tickDurationNs"`
	SaveQueue      int           `json:"saveQueue"`
	Outbox         int           `json:"outbox"`
	LastWrite      time.Duration `json:"lastWriteNs"`
}

// TelemetrySample is one periodic reading of a dynamic entity.
type TelemetrySample struct {
	SessionID string
	Time      time.Time
	Tick      uint64
	EntityID  EntityID
	Category  Category
	Position  mgl64.Vec3
	Speed     float64
	Health    float64
	Fuel      float64 // vehicles only
	Stamina   float64 // characters only
	EngineOn  bool
	Driving   bool
}
