// pkg/core/mission.go
package core

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// MissionSnapshot is the persisted state of the mission engine. Checkpoint
// state is not stored; it is rebuilt from the objective flags on load.
type MissionSnapshot struct {
	ActiveID       string          `json:"activeId,omitempty"`
	Elapsed        float64         `json:"elapsed"`
	Objectives     map[string]bool `json:"objectives,omitempty"`
	EnteredVehicle bool            `json:"enteredVehicle"`
	Origin         mgl64.Vec3      `json:"origin"`
	Completed      []string        `json:"completed,omitempty"`
	Failed         []string        `json:"failed,omitempty"`
}

// EconomySnapshot is the persisted player economy.
type EconomySnapshot struct {
	Money     int            `json:"money"`
	Inventory map[string]int `json:"inventory,omitempty"`
	Wanted    int            `json:"wanted"`
}

// SaveGame is the full serializable snapshot handed to the persistence
// collaborator.
type SaveGame struct {
	ID        string            `json:"id"`
	Slot      string            `json:"slot"`
	SessionID string            `json:"sessionId"`
	SavedAt   time.Time         `json:"savedAt"`
	Tick      uint64            `json:"tick"`
	Character CharacterSnapshot `json:"character"`
	Vehicles  []VehicleSnapshot `json:"vehicles"`
	Economy   EconomySnapshot   `json:"economy"`
	Mission   MissionSnapshot   `json:"mission"`
	Weapons   []WeaponSnapshot  `json:"weapons,omitempty"`
	View      ViewMode          `json:"view"`
}

// WeaponSnapshot is the persisted ammo state of one weapon.
type WeaponSnapshot struct {
	Name     string `json:"name"`
	Magazine int    `json:"magazine"`
	Reserve  int    `json:"reserve"`
}

// SlotInfo describes a stored save without its payload.
type SlotInfo struct {
	Slot    string    `json:"slot"`
	SaveID  string    `json:"saveId"`
	SavedAt time.Time `json:"savedAt"`
	Tick    uint64    `json:"tick"`
}

// MissionResult records a mission reaching a terminal status.
type MissionResult struct {
	SessionID string    `json:"sessionId"`
	MissionID string    `json:"missionId"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Elapsed   float64   `json:"elapsed"`
	Money     int       `json:"money"`
	Time      time.Time `json:"time"`
}
