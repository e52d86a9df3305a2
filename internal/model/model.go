package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&SessionInfo{},
	&SaveSlot{},
	&MissionResult{},
	&SessionStatus{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// SessionInfo describes one run of the simulation
type SessionInfo struct {
	gorm.Model
	SessionID string    `json:"sessionId" gorm:"size:36;uniqueIndex"`
	StartedAt time.Time `json:"startedAt"`
	CitySeed  int64     `json:"citySeed"`
	AnchorLon float64   `json:"anchorLon"`
	AnchorLat float64   `json:"anchorLat"`
}

func (*SessionInfo) TableName() string {
	return "session_infos"
}

// SessionStatus is a periodic health sample of a running session
type SessionStatus struct {
	Time           time.Time `json:"time" gorm:"index:idx_status_time"`
	SessionID      string    `json:"sessionId" gorm:"size:36;index:idx_status_session_id"`
	Tick           uint64    `json:"tick"`
	Paused         bool      `json:"paused"`
	ActiveMission  string    `json:"activeMission" gorm:"size:64"`
	Bodies         int       `json:"bodies"`
	TickDurationMs float32   `json:"tickDurationMs"`
	SaveQueue      int       `json:"saveQueue"`
	Outbox         int       `json:"outbox"`
	// LastWriteMs is the duration of the previous save write.
	LastWriteMs float32 `json:"lastWriteMs"`
}

func (*SessionStatus) TableName() string {
	return "session_statuses"
}

////////////////////////
// GAME MODELS
////////////////////////

// SaveSlot stores one named save. The full snapshot lives in Payload, the
// other columns are indexed copies for slot listings.
type SaveSlot struct {
	ID            uint           `json:"id" gorm:"primarykey;autoIncrement;"`
	Slot          string         `json:"slot" gorm:"size:64;uniqueIndex"`
	SaveID        string         `json:"saveId" gorm:"size:36"`
	SessionID     string         `json:"sessionId" gorm:"size:36;index:idx_saveslot_session_id"`
	SavedAt       time.Time      `json:"savedAt"`
	Tick          uint64         `json:"tick"`
	ActiveMission string         `json:"activeMission" gorm:"size:64"`
	Money         int            `json:"money"`
	Wanted        int            `json:"wanted"`
	Payload       datatypes.JSON `json:"payload"`
}

func (*SaveSlot) TableName() string {
	return "save_slots"
}

// MissionResult records a mission reaching completed or failed
type MissionResult struct {
	ID        uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time      time.Time `json:"time" gorm:"index:idx_missionresult_time"`
	SessionID string    `json:"sessionId" gorm:"size:36;index:idx_missionresult_session_id"`
	MissionID string    `json:"missionId" gorm:"size:64;index:idx_missionresult_mission_id"`
	Status    string    `json:"status" gorm:"size:16"`
	Reason    string    `json:"reason" gorm:"size:64"`
	Elapsed   float64   `json:"elapsed"`
	Money     int       `json:"money"`
}

func (*MissionResult) TableName() string {
	return "mission_results"
}
