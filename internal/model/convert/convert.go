// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/opencity/sandbox/internal/model"
	"github.com/opencity/sandbox/pkg/core"
	"gorm.io/datatypes"
)

// CoreToSaveSlot converts a core.SaveGame to a GORM model.SaveSlot.
// The snapshot is stored whole in Payload.
func CoreToSaveSlot(s core.SaveGame) (model.SaveSlot, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return model.SaveSlot{}, fmt.Errorf("marshal save %q: %w", s.Slot, err)
	}

	return model.SaveSlot{
		Slot:          s.Slot,
		SaveID:        s.ID,
		SessionID:     s.SessionID,
		SavedAt:       s.SavedAt,
		Tick:          s.Tick,
		ActiveMission: s.Mission.ActiveID,
		Money:         s.Economy.Money,
		Wanted:        s.Economy.Wanted,
		Payload:       datatypes.JSON(payload),
	}, nil
}

// SaveSlotToCore converts a GORM SaveSlot back into the snapshot it holds.
func SaveSlotToCore(m model.SaveSlot) (core.SaveGame, error) {
	var s core.SaveGame
	if len(m.Payload) == 0 {
		return s, fmt.Errorf("save slot %q has no payload", m.Slot)
	}
	if err := json.Unmarshal(m.Payload, &s); err != nil {
		return s, fmt.Errorf("unmarshal save %q: %w", m.Slot, err)
	}
	s.Slot = m.Slot
	return s, nil
}

// SaveSlotToInfo returns the listing entry of a stored slot.
func SaveSlotToInfo(m model.SaveSlot) core.SlotInfo {
	return core.SlotInfo{
		Slot:    m.Slot,
		SaveID:  m.SaveID,
		SavedAt: m.SavedAt,
		Tick:    m.Tick,
	}
}

// CoreToMissionResult converts a core.MissionResult to a GORM model.
func CoreToMissionResult(r core.MissionResult) model.MissionResult {
	return model.MissionResult{
		Time:      r.Time,
		SessionID: r.SessionID,
		MissionID: r.MissionID,
		Status:    r.Status,
		Reason:    r.Reason,
		Elapsed:   r.Elapsed,
		Money:     r.Money,
	}
}

// MissionResultToCore converts a GORM MissionResult to a core.MissionResult.
func MissionResultToCore(m model.MissionResult) core.MissionResult {
	return core.MissionResult{
		SessionID: m.SessionID,
		MissionID: m.MissionID,
		Status:    m.Status,
		Reason:    m.Reason,
		Elapsed:   m.Elapsed,
		Money:     m.Money,
		Time:      m.Time,
	}
}
