// internal/storage/storage.go
package storage

import (
	"errors"

	"github.com/opencity/sandbox/pkg/core"
)

// ErrSlotNotFound is returned by LoadGame for an unknown slot.
var ErrSlotNotFound = errors.New("save slot not found")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Save games, keyed by slot name. Saving to an existing slot replaces it.
	SaveGame(save *core.SaveGame) error
	LoadGame(slot string) (*core.SaveGame, error)
	ListSlots() ([]core.SlotInfo, error)

	// Mission history
	RecordMissionResult(r *core.MissionResult) error
}

// StatusRecorder is an optional interface for backends that keep a history
// of session status samples.
type StatusRecorder interface {
	RecordStatus(s *core.SessionStatus) error
}
