package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opencity/sandbox/pkg/core"
)

var ErrNilSave = errors.New("nil save")

// Save snapshots the whole session into a save for slot.
func (s *Session) Save(slot string) core.SaveGame {
	save := core.SaveGame{
		ID:        uuid.NewString(),
		Slot:      slot,
		SessionID: s.id,
		SavedAt:   time.Now().UTC(),
		Tick:      s.tick.Load(),
		Character: s.char.Snapshot(),
		Economy:   s.economy.Snapshot(),
		Mission:   s.missions.Snapshot(),
		Weapons:   s.arsenal.Snapshot(),
		View:      s.possession.View(),
	}
	for _, v := range s.vehicles.All() {
		save.Vehicles = append(save.Vehicles, v.Snapshot())
	}
	s.logger.Debug("session saved", "slot", slot, "save", save.ID, "tick", save.Tick)
	return save
}

// Load rebuilds the world and applies save. Vehicles in the save that the
// fresh city does not have are spawned; the driver re-binds last so the
// vehicle's engine state survives.
func (s *Session) Load(save *core.SaveGame) error {
	if save == nil {
		return ErrNilSave
	}
	if err := s.build(); err != nil {
		return err
	}

	s.economy.Restore(save.Economy)
	s.arsenal.Restore(save.Weapons)

	engineOn := false
	for _, vs := range save.Vehicles {
		v, ok := s.vehicles.Get(vs.ID)
		if !ok {
			var err error
			v, err = s.spawnVehicle(vs.ID, vs.Type, vs.Transform.Position, 0)
			if err != nil {
				return fmt.Errorf("restoring vehicle %s: %w", vs.ID, err)
			}
		}
		v.Restore(vs)
		if vs.ID == save.Character.VehicleID {
			engineOn = vs.EngineOn
		}
	}

	s.char.Restore(save.Character)
	s.possession.Restore(save.Character, engineOn)
	s.possession.SetView(save.View)

	if err := s.missions.Restore(save.Mission); err != nil {
		return fmt.Errorf("restoring missions: %w", err)
	}

	s.tick.Store(save.Tick)
	s.paused = false
	s.translator.Reset()
	s.outbox.Clear()
	s.logger.Info("session loaded", "slot", save.Slot, "save", save.ID, "tick", save.Tick)
	s.publishStatus()
	return nil
}
