package session

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opencity/sandbox/internal/dispatcher"
	"github.com/opencity/sandbox/internal/input"
	"github.com/opencity/sandbox/internal/physics"
	"github.com/opencity/sandbox/internal/vehicle"
	"github.com/opencity/sandbox/pkg/core"
)

// Command names accepted by Command.
const (
	CmdStartMission = "start_mission"
	CmdAbortMission = "abort_mission"
	CmdPause        = "pause"
	CmdResume       = "resume"
	CmdRestart      = "restart"
	CmdSave         = "save"
	CmdSpawnVehicle = "spawn_vehicle"
)

const (
	fireRange   = 60.0
	shotDamage  = 25.0
	serviceStop = 5.0 // km/h
	repairPrice = 2   // per health point
	fuelPrice   = 1   // per fuel unit
	spawnAhead  = 8.0
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNoSaveWriter   = errors.New("no save writer configured")
	ErrMissingArg     = errors.New("missing argument")
)

func (s *Session) registerHandlers() {
	actions := map[input.Action]dispatcher.HandlerFunc{
		input.EnterExit:    s.handleEnterExit,
		input.Headlights:   s.handleHeadlights,
		input.Horn:         s.handleHorn,
		input.ViewToggle:   s.handleViewToggle,
		input.Interact:     s.handleInteract,
		input.Fire:         s.handleFire,
		input.Reload:       s.handleReload,
		input.SwitchWeapon: s.handleSwitchWeapon,
	}
	for a, h := range actions {
		s.d.Register(a.String(), h)
	}

	s.d.Register(CmdStartMission, s.cmdStartMission, dispatcher.Logged())
	s.d.Register(CmdAbortMission, s.cmdAbortMission, dispatcher.Logged())
	s.d.Register(CmdPause, func(dispatcher.Event) (any, error) { s.Pause(); return nil, nil })
	s.d.Register(CmdResume, func(dispatcher.Event) (any, error) { s.Resume(); return nil, nil })
	s.d.Register(CmdRestart, func(dispatcher.Event) (any, error) { return nil, s.Restart() }, dispatcher.Logged())
	s.d.Register(CmdSave, s.cmdSave, dispatcher.Logged())
	s.d.Register(CmdSpawnVehicle, s.cmdSpawnVehicle, dispatcher.Logged())
}

// Command runs a session command synchronously. It must be called from the
// goroutine that drives Tick.
func (s *Session) Command(name string, args ...string) (any, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !isCommand(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return s.d.Dispatch(dispatcher.Event{
		Name:      name,
		Tick:      s.tick.Load(),
		Args:      args,
		Timestamp: time.Now(),
	})
}

func isCommand(name string) bool {
	switch name {
	case CmdStartMission, CmdAbortMission, CmdPause, CmdResume, CmdRestart, CmdSave, CmdSpawnVehicle:
		return true
	}
	return false
}

func (s *Session) handleEnterExit(dispatcher.Event) (any, error) {
	return s.possession.Toggle(), nil
}

func (s *Session) handleHeadlights(dispatcher.Event) (any, error) {
	v := s.possession.Current()
	if v == nil {
		return false, nil
	}
	return v.ToggleHeadlights(), nil
}

func (s *Session) handleHorn(dispatcher.Event) (any, error) {
	if v := s.possession.Current(); v != nil {
		v.Horn()
	}
	return nil, nil
}

func (s *Session) handleViewToggle(dispatcher.Event) (any, error) {
	if s.possession.Mode() == core.ModeDriving {
		return s.possession.Camera(), nil
	}
	return s.possession.ToggleView(), nil
}

// handleInteract services the stopped vehicle the player is driving: it
// repairs and refuels as far as the player's money allows and charges for
// what was actually applied.
func (s *Session) handleInteract(dispatcher.Event) (any, error) {
	v := s.possession.Current()
	if v == nil || v.Destroyed() || v.Speed() > serviceStop {
		return 0, nil
	}
	spent := 0

	want := vehicle.MaxHealth - v.Health()
	if afford := float64(s.economy.Money() / repairPrice); want > afford {
		want = afford
	}
	if applied := v.Repair(want); applied > 0 {
		cost := int(math.Ceil(applied * repairPrice))
		if s.economy.Spend(cost) {
			spent += cost
		}
	}

	want = vehicle.MaxFuel - v.Fuel()
	if afford := float64(s.economy.Money() / fuelPrice); want > afford {
		want = afford
	}
	if applied := v.Refuel(want); applied > 0 {
		cost := int(math.Ceil(applied * fuelPrice))
		if s.economy.Spend(cost) {
			spent += cost
		}
	}
	if spent > 0 {
		s.logger.Info("vehicle serviced", "vehicle", v.ID(), "cost", spent)
	}
	return spent, nil
}

// handleFire shoots along the camera yaw. Hitting a vehicle damages it and
// raises the wanted level.
func (s *Session) handleFire(dispatcher.Event) (any, error) {
	if s.possession.Mode() == core.ModeDriving || s.char.Dead() {
		return false, nil
	}
	if !s.arsenal.Fire() {
		return false, nil
	}
	sin, cos := math.Sincos(s.translator.Yaw())
	dir := mgl64.Vec3{-sin, 0, cos}
	hit := s.world.Raycast(s.char.Position(), dir, fireRange, physics.Exclude(s.char.Body().ID))
	if !hit.Hit || hit.Body.Category != core.CategoryVehicle {
		return true, nil
	}
	if v, ok := s.vehicles.Get(hit.Body.Owner); ok && !v.Destroyed() {
		v.TakeDamage(shotDamage)
		s.economy.AdjustWanted(1)
	}
	return true, nil
}

func (s *Session) handleReload(dispatcher.Event) (any, error) {
	return s.arsenal.Reload(), nil
}

func (s *Session) handleSwitchWeapon(dispatcher.Event) (any, error) {
	return s.arsenal.Switch(), nil
}

func (s *Session) cmdStartMission(e dispatcher.Event) (any, error) {
	id := e.Arg(0)
	if id == "" {
		return nil, fmt.Errorf("%w: mission id", ErrMissingArg)
	}
	if err := s.missions.StartMission(id); err != nil {
		return nil, err
	}
	return id, nil
}

func (s *Session) cmdAbortMission(dispatcher.Event) (any, error) {
	return s.missions.Abort(), nil
}

func (s *Session) cmdSave(e dispatcher.Event) (any, error) {
	if s.deps.Saves == nil {
		return nil, ErrNoSaveWriter
	}
	slot := e.Arg(0)
	if slot == "" {
		return nil, fmt.Errorf("%w: slot", ErrMissingArg)
	}
	save := s.Save(slot)
	if err := s.deps.Saves.SaveGame(&save); err != nil {
		return nil, fmt.Errorf("queueing save %s: %w", slot, err)
	}
	return save.ID, nil
}

// cmdSpawnVehicle places a vehicle of the named type (default sedan) ahead
// of the player.
func (s *Session) cmdSpawnVehicle(e dispatcher.Event) (any, error) {
	typ := e.Arg(0)
	if typ == "" {
		typ = "sedan"
	}
	sin, cos := math.Sincos(s.translator.Yaw())
	origin := playerView{s}.Position()
	pos := origin.Add(mgl64.Vec3{-sin, 0, cos}.Mul(spawnAhead))
	pos[1] = 0
	id := s.nextVehicleID()
	if _, err := s.spawnVehicle(id, typ, pos, math.Atan2(-sin, cos)); err != nil {
		return nil, err
	}
	return string(id), nil
}

func (s *Session) nextVehicleID() core.EntityID {
	for {
		s.nextSpawn++
		id := core.EntityID(fmt.Sprintf("spawned_%d", s.nextSpawn))
		if _, taken := s.vehicles.Get(id); !taken {
			return id
		}
	}
}
