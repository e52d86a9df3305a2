// Package possession binds the player either to its own body or to a
// vehicle's driver seat and routes input to whichever is possessed.
package possession

import (
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opencity/sandbox/internal/character"
	"github.com/opencity/sandbox/internal/input"
	"github.com/opencity/sandbox/internal/physics"
	"github.com/opencity/sandbox/internal/vehicle"
	"github.com/opencity/sandbox/pkg/core"
)

// DefaultProbeRange is how far the enter probe reaches from the avatar.
const DefaultProbeRange = 2.5

// Vehicles resolves vehicle entities.
type Vehicles interface {
	Vehicle(id core.EntityID) (*vehicle.Vehicle, bool)
}

// Possession is the OnFoot/Driving state machine.
type Possession struct {
	world      *physics.World
	char       *character.Controller
	vehicles   Vehicles
	logger     *slog.Logger
	probeRange float64

	current *vehicle.Vehicle
	view    core.ViewMode
	watched map[core.EntityID]bool
}

func New(world *physics.World, char *character.Controller, vehicles Vehicles, logger *slog.Logger) *Possession {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Possession{
		world:      world,
		char:       char,
		vehicles:   vehicles,
		logger:     logger,
		probeRange: DefaultProbeRange,
		view:       core.ViewThirdPerson,
		watched:    make(map[core.EntityID]bool),
	}
}

// Mode is the current control mode.
func (p *Possession) Mode() core.ControlMode {
	if p.current != nil {
		return core.ModeDriving
	}
	return core.ModeOnFoot
}

// Current is the possessed vehicle, nil on foot.
func (p *Possession) Current() *vehicle.Vehicle { return p.current }

// Camera is the active camera mode: the vehicle view while driving,
// otherwise the chosen on-foot view.
func (p *Possession) Camera() core.ViewMode {
	if p.current != nil {
		return core.ViewVehicle
	}
	return p.view
}

// View is the on-foot view preference.
func (p *Possession) View() core.ViewMode { return p.view }

func (p *Possession) SetView(v core.ViewMode) {
	if v == core.ViewFirstPerson || v == core.ViewThirdPerson {
		p.view = v
	}
}

// ToggleView flips between first and third person.
func (p *Possession) ToggleView() core.ViewMode {
	if p.view == core.ViewFirstPerson {
		p.view = core.ViewThirdPerson
	} else {
		p.view = core.ViewFirstPerson
	}
	return p.view
}

// CameraTarget is the transform the camera follows.
func (p *Possession) CameraTarget() core.Transform {
	if p.current != nil {
		return p.current.Body().Transform()
	}
	return p.char.Body().Transform()
}

// Watch installs the forced-exit hook on a vehicle. It is idempotent.
func (p *Possession) Watch(v *vehicle.Vehicle) {
	if p.watched[v.ID()] {
		return
	}
	p.watched[v.ID()] = true
	v.OnDestroyed(func(v *vehicle.Vehicle) {
		if p.current == v {
			p.logger.Info("vehicle destroyed, ejecting driver", "vehicle", v.ID())
			p.Exit()
		}
	})
}

// Toggle enters a nearby vehicle on foot, or exits while driving.
func (p *Possession) Toggle() bool {
	if p.current != nil {
		return p.Exit()
	}
	return p.TryEnter()
}

// TryEnter probes around the avatar for a free vehicle and takes its seat.
// An occupied or destroyed vehicle makes this a no-op returning false.
func (p *Possession) TryEnter() bool {
	if p.current != nil || p.char.Dead() {
		return false
	}
	v := p.probe()
	if v == nil {
		p.logger.Debug("no vehicle in reach")
		return false
	}
	return p.enter(v, true)
}

func (p *Possession) enter(v *vehicle.Vehicle, startEngine bool) bool {
	if v.Destroyed() {
		p.logger.Debug("vehicle destroyed", "vehicle", v.ID())
		return false
	}
	if v.Occupied() && v.Driver() != p.char.ID() {
		p.logger.Debug("vehicle occupied", "vehicle", v.ID(), "driver", v.Driver())
		return false
	}
	if !v.SetDriver(p.char.ID()) {
		return false
	}
	p.Watch(v)
	p.char.SetDriving(v.ID())
	p.current = v
	if startEngine {
		v.StartEngine()
	}
	p.logger.Info("entered vehicle", "vehicle", v.ID())
	return true
}

// Exit leaves the vehicle at its exit position. It returns false on foot.
func (p *Possession) Exit() bool {
	v := p.current
	if v == nil {
		return false
	}
	pos := v.ExitPosition()
	v.ClearDriver()
	p.current = nil
	p.char.SetOnFoot(pos)
	p.logger.Info("exited vehicle", "vehicle", v.ID())
	return true
}

// probe casts short rays in the four cardinal directions and falls back to
// direct contacts, returning the closest vehicle.
func (p *Possession) probe() *vehicle.Vehicle {
	body := p.char.Body()
	origin := body.Position
	skip := physics.Exclude(body.ID)

	var best *vehicle.Vehicle
	bestDist := p.probeRange + 1
	dirs := [4]mgl64.Vec3{{1, 0, 0}, {-1, 0, 0}, {0, 0, 1}, {0, 0, -1}}
	for _, d := range dirs {
		hit := p.world.Raycast(origin, d, p.probeRange, skip)
		if !hit.Hit || hit.Body.Category != core.CategoryVehicle {
			continue
		}
		if v, ok := p.vehicles.Vehicle(hit.Body.Owner); ok && hit.Distance < bestDist {
			best, bestDist = v, hit.Distance
		}
	}
	if best != nil {
		return best
	}
	for _, c := range p.world.ContactsOf(body.ID) {
		other := c.A
		if other == body {
			other = c.B
		}
		if other.Category != core.CategoryVehicle {
			continue
		}
		if v, ok := p.vehicles.Vehicle(other.Owner); ok {
			return v
		}
	}
	return nil
}

// Route hands the frame's continuous input to the possessed controller.
func (p *Possession) Route(f input.Frame) {
	if p.current != nil {
		p.current.ApplyControls(f.Drive)
		return
	}
	p.char.ApplyMovementIntent(f.Move, f.Sprint, f.Jump)
}

// Restore re-binds a driver after a load, once vehicles and the avatar have
// been restored. The engine state comes from the vehicle snapshot.
func (p *Possession) Restore(s core.CharacterSnapshot, engineOn bool) bool {
	if p.current != nil {
		p.Exit()
	}
	if s.Mode != core.ModeDriving || s.VehicleID == "" {
		return false
	}
	v, ok := p.vehicles.Vehicle(s.VehicleID)
	if !ok {
		p.logger.Warn("saved vehicle missing, staying on foot", "vehicle", s.VehicleID)
		return false
	}
	return p.enter(v, engineOn)
}
