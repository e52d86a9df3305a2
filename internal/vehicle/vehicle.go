// Package vehicle implements a raycast vehicle: a chassis rigid body held up
// by four suspension rays, with rear-wheel drive and front-wheel steering.
package vehicle

import (
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opencity/sandbox/internal/physics"
	"github.com/opencity/sandbox/pkg/core"
)

const (
	MaxHealth     = 100.0
	MaxFuel       = 100.0
	DamagedHealth = 50.0

	// reverse engages below this forward speed in m/s
	reverseSpeed = 1.0
)

// Controls is the normalised driving input.
type Controls struct {
	Throttle  float64 // [0,1]
	Brake     float64 // [0,1]
	Steering  float64 // [-1,1], positive turns right
	Handbrake bool
}

func (c Controls) clamp() Controls {
	c.Throttle = mgl64.Clamp(c.Throttle, 0, 1)
	c.Brake = mgl64.Clamp(c.Brake, 0, 1)
	c.Steering = mgl64.Clamp(c.Steering, -1, 1)
	return c
}

// Notifier receives vehicle notifications.
type Notifier interface {
	Notify(core.Notification)
}

// EffectiveSteering scales steering input down with speed so the car cannot
// oversteer when fast. The factor never drops below one half.
func EffectiveSteering(steering, steerClamp, speed, maxSpeed float64) float64 {
	factor := 1.0
	if maxSpeed > 0 {
		factor = 1 - speed/maxSpeed
	}
	return steering * steerClamp * math.Max(0.5, factor)
}

// Vehicle is one drivable car. It registers itself as a world action so the
// suspension runs on every physics sub-step.
type Vehicle struct {
	id       core.EntityID
	typ      Type
	world    *physics.World
	chassis  *physics.Body
	wheels   [4]Wheel
	notifier Notifier
	logger   *slog.Logger

	controls   Controls
	steering   float64
	health     float64
	fuel       float64
	engineOn   bool
	handbrake  bool
	headlights bool
	damaged    bool
	destroyed  bool
	driver     core.EntityID

	onDestroyed []func(*Vehicle)
}

// New spawns a vehicle of the given type with its chassis centre at pos.
func New(id core.EntityID, typ Type, world *physics.World, pos mgl64.Vec3, rot mgl64.Quat, notifier Notifier, logger *slog.Logger) *Vehicle {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	v := &Vehicle{
		id:       id,
		typ:      typ,
		world:    world,
		notifier: notifier,
		logger:   logger.With("entity", string(id), "type", typ.Name),
		health:   MaxHealth,
		fuel:     MaxFuel,
	}
	v.chassis = world.AddBody(physics.BodyOptions{
		Shape:          physics.Box(typ.HalfExtents.X(), typ.HalfExtents.Y(), typ.HalfExtents.Z()),
		Mass:           typ.Mass,
		Position:       pos,
		Orientation:    rot,
		Category:       core.CategoryVehicle,
		Owner:          id,
		Friction:       0.3,
		LinearDamping:  0.05,
		AngularDamping: 0.3,
		AllowSleep:     true,
	})

	h := typ.HalfExtents
	front, rear := h.Z()*0.7, -h.Z()*0.7
	conn := [4]mgl64.Vec3{
		{h.X(), -h.Y(), front},
		{-h.X(), -h.Y(), front},
		{h.X(), -h.Y(), rear},
		{-h.X(), -h.Y(), rear},
	}
	for i := range v.wheels {
		v.wheels[i] = Wheel{
			Index:          i,
			Connection:     conn[i],
			Steerable:      i < 2,
			Driven:         i >= 2,
			SuspensionLen:  typ.Wheel.SuspensionRest,
			cfg:            typ.Wheel,
			InContact:      false,
			SuspensionRest: typ.Wheel.SuspensionRest,
		}
	}
	v.applyParkingBrake()
	world.AddAction(v)
	return v
}

func (v *Vehicle) ID() core.EntityID { return v.id }

func (v *Vehicle) Type() Type { return v.typ }

func (v *Vehicle) Body() *physics.Body { return v.chassis }

func (v *Vehicle) Health() float64 { return v.health }

func (v *Vehicle) Fuel() float64 { return v.fuel }

func (v *Vehicle) EngineOn() bool { return v.engineOn }

func (v *Vehicle) Handbrake() bool { return v.handbrake }

func (v *Vehicle) Headlights() bool { return v.headlights }

func (v *Vehicle) Damaged() bool { return v.damaged }

func (v *Vehicle) Destroyed() bool { return v.destroyed }

func (v *Vehicle) Driver() core.EntityID { return v.driver }

func (v *Vehicle) Occupied() bool { return v.driver != "" }

// Steering is the current effective steering angle in radians.
func (v *Vehicle) Steering() float64 { return v.steering }

func (v *Vehicle) Wheels() [4]Wheel { return v.wheels }

// Speed is the chassis speed in km/h.
func (v *Vehicle) Speed() float64 {
	return v.chassis.Speed() * 3.6
}

// ForwardSpeed is the signed chassis speed along its nose in m/s.
func (v *Vehicle) ForwardSpeed() float64 {
	return v.chassis.LinearVelocity.Dot(v.chassis.VectorToWorld(mgl64.Vec3{0, 0, 1}))
}

// OnDestroyed registers a hook run once when health reaches zero.
func (v *Vehicle) OnDestroyed(fn func(*Vehicle)) {
	v.onDestroyed = append(v.onDestroyed, fn)
}

func (v *Vehicle) notify(n core.Notification) {
	if v.notifier == nil {
		return
	}
	n.EntityID = v.id
	v.notifier.Notify(n)
}

// StartEngine turns the engine on unless the tank is empty or the vehicle
// is destroyed.
func (v *Vehicle) StartEngine() bool {
	if v.engineOn {
		return true
	}
	if v.fuel <= 0 || v.destroyed {
		return false
	}
	v.engineOn = true
	v.chassis.Wake()
	v.logger.Debug("engine started")
	return true
}

// StopEngine turns the engine off and holds the car with the parking brake.
func (v *Vehicle) StopEngine() {
	if !v.engineOn {
		return
	}
	v.engineOn = false
	v.applyParkingBrake()
	v.logger.Debug("engine stopped")
}

func (v *Vehicle) applyParkingBrake() {
	for i := range v.wheels {
		v.wheels[i].EngineForce = 0
		v.wheels[i].BrakeForce = v.typ.ParkingBrake
	}
}

// ApplyControls maps the driver's input onto the wheels. The first throttle
// or brake input starts the engine.
func (v *Vehicle) ApplyControls(c Controls) {
	c = c.clamp()
	v.controls = c
	v.handbrake = c.Handbrake
	if v.destroyed {
		v.controls = Controls{}
		v.applyParkingBrake()
		return
	}
	if !v.engineOn && (c.Throttle > 0 || c.Brake > 0) {
		v.StartEngine()
	}

	v.steering = EffectiveSteering(c.Steering, v.typ.SteerClamp, v.Speed(), v.typ.MaxSpeed)
	v.wheels[0].Steering = v.steering
	v.wheels[1].Steering = v.steering

	if !v.engineOn {
		v.applyParkingBrake()
		return
	}
	if c.Throttle > 0 || c.Brake > 0 || c.Steering != 0 {
		v.chassis.Wake()
	}

	engine := 0.0
	brake := c.Brake * v.typ.BrakeForce
	if c.Throttle > 0 && v.Speed() < v.typ.MaxSpeed {
		engine = c.Throttle * v.typ.EngineForce
	}
	if c.Throttle == 0 && c.Brake > 0 && v.ForwardSpeed() < reverseSpeed {
		engine = -0.5 * c.Brake * v.typ.EngineForce
		brake = 0
	}

	for i := range v.wheels {
		w := &v.wheels[i]
		w.BrakeForce = brake
		w.EngineForce = 0
		if w.Driven {
			w.EngineForce = engine
			if c.Handbrake {
				w.BrakeForce += v.typ.BrakeForce * v.typ.HandbrakeMultiplier
			}
		}
	}
}

// Update burns fuel for one tick and stops the engine when the tank runs
// dry.
func (v *Vehicle) Update(dt float64) {
	if !v.engineOn || dt <= 0 {
		return
	}
	consumption := v.typ.FuelIdleRate*dt + v.controls.Throttle*v.typ.FuelThrottleRate*dt
	v.fuel = math.Max(0, v.fuel-consumption)
	if v.fuel > 0 {
		return
	}
	v.engineOn = false
	v.applyParkingBrake()
	v.logger.Info("out of fuel")
	v.notify(core.Notification{Kind: core.NotifyOutOfFuel})
}

// Refuel adds fuel, clamped to MaxFuel, and returns the amount added. The
// engine stays off until the driver asks for it again.
func (v *Vehicle) Refuel(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	before := v.fuel
	v.fuel = math.Min(MaxFuel, v.fuel+amount)
	return v.fuel - before
}

// TakeDamage lowers health. Dropping below DamagedHealth sets the damaged
// flag once; reaching zero destroys the vehicle.
func (v *Vehicle) TakeDamage(amount float64) {
	if v.destroyed || amount <= 0 {
		return
	}
	v.health = mgl64.Clamp(v.health-amount, 0, MaxHealth)
	if v.health < DamagedHealth && !v.damaged {
		v.damaged = true
		v.logger.Info("vehicle damaged", "health", v.health)
		v.notify(core.Notification{Kind: core.NotifyVehicleDamaged})
	}
	if v.health == 0 {
		v.Destroy()
	}
}

// Destroy immobilises the vehicle for good and ejects the driver through
// the OnDestroyed hooks. The chassis stays in the world.
func (v *Vehicle) Destroy() {
	if v.destroyed {
		return
	}
	v.health = 0
	v.destroyed = true
	v.damaged = true
	v.engineOn = false
	v.controls = Controls{}
	v.applyParkingBrake()
	v.logger.Info("vehicle destroyed")
	v.notify(core.Notification{Kind: core.NotifyVehicleDestroy})
	for _, fn := range v.onDestroyed {
		fn(v)
	}
	v.driver = ""
}

// Repair raises health, clamped to MaxHealth, and returns the delta
// actually applied. Destroyed vehicles cannot be repaired.
func (v *Vehicle) Repair(amount float64) float64 {
	if v.destroyed || amount <= 0 {
		return 0
	}
	before := v.health
	v.health = math.Min(MaxHealth, v.health+amount)
	if v.health >= DamagedHealth {
		v.damaged = false
	}
	return v.health - before
}

// SetDriver binds a driver. It fails when the seat is taken by someone else
// or the vehicle is destroyed. An empty tank does not block entry: the
// engine stays off until the vehicle is refuelled, as it does when the fuel
// runs out with a driver aboard.
func (v *Vehicle) SetDriver(id core.EntityID) bool {
	if id == "" || v.destroyed {
		return false
	}
	if v.driver != "" && v.driver != id {
		return false
	}
	v.driver = id
	v.chassis.Wake()
	return true
}

// ClearDriver empties the seat, which also switches the engine off.
func (v *Vehicle) ClearDriver() {
	v.driver = ""
	v.controls = Controls{}
	v.handbrake = false
	v.StopEngine()
	v.applyParkingBrake()
}

func (v *Vehicle) ToggleHeadlights() bool {
	v.headlights = !v.headlights
	return v.headlights
}

// Horn is fire-and-forget feedback for the audio collaborator.
func (v *Vehicle) Horn() {
	if v.destroyed {
		return
	}
	v.notify(core.Notification{Kind: core.NotifyHorn})
}

// ExitPosition is where a leaving driver is placed: the type's exit offset
// in world space, dropped onto the ground below it.
func (v *Vehicle) ExitPosition() mgl64.Vec3 {
	p := v.chassis.PointToWorld(v.typ.ExitOffset)
	origin := p.Add(mgl64.Vec3{0, 2, 0})
	hit := v.world.Raycast(origin, mgl64.Vec3{0, -1, 0}, 20, physics.Exclude(v.chassis.ID))
	if hit.Hit {
		p[1] = hit.Point.Y() + 0.05
	}
	return p
}

// Snapshot returns the persisted state.
func (v *Vehicle) Snapshot() core.VehicleSnapshot {
	return core.VehicleSnapshot{
		ID:         v.id,
		Type:       v.typ.Name,
		Transform:  v.chassis.Transform(),
		Health:     v.health,
		Fuel:       v.fuel,
		EngineOn:   v.engineOn,
		Headlights: v.headlights,
		Destroyed:  v.destroyed,
	}
}

// Restore applies a snapshot. The engine is restored off; drivers re-bind
// through possession.
func (v *Vehicle) Restore(s core.VehicleSnapshot) {
	v.world.Teleport(v.chassis.ID, s.Transform.Position, s.Transform.Orientation)
	v.health = mgl64.Clamp(s.Health, 0, MaxHealth)
	v.fuel = mgl64.Clamp(s.Fuel, 0, MaxFuel)
	v.headlights = s.Headlights
	v.destroyed = s.Destroyed || v.health == 0
	v.damaged = v.health < DamagedHealth
	v.driver = ""
	v.engineOn = false
	v.controls = Controls{}
	v.applyParkingBrake()
}
