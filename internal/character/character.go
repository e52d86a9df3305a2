// Package character drives the on-foot player avatar: a capsule body moved
// by velocity, with grounding, jumping, stamina and step-up.
package character

import (
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opencity/sandbox/internal/physics"
	"github.com/opencity/sandbox/pkg/core"
)

const (
	MaxStamina = 100.0
	MaxHealth  = 100.0
)

// Config holds the avatar tuning. Rates are per second.
type Config struct {
	Radius       float64 `json:"radius" mapstructure:"radius"`
	HalfHeight   float64 `json:"halfHeight" mapstructure:"halfHeight"`
	Mass         float64 `json:"mass" mapstructure:"mass"`
	WalkSpeed    float64 `json:"walkSpeed" mapstructure:"walkSpeed"`
	RunSpeed     float64 `json:"runSpeed" mapstructure:"runSpeed"`
	JumpSpeed    float64 `json:"jumpSpeed" mapstructure:"jumpSpeed"`
	StepHeight   float64 `json:"stepHeight" mapstructure:"stepHeight"`
	StaminaDrain float64 `json:"staminaDrain" mapstructure:"staminaDrain"`
	StaminaRegen float64 `json:"staminaRegen" mapstructure:"staminaRegen"`
	FallSpeed    float64 `json:"fallSpeed" mapstructure:"fallSpeed"`
}

func DefaultConfig() Config {
	return Config{
		Radius:       0.4,
		HalfHeight:   0.5,
		Mass:         70,
		WalkSpeed:    5,
		RunSpeed:     9,
		JumpSpeed:    6,
		StepHeight:   0.45,
		StaminaDrain: 20,
		StaminaRegen: 30,
		FallSpeed:    2,
	}
}

// Controller is the player avatar.
type Controller struct {
	id     core.EntityID
	cfg    Config
	world  *physics.World
	body   *physics.Body
	logger *slog.Logger
	spawn  mgl64.Vec3

	moveDir     mgl64.Vec3
	sprintHeld  bool
	grounded    bool
	jumping     bool
	stamina     float64
	health      float64
	mode        core.ControlMode
	vehicle     core.EntityID
	visible     bool
	lastStepped bool
}

// New spawns the avatar body at spawn, with its feet on spawn.
func New(id core.EntityID, world *physics.World, spawn mgl64.Vec3, cfg Config, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Controller{
		id:      id,
		cfg:     cfg,
		world:   world,
		logger:  logger.With("entity", string(id)),
		spawn:   spawn,
		stamina: MaxStamina,
		health:  MaxHealth,
		mode:    core.ModeOnFoot,
		visible: true,
	}
	c.body = world.AddBody(physics.BodyOptions{
		Shape:         physics.Capsule(cfg.Radius, cfg.HalfHeight),
		Mass:          cfg.Mass,
		Position:      spawn.Add(mgl64.Vec3{0, c.footOffset(), 0}),
		Category:      core.CategoryCharacter,
		Owner:         id,
		FixedRotation: true,
		LinearDamping: 0.01,
	})
	world.OnCollisionBegin(c.body.ID, c.onCollision)
	return c
}

func (c *Controller) ID() core.EntityID { return c.id }

func (c *Controller) Body() *physics.Body { return c.body }

func (c *Controller) Grounded() bool { return c.grounded }

func (c *Controller) Jumping() bool { return c.jumping }

func (c *Controller) Stamina() float64 { return c.stamina }

func (c *Controller) Health() float64 { return c.health }

func (c *Controller) Dead() bool { return c.health <= 0 }

func (c *Controller) Visible() bool { return c.visible }

func (c *Controller) Mode() core.ControlMode { return c.mode }

// Vehicle is the possessed vehicle, empty while on foot.
func (c *Controller) Vehicle() core.EntityID { return c.vehicle }

func (c *Controller) Velocity() mgl64.Vec3 { return c.body.LinearVelocity }

func (c *Controller) Position() mgl64.Vec3 { return c.body.Position }

// Feet is the lowest point of the capsule.
func (c *Controller) Feet() mgl64.Vec3 {
	return c.body.Position.Sub(mgl64.Vec3{0, c.footOffset(), 0})
}

// Sprinting reports whether the last intent moved at run speed.
func (c *Controller) Sprinting() bool {
	return c.sprintHeld && c.moving() && c.stamina > 0
}

func (c *Controller) footOffset() float64 {
	return c.cfg.HalfHeight + c.cfg.Radius
}

func (c *Controller) moving() bool {
	return c.moveDir.LenSqr() > 0
}

// ApplyMovementIntent sets the horizontal velocity for the coming step. dir
// is a horizontal direction (normalised if longer than one) or zero.
func (c *Controller) ApplyMovementIntent(dir mgl64.Vec3, sprint, jump bool) {
	if c.mode != core.ModeOnFoot || c.Dead() {
		c.moveDir = mgl64.Vec3{}
		c.sprintHeld = false
		return
	}
	dir[1] = 0
	if l := dir.Len(); l > 1 {
		dir = dir.Mul(1 / l)
	}
	c.moveDir = dir
	c.sprintHeld = sprint

	speed := c.cfg.WalkSpeed
	if c.Sprinting() {
		speed = c.cfg.RunSpeed
	}
	v := c.body.LinearVelocity
	v[0] = dir.X() * speed
	v[2] = dir.Z() * speed

	if jump && c.grounded {
		v[1] = c.cfg.JumpSpeed
		c.grounded = false
		c.jumping = true
	}
	c.body.SetVelocity(v)

	c.lastStepped = c.moving() && c.stepUp()
}

// stepUp lifts the avatar onto low obstacles ahead. It probes every call:
// a chest-height ray must be clear, then a downward ray in front of the
// avatar finds the obstacle top.
func (c *Controller) stepUp() bool {
	if !c.grounded {
		return false
	}
	dir := c.moveDir.Normalize()
	feet := c.Feet()
	reach := c.cfg.Radius + 0.25
	skip := physics.Exclude(c.body.ID)

	chest := c.body.Position.Add(mgl64.Vec3{0, c.cfg.HalfHeight * 0.5, 0})
	if c.world.Raycast(chest, dir, reach, skip).Hit {
		return false
	}

	probe := feet.Add(dir.Mul(reach)).Add(mgl64.Vec3{0, c.cfg.StepHeight + 0.05, 0})
	hit := c.world.Raycast(probe, mgl64.Vec3{0, -1, 0}, c.cfg.StepHeight+0.05, skip)
	if !hit.Hit || hit.Normal.Y() < 0.5 {
		return false
	}
	rise := hit.Point.Y() - feet.Y()
	if rise <= 0.05 || rise > c.cfg.StepHeight {
		return false
	}
	c.body.Position[1] += rise + 0.01
	c.logger.Debug("step up", "rise", rise)
	return true
}

// SteppedUp reports whether the last intent lifted the avatar.
func (c *Controller) SteppedUp() bool { return c.lastStepped }

// Update runs after the physics step: stamina bookkeeping and fall
// detection.
func (c *Controller) Update(dt float64) {
	if c.sprintHeld && c.moving() && c.mode == core.ModeOnFoot {
		c.stamina = math.Max(0, c.stamina-c.cfg.StaminaDrain*dt)
	} else {
		c.stamina = math.Min(MaxStamina, c.stamina+c.cfg.StaminaRegen*dt)
	}

	if c.mode != core.ModeOnFoot {
		return
	}
	if c.grounded && c.body.LinearVelocity.Y() < -c.cfg.FallSpeed && !c.touchingWalkable() {
		c.grounded = false
	}
}

// touchingWalkable reports a current contact with walkable ground below
// the avatar. Contact normals point from A to B; n is flipped to point from
// the other body towards the avatar.
func (c *Controller) touchingWalkable() bool {
	for _, ct := range c.world.ContactsOf(c.body.ID) {
		other, n := ct.A, ct.Normal
		if ct.A == c.body {
			other, n = ct.B, ct.Normal.Mul(-1)
		}
		if other.Category.Walkable() && n.Y() > 0.5 {
			return true
		}
	}
	return false
}

func (c *Controller) onCollision(ev physics.CollisionEvent) {
	if !ev.Other.Category.Walkable() || ev.Normal.Y() <= 0.5 {
		return
	}
	if !c.grounded {
		c.logger.Debug("landed", "on", ev.Other.Category.String())
	}
	c.grounded = true
	c.jumping = false
}

// TakeDamage lowers health, clamped at zero.
func (c *Controller) TakeDamage(amount float64) {
	if amount <= 0 {
		return
	}
	c.health = math.Max(0, c.health-amount)
	if c.health == 0 {
		c.logger.Info("character died")
	}
}

// Heal raises health, clamped at MaxHealth, and returns the applied delta.
func (c *Controller) Heal(amount float64) float64 {
	if amount <= 0 || c.Dead() {
		return 0
	}
	before := c.health
	c.health = math.Min(MaxHealth, c.health+amount)
	return c.health - before
}

// SetDriving binds the avatar to a vehicle, hiding and deactivating its body.
func (c *Controller) SetDriving(vehicle core.EntityID) {
	if vehicle == "" {
		return
	}
	c.mode = core.ModeDriving
	c.vehicle = vehicle
	c.visible = false
	c.grounded = false
	c.jumping = false
	c.moveDir = mgl64.Vec3{}
	c.sprintHeld = false
	c.world.Deactivate(c.body.ID)
}

// SetOnFoot places the avatar at pos (feet) and gives it back its body.
func (c *Controller) SetOnFoot(pos mgl64.Vec3) {
	c.mode = core.ModeOnFoot
	c.vehicle = ""
	c.visible = true
	c.world.Teleport(c.body.ID, pos.Add(mgl64.Vec3{0, c.footOffset(), 0}), mgl64.QuatIdent())
	c.world.Activate(c.body.ID)
}

// Respawn resets the avatar after death or a restart.
func (c *Controller) Respawn() {
	c.health = MaxHealth
	c.stamina = MaxStamina
	c.grounded = false
	c.jumping = false
	c.SetOnFoot(c.spawn)
}

// Snapshot returns the persisted state.
func (c *Controller) Snapshot() core.CharacterSnapshot {
	return core.CharacterSnapshot{
		ID:        c.id,
		Transform: core.Transform{Position: c.Feet(), Orientation: c.body.Orientation},
		Health:    c.health,
		Stamina:   c.stamina,
		Mode:      c.mode,
		VehicleID: c.vehicle,
	}
}

// Restore applies a snapshot on foot; re-binding a vehicle is up to the
// possession layer.
func (c *Controller) Restore(s core.CharacterSnapshot) {
	c.health = mgl64.Clamp(s.Health, 0, MaxHealth)
	c.stamina = mgl64.Clamp(s.Stamina, 0, MaxStamina)
	c.grounded = false
	c.jumping = false
	c.SetOnFoot(s.Transform.Position)
}
