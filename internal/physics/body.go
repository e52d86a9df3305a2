package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opencity/sandbox/pkg/core"
)

// BodyID identifies a body within its World. Zero is never assigned.
type BodyID uint32

// BodyOptions describes a body to create. Mass 0 makes the body static.
type BodyOptions struct {
	Shape          Shape
	Mass           float64
	Position       mgl64.Vec3
	Orientation    mgl64.Quat
	Category       core.Category
	Owner          core.EntityID
	Friction       float64
	Restitution    float64
	LinearDamping  float64
	AngularDamping float64
	FixedRotation  bool
	Sensor         bool
	AllowSleep     bool
}

// Body is a simulated rigid body. Position, orientation and velocities are
// mutated in place by the world on every step.
type Body struct {
	ID       BodyID
	Category core.Category
	Owner    core.EntityID
	Shape    Shape

	Position        mgl64.Vec3
	Orientation     mgl64.Quat
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3

	LinearDamping  float64
	AngularDamping float64
	Friction       float64
	Restitution    float64
	FixedRotation  bool
	Sensor         bool
	AllowSleep     bool

	mass            float64
	invMass         float64
	invInertiaLocal mgl64.Vec3

	force  mgl64.Vec3
	torque mgl64.Vec3

	sleeping   bool
	sleepTimer float64
	disabled   bool

	prevPosition    mgl64.Vec3
	prevOrientation mgl64.Quat

	prims []primitive
	box   aabb
}

func newBody(id BodyID, opts BodyOptions) *Body {
	q := opts.Orientation
	if q.W == 0 && q.V.Len() == 0 {
		q = mgl64.QuatIdent()
	}
	b := &Body{
		ID:             id,
		Category:       opts.Category,
		Owner:          opts.Owner,
		Shape:          opts.Shape,
		Position:       opts.Position,
		Orientation:    q.Normalize(),
		LinearDamping:  opts.LinearDamping,
		AngularDamping: opts.AngularDamping,
		Friction:       opts.Friction,
		Restitution:    opts.Restitution,
		FixedRotation:  opts.FixedRotation,
		Sensor:         opts.Sensor,
		AllowSleep:     opts.AllowSleep,
	}
	b.SetMass(opts.Mass)
	b.prevPosition = b.Position
	b.prevOrientation = b.Orientation
	return b
}

// SetMass updates mass and inverse inertia. Mass <= 0 makes the body static.
func (b *Body) SetMass(m float64) {
	if m <= 0 {
		b.mass, b.invMass = 0, 0
		b.invInertiaLocal = mgl64.Vec3{}
		return
	}
	b.mass = m
	b.invMass = 1 / m
	in := b.Shape.inertia(m)
	for i := 0; i < 3; i++ {
		if in[i] > 0 && !b.FixedRotation {
			b.invInertiaLocal[i] = 1 / in[i]
		}
	}
}

func (b *Body) Mass() float64 { return b.mass }

func (b *Body) InverseMass() float64 { return b.invMass }

// IsStatic reports whether the body has infinite mass.
func (b *Body) IsStatic() bool { return b.invMass == 0 }

func (b *Body) Sleeping() bool { return b.sleeping }

// Enabled reports whether the body currently takes part in the simulation.
func (b *Body) Enabled() bool { return !b.disabled }

// Speed is the magnitude of the linear velocity in m/s.
func (b *Body) Speed() float64 { return b.LinearVelocity.Len() }

func (b *Body) Transform() core.Transform {
	return core.Transform{Position: b.Position, Orientation: b.Orientation}
}

// Wake clears the sleep state.
func (b *Body) Wake() {
	b.sleeping = false
	b.sleepTimer = 0
}

// ApplyForce accumulates a force through the center of mass for the next step.
func (b *Body) ApplyForce(f mgl64.Vec3) {
	b.force = b.force.Add(f)
}

// ApplyForceAt accumulates a force applied at a world-space point.
func (b *Body) ApplyForceAt(f, point mgl64.Vec3) {
	b.force = b.force.Add(f)
	b.torque = b.torque.Add(point.Sub(b.Position).Cross(f))
}

// ApplyImpulse changes the linear velocity immediately and wakes the body.
func (b *Body) ApplyImpulse(j mgl64.Vec3) {
	if b.invMass == 0 {
		return
	}
	b.LinearVelocity = b.LinearVelocity.Add(j.Mul(b.invMass))
	b.Wake()
}

// ApplyImpulseAt applies an impulse at a world-space point.
func (b *Body) ApplyImpulseAt(j, point mgl64.Vec3) {
	if b.invMass == 0 {
		return
	}
	b.LinearVelocity = b.LinearVelocity.Add(j.Mul(b.invMass))
	b.AngularVelocity = b.AngularVelocity.Add(b.invInertiaMul(point.Sub(b.Position).Cross(j)))
	b.Wake()
}

// SetVelocity overwrites the linear velocity and wakes the body.
func (b *Body) SetVelocity(v mgl64.Vec3) {
	b.LinearVelocity = v
	b.Wake()
}

// VelocityAt returns the velocity of a world-space point attached to the body.
func (b *Body) VelocityAt(point mgl64.Vec3) mgl64.Vec3 {
	return b.LinearVelocity.Add(b.AngularVelocity.Cross(point.Sub(b.Position)))
}

// InverseMassAt is the inverse effective mass felt by an impulse along dir
// applied at a world-space point.
func (b *Body) InverseMassAt(point, dir mgl64.Vec3) float64 {
	r := point.Sub(b.Position)
	return b.invMass + dir.Dot(b.invInertiaMul(r.Cross(dir)).Cross(r))
}

// PointToWorld transforms a body-local point into world space.
func (b *Body) PointToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return b.Position.Add(b.Orientation.Rotate(local))
}

// VectorToWorld rotates a body-local direction into world space.
func (b *Body) VectorToWorld(local mgl64.Vec3) mgl64.Vec3 {
	return b.Orientation.Rotate(local)
}

// VectorToLocal rotates a world direction into the body frame.
func (b *Body) VectorToLocal(v mgl64.Vec3) mgl64.Vec3 {
	return b.Orientation.Conjugate().Rotate(v)
}

// invInertiaMul multiplies v by the world-space inverse inertia tensor.
func (b *Body) invInertiaMul(v mgl64.Vec3) mgl64.Vec3 {
	if b.invInertiaLocal.LenSqr() == 0 {
		return mgl64.Vec3{}
	}
	local := b.VectorToLocal(v)
	local = mgl64.Vec3{
		local[0] * b.invInertiaLocal[0],
		local[1] * b.invInertiaLocal[1],
		local[2] * b.invInertiaLocal[2],
	}
	return b.VectorToWorld(local)
}

func (b *Body) integrateVelocity(gravity mgl64.Vec3, dt float64) {
	acc := gravity.Add(b.force.Mul(b.invMass))
	b.LinearVelocity = b.LinearVelocity.Add(acc.Mul(dt))
	b.AngularVelocity = b.AngularVelocity.Add(b.invInertiaMul(b.torque).Mul(dt))
	if b.LinearDamping > 0 {
		b.LinearVelocity = b.LinearVelocity.Mul(math.Pow(1-b.LinearDamping, dt))
	}
	if b.AngularDamping > 0 {
		b.AngularVelocity = b.AngularVelocity.Mul(math.Pow(1-b.AngularDamping, dt))
	}
	if b.FixedRotation {
		b.AngularVelocity = mgl64.Vec3{}
	}
}

func (b *Body) integratePosition(dt float64) {
	b.Position = b.Position.Add(b.LinearVelocity.Mul(dt))
	if b.AngularVelocity.LenSqr() == 0 {
		return
	}
	spin := mgl64.Quat{W: 0, V: b.AngularVelocity}.Mul(b.Orientation).Scale(0.5 * dt)
	b.Orientation = b.Orientation.Add(spin).Normalize()
}

func (b *Body) clearForces() {
	b.force = mgl64.Vec3{}
	b.torque = mgl64.Vec3{}
}

func (b *Body) updateBounds() {
	b.prims = b.Shape.primitives(b.Position, b.Orientation, b.prims[:0])
	if len(b.prims) == 0 {
		b.box = aabb{min: b.Position, max: b.Position}
		return
	}
	b.box = b.prims[0].bounds()
	for _, p := range b.prims[1:] {
		b.box = b.box.union(p.bounds())
	}
}

// degenerate reports NaN or Inf anywhere in the kinematic state.
func (b *Body) degenerate() bool {
	return !finiteVec(b.Position) || !finiteVec(b.LinearVelocity) ||
		!finiteVec(b.AngularVelocity) || !finiteQuat(b.Orientation)
}
