package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opencity/sandbox/internal/physics"
	"github.com/opencity/sandbox/pkg/core"
)

// Wheel is the per-wheel suspension state. Indices 0-1 are the steerable
// front axle, 2-3 the driven rear axle.
type Wheel struct {
	Index      int
	Connection mgl64.Vec3 // chassis-local hard point
	Steerable  bool
	Driven     bool

	Steering    float64
	EngineForce float64
	BrakeForce  float64

	SuspensionRest  float64
	SuspensionLen   float64
	SuspensionForce float64
	InContact       bool
	Sliding         bool
	ContactPoint    mgl64.Vec3
	ContactNormal   mgl64.Vec3
	Ground          *physics.Body

	Rotation      float64
	DeltaRotation float64
	World         core.Transform

	cfg WheelConfig
}

var (
	localDown    = mgl64.Vec3{0, -1, 0}
	localUp      = mgl64.Vec3{0, 1, 0}
	localForward = mgl64.Vec3{0, 0, 1}
	localAxle    = mgl64.Vec3{1, 0, 0}
)

// UpdateAction runs the suspension, tyre friction and wheel transforms for
// one physics sub-step.
func (v *Vehicle) UpdateAction(w *physics.World, dt float64) {
	body := v.chassis
	if !body.Enabled() {
		return
	}
	if body.Sleeping() && !v.engineOn {
		v.updateWheelTransforms()
		return
	}

	contacts := 0
	for i := range v.wheels {
		if v.castWheel(w, &v.wheels[i]) {
			contacts++
		}
	}
	for i := range v.wheels {
		v.applySuspension(&v.wheels[i])
	}
	if contacts > 0 {
		v.applyFriction(dt, contacts)
	}
	for i := range v.wheels {
		wh := &v.wheels[i]
		speed := 0.0
		if wh.InContact {
			speed = body.VelocityAt(wh.ContactPoint).Dot(v.wheelForward(wh))
		}
		wh.DeltaRotation = speed * dt / wh.cfg.Radius
		wh.Rotation = math.Mod(wh.Rotation+wh.DeltaRotation, 2*math.Pi)
	}
	v.updateWheelTransforms()
}

func (v *Vehicle) wheelRotation(wh *Wheel) mgl64.Quat {
	// positive steering turns right, i.e. negative yaw
	return v.chassis.Orientation.Mul(mgl64.QuatRotate(-wh.Steering, localUp))
}

func (v *Vehicle) wheelForward(wh *Wheel) mgl64.Vec3 {
	return v.wheelRotation(wh).Rotate(localForward)
}

// castWheel casts the suspension ray and stores the contact.
func (v *Vehicle) castWheel(w *physics.World, wh *Wheel) bool {
	cfg := wh.cfg
	origin := v.chassis.PointToWorld(wh.Connection)
	down := v.chassis.VectorToWorld(localDown)
	maxLen := cfg.SuspensionRest + cfg.MaxSuspensionTravel + cfg.Radius

	hit := w.Raycast(origin, down, maxLen, physics.Exclude(v.chassis.ID))
	if !hit.Hit {
		wh.InContact = false
		wh.Ground = nil
		wh.SuspensionLen = cfg.SuspensionRest + cfg.MaxSuspensionTravel
		wh.SuspensionForce = 0
		return false
	}
	wh.InContact = true
	wh.Ground = hit.Body
	wh.ContactPoint = hit.Point
	wh.ContactNormal = hit.Normal
	wh.SuspensionLen = mgl64.Clamp(hit.Distance-cfg.Radius,
		cfg.SuspensionRest-cfg.MaxSuspensionTravel, cfg.SuspensionRest+cfg.MaxSuspensionTravel)
	return true
}

// applySuspension pushes the chassis up with a spring-damper per wheel.
func (v *Vehicle) applySuspension(wh *Wheel) {
	if !wh.InContact {
		return
	}
	cfg := wh.cfg
	up := v.chassis.VectorToWorld(localUp)
	denom := wh.ContactNormal.Dot(up)
	if denom < 0.1 {
		wh.SuspensionForce = 0
		return
	}
	inv := 1 / denom

	force := cfg.SuspensionStiffness * (cfg.SuspensionRest - wh.SuspensionLen) * inv
	rel := wh.ContactNormal.Dot(v.chassis.VelocityAt(wh.ContactPoint)) * inv
	damping := cfg.DampingRelaxation
	if rel < 0 {
		damping = cfg.DampingCompression
	}
	force -= damping * rel
	force = mgl64.Clamp(force*v.chassis.Mass(), 0, cfg.MaxSuspensionForce)
	wh.SuspensionForce = force
	v.chassis.ApplyForceAt(wh.ContactNormal.Mul(force), wh.ContactPoint)
}

// applyFriction resolves drive, brake and side grip at each contact. The
// side impulse of each wheel cancels its share of lateral slip; impulses
// beyond the friction circle make the wheel slide.
func (v *Vehicle) applyFriction(dt float64, contacts int) {
	body := v.chassis
	up := body.VectorToWorld(localUp)
	share := 1 / float64(contacts)

	for i := range v.wheels {
		wh := &v.wheels[i]
		wh.Sliding = false
		if !wh.InContact {
			continue
		}
		n := wh.ContactNormal
		rot := v.wheelRotation(wh)
		axle := projectOnPlane(rot.Rotate(localAxle), n)
		fwd := projectOnPlane(rot.Rotate(localForward), n)
		if axle.LenSqr() < 1e-12 || fwd.LenSqr() < 1e-12 {
			continue
		}
		axle = axle.Normalize()
		fwd = fwd.Normalize()

		vel := body.VelocityAt(wh.ContactPoint)
		side := -vel.Dot(axle) / pointMass(body, wh.ContactPoint, axle) * share
		if wh.Driven && v.handbrake {
			side *= v.typ.HandbrakeGrip
		}

		forward := wh.EngineForce * dt
		if wh.BrakeForce > 0 {
			stop := -vel.Dot(fwd) / pointMass(body, wh.ContactPoint, fwd) * share
			limit := wh.BrakeForce * dt
			forward += mgl64.Clamp(stop, -limit, limit)
		}

		maxImpulse := wh.SuspensionForce * dt * wh.cfg.FrictionSlip
		if total := math.Hypot(side, forward); total > maxImpulse {
			scale := 0.0
			if total > 0 {
				scale = maxImpulse / total
			}
			side *= scale
			forward *= scale
			wh.Sliding = true
		}

		if forward != 0 {
			body.ApplyImpulseAt(fwd.Mul(forward), wh.ContactPoint)
		}
		if side != 0 {
			// lift the application point towards the centre of mass to
			// limit body roll
			rel := wh.ContactPoint.Sub(body.Position)
			rel = rel.Sub(up.Mul(rel.Dot(up) * (1 - wh.cfg.RollInfluence)))
			body.ApplyImpulseAt(axle.Mul(side), body.Position.Add(rel))
		}
	}
}

func (v *Vehicle) updateWheelTransforms() {
	down := v.chassis.VectorToWorld(localDown)
	for i := range v.wheels {
		wh := &v.wheels[i]
		hub := v.chassis.PointToWorld(wh.Connection).Add(down.Mul(wh.SuspensionLen))
		spin := mgl64.QuatRotate(wh.Rotation, localAxle)
		wh.World = core.Transform{
			Position:    hub,
			Orientation: v.wheelRotation(wh).Mul(spin).Normalize(),
		}
	}
}

// WheelTransforms returns the world placement of each wheel for rendering.
func (v *Vehicle) WheelTransforms() [4]core.Transform {
	var out [4]core.Transform
	for i := range v.wheels {
		out[i] = v.wheels[i].World
	}
	return out
}

func projectOnPlane(vec, n mgl64.Vec3) mgl64.Vec3 {
	return vec.Sub(n.Mul(vec.Dot(n)))
}

// pointMass is the inverse effective mass of the chassis at a point along
// dir.
func pointMass(b *physics.Body, point, dir mgl64.Vec3) float64 {
	if k := b.InverseMassAt(point, dir); k > 1e-12 {
		return k
	}
	return 1
}
