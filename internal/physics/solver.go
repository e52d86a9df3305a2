package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	baumgarte        = 0.2
	penetrationSlop  = 0.01
	restitutionSpeed = 1.0
)

// prepareContacts caches restitution targets before the iterations start.
func prepareContacts(contacts []Contact) {
	for i := range contacts {
		c := &contacts[i]
		vn := relativeVelocity(c).Dot(c.Normal)
		e := math.Max(c.A.Restitution, c.B.Restitution)
		if vn < -restitutionSpeed && e > 0 {
			c.restitutionBias = -e * vn
		}
	}
}

// solveContacts runs one sequential impulse pass over all contacts.
func solveContacts(contacts []Contact, dt float64) {
	for i := range contacts {
		c := &contacts[i]
		if c.A.Sensor || c.B.Sensor {
			continue
		}
		solveNormal(c, dt)
		solveFriction(c)
	}
}

func relativeVelocity(c *Contact) mgl64.Vec3 {
	return c.B.VelocityAt(c.Point).Sub(c.A.VelocityAt(c.Point))
}

func effectiveMass(c *Contact, dir mgl64.Vec3) float64 {
	ra := c.Point.Sub(c.A.Position)
	rb := c.Point.Sub(c.B.Position)
	k := c.A.invMass + c.B.invMass
	k += dir.Dot(c.A.invInertiaMul(ra.Cross(dir)).Cross(ra))
	k += dir.Dot(c.B.invInertiaMul(rb.Cross(dir)).Cross(rb))
	return k
}

func applyPairImpulse(c *Contact, j mgl64.Vec3) {
	if c.A.invMass > 0 {
		c.A.LinearVelocity = c.A.LinearVelocity.Sub(j.Mul(c.A.invMass))
		c.A.AngularVelocity = c.A.AngularVelocity.Sub(c.A.invInertiaMul(c.Point.Sub(c.A.Position).Cross(j)))
	}
	if c.B.invMass > 0 {
		c.B.LinearVelocity = c.B.LinearVelocity.Add(j.Mul(c.B.invMass))
		c.B.AngularVelocity = c.B.AngularVelocity.Add(c.B.invInertiaMul(c.Point.Sub(c.B.Position).Cross(j)))
	}
}

func solveNormal(c *Contact, dt float64) {
	k := effectiveMass(c, c.Normal)
	if k <= 0 {
		return
	}
	vn := relativeVelocity(c).Dot(c.Normal)
	bias := baumgarte / dt * math.Max(c.Depth-penetrationSlop, 0)
	j := (-vn + bias + c.restitutionBias) / k

	acc := math.Max(c.normalImpulse+j, 0)
	j = acc - c.normalImpulse
	c.normalImpulse = acc
	applyPairImpulse(c, c.Normal.Mul(j))
}

func solveFriction(c *Contact) {
	mu := math.Sqrt(c.A.Friction * c.B.Friction)
	if mu == 0 || c.normalImpulse == 0 {
		return
	}
	t1, t2 := tangentBasis(c.Normal)
	limit := mu * c.normalImpulse
	c.tangentImpulse1 = solveTangent(c, t1, c.tangentImpulse1, limit)
	c.tangentImpulse2 = solveTangent(c, t2, c.tangentImpulse2, limit)
}

func solveTangent(c *Contact, t mgl64.Vec3, acc, limit float64) float64 {
	k := effectiveMass(c, t)
	if k <= 0 {
		return acc
	}
	j := -relativeVelocity(c).Dot(t) / k
	next := mgl64.Clamp(acc+j, -limit, limit)
	applyPairImpulse(c, t.Mul(next-acc))
	return next
}

// tangentBasis returns two unit vectors orthogonal to n.
func tangentBasis(n mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	ref := mgl64.Vec3{1, 0, 0}
	if math.Abs(n.X()) > 0.9 {
		ref = mgl64.Vec3{0, 0, 1}
	}
	t1 := n.Cross(ref).Normalize()
	return t1, n.Cross(t1)
}
