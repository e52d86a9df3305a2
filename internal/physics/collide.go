package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Contact is a single contact point between two bodies. Normal points from
// A towards B.
type Contact struct {
	A, B   *Body
	Point  mgl64.Vec3
	Normal mgl64.Vec3
	Depth  float64

	normalImpulse   float64
	tangentImpulse1 float64
	tangentImpulse2 float64
	restitutionBias float64
}

const maxBoxContacts = 4

// collide appends the contacts between two bodies to out.
func collide(a, b *Body, out []Contact) []Contact {
	for i := range a.prims {
		for j := range b.prims {
			out = collidePrims(a, b, &a.prims[i], &b.prims[j], out)
		}
	}
	return out
}

func collidePrims(a, b *Body, pa, pb *primitive, out []Contact) []Contact {
	switch {
	case pa.kind == primCapsule && pb.kind == primCapsule:
		return capsuleCapsule(a, b, pa, pb, out)
	case pa.kind == primCapsule && pb.kind == primBox:
		return capsuleBox(a, b, pa, pb, out, false)
	case pa.kind == primBox && pb.kind == primCapsule:
		return capsuleBox(b, a, pb, pa, out, true)
	default:
		return boxBox(a, b, pa, pb, out)
	}
}

func capsuleCapsule(a, b *Body, pa, pb *primitive, out []Contact) []Contact {
	p1, p2 := closestSegmentSegment(pa.a, pa.b, pb.a, pb.b)
	d := p2.Sub(p1)
	dist := d.Len()
	rsum := pa.radius + pb.radius
	if dist >= rsum {
		return out
	}
	n := mgl64.Vec3{0, 1, 0}
	if dist > 1e-9 {
		n = d.Mul(1 / dist)
	}
	depth := rsum - dist
	return append(out, Contact{
		A:      a,
		B:      b,
		Normal: n,
		Depth:  depth,
		Point:  p1.Add(n.Mul(pa.radius - depth/2)),
	})
}

// capsuleBox tests capsule c (body cb) against box x (body xb). When swapped
// the box body is reported as A.
func capsuleBox(cb, xb *Body, c, x *primitive, out []Contact, swapped bool) []Contact {
	p := closestPointOnSegment(c.a, c.b, x.center)
	for i := 0; i < 3; i++ {
		q := closestPointOnBox(x, p)
		p = closestPointOnSegment(c.a, c.b, q)
	}
	point, n, depth, ok := sphereBox(p, c.radius, x)
	if !ok {
		return out
	}
	// n points from box to capsule
	if swapped {
		return append(out, Contact{A: xb, B: cb, Point: point, Normal: n, Depth: depth})
	}
	return append(out, Contact{A: cb, B: xb, Point: point, Normal: n.Mul(-1), Depth: depth})
}

// sphereBox returns the contact of a sphere against a box with the normal
// pointing from the box towards the sphere centre.
func sphereBox(c mgl64.Vec3, r float64, x *primitive) (point, normal mgl64.Vec3, depth float64, ok bool) {
	rel := c.Sub(x.center)
	var local mgl64.Vec3
	inside := true
	for i := 0; i < 3; i++ {
		local[i] = rel.Dot(x.axes[i])
		if math.Abs(local[i]) > x.half[i] {
			inside = false
		}
	}
	if inside {
		axis, best := 0, math.Inf(1)
		for i := 0; i < 3; i++ {
			if pen := x.half[i] - math.Abs(local[i]); pen < best {
				axis, best = i, pen
			}
		}
		n := x.axes[axis]
		if local[axis] < 0 {
			n = n.Mul(-1)
		}
		return c.Add(n.Mul(best)), n, r + best, true
	}
	closest := closestPointOnBox(x, c)
	d := c.Sub(closest)
	dist := d.Len()
	if dist >= r || dist < 1e-12 {
		return point, normal, 0, false
	}
	return closest, d.Mul(1 / dist), r - dist, true
}

func boxBox(a, b *Body, pa, pb *primitive, out []Contact) []Contact {
	l := pb.center.Sub(pa.center)
	best := math.Inf(1)
	var bestAxis mgl64.Vec3

	test := func(axis mgl64.Vec3) bool {
		ln := axis.Len()
		if ln < 1e-6 {
			return true
		}
		axis = axis.Mul(1 / ln)
		overlap := projectBox(pa, axis) + projectBox(pb, axis) - math.Abs(l.Dot(axis))
		if overlap < 0 {
			return false
		}
		if overlap < best {
			best = overlap
			bestAxis = axis
		}
		return true
	}

	for i := 0; i < 3; i++ {
		if !test(pa.axes[i]) || !test(pb.axes[i]) {
			return out
		}
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !test(pa.axes[i].Cross(pb.axes[j])) {
				return out
			}
		}
	}
	if l.Dot(bestAxis) < 0 {
		bestAxis = bestAxis.Mul(-1)
	}

	start := len(out)
	for _, p := range boxCorners(pb) {
		if len(out)-start == maxBoxContacts {
			break
		}
		if pointInBox(pa, p, 1e-4) {
			out = append(out, Contact{A: a, B: b, Point: p, Normal: bestAxis, Depth: best})
		}
	}
	for _, p := range boxCorners(pa) {
		if len(out)-start == maxBoxContacts {
			break
		}
		if pointInBox(pb, p, 1e-4) {
			out = append(out, Contact{A: a, B: b, Point: p, Normal: bestAxis, Depth: best})
		}
	}
	if len(out) == start {
		// edge-edge: approximate with the point between the two surfaces
		mid := pa.center.Add(l.Mul(0.5))
		out = append(out, Contact{A: a, B: b, Point: mid, Normal: bestAxis, Depth: best})
	}
	return out
}

func projectBox(p *primitive, axis mgl64.Vec3) float64 {
	var r float64
	for i := 0; i < 3; i++ {
		r += math.Abs(p.axes[i].Dot(axis)) * p.half[i]
	}
	return r
}

func boxCorners(p *primitive) [8]mgl64.Vec3 {
	var out [8]mgl64.Vec3
	for i := 0; i < 8; i++ {
		c := p.center
		for k := 0; k < 3; k++ {
			s := p.half[k]
			if i&(1<<k) == 0 {
				s = -s
			}
			c = c.Add(p.axes[k].Mul(s))
		}
		out[i] = c
	}
	return out
}

func pointInBox(p *primitive, pt mgl64.Vec3, tol float64) bool {
	d := pt.Sub(p.center)
	for i := 0; i < 3; i++ {
		if math.Abs(d.Dot(p.axes[i])) > p.half[i]+tol {
			return false
		}
	}
	return true
}

func closestPointOnBox(p *primitive, pt mgl64.Vec3) mgl64.Vec3 {
	d := pt.Sub(p.center)
	out := p.center
	for i := 0; i < 3; i++ {
		dist := mgl64.Clamp(d.Dot(p.axes[i]), -p.half[i], p.half[i])
		out = out.Add(p.axes[i].Mul(dist))
	}
	return out
}

func closestPointOnSegment(a, b, p mgl64.Vec3) mgl64.Vec3 {
	ab := b.Sub(a)
	den := ab.LenSqr()
	if den < 1e-12 {
		return a
	}
	t := mgl64.Clamp(p.Sub(a).Dot(ab)/den, 0, 1)
	return a.Add(ab.Mul(t))
}

// closestSegmentSegment returns the closest points between segments p1q1
// and p2q2.
func closestSegmentSegment(p1, q1, p2, q2 mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.LenSqr()
	e := d2.LenSqr()
	f := d2.Dot(r)

	var s, t float64
	switch {
	case a < 1e-12 && e < 1e-12:
		return p1, p2
	case a < 1e-12:
		t = mgl64.Clamp(f/e, 0, 1)
	default:
		c := d1.Dot(r)
		if e < 1e-12 {
			s = mgl64.Clamp(-c/a, 0, 1)
		} else {
			b := d1.Dot(d2)
			den := a*e - b*b
			if den > 1e-12 {
				s = mgl64.Clamp((b*f-c*e)/den, 0, 1)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = mgl64.Clamp(-c/a, 0, 1)
			} else if t > 1 {
				t = 1
				s = mgl64.Clamp((b-c)/a, 0, 1)
			}
		}
	}
	return p1.Add(d1.Mul(s)), p2.Add(d2.Mul(t))
}
