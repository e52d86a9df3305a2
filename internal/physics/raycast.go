package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// RaycastResult is the closest hit along a ray.
type RaycastResult struct {
	Hit      bool
	Point    mgl64.Vec3
	Normal   mgl64.Vec3
	Distance float64
	Body     *Body
}

// RayFilter decides whether a body can be hit. Nil accepts every body.
type RayFilter func(*Body) bool

// Exclude returns a filter skipping the given bodies.
func Exclude(ids ...BodyID) RayFilter {
	return func(b *Body) bool {
		for _, id := range ids {
			if b.ID == id {
				return false
			}
		}
		return true
	}
}

// Raycast returns the closest non-sensor, enabled body hit by the ray
// starting at origin within maxDist. Rays starting inside a shape do not
// hit that shape.
func (w *World) Raycast(origin, dir mgl64.Vec3, maxDist float64, filter RayFilter) RaycastResult {
	var res RaycastResult
	if dir.LenSqr() < 1e-12 || maxDist <= 0 {
		return res
	}
	dir = dir.Normalize()
	best := maxDist

	for _, b := range w.order {
		if b.disabled || b.Sensor {
			continue
		}
		if filter != nil && !filter(b) {
			continue
		}
		if !rayHitsAABB(origin, dir, best, b.box) {
			continue
		}
		for i := range b.prims {
			t, n, ok := rayPrimitive(origin, dir, &b.prims[i])
			if !ok || t > best {
				continue
			}
			best = t
			res = RaycastResult{
				Hit:      true,
				Point:    origin.Add(dir.Mul(t)),
				Normal:   n,
				Distance: t,
				Body:     b,
			}
		}
	}
	return res
}

func rayHitsAABB(o, d mgl64.Vec3, maxDist float64, box aabb) bool {
	tmin, tmax := 0.0, maxDist
	for i := 0; i < 3; i++ {
		if math.Abs(d[i]) < 1e-12 {
			if o[i] < box.min[i] || o[i] > box.max[i] {
				return false
			}
			continue
		}
		inv := 1 / d[i]
		t1 := (box.min[i] - o[i]) * inv
		t2 := (box.max[i] - o[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tmin = math.Max(tmin, t1)
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return false
		}
	}
	return true
}

func rayPrimitive(o, d mgl64.Vec3, p *primitive) (float64, mgl64.Vec3, bool) {
	if p.kind == primBox {
		return rayBox(o, d, p)
	}
	return rayCapsule(o, d, p)
}

// rayBox is a slab test in the box frame.
func rayBox(o, d mgl64.Vec3, p *primitive) (float64, mgl64.Vec3, bool) {
	rel := o.Sub(p.center)
	tmin, tmax := math.Inf(-1), math.Inf(1)
	var nmin mgl64.Vec3
	for i := 0; i < 3; i++ {
		lo := rel.Dot(p.axes[i])
		ld := d.Dot(p.axes[i])
		if math.Abs(ld) < 1e-12 {
			if lo < -p.half[i] || lo > p.half[i] {
				return 0, nmin, false
			}
			continue
		}
		t1 := (-p.half[i] - lo) / ld
		t2 := (p.half[i] - lo) / ld
		n := p.axes[i].Mul(-1)
		if t1 > t2 {
			t1, t2 = t2, t1
			n = p.axes[i]
		}
		if t1 > tmin {
			tmin = t1
			nmin = n
		}
		tmax = math.Min(tmax, t2)
		if tmin > tmax {
			return 0, nmin, false
		}
	}
	if tmin < 0 {
		return 0, nmin, false
	}
	return tmin, nmin, true
}

// rayCapsule intersects the ray with the swept sphere around segment ab.
func rayCapsule(o, d mgl64.Vec3, p *primitive) (float64, mgl64.Vec3, bool) {
	r := p.radius
	if p.a.Sub(p.b).LenSqr() < 1e-12 {
		t, ok := raySphere(o, d, p.a, r)
		if !ok {
			return 0, mgl64.Vec3{}, false
		}
		return t, o.Add(d.Mul(t)).Sub(p.a).Normalize(), true
	}
	if closestPointOnSegment(p.a, p.b, o).Sub(o).LenSqr() < r*r {
		return 0, mgl64.Vec3{}, false
	}

	ba := p.b.Sub(p.a)
	oa := o.Sub(p.a)
	baba := ba.Dot(ba)
	bard := ba.Dot(d)
	baoa := ba.Dot(oa)
	rdoa := d.Dot(oa)
	oaoa := oa.Dot(oa)

	a := baba - bard*bard
	b := baba*rdoa - baoa*bard
	c := baba*oaoa - baoa*baoa - r*r*baba
	best := math.Inf(1)
	if a > 1e-12 {
		h := b*b - a*c
		if h >= 0 {
			t := (-b - math.Sqrt(h)) / a
			y := baoa + t*bard
			if t >= 0 && y > 0 && y < baba {
				best = t
			}
		}
	}
	for _, end := range [2]mgl64.Vec3{p.a, p.b} {
		if t, ok := raySphere(o, d, end, r); ok && t < best {
			best = t
		}
	}
	if math.IsInf(best, 1) {
		return 0, mgl64.Vec3{}, false
	}
	hit := o.Add(d.Mul(best))
	n := hit.Sub(closestPointOnSegment(p.a, p.b, hit)).Normalize()
	return best, n, true
}

func raySphere(o, d, c mgl64.Vec3, r float64) (float64, bool) {
	oc := o.Sub(c)
	b := oc.Dot(d)
	cc := oc.Dot(oc) - r*r
	if cc < 0 {
		return 0, false
	}
	h := b*b - cc
	if h < 0 {
		return 0, false
	}
	t := -b - math.Sqrt(h)
	if t < 0 {
		return 0, false
	}
	return t, true
}
