package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeKind enumerates the supported collision shapes.
type ShapeKind uint8

const (
	ShapeSphere ShapeKind = iota
	ShapeBox
	ShapeCapsule
	ShapeCylinder
	ShapeCompound
)

// Shape describes the collision geometry of a body in its local frame.
// Capsules and cylinders are aligned with the local Y axis.
type Shape struct {
	Kind        ShapeKind
	Radius      float64
	HalfHeight  float64 // capsule segment half length, cylinder half height
	HalfExtents mgl64.Vec3
	Children    []ChildShape
}

// ChildShape is a compound part placed at a local offset.
type ChildShape struct {
	Shape  Shape
	Offset mgl64.Vec3
}

func Sphere(radius float64) Shape {
	return Shape{Kind: ShapeSphere, Radius: radius}
}

func Box(hx, hy, hz float64) Shape {
	return Shape{Kind: ShapeBox, HalfExtents: mgl64.Vec3{hx, hy, hz}}
}

// Capsule returns a Y-aligned capsule; halfHeight is half the length of the
// inner segment, so the total height is 2*(halfHeight+radius).
func Capsule(radius, halfHeight float64) Shape {
	return Shape{Kind: ShapeCapsule, Radius: radius, HalfHeight: halfHeight}
}

// Cylinder collides as its bounding box.
func Cylinder(radius, halfHeight float64) Shape {
	return Shape{Kind: ShapeCylinder, Radius: radius, HalfHeight: halfHeight}
}

func Compound(children ...ChildShape) Shape {
	return Shape{Kind: ShapeCompound, Children: children}
}

type primKind uint8

const (
	primCapsule primKind = iota // spheres are capsules with a == b
	primBox
)

// primitive is a shape part resolved into world space.
type primitive struct {
	kind   primKind
	center mgl64.Vec3
	axes   [3]mgl64.Vec3
	half   mgl64.Vec3
	a, b   mgl64.Vec3
	radius float64
}

func (s Shape) primitives(pos mgl64.Vec3, rot mgl64.Quat, out []primitive) []primitive {
	switch s.Kind {
	case ShapeSphere:
		out = append(out, primitive{kind: primCapsule, center: pos, a: pos, b: pos, radius: s.Radius})
	case ShapeCapsule:
		up := rot.Rotate(mgl64.Vec3{0, s.HalfHeight, 0})
		out = append(out, primitive{kind: primCapsule, center: pos, a: pos.Sub(up), b: pos.Add(up), radius: s.Radius})
	case ShapeBox:
		out = append(out, boxPrimitive(pos, rot, s.HalfExtents))
	case ShapeCylinder:
		out = append(out, boxPrimitive(pos, rot, mgl64.Vec3{s.Radius, s.HalfHeight, s.Radius}))
	case ShapeCompound:
		for _, c := range s.Children {
			out = c.Shape.primitives(pos.Add(rot.Rotate(c.Offset)), rot, out)
		}
	}
	return out
}

func boxPrimitive(pos mgl64.Vec3, rot mgl64.Quat, half mgl64.Vec3) primitive {
	return primitive{
		kind:   primBox,
		center: pos,
		half:   half,
		axes: [3]mgl64.Vec3{
			rot.Rotate(mgl64.Vec3{1, 0, 0}),
			rot.Rotate(mgl64.Vec3{0, 1, 0}),
			rot.Rotate(mgl64.Vec3{0, 0, 1}),
		},
	}
}

// aabb is an axis-aligned bounding box.
type aabb struct {
	min, max mgl64.Vec3
}

func (p primitive) bounds() aabb {
	if p.kind == primCapsule {
		r := mgl64.Vec3{p.radius, p.radius, p.radius}
		return aabb{
			min: vecMin(p.a, p.b).Sub(r),
			max: vecMax(p.a, p.b).Add(r),
		}
	}
	var ext mgl64.Vec3
	for i := 0; i < 3; i++ {
		ext = ext.Add(absVec(p.axes[i]).Mul(p.half[i]))
	}
	return aabb{min: p.center.Sub(ext), max: p.center.Add(ext)}
}

func (a aabb) union(b aabb) aabb {
	return aabb{min: vecMin(a.min, b.min), max: vecMax(a.max, b.max)}
}

func (a aabb) overlaps(b aabb) bool {
	return a.min.X() <= b.max.X() && a.max.X() >= b.min.X() &&
		a.min.Y() <= b.max.Y() && a.max.Y() >= b.min.Y() &&
		a.min.Z() <= b.max.Z() && a.max.Z() >= b.min.Z()
}

// localBounds returns the half extents of the shape's local bounding box
// around the body origin.
func (s Shape) localBounds() aabb {
	prims := s.primitives(mgl64.Vec3{}, mgl64.QuatIdent(), nil)
	if len(prims) == 0 {
		return aabb{}
	}
	box := prims[0].bounds()
	for _, p := range prims[1:] {
		box = box.union(p.bounds())
	}
	return box
}

// inertia returns the diagonal of the local inertia tensor for mass m.
func (s Shape) inertia(m float64) mgl64.Vec3 {
	switch s.Kind {
	case ShapeSphere:
		i := 0.4 * m * s.Radius * s.Radius
		return mgl64.Vec3{i, i, i}
	case ShapeBox:
		return boxInertia(m, s.HalfExtents)
	case ShapeCapsule:
		return cylinderInertia(m, s.Radius, s.HalfHeight+s.Radius)
	case ShapeCylinder:
		return cylinderInertia(m, s.Radius, s.HalfHeight)
	default:
		b := s.localBounds()
		return boxInertia(m, b.max.Sub(b.min).Mul(0.5))
	}
}

func boxInertia(m float64, half mgl64.Vec3) mgl64.Vec3 {
	x, y, z := 2*half.X(), 2*half.Y(), 2*half.Z()
	return mgl64.Vec3{
		m / 12 * (y*y + z*z),
		m / 12 * (x*x + z*z),
		m / 12 * (x*x + y*y),
	}
}

func cylinderInertia(m, r, halfHeight float64) mgl64.Vec3 {
	h := 2 * halfHeight
	side := m * (3*r*r + h*h) / 12
	return mgl64.Vec3{side, 0.5 * m * r * r, side}
}

func vecMin(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Min(a[0], b[0]), math.Min(a[1], b[1]), math.Min(a[2], b[2])}
}

func vecMax(a, b mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Max(a[0], b[0]), math.Max(a[1], b[1]), math.Max(a[2], b[2])}
}

func absVec(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{math.Abs(v[0]), math.Abs(v[1]), math.Abs(v[2])}
}

func finiteVec(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

func finiteQuat(q mgl64.Quat) bool {
	return finiteVec(q.V) && !math.IsNaN(q.W) && !math.IsInf(q.W, 0)
}
