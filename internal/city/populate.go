package city

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/opencity/sandbox/internal/physics"
	"github.com/opencity/sandbox/pkg/core"
)

const (
	groundThickness = 1.0
	groundFriction  = 0.8
)

// Populate adds the ground slab and a static box per building and returns
// the created bodies, ground first.
func (l *Layout) Populate(w *physics.World) []*physics.Body {
	half := l.Extent / 2
	bodies := make([]*physics.Body, 0, len(l.Buildings)+1)
	bodies = append(bodies, w.AddBody(physics.BodyOptions{
		Shape:    physics.Box(half+50, groundThickness/2, half+50),
		Position: mgl64.Vec3{0, -groundThickness / 2, 0},
		Category: core.CategoryGround,
		Owner:    "ground",
		Friction: groundFriction,
	}))
	for _, b := range l.Buildings {
		he := b.HalfExtents
		bodies = append(bodies, w.AddBody(physics.BodyOptions{
			Shape:    physics.Box(he.X(), he.Y(), he.Z()),
			Position: b.Center.Add(mgl64.Vec3{0, he.Y(), 0}),
			Category: core.CategoryStatic,
			Owner:    b.ID,
			Friction: groundFriction,
		}))
	}
	return bodies
}
