package physics

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencity/sandbox/pkg/core"
)

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := NewWorld(DefaultConfig(), nil)
	require.NoError(t, err)
	return w
}

func addGround(w *World) *Body {
	return w.AddBody(BodyOptions{
		Shape:    Box(50, 0.5, 50),
		Position: mgl64.Vec3{0, -0.5, 0},
		Category: core.CategoryGround,
		Friction: 0.5,
	})
}

func stepN(w *World, n int) {
	for i := 0; i < n; i++ {
		w.Step(w.Config().FixedStep)
	}
}

func TestWorld_StaticBodyNeverMoves(t *testing.T) {
	w := newTestWorld(t)
	ground := addGround(w)

	stepN(w, 60)

	assert.Equal(t, mgl64.Vec3{0, -0.5, 0}, ground.Position)
	assert.True(t, ground.IsStatic())
}

func TestWorld_SphereRestsOnGround(t *testing.T) {
	w := newTestWorld(t)
	addGround(w)
	ball := w.AddBody(BodyOptions{Shape: Sphere(0.5), Mass: 1, Position: mgl64.Vec3{0, 1, 0}, Friction: 0.5})

	stepN(w, 240)

	assert.InDelta(t, 0.5, ball.Position.Y(), 0.05)
	assert.Less(t, ball.Speed(), 0.2)
}

func TestWorld_BoxRestsOnGround(t *testing.T) {
	w := newTestWorld(t)
	addGround(w)
	crate := w.AddBody(BodyOptions{Shape: Box(0.5, 0.5, 0.5), Mass: 10, Position: mgl64.Vec3{0, 0.6, 0}, Friction: 0.5})

	stepN(w, 240)

	assert.InDelta(t, 0.5, crate.Position.Y(), 0.05)
	assert.InDelta(t, 0, crate.Position.X(), 0.05)
}

func TestWorld_CapsuleRestsOnGround(t *testing.T) {
	w := newTestWorld(t)
	addGround(w)
	body := w.AddBody(BodyOptions{
		Shape:         Capsule(0.4, 0.5),
		Mass:          70,
		Position:      mgl64.Vec3{0, 1, 0},
		FixedRotation: true,
	})

	stepN(w, 240)

	assert.InDelta(t, 0.9, body.Position.Y(), 0.05)
}

func TestWorld_CollisionBeginFiresOnce(t *testing.T) {
	w := newTestWorld(t)
	ground := addGround(w)
	ball := w.AddBody(BodyOptions{Shape: Sphere(0.5), Mass: 1, Position: mgl64.Vec3{0, 0.7, 0}})

	var events []CollisionEvent
	w.OnCollisionBegin(ball.ID, func(ev CollisionEvent) {
		events = append(events, ev)
	})
	var global int
	w.OnAnyCollisionBegin(func(CollisionEvent) { global++ })

	stepN(w, 120)

	require.Len(t, events, 1)
	assert.Equal(t, ground.ID, events[0].Other.ID)
	assert.Greater(t, events[0].Normal.Y(), 0.5)
	assert.Equal(t, 2, global, "one event per body of the pair")
	assert.NotEmpty(t, w.ContactsOf(ball.ID))
}

func TestWorld_AdvanceUsesFixedSubSteps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FixedStep = 0.25
	cfg.MaxSubSteps = 3
	w, err := NewWorld(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, w.Advance(0.125))
	assert.Equal(t, 1, w.Advance(0.125))
	assert.Equal(t, 2, w.Advance(0.5))
	assert.Equal(t, 3, w.Advance(10), "clamped to MaxSubSteps")
	assert.Equal(t, 0, w.Advance(0.125), "excess time was dropped")
	assert.Equal(t, uint64(6), w.StepCount())
}

func TestWorld_RaycastHitsClosestBox(t *testing.T) {
	w := newTestWorld(t)
	near := w.AddBody(BodyOptions{Shape: Box(1, 1, 1), Position: mgl64.Vec3{5, 0, 0}})
	w.AddBody(BodyOptions{Shape: Box(1, 1, 1), Position: mgl64.Vec3{10, 0, 0}})

	res := w.Raycast(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 100, nil)

	require.True(t, res.Hit)
	assert.Equal(t, near.ID, res.Body.ID)
	assert.InDelta(t, 4, res.Distance, 1e-9)
	assert.InDelta(t, -1, res.Normal.X(), 1e-9)
	assert.InDelta(t, 4, res.Point.X(), 1e-9)
}

func TestWorld_RaycastRespectsMaxDistance(t *testing.T) {
	w := newTestWorld(t)
	w.AddBody(BodyOptions{Shape: Box(1, 1, 1), Position: mgl64.Vec3{5, 0, 0}})

	res := w.Raycast(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 3, nil)

	assert.False(t, res.Hit)
}

func TestWorld_RaycastCapsuleAndSphere(t *testing.T) {
	w := newTestWorld(t)
	capsule := w.AddBody(BodyOptions{Shape: Capsule(0.5, 0.5), Position: mgl64.Vec3{0, 1, 0}})
	ball := w.AddBody(BodyOptions{Shape: Sphere(1), Position: mgl64.Vec3{0, 10, 0}})

	res := w.Raycast(mgl64.Vec3{0, 1, -5}, mgl64.Vec3{0, 0, 1}, 10, nil)
	require.True(t, res.Hit)
	assert.Equal(t, capsule.ID, res.Body.ID)
	assert.InDelta(t, 4.5, res.Distance, 1e-9)
	assert.InDelta(t, -1, res.Normal.Z(), 1e-9)

	res = w.Raycast(mgl64.Vec3{0, 1.75, 0}, mgl64.Vec3{0, 1, 0}, 20, Exclude(capsule.ID))
	require.True(t, res.Hit)
	assert.Equal(t, ball.ID, res.Body.ID)
	assert.InDelta(t, 7.25, res.Distance, 1e-9)
}

func TestWorld_RaycastSkipsFilteredSensorsAndDisabled(t *testing.T) {
	w := newTestWorld(t)
	a := w.AddBody(BodyOptions{Shape: Box(1, 1, 1), Position: mgl64.Vec3{3, 0, 0}})
	w.AddBody(BodyOptions{Shape: Box(1, 1, 1), Position: mgl64.Vec3{6, 0, 0}, Sensor: true})
	b := w.AddBody(BodyOptions{Shape: Box(1, 1, 1), Position: mgl64.Vec3{9, 0, 0}, Mass: 1})
	far := w.AddBody(BodyOptions{Shape: Box(1, 1, 1), Position: mgl64.Vec3{12, 0, 0}})

	w.Deactivate(b.ID)
	res := w.Raycast(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 100, Exclude(a.ID))

	require.True(t, res.Hit)
	assert.Equal(t, far.ID, res.Body.ID)

	w.Activate(b.ID)
	res = w.Raycast(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 100, Exclude(a.ID))
	assert.Equal(t, b.ID, res.Body.ID)
}

func TestWorld_DeactivatedBodyDoesNotMove(t *testing.T) {
	w := newTestWorld(t)
	b := w.AddBody(BodyOptions{Shape: Sphere(0.5), Mass: 1, Position: mgl64.Vec3{0, 5, 0}})

	w.Deactivate(b.ID)
	stepN(w, 30)

	assert.Equal(t, mgl64.Vec3{0, 5, 0}, b.Position)
	assert.False(t, b.Enabled())
}

func TestWorld_DegenerateBodyIsReset(t *testing.T) {
	w := newTestWorld(t)
	b := w.AddBody(BodyOptions{Shape: Sphere(0.5), Mass: 1, Position: mgl64.Vec3{0, 5, 0}})
	b.LinearVelocity = mgl64.Vec3{math.NaN(), 0, 0}

	w.Step(w.Config().FixedStep)

	assert.Equal(t, mgl64.Vec3{0, 5, 0}, b.Position)
	assert.Equal(t, mgl64.Vec3{}, b.LinearVelocity)
	assert.True(t, finiteQuat(b.Orientation))
}

func TestWorld_BodyFallsAsleepAtRest(t *testing.T) {
	w := newTestWorld(t)
	addGround(w)
	b := w.AddBody(BodyOptions{Shape: Box(0.5, 0.5, 0.5), Mass: 1, Position: mgl64.Vec3{0, 0.5, 0}, AllowSleep: true, Friction: 0.5})

	stepN(w, 300)
	assert.True(t, b.Sleeping())

	b.ApplyImpulse(mgl64.Vec3{0, 5, 0})
	assert.False(t, b.Sleeping())
}

func TestWorld_TeleportZeroesVelocity(t *testing.T) {
	w := newTestWorld(t)
	b := w.AddBody(BodyOptions{Shape: Sphere(0.5), Mass: 1})
	b.SetVelocity(mgl64.Vec3{3, 0, 0})

	w.Teleport(b.ID, mgl64.Vec3{10, 2, 0}, mgl64.QuatIdent())

	assert.Equal(t, mgl64.Vec3{10, 2, 0}, b.Position)
	assert.Equal(t, mgl64.Vec3{}, b.LinearVelocity)
}

func TestWorld_RemoveBody(t *testing.T) {
	w := newTestWorld(t)
	b := w.AddBody(BodyOptions{Shape: Sphere(0.5), Mass: 1})
	w.OnCollisionBegin(b.ID, func(CollisionEvent) {})

	w.RemoveBody(b.ID)

	_, ok := w.Body(b.ID)
	assert.False(t, ok)
	assert.Empty(t, w.Bodies())
	w.RemoveBody(b.ID)
}

type countingAction struct{ calls int }

func (a *countingAction) UpdateAction(*World, float64) { a.calls++ }

func TestWorld_ActionsRunEverySubStep(t *testing.T) {
	w := newTestWorld(t)
	a := &countingAction{}
	w.AddAction(a)

	steps := w.Advance(3.5 * w.Config().FixedStep)
	assert.Equal(t, 3, steps)
	assert.Equal(t, 3, a.calls)

	w.RemoveAction(a)
	stepN(w, 2)
	assert.Equal(t, 3, a.calls)
}
