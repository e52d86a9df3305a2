package physics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel/metric"
)

// Config holds the world tuning.
type Config struct {
	Gravity          mgl64.Vec3
	FixedStep        float64 // seconds per sub-step
	MaxSubSteps      int
	SolverIterations int
	SleepSpeed       float64 // m/s below which a body starts to fall asleep
	SleepTime        float64 // seconds below SleepSpeed before sleeping
}

// DefaultConfig returns a 60 Hz world with earth gravity.
func DefaultConfig() Config {
	return Config{
		Gravity:          mgl64.Vec3{0, -9.82, 0},
		FixedStep:        1.0 / 60.0,
		MaxSubSteps:      5,
		SolverIterations: 10,
		SleepSpeed:       0.1,
		SleepTime:        1,
	}
}

// CollisionEvent is delivered once when two bodies start touching. Normal
// points from Other towards Self.
type CollisionEvent struct {
	Self   *Body
	Other  *Body
	Point  mgl64.Vec3
	Normal mgl64.Vec3
}

// CollisionFunc handles collision-begin events.
type CollisionFunc func(CollisionEvent)

// Action is updated once per sub-step before integration, the hook used by
// vehicles and characters to apply their forces.
type Action interface {
	UpdateAction(w *World, dt float64)
}

// World owns every rigid body and advances them with a fixed time step.
// It is not safe for concurrent use; all calls happen on the tick thread.
type World struct {
	cfg    Config
	logger *slog.Logger

	nextID  BodyID
	bodies  map[BodyID]*Body
	order   []*Body
	actions []Action

	listeners map[BodyID][]CollisionFunc
	global    []CollisionFunc

	contacts  []Contact
	active    map[pairKey]struct{}
	byBody    map[BodyID][]Contact
	scratch   []*Body
	pairs     []pair
	accum     float64
	stepCount uint64

	steps      metric.Int64Counter
	degenerate metric.Int64Counter
}

// NewWorld creates an empty world. Metrics use the global OTel meter.
func NewWorld(cfg Config, logger *slog.Logger) (*World, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.FixedStep <= 0 {
		cfg.FixedStep = DefaultConfig().FixedStep
	}
	if cfg.MaxSubSteps <= 0 {
		cfg.MaxSubSteps = 1
	}
	if cfg.SolverIterations <= 0 {
		cfg.SolverIterations = 1
	}
	w := &World{
		cfg:       cfg,
		logger:    logger,
		bodies:    make(map[BodyID]*Body),
		listeners: make(map[BodyID][]CollisionFunc),
		active:    make(map[pairKey]struct{}),
		byBody:    make(map[BodyID][]Contact),
	}

	m := meter()
	var err error
	w.steps, err = m.Int64Counter(
		"physics.steps",
		metric.WithDescription("Total fixed sub-steps simulated"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating steps counter: %w", err)
	}
	w.degenerate, err = m.Int64Counter(
		"physics.bodies.degenerate",
		metric.WithDescription("Bodies reset after a non-finite state"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating degenerate counter: %w", err)
	}
	return w, nil
}

func (w *World) Config() Config { return w.cfg }

// StepCount is the number of sub-steps simulated so far.
func (w *World) StepCount() uint64 { return w.stepCount }

// AddBody creates a body and returns it.
func (w *World) AddBody(opts BodyOptions) *Body {
	w.nextID++
	b := newBody(w.nextID, opts)
	b.updateBounds()
	w.bodies[b.ID] = b
	w.order = append(w.order, b)
	return b
}

// RemoveBody deletes a body with its listeners. Unknown ids are ignored.
func (w *World) RemoveBody(id BodyID) {
	if _, ok := w.bodies[id]; !ok {
		return
	}
	delete(w.bodies, id)
	delete(w.listeners, id)
	delete(w.byBody, id)
	for i, b := range w.order {
		if b.ID == id {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
	for k := range w.active {
		if k.lo == id || k.hi == id {
			delete(w.active, k)
		}
	}
}

// Body looks a body up by id.
func (w *World) Body(id BodyID) (*Body, bool) {
	b, ok := w.bodies[id]
	return b, ok
}

// Bodies returns all bodies in creation order.
func (w *World) Bodies() []*Body {
	return w.order
}

func (w *World) AddAction(a Action) {
	w.actions = append(w.actions, a)
}

func (w *World) RemoveAction(a Action) {
	for i, x := range w.actions {
		if x == a {
			w.actions = append(w.actions[:i], w.actions[i+1:]...)
			return
		}
	}
}

// OnCollisionBegin registers fn for collision-begin events of one body.
func (w *World) OnCollisionBegin(id BodyID, fn CollisionFunc) {
	w.listeners[id] = append(w.listeners[id], fn)
}

// OnAnyCollisionBegin registers fn for every collision-begin event. It is
// called once per body of the pair.
func (w *World) OnAnyCollisionBegin(fn CollisionFunc) {
	w.global = append(w.global, fn)
}

// ContactsOf returns the contacts of the last step involving the body.
func (w *World) ContactsOf(id BodyID) []Contact {
	return w.byBody[id]
}

// Teleport moves a body, zeroing its velocity.
func (w *World) Teleport(id BodyID, pos mgl64.Vec3, rot mgl64.Quat) {
	b, ok := w.bodies[id]
	if !ok {
		return
	}
	b.Position = pos
	b.Orientation = rot.Normalize()
	b.prevPosition = pos
	b.prevOrientation = b.Orientation
	b.LinearVelocity = mgl64.Vec3{}
	b.AngularVelocity = mgl64.Vec3{}
	b.Wake()
	b.updateBounds()
}

// Deactivate removes the body from simulation, raycasts and collisions
// without deleting it.
func (w *World) Deactivate(id BodyID) {
	b, ok := w.bodies[id]
	if !ok {
		return
	}
	b.disabled = true
	b.sleeping = true
	b.LinearVelocity = mgl64.Vec3{}
	b.AngularVelocity = mgl64.Vec3{}
	delete(w.byBody, id)
	for k := range w.active {
		if k.lo == id || k.hi == id {
			delete(w.active, k)
		}
	}
}

// Activate re-enables a deactivated body and wakes it.
func (w *World) Activate(id BodyID) {
	b, ok := w.bodies[id]
	if !ok {
		return
	}
	b.disabled = false
	b.Wake()
	b.updateBounds()
}

// Advance consumes a variable frame delta in fixed sub-steps, running at
// most MaxSubSteps. Time beyond that is dropped so a slow frame cannot
// spiral. It returns the number of sub-steps run.
func (w *World) Advance(frameDelta float64) int {
	if frameDelta <= 0 || math.IsNaN(frameDelta) {
		return 0
	}
	w.accum += frameDelta
	n := 0
	for w.accum >= w.cfg.FixedStep && n < w.cfg.MaxSubSteps {
		w.Step(w.cfg.FixedStep)
		w.accum -= w.cfg.FixedStep
		n++
	}
	if w.accum >= w.cfg.FixedStep {
		w.logger.Debug("dropping simulation time", "seconds", w.accum)
		w.accum = 0
	}
	return n
}

// Step advances the simulation by exactly one sub-step of dt seconds.
func (w *World) Step(dt float64) {
	for _, a := range w.actions {
		a.UpdateAction(w, dt)
	}

	live := w.scratch[:0]
	for _, b := range w.order {
		if b.disabled {
			continue
		}
		b.prevPosition = b.Position
		b.prevOrientation = b.Orientation
		if !b.IsStatic() {
			// controllers may have moved the body since the last step
			b.updateBounds()
			if !b.sleeping {
				b.integrateVelocity(w.cfg.Gravity, dt)
			}
		}
		live = append(live, b)
	}
	w.scratch = live

	w.pairs = sweepAndPrune(live, w.pairs[:0])
	w.contacts = w.contacts[:0]
	for _, p := range w.pairs {
		w.contacts = collide(p.a, p.b, w.contacts)
	}
	w.wakeTouched()

	prepareContacts(w.contacts)
	for i := 0; i < w.cfg.SolverIterations; i++ {
		solveContacts(w.contacts, dt)
	}

	for _, b := range w.order {
		if b.disabled {
			continue
		}
		if !b.IsStatic() && !b.sleeping {
			b.integratePosition(dt)
			w.guard(b)
			w.updateSleep(b, dt)
		}
		b.clearForces()
		b.updateBounds()
	}

	w.stepCount++
	w.steps.Add(context.Background(), 1)
	w.emitEvents()
}

// guard resets bodies whose state became non-finite.
func (w *World) guard(b *Body) {
	if !b.degenerate() {
		return
	}
	w.logger.Warn("resetting degenerate body",
		"body", b.ID, "owner", b.Owner, "category", b.Category.String())
	b.Position = b.prevPosition
	b.Orientation = b.prevOrientation
	if !finiteQuat(b.Orientation) {
		b.Orientation = mgl64.QuatIdent()
	}
	b.LinearVelocity = mgl64.Vec3{}
	b.AngularVelocity = mgl64.Vec3{}
	w.degenerate.Add(context.Background(), 1)
}

func (w *World) updateSleep(b *Body, dt float64) {
	if !b.AllowSleep {
		return
	}
	limit := w.cfg.SleepSpeed * w.cfg.SleepSpeed
	if b.LinearVelocity.LenSqr() < limit && b.AngularVelocity.LenSqr() < limit {
		b.sleepTimer += dt
		if b.sleepTimer >= w.cfg.SleepTime {
			b.sleeping = true
			b.LinearVelocity = mgl64.Vec3{}
			b.AngularVelocity = mgl64.Vec3{}
		}
		return
	}
	b.sleepTimer = 0
}

// wakeTouched wakes sleeping bodies hit by a moving one.
func (w *World) wakeTouched() {
	limit := w.cfg.SleepSpeed * w.cfg.SleepSpeed
	for i := range w.contacts {
		c := &w.contacts[i]
		if c.A.sleeping && !c.B.IsStatic() && c.B.LinearVelocity.LenSqr() > limit {
			c.A.Wake()
		}
		if c.B.sleeping && !c.A.IsStatic() && c.A.LinearVelocity.LenSqr() > limit {
			c.B.Wake()
		}
	}
}

// emitEvents diffs the touching pairs against the previous step and
// delivers collision-begin events synchronously.
func (w *World) emitEvents() {
	for id := range w.byBody {
		delete(w.byBody, id)
	}
	current := make(map[pairKey]int, len(w.contacts))
	for i, c := range w.contacts {
		k := keyOf(c.A.ID, c.B.ID)
		if _, seen := current[k]; !seen {
			current[k] = i
		}
		w.byBody[c.A.ID] = append(w.byBody[c.A.ID], c)
		w.byBody[c.B.ID] = append(w.byBody[c.B.ID], c)
	}

	var began []pairKey
	for k := range current {
		if _, was := w.active[k]; !was {
			began = append(began, k)
		}
	}
	sort.Slice(began, func(i, j int) bool {
		if began[i].lo != began[j].lo {
			return began[i].lo < began[j].lo
		}
		return began[i].hi < began[j].hi
	})

	events := make([]CollisionEvent, 0, 2*len(began))
	for _, k := range began {
		c := w.contacts[current[k]]
		events = append(events,
			CollisionEvent{Self: c.B, Other: c.A, Point: c.Point, Normal: c.Normal},
			CollisionEvent{Self: c.A, Other: c.B, Point: c.Point, Normal: c.Normal.Mul(-1)},
		)
	}
	w.active = make(map[pairKey]struct{}, len(current))
	for k := range current {
		w.active[k] = struct{}{}
	}

	for _, ev := range events {
		for _, fn := range w.listeners[ev.Self.ID] {
			fn(ev)
		}
		for _, fn := range w.global {
			fn(ev)
		}
	}
}
