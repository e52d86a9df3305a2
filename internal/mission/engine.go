package mission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/opencity/sandbox/pkg/core"
)

var (
	ErrMissionActive  = errors.New("another mission is active")
	ErrUnknownMission = errors.New("unknown mission")
	ErrNotStartable   = errors.New("mission already played")
)

// PlayerView is the read-only player state missions evaluate. Position is
// the vehicle position while driving.
type PlayerView interface {
	Position() mgl64.Vec3
	Driving() bool
	Health() float64
}

// Economy receives rewards and answers inventory questions.
type Economy interface {
	AddMoney(amount int) int
	AddItem(name string, count int)
	RemoveItem(name string, count int) bool
	ItemCount(name string) int
	AdjustWanted(delta int) int
	Wanted() int
}

type Notifier interface {
	Notify(core.Notification)
}

// Targets resolves entities referenced by chase missions.
type Targets interface {
	Position(id core.EntityID) (mgl64.Vec3, bool)
	Destroyed(id core.EntityID) bool
}

// Dependencies holds the engine's collaborators. Only Player is required.
type Dependencies struct {
	Player   PlayerView
	Economy  Economy
	Notifier Notifier
	Targets  Targets
	// Catalog builds fresh missions on creation and on Reset.
	Catalog func() []*Mission
	// Context, when set, mirrors the active mission for other goroutines.
	Context *Context
	Logger  *slog.Logger
}

// Engine owns every registered mission and the single active one.
type Engine struct {
	deps      Dependencies
	logger    *slog.Logger
	missions  []*Mission
	byID      map[string]*Mission
	active    *Mission
	completed []string
	listeners []func(*Mission)

	transitions metric.Int64Counter
}

func NewEngine(deps Dependencies) (*Engine, error) {
	if deps.Player == nil {
		return nil, errors.New("mission engine requires a player view")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{deps: deps, logger: logger}

	var err error
	e.transitions, err = meter().Int64Counter(
		"mission.transitions",
		metric.WithDescription("Mission status transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}

	if err := e.Reset(); err != nil {
		return nil, err
	}
	return e, nil
}

// Reset discards all mission state and recreates the catalog.
func (e *Engine) Reset() error {
	if e.active != nil {
		e.active.clearCheckpoints()
	}
	e.missions = nil
	e.byID = make(map[string]*Mission)
	e.active = nil
	e.completed = nil
	if e.deps.Catalog != nil {
		for _, m := range e.deps.Catalog() {
			if err := e.Register(m); err != nil {
				return err
			}
		}
	}
	e.publish()
	return nil
}

// Register adds a mission in the inactive state.
func (e *Engine) Register(m *Mission) error {
	if m == nil || m.ID == "" {
		return errors.New("mission requires an id")
	}
	if _, dup := e.byID[m.ID]; dup {
		return fmt.Errorf("mission %s already registered", m.ID)
	}
	m.Status = StatusInactive
	m.Reason = ""
	m.Elapsed = 0
	e.missions = append(e.missions, m)
	e.byID[m.ID] = m
	return nil
}

// OnTransition registers fn to run after a mission completes or fails.
func (e *Engine) OnTransition(fn func(*Mission)) {
	e.listeners = append(e.listeners, fn)
}

func (e *Engine) Missions() []*Mission { return e.missions }

func (e *Engine) Mission(id string) (*Mission, bool) {
	m, ok := e.byID[id]
	return m, ok
}

// Active returns the active mission or nil.
func (e *Engine) Active() *Mission { return e.active }

// Completed lists completed mission ids in completion order.
func (e *Engine) Completed() []string { return slices.Clone(e.completed) }

// Available lists missions that can still be started.
func (e *Engine) Available() []*Mission {
	var out []*Mission
	for _, m := range e.missions {
		if m.Status == StatusInactive {
			out = append(out, m)
		}
	}
	return out
}

// Checkpoints returns the untriggered checkpoints of the active mission.
func (e *Engine) Checkpoints() []Checkpoint {
	if e.active == nil {
		return nil
	}
	var out []Checkpoint
	for _, c := range e.active.Checkpoints {
		if c.Active && !c.Triggered {
			out = append(out, *c)
		}
	}
	return out
}

// StartMission activates an inactive mission.
func (e *Engine) StartMission(id string) error {
	m, ok := e.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMission, id)
	}
	if e.active != nil {
		e.logger.Info("mission start rejected", "mission", id, "active", e.active.ID)
		return fmt.Errorf("%w: %s", ErrMissionActive, e.active.ID)
	}
	if m.Status != StatusInactive {
		return fmt.Errorf("%w: %s is %s", ErrNotStartable, id, m.Status)
	}

	m.Status = StatusActive
	m.Reason = ""
	m.Elapsed = 0
	m.EnteredVehicle = false
	m.Origin = e.deps.Player.Position()
	m.resetObjectives()
	m.buildCheckpoints()
	e.active = m
	if m.Behavior != nil {
		m.Behavior.OnActivate(e, m)
	}
	e.transition(m)
	e.logger.Info("mission started", "mission", m.ID, "timeLimit", m.TimeLimit)
	return nil
}

// CompleteObjective marks an objective of the active mission completed. It
// returns false for unknown or already completed objectives.
func (e *Engine) CompleteObjective(id string) bool {
	m := e.active
	if m == nil {
		return false
	}
	o := m.Objective(id)
	if o == nil {
		e.logger.Debug("unknown objective", "mission", m.ID, "objective", id)
		return false
	}
	if o.Completed {
		return false
	}
	o.Completed = true
	for _, c := range m.Checkpoints {
		if c.ObjectiveID == o.ID {
			c.Active = false
		}
	}
	e.notify(core.Notification{Kind: core.NotifyObjective, MissionID: m.ID, Objective: o.ID, Message: o.Description})
	if o.Reward != nil {
		e.pay(*o.Reward)
	}
	if m.Behavior != nil {
		m.Behavior.OnObjectiveComplete(e, m, o)
	}
	if e.active == m && m.IsComplete() {
		if c, ok := m.Behavior.(Completer); ok {
			c.Complete(e, m)
		} else {
			e.Succeed()
		}
	}
	e.publish()
	return true
}

// IsComplete reports whether the active mission has every required
// objective done.
func (e *Engine) IsComplete() bool {
	return e.active != nil && e.active.IsComplete()
}

// Succeed completes the active mission and pays its reward.
func (e *Engine) Succeed() bool {
	m := e.active
	if m == nil {
		return false
	}
	m.Status = StatusCompleted
	m.clearCheckpoints()
	e.active = nil
	e.completed = append(e.completed, m.ID)
	e.pay(m.Reward)
	e.transition(m)
	e.logger.Info("mission completed", "mission", m.ID, "elapsed", m.Elapsed)
	return true
}

// Fail ends the active mission without reward. Completed objectives stay
// completed.
func (e *Engine) Fail(reason string) bool {
	m := e.active
	if m == nil {
		return false
	}
	m.Status = StatusFailed
	m.Reason = reason
	m.clearCheckpoints()
	e.active = nil
	e.transition(m)
	e.logger.Info("mission failed", "mission", m.ID, "reason", reason)
	return true
}

// Abort fails the active mission on request.
func (e *Engine) Abort() bool {
	return e.Fail(ReasonAborted)
}

// Update advances the active mission by dt seconds. It must run after the
// physics step so positions are current.
func (e *Engine) Update(dt float64) {
	m := e.active
	if m == nil {
		return
	}
	defer e.publish()

	m.Elapsed += dt
	player := e.deps.Player
	if player.Driving() {
		m.EnteredVehicle = true
	}

	pos := player.Position()
	for _, c := range m.Checkpoints {
		if !c.Active || c.Triggered || !c.Contains(pos) {
			continue
		}
		if c.ObjectiveID != "" {
			if o := m.Objective(c.ObjectiveID); o != nil && !m.armed(o) {
				continue
			}
		}
		e.trigger(m, c)
		if e.active != m {
			return
		}
	}

	if m.TimeLimit > 0 && m.Elapsed >= m.TimeLimit {
		e.Fail(ReasonTimeExpired)
		return
	}

	for _, o := range m.Objectives {
		if o.Optional || !m.armed(o) || !e.satisfied(m, o) {
			continue
		}
		e.CompleteObjective(o.ID)
		if e.active != m {
			return
		}
	}

	// armed once the player has driven during the mission
	if m.Props.RequiresVehicle && m.EnteredVehicle && !player.Driving() {
		e.Fail(ReasonLeftVehicle)
		return
	}
	if player.Health() <= 0 {
		e.Fail(ReasonDied)
		return
	}
	if m.Behavior != nil {
		m.Behavior.OnTick(e, m, dt)
	}
}

func (e *Engine) trigger(m *Mission, c *Checkpoint) {
	c.Triggered = true
	c.Active = false
	e.notify(core.Notification{Kind: core.NotifyCheckpointFired, MissionID: m.ID, Objective: c.ObjectiveID, Message: c.ID})
	if c.ObjectiveID != "" {
		e.CompleteObjective(c.ObjectiveID)
		return
	}
	if m.IsComplete() {
		e.Succeed()
	}
}

// satisfied evaluates the automatic condition of an objective type.
func (e *Engine) satisfied(m *Mission, o *Objective) bool {
	switch o.Type {
	case ObjectiveCollect:
		if e.deps.Economy == nil || o.Item == "" {
			return false
		}
		return e.deps.Economy.ItemCount(o.Item) >= max(1, o.Count)
	case ObjectiveEscape:
		return o.Distance > 0 && e.deps.Player.Position().Sub(m.Origin).Len() >= o.Distance
	case ObjectiveSurvive:
		return o.Duration > 0 && m.Elapsed >= o.Duration
	case ObjectiveVehicle:
		return e.deps.Player.Driving()
	}
	return false
}

func (e *Engine) pay(r Reward) {
	eco := e.deps.Economy
	if eco == nil || r.empty() {
		return
	}
	if r.Money != 0 {
		eco.AddMoney(r.Money)
	}
	for _, item := range r.Items {
		eco.AddItem(item, 1)
	}
	if r.Wanted != 0 {
		eco.AdjustWanted(r.Wanted)
	}
}

func (e *Engine) notify(n core.Notification) {
	if e.deps.Notifier != nil {
		e.deps.Notifier.Notify(n)
	}
}

func (e *Engine) transition(m *Mission) {
	e.transitions.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("status", string(m.Status))))
	e.notify(core.Notification{Kind: core.NotifyMissionStatus, MissionID: m.ID, Status: string(m.Status), Reason: m.Reason})
	if m.Status.Terminal() {
		for _, fn := range e.listeners {
			fn(m)
		}
	}
	e.publish()
}

func (e *Engine) publish() {
	if e.deps.Context != nil {
		e.deps.Context.set(summarize(e.active))
	}
}

// Snapshot captures the persisted mission state.
func (e *Engine) Snapshot() core.MissionSnapshot {
	s := core.MissionSnapshot{
		Completed: slices.Clone(e.completed),
	}
	// a failed mission keeps only its status flag
	for _, m := range e.missions {
		if m.Status == StatusFailed {
			s.Failed = append(s.Failed, m.ID)
		}
	}
	if m := e.active; m != nil {
		s.ActiveID = m.ID
		s.Elapsed = m.Elapsed
		s.EnteredVehicle = m.EnteredVehicle
		s.Origin = m.Origin
		s.Objectives = make(map[string]bool, len(m.Objectives))
		for _, o := range m.Objectives {
			s.Objectives[o.ID] = o.Completed
		}
	}
	return s
}

// Restore recreates the catalog and applies s. The active mission resumes
// without re-running its start hook; checkpoints are rebuilt for the
// objectives still incomplete.
func (e *Engine) Restore(s core.MissionSnapshot) error {
	if err := e.Reset(); err != nil {
		return err
	}
	for _, id := range s.Completed {
		if m, ok := e.byID[id]; ok {
			m.Status = StatusCompleted
			e.completed = append(e.completed, id)
		}
	}
	for _, id := range s.Failed {
		if m, ok := e.byID[id]; ok {
			m.Status = StatusFailed
		}
	}
	if s.ActiveID == "" {
		e.publish()
		return nil
	}
	m, ok := e.byID[s.ActiveID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMission, s.ActiveID)
	}
	m.Status = StatusActive
	m.Elapsed = s.Elapsed
	m.EnteredVehicle = s.EnteredVehicle
	m.Origin = s.Origin
	for _, o := range m.Objectives {
		o.Completed = s.Objectives[o.ID]
	}
	m.buildCheckpoints()
	e.active = m
	e.publish()
	return nil
}
