package mission

import (
	"github.com/opencity/sandbox/pkg/core"
)

// Behavior is the mission-specific part of the lifecycle. Implementations
// are a closed set of variants; missions without special rules leave it nil.
type Behavior interface {
	Kind() string
	OnActivate(e *Engine, m *Mission)
	OnTick(e *Engine, m *Mission, dt float64)
	OnObjectiveComplete(e *Engine, m *Mission, o *Objective)
}

// Completer lets a behavior take over mission completion. It must call
// Engine.Succeed or Engine.Fail itself.
type Completer interface {
	Complete(e *Engine, m *Mission)
}

// Delivery hands the player a package at the pickup and takes it back at the
// destination. Finishing within half the time limit pays Tip.
type Delivery struct {
	Item string
	Tip  int
}

func (d *Delivery) Kind() string { return "delivery" }

func (d *Delivery) OnActivate(e *Engine, m *Mission) {}

func (d *Delivery) OnTick(e *Engine, m *Mission, dt float64) {}

func (d *Delivery) OnObjectiveComplete(e *Engine, m *Mission, o *Objective) {
	if e.deps.Economy == nil || d.Item == "" {
		return
	}
	switch {
	case o.Type == ObjectivePickup:
		e.deps.Economy.AddItem(d.Item, 1)
	case o.looksLikeDestination():
		e.deps.Economy.RemoveItem(d.Item, 1)
	}
}

func (d *Delivery) Complete(e *Engine, m *Mission) {
	if d.Tip > 0 && m.TimeLimit > 0 && m.Elapsed <= m.TimeLimit/2 && e.deps.Economy != nil {
		e.deps.Economy.AddMoney(d.Tip)
	}
	e.Succeed()
}

// Collection grants the item of every pickup; collect objectives then
// complete from the inventory.
type Collection struct{}

func (c *Collection) Kind() string { return "collection" }

func (c *Collection) OnActivate(e *Engine, m *Mission) {}

func (c *Collection) OnTick(e *Engine, m *Mission, dt float64) {}

func (c *Collection) OnObjectiveComplete(e *Engine, m *Mission, o *Objective) {
	if o.Type == ObjectivePickup && o.Item != "" && e.deps.Economy != nil {
		e.deps.Economy.AddItem(o.Item, 1)
	}
}

// Chase completes kill objectives once the target is destroyed and fails
// the mission if the player falls more than LoseDistance behind.
type Chase struct {
	Target       core.EntityID
	LoseDistance float64
}

func (c *Chase) Kind() string { return "chase" }

func (c *Chase) OnActivate(e *Engine, m *Mission) {}

func (c *Chase) OnTick(e *Engine, m *Mission, dt float64) {
	t := e.deps.Targets
	if t == nil || c.Target == "" {
		return
	}
	if t.Destroyed(c.Target) {
		for _, o := range m.Objectives {
			if o.Type == ObjectiveKill && (o.Target == "" || o.Target == c.Target) {
				e.CompleteObjective(o.ID)
			}
		}
		return
	}
	if c.LoseDistance <= 0 || e.deps.Player == nil {
		return
	}
	if pos, ok := t.Position(c.Target); ok && pos.Sub(e.deps.Player.Position()).Len() > c.LoseDistance {
		e.Fail("Target got away")
	}
}

func (c *Chase) OnObjectiveComplete(e *Engine, m *Mission, o *Objective) {}

// Escape raises the wanted level on activation and clears that heat once the
// player gets away.
type Escape struct {
	Heat int
}

func (s *Escape) Kind() string { return "escape" }

func (s *Escape) OnActivate(e *Engine, m *Mission) {
	if e.deps.Economy != nil {
		e.deps.Economy.AdjustWanted(s.Heat)
	}
}

func (s *Escape) OnTick(e *Engine, m *Mission, dt float64) {}

func (s *Escape) OnObjectiveComplete(e *Engine, m *Mission, o *Objective) {
	if o.Type == ObjectiveEscape && e.deps.Economy != nil {
		e.deps.Economy.AdjustWanted(-s.Heat)
	}
}

// Survival holds the wanted level at Level until the survive objectives are
// done.
type Survival struct {
	Level int
}

func (s *Survival) Kind() string { return "survival" }

func (s *Survival) OnActivate(e *Engine, m *Mission) {
	s.hold(e)
}

func (s *Survival) OnTick(e *Engine, m *Mission, dt float64) {
	for _, o := range m.Objectives {
		if o.Type == ObjectiveSurvive && !o.Completed {
			s.hold(e)
			return
		}
	}
}

func (s *Survival) OnObjectiveComplete(e *Engine, m *Mission, o *Objective) {
	if o.Type == ObjectiveSurvive && e.deps.Economy != nil {
		e.deps.Economy.AdjustWanted(-e.deps.Economy.Wanted())
	}
}

func (s *Survival) hold(e *Engine) {
	if eco := e.deps.Economy; eco != nil && eco.Wanted() < s.Level {
		eco.AdjustWanted(s.Level - eco.Wanted())
	}
}
