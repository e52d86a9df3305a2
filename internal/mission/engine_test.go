package mission

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencity/sandbox/internal/economy"
	"github.com/opencity/sandbox/pkg/core"
)

type fakePlayer struct {
	pos     mgl64.Vec3
	driving bool
	health  float64
}

func (p *fakePlayer) Position() mgl64.Vec3 { return p.pos }
func (p *fakePlayer) Driving() bool        { return p.driving }
func (p *fakePlayer) Health() float64      { return p.health }

type recorder struct{ got []core.Notification }

func (r *recorder) Notify(n core.Notification) { r.got = append(r.got, n) }

func (r *recorder) kinds(k core.NotificationKind) []core.Notification {
	var out []core.Notification
	for _, n := range r.got {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

type fakeTargets struct {
	pos       map[core.EntityID]mgl64.Vec3
	destroyed map[core.EntityID]bool
}

func (f *fakeTargets) Position(id core.EntityID) (mgl64.Vec3, bool) {
	p, ok := f.pos[id]
	return p, ok
}

func (f *fakeTargets) Destroyed(id core.EntityID) bool { return f.destroyed[id] }

type fixture struct {
	engine  *Engine
	player  *fakePlayer
	economy *economy.Economy
	notes   *recorder
	ctx     *Context
}

func newFixture(t *testing.T, catalog func() []*Mission) *fixture {
	t.Helper()
	f := &fixture{
		player: &fakePlayer{health: 100},
		notes:  &recorder{},
		ctx:    NewContext(),
	}
	f.economy = economy.New(f.notes, nil)
	e, err := NewEngine(Dependencies{
		Player:   f.player,
		Economy:  f.economy,
		Notifier: f.notes,
		Catalog:  catalog,
		Context:  f.ctx,
	})
	require.NoError(t, err)
	f.engine = e
	return f
}

func threeObjectives() []*Mission {
	return []*Mission{{
		ID:    "three",
		Title: "Three",
		Objectives: []*Objective{
			{ID: "a", Description: "A"},
			{ID: "b", Description: "B"},
			{ID: "c", Description: "C", Optional: true},
		},
		Reward: Reward{Money: 300},
	}}
}

func TestNewEngine_RequiresPlayer(t *testing.T) {
	_, err := NewEngine(Dependencies{})
	assert.Error(t, err)
}

func TestEngine_CompleteObjectiveIdempotent(t *testing.T) {
	f := newFixture(t, threeObjectives)
	require.NoError(t, f.engine.StartMission("three"))
	m := f.engine.Active()

	assert.True(t, f.engine.CompleteObjective("a"))
	assert.False(t, f.engine.CompleteObjective("a"))
	assert.False(t, f.engine.CompleteObjective("nope"))
	assert.False(t, m.IsComplete())
	assert.False(t, f.engine.IsComplete())

	assert.True(t, f.engine.CompleteObjective("b"))
	assert.True(t, m.IsComplete(), "optional objective c never completed")
	assert.Equal(t, StatusCompleted, m.Status)
	assert.False(t, m.Objective("c").Completed)
	assert.Nil(t, f.engine.Active())
	assert.Equal(t, []string{"three"}, f.engine.Completed())
	assert.Equal(t, 300, f.economy.Money())

	assert.False(t, f.engine.CompleteObjective("c"), "no active mission")
	assert.Equal(t, 300, f.economy.Money(), "reward paid exactly once")
}

func TestEngine_TimeExpired(t *testing.T) {
	f := newFixture(t, func() []*Mission {
		far := mgl64.Vec3{1000, 0, 1000}
		return []*Mission{{
			ID:         "timed",
			TimeLimit:  180,
			Props:      Properties{EndLocation: &far},
			Objectives: []*Objective{{ID: "go", Description: "Reach the docks", Type: ObjectiveDestination}},
			Reward:     Reward{Money: 1000, Items: []string{"medal"}},
		}}
	})
	require.NoError(t, f.engine.StartMission("timed"))
	m := f.engine.Active()

	for i := 0; i < 181; i++ {
		f.engine.Update(1)
	}

	assert.Equal(t, StatusFailed, m.Status)
	assert.Equal(t, "Time expired", m.Reason)
	assert.Equal(t, 180.0, m.Elapsed, "no timer advance once failed")
	assert.Equal(t, 0, f.economy.Money())
	assert.False(t, f.economy.HasItem("medal"))
	assert.Empty(t, f.notes.kinds(core.NotifyMoneyDelta))
	assert.Empty(t, f.engine.Checkpoints())

	status := f.notes.kinds(core.NotifyMissionStatus)
	require.Len(t, status, 2)
	assert.Equal(t, "failed", status[1].Status)
	assert.Equal(t, "Time expired", status[1].Reason)
}

func TestEngine_StartRejections(t *testing.T) {
	f := newFixture(t, func() []*Mission {
		return append(threeObjectives(), &Mission{ID: "other", Objectives: []*Objective{{ID: "x"}}})
	})

	require.NoError(t, f.engine.StartMission("three"))
	assert.ErrorIs(t, f.engine.StartMission("other"), ErrMissionActive)
	assert.ErrorIs(t, f.engine.StartMission("ghost"), ErrUnknownMission)

	require.True(t, f.engine.Abort())
	assert.ErrorIs(t, f.engine.StartMission("three"), ErrNotStartable)
	assert.NoError(t, f.engine.StartMission("other"))
}

func TestEngine_RegisterDuplicate(t *testing.T) {
	f := newFixture(t, threeObjectives)
	assert.Error(t, f.engine.Register(&Mission{ID: "three"}))
	assert.Error(t, f.engine.Register(&Mission{}))
}

func TestEngine_AbortKeepsCompletedObjectives(t *testing.T) {
	f := newFixture(t, threeObjectives)
	require.NoError(t, f.engine.StartMission("three"))
	m := f.engine.Active()
	f.engine.CompleteObjective("a")

	assert.True(t, f.engine.Abort())
	assert.False(t, f.engine.Abort())
	assert.Equal(t, StatusFailed, m.Status)
	assert.Equal(t, ReasonAborted, m.Reason)
	assert.True(t, m.Objective("a").Completed)
	assert.Empty(t, f.engine.Completed())
}

func TestEngine_DeliveryFlow(t *testing.T) {
	cfg := DefaultConfig()
	f := newFixture(t, func() []*Mission { return Catalog(cfg) })
	f.player.driving = true
	require.NoError(t, f.engine.StartMission("special_delivery"))
	m := f.engine.Active()
	assert.Len(t, f.engine.Checkpoints(), 2)

	f.player.pos = cfg.Dropoff
	f.engine.Update(1)
	assert.Equal(t, StatusActive, m.Status, "dropoff is not armed before the pickup")

	f.player.pos = cfg.Pickup.Add(mgl64.Vec3{2, 1, 0})
	f.engine.Update(1)
	assert.True(t, m.Objective("pickup").Completed)
	assert.True(t, f.economy.HasItem("package"))
	require.Len(t, f.engine.Checkpoints(), 1)
	assert.Equal(t, "deliver", f.engine.Checkpoints()[0].ObjectiveID)

	f.player.pos = cfg.Dropoff
	f.engine.Update(1)
	assert.Equal(t, StatusCompleted, m.Status)
	assert.False(t, f.economy.HasItem("package"))
	assert.Equal(t, 1250, f.economy.Money(), "reward plus early tip")
	assert.Len(t, f.notes.kinds(core.NotifyCheckpointFired), 2)
}

func TestEngine_LeftTheVehicle(t *testing.T) {
	f := newFixture(t, func() []*Mission { return Catalog(DefaultConfig()) })
	require.NoError(t, f.engine.StartMission("special_delivery"))
	m := f.engine.Active()

	f.engine.Update(1)
	assert.Equal(t, StatusActive, m.Status, "walking to a car first is fine")

	f.player.driving = true
	f.engine.Update(1)
	f.player.driving = false
	f.engine.Update(1)

	assert.Equal(t, StatusFailed, m.Status)
	assert.Equal(t, ReasonLeftVehicle, m.Reason)
}

func TestEngine_Died(t *testing.T) {
	f := newFixture(t, threeObjectives)
	require.NoError(t, f.engine.StartMission("three"))
	m := f.engine.Active()

	f.player.health = 0
	f.engine.Update(0.1)

	assert.Equal(t, StatusFailed, m.Status)
	assert.Equal(t, ReasonDied, m.Reason)
}

func TestEngine_FirstRideCompletesWhenDriving(t *testing.T) {
	f := newFixture(t, func() []*Mission { return Catalog(DefaultConfig()) })
	require.NoError(t, f.engine.StartMission("first_ride"))

	f.engine.Update(0.1)
	assert.NotNil(t, f.engine.Active())

	f.player.driving = true
	f.engine.Update(0.1)
	assert.Nil(t, f.engine.Active())
	assert.Equal(t, 100, f.economy.Money())
}

func TestEngine_ScavengerHunt(t *testing.T) {
	cfg := DefaultConfig()
	f := newFixture(t, func() []*Mission { return Catalog(cfg) })
	require.NoError(t, f.engine.StartMission("scavenger_hunt"))
	m := f.engine.Active()

	for i, loc := range cfg.ScrapLocations {
		f.player.pos = loc
		f.engine.Update(0.1)
		if i < len(cfg.ScrapLocations)-1 {
			assert.Equal(t, StatusActive, m.Status)
		}
	}

	assert.Equal(t, StatusCompleted, m.Status)
	assert.Equal(t, 3, f.economy.ItemCount("scrap"))
	assert.True(t, f.economy.HasItem("toolkit"))
}

func TestEngine_LayLow(t *testing.T) {
	cfg := DefaultConfig()
	f := newFixture(t, func() []*Mission { return Catalog(cfg) })
	f.player.pos = mgl64.Vec3{10, 0, 10}
	require.NoError(t, f.engine.StartMission("lay_low"))
	m := f.engine.Active()
	assert.Equal(t, 2, f.economy.Wanted())

	f.player.pos = mgl64.Vec3{10, 0, 10 + cfg.EscapeDistance}
	f.engine.Update(1)
	assert.True(t, m.Objective("get_away").Completed)
	assert.Equal(t, 0, f.economy.Wanted())

	for m.Status == StatusActive {
		f.engine.Update(1)
	}
	assert.Equal(t, StatusCompleted, m.Status)
	assert.Equal(t, cfg.SurviveDuration, m.Elapsed)
	assert.Equal(t, 950, f.economy.Money(), "objective reward plus mission reward")
}

func TestEngine_SurvivalHoldsWanted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SurviveDuration = 3
	f := newFixture(t, func() []*Mission { return Catalog(cfg) })
	require.NoError(t, f.engine.StartMission("last_stand"))
	assert.Equal(t, 4, f.economy.Wanted())

	f.economy.AdjustWanted(-3)
	f.engine.Update(1)
	assert.Equal(t, 4, f.economy.Wanted())

	f.engine.Update(1)
	f.engine.Update(1)
	assert.Nil(t, f.engine.Active())
	assert.Equal(t, 0, f.economy.Wanted())
	assert.True(t, f.economy.HasItem("armor"))
}

func TestEngine_Chase(t *testing.T) {
	cfg := DefaultConfig()
	targets := &fakeTargets{
		pos:       map[core.EntityID]mgl64.Vec3{cfg.ChaseTarget: {50, 0, 0}},
		destroyed: map[core.EntityID]bool{},
	}
	newChase := func(t *testing.T) (*Engine, *fakePlayer) {
		p := &fakePlayer{health: 100}
		e, err := NewEngine(Dependencies{
			Player:  p,
			Economy: economy.New(nil, nil),
			Targets: targets,
			Catalog: func() []*Mission { return Catalog(cfg) },
		})
		require.NoError(t, err)
		require.NoError(t, e.StartMission("hot_pursuit"))
		return e, p
	}

	t.Run("target destroyed", func(t *testing.T) {
		e, _ := newChase(t)
		m := e.Active()
		e.Update(0.1)
		assert.Equal(t, StatusActive, m.Status)

		targets.destroyed[cfg.ChaseTarget] = true
		t.Cleanup(func() { targets.destroyed[cfg.ChaseTarget] = false })
		e.Update(0.1)
		assert.Equal(t, StatusCompleted, m.Status)
	})

	t.Run("target got away", func(t *testing.T) {
		e, p := newChase(t)
		m := e.Active()
		p.pos = mgl64.Vec3{0, 0, -300}
		e.Update(0.1)
		assert.Equal(t, StatusFailed, m.Status)
		assert.Equal(t, "Target got away", m.Reason)
	})
}

func TestEngine_TransitionListener(t *testing.T) {
	f := newFixture(t, threeObjectives)
	var got []Status
	f.engine.OnTransition(func(m *Mission) { got = append(got, m.Status) })

	require.NoError(t, f.engine.StartMission("three"))
	f.engine.CompleteObjective("a")
	f.engine.CompleteObjective("b")

	assert.Equal(t, []Status{StatusCompleted}, got)
}

func TestEngine_ContextMirrorsActive(t *testing.T) {
	f := newFixture(t, threeObjectives)
	require.NoError(t, f.engine.StartMission("three"))
	f.engine.Update(2)

	s := f.ctx.Summary()
	assert.Equal(t, "three", s.ID)
	assert.Equal(t, 2.0, s.Elapsed)
	assert.Equal(t, -1.0, s.Remaining)

	f.engine.Abort()
	assert.Empty(t, f.ctx.ActiveID())
}

func TestEngine_SnapshotRestore(t *testing.T) {
	cfg := DefaultConfig()
	catalog := func() []*Mission { return Catalog(cfg) }
	f := newFixture(t, catalog)
	f.player.driving = true

	require.NoError(t, f.engine.StartMission("first_ride"))
	f.engine.Update(0.1)
	require.NoError(t, f.engine.StartMission("special_delivery"))
	f.player.pos = cfg.Pickup
	f.engine.Update(1)

	snap := f.engine.Snapshot()
	assert.Equal(t, "special_delivery", snap.ActiveID)
	assert.True(t, snap.Objectives["pickup"])
	assert.False(t, snap.Objectives["deliver"])
	assert.True(t, snap.EnteredVehicle)

	g := newFixture(t, catalog)
	g.player.driving = true
	require.NoError(t, g.engine.Restore(snap))

	m := g.engine.Active()
	require.NotNil(t, m)
	assert.InDelta(t, snap.Elapsed, m.Elapsed, 1e-9)
	assert.True(t, m.Objective("pickup").Completed)
	assert.Equal(t, []string{"first_ride"}, g.engine.Completed())
	first, _ := g.engine.Mission("first_ride")
	assert.Equal(t, StatusCompleted, first.Status)

	cps := g.engine.Checkpoints()
	require.Len(t, cps, 1, "only the incomplete objective is re-armed")
	assert.Equal(t, "deliver", cps[0].ObjectiveID)

	g.player.pos = cfg.Dropoff
	g.engine.Update(1)
	assert.Equal(t, StatusCompleted, m.Status)
}

func TestEngine_FailedMissionKeepsOnlyStatusFlag(t *testing.T) {
	cfg := DefaultConfig()
	catalog := func() []*Mission { return Catalog(cfg) }
	f := newFixture(t, catalog)

	require.NoError(t, f.engine.StartMission("special_delivery"))
	require.True(t, f.engine.Abort())

	assert.Nil(t, f.engine.Active())
	assert.Empty(t, f.engine.Completed())
	for _, m := range f.engine.Available() {
		assert.NotEqual(t, "special_delivery", m.ID)
	}

	snap := f.engine.Snapshot()
	assert.Equal(t, []string{"special_delivery"}, snap.Failed)

	g := newFixture(t, catalog)
	require.NoError(t, g.engine.Restore(snap))
	m, ok := g.engine.Mission("special_delivery")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, m.Status)
	assert.Empty(t, g.engine.Completed())
	assert.Equal(t, snap.Failed, g.engine.Snapshot().Failed)
}

func TestEngine_RestoreUnknownActive(t *testing.T) {
	f := newFixture(t, threeObjectives)
	err := f.engine.Restore(core.MissionSnapshot{ActiveID: "ghost"})
	assert.ErrorIs(t, err, ErrUnknownMission)
}

func TestEngine_ResetRecreatesCatalog(t *testing.T) {
	f := newFixture(t, func() []*Mission { return Catalog(DefaultConfig()) })
	require.NoError(t, f.engine.StartMission("first_ride"))
	f.engine.Abort()

	require.NoError(t, f.engine.Reset())
	m, ok := f.engine.Mission("first_ride")
	require.True(t, ok)
	assert.Equal(t, StatusInactive, m.Status)
	assert.Len(t, f.engine.Available(), 6)
	assert.NoError(t, f.engine.StartMission("first_ride"))
}
