package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencity/sandbox/internal/input"
	"github.com/opencity/sandbox/internal/mission"
	"github.com/opencity/sandbox/internal/vehicle"
	"github.com/opencity/sandbox/pkg/core"
)

const frame = 1.0 / 60.0

type scriptedInput struct {
	frames []input.RawSnapshot
}

func (s *scriptedInput) press(names ...string) {
	s.frames = append(s.frames, input.RawSnapshot{Actions: input.NewActionSet(names...)})
}

func (s *scriptedInput) Poll() input.RawSnapshot {
	if len(s.frames) == 0 {
		return input.RawSnapshot{}
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f
}

type recordingScene struct {
	tick  uint64
	nodes []core.NodeTransform
}

func (r *recordingScene) PushTransforms(tick uint64, nodes []core.NodeTransform) {
	r.tick = tick
	r.nodes = nodes
}

type recordingNotifier struct {
	got []core.Notification
}

func (r *recordingNotifier) Notify(n core.Notification) { r.got = append(r.got, n) }

func (r *recordingNotifier) kinds() []core.NotificationKind {
	var out []core.NotificationKind
	for _, n := range r.got {
		out = append(out, n.Kind)
	}
	return out
}

type recordingSaves struct {
	mu      sync.Mutex
	saves   []*core.SaveGame
	results []*core.MissionResult
	err     error
}

func (r *recordingSaves) SaveGame(s *core.SaveGame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saves = append(r.saves, s)
	return nil
}

func (r *recordingSaves) RecordMissionResult(m *core.MissionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, m)
	return nil
}

func (r *recordingSaves) Pending() int { return 3 }

type recordingTelemetry struct {
	batches [][]core.TelemetrySample
}

func (r *recordingTelemetry) RecordSamples(s []core.TelemetrySample) error {
	r.batches = append(r.batches, s)
	return nil
}

func newSession(t *testing.T, deps Dependencies) *Session {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SessionID = "test-session"
	s, err := New(cfg, deps)
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	s := newSession(t, Dependencies{})

	assert.Equal(t, "test-session", s.ID())
	assert.Len(t, s.Vehicles(), len(s.Layout().VehicleSpawns))

	first, ok := s.Vehicle("car_1")
	require.True(t, ok)
	assert.Equal(t, "sedan", first.Type().Name)

	getaway, ok := s.Vehicle("getaway")
	require.True(t, ok)
	assert.Equal(t, "sports", getaway.Type().Name)

	st := s.Status()
	assert.Equal(t, uint64(0), st.Tick)
	assert.Equal(t, core.ModeOnFoot, st.Mode)
	assert.Equal(t, core.ViewThirdPerson, st.View)
	assert.Greater(t, st.Bodies, len(s.Vehicles()))
}

func TestNew_GeneratesSessionID(t *testing.T) {
	s, err := New(DefaultConfig(), Dependencies{})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())
}

func TestNew_BadCity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.City.Blocks = 0
	_, err := New(cfg, Dependencies{})
	require.Error(t, err)
}

func TestTick_AdvancesAndPublishes(t *testing.T) {
	s := newSession(t, Dependencies{})

	for range 10 {
		s.Tick(frame)
	}
	assert.Equal(t, uint64(10), s.TickCount())
	assert.Equal(t, uint64(10), s.Status().Tick)
	assert.Positive(t, s.World().StepCount())
}

func TestTick_Paused(t *testing.T) {
	s := newSession(t, Dependencies{})
	s.Tick(frame)

	_, err := s.Command(CmdPause)
	require.NoError(t, err)
	assert.True(t, s.Status().Paused)

	steps := s.World().StepCount()
	for range 5 {
		s.Tick(frame)
	}
	assert.Equal(t, uint64(1), s.TickCount())
	assert.Equal(t, steps, s.World().StepCount())

	_, err = s.Command(CmdResume)
	require.NoError(t, err)
	s.Tick(frame)
	assert.Equal(t, uint64(2), s.TickCount())
	assert.False(t, s.Status().Paused)
}

func TestTick_IgnoresBadDelta(t *testing.T) {
	s := newSession(t, Dependencies{})
	s.Tick(-1)
	assert.Equal(t, uint64(0), s.TickCount())
}

func TestEnterAndExitVehicle(t *testing.T) {
	in := &scriptedInput{}
	in.press("enter_exit")
	in.press()
	in.press("enter_exit")
	s := newSession(t, Dependencies{Input: in})

	s.Tick(frame)
	require.Equal(t, core.ModeDriving, s.Possession().Mode())
	car := s.Possession().Current()
	require.NotNil(t, car)
	assert.Equal(t, core.EntityID("car_1"), car.ID())
	assert.True(t, car.EngineOn())
	assert.Equal(t, core.ViewVehicle, s.Status().View)
	assert.False(t, s.Character().Visible())

	s.Tick(frame)
	s.Tick(frame)
	assert.Equal(t, core.ModeOnFoot, s.Possession().Mode())
	assert.False(t, car.EngineOn())
	assert.True(t, s.Character().Visible())
}

func TestViewToggle(t *testing.T) {
	in := &scriptedInput{}
	in.press("view_toggle")
	s := newSession(t, Dependencies{Input: in})

	s.Tick(frame)
	assert.Equal(t, core.ViewFirstPerson, s.Possession().View())
}

func TestCommand_StartMission(t *testing.T) {
	s := newSession(t, Dependencies{})

	id, err := s.Command(CmdStartMission, "last_stand")
	require.NoError(t, err)
	assert.Equal(t, "last_stand", id)
	assert.Equal(t, "last_stand", s.MissionContext().ActiveID())

	s.Tick(frame)
	assert.Equal(t, "last_stand", s.Status().ActiveMission)

	_, err = s.Command(CmdStartMission, "first_ride")
	assert.ErrorIs(t, err, mission.ErrMissionActive)

	_, err = s.Command(CmdStartMission)
	assert.ErrorIs(t, err, ErrMissingArg)
}

func TestCommand_Unknown(t *testing.T) {
	s := newSession(t, Dependencies{})

	_, err := s.Command("teleport")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	// action handlers are not commands
	_, err = s.Command("horn")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestAbortMission_RecordsResult(t *testing.T) {
	saves := &recordingSaves{}
	s := newSession(t, Dependencies{Saves: saves})

	_, err := s.Command(CmdStartMission, "last_stand")
	require.NoError(t, err)
	ok, err := s.Command(CmdAbortMission)
	require.NoError(t, err)
	assert.Equal(t, true, ok)

	require.Len(t, saves.results, 1)
	r := saves.results[0]
	assert.Equal(t, "test-session", r.SessionID)
	assert.Equal(t, "last_stand", r.MissionID)
	assert.Equal(t, string(mission.StatusFailed), r.Status)
	assert.Equal(t, mission.ReasonAborted, r.Reason)
	assert.Zero(t, r.Money)
	assert.Equal(t, r, s.LastMissionResult())
}

func TestFirstRide_CompletesWhenDriving(t *testing.T) {
	saves := &recordingSaves{}
	in := &scriptedInput{}
	s := newSession(t, Dependencies{Input: in, Saves: saves})

	_, err := s.Command(CmdStartMission, "first_ride")
	require.NoError(t, err)

	in.press("enter_exit")
	for range 5 {
		s.Tick(frame)
	}

	require.Len(t, saves.results, 1)
	assert.Equal(t, string(mission.StatusCompleted), saves.results[0].Status)
	assert.Positive(t, saves.results[0].Money)
	assert.Equal(t, saves.results[0].Money, s.Economy().Money())
	assert.Empty(t, s.MissionContext().ActiveID())
}

func TestNotifications_FlushedWithTick(t *testing.T) {
	n := &recordingNotifier{}
	s := newSession(t, Dependencies{Notifier: n})

	s.Tick(frame)
	s.Economy().AddMoney(250)
	assert.Empty(t, n.got)

	s.Tick(frame)
	require.Contains(t, n.kinds(), core.NotifyMoneyDelta)
	assert.Equal(t, uint64(1), n.got[0].Tick)
	assert.Equal(t, 250, n.got[0].Money)
	assert.Zero(t, s.Status().Outbox)
}

func TestNotifications_DrainWithoutNotifier(t *testing.T) {
	s := newSession(t, Dependencies{})
	s.Economy().AddMoney(10)
	s.Tick(frame)

	got := s.DrainNotifications()
	require.Len(t, got, 1)
	assert.Equal(t, core.NotifyMoneyDelta, got[0].Kind)
	assert.Empty(t, s.DrainNotifications())
}

func TestScene_ReceivesEveryNode(t *testing.T) {
	scene := &recordingScene{}
	s := newSession(t, Dependencies{Scene: scene})

	s.Tick(frame)
	assert.Equal(t, uint64(1), scene.tick)
	require.Len(t, scene.nodes, 1+5*len(s.Vehicles()))
	assert.Equal(t, "player", scene.nodes[0].NodeID)
	assert.True(t, scene.nodes[0].Visible)
	assert.Equal(t, "car_1", scene.nodes[1].NodeID)
	assert.Equal(t, "car_1/wheel_0", scene.nodes[2].NodeID)
	assert.Equal(t, core.EntityID("car_1"), scene.nodes[2].EntityID)
}

func TestTelemetry_SampledOnInterval(t *testing.T) {
	tel := &recordingTelemetry{}
	cfg := DefaultConfig()
	cfg.SessionID = "tel"
	cfg.TelemetryInterval = 100 * time.Millisecond
	s, err := New(cfg, Dependencies{Telemetry: tel})
	require.NoError(t, err)

	for range 15 {
		s.Tick(frame)
	}
	require.Len(t, tel.batches, 2)
	batch := tel.batches[0]
	require.Len(t, batch, 1+len(s.Vehicles()))
	assert.Equal(t, PlayerID, batch[0].EntityID)
	assert.Equal(t, core.CategoryCharacter, batch[0].Category)
	assert.Equal(t, 100.0, batch[0].Health)
	assert.Equal(t, core.CategoryVehicle, batch[1].Category)
	assert.Equal(t, vehicle.MaxFuel, batch[1].Fuel)
	assert.Equal(t, "tel", batch[1].SessionID)
}

func TestSaveCommand(t *testing.T) {
	t.Run("queued", func(t *testing.T) {
		saves := &recordingSaves{}
		s := newSession(t, Dependencies{Saves: saves})
		s.Tick(frame)

		id, err := s.Command(CmdSave, "slot1")
		require.NoError(t, err)
		require.Len(t, saves.saves, 1)
		assert.Equal(t, saves.saves[0].ID, id)
		assert.Equal(t, "slot1", saves.saves[0].Slot)
		assert.Equal(t, uint64(1), saves.saves[0].Tick)
		assert.Equal(t, 3, s.Status().SaveQueue)
	})

	t.Run("writer error", func(t *testing.T) {
		saves := &recordingSaves{err: errors.New("queue closed")}
		s := newSession(t, Dependencies{Saves: saves})

		_, err := s.Command(CmdSave, "slot1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "queue closed")
	})

	t.Run("no slot", func(t *testing.T) {
		s := newSession(t, Dependencies{Saves: &recordingSaves{}})
		_, err := s.Command(CmdSave)
		assert.ErrorIs(t, err, ErrMissingArg)
	})

	t.Run("no writer", func(t *testing.T) {
		s := newSession(t, Dependencies{})
		_, err := s.Command(CmdSave, "slot1")
		assert.ErrorIs(t, err, ErrNoSaveWriter)
	})
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	in := &scriptedInput{}
	s := newSession(t, Dependencies{Input: in})

	s.Economy().AddMoney(700)
	s.Economy().AddItem("scrap", 2)
	_, err := s.Command(CmdStartMission, "last_stand")
	require.NoError(t, err)
	in.press("enter_exit")
	for range 30 {
		s.Tick(frame)
	}
	require.Equal(t, core.ModeDriving, s.Possession().Mode())
	car := s.Possession().Current()
	car.TakeDamage(30)
	s.Arsenal().Current().Magazine = 3

	save := s.Save("manual")
	assert.Equal(t, "manual", save.Slot)
	assert.NotEmpty(t, save.ID)
	assert.Equal(t, uint64(30), save.Tick)
	assert.Equal(t, core.EntityID("car_1"), save.Character.VehicleID)
	assert.Equal(t, "last_stand", save.Mission.ActiveID)

	require.NoError(t, s.Restart())
	assert.Equal(t, 0, s.Economy().Money())
	assert.Equal(t, core.ModeOnFoot, s.Possession().Mode())
	assert.Empty(t, s.MissionContext().ActiveID())

	require.NoError(t, s.Load(&save))
	assert.Equal(t, uint64(30), s.TickCount())
	assert.Equal(t, 700, s.Economy().Money())
	assert.Equal(t, 2, s.Economy().ItemCount("scrap"))
	assert.Equal(t, 3, s.Arsenal().Current().Magazine)
	assert.Equal(t, "last_stand", s.MissionContext().ActiveID())

	require.Equal(t, core.ModeDriving, s.Possession().Mode())
	restored := s.Possession().Current()
	assert.Equal(t, core.EntityID("car_1"), restored.ID())
	assert.Equal(t, 70.0, restored.Health())
	assert.True(t, restored.EngineOn())
	assert.Empty(t, s.DrainNotifications())

	s.Tick(frame)
	assert.Equal(t, uint64(31), s.TickCount())
}

func TestLoad_SpawnsMissingVehicles(t *testing.T) {
	s := newSession(t, Dependencies{})
	id, err := s.Command(CmdSpawnVehicle, "truck")
	require.NoError(t, err)
	assert.Equal(t, "spawned_1", id)

	save := s.Save("slot")
	require.NoError(t, s.Restart())
	_, ok := s.Vehicle("spawned_1")
	require.False(t, ok)

	require.NoError(t, s.Load(&save))
	v, ok := s.Vehicle("spawned_1")
	require.True(t, ok)
	assert.Equal(t, "truck", v.Type().Name)
}

func TestLoad_Nil(t *testing.T) {
	s := newSession(t, Dependencies{})
	assert.ErrorIs(t, s.Load(nil), ErrNilSave)
}

func TestSpawnVehicle_UnknownType(t *testing.T) {
	s := newSession(t, Dependencies{})
	_, err := s.Command(CmdSpawnVehicle, "hovercraft")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hovercraft")
}

func TestRestart(t *testing.T) {
	s := newSession(t, Dependencies{})
	s.Economy().AddMoney(100)
	for range 5 {
		s.Tick(frame)
	}

	_, err := s.Command(CmdRestart)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), s.TickCount())
	assert.Equal(t, 0, s.Status().Money)
	assert.Equal(t, s.Layout().PlayerSpawn.Position.X(), s.Character().Feet().X())
}

func TestInteract_ServicesVehicle(t *testing.T) {
	s := newSession(t, Dependencies{})
	require.True(t, s.Possession().TryEnter())
	car := s.Possession().Current()
	require.NotNil(t, car)

	car.TakeDamage(40)
	s.Economy().AddMoney(1000)

	spent, err := s.handleInteract(dispatcherEvent("interact"))
	require.NoError(t, err)
	assert.Equal(t, 80, spent)
	assert.Equal(t, vehicle.MaxHealth, car.Health())
	assert.Equal(t, 920, s.Economy().Money())
}

func TestInteract_LimitedByMoney(t *testing.T) {
	s := newSession(t, Dependencies{})
	require.True(t, s.Possession().TryEnter())
	car := s.Possession().Current()
	require.NotNil(t, car)

	car.TakeDamage(40)
	s.Economy().AddMoney(20)

	spent, err := s.handleInteract(dispatcherEvent("interact"))
	require.NoError(t, err)
	assert.Equal(t, 20, spent)
	assert.Equal(t, 70.0, car.Health())
	assert.Equal(t, 0, s.Economy().Money())
}

func TestInteract_OnFoot(t *testing.T) {
	s := newSession(t, Dependencies{})
	s.Economy().AddMoney(100)

	spent, err := s.handleInteract(dispatcherEvent("interact"))
	require.NoError(t, err)
	assert.Equal(t, 0, spent)
	assert.Equal(t, 100, s.Economy().Money())
}

func TestFire_SpendsAmmo(t *testing.T) {
	in := &scriptedInput{}
	in.press("fire")
	in.press()
	in.press("fire")
	s := newSession(t, Dependencies{Input: in})
	before := s.Arsenal().Current().Magazine

	for range 3 {
		s.Tick(frame)
	}
	assert.Equal(t, before-2, s.Arsenal().Current().Magazine)
}

func TestFire_OutOfAmmo(t *testing.T) {
	n := &recordingNotifier{}
	s := newSession(t, Dependencies{Notifier: n})
	s.Arsenal().Current().Magazine = 0

	fired, err := s.handleFire(dispatcherEvent("fire"))
	require.NoError(t, err)
	assert.Equal(t, false, fired)

	s.Tick(frame)
	assert.Contains(t, n.kinds(), core.NotifyOutOfAmmo)
}

func TestRespawnAfterDeath(t *testing.T) {
	s := newSession(t, Dependencies{})
	s.Character().TakeDamage(500)
	require.True(t, s.Character().Dead())

	for range int(respawnDelay/frame) + 5 {
		s.Tick(frame)
	}
	assert.False(t, s.Character().Dead())
	assert.Equal(t, 100.0, s.Character().Health())
}
