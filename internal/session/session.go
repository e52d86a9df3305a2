// Package session owns one running game: the physics world, the city, the
// player, vehicles, missions and the economy. Everything here runs on the
// tick goroutine; Status and the mission context are the only views safe to
// read from elsewhere.
package session

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opencity/sandbox/internal/cache"
	"github.com/opencity/sandbox/internal/character"
	"github.com/opencity/sandbox/internal/city"
	"github.com/opencity/sandbox/internal/dispatcher"
	"github.com/opencity/sandbox/internal/economy"
	"github.com/opencity/sandbox/internal/input"
	"github.com/opencity/sandbox/internal/logging"
	"github.com/opencity/sandbox/internal/mission"
	"github.com/opencity/sandbox/internal/physics"
	"github.com/opencity/sandbox/internal/possession"
	"github.com/opencity/sandbox/internal/queue"
	"github.com/opencity/sandbox/internal/vehicle"
	"github.com/opencity/sandbox/internal/weapon"
	"github.com/opencity/sandbox/pkg/core"
)

const (
	// PlayerID is the entity id of the player character.
	PlayerID core.EntityID = "player"

	respawnDelay = 3.0 // seconds dead before respawning
	outboxLimit  = 1024
)

// InputSource is polled once at the start of every tick.
type InputSource interface {
	Poll() input.RawSnapshot
}

// SceneSink receives the transform of every body-linked node once per tick.
type SceneSink interface {
	PushTransforms(tick uint64, nodes []core.NodeTransform)
}

// Notifier receives economy and UI notifications after each tick.
type Notifier interface {
	Notify(core.Notification)
}

// TelemetrySink receives periodic entity samples.
type TelemetrySink interface {
	RecordSamples(samples []core.TelemetrySample) error
}

// SaveWriter persists saves and mission results off the tick goroutine.
type SaveWriter interface {
	SaveGame(save *core.SaveGame) error
	RecordMissionResult(r *core.MissionResult) error
}

// pendingCounter is implemented by SaveWriters that queue work.
type pendingCounter interface {
	Pending() int
}

// Config holds the tuning of every component.
type Config struct {
	SessionID         string
	Physics           physics.Config
	Character         character.Config
	VehicleTypes      map[string]vehicle.Type
	Input             input.Config
	Mission           mission.Config
	City              city.Config
	TelemetryInterval time.Duration
}

// DefaultConfig returns the built-in tuning.
func DefaultConfig() Config {
	return Config{
		Physics:           physics.DefaultConfig(),
		Character:         character.DefaultConfig(),
		VehicleTypes:      vehicle.DefaultTypes(),
		Input:             input.DefaultConfig(),
		Mission:           mission.DefaultConfig(),
		City:              city.DefaultConfig(),
		TelemetryInterval: time.Second,
	}
}

// Dependencies holds the session's collaborators. All are optional.
type Dependencies struct {
	Input      InputSource
	Scene      SceneSink
	Notifier   Notifier
	Telemetry  TelemetrySink
	Saves      SaveWriter
	Dispatcher *dispatcher.Dispatcher
	Logger     *slog.Logger
}

// Session is the GameSession context object.
type Session struct {
	cfg    Config
	deps   Dependencies
	logger *slog.Logger
	id     string
	d      *dispatcher.Dispatcher

	world      *physics.World
	layout     *city.Layout
	char       *character.Controller
	vehicles   *cache.EntityCache[*vehicle.Vehicle]
	possession *possession.Possession
	translator *input.Translator
	missions   *mission.Engine
	missionCtx *mission.Context
	economy    *economy.Economy
	arsenal    *weapon.Arsenal
	outbox     *queue.Queue[core.Notification]

	tick       atomic.Uint64
	paused     bool
	simTime    float64
	deadFor    float64
	sinceLast  float64
	tickTime   time.Duration
	nextSpawn  int
	typeCycle  []string
	lastResult *core.MissionResult

	statusMu sync.RWMutex
	status   core.SessionStatus
}

// New builds a session and its world. Action and command handlers are
// registered on deps.Dispatcher, or on a private dispatcher when nil.
func New(cfg Config, deps Dependencies) (*Session, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.SessionID == "" {
		cfg.SessionID = uuid.NewString()
	}
	if len(cfg.VehicleTypes) == 0 {
		cfg.VehicleTypes = vehicle.DefaultTypes()
	}

	s := &Session{
		cfg:        cfg,
		deps:       deps,
		logger:     logger.With("session", cfg.SessionID),
		id:         cfg.SessionID,
		d:          deps.Dispatcher,
		missionCtx: mission.NewContext(),
		outbox:     queue.NewBounded[core.Notification](outboxLimit),
	}
	for name := range cfg.VehicleTypes {
		s.typeCycle = append(s.typeCycle, name)
	}
	slices.Sort(s.typeCycle)

	if s.d == nil {
		d, err := dispatcher.New(logging.NewDispatcherLogger(zerolog.Nop()))
		if err != nil {
			return nil, fmt.Errorf("creating dispatcher: %w", err)
		}
		s.d = d
	}
	if err := s.build(); err != nil {
		return nil, err
	}
	s.registerHandlers()
	s.publishStatus()
	return s, nil
}

// build creates a fresh world. It is used on start, restart and load.
func (s *Session) build() error {
	world, err := physics.NewWorld(s.cfg.Physics, s.logger.With("component", "physics"))
	if err != nil {
		return fmt.Errorf("creating physics world: %w", err)
	}
	layout, err := city.Generate(s.cfg.City)
	if err != nil {
		return fmt.Errorf("generating city: %w", err)
	}
	layout.Populate(world)

	s.world = world
	s.layout = layout
	s.vehicles = cache.NewEntityCache[*vehicle.Vehicle]()
	s.nextSpawn = 0
	s.simTime = 0
	s.deadFor = 0
	s.sinceLast = 0

	s.char = character.New(PlayerID, world, layout.PlayerSpawn.Position, s.cfg.Character, s.logger)
	s.economy = economy.New(s, s.logger.With("component", "economy"))
	s.arsenal = weapon.NewArsenal(weapon.DefaultLoadout(), s)
	s.translator = input.NewTranslator(s.cfg.Input)
	s.possession = possession.New(world, s.char, s, s.logger.With("component", "possession"))

	chase := s.cfg.Mission.ChaseTarget
	for i, sp := range layout.VehicleSpawns {
		id := core.EntityID(fmt.Sprintf("car_%d", i+1))
		name := s.typeCycle[i%len(s.typeCycle)]
		// the last spawn, farthest from the player's car, hosts the chase target
		if chase != "" && i > 0 && i == len(layout.VehicleSpawns)-1 {
			id, name = chase, s.fastestType()
		}
		if _, err := s.spawnVehicle(id, name, sp.Position, sp.Heading); err != nil {
			return err
		}
	}

	missionCfg := s.cfg.Mission
	engine, err := mission.NewEngine(mission.Dependencies{
		Player:   playerView{s},
		Economy:  s.economy,
		Notifier: s,
		Targets:  targets{s},
		Catalog:  func() []*mission.Mission { return mission.Catalog(missionCfg) },
		Context:  s.missionCtx,
		Logger:   s.logger.With("component", "mission"),
	})
	if err != nil {
		return fmt.Errorf("creating mission engine: %w", err)
	}
	engine.OnTransition(s.recordMissionResult)
	s.missions = engine
	return nil
}

func (s *Session) fastestType() string {
	best := s.typeCycle[0]
	for _, name := range s.typeCycle {
		if s.cfg.VehicleTypes[name].MaxSpeed > s.cfg.VehicleTypes[best].MaxSpeed {
			best = name
		}
	}
	return best
}

// SpawnVehicle adds a vehicle of the named type standing on the ground at
// pos, facing heading radians about +Y.
func (s *Session) SpawnVehicle(id core.EntityID, typeName string, pos mgl64.Vec3, heading float64) (*vehicle.Vehicle, error) {
	return s.spawnVehicle(id, typeName, pos, heading)
}

func (s *Session) spawnVehicle(id core.EntityID, typeName string, pos mgl64.Vec3, heading float64) (*vehicle.Vehicle, error) {
	typ, ok := s.cfg.VehicleTypes[typeName]
	if !ok {
		return nil, fmt.Errorf("unknown vehicle type %q", typeName)
	}
	if _, dup := s.vehicles.Get(id); dup {
		return nil, fmt.Errorf("vehicle %s already exists", id)
	}
	lift := typ.HalfExtents.Y() + typ.Wheel.Radius + typ.Wheel.SuspensionRest
	rot := mgl64.QuatRotate(heading, mgl64.Vec3{0, 1, 0})
	v := vehicle.New(id, typ, s.world, pos.Add(mgl64.Vec3{0, lift, 0}), rot, s, s.logger)
	s.vehicles.Add(id, v)
	s.possession.Watch(v)
	return v, nil
}

// Vehicle resolves a vehicle entity.
func (s *Session) Vehicle(id core.EntityID) (*vehicle.Vehicle, bool) {
	return s.vehicles.Get(id)
}

// Notify stamps the tick on a notification and queues it for delivery at
// the end of the tick.
func (s *Session) Notify(n core.Notification) {
	n.Tick = s.tick.Load()
	if s.outbox.Push(n) > 0 {
		s.logger.Debug("notification outbox full, dropped oldest", "dropped", s.outbox.Dropped())
	}
}

// DrainNotifications returns and clears undelivered notifications. Without
// a Notifier this is how a collaborator pulls them.
func (s *Session) DrainNotifications() []core.Notification {
	return s.outbox.Drain()
}

func (s *Session) flushOutbox() {
	if s.deps.Notifier == nil {
		return
	}
	for _, n := range s.outbox.Drain() {
		s.deps.Notifier.Notify(n)
	}
}

func (s *Session) recordMissionResult(m *mission.Mission) {
	r := &core.MissionResult{
		SessionID: s.id,
		MissionID: m.ID,
		Status:    string(m.Status),
		Reason:    m.Reason,
		Elapsed:   m.Elapsed,
		Time:      time.Now(),
	}
	if m.Status == mission.StatusCompleted {
		r.Money = m.Reward.Money
	}
	s.lastResult = r
	if s.deps.Saves == nil {
		return
	}
	if err := s.deps.Saves.RecordMissionResult(r); err != nil {
		s.logger.Error("failed to queue mission result", "mission", m.ID, "error", err)
	}
}

func (s *Session) ID() string { return s.id }

// TickCount is the number of simulated ticks. Safe from any goroutine.
func (s *Session) TickCount() uint64 { return s.tick.Load() }

func (s *Session) Paused() bool { return s.paused }

func (s *Session) World() *physics.World { return s.world }

func (s *Session) Layout() *city.Layout { return s.layout }

func (s *Session) Character() *character.Controller { return s.char }

func (s *Session) Possession() *possession.Possession { return s.possession }

func (s *Session) Missions() *mission.Engine { return s.missions }

// MissionContext mirrors the active mission for other goroutines.
func (s *Session) MissionContext() *mission.Context { return s.missionCtx }

func (s *Session) Economy() *economy.Economy { return s.economy }

func (s *Session) Arsenal() *weapon.Arsenal { return s.arsenal }

func (s *Session) Dispatcher() *dispatcher.Dispatcher { return s.d }

// Vehicles lists vehicles in spawn order.
func (s *Session) Vehicles() []*vehicle.Vehicle { return s.vehicles.All() }

// LastMissionResult is the most recent terminal mission transition.
func (s *Session) LastMissionResult() *core.MissionResult { return s.lastResult }

// Pause halts the tick loop entirely.
func (s *Session) Pause() {
	if s.paused {
		return
	}
	s.paused = true
	s.logger.Info("session paused", "tick", s.tick.Load())
	s.publishStatus()
}

// Resume continues after Pause. Held keys are forgotten so nothing pressed
// during the pause fires.
func (s *Session) Resume() {
	if !s.paused {
		return
	}
	s.paused = false
	s.translator.Reset()
	s.logger.Info("session resumed", "tick", s.tick.Load())
	s.publishStatus()
}

// Restart recreates the world and every mission.
func (s *Session) Restart() error {
	if err := s.build(); err != nil {
		return err
	}
	s.tick.Store(0)
	s.paused = false
	s.outbox.Clear()
	s.logger.Info("session restarted")
	s.publishStatus()
	return nil
}

// playerView adapts the session to mission.PlayerView.
type playerView struct{ s *Session }

func (p playerView) Position() mgl64.Vec3 {
	if v := p.s.possession.Current(); v != nil {
		return v.Body().Position
	}
	return p.s.char.Feet()
}

func (p playerView) Driving() bool { return p.s.possession.Mode() == core.ModeDriving }

func (p playerView) Health() float64 { return p.s.char.Health() }

// targets adapts the vehicle cache to mission.Targets.
type targets struct{ s *Session }

func (t targets) Position(id core.EntityID) (mgl64.Vec3, bool) {
	v, ok := t.s.vehicles.Get(id)
	if !ok {
		return mgl64.Vec3{}, false
	}
	return v.Body().Position, true
}

func (t targets) Destroyed(id core.EntityID) bool {
	v, ok := t.s.vehicles.Get(id)
	return ok && v.Destroyed()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
