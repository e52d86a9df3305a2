package session

import (
	"fmt"
	"time"

	"github.com/opencity/sandbox/internal/dispatcher"
	"github.com/opencity/sandbox/internal/input"
	"github.com/opencity/sandbox/pkg/core"
)

// Tick runs one frame: poll input, dispatch discrete actions, route
// continuous input, step physics, update controllers and missions, sync the
// scene, sample telemetry and flush notifications. A paused session does
// nothing.
func (s *Session) Tick(frameDelta float64) {
	if s.paused || !finite(frameDelta) || frameDelta < 0 {
		return
	}
	start := time.Now()
	tick := s.tick.Add(1)

	var raw input.RawSnapshot
	if s.deps.Input != nil {
		raw = s.deps.Input.Poll()
	}
	frame := s.translator.Translate(raw, s.possession.Mode(), frameDelta)
	for _, a := range input.Discrete {
		if frame.Pressed.Has(a) {
			s.dispatchAction(tick, a)
		}
	}
	// an action may have paused or rebuilt the session
	if s.paused {
		s.finishTick(start)
		return
	}
	s.possession.Route(frame)

	steps := s.world.Advance(frameDelta)
	dt := float64(steps) * s.world.Config().FixedStep
	if dt > 0 {
		s.simTime += dt
		s.char.Update(dt)
		for _, v := range s.vehicles.All() {
			v.Update(dt)
		}
		s.missions.Update(dt)
		s.updateRespawn(dt)
	}

	s.syncScene(tick)
	s.sampleTelemetry(tick, dt)
	s.finishTick(start)
}

func (s *Session) finishTick(start time.Time) {
	s.flushOutbox()
	s.tickTime = time.Since(start)
	s.publishStatus()
}

func (s *Session) dispatchAction(tick uint64, a input.Action) {
	name := a.String()
	if !s.d.HasHandler(name) {
		return
	}
	_, err := s.d.Dispatch(dispatcher.Event{
		Name:      name,
		Tick:      tick,
		Timestamp: time.Now(),
	})
	if err != nil {
		s.logger.Debug("action rejected", "action", name, "error", err)
	}
}

// updateRespawn brings the player back at the spawn point after lying dead
// for respawnDelay seconds.
func (s *Session) updateRespawn(dt float64) {
	if !s.char.Dead() {
		s.deadFor = 0
		return
	}
	s.deadFor += dt
	if s.deadFor < respawnDelay {
		return
	}
	s.deadFor = 0
	if s.possession.Current() != nil {
		s.possession.Exit()
	}
	s.char.Respawn()
	s.logger.Info("player respawned", "tick", s.tick.Load())
}

// Nodes returns the transform of every body-linked scene node: the player,
// each vehicle chassis and its four wheels.
func (s *Session) Nodes() []core.NodeTransform {
	vehicles := s.vehicles.All()
	nodes := make([]core.NodeTransform, 0, 1+5*len(vehicles))
	nodes = append(nodes, core.NodeTransform{
		NodeID:    string(PlayerID),
		EntityID:  PlayerID,
		Transform: s.char.Body().Transform(),
		Visible:   s.char.Visible(),
	})
	for _, v := range vehicles {
		nodes = append(nodes, core.NodeTransform{
			NodeID:    string(v.ID()),
			EntityID:  v.ID(),
			Transform: v.Body().Transform(),
			Visible:   true,
		})
		for i, wt := range v.WheelTransforms() {
			nodes = append(nodes, core.NodeTransform{
				NodeID:    fmt.Sprintf("%s/wheel_%d", v.ID(), i),
				EntityID:  v.ID(),
				Transform: wt,
				Visible:   true,
			})
		}
	}
	return nodes
}

func (s *Session) syncScene(tick uint64) {
	if s.deps.Scene == nil {
		return
	}
	s.deps.Scene.PushTransforms(tick, s.Nodes())
}

// Samples reads the current telemetry of the player and every vehicle.
func (s *Session) Samples() []core.TelemetrySample {
	now := time.Now()
	tick := s.tick.Load()
	out := make([]core.TelemetrySample, 0, 1+s.vehicles.Len())
	out = append(out, core.TelemetrySample{
		SessionID: s.id,
		Time:      now,
		Tick:      tick,
		EntityID:  PlayerID,
		Category:  core.CategoryCharacter,
		Position:  s.char.Feet(),
		Speed:     s.char.Velocity().Len(),
		Health:    s.char.Health(),
		Stamina:   s.char.Stamina(),
		Driving:   s.possession.Mode() == core.ModeDriving,
	})
	for _, v := range s.vehicles.All() {
		out = append(out, core.TelemetrySample{
			SessionID: s.id,
			Time:      now,
			Tick:      tick,
			EntityID:  v.ID(),
			Category:  core.CategoryVehicle,
			Position:  v.Body().Position,
			Speed:     v.Speed(),
			Health:    v.Health(),
			Fuel:      v.Fuel(),
			EngineOn:  v.EngineOn(),
		})
	}
	return out
}

func (s *Session) sampleTelemetry(tick uint64, dt float64) {
	if s.deps.Telemetry == nil || s.cfg.TelemetryInterval <= 0 {
		return
	}
	s.sinceLast += dt
	if s.sinceLast < s.cfg.TelemetryInterval.Seconds() {
		return
	}
	s.sinceLast = 0
	if err := s.deps.Telemetry.RecordSamples(s.Samples()); err != nil {
		s.logger.Warn("failed to queue telemetry", "tick", tick, "error", err)
	}
}
