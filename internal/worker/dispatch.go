package worker

import (
	"fmt"
	"time"

	"github.com/opencity/sandbox/internal/dispatcher"
	"github.com/opencity/sandbox/internal/storage"
	"github.com/opencity/sandbox/pkg/core"
)

// Event names registered by the worker.
const (
	EventSaveGame      = "save_game"
	EventMissionResult = "mission_result"
	EventStatus        = "status"
	EventTelemetry     = "telemetry"
)

// RegisterHandlers registers the write jobs with the dispatcher. Every
// handler is buffered so the tick never waits on I/O.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	m.d = d

	// Saves are rare but must not be dropped silently
	d.Register(EventSaveGame, m.handleSaveGame, dispatcher.Buffered(16), dispatcher.Logged())
	d.Register(EventMissionResult, m.handleMissionResult, dispatcher.Buffered(256), dispatcher.Logged())

	if _, ok := m.deps.Backend.(storage.StatusRecorder); ok {
		d.Register(EventStatus, m.handleStatus, dispatcher.Buffered(64))
	}
	if m.deps.Telemetry != nil {
		// High-volume samples - dropped when influx falls behind
		d.Register(EventTelemetry, m.handleTelemetry, dispatcher.Buffered(1024))
	}
}

func (m *Manager) enqueue(name string, payload any) error {
	if m.d == nil {
		return ErrNotRegistered
	}
	if !m.d.HasHandler(name) {
		return nil
	}
	_, err := m.d.Dispatch(dispatcher.Event{Name: name, Payload: payload})
	return err
}

// SaveGame queues a save for the backend.
func (m *Manager) SaveGame(save *core.SaveGame) error {
	m.pending.Add(1)
	if err := m.enqueue(EventSaveGame, save); err != nil {
		m.pending.Add(-1)
		return err
	}
	return nil
}

// RecordMissionResult queues a mission result for the backend and the
// telemetry sink.
func (m *Manager) RecordMissionResult(r *core.MissionResult) error {
	return m.enqueue(EventMissionResult, r)
}

// RecordStatus queues a status sample. It is a no-op unless the backend
// records statuses.
func (m *Manager) RecordStatus(s *core.SessionStatus) error {
	return m.enqueue(EventStatus, s)
}

// RecordSamples queues telemetry samples. It is a no-op without a sink.
func (m *Manager) RecordSamples(samples []core.TelemetrySample) error {
	if len(samples) == 0 {
		return nil
	}
	return m.enqueue(EventTelemetry, samples)
}

func (m *Manager) handleSaveGame(e dispatcher.Event) (any, error) {
	defer m.pending.Add(-1)

	save, ok := e.Payload.(*core.SaveGame)
	if !ok || save == nil {
		return nil, fmt.Errorf("save job without save game: %T", e.Payload)
	}

	start := time.Now()
	if err := m.deps.Backend.SaveGame(save); err != nil {
		return nil, fmt.Errorf("failed to write save %s: %w", save.Slot, err)
	}
	m.lastWrite.Store(int64(time.Since(start)))
	m.saved.Add(1)
	m.logger.Info("game saved", "slot", save.Slot, "tick", save.Tick, "duration", time.Since(start))
	return nil, nil
}

func (m *Manager) handleMissionResult(e dispatcher.Event) (any, error) {
	r, ok := e.Payload.(*core.MissionResult)
	if !ok || r == nil {
		return nil, fmt.Errorf("mission result job without result: %T", e.Payload)
	}

	if err := m.deps.Backend.RecordMissionResult(r); err != nil {
		return nil, fmt.Errorf("failed to record mission result: %w", err)
	}
	if m.deps.Telemetry != nil {
		if err := m.deps.Telemetry.RecordMissionResult(r); err != nil {
			return nil, fmt.Errorf("failed to send mission result telemetry: %w", err)
		}
	}
	return nil, nil
}

func (m *Manager) handleStatus(e dispatcher.Event) (any, error) {
	s, ok := e.Payload.(*core.SessionStatus)
	if !ok || s == nil {
		return nil, fmt.Errorf("status job without status: %T", e.Payload)
	}
	return nil, m.deps.Backend.(storage.StatusRecorder).RecordStatus(s)
}

func (m *Manager) handleTelemetry(e dispatcher.Event) (any, error) {
	samples, ok := e.Payload.([]core.TelemetrySample)
	if !ok {
		return nil, fmt.Errorf("telemetry job without samples: %T", e.Payload)
	}
	return nil, m.deps.Telemetry.RecordSamples(samples)
}
