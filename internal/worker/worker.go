// Package worker moves persistence and telemetry writes off the tick
// thread. The session enqueues jobs through the Manager; buffered dispatcher
// handlers drain them into the storage backend and the telemetry sink.
package worker

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/opencity/sandbox/internal/dispatcher"
	"github.com/opencity/sandbox/internal/storage"
	"github.com/opencity/sandbox/pkg/core"
)

// ErrNotRegistered is returned when jobs are queued before RegisterHandlers.
var ErrNotRegistered = errors.New("worker handlers not registered")

// TelemetrySink receives periodic entity samples and mission results.
type TelemetrySink interface {
	RecordSamples(samples []core.TelemetrySample) error
	RecordMissionResult(r *core.MissionResult) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Backend   storage.Backend
	Telemetry TelemetrySink // optional
	Logger    *slog.Logger
}

// Manager queues save, mission result, status and telemetry jobs.
type Manager struct {
	deps   Dependencies
	logger *slog.Logger
	d      *dispatcher.Dispatcher

	pending   atomic.Int64
	saved     atomic.Uint64
	lastWrite atomic.Int64
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{deps: deps, logger: logger}
}

// DBWriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type DBWriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// GetLastDBWriteDuration returns the duration of the last write cycle. A
// backend with its own write loop reports it; otherwise the duration of
// the last save job is used.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.deps.Backend.(DBWriteDurationProvider); ok {
		if d := p.GetLastDBWriteDuration(); d > 0 {
			return d
		}
	}
	return time.Duration(m.lastWrite.Load())
}

// Pending is the number of saves queued but not yet written.
func (m *Manager) Pending() int {
	return int(m.pending.Load())
}

// Saved is the number of saves written successfully.
func (m *Manager) Saved() uint64 {
	return m.saved.Load()
}
