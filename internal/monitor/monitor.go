// Package monitor periodically snapshots the session status into a
// status.json file next to the logs and forwards it to the status recorder.
package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/opencity/sandbox/pkg/core"
)

// StatusFileName is written inside Dependencies.OutputDir.
const StatusFileName = "status.json"

// StatusSource is the session, or anything else reporting a status.
type StatusSource interface {
	Status() core.SessionStatus
}

// StatusRecorder persists status samples.
type StatusRecorder interface {
	RecordStatus(s *core.SessionStatus) error
}

// WriteDurationProvider reports how long the last save write took.
type WriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Source    StatusSource
	Recorder  StatusRecorder        // optional
	Writes    WriteDurationProvider // optional
	OutputDir string
	Interval  time.Duration
	Logger    *slog.Logger
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	logger    *slog.Logger
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		deps:     deps,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current status and its indented JSON form.
func (s *Service) GetProgramStatus() ([]byte, core.SessionStatus) {
	status := s.deps.Source.Status()
	if status.Time.IsZero() {
		status.Time = time.Now()
	}
	if s.deps.Writes != nil {
		status.LastWrite = s.deps.Writes.GetLastDBWriteDuration()
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		out = []byte(fmt.Sprintf(`{"error": %q}`, err.Error()))
	}
	return out, status
}

// WriteOnce writes the status file and records the sample.
func (s *Service) WriteOnce() error {
	out, status := s.GetProgramStatus()

	if s.deps.OutputDir != "" {
		if err := writeStatusFile(filepath.Join(s.deps.OutputDir, StatusFileName), out); err != nil {
			return err
		}
	}
	if s.deps.Recorder != nil {
		if err := s.deps.Recorder.RecordStatus(&status); err != nil {
			return fmt.Errorf("error recording status: %w", err)
		}
	}
	return nil
}

// writeStatusFile replaces the file atomically so readers never see a
// partial document.
func writeStatusFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("error writing status file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("error replacing status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.Source == nil {
		s.mu.Unlock()
		return fmt.Errorf("status monitor requires a status source")
	}
	if s.deps.OutputDir != "" {
		if err := os.MkdirAll(s.deps.OutputDir, 0755); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("error creating status directory: %w", err)
		}
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		s.logger.Debug("Starting status monitor goroutine", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteOnce(); err != nil {
					s.logger.Error("Error writing status", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
