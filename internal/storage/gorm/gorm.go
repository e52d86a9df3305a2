// Package gormstorage implements the storage.Backend interface on top of any
// GORM dialect. Save games are written synchronously; mission results and
// status samples go through internal queues drained by a background writer.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/opencity/sandbox/internal/database"
	"github.com/opencity/sandbox/internal/model"
	"github.com/opencity/sandbox/internal/model/convert"
	"github.com/opencity/sandbox/internal/queue"
	"github.com/opencity/sandbox/internal/storage"
	"github.com/opencity/sandbox/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultWriteInterval = 2 * time.Second

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	WriteInterval time.Duration
}

// queues holds the write queues for batch DB insertion.
type queues struct {
	MissionResults *queue.Queue[model.MissionResult]
	Statuses       *queue.Queue[model.SessionStatus]
}

func newQueues() *queues {
	return &queues{
		MissionResults: queue.New[model.MissionResult](),
		Statuses:       queue.New[model.SessionStatus](),
	}
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	deps      Dependencies
	queues    *queues
	stopChan  chan struct{}
	done      chan struct{}
	lastWrite atomic.Int64
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.WriteInterval <= 0 {
		deps.WriteInterval = defaultWriteInterval
	}
	return &Backend{
		deps:   deps,
		queues: newQueues(),
	}
}

// Init runs schema migration and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend has no database")
	}
	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the writer goroutine and flushes what is still queued.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	<-b.done
	b.stopChan = nil
	b.flush()
	return nil
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// SaveGame upserts the save keyed by its slot.
func (b *Backend) SaveGame(save *core.SaveGame) error {
	if save.Slot == "" {
		return fmt.Errorf("save has no slot")
	}
	row, err := convert.CoreToSaveSlot(*save)
	if err != nil {
		return err
	}

	err = b.deps.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"save_id", "session_id", "saved_at", "tick", "active_mission", "money", "wanted", "payload",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to write save slot %q: %w", save.Slot, err)
	}
	return nil
}

// LoadGame reads the save stored under slot.
func (b *Backend) LoadGame(slot string) (*core.SaveGame, error) {
	var row model.SaveSlot
	err := b.deps.DB.Where("slot = ?", slot).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrSlotNotFound, slot)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read save slot %q: %w", slot, err)
	}

	save, err := convert.SaveSlotToCore(row)
	if err != nil {
		return nil, err
	}
	return &save, nil
}

// ListSlots returns the stored saves ordered by slot name.
func (b *Backend) ListSlots() ([]core.SlotInfo, error) {
	var rows []model.SaveSlot
	err := b.deps.DB.
		Select("slot", "save_id", "saved_at", "tick").
		Order("slot").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list save slots: %w", err)
	}

	slots := make([]core.SlotInfo, len(rows))
	for i, row := range rows {
		slots[i] = convert.SaveSlotToInfo(row)
	}
	return slots, nil
}

// RecordMissionResult queues a mission result for the next write cycle.
func (b *Backend) RecordMissionResult(r *core.MissionResult) error {
	b.queues.MissionResults.Push(convert.CoreToMissionResult(*r))
	return nil
}

// RecordStatus queues a status sample for the next write cycle.
func (b *Backend) RecordStatus(s *core.SessionStatus) error {
	b.queues.Statuses.Push(model.SessionStatus{
		Time:           s.Time,
		SessionID:      s.SessionID,
		Tick:           s.Tick,
		Paused:         s.Paused,
		ActiveMission:  s.ActiveMission,
		Bodies:         s.Bodies,
		TickDurationMs: float32(s.TickDuration.Microseconds()) / 1000,
		SaveQueue:      s.SaveQueue,
		Outbox:         s.Outbox,
		LastWriteMs:    float32(s.LastWrite.Microseconds()) / 1000,
	})
	return nil
}

// MissionResults returns the written mission history of a session, oldest
// first.
func (b *Backend) MissionResults(sessionID string) ([]core.MissionResult, error) {
	var rows []model.MissionResult
	err := b.deps.DB.Where("session_id = ?", sessionID).Order("time, id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read mission results: %w", err)
	}
	out := make([]core.MissionResult, len(rows))
	for i, row := range rows {
		out[i] = convert.MissionResultToCore(row)
	}
	return out, nil
}

// GetLastDBWriteDuration returns the duration of the last write cycle.
func (b *Backend) GetLastDBWriteDuration() time.Duration {
	return time.Duration(b.lastWrite.Load())
}

// QueueLengths reports the number of rows waiting for the writer.
func (b *Backend) QueueLengths() (results, statuses int) {
	return b.queues.MissionResults.Len(), b.queues.Statuses.Len()
}

// writeQueue writes all items from a queue to the database in a transaction.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log *slog.Logger) {
	if q.Empty() {
		return
	}

	tx := db.Begin()
	items := q.Drain()
	if err := tx.Create(&items).Error; err != nil {
		log.Error("Error creating rows", "table", name, "count", len(items), "error", err)
		tx.Rollback()
		q.Push(items...)
		return
	}

	tx.Commit()
}

func (b *Backend) flush() {
	start := time.Now()
	writeQueue(b.deps.DB, b.queues.MissionResults, "mission results", b.deps.Logger)
	writeQueue(b.deps.DB, b.queues.Statuses, "session statuses", b.deps.Logger)
	b.lastWrite.Store(int64(time.Since(start)))
}

// writerLoop periodically drains the queues into the DB.
func (b *Backend) writerLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.WriteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			b.flush()
		}
	}
}
