package gormstorage

import (
	"testing"
	"time"

	"github.com/opencity/sandbox/internal/database"
	"github.com/opencity/sandbox/internal/model"
	"github.com/opencity/sandbox/internal/storage"
	"github.com/opencity/sandbox/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks
var (
	_ storage.Backend        = (*Backend)(nil)
	_ storage.StatusRecorder = (*Backend)(nil)
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.GetSqliteDB(database.MemoryDSN(t.Name()))
	require.NoError(t, err)

	b := New(Dependencies{DB: db, WriteInterval: 10 * time.Millisecond})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func testSave(slot string, tick uint64) *core.SaveGame {
	return &core.SaveGame{
		ID:        "save-" + slot,
		Slot:      slot,
		SessionID: "session-1",
		SavedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Tick:      tick,
		Economy:   core.EconomySnapshot{Money: 300, Wanted: 1},
		Mission:   core.MissionSnapshot{ActiveID: "lay_low", Elapsed: 12},
	}
}

func TestInitWithoutDB(t *testing.T) {
	b := New(Dependencies{})
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestInitMigrates(t *testing.T) {
	b := newTestBackend(t)
	for _, m := range model.DatabaseModels {
		assert.True(t, b.DB().Migrator().HasTable(m), "%T", m)
	}
}

func TestSaveAndLoad(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.SaveGame(testSave("quick", 42)))

	got, err := b.LoadGame("quick")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), got.Tick)
	assert.Equal(t, "lay_low", got.Mission.ActiveID)
	assert.Equal(t, 300, got.Economy.Money)
}

func TestSaveUpsertsSlot(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.SaveGame(testSave("auto", 1)))
	require.NoError(t, b.SaveGame(testSave("auto", 2)))

	var count int64
	require.NoError(t, b.DB().Model(&model.SaveSlot{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err := b.LoadGame("auto")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Tick)
}

func TestSaveWithoutSlot(t *testing.T) {
	b := newTestBackend(t)
	assert.Error(t, b.SaveGame(&core.SaveGame{}))
}

func TestLoadUnknownSlot(t *testing.T) {
	b := newTestBackend(t)

	_, err := b.LoadGame("missing")
	assert.ErrorIs(t, err, storage.ErrSlotNotFound)
}

func TestListSlots(t *testing.T) {
	b := newTestBackend(t)

	require.NoError(t, b.SaveGame(testSave("zeta", 3)))
	require.NoError(t, b.SaveGame(testSave("alpha", 1)))

	slots, err := b.ListSlots()
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "alpha", slots[0].Slot)
	assert.Equal(t, "save-alpha", slots[0].SaveID)
	assert.Equal(t, uint64(1), slots[0].Tick)
	assert.Equal(t, "zeta", slots[1].Slot)
}

func TestMissionResultsQueuedAndWritten(t *testing.T) {
	b := newTestBackend(t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, b.RecordMissionResult(&core.MissionResult{
		SessionID: "session-1", MissionID: "first_ride", Status: "completed", Money: 100, Time: now,
	}))
	require.NoError(t, b.RecordMissionResult(&core.MissionResult{
		SessionID: "session-1", MissionID: "hot_pursuit", Status: "failed", Reason: "Target got away", Time: now.Add(time.Minute),
	}))

	assert.Eventually(t, func() bool {
		results, _ := b.QueueLengths()
		return results == 0
	}, time.Second, 10*time.Millisecond)

	got, err := b.MissionResults("session-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first_ride", got[0].MissionID)
	assert.Equal(t, "Target got away", got[1].Reason)
}

func TestCloseFlushesQueues(t *testing.T) {
	db, err := database.GetSqliteDB(database.MemoryDSN(t.Name()))
	require.NoError(t, err)

	b := New(Dependencies{DB: db, WriteInterval: time.Hour})
	require.NoError(t, b.Init())

	require.NoError(t, b.RecordStatus(&core.SessionStatus{
		SessionID:    "session-1",
		Time:         time.Now(),
		Tick:         600,
		TickDuration: 1500 * time.Microsecond,
	}))
	require.NoError(t, b.Close())

	var rows []model.SessionStatus
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(600), rows[0].Tick)
	assert.InDelta(t, 1.5, rows[0].TickDurationMs, 1e-6)

	// second close is a no-op
	assert.NoError(t, b.Close())
}
