// internal/storage/memory/memory_test.go
package memory

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/opencity/sandbox/internal/config"
	"github.com/opencity/sandbox/internal/storage"
	"github.com/opencity/sandbox/pkg/core"
)

// Verify Backend implements storage.Backend interface
var _ storage.Backend = (*Backend)(nil)

func testSave(slot string, tick uint64) *core.SaveGame {
	return &core.SaveGame{
		ID:        "save-" + slot,
		Slot:      slot,
		SessionID: "session-1",
		SavedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Tick:      tick,
		Economy: core.EconomySnapshot{
			Money:     500,
			Inventory: map[string]int{"package": 1},
		},
		Mission: core.MissionSnapshot{
			ActiveID:   "special_delivery",
			Objectives: map[string]bool{"pickup_package": true},
		},
	}
}

func TestNew(t *testing.T) {
	cfg := config.MemoryConfig{
		OutputDir:      "/tmp/test",
		CompressOutput: true,
	}
	b := New(cfg)

	if b == nil {
		t.Fatal("New returned nil")
	}
	if b.cfg.OutputDir != "/tmp/test" {
		t.Errorf("expected OutputDir=/tmp/test, got %s", b.cfg.OutputDir)
	}
	if !b.cfg.CompressOutput {
		t.Error("expected CompressOutput=true")
	}
	if b.saves == nil {
		t.Error("saves map not initialized")
	}
}

func TestInitAndClose(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.Init(); err != nil {
		t.Errorf("Init failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.SaveGame(testSave("quick", 10)); err != nil {
		t.Fatalf("SaveGame failed: %v", err)
	}

	got, err := b.LoadGame("quick")
	if err != nil {
		t.Fatalf("LoadGame failed: %v", err)
	}
	if got.Tick != 10 {
		t.Errorf("expected tick 10, got %d", got.Tick)
	}
	if !got.Mission.Objectives["pickup_package"] {
		t.Error("objective flag lost")
	}
}

func TestSaveReplacesSlot(t *testing.T) {
	b := New(config.MemoryConfig{})

	_ = b.SaveGame(testSave("quick", 10))
	_ = b.SaveGame(testSave("quick", 20))

	got, err := b.LoadGame("quick")
	if err != nil {
		t.Fatalf("LoadGame failed: %v", err)
	}
	if got.Tick != 20 {
		t.Errorf("expected tick 20, got %d", got.Tick)
	}
	slots, _ := b.ListSlots()
	if len(slots) != 1 {
		t.Errorf("expected 1 slot, got %d", len(slots))
	}
}

func TestLoadReturnsCopy(t *testing.T) {
	b := New(config.MemoryConfig{})

	save := testSave("quick", 1)
	_ = b.SaveGame(save)
	save.Economy.Inventory["package"] = 99

	first, _ := b.LoadGame("quick")
	first.Economy.Inventory["package"] = 42

	second, _ := b.LoadGame("quick")
	if second.Economy.Inventory["package"] != 1 {
		t.Errorf("stored save was mutated: %d", second.Economy.Inventory["package"])
	}
}

func TestLoadUnknownSlot(t *testing.T) {
	b := New(config.MemoryConfig{})

	_, err := b.LoadGame("missing")
	if !errors.Is(err, storage.ErrSlotNotFound) {
		t.Errorf("expected ErrSlotNotFound, got %v", err)
	}
}

func TestSaveWithoutSlot(t *testing.T) {
	b := New(config.MemoryConfig{})

	if err := b.SaveGame(&core.SaveGame{}); err == nil {
		t.Error("expected error for empty slot")
	}
}

func TestListSlotsSorted(t *testing.T) {
	b := New(config.MemoryConfig{})
	for _, slot := range []string{"zeta", "alpha", "mid"} {
		_ = b.SaveGame(testSave(slot, 1))
	}

	slots, err := b.ListSlots()
	if err != nil {
		t.Fatalf("ListSlots failed: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, s := range slots {
		if s.Slot != want[i] {
			t.Errorf("slot %d: expected %s, got %s", i, want[i], s.Slot)
		}
		if s.SaveID != "save-"+want[i] {
			t.Errorf("slot %d: unexpected save id %s", i, s.SaveID)
		}
	}
}

func TestRecordMissionResult(t *testing.T) {
	b := New(config.MemoryConfig{})

	_ = b.RecordMissionResult(&core.MissionResult{MissionID: "first_ride", Status: "completed"})
	_ = b.RecordMissionResult(&core.MissionResult{MissionID: "hot_pursuit", Status: "failed"})

	results := b.MissionResults()
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[1].MissionID != "hot_pursuit" {
		t.Errorf("unexpected order: %+v", results)
	}
}

func TestExportAndReimport(t *testing.T) {
	for _, compress := range []bool{false, true} {
		dir := t.TempDir()
		cfg := config.MemoryConfig{OutputDir: dir, CompressOutput: compress}

		b := New(cfg)
		if err := b.Init(); err != nil {
			t.Fatalf("Init failed: %v", err)
		}
		if err := b.SaveGame(testSave("slot 1:a", 77)); err != nil {
			t.Fatalf("SaveGame failed: %v", err)
		}
		_ = b.RecordMissionResult(&core.MissionResult{MissionID: "first_ride", Status: "completed"})
		if err := b.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		want := slotFileName("slot 1:a", compress)
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Errorf("expected export %s: %v", want, err)
		}
		if _, err := os.Stat(filepath.Join(dir, resultsFile)); err != nil {
			t.Errorf("expected results file: %v", err)
		}

		reopened := New(cfg)
		if err := reopened.Init(); err != nil {
			t.Fatalf("Init on reopen failed: %v", err)
		}
		got, err := reopened.LoadGame("slot 1:a")
		if err != nil {
			t.Fatalf("LoadGame after reopen failed (compress=%v): %v", compress, err)
		}
		if got.Tick != 77 {
			t.Errorf("expected tick 77, got %d", got.Tick)
		}
	}
}

func TestSlotFileName(t *testing.T) {
	if got := slotFileName("my save:1", false); got != "my_save_1.json" {
		t.Errorf("unexpected name %s", got)
	}
	if got := slotFileName("auto", true); got != "auto.json.gz" {
		t.Errorf("unexpected name %s", got)
	}
}

func TestConcurrentSaves(t *testing.T) {
	b := New(config.MemoryConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = b.SaveGame(testSave("auto", uint64(i)))
			_, _ = b.ListSlots()
		}(i)
	}
	wg.Wait()

	slots, _ := b.ListSlots()
	if len(slots) != 1 {
		t.Errorf("expected 1 slot, got %d", len(slots))
	}
}
