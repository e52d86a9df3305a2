// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/opencity/sandbox/internal/config"
	"github.com/opencity/sandbox/internal/storage"
	"github.com/opencity/sandbox/pkg/core"
)

// Backend keeps save games in memory and, when an output directory is
// configured, mirrors every save to a JSON file there.
type Backend struct {
	cfg config.MemoryConfig

	saves   map[string]core.SaveGame // keyed by slot
	results []core.MissionResult

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:   cfg,
		saves: make(map[string]core.SaveGame),
	}
}

// Init loads previously exported saves from the output directory.
func (b *Backend) Init() error {
	if b.cfg.OutputDir == "" {
		return nil
	}

	saves, err := importSaves(b.cfg.OutputDir)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range saves {
		b.saves[s.Slot] = s
	}
	return nil
}

// Close writes the mission history next to the saves.
func (b *Backend) Close() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.cfg.OutputDir == "" || len(b.results) == 0 {
		return nil
	}
	return b.exportResults()
}

// SaveGame stores a copy of save under its slot, replacing any earlier save.
func (b *Backend) SaveGame(save *core.SaveGame) error {
	if save.Slot == "" {
		return fmt.Errorf("save has no slot")
	}
	stored, err := cloneSave(save)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.saves[save.Slot] = stored
	if b.cfg.OutputDir != "" {
		return b.exportSave(stored)
	}
	return nil
}

// LoadGame returns a copy of the save stored under slot.
func (b *Backend) LoadGame(slot string) (*core.SaveGame, error) {
	b.mu.RLock()
	s, ok := b.saves[slot]
	b.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrSlotNotFound, slot)
	}
	out, err := cloneSave(&s)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSlots returns the stored saves ordered by slot name.
func (b *Backend) ListSlots() ([]core.SlotInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	slots := make([]core.SlotInfo, 0, len(b.saves))
	for _, s := range b.saves {
		slots = append(slots, core.SlotInfo{
			Slot:    s.Slot,
			SaveID:  s.ID,
			SavedAt: s.SavedAt,
			Tick:    s.Tick,
		})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Slot < slots[j].Slot })
	return slots, nil
}

// RecordMissionResult appends to the in-memory mission history.
func (b *Backend) RecordMissionResult(r *core.MissionResult) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = append(b.results, *r)
	return nil
}

// MissionResults returns a copy of the recorded mission history.
func (b *Backend) MissionResults() []core.MissionResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]core.MissionResult, len(b.results))
	copy(out, b.results)
	return out
}
