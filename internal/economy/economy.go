// Package economy holds the player's money, inventory and wanted level and
// reports every change as a notification.
package economy

import (
	"log/slog"
	"maps"
	"sort"

	"github.com/opencity/sandbox/pkg/core"
)

const MaxWanted = 5

// Notifier receives economy notifications.
type Notifier interface {
	Notify(core.Notification)
}

type Economy struct {
	money     int
	inventory map[string]int
	wanted    int
	notifier  Notifier
	logger    *slog.Logger
}

func New(notifier Notifier, logger *slog.Logger) *Economy {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Economy{
		inventory: make(map[string]int),
		notifier:  notifier,
		logger:    logger,
	}
}

func (e *Economy) Money() int { return e.money }

func (e *Economy) Wanted() int { return e.wanted }

func (e *Economy) notify(n core.Notification) {
	if e.notifier != nil {
		e.notifier.Notify(n)
	}
}

// AddMoney credits (or debits, for negative amounts) money, never going
// below zero. It returns the applied delta.
func (e *Economy) AddMoney(amount int) int {
	before := e.money
	e.money = max(0, e.money+amount)
	delta := e.money - before
	if delta != 0 {
		e.notify(core.Notification{Kind: core.NotifyMoneyDelta, Money: delta})
	}
	return delta
}

// Spend debits amount if the balance covers it.
func (e *Economy) Spend(amount int) bool {
	if amount < 0 || amount > e.money {
		return false
	}
	e.AddMoney(-amount)
	return true
}

func (e *Economy) AddItem(name string, count int) {
	if name == "" || count <= 0 {
		return
	}
	e.inventory[name] += count
	e.notify(core.Notification{Kind: core.NotifyItemAcquired, Item: name, Count: count})
}

// RemoveItem takes count items if enough are held.
func (e *Economy) RemoveItem(name string, count int) bool {
	if count <= 0 || e.inventory[name] < count {
		return false
	}
	e.inventory[name] -= count
	if e.inventory[name] == 0 {
		delete(e.inventory, name)
	}
	return true
}

func (e *Economy) HasItem(name string) bool { return e.inventory[name] > 0 }

func (e *Economy) ItemCount(name string) int { return e.inventory[name] }

// Items lists held item names in order.
func (e *Economy) Items() []string {
	out := make([]string, 0, len(e.inventory))
	for k := range e.inventory {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AdjustWanted changes the wanted level within [0, MaxWanted] and returns
// the applied delta.
func (e *Economy) AdjustWanted(delta int) int {
	before := e.wanted
	e.wanted = min(MaxWanted, max(0, e.wanted+delta))
	applied := e.wanted - before
	if applied != 0 {
		e.logger.Debug("wanted level changed", "level", e.wanted)
		e.notify(core.Notification{Kind: core.NotifyWantedDelta, Wanted: applied})
	}
	return applied
}

func (e *Economy) Snapshot() core.EconomySnapshot {
	return core.EconomySnapshot{
		Money:     e.money,
		Inventory: maps.Clone(e.inventory),
		Wanted:    e.wanted,
	}
}

// Restore replaces the state without notifying.
func (e *Economy) Restore(s core.EconomySnapshot) {
	e.money = max(0, s.Money)
	e.wanted = min(MaxWanted, max(0, s.Wanted))
	e.inventory = make(map[string]int, len(s.Inventory))
	for k, v := range s.Inventory {
		if v > 0 {
			e.inventory[k] = v
		}
	}
}

// Reset empties the economy for a new game.
func (e *Economy) Reset() {
	e.Restore(core.EconomySnapshot{})
}
