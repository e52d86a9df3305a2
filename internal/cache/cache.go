// Package cache holds the session's entity lookup tables. Physics bodies
// carry only an owner id; the cache resolves it to the typed entity.
package cache

import (
	"slices"
	"sync"

	"github.com/opencity/sandbox/pkg/core"
)

// EntityCache maps entity ids to entities and remembers insertion order so
// snapshots are stable. Reads may come from other goroutines.
type EntityCache[T any] struct {
	m     sync.RWMutex
	items map[core.EntityID]T
	order []core.EntityID
}

func NewEntityCache[T any]() *EntityCache[T] {
	return &EntityCache[T]{
		items: make(map[core.EntityID]T),
	}
}

func (c *EntityCache[T]) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.items = make(map[core.EntityID]T)
	c.order = nil
}

func (c *EntityCache[T]) Get(id core.EntityID) (T, bool) {
	c.m.RLock()
	defer c.m.RUnlock()
	v, ok := c.items[id]
	return v, ok
}

// Add stores v under id. Replacing an entry keeps its original position.
func (c *EntityCache[T]) Add(id core.EntityID, v T) {
	c.m.Lock()
	defer c.m.Unlock()
	if _, ok := c.items[id]; !ok {
		c.order = append(c.order, id)
	}
	c.items[id] = v
}

func (c *EntityCache[T]) Remove(id core.EntityID) {
	c.m.Lock()
	defer c.m.Unlock()
	if _, ok := c.items[id]; !ok {
		return
	}
	delete(c.items, id)
	c.order = slices.DeleteFunc(c.order, func(o core.EntityID) bool { return o == id })
}

func (c *EntityCache[T]) Len() int {
	c.m.RLock()
	defer c.m.RUnlock()
	return len(c.items)
}

// IDs lists ids in insertion order.
func (c *EntityCache[T]) IDs() []core.EntityID {
	c.m.RLock()
	defer c.m.RUnlock()
	return slices.Clone(c.order)
}

// All lists entries in insertion order.
func (c *EntityCache[T]) All() []T {
	c.m.RLock()
	defer c.m.RUnlock()
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}
