package mission

import (
	"sync"
)

// Summary is a copy of the active mission state safe to hand to other
// goroutines.
type Summary struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	Status     Status             `json:"status"`
	Elapsed    float64            `json:"elapsed"`
	Remaining  float64            `json:"remaining"`
	Objectives []ObjectiveSummary `json:"objectives"`
}

type ObjectiveSummary struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Completed   bool   `json:"completed"`
	Optional    bool   `json:"optional"`
}

// Context holds the latest mission summary for readers outside the tick
type Context struct {
	mu      sync.RWMutex
	summary Summary
}

// NewContext creates a new Context with no mission active
func NewContext() *Context {
	return &Context{summary: idle()}
}

// Summary returns the current mission summary
func (mc *Context) Summary() Summary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.summary
}

// ActiveID returns the active mission id, empty when idle
func (mc *Context) ActiveID() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.summary.ID
}

func (mc *Context) set(s Summary) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.summary = s
}

func idle() Summary {
	return Summary{Title: "No mission active", Status: StatusInactive, Remaining: -1}
}

func summarize(m *Mission) Summary {
	if m == nil {
		return idle()
	}
	s := Summary{
		ID:         m.ID,
		Title:      m.Title,
		Status:     m.Status,
		Elapsed:    m.Elapsed,
		Remaining:  m.Remaining(),
		Objectives: make([]ObjectiveSummary, 0, len(m.Objectives)),
	}
	for _, o := range m.Objectives {
		s.Objectives = append(s.Objectives, ObjectiveSummary{
			ID:          o.ID,
			Description: o.Description,
			Completed:   o.Completed,
			Optional:    o.Optional,
		})
	}
	return s
}
