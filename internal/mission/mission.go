// Package mission runs the mission lifecycle: objectives, checkpoints,
// timers, rewards and pass/fail transitions.
package mission

import (
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/opencity/sandbox/pkg/core"
)

type Status string

const (
	StatusInactive  Status = "inactive"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Type string

const (
	TypeMain Type = "main"
	TypeSide Type = "side"
)

type ObjectiveType string

const (
	ObjectivePickup      ObjectiveType = "pickup"
	ObjectiveDestination ObjectiveType = "destination"
	ObjectiveCollect     ObjectiveType = "collect"
	ObjectiveEscape      ObjectiveType = "escape"
	ObjectiveSurvive     ObjectiveType = "survive"
	ObjectiveVehicle     ObjectiveType = "vehicle"
	ObjectiveKill        ObjectiveType = "kill"
)

// Failure reasons shown to the player.
const (
	ReasonTimeExpired = "Time expired"
	ReasonLeftVehicle = "Left the vehicle"
	ReasonDied        = "Died"
	ReasonAborted     = "Aborted"
)

// Reward is paid out once, on mission or objective completion. A negative
// Wanted lowers the wanted level.
type Reward struct {
	Money  int      `json:"money,omitempty"`
	Items  []string `json:"items,omitempty"`
	Wanted int      `json:"wanted,omitempty"`
}

func (r Reward) empty() bool {
	return r.Money == 0 && len(r.Items) == 0 && r.Wanted == 0
}

type Objective struct {
	ID          string
	Description string
	Type        ObjectiveType
	Completed   bool
	Optional    bool
	Reward      *Reward

	// Item and Count are the inventory requirement of a collect objective
	// and the item granted by a pickup.
	Item  string
	Count int
	// Distance is how far an escape objective must get from the origin.
	Distance float64
	// Duration is how long a survive objective must last, in seconds.
	Duration float64
	// Location places a checkpoint that completes the objective.
	Location *mgl64.Vec3
	Radius   float64
	// Target is the entity a kill objective is about.
	Target core.EntityID
}

// looksLikeDestination matches objectives an end-location checkpoint should
// complete.
func (o *Objective) looksLikeDestination() bool {
	if o.Type == ObjectiveDestination {
		return true
	}
	d := strings.ToLower(o.Description)
	for _, word := range []string{"deliver", "reach", "destination", "go to", "drop off"} {
		if strings.Contains(d, word) {
			return true
		}
	}
	return false
}

// Checkpoint is a world trigger that fires once when the player enters it.
type Checkpoint struct {
	ID          string     `json:"id"`
	MissionID   string     `json:"missionId"`
	ObjectiveID string     `json:"objectiveId,omitempty"`
	Position    mgl64.Vec3 `json:"position"`
	Radius      float64    `json:"radius"`
	Active      bool       `json:"active"`
	Triggered   bool       `json:"triggered"`
}

// Contains tests the horizontal distance to p.
func (c *Checkpoint) Contains(p mgl64.Vec3) bool {
	dx, dz := p.X()-c.Position.X(), p.Z()-c.Position.Z()
	return dx*dx+dz*dz <= c.Radius*c.Radius
}

// Properties are optional per-mission rules.
type Properties struct {
	RequiresVehicle bool
	EndLocation     *mgl64.Vec3
	EndRadius       float64
	// Sequential missions arm checkpoints and automatic conditions only for
	// objectives whose required predecessors are done.
	Sequential bool
}

type Mission struct {
	ID          string
	Title       string
	Description string
	Type        Type
	Objectives  []*Objective
	Checkpoints []*Checkpoint
	TimeLimit   float64
	Elapsed     float64
	Reward      Reward
	Status      Status
	Reason      string
	Props       Properties
	Behavior    Behavior

	// Origin is where the player stood on activation; escape distances are
	// measured from it.
	Origin         mgl64.Vec3
	EnteredVehicle bool
}

// IsComplete reports whether every objective is completed or optional.
func (m *Mission) IsComplete() bool {
	for _, o := range m.Objectives {
		if !o.Completed && !o.Optional {
			return false
		}
	}
	return true
}

func (m *Mission) Objective(id string) *Objective {
	for _, o := range m.Objectives {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// Remaining returns seconds left, or -1 when untimed.
func (m *Mission) Remaining() float64 {
	if m.TimeLimit <= 0 {
		return -1
	}
	return max(0, m.TimeLimit-m.Elapsed)
}

// armed reports whether o may currently be completed by the world.
func (m *Mission) armed(o *Objective) bool {
	if o.Completed {
		return false
	}
	if !m.Props.Sequential {
		return true
	}
	for _, prev := range m.Objectives {
		if prev == o {
			return true
		}
		if !prev.Completed && !prev.Optional {
			return false
		}
	}
	return true
}

func (m *Mission) resetObjectives() {
	for _, o := range m.Objectives {
		o.Completed = false
	}
}

// buildCheckpoints places checkpoints for every incomplete objective with a
// location and for the end location. Completed objectives get none.
func (m *Mission) buildCheckpoints() {
	m.Checkpoints = m.Checkpoints[:0]
	var dest *Objective
	if m.Props.EndLocation != nil {
		for _, o := range m.Objectives {
			if o.Location == nil && o.looksLikeDestination() {
				dest = o
				break
			}
		}
	}
	for _, o := range m.Objectives {
		if o.Location == nil || o.Completed {
			continue
		}
		m.Checkpoints = append(m.Checkpoints, &Checkpoint{
			ID:          m.ID + "/" + o.ID,
			MissionID:   m.ID,
			ObjectiveID: o.ID,
			Position:    *o.Location,
			Radius:      radiusOr(o.Radius),
			Active:      true,
		})
	}
	if m.Props.EndLocation != nil && (dest == nil || !dest.Completed) {
		cp := &Checkpoint{
			ID:        m.ID + "/end",
			MissionID: m.ID,
			Position:  *m.Props.EndLocation,
			Radius:    radiusOr(m.Props.EndRadius),
			Active:    true,
		}
		if dest != nil {
			cp.ObjectiveID = dest.ID
		}
		m.Checkpoints = append(m.Checkpoints, cp)
	}
}

func (m *Mission) clearCheckpoints() {
	for _, c := range m.Checkpoints {
		c.Active = false
	}
	m.Checkpoints = nil
}

func radiusOr(r float64) float64 {
	if r <= 0 {
		return 5
	}
	return r
}
