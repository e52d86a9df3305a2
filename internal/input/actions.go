package input

import "strings"

// Action is one boolean input of the device contract.
type Action uint32

const (
	MoveForward Action = 1 << iota
	MoveBack
	MoveLeft
	MoveRight
	Jump
	Sprint
	Interact
	EnterExit
	Handbrake
	Horn
	Headlights
	Fire
	Reload
	SwitchWeapon
	ViewToggle
)

var actionNames = map[Action]string{
	MoveForward:  "move_forward",
	MoveBack:     "move_back",
	MoveLeft:     "move_left",
	MoveRight:    "move_right",
	Jump:         "jump",
	Sprint:       "sprint",
	Interact:     "interact",
	EnterExit:    "enter_exit",
	Handbrake:    "handbrake",
	Horn:         "horn",
	Headlights:   "headlights",
	Fire:         "fire",
	Reload:       "reload",
	SwitchWeapon: "switch_weapon",
	ViewToggle:   "view_toggle",
}

// Discrete are the actions handled on their press edge by the dispatcher
// rather than continuously by a controller.
var Discrete = []Action{Interact, EnterExit, Horn, Headlights, Fire, Reload, SwitchWeapon, ViewToggle}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return "unknown"
}

// ParseAction resolves a wire name such as "move_forward".
func ParseAction(name string) (Action, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for a, s := range actionNames {
		if s == name {
			return a, true
		}
	}
	return 0, false
}

// ActionSet is a bitmask of actions.
type ActionSet uint32

func (s ActionSet) Has(a Action) bool { return uint32(s)&uint32(a) != 0 }

func (s ActionSet) With(a Action) ActionSet { return ActionSet(uint32(s) | uint32(a)) }

// NewActionSet builds a set from wire names, ignoring unknown names.
func NewActionSet(names ...string) ActionSet {
	var s ActionSet
	for _, n := range names {
		if a, ok := ParseAction(n); ok {
			s = s.With(a)
		}
	}
	return s
}

// Names lists the actions in the set.
func (s ActionSet) Names() []string {
	var out []string
	for bit := MoveForward; bit <= ViewToggle; bit <<= 1 {
		if s.Has(bit) {
			out = append(out, bit.String())
		}
	}
	return out
}
