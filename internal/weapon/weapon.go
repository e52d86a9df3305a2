// Package weapon tracks ammunition for the player's carried weapons.
package weapon

import "github.com/opencity/sandbox/pkg/core"

// Notifier receives out-of-ammo feedback.
type Notifier interface {
	Notify(core.Notification)
}

type Weapon struct {
	Name         string
	MagazineSize int
	Magazine     int
	Reserve      int
}

// Arsenal is the set of carried weapons with one selected.
type Arsenal struct {
	weapons  []*Weapon
	current  int
	notifier Notifier
}

// DefaultLoadout is what a new game starts with.
func DefaultLoadout() []Weapon {
	return []Weapon{
		{Name: "pistol", MagazineSize: 12, Magazine: 12, Reserve: 48},
		{Name: "smg", MagazineSize: 30, Magazine: 30, Reserve: 90},
	}
}

func NewArsenal(loadout []Weapon, notifier Notifier) *Arsenal {
	a := &Arsenal{notifier: notifier}
	a.Load(loadout)
	return a
}

// Load replaces the carried weapons.
func (a *Arsenal) Load(loadout []Weapon) {
	a.weapons = a.weapons[:0]
	for _, w := range loadout {
		w := w
		a.weapons = append(a.weapons, &w)
	}
	a.current = 0
}

// Current returns the selected weapon, nil when unarmed.
func (a *Arsenal) Current() *Weapon {
	if len(a.weapons) == 0 {
		return nil
	}
	return a.weapons[a.current]
}

// Fire spends one round. An empty magazine is normal state: nothing fires
// and the player gets an out-of-ammo prompt.
func (a *Arsenal) Fire() bool {
	w := a.Current()
	if w == nil {
		return false
	}
	if w.Magazine == 0 {
		if a.notifier != nil {
			a.notifier.Notify(core.Notification{Kind: core.NotifyOutOfAmmo, Item: w.Name})
		}
		return false
	}
	w.Magazine--
	return true
}

// Reload moves rounds from the reserve and returns how many were moved.
func (a *Arsenal) Reload() int {
	w := a.Current()
	if w == nil {
		return 0
	}
	n := min(w.MagazineSize-w.Magazine, w.Reserve)
	w.Magazine += n
	w.Reserve -= n
	return n
}

// Switch selects the next weapon and returns its name.
func (a *Arsenal) Switch() string {
	if len(a.weapons) == 0 {
		return ""
	}
	a.current = (a.current + 1) % len(a.weapons)
	return a.weapons[a.current].Name
}

func (a *Arsenal) Snapshot() []core.WeaponSnapshot {
	out := make([]core.WeaponSnapshot, 0, len(a.weapons))
	for _, w := range a.weapons {
		out = append(out, core.WeaponSnapshot{Name: w.Name, Magazine: w.Magazine, Reserve: w.Reserve})
	}
	return out
}

// Restore applies saved ammo counts to weapons carried under the same name.
func (a *Arsenal) Restore(s []core.WeaponSnapshot) {
	for _, saved := range s {
		for _, w := range a.weapons {
			if w.Name == saved.Name {
				w.Magazine = min(max(0, saved.Magazine), w.MagazineSize)
				w.Reserve = max(0, saved.Reserve)
			}
		}
	}
}
