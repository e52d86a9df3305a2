package weapon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencity/sandbox/pkg/core"
)

type recorder struct{ got []core.Notification }

func (r *recorder) Notify(n core.Notification) { r.got = append(r.got, n) }

func TestArsenal_FireUntilEmptyThenReload(t *testing.T) {
	r := &recorder{}
	a := NewArsenal([]Weapon{{Name: "pistol", MagazineSize: 2, Magazine: 2, Reserve: 3}}, r)

	assert.True(t, a.Fire())
	assert.True(t, a.Fire())
	assert.False(t, a.Fire())
	require.Len(t, r.got, 1)
	assert.Equal(t, core.NotifyOutOfAmmo, r.got[0].Kind)

	assert.Equal(t, 2, a.Reload())
	assert.Equal(t, 1, a.Current().Reserve)
	assert.Equal(t, 0, a.Reload(), "magazine already full")
}

func TestArsenal_SwitchCycles(t *testing.T) {
	a := NewArsenal(DefaultLoadout(), nil)

	assert.Equal(t, "pistol", a.Current().Name)
	assert.Equal(t, "smg", a.Switch())
	assert.Equal(t, "pistol", a.Switch())
}

func TestArsenal_Unarmed(t *testing.T) {
	a := NewArsenal(nil, nil)

	assert.Nil(t, a.Current())
	assert.False(t, a.Fire())
	assert.Equal(t, 0, a.Reload())
	assert.Empty(t, a.Switch())
}

func TestArsenal_SnapshotRestore(t *testing.T) {
	a := NewArsenal(DefaultLoadout(), nil)
	a.Fire()
	snap := a.Snapshot()

	b := NewArsenal(DefaultLoadout(), nil)
	b.Restore(snap)

	assert.Equal(t, 11, b.Current().Magazine)
}
