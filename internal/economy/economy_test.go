package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opencity/sandbox/pkg/core"
)

type recorder struct{ got []core.Notification }

func (r *recorder) Notify(n core.Notification) { r.got = append(r.got, n) }

func TestEconomy_MoneyNeverNegative(t *testing.T) {
	r := &recorder{}
	e := New(r, nil)

	assert.Equal(t, 500, e.AddMoney(500))
	assert.False(t, e.Spend(600))
	assert.True(t, e.Spend(200))
	assert.Equal(t, -300, e.AddMoney(-1000))
	assert.Equal(t, 0, e.Money())

	assert.Equal(t, 0, e.AddMoney(-5), "nothing left to take")
	assert.Len(t, r.got, 3)
	assert.Equal(t, core.NotifyMoneyDelta, r.got[1].Kind)
	assert.Equal(t, -200, r.got[1].Money)
}

func TestEconomy_WantedClamped(t *testing.T) {
	r := &recorder{}
	e := New(r, nil)

	assert.Equal(t, 5, e.AdjustWanted(9))
	assert.Equal(t, MaxWanted, e.Wanted())
	assert.Equal(t, 0, e.AdjustWanted(1))
	assert.Equal(t, -5, e.AdjustWanted(-7))
	assert.Equal(t, 0, e.Wanted())

	assert.Len(t, r.got, 2)
	assert.Equal(t, 5, r.got[0].Wanted)
}

func TestEconomy_Inventory(t *testing.T) {
	r := &recorder{}
	e := New(r, nil)

	e.AddItem("package", 1)
	e.AddItem("medkit", 2)
	e.AddItem("", 1)

	assert.True(t, e.HasItem("package"))
	assert.Equal(t, []string{"medkit", "package"}, e.Items())
	assert.False(t, e.RemoveItem("medkit", 3))
	assert.True(t, e.RemoveItem("medkit", 2))
	assert.False(t, e.HasItem("medkit"))
	assert.Equal(t, core.Notification{Kind: core.NotifyItemAcquired, Item: "package", Count: 1}, r.got[0])
}

func TestEconomy_SnapshotRestore(t *testing.T) {
	e := New(nil, nil)
	e.AddMoney(120)
	e.AddItem("key", 1)
	e.AdjustWanted(2)

	snap := e.Snapshot()
	e.AddItem("key", 1)

	other := New(nil, nil)
	other.Restore(snap)
	assert.Equal(t, 120, other.Money())
	assert.Equal(t, 1, other.ItemCount("key"), "snapshot does not alias live state")
	assert.Equal(t, 2, other.Wanted())

	other.Reset()
	assert.Equal(t, 0, other.Money())
	assert.Empty(t, other.Items())
}
