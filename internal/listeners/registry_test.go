package listeners

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddRemove_ReturnsTrueOnce(t *testing.T) {
	var r Registry[float64]

	id := r.Add(1.5, func(float64) {})

	assert.True(t, r.Remove(id))
	assert.False(t, r.Remove(id))
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_RemoveUnknown_LeavesRegistryUnchanged(t *testing.T) {
	var r Registry[int]
	a := r.Add(1, func(int) {})
	b := r.Add(2, func(int) {})

	assert.False(t, r.Remove(ID(0)))
	assert.False(t, r.Remove(b+1000))

	got := r.Listeners()
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0].ID)
	assert.Equal(t, b, got[1].ID)
}

func TestRegistry_Remove_PreservesOrderOfSurvivors(t *testing.T) {
	var r Registry[int]
	ids := make([]ID, 0, 4)
	for i := range 4 {
		ids = append(ids, r.Add(i, func(int) {}))
	}

	require.True(t, r.Remove(ids[1]))

	got := r.Listeners()
	require.Len(t, got, 3)
	assert.Equal(t, []int{0, 2, 3}, []int{got[0].Target, got[1].Target, got[2].Target})
}

func TestRegistry_IDsAreUniqueAcrossRegistries(t *testing.T) {
	var a Registry[int]
	var b Registry[string]

	id1 := a.Add(1, func(int) {})
	id2 := b.Add("x", func(string) {})
	id3 := a.Add(2, func(int) {})

	assert.Less(t, id1, id2)
	assert.Less(t, id2, id3)
}

func TestRegistry_Dispatch_MatchesTargets(t *testing.T) {
	var r Registry[int]
	var calls []int
	r.Add(1, func(v int) { calls = append(calls, 10+v) })
	r.Add(2, func(v int) { calls = append(calls, 20+v) })
	r.Add(1, func(v int) { calls = append(calls, 30+v) })

	n := r.Dispatch(1, func(target, observed int) bool { return target == observed })

	assert.Equal(t, 2, n)
	assert.Equal(t, []int{11, 31}, calls)
}

func TestRegistry_Dispatch_CallbackMayRemoveItself(t *testing.T) {
	var r Registry[int]
	var id ID
	fired := 0
	id = r.Add(0, func(int) {
		fired++
		r.Remove(id)
	})

	r.Dispatch(0, nil)
	r.Dispatch(0, nil)

	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_Clear(t *testing.T) {
	var r Registry[int]
	r.Add(1, func(int) {})
	r.Add(2, func(int) {})

	r.Clear()

	assert.Equal(t, 0, r.Len())
}
