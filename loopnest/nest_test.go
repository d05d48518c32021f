package loopnest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNest(t *testing.T) {
	i, j, k := NewIndex("i"), NewIndex("j"), NewIndex("k")
	nest := NewNest(
		Binding{i, NewRange(0, 16, 1)},
		Binding{j, NewRange(0, 10, 1)},
		Binding{k, NewRangeIndexEnd(0, i, 1)},
	)

	require.Equal(t, 3, nest.Len())
	require.Equal(t, []Index{i, j, k}, nest.Indices())
	require.Equal(t, 1, nest.Position(j))
	require.Equal(t, -1, nest.Position(NewIndex("m")))
	require.Equal(t, i, nest.Binding(0).Index)

	r, found := nest.RangeOf(j)
	require.True(t, found)
	require.True(t, r.Equal(NewRange(0, 10, 1)))
	_, found = nest.RangeOf(NewIndex("m"))
	require.False(t, found)

	require.False(t, nest.AllResolved())
	require.True(t, NewNest(Binding{i, NewRange(0, 16, 1)}).AllResolved())

	require.Equal(t, "{i: [0,16:1) > j: [0,10:1) > k: [0,i:1)}", nest.String())
}

func TestNestInvariants(t *testing.T) {
	i := NewIndex("i")
	// Duplicate Index binding is a construction-time contract violation.
	require.Panics(t, func() {
		NewNest(Binding{i, NewRange(0, 16, 1)}, Binding{i, NewRange(0, 10, 1)})
	})
	// So is binding the zero Index.
	require.Panics(t, func() {
		NewNest(Binding{Index{}, NewRange(0, 16, 1)})
	})
	// Out-of-bounds access.
	nest := NewNest(Binding{i, NewRange(0, 16, 1)})
	require.Panics(t, func() { nest.Binding(1) })
}

func TestNestImmutability(t *testing.T) {
	i, j := NewIndex("i"), NewIndex("j")
	nest := NewNest(Binding{i, NewRange(0, 16, 1)}, Binding{j, NewRange(0, 10, 1)})

	// Modifying the copy returned by Bindings must not affect the nest.
	bindings := nest.Bindings()
	bindings[0].Range = NewRange(0, 99, 1)
	r, _ := nest.RangeOf(i)
	require.True(t, r.Equal(NewRange(0, 16, 1)))
}
