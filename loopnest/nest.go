package loopnest

import (
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/lisaong/Accera/types"
)

// Binding associates one loop dimension with its iteration domain.
type Binding struct {
	Index Index
	Range Range
}

// String implements fmt.Stringer.
func (b Binding) String() string {
	return b.Index.String() + ": " + b.Range.String()
}

// Nest is an ordered sequence of Index->Range bindings describing nested iteration, outermost
// first. Each Index appears at most once. A Nest is immutable after construction:
// transformation operators build new Nests rather than mutating one in place, so holders of a
// pre-transformation Nest are never affected by later rewrites.
type Nest struct {
	bindings []Binding
}

// NewNest builds a Nest from the given bindings, outermost first. Binding an invalid Index or
// binding the same Index twice is a bug in the caller and panics at construction time.
func NewNest(bindings ...Binding) *Nest {
	seen := types.MakeSet[Index](len(bindings))
	for _, binding := range bindings {
		if !binding.Index.Ok() {
			exceptions.Panicf("loopnest.NewNest: binding with invalid (zero) Index")
		}
		if seen.Has(binding.Index) {
			exceptions.Panicf("loopnest.NewNest: Index %s bound more than once", binding.Index)
		}
		seen.Insert(binding.Index)
	}
	return &Nest{bindings: slices.Clone(bindings)}
}

// Len returns the number of loop dimensions.
func (n *Nest) Len() int { return len(n.bindings) }

// Binding returns the binding at nesting position pos (0 is outermost). An out-of-range
// position panics.
func (n *Nest) Binding(pos int) Binding {
	if pos < 0 || pos >= len(n.bindings) {
		exceptions.Panicf("loopnest.Nest.Binding(%d) out-of-bounds for a nest of depth %d", pos, len(n.bindings))
	}
	return n.bindings[pos]
}

// Bindings returns a copy of the bindings, outermost first. The copy can be freely modified
// and handed back to NewNest, which is how transformation operators derive new Nests.
func (n *Nest) Bindings() []Binding {
	return slices.Clone(n.bindings)
}

// Indices returns the bound indices in nesting order.
func (n *Nest) Indices() []Index {
	indices := make([]Index, len(n.bindings))
	for ii, binding := range n.bindings {
		indices[ii] = binding.Index
	}
	return indices
}

// Position returns the nesting position of idx, or -1 if it is not bound.
func (n *Nest) Position(idx Index) int {
	return slices.IndexFunc(n.bindings, func(b Binding) bool { return b.Index == idx })
}

// RangeOf returns the Range bound to idx and whether idx is bound at all.
func (n *Nest) RangeOf(idx Index) (Range, bool) {
	pos := n.Position(idx)
	if pos < 0 {
		return Range{}, false
	}
	return n.bindings[pos].Range, true
}

// AllResolved reports whether every Range in the nest has a constant end.
func (n *Nest) AllResolved() bool {
	for _, binding := range n.bindings {
		if !binding.Range.HasConstantEnd() {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer, printing the bindings outermost to innermost.
func (n *Nest) String() string {
	parts := make([]string, 0, len(n.bindings))
	for _, binding := range n.bindings {
		parts = append(parts, binding.String())
	}
	return "{" + strings.Join(parts, " > ") + "}"
}
