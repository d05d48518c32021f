// Package loopnest models the iteration domain of affine loop nests: the Index identifiers
// naming loop dimensions, the Range of values a dimension iterates over, and the Nest that
// composes them into nested iteration.
//
// The main elements in the package are:
//
//   - Index: an interned, cheaply copyable identifier for one loop dimension. Many Ranges may
//     refer to the same Index; an Index carries no range information itself.
//   - Range: the iteration domain of one dimension, `[begin, end : increment)`. The end takes
//     one of three forms: a resolved constant, a reference to another Index whose extent is not
//     yet fixed, or a reference to a positional operand supplied externally (e.g. a tensor's
//     run-time extent). Only the end may be symbolic; begin and increment are always constants.
//   - Nest: an ordered sequence of (Index, Range) bindings, outermost first, with at most one
//     binding per Index.
//   - EndResolver / Resolve: the machinery that turns a symbolic end into a constant before
//     lowering.
//   - Intersects: overlap analysis over the iteration values two Ranges actually visit, used
//     to gate fusion.
//
// # Error handling
//
// Accessors whose contract requires a resolved Range (End, Size, NumIterations,
// LastIterationBegin) panic -- via github.com/gomlx/exceptions -- when called on an unresolved
// Range: such a call is a bug in the surrounding compiler pipeline, not a recoverable
// condition. Branch on HasConstantEnd/HasIndexEnd/HasOperandIndexEnd before calling them.
// Recoverable conditions (a resolver that cannot yet produce a constant) are reported as
// errors, see ErrNotYetResolvable.
package loopnest

import (
	"cmp"
	"fmt"
	"sync"
)

// Index names one loop dimension, independent of its current range. It is a small immutable
// value: copies of an Index compare equal and refer to the same dimension.
//
// Index values are interned in a process-wide table populated by NewIndex; after construction
// the table is only read, so sharing an Index across goroutines is safe.
type Index struct {
	id int32
}

var (
	muIndexNames sync.RWMutex

	// indexNames maps Index.id to its name. Id 0 is reserved for the zero (invalid) Index.
	indexNames = []string{"<invalid>"}
)

// NewIndex creates a new loop dimension identifier with the given name. Each call returns a
// distinct Index, even for a repeated name: the name is a label, the identity is the Index
// value itself.
func NewIndex(name string) Index {
	muIndexNames.Lock()
	defer muIndexNames.Unlock()
	id := int32(len(indexNames))
	indexNames = append(indexNames, name)
	return Index{id: id}
}

// Ok reports whether this is a valid Index. The zero Index is invalid.
func (idx Index) Ok() bool { return idx.id != 0 }

// Name returns the label the Index was created with.
func (idx Index) Name() string {
	muIndexNames.RLock()
	defer muIndexNames.RUnlock()
	return indexNames[idx.id]
}

// Compare returns -1, 0 or +1 ordering indices by creation order. It provides the total order
// used by Range ordering and by sorted containers.
func (idx Index) Compare(other Index) int {
	return cmp.Compare(idx.id, other.id)
}

// String implements fmt.Stringer.
func (idx Index) String() string {
	if !idx.Ok() {
		return "<invalid>"
	}
	return idx.Name()
}

// OperandIndex refers to a positional operand supplied externally to the computation, e.g. the
// run-time extent of a tensor dimension, before it has been folded to a constant or tied to an
// Index.
type OperandIndex int

// String implements fmt.Stringer.
func (op OperandIndex) String() string {
	return fmt.Sprintf("operand(%d)", int(op))
}
