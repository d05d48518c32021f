// Package schedule implements the transformation engine that rewrites a loop nest into an
// equivalent but differently shaped one: splitting, tiling, fusing, reordering, skewing, and
// tagging dimensions for unrolling, vectorization or parallel execution.
//
// A Schedule wraps one loopnest.Nest plus the ordered list of transformation records committed
// so far. Operators either commit -- installing a newly built Nest and appending a Record -- or
// return an error describing why the rewrite is not legal, leaving the Schedule untouched. The
// Nest values themselves are immutable, so a caller holding a pre-transformation Nest is never
// affected by later operators (copy-on-transform).
//
// Legality rejections are ordinary errors (github.com/pkg/errors) meant for a scheduling-policy
// layer to catch and try something else; contract violations inside the model (see package
// loopnest) remain panics.
package schedule

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"k8s.io/klog/v2"

	"github.com/lisaong/Accera/loopnest"
)

// Kind identifies a transformation operator in a committed Record.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindSplit
	KindReorder
	KindFuse
	KindSkew
	KindUnroll
	KindVectorize
	KindParallelize
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindSplit:
		return "Split"
	case KindReorder:
		return "Reorder"
	case KindFuse:
		return "Fuse"
	case KindSkew:
		return "Skew"
	case KindUnroll:
		return "Unroll"
	case KindVectorize:
		return "Vectorize"
	case KindParallelize:
		return "Parallelize"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Record describes one committed transformation. Records are immutable once committed; the
// ordered record list is part of the handoff to a lowering backend.
type Record struct {
	Kind Kind

	// Index is the dimension operated on (split outer, skewed, tagged).
	Index loopnest.Index

	// Other is the new inner index for a split, or the reference index for a skew.
	Other loopnest.Index

	// Factor is the split/unroll/vectorize factor.
	Factor int64

	// Order is the permutation of a reorder.
	Order []loopnest.Index
}

// String implements fmt.Stringer.
func (r Record) String() string {
	switch r.Kind {
	case KindSplit:
		return fmt.Sprintf("split(%s, %d) -> %s", r.Index, r.Factor, r.Other)
	case KindReorder:
		parts := make([]string, len(r.Order))
		for ii, idx := range r.Order {
			parts[ii] = idx.String()
		}
		return "reorder(" + strings.Join(parts, ", ") + ")"
	case KindFuse:
		return "fuse()"
	case KindSkew:
		return fmt.Sprintf("skew(%s, %s)", r.Index, r.Other)
	case KindUnroll:
		return fmt.Sprintf("unroll(%s, %d)", r.Index, r.Factor)
	case KindVectorize:
		return fmt.Sprintf("vectorize(%s, %d)", r.Index, r.Factor)
	case KindParallelize:
		return fmt.Sprintf("parallelize(%s)", r.Index)
	default:
		return "invalid()"
	}
}

// Tag accumulates the execution-strategy annotations of one dimension. Tags never change the
// iteration set, only how a backend emits the loop.
type Tag struct {
	Parallel     bool
	UnrollFactor int64 // 0 when not unrolled.
	VectorWidth  int64 // 0 when not vectorized.
}

// SplitInfo records how an inner index produced by Split relates to its outer: the inner loop
// covers Factor iterations of the original increment, and the combined value of the outer's
// derivation subtree is clamped below Bound (the end of the range that was split) to reproduce
// the boundary (non-multiple) tail.
type SplitInfo struct {
	Outer  loopnest.Index
	Factor int64
	Bound  int64
}

// Schedule is a loop nest under transformation: the current Nest, the ordered committed
// records, per-dimension execution tags, and the split bookkeeping needed for boundary
// handling. It is a single-threaded builder; the Nest values it produces are safe to share.
type Schedule struct {
	nest        *loopnest.Nest
	origIndices []loopnest.Index
	records     []Record
	tags        map[loopnest.Index]Tag
	splits      map[loopnest.Index]SplitInfo // keyed by the inner index.
}

// New starts an empty schedule over the given nest, as produced by the front-end.
func New(nest *loopnest.Nest) *Schedule {
	return &Schedule{
		nest:        nest,
		origIndices: nest.Indices(),
		tags:        make(map[loopnest.Index]Tag),
		splits:      make(map[loopnest.Index]SplitInfo),
	}
}

// Nest returns the current loop nest.
func (s *Schedule) Nest() *loopnest.Nest { return s.nest }

// OriginalIndices returns the indices of the nest the schedule started from, in their original
// nesting order.
func (s *Schedule) OriginalIndices() []loopnest.Index {
	return slices.Clone(s.origIndices)
}

// Records returns a copy of the committed transformation records, in application order.
func (s *Schedule) Records() []Record { return slices.Clone(s.records) }

// TagOf returns the execution-strategy tag of idx. The zero Tag means no annotation.
func (s *Schedule) TagOf(idx loopnest.Index) Tag { return s.tags[idx] }

// Tags returns a copy of all execution-strategy tags committed so far.
func (s *Schedule) Tags() map[loopnest.Index]Tag { return maps.Clone(s.tags) }

// SplitOf returns the split bookkeeping for an inner index produced by Split, and whether idx
// is such an index.
func (s *Schedule) SplitOf(idx loopnest.Index) (SplitInfo, bool) {
	info, found := s.splits[idx]
	return info, found
}

// Splits returns a copy of the split bookkeeping, keyed by inner index.
func (s *Schedule) Splits() map[loopnest.Index]SplitInfo { return maps.Clone(s.splits) }

// AllResolved reports whether every range of the current nest has a constant end.
func (s *Schedule) AllResolved() bool { return s.nest.AllResolved() }

// Resolve replaces every unresolved range end in the current nest with a constant supplied by
// the resolver. It fails -- leaving the schedule untouched -- if any end cannot be resolved
// yet.
func (s *Schedule) Resolve(resolver loopnest.EndResolver) error {
	resolved, err := loopnest.ResolveNest(s.nest, resolver)
	if err != nil {
		return err
	}
	s.nest = resolved
	return nil
}

// Clone returns an independent copy of the schedule: transformations applied to the clone do
// not affect the original, making speculative scheduling and rollback trivial.
func (s *Schedule) Clone() *Schedule {
	return &Schedule{
		nest:        s.nest, // Nests are immutable, safe to share.
		origIndices: slices.Clone(s.origIndices),
		records:     slices.Clone(s.records),
		tags:        maps.Clone(s.tags),
		splits:      maps.Clone(s.splits),
	}
}

// commit installs the transformed nest and appends the record. All operators funnel through
// here after their legality checks passed.
func (s *Schedule) commit(nest *loopnest.Nest, record Record) {
	if klog.V(1).Enabled() {
		klog.Infof("schedule: %s: %s -> %s", record, s.nest, nest)
	}
	s.nest = nest
	s.records = append(s.records, record)
}

// inSubtree reports whether idx belongs to the derivation subtree rooted at root: idx is root
// itself, or was split (transitively) from root.
func (s *Schedule) inSubtree(idx, root loopnest.Index) bool {
	for {
		if idx == root {
			return true
		}
		info, found := s.splits[idx]
		if !found {
			return false
		}
		idx = info.Outer
	}
}
