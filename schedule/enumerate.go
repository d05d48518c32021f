package schedule

import (
	"github.com/pkg/errors"

	"github.com/lisaong/Accera/loopnest"
)

// Enumerate walks the scheduled iteration space and returns, for every execution of the
// innermost body, the values of the ORIGINAL loop dimensions in their original nesting order.
// Split inner loops are clamped at boundary (non-multiple) tails exactly as a backend must emit
// them, so splitting and tiling never change the returned points -- which is what makes this
// the reference oracle for transformation correctness tests.
//
// It requires a fully resolved nest with positive increments, and is intended for verification
// and diagnostics, not for production-size iteration spaces. Skewed schedules are rejected:
// their widened ranges visit points the skewed wavefront predicates away, and that predication
// happens in the lowering backend, outside this walk.
func (s *Schedule) Enumerate() ([][]int64, error) {
	if !s.nest.AllResolved() {
		return nil, errors.Errorf("cannot enumerate nest %s: it has unresolved ranges", s.nest)
	}
	for _, record := range s.records {
		if record.Kind == KindSkew {
			return nil, errors.Errorf("cannot enumerate nest %s: skewed ranges need per-iteration predication", s.nest)
		}
	}
	for _, binding := range s.nest.Bindings() {
		if binding.Range.Increment() < 0 {
			return nil, errors.Errorf("cannot enumerate nest %s: %s has a negative increment", s.nest, binding)
		}
	}

	var rows [][]int64
	values := make(map[loopnest.Index]int64, s.nest.Len())
	var recur func(pos int)
	recur = func(pos int) {
		if pos == s.nest.Len() {
			row := make([]int64, len(s.origIndices))
			for di, dim := range s.origIndices {
				row[di] = s.subtreeSum(dim, values)
			}
			rows = append(rows, row)
			return
		}
		binding := s.nest.Binding(pos)
		limit := s.clampLimit(binding, values)
		for v := binding.Range.Begin(); v < limit; v += binding.Range.Increment() {
			values[binding.Index] = v
			recur(pos + 1)
		}
		delete(values, binding.Index)
	}
	recur(0)
	return rows, nil
}

// clampLimit returns the (exclusive) upper bound for the loop variable of binding, given the
// values of the enclosing loops: the range's own end, tightened by every split constraint whose
// derivation subtree the index belongs to. This is what reproduces the narrower inner range of
// the final outer iteration of a split.
func (s *Schedule) clampLimit(binding loopnest.Binding, values map[loopnest.Index]int64) int64 {
	limit := binding.Range.End()
	for _, info := range s.splits {
		if !s.inSubtree(binding.Index, info.Outer) {
			continue
		}
		if bound := info.Bound - s.subtreeSum(info.Outer, values); bound < limit {
			limit = bound
		}
	}
	return limit
}

// subtreeSum adds up the assigned values of all indices in the derivation subtree rooted at
// root. For a dimension that was never split this is just its own loop value.
func (s *Schedule) subtreeSum(root loopnest.Index, values map[loopnest.Index]int64) int64 {
	var sum int64
	for idx, v := range values {
		if s.inSubtree(idx, root) {
			sum += v
		}
	}
	return sum
}
