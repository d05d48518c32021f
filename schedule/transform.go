package schedule

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/lisaong/Accera/loopnest"
	"github.com/lisaong/Accera/types"
)

// Split replaces the range of idx with two nested ranges: idx keeps its begin and end but
// steps by increment*factor, and a new inner index -- returned to the caller, inserted
// immediately inside idx -- covers factor iterations of the original increment. The product of
// their iteration counts reproduces the original count; when the extent is not a multiple of
// the factor, the final outer iteration's inner range is clamped to the boundary tail (see
// SplitOf and Enumerate).
//
// Split requires idx to be bound, the factor to be >= 1, and the range to be resolved.
func (s *Schedule) Split(idx loopnest.Index, factor int64) (loopnest.Index, error) {
	pos := s.nest.Position(idx)
	if pos < 0 {
		return loopnest.Index{}, errors.Errorf("cannot split %s: it is not bound in nest %s", idx, s.nest)
	}
	if factor < 1 {
		return loopnest.Index{}, errors.Errorf("cannot split %s by factor %d: the factor must be >= 1", idx, factor)
	}
	r := s.nest.Binding(pos).Range
	if !r.HasConstantEnd() {
		return loopnest.Index{}, errors.Errorf("cannot split %s: its range %s is unresolved", idx, r)
	}

	inner := loopnest.NewIndex(s.freshName(idx.Name() + "_i"))
	bindings := s.nest.Bindings()
	bindings[pos].Range = loopnest.NewRange(r.Begin(), r.End(), r.Increment()*factor)
	bindings = slices.Insert(bindings, pos+1, loopnest.Binding{
		Index: inner,
		Range: loopnest.NewRange(0, factor*r.Increment(), r.Increment()),
	})
	s.splits[inner] = SplitInfo{Outer: idx, Factor: factor, Bound: r.End()}
	s.commit(loopnest.NewNest(bindings...), Record{Kind: KindSplit, Index: idx, Other: inner, Factor: factor})
	return inner, nil
}

// freshName extends name with "_i" until no currently bound index carries it. Splitting the
// same index twice must yield distinctly named inners: backends name loop variables after the
// Index names, so a collision would emit shadowed declarations.
func (s *Schedule) freshName(name string) string {
	taken := func(name string) bool {
		for _, idx := range s.nest.Indices() {
			if idx.Name() == name {
				return true
			}
		}
		return false
	}
	for taken(name) {
		name += "_i"
	}
	return name
}

// TilePair names one dimension to tile and its tile size.
type TilePair struct {
	Index  loopnest.Index
	Factor int64
}

// Tile blocks the iteration space: it splits each given dimension by its factor and then
// reorders so the tile-outer dimensions stay grouped in their original relative positions and
// all tile-inner dimensions move innermost, in the order given. It returns the new inner
// indices, one per pair.
func (s *Schedule) Tile(pairs ...TilePair) ([]loopnest.Index, error) {
	// Validate everything upfront so a rejection leaves the schedule untouched.
	seen := types.MakeSet[loopnest.Index](len(pairs))
	for _, pair := range pairs {
		if seen.Has(pair.Index) {
			return nil, errors.Errorf("cannot tile: %s given more than once", pair.Index)
		}
		seen.Insert(pair.Index)
		r, found := s.nest.RangeOf(pair.Index)
		if !found {
			return nil, errors.Errorf("cannot tile %s: it is not bound in nest %s", pair.Index, s.nest)
		}
		if pair.Factor < 1 {
			return nil, errors.Errorf("cannot tile %s by factor %d: the factor must be >= 1", pair.Index, pair.Factor)
		}
		if !r.HasConstantEnd() {
			return nil, errors.Errorf("cannot tile %s: its range %s is unresolved", pair.Index, r)
		}
	}

	inners := make([]loopnest.Index, 0, len(pairs))
	for _, pair := range pairs {
		inner, err := s.Split(pair.Index, pair.Factor)
		if err != nil {
			return nil, err
		}
		inners = append(inners, inner)
	}
	innerSet := types.SetWith(inners...)
	order := make([]loopnest.Index, 0, s.nest.Len())
	for _, idx := range s.nest.Indices() {
		if !innerSet.Has(idx) {
			order = append(order, idx)
		}
	}
	order = append(order, inners...)
	if err := s.Reorder(order...); err != nil {
		return nil, err
	}
	return inners, nil
}

// Reorder permutes the nesting order. The order must be an exact permutation of the currently
// bound indices -- nothing dropped, nothing duplicated -- and an inner index produced by Split
// must stay nested inside its outer. On rejection the schedule is unchanged.
func (s *Schedule) Reorder(order ...loopnest.Index) error {
	current := s.nest.Indices()
	if len(order) != len(current) {
		return errors.Errorf("cannot reorder to %d indices: nest %s binds %d", len(order), s.nest, len(current))
	}
	currentSet := types.SetWith(current...)
	seen := types.MakeSet[loopnest.Index](len(order))
	bindings := make([]loopnest.Binding, 0, len(order))
	for ii, idx := range order {
		if !currentSet.Has(idx) {
			return errors.Errorf("cannot reorder: %s is not bound in nest %s", idx, s.nest)
		}
		if seen.Has(idx) {
			return errors.Errorf("cannot reorder: %s appears more than once in the order", idx)
		}
		seen.Insert(idx)
		if info, found := s.splits[idx]; found && !slices.Contains(order[:ii], info.Outer) {
			return errors.Errorf("cannot reorder: inner index %s must stay nested inside its outer %s", idx, info.Outer)
		}
		r, _ := s.nest.RangeOf(idx)
		bindings = append(bindings, loopnest.Binding{Index: idx, Range: r})
	}
	s.commit(loopnest.NewNest(bindings...), Record{Kind: KindReorder, Order: slices.Clone(order)})
	return nil
}

// FuseRanges merges two ranges over the same loop dimension into one covering both iteration
// sets. The merge is legal when the ranges are identical (resolved or not), or when both are
// resolved with equal increments and the second picks up exactly where the first leaves off --
// so visitation order is unchanged. Overlapping iteration sets, gaps, and mismatched end kinds
// are rejected.
func FuseRanges(a, b loopnest.Range) (loopnest.Range, error) {
	if a.Equal(b) {
		return a, nil
	}
	switch {
	case a.HasConstantEnd() && b.HasConstantEnd():
		// Merged below.
	case a.HasIndexEnd() && b.HasIndexEnd(), a.HasOperandIndexEnd() && b.HasOperandIndexEnd():
		return loopnest.Range{}, errors.Errorf("cannot fuse %s and %s: unresolved ranges fuse only when identical", a, b)
	default:
		return loopnest.Range{}, errors.Errorf("cannot fuse %s and %s: incompatible end kinds", a, b)
	}
	if a.Increment() != b.Increment() {
		return loopnest.Range{}, errors.Errorf("cannot fuse %s and %s: increments differ", a, b)
	}
	if a.NumIterations() <= 0 {
		return b, nil
	}
	if b.NumIterations() <= 0 {
		return a, nil
	}
	if loopnest.Intersects(a, b) {
		return loopnest.Range{}, errors.Errorf("cannot fuse %s and %s: their iteration sets overlap", a, b)
	}
	increment := a.Increment()
	switch {
	case b.Begin() == a.LastIterationBegin()+increment:
		return loopnest.NewRange(a.Begin(), b.End(), increment), nil
	case a.Begin() == b.LastIterationBegin()+increment:
		return loopnest.NewRange(b.Begin(), a.End(), increment), nil
	}
	return loopnest.Range{}, errors.Errorf("cannot fuse %s and %s: their iteration sets are not contiguous", a, b)
}

// FuseNests merges two nests binding the same indices in the same order, fusing the ranges of
// each dimension pairwise with FuseRanges.
func FuseNests(a, b *loopnest.Nest) (*loopnest.Nest, error) {
	if !slices.Equal(a.Indices(), b.Indices()) {
		return nil, errors.Errorf("cannot fuse nests %s and %s: they must bind the same indices in the same order", a, b)
	}
	bindings := a.Bindings()
	for ii := range bindings {
		fused, err := FuseRanges(bindings[ii].Range, b.Binding(ii).Range)
		if err != nil {
			return nil, errors.WithMessagef(err, "fusing the bindings of %s", bindings[ii].Index)
		}
		bindings[ii].Range = fused
	}
	return loopnest.NewNest(bindings...), nil
}

// Fuse merges another nest over the same indices into the schedule's current nest, dimension
// by dimension. On rejection the schedule is unchanged.
func (s *Schedule) Fuse(other *loopnest.Nest) error {
	fused, err := FuseNests(s.nest, other)
	if err != nil {
		return err
	}
	s.commit(fused, Record{Kind: KindFuse})
	return nil
}

// Skew widens the range of idx so that, shifted by the position of wrt, the skewed wavefront
// covers the original iteration space: the end grows by (wrt trips - 1) * increment. Both
// ranges must be resolved.
func (s *Schedule) Skew(idx, wrt loopnest.Index) error {
	if idx == wrt {
		return errors.Errorf("cannot skew %s with respect to itself", idx)
	}
	pos := s.nest.Position(idx)
	if pos < 0 {
		return errors.Errorf("cannot skew %s: it is not bound in nest %s", idx, s.nest)
	}
	wr, found := s.nest.RangeOf(wrt)
	if !found {
		return errors.Errorf("cannot skew %s with respect to %s: the latter is not bound in nest %s", idx, wrt, s.nest)
	}
	r := s.nest.Binding(pos).Range
	if !r.HasConstantEnd() || !wr.HasConstantEnd() {
		return errors.Errorf("cannot skew %s with respect to %s: both ranges must be resolved, got %s and %s", idx, wrt, r, wr)
	}
	bindings := s.nest.Bindings()
	bindings[pos].Range = loopnest.NewRange(r.Begin(), r.End()+(wr.NumIterations()-1)*r.Increment(), r.Increment())
	s.commit(loopnest.NewNest(bindings...), Record{Kind: KindSkew, Index: idx, Other: wrt})
	return nil
}

// Unroll tags idx for full or partial unrolling by the given factor. The iteration set is
// unchanged. The trip count must be known, so the range must be resolved.
func (s *Schedule) Unroll(idx loopnest.Index, factor int64) error {
	return s.tag(KindUnroll, idx, factor)
}

// Vectorize tags idx for vectorization with the given width. The iteration set is unchanged.
// The trip count must be known, so the range must be resolved.
func (s *Schedule) Vectorize(idx loopnest.Index, width int64) error {
	return s.tag(KindVectorize, idx, width)
}

// Parallelize tags idx for parallel execution. Unlike Unroll and Vectorize it is allowed on an
// unresolved range: the trip count is deferred to run time.
func (s *Schedule) Parallelize(idx loopnest.Index) error {
	return s.tag(KindParallelize, idx, 0)
}

func (s *Schedule) tag(kind Kind, idx loopnest.Index, factor int64) error {
	r, found := s.nest.RangeOf(idx)
	if !found {
		return errors.Errorf("cannot apply %s: %s is not bound in nest %s", kind, idx, s.nest)
	}
	tag := s.tags[idx]
	switch kind {
	case KindUnroll, KindVectorize:
		if factor < 1 {
			return errors.Errorf("cannot apply %s to %s with factor %d: the factor must be >= 1", kind, idx, factor)
		}
		if !r.HasConstantEnd() {
			return errors.Errorf("cannot apply %s to %s: the trip count of %s is unresolved", kind, idx, r)
		}
		if kind == KindUnroll {
			tag.UnrollFactor = factor
		} else {
			tag.VectorWidth = factor
		}
	default:
		tag.Parallel = true
	}
	s.tags[idx] = tag
	s.commit(s.nest, Record{Kind: kind, Index: idx, Factor: factor})
	return nil
}
