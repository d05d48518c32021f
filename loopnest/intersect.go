package loopnest

// Intersects reports whether the sets of iteration values two Ranges actually visit overlap.
// This is not raw interval overlap of [begin, end): only the begin + k*increment points each
// Range emits are considered, so [0,5:1) and [5,10:1) do not intersect even though the raw
// intervals touch.
//
// Both Ranges must be resolved (constant end); calling it with an unresolved Range violates
// the Range access contract and panics.
func Intersects(a, b Range) bool {
	aIter := a.NumIterations()
	bIter := b.NumIterations()
	if aIter <= 0 || bIter <= 0 {
		return false
	}
	aLast := a.Begin() + (aIter-1)*a.Increment()
	bLast := b.Begin() + (bIter-1)*b.Increment()
	return aLast >= b.Begin() && a.Begin() <= bLast
}
