package loopnest

import (
	"cmp"
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/lisaong/Accera/types"
)

// endKind discriminates the three forms a Range's end can take. Every access to the end goes
// through an exhaustive switch on this tag; an impossible value panics rather than defaulting
// to a numeric sentinel.
type endKind uint8

const (
	endConstant endKind = iota
	endIndex
	endOperand
)

// Range is the iteration domain of one loop dimension: it visits begin, begin+increment,
// begin+2*increment, ... while the value is smaller than end (half-open interval).
//
// Begin and increment are always concrete constants. The end is either a resolved constant, or
// an unresolved reference to an Index or to an OperandIndex -- see the package documentation
// for the access contract. A Range is an immutable value: transformations and resolution build
// new Ranges, they never mutate one in place.
//
// Use NewRange, NewRangeIndexEnd or NewRangeOperandEnd to construct one; the zero Range is not
// meaningful.
type Range struct {
	begin     int64
	increment int64

	kind   endKind
	end    int64
	endIdx Index
	endOp  OperandIndex
}

// NewRange returns a resolved Range `[begin, end : increment)`. A zero increment panics.
func NewRange(begin, end, increment int64) Range {
	checkIncrement(increment)
	return Range{begin: begin, end: end, increment: increment, kind: endConstant}
}

// NewRangeIndexEnd returns an unresolved Range whose end is the (not yet fixed) extent of the
// dimension named by endIdx.
func NewRangeIndexEnd(begin int64, endIdx Index, increment int64) Range {
	checkIncrement(increment)
	if !endIdx.Ok() {
		exceptions.Panicf("loopnest.NewRangeIndexEnd: invalid (zero) end Index")
	}
	return Range{begin: begin, endIdx: endIdx, increment: increment, kind: endIndex}
}

// NewRangeOperandEnd returns an unresolved Range whose end is the extent of the external
// operand at position endOp.
func NewRangeOperandEnd(begin int64, endOp OperandIndex, increment int64) Range {
	checkIncrement(increment)
	return Range{begin: begin, endOp: endOp, increment: increment, kind: endOperand}
}

func checkIncrement(increment int64) {
	if increment == 0 {
		exceptions.Panicf("loopnest: a Range increment of 0 is invalid")
	}
}

// Begin returns the first iteration value. Always defined.
func (r Range) Begin() int64 { return r.begin }

// Increment returns the step size. Always defined and non-zero.
func (r Range) Increment() int64 { return r.increment }

// HasConstantEnd reports whether the end has been resolved to a constant.
func (r Range) HasConstantEnd() bool { return r.kind == endConstant }

// HasIndexEnd reports whether the end is an unresolved reference to an Index.
func (r Range) HasIndexEnd() bool { return r.kind == endIndex }

// HasOperandIndexEnd reports whether the end is an unresolved reference to an operand position.
func (r Range) HasOperandIndexEnd() bool { return r.kind == endOperand }

// End returns the constant end. It panics if the Range is unresolved: the Range must be
// resolved before requesting End().
func (r Range) End() int64 {
	switch r.kind {
	case endConstant:
		return r.end
	case endIndex, endOperand:
		exceptions.Panicf("loopnest: Range %s must be resolved before requesting End()", r)
	default:
		exceptions.Panicf("loopnest: Range with unsupported end kind %d", r.kind)
	}
	return 0
}

// EndIndex returns the Index the end refers to. It panics if the end is not Index-symbolic.
func (r Range) EndIndex() Index {
	switch r.kind {
	case endIndex:
		return r.endIdx
	case endConstant:
		exceptions.Panicf("loopnest: calling EndIndex() on the constant-end Range %s", r)
	case endOperand:
		exceptions.Panicf("loopnest: calling EndIndex() on the operand-end Range %s", r)
	default:
		exceptions.Panicf("loopnest: Range with unsupported end kind %d", r.kind)
	}
	return Index{}
}

// EndOperandIndex returns the operand position the end refers to. It panics if the end is not
// operand-symbolic.
func (r Range) EndOperandIndex() OperandIndex {
	switch r.kind {
	case endOperand:
		return r.endOp
	case endConstant:
		exceptions.Panicf("loopnest: calling EndOperandIndex() on the constant-end Range %s", r)
	case endIndex:
		exceptions.Panicf("loopnest: calling EndOperandIndex() on the Index-end Range %s", r)
	default:
		exceptions.Panicf("loopnest: Range with unsupported end kind %d", r.kind)
	}
	return 0
}

// Size returns End() - Begin(). Requires a resolved Range.
func (r Range) Size() int64 { return r.End() - r.Begin() }

// NumIterations returns the number of iteration values the Range visits,
// ceil((end-begin)/increment). Requires a resolved Range.
func (r Range) NumIterations() int64 {
	return types.CeilDiv(r.End()-r.Begin(), r.Increment())
}

// LastIterationBegin returns the begin value of the final iteration actually executed. When
// (end-begin) is not an exact multiple of the increment this is the boundary iteration's begin,
// otherwise simply end-increment. Requires a resolved Range.
func (r Range) LastIterationBegin() int64 {
	result := r.End() - (r.Size() % r.Increment())
	if result == r.End() { // not a boundary
		result = r.End() - r.Increment()
	}
	return result
}

// Equal reports whether two Ranges denote the same iteration domain. Ranges with different end
// kinds are never equal: resolution may not have happened yet, and an unresolved end must not
// be assumed to coincide with any particular constant.
func (r Range) Equal(other Range) bool {
	if r.begin != other.begin || r.increment != other.increment || r.kind != other.kind {
		return false
	}
	switch r.kind {
	case endConstant:
		return r.end == other.end
	case endIndex:
		return r.endIdx == other.endIdx
	case endOperand:
		return r.endOp == other.endOp
	default:
		exceptions.Panicf("loopnest: Range with unsupported end kind %d", r.kind)
	}
	return false
}

// Compare returns -1, 0 or +1, providing a strict total order over Ranges, consistent with
// Equal: lexicographic on begin, then the end kind, then the end value within that kind, then
// the increment. Comparing the kind tag before any end values keeps the order transitive;
// ordering a resolved Range against an unresolved one is semantically meaningless, but sorted
// containers stay well defined.
func (r Range) Compare(other Range) int {
	if c := cmp.Compare(r.begin, other.begin); c != 0 {
		return c
	}
	if c := cmp.Compare(r.kind, other.kind); c != 0 {
		return c
	}
	var c int
	switch r.kind {
	case endConstant:
		c = cmp.Compare(r.end, other.end)
	case endIndex:
		c = r.endIdx.Compare(other.endIdx)
	case endOperand:
		c = cmp.Compare(r.endOp, other.endOp)
	default:
		exceptions.Panicf("loopnest: Range with unsupported end kind %d", r.kind)
	}
	if c != 0 {
		return c
	}
	return cmp.Compare(r.increment, other.increment)
}

// String implements fmt.Stringer, printing `[begin,end:increment)`. Diagnostic format only,
// it is not parsed back.
func (r Range) String() string {
	switch r.kind {
	case endConstant:
		return fmt.Sprintf("[%d,%d:%d)", r.begin, r.end, r.increment)
	case endIndex:
		return fmt.Sprintf("[%d,%s:%d)", r.begin, r.endIdx, r.increment)
	case endOperand:
		return fmt.Sprintf("[%d,%s:%d)", r.begin, r.endOp, r.increment)
	default:
		return fmt.Sprintf("[%d,<unsupported end kind %d>:%d)", r.begin, r.kind, r.increment)
	}
}
