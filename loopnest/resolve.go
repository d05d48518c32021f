package loopnest

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrNotYetResolvable is reported (wrapped) by resolvers when the information needed to turn a
// symbolic Range end into a constant is not yet available. It is a transient condition, not a
// permanent failure: a Range may legitimately remain unresolved until a later compilation stage
// supplies the missing extent. Test for it with errors.Is.
var ErrNotYetResolvable = errors.New("range end is not yet resolvable")

// EndResolver supplies constant extents for symbolic Range ends. The front-end implements it,
// typically backed by the owning computation's dimension-size information or by constant
// folding of the producer expression of an operand.
//
// Both methods return the constant end value, or an error wrapping ErrNotYetResolvable when
// the extent cannot be produced yet.
type EndResolver interface {
	ResolveIndexEnd(idx Index) (int64, error)
	ResolveOperandEnd(op OperandIndex) (int64, error)
}

// Resolve returns a resolved copy of r, consulting resolver for a symbolic end. A Range that
// already has a constant end is returned unchanged. The input is never mutated.
func Resolve(r Range, resolver EndResolver) (Range, error) {
	switch {
	case r.HasConstantEnd():
		return r, nil
	case r.HasIndexEnd():
		end, err := resolver.ResolveIndexEnd(r.EndIndex())
		if err != nil {
			return Range{}, errors.WithMessagef(err, "resolving end of Range %s", r)
		}
		resolved := NewRange(r.Begin(), end, r.Increment())
		klog.V(2).Infof("resolved %s -> %s", r, resolved)
		return resolved, nil
	default:
		end, err := resolver.ResolveOperandEnd(r.EndOperandIndex())
		if err != nil {
			return Range{}, errors.WithMessagef(err, "resolving end of Range %s", r)
		}
		resolved := NewRange(r.Begin(), end, r.Increment())
		klog.V(2).Infof("resolved %s -> %s", r, resolved)
		return resolved, nil
	}
}

// ResolveNest returns a new Nest where every Range has a constant end, or an error identifying
// the first binding that could not be resolved.
func ResolveNest(n *Nest, resolver EndResolver) (*Nest, error) {
	bindings := n.Bindings()
	for ii, binding := range bindings {
		resolved, err := Resolve(binding.Range, resolver)
		if err != nil {
			return nil, errors.WithMessagef(err, "resolving nest binding %s", binding)
		}
		bindings[ii].Range = resolved
	}
	return NewNest(bindings...), nil
}

// DimSizes is an EndResolver backed by a table of per-Index dimension sizes and a list of
// operand extents. Missing entries report ErrNotYetResolvable.
type DimSizes struct {
	// Dims maps a dimension Index to its extent.
	Dims map[Index]int64

	// Operands holds the extents of the externally supplied operands, by position.
	Operands []int64
}

// ResolveIndexEnd implements EndResolver.
func (d DimSizes) ResolveIndexEnd(idx Index) (int64, error) {
	size, found := d.Dims[idx]
	if !found {
		return 0, errors.Wrapf(ErrNotYetResolvable, "no dimension size known for Index %s", idx)
	}
	return size, nil
}

// ResolveOperandEnd implements EndResolver.
func (d DimSizes) ResolveOperandEnd(op OperandIndex) (int64, error) {
	if op < 0 || int(op) >= len(d.Operands) {
		return 0, errors.Wrapf(ErrNotYetResolvable, "no extent known for %s (have %d operands)", op, len(d.Operands))
	}
	return d.Operands[op], nil
}
