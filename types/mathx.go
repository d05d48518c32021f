package types

import "golang.org/x/exp/constraints"

// CeilDiv returns the quotient of a/b rounded towards positive infinity.
// Go's integer division truncates towards zero, which differs for negative operands.
func CeilDiv[T constraints.Signed](a, b T) T {
	q := a / b
	if r := a % b; r != 0 && (r < 0) == (b < 0) {
		q++
	}
	return q
}
