package dlog

import (
	"github.com/privacybydesign/dlog/group"
)

// Solver recovers exponents from group elements: Solve returns the x with
// x*G == target and 0 <= x < 2^RangeBits(), or ErrNotFound when no such x
// exists in the range (for the probabilistic engines: when none was found
// within their step budget). Implementations are safe for concurrent use
// once constructed.
type Solver interface {
	AlgorithmName() string
	RangeBits() uint
	Solve(target group.Point) (uint64, error)
}

// MaxRangeBits bounds the exponent ranges the engines accept. The tables
// themselves stay modest (a 48-bit baby-step table has 2^24 rows), and all
// exponent arithmetic fits comfortably in uint64 far below any group order.
const MaxRangeBits = 48

func validRangeBits(bits uint) bool {
	return bits >= 1 && bits <= MaxRangeBits
}

// rangeSize returns 2^bits. Only call with validated bits.
func rangeSize(bits uint) uint64 {
	return 1 << bits
}

// babyCount returns the baby-step table size m = 2^((bits+1)/2), the
// power-of-two ceiling of sqrt(2^bits). m always divides 2^bits, so the
// giant steps tile the range exactly.
func babyCount(bits uint) uint64 {
	return 1 << ((bits + 1) / 2)
}
