package dlog

import (
	"fmt"

	"github.com/privacybydesign/dlog/group"
)

// NaiveLookupEngine answers small ranges with a single table lookup. It
// reuses a baby-step table covering at least the whole range, typically one
// shared with a BSGS engine for a larger range: a 32-bit baby-step table
// holds all multiples up to 2^16 and so serves 16-bit naive lookups as-is.
type NaiveLookupEngine struct {
	g         group.Group
	table     *BabyStepTable
	rangeBits uint
	limit     uint64
}

var _ Solver = (*NaiveLookupEngine)(nil)

// NewNaiveLookupEngine wraps a table whose baby steps cover all of
// [0, 2^rangeBits).
func NewNaiveLookupEngine(g group.Group, table *BabyStepTable, rangeBits uint) (*NaiveLookupEngine, error) {
	if err := checkBabyTable(g, table); err != nil {
		return nil, err
	}
	if !validRangeBits(rangeBits) {
		return nil, fmt.Errorf("%w: range bits %d outside [1, %d]", ErrInvalidConfig, rangeBits, MaxRangeBits)
	}
	limit := rangeSize(rangeBits)
	if limit > table.M() {
		return nil, fmt.Errorf("%w: table covers %d exponents, %d-bit lookups need %d", ErrInvalidConfig, table.M(), rangeBits, limit)
	}
	return &NaiveLookupEngine{g: g, table: table, rangeBits: rangeBits, limit: limit}, nil
}

func (e *NaiveLookupEngine) AlgorithmName() string { return "naive" }

func (e *NaiveLookupEngine) RangeBits() uint { return e.rangeBits }

// Table returns the shared table.
func (e *NaiveLookupEngine) Table() *BabyStepTable { return e.table }

func (e *NaiveLookupEngine) Solve(target group.Point) (uint64, error) {
	if target.Equal(e.g.Identity()) {
		return 0, nil
	}
	x, ok := e.table.lookup(target.Compress())
	if !ok || x >= e.limit {
		return 0, ErrNotFound
	}
	return x, nil
}
