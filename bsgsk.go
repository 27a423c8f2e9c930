package dlog

import (
	"fmt"

	"github.com/privacybydesign/dlog/group"
	"github.com/privacybydesign/dlog/internal/common"
)

// bsgsBatchWidth is how many giant-step probes the batched engines hand to
// a single group call.
const bsgsBatchWidth = 256

// BsgsKEngine is BsgsEngine with construction and giant-step probing routed
// through the group's batched operations, which amortize the expensive part
// of key compression (one field inversion per batch instead of per point).
// Identical solve contract and bit-identical tables; it only works on
// groups implementing group.Batcher.
type BsgsKEngine struct {
	g        group.Group
	batcher  group.Batcher
	table    *BabyStepTable
	negGiant group.Point
	giants   uint64
}

var _ Solver = (*BsgsKEngine)(nil)

// GenerateBabyStepTableBatched computes the same table as
// GenerateBabyStepTable through batched group calls.
func GenerateBabyStepTableBatched(g group.Group, rangeBits uint, workers int) (*BabyStepTable, error) {
	batcher, ok := g.(group.Batcher)
	if !ok {
		return nil, fmt.Errorf("%w: group %s does not support batched operations", ErrInvalidConfig, g.Name())
	}
	if !validRangeBits(rangeBits) {
		return nil, fmt.Errorf("%w: range bits %d outside [1, %d]", ErrInvalidConfig, rangeBits, MaxRangeBits)
	}
	entries, err := generateBabyEntries(g, rangeBits, workers, batcher)
	if err != nil {
		return nil, err
	}
	return AssembleBabyStepTable(g.Name(), g.CompressedSize(), rangeBits, entries)
}

// NewBsgsKEngine generates a fresh table through batched group calls and
// wraps it.
func NewBsgsKEngine(g group.Group, rangeBits uint, workers int) (*BsgsKEngine, error) {
	table, err := GenerateBabyStepTableBatched(g, rangeBits, workers)
	if err != nil {
		return nil, err
	}
	return NewBsgsKEngineFromTable(g, table)
}

// NewBsgsKEngineFromTable wraps a shared or loaded table after checking it
// belongs to the group. Tables are interchangeable with BsgsEngine's.
func NewBsgsKEngineFromTable(g group.Group, table *BabyStepTable) (*BsgsKEngine, error) {
	batcher, ok := g.(group.Batcher)
	if !ok {
		return nil, fmt.Errorf("%w: group %s does not support batched operations", ErrInvalidConfig, g.Name())
	}
	if err := checkBabyTable(g, table); err != nil {
		return nil, err
	}
	limit := rangeSize(table.RangeBits())
	return &BsgsKEngine{
		g:        g,
		batcher:  batcher,
		table:    table,
		negGiant: g.ScalarBaseMult(table.M()).Negate(),
		giants:   common.CeilDiv(limit, table.M()),
	}, nil
}

func (e *BsgsKEngine) AlgorithmName() string { return "bsgs-k" }

func (e *BsgsKEngine) RangeBits() uint { return e.table.RangeBits() }

// Table returns the engine's table for sharing with other engines or for
// persistence.
func (e *BsgsKEngine) Table() *BabyStepTable { return e.table }

func (e *BsgsKEngine) Solve(target group.Point) (uint64, error) {
	return babyGiantSolve(e.g, e.table, e.negGiant, e.giants, target, e.batcher, bsgsBatchWidth)
}
