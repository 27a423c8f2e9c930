package dlog

import (
	"fmt"

	"github.com/privacybydesign/dlog/group"
	"github.com/privacybydesign/dlog/internal/common"
)

// BsgsEngine solves with the classic baby-step giant-step method: a
// precomputed table of the first m = 2^((bits+1)/2) multiples of G, probed
// from the target by repeated giant steps of -m*G. Deterministic: a target
// inside the range is always found, one outside always reports ErrNotFound.
type BsgsEngine struct {
	g        group.Group
	table    *BabyStepTable
	negGiant group.Point
	limit    uint64
	giants   uint64
}

var _ Solver = (*BsgsEngine)(nil)

// GenerateBabyStepTable computes the baby-step table for the given range,
// splitting the work over the given number of workers (0 means all CPU
// cores).
func GenerateBabyStepTable(g group.Group, rangeBits uint, workers int) (*BabyStepTable, error) {
	if !validRangeBits(rangeBits) {
		return nil, fmt.Errorf("%w: range bits %d outside [1, %d]", ErrInvalidConfig, rangeBits, MaxRangeBits)
	}
	entries, err := generateBabyEntries(g, rangeBits, workers, nil)
	if err != nil {
		return nil, err
	}
	return AssembleBabyStepTable(g.Name(), g.CompressedSize(), rangeBits, entries)
}

// NewBsgsEngine generates a fresh table and wraps it.
func NewBsgsEngine(g group.Group, rangeBits uint, workers int) (*BsgsEngine, error) {
	table, err := GenerateBabyStepTable(g, rangeBits, workers)
	if err != nil {
		return nil, err
	}
	return NewBsgsEngineFromTable(g, table)
}

// NewBsgsEngineFromTable wraps a shared or loaded table after checking it
// belongs to the group.
func NewBsgsEngineFromTable(g group.Group, table *BabyStepTable) (*BsgsEngine, error) {
	if err := checkBabyTable(g, table); err != nil {
		return nil, err
	}
	limit := rangeSize(table.RangeBits())
	return &BsgsEngine{
		g:        g,
		table:    table,
		negGiant: g.ScalarBaseMult(table.M()).Negate(),
		limit:    limit,
		giants:   common.CeilDiv(limit, table.M()),
	}, nil
}

func checkBabyTable(g group.Group, table *BabyStepTable) error {
	if table == nil {
		return fmt.Errorf("%w: nil table", ErrInvalidConfig)
	}
	if table.GroupName() != g.Name() {
		return fmt.Errorf("%w: table built for group %q, engine runs on %q", ErrTableMismatch, table.GroupName(), g.Name())
	}
	if table.KeySize() != g.CompressedSize() {
		return fmt.Errorf("%w: table keys are %d bytes, group compresses to %d", ErrTableMismatch, table.KeySize(), g.CompressedSize())
	}
	return nil
}

func (e *BsgsEngine) AlgorithmName() string { return "bsgs" }

func (e *BsgsEngine) RangeBits() uint { return e.table.RangeBits() }

// Table returns the engine's table for sharing with other engines or for
// persistence.
func (e *BsgsEngine) Table() *BabyStepTable { return e.table }

func (e *BsgsEngine) Solve(target group.Point) (uint64, error) {
	return babyGiantSolve(e.g, e.table, e.negGiant, e.giants, target, nil, 0)
}

// babyGiantSolve probes target, target - m*G, target - 2m*G, ... against
// the baby-step table; a hit at giant step j with baby exponent i solves
// x = j*m + i. With a batcher the probes go through batched group calls,
// batchWidth at a time. The giant steps tile [0, 2^bits) exactly, so probe
// exhaustion proves the target is outside the range.
func babyGiantSolve(g group.Group, table *BabyStepTable, negGiant group.Point, giants uint64, target group.Point, batcher group.Batcher, batchWidth int) (uint64, error) {
	if target.Equal(g.Identity()) {
		return 0, nil
	}
	m := table.M()

	if batcher == nil {
		cur := target
		for j := uint64(0); j < giants; j++ {
			if i, ok := table.lookup(cur.Compress()); ok {
				return j*m + i, nil
			}
			cur = cur.Add(negGiant)
		}
		return 0, ErrNotFound
	}

	cur := target
	for done := uint64(0); done < giants; {
		count := giants - done
		if count > uint64(batchWidth) {
			count = uint64(batchWidth)
		}
		keys, next, err := batcher.BatchAdvanceAndCompress(cur, negGiant, int(count))
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrGroupOperation, err)
		}
		for idx, key := range keys {
			if i, ok := table.lookup(key); ok {
				return (done+uint64(idx))*m + i, nil
			}
		}
		done += count
		cur = next
	}
	return 0, ErrNotFound
}
