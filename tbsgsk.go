package dlog

import (
	"bytes"
	"fmt"

	"github.com/privacybydesign/dlog/group"
	"github.com/privacybydesign/dlog/internal/common"
)

// TbsgsKEngine is the batched baby-step giant-step variant with truncated
// table keys: the table stores only the first KeyBytes bytes of each
// compressed key, shrinking it by an order of magnitude at the cost of
// candidate collisions. Every candidate from a truncated hit is verified
// against the full-width key before it is returned, so collisions cost
// time, never correctness.
type TbsgsKEngine struct {
	g        group.Group
	batcher  group.Batcher
	table    *TruncatedBabyStepTable
	negGiant group.Point
	giants   uint64
}

var _ Solver = (*TbsgsKEngine)(nil)

// GenerateTruncatedBabyStepTable computes the truncated baby-step table for
// the given range and truncation width. Batched group calls are used when
// the group supports them.
func GenerateTruncatedBabyStepTable(g group.Group, rangeBits uint, keyBytes, workers int) (*TruncatedBabyStepTable, error) {
	if !validRangeBits(rangeBits) {
		return nil, fmt.Errorf("%w: range bits %d outside [1, %d]", ErrInvalidConfig, rangeBits, MaxRangeBits)
	}
	if err := checkTruncationWidth(g.CompressedSize(), keyBytes, babyCount(rangeBits)); err != nil {
		return nil, err
	}

	batcher, _ := g.(group.Batcher)
	entries, err := generateBabyEntries(g, rangeBits, workers, batcher)
	if err != nil {
		return nil, err
	}

	// Bucket in ascending exponent order so colliding candidates are tried
	// smallest first.
	buckets := make(map[uint64][]uint64)
	for _, entry := range entries {
		key := truncateKey(entry.Key, keyBytes)
		buckets[key] = append(buckets[key], entry.Exponent)
	}
	truncated := make([]TruncatedEntry, 0, len(buckets))
	for key, exps := range buckets {
		truncated = append(truncated, TruncatedEntry{Key: key, Exponents: exps})
	}
	return AssembleTruncatedBabyStepTable(g.Name(), g.CompressedSize(), keyBytes, rangeBits, truncated)
}

// NewTbsgsKEngine generates a fresh truncated table and wraps it.
func NewTbsgsKEngine(g group.Group, rangeBits uint, keyBytes, workers int) (*TbsgsKEngine, error) {
	table, err := GenerateTruncatedBabyStepTable(g, rangeBits, keyBytes, workers)
	if err != nil {
		return nil, err
	}
	return NewTbsgsKEngineFromTable(g, table)
}

// NewTbsgsKEngineFromTable wraps a shared or loaded table after checking it
// belongs to the group.
func NewTbsgsKEngineFromTable(g group.Group, table *TruncatedBabyStepTable) (*TbsgsKEngine, error) {
	batcher, ok := g.(group.Batcher)
	if !ok {
		return nil, fmt.Errorf("%w: group %s does not support batched operations", ErrInvalidConfig, g.Name())
	}
	if table == nil {
		return nil, fmt.Errorf("%w: nil table", ErrInvalidConfig)
	}
	if table.GroupName() != g.Name() {
		return nil, fmt.Errorf("%w: table built for group %q, engine runs on %q", ErrTableMismatch, table.GroupName(), g.Name())
	}
	if table.KeySize() != g.CompressedSize() {
		return nil, fmt.Errorf("%w: table keys are %d bytes, group compresses to %d", ErrTableMismatch, table.KeySize(), g.CompressedSize())
	}
	limit := rangeSize(table.RangeBits())
	return &TbsgsKEngine{
		g:        g,
		batcher:  batcher,
		table:    table,
		negGiant: g.ScalarBaseMult(table.M()).Negate(),
		giants:   common.CeilDiv(limit, table.M()),
	}, nil
}

func (e *TbsgsKEngine) AlgorithmName() string { return "tbsgs-k" }

func (e *TbsgsKEngine) RangeBits() uint { return e.table.RangeBits() }

// Table returns the engine's table for sharing with other engines or for
// persistence.
func (e *TbsgsKEngine) Table() *TruncatedBabyStepTable { return e.table }

func (e *TbsgsKEngine) Solve(target group.Point) (uint64, error) {
	if target.Equal(e.g.Identity()) {
		return 0, nil
	}
	m := e.table.M()

	cur := target
	for done := uint64(0); done < e.giants; {
		count := e.giants - done
		if count > bsgsBatchWidth {
			count = bsgsBatchWidth
		}
		keys, next, err := e.batcher.BatchAdvanceAndCompress(cur, e.negGiant, int(count))
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrGroupOperation, err)
		}
		for idx, key := range keys {
			for _, i := range e.table.lookup(key) {
				// A truncated hit only proposes i; the candidate stands
				// once i*G matches the probe's full-width key.
				if bytes.Equal(e.g.ScalarBaseMult(i).Compress(), key) {
					return (done+uint64(idx))*m + i, nil
				}
			}
		}
		done += count
		cur = next
	}
	return 0, ErrNotFound
}
