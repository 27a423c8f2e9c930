package dlog

import (
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/privacybydesign/dlog/group"
	"github.com/privacybydesign/dlog/internal/common"
)

// generateBatchWidth bounds how many points a single batched group call
// handles during table generation.
const generateBatchWidth = 1024

func defaultWorkers(workers int) int {
	if workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return workers
}

// generateBabyEntries computes the compressed keys of e*G for all e in
// [0, m). The exponent space is split into one contiguous chunk per worker;
// each worker seeds its chunk with a single scalar multiplication and walks
// the rest by repeated generator additions, writing into its own slice of
// the preallocated result. A non-nil batcher moves the walk into batched
// group calls.
func generateBabyEntries(g group.Group, rangeBits uint, workers int, batcher group.Batcher) ([]BabyStepEntry, error) {
	m := babyCount(rangeBits)
	n := uint64(defaultWorkers(workers))
	if n > m {
		n = m
	}
	chunk := common.CeilDiv(m, n)

	start := time.Now()
	Follower.StepStart("baby steps", int(n))
	defer Follower.StepDone()

	entries := make([]BabyStepEntry, m)
	gen := g.Generator()

	var eg errgroup.Group
	for w := uint64(0); w < n; w++ {
		from := w * chunk
		to := from + chunk
		if to > m {
			to = m
		}
		eg.Go(func() error {
			defer Follower.Tick()
			cur := g.ScalarBaseMult(from)
			if batcher == nil {
				for e := from; e < to; e++ {
					entries[e] = BabyStepEntry{Key: cur.Compress(), Exponent: e}
					cur = cur.Add(gen)
				}
				return nil
			}
			for e := from; e < to; {
				count := to - e
				if count > generateBatchWidth {
					count = generateBatchWidth
				}
				keys, next, err := batcher.BatchAdvanceAndCompress(cur, gen, int(count))
				if err != nil {
					return fmt.Errorf("%w: %v", ErrGroupOperation, err)
				}
				for idx, key := range keys {
					entries[e+uint64(idx)] = BabyStepEntry{Key: key, Exponent: e + uint64(idx)}
				}
				e += count
				cur = next
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	Logger.Debugf("dlog: computed %d baby steps for %d-bit range in %s", m, rangeBits, time.Since(start))
	return entries, nil
}
