package dlog

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/privacybydesign/dlog/group"
)

// countingSolver counts how often Solve reaches the wrapped solver.
type countingSolver struct {
	inner Solver
	calls uint64
}

func (s *countingSolver) AlgorithmName() string { return s.inner.AlgorithmName() }
func (s *countingSolver) RangeBits() uint       { return s.inner.RangeBits() }

func (s *countingSolver) Solve(target group.Point) (uint64, error) {
	atomic.AddUint64(&s.calls, 1)
	return s.inner.Solve(target)
}

func testCachedSolver(t *testing.T, size int) (*group.Ed25519Group, *countingSolver, *CachingSolver) {
	t.Helper()
	g := group.NewEd25519Group()
	table, err := GenerateBabyStepTable(g, 16, 0)
	require.NoError(t, err)
	engine, err := NewNaiveLookupEngine(g, table, 8)
	require.NoError(t, err)

	counting := &countingSolver{inner: engine}
	cached, err := NewCachingSolver(counting, size)
	require.NoError(t, err)
	return g, counting, cached
}

func TestCachingSolverHitsAndMisses(t *testing.T) {
	g, counting, cached := testCachedSolver(t, 16)
	require.Equal(t, "naive", cached.AlgorithmName())
	require.Equal(t, uint(8), cached.RangeBits())

	got, err := cached.Solve(g.ScalarBaseMult(5))
	require.NoError(t, err)
	require.EqualValues(t, 5, got)
	got, err = cached.Solve(g.ScalarBaseMult(5))
	require.NoError(t, err)
	require.EqualValues(t, 5, got)

	hits, misses := cached.Stats()
	require.EqualValues(t, 1, hits)
	require.EqualValues(t, 1, misses)
	require.EqualValues(t, 1, atomic.LoadUint64(&counting.calls))

	_, err = cached.Solve(g.ScalarBaseMult(6))
	require.NoError(t, err)
	hits, misses = cached.Stats()
	require.EqualValues(t, 1, hits)
	require.EqualValues(t, 2, misses)
}

func TestCachingSolverDoesNotCacheFailures(t *testing.T) {
	g, counting, cached := testCachedSolver(t, 16)

	for i := 0; i < 2; i++ {
		_, err := cached.Solve(g.ScalarBaseMult(300))
		require.ErrorIs(t, err, ErrNotFound)
	}
	// Both failures must have reached the solver.
	require.EqualValues(t, 2, atomic.LoadUint64(&counting.calls))
	hits, misses := cached.Stats()
	require.Zero(t, hits)
	require.EqualValues(t, 2, misses)
}

func TestCachingSolverEviction(t *testing.T) {
	g, counting, cached := testCachedSolver(t, 1)

	for _, x := range []uint64{1, 2, 1} {
		got, err := cached.Solve(g.ScalarBaseMult(x))
		require.NoError(t, err)
		require.Equal(t, x, got)
	}
	// Solving 2 evicted 1, so the third call misses again.
	require.EqualValues(t, 3, atomic.LoadUint64(&counting.calls))
	hits, _ := cached.Stats()
	require.Zero(t, hits)
}

func TestCachingSolverConcurrent(t *testing.T) {
	g, counting, cached := testCachedSolver(t, 16)
	targets := []uint64{3, 77, 200, 255}

	var eg errgroup.Group
	for w := 0; w < 8; w++ {
		eg.Go(func() error {
			for n := 0; n < 100; n++ {
				x := targets[n%len(targets)]
				got, err := cached.Solve(g.ScalarBaseMult(x))
				if err != nil {
					return err
				}
				if got != x {
					return fmt.Errorf("solved %d, want %d", got, x)
				}
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	hits, misses := cached.Stats()
	require.EqualValues(t, 800, hits+misses)
	// Every miss goes through to the solver, nothing else does.
	require.Equal(t, misses, atomic.LoadUint64(&counting.calls))
	require.GreaterOrEqual(t, misses, uint64(len(targets)))
}

func TestCachingSolverInvalidConfig(t *testing.T) {
	_, counting, _ := testCachedSolver(t, 16)

	_, err := NewCachingSolver(nil, 16)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewCachingSolver(counting, 0)
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = NewCachingSolver(counting, -3)
	require.ErrorIs(t, err, ErrInvalidConfig)
}
