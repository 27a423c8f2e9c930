package dlog

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/privacybydesign/dlog/group"
)

// CachingSolver memoizes the results of another solver, keyed by compressed
// target. Useful when the same handful of exponents keeps coming back, as
// with repeated commitment openings. Only successes are cached; ErrNotFound
// from the probabilistic engines may well succeed on retry.
type CachingSolver struct {
	inner  Solver
	cache  *lru.Cache
	hits   uint64
	misses uint64
}

var _ Solver = (*CachingSolver)(nil)

// NewCachingSolver wraps inner with an LRU of the given size.
func NewCachingSolver(inner Solver, size int) (*CachingSolver, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: nil solver", ErrInvalidConfig)
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("%w: cache size %d", ErrInvalidConfig, size)
	}
	return &CachingSolver{inner: inner, cache: cache}, nil
}

func (c *CachingSolver) AlgorithmName() string { return c.inner.AlgorithmName() }

func (c *CachingSolver) RangeBits() uint { return c.inner.RangeBits() }

func (c *CachingSolver) Solve(target group.Point) (uint64, error) {
	key := string(target.Compress())
	if x, ok := c.cache.Get(key); ok {
		atomic.AddUint64(&c.hits, 1)
		return x.(uint64), nil
	}
	atomic.AddUint64(&c.misses, 1)

	x, err := c.inner.Solve(target)
	if err != nil {
		return 0, err
	}
	c.cache.Add(key, x)
	return x, nil
}

// Stats returns how many Solve calls were answered from the cache and how
// many went through to the wrapped solver.
func (c *CachingSolver) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}
