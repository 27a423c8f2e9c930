package dlog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/dchest/siphash"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"

	"github.com/privacybydesign/dlog/group"
	"github.com/privacybydesign/dlog/internal/common"
)

const (
	// bl12HerdWidth is how many tame walks a generation worker advances in
	// lockstep, so batched key compression can amortize over the herd.
	bl12HerdWidth = 64

	// bl12AttemptFactor bounds generation: after TableSize times this many
	// tame walks the table is returned as-is, full or not.
	bl12AttemptFactor = 1000
)

// Bl12Settings configures distinguished-point table generation and the
// online walk budget of the kangaroo engine.
type Bl12Settings struct {
	RangeBits uint

	// TableSize is the number of distinguished points to collect.
	TableSize uint64

	// WalkSpacing (W) sets the distinguished-point density: a point is
	// distinguished with probability 1/W. Power of two.
	WalkSpacing uint64

	// StepArraySize (R) is the number of pseudorandom step sizes walks
	// choose from. Power of two.
	StepArraySize uint64

	// WalkMultiplier bounds walks at WalkMultiplier*WalkSpacing steps
	// before they are abandoned.
	WalkMultiplier uint64

	// StepBits is the size in bits of each random step; steps are drawn
	// from [1, 2^StepBits]. 0 derives it from the range and spacing.
	StepBits uint

	// MaxOnlineSteps bounds the total group operations a single Solve may
	// spend before reporting ErrNotFound. 0 means four full walk budgets.
	MaxOnlineSteps uint64

	// Seed determines the step sizes and the walk function. nil draws a
	// fresh 32-byte seed; fixing it makes generation reproducible.
	Seed []byte

	Workers int
}

// complete validates cfg against the group and fills in the derived
// defaults.
func (cfg Bl12Settings) complete(g group.Group) (Bl12Settings, error) {
	if !validRangeBits(cfg.RangeBits) {
		return cfg, fmt.Errorf("%w: range bits %d outside [1, %d]", ErrInvalidConfig, cfg.RangeBits, MaxRangeBits)
	}
	if g.CompressedSize() < 8 {
		return cfg, fmt.Errorf("%w: %d-byte keys too narrow for distinguished-point checks", ErrInvalidConfig, g.CompressedSize())
	}
	if cfg.TableSize == 0 || cfg.TableSize > 1<<32 {
		return cfg, fmt.Errorf("%w: table size %d", ErrInvalidConfig, cfg.TableSize)
	}
	if cfg.WalkSpacing < 2 || !common.IsPowerOfTwo(cfg.WalkSpacing) {
		return cfg, fmt.Errorf("%w: walk spacing %d must be a power of two >= 2", ErrInvalidConfig, cfg.WalkSpacing)
	}
	if cfg.StepArraySize < 2 || !common.IsPowerOfTwo(cfg.StepArraySize) {
		return cfg, fmt.Errorf("%w: step array size %d must be a power of two >= 2", ErrInvalidConfig, cfg.StepArraySize)
	}
	if cfg.WalkMultiplier == 0 {
		return cfg, fmt.Errorf("%w: zero walk multiplier", ErrInvalidConfig)
	}
	// Keep every accumulated exponent strictly below 2^63 so that solving
	// can subtract walk offsets in exact integer arithmetic.
	if cfg.WalkMultiplier > (1<<24)/cfg.WalkSpacing {
		return cfg, fmt.Errorf("%w: walk budget %d x %d steps too large", ErrInvalidConfig, cfg.WalkMultiplier, cfg.WalkSpacing)
	}
	if cfg.StepBits == 0 {
		cfg.StepBits = derivedStepBits(cfg.RangeBits, cfg.WalkSpacing)
	}
	if cfg.StepBits > 38 {
		return cfg, fmt.Errorf("%w: step size of %d bits too large", ErrInvalidConfig, cfg.StepBits)
	}
	if cfg.MaxOnlineSteps == 0 {
		cfg.MaxOnlineSteps = 4 * cfg.WalkMultiplier * cfg.WalkSpacing
	}
	if cfg.Seed == nil {
		seed := make([]byte, 32)
		common.FastRandomBytes(seed)
		cfg.Seed = seed
	} else {
		cfg.Seed = append([]byte(nil), cfg.Seed...)
	}
	return cfg, nil
}

// derivedStepBits sizes the random steps so their mean roughly matches the
// spacing-implied walk geometry: 2^bits / 4 / W, floored at 1 bit.
func derivedStepBits(rangeBits uint, spacing uint64) uint {
	if rangeBits < 8 {
		return rangeBits
	}
	sb := int(rangeBits) - 2 - log2(spacing)
	if sb < 1 {
		return 1
	}
	return uint(sb)
}

func log2(n uint64) int {
	l := 0
	for n > 1 {
		n >>= 1
		l++
	}
	return l
}

func wdistBitsFor(rangeBits uint) uint {
	if rangeBits > 9 {
		return rangeBits - 8
	}
	return 1
}

// deriveWalkParams expands the seed into the R step sizes and the siphash
// key of the walk function.
func deriveWalkParams(seed []byte, r uint64, stepBits uint) (sizes []uint64, sip0, sip1 uint64) {
	shake := sha3.NewShake256()
	shake.Write(seed)
	buf := make([]byte, 8)
	next := func() uint64 {
		shake.Read(buf)
		return binary.BigEndian.Uint64(buf)
	}

	mask := uint64(1)<<stepBits - 1
	sizes = make([]uint64, r)
	for i := range sizes {
		sizes[i] = (next() & mask) + 1
	}
	return sizes, next(), next()
}

func isDistinguishedKey(key []byte, mask uint64) bool {
	return binary.BigEndian.Uint64(key[len(key)-8:])&mask == 0
}

// walkIndex picks the next step of a walk from its current key. The index
// must depend on nothing but the key, so that two walks meeting on a point
// follow identical paths from there on; siphash keeps it uncorrelated with
// the distinguished-point test on the same bytes.
func walkIndex(sip0, sip1 uint64, key []byte, rMask uint64) int {
	return int(siphash.Hash(sip0, sip1, key) & rMask)
}

// GenerateDistinguishedPointTable runs tame kangaroo walks from evenly
// spaced start exponents until TableSize distinguished points are recorded,
// each stored with the exact exponent that reaches it from the generator.
// Walks run on all workers in parallel; the recorded table is determined by
// the seed and settings alone, independent of the worker count.
func GenerateDistinguishedPointTable(g group.Group, cfg Bl12Settings) (*DistinguishedPointTable, error) {
	cfg, err := cfg.complete(g)
	if err != nil {
		return nil, err
	}

	sizes, sip0, sip1 := deriveWalkParams(cfg.Seed, cfg.StepArraySize, cfg.StepBits)
	walker := &bl12walker{
		g:          g,
		stepSizes:  sizes,
		stepPoints: stepPoints(g, sizes),
		sip0:       sip0,
		sip1:       sip1,
		dpMask:     cfg.WalkSpacing - 1,
		rMask:      cfg.StepArraySize - 1,
		walkLimit:  cfg.WalkMultiplier * cfg.WalkSpacing,
	}
	walker.batcher, _ = g.(group.Batcher)

	// Tame starts sweep [0, span) with a fixed stride: span covers the
	// range plus the wild offsets solving adds, so every effective wild
	// start lies amid the tame ones.
	span := rangeSize(cfg.RangeBits) + rangeSize(wdistBitsFor(cfg.RangeBits))
	maxAttempts := cfg.TableSize * bl12AttemptFactor
	stride := span / maxAttempts
	if stride == 0 {
		stride = 1
	}
	// Starts repeat once k*stride wraps the span; attempts past one full
	// cycle replay identical walks and cannot add points.
	if period := span / common.GCD(stride, span); period < maxAttempts {
		maxAttempts = period
	}

	roundSize := cfg.TableSize
	if roundSize < 4*bl12HerdWidth {
		roundSize = 4 * bl12HerdWidth
	}
	if roundSize > maxAttempts {
		roundSize = maxAttempts
	}

	start := time.Now()
	Follower.StepStart("distinguished points", int(common.CeilDiv(maxAttempts, roundSize)))

	points := make(map[string]uint64, cfg.TableSize)
	var attempt uint64
	for attempt < maxAttempts && uint64(len(points)) < cfg.TableSize {
		size := roundSize
		if attempt+size > maxAttempts {
			size = maxAttempts - attempt
		}
		outcomes, err := runTameRound(walker, attempt, size, stride, span, cfg.Workers)
		if err != nil {
			Follower.StepDone()
			return nil, err
		}
		// First writer wins per key, in walk order, so reruns reproduce
		// the table exactly.
		for _, o := range outcomes {
			if uint64(len(points)) >= cfg.TableSize {
				break
			}
			if _, ok := points[o.key]; !ok {
				points[o.key] = o.value
			}
		}
		attempt += size
		Follower.Tick()
	}
	Follower.StepDone()

	if uint64(len(points)) < cfg.TableSize {
		Logger.Warnf("dlog: collected %d of %d distinguished points after %d walks", len(points), cfg.TableSize, attempt)
	}
	Logger.Debugf("dlog: %d distinguished points for %d-bit range in %s", len(points), cfg.RangeBits, time.Since(start))

	entries := make([]DistinguishedPointEntry, 0, len(points))
	for key, v := range points {
		entries = append(entries, DistinguishedPointEntry{Key: []byte(key), Value: v})
	}
	return AssembleDistinguishedPointTable(g.Name(), g.CompressedSize(), cfg.RangeBits,
		cfg.WalkSpacing, walker.walkLimit, sizes, sip0, sip1, cfg.Seed, entries)
}

func stepPoints(g group.Group, sizes []uint64) []group.Point {
	pts := make([]group.Point, len(sizes))
	for i, s := range sizes {
		pts[i] = g.ScalarBaseMult(s)
	}
	return pts
}

type walkOutcome struct {
	attempt uint64
	key     string
	value   uint64
}

type bl12walker struct {
	g          group.Group
	batcher    group.Batcher
	stepSizes  []uint64
	stepPoints []group.Point
	sip0, sip1 uint64
	dpMask     uint64
	rMask      uint64
	walkLimit  uint64
}

type walkSlot struct {
	attempt uint64
	acc     uint64
	steps   uint64
	p       group.Point
}

// runTameRound walks attempts [first, first+count) split over the workers
// and returns their distinguished points sorted by attempt index.
func runTameRound(w *bl12walker, first, count, stride, span uint64, workers int) ([]walkOutcome, error) {
	n := uint64(defaultWorkers(workers))
	if n > count {
		n = count
	}
	chunk := common.CeilDiv(count, n)

	results := make([][]walkOutcome, n)
	var eg errgroup.Group
	for i := uint64(0); i < n; i++ {
		i := i
		from := first + i*chunk
		to := from + chunk
		if to > first+count {
			to = first + count
		}
		eg.Go(func() error {
			out, err := w.tameChunk(from, to, stride, span)
			results[i] = out
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var merged []walkOutcome
	for _, out := range results {
		merged = append(merged, out...)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].attempt < merged[j].attempt })
	return merged, nil
}

// tameChunk walks attempts [from, to) as a lockstep herd: every iteration
// compresses the whole herd (batched when the group allows), then each walk
// either records a distinguished point, steps, or is abandoned for the next
// attempt.
func (w *bl12walker) tameChunk(from, to, stride, span uint64) ([]walkOutcome, error) {
	width := to - from
	if width > bl12HerdWidth {
		width = bl12HerdWidth
	}

	next := from
	spawn := func() *walkSlot {
		if next >= to {
			return nil
		}
		s0 := (next * stride) % span
		s := &walkSlot{attempt: next, acc: s0, p: w.g.ScalarBaseMult(s0)}
		next++
		return s
	}

	slots := make([]*walkSlot, 0, width)
	for uint64(len(slots)) < width {
		slots = append(slots, spawn())
	}

	var outcomes []walkOutcome
	for len(slots) > 0 {
		keys, err := w.compressKeys(slots)
		if err != nil {
			return nil, err
		}
		// Backwards, so the swap in a removal only touches processed slots.
		for idx := len(slots) - 1; idx >= 0; idx-- {
			slot, key := slots[idx], keys[idx]
			if isDistinguishedKey(key, w.dpMask) {
				outcomes = append(outcomes, walkOutcome{attempt: slot.attempt, key: string(key), value: slot.acc})
			} else if slot.steps < w.walkLimit {
				r := walkIndex(w.sip0, w.sip1, key, w.rMask)
				slot.p = slot.p.Add(w.stepPoints[r])
				slot.acc += w.stepSizes[r]
				slot.steps++
				continue
			}
			if s := spawn(); s != nil {
				slots[idx] = s
			} else {
				slots[idx] = slots[len(slots)-1]
				slots = slots[:len(slots)-1]
			}
		}
	}

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].attempt < outcomes[j].attempt })
	return outcomes, nil
}

func (w *bl12walker) compressKeys(slots []*walkSlot) ([][]byte, error) {
	if w.batcher == nil {
		keys := make([][]byte, len(slots))
		for i, s := range slots {
			keys[i] = s.p.Compress()
		}
		return keys, nil
	}
	pts := make([]group.Point, len(slots))
	for i, s := range slots {
		pts[i] = s.p
	}
	keys, err := w.batcher.BatchCompress(pts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGroupOperation, err)
	}
	return keys, nil
}

// Bl12Engine implements the Bernstein-Lange style kangaroo method: a wild
// walk from the target, offset by a random known distance, until it lands
// on a distinguished point recorded by the tame walks of table generation.
// Probabilistic: ErrNotFound after the online budget says nothing about
// membership; a returned exponent is always verified and therefore always
// correct.
type Bl12Engine struct {
	g          group.Group
	table      *DistinguishedPointTable
	limit      uint64
	wdistBits  uint
	maxOnline  uint64
	walkLimit  uint64
	dpMask     uint64
	rMask      uint64
	stepSizes  []uint64
	stepPoints []group.Point
	sip0, sip1 uint64
}

var _ Solver = (*Bl12Engine)(nil)

// NewBl12Engine generates a fresh table and wraps it.
func NewBl12Engine(g group.Group, cfg Bl12Settings) (*Bl12Engine, error) {
	table, err := GenerateDistinguishedPointTable(g, cfg)
	if err != nil {
		return nil, err
	}
	return NewBl12EngineFromTable(g, table, cfg.MaxOnlineSteps)
}

// NewBl12EngineFromTable wraps a shared or loaded table after checking it
// belongs to the group. maxOnlineSteps bounds the group operations of a
// single Solve; 0 means four full walk budgets.
func NewBl12EngineFromTable(g group.Group, table *DistinguishedPointTable, maxOnlineSteps uint64) (*Bl12Engine, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: nil table", ErrInvalidConfig)
	}
	if table.GroupName() != g.Name() {
		return nil, fmt.Errorf("%w: table built for group %q, engine runs on %q", ErrTableMismatch, table.GroupName(), g.Name())
	}
	if table.KeySize() != g.CompressedSize() {
		return nil, fmt.Errorf("%w: table keys are %d bytes, group compresses to %d", ErrTableMismatch, table.KeySize(), g.CompressedSize())
	}
	if maxOnlineSteps == 0 {
		maxOnlineSteps = 4 * table.WalkLimit()
	}

	sizes := table.StepSizes()
	sip0, sip1 := table.SipKeys()
	return &Bl12Engine{
		g:          g,
		table:      table,
		limit:      rangeSize(table.RangeBits()),
		wdistBits:  wdistBitsFor(table.RangeBits()),
		maxOnline:  maxOnlineSteps,
		walkLimit:  table.WalkLimit(),
		dpMask:     table.Spacing() - 1,
		rMask:      uint64(len(sizes)) - 1,
		stepSizes:  sizes,
		stepPoints: stepPoints(g, sizes),
		sip0:       sip0,
		sip1:       sip1,
	}, nil
}

func (e *Bl12Engine) AlgorithmName() string { return "bl12" }

func (e *Bl12Engine) RangeBits() uint { return e.table.RangeBits() }

// Table returns the engine's table for sharing with other engines or for
// persistence.
func (e *Bl12Engine) Table() *DistinguishedPointTable { return e.table }

func (e *Bl12Engine) Solve(target group.Point) (uint64, error) {
	if target.Equal(e.g.Identity()) {
		return 0, nil
	}
	targetKey := target.Compress()

	var online uint64
	for online < e.maxOnline {
		// Start the wild walk a random known distance past the target, so
		// a failed walk can retry from somewhere else.
		wdist := common.FastRandomBits(e.wdistBits)
		cur := target.Add(e.g.ScalarBaseMult(wdist))
		acc := wdist

		for steps := uint64(0); online < e.maxOnline; steps++ {
			online++
			key := cur.Compress()
			if isDistinguishedKey(key, e.dpMask) {
				if v, ok := e.table.lookup(key); ok {
					// v*G == cur == target + acc*G, so the candidate is
					// v - acc; anything else is a spurious collision and
					// fails verification.
					if cand := v - acc; cand < e.limit && bytes.Equal(e.g.ScalarBaseMult(cand).Compress(), targetKey) {
						return cand, nil
					}
				}
				break
			}
			if steps >= e.walkLimit {
				break
			}
			r := walkIndex(e.sip0, e.sip1, key, e.rMask)
			cur = cur.Add(e.stepPoints[r])
			acc += e.stepSizes[r]
		}
	}
	return 0, ErrNotFound
}
