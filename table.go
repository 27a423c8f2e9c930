package dlog

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/privacybydesign/dlog/internal/common"
)

type (
	// BabyStepEntry is one row of a BabyStepTable: the compressed key of
	// Exponent*G.
	BabyStepEntry struct {
		Key      []byte
		Exponent uint64
	}

	// TruncatedEntry is one bucket of a TruncatedBabyStepTable: all baby
	// exponents whose compressed key starts with the same KeyBytes bytes,
	// in insertion order.
	TruncatedEntry struct {
		Key       uint64
		Exponents []uint64
	}

	// DistinguishedPointEntry maps the compressed key of a distinguished
	// point to the exponent that reaches it: Value*G equals the stored
	// point exactly.
	DistinguishedPointEntry struct {
		Key   []byte
		Value uint64
	}
)

// BabyStepTable maps the compressed keys of e*G for e in [0, m) back to e,
// with m = 2^((rangeBits+1)/2). Tables are immutable once assembled and may
// be shared by any number of engines and goroutines.
type BabyStepTable struct {
	groupName string
	keySize   int
	rangeBits uint
	m         uint64
	steps     map[string]uint64
}

// AssembleBabyStepTable builds a table from its rows, checking them against
// the declared parameters: exactly m distinct keys of the group's width
// covering every exponent in [0, m) exactly once.
func AssembleBabyStepTable(groupName string, keySize int, rangeBits uint, entries []BabyStepEntry) (*BabyStepTable, error) {
	if !validRangeBits(rangeBits) {
		return nil, fmt.Errorf("%w: range bits %d outside [1, %d]", ErrInvalidConfig, rangeBits, MaxRangeBits)
	}
	if keySize < 1 {
		return nil, fmt.Errorf("%w: key size %d", ErrInvalidConfig, keySize)
	}

	m := babyCount(rangeBits)
	if uint64(len(entries)) != m {
		return nil, fmt.Errorf("%w: %d rows for %d baby steps", ErrTableMismatch, len(entries), m)
	}

	steps := make(map[string]uint64, len(entries))
	coverage := roaring.New()
	for _, entry := range entries {
		if len(entry.Key) != keySize {
			return nil, fmt.Errorf("%w: key width %d, group uses %d", ErrTableMismatch, len(entry.Key), keySize)
		}
		if entry.Exponent >= m {
			return nil, fmt.Errorf("%w: exponent %d outside [0, %d)", ErrTableMismatch, entry.Exponent, m)
		}
		if _, ok := steps[string(entry.Key)]; ok {
			return nil, fmt.Errorf("%w: duplicate key for exponent %d", ErrTableMismatch, entry.Exponent)
		}
		steps[string(entry.Key)] = entry.Exponent
		coverage.Add(uint32(entry.Exponent))
	}
	if coverage.GetCardinality() != m {
		return nil, fmt.Errorf("%w: %d of %d exponents covered", ErrTableMismatch, coverage.GetCardinality(), m)
	}

	return &BabyStepTable{
		groupName: groupName,
		keySize:   keySize,
		rangeBits: rangeBits,
		m:         m,
		steps:     steps,
	}, nil
}

func (t *BabyStepTable) GroupName() string { return t.groupName }
func (t *BabyStepTable) KeySize() int      { return t.keySize }
func (t *BabyStepTable) RangeBits() uint   { return t.rangeBits }

// M returns the number of baby steps, i.e. the exponent bound of the table.
func (t *BabyStepTable) M() uint64 { return t.m }

func (t *BabyStepTable) lookup(key []byte) (uint64, bool) {
	e, ok := t.steps[string(key)]
	return e, ok
}

// Entries returns the rows sorted by key bytes, the canonical order used
// for persistence.
func (t *BabyStepTable) Entries() []BabyStepEntry {
	entries := make([]BabyStepEntry, 0, len(t.steps))
	for key, e := range t.steps {
		entries = append(entries, BabyStepEntry{Key: []byte(key), Exponent: e})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Key, entries[j].Key) < 0
	})
	return entries
}

// TruncatedBabyStepTable is a BabyStepTable whose keys are truncated to the
// first KeyBytes bytes, packed little-endian into a uint64. Truncation can
// collide, so a key maps to a bucket of candidate exponents which callers
// must verify against the full-width key.
type TruncatedBabyStepTable struct {
	groupName string
	keySize   int
	keyBytes  int
	rangeBits uint
	m         uint64
	buckets   map[uint64][]uint64
}

// AssembleTruncatedBabyStepTable builds a truncated table from its buckets,
// checking width and parameters and that the buckets cover every exponent
// in [0, m) exactly once.
func AssembleTruncatedBabyStepTable(groupName string, keySize, keyBytes int, rangeBits uint, entries []TruncatedEntry) (*TruncatedBabyStepTable, error) {
	if !validRangeBits(rangeBits) {
		return nil, fmt.Errorf("%w: range bits %d outside [1, %d]", ErrInvalidConfig, rangeBits, MaxRangeBits)
	}
	if keySize < 1 {
		return nil, fmt.Errorf("%w: key size %d", ErrInvalidConfig, keySize)
	}
	m := babyCount(rangeBits)
	if err := checkTruncationWidth(keySize, keyBytes, m); err != nil {
		return nil, err
	}

	buckets := make(map[uint64][]uint64, len(entries))
	coverage := roaring.New()
	var total uint64
	for _, entry := range entries {
		if keyBytes < 8 && entry.Key >= uint64(1)<<(8*uint(keyBytes)) {
			return nil, fmt.Errorf("%w: truncated key %#x wider than %d bytes", ErrTableMismatch, entry.Key, keyBytes)
		}
		if len(entry.Exponents) == 0 {
			return nil, fmt.Errorf("%w: empty bucket for key %#x", ErrTableMismatch, entry.Key)
		}
		if _, ok := buckets[entry.Key]; ok {
			return nil, fmt.Errorf("%w: duplicate bucket for key %#x", ErrTableMismatch, entry.Key)
		}
		for _, e := range entry.Exponents {
			if e >= m {
				return nil, fmt.Errorf("%w: exponent %d outside [0, %d)", ErrTableMismatch, e, m)
			}
			coverage.Add(uint32(e))
			total++
		}
		buckets[entry.Key] = append([]uint64(nil), entry.Exponents...)
	}
	if total != m || coverage.GetCardinality() != m {
		return nil, fmt.Errorf("%w: %d of %d exponents covered", ErrTableMismatch, coverage.GetCardinality(), m)
	}

	return &TruncatedBabyStepTable{
		groupName: groupName,
		keySize:   keySize,
		keyBytes:  keyBytes,
		rangeBits: rangeBits,
		m:         m,
		buckets:   buckets,
	}, nil
}

func checkTruncationWidth(keySize, keyBytes int, m uint64) error {
	if keyBytes < 1 || keyBytes > 8 || keyBytes > keySize {
		return fmt.Errorf("%w: truncated key width %d bytes", ErrInvalidConfig, keyBytes)
	}
	// Fewer truncated keys than baby steps would overload every bucket.
	if keyBytes < 8 && uint64(1)<<(8*uint(keyBytes)) < m {
		return fmt.Errorf("%w: %d-byte keys cannot distinguish %d baby steps", ErrInvalidConfig, keyBytes, m)
	}
	return nil
}

func (t *TruncatedBabyStepTable) GroupName() string { return t.groupName }
func (t *TruncatedBabyStepTable) KeySize() int      { return t.keySize }
func (t *TruncatedBabyStepTable) KeyBytes() int     { return t.keyBytes }
func (t *TruncatedBabyStepTable) RangeBits() uint   { return t.rangeBits }
func (t *TruncatedBabyStepTable) M() uint64         { return t.m }

func (t *TruncatedBabyStepTable) lookup(key []byte) []uint64 {
	return t.buckets[truncateKey(key, t.keyBytes)]
}

// Entries returns the buckets sorted by truncated key, the canonical order
// used for persistence. Bucket contents keep their insertion order.
func (t *TruncatedBabyStepTable) Entries() []TruncatedEntry {
	entries := make([]TruncatedEntry, 0, len(t.buckets))
	for key, exps := range t.buckets {
		entries = append(entries, TruncatedEntry{Key: key, Exponents: append([]uint64(nil), exps...)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// truncateKey packs the first keyBytes bytes of a compressed key into a
// uint64, little-endian.
func truncateKey(key []byte, keyBytes int) uint64 {
	var v uint64
	for i := 0; i < keyBytes; i++ {
		v |= uint64(key[i]) << (8 * uint(i))
	}
	return v
}

// DistinguishedPointTable holds the precomputed side of the kangaroo
// method: for every recorded distinguished point, the exponent that reaches
// it from the generator. The walk parameters are part of the table; solving
// must replay the exact pseudorandom walk that generation used, so the step
// sizes are persisted rather than re-derived.
type DistinguishedPointTable struct {
	groupName string
	keySize   int
	rangeBits uint

	spacing   uint64 // W, power of two; a key is distinguished with probability 1/W
	walkLimit uint64 // walks are abandoned after this many steps
	stepSizes []uint64
	sipKey0   uint64
	sipKey1   uint64
	seed      []byte

	points map[string]uint64
}

// AssembleDistinguishedPointTable builds a kangaroo table from its rows and
// walk parameters.
func AssembleDistinguishedPointTable(groupName string, keySize int, rangeBits uint, spacing, walkLimit uint64, stepSizes []uint64, sipKey0, sipKey1 uint64, seed []byte, entries []DistinguishedPointEntry) (*DistinguishedPointTable, error) {
	if !validRangeBits(rangeBits) {
		return nil, fmt.Errorf("%w: range bits %d outside [1, %d]", ErrInvalidConfig, rangeBits, MaxRangeBits)
	}
	if keySize < 8 {
		return nil, fmt.Errorf("%w: %d-byte keys too narrow for distinguished-point checks", ErrInvalidConfig, keySize)
	}
	if spacing < 2 || !common.IsPowerOfTwo(spacing) {
		return nil, fmt.Errorf("%w: distinguished-point spacing %d must be a power of two >= 2", ErrInvalidConfig, spacing)
	}
	if !common.IsPowerOfTwo(uint64(len(stepSizes))) {
		return nil, fmt.Errorf("%w: step array size %d must be a power of two", ErrInvalidConfig, len(stepSizes))
	}
	for r, s := range stepSizes {
		if s == 0 {
			return nil, fmt.Errorf("%w: step size %d is zero", ErrInvalidConfig, r)
		}
	}
	if walkLimit == 0 {
		return nil, fmt.Errorf("%w: zero walk step limit", ErrInvalidConfig)
	}

	points := make(map[string]uint64, len(entries))
	mask := spacing - 1
	for _, entry := range entries {
		if len(entry.Key) != keySize {
			return nil, fmt.Errorf("%w: key width %d, group uses %d", ErrTableMismatch, len(entry.Key), keySize)
		}
		if !isDistinguishedKey(entry.Key, mask) {
			return nil, fmt.Errorf("%w: stored point is not distinguished", ErrTableMismatch)
		}
		if _, ok := points[string(entry.Key)]; ok {
			return nil, fmt.Errorf("%w: duplicate distinguished point", ErrTableMismatch)
		}
		points[string(entry.Key)] = entry.Value
	}

	return &DistinguishedPointTable{
		groupName: groupName,
		keySize:   keySize,
		rangeBits: rangeBits,
		spacing:   spacing,
		walkLimit: walkLimit,
		stepSizes: append([]uint64(nil), stepSizes...),
		sipKey0:   sipKey0,
		sipKey1:   sipKey1,
		seed:      append([]byte(nil), seed...),
		points:    points,
	}, nil
}

func (t *DistinguishedPointTable) GroupName() string   { return t.groupName }
func (t *DistinguishedPointTable) KeySize() int        { return t.keySize }
func (t *DistinguishedPointTable) RangeBits() uint     { return t.rangeBits }
func (t *DistinguishedPointTable) Spacing() uint64     { return t.spacing }
func (t *DistinguishedPointTable) WalkLimit() uint64   { return t.walkLimit }
func (t *DistinguishedPointTable) SipKeys() (uint64, uint64) {
	return t.sipKey0, t.sipKey1
}
func (t *DistinguishedPointTable) Len() int { return len(t.points) }

// StepSizes returns a copy of the walk step sizes.
func (t *DistinguishedPointTable) StepSizes() []uint64 {
	return append([]uint64(nil), t.stepSizes...)
}

// Seed returns a copy of the seed the walk parameters were derived from.
func (t *DistinguishedPointTable) Seed() []byte {
	return append([]byte(nil), t.seed...)
}

func (t *DistinguishedPointTable) lookup(key []byte) (uint64, bool) {
	v, ok := t.points[string(key)]
	return v, ok
}

// Entries returns the rows sorted by key bytes, the canonical order used
// for persistence.
func (t *DistinguishedPointTable) Entries() []DistinguishedPointEntry {
	entries := make([]DistinguishedPointEntry, 0, len(t.points))
	for key, v := range t.points {
		entries = append(entries, DistinguishedPointEntry{Key: []byte(key), Value: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Key, entries[j].Key) < 0
	})
	return entries
}
