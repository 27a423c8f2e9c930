// Package group defines the prime-order group interface consumed by the
// discrete-log engines, together with four backends: the Ed25519 prime-order
// subgroup, secp256k1, Schnorr groups over safe primes, and an adapter for
// kyber suites.
//
// Engines treat points as opaque: they only add, negate, multiply the fixed
// generator by small exponents, and compress points to fixed-width byte
// keys. Compression must be injective over the group so that a compressed
// key can serve as an exact table key.
package group

// Point is an element of a prime-order group. Implementations are immutable:
// every operation returns a fresh point. Points from different groups must
// not be mixed; doing so panics.
type Point interface {
	// Add returns p + q.
	Add(q Point) Point

	// Negate returns -p.
	Negate() Point

	// Compress encodes the point to its fixed-width key. The encoding is
	// injective: two points compress equal iff they are equal.
	Compress() []byte

	// Equal reports whether both points are the same group element.
	Equal(q Point) bool
}

// Group gives access to a cyclic group of prime order with a fixed
// generator. Implementations are stateless or read-only after construction
// and safe for concurrent use.
type Group interface {
	// Name returns a stable identifier for the backend ("ed25519",
	// "secp256k1", ...). It is persisted in table metadata so that a table
	// can never silently be used with a different group.
	Name() string

	// CompressedSize returns the fixed width in bytes of compressed keys.
	CompressedSize() int

	// Generator returns the fixed generator G.
	Generator() Point

	// Identity returns the neutral element.
	Identity() Point

	// ScalarBaseMult returns e·G.
	ScalarBaseMult(e uint64) Point

	// Decompress parses a compressed key back into a point. It fails on
	// malformed or non-group encodings.
	Decompress(key []byte) (Point, error)
}

// Batcher is an optional capability of a Group: amortizing point
// compression over many points at once. Backends with projective internal
// coordinates implement it with a single field inversion per batch
// (Montgomery's trick), which is what makes batched table construction
// worthwhile. Discover it with a type assertion on the Group.
type Batcher interface {
	// BatchAdvanceAndCompress returns the compressed keys of the points
	// start, start+step, ..., start+(count-1)·step, together with
	// next = start+count·step so a caller can continue where the batch
	// left off.
	BatchAdvanceAndCompress(start, step Point, count int) (keys [][]byte, next Point, err error)

	// BatchCompress compresses the given points. Equivalent to calling
	// Compress on each, but amortized.
	BatchCompress(points []Point) ([][]byte, error)
}
