package group

import (
	"encoding/binary"
	"fmt"

	"filippo.io/edwards25519"
	"filippo.io/edwards25519/field"
	"github.com/go-errors/errors"
)

// Ed25519Group is the prime-order subgroup of the twisted Edwards curve of
// Ed25519, generated by the standard base point. Compressed keys are the
// 32-byte canonical point encoding.
type Ed25519Group struct{}

type ed25519Point struct {
	p *edwards25519.Point
}

var (
	_ Group   = (*Ed25519Group)(nil)
	_ Batcher = (*Ed25519Group)(nil)
	_ Point   = (*ed25519Point)(nil)
)

// NewEd25519Group returns the Ed25519 backend.
func NewEd25519Group() *Ed25519Group {
	return &Ed25519Group{}
}

func (g *Ed25519Group) Name() string {
	return "ed25519"
}

func (g *Ed25519Group) CompressedSize() int {
	return 32
}

func (g *Ed25519Group) Generator() Point {
	return &ed25519Point{p: edwards25519.NewGeneratorPoint()}
}

func (g *Ed25519Group) Identity() Point {
	return &ed25519Point{p: edwards25519.NewIdentityPoint()}
}

func (g *Ed25519Group) ScalarBaseMult(e uint64) Point {
	return &ed25519Point{p: new(edwards25519.Point).ScalarBaseMult(ed25519ScalarFromUint64(e))}
}

func (g *Ed25519Group) Decompress(key []byte) (Point, error) {
	if len(key) != 32 {
		return nil, errors.Errorf("ed25519 key must be 32 bytes, got %d", len(key))
	}
	p, err := new(edwards25519.Point).SetBytes(key)
	if err != nil {
		return nil, errors.WrapPrefix(err, "invalid ed25519 point encoding", 0)
	}
	return &ed25519Point{p: p}, nil
}

func (g *Ed25519Group) BatchAdvanceAndCompress(start, step Point, count int) ([][]byte, Point, error) {
	if count < 0 {
		return nil, nil, errors.Errorf("negative batch count %d", count)
	}
	cur := new(edwards25519.Point).Set(start.(*ed25519Point).p)
	stepP := step.(*ed25519Point).p
	pts := make([]*edwards25519.Point, count)
	for i := 0; i < count; i++ {
		pts[i] = new(edwards25519.Point).Set(cur)
		cur.Add(cur, stepP)
	}
	keys := ed25519BatchCompress(pts)
	return keys, &ed25519Point{p: cur}, nil
}

func (g *Ed25519Group) BatchCompress(points []Point) ([][]byte, error) {
	pts := make([]*edwards25519.Point, len(points))
	for i, p := range points {
		pts[i] = p.(*ed25519Point).p
	}
	return ed25519BatchCompress(pts), nil
}

func (p *ed25519Point) Add(q Point) Point {
	return &ed25519Point{p: new(edwards25519.Point).Add(p.p, q.(*ed25519Point).p)}
}

func (p *ed25519Point) Negate() Point {
	return &ed25519Point{p: new(edwards25519.Point).Negate(p.p)}
}

func (p *ed25519Point) Compress() []byte {
	return p.p.Bytes()
}

func (p *ed25519Point) Equal(q Point) bool {
	return p.p.Equal(q.(*ed25519Point).p) == 1
}

func ed25519ScalarFromUint64(e uint64) *edwards25519.Scalar {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[:8], e)
	s, err := edwards25519.NewScalar().SetCanonicalBytes(buf[:])
	if err != nil {
		// A 64-bit value is far below the group order, so the encoding is
		// always canonical.
		panic(fmt.Sprintf("uint64 scalar rejected: %v", err))
	}
	return s
}

// ed25519BatchCompress encodes many points while paying for only one field
// inversion: the Z denominators are inverted together with Montgomery's
// trick and each encoding is then assembled exactly like Point.Bytes does
// (y with the sign of x folded into the top bit).
func ed25519BatchCompress(pts []*edwards25519.Point) [][]byte {
	n := len(pts)
	keys := make([][]byte, n)
	if n == 0 {
		return keys
	}

	xs := make([]*field.Element, n)
	ys := make([]*field.Element, n)
	zs := make([]*field.Element, n)
	for i, p := range pts {
		xs[i], ys[i], zs[i], _ = p.ExtendedCoordinates()
	}

	// prods[i] = z_0 · z_1 · ... · z_i
	prods := make([]field.Element, n)
	acc := new(field.Element).One()
	for i := 0; i < n; i++ {
		acc.Multiply(acc, zs[i])
		prods[i].Set(acc)
	}

	// Z is never zero for a valid point (the identity has Z = 1), so the
	// running product is invertible.
	inv := new(field.Element).Invert(acc)

	var x, y, zInv field.Element
	for i := n - 1; i >= 0; i-- {
		if i == 0 {
			zInv.Set(inv)
		} else {
			zInv.Multiply(inv, &prods[i-1])
			inv.Multiply(inv, zs[i])
		}
		x.Multiply(xs[i], &zInv)
		y.Multiply(ys[i], &zInv)
		key := y.Bytes()
		key[31] |= byte(x.IsNegative() << 7)
		keys[i] = key
	}
	return keys
}
