package group

import (
	"encoding/binary"

	secp256k1 "github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/go-errors/errors"
)

// Secp256k1Group is the secp256k1 curve group. Compressed keys are the
// 33-byte SEC1 encoding; the point at infinity, which SEC1 gives no
// fixed-width encoding, is represented by 33 zero bytes. No valid SEC1
// compressed encoding starts with 0x00, so the key remains injective.
type Secp256k1Group struct{}

type secp256k1Point struct {
	p secp256k1.JacobianPoint
}

var (
	_ Group   = (*Secp256k1Group)(nil)
	_ Batcher = (*Secp256k1Group)(nil)
	_ Point   = (*secp256k1Point)(nil)
)

// NewSecp256k1Group returns the secp256k1 backend.
func NewSecp256k1Group() *Secp256k1Group {
	return &Secp256k1Group{}
}

func (g *Secp256k1Group) Name() string {
	return "secp256k1"
}

func (g *Secp256k1Group) CompressedSize() int {
	return 33
}

func (g *Secp256k1Group) Generator() Point {
	return g.ScalarBaseMult(1)
}

func (g *Secp256k1Group) Identity() Point {
	// The zero-valued Jacobian point is the point at infinity.
	return &secp256k1Point{}
}

func (g *Secp256k1Group) ScalarBaseMult(e uint64) Point {
	if e == 0 {
		return &secp256k1Point{}
	}
	var buf [32]byte
	binary.BigEndian.PutUint64(buf[24:], e)
	var k secp256k1.ModNScalar
	k.SetBytes(&buf)
	var r secp256k1Point
	secp256k1.ScalarBaseMultNonConst(&k, &r.p)
	return &r
}

func (g *Secp256k1Group) Decompress(key []byte) (Point, error) {
	if len(key) != 33 {
		return nil, errors.Errorf("secp256k1 key must be 33 bytes, got %d", len(key))
	}
	if isAllZero(key) {
		return &secp256k1Point{}, nil
	}
	pub, err := secp256k1.ParsePubKey(key)
	if err != nil {
		return nil, errors.WrapPrefix(err, "invalid secp256k1 point encoding", 0)
	}
	var r secp256k1Point
	pub.AsJacobian(&r.p)
	return &r, nil
}

func (g *Secp256k1Group) BatchAdvanceAndCompress(start, step Point, count int) ([][]byte, Point, error) {
	if count < 0 {
		return nil, nil, errors.Errorf("negative batch count %d", count)
	}
	var cur secp256k1Point
	cur.p.Set(&start.(*secp256k1Point).p)
	stepP := &step.(*secp256k1Point).p
	pts := make([]*secp256k1.JacobianPoint, count)
	for i := 0; i < count; i++ {
		var p, next secp256k1.JacobianPoint
		p.Set(&cur.p)
		pts[i] = &p
		secp256k1.AddNonConst(&cur.p, stepP, &next)
		cur.p.Set(&next)
	}
	return secp256k1BatchCompress(pts), &cur, nil
}

func (g *Secp256k1Group) BatchCompress(points []Point) ([][]byte, error) {
	pts := make([]*secp256k1.JacobianPoint, len(points))
	for i, p := range points {
		pts[i] = &p.(*secp256k1Point).p
	}
	return secp256k1BatchCompress(pts), nil
}

func (p *secp256k1Point) Add(q Point) Point {
	var r secp256k1Point
	secp256k1.AddNonConst(&p.p, &q.(*secp256k1Point).p, &r.p)
	return &r
}

func (p *secp256k1Point) Negate() Point {
	var r secp256k1Point
	r.p.Set(&p.p)
	r.p.Y.Normalize()
	r.p.Y.Negate(1).Normalize()
	return &r
}

func (p *secp256k1Point) Compress() []byte {
	key := make([]byte, 33)
	if p.isInfinity() {
		return key
	}
	var a secp256k1.JacobianPoint
	a.Set(&p.p)
	a.ToAffine()
	// SEC1 compressed form: 0x02/0x03 prefix by y parity, then big-endian x.
	key[0] = 0x02
	if a.Y.IsOdd() {
		key[0] = 0x03
	}
	a.X.PutBytesUnchecked(key[1:])
	return key
}

func (p *secp256k1Point) Equal(q Point) bool {
	o := q.(*secp256k1Point)
	pInf, oInf := p.isInfinity(), o.isInfinity()
	if pInf || oInf {
		return pInf == oInf
	}
	var a, b secp256k1.JacobianPoint
	a.Set(&p.p)
	a.ToAffine()
	b.Set(&o.p)
	b.ToAffine()
	return a.X.Equals(&b.X) && a.Y.Equals(&b.Y)
}

func (p *secp256k1Point) isInfinity() bool {
	var x, y, z secp256k1.FieldVal
	x.Set(&p.p.X).Normalize()
	y.Set(&p.p.Y).Normalize()
	z.Set(&p.p.Z).Normalize()
	return (x.IsZero() && y.IsZero()) || z.IsZero()
}

// secp256k1BatchCompress converts a batch of Jacobian points to affine with
// a single field inversion and serializes each to its SEC1 compressed key.
func secp256k1BatchCompress(pts []*secp256k1.JacobianPoint) [][]byte {
	n := len(pts)
	keys := make([][]byte, n)

	// Collect the Z coordinates of the finite points; infinity compresses
	// to the all-zero key without touching the inversion.
	zs := make([]*secp256k1.FieldVal, 0, n)
	idx := make([]int, 0, n)
	for i, p := range pts {
		pt := secp256k1Point{p: *p}
		if pt.isInfinity() {
			keys[i] = make([]byte, 33)
			continue
		}
		z := new(secp256k1.FieldVal)
		z.Set(&p.Z).Normalize()
		zs = append(zs, z)
		idx = append(idx, i)
	}
	m := len(zs)
	if m == 0 {
		return keys
	}

	prods := make([]secp256k1.FieldVal, m)
	acc := new(secp256k1.FieldVal).SetInt(1)
	for i := 0; i < m; i++ {
		acc.Mul(zs[i])
		prods[i].Set(acc)
	}
	inv := new(secp256k1.FieldVal).Set(acc)
	inv.Inverse()

	var zInv, zInv2, zInv3, ax, ay, t secp256k1.FieldVal
	for i := m - 1; i >= 0; i-- {
		if i == 0 {
			zInv.Set(inv)
		} else {
			zInv.Mul2(inv, &prods[i-1])
			inv.Mul(zs[i])
		}
		// x = X/Z², y = Y/Z³
		zInv2.SquareVal(&zInv)
		zInv3.Mul2(&zInv2, &zInv)
		p := pts[idx[i]]
		t.Set(&p.X).Normalize()
		ax.Mul2(&t, &zInv2)
		ax.Normalize()
		t.Set(&p.Y).Normalize()
		ay.Mul2(&t, &zInv3)
		ay.Normalize()

		key := make([]byte, 33)
		key[0] = 0x02
		if ay.IsOdd() {
			key[0] = 0x03
		}
		ax.PutBytesUnchecked(key[1:])
		keys[idx[i]] = key
	}
	return keys
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
