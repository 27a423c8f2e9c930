package group

import (
	"fmt"

	"github.com/go-errors/errors"
	"go.dedis.ch/kyber/v3"
)

// KyberGroup adapts a kyber suite (go.dedis.ch/kyber/v3) to the Group
// interface, so callers already invested in a dedis suite can run the
// engines over it without writing a backend. The suite's binary point
// encoding serves as the compressed key; for the standard suites it is
// fixed-width and injective over the prime-order (sub)group the base point
// generates, which is the only part of the group the engines ever touch.
type KyberGroup struct {
	suite kyber.Group
	name  string
}

type kyberPoint struct {
	group *KyberGroup
	p     kyber.Point
}

var (
	_ Group = (*KyberGroup)(nil)
	_ Point = (*kyberPoint)(nil)
)

// NewKyberGroup wraps the given kyber suite.
func NewKyberGroup(suite kyber.Group) *KyberGroup {
	return &KyberGroup{
		suite: suite,
		name:  "kyber-" + suite.String(),
	}
}

func (g *KyberGroup) Name() string {
	return g.name
}

func (g *KyberGroup) CompressedSize() int {
	return g.suite.PointLen()
}

func (g *KyberGroup) Generator() Point {
	return &kyberPoint{group: g, p: g.suite.Point().Base()}
}

func (g *KyberGroup) Identity() Point {
	return &kyberPoint{group: g, p: g.suite.Point().Null()}
}

func (g *KyberGroup) ScalarBaseMult(e uint64) Point {
	if e >= 1<<62 {
		panic(fmt.Sprintf("exponent %d out of range for the kyber adapter", e))
	}
	s := g.suite.Scalar().SetInt64(int64(e))
	return &kyberPoint{group: g, p: g.suite.Point().Mul(s, nil)}
}

func (g *KyberGroup) Decompress(key []byte) (Point, error) {
	if len(key) != g.suite.PointLen() {
		return nil, errors.Errorf("%s key must be %d bytes, got %d", g.name, g.suite.PointLen(), len(key))
	}
	p := g.suite.Point()
	if err := p.UnmarshalBinary(key); err != nil {
		return nil, errors.WrapPrefix(err, "invalid point encoding", 0)
	}
	return &kyberPoint{group: g, p: p}, nil
}

func (p *kyberPoint) Add(q Point) Point {
	o := q.(*kyberPoint)
	return &kyberPoint{group: p.group, p: p.group.suite.Point().Add(p.p, o.p)}
}

func (p *kyberPoint) Negate() Point {
	return &kyberPoint{group: p.group, p: p.group.suite.Point().Neg(p.p)}
}

func (p *kyberPoint) Compress() []byte {
	buf, err := p.p.MarshalBinary()
	if err != nil {
		// The standard suites only fail on malformed internal state, which
		// the adapter never constructs.
		panic(fmt.Sprintf("kyber point marshal failed: %v", err))
	}
	return buf
}

func (p *kyberPoint) Equal(q Point) bool {
	return p.p.Equal(q.(*kyberPoint).p)
}
