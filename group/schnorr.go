package group

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"runtime"
	"sync"

	"github.com/bwesterb/go-exptable"
	"github.com/go-errors/errors"

	"github.com/privacybydesign/dlog/internal/common"
)

// rfc3526Modulus2048 is the 2048-bit MODP group modulus from RFC 3526
// section 3, a safe prime. Its quadratic residues form the default Schnorr
// group; 4 = 2² generates them.
const rfc3526Modulus2048 = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
	"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
	"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
	"670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9" +
	"DE2BCBF6955817183995497CEA956AE515D2261898FA0510" +
	"15728E5A8AACAA68FFFFFFFFFFFFFFFF"

// SchnorrGroup is the subgroup of quadratic residues of Z_p* for a safe
// prime p = 2q+1, written multiplicatively: the "generator multiplication"
// of the engines is modular exponentiation here. Compressed keys are the
// fixed-width big-endian residue. Fixed-base exponentiation goes through a
// precomputed window table.
type SchnorrGroup struct {
	p *big.Int // safe prime modulus
	q *big.Int // subgroup order, (p-1)/2
	g *big.Int // generator of the quadratic residues

	gTable  exptable.Table
	pMod    common.FastMod
	keySize int
	name    string
}

type schnorrElement struct {
	group *SchnorrGroup
	v     *big.Int
}

var (
	_ Group = (*SchnorrGroup)(nil)
	_ Point = (*schnorrElement)(nil)
)

// NewSchnorrGroup returns the default Schnorr group: the RFC 3526 2048-bit
// MODP group with generator 4.
func NewSchnorrGroup() *SchnorrGroup {
	p, ok := new(big.Int).SetString(rfc3526Modulus2048, 16)
	if !ok {
		panic("invalid RFC 3526 modulus constant")
	}
	grp, err := newSchnorrGroup(p, big.NewInt(4))
	if err != nil {
		panic(fmt.Sprintf("default Schnorr group rejected: %v", err))
	}
	return grp
}

// NewSchnorrGroupFromParams builds a Schnorr group over the given safe
// prime with the given generator. The generator must be a quadratic residue
// other than 1, so that it generates the full order-q subgroup.
func NewSchnorrGroupFromParams(p, g *big.Int) (*SchnorrGroup, error) {
	if !probablySafePrime(p, 40) {
		return nil, errors.New("modulus is not a safe prime")
	}
	return newSchnorrGroup(p, g)
}

func newSchnorrGroup(p, g *big.Int) (*SchnorrGroup, error) {
	if g.Cmp(bigSchnorrOne) <= 0 || g.Cmp(p) >= 0 {
		return nil, errors.New("generator out of range")
	}
	if common.LegendreSymbol(g, p) != 1 {
		return nil, errors.New("generator is not a quadratic residue")
	}

	grp := &SchnorrGroup{
		p:       new(big.Int).Set(p),
		q:       new(big.Int).Rsh(p, 1),
		g:       new(big.Int).Set(g),
		keySize: (p.BitLen() + 7) / 8,
	}
	grp.gTable.Compute(grp.g, grp.p, 7)
	grp.pMod.Set(grp.p)

	// Distinct parameters must yield distinct names, or a table built over
	// one group could silently be loaded into another.
	h := sha256.New()
	h.Write(grp.p.Bytes())
	h.Write(grp.g.Bytes())
	grp.name = fmt.Sprintf("schnorr%d-%s", p.BitLen(), hex.EncodeToString(h.Sum(nil)[:6]))

	return grp, nil
}

// GenerateSchnorrGroup searches for a fresh safe prime of the given bit
// size on all CPU cores and returns a Schnorr group over it. Generation can
// take minutes for large sizes; send on (or close) stop to abort, in which
// case ErrStopped is returned.
func GenerateSchnorrGroup(pBits int, stop chan struct{}) (*SchnorrGroup, error) {
	if pBits < 64 {
		return nil, errors.Errorf("modulus size %d too small for a safe prime group", pBits)
	}

	count := runtime.GOMAXPROCS(0)
	primes := make(chan *big.Int, count)
	errs := make(chan error, count)

	// The goroutines need a close()d channel to all stop: just sending a
	// struct{}{} on stop would end one but not all of them. We close our own
	// chan regardless of whether the caller close()s stop or sends to it.
	// Both the relay below and the main flow may finish first, hence the Once.
	stopped := make(chan struct{})
	var stopOnce sync.Once
	halt := func() { stopOnce.Do(func() { close(stopped) }) }
	go func() {
		select {
		case <-stop:
			halt()
		case <-stopped: // also closed once a result or error arrives
		}
	}()

	for i := 0; i < count; i++ {
		go func() {
			x, err := generateSafePrime(pBits, stopped)
			if err != nil {
				errs <- err
				return
			}
			// A worker can finish its candidate right as the stop lands;
			// results found after a stop are not delivered.
			select {
			case <-stopped:
				primes <- nil
			default:
				primes <- x
			}
		}()
	}

	var p *big.Int
	select {
	case p = <-primes:
	case err := <-errs:
		halt()
		return nil, err
	}
	halt()

	if p == nil {
		return nil, ErrStopped
	}

	// Raising to an even power lands in the quadratic residues, so this is
	// always a valid generator candidate; 1 can only occur if the base is a
	// multiple of p, which the constant rules out.
	g := new(big.Int).Exp(bigSchnorrGenBase, bigSchnorrGenExp, p)
	return newSchnorrGroup(p, g)
}

// ErrStopped is returned by GenerateSchnorrGroup when aborted through its
// stop channel.
var ErrStopped = errors.New("safe prime generation stopped")

var (
	bigSchnorrOne     = big.NewInt(1)
	bigSchnorrTwo     = big.NewInt(2)
	bigSchnorrGenBase = big.NewInt(0x5AFEC0DE)
	bigSchnorrGenExp  = big.NewInt(0x10002)
)

// generateSafePrime draws random candidates until one satisfies
//
//	if q is prime and 2^(2q) = 1 mod (2q+1), then 2q+1 is a safe prime.
//
// Returns nil, nil when the stopped channel is closed.
func generateSafePrime(bitsize int, stopped chan struct{}) (*big.Int, error) {
	var (
		max        = new(big.Int).Lsh(bigSchnorrOne, uint(bitsize))
		twoq       = new(big.Int)
		twoqone    = new(big.Int)
		twoexptwoq = new(big.Int)
		q          *big.Int
		err        error
		i          int
	)

	for {
		// Every 1000 iterations, check if we have been asked to stop
		i++
		if stopped != nil && i%1000 == 0 {
			select {
			case <-stopped:
				return nil, nil
			default: // just continue with the loop
			}
		}

		if q, err = rand.Int(rand.Reader, max); err != nil {
			return nil, err
		}

		bitlen := q.BitLen() // q < max = 2^bitsize, so bitlen <= bitsize

		if q.Bit(0) != uint(1) || // q is not odd
			bitlen < bitsize-1 { // q is too small
			continue
		}

		// bitlen now equals either bitsize or bitsize - 1. We want the latter.
		// If bitlen == bitsize we use (q-1)/2 instead of q in the remainder.
		if bitlen == bitsize {
			q.Rsh(q, 1)
			if q.Bit(0) != uint(1) {
				continue
			}
		}

		twoq.Mul(bigSchnorrTwo, q)
		twoqone.Add(twoq, bigSchnorrOne)
		twoexptwoq.Exp(bigSchnorrTwo, twoq, twoqone) // 2^(2q) mod (2q+1)

		if twoexptwoq.Cmp(bigSchnorrOne) == 0 && q.ProbablyPrime(40) {
			break
		}
	}

	if !probablySafePrime(twoqone, 40) {
		return nil, errors.New("safe prime candidate failed final check")
	}
	return twoqone, nil
}

// probablySafePrime reports whether x is probably a safe prime, by calling
// big.Int.ProbablyPrime on x as well as on (x-1)/2.
func probablySafePrime(x *big.Int, n int) bool {
	if x.Cmp(bigSchnorrTwo) <= 0 {
		return false
	}
	if !x.ProbablyPrime(n) {
		return false
	}
	y := new(big.Int).Rsh(x, 1)
	return y.ProbablyPrime(n)
}

func (g *SchnorrGroup) Name() string {
	return g.name
}

func (g *SchnorrGroup) CompressedSize() int {
	return g.keySize
}

func (g *SchnorrGroup) Generator() Point {
	return &schnorrElement{group: g, v: new(big.Int).Set(g.g)}
}

func (g *SchnorrGroup) Identity() Point {
	return &schnorrElement{group: g, v: big.NewInt(1)}
}

func (g *SchnorrGroup) ScalarBaseMult(e uint64) Point {
	// Reduce modulo the generator order first: the window table only covers
	// exponents up to the modulus size, which a raw uint64 can exceed for
	// small test groups.
	exp := new(big.Int).SetUint64(e)
	exp.Mod(exp, g.q)
	r := new(big.Int)
	g.gTable.Exp(r, exp)
	return &schnorrElement{group: g, v: r}
}

// Modulus returns a copy of the safe prime p.
func (g *SchnorrGroup) Modulus() *big.Int {
	return new(big.Int).Set(g.p)
}

// SubgroupOrder returns a copy of the subgroup order q = (p-1)/2.
func (g *SchnorrGroup) SubgroupOrder() *big.Int {
	return new(big.Int).Set(g.q)
}

func (g *SchnorrGroup) Decompress(key []byte) (Point, error) {
	if len(key) != g.keySize {
		return nil, errors.Errorf("key must be %d bytes, got %d", g.keySize, len(key))
	}
	v := new(big.Int).SetBytes(key)
	if v.Sign() == 0 || v.Cmp(g.p) >= 0 {
		return nil, errors.New("residue out of range")
	}
	if common.LegendreSymbol(v, g.p) != 1 {
		return nil, errors.New("residue outside the quadratic residue subgroup")
	}
	return &schnorrElement{group: g, v: v}, nil
}

func (p *schnorrElement) Add(q Point) Point {
	o := q.(*schnorrElement)
	r := new(big.Int).Mul(p.v, o.v)
	p.group.pMod.Mod(r, r)
	return &schnorrElement{group: p.group, v: r}
}

func (p *schnorrElement) Negate() Point {
	r := new(big.Int).ModInverse(p.v, p.group.p)
	if r == nil {
		// Cannot happen for subgroup members, which are coprime to p.
		panic("schnorr element without modular inverse")
	}
	return &schnorrElement{group: p.group, v: r}
}

func (p *schnorrElement) Compress() []byte {
	key := make([]byte, p.group.keySize)
	p.v.FillBytes(key)
	return key
}

func (p *schnorrElement) Equal(q Point) bool {
	return p.v.Cmp(q.(*schnorrElement).v) == 0
}
