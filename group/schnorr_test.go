package group

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchnorrDefaultGroup(t *testing.T) {
	g := NewSchnorrGroup()

	require.Equal(t, 2048, g.Modulus().BitLen())
	require.Equal(t, 256, g.CompressedSize())
	require.True(t, strings.HasPrefix(g.Name(), "schnorr2048-"))

	// p = 2q+1 and the generator lies in the subgroup of order q.
	p := g.Modulus()
	q := g.SubgroupOrder()
	require.Equal(t, p, new(big.Int).Add(new(big.Int).Lsh(q, 1), big.NewInt(1)))
	require.True(t, g.ScalarBaseMult(5).Equal(g.Generator().Add(g.ScalarBaseMult(4))))
}

func TestSchnorrMatchesBigIntExp(t *testing.T) {
	g := NewSchnorrGroup()

	for _, e := range []uint64{0, 1, 2, 1000, 1 << 40} {
		want := new(big.Int).Exp(g.g, new(big.Int).SetUint64(e), g.p)
		buf := make([]byte, g.keySize)
		want.FillBytes(buf)
		require.Equal(t, buf, g.ScalarBaseMult(e).Compress(), "exponent %d", e)
	}
}

func TestSchnorrDecompressRejectsNonResidue(t *testing.T) {
	g := NewSchnorrGroup()

	buf := make([]byte, g.keySize)

	// 0 and p are outside (0, p).
	_, err := g.Decompress(buf)
	require.Error(t, err)
	g.Modulus().FillBytes(buf)
	_, err = g.Decompress(buf)
	require.Error(t, err)

	// p = 3 mod 4, so -1 is not a quadratic residue.
	new(big.Int).Sub(g.Modulus(), big.NewInt(1)).FillBytes(buf)
	_, err = g.Decompress(buf)
	require.Error(t, err)
}

func TestSchnorrSmallParams(t *testing.T) {
	// p = 23 = 2*11+1; 4 generates the residues {1,2,3,4,6,8,9,12,13,16,18}.
	g, err := NewSchnorrGroupFromParams(big.NewInt(23), big.NewInt(4))
	require.NoError(t, err)
	require.Equal(t, 1, g.CompressedSize())
	require.Equal(t, int64(11), g.SubgroupOrder().Int64())

	seen := make(map[string]bool)
	for e := uint64(0); e < 11; e++ {
		seen[string(g.ScalarBaseMult(e).Compress())] = true
	}
	require.Len(t, seen, 11)

	// Exponents reduce modulo the subgroup order.
	require.True(t, g.ScalarBaseMult(13).Equal(g.ScalarBaseMult(2)))

	// Rejected parameters: non-safe modulus, generator outside the residues.
	_, err = NewSchnorrGroupFromParams(big.NewInt(25), big.NewInt(4))
	require.Error(t, err)
	_, err = NewSchnorrGroupFromParams(big.NewInt(23), big.NewInt(5))
	require.Error(t, err)
}

func TestGenerateSafePrime(t *testing.T) {
	p, err := generateSafePrime(32, nil)
	require.NoError(t, err)
	require.Equal(t, 32, p.BitLen())
	require.True(t, probablySafePrime(p, 40))
}

func TestGenerateSchnorrGroup(t *testing.T) {
	g, err := GenerateSchnorrGroup(64, nil)
	require.NoError(t, err)
	require.Equal(t, 64, g.Modulus().BitLen())

	// Generated groups must round-trip like the fixed ones.
	p := g.ScalarBaseMult(1234)
	q, err := g.Decompress(p.Compress())
	require.NoError(t, err)
	require.True(t, p.Equal(q))
}

func TestGenerateSchnorrGroupStop(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	_, err := GenerateSchnorrGroup(256, stop)
	require.ErrorIs(t, err, ErrStopped)
}

func TestProbablySafePrime(t *testing.T) {
	require.True(t, probablySafePrime(big.NewInt(7), 40))
	require.True(t, probablySafePrime(big.NewInt(23), 40))
	require.True(t, probablySafePrime(big.NewInt(59), 40))
	require.False(t, probablySafePrime(big.NewInt(13), 40))
	require.False(t, probablySafePrime(big.NewInt(25), 40))
	require.False(t, probablySafePrime(big.NewInt(2), 40))
}
