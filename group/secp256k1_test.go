package group

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecp256k1KnownEncodings(t *testing.T) {
	g := NewSecp256k1Group()

	base, err := hex.DecodeString("0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	require.NoError(t, err)
	require.Equal(t, base, g.Generator().Compress())

	require.Equal(t, make([]byte, 33), g.Identity().Compress())
}

func TestSecp256k1ParityByte(t *testing.T) {
	g := NewSecp256k1Group()

	p := g.ScalarBaseMult(42)
	key := p.Compress()
	neg := p.Negate().Compress()

	// Negation keeps x and flips the parity of y, so only the prefix byte
	// changes.
	require.True(t, bytes.Equal(key[1:], neg[1:]))
	require.NotEqual(t, key[0], neg[0])
	for _, k := range [][]byte{key, neg} {
		require.True(t, k[0] == 0x02 || k[0] == 0x03)
	}
}

func TestSecp256k1DecompressRejectsMalformed(t *testing.T) {
	g := NewSecp256k1Group()

	bad := g.Generator().Compress()
	bad[0] = 0x05
	_, err := g.Decompress(bad)
	require.Error(t, err)

	// x beyond the field prime must not parse.
	overflow := bytes.Repeat([]byte{0xff}, 33)
	overflow[0] = 0x02
	_, err = g.Decompress(overflow)
	require.Error(t, err)
}

func TestSecp256k1BatchCompressWithInfinity(t *testing.T) {
	g := NewSecp256k1Group()

	points := []Point{
		g.ScalarBaseMult(7),
		g.Identity(),
		g.ScalarBaseMult(9),
		g.Identity(),
	}
	keys, err := g.BatchCompress(points)
	require.NoError(t, err)
	for i, p := range points {
		require.Equal(t, p.Compress(), keys[i], "point %d", i)
	}
}
