package group

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v3/group/edwards25519"
)

// The kyber Ed25519 suite uses the standard point encoding, so the adapter
// must agree key for key with the native backend.
func TestKyberMatchesNativeEd25519(t *testing.T) {
	adapted := NewKyberGroup(edwards25519.NewBlakeSHA256Ed25519())
	native := NewEd25519Group()

	require.Equal(t, native.CompressedSize(), adapted.CompressedSize())

	for _, e := range []uint64{0, 1, 2, 12345, 1 << 40} {
		key := adapted.ScalarBaseMult(e).Compress()
		require.Equal(t, native.ScalarBaseMult(e).Compress(), key, "exponent %d", e)

		p, err := adapted.Decompress(key)
		require.NoError(t, err)
		require.True(t, p.Equal(adapted.ScalarBaseMult(e)))
	}
}

func TestKyberExponentRange(t *testing.T) {
	g := NewKyberGroup(edwards25519.NewBlakeSHA256Ed25519())
	require.Panics(t, func() { g.ScalarBaseMult(1 << 62) })
}
