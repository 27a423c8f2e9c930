package dlog

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/privacybydesign/dlog/group"
	"github.com/privacybydesign/dlog/internal/common"
)

// testBl12Settings returns settings whose tame walks cover every effective
// wild start: stride one over the whole span, a walk budget that all but
// rules out abandoned walks, and a table cap the start cycle cannot reach.
// Solving any in-range exponent is then deterministic.
func testBl12Settings() Bl12Settings {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	return Bl12Settings{
		RangeBits:      6,
		TableSize:      128,
		WalkSpacing:    2,
		StepArraySize:  8,
		WalkMultiplier: 256,
		MaxOnlineSteps: 4096,
		Seed:           seed,
	}
}

func TestBl12RoundTripSmallRange(t *testing.T) {
	g := group.NewEd25519Group()
	engine, err := NewBl12Engine(g, testBl12Settings())
	require.NoError(t, err)
	require.Equal(t, "bl12", engine.AlgorithmName())
	require.Equal(t, uint(6), engine.RangeBits())

	for x := uint64(0); x < 64; x++ {
		got, err := engine.Solve(g.ScalarBaseMult(x))
		require.NoError(t, err, "exponent %d", x)
		require.Equal(t, x, got)
	}

	got, err := engine.Solve(g.Identity())
	require.NoError(t, err)
	require.Zero(t, got)
}

func TestBl12Deterministic(t *testing.T) {
	cfg := testBl12Settings()
	g := group.NewEd25519Group()

	cfg.Workers = 1
	serial, err := GenerateDistinguishedPointTable(g, cfg)
	require.NoError(t, err)
	cfg.Workers = 8
	parallel, err := GenerateDistinguishedPointTable(g, cfg)
	require.NoError(t, err)

	require.Equal(t, serial.Len(), parallel.Len())
	require.Equal(t, serial.Entries(), parallel.Entries())
	require.Equal(t, serial.StepSizes(), parallel.StepSizes())

	require.EqualValues(t, 2, serial.Spacing())
	require.EqualValues(t, 512, serial.WalkLimit())
	require.Len(t, serial.StepSizes(), 8)
	require.Equal(t, cfg.Seed, serial.Seed())
}

func TestBl12NotFound(t *testing.T) {
	g := group.NewEd25519Group()
	engine, err := NewBl12Engine(g, testBl12Settings())
	require.NoError(t, err)

	// 64 and 65 walk amid the tame paths, so their candidates are found
	// but rejected as out of range; the high targets never meet a stored
	// point at all. Either way the online budget runs out.
	for _, x := range []uint64{64, 65, 1 << 20, 1 << 40} {
		_, err := engine.Solve(g.ScalarBaseMult(x))
		require.ErrorIs(t, err, ErrNotFound, "exponent %d", x)
	}
}

func TestBl12TableSharing(t *testing.T) {
	g := group.NewEd25519Group()
	table, err := GenerateDistinguishedPointTable(g, testBl12Settings())
	require.NoError(t, err)

	a, err := NewBl12EngineFromTable(g, table, 0)
	require.NoError(t, err)
	b, err := NewBl12EngineFromTable(g, table, 4096)
	require.NoError(t, err)
	require.Same(t, a.Table(), b.Table())
	require.EqualValues(t, 4*table.WalkLimit(), a.maxOnline)
	require.EqualValues(t, 4096, b.maxOnline)

	for _, x := range []uint64{3, 49} {
		got, err := a.Solve(g.ScalarBaseMult(x))
		require.NoError(t, err)
		require.Equal(t, x, got)
		got, err = b.Solve(g.ScalarBaseMult(x))
		require.NoError(t, err)
		require.Equal(t, x, got)
	}
}

func TestBl12AssembleRoundTrip(t *testing.T) {
	g := group.NewEd25519Group()
	table, err := GenerateDistinguishedPointTable(g, testBl12Settings())
	require.NoError(t, err)

	sip0, sip1 := table.SipKeys()
	rebuilt, err := AssembleDistinguishedPointTable(table.GroupName(), table.KeySize(),
		table.RangeBits(), table.Spacing(), table.WalkLimit(), table.StepSizes(),
		sip0, sip1, table.Seed(), table.Entries())
	require.NoError(t, err)
	require.Equal(t, table.Entries(), rebuilt.Entries())

	engine, err := NewBl12EngineFromTable(g, rebuilt, 0)
	require.NoError(t, err)
	for _, x := range []uint64{0, 1, 31, 63} {
		got, err := engine.Solve(g.ScalarBaseMult(x))
		require.NoError(t, err)
		require.Equal(t, x, got)
	}
}

func TestBl12TableMismatch(t *testing.T) {
	ed := group.NewEd25519Group()
	table, err := GenerateDistinguishedPointTable(ed, testBl12Settings())
	require.NoError(t, err)

	_, err = NewBl12EngineFromTable(group.NewSecp256k1Group(), table, 0)
	require.ErrorIs(t, err, ErrTableMismatch)

	_, err = NewBl12EngineFromTable(ed, nil, 0)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBl12ConfigErrors(t *testing.T) {
	g := group.NewEd25519Group()
	cases := []struct {
		name   string
		mutate func(*Bl12Settings)
	}{
		{"zero range", func(c *Bl12Settings) { c.RangeBits = 0 }},
		{"range too wide", func(c *Bl12Settings) { c.RangeBits = MaxRangeBits + 1 }},
		{"zero table size", func(c *Bl12Settings) { c.TableSize = 0 }},
		{"table size too large", func(c *Bl12Settings) { c.TableSize = 1 << 33 }},
		{"spacing one", func(c *Bl12Settings) { c.WalkSpacing = 1 }},
		{"spacing not a power of two", func(c *Bl12Settings) { c.WalkSpacing = 3 }},
		{"step array not a power of two", func(c *Bl12Settings) { c.StepArraySize = 3 }},
		{"zero walk multiplier", func(c *Bl12Settings) { c.WalkMultiplier = 0 }},
		{"walk budget too large", func(c *Bl12Settings) {
			c.WalkSpacing = 1 << 16
			c.WalkMultiplier = 1 << 20
		}},
		{"step bits too large", func(c *Bl12Settings) { c.StepBits = 39 }},
	}
	for _, c := range cases {
		cfg := testBl12Settings()
		c.mutate(&cfg)
		_, err := GenerateDistinguishedPointTable(g, cfg)
		require.ErrorIs(t, err, ErrInvalidConfig, c.name)
	}

	// Keys narrower than the 8 bytes the distinguished-point test reads.
	_, err := GenerateDistinguishedPointTable(testSchnorrGroup(t), testBl12Settings())
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBl12SchnorrBackend(t *testing.T) {
	g := group.NewSchnorrGroup()
	engine, err := NewBl12Engine(g, testBl12Settings())
	require.NoError(t, err)

	for _, x := range []uint64{0, 1, 17, 40, 63} {
		got, err := engine.Solve(g.ScalarBaseMult(x))
		require.NoError(t, err)
		require.Equal(t, x, got)
	}
}

func TestBl12DefaultParameters(t *testing.T) {
	params, err := MakeSystemParameters(10)
	require.NoError(t, err)

	g := group.NewEd25519Group()
	engine, err := NewBl12Engine(g, params.Bl12())
	require.NoError(t, err)
	require.Equal(t, uint(10), engine.RangeBits())
	require.Greater(t, engine.Table().Len(), 0)

	for n := 0; n < 20; n++ {
		x := common.FastRandomBits(10)
		got, err := engine.Solve(g.ScalarBaseMult(x))
		require.NoError(t, err, "exponent %d", x)
		require.Equal(t, x, got)
	}
}

func TestMain(m *testing.M) {
	Logger.SetLevel(logrus.FatalLevel)
	os.Exit(m.Run())
}
