package tableio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/privacybydesign/dlog"
	"github.com/privacybydesign/dlog/cbor"
	"github.com/privacybydesign/dlog/group"
)

func testDistinguishedTable(t *testing.T, g group.Group) *dlog.DistinguishedPointTable {
	t.Helper()
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}
	table, err := dlog.GenerateDistinguishedPointTable(g, dlog.Bl12Settings{
		RangeBits:      6,
		TableSize:      128,
		WalkSpacing:    2,
		StepArraySize:  8,
		WalkMultiplier: 256,
		Seed:           seed,
	})
	require.NoError(t, err)
	return table
}

func TestBabyStepTableRoundTrip(t *testing.T) {
	g := group.NewEd25519Group()
	table, err := dlog.GenerateBabyStepTable(g, 12, 0)
	require.NoError(t, err)

	data, err := MarshalBabyStepTable(table)
	require.NoError(t, err)

	// Deterministic encoding: marshaling again yields the same bytes.
	again, err := MarshalBabyStepTable(table)
	require.NoError(t, err)
	require.Equal(t, data, again)

	kind, err := Kind(data)
	require.NoError(t, err)
	require.Equal(t, KindBabyStep, kind)

	loaded, err := UnmarshalBabyStepTable(data)
	require.NoError(t, err)
	require.Equal(t, table.GroupName(), loaded.GroupName())
	require.Equal(t, table.KeySize(), loaded.KeySize())
	require.Equal(t, table.RangeBits(), loaded.RangeBits())
	require.Equal(t, table.M(), loaded.M())
	require.Equal(t, table.Entries(), loaded.Entries())

	engine, err := dlog.NewBsgsEngineFromTable(g, loaded)
	require.NoError(t, err)
	for _, x := range []uint64{0, 63, 4095} {
		got, err := engine.Solve(g.ScalarBaseMult(x))
		require.NoError(t, err)
		require.Equal(t, x, got)
	}
}

func TestTruncatedBabyStepTableRoundTrip(t *testing.T) {
	g := group.NewEd25519Group()
	table, err := dlog.GenerateTruncatedBabyStepTable(g, 12, 1, 0)
	require.NoError(t, err)

	data, err := MarshalTruncatedBabyStepTable(table)
	require.NoError(t, err)
	kind, err := Kind(data)
	require.NoError(t, err)
	require.Equal(t, KindTruncatedBabyStep, kind)

	loaded, err := UnmarshalTruncatedBabyStepTable(data)
	require.NoError(t, err)
	require.Equal(t, table.KeyBytes(), loaded.KeyBytes())
	require.Equal(t, table.M(), loaded.M())
	require.Equal(t, table.Entries(), loaded.Entries())

	engine, err := dlog.NewTbsgsKEngineFromTable(g, loaded)
	require.NoError(t, err)
	got, err := engine.Solve(g.ScalarBaseMult(2023))
	require.NoError(t, err)
	require.EqualValues(t, 2023, got)
}

func TestDistinguishedPointTableRoundTrip(t *testing.T) {
	g := group.NewEd25519Group()
	table := testDistinguishedTable(t, g)

	data, err := MarshalDistinguishedPointTable(table)
	require.NoError(t, err)
	again, err := MarshalDistinguishedPointTable(table)
	require.NoError(t, err)
	require.Equal(t, data, again)

	kind, err := Kind(data)
	require.NoError(t, err)
	require.Equal(t, KindDistinguishedPoint, kind)

	loaded, err := UnmarshalDistinguishedPointTable(data)
	require.NoError(t, err)
	require.Equal(t, table.Spacing(), loaded.Spacing())
	require.Equal(t, table.WalkLimit(), loaded.WalkLimit())
	require.Equal(t, table.StepSizes(), loaded.StepSizes())
	sip0, sip1 := table.SipKeys()
	lsip0, lsip1 := loaded.SipKeys()
	require.Equal(t, sip0, lsip0)
	require.Equal(t, sip1, lsip1)
	require.Equal(t, table.Seed(), loaded.Seed())
	require.Equal(t, table.Len(), loaded.Len())
	require.Equal(t, table.Entries(), loaded.Entries())

	engine, err := dlog.NewBl12EngineFromTable(g, loaded, 0)
	require.NoError(t, err)
	for _, x := range []uint64{0, 17, 63} {
		got, err := engine.Solve(g.ScalarBaseMult(x))
		require.NoError(t, err)
		require.Equal(t, x, got)
	}
}

func TestSaveLoadFiles(t *testing.T) {
	g := group.NewEd25519Group()
	dir := t.TempDir()

	baby, err := dlog.GenerateBabyStepTable(g, 10, 0)
	require.NoError(t, err)
	path := filepath.Join(dir, "baby.cbor")
	require.NoError(t, SaveBabyStepTable(path, baby))
	loaded, err := LoadBabyStepTable(path)
	require.NoError(t, err)
	require.Equal(t, baby.Entries(), loaded.Entries())

	truncated, err := dlog.GenerateTruncatedBabyStepTable(g, 10, 1, 0)
	require.NoError(t, err)
	tpath := filepath.Join(dir, "truncated.cbor")
	require.NoError(t, SaveTruncatedBabyStepTable(tpath, truncated))
	tloaded, err := LoadTruncatedBabyStepTable(tpath)
	require.NoError(t, err)
	require.Equal(t, truncated.Entries(), tloaded.Entries())

	dp := testDistinguishedTable(t, g)
	dpath := filepath.Join(dir, "dp.cbor")
	require.NoError(t, SaveDistinguishedPointTable(dpath, dp))
	dploaded, err := LoadDistinguishedPointTable(dpath)
	require.NoError(t, err)
	require.Equal(t, dp.Entries(), dploaded.Entries())

	_, err = LoadBabyStepTable(filepath.Join(dir, "missing.cbor"))
	require.Error(t, err)
}

func TestRejectsCorruptFiles(t *testing.T) {
	g := group.NewEd25519Group()
	table, err := dlog.GenerateBabyStepTable(g, 8, 0)
	require.NoError(t, err)
	data, err := MarshalBabyStepTable(table)
	require.NoError(t, err)

	// Flip a payload byte but keep the stale digest.
	var env envelope
	require.NoError(t, cbor.Unmarshal(data, &env))
	env.Payload[len(env.Payload)/2] ^= 0xff
	tampered, err := cbor.Marshal(&env)
	require.NoError(t, err)
	_, err = UnmarshalBabyStepTable(tampered)
	require.Error(t, err)
	require.Contains(t, err.Error(), "digest")

	require.NoError(t, cbor.Unmarshal(data, &env))
	env.Version = 99
	skewed, err := cbor.Marshal(&env)
	require.NoError(t, err)
	_, err = UnmarshalBabyStepTable(skewed)
	require.Error(t, err)
	require.Contains(t, err.Error(), "version")

	// A wrong loader for a valid file.
	_, err = UnmarshalTruncatedBabyStepTable(data)
	require.Error(t, err)
	require.Contains(t, err.Error(), "want")

	_, err = UnmarshalBabyStepTable([]byte("not a table"))
	require.Error(t, err)
	_, err = Kind([]byte("not a table"))
	require.Error(t, err)
}

func TestSemanticErrorsComeFromAssembly(t *testing.T) {
	g := group.NewEd25519Group()
	table, err := dlog.GenerateBabyStepTable(g, 8, 0)
	require.NoError(t, err)
	data, err := MarshalBabyStepTable(table)
	require.NoError(t, err)

	// Drop a row: the file itself is well formed, so the failure comes
	// from table assembly.
	var payload babyStepPayload
	require.NoError(t, open(data, KindBabyStep, &payload))
	payload.Entries = payload.Entries[:len(payload.Entries)-1]
	short, err := seal(KindBabyStep, &payload)
	require.NoError(t, err)
	_, err = UnmarshalBabyStepTable(short)
	require.ErrorIs(t, err, dlog.ErrTableMismatch)

	// A loaded table is still bound to its group by the engine constructor.
	loaded, err := UnmarshalBabyStepTable(data)
	require.NoError(t, err)
	_, err = dlog.NewBsgsEngineFromTable(group.NewSecp256k1Group(), loaded)
	require.ErrorIs(t, err, dlog.ErrTableMismatch)
}

func TestMain(m *testing.M) {
	dlog.Logger.SetLevel(logrus.FatalLevel)
	os.Exit(m.Run())
}
