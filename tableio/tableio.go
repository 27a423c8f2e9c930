// Package tableio persists precomputed solver tables as CBOR files. A file
// is an envelope holding a versioned, kind-tagged payload plus a sha2-256
// multihash of the payload bytes, so corrupted or truncated files are
// rejected on load. Payloads hold the rows in canonical Entries() order and
// are encoded deterministically: the same table always produces the same
// bytes.
//
// Loading re-assembles the table through the dlog Assemble constructors, so
// semantic problems (bad coverage, wrong key widths) surface as the usual
// dlog table errors rather than as decoding failures.
package tableio

import (
	"bytes"
	"io"
	"os"

	"github.com/go-errors/errors"
	"github.com/multiformats/go-multihash"

	"github.com/privacybydesign/dlog"
	"github.com/privacybydesign/dlog/cbor"
	"github.com/privacybydesign/dlog/internal/common"
)

// Version is the table file format version.
const Version = 1

// Table kinds stored in the envelope.
const (
	KindBabyStep           = "baby-step"
	KindTruncatedBabyStep  = "truncated-baby-step"
	KindDistinguishedPoint = "distinguished-point"
)

type (
	// envelope is the outer structure of a table file.
	envelope struct {
		Version int
		Kind    string
		Payload []byte
		Digest  []byte
	}

	babyStepPayload struct {
		GroupName string
		KeySize   int
		RangeBits uint
		Entries   []dlog.BabyStepEntry
	}

	truncatedPayload struct {
		GroupName string
		KeySize   int
		KeyBytes  int
		RangeBits uint
		Entries   []dlog.TruncatedEntry
	}

	distinguishedPayload struct {
		GroupName string
		KeySize   int
		RangeBits uint
		Spacing   uint64
		WalkLimit uint64
		StepSizes []uint64
		SipKey0   uint64
		SipKey1   uint64
		Seed      []byte
		Entries   []dlog.DistinguishedPointEntry
	}
)

// seal encodes the payload and wraps it in a digest-carrying envelope.
func seal(kind string, payload interface{}) ([]byte, error) {
	bts, err := cbor.Marshal(payload)
	if err != nil {
		return nil, errors.WrapPrefix(err, "failed to encode table", 0)
	}
	digest, err := multihash.Sum(bts, multihash.SHA2_256, -1)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(&envelope{
		Version: Version,
		Kind:    kind,
		Payload: bts,
		Digest:  digest,
	})
}

// open unwraps an envelope, checks version, kind and digest, and decodes
// the payload.
func open(data []byte, kind string, payload interface{}) error {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return errors.WrapPrefix(err, "unreadable table file", 0)
	}
	if env.Version != Version {
		return errors.Errorf("unsupported table file version %d", env.Version)
	}
	if env.Kind != kind {
		return errors.Errorf("table file holds %q, want %q", env.Kind, kind)
	}
	digest, err := multihash.Sum(env.Payload, multihash.SHA2_256, -1)
	if err != nil {
		return err
	}
	if !bytes.Equal(digest, env.Digest) {
		return errors.New("table file digest mismatch")
	}
	if err := cbor.Unmarshal(env.Payload, payload); err != nil {
		return errors.WrapPrefix(err, "invalid table payload", 0)
	}
	return nil
}

// Kind reports which table kind the serialized bytes hold, without decoding
// the payload.
func Kind(data []byte) (string, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return "", errors.WrapPrefix(err, "unreadable table file", 0)
	}
	if env.Version != Version {
		return "", errors.Errorf("unsupported table file version %d", env.Version)
	}
	return env.Kind, nil
}

// MarshalBabyStepTable serializes a baby-step table.
func MarshalBabyStepTable(table *dlog.BabyStepTable) ([]byte, error) {
	return seal(KindBabyStep, &babyStepPayload{
		GroupName: table.GroupName(),
		KeySize:   table.KeySize(),
		RangeBits: table.RangeBits(),
		Entries:   table.Entries(),
	})
}

// UnmarshalBabyStepTable deserializes and re-validates a baby-step table.
func UnmarshalBabyStepTable(data []byte) (*dlog.BabyStepTable, error) {
	var payload babyStepPayload
	if err := open(data, KindBabyStep, &payload); err != nil {
		return nil, err
	}
	return dlog.AssembleBabyStepTable(payload.GroupName, payload.KeySize, payload.RangeBits, payload.Entries)
}

// MarshalTruncatedBabyStepTable serializes a truncated baby-step table.
func MarshalTruncatedBabyStepTable(table *dlog.TruncatedBabyStepTable) ([]byte, error) {
	return seal(KindTruncatedBabyStep, &truncatedPayload{
		GroupName: table.GroupName(),
		KeySize:   table.KeySize(),
		KeyBytes:  table.KeyBytes(),
		RangeBits: table.RangeBits(),
		Entries:   table.Entries(),
	})
}

// UnmarshalTruncatedBabyStepTable deserializes and re-validates a truncated
// baby-step table.
func UnmarshalTruncatedBabyStepTable(data []byte) (*dlog.TruncatedBabyStepTable, error) {
	var payload truncatedPayload
	if err := open(data, KindTruncatedBabyStep, &payload); err != nil {
		return nil, err
	}
	return dlog.AssembleTruncatedBabyStepTable(payload.GroupName, payload.KeySize,
		payload.KeyBytes, payload.RangeBits, payload.Entries)
}

// MarshalDistinguishedPointTable serializes a distinguished-point table
// with its walk parameters.
func MarshalDistinguishedPointTable(table *dlog.DistinguishedPointTable) ([]byte, error) {
	sip0, sip1 := table.SipKeys()
	return seal(KindDistinguishedPoint, &distinguishedPayload{
		GroupName: table.GroupName(),
		KeySize:   table.KeySize(),
		RangeBits: table.RangeBits(),
		Spacing:   table.Spacing(),
		WalkLimit: table.WalkLimit(),
		StepSizes: table.StepSizes(),
		SipKey0:   sip0,
		SipKey1:   sip1,
		Seed:      table.Seed(),
		Entries:   table.Entries(),
	})
}

// UnmarshalDistinguishedPointTable deserializes and re-validates a
// distinguished-point table.
func UnmarshalDistinguishedPointTable(data []byte) (*dlog.DistinguishedPointTable, error) {
	var payload distinguishedPayload
	if err := open(data, KindDistinguishedPoint, &payload); err != nil {
		return nil, err
	}
	return dlog.AssembleDistinguishedPointTable(payload.GroupName, payload.KeySize,
		payload.RangeBits, payload.Spacing, payload.WalkLimit, payload.StepSizes,
		payload.SipKey0, payload.SipKey1, payload.Seed, payload.Entries)
}

// SaveBabyStepTable writes a baby-step table to a file.
func SaveBabyStepTable(path string, table *dlog.BabyStepTable) error {
	bts, err := MarshalBabyStepTable(table)
	if err != nil {
		return err
	}
	return writeFile(path, bts)
}

// LoadBabyStepTable reads a baby-step table from a file.
func LoadBabyStepTable(path string) (*dlog.BabyStepTable, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalBabyStepTable(data)
}

// SaveTruncatedBabyStepTable writes a truncated baby-step table to a file.
func SaveTruncatedBabyStepTable(path string, table *dlog.TruncatedBabyStepTable) error {
	bts, err := MarshalTruncatedBabyStepTable(table)
	if err != nil {
		return err
	}
	return writeFile(path, bts)
}

// LoadTruncatedBabyStepTable reads a truncated baby-step table from a file.
func LoadTruncatedBabyStepTable(path string) (*dlog.TruncatedBabyStepTable, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalTruncatedBabyStepTable(data)
}

// SaveDistinguishedPointTable writes a distinguished-point table to a file.
func SaveDistinguishedPointTable(path string, table *dlog.DistinguishedPointTable) error {
	bts, err := MarshalDistinguishedPointTable(table)
	if err != nil {
		return err
	}
	return writeFile(path, bts)
}

// LoadDistinguishedPointTable reads a distinguished-point table from a file.
func LoadDistinguishedPointTable(path string) (*dlog.DistinguishedPointTable, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return UnmarshalDistinguishedPointTable(data)
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer common.Close(f)
	return io.ReadAll(f)
}

func writeFile(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		common.Close(f)
		return err
	}
	return f.Close()
}
