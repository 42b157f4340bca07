// Package fixture records and replays testseq.Sequence streams as
// gzip-compressed CBOR golden files, so a compliance test can pin its
// expected driver/monitor cycle stream once and fail loudly the next
// time a change to the bit-level engine alters it — the same
// update/compare workflow the teacher's internal/golden package uses
// for spline golden files, applied to CAN bit streams instead.
package fixture

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"

	"cancompliance.dev/canbus"
	"cancompliance.dev/frame"
	"cancompliance.dev/testseq"
)

// item is the CBOR wire form of a testseq.Item.
type item struct {
	Val          int8 `cbor:"1,keyasint"`
	Rate         int8 `cbor:"2,keyasint"`
	Kind         int8 `cbor:"3,keyasint"`
	Cycles       int  `cbor:"4,keyasint"`
	SamplePeriod int  `cbor:"5,keyasint"`
}

// Record is the CBOR wire form of one recorded test run: the seed
// that produced it, the logical frame, and the resulting driver and
// monitor streams.
type Record struct {
	Seed    int64  `cbor:"1,keyasint"`
	Ident   int    `cbor:"2,keyasint"`
	Kind    int8   `cbor:"3,keyasint"`
	IdKind  int8   `cbor:"4,keyasint"`
	Rtr     int8   `cbor:"5,keyasint"`
	Brs     int8   `cbor:"6,keyasint"`
	Esi     int8   `cbor:"7,keyasint"`
	Dlc     uint8  `cbor:"8,keyasint"`
	Data    []byte `cbor:"9,keyasint"`
	Driver  []item `cbor:"10,keyasint"`
	Monitor []item `cbor:"11,keyasint"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("fixture: building cbor encode mode: %v", err))
	}
	encMode = em
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("fixture: building cbor decode mode: %v", err))
	}
	decMode = dm
}

func toItems(items []testseq.Item) []item {
	out := make([]item, len(items))
	for i, it := range items {
		out[i] = item{Val: int8(it.Val), Rate: int8(it.Rate), Kind: int8(it.Kind), Cycles: it.Cycles, SamplePeriod: it.SamplePeriod}
	}
	return out
}

func fromItems(items []item) []testseq.Item {
	out := make([]testseq.Item, len(items))
	for i, it := range items {
		out[i] = testseq.Item{
			Val:          canbus.BitVal(it.Val),
			Rate:         canbus.BitRate(it.Rate),
			Kind:         canbus.BitKind(it.Kind),
			Cycles:       it.Cycles,
			SamplePeriod: it.SamplePeriod,
		}
	}
	return out
}

// NewRecord builds a Record from the inputs and outputs of one
// compliance test run.
func NewRecord(seed int64, f frame.Frame, seq *testseq.Sequence) *Record {
	return &Record{
		Seed:    seed,
		Ident:   f.Ident,
		Kind:    int8(f.Flags.Kind),
		IdKind:  int8(f.Flags.Ident),
		Rtr:     int8(f.Flags.Rtr),
		Brs:     int8(f.Flags.Brs),
		Esi:     int8(f.Flags.Esi),
		Dlc:     f.Dlc,
		Data:    append([]byte(nil), f.Data[:f.DataLen]...),
		Driver:  toItems(seq.Driver),
		Monitor: toItems(seq.Monitor),
	}
}

// Frame rebuilds the logical frame.Frame a Record was saved from.
func (r *Record) Frame() frame.Frame {
	return frame.New(
		frame.WithFlags(frame.NewFlags(
			frame.WithKind(canbus.FrameKind(r.Kind)),
			frame.WithIdentKind(canbus.IdentKind(r.IdKind)),
			frame.WithRtr(canbus.RtrFlag(r.Rtr)),
			frame.WithBrs(canbus.BrsFlag(r.Brs)),
			frame.WithEsi(canbus.EsiFlag(r.Esi)),
		)),
		frame.WithIdent(r.Ident),
		frame.WithDlc(r.Dlc),
		frame.WithData(r.Data),
	)
}

// Sequence rebuilds the testseq.Sequence a Record was saved from.
func (r *Record) Sequence() *testseq.Sequence {
	return &testseq.Sequence{Driver: fromItems(r.Driver), Monitor: fromItems(r.Monitor)}
}

// Save writes rec to path as a gzip-compressed CBOR blob.
func Save(path string, rec *Record) error {
	enc, err := encMode.Marshal(rec)
	if err != nil {
		return fmt.Errorf("fixture: encoding %s: %w", path, err)
	}
	buf := new(bytes.Buffer)
	gw, err := gzip.NewWriterLevel(buf, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("fixture: %s: %w", path, err)
	}
	if _, err := gw.Write(enc); err != nil {
		return fmt.Errorf("fixture: %s: %w", path, err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("fixture: %s: %w", path, err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o640)
}

// Load reads and decodes the Record previously written by Save.
func Load(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("fixture: %s: %w", path, err)
	}
	enc, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("fixture: %s: %w", path, err)
	}
	var rec Record
	if err := decMode.Unmarshal(enc, &rec); err != nil {
		return nil, fmt.Errorf("fixture: decoding %s: %w", path, err)
	}
	return &rec, nil
}

// Compare loads the golden Record at path and compares it against
// seed/f/seq, or, if update is true, overwrites the golden file with
// them instead. It is the fixture-package equivalent of the teacher's
// internal/golden.CompareBSpline workflow.
func Compare(path string, update bool, seed int64, f frame.Frame, seq *testseq.Sequence) error {
	rec := NewRecord(seed, f, seq)
	if update {
		return Save(path, rec)
	}
	golden, err := Load(path)
	if err != nil {
		return err
	}
	if len(golden.Driver) != len(rec.Driver) {
		return fmt.Errorf("fixture: %s: driver stream has %d items, golden has %d", path, len(rec.Driver), len(golden.Driver))
	}
	for i := range golden.Driver {
		if golden.Driver[i] != rec.Driver[i] {
			return fmt.Errorf("fixture: %s: driver item %d = %+v, golden has %+v", path, i, rec.Driver[i], golden.Driver[i])
		}
	}
	if len(golden.Monitor) != len(rec.Monitor) {
		return fmt.Errorf("fixture: %s: monitor stream has %d items, golden has %d", path, len(rec.Monitor), len(golden.Monitor))
	}
	for i := range golden.Monitor {
		if golden.Monitor[i] != rec.Monitor[i] {
			return fmt.Errorf("fixture: %s: monitor item %d = %+v, golden has %+v", path, i, rec.Monitor[i], golden.Monitor[i])
		}
	}
	return nil
}
