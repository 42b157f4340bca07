package fixture

import (
	"path/filepath"
	"testing"

	"cancompliance.dev/bitframe"
	"cancompliance.dev/canbus"
	"cancompliance.dev/frame"
	"cancompliance.dev/testseq"
	"cancompliance.dev/timing"
)

func buildSeq(t *testing.T) (frame.Frame, *testseq.Sequence) {
	t.Helper()
	nominal := &timing.BitTiming{Brp: 4, Prop: 2, Ph1: 3, Ph2: 3, Sjw: 2}
	data := &timing.BitTiming{Brp: 1, Prop: 1, Ph1: 2, Ph2: 2, Sjw: 1}
	f := frame.New(
		frame.WithFlags(frame.NewFlags(frame.WithKind(canbus.Can20), frame.WithRtr(canbus.DataFrame))),
		frame.WithIdent(0x321),
		frame.WithData([]byte{1, 2, 3}),
	)
	bf, err := bitframe.New(f, nominal, data)
	if err != nil {
		t.Fatalf("bitframe.New: %v", err)
	}
	return f, testseq.Build(bf)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	f, seq := buildSeq(t)
	path := filepath.Join(t.TempDir(), "frame.cbor.gz")

	rec := NewRecord(42, f, seq)
	if err := Save(path, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Seed != 42 || got.Ident != f.Ident || got.Dlc != f.Dlc {
		t.Fatalf("loaded record = %+v, want seed=42 ident=%#x dlc=%d", got, f.Ident, f.Dlc)
	}
	if len(got.Driver) != len(rec.Driver) {
		t.Fatalf("loaded driver has %d items, want %d", len(got.Driver), len(rec.Driver))
	}
	gotFrame := got.Frame()
	if !gotFrame.Flags.Equal(f.Flags) {
		t.Fatalf("round-tripped flags = %+v, want %+v", gotFrame.Flags, f.Flags)
	}
}

func TestCompareDetectsMismatch(t *testing.T) {
	f, seq := buildSeq(t)
	path := filepath.Join(t.TempDir(), "frame.cbor.gz")

	if err := Compare(path, true, 7, f, seq); err != nil {
		t.Fatalf("Compare(update=true): %v", err)
	}
	if err := Compare(path, false, 7, f, seq); err != nil {
		t.Fatalf("Compare against unchanged golden should pass: %v", err)
	}

	seq.Driver[0].Cycles++
	if err := Compare(path, false, 7, f, seq); err == nil {
		t.Fatal("Compare should fail after mutating the driver stream")
	}
}
