package testseq

import (
	"testing"

	"cancompliance.dev/bitframe"
	"cancompliance.dev/canbus"
	"cancompliance.dev/frame"
	"cancompliance.dev/timing"
)

func testTimings() (*timing.BitTiming, *timing.BitTiming) {
	nominal := &timing.BitTiming{Brp: 4, Prop: 2, Ph1: 3, Ph2: 3, Sjw: 2}
	data := &timing.BitTiming{Brp: 1, Prop: 1, Ph1: 2, Ph2: 2, Sjw: 1}
	return nominal, data
}

func TestBuildCoalescesAndMatchesTotalCycles(t *testing.T) {
	nominal, data := testTimings()
	f := frame.New(
		frame.WithFlags(frame.NewFlags(frame.WithKind(canbus.Can20), frame.WithRtr(canbus.DataFrame))),
		frame.WithIdent(0x123),
		frame.WithData([]byte{0xAA}),
	)
	bf, err := bitframe.New(f, nominal, data)
	if err != nil {
		t.Fatalf("bitframe.New: %v", err)
	}
	seq := Build(bf)

	want := 0
	for _, b := range bf.Bits {
		want += b.LenCyclesTotal()
	}
	if got := TotalCycles(seq.Driver); got != want {
		t.Fatalf("TotalCycles(Driver) = %d, want %d", got, want)
	}
	if got := TotalCycles(seq.Monitor); got != want {
		t.Fatalf("TotalCycles(Monitor) = %d, want %d", got, want)
	}

	for i := 1; i < len(seq.Driver); i++ {
		prev, cur := seq.Driver[i-1], seq.Driver[i]
		if prev.Val == cur.Val && prev.Rate == cur.Rate && prev.Kind == cur.Kind {
			t.Fatalf("adjacent items %d and %d should have been coalesced", i-1, i)
		}
	}
}

func TestBuildMonitorSplitsStraddlingBits(t *testing.T) {
	nominal, data := testTimings()
	f := frame.New(
		frame.WithFlags(frame.NewFlags(frame.WithKind(canbus.CanFd), frame.WithBrs(canbus.Shift))),
		frame.WithIdent(0x123),
		frame.WithData(make([]byte, 8)),
	)
	bf, err := bitframe.New(f, nominal, data)
	if err != nil {
		t.Fatalf("bitframe.New: %v", err)
	}
	seq := Build(bf)

	sofStart := 0
	sofCycles := bf.Bits[0].LenCyclesTotal()
	sofItems := 0
	pos := 0
	for _, it := range seq.Monitor {
		if pos >= sofStart && pos < sofStart+sofCycles {
			sofItems++
			if it.Cycles != sofCycles {
				t.Fatalf("Sof bit (single bit rate throughout) should be one monitor item of %d cycles, item has %d", sofCycles, it.Cycles)
			}
		}
		pos += it.Cycles
	}
	if sofItems != 1 {
		t.Fatalf("Sof bit produced %d monitor items, want 1", sofItems)
	}

	brsIdx := bf.IndexOf(canbus.Brs, 0)
	if brsIdx < 0 {
		t.Fatal("CAN FD BRS-shifted frame should have a Brs bit")
	}
	start := 0
	for i := 0; i < brsIdx; i++ {
		start += bf.Bits[i].LenCyclesTotal()
	}
	n := bf.Bits[brsIdx].LenCyclesTotal()
	var brsItems []Item
	pos = 0
	for _, it := range seq.Monitor {
		if pos < start+n && pos+it.Cycles > start {
			brsItems = append(brsItems, it)
		}
		pos += it.Cycles
	}
	if len(brsItems) != 2 {
		t.Fatalf("Brs bit should straddle into 2 monitor items, got %d", len(brsItems))
	}
	if brsItems[0].SamplePeriod == brsItems[1].SamplePeriod {
		t.Fatal("Brs bit's two monitor items should carry different sample periods (nominal Tseg1, data Tseg2)")
	}
}

func TestWithMonitorOverride(t *testing.T) {
	nominal, data := testTimings()
	f := frame.New(frame.WithFlags(frame.NewFlags(frame.WithKind(canbus.Can20))), frame.WithIdent(0x10))
	bf, err := bitframe.New(f, nominal, data)
	if err != nil {
		t.Fatalf("bitframe.New: %v", err)
	}
	seq := Build(bf)
	want := TotalCycles(seq.Monitor)

	ackIdx := bf.IndexOf(canbus.Ack, 0)
	if ackIdx < 0 {
		t.Fatal("frame should have an ACK bit")
	}
	seq.WithMonitorOverride(bf, ackIdx, canbus.Dominant)

	if got := TotalCycles(seq.Monitor); got != want {
		t.Fatalf("TotalCycles(Monitor) after override = %d, want %d (unchanged)", got, want)
	}

	start := 0
	for i := 0; i < ackIdx; i++ {
		start += bf.Bits[i].LenCyclesTotal()
	}
	n := bf.Bits[ackIdx].LenCyclesTotal()
	pos := 0
	for _, it := range seq.Monitor {
		if pos >= start && pos < start+n {
			if it.Val != canbus.Dominant {
				t.Fatalf("overridden cycle at offset %d = %v, want Dominant", pos, it.Val)
			}
		}
		pos += it.Cycles
	}
}
