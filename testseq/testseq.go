// Package testseq implements TestSequence (C8): the serialization of
// a bitframe.BitFrame's driven and monitored bit streams into
// coalesced runs of cycles, the form a PLI/driver back end actually
// consumes (spec §4.9).
package testseq

import (
	"cancompliance.dev/bit"
	"cancompliance.dev/bitframe"
	"cancompliance.dev/canbus"
)

// Item is one coalesced run of identically-valued cycles at a single
// bit rate. SamplePeriod is the clock-cycle length of one time
// quantum within the run (the BRP governing it); driver items leave
// it zero, since DriverStream (spec §4.7) carries no sample period,
// only monitor items populate it.
type Item struct {
	Val          canbus.BitVal
	Rate         canbus.BitRate
	Kind         canbus.BitKind
	Cycles       int
	SamplePeriod int
}

// Sequence holds the driver stream (what the test bench pushes onto
// the bus) and the monitor stream (what it expects to read back) for
// one BitFrame.
type Sequence struct {
	Driver  []Item
	Monitor []Item
}

// Build serializes bf into a driver/monitor Sequence (spec §4.7). The
// driver stream reflects bf.Bits cycle-by-cycle; the monitor stream is
// built bit-by-bit, one item per Tseg1/Tseg2 segment, and is the
// caller's to diverge from afterwards (e.g. to model a receiver's own
// ACK) via WithMonitorOverride, since BitFrame keeps only one bit
// stream and monitor-only differences are layered on by the caller.
func Build(bf *bitframe.BitFrame) *Sequence {
	s := &Sequence{
		Driver:  coalesce(bf),
		Monitor: buildMonitor(bf),
	}
	return s
}

// coalesce walks bf's bits cycle by cycle and merges consecutive
// cycles of equal value, bit rate and bit kind into single Items —
// straddling bits (Brs, CrcDelim) naturally split into two Items
// since their two halves run at different bit rates.
func coalesce(bf *bitframe.BitFrame) []Item {
	var items []Item
	for _, b := range bf.Bits {
		for _, tq := range b.TimeQuanta {
			rate := b.PhaseRate(tq.Phase)
			for _, c := range tq.Cycles {
				v := c.Value(b.Val)
				if n := len(items); n > 0 {
					last := &items[n-1]
					if last.Val == v && last.Rate == rate && last.Kind == b.Kind {
						last.Cycles++
						continue
					}
				}
				items = append(items, Item{Val: v, Rate: rate, Kind: b.Kind, Cycles: 1})
			}
		}
	}
	return items
}

// tseg1Phases are the phases spec §4.7 groups into a bit's Tseg1
// monitor segment; Ph2 is reported as the separate Tseg2 segment.
var tseg1Phases = map[canbus.BitPhase]bool{
	canbus.Sync: true,
	canbus.Prop: true,
	canbus.Ph1:  true,
}

// segment sums the cycles of b's time quanta whose phase satisfies
// inSeg, reporting the sample period (cycles per quantum) and value
// of the segment's first cycle. ok is false if b has no quanta in
// that phase set.
func segment(b *bit.Bit, inSeg func(canbus.BitPhase) bool) (cycles, samplePeriod int, val canbus.BitVal, ok bool) {
	for _, tq := range b.TimeQuanta {
		if !inSeg(tq.Phase) {
			continue
		}
		if !ok {
			samplePeriod = tq.Len()
			if len(tq.Cycles) > 0 {
				val = tq.Cycles[0].Value(b.Val)
			}
			ok = true
		}
		cycles += tq.Len()
	}
	return
}

// buildMonitor serializes bf into the monitor stream of spec §4.7: one
// item per bit, except a bit that straddles a bit-rate change (Brs,
// CrcDelim, or the bit immediately preceding an Active/Passive error
// flag) emits two items, Tseg1 and Tseg2, each carrying its own
// sample period.
func buildMonitor(bf *bitframe.BitFrame) []Item {
	var items []Item
	for i, b := range bf.Bits {
		c1, sp1, v1, ok1 := segment(b, func(p canbus.BitPhase) bool { return tseg1Phases[p] })
		c2, sp2, v2, ok2 := segment(b, func(p canbus.BitPhase) bool { return p == canbus.Ph2 })

		precedesErrFlag := i+1 < len(bf.Bits) &&
			(bf.Bits[i+1].Kind == canbus.ActErrFlag || bf.Bits[i+1].Kind == canbus.PasErrFlag)
		straddles := ok1 && ok2 && (sp1 != sp2 || precedesErrFlag)

		if straddles {
			if c1 > 0 {
				items = append(items, Item{Val: v1, Rate: b.PhaseRate(canbus.Ph1), Kind: b.Kind, Cycles: c1, SamplePeriod: sp1})
			}
			if c2 > 0 {
				items = append(items, Item{Val: v2, Rate: b.PhaseRate(canbus.Ph2), Kind: b.Kind, Cycles: c2, SamplePeriod: sp2})
			}
			continue
		}

		cycles, sp, val, rate := c1+c2, sp1, v1, b.PhaseRate(canbus.Ph1)
		if !ok1 {
			sp, val, rate = sp2, v2, b.PhaseRate(canbus.Ph2)
		}
		if cycles > 0 {
			items = append(items, Item{Val: val, Rate: rate, Kind: b.Kind, Cycles: cycles, SamplePeriod: sp})
		}
	}
	return items
}

// WithMonitorOverride replaces the monitor stream's item at the given
// bit index (0-based, among bf.Bits) with one driven to val instead,
// used to model what a receiving node observes on the ACK slot or
// during error-flag arbitration when it differs from what the
// transmitter drove.
func (s *Sequence) WithMonitorOverride(bf *bitframe.BitFrame, bitIndex int, val canbus.BitVal) {
	start := 0
	for i := 0; i < bitIndex && i < len(bf.Bits); i++ {
		start += bf.Bits[i].LenCyclesTotal()
	}
	n := 0
	if bitIndex < len(bf.Bits) {
		n = bf.Bits[bitIndex].LenCyclesTotal()
	}
	s.Monitor = overrideRange(s.Monitor, start, n, val)
}

// overrideRange rewrites the cycles [start,start+n) of a coalesced
// item stream to val, splitting and re-merging Items as needed.
func overrideRange(items []Item, start, n int, val canbus.BitVal) []Item {
	if n <= 0 {
		return items
	}
	var out []Item
	pos := 0
	for _, it := range items {
		itStart, itEnd := pos, pos+it.Cycles
		pos = itEnd
		overlapStart := max(itStart, start)
		overlapEnd := min(itEnd, start+n)
		if overlapStart >= overlapEnd {
			out = appendItem(out, it)
			continue
		}
		if itStart < overlapStart {
			out = appendItem(out, Item{Val: it.Val, Rate: it.Rate, Kind: it.Kind, Cycles: overlapStart - itStart, SamplePeriod: it.SamplePeriod})
		}
		out = appendItem(out, Item{Val: val, Rate: it.Rate, Kind: it.Kind, Cycles: overlapEnd - overlapStart, SamplePeriod: it.SamplePeriod})
		if overlapEnd < itEnd {
			out = appendItem(out, Item{Val: it.Val, Rate: it.Rate, Kind: it.Kind, Cycles: itEnd - overlapEnd, SamplePeriod: it.SamplePeriod})
		}
	}
	return out
}

func appendItem(items []Item, it Item) []Item {
	if it.Cycles <= 0 {
		return items
	}
	if n := len(items); n > 0 {
		last := &items[n-1]
		if last.Val == it.Val && last.Rate == it.Rate && last.Kind == it.Kind && last.SamplePeriod == it.SamplePeriod {
			last.Cycles += it.Cycles
			return items
		}
	}
	return append(items, it)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// TotalCycles returns the number of cycles an item stream spans.
func TotalCycles(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Cycles
	}
	return n
}
