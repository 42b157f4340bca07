package bitframe

import (
	"fmt"

	"cancompliance.dev/bit"
	"cancompliance.dev/canbus"
)

// flatCycle locates the time-quantum and within-quantum index of the
// c-th cycle (0-based, across the whole bit) of b. ok is false if c is
// out of range.
func flatCycle(b *bit.Bit, c int) (tqIdx, cycIdx int, ok bool) {
	for i, tq := range b.TimeQuanta {
		if c < tq.Len() {
			return i, c, true
		}
		c -= tq.Len()
	}
	return 0, 0, false
}

// MoveCyclesBack forces the last n cycles preceding bf.Bits[i] to val,
// simulating an edge that arrives n clock cycles later at the DUT's
// input than it does on the wire because of input delay (spec §4.8).
// It walks backward across bit boundaries when n exceeds the
// preceding bit's length, since the driving transmitter continues
// outputting its earlier value further back in time than a single
// bit period.
func (bf *BitFrame) MoveCyclesBack(i int, n int, val canbus.BitVal) error {
	if i <= 0 || i >= len(bf.Bits) {
		return fmt.Errorf("bitframe: bit index %d has no preceding bit to compensate into", i)
	}
	remaining := n
	cur := i - 1
	for remaining > 0 && cur >= 0 {
		b := bf.Bits[cur]
		total := b.LenCyclesTotal()
		take := remaining
		if take > total {
			take = total
		}
		for c := total - take; c < total; c++ {
			tqIdx, cycIdx, ok := flatCycle(b, c)
			if !ok {
				continue
			}
			b.TimeQuanta[tqIdx].Cycles[cycIdx].Force(val)
		}
		remaining -= take
		cur--
	}
	return nil
}

// CompensateEdgeForInputDelay pushes the value transition at bit i
// back by delayCycles cycles into the preceding bit: the last
// delayCycles cycles before bit i are forced to bit i's value, so a
// DUT whose input lags the wire by delayCycles sees the edge at the
// bit boundary.
func (bf *BitFrame) CompensateEdgeForInputDelay(i, delayCycles int) error {
	if i <= 0 || i >= len(bf.Bits) {
		return fmt.Errorf("bitframe: bit index %d out of range for edge compensation", i)
	}
	if delayCycles <= 0 {
		return nil
	}
	return bf.MoveCyclesBack(i, delayCycles, bf.Bits[i].Val)
}

// FlipBitAndCompensate flips bit i to val and compensates the
// resulting edge for the DUT's input delay in one step, the usual way
// a test injects a single-bit error against real (non-zero-delay)
// hardware.
func (bf *BitFrame) FlipBitAndCompensate(i int, val canbus.BitVal, delayCycles int) error {
	if i < 0 || i >= len(bf.Bits) {
		return fmt.Errorf("bitframe: bit index %d out of range [0,%d)", i, len(bf.Bits))
	}
	bf.Bits[i].Val = val
	if i+1 < len(bf.Bits) {
		return bf.CompensateEdgeForInputDelay(i+1, delayCycles)
	}
	return nil
}
