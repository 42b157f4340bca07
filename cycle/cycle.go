// Package cycle implements the two finest-grained layers of the CAN
// bit-level model: Cycle, one clock-cycle sample, and TimeQuanta, an
// ordered run of cycles tagged with a bit phase.
package cycle

import "cancompliance.dev/canbus"

// Cycle is the value of the bus during a single clock cycle. By
// default it inherits the value of its containing Bit; Force pins it
// to an explicit value (a "glitch"), Release restores inheritance.
type Cycle struct {
	inherit bool
	val     canbus.BitVal
}

// New returns a Cycle that inherits its parent Bit's value.
func New() Cycle {
	return Cycle{inherit: true}
}

// Force clears inheritance and pins the cycle to val.
func (c *Cycle) Force(val canbus.BitVal) {
	c.inherit = false
	c.val = val
}

// Release restores inherit-from-parent behaviour.
func (c *Cycle) Release() {
	c.inherit = true
}

// Inherits reports whether the cycle currently inherits its parent
// bit's value rather than carrying a forced one.
func (c Cycle) Inherits() bool {
	return c.inherit
}

// Value returns the effective value of the cycle given the value of
// its containing bit.
func (c Cycle) Value(parent canbus.BitVal) canbus.BitVal {
	if c.inherit {
		return parent
	}
	return c.val
}

// TimeQuanta is one time quantum: an ordered run of cycles, tagged
// with the bit phase (Sync/Prop/Ph1/Ph2) it belongs to. Its cycle
// count equals the BRP of whichever BitTiming governs that phase.
type TimeQuanta struct {
	Phase  canbus.BitPhase
	Cycles []Cycle
}

// NewTimeQuanta returns a TimeQuanta of the given phase with n cycles, all
// inheriting their parent bit's value.
func NewTimeQuanta(phase canbus.BitPhase, n int) TimeQuanta {
	tq := TimeQuanta{Phase: phase, Cycles: make([]Cycle, n)}
	for i := range tq.Cycles {
		tq.Cycles[i] = New()
	}
	return tq
}

// Len returns the number of cycles in the quantum.
func (tq TimeQuanta) Len() int {
	return len(tq.Cycles)
}

// Lengthen appends n cycles to the quantum. If value is given, the
// new cycles are forced to it; otherwise they inherit.
func (tq *TimeQuanta) Lengthen(n int, value ...canbus.BitVal) {
	for i := 0; i < n; i++ {
		c := New()
		if len(value) > 0 {
			c.Force(value[0])
		}
		tq.Cycles = append(tq.Cycles, c)
	}
}

// Shorten removes up to n cycles from the end of the quantum,
// returning the number actually removed.
func (tq *TimeQuanta) Shorten(n int) int {
	if n > len(tq.Cycles) {
		n = len(tq.Cycles)
	}
	tq.Cycles = tq.Cycles[:len(tq.Cycles)-n]
	return n
}

// ForceCycle forces the cycle at index i within the quantum.
func (tq *TimeQuanta) ForceCycle(i int, v canbus.BitVal) {
	tq.Cycles[i].Force(v)
}

// ForceAll forces every cycle in the quantum to v.
func (tq *TimeQuanta) ForceAll(v canbus.BitVal) {
	for i := range tq.Cycles {
		tq.Cycles[i].Force(v)
	}
}

// ReleaseAll restores inherit-from-parent on every cycle in the
// quantum.
func (tq *TimeQuanta) ReleaseAll() {
	for i := range tq.Cycles {
		tq.Cycles[i].Release()
	}
}

// HasNonDefaultValues reports whether any cycle in the quantum carries
// a forced (non-inheriting) value.
func (tq TimeQuanta) HasNonDefaultValues() bool {
	for _, c := range tq.Cycles {
		if !c.Inherits() {
			return true
		}
	}
	return false
}
