// Package bit implements Bit (C4): one CAN bit, its ordered list of
// TimeQuanta, and the shape/value/phase operations a BitFrame's
// builder, stuffing engine, CRC engine and error splicer all operate
// through.
package bit

import (
	"fmt"

	"cancompliance.dev/canbus"
	"cancompliance.dev/cycle"
	"cancompliance.dev/frame"
	"cancompliance.dev/timing"
)

// defaultPhaseOrder is the canonical phase ordering within a bit.
var defaultPhaseOrder = [...]canbus.BitPhase{canbus.Sync, canbus.Prop, canbus.Ph1, canbus.Ph2}

// Bit is one bit on the CAN bus. It owns its ordered TimeQuanta and
// carries enough read-only context (the frame's Flags, and the
// nominal/data BitTiming) to resolve its own bit-rate and rebuild
// itself when mutated — rather than a raw back-pointer to its
// containing BitFrame, per the design notes on stable-address
// ownership (spec.md §9): Flags is a small value type copied in, and
// the BitTiming pointers are non-owning references the BitFrame that
// built this Bit must outlive.
type Bit struct {
	Kind       canbus.BitKind
	Val        canbus.BitVal
	StuffKind  canbus.StuffKind
	TimeQuanta []cycle.TimeQuanta

	flags   frame.Flags
	nominal *timing.BitTiming
	data    *timing.BitTiming
}

// New builds a Bit of the given kind and value, with no stuffing, and
// constructs its time quanta immediately from the bit-rate the kind
// resolves to.
func New(kind canbus.BitKind, val canbus.BitVal, flags frame.Flags, nominal, data *timing.BitTiming) *Bit {
	return NewStuff(kind, val, canbus.NoStuff, flags, nominal, data)
}

// NewStuff is New plus an explicit StuffKind, for bits inserted by the
// stuffing engine.
func NewStuff(kind canbus.BitKind, val canbus.BitVal, stuff canbus.StuffKind, flags frame.Flags, nominal, data *timing.BitTiming) *Bit {
	b := &Bit{
		Kind:      kind,
		Val:       val,
		StuffKind: stuff,
		flags:     flags,
		nominal:   nominal,
		data:      data,
	}
	b.constructTimeQuanta()
	return b
}

// PhaseRate implements the bit-rate resolution table of spec
// §4.3: which phase of which bit kind runs at the data bit rate when
// the frame is a BRS-shifted CAN FD frame.
func (b *Bit) PhaseRate(phase canbus.BitPhase) canbus.BitRate {
	if b.flags.Kind != canbus.CanFd || b.flags.Brs != canbus.Shift {
		return canbus.Nominal
	}
	switch b.Kind {
	case canbus.Brs:
		if phase == canbus.Ph2 {
			return canbus.Data
		}
		return canbus.Nominal
	case canbus.CrcDelim:
		if phase == canbus.Ph2 {
			return canbus.Nominal
		}
		return canbus.Data
	case canbus.Esi, canbus.Dlc, canbus.DataField, canbus.StuffCnt, canbus.StuffParity, canbus.Crc:
		return canbus.Data
	default:
		return canbus.Nominal
	}
}

// PhaseTiming returns the BitTiming (nominal or data) governing phase.
func (b *Bit) PhaseTiming(phase canbus.BitPhase) *timing.BitTiming {
	if b.PhaseRate(phase) == canbus.Nominal {
		return b.nominal
	}
	return b.data
}

func (b *Bit) constructTimeQuanta() {
	tseg1 := b.nominal
	tseg2 := b.nominal
	// Ph1 and TSEG1 share a bit rate: there is no shift within TSEG1.
	if b.PhaseRate(canbus.Ph1) == canbus.Data {
		tseg1 = b.data
	}
	if b.PhaseRate(canbus.Ph2) == canbus.Data {
		tseg2 = b.data
	}

	b.TimeQuanta = b.TimeQuanta[:0]
	b.TimeQuanta = append(b.TimeQuanta, cycle.NewTimeQuanta(canbus.Sync, tseg1.Brp))
	for i := 0; i < tseg1.Prop; i++ {
		b.TimeQuanta = append(b.TimeQuanta, cycle.NewTimeQuanta(canbus.Prop, tseg1.Brp))
	}
	for i := 0; i < tseg1.Ph1; i++ {
		b.TimeQuanta = append(b.TimeQuanta, cycle.NewTimeQuanta(canbus.Ph1, tseg1.Brp))
	}
	for i := 0; i < tseg2.Ph2; i++ {
		b.TimeQuanta = append(b.TimeQuanta, cycle.NewTimeQuanta(canbus.Ph2, tseg2.Brp))
	}
}

// Flip toggles the bit's value.
func (b *Bit) Flip() {
	b.Val = b.Val.Opposite()
}

// Opposite returns the value that is not the bit's current value.
func (b *Bit) Opposite() canbus.BitVal {
	return b.Val.Opposite()
}

// IsStuffBit reports whether the bit was inserted by the stuffing
// engine (normal or fixed).
func (b *Bit) IsStuffBit() bool {
	return b.StuffKind == canbus.NormalStuff || b.StuffKind == canbus.FixedStuff
}

// IsSingleBitField reports whether this bit's kind is always exactly
// one bit wide.
func (b *Bit) IsSingleBitField() bool {
	return canbus.IsSingleBitField(b.Kind)
}

// HasPhase reports whether the bit currently contains any time quanta
// tagged with phase.
func (b *Bit) HasPhase(phase canbus.BitPhase) bool {
	for _, tq := range b.TimeQuanta {
		if tq.Phase == phase {
			return true
		}
	}
	return false
}

// LenTQ returns the number of time quanta tagged with phase.
func (b *Bit) LenTQ(phase canbus.BitPhase) int {
	n := 0
	for _, tq := range b.TimeQuanta {
		if tq.Phase == phase {
			n++
		}
	}
	return n
}

// LenCycles returns the number of clock cycles across every time
// quantum tagged with phase.
func (b *Bit) LenCycles(phase canbus.BitPhase) int {
	n := 0
	for _, tq := range b.TimeQuanta {
		if tq.Phase == phase {
			n += tq.Len()
		}
	}
	return n
}

// LenTQTotal returns the bit's total length in time quanta.
func (b *Bit) LenTQTotal() int {
	return len(b.TimeQuanta)
}

// LenCyclesTotal returns the bit's total length in clock cycles.
func (b *Bit) LenCyclesTotal() int {
	n := 0
	for _, tq := range b.TimeQuanta {
		n += tq.Len()
	}
	return n
}

// PrevPhase returns the phase immediately before p within the bit,
// skipping phases the bit does not currently contain, down to Sync.
func (b *Bit) PrevPhase(p canbus.BitPhase) canbus.BitPhase {
	switch p {
	case canbus.Ph2:
		if b.HasPhase(canbus.Ph1) {
			return canbus.Ph1
		}
		if b.HasPhase(canbus.Prop) {
			return canbus.Prop
		}
		return canbus.Sync
	case canbus.Ph1:
		if b.HasPhase(canbus.Prop) {
			return canbus.Prop
		}
		return canbus.Sync
	case canbus.Prop:
		return canbus.Sync
	default:
		return canbus.Sync
	}
}

// NextPhase returns the phase immediately after p within the bit,
// skipping phases the bit does not currently contain, up to Ph2. If p
// is already the last phase present, p is returned unchanged.
func (b *Bit) NextPhase(p canbus.BitPhase) canbus.BitPhase {
	switch p {
	case canbus.Sync:
		if b.HasPhase(canbus.Prop) {
			return canbus.Prop
		}
		if b.HasPhase(canbus.Ph1) {
			return canbus.Ph1
		}
		if b.HasPhase(canbus.Ph2) {
			return canbus.Ph2
		}
		return canbus.Sync
	case canbus.Prop:
		if b.HasPhase(canbus.Ph1) {
			return canbus.Ph1
		}
		if b.HasPhase(canbus.Ph2) {
			return canbus.Ph2
		}
		return canbus.Prop
	case canbus.Ph1:
		if b.HasPhase(canbus.Ph2) {
			return canbus.Ph2
		}
		return canbus.Ph1
	default:
		return canbus.Ph2
	}
}

// phaseBounds returns the first and last index, within TimeQuanta, of
// phase p, assuming (per spec §3/§9) that a bit's phases are
// contiguous. ok is false if p is absent.
func (b *Bit) phaseBounds(p canbus.BitPhase) (first, last int, ok bool) {
	first = -1
	for i, tq := range b.TimeQuanta {
		if tq.Phase == p {
			if first == -1 {
				first = i
			}
			last = i
		} else if first != -1 {
			break
		}
	}
	return first, last, first != -1
}

// ShortenPhase removes up to n time quanta from the end of phase p,
// returning the number actually removed. A zero-length or absent
// phase is a no-op.
func (b *Bit) ShortenPhase(p canbus.BitPhase, n int) int {
	first, last, ok := b.phaseBounds(p)
	if !ok || n <= 0 {
		return 0
	}
	phaseLen := last - first + 1
	remove := n
	if remove > phaseLen {
		remove = phaseLen
	}
	// Stop at the beginning of the phase rather than relying on
	// iterator arithmetic past it (spec.md §9, open question 3).
	start := last - remove + 1
	if start < first {
		start = first
	}
	b.TimeQuanta = append(b.TimeQuanta[:start], b.TimeQuanta[last+1:]...)
	return remove
}

// LengthenPhase inserts n new time quanta of phase p using the
// BitTiming relevant for that phase, at the position implied by the
// default ordering Sync < Prop < Ph1 < Ph2. If the phase does not
// exist yet, it is created between its neighbours.
func (b *Bit) LengthenPhase(p canbus.BitPhase, n int) {
	if n <= 0 {
		return
	}
	bt := b.PhaseTiming(p)
	insertAt := len(b.TimeQuanta)
	if _, last, ok := b.phaseBounds(p); ok {
		insertAt = last + 1
	} else {
		// Insert right before the first phase that sorts after p.
		insertAt = len(b.TimeQuanta)
		for _, order := range defaultPhaseOrder {
			if order <= p {
				continue
			}
			if first, _, ok := b.phaseBounds(order); ok {
				insertAt = first
				break
			}
		}
	}
	newTQs := make([]cycle.TimeQuanta, n)
	for i := range newTQs {
		newTQs[i] = cycle.NewTimeQuanta(p, bt.Brp)
	}
	tail := append([]cycle.TimeQuanta{}, b.TimeQuanta[insertAt:]...)
	b.TimeQuanta = append(b.TimeQuanta[:insertAt], append(newTQs, tail...)...)
}

// ForceTQ forces the i-th time quantum (across the whole bit) to
// value v.
func (b *Bit) ForceTQ(i int, v canbus.BitVal) error {
	if i < 0 || i >= len(b.TimeQuanta) {
		return fmt.Errorf("bit: time quanta index %d out of range [0,%d)", i, len(b.TimeQuanta))
	}
	b.TimeQuanta[i].ForceAll(v)
	return nil
}

// ForceTQRange forces time quanta [start,end] (inclusive, across the
// whole bit) to value v, clamping end to the bit's length. It returns
// the number of time quanta actually forced.
func (b *Bit) ForceTQRange(start, end int, v canbus.BitVal) int {
	if start < 0 || start >= len(b.TimeQuanta) || start > end {
		return 0
	}
	if end >= len(b.TimeQuanta) {
		end = len(b.TimeQuanta) - 1
	}
	for i := start; i <= end; i++ {
		b.TimeQuanta[i].ForceAll(v)
	}
	return end - start + 1
}

// ForceTQPhase forces the i-th time quantum of phase p to value v.
func (b *Bit) ForceTQPhase(i int, p canbus.BitPhase, v canbus.BitVal) error {
	first, last, ok := b.phaseBounds(p)
	if !ok || i < 0 || first+i > last {
		return fmt.Errorf("bit: phase %v does not have time quanta index %d", p, i)
	}
	b.TimeQuanta[first+i].ForceAll(v)
	return nil
}

// ForceTQPhaseRange forces time quanta [start,end] within phase p,
// clamping end to the phase's length. It returns the number actually
// forced.
func (b *Bit) ForceTQPhaseRange(start, end int, p canbus.BitPhase, v canbus.BitVal) int {
	first, last, ok := b.phaseBounds(p)
	if !ok || start < 0 || first+start > last {
		return 0
	}
	if first+end > last {
		end = last - first
	}
	for i := start; i <= end; i++ {
		b.TimeQuanta[first+i].ForceAll(v)
	}
	return end - start + 1
}

// CorrectPh2ToNominal rebuilds the bit's Ph2 phase from nominal
// timing. Used when an error frame is spliced in immediately after a
// bit whose Ph2 was in data bit rate, since the real controller
// resynchronises to nominal at the sample point preceding the error
// frame.
func (b *Bit) CorrectPh2ToNominal() {
	if b.PhaseTiming(canbus.Ph2) != b.data {
		return
	}
	kept := b.TimeQuanta[:0:0]
	for _, tq := range b.TimeQuanta {
		if tq.Phase != canbus.Ph2 {
			kept = append(kept, tq)
		}
	}
	for i := 0; i < b.nominal.Ph2; i++ {
		kept = append(kept, cycle.NewTimeQuanta(canbus.Ph2, b.nominal.Brp))
	}
	b.TimeQuanta = kept
}
