// Package timing holds the bit-timing configuration (prop/phase
// segments, prescaler, synchronisation jump width) shared by the
// nominal and data bit rates of a CAN FD controller under test.
package timing

import "fmt"

// BitTiming holds one bit-rate's segment lengths, in time quanta, plus
// the clock prescaler (Brp) that converts time quanta to clock cycles.
//
// Two independent instances exist in a test: one for the nominal bit
// rate, one for the data bit rate used inside BRS-shifted CAN FD
// frames.
type BitTiming struct {
	Brp  int
	Prop int
	Ph1  int
	Ph2  int
	Sjw  int
}

// Validate reports whether t meets the minimal constraints a real
// controller configuration must satisfy.
func (t BitTiming) Validate() error {
	if t.Brp < 1 {
		return fmt.Errorf("timing: brp must be >= 1, got %d", t.Brp)
	}
	if t.Ph2 < 1 {
		return fmt.Errorf("timing: ph2 must be >= 1, got %d", t.Ph2)
	}
	if t.Prop < 0 || t.Ph1 < 0 {
		return fmt.Errorf("timing: prop and ph1 must be >= 0")
	}
	if t.Ph2 < t.Sjw {
		return fmt.Errorf("timing: ph2 (%d) must be >= sjw (%d)", t.Ph2, t.Sjw)
	}
	return nil
}

// BitLenTQ returns the length of one bit in time quanta: the implicit
// one-quantum Sync phase plus Prop, Ph1 and Ph2.
func (t BitTiming) BitLenTQ() int {
	return 1 + t.Prop + t.Ph1 + t.Ph2
}

// BitLenCycles returns the length of one bit in clock cycles.
func (t BitTiming) BitLenCycles() int {
	return t.Brp * t.BitLenTQ()
}
