package bitframe

import (
	"fmt"

	"cancompliance.dev/bit"
	"cancompliance.dev/canbus"
)

// FlipBitAt flips the value of the bit at index i and leaves stuffing
// and CRC untouched — callers that need the rest of the
// frame to reflect a flip (e.g. a corrupted data byte) should mutate
// bf.Frame and call UpdateFrame instead.
func (bf *BitFrame) FlipBitAt(i int) error {
	if i < 0 || i >= len(bf.Bits) {
		return fmt.Errorf("bitframe: bit index %d out of range [0,%d)", i, len(bf.Bits))
	}
	bf.Bits[i].Flip()
	return nil
}

// InsertErrFlag replaces the bit at i with the start of an error
// flag: six bits of the given value, overwriting whatever follows
// (spec §4.7). It returns the index one past the inserted flag.
func (bf *BitFrame) InsertErrFlag(i int, val canbus.BitVal) (int, error) {
	if i < 0 || i >= len(bf.Bits) {
		return 0, fmt.Errorf("bitframe: bit index %d out of range [0,%d)", i, len(bf.Bits))
	}
	kind := canbus.ActErrFlag
	if val == canbus.Recessive {
		kind = canbus.PasErrFlag
	}
	flag := make([]*bit.Bit, 6)
	for j := range flag {
		flag[j] = bf.newBit(kind, val)
	}
	bf.Bits = append(bf.Bits[:i], flag...)
	return i + len(flag), nil
}

// InsertActErrFrm truncates the frame at i and appends an active
// error frame: a 6-bit dominant active error flag followed by an
// 8-bit recessive error delimiter and 3 recessive intermission bits
// (spec §4.7).
func (bf *BitFrame) InsertActErrFrm(i int) error {
	return bf.insertErrFrame(i, canbus.Dominant, canbus.ActErrFlag)
}

// InsertPasErrFrm truncates the frame at i and appends a passive
// error frame: a 6-bit recessive passive error flag followed by an
// 8-bit recessive error delimiter and 3 recessive intermission bits.
func (bf *BitFrame) InsertPasErrFrm(i int) error {
	return bf.insertErrFrame(i, canbus.Recessive, canbus.PasErrFlag)
}

func (bf *BitFrame) insertErrFrame(i int, val canbus.BitVal, kind canbus.BitKind) error {
	if i < 1 || i > len(bf.Bits) {
		return fmt.Errorf("bitframe: bit index %d out of range [1,%d]", i, len(bf.Bits))
	}
	bf.Bits[i-1].CorrectPh2ToNominal()
	bf.Bits = bf.Bits[:i]
	for j := 0; j < 6; j++ {
		bf.Bits = append(bf.Bits, bf.newBit(kind, val))
	}
	for j := 0; j < 8; j++ {
		bf.Bits = append(bf.Bits, bf.newBit(canbus.ErrDelim, canbus.Recessive))
	}
	for j := 0; j < 3; j++ {
		bf.Bits = append(bf.Bits, bf.newBit(canbus.Interm, canbus.Recessive))
	}
	return nil
}

// ovrlAllowedFields are the bit kinds an overload frame is permitted
// to follow (spec §4.6.6): intermission, an error delimiter or an
// overload delimiter.
var ovrlAllowedFields = map[canbus.BitKind]bool{
	canbus.Interm:    true,
	canbus.ErrDelim:  true,
	canbus.OvrlDelim: true,
}

// InsertOvrlFrm truncates the frame at i and appends an overload
// frame: a 6-bit dominant overload flag, an 8-bit recessive overload
// delimiter and 3 recessive intermission bits. i must name a bit
// whose kind is one of Interm, ErrDelim or OvrlDelim.
func (bf *BitFrame) InsertOvrlFrm(i int) error {
	if i < 0 || i >= len(bf.Bits) {
		return fmt.Errorf("bitframe: bit index %d out of range [0,%d)", i, len(bf.Bits))
	}
	if !ovrlAllowedFields[bf.Bits[i].Kind] {
		return fmt.Errorf("bitframe: overload frame not allowed after bit kind %v at index %d", bf.Bits[i].Kind, i)
	}
	bf.Bits = bf.Bits[:i]
	for j := 0; j < 6; j++ {
		bf.Bits = append(bf.Bits, bf.newBit(canbus.OvrlFlag, canbus.Dominant))
	}
	for j := 0; j < 8; j++ {
		bf.Bits = append(bf.Bits, bf.newBit(canbus.OvrlDelim, canbus.Recessive))
	}
	for j := 0; j < 3; j++ {
		bf.Bits = append(bf.Bits, bf.newBit(canbus.Interm, canbus.Recessive))
	}
	return nil
}

// AppendSuspTrans appends the 8-bit recessive suspend-transmission
// field an error-passive node inserts after intermission.
func (bf *BitFrame) AppendSuspTrans() {
	for i := 0; i < 8; i++ {
		bf.Bits = append(bf.Bits, bf.newBit(canbus.SuspTrans, canbus.Recessive))
	}
}

// looseArbitFields are the arbitration-phase bit kinds a transmitter
// can still lose arbitration on.
var looseArbitFields = map[canbus.BitKind]bool{
	canbus.BaseIdent: true,
	canbus.ExtIdent:  true,
	canbus.Rtr:       true,
	canbus.Srr:       true,
	canbus.Ide:       true,
	canbus.R1:        true,
}

// LooseArbit sets the first arbitration-field bit at or after i to
// recessive (the losing transmitter stops driving dominant and
// switches to receive) and truncates the frame right after that bit;
// no error flag or other bits are appended. Per spec §4.7,
// arbitration loss is only meaningful on the fields listed in
// looseArbitFields.
func (bf *BitFrame) LooseArbit(i int) error {
	for j := i; j < len(bf.Bits); j++ {
		if !looseArbitFields[bf.Bits[j].Kind] {
			continue
		}
		bf.Bits[j].Val = canbus.Recessive
		bf.Bits = bf.Bits[:j+1]
		return nil
	}
	return fmt.Errorf("bitframe: no arbitration field at or after index %d", i)
}

// ConvRXFrame sets the ACK bit to Dominant, the value a receiving
// node drives into the ACK slot in place of the transmitted recessive
// ACK. No other bit is changed.
func (bf *BitFrame) ConvRXFrame() {
	idx := bf.lastIndexOf(canbus.Ack)
	if idx < 0 {
		return
	}
	bf.Bits[idx].Val = canbus.Dominant
}

// PutAck forces the ACK bit to the given value, used by a monitor
// simulating a receiving node's acknowledgment.
func (bf *BitFrame) PutAck(val canbus.BitVal) error {
	idx := bf.lastIndexOf(canbus.Ack)
	if idx < 0 {
		return fmt.Errorf("bitframe: frame has no ACK bit")
	}
	bf.Bits[idx].Val = val
	return nil
}
