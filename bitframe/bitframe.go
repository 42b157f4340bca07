// Package bitframe implements BitFrame (C7): the bit-level
// representation of a whole CAN/CAN FD frame, built from a
// frame.Frame and a pair of bit timings. BitFrame owns the ordered
// slice of *bit.Bit that make up the frame and every mutation a
// compliance test performs on it: stuffing, CRC, error and overload
// splicing, arbitration loss, ACK, and bit-timing compensation.
package bitframe

import (
	"fmt"

	"cancompliance.dev/bit"
	"cancompliance.dev/canbus"
	"cancompliance.dev/frame"
	"cancompliance.dev/timing"
)

// BitFrame is the bit-level expansion of one frame.Frame.
type BitFrame struct {
	Frame   frame.Frame
	Nominal *timing.BitTiming
	Data    *timing.BitTiming

	Bits []*bit.Bit

	Crc15      uint32
	Crc17      uint32
	Crc21      uint32
	StuffCount int
}

// crc polynomial/seed/width per spec §4.5. crc15 is seeded with 0 and
// excludes all stuff bits; crc17/crc21 are seeded with their MSB set
// and exclude only fixed stuff bits, counting normal stuff bits in.
const (
	crc15Poly = 0xC599
	crc17Poly = 0x3685B
	crc21Poly = 0x302899
)

// New builds a BitFrame from f, expanding it into the full bit stream
// of spec §4.6.1 and computing stuffing, CRC, stuff count and parity.
func New(f frame.Frame, nominal, data *timing.BitTiming) (*BitFrame, error) {
	if err := nominal.Validate(); err != nil {
		return nil, fmt.Errorf("bitframe: nominal timing: %w", err)
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("bitframe: data timing: %w", err)
	}
	bf := &BitFrame{
		Frame:   f,
		Nominal: nominal,
		Data:    data,
	}
	bf.build()
	return bf, nil
}

func (bf *BitFrame) newBit(kind canbus.BitKind, val canbus.BitVal) *bit.Bit {
	return bit.New(kind, val, bf.Frame.Flags, bf.Nominal, bf.Data)
}

// build expands bf.Frame into the ordered bit stream (spec §4.6.1):
// SOF, arbitration, control, data, CRC, CRC delimiter, ACK, ACK
// delimiter, EOF, intermission, with stuffing and CRC fields filled
// in afterwards.
func (bf *BitFrame) build() {
	bf.Bits = bf.Bits[:0]
	f := &bf.Frame

	bf.Bits = append(bf.Bits, bf.newBit(canbus.Sof, canbus.Dominant))
	bf.appendArbitration()

	// The bit immediately after the identifier (base or extended) is
	// named Rtr for classical frames and r1 for CAN FD; same position,
	// different label, so the kind bf.newBit tags it with tracks which
	// framing applies.
	rtrKind := canbus.Rtr
	if f.Flags.Kind == canbus.CanFd {
		rtrKind = canbus.R1
	}
	if f.Flags.Ident == canbus.Base {
		bf.Bits = append(bf.Bits, bf.newBit(rtrKind, rtrVal(f.Flags)))
		bf.Bits = append(bf.Bits, bf.newBit(canbus.Ide, identVal(f.Flags.Ident)))
	} else {
		bf.Bits = append(bf.Bits, bf.newBit(rtrKind, rtrVal(f.Flags)))
	}

	if f.Flags.Kind == canbus.CanFd {
		bf.Bits = append(bf.Bits, bf.newBit(canbus.Edl, canbus.Recessive))
		bf.Bits = append(bf.Bits, bf.newBit(canbus.R0, canbus.Dominant))
		bf.Bits = append(bf.Bits, bf.newBit(canbus.Brs, brsVal(f.Flags.Brs)))
		bf.Bits = append(bf.Bits, bf.newBit(canbus.Esi, esiVal(f.Flags.Esi)))
	} else if f.Flags.Ident == canbus.Extended {
		bf.Bits = append(bf.Bits, bf.newBit(canbus.R1, canbus.Dominant))
		bf.Bits = append(bf.Bits, bf.newBit(canbus.R0, canbus.Dominant))
	} else {
		bf.Bits = append(bf.Bits, bf.newBit(canbus.R0, canbus.Dominant))
	}

	bf.appendDlc()
	bf.appendDataField()
	// CRC, stuff count/parity and delimiters are filled in once the
	// frame up to the data field is complete, since stuffing and CRC
	// both scan the bits built so far. CAN FD stuffs before the CRC
	// (crc17/crc21 count normal stuff bits); classical CAN stuffs after
	// the CRC bits are appended, since its stuff region includes them.
	if f.Flags.Kind == canbus.CanFd {
		bf.InsertNormalStuffBits()
		bf.SetStuffCnt()
		bf.SetStuffParity()
	}
	bf.CalcCrc()
	bf.appendCrc()
	if f.Flags.Kind == canbus.CanFd {
		bf.InsertFixedStuffToCrc()
	} else {
		bf.InsertNormalStuffBits()
	}

	bf.Bits = append(bf.Bits, bf.newBit(canbus.CrcDelim, canbus.Recessive))
	bf.Bits = append(bf.Bits, bf.newBit(canbus.Ack, canbus.Recessive))
	bf.Bits = append(bf.Bits, bf.newBit(canbus.AckDelim, canbus.Recessive))
	for i := 0; i < 7; i++ {
		bf.Bits = append(bf.Bits, bf.newBit(canbus.Eof, canbus.Recessive))
	}
	for i := 0; i < 3; i++ {
		bf.Bits = append(bf.Bits, bf.newBit(canbus.Interm, canbus.Recessive))
	}
}

func rtrVal(f frame.Flags) canbus.BitVal {
	if f.Rtr == canbus.RtrFrame {
		return canbus.Recessive
	}
	return canbus.Dominant
}

func identVal(k canbus.IdentKind) canbus.BitVal {
	if k == canbus.Extended {
		return canbus.Recessive
	}
	return canbus.Dominant
}

func brsVal(b canbus.BrsFlag) canbus.BitVal {
	if b == canbus.Shift {
		return canbus.Recessive
	}
	return canbus.Dominant
}

func esiVal(e canbus.EsiFlag) canbus.BitVal {
	if e == canbus.ErrorPassive {
		return canbus.Recessive
	}
	return canbus.Dominant
}

// appendArbitration appends the base (and, for extended frames,
// extended) identifier bits MSB first, plus SRR/IDE for extended
// frames. The RTR/r1 bit that follows the identifier is appended by
// build.
func (bf *BitFrame) appendArbitration() {
	f := &bf.Frame
	base := f.Ident
	extBits := 0
	if f.Flags.Ident == canbus.Extended {
		extBits = 18
		base = f.Ident >> 18
	}
	for i := 10; i >= 0; i-- {
		v := canbus.Dominant
		if base&(1<<uint(i)) != 0 {
			v = canbus.Recessive
		}
		bf.Bits = append(bf.Bits, bf.newBit(canbus.BaseIdent, v))
	}
	if f.Flags.Ident != canbus.Extended {
		return
	}
	bf.Bits = append(bf.Bits, bf.newBit(canbus.Srr, canbus.Recessive))
	bf.Bits = append(bf.Bits, bf.newBit(canbus.Ide, canbus.Recessive))
	ext := f.Ident & ((1 << 18) - 1)
	for i := extBits - 1; i >= 0; i-- {
		v := canbus.Dominant
		if ext&(1<<uint(i)) != 0 {
			v = canbus.Recessive
		}
		bf.Bits = append(bf.Bits, bf.newBit(canbus.ExtIdent, v))
	}
}

func (bf *BitFrame) appendDlc() {
	dlc := bf.Frame.Dlc
	for i := 3; i >= 0; i-- {
		v := canbus.Dominant
		if dlc&(1<<uint(i)) != 0 {
			v = canbus.Recessive
		}
		bf.Bits = append(bf.Bits, bf.newBit(canbus.Dlc, v))
	}
}

func (bf *BitFrame) appendDataField() {
	f := &bf.Frame
	if f.Flags.Kind == canbus.Can20 && f.Flags.Rtr == canbus.RtrFrame {
		return
	}
	for i := 0; i < f.DataLen; i++ {
		byt := f.Data[i]
		for bi := 7; bi >= 0; bi-- {
			v := canbus.Dominant
			if byt&(1<<uint(bi)) != 0 {
				v = canbus.Recessive
			}
			bf.Bits = append(bf.Bits, bf.newBit(canbus.DataField, v))
		}
	}
}

func (bf *BitFrame) crcWidth() int {
	switch {
	case bf.Frame.Flags.Kind != canbus.CanFd:
		return 15
	case bf.Frame.DataLen <= 16:
		return 17
	default:
		return 21
	}
}

func (bf *BitFrame) appendCrc() {
	width := bf.crcWidth()
	var val uint32
	switch width {
	case 15:
		val = bf.Crc15
	case 17:
		val = bf.Crc17
	case 21:
		val = bf.Crc21
	}
	for i := width - 1; i >= 0; i-- {
		v := canbus.Dominant
		if val&(1<<uint(i)) != 0 {
			v = canbus.Recessive
		}
		crcBit := bf.newBit(canbus.Crc, v)
		bf.Bits = append(bf.Bits, crcBit)
	}
}

// IndexOf returns the index of the first bit of the given kind at or
// after start, or -1 if none is found.
func (bf *BitFrame) IndexOf(kind canbus.BitKind, start int) int {
	for i := start; i < len(bf.Bits); i++ {
		if bf.Bits[i].Kind == kind {
			return i
		}
	}
	return -1
}

// Len returns the number of bits currently in the frame.
func (bf *BitFrame) Len() int {
	return len(bf.Bits)
}
