package bitframe

import (
	"cancompliance.dev/bit"
	"cancompliance.dev/canbus"
)

// grayStuffCount is the 3-bit Gray-code encoding of a stuff count mod
// 8, table-driven per spec §4.6.4.
var grayStuffCount = [8]uint8{
	0b000,
	0b001,
	0b011,
	0b010,
	0b110,
	0b111,
	0b101,
	0b100,
}

func (bf *BitFrame) lastIndexOf(kind canbus.BitKind) int {
	last := -1
	for i, b := range bf.Bits {
		if b.Kind == kind {
			last = i
		}
	}
	return last
}

// normalStuffEnd returns the index of the last bit the normal
// stuffing engine scans. CAN FD frames confine normal stuffing to
// everything up to and including the data field (the stuff-count
// field and CRC use fixed stuffing only); classical frames extend
// normal stuffing through the CRC sequence.
func (bf *BitFrame) normalStuffEnd() int {
	if bf.Frame.Flags.Kind == canbus.CanFd {
		if idx := bf.lastIndexOf(canbus.DataField); idx >= 0 {
			return idx
		}
		return bf.lastIndexOf(canbus.Dlc)
	}
	return bf.lastIndexOf(canbus.Crc)
}

// InsertNormalStuffBits scans the frame from SOF to the end of the
// normal-stuffing region (see normalStuffEnd) and inserts a bit of
// opposite value after every run of five consecutive equal bits,
// counting previously inserted stuff bits toward the run (spec
// §4.6.3). It is idempotent only when called once per build; a second
// call would re-stuff the already-stuffed stream.
func (bf *BitFrame) InsertNormalStuffBits() {
	end := bf.normalStuffEnd()
	if end <= 0 || len(bf.Bits) == 0 {
		return
	}
	last := bf.Bits[0].Val
	count := 1
	i := 1
	for i <= end {
		if bf.Bits[i].Val == last {
			count++
		} else {
			last = bf.Bits[i].Val
			count = 1
		}
		if count == 5 {
			stuffVal := last.Opposite()
			stuffBit := bit.NewStuff(bf.Bits[i].Kind, stuffVal, canbus.NormalStuff, bf.Frame.Flags, bf.Nominal, bf.Data)
			bf.Bits = insertBit(bf.Bits, i+1, stuffBit)
			bf.StuffCount++
			end++
			last = stuffVal
			count = 1
			i += 2
			continue
		}
		i++
	}
}

func insertBit(bits []*bit.Bit, at int, b *bit.Bit) []*bit.Bit {
	bits = append(bits, nil)
	copy(bits[at+1:], bits[at:])
	bits[at] = b
	return bits
}

// SetStuffCnt appends the 3-bit Gray-coded stuff count field (the
// number of normal stuff bits inserted so far, mod 8) right after the
// data field. CAN FD only.
func (bf *BitFrame) SetStuffCnt() {
	g := grayStuffCount[bf.StuffCount%8]
	for i := 2; i >= 0; i-- {
		v := canbus.Dominant
		if g&(1<<uint(i)) != 0 {
			v = canbus.Recessive
		}
		bf.Bits = append(bf.Bits, bf.newBit(canbus.StuffCnt, v))
	}
}

// SetStuffParity appends the stuff-count parity bit: odd parity over
// the 3 stuff-count bits just appended. CAN FD only.
func (bf *BitFrame) SetStuffParity() {
	idx := bf.lastIndexOf(canbus.StuffCnt)
	parity := 0
	for i := idx - 2; i <= idx; i++ {
		if bf.Bits[i].Val == canbus.Recessive {
			parity ^= 1
		}
	}
	v := canbus.Dominant
	if parity == 0 {
		v = canbus.Recessive
	}
	bf.Bits = append(bf.Bits, bf.newBit(canbus.StuffParity, v))
}

// InsertFixedStuffToCrc inserts one fixed stuff bit every 4 bits
// across the stuff-count-through-CRC region, with value equal to the
// complement of the bit immediately preceding it, regardless of what
// that bit's value is (spec §4.6.3, CAN FD only). It must run after
// SetStuffCnt, SetStuffParity and appendCrc have appended their raw,
// unstuffed bits.
func (bf *BitFrame) InsertFixedStuffToCrc() {
	start := bf.lastIndexOf(canbus.StuffCnt) - 2
	if start < 0 {
		return
	}
	end := bf.lastIndexOf(canbus.Crc)
	if end < start {
		return
	}
	i := start
	run := 0
	for i <= end {
		run++
		if run == 4 {
			stuffVal := bf.Bits[i].Val.Opposite()
			stuffBit := bit.NewStuff(bf.Bits[i].Kind, stuffVal, canbus.FixedStuff, bf.Frame.Flags, bf.Nominal, bf.Data)
			bf.Bits = insertBit(bf.Bits, i+1, stuffBit)
			end++
			run = 0
			i += 2
			continue
		}
		i++
	}
}

// CalcCrc computes all three concurrent CRCs (crc15, crc17, crc21)
// over the bits built so far: SOF through the end of the stuff-count
// and parity fields (if present). crc15 excludes every stuff bit;
// crc17/crc21 exclude only fixed stuff bits, counting normal stuff
// bits toward the shift register (spec §4.5).
func (bf *BitFrame) CalcCrc() {
	var r15, r17, r21 uint32
	r17 = 1 << 16
	r21 = 1 << 20

	for _, b := range bf.Bits {
		bitIn := uint32(0)
		if b.Val == canbus.Recessive {
			bitIn = 1
		}
		if !b.IsStuffBit() {
			r15 = crcShift(r15, bitIn, crc15Poly, 15)
		}
		if b.StuffKind != canbus.FixedStuff {
			r17 = crcShift(r17, bitIn, crc17Poly, 17)
			r21 = crcShift(r21, bitIn, crc21Poly, 21)
		}
	}

	bf.Crc15 = r15
	bf.Crc17 = r17
	bf.Crc21 = r21
}

func crcShift(reg, bitIn, poly uint32, width int) uint32 {
	top := (reg >> uint(width-1)) & 1
	next := bitIn ^ top
	reg = (reg << 1) & ((1 << uint(width)) - 1)
	if next == 1 {
		reg ^= poly
	}
	return reg
}

// UpdateFrame recomputes stuffing and CRC for the whole frame from
// scratch, as if built fresh from bf.Frame. Use after mutating the
// logical Frame in place (e.g. corrupting a data byte) when the bit
// stream needs to reflect the change.
func (bf *BitFrame) UpdateFrame() {
	bf.StuffCount = 0
	bf.build()
}
