package bitframe

import (
	"fmt"

	"cancompliance.dev/canbus"
	"cancompliance.dev/frame"
)

// Decode reconstructs the logical frame.Frame a bit stream encodes,
// skipping stuff bits and reading fields back out by BitKind. It is
// the inverse of build, used to verify a frame survives a build/strip
// round trip and to let a monitor read back what was actually put on
// the wire after a test has mutated individual bits.
func (bf *BitFrame) Decode() (frame.Frame, error) {
	var opts []frame.Option
	fk := canbus.Can20
	ik := canbus.Base
	rtr := canbus.DataFrame
	brs := canbus.DontShift
	esi := canbus.ErrorActive

	var baseBits, extBits []canbus.BitVal
	var dlcBits []canbus.BitVal
	var dataBits []canbus.BitVal

	for _, b := range bf.Bits {
		if b.IsStuffBit() {
			continue
		}
		switch b.Kind {
		case canbus.BaseIdent:
			baseBits = append(baseBits, b.Val)
		case canbus.ExtIdent:
			extBits = append(extBits, b.Val)
			ik = canbus.Extended
		case canbus.Rtr:
			if b.Val == canbus.Recessive {
				rtr = canbus.RtrFrame
			} else {
				rtr = canbus.DataFrame
			}
		case canbus.Edl:
			if b.Val == canbus.Recessive {
				fk = canbus.CanFd
			}
		case canbus.Brs:
			if b.Val == canbus.Recessive {
				brs = canbus.Shift
			}
		case canbus.Esi:
			if b.Val == canbus.Recessive {
				esi = canbus.ErrorPassive
			}
		case canbus.Dlc:
			dlcBits = append(dlcBits, b.Val)
		case canbus.DataField:
			dataBits = append(dataBits, b.Val)
		}
	}

	// A dominant RTR bit marks a data frame and a recessive one a
	// remote frame. CAN FD frames carry r1 in that position, so their
	// RTR flag is always DataFrame.
	if fk == canbus.CanFd {
		rtr = canbus.DataFrame
	}

	ident := bitsToInt(baseBits)
	if ik == canbus.Extended {
		ident = ident<<18 | bitsToInt(extBits)
	}

	dlc := uint8(bitsToInt(dlcBits))
	if dlc > 15 {
		return frame.Frame{}, fmt.Errorf("bitframe: decoded dlc %d out of range", dlc)
	}

	opts = append(opts,
		frame.WithFlags(frame.NewFlags(
			frame.WithKind(fk),
			frame.WithIdentKind(ik),
			frame.WithRtr(rtr),
			frame.WithBrs(brs),
			frame.WithEsi(esi),
		)),
		frame.WithIdent(ident),
		frame.WithDlc(dlc),
	)

	data := bitsToBytes(dataBits)
	if len(data) > 0 {
		opts = append(opts, frame.WithData(data))
	}

	return frame.New(opts...), nil
}

func bitsToInt(bits []canbus.BitVal) int {
	v := 0
	for _, b := range bits {
		v <<= 1
		if b == canbus.Recessive {
			v |= 1
		}
	}
	return v
}

func bitsToBytes(bits []canbus.BitVal) []byte {
	out := make([]byte, 0, (len(bits)+7)/8)
	for i := 0; i < len(bits); i += 8 {
		end := i + 8
		if end > len(bits) {
			end = len(bits)
		}
		var v byte
		for _, b := range bits[i:end] {
			v <<= 1
			if b == canbus.Recessive {
				v |= 1
			}
		}
		out = append(out, v)
	}
	return out
}
