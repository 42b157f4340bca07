package frame

import (
	"fmt"

	"cancompliance.dev/canbus"
	"cancompliance.dev/canrand"
)

// MaxDataLen is the longest payload a CAN FD frame can carry.
const MaxDataLen = 64

// Frame is the logical payload of a CAN/CAN FD frame: its shape
// flags, identifier, DLC and data bytes. Frame is the input to
// bitframe.New; it carries no bit-level detail.
type Frame struct {
	Flags   Flags
	Ident   int
	Dlc     uint8
	DataLen int
	Data    [MaxDataLen]byte

	randIdent bool
	randDlc   bool
	randData  bool
}

// Option fixes one field of a Frame built with New.
type Option func(*Frame)

// WithFlags fixes the frame's Flags.
func WithFlags(f Flags) Option {
	return func(fr *Frame) { fr.Flags = f }
}

// WithIdent fixes the identifier.
func WithIdent(id int) Option {
	return func(fr *Frame) { fr.Ident = id; fr.randIdent = false }
}

// WithDlc fixes the DLC (and therefore the data length).
func WithDlc(dlc uint8) Option {
	return func(fr *Frame) { fr.setDlc(dlc); fr.randDlc = false }
}

// WithData fixes the payload bytes, and the data length (and so DLC)
// to len(data).
func WithData(data []byte) Option {
	return func(fr *Frame) {
		n := copy(fr.Data[:], data)
		fr.DataLen = n
		if dlc, ok := canbus.DLCForLen(n); ok {
			fr.Dlc = dlc
		}
		fr.randData = false
	}
}

// New builds a Frame from the given options. Fields left unfixed are
// marked random and are filled in by the next call to Randomize.
func New(opts ...Option) Frame {
	f := Frame{randIdent: true, randDlc: true, randData: true}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

func (f *Frame) setDlc(dlc uint8) {
	f.Dlc = dlc
	f.DataLen = canbus.DataLen(dlc, f.Flags.Kind, f.Flags.Rtr)
}

// SetDlc sets the DLC and recomputes DataLen from the DLC table.
func (f *Frame) SetDlc(dlc uint8) error {
	if dlc > 15 {
		return fmt.Errorf("frame: dlc %d out of range [0,15]", dlc)
	}
	f.setDlc(dlc)
	return nil
}

// SetDataLen reverse-maps a valid payload length back to a DLC. It
// rejects lengths that are not one of the sixteen valid lengths.
func (f *Frame) SetDataLen(n int) error {
	dlc, ok := canbus.DLCForLen(n)
	if !ok {
		return fmt.Errorf("frame: %d is not a valid data length", n)
	}
	if f.Flags.Kind == canbus.Can20 && n > 8 {
		return fmt.Errorf("frame: data length %d invalid for classical CAN", n)
	}
	f.Dlc = dlc
	f.DataLen = n
	return nil
}

// SetIdent sets the identifier, rejecting one that does not fit in 11
// or 29 bits depending on the frame's identifier kind.
func (f *Frame) SetIdent(id int) error {
	max := 1 << 11
	if f.Flags.Ident == canbus.Extended {
		max = 1 << 29
	}
	if id < 0 || id >= max {
		return fmt.Errorf("frame: identifier %#x out of range for %v", id, f.Flags.Ident)
	}
	f.Ident = id
	return nil
}

// Randomize randomises the frame's flags first (constraining
// everything that follows), then any field still marked random:
// identifier (masked to the resulting identifier kind), DLC
// (constrained to <= 8 for classical CAN), and payload bytes.
func (f *Frame) Randomize(rng *canrand.Source) {
	f.Flags.Randomize(rng)

	// RTR may have just changed, which changes the DLC->length
	// mapping; recompute DataLen for the current Dlc.
	f.setDlc(f.Dlc)

	if f.randIdent {
		max := 1 << 11
		if f.Flags.Ident == canbus.Extended {
			max = 1 << 29
		}
		f.Ident = rng.Intn(max)
	}

	if f.randDlc {
		if f.Flags.Kind == canbus.CanFd {
			f.setDlc(uint8(rng.Intn(16)))
		} else {
			f.setDlc(uint8(rng.Intn(9)))
		}
	}

	if f.randData {
		rng.Bytes(f.Data[:MaxDataLen])
	}
}
