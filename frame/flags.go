// Package frame holds the logical (pre-bit-level) representation of a
// CAN/CAN FD frame: its shape flags (Flags) and its payload (Frame,
// identifier, DLC, data).
package frame

import (
	"cancompliance.dev/canbus"
	"cancompliance.dev/canrand"
)

// Flags bundles the five frame-shape flags together with which of
// them are still free to be randomized.
type Flags struct {
	Kind  canbus.FrameKind
	Ident canbus.IdentKind
	Rtr   canbus.RtrFlag
	Brs   canbus.BrsFlag
	Esi   canbus.EsiFlag

	randKind  bool
	randIdent bool
	randRtr   bool
	randBrs   bool
	randEsi   bool
}

// FlagOption fixes one of the five flags of a Flags value built with
// NewFlags, removing it from the set Randomize is free to pick.
type FlagOption struct {
	apply func(*Flags)
}

// WithKind fixes the frame kind (classical CAN vs CAN FD).
func WithKind(k canbus.FrameKind) FlagOption {
	return FlagOption{func(f *Flags) { f.Kind = k; f.randKind = false }}
}

// WithIdentKind fixes the identifier kind (base vs extended).
func WithIdentKind(k canbus.IdentKind) FlagOption {
	return FlagOption{func(f *Flags) { f.Ident = k; f.randIdent = false }}
}

// WithRtr fixes the RTR flag.
func WithRtr(r canbus.RtrFlag) FlagOption {
	return FlagOption{func(f *Flags) { f.Rtr = r; f.randRtr = false }}
}

// WithBrs fixes the bit-rate-switch flag.
func WithBrs(b canbus.BrsFlag) FlagOption {
	return FlagOption{func(f *Flags) { f.Brs = b; f.randBrs = false }}
}

// WithEsi fixes the error-state-indicator flag.
func WithEsi(e canbus.EsiFlag) FlagOption {
	return FlagOption{func(f *Flags) { f.Esi = e; f.randEsi = false }}
}

// NewFlags builds a Flags value from the given options. Any of the
// five flags not named by an option is left random and will be filled
// in by the next call to Randomize. The result passes through
// Correct, so a caller-supplied contradiction (e.g. WithKind(Can20)
// with WithBrs(Shift)) is repaired the same way Randomize repairs one.
func NewFlags(opts ...FlagOption) Flags {
	f := Flags{randKind: true, randIdent: true, randRtr: true, randBrs: true, randEsi: true}
	for _, opt := range opts {
		opt.apply(&f)
	}
	f.Correct()
	return f
}

// Correct repairs the contradictions the spec calls out: CAN FD
// frames never carry a remote-frame RTR, classical CAN never shifts
// bit rate, and classical CAN is never reported error-passive.
func (f *Flags) Correct() {
	if f.Kind == canbus.CanFd {
		f.Rtr = canbus.DataFrame
	}
	if f.Kind == canbus.Can20 {
		f.Brs = canbus.DontShift
		f.Esi = canbus.ErrorActive
	}
}

// Equal reports whether f and other carry the same five flag values
// (randomization state is not compared).
func (f Flags) Equal(other Flags) bool {
	return f.Kind == other.Kind && f.Ident == other.Ident && f.Rtr == other.Rtr &&
		f.Brs == other.Brs && f.Esi == other.Esi
}

// Randomize samples every flag marked random by rng, then repairs any
// contradiction the sample introduced.
func (f *Flags) Randomize(rng *canrand.Source) {
	if f.randKind {
		if rng.Intn(2) == 1 {
			f.Kind = canbus.Can20
		} else {
			f.Kind = canbus.CanFd
		}
	}
	if f.randIdent {
		if rng.Intn(2) == 1 {
			f.Ident = canbus.Base
		} else {
			f.Ident = canbus.Extended
		}
	}
	if f.randRtr {
		if f.Kind == canbus.CanFd {
			f.Rtr = canbus.DataFrame
		} else if rng.Intn(4) == 1 {
			f.Rtr = canbus.RtrFrame
		} else {
			f.Rtr = canbus.DataFrame
		}
	}
	if f.randBrs {
		if f.Kind == canbus.Can20 {
			f.Brs = canbus.DontShift
		} else if rng.Intn(2) == 1 {
			f.Brs = canbus.Shift
		} else {
			f.Brs = canbus.DontShift
		}
	}
	if f.randEsi {
		if f.Kind == canbus.Can20 {
			f.Esi = canbus.ErrorActive
		} else if rng.Intn(2) == 1 {
			f.Esi = canbus.ErrorPassive
		} else {
			f.Esi = canbus.ErrorActive
		}
	}
	f.Correct()
}
