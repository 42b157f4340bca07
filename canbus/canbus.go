// Package canbus holds the enumerations and field tables shared by every
// layer of the CAN/CAN FD bit-level model: frame kind, identifier kind,
// bit value, bit phase, bit rate, the 28 bit-field kinds and the
// DLC-to-data-length table of ISO 11898-1.
package canbus

import "fmt"

// BitVal is the electrical value of a bit on the CAN bus.
type BitVal int8

const (
	Dominant BitVal = iota
	Recessive
)

func (v BitVal) String() string {
	if v == Dominant {
		return "Dominant"
	}
	return "Recessive"
}

// Opposite returns the value that is not v.
func (v BitVal) Opposite() BitVal {
	if v == Dominant {
		return Recessive
	}
	return Dominant
}

// FrameKind selects between classical CAN and CAN FD framing.
type FrameKind int8

const (
	Can20 FrameKind = iota
	CanFd
)

func (k FrameKind) String() string {
	if k == CanFd {
		return "CAN FD"
	}
	return "CAN 2.0"
}

// IdentKind selects an 11-bit base or 29-bit extended identifier.
type IdentKind int8

const (
	Base IdentKind = iota
	Extended
)

func (k IdentKind) String() string {
	if k == Extended {
		return "Extended"
	}
	return "Base"
}

// RtrFlag distinguishes a data frame from a remote frame. Meaningless
// (forced to DataFrame) on CAN FD frames.
type RtrFlag int8

const (
	DataFrame RtrFlag = iota
	RtrFrame
)

func (f RtrFlag) String() string {
	if f == RtrFrame {
		return "RTR"
	}
	return "Data"
}

// BrsFlag selects bit-rate switching inside a CAN FD frame. Must be
// DontShift on classical CAN.
type BrsFlag int8

const (
	Shift BrsFlag = iota
	DontShift
)

func (f BrsFlag) String() string {
	if f == Shift {
		return "Shift"
	}
	return "DontShift"
}

// EsiFlag carries the transmitter's error-state indicator on CAN FD
// frames. Must be ErrorActive on classical CAN.
type EsiFlag int8

const (
	ErrorActive EsiFlag = iota
	ErrorPassive
)

func (f EsiFlag) String() string {
	if f == ErrorPassive {
		return "ErrorPassive"
	}
	return "ErrorActive"
}

// BitPhase tags the time quanta making up one bit.
type BitPhase int8

const (
	Sync BitPhase = iota
	Prop
	Ph1
	Ph2
)

func (p BitPhase) String() string {
	switch p {
	case Sync:
		return "Sync"
	case Prop:
		return "Prop"
	case Ph1:
		return "Ph1"
	case Ph2:
		return "Ph2"
	default:
		return fmt.Sprintf("BitPhase(%d)", int8(p))
	}
}

// BitRate selects which BitTiming (nominal or data) governs a segment.
type BitRate int8

const (
	Nominal BitRate = iota
	Data
)

func (r BitRate) String() string {
	if r == Data {
		return "Data"
	}
	return "Nominal"
}

// StuffKind marks whether and how a bit was inserted by the stuffing
// engine.
type StuffKind int8

const (
	NoStuff StuffKind = iota
	NormalStuff
	FixedStuff
)

func (s StuffKind) String() string {
	switch s {
	case NormalStuff:
		return "Normal"
	case FixedStuff:
		return "Fixed"
	default:
		return "NoStuff"
	}
}

// BitKind names one of the 28 CAN/CAN FD bit fields.
type BitKind int8

const (
	Sof BitKind = iota
	BaseIdent
	ExtIdent
	Rtr
	Ide
	Srr
	Edl
	R0
	R1
	Brs
	Esi
	Dlc
	DataField
	StuffCnt
	StuffParity
	Crc
	CrcDelim
	Ack
	AckDelim
	Eof
	Interm
	Idle
	SuspTrans
	ActErrFlag
	PasErrFlag
	ErrDelim
	OvrlFlag
	OvrlDelim
)

var bitKindNames = [...]string{
	Sof:         "SOF",
	BaseIdent:   "BaseIdentifier",
	ExtIdent:    "IdentifierExtension",
	Rtr:         "RTR",
	Ide:         "IDE",
	Srr:         "SRR",
	Edl:         "EDL",
	R0:          "R0",
	R1:          "R1",
	Brs:         "BRS",
	Esi:         "ESI",
	Dlc:         "DLC",
	DataField:   "Data",
	StuffCnt:    "StuffCount",
	StuffParity: "StuffParity",
	Crc:         "CRC",
	CrcDelim:    "CRCDelimiter",
	Ack:         "ACK",
	AckDelim:    "ACKDelimiter",
	Eof:         "EOF",
	Interm:      "Intermission",
	Idle:        "Idle",
	SuspTrans:   "SuspendTransmission",
	ActErrFlag:  "ActiveErrorFlag",
	PasErrFlag:  "PassiveErrorFlag",
	ErrDelim:    "ErrorDelimiter",
	OvrlFlag:    "OverloadFlag",
	OvrlDelim:   "OverloadDelimiter",
}

func (k BitKind) String() string {
	if int(k) >= 0 && int(k) < len(bitKindNames) {
		return bitKindNames[k]
	}
	return fmt.Sprintf("BitKind(%d)", int8(k))
}

// singleBitFields lists the BitKinds that always occupy exactly one bit
// on the wire, mirroring the original IsSingleBitField table.
var singleBitFields = map[BitKind]bool{
	Sof:         true,
	R0:          true,
	R1:          true,
	Srr:         true,
	Rtr:         true,
	Ide:         true,
	Edl:         true,
	Brs:         true,
	Esi:         true,
	CrcDelim:    true,
	StuffParity: true,
	Ack:         true,
	AckDelim:    true,
}

// IsSingleBitField reports whether k names a field that is always
// exactly one bit wide (as opposed to e.g. Data or Crc).
func IsSingleBitField(k BitKind) bool {
	return singleBitFields[k]
}

// arbitrationFields lists the BitKinds across which arbitration can be
// lost. R1 is included because FD frames carry it where classical
// frames carry Rtr, so a test arbitrating a classical ID against an FD
// ID must be able to lose on it too.
var arbitrationFields = map[BitKind]bool{
	BaseIdent: true,
	ExtIdent:  true,
	Rtr:       true,
	Srr:       true,
	Ide:       true,
	R1:        true,
}

// IsArbitrationField reports whether k can be an arbitration-loss
// point (see BitFrame.LooseArbit).
func IsArbitrationField(k BitKind) bool {
	return arbitrationFields[k]
}

// dlcToLen is the ISO 11898-1 DLC-to-data-length table, indexed by DLC.
var dlcToLen = [16]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 12, 16, 20, 24, 32, 48, 64}

// DataLen maps a DLC in [0,15] to a payload length in bytes, honouring
// the classical-CAN special cases: RTR frames always carry zero
// payload bytes, and a classical data frame clamps DLC>=8 to 8 bytes.
func DataLen(dlc uint8, kind FrameKind, rtr RtrFlag) int {
	if kind == Can20 && rtr == RtrFrame {
		return 0
	}
	if kind == Can20 && dlc >= 8 {
		return 8
	}
	if int(dlc) >= len(dlcToLen) {
		dlc = 15
	}
	return dlcToLen[dlc]
}

// DLCForLen reverse-maps a valid payload length back to its DLC. The
// second return value is false if n is not one of the sixteen valid
// lengths.
func DLCForLen(n int) (uint8, bool) {
	for dlc, l := range dlcToLen {
		if l == n {
			return uint8(dlc), true
		}
	}
	return 0, false
}
