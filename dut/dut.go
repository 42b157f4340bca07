// Package dut implements the external DUT control interface of C10:
// the operations a compliance test uses to reset, configure and query
// the device under test, independent of how the test actually talks
// to it (GPIO-wired reference controller, or a PLI/simulator bridge,
// see package pli).
package dut

import (
	"context"
	"fmt"

	"cancompliance.dev/canbus"
	"cancompliance.dev/timing"
)

// CanVersion selects which protocol revision the DUT should run.
type CanVersion int8

const (
	Can20 CanVersion = iota
	CanFdTolerant
	CanFdEnabled
)

func (v CanVersion) String() string {
	switch v {
	case Can20:
		return "can20"
	case CanFdTolerant:
		return "canfd_tolerant"
	case CanFdEnabled:
		return "canfd_enabled"
	default:
		return fmt.Sprintf("CanVersion(%d)", v)
	}
}

// SspType selects the DUT's secondary sample point measurement mode
// for the data bit rate.
type SspType int8

const (
	SspDisabled SspType = iota
	SspMeasured
	SspOffset
)

// FaultConfinementState mirrors the three fault confinement states of
// ISO 11898-1.
type FaultConfinementState int8

const (
	ErrorActive FaultConfinementState = iota
	ErrorPassive
	BusOff
)

func (s FaultConfinementState) String() string {
	switch s {
	case ErrorActive:
		return "error_active"
	case ErrorPassive:
		return "error_passive"
	case BusOff:
		return "bus_off"
	default:
		return fmt.Sprintf("FaultConfinementState(%d)", s)
	}
}

// Frame is the minimal wire-level description of a frame a DUT can
// send or report receiving, independent of bitframe's bit-level
// detail (a DUT adapter only ever sees whole received frames, never
// individual bits).
type Frame struct {
	Ident   int
	Ext     bool
	Rtr     bool
	Fd      bool
	Brs     bool
	Dlc     uint8
	DataLen int
	Data    [64]byte
}

// Controller is the interface a compliance test drives the device
// under test through (spec §6): resets, bit timing configuration,
// frame I/O and fault confinement register access. GPIOAdapter
// provides the reset, enable, rx-pending and error-state operations
// over GPIO but does not implement the whole interface; no type in
// this module implements all of it.
type Controller interface {
	Reset(ctx context.Context) error
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error

	ConfigureBitTiming(ctx context.Context, nominal, data *timing.BitTiming) error
	ConfigureSSP(ctx context.Context, typ SspType, offset int) error
	SetCanVersion(ctx context.Context, v CanVersion) error

	SendFrame(ctx context.Context, f Frame) error
	ReadFrame(ctx context.Context) (Frame, error)
	HasRxFrame(ctx context.Context) (bool, error)

	GetRec(ctx context.Context) (int, error)
	GetTec(ctx context.Context) (int, error)
	SetRec(ctx context.Context, n int) error
	SetTec(ctx context.Context, n int) error

	GetErrorState(ctx context.Context) (FaultConfinementState, error)
	SetErrorState(ctx context.Context, s FaultConfinementState) error

	SendReintegrationRequest(ctx context.Context) error
}

// BitValOf converts a dominant/recessive flag (such as a dut.Frame
// RTR/data bit) to the canbus vocabulary the rest of the module uses,
// for tests that want to
// compare a DUT-reported frame against a bitframe.BitFrame's decoded
// logical frame.
func BitValOf(dominant bool) canbus.BitVal {
	if dominant {
		return canbus.Dominant
	}
	return canbus.Recessive
}
