//go:build !tinygo

package dut

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIOPins names the physical pins a GPIOAdapter drives and reads,
// each resolved through periph.io's gpioreg by name (e.g. "GPIO6") so
// the adapter works across host boards without hardcoding a
// bcm283x-specific pin type.
type GPIOPins struct {
	Reset     string
	Enable    string
	RxPending string // asserted by the DUT when a frame is ready to read
	ErrorFlag string // asserted by the DUT while in bus-off
}

// GPIOAdapter drives a CAN controller wired directly to host GPIO
// pins: Reset and Enable are outputs, RxPending and ErrorFlag are
// polled inputs. It implements Controller's reset/enable/error-state
// surface directly in hardware; frame I/O and bit timing
// configuration are expected to go over a side channel (typically
// SPI or a register block) a real board support package would add —
// out of scope here, see spec §6 non-goals on PLI/DUT internals.
type GPIOAdapter struct {
	reset     gpio.PinOut
	enable    gpio.PinOut
	rxPending gpio.PinIn
	errorFlag gpio.PinIn
}

// OpenGPIOAdapter initializes the host's GPIO subsystem and resolves
// pins, returning ready adapter.
func OpenGPIOAdapter(pins GPIOPins) (*GPIOAdapter, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("dut: host.Init: %w", err)
	}
	a := &GPIOAdapter{}
	var err error
	if a.reset, err = resolveOut(pins.Reset); err != nil {
		return nil, err
	}
	if a.enable, err = resolveOut(pins.Enable); err != nil {
		return nil, err
	}
	if a.rxPending, err = resolveIn(pins.RxPending); err != nil {
		return nil, err
	}
	if a.errorFlag, err = resolveIn(pins.ErrorFlag); err != nil {
		return nil, err
	}
	return a, nil
}

func resolveOut(name string) (gpio.PinOut, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("dut: no such gpio pin %q", name)
	}
	return p, nil
}

func resolveIn(name string) (gpio.PinIn, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("dut: no such gpio pin %q", name)
	}
	if err := p.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("dut: configuring %q as input: %w", name, err)
	}
	return p, nil
}

// Reset pulses the reset line low for one reset pulse width.
func (a *GPIOAdapter) Reset(ctx context.Context) error {
	const pulse = 10 * time.Millisecond
	if err := a.reset.Out(gpio.Low); err != nil {
		return fmt.Errorf("dut: asserting reset: %w", err)
	}
	select {
	case <-time.After(pulse):
	case <-ctx.Done():
		return ctx.Err()
	}
	return a.reset.Out(gpio.High)
}

// Enable drives the enable line high.
func (a *GPIOAdapter) Enable(ctx context.Context) error {
	return a.enable.Out(gpio.High)
}

// Disable drives the enable line low.
func (a *GPIOAdapter) Disable(ctx context.Context) error {
	return a.enable.Out(gpio.Low)
}

// HasRxFrame polls the rx-pending line.
func (a *GPIOAdapter) HasRxFrame(ctx context.Context) (bool, error) {
	return a.rxPending.Read() == gpio.High, nil
}

// GetErrorState reports bus-off from the error-flag line; error
// active vs passive is not observable over a single GPIO line, so
// GetErrorState only ever distinguishes BusOff from ErrorActive.
func (a *GPIOAdapter) GetErrorState(ctx context.Context) (FaultConfinementState, error) {
	if a.errorFlag.Read() == gpio.High {
		return BusOff, nil
	}
	return ErrorActive, nil
}

// WaitForRxFrame blocks until the rx-pending line asserts or ctx is
// done, using the pin's edge-triggered wait when the platform
// supports it.
func (a *GPIOAdapter) WaitForRxFrame(ctx context.Context, timeout time.Duration) (bool, error) {
	if err := a.rxPending.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return false, fmt.Errorf("dut: arming rx-pending edge: %w", err)
	}
	done := make(chan bool, 1)
	go func() { done <- a.rxPending.WaitForEdge(timeout) }()
	select {
	case got := <-done:
		return got, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
