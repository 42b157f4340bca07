//go:build !tinygo

package pli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/tarm/serial"

	"cancompliance.dev/canbus"
	"cancompliance.dev/timing"
)

// SerialBridge talks to a PLI-compatible hardware simulator over a
// line-oriented serial protocol: one command per line, a response
// line starting with "OK" or "ERR". It is the serial equivalent of
// the mjolnir device bridge this module's teacher uses for its own
// hardware, adapted from bit-banging a physical signer's screen/input
// to driving a CAN bus simulator's item queues.
type SerialBridge struct {
	port io.ReadWriteCloser
	r    *bufio.Reader
}

// OpenSerialBridge opens dev (or, if empty, tries the platform's usual
// serial device names) at the PLI bridge's fixed baud rate.
func OpenSerialBridge(dev string) (*SerialBridge, error) {
	const baudRate = 115200

	var devices []string
	if dev != "" {
		devices = append(devices, dev)
	} else {
		switch runtime.GOOS {
		case "windows":
			devices = append(devices, "COM3")
		case "linux":
			devices = append(devices, "/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyACM0")
		}
	}
	if len(devices) == 0 {
		return nil, errors.New("pli: no device specified")
	}
	var firstErr error
	for _, d := range devices {
		c := &serial.Config{Name: d, Baud: baudRate}
		s, err := serial.OpenPort(c)
		if err == nil {
			return &SerialBridge{port: s, r: bufio.NewReader(s)}, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, fmt.Errorf("pli: opening serial bridge: %w", firstErr)
}

func (b *SerialBridge) Close() error {
	return b.port.(io.Closer).Close()
}

func (b *SerialBridge) command(ctx context.Context, line string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := io.WriteString(b.port, line+"\n"); err != nil {
		return "", fmt.Errorf("pli: writing command: %w", err)
	}
	resp, err := b.r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("pli: reading response: %w", err)
	}
	resp = strings.TrimSpace(resp)
	if strings.HasPrefix(resp, "ERR") {
		return "", fmt.Errorf("pli: bridge returned %q", resp)
	}
	return strings.TrimPrefix(resp, "OK "), nil
}

func rateCode(r canbus.BitRate) string {
	if r == canbus.Data {
		return "D"
	}
	return "N"
}

func valCode(v canbus.BitVal) string {
	if v == canbus.Recessive {
		return "1"
	}
	return "0"
}

func (b *SerialBridge) DriverStart(ctx context.Context) error {
	_, err := b.command(ctx, "DRIVER_START")
	return err
}

func (b *SerialBridge) DriverPushItem(ctx context.Context, val canbus.BitVal, cycles int, rate canbus.BitRate) error {
	_, err := b.command(ctx, fmt.Sprintf("DRIVER_PUSH %s %d %s", valCode(val), cycles, rateCode(rate)))
	return err
}

func (b *SerialBridge) DriverFlush(ctx context.Context) error {
	_, err := b.command(ctx, "DRIVER_FLUSH")
	return err
}

func (b *SerialBridge) MonitorStart(ctx context.Context) error {
	_, err := b.command(ctx, "MONITOR_START")
	return err
}

func (b *SerialBridge) MonitorPushItem(ctx context.Context, val canbus.BitVal, cycles int, rate canbus.BitRate) error {
	_, err := b.command(ctx, fmt.Sprintf("MONITOR_PUSH %s %d %s", valCode(val), cycles, rateCode(rate)))
	return err
}

func (b *SerialBridge) MonitorSetTrigger(ctx context.Context, bitIndex int) error {
	_, err := b.command(ctx, fmt.Sprintf("MONITOR_TRIGGER %d", bitIndex))
	return err
}

func (b *SerialBridge) MonitorSetInputDelay(ctx context.Context, cycles int) error {
	_, err := b.command(ctx, fmt.Sprintf("MONITOR_DELAY %d", cycles))
	return err
}

func (b *SerialBridge) SetWaitForMonitor(ctx context.Context, wait bool) error {
	v := "0"
	if wait {
		v = "1"
	}
	_, err := b.command(ctx, "WAIT_MONITOR "+v)
	return err
}

func (b *SerialBridge) CheckResult(ctx context.Context) (bool, error) {
	resp, err := b.command(ctx, "CHECK_RESULT")
	if err != nil {
		return false, err
	}
	return resp == "PASS", nil
}

func (b *SerialBridge) GetSeed(ctx context.Context) (int64, error) {
	resp, err := b.command(ctx, "GET_SEED")
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(resp, 10, 64)
}

func (b *SerialBridge) GetBitTimingElement(ctx context.Context, rate canbus.BitRate) (*timing.BitTiming, error) {
	resp, err := b.command(ctx, "GET_TIMING "+rateCode(rate))
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(resp)
	if len(fields) != 5 {
		return nil, fmt.Errorf("pli: malformed timing response %q", resp)
	}
	vals := make([]int, 5)
	for i, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("pli: malformed timing field %q: %w", f, err)
		}
		vals[i] = n
	}
	return &timing.BitTiming{Brp: vals[0], Prop: vals[1], Ph1: vals[2], Ph2: vals[3], Sjw: vals[4]}, nil
}

func (b *SerialBridge) GetCfgDutClockPeriodNs(ctx context.Context) (int, error) {
	resp, err := b.command(ctx, "GET_CLOCK_PERIOD")
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(resp)
}

func (b *SerialBridge) EndTest(ctx context.Context) error {
	_, err := b.command(ctx, "END_TEST")
	return err
}
