//go:build !tinygo

package pli

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"

	"cancompliance.dev/canbus"
)

// fakePort is an io.ReadWriteCloser that replies with the canned
// response stream it was built with and records everything written to
// it in out.
type fakePort struct {
	in       *strings.Reader
	out      strings.Builder
	commands []string
}

func newFakePort(responses string) *fakePort {
	return &fakePort{in: strings.NewReader(responses)}
}

func (p *fakePort) Read(b []byte) (int, error)  { return p.in.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) { p.out.Write(b); return len(b), nil }
func (p *fakePort) Close() error                { return nil }

func newBridge(responses string) *SerialBridge {
	port := newFakePort(responses)
	return &SerialBridge{port: port, r: bufio.NewReader(port)}
}

func TestDriverPushItemSendsExpectedCommand(t *testing.T) {
	port := newFakePort("OK\nOK\n")
	b := &SerialBridge{port: port, r: bufio.NewReader(port)}

	if err := b.DriverStart(context.Background()); err != nil {
		t.Fatalf("DriverStart: %v", err)
	}
	if err := b.DriverPushItem(context.Background(), canbus.Recessive, 4, canbus.Data); err != nil {
		t.Fatalf("DriverPushItem: %v", err)
	}
	got := port.out.String()
	want := "DRIVER_START\nDRIVER_PUSH 1 4 D\n"
	if got != want {
		t.Fatalf("commands sent = %q, want %q", got, want)
	}
}

func TestCheckResultParsesPass(t *testing.T) {
	b := newBridge("OK PASS\n")
	ok, err := b.CheckResult(context.Background())
	if err != nil {
		t.Fatalf("CheckResult: %v", err)
	}
	if !ok {
		t.Fatal("CheckResult should report true for PASS")
	}
}

func TestGetBitTimingElementParsesFields(t *testing.T) {
	b := newBridge("OK 4 2 3 3 2\n")
	bt, err := b.GetBitTimingElement(context.Background(), canbus.Nominal)
	if err != nil {
		t.Fatalf("GetBitTimingElement: %v", err)
	}
	if bt.Brp != 4 || bt.Prop != 2 || bt.Ph1 != 3 || bt.Ph2 != 3 || bt.Sjw != 2 {
		t.Fatalf("parsed timing = %+v, want Brp=4 Prop=2 Ph1=3 Ph2=3 Sjw=2", bt)
	}
}

func TestCommandPropagatesBridgeError(t *testing.T) {
	b := newBridge("ERR bad command\n")
	_, err := b.command(context.Background(), "GET_SEED")
	if err == nil {
		t.Fatal("expected an error for an ERR response")
	}
}

func TestCommandRespectsCancelledContext(t *testing.T) {
	b := newBridge("OK\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.command(ctx, "GET_SEED"); err == nil {
		t.Fatal("expected an error for an already-cancelled context")
	}
}

var _ io.ReadWriteCloser = (*fakePort)(nil)
