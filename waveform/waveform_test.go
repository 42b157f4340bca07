package waveform

import (
	"bytes"
	"testing"

	"cancompliance.dev/bitframe"
	"cancompliance.dev/canbus"
	"cancompliance.dev/frame"
	"cancompliance.dev/testseq"
	"cancompliance.dev/timing"
)

func TestRenderProducesPNG(t *testing.T) {
	nominal := &timing.BitTiming{Brp: 4, Prop: 2, Ph1: 3, Ph2: 3, Sjw: 2}
	data := &timing.BitTiming{Brp: 1, Prop: 1, Ph1: 2, Ph2: 2, Sjw: 1}
	f := frame.New(
		frame.WithFlags(frame.NewFlags(frame.WithKind(canbus.Can20), frame.WithRtr(canbus.DataFrame))),
		frame.WithIdent(0x123),
		frame.WithData([]byte{0xAA}),
	)
	bf, err := bitframe.New(f, nominal, data)
	if err != nil {
		t.Fatalf("bitframe.New: %v", err)
	}
	seq := testseq.Build(bf)

	var buf bytes.Buffer
	if err := Render(&buf, seq, DefaultOptions); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("Render produced no output")
	}
	pngSig := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	if !bytes.HasPrefix(buf.Bytes(), pngSig) {
		t.Fatal("Render output does not start with the PNG signature")
	}
}
