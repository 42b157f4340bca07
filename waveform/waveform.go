// Package waveform renders a testseq.Sequence as a PNG bit-timing
// diagram: driver and monitor traces, dominant low and recessive
// high, Options.PixelsPerCycle pixel columns per cycle. It supplements the core spec with
// a visual debugging aid for a failed compliance test, the way the
// teacher's engrave package rasterizes a Plan into lines rather than
// an engraver's step stream.
package waveform

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"

	"github.com/srwiley/rasterx"

	"cancompliance.dev/canbus"
	"cancompliance.dev/testseq"
)

// Options controls the rendered diagram's geometry.
type Options struct {
	PixelsPerCycle int
	TraceHeight    int
	TraceGap       int
	Margin         int
}

// DefaultOptions is a reasonable starting point for a few hundred
// cycles of frame.
var DefaultOptions = Options{
	PixelsPerCycle: 2,
	TraceHeight:    40,
	TraceGap:       16,
	Margin:         8,
}

// Render draws seq's driver trace above its monitor trace and writes
// the result to w as a PNG.
func Render(w io.Writer, seq *testseq.Sequence, opts Options) error {
	if opts.PixelsPerCycle <= 0 {
		opts.PixelsPerCycle = DefaultOptions.PixelsPerCycle
	}
	if opts.TraceHeight <= 0 {
		opts.TraceHeight = DefaultOptions.TraceHeight
	}

	width := opts.Margin*2 + testseq.TotalCycles(seq.Driver)*opts.PixelsPerCycle
	height := opts.Margin*2 + opts.TraceHeight*2 + opts.TraceGap
	if maxW := opts.Margin*2 + testseq.TotalCycles(seq.Monitor)*opts.PixelsPerCycle; maxW > width {
		width = maxW
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	driverY := opts.Margin
	monitorY := opts.Margin + opts.TraceHeight + opts.TraceGap
	drawTrace(img, seq.Driver, opts, driverY, color.RGBA{R: 0x20, G: 0x20, B: 0xC0, A: 0xFF})
	drawTrace(img, seq.Monitor, opts, monitorY, color.RGBA{R: 0xC0, G: 0x30, B: 0x20, A: 0xFF})

	return png.Encode(w, img)
}

// drawTrace rasterizes one item stream as a stroked step line: low
// for Dominant, high for Recessive, one rasterx path per run of
// cycles sharing a value.
func drawTrace(img draw.Image, items []testseq.Item, opts Options, top int, c color.Color) {
	scanner := rasterx.NewScannerGV(img.Bounds().Dx(), img.Bounds().Dy(), img, img.Bounds())
	filler := rasterx.NewFiller(img.Bounds().Dx(), img.Bounds().Dy(), scanner)
	filler.SetColor(c)

	x := opts.Margin
	low := float64(top + opts.TraceHeight)
	high := float64(top)

	started := false
	var lastY float64
	for _, it := range items {
		y := low
		if it.Val == canbus.Recessive {
			y = high
		}
		x1 := x + it.Cycles*opts.PixelsPerCycle
		if !started {
			filler.Start(rasterx.ToFixedP(float64(x), y))
			started = true
		} else if y != lastY {
			// Vertical edge at the transition.
			filler.Line(rasterx.ToFixedP(float64(x), lastY))
			filler.Line(rasterx.ToFixedP(float64(x), y))
		}
		filler.Line(rasterx.ToFixedP(float64(x1), y))
		lastY = y
		x = x1
	}
	if started {
		filler.Stop(true)
	}
	filler.Draw()
}

// axisTick draws a short vertical reference tick at the given cycle
// offset on both traces, used by callers that want to mark the
// position of a mutated bit in the rendered diagram.
func axisTick(img draw.Image, opts Options, cycleOffset int, c color.Color) error {
	x := opts.Margin + cycleOffset*opts.PixelsPerCycle
	if x < 0 || x >= img.Bounds().Dx() {
		return fmt.Errorf("waveform: tick at cycle %d falls outside the rendered image", cycleOffset)
	}
	top := opts.Margin
	bottom := opts.Margin*2 + opts.TraceHeight*2 + opts.TraceGap
	for y := top; y < bottom; y++ {
		img.Set(x, y, c)
	}
	return nil
}

// Mark highlights the cycle at cycleOffset (counted from the start of
// the streams), useful for annotating where an injected error sits.
func Mark(img draw.Image, opts Options, cycleOffset int) error {
	return axisTick(img, opts, cycleOffset, color.RGBA{R: 0xE0, G: 0xA0, B: 0x00, A: 0xFF})
}
