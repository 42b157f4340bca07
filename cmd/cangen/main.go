// command cangen generates a CAN/CAN FD compliance-test bit stream
// for a single frame and writes it out as a recorded fixture and, if
// requested, a PNG waveform diagram.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"cancompliance.dev/bitframe"
	"cancompliance.dev/canbus"
	"cancompliance.dev/canrand"
	"cancompliance.dev/fixture"
	"cancompliance.dev/frame"
	"cancompliance.dev/testseq"
	"cancompliance.dev/timing"
	"cancompliance.dev/waveform"
)

var (
	seed     = flag.Int64("seed", 0, "prng seed (0 picks one from the clock)")
	fd       = flag.Bool("fd", false, "generate a CAN FD frame instead of classical CAN")
	extended = flag.Bool("extended", false, "use a 29-bit extended identifier")
	ident    = flag.Int("ident", -1, "fixed identifier (-1 randomizes)")
	out      = flag.String("o", "frame.cbor.gz", "fixture output path")
	png      = flag.String("png", "", "optional waveform PNG output path")

	brp  = flag.Int("brp", 4, "nominal bit rate prescaler")
	prop = flag.Int("prop", 2, "nominal propagation segment, in time quanta")
	ph1  = flag.Int("ph1", 3, "nominal phase segment 1, in time quanta")
	ph2  = flag.Int("ph2", 3, "nominal phase segment 2, in time quanta")
	sjw  = flag.Int("sjw", 2, "nominal synchronization jump width, in time quanta")

	dataBrp  = flag.Int("data-brp", 1, "data bit rate prescaler")
	dataProp = flag.Int("data-prop", 1, "data propagation segment, in time quanta")
	dataPh1  = flag.Int("data-ph1", 2, "data phase segment 1, in time quanta")
	dataPh2  = flag.Int("data-ph2", 2, "data phase segment 2, in time quanta")
	dataSjw  = flag.Int("data-sjw", 1, "data synchronization jump width, in time quanta")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run() error {
	nominal := &timing.BitTiming{Brp: *brp, Prop: *prop, Ph1: *ph1, Ph2: *ph2, Sjw: *sjw}
	data := &timing.BitTiming{Brp: *dataBrp, Prop: *dataProp, Ph1: *dataPh1, Ph2: *dataPh2, Sjw: *dataSjw}

	var rng *canrand.Source
	if *seed != 0 {
		rng = canrand.New(*seed)
	} else {
		rng = canrand.NewFromTime()
	}

	idKind := canbus.Base
	if *extended {
		idKind = canbus.Extended
	}
	kind := canbus.Can20
	if *fd {
		kind = canbus.CanFd
	}

	f := frame.New(frame.WithFlags(frame.NewFlags(frame.WithKind(kind), frame.WithIdentKind(idKind))))
	if *ident >= 0 {
		if err := f.SetIdent(*ident); err != nil {
			return err
		}
	}
	f.Randomize(rng)
	if *ident >= 0 {
		if err := f.SetIdent(*ident); err != nil {
			return err
		}
	}

	bf, err := bitframe.New(f, nominal, data)
	if err != nil {
		return fmt.Errorf("building bit frame: %w", err)
	}

	if *out == "" {
		return errors.New("specify -o")
	}
	seq := testseq.Build(bf)
	if err := fixture.Compare(*out, true, rng.Seed(), f, seq); err != nil {
		return err
	}

	if *png != "" {
		pf, err := os.Create(*png)
		if err != nil {
			return err
		}
		defer pf.Close()
		if err := waveform.Render(pf, seq, waveform.DefaultOptions); err != nil {
			return fmt.Errorf("rendering waveform: %w", err)
		}
	}

	fmt.Printf("seed=%d ident=%#x kind=%v bits=%d\n", rng.Seed(), f.Ident, f.Flags.Kind, bf.Len())
	return nil
}
