package frame

import (
	"testing"

	"cancompliance.dev/canbus"
	"cancompliance.dev/canrand"
)

func TestNewFlagsDefaults(t *testing.T) {
	f := NewFlags()
	if !f.randKind || !f.randIdent || !f.randRtr || !f.randBrs || !f.randEsi {
		t.Fatal("NewFlags() with no options should leave every flag random")
	}
}

func TestWithOptionsClearsRandom(t *testing.T) {
	f := NewFlags(WithKind(canbus.CanFd), WithBrs(canbus.Shift))
	if f.randKind || f.randBrs {
		t.Fatal("fixed flags should no longer be random")
	}
	if !f.randIdent || !f.randRtr || !f.randEsi {
		t.Fatal("unfixed flags should remain random")
	}
	if f.Kind != canbus.CanFd || f.Brs != canbus.Shift {
		t.Fatalf("flags = %+v, want Kind=CanFd Brs=Shift", f)
	}
}

func TestCorrectRepairsContradictions(t *testing.T) {
	f := NewFlags(WithKind(canbus.Can20), WithBrs(canbus.Shift), WithEsi(canbus.ErrorPassive))
	if f.Brs != canbus.DontShift {
		t.Error("Correct should force Brs to DontShift on classical CAN")
	}
	if f.Esi != canbus.ErrorActive {
		t.Error("Correct should force Esi to ErrorActive on classical CAN")
	}

	f2 := NewFlags(WithKind(canbus.CanFd), WithRtr(canbus.RtrFrame))
	if f2.Rtr != canbus.DataFrame {
		t.Error("Correct should force Rtr to DataFrame on CAN FD")
	}
}

func TestRandomizeRespectsFixedFields(t *testing.T) {
	f := NewFlags(WithKind(canbus.Can20))
	rng := canrand.New(1)
	for i := 0; i < 50; i++ {
		f.Randomize(rng)
		if f.Kind != canbus.Can20 {
			t.Fatalf("Randomize changed a fixed field: Kind = %v", f.Kind)
		}
		if f.Brs != canbus.DontShift || f.Esi != canbus.ErrorActive {
			t.Fatalf("Randomize produced contradictory flags for Can20: %+v", f)
		}
	}
}

func TestEqual(t *testing.T) {
	a := NewFlags(WithKind(canbus.Can20), WithIdentKind(canbus.Base))
	b := NewFlags(WithKind(canbus.Can20), WithIdentKind(canbus.Base))
	if !a.Equal(b) {
		t.Fatal("two Flags built from the same options should be Equal")
	}
	c := NewFlags(WithKind(canbus.CanFd), WithIdentKind(canbus.Base))
	if a.Equal(c) {
		t.Fatal("Flags with different Kind should not be Equal")
	}
}
