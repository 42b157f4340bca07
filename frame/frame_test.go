package frame

import (
	"testing"

	"cancompliance.dev/canbus"
	"cancompliance.dev/canrand"
)

func TestNewDefaults(t *testing.T) {
	f := New()
	if !f.randIdent || !f.randDlc || !f.randData {
		t.Fatal("New() with no options should leave identifier, dlc and data random")
	}
}

func TestWithIdentAndDlc(t *testing.T) {
	f := New(WithFlags(NewFlags(WithKind(canbus.Can20))), WithIdent(0x123), WithDlc(8))
	if f.Ident != 0x123 {
		t.Errorf("Ident = %#x, want 0x123", f.Ident)
	}
	if f.Dlc != 8 || f.DataLen != 8 {
		t.Errorf("Dlc/DataLen = %d/%d, want 8/8", f.Dlc, f.DataLen)
	}
}

func TestWithData(t *testing.T) {
	f := New(WithFlags(NewFlags(WithKind(canbus.CanFd))), WithData([]byte{1, 2, 3, 4}))
	if f.DataLen != 4 {
		t.Fatalf("DataLen = %d, want 4", f.DataLen)
	}
	dlc, ok := canbus.DLCForLen(4)
	if !ok || f.Dlc != dlc {
		t.Fatalf("Dlc = %d, want %d", f.Dlc, dlc)
	}
	for i, want := range []byte{1, 2, 3, 4} {
		if f.Data[i] != want {
			t.Errorf("Data[%d] = %d, want %d", i, f.Data[i], want)
		}
	}
}

func TestSetIdentRangeChecks(t *testing.T) {
	f := New(WithFlags(NewFlags(WithIdentKind(canbus.Base))))
	if err := f.SetIdent(1 << 11); err == nil {
		t.Error("SetIdent should reject an 11-bit overflow on a base identifier")
	}
	if err := f.SetIdent((1 << 11) - 1); err != nil {
		t.Errorf("SetIdent with max base id should succeed: %v", err)
	}

	fext := New(WithFlags(NewFlags(WithIdentKind(canbus.Extended))))
	if err := fext.SetIdent(1 << 29); err == nil {
		t.Error("SetIdent should reject a 29-bit overflow on an extended identifier")
	}
}

func TestSetDataLenRejectsInvalidLengths(t *testing.T) {
	f := New(WithFlags(NewFlags(WithKind(canbus.CanFd))))
	if err := f.SetDataLen(9); err == nil {
		t.Error("SetDataLen(9) should fail: 9 is not a valid CAN FD data length")
	}
	if err := f.SetDataLen(20); err != nil {
		t.Errorf("SetDataLen(20) should succeed on CAN FD: %v", err)
	}

	fc := New(WithFlags(NewFlags(WithKind(canbus.Can20))))
	if err := fc.SetDataLen(8); err != nil {
		t.Errorf("SetDataLen(8) should succeed on classical CAN: %v", err)
	}
	if err := fc.SetDataLen(12); err == nil {
		t.Error("SetDataLen(12) should fail on classical CAN")
	}
}

func TestRandomizeClassicalDlcBound(t *testing.T) {
	rng := canrand.New(7)
	for i := 0; i < 100; i++ {
		f := New(WithFlags(NewFlags(WithKind(canbus.Can20))))
		f.Randomize(rng)
		if f.Dlc > 8 {
			t.Fatalf("classical CAN dlc should never exceed 8, got %d", f.Dlc)
		}
	}
}

func TestRandomizeFdDlcUnrestricted(t *testing.T) {
	rng := canrand.New(7)
	seenAbove8 := false
	for i := 0; i < 200; i++ {
		f := New(WithFlags(NewFlags(WithKind(canbus.CanFd))))
		f.Randomize(rng)
		if f.Dlc > 8 {
			seenAbove8 = true
		}
	}
	if !seenAbove8 {
		t.Fatal("expected at least one CAN FD dlc above 8 across 200 draws")
	}
}
