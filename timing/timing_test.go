package timing

import "testing"

func TestBitLen(t *testing.T) {
	bt := BitTiming{Brp: 4, Prop: 2, Ph1: 3, Ph2: 4, Sjw: 2}
	if got, want := bt.BitLenTQ(), 1+2+3+4; got != want {
		t.Errorf("BitLenTQ() = %d, want %d", got, want)
	}
	if got, want := bt.BitLenCycles(), 4*(1+2+3+4); got != want {
		t.Errorf("BitLenCycles() = %d, want %d", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		bt      BitTiming
		wantErr bool
	}{
		{BitTiming{Brp: 1, Ph2: 1}, false},
		{BitTiming{Brp: 0, Ph2: 1}, true},
		{BitTiming{Brp: 1, Ph2: 0}, true},
		{BitTiming{Brp: 1, Ph2: 1, Sjw: 2}, true},
		{BitTiming{Brp: 1, Ph2: 2, Sjw: 2}, false},
	}
	for _, test := range tests {
		err := test.bt.Validate()
		if (err != nil) != test.wantErr {
			t.Errorf("%+v.Validate() = %v, wantErr %v", test.bt, err, test.wantErr)
		}
	}
}
