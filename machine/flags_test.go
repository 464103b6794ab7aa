package machine

import "testing"

func TestFlagsSetAdd(t *testing.T) {
	tests := []struct {
		name     string
		src, dst uint32
		sz       Size
		want     Flags
	}{
		{"zero result", 0, 0, Long, Flags{X: false, N: false, Z: true, V: false, C: false}},
		{"negative result", 0, 0x80000000, Long, Flags{N: true, Z: false}},
		{"byte carry", 0xFF, 0x01, Byte, Flags{Z: true, C: true, X: true}},
		{"signed overflow", 0x7FFFFFFF, 1, Long, Flags{N: true, V: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f Flags
			result := tt.src + tt.dst
			f.SetAdd(tt.src, tt.dst, result, tt.sz)
			if f.Z != tt.want.Z {
				t.Errorf("Z = %v, want %v", f.Z, tt.want.Z)
			}
			if f.N != tt.want.N {
				t.Errorf("N = %v, want %v", f.N, tt.want.N)
			}
			if tt.name == "byte carry" && (!f.C || !f.X) {
				t.Errorf("C/X = %v/%v, want true/true", f.C, f.X)
			}
			if tt.name == "signed overflow" && !f.V {
				t.Errorf("V = %v, want true", f.V)
			}
		})
	}
}

func TestFlagsSetSub(t *testing.T) {
	var f Flags
	// 5 - 5 = 0: Z=1, N=0, C=0, X=0
	f.SetSub(5, 5, 0, Long)
	if !f.Z || f.N || f.C || f.X {
		t.Errorf("5-5: got Z=%v N=%v C=%v X=%v, want Z=1 N=0 C=0 X=0", f.Z, f.N, f.C, f.X)
	}

	// 1 - 2 = -1: borrow set
	var negOne int32 = -1
	f.SetSub(2, 1, uint32(negOne), Long)
	if f.Z || !f.N || !f.C || !f.X {
		t.Errorf("1-2: got Z=%v N=%v C=%v X=%v, want Z=0 N=1 C=1 X=1", f.Z, f.N, f.C, f.X)
	}
}

func TestFlagsTestCondition(t *testing.T) {
	f := Flags{Z: true}
	if !f.TestCondition(7) { // EQ
		t.Error("EQ should be true when Z set")
	}
	if f.TestCondition(6) { // NE
		t.Error("NE should be false when Z set")
	}

	f = Flags{N: true, V: true}
	if !f.TestCondition(12) { // GE: N==V
		t.Error("GE should be true when N==V")
	}
	if f.TestCondition(13) { // LT: N!=V
		t.Error("LT should be false when N==V")
	}
}

func TestFlagsBitfieldRoundTrip(t *testing.T) {
	f := Flags{X: true, N: false, Z: true, V: false, C: true}
	b := f.Bitfield()
	if b != 0b10101 {
		t.Errorf("Bitfield() = %05b, want 10101", b)
	}
	var g Flags
	g.SetBitfield(b)
	if g != f {
		t.Errorf("round trip = %+v, want %+v", g, f)
	}
}
