package cpu

import "testing"

func TestLookupRegister(t *testing.T) {
	tests := []struct {
		name    string
		index   byte
		size    int
		segment bool
		x87     bool
	}{
		{"al", 0, 1, false, false},
		{"AH", 4, 1, false, false},
		{"ax", 0, 2, false, false},
		{"di", 7, 2, false, false},
		{"eax", 0, 4, false, false},
		{"cs", 1, 2, true, false},
		{"gs", 5, 2, true, false},
		{"st0", 0, 10, false, true},
		{"st7", 7, 10, false, true},
	}
	for _, tc := range tests {
		r, ok := LookupRegister(tc.name)
		if !ok {
			t.Fatalf("%s: not found", tc.name)
		}
		if r.Index != tc.index || r.Size != tc.size || r.Segment != tc.segment || r.X87 != tc.x87 {
			t.Errorf("%s: got %+v", tc.name, r)
		}
	}

	if _, ok := LookupRegister("xyz"); ok {
		t.Error("xyz should not resolve")
	}
}

// The name tables list registers in encoding order.
func TestRegisterNameOrder(t *testing.T) {
	for _, names := range [][]string{GPR8Names, GPR16Names, GPR32Names} {
		for i, name := range names {
			r, ok := LookupRegister(name)
			if !ok {
				t.Fatalf("%s: not found", name)
			}
			if int(r.Index) != i {
				t.Errorf("%s: index %d at position %d", name, r.Index, i)
			}
		}
	}
}

// Every row of the 16-bit addressing table, including the [bp] hole and
// the swapped-pair retry.
func TestModRM16(t *testing.T) {
	tests := []struct {
		base, index string
		dispSize    int
		mod, rm     byte
		ok          bool
	}{
		{"bx", "si", 0, 0, 0, true},
		{"bx", "di", 0, 0, 1, true},
		{"bp", "si", 0, 0, 2, true},
		{"bp", "di", 0, 0, 3, true},
		{"si", "", 0, 0, 4, true},
		{"di", "", 0, 0, 5, true},
		{"bx", "", 0, 0, 7, true},
		{"bp", "", 0, 0, 0, false}, // [bp] needs a disp8 of zero
		{"bp", "", 1, 1, 6, true},
		{"bp", "", 2, 2, 6, true},
		{"", "", 2, 0, 6, true}, // pure [disp16]
		{"", "", 0, 0, 0, false},
		{"si", "bx", 0, 0, 0, true}, // swapped pair
		{"di", "bp", 1, 1, 3, true},
		{"bx", "si", 1, 1, 0, true},
		{"bx", "si", 2, 2, 0, true},
		{"cx", "", 0, 0, 0, false},
		{"ax", "dx", 0, 0, 0, false},
	}
	for _, tc := range tests {
		mod, rm, ok := ModRM16(tc.base, tc.index, tc.dispSize)
		if ok != tc.ok || mod != tc.mod || rm != tc.rm {
			t.Errorf("ModRM16(%q, %q, %d) = (%d, %d, %v), want (%d, %d, %v)",
				tc.base, tc.index, tc.dispSize, mod, rm, ok, tc.mod, tc.rm, tc.ok)
		}
	}
}

func TestModRM32(t *testing.T) {
	tests := []struct {
		base     string
		dispSize int
		mod, rm  byte
		ok       bool
	}{
		{"eax", 0, 0, 0, true},
		{"ebx", 1, 1, 3, true},
		{"edi", 4, 2, 7, true},
		{"ebp", 0, 0, 0, false}, // [ebp] needs a disp8
		{"ebp", 1, 1, 5, true},
		{"esp", 0, 0, 0, false}, // esp goes through SIB
		{"", 4, 0, 5, true},     // pure [disp32]
		{"bx", 0, 0, 0, false},
	}
	for _, tc := range tests {
		mod, rm, ok := ModRM32(tc.base, tc.dispSize)
		if ok != tc.ok || mod != tc.mod || rm != tc.rm {
			t.Errorf("ModRM32(%q, %d) = (%d, %d, %v), want (%d, %d, %v)",
				tc.base, tc.dispSize, mod, rm, ok, tc.mod, tc.rm, tc.ok)
		}
	}
}

func TestSIB(t *testing.T) {
	tests := []struct {
		scale       int
		index, base string
		sib         byte
		ok          bool
	}{
		{1, "", "esp", 0x24, true},
		{2, "esi", "ebx", 0x73, true},
		{4, "ecx", "", 0x8D, true},
		{8, "edi", "eax", 0xF8, true},
		{3, "eax", "ebx", 0, false},
		{1, "esp", "ebx", 0, false}, // esp cannot index
	}
	for _, tc := range tests {
		sib, ok := SIB(tc.scale, tc.index, tc.base)
		if ok != tc.ok || sib != tc.sib {
			t.Errorf("SIB(%d, %q, %q) = (%#02x, %v), want (%#02x, %v)",
				tc.scale, tc.index, tc.base, sib, ok, tc.sib, tc.ok)
		}
	}
}

func TestSignHelpers(t *testing.T) {
	if SignExtend(0xFF, 1) != -1 {
		t.Error("SignExtend(0xFF, 1) should be -1")
	}
	if SignExtend(0x7F, 1) != 127 {
		t.Error("SignExtend(0x7F, 1) should be 127")
	}
	if SignExtend(0x8000, 2) != -32768 {
		t.Error("SignExtend(0x8000, 2) should be -32768")
	}
	if !FitsSigned(-128, 1) || FitsSigned(-129, 1) || !FitsSigned(127, 1) || FitsSigned(128, 1) {
		t.Error("FitsSigned byte boundaries wrong")
	}
	if !FitsUnsigned(255, 1) || FitsUnsigned(256, 1) || FitsUnsigned(-1, 1) {
		t.Error("FitsUnsigned byte boundaries wrong")
	}
}

func TestAppendLE(t *testing.T) {
	b := AppendLE(nil, 0x11223344, 4)
	want := []byte{0x44, 0x33, 0x22, 0x11}
	for i := range want {
		if b[i] != want[i] {
			t.Fatalf("AppendLE = % X, want % X", b, want)
		}
	}
	if got := Uint16LE([]byte{0x34, 0x12}); got != 0x1234 {
		t.Errorf("Uint16LE = %#x", got)
	}
	if got := Uint32LE([]byte{0x44, 0x33, 0x22, 0x11}); got != 0x11223344 {
		t.Errorf("Uint32LE = %#x", got)
	}
}

func TestDefaultSegment(t *testing.T) {
	if DefaultSegment("bp") != "ss" || DefaultSegment("ebp") != "ss" || DefaultSegment("esp") != "ss" {
		t.Error("stack bases should default to ss")
	}
	if DefaultSegment("bx") != "ds" || DefaultSegment("") != "ds" {
		t.Error("other bases should default to ds")
	}
}
