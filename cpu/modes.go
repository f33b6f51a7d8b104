package cpu

// ModR/M field synthesis for both addressing generations.
//
// The mod field selects the displacement width, the rm field selects the
// base/index combination. Register-direct operands use mod=11 with the
// register index in rm; that case is handled by the encoder, not here.

// rm16 maps a base+index register pair to the 3-bit rm value of the 16-bit
// addressing table.
var rm16 = map[[2]string]byte{
	{"bx", "si"}: 0,
	{"bx", "di"}: 1,
	{"bp", "si"}: 2,
	{"bp", "di"}: 3,
	{"si", ""}:   4,
	{"di", ""}:   5,
	{"bp", ""}:   6,
	{"bx", ""}:   7,
}

// ModRM16 looks up (mod, rm) for a 16-bit memory operand. base and index are
// lowercase register names or empty strings. dispSize is 0, 1 or 2 bytes.
//
// The pure-displacement form [disp16] is mod=00 rm=6 and requires dispSize 2.
// [bp] with no displacement is not encodable; callers widen it to a zero
// disp8 before asking.
func ModRM16(base, index string, dispSize int) (mod, rm byte, ok bool) {
	if base == "" && index == "" {
		if dispSize != 2 {
			return 0, 0, false
		}
		return 0, 6, true
	}

	r, found := rm16[[2]string{base, index}]
	if !found {
		// Retry with the pair swapped: [si+bx] means [bx+si].
		r, found = rm16[[2]string{index, base}]
		if !found {
			return 0, 0, false
		}
	}

	switch dispSize {
	case 0:
		if r == 6 {
			// mod=00 rm=6 means [disp16], not [bp].
			return 0, 0, false
		}
		return 0, r, true
	case 1:
		return 1, r, true
	case 2:
		return 2, r, true
	}
	return 0, 0, false
}

// ModRM32 looks up (mod, rm) for a 32-bit memory operand without a SIB byte.
// dispSize is 0, 1 or 4 bytes.
//
// Forms that need a SIB byte (any index register, or esp as base) return
// ok=false; callers fall through to SIB.
func ModRM32(base string, dispSize int) (mod, rm byte, ok bool) {
	if base == "" {
		// Pure [disp32] is mod=00 rm=5.
		if dispSize != 4 {
			return 0, 0, false
		}
		return 0, 5, true
	}
	reg, found := LookupRegister(base)
	if !found || reg.Size != 4 {
		return 0, 0, false
	}
	if reg.Index == 4 {
		// esp always goes through SIB.
		return 0, 0, false
	}
	switch dispSize {
	case 0:
		if reg.Index == 5 {
			// [ebp] without displacement conflicts with [disp32].
			return 0, 0, false
		}
		return 0, reg.Index, true
	case 1:
		return 1, reg.Index, true
	case 4:
		return 2, reg.Index, true
	}
	return 0, 0, false
}

// SIB assembles a scale-index-base byte. scale must be 1, 2, 4 or 8; index
// must not be esp; an absent index encodes as 100.
func SIB(scale int, index, base string) (sib byte, ok bool) {
	var s byte
	switch scale {
	case 1:
		s = 0
	case 2:
		s = 1
	case 4:
		s = 2
	case 8:
		s = 3
	default:
		return 0, false
	}

	idx := byte(4) // none
	if index != "" {
		reg, found := LookupRegister(index)
		if !found || reg.Size != 4 || reg.Index == 4 {
			return 0, false
		}
		idx = reg.Index
	}

	b := byte(5) // none; only valid with mod=00 and disp32
	if base != "" {
		reg, found := LookupRegister(base)
		if !found || reg.Size != 4 {
			return 0, false
		}
		b = reg.Index
	}

	return s<<6 | idx<<3 | b, true
}

// ModRM packs the three ModR/M fields into one byte.
func ModRM(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | (rm & 7)
}
