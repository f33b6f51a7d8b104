package cpu

import "strings"

// Register describes one named machine register.
type Register struct {
	// Name is the lowercase mnemonic, e.g. "ax" or "cs".
	Name string
	// Index is the 3-bit encoding index used in ModR/M and opcode+reg forms.
	Index byte
	// Size is the register width in bytes: 1, 2, 4, or 10 for x87 stack slots.
	Size int
	// Segment marks the six segment registers.
	Segment bool
	// X87 marks the floating-point stack registers st0-st7.
	X87 bool
}

// IsWord reports whether the register is a 16-bit general-purpose register.
func (r Register) IsWord() bool { return r.Size == 2 && !r.Segment }

// IsByte reports whether the register is an 8-bit general-purpose register.
func (r Register) IsByte() bool { return r.Size == 1 }

// IsDword reports whether the register is a 32-bit general-purpose register.
func (r Register) IsDword() bool { return r.Size == 4 }

// registers is the fixed set known at startup.
var registers = map[string]Register{
	// 8-bit
	"al": {Name: "al", Index: 0, Size: 1},
	"cl": {Name: "cl", Index: 1, Size: 1},
	"dl": {Name: "dl", Index: 2, Size: 1},
	"bl": {Name: "bl", Index: 3, Size: 1},
	"ah": {Name: "ah", Index: 4, Size: 1},
	"ch": {Name: "ch", Index: 5, Size: 1},
	"dh": {Name: "dh", Index: 6, Size: 1},
	"bh": {Name: "bh", Index: 7, Size: 1},

	// 16-bit
	"ax": {Name: "ax", Index: 0, Size: 2},
	"cx": {Name: "cx", Index: 1, Size: 2},
	"dx": {Name: "dx", Index: 2, Size: 2},
	"bx": {Name: "bx", Index: 3, Size: 2},
	"sp": {Name: "sp", Index: 4, Size: 2},
	"bp": {Name: "bp", Index: 5, Size: 2},
	"si": {Name: "si", Index: 6, Size: 2},
	"di": {Name: "di", Index: 7, Size: 2},

	// 32-bit
	"eax": {Name: "eax", Index: 0, Size: 4},
	"ecx": {Name: "ecx", Index: 1, Size: 4},
	"edx": {Name: "edx", Index: 2, Size: 4},
	"ebx": {Name: "ebx", Index: 3, Size: 4},
	"esp": {Name: "esp", Index: 4, Size: 4},
	"ebp": {Name: "ebp", Index: 5, Size: 4},
	"esi": {Name: "esi", Index: 6, Size: 4},
	"edi": {Name: "edi", Index: 7, Size: 4},

	// Segment registers
	"es": {Name: "es", Index: 0, Size: 2, Segment: true},
	"cs": {Name: "cs", Index: 1, Size: 2, Segment: true},
	"ss": {Name: "ss", Index: 2, Size: 2, Segment: true},
	"ds": {Name: "ds", Index: 3, Size: 2, Segment: true},
	"fs": {Name: "fs", Index: 4, Size: 2, Segment: true},
	"gs": {Name: "gs", Index: 5, Size: 2, Segment: true},

	// x87 stack
	"st0": {Name: "st0", Index: 0, Size: 10, X87: true},
	"st1": {Name: "st1", Index: 1, Size: 10, X87: true},
	"st2": {Name: "st2", Index: 2, Size: 10, X87: true},
	"st3": {Name: "st3", Index: 3, Size: 10, X87: true},
	"st4": {Name: "st4", Index: 4, Size: 10, X87: true},
	"st5": {Name: "st5", Index: 5, Size: 10, X87: true},
	"st6": {Name: "st6", Index: 6, Size: 10, X87: true},
	"st7": {Name: "st7", Index: 7, Size: 10, X87: true},
}

// LookupRegister finds a register descriptor by mnemonic, case-insensitively.
func LookupRegister(name string) (Register, bool) {
	r, ok := registers[strings.ToLower(name)]
	return r, ok
}

// IsRegister reports whether the name denotes a known register.
func IsRegister(name string) bool {
	_, ok := registers[strings.ToLower(name)]
	return ok
}

// GPR16Names lists the 16-bit general-purpose registers in encoding order.
var GPR16Names = []string{"ax", "cx", "dx", "bx", "sp", "bp", "si", "di"}

// GPR8Names lists the 8-bit registers in encoding order.
var GPR8Names = []string{"al", "cl", "dl", "bl", "ah", "ch", "dh", "bh"}

// GPR32Names lists the 32-bit general-purpose registers in encoding order.
var GPR32Names = []string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}
