package assembler

import (
	"fmt"

	"github.com/Urethramancer/x86/cpu"
)

// aluOps is the two-operand arithmetic/logic group. Each member shares one
// encoding pattern: a base opcode block of eight and a /digit for the
// immediate forms.
var aluOps = []struct {
	name  string
	base  byte
	digit int
}{
	{"add", 0x00, 0},
	{"or", 0x08, 1},
	{"adc", 0x10, 2},
	{"sbb", 0x18, 3},
	{"and", 0x20, 4},
	{"sub", 0x28, 5},
	{"xor", 0x30, 6},
	{"cmp", 0x38, 7},
}

func init() {
	for _, op := range aluOps {
		d := op.digit
		// Register and memory forms.
		add(op.name, 0, fmt.Sprintf("%02x mr d0 d1 d2 d3", op.base), rm8, r8)
		add(op.name, 0, fmt.Sprintf("%02x mr d0 d1 d2 d3", op.base+1), rm16, r16)
		addCPU(op.name, cpu.I386, 0, fmt.Sprintf("%02x mr d0 d1 d2 d3", op.base+1), rm32, r32)
		add(op.name, 1, fmt.Sprintf("%02x mr d0 d1 d2 d3", op.base+2), r8, rm8)
		add(op.name, 1, fmt.Sprintf("%02x mr d0 d1 d2 d3", op.base+3), r16, rm16)
		addCPU(op.name, cpu.I386, 1, fmt.Sprintf("%02x mr d0 d1 d2 d3", op.base+3), r32, rm32)

		// The sign-extended byte form wins whenever the immediate fits.
		add(op.name, 0, fmt.Sprintf("83 /%d d0 d1 d2 d3 i0", d), rm16, imm8s)
		addCPU(op.name, cpu.I386, 0, fmt.Sprintf("83 /%d d0 d1 d2 d3 i0", d), rm32, imm8s)

		// Accumulator shorthands.
		add(op.name, -1, fmt.Sprintf("%02x i0", op.base+4), reg("al"), imm8)
		add(op.name, -1, fmt.Sprintf("%02x i0 i1", op.base+5), reg("ax"), imm16)
		addCPU(op.name, cpu.I386, -1, fmt.Sprintf("%02x i0 i1 i2 i3", op.base+5), reg("eax"), imm32)

		// Full-width immediate forms.
		add(op.name, 0, fmt.Sprintf("80 /%d d0 d1 d2 d3 i0", d), rm8, imm8)
		add(op.name, 0, fmt.Sprintf("81 /%d d0 d1 d2 d3 i0 i1", d), rm16, imm16)
		addCPU(op.name, cpu.I386, 0, fmt.Sprintf("81 /%d d0 d1 d2 d3 i0 i1 i2 i3", d), rm32, imm32)
	}

	add("test", 0, "84 mr d0 d1 d2 d3", rm8, r8)
	add("test", 0, "85 mr d0 d1 d2 d3", rm16, r16)
	add("test", -1, "a8 i0", reg("al"), imm8)
	add("test", -1, "a9 i0 i1", reg("ax"), imm16)
	add("test", 0, "f6 /0 d0 d1 d2 d3 i0", rm8, imm8)
	add("test", 0, "f7 /0 d0 d1 d2 d3 i0 i1", rm16, imm16)

	add("inc", -1, "40+r", r16)
	add("inc", 0, "fe /0 d0 d1 d2 d3", rm8)
	add("inc", 0, "ff /0 d0 d1 d2 d3", rm16)
	add("dec", -1, "48+r", r16)
	add("dec", 0, "fe /1 d0 d1 d2 d3", rm8)
	add("dec", 0, "ff /1 d0 d1 d2 d3", rm16)

	add("not", 0, "f6 /2 d0 d1 d2 d3", rm8)
	add("not", 0, "f7 /2 d0 d1 d2 d3", rm16)
	add("neg", 0, "f6 /3 d0 d1 d2 d3", rm8)
	add("neg", 0, "f7 /3 d0 d1 d2 d3", rm16)

	add("mul", 0, "f6 /4 d0 d1 d2 d3", rm8)
	add("mul", 0, "f7 /4 d0 d1 d2 d3", rm16)
	add("imul", 0, "f6 /5 d0 d1 d2 d3", rm8)
	add("imul", 0, "f7 /5 d0 d1 d2 d3", rm16)
	addCPU("imul", cpu.I186, 1, "6b mr d0 d1 d2 d3 i0", r16, rm16, imm8s)
	addCPU("imul", cpu.I186, 1, "69 mr d0 d1 d2 d3 i0 i1", r16, rm16, imm16)
	addCPU("imul", cpu.I386, 1, "0f af mr d0 d1 d2 d3", r16, rm16)
	add("div", 0, "f6 /6 d0 d1 d2 d3", rm8)
	add("div", 0, "f7 /6 d0 d1 d2 d3", rm16)
	add("idiv", 0, "f6 /7 d0 d1 d2 d3", rm8)
	add("idiv", 0, "f7 /7 d0 d1 d2 d3", rm16)
}
