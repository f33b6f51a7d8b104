package assembler

import (
	"fmt"

	"github.com/Urethramancer/x86/cpu"
)

// conditionCodes maps Jcc suffixes to the 4-bit tttn condition field.
var conditionCodes = map[string]byte{
	"o": 0x0, "no": 0x1,
	"b": 0x2, "c": 0x2, "nae": 0x2,
	"ae": 0x3, "nb": 0x3, "nc": 0x3,
	"e": 0x4, "z": 0x4,
	"ne": 0x5, "nz": 0x5,
	"be": 0x6, "na": 0x6,
	"a": 0x7, "nbe": 0x7,
	"s": 0x8, "ns": 0x9,
	"p": 0xA, "pe": 0xA,
	"np": 0xB, "po": 0xB,
	"l": 0xC, "nge": 0xC,
	"ge": 0xD, "nl": 0xD,
	"le": 0xE, "ng": 0xE,
	"g": 0xF, "nle": 0xF,
}

// Control flow: jumps, calls, returns, software interrupts.
//
// The short relative forms are registered before the near ones so the
// shrinking pass collapses a jump as soon as its target is in range.
func init() {
	add("jmp", -1, "eb r0", rel8)
	add("jmp", -1, "e9 r0 r1", rel16)
	add("jmp", -1, "ea o0 o1 s0 s1", segMem)
	add("jmp", 0, "ff /4 d0 d1 d2 d3", nearPtr)
	add("jmp", 0, "ff /5 d0 d1 d2 d3", farPtr)

	add("call", -1, "e8 r0 r1", rel16)
	add("call", -1, "9a o0 o1 s0 s1", segMem)
	add("call", 0, "ff /2 d0 d1 d2 d3", nearPtr)
	add("call", 0, "ff /3 d0 d1 d2 d3", farPtr)

	add("ret", -1, "c3")
	add("ret", -1, "c2 i0 i1", imm16)
	add("retn", -1, "c3")
	add("retn", -1, "c2 i0 i1", imm16)
	add("retf", -1, "cb")
	add("retf", -1, "ca i0 i1", imm16)
	add("iret", -1, "cf")

	for cond, cc := range conditionCodes {
		add("j"+cond, -1, fmt.Sprintf("%02x r0", 0x70+cc), rel8)
		addCPU("j"+cond, cpu.I386, -1, fmt.Sprintf("0f %02x r0 r1", 0x80+cc), rel16)
	}

	add("jcxz", -1, "e3 r0", rel8)
	add("loop", -1, "e2 r0", rel8)
	add("loope", -1, "e1 r0", rel8)
	add("loopz", -1, "e1 r0", rel8)
	add("loopne", -1, "e0 r0", rel8)
	add("loopnz", -1, "e0 r0", rel8)

	add("int", -1, "cd i0", imm8)
	add("int3", -1, "cc")
	add("into", -1, "ce")
}
