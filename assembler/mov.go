package assembler

import "github.com/Urethramancer/x86/cpu"

// Data movement: mov, xchg, lea, les, lds.
//
// The accumulator moffs forms come first; they are the shortest encodings
// when the memory operand is a bare absolute offset.
func init() {
	add("mov", -1, "a0 d0 d1 d2 d3", reg("al"), moffs).Moffset = true
	add("mov", -1, "a1 d0 d1 d2 d3", reg("ax"), moffs).Moffset = true
	add("mov", -1, "a2 d0 d1 d2 d3", moffs, reg("al")).Moffset = true
	add("mov", -1, "a3 d0 d1 d2 d3", moffs, reg("ax")).Moffset = true

	add("mov", 0, "88 mr d0 d1 d2 d3", rm8, r8)
	add("mov", 0, "89 mr d0 d1 d2 d3", rm16, r16)
	addCPU("mov", cpu.I386, 0, "89 mr d0 d1 d2 d3", rm32, r32)
	add("mov", 1, "8a mr d0 d1 d2 d3", r8, rm8)
	add("mov", 1, "8b mr d0 d1 d2 d3", r16, rm16)
	addCPU("mov", cpu.I386, 1, "8b mr d0 d1 d2 d3", r32, rm32)
	add("mov", 0, "8c mr d0 d1 d2 d3", rm16, sr)
	add("mov", 1, "8e mr d0 d1 d2 d3", sr, rm16)

	add("mov", -1, "b0+r i0", r8, imm8)
	add("mov", -1, "b8+r i0 i1", r16, imm16)
	addCPU("mov", cpu.I386, -1, "b8+r i0 i1 i2 i3", r32, imm32)

	add("mov", 0, "c6 /0 d0 d1 d2 d3 i0", rm8, imm8)
	add("mov", 0, "c7 /0 d0 d1 d2 d3 i0 i1", rm16, imm16)
	addCPU("mov", cpu.I386, 0, "c7 /0 d0 d1 d2 d3 i0 i1 i2 i3", rm32, imm32)

	add("xchg", -1, "90+r", reg("ax"), r16)
	add("xchg", -1, "90+r", r16, reg("ax"))
	add("xchg", 0, "86 mr d0 d1 d2 d3", rm8, r8)
	add("xchg", 1, "86 mr d0 d1 d2 d3", r8, rm8)
	add("xchg", 0, "87 mr d0 d1 d2 d3", rm16, r16)
	add("xchg", 1, "87 mr d0 d1 d2 d3", r16, rm16)

	add("lea", 1, "8d mr d0 d1 d2 d3", r16, memAny)
	add("les", 1, "c4 mr d0 d1 d2 d3", r16, memAny)
	add("lds", 1, "c5 mr d0 d1 d2 d3", r16, memAny)
}
