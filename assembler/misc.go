package assembler

import "github.com/Urethramancer/x86/cpu"

// Flag, convert and no-operand instructions.
func init() {
	add("nop", -1, "90")
	add("hlt", -1, "f4")
	add("wait", -1, "9b")
	add("fwait", -1, "9b")

	add("clc", -1, "f8")
	add("stc", -1, "f9")
	add("cmc", -1, "f5")
	add("cli", -1, "fa")
	add("sti", -1, "fb")
	add("cld", -1, "fc")
	add("std", -1, "fd")
	add("sahf", -1, "9e")
	add("lahf", -1, "9f")

	add("cbw", -1, "98")
	add("cwd", -1, "99")

	addCPU("cpuid", cpu.I486, -1, "0f a2")
}
