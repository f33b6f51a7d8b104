package assembler

import "github.com/Urethramancer/x86/cpu"

// Stack operations: push, pop and the flag/image forms.
func init() {
	add("push", -1, "50+r", r16)
	add("push", -1, "06", reg("es"))
	add("push", -1, "0e", reg("cs"))
	add("push", -1, "16", reg("ss"))
	add("push", -1, "1e", reg("ds"))
	addCPU("push", cpu.I386, -1, "0f a0", reg("fs"))
	addCPU("push", cpu.I386, -1, "0f a8", reg("gs"))
	addCPU("push", cpu.I186, -1, "6a i0", imm8s)
	addCPU("push", cpu.I186, -1, "68 i0 i1", imm16)
	add("push", 0, "ff /6 d0 d1 d2 d3", rm16)

	add("pop", -1, "58+r", r16)
	add("pop", -1, "07", reg("es"))
	add("pop", -1, "17", reg("ss"))
	add("pop", -1, "1f", reg("ds"))
	addCPU("pop", cpu.I386, -1, "0f a1", reg("fs"))
	addCPU("pop", cpu.I386, -1, "0f a9", reg("gs"))
	add("pop", 0, "8f /0 d0 d1 d2 d3", rm16)

	addCPU("pusha", cpu.I186, -1, "60")
	addCPU("popa", cpu.I186, -1, "61")
	add("pushf", -1, "9c")
	add("popf", -1, "9d")
}
