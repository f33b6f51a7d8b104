package assembler

// x87 floating-point subset: stack-register forms use the opcode+i atom,
// memory forms the usual /digit encoding.
func init() {
	add("fld", -1, "D9 c0+i", sti)
	add("fld", 0, "D9 /0 d0 d1 d2 d3", m32)
	add("fst", -1, "DD D0+i", sti)
	add("fst", 0, "D9 /2 d0 d1 d2 d3", m32)
	add("fstp", -1, "DD D8+i", sti)
	add("fstp", 0, "D9 /3 d0 d1 d2 d3", m32)
	add("fxch", -1, "D9 c8+i", sti)

	add("fild", 0, "df /0 d0 d1 d2 d3", m16)
	add("fistp", 0, "df /3 d0 d1 d2 d3", m16)

	add("fadd", -1, "D8 c0+i", reg("st0"), sti)
	add("fadd", -1, "dc c0+i", sti, reg("st0"))
	add("fadd", 0, "D8 /0 d0 d1 d2 d3", m32)
	add("fmul", -1, "D8 c8+i", reg("st0"), sti)
	add("fmul", -1, "dc c8+i", sti, reg("st0"))
	add("fmul", 0, "D8 /1 d0 d1 d2 d3", m32)
	add("fsub", -1, "D8 e0+i", reg("st0"), sti)
	add("fsub", 0, "D8 /4 d0 d1 d2 d3", m32)
	add("fdiv", -1, "D8 f0+i", reg("st0"), sti)
	add("fdiv", 0, "D8 /6 d0 d1 d2 d3", m32)

	add("finit", -1, "9b db e3")
	add("fninit", -1, "db e3")
}
