package assembler

// String primitives and port I/O. The rep/repe/repne prefixes attach to
// these through the instruction-prefix list, not through schemas.
func init() {
	add("movsb", -1, "a4")
	add("movsw", -1, "a5")
	add("cmpsb", -1, "a6")
	add("cmpsw", -1, "a7")
	add("stosb", -1, "aa")
	add("stosw", -1, "ab")
	add("lodsb", -1, "ac")
	add("lodsw", -1, "ad")
	add("scasb", -1, "ae")
	add("scasw", -1, "af")
	add("xlatb", -1, "D7")

	add("in", -1, "e4 i0", reg("al"), imm8)
	add("in", -1, "e5 i0", reg("ax"), imm8)
	add("in", -1, "ec", reg("al"), reg("dx"))
	add("in", -1, "ed", reg("ax"), reg("dx"))
	add("out", -1, "e6 i0", imm8, reg("al"))
	add("out", -1, "e7 i0", imm8, reg("ax"))
	add("out", -1, "ee", reg("dx"), reg("al"))
	add("out", -1, "ef", reg("dx"), reg("ax"))
}
