package assembler

// BCD adjustment instructions.
func init() {
	add("aaa", -1, "37")
	add("aas", -1, "3f")
	add("aam", -1, "D4 0a")
	add("aam", -1, "D4 i0", imm8)
	add("aad", -1, "D5 0a")
	add("aad", -1, "D5 i0", imm8)
	add("daa", -1, "27")
	add("das", -1, "2f")
}
