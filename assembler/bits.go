package assembler

import (
	"fmt"

	"github.com/Urethramancer/x86/cpu"
)

// shiftOps is the rotate/shift group sharing the D0-D3/C0-C1 opcodes with
// a /digit selector.
var shiftOps = []struct {
	name  string
	digit int
}{
	{"rol", 0},
	{"ror", 1},
	{"rcl", 2},
	{"rcr", 3},
	{"shl", 4},
	{"sal", 4},
	{"shr", 5},
	{"sar", 7},
}

func init() {
	for _, op := range shiftOps {
		d := op.digit
		add(op.name, 0, fmt.Sprintf("D0 /%d d0 d1 d2 d3", d), rm8, const1)
		add(op.name, 0, fmt.Sprintf("D1 /%d d0 d1 d2 d3", d), rm16, const1)
		add(op.name, 0, fmt.Sprintf("D2 /%d d0 d1 d2 d3", d), rm8, reg("cl"))
		add(op.name, 0, fmt.Sprintf("D3 /%d d0 d1 d2 d3", d), rm16, reg("cl"))
		addCPU(op.name, cpu.I186, 0, fmt.Sprintf("c0 /%d d0 d1 d2 d3 i0", d), rm8, imm8)
		addCPU(op.name, cpu.I186, 0, fmt.Sprintf("c1 /%d d0 d1 d2 d3 i0", d), rm16, imm8)
	}
}
