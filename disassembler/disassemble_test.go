package disassembler_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/arch/x86/x86asm"

	"github.com/Urethramancer/x86/assembler"
	"github.com/Urethramancer/x86/disassembler"
)

// Round trip: bytes produced by the assembler must decode back to the same
// operations.
func TestRoundTrip(t *testing.T) {
	src := `mov ax, 0x1234
add ax, bx
xor cx, cx
push ax
pop bx
int 0x10
hlt`
	wantOps := []x86asm.Op{
		x86asm.MOV, x86asm.ADD, x86asm.XOR,
		x86asm.PUSH, x86asm.POP, x86asm.INT, x86asm.HLT,
	}

	asm := assembler.New()
	res, err := asm.Assemble(src)
	require.NoError(t, err)

	pc := 0
	for _, want := range wantOps {
		inst, derr := x86asm.Decode(res.Image[pc:], 16)
		require.NoError(t, derr, "at offset %d", pc)
		require.Equal(t, want, inst.Op, "at offset %d", pc)
		pc += inst.Len
	}
	require.Equal(t, len(res.Image), pc, "decoder consumed the whole image")
}

func TestDisassembleLines(t *testing.T) {
	asm := assembler.New()
	res, err := asm.Assemble("[org 0x7C00]\nstart: jmp start")
	require.NoError(t, err)

	lines, err := disassembler.Disassemble(res.Image, 16, res.Origin)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, uint32(0x7C00), lines[0].Addr)
	require.Equal(t, []byte{0xEB, 0xFE}, lines[0].Bytes)
	require.Contains(t, lines[0].Text, "jmp")
}

func TestDisassembleResyncsOnData(t *testing.T) {
	// A lone prefix byte at the end of the image cannot decode; the
	// listing falls back to a db line instead of failing.
	lines, err := disassembler.Disassemble([]byte{0x90, 0x66}, 16, 0)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Contains(t, lines[1].Text, "db")
}

func TestDisassembleRejectsBadMode(t *testing.T) {
	_, err := disassembler.Disassemble([]byte{0x90}, 64, 0)
	require.Error(t, err)
}
