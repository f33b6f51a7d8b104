package disassembler

import (
	"fmt"
	"strings"

	"golang.org/x/arch/x86/x86asm"
)

// Line is one decoded instruction or data byte of a flat image.
type Line struct {
	// Addr is the absolute (origin-relative) address of the first byte.
	Addr uint32
	// Bytes is the raw encoding.
	Bytes []byte
	// Text is the Intel-syntax rendering.
	Text string
}

// String formats the line the way listings print it.
func (l Line) String() string {
	hex := make([]string, len(l.Bytes))
	for i, b := range l.Bytes {
		hex[i] = fmt.Sprintf("%02X", b)
	}
	return fmt.Sprintf("%08X  %-21s %s", l.Addr, strings.Join(hex, " "), l.Text)
}

// Disassemble decodes a flat binary image in 16- or 32-bit mode. Bytes that
// do not form a valid instruction are emitted as db lines so decoding can
// resynchronize after embedded data.
func Disassemble(image []byte, bits int, origin uint32) ([]Line, error) {
	if bits != 16 && bits != 32 {
		return nil, fmt.Errorf("unsupported mode: %d bits", bits)
	}

	var lines []Line
	pc := 0
	for pc < len(image) {
		addr := origin + uint32(pc)
		inst, err := x86asm.Decode(image[pc:], bits)
		if err != nil || inst.Len == 0 || inst.Op == 0 {
			lines = append(lines, Line{
				Addr:  addr,
				Bytes: image[pc : pc+1],
				Text:  fmt.Sprintf("db 0x%02x", image[pc]),
			})
			pc++
			continue
		}
		lines = append(lines, Line{
			Addr:  addr,
			Bytes: image[pc : pc+inst.Len],
			Text:  strings.ToLower(x86asm.IntelSyntax(inst, uint64(addr), nil)),
		})
		pc += inst.Len
	}
	return lines, nil
}
