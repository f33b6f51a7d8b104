package assembler_test

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Urethramancer/x86/assembler"
)

// Assembles source and checks against an expected byte sequence (in hex).
// Automatically validates output length and content.
func assembleAndMatchHex(t *testing.T, name, src, expectedHex string) *assembler.Result {
	t.Helper()

	expectedHex = strings.ToLower(strings.Join(strings.Fields(expectedHex), ""))
	expected, err := hex.DecodeString(expectedHex)
	if err != nil {
		t.Fatalf("[%s] invalid expected hex string: %v", name, err)
	}

	asm := assembler.New()
	res, err := asm.Assemble(src)
	if err != nil {
		t.Fatalf("[%s] failed to assemble:\n%s\nerror: %v", name, src, err)
	}
	if len(res.Image) != len(expected) {
		t.Fatalf("[%s] expected %d bytes, got %d\nexpected: % X\ngot:      % X",
			name, len(expected), len(res.Image), expected, res.Image)
	}
	for i := range res.Image {
		if res.Image[i] != expected[i] {
			t.Fatalf("[%s] mismatch at byte %d\nexpected: % X\ngot:      % X",
				name, i, expected, res.Image)
		}
	}
	return res
}

// assembleExpectError asserts that assembly fails with the given code.
func assembleExpectError(t *testing.T, name, src string, code assembler.ErrorCode) {
	t.Helper()

	asm := assembler.New()
	_, err := asm.Assemble(src)
	if err == nil {
		t.Fatalf("[%s] expected error %s, got success", name, code)
	}
	list, ok := err.(assembler.ErrorList)
	if !ok {
		t.Fatalf("[%s] expected ErrorList, got %T: %v", name, err, err)
	}
	for _, e := range list {
		if e.Code == code {
			return
		}
	}
	t.Fatalf("[%s] expected error %s, got: %v", name, code, err)
}

// Core data movement encodings.
func TestMovEncodings(t *testing.T) {
	tests := []struct {
		name, src, hex string
	}{
		{"MOV_AL_Imm8", "mov al, 0x12", "B0 12"},
		{"MOV_AX_Imm16", "mov ax, 0x1234", "B8 34 12"},
		{"MOV_AX_WidenedImm", "mov ax, 2", "B8 02 00"},
		{"MOV_AH_Imm8", "mov ah, 0x0e", "B4 0E"},
		{"MOV_Reg_Reg", "mov bx, ax", "89 C3"},
		{"MOV_Reg_Mem", "mov ax, [bx]", "8B 07"},
		{"MOV_Mem_Reg", "mov [bx], ax", "89 07"},
		{"MOV_AL_MemDisp", "mov al, byte [si+0x5]", "8A 44 05"},
		{"MOV_Moffs_AX", "mov [0x0], ax", "A3 00 00"},
		{"MOV_AX_Moffs", "mov ax, [0x10]", "A1 10 00"},
		{"MOV_BL_Disp16", "mov bl, [0x10]", "8A 1E 10 00"},
		{"MOV_Mem_Imm16", "mov word [bx], 5", "C7 07 05 00"},
		{"MOV_Mem_Imm8", "mov byte [bx], 5", "C6 07 05"},
		{"MOV_Sreg", "mov ds, ax", "8E D8"},
		{"MOV_FromSreg", "mov ax, cs", "8C C8"},
		{"MOV_SegOverride", "mov [es:di], al", "26 88 05"},
		{"MOV_EAX_Imm32", "mov eax, 0x12345678", "66 B8 78 56 34 12"},
		{"MOV_CharPair", "mov ax, 'ab'", "B8 61 62"},
		{"MOV_FoldedExpr", "mov ax, 2+3*4", "B8 0E 00"},
		{"XCHG_AX", "xchg ax, bx", "93"},
		{"LEA", "lea ax, [bx+2]", "8D 47 02"},
		{"LES", "les ax, [bx]", "C4 07"},
		{"LDS", "lds ax, [bx]", "C5 07"},
	}
	for _, tc := range tests {
		assembleAndMatchHex(t, tc.name, tc.src, tc.hex)
	}
}

// 16-bit addressing-mode table coverage.
func TestAddressingModes(t *testing.T) {
	tests := []struct {
		name, src, hex string
	}{
		{"BX_SI", "mov ax, [bx+si]", "8B 00"},
		{"SwappedPair", "mov ax, [si+bx]", "8B 00"},
		{"BP_SI", "mov ax, [bp+si]", "8B 02"},
		{"BP_DI_Disp8", "mov ax, [bp+di+4]", "8B 43 04"},
		{"SI", "mov ax, [si]", "8B 04"},
		{"DI_Disp8", "mov ax, [di+1]", "8B 45 01"},
		{"BP_ZeroDisp", "mov ax, [bp]", "8B 46 00"},
		{"BX", "mov ax, [bx]", "8B 07"},
		{"PureDisp16", "mov bx, [0x1234]", "8B 1E 34 12"},
		{"NegDisp", "mov ax, [bx-2]", "8B 47 FE"},
		{"Disp128IsWide", "mov ax, [bx+di+0x80]", "8B 81 80 00"},
		{"FoldedDisp", "mov al, [si+2+3]", "8A 44 05"},
		{"SS_Default", "mov ax, [ss:bp]", "8B 46 00"},
		{"DS_OnBP", "mov ax, [ds:bp]", "3E 8B 46 00"},
	}
	for _, tc := range tests {
		assembleAndMatchHex(t, tc.name, tc.src, tc.hex)
	}
}

// Arithmetic group forms, including the sign-extended 0x83 trick.
func TestArithmeticEncodings(t *testing.T) {
	tests := []struct {
		name, src, hex string
	}{
		{"ADD_AL_Imm", "add al, 5", "04 05"},
		{"ADD_AX_SignExt", "add ax, 5", "83 C0 05"},
		{"ADD_AX_Imm16", "add ax, 0x1234", "05 34 12"},
		{"SUB_DI_1", "sub di, 1", "83 EF 01"},
		{"SUB_NegSignExt", "sub ax, -1", "83 E8 FF"},
		{"CMP_Reg_Reg", "cmp ax, bx", "39 D8"},
		{"XOR_Self", "xor ax, ax", "31 C0"},
		{"AND_AL", "and al, 0x0f", "24 0F"},
		{"OR_MemImm", "or byte [bx], 0x80", "80 0F 80"},
		{"ADC", "adc ax, bx", "11 D8"},
		{"SBB", "sbb bl, cl", "18 CB"},
		{"ADD_MemReg", "add [0x10], ax", "01 06 10 00"},
		{"TEST_AL", "test al, 1", "A8 01"},
		{"TEST_RegReg", "test ax, bx", "85 D8"},
		{"INC_Reg16", "inc ax", "40"},
		{"DEC_Reg16", "dec bx", "4B"},
		{"INC_Mem8", "inc byte [bx]", "FE 07"},
		{"DEC_Mem16", "dec word [bx]", "FF 0F"},
		{"NEG", "neg ax", "F7 D8"},
		{"NOT", "not byte [si]", "F6 14"},
		{"MUL_CL", "mul cl", "F6 E1"},
		{"DIV_BX", "div bx", "F7 F3"},
		{"IMUL_Triple", "imul ax, bx, 3", "6B C3 03"},
		{"CBW", "cbw", "98"},
		{"CWD", "cwd", "99"},
	}
	for _, tc := range tests {
		assembleAndMatchHex(t, tc.name, tc.src, tc.hex)
	}
}

func TestShiftEncodings(t *testing.T) {
	tests := []struct {
		name, src, hex string
	}{
		{"SHL_By1", "shl ax, 1", "D1 E0"},
		{"SAR_By1", "sar ax, 1", "D1 F8"},
		{"SHR_ByCL", "shr bl, cl", "D2 EB"},
		{"SHL_ByImm", "shl ax, 4", "C1 E0 04"},
		{"ROL_Mem", "rol byte [bx], 1", "D0 07"},
		{"RCR_ByImm", "rcr dx, 2", "C1 DA 02"},
	}
	for _, tc := range tests {
		assembleAndMatchHex(t, tc.name, tc.src, tc.hex)
	}
}

func TestStackEncodings(t *testing.T) {
	tests := []struct {
		name, src, hex string
	}{
		{"PUSH_Reg", "push ax", "50"},
		{"POP_Reg", "pop bx", "5B"},
		{"PUSH_ES", "push es", "06"},
		{"POP_DS", "pop ds", "1F"},
		{"PUSH_Imm8", "push 5", "6A 05"},
		{"PUSH_Imm16", "push 0x1234", "68 34 12"},
		{"PUSH_Mem", "push word [bx]", "FF 37"},
		{"PUSHF", "pushf", "9C"},
		{"POPF", "popf", "9D"},
		{"PUSHA", "pusha", "60"},
	}
	for _, tc := range tests {
		assembleAndMatchHex(t, tc.name, tc.src, tc.hex)
	}
}

// Control flow: shrinking, relative offsets, far forms.
func TestFlowEncodings(t *testing.T) {
	tests := []struct {
		name, src, hex string
	}{
		{"JMP_Self", "start: jmp start", "EB FE"},
		{"JMP_Dollar", "jmp $", "EB FE"},
		{"JMP_ShortForward", "jmp fwd\nnop\nfwd: hlt", "EB 01 90 F4"},
		{"JMP_NearForced", "jmp near fwd\nfwd: hlt", "E9 00 00 F4"},
		{"CALL_Forward", "call next\nnext: nop", "E8 00 00 90"},
		{"CALL_Indirect", "call [bx]", "FF 17"},
		{"JMP_Indirect", "jmp [bx]", "FF 27"},
		{"JMP_FarIndirect", "jmp far [bx]", "FF 2F"},
		{"JMP_FarImmediate", "jmp 0x0:0x7c00", "EA 00 7C 00 00"},
		{"CALL_FarImmediate", "call 0x1234:0x5678", "9A 78 56 34 12"},
		{"RET", "ret", "C3"},
		{"RET_Imm", "ret 2", "C2 02 00"},
		{"RETF", "retf", "CB"},
		{"IRET", "iret", "CF"},
		{"LOOP_Back", "top: loop top", "E2 FE"},
		{"JCXZ", "skip: jcxz skip", "E3 FE"},
		{"INT", "int 0x10", "CD 10"},
		{"INT3", "int3", "CC"},
	}
	for _, tc := range tests {
		assembleAndMatchHex(t, tc.name, tc.src, tc.hex)
	}
}

// The spec's shrink scenario: jnc picks the short form and the relative
// offset lands on the final address of the target.
func TestJumpShrinking(t *testing.T) {
	src := `jnc kill
int3
mov al, 2
kill: mov al, 4`
	res := assembleAndMatchHex(t, "JNC_Shrink", src, "73 03 CC B0 02 B0 04")
	require.Equal(t, uint32(5), res.Labels["kill"])

	// Decoding the rel8 and adding it to the next address hits the label.
	rel := int8(res.Image[1])
	require.Equal(t, int64(res.Labels["kill"]), int64(2)+int64(rel))
}

// Short/near boundary: a target exactly 127 bytes away keeps the short
// form; 128 forces the near encoding.
func TestShortNearBoundary(t *testing.T) {
	build := func(n int) string {
		var b strings.Builder
		b.WriteString("jmp target\n")
		b.WriteString("times " + itoa(n) + " nop\n")
		b.WriteString("target: hlt\n")
		return b.String()
	}

	asm := assembler.New()
	res, err := asm.Assemble(build(127))
	require.NoError(t, err)
	require.Equal(t, byte(0xEB), res.Image[0])
	require.Equal(t, byte(0x7F), res.Image[1])
	require.Equal(t, uint32(2+127), res.Labels["target"])

	asm = assembler.New()
	res, err = asm.Assemble(build(128))
	require.NoError(t, err)
	require.Equal(t, byte(0xE9), res.Image[0])
	require.Equal(t, uint32(3+128), res.Labels["target"])
	rel := int16(uint16(res.Image[1]) | uint16(res.Image[2])<<8)
	require.Equal(t, int64(res.Labels["target"]), int64(3)+int64(rel))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func TestStringAndIOEncodings(t *testing.T) {
	tests := []struct {
		name, src, hex string
	}{
		{"MOVSB", "movsb", "A4"},
		{"REP_MOVSB", "rep movsb", "F3 A4"},
		{"REP_STOSW", "rep stosw", "F3 AB"},
		{"REPNE_SCASB", "repne scasb", "F2 AE"},
		{"LODSB", "lodsb", "AC"},
		{"CMPSW", "cmpsw", "A7"},
		{"LOCK_INC", "lock inc word [bx]", "F0 FF 07"},
		{"IN_Imm", "in al, 0x60", "E4 60"},
		{"IN_DX", "in al, dx", "EC"},
		{"OUT_Imm", "out 0x43, al", "E6 43"},
		{"OUT_DX", "out dx, ax", "EF"},
		{"XLATB", "xlatb", "D7"},
	}
	for _, tc := range tests {
		assembleAndMatchHex(t, tc.name, tc.src, tc.hex)
	}
}

func TestMiscEncodings(t *testing.T) {
	tests := []struct {
		name, src, hex string
	}{
		{"NOP", "nop", "90"},
		{"HLT", "hlt", "F4"},
		{"CLI_STI", "cli\nsti", "FA FB"},
		{"CLD_STD", "cld\nstd", "FC FD"},
		{"CLC_STC_CMC", "clc\nstc\ncmc", "F8 F9 F5"},
		{"SAHF_LAHF", "sahf\nlahf", "9E 9F"},
		{"AAM", "aam", "D4 0A"},
		{"AAM_Base", "aam 16", "D4 10"},
		{"AAA_DAA", "aaa\ndaa", "37 27"},
		{"CPUID", "cpuid", "0F A2"},
	}
	for _, tc := range tests {
		assembleAndMatchHex(t, tc.name, tc.src, tc.hex)
	}
}

func TestX87Encodings(t *testing.T) {
	tests := []struct {
		name, src, hex string
	}{
		{"FLD_ST", "fld st1", "D9 C1"},
		{"FXCH", "fxch st2", "D9 CA"},
		{"FSTP_ST", "fstp st3", "DD DB"},
		{"FADD_ST", "fadd st0, st2", "D8 C2"},
		{"FADD_ToST", "fadd st2, st0", "DC C2"},
		{"FLD_Mem", "fld dword [bx]", "D9 07"},
		{"FSTP_Mem", "fstp dword [bx]", "D9 1F"},
		{"FILD", "fild word [bx]", "DF 07"},
		{"FISTP", "fistp word [bx]", "DF 1F"},
		{"FNINIT", "fninit", "DB E3"},
		{"FINIT", "finit", "9B DB E3"},
	}
	for _, tc := range tests {
		assembleAndMatchHex(t, tc.name, tc.src, tc.hex)
	}
}

func TestDataDefines(t *testing.T) {
	tests := []struct {
		name, src, hex string
	}{
		{"DB_String", "db 'Hello', 0", "48 65 6C 6C 6F 00"},
		{"DB_Mixed", "db 'A', 0x42, 0", "41 42 00"},
		{"DW_Values", "dw 0x1122, 0x3344", "22 11 44 33"},
		{"DW_String", "dw 'ab'", "61 62"},
		{"DD_Value", "dd 0x11223344", "44 33 22 11"},
		{"DB_Expr", "db 2+3", "05"},
		{"DW_Label", "dw tag\ntag:", "02 00"},
		{"EQU_Usage", "value equ 0x1234\ndw value", "34 12"},
	}
	for _, tc := range tests {
		assembleAndMatchHex(t, tc.name, tc.src, tc.hex)
	}
}

func TestTimes(t *testing.T) {
	tests := []struct {
		name, src, hex string
	}{
		{"Times_NOP", "times 3 nop", "90 90 90"},
		{"Times_DB", "times 4 db 0xaa", "AA AA AA AA"},
		{"Times_Nested", "times 2 times 3 nop", "90 90 90 90 90 90"},
		{"Times_PadToBoundary", "start: jmp start\ntimes 8-($-$$) db 0\ndw 0xaa55",
			"EB FE 00 00 00 00 00 00 55 AA"},
	}
	for _, tc := range tests {
		assembleAndMatchHex(t, tc.name, tc.src, tc.hex)
	}
}

// The boot-sector scenario from end to end.
func TestBootSector(t *testing.T) {
	src := `[bits 16]
[org 0x7C00]
start: jmp start`
	res := assembleAndMatchHex(t, "BootSector", src, "EB FE")
	require.Equal(t, uint32(0x7C00), res.Labels["start"])
	require.Equal(t, uint32(0x7C00), res.Origin)
	require.LessOrEqual(t, res.Passes, 4)
}

func TestOriginInvariance(t *testing.T) {
	// Position-independent body: relative jumps only. Adding an org must
	// leave the bytes unchanged and shift every label by the origin.
	body := `start: nop
	loop start
	jmp start
done: hlt`

	asm := assembler.New()
	plain, err := asm.Assemble(body)
	require.NoError(t, err)

	asm = assembler.New()
	moved, err := asm.Assemble("[org 0x7C00]\n" + body)
	require.NoError(t, err)

	require.Equal(t, plain.Image, moved.Image)
	for name, addr := range plain.Labels {
		require.Equal(t, addr+0x7C00, moved.Labels[name], "label %s", name)
	}
}

func TestDeterminism(t *testing.T) {
	src := `start:
	mov ax, 0x1234
	add ax, bx
.loop:
	loop .loop
	jmp start
msg: db 'done', 0
times 4 db 0`

	asm := assembler.New()
	a, err := asm.Assemble(src)
	require.NoError(t, err)

	asm = assembler.New()
	b, err := asm.Assemble(src)
	require.NoError(t, err)

	require.Equal(t, a.Image, b.Image)
	require.Equal(t, a.Labels, b.Labels)
}

func TestLocalLabels(t *testing.T) {
	src := `first:
.loop: jmp .loop
second:
.loop: jmp .loop`
	res := assembleAndMatchHex(t, "LocalLabels", src, "EB FE EB FE")
	require.Equal(t, uint32(0), res.Labels["first.loop"])
	require.Equal(t, uint32(2), res.Labels["second.loop"])
}

func TestDefine(t *testing.T) {
	assembleAndMatchHex(t, "Define", "%define WIDTH 0x10\nmov al, WIDTH", "B0 10")
}

func TestMode32(t *testing.T) {
	tests := []struct {
		name, src, hex string
	}{
		{"MOV_EBX_Disp", "[bits 32]\nmov eax, [ebx+4]", "8B 43 04"},
		{"OpSizePrefix", "[bits 32]\nmov ax, 1", "66 B8 01 00"},
		{"SIB_Scale", "[bits 32]\nmov eax, [ebx+esi*2]", "8B 04 73"},
		{"SIB_ESP", "[bits 32]\nmov eax, [esp]", "8B 04 24"},
		{"EBP_ZeroDisp", "[bits 32]\nmov eax, [ebp]", "8B 45 00"},
		{"PureDisp32", "[bits 32]\nmov eax, [0x11223344]", "8B 05 44 33 22 11"},
	}
	for _, tc := range tests {
		assembleAndMatchHex(t, tc.name, tc.src, tc.hex)
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name, src string
		code      assembler.ErrorCode
	}{
		{"DuplicateLabel", "x: nop\nx: nop", assembler.ErrLabelAlreadyDefined},
		{"UnknownOp", "frob ax", assembler.ErrUnknownOperation},
		{"UnknownLabel", "jmp nowhere", assembler.ErrUnknownLabel},
		{"MissingMemSize", "mov [0x0], 0x1", assembler.ErrMissingMemOperandSize},
		{"MissingMemSizeUnary", "inc [bx]", assembler.ErrMissingMemOperandSize},
		{"SizesMismatch", "mov byte [si], ax", assembler.ErrOperandSizesMismatch},
		{"ScaleIn16Bit", "mov ax, [bx*2]", assembler.ErrScaleIndexIsUnsupportedInMode},
		{"Reg32In16Bit", "mov ax, [esi]", assembler.ErrScaleIndexIsUnsupportedInMode},
		{"BadPair", "mov ax, [cx]", assembler.ErrInvalidAddressingMode},
		{"BadSreg", "mov ax, [ax:di]", assembler.ErrRegisterIsNotSegmentReg},
		{"DoubleScale", "[bits 32]\nmov eax, [eax*2+ecx*4]", assembler.ErrScaleIsAlreadyDefined},
		{"BadScale", "[bits 32]\nmov eax, [eax*3]", assembler.ErrIncorrectScale},
		{"ThreeRegs", "mov ax, [bx+si+di]", assembler.ErrIncorrectMemExpression},
		{"OrgTwice", "org 0x100\norg 0x200\nnop", assembler.ErrOriginRedefined},
		{"BadBits", "bits 64\nnop", assembler.ErrUnsupportedCompilerMode},
		{"OrphanLocal", ".lost: nop", assembler.ErrMissingParentLabel},
		{"ShortOutOfRange", "jmp short target\ntimes 200 nop\ntarget: hlt", assembler.ErrDisplacementExceedingByteSize},
		{"CastTooSmall", "mov al, byte 0x123", assembler.ErrExceedingCastedNumberSize},
		{"BadOperandCombo", "mov al, 0x1234", assembler.ErrInvalidInstructionOperand},
		{"NegativeTimes", "times 0-1 nop", assembler.ErrIncorrectTimesValue},
		{"TimesDirective", "times 2 org 0x100", assembler.ErrUnpermittedNodeInPostprocessMode},
	}
	for _, tc := range tests {
		assembleExpectError(t, tc.name, tc.src, tc.code)
	}
}

// A source whose jump shrinks settles on the same image and the same pass
// count every time it is assembled.
func TestFixpointStability(t *testing.T) {
	src := `jnc kill
int3
mov al, 2
kill: mov al, 4`
	asm := assembler.New()
	first, err := asm.Assemble(src)
	require.NoError(t, err)

	asm = assembler.New()
	second, err := asm.Assemble(src)
	require.NoError(t, err)
	require.Equal(t, first.Image, second.Image)
	require.Equal(t, first.Passes, second.Passes)
}
