package assembler

import (
	"strings"

	"github.com/Urethramancer/x86/cpu"
)

// MatcherKind selects the predicate an ArgMatcher applies.
type MatcherKind int

const (
	matchSpecificReg MatcherKind = iota
	matchConst1
	matchR8
	matchR16
	matchR32
	matchSreg
	matchRM8
	matchRM16
	matchRM32
	matchM8
	matchM16
	matchM32
	matchMem
	matchImm8
	matchImm16
	matchImm32
	matchImm8S
	matchRel8
	matchRel16
	matchNearPtr
	matchFarPtr
	matchSegMem
	matchMoffs
	matchSTi
)

// ArgMatcher is one operand predicate of a schema.
type ArgMatcher struct {
	Kind MatcherKind
	// RegName is set for matchSpecificReg.
	RegName string
}

// Matcher shorthands used by the registration files.
var (
	r8      = ArgMatcher{Kind: matchR8}
	r16     = ArgMatcher{Kind: matchR16}
	r32     = ArgMatcher{Kind: matchR32}
	sr      = ArgMatcher{Kind: matchSreg}
	rm8     = ArgMatcher{Kind: matchRM8}
	rm16    = ArgMatcher{Kind: matchRM16}
	rm32    = ArgMatcher{Kind: matchRM32}
	m8      = ArgMatcher{Kind: matchM8}
	m16     = ArgMatcher{Kind: matchM16}
	m32     = ArgMatcher{Kind: matchM32}
	memAny  = ArgMatcher{Kind: matchMem}
	imm8    = ArgMatcher{Kind: matchImm8}
	imm16   = ArgMatcher{Kind: matchImm16}
	imm32   = ArgMatcher{Kind: matchImm32}
	imm8s   = ArgMatcher{Kind: matchImm8S}
	rel8    = ArgMatcher{Kind: matchRel8}
	rel16   = ArgMatcher{Kind: matchRel16}
	nearPtr = ArgMatcher{Kind: matchNearPtr}
	farPtr  = ArgMatcher{Kind: matchFarPtr}
	segMem  = ArgMatcher{Kind: matchSegMem}
	moffs   = ArgMatcher{Kind: matchMoffs}
	sti     = ArgMatcher{Kind: matchSTi}
	const1  = ArgMatcher{Kind: matchConst1}
)

// reg matches one specific register by name.
func reg(name string) ArgMatcher {
	return ArgMatcher{Kind: matchSpecificReg, RegName: name}
}

// Schema is one candidate operand pattern and encoding for a mnemonic.
type Schema struct {
	Mnemonic string
	Args     []ArgMatcher
	Template []string
	MinCPU   cpu.Family
	// Moffset marks forms whose memory operand is a bare absolute offset
	// without a ModR/M byte.
	Moffset bool
	// RM is the operand index encoded in ModR/M's mod/rm fields, -1 when
	// the instruction has no ModR/M byte.
	RM int
	// OpSize is the operand width that drives the 0x66 prefix: 0, 2 or 4.
	OpSize int
}

// registry maps a lowercase mnemonic to its candidate schemas in match
// order. Registration order expresses tie-breaks: smaller encodings come
// first so the shrinking pass prefers them once labels are known.
var registry = map[string][]*Schema{}

// add registers one schema. rm is the operand index feeding ModR/M's
// mod/rm fields, or -1.
func add(mn string, rm int, template string, args ...ArgMatcher) *Schema {
	s := &Schema{
		Mnemonic: mn,
		Args:     args,
		Template: strings.Fields(template),
		RM:       rm,
		OpSize:   operandWidth(args),
	}
	registry[mn] = append(registry[mn], s)
	return s
}

// addCPU registers a schema with a minimum processor family.
func addCPU(mn string, min cpu.Family, rm int, template string, args ...ArgMatcher) *Schema {
	s := add(mn, rm, template, args...)
	s.MinCPU = min
	return s
}

// operandWidth derives the 0x66-prefix width from the matcher list.
func operandWidth(args []ArgMatcher) int {
	w := 0
	for _, a := range args {
		switch a.Kind {
		case matchR32, matchRM32, matchImm32:
			return 4
		case matchR16, matchRM16, matchImm16:
			w = 2
		case matchSpecificReg:
			if r, ok := cpu.LookupRegister(a.RegName); ok && !r.Segment && !r.X87 {
				if r.Size == 4 {
					return 4
				}
				if r.Size == 2 && w == 0 {
					w = 2
				}
			}
		}
	}
	return w
}

// isJumpOp reports whether any schema for the mnemonic takes a branch
// target; such instructions do not demand an explicit memory operand size
// and are re-encoded once addresses settle.
func isJumpOp(mn string) bool {
	for _, s := range registry[mn] {
		for _, a := range s.Args {
			switch a.Kind {
			case matchRel8, matchRel16, matchNearPtr, matchFarPtr, matchSegMem:
				return true
			}
		}
	}
	return false
}

// hasRel16 reports whether the mnemonic offers a 16-bit relative form.
func hasRel16(mn string) bool {
	for _, s := range registry[mn] {
		for _, a := range s.Args {
			if a.Kind == matchRel16 {
				return true
			}
		}
	}
	return false
}

// matchContext carries the state operand matching depends on.
type matchContext struct {
	bits   int
	target cpu.Family
	// addr is the instruction's absolute address; provisional on the first
	// pass, definitive afterwards.
	addr int64
	// rv resolves equ symbols on the first pass and labels as well on
	// later ones. final is set once every label is expected to resolve;
	// before that, unresolved names are treated pessimistically so the
	// widest encoding is chosen.
	rv     resolver
	final  bool
	branch BranchType
}

// findSchema returns the first registered schema that matches the operand
// list under ctx.
func findSchema(n *Node, args []Operand, ctx *matchContext) (*Schema, *Error) {
	candidates, ok := registry[n.Opcode]
	if !ok {
		return nil, newError(ErrUnknownOperation, &n.Loc, "op", n.Opcode)
	}
	for _, s := range candidates {
		if s.MinCPU > ctx.target || len(s.Args) != len(args) {
			continue
		}
		if s.matches(n, args, ctx) {
			return s, nil
		}
	}
	return nil, newError(ErrInvalidInstructionOperand, &n.Loc, "op", n.Opcode)
}

// matches applies every matcher of the schema.
func (s *Schema) matches(n *Node, args []Operand, ctx *matchContext) bool {
	for i := range args {
		if !s.matchArg(&args[i], s.Args[i], n, args, ctx) {
			return false
		}
	}
	return true
}

func (s *Schema) matchArg(op *Operand, m ArgMatcher, n *Node, args []Operand, ctx *matchContext) bool {
	switch m.Kind {
	case matchSpecificReg:
		return op.Kind == OpRegister && op.Reg.Name == m.RegName

	case matchConst1:
		return op.Kind == OpNumber && op.Value == 1

	case matchR8:
		return op.Kind == OpRegister && op.Reg.IsByte()
	case matchR16:
		return op.Kind == OpRegister && op.Reg.IsWord()
	case matchR32:
		return op.Kind == OpRegister && op.Reg.IsDword()
	case matchSreg:
		return op.Kind == OpRegister && op.Reg.Segment

	case matchRM8:
		return s.matchRegOrMem(op, 1)
	case matchRM16:
		return s.matchRegOrMem(op, 2)
	case matchRM32:
		return s.matchRegOrMem(op, 4)

	case matchM8:
		return op.Kind == OpMemory && memSizeFits(op, 1)
	case matchM16:
		return op.Kind == OpMemory && memSizeFits(op, 2)
	case matchM32:
		return op.Kind == OpMemory && memSizeFits(op, 4)
	case matchMem:
		return op.Kind == OpMemory

	case matchImm8:
		return matchImmediate(op, 1)
	case matchImm16:
		return matchImmediate(op, 2)
	case matchImm32:
		return matchImmediate(op, 4)

	case matchImm8S:
		if op.Kind != OpNumber {
			return false
		}
		if op.Explicit && op.Size != 1 {
			return false
		}
		bits := 16
		if s.OpSize == 4 {
			bits = 32
		}
		return fitsSignExtended(op.Value, bits)

	case matchRel8:
		if ctx.branch == BranchNear || ctx.branch == BranchFar {
			return false
		}
		if op.Kind == OpLabel {
			// Unknown distance: pessimistically defer to a wider form when
			// one exists; rel8-only instructions (loop, jcxz) have nothing
			// to defer to.
			return ctx.branch == BranchShort || !hasRel16(s.Mnemonic)
		}
		if op.Kind != OpNumber {
			return false
		}
		if ctx.branch == BranchShort {
			return true
		}
		rel := op.Value - (ctx.addr + int64(s.size(n, args, ctx)))
		return cpu.FitsSigned(rel, 1)

	case matchRel16:
		if ctx.branch == BranchShort || ctx.branch == BranchFar {
			return false
		}
		if op.Kind == OpLabel {
			return true
		}
		if op.Kind != OpNumber {
			return false
		}
		rel := op.Value - (ctx.addr + int64(s.size(n, args, ctx)))
		return cpu.FitsSigned(rel, 2)

	case matchNearPtr:
		if op.Kind != OpMemory || ctx.branch == BranchFar || ctx.branch == BranchShort {
			return false
		}
		return op.Size == 0 || op.Size == 2

	case matchFarPtr:
		if op.Kind != OpMemory || ctx.branch != BranchFar {
			return false
		}
		return op.Size == 0 || op.Size == 4

	case matchSegMem:
		return op.Kind == OpSegMem

	case matchMoffs:
		if op.Kind != OpMemory || op.Mem == nil {
			return false
		}
		mem := op.Mem
		if mem.Base != nil || mem.Index != nil {
			return false
		}
		return mem.Unresolved || cpu.FitsUnsigned(mem.Disp, 2)

	case matchSTi:
		return op.Kind == OpRegister && op.Reg.X87
	}
	return false
}

// matchRegOrMem applies the rmb/rmw/rmd rule: registers must equal the
// size exactly; explicit-size memory must equal it, implicit-size memory
// must not exceed it.
func (s *Schema) matchRegOrMem(op *Operand, size int) bool {
	switch op.Kind {
	case OpRegister:
		return !op.Reg.Segment && !op.Reg.X87 && op.Reg.Size == size
	case OpMemory:
		return memSizeFits(op, size)
	}
	return false
}

func memSizeFits(op *Operand, size int) bool {
	if op.Explicit {
		return op.Size == size
	}
	return op.Size == 0 || op.Size <= size
}

// matchImmediate checks a number (or a not-yet-resolved expression) against
// an immediate size. Unresolved labels are 16-bit addresses, so they pass
// the 2-byte predicate and fail the 1-byte one.
func matchImmediate(op *Operand, size int) bool {
	switch op.Kind {
	case OpLabel:
		return size >= 2
	case OpNumber:
		if op.Explicit {
			return op.Size == size
		}
		return cpu.FitsUnsigned(op.Value, size) || cpu.FitsSigned(op.Value, size)
	}
	return false
}

// fitsSignExtended implements the ib_s rule: the value, taken as a bits-bit
// unsigned integer, equals the sign-extension of its low byte.
func fitsSignExtended(v int64, bits int) bool {
	mask := uint64(1)<<bits - 1
	u := uint64(v) & mask
	ext := uint64(cpu.SignExtend(u, 1)) & mask
	return u == ext
}
