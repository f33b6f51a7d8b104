package assembler

import (
	"strconv"
	"strings"

	"github.com/Urethramancer/x86/cpu"
)

// OperandKind tags the operand sum type.
type OperandKind int

const (
	// OpRegister is a plain register operand.
	OpRegister OperandKind = iota
	// OpNumber is a resolved integer value.
	OpNumber
	// OpMemory is a [..] memory pointer.
	OpMemory
	// OpSegMem is an immediate segment:offset pair.
	OpSegMem
	// OpLabel is an expression that still references an unresolved name.
	OpLabel
)

// Operand is one parsed instruction argument.
type Operand struct {
	Kind OperandKind
	Loc  Location

	// Register operand.
	Reg cpu.Register

	// Number operand.
	Value      int64
	SignedSize int

	// Size is the declared byte size: from the register, an explicit
	// override, or inference. 0 means not yet known.
	Size int
	// Explicit marks sizes that came from a cast keyword.
	Explicit bool

	// Memory operand.
	MemToks []Token
	Mem     *MemAddress

	// Segmented-memory operand.
	SegToks []Token
	OffToks []Token

	// Unresolved expression (OpLabel).
	Toks []Token
}

// isResolved reports whether the operand carries a definitive value.
func (o *Operand) isResolved() bool {
	switch o.Kind {
	case OpLabel:
		return false
	case OpMemory:
		return o.Mem != nil && !o.Mem.Unresolved
	}
	return true
}

// sizeOverrides maps cast keywords to byte sizes.
var sizeOverrides = map[string]int{
	"byte":  1,
	"word":  2,
	"dword": 4,
}

// branchKeywords maps branch-addressing keywords.
var branchKeywords = map[string]BranchType{
	"short": BranchShort,
	"near":  BranchNear,
	"far":   BranchFar,
}

// parseOperands converts the instruction's raw operand spans into typed
// operands, applying size overrides, branch-addressing keywords, the
// mixed-size rule and memory-size deduction.
func (asm *Assembler) parseOperands(n *Node, rv resolver, bits int) ([]Operand, *Error) {
	n.Branch = BranchNone
	var args []Operand

	for _, span := range n.ArgToks {
		op, err := asm.parseOperandSpan(n, span, rv, bits)
		if err != nil {
			return nil, err
		}
		args = append(args, op)
	}

	if err := applySizeRules(n, args); err != nil {
		return nil, err
	}
	return args, nil
}

// parseOperandSpan parses one comma-separated operand span.
func (asm *Assembler) parseOperandSpan(n *Node, span []Token, rv resolver, bits int) (Operand, *Error) {
	override := 0

	// Leading cast and branch-addressing keywords.
	i := 0
	for i < len(span) && span[i].Type == TokKeyword {
		word := strings.ToLower(span[i].Text)
		if bt, ok := branchKeywords[word]; ok {
			n.Branch = bt
			i++
			continue
		}
		if sz, ok := sizeOverrides[word]; ok {
			if n.Branch == BranchNear || n.Branch == BranchFar {
				// In branch context the override names the size of the
				// segment:offset pair.
				sz *= 2
			}
			override = sz
			i++
			continue
		}
		break
	}
	span = span[i:]
	if len(span) == 0 {
		return Operand{}, newError(ErrSyntaxError, &n.Loc, "near", n.Opcode)
	}
	loc := span[0].Loc

	// Memory pointer.
	if span[0].Type == TokBracketOpen {
		if span[len(span)-1].Type != TokBracketClose {
			return Operand{}, newError(ErrSyntaxError, &loc, "near", exprText(span))
		}
		inner := span[1 : len(span)-1]
		mem, err := asm.parseMemAddress(inner, rv, bits)
		if err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OpMemory, Loc: loc, MemToks: inner, Mem: mem, Size: override, Explicit: override != 0}, nil
	}

	// Plain register.
	if len(span) == 1 && span[0].Type == TokKeyword {
		if reg, ok := cpu.LookupRegister(span[0].Text); ok {
			return Operand{Kind: OpRegister, Loc: loc, Reg: reg, Size: reg.Size}, nil
		}
	}

	// Segmented immediate: value COLON value.
	if ci := topLevelColon(span); ci > 0 {
		if n.Branch == BranchNone {
			n.Branch = BranchFar
		}
		seg, off := span[:ci], span[ci+1:]
		if len(seg) == 0 || len(off) == 0 {
			return Operand{}, newError(ErrIncorrectSegmentedMemFormat, &loc, "expr", exprText(span))
		}
		return Operand{Kind: OpSegMem, Loc: loc, SegToks: seg, OffToks: off, Size: 4}, nil
	}

	// Everything else is an expression: a constant, a label reference, or a
	// mix that folds once labels are known.
	if reg, ok := singleRegister(span); ok {
		// A register inside an arithmetic expression is not a number.
		return Operand{}, newError(ErrOperandMustBeNumber, &loc, "operand", reg.Name)
	}
	val, resolved, err := evalExpr(span, rv)
	if err != nil {
		return Operand{}, err
	}
	if !resolved {
		return Operand{Kind: OpLabel, Loc: loc, Toks: span, Size: override, Explicit: override != 0}, nil
	}

	op := Operand{Kind: OpNumber, Loc: loc, Value: val, SignedSize: signedSize(val)}
	if override != 0 {
		if numberSize(val) > override && signedSize(val) > override {
			return Operand{}, newError(ErrExceedingCastedNumberSize, &loc,
				"value", strconv.FormatInt(val, 10), "size", strconv.Itoa(override))
		}
		op.Size = override
		op.Explicit = true
	} else {
		op.Size = numberSize(val)
	}
	return op, nil
}

// applySizeRules implements the mixed-size rule and memory-size deduction.
func applySizeRules(n *Node, args []Operand) *Error {
	// A memory operand with no explicit size inherits it from the other
	// operand when that operand has a definite size.
	for i := range args {
		if args[i].Kind != OpMemory || args[i].Size != 0 {
			continue
		}
		for j := range args {
			if j == i {
				continue
			}
			switch args[j].Kind {
			case OpRegister:
				args[i].Size = args[j].Reg.Size
			case OpNumber:
				if args[j].Explicit {
					args[i].Size = args[j].Size
				}
			}
		}
		if args[i].Size == 0 && !isJumpOp(n.Opcode) {
			return newError(ErrMissingMemOperandSize, &args[i].Loc, "operand", exprText(args[i].MemToks))
		}
	}

	// Mixed sizes: widen a smaller number, reject mem/reg conflicts.
	for i := 1; i < len(args); i++ {
		prev, cur := &args[i-1], &args[i]
		if prev.Size == 0 || cur.Size == 0 || prev.Size == cur.Size {
			continue
		}
		if prev.Kind == OpLabel || cur.Kind == OpLabel {
			continue
		}
		switch {
		case cur.Kind == OpNumber && !cur.Explicit && cur.Size < prev.Size:
			cur.Size = prev.Size
		case prev.Kind == OpNumber && !prev.Explicit && prev.Size < cur.Size:
			prev.Size = cur.Size
		case cur.Kind == OpMemory || prev.Kind == OpMemory:
			return newError(ErrOperandSizesMismatch, &cur.Loc,
				"a", strconv.Itoa(prev.Size), "b", strconv.Itoa(cur.Size))
		}
	}
	return nil
}

// topLevelColon finds a colon outside brackets and parens, or -1.
func topLevelColon(span []Token) int {
	depth := 0
	for i, t := range span {
		switch t.Type {
		case TokLParen, TokBracketOpen:
			depth++
		case TokRParen, TokBracketClose:
			depth--
		case TokColon:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// singleRegister reports whether the span contains a register keyword.
func singleRegister(span []Token) (cpu.Register, bool) {
	for _, t := range span {
		if t.Type != TokKeyword {
			continue
		}
		if reg, ok := cpu.LookupRegister(t.Text); ok {
			return reg, true
		}
	}
	return cpu.Register{}, false
}
