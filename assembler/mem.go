package assembler

import (
	"strconv"
	"strings"

	"github.com/Urethramancer/x86/cpu"
)

// MemAddress is the resolved description of a [..] memory operand.
type MemAddress struct {
	SReg  *cpu.Register
	Base  *cpu.Register
	Index *cpu.Register
	// Scale is the index multiplier, 1 when unspecified. Non-1 scales need
	// an index register and a 32-bit mode.
	Scale int

	Disp           int64
	HasDisp        bool
	DispSize       int
	SignedDispSize int

	// Unresolved marks displacements that reference a label not yet known;
	// the layout engine retries on a later pass.
	Unresolved bool
}

// memTerm is one +/- separated piece of the bracket expression.
type memTerm struct {
	neg  bool
	toks []Token
}

// parseMemAddress reduces the token span inside [..] to a MemAddress.
func (asm *Assembler) parseMemAddress(toks []Token, rv resolver, bits int) (*MemAddress, *Error) {
	if len(toks) == 0 {
		return nil, newError(ErrIncorrectMemExpression, nil, "expr", "")
	}
	m := &MemAddress{Scale: 1}
	loc := toks[0].Loc

	// Optional segment override: a leading "sreg :".
	if len(toks) >= 2 && toks[0].Type == TokKeyword && toks[1].Type == TokColon {
		reg, ok := cpu.LookupRegister(toks[0].Text)
		if ok {
			if !reg.Segment {
				return nil, newError(ErrRegisterIsNotSegmentReg, &toks[0].Loc, "reg", reg.Name)
			}
			m.SReg = &reg
			toks = toks[2:]
			if len(toks) == 0 {
				return nil, newError(ErrIncorrectMemExpression, &loc, "expr", "")
			}
		}
	}

	terms := splitMemTerms(toks)

	var dispToks []Token
	scaleSeen := false
	for _, term := range terms {
		reg, num, kind, err := classifyMemTerm(term)
		if err != nil {
			return nil, err
		}
		switch kind {
		case termRegister:
			if term.neg {
				return nil, newError(ErrIncorrectMemExpression, &term.toks[0].Loc, "expr", exprText(toks))
			}
			switch {
			case m.Base == nil:
				m.Base = reg
			case m.Index == nil:
				m.Index = reg
			default:
				return nil, newError(ErrIncorrectMemExpression, &term.toks[0].Loc, "expr", exprText(toks))
			}

		case termScaled:
			if term.neg {
				return nil, newError(ErrIncorrectMemExpression, &term.toks[0].Loc, "expr", exprText(toks))
			}
			if scaleSeen {
				return nil, newError(ErrScaleIsAlreadyDefined, &term.toks[0].Loc)
			}
			scaleSeen = true
			switch num {
			case 1, 2, 4, 8:
			default:
				return nil, newError(ErrIncorrectScale, &term.toks[0].Loc, "scale", strconv.FormatInt(num, 10))
			}
			if m.Index != nil {
				// An implicit-scale index was already claimed; move it to base.
				if m.Base != nil {
					return nil, newError(ErrIncorrectMemExpression, &term.toks[0].Loc, "expr", exprText(toks))
				}
				m.Base = m.Index
			}
			m.Index = reg
			m.Scale = int(num)

		case termDisplacement:
			if len(dispToks) > 0 || term.neg {
				op := TokPlus
				if term.neg {
					op = TokMinus
				}
				dispToks = append(dispToks, Token{Type: op, Text: "", Loc: term.toks[0].Loc})
			}
			dispToks = append(dispToks, Token{Type: TokLParen, Loc: term.toks[0].Loc})
			dispToks = append(dispToks, term.toks...)
			dispToks = append(dispToks, Token{Type: TokRParen, Loc: term.toks[0].Loc})
		}
	}

	if err := m.validateRegisters(bits, &loc); err != nil {
		return nil, err
	}

	if len(dispToks) > 0 {
		if dispToks[0].Type == TokMinus {
			// Leading negative displacement term: make the subtraction binary.
			dispToks = append([]Token{{Type: TokNumber, Text: "0", Loc: dispToks[0].Loc}}, dispToks...)
		}
		val, resolved, err := evalExpr(dispToks, rv)
		if err != nil {
			return nil, err
		}
		m.HasDisp = true
		if !resolved {
			m.Unresolved = true
		} else {
			m.Disp = val
			limit := 2
			if bits == 32 {
				limit = 4
			}
			if !cpu.FitsUnsigned(val, limit) && !cpu.FitsSigned(val, limit) {
				return nil, newError(ErrDisplacementExceedingByteSize, &loc,
					"addr", strconv.FormatInt(val, 10), "size", strconv.Itoa(limit))
			}
			m.DispSize = numberSize(val)
			m.SignedDispSize = signedSize(val)
		}
	}

	return m, nil
}

// validateRegisters enforces the mode's addressing rules.
func (m *MemAddress) validateRegisters(bits int, loc *Location) *Error {
	regs := []*cpu.Register{m.Base, m.Index}
	size := 0
	for _, r := range regs {
		if r == nil {
			continue
		}
		if r.Segment || r.X87 || r.Size == 1 {
			return newError(ErrIncorrectMemExpression, loc, "expr", r.Name)
		}
		if size == 0 {
			size = r.Size
		} else if size != r.Size {
			return newError(ErrImpossibleMemReg, loc, "regs", m.Base.Name+"+"+m.Index.Name)
		}
	}

	if bits == 16 {
		if size == 4 || m.Scale != 1 {
			return newError(ErrScaleIndexIsUnsupportedInMode, loc, "bits", "16")
		}
	} else if size == 2 {
		return newError(ErrImpossibleMemReg, loc, "regs", "16-bit registers in 32-bit mode")
	}
	if m.Scale != 1 && m.Index == nil {
		return newError(ErrIncorrectScaleMemParams, loc, "reg", "")
	}
	return nil
}

// splitMemTerms splits at top-level + and -.
func splitMemTerms(toks []Token) []memTerm {
	var terms []memTerm
	cur := memTerm{}
	depth := 0
	for _, t := range toks {
		switch t.Type {
		case TokLParen:
			depth++
		case TokRParen:
			depth--
		case TokPlus, TokMinus:
			if depth == 0 && len(cur.toks) > 0 {
				terms = append(terms, cur)
				cur = memTerm{neg: t.Type == TokMinus}
				continue
			}
			if depth == 0 && len(cur.toks) == 0 {
				// Sign prefix on the first term.
				cur.neg = cur.neg != (t.Type == TokMinus)
				continue
			}
		}
		cur.toks = append(cur.toks, t)
	}
	if len(cur.toks) > 0 {
		terms = append(terms, cur)
	}
	return terms
}

type memTermKind int

const (
	termRegister memTermKind = iota
	termScaled
	termDisplacement
)

// classifyMemTerm decides whether a term is a bare register, a reg*num
// scale pair, or part of the displacement.
func classifyMemTerm(term memTerm) (*cpu.Register, int64, memTermKind, *Error) {
	toks := term.toks

	if len(toks) == 1 && toks[0].Type == TokKeyword {
		if reg, ok := cpu.LookupRegister(toks[0].Text); ok {
			return &reg, 0, termRegister, nil
		}
	}

	// reg*num or num*reg.
	if len(toks) == 3 && toks[1].Type == TokMul {
		l, r := toks[0], toks[2]
		if l.Type == TokNumber && r.Type == TokKeyword {
			l, r = r, l
		}
		if l.Type == TokKeyword && r.Type == TokNumber {
			if reg, ok := cpu.LookupRegister(l.Text); ok {
				n, err := parseNumber(r.Text, r.Loc)
				if err != nil {
					return nil, 0, 0, err
				}
				return &reg, n, termScaled, nil
			}
		}
	}

	// A register buried anywhere else in a term is malformed.
	for _, t := range toks {
		if t.Type == TokKeyword && cpu.IsRegister(t.Text) && !strings.HasPrefix(t.Text, "$") {
			return nil, 0, 0, newError(ErrIncorrectMemExpression, &t.Loc, "expr", exprText(toks))
		}
	}
	return nil, 0, termDisplacement, nil
}
