package assembler

import (
	"strconv"
	"strings"
)

// resolver maps a symbol or label name to its value. It returns false when
// the name is not (yet) known.
type resolver func(name string) (int64, bool)

// parseNumber converts a numeric literal. Accepted forms: decimal, 0x/0b
// prefixes and a trailing h for hex.
func parseNumber(text string, loc Location) (int64, *Error) {
	s := strings.ToLower(text)
	base := 10
	switch {
	case strings.HasPrefix(s, "0x"):
		s = s[2:]
		base = 16
	case strings.HasPrefix(s, "0b") && !strings.ContainsAny(s[2:], "abcdef"):
		s = s[2:]
		base = 2
	case strings.HasSuffix(s, "h"):
		s = s[:len(s)-1]
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, newError(ErrUnknownToken, &loc, "token", text)
	}
	return int64(v), nil
}

// packString packs a short quoted string into a little-endian integer, the
// way NASM treats character constants. Strings longer than 8 bytes do not
// fit.
func packString(s string) (int64, bool) {
	if len(s) > 8 {
		return 0, false
	}
	var v uint64
	for i := len(s) - 1; i >= 0; i-- {
		v = v<<8 | uint64(s[i])
	}
	return int64(v), true
}

// numberSize returns the byte size inferred from a value's magnitude.
func numberSize(v int64) int {
	switch {
	case v >= -128 && v <= 255:
		return 1
	case v >= -32768 && v <= 65535:
		return 2
	default:
		return 4
	}
}

// signedSize returns the byte size the value needs when stored signed.
func signedSize(v int64) int {
	switch {
	case v >= -128 && v <= 127:
		return 1
	case v >= -32768 && v <= 32767:
		return 2
	default:
		return 4
	}
}

// operator precedence for the shunting-yard conversion.
func precedence(t TokenType) int {
	switch t {
	case TokMul, TokDiv:
		return 2
	case TokPlus, TokMinus:
		return 1
	}
	return 0
}

// rpnAtom is one element of a converted expression: either a constant value
// or an operator.
type rpnAtom struct {
	op  TokenType // TokEOF for values
	val int64
}

// evalExpr folds a constant expression. Names are looked up through rv;
// when rv is nil or a name is missing the expression is unresolved, which
// is a recoverable outcome retried on a later pass, not a failure.
func evalExpr(toks []Token, rv resolver) (val int64, resolved bool, err *Error) {
	if len(toks) == 0 {
		return 0, false, newError(ErrIncorrectExpression, nil, "expr", "")
	}

	// Shunting-yard: values to the output queue, operators via the stack.
	var out []rpnAtom
	var ops []Token
	expectValue := true

	for _, t := range toks {
		switch t.Type {
		case TokNumber:
			v, perr := parseNumber(t.Text, t.Loc)
			if perr != nil {
				return 0, false, perr
			}
			out = append(out, rpnAtom{op: TokEOF, val: v})
			expectValue = false

		case TokQuote:
			v, ok := packString(t.Text)
			if !ok {
				return 0, false, newError(ErrOperandMustBeNumber, &t.Loc, "operand", t.Text)
			}
			out = append(out, rpnAtom{op: TokEOF, val: v})
			expectValue = false

		case TokKeyword:
			if rv == nil {
				return 0, false, nil
			}
			v, ok := rv(strings.ToLower(t.Text))
			if !ok {
				return 0, false, nil
			}
			out = append(out, rpnAtom{op: TokEOF, val: v})
			expectValue = false

		case TokMinus:
			if expectValue {
				// Unary minus: emit a zero operand and stack the subtraction
				// without popping, so it binds tighter than what surrounds it.
				out = append(out, rpnAtom{op: TokEOF, val: 0})
				ops = append(ops, t)
				continue
			}
			fallthrough
		case TokPlus, TokMul, TokDiv:
			if expectValue {
				return 0, false, newError(ErrIncorrectExpression, &t.Loc, "expr", exprText(toks))
			}
			for len(ops) > 0 && ops[len(ops)-1].Type != TokLParen &&
				precedence(ops[len(ops)-1].Type) >= precedence(t.Type) {
				out = append(out, rpnAtom{op: ops[len(ops)-1].Type})
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, t)
			expectValue = true

		case TokLParen:
			ops = append(ops, t)
			expectValue = true

		case TokRParen:
			for len(ops) > 0 && ops[len(ops)-1].Type != TokLParen {
				out = append(out, rpnAtom{op: ops[len(ops)-1].Type})
				ops = ops[:len(ops)-1]
			}
			if len(ops) == 0 {
				return 0, false, newError(ErrIncorrectExpression, &t.Loc, "expr", exprText(toks))
			}
			ops = ops[:len(ops)-1]
			expectValue = false

		default:
			return 0, false, newError(ErrIncorrectExpression, &t.Loc, "expr", exprText(toks))
		}
	}
	for len(ops) > 0 {
		top := ops[len(ops)-1]
		if top.Type == TokLParen {
			return 0, false, newError(ErrIncorrectExpression, &top.Loc, "expr", exprText(toks))
		}
		out = append(out, rpnAtom{op: top.Type})
		ops = ops[:len(ops)-1]
	}

	// Evaluate the RPN queue.
	var stack []int64
	for _, a := range out {
		if a.op == TokEOF {
			stack = append(stack, a.val)
			continue
		}
		if len(stack) < 2 {
			return 0, false, newError(ErrIncorrectExpression, &toks[0].Loc, "expr", exprText(toks))
		}
		b := stack[len(stack)-1]
		x := stack[len(stack)-2]
		stack = stack[:len(stack)-2]
		switch a.op {
		case TokPlus:
			stack = append(stack, x+b)
		case TokMinus:
			stack = append(stack, x-b)
		case TokMul:
			stack = append(stack, x*b)
		case TokDiv:
			if b == 0 {
				return 0, false, newError(ErrIncorrectExpression, &toks[0].Loc, "expr", exprText(toks))
			}
			stack = append(stack, x/b)
		}
	}
	if len(stack) != 1 {
		return 0, false, newError(ErrIncorrectExpression, &toks[0].Loc, "expr", exprText(toks))
	}
	return stack[0], true, nil
}

// exprText rebuilds a readable form of an expression span for messages.
func exprText(toks []Token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Text)
	}
	return b.String()
}
