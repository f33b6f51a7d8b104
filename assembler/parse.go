package assembler

import (
	"regexp"
	"strings"
)

// dataDefs maps define directives to their element sizes.
var dataDefs = map[string]int{
	"db": 1,
	"dw": 2,
	"dd": 4,
}

var defineRe = regexp.MustCompile(`(?m)^\s*%define\s+(\S+)\s+(.*)$`)

// preprocess expands %define substitutions. Macros and conditionals are the
// preprocessor's concern, not the core's; only plain defines are handled.
func preprocess(src string) string {
	defs := defineRe.FindAllStringSubmatch(src, -1)
	src = defineRe.ReplaceAllString(src, "")
	for _, d := range defs {
		name, value := d[1], strings.TrimSpace(d[2])
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
		src = re.ReplaceAllString(src, value)
	}
	return src
}

// parseSource turns source text into AST nodes. Local label names (leading
// dot) are qualified with the most recent non-local label, both at their
// definitions and at their uses.
func (asm *Assembler) parseSource(src string) ([]*Node, *Error) {
	toks, err := tokenize(preprocess(src))
	if err != nil {
		return nil, err
	}

	var nodes []*Node
	parent := ""

	line := make([]Token, 0, 16)
	for _, t := range toks {
		if t.Type != TokEOL && t.Type != TokEOF {
			line = append(line, t)
			continue
		}
		for len(line) > 0 {
			rest, node, perr := parseStatement(line, &parent)
			if perr != nil {
				return nil, perr
			}
			if node != nil {
				nodes = append(nodes, node)
			}
			if len(rest) == len(line) {
				break
			}
			line = rest
		}
		line = line[:0]
	}
	return nodes, nil
}

// parseStatement consumes one statement from the line and returns the
// remaining tokens, so "label: instr" parses as two nodes.
func parseStatement(line []Token, parent *string) ([]Token, *Node, *Error) {
	if len(line) == 0 {
		return nil, nil, nil
	}
	loc := line[0].Loc

	// Bracketed compiler option: [bits 16], [org 0x7C00].
	if line[0].Type == TokBracketOpen {
		if line[len(line)-1].Type != TokBracketClose || len(line) < 3 || line[1].Type != TokKeyword {
			return nil, nil, newError(ErrSyntaxError, &loc, "near", exprText(line))
		}
		name := strings.ToLower(line[1].Text)
		return nil, &Node{Type: NodeOption, Loc: loc, OptName: name, OptToks: line[2 : len(line)-1]}, nil
	}

	if line[0].Type != TokKeyword {
		return nil, nil, newError(ErrSyntaxError, &loc, "near", exprText(line))
	}
	first := strings.ToLower(line[0].Text)

	// Label definition.
	if len(line) > 1 && line[1].Type == TokColon {
		name, err := qualifyLabel(first, parent, &loc, true)
		if err != nil {
			return nil, nil, err
		}
		return line[2:], &Node{Type: NodeLabel, Loc: loc, Label: name}, nil
	}

	// name equ expr
	if len(line) > 1 && line[1].Type == TokKeyword && strings.ToLower(line[1].Text) == "equ" {
		if len(line) < 3 {
			return nil, nil, newError(ErrIncorrectEquArgsCount, &loc)
		}
		return nil, &Node{Type: NodeEqu, Loc: loc, EquName: first, EquToks: qualifyTokens(line[2:], *parent)}, nil
	}

	switch first {
	case "org", "bits":
		return nil, &Node{Type: NodeOption, Loc: loc, OptName: first, OptToks: line[1:]}, nil

	case "times":
		count, body, err := splitTimes(line[1:])
		if err != nil {
			return nil, nil, err
		}
		_, inner, perr := parseStatement(body, parent)
		if perr != nil {
			return nil, nil, perr
		}
		if inner == nil {
			return nil, nil, newError(ErrSyntaxError, &loc, "near", "times")
		}
		return nil, &Node{Type: NodeTimes, Loc: loc, CountToks: qualifyTokens(count, *parent), Body: inner}, nil
	}

	if size, ok := dataDefs[first]; ok {
		items := splitAtCommas(qualifyTokens(line[1:], *parent))
		if len(items) == 0 {
			return nil, nil, newError(ErrSyntaxError, &loc, "near", first)
		}
		return nil, &Node{Type: NodeDefine, Loc: loc, ElemSize: size, Items: items}, nil
	}

	// Instruction, with optional lock/rep prefixes.
	var prefixes []string
	rest := line
	for len(rest) > 1 && rest[0].Type == TokKeyword {
		word := strings.ToLower(rest[0].Text)
		if !isInstructionPrefix(word) {
			break
		}
		prefixes = append(prefixes, word)
		rest = rest[1:]
	}
	if rest[0].Type != TokKeyword {
		return nil, nil, newError(ErrSyntaxError, &loc, "near", exprText(line))
	}
	n := &Node{
		Type:     NodeInstruction,
		Loc:      loc,
		Opcode:   strings.ToLower(rest[0].Text),
		Prefixes: prefixes,
		ArgToks:  splitAtCommas(qualifyTokens(rest[1:], *parent)),
	}
	return nil, n, nil
}

// qualifyLabel resolves a possibly-local label name against the current
// parent. Definitions of non-local labels update the parent.
func qualifyLabel(name string, parent *string, loc *Location, define bool) (string, *Error) {
	if strings.HasPrefix(name, ".") {
		if *parent == "" {
			return "", newError(ErrMissingParentLabel, loc, "label", name)
		}
		return *parent + name, nil
	}
	if define {
		*parent = name
	}
	return name, nil
}

// qualifyTokens rewrites local-label references in an operand span.
func qualifyTokens(toks []Token, parent string) []Token {
	if parent == "" {
		return toks
	}
	out := make([]Token, len(toks))
	copy(out, toks)
	for i := range out {
		if out[i].Type == TokKeyword && strings.HasPrefix(out[i].Text, ".") {
			out[i].Text = parent + out[i].Text
		}
	}
	return out
}

// splitTimes separates the repeat-count expression from the repeated
// statement: the body starts at the first keyword that names an operation.
func splitTimes(toks []Token) (count, body []Token, err *Error) {
	for i, t := range toks {
		if t.Type != TokKeyword {
			continue
		}
		word := strings.ToLower(t.Text)
		_, isOp := registry[word]
		_, isData := dataDefs[word]
		if isOp || isData || word == "times" || word == "org" || word == "bits" || isInstructionPrefix(word) {
			if i == 0 {
				return nil, nil, newError(ErrIncorrectTimesValue, &t.Loc, "value", "")
			}
			return toks[:i], toks[i:], nil
		}
	}
	if len(toks) == 0 {
		return nil, nil, newError(ErrIncorrectTimesValue, nil, "value", "")
	}
	return nil, nil, newError(ErrSyntaxError, &toks[0].Loc, "near", "times")
}

// splitAtCommas splits a span at top-level commas.
func splitAtCommas(toks []Token) [][]Token {
	var out [][]Token
	depth := 0
	last := 0
	for i, t := range toks {
		switch t.Type {
		case TokBracketOpen, TokLParen:
			depth++
		case TokBracketClose, TokRParen:
			depth--
		case TokComma:
			if depth == 0 {
				out = append(out, toks[last:i])
				last = i + 1
			}
		}
	}
	if last < len(toks) {
		out = append(out, toks[last:])
	}
	return out
}

func isInstructionPrefix(word string) bool {
	switch word {
	case "lock", "rep", "repe", "repz", "repne", "repnz":
		return true
	}
	return false
}
