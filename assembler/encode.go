package assembler

import (
	"strconv"
	"strings"

	"github.com/Urethramancer/x86/cpu"
)

// chooseDispSize picks the displacement width a memory operand encodes
// with. Unresolved displacements get the pessimistic width so the first
// pass over-allocates rather than under-allocates.
func chooseDispSize(m *MemAddress, bits int) int {
	wide := 2
	if bits == 32 {
		wide = 4
	}
	if m.Base == nil && m.Index == nil {
		return wide
	}
	if bits == 32 && m.Base == nil {
		// SIB with no base always carries a disp32.
		return 4
	}
	if m.Unresolved {
		return wide
	}
	if !m.HasDisp || m.Disp == 0 {
		// [bp] has no zero-mod row; it is encoded with a zero disp8.
		if bits == 16 && m.Base != nil && m.Base.Name == "bp" && m.Index == nil {
			return 1
		}
		if bits == 32 && m.Base != nil && m.Base.Name == "ebp" {
			return 1
		}
		return 0
	}
	if cpu.FitsSigned(m.Disp, 1) {
		return 1
	}
	return wide
}

// memNeedsSIB reports whether a 32-bit memory operand requires a SIB byte.
func memNeedsSIB(m *MemAddress) bool {
	if m.Index != nil || m.Scale != 1 {
		return true
	}
	return m.Base != nil && m.Base.Name == "esp"
}

// segOverride returns the segment-override prefix byte for the operand
// list, or ok=false when none is needed.
func segOverride(args []Operand) (b byte, ok bool, err *Error) {
	var chosen string
	var base string
	for i := range args {
		if args[i].Kind != OpMemory || args[i].Mem == nil || args[i].Mem.SReg == nil {
			continue
		}
		name := args[i].Mem.SReg.Name
		if chosen != "" && chosen != name {
			return 0, false, newError(ErrConflictSregOverride, &args[i].Loc)
		}
		chosen = name
		if args[i].Mem.Base != nil {
			base = args[i].Mem.Base.Name
		}
	}
	if chosen == "" || chosen == cpu.DefaultSegment(base) {
		return 0, false, nil
	}
	p, found := cpu.SegmentPrefixes[chosen]
	if !found {
		return 0, false, newError(ErrIncorrectSregOverride, nil, "reg", chosen)
	}
	return p, true, nil
}

// size computes the encoded byte length of the schema for this instruction,
// including prefixes. The relative-offset atoms need it before the bytes
// exist.
func (s *Schema) size(n *Node, args []Operand, ctx *matchContext) int {
	total := len(n.Prefixes)
	if _, ok, _ := segOverride(args); ok {
		total++
	}
	if s.OpSize == 4 && ctx.bits == 16 || s.OpSize == 2 && ctx.bits == 32 {
		total++
	}

	var mem *MemAddress
	for i := range args {
		if args[i].Kind == OpMemory && args[i].Mem != nil {
			mem = args[i].Mem
		}
	}
	dispSize := 0
	rmIsMem := false
	if s.RM >= 0 && s.RM < len(args) && args[s.RM].Kind == OpMemory && mem != nil {
		rmIsMem = true
		dispSize = chooseDispSize(mem, ctx.bits)
	}
	if s.Moffset {
		dispSize = 2
		if ctx.bits == 32 {
			dispSize = 4
		}
	}

	for _, atom := range s.Template {
		switch {
		case atom == "mr" || strings.HasPrefix(atom, "/"):
			total++
			if rmIsMem && ctx.bits == 32 && memNeedsSIB(mem) {
				total++
			}
		case len(atom) == 2 && atom[0] == 'd' && atom[1] >= '0' && atom[1] <= '3':
			if int(atom[1]-'0') < dispSize {
				total++
			}
		default:
			total++
		}
	}
	return total
}

// encodeInstruction walks the schema's binary template and emits the
// instruction bytes.
func encodeInstruction(n *Node, s *Schema, args []Operand, ctx *matchContext) ([]byte, *Error) {
	var out []byte

	for _, p := range n.Prefixes {
		out = append(out, cpu.InstructionPrefixes[p])
	}
	if b, ok, err := segOverride(args); err != nil {
		return nil, err
	} else if ok {
		out = append(out, b)
	}
	if s.OpSize == 4 && ctx.bits == 16 || s.OpSize == 2 && ctx.bits == 32 {
		out = append(out, cpu.PrefixOpSize)
	}

	// Locate the operands the template atoms draw from.
	var mem *MemAddress
	var memOp *Operand
	var immOp *Operand
	var segOp *Operand
	for i := range args {
		switch args[i].Kind {
		case OpMemory:
			if mem == nil {
				mem = args[i].Mem
				memOp = &args[i]
			}
		case OpNumber, OpLabel:
			if immOp == nil {
				immOp = &args[i]
			}
		case OpSegMem:
			segOp = &args[i]
		}
	}

	if mem != nil && mem.Unresolved && ctx.final {
		return nil, newError(ErrUnknownLabel, &memOp.Loc, "label", unknownName(memOp.MemToks, ctx.rv))
	}

	dispSize := 0
	var dispVal int64
	if s.Moffset {
		if mem == nil {
			return nil, newError(ErrMissingMemArgDef, &n.Loc, "op", n.Opcode)
		}
		dispSize = 2
		if ctx.bits == 32 {
			dispSize = 4
		}
		dispVal = mem.Disp
	}

	immVal, immResolved := int64(0), false
	if immOp != nil {
		v, resolved, err := operandValue(immOp, ctx.rv)
		if err != nil {
			return nil, err
		}
		immVal, immResolved = v, resolved
		if !resolved && ctx.final {
			return nil, newError(ErrUnknownLabel, &immOp.Loc, "label", unknownName(immOp.Toks, ctx.rv))
		}
	}

	var segVal, offVal int64
	if segOp != nil {
		var err *Error
		segVal, offVal, err = segMemValues(segOp, ctx.rv, ctx.final)
		if err != nil {
			return nil, err
		}
	}

	total := int64(s.size(n, args, ctx))

	for _, atom := range s.Template {
		switch {
		case atom == "mr" || (len(atom) == 2 && atom[0] == '/' && atom[1] >= '0' && atom[1] <= '7'):
			regField := byte(0)
			if atom == "mr" {
				regField = otherRegister(s, args)
			} else {
				regField = atom[1] - '0'
			}
			bytes, disp, err := buildModRM(s, n, args, regField, ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, bytes...)
			dispSize = len(disp)
			if mem != nil && !s.Moffset {
				dispVal = mem.Disp
			}

		case len(atom) == 2 && atom[0] == 'i' && atom[1] >= '0' && atom[1] <= '3':
			if immOp == nil {
				return nil, newError(ErrMissingImmArgDef, &n.Loc, "op", n.Opcode)
			}
			out = append(out, byte(uint64(immVal)>>(8*uint(atom[1]-'0'))))

		case len(atom) == 2 && atom[0] == 'd' && atom[1] >= '0' && atom[1] <= '3':
			idx := int(atom[1] - '0')
			if idx < dispSize {
				if mem == nil {
					return nil, newError(ErrMissingMemArgDef, &n.Loc, "op", n.Opcode)
				}
				out = append(out, byte(uint64(dispVal)>>(8*uint(idx))))
			}

		case atom == "r0" || atom == "r1":
			if immOp == nil {
				return nil, newError(ErrMissingImmArgDef, &n.Loc, "op", n.Opcode)
			}
			rel := int64(0)
			if immResolved {
				rel = immVal - (ctx.addr + total)
				if !cpu.FitsSigned(rel, relWidth(s.Template)) {
					return nil, newError(ErrDisplacementExceedingByteSize, &immOp.Loc,
						"addr", strconv.FormatInt(immVal, 10),
						"size", strconv.Itoa(relWidth(s.Template)))
				}
			}
			out = append(out, byte(uint64(rel)>>(8*uint(atom[1]-'0'))))

		case len(atom) == 2 && atom[0] == 'o' && atom[1] >= '0' && atom[1] <= '3':
			if segOp == nil {
				return nil, newError(ErrMissingImmArgDef, &n.Loc, "op", n.Opcode)
			}
			out = append(out, byte(uint64(offVal)>>(8*uint(atom[1]-'0'))))

		case atom == "s0" || atom == "s1":
			if segOp == nil {
				return nil, newError(ErrMissingImmArgDef, &n.Loc, "op", n.Opcode)
			}
			out = append(out, byte(uint64(segVal)>>(8*uint(atom[1]-'0'))))

		case strings.HasSuffix(atom, "+r") || strings.HasSuffix(atom, "+i"):
			// Opcode with the register index added: b8+r, c0+i.
			v, err := strconv.ParseUint(atom[:len(atom)-2], 16, 8)
			if err != nil {
				return nil, newError(ErrUnknownBinarySchemaDef, &n.Loc, "atom", atom)
			}
			idx, found := genericRegIndex(s, args, atom[len(atom)-1] == 'i')
			if !found {
				return nil, newError(ErrUnknownBinarySchemaDef, &n.Loc, "atom", atom)
			}
			out = append(out, byte(v)+idx)

		default:
			// A literal byte. The lowercase forms d0-d3 belong to the
			// displacement atoms above; templates spell those opcodes D0-D3.
			v, err := strconv.ParseUint(atom, 16, 8)
			if err != nil {
				return nil, newError(ErrUnknownBinarySchemaDef, &n.Loc, "atom", atom)
			}
			out = append(out, byte(v))
		}
	}

	return out, nil
}

// genericRegIndex finds the operand matched by a generic register matcher,
// whose index an opcode+reg atom absorbs. Specific-register matchers (the
// ax in "xchg ax, r16") are skipped.
func genericRegIndex(s *Schema, args []Operand, x87 bool) (byte, bool) {
	for i := range args {
		if args[i].Kind != OpRegister {
			continue
		}
		switch s.Args[i].Kind {
		case matchR8, matchR16, matchR32:
			if !x87 {
				return args[i].Reg.Index, true
			}
		case matchSTi:
			if x87 {
				return args[i].Reg.Index, true
			}
		}
	}
	return 0, false
}

// relWidth counts the relative-offset bytes a template emits.
func relWidth(template []string) int {
	n := 0
	for _, atom := range template {
		if atom == "r0" || atom == "r1" {
			n++
		}
	}
	return n
}

// otherRegister finds the register operand that fills ModR/M's reg field.
func otherRegister(s *Schema, args []Operand) byte {
	for i := range args {
		if i == s.RM {
			continue
		}
		if args[i].Kind == OpRegister {
			return args[i].Reg.Index
		}
	}
	return 0
}

// buildModRM assembles the ModR/M byte (plus SIB in 32-bit mode) and the
// displacement bytes for the schema's rm operand.
func buildModRM(s *Schema, n *Node, args []Operand, regField byte, ctx *matchContext) (bytes, disp []byte, err *Error) {
	if s.RM < 0 || s.RM >= len(args) {
		return nil, nil, newError(ErrMissingRMByteDef, &n.Loc, "op", n.Opcode)
	}
	rm := &args[s.RM]

	if rm.Kind == OpRegister {
		return []byte{cpu.ModRM(3, regField, rm.Reg.Index)}, nil, nil
	}
	if rm.Kind != OpMemory || rm.Mem == nil {
		return nil, nil, newError(ErrMissingMemArgDef, &n.Loc, "op", n.Opcode)
	}
	m := rm.Mem
	dispSize := chooseDispSize(m, ctx.bits)

	baseName, indexName := "", ""
	if m.Base != nil {
		baseName = m.Base.Name
	}
	if m.Index != nil {
		indexName = m.Index.Name
	}

	if ctx.bits == 16 {
		mod, rmBits, ok := cpu.ModRM16(baseName, indexName, dispSize)
		if !ok {
			return nil, nil, newError(ErrInvalidAddressingMode, &rm.Loc, "mode", exprText(rm.MemToks))
		}
		return []byte{cpu.ModRM(mod, regField, rmBits)}, cpu.AppendLE(nil, uint64(m.Disp), dispSize), nil
	}

	// 32-bit mode.
	if !memNeedsSIB(m) {
		mod, rmBits, ok := cpu.ModRM32(baseName, dispSize)
		if !ok {
			return nil, nil, newError(ErrInvalidAddressingMode, &rm.Loc, "mode", exprText(rm.MemToks))
		}
		return []byte{cpu.ModRM(mod, regField, rmBits)}, cpu.AppendLE(nil, uint64(m.Disp), dispSize), nil
	}

	sib, ok := cpu.SIB(m.Scale, indexName, baseName)
	if !ok {
		return nil, nil, newError(ErrInvalidAddressingMode, &rm.Loc, "mode", exprText(rm.MemToks))
	}
	var mod byte
	switch {
	case m.Base == nil:
		// No base: mod=00 with a mandatory disp32.
		mod, dispSize = 0, 4
	case dispSize == 0:
		mod = 0
	case dispSize == 1:
		mod = 1
	default:
		mod, dispSize = 2, 4
	}
	return []byte{cpu.ModRM(mod, regField, 4), sib}, cpu.AppendLE(nil, uint64(m.Disp), dispSize), nil
}

// operandValue resolves a Number or expression operand. resolved=false with
// a nil error means the value waits for a later pass.
func operandValue(op *Operand, rv resolver) (int64, bool, *Error) {
	switch op.Kind {
	case OpNumber:
		return op.Value, true, nil
	case OpLabel:
		v, resolved, err := evalExpr(op.Toks, rv)
		if err != nil {
			return 0, false, err
		}
		return v, resolved, nil
	}
	return 0, false, nil
}

// segMemValues evaluates both halves of a segment:offset operand.
func segMemValues(op *Operand, rv resolver, final bool) (seg, off int64, err *Error) {
	seg, resolved, e := evalExpr(op.SegToks, rv)
	if e != nil {
		return 0, 0, e
	}
	if resolved && !cpu.FitsUnsigned(seg, 2) {
		return 0, 0, newError(ErrIncorrectSegmentMemArgSize, &op.Loc, "expr", exprText(op.SegToks))
	}
	if !resolved && final {
		return 0, 0, newError(ErrUnknownLabel, &op.Loc, "label", unknownName(op.SegToks, rv))
	}
	off, resolved, e = evalExpr(op.OffToks, rv)
	if e != nil {
		return 0, 0, e
	}
	if resolved && !cpu.FitsUnsigned(off, 2) && !cpu.FitsSigned(off, 2) {
		return 0, 0, newError(ErrOffsetMemArgSizeExceedingSize, &op.Loc, "expr", exprText(op.OffToks), "size", "2")
	}
	if !resolved && final {
		return 0, 0, newError(ErrUnknownLabel, &op.Loc, "label", unknownName(op.OffToks, rv))
	}
	return seg, off, nil
}

// unknownName finds the first name in a span the resolver cannot answer,
// for error messages.
func unknownName(toks []Token, rv resolver) string {
	for _, t := range toks {
		if t.Type != TokKeyword {
			continue
		}
		if cpu.IsRegister(t.Text) {
			continue
		}
		if rv != nil {
			if _, ok := rv(strings.ToLower(t.Text)); ok {
				continue
			}
		}
		return t.Text
	}
	return exprText(toks)
}
