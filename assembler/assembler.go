package assembler

import (
	"strconv"
	"strings"

	"github.com/Urethramancer/x86/cpu"
)

// Assembler holds the state for the assembly process. The schema registry
// is shared and immutable; everything else belongs to one Assemble call.
type Assembler struct {
	// MaxPasses bounds the relayout loop of the second pass.
	MaxPasses int
	// Target is the most recent processor family encodings may require.
	Target cpu.Family

	symbols map[string]int64
	errs    ErrorList
}

// New creates a new Assembler instance.
func New() *Assembler {
	return &Assembler{
		MaxPasses: 4,
		Target:    cpu.I486,
		symbols:   make(map[string]int64),
	}
}

// Result is the outcome of a successful assembly.
type Result struct {
	// Image is the flat machine-code image, origin-relative and gap-free.
	Image []byte
	// Origin is the org base address, 0 when never set.
	Origin uint32
	// Labels maps every label, local ones in parent.local form, to its
	// absolute address.
	Labels map[string]uint32
	// Passes is the number of relayout passes the second stage used.
	Passes int
}

// labelEntry tracks a label's address and its definition position, so
// relayout shifts only the labels defined after the resized blob.
type labelEntry struct {
	addr int64
	pos  int
}

// layout is the working state of one compile: the ordered offset map and
// the label map.
type layout struct {
	blobs     []*blob
	labels    map[string]*labelEntry
	origin    int64
	originSet bool
	bits      int
}

// Assemble takes NASM-syntax x86 assembly and returns the flat image with
// its label map. On failure the returned error is an ErrorList.
func (asm *Assembler) Assemble(src string) (*Result, error) {
	asm.errs = nil
	asm.symbols = make(map[string]int64)

	nodes, perr := asm.parseSource(src)
	if perr != nil {
		return nil, ErrorList{perr}
	}

	lay := &layout{labels: make(map[string]*labelEntry), bits: 16}
	asm.firstPass(lay, nodes)
	if len(asm.errs) > 0 {
		return nil, asm.errs
	}

	res, perr := asm.secondPass(lay)
	if perr != nil {
		asm.errs = append(asm.errs, perr)
		return nil, asm.errs
	}
	return res, nil
}

// partialResolver answers equ symbols and the position keywords only; label
// lookups miss, which keeps first-pass encodings pessimistic.
func (asm *Assembler) partialResolver(lay *layout, addr int64) resolver {
	return func(name string) (int64, bool) {
		switch name {
		case "$":
			return addr, true
		case "$$":
			return lay.origin, true
		}
		v, ok := asm.symbols[name]
		return v, ok
	}
}

// fullResolver additionally answers labels; installed from the second pass
// on.
func (asm *Assembler) fullResolver(lay *layout, addr int64) resolver {
	return func(name string) (int64, bool) {
		switch name {
		case "$":
			return addr, true
		case "$$":
			return lay.origin, true
		}
		if e, ok := lay.labels[name]; ok {
			return e.addr, true
		}
		v, ok := asm.symbols[name]
		return v, ok
	}
}

// firstPass walks the AST with an address cursor, assigning provisional
// addresses and pessimistic encodings. Errors accumulate per node.
func (asm *Assembler) firstPass(lay *layout, nodes []*Node) {
	cursor := int64(0)

	for _, n := range nodes {
		switch n.Type {
		case NodeOption:
			if err := asm.applyOption(lay, n, &cursor); err != nil {
				asm.errs = append(asm.errs, err)
			}

		case NodeLabel:
			if _, ok := lay.labels[n.Label]; ok {
				asm.errs = append(asm.errs, newError(ErrLabelAlreadyDefined, &n.Loc, "label", n.Label))
				continue
			}
			lay.labels[n.Label] = &labelEntry{addr: cursor, pos: len(lay.blobs)}

		case NodeEqu:
			val, resolved, err := evalExpr(n.EquToks, asm.partialResolver(lay, cursor))
			if err != nil {
				asm.errs = append(asm.errs, err)
				continue
			}
			if !resolved {
				asm.errs = append(asm.errs, newError(ErrIncorrectExpression, &n.Loc, "expr", exprText(n.EquToks)))
				continue
			}
			asm.symbols[strings.ToLower(n.EquName)] = val

		case NodeDefine:
			bin, unres, err := encodeDefine(n, asm.partialResolver(lay, cursor), false)
			if err != nil {
				asm.errs = append(asm.errs, err)
				continue
			}
			lay.blobs = append(lay.blobs, &blob{kind: blobData, addr: cursor, node: n, bits: lay.bits, bin: bin, unresolved: unres})
			cursor += int64(len(bin))

		case NodeTimes:
			lay.blobs = append(lay.blobs, &blob{kind: blobTimes, addr: cursor, node: n, bits: lay.bits})

		case NodeInstruction:
			bin, unres, err := asm.encodeInstructionNode(n, asm.partialResolver(lay, cursor), cursor, lay.bits, false)
			if err != nil {
				asm.errs = append(asm.errs, err)
				continue
			}
			lay.blobs = append(lay.blobs, &blob{kind: blobInstruction, addr: cursor, node: n, bits: lay.bits, bin: bin, unresolved: unres})
			cursor += int64(len(bin))
		}
	}
}

// applyOption handles org and bits.
func (asm *Assembler) applyOption(lay *layout, n *Node, cursor *int64) *Error {
	switch n.OptName {
	case "org":
		if lay.originSet {
			return newError(ErrOriginRedefined, &n.Loc)
		}
		val, resolved, err := evalExpr(n.OptToks, asm.partialResolver(lay, *cursor))
		if err != nil {
			return err
		}
		if !resolved {
			return newError(ErrIncorrectExpression, &n.Loc, "expr", exprText(n.OptToks))
		}
		limit := int64(0xFFFF)
		if lay.bits == 32 {
			limit = 0xFFFFFFFF
		}
		if val < 0 || val > limit {
			return newError(ErrIncorrectExpression, &n.Loc, "expr", exprText(n.OptToks))
		}
		lay.origin = val
		lay.originSet = true
		*cursor = val
		return nil

	case "bits":
		val, resolved, err := evalExpr(n.OptToks, nil)
		if err != nil {
			return err
		}
		if !resolved || (val != 16 && val != 32) {
			return newError(ErrUnsupportedCompilerMode, &n.Loc, "mode", exprText(n.OptToks))
		}
		lay.bits = int(val)
		return nil
	}
	return newError(ErrUnknownOperation, &n.Loc, "op", n.OptName)
}

// encodeInstructionNode runs operand parsing, schema search and encoding
// for one instruction. The unresolved result marks blobs the second pass
// must revisit; branch targets always are, since every relayout can move
// them.
func (asm *Assembler) encodeInstructionNode(n *Node, rv resolver, addr int64, bits int, final bool) ([]byte, bool, *Error) {
	args, err := asm.parseOperands(n, rv, bits)
	if err != nil {
		return nil, false, err
	}
	n.Args = args

	ctx := &matchContext{bits: bits, target: asm.Target, addr: addr, rv: rv, final: final, branch: n.Branch}
	s, err := findSchema(n, args, ctx)
	if err != nil {
		return nil, false, err
	}
	bin, err := encodeInstruction(n, s, args, ctx)
	if err != nil {
		return nil, false, err
	}

	unresolved := isJumpOp(n.Opcode)
	for i := range args {
		if !args[i].isResolved() {
			unresolved = true
		}
	}
	return bin, unresolved, nil
}

// secondPass expands times blobs, re-encodes label-dependent blobs with the
// real resolver and shrinks until the layout reaches a fixpoint or the pass
// budget runs out.
func (asm *Assembler) secondPass(lay *layout) (*Result, *Error) {
	for pass := 1; pass <= asm.MaxPasses; pass++ {
		needsPass := false
		restart := false

		for i := 0; i < len(lay.blobs); i++ {
			b := lay.blobs[i]

			if b.kind == blobTimes {
				if err := asm.expandTimes(lay, i); err != nil {
					return nil, err
				}
				// Every following address shifted; restart the pass.
				restart = true
				break
			}

			if !b.unresolved {
				continue
			}
			rv := asm.fullResolver(lay, b.addr)
			var bin []byte
			var unres bool
			var err *Error
			if b.kind == blobInstruction {
				bin, unres, err = asm.encodeInstructionNode(b.node, rv, b.addr, b.bits, true)
			} else {
				bin, unres, err = encodeDefine(b.node, rv, true)
			}
			if err != nil {
				return nil, err
			}
			lay.blobs[i] = &blob{kind: b.kind, addr: b.addr, node: b.node, bits: b.bits, bin: bin, unresolved: unres}
			if delta := int64(len(bin) - len(b.bin)); delta != 0 {
				shiftAfter(lay, i, delta)
				needsPass = true
			}
		}

		if restart {
			continue
		}
		if !needsPass {
			return buildResult(lay, pass), nil
		}
	}
	return nil, newError(ErrUnableToCompileFile, nil, "passes", strconv.Itoa(asm.MaxPasses))
}

// shiftAfter moves every blob after index i, and every label defined after
// it, by delta bytes.
func shiftAfter(lay *layout, i int, delta int64) {
	for j := i + 1; j < len(lay.blobs); j++ {
		lay.blobs[j].addr += delta
	}
	for _, e := range lay.labels {
		if e.pos > i {
			e.addr += delta
		}
	}
}

// expandTimes evaluates the repeat count and splices the expanded clones in
// place of the times blob.
func (asm *Assembler) expandTimes(lay *layout, i int) *Error {
	b := lay.blobs[i]
	n := b.node

	count, resolved, err := evalExpr(n.CountToks, asm.fullResolver(lay, b.addr))
	if err != nil {
		return err
	}
	if !resolved {
		return newError(ErrUnknownLabel, &n.Loc, "label", unknownName(n.CountToks, asm.fullResolver(lay, b.addr)))
	}
	if count < 0 {
		return newError(ErrIncorrectTimesValue, &n.Loc, "value", strconv.FormatInt(count, 10))
	}

	switch n.Body.Type {
	case NodeInstruction, NodeDefine, NodeTimes:
	default:
		return newError(ErrUnpermittedNodeInPostprocessMode, &n.Loc, "node", "directive")
	}

	var clones []*blob
	cursor := b.addr
	for k := int64(0); k < count; k++ {
		body := cloneNode(n.Body)
		switch body.Type {
		case NodeTimes:
			clones = append(clones, &blob{kind: blobTimes, addr: cursor, node: body, bits: b.bits})

		case NodeDefine:
			bin, unres, derr := encodeDefine(body, asm.fullResolver(lay, cursor), false)
			if derr != nil {
				return derr
			}
			clones = append(clones, &blob{kind: blobData, addr: cursor, node: body, bits: b.bits, bin: bin, unresolved: unres})
			cursor += int64(len(bin))

		case NodeInstruction:
			bin, unres, ierr := asm.encodeInstructionNode(body, asm.fullResolver(lay, cursor), cursor, b.bits, false)
			if ierr != nil {
				return ierr
			}
			clones = append(clones, &blob{kind: blobInstruction, addr: cursor, node: body, bits: b.bits, bin: bin, unresolved: unres})
			cursor += int64(len(bin))
		}
	}

	delta := cursor - b.addr
	grown := len(clones) - 1

	for j := i + 1; j < len(lay.blobs); j++ {
		lay.blobs[j].addr += delta
	}
	for _, e := range lay.labels {
		if e.pos > i {
			e.addr += delta
			e.pos += grown
		}
	}

	spliced := make([]*blob, 0, len(lay.blobs)+grown)
	spliced = append(spliced, lay.blobs[:i]...)
	spliced = append(spliced, clones...)
	spliced = append(spliced, lay.blobs[i+1:]...)
	lay.blobs = spliced
	return nil
}

// cloneNode copies a node so repeat expansion never shares mutable state
// between clones.
func cloneNode(n *Node) *Node {
	c := *n
	return &c
}

// buildResult concatenates the stable blobs into the final image.
func buildResult(lay *layout, passes int) *Result {
	res := &Result{
		Origin: uint32(lay.origin),
		Passes: passes,
		Labels: make(map[string]uint32, len(lay.labels)),
	}
	for name, e := range lay.labels {
		res.Labels[name] = uint32(e.addr)
	}
	for _, b := range lay.blobs {
		res.Image = append(res.Image, b.bin...)
	}
	return res
}
