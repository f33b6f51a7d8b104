package assembler

import (
	"github.com/Urethramancer/x86/cpu"
)

// encodeDefine produces the bytes of a db/dw/dd node. Elements are either
// quoted strings, written out byte for byte and padded to the element size,
// or constant expressions stored little-endian. Before the final pass,
// expressions that reference an unknown name emit zero placeholders and
// flag the blob for a retry.
func encodeDefine(n *Node, rv resolver, final bool) (bin []byte, unresolved bool, err *Error) {
	for _, item := range n.Items {
		if len(item) == 0 {
			return nil, false, newError(ErrSyntaxError, &n.Loc, "near", "db")
		}
		if len(item) == 1 && item[0].Type == TokQuote {
			bin = append(bin, []byte(item[0].Text)...)
			for len(bin)%n.ElemSize != 0 {
				bin = append(bin, 0)
			}
			continue
		}
		val, resolved, e := evalExpr(item, rv)
		if e != nil {
			return nil, false, e
		}
		if !resolved {
			if final {
				return nil, false, newError(ErrUnknownLabel, &item[0].Loc, "label", unknownName(item, rv))
			}
			unresolved = true
			val = 0
		}
		bin = cpu.AppendLE(bin, uint64(val), n.ElemSize)
	}
	return bin, unresolved, nil
}
