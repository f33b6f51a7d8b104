package assembler

// NodeType defines the type of an assembly node.
type NodeType int

const (
	// NodeInstruction is a machine instruction.
	NodeInstruction NodeType = iota
	// NodeLabel defines a label at the current address.
	NodeLabel
	// NodeDefine is a db/dw/dd data definition.
	NodeDefine
	// NodeOption is a compiler option: org or bits.
	NodeOption
	// NodeTimes repeats an inner node.
	NodeTimes
	// NodeEqu binds a constant symbol.
	NodeEqu
)

// BranchType is the branch-addressing hint given before a jump target.
type BranchType int

const (
	// BranchNone means no hint was written.
	BranchNone BranchType = iota
	// BranchShort forces an 8-bit relative form.
	BranchShort
	// BranchNear forces a 16-bit relative or near-indirect form.
	BranchNear
	// BranchFar selects a segment:offset form.
	BranchFar
)

// Node represents one parsed element from the assembly source.
type Node struct {
	Type NodeType
	Loc  Location

	// Label name, for NodeLabel.
	Label string

	// Instruction fields.
	Opcode   string
	Prefixes []string
	Branch   BranchType
	ArgToks  [][]Token // raw operand token spans, split at top-level commas
	Args     []Operand // filled by operand parsing each pass

	// Define fields.
	ElemSize int       // 1, 2 or 4
	Items    [][]Token // one span per comma-separated element

	// Option fields (org/bits).
	OptName string
	OptToks []Token

	// Times fields.
	CountToks []Token
	Body      *Node

	// Equ fields.
	EquName string
	EquToks []Token
}

// blobKind tags the entries of the layout's offset map.
type blobKind int

const (
	blobInstruction blobKind = iota
	blobData
	blobTimes
)

// blob is one emitted span of the image. A re-encoded blob is replaced by a
// new one; relayout shifts the addresses of the existing blobs in place.
type blob struct {
	kind blobKind
	addr int64
	node *Node
	bits int // operand-size mode active when the blob was laid out
	bin  []byte

	// unresolved marks blobs whose encoding referenced a label and must be
	// re-encoded once the resolver is available.
	unresolved bool
}
