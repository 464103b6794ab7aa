// Package lexer turns M68k assembly source text into a sequence of
// ParsedLines with typed operand trees. It performs no semantic
// judgement: malformed or unsupported operand syntax is preserved as
// an Other operand for the semantic checker to reject.
package lexer

import "github.com/m68kschool/interpreter/machine"

// LineKind classifies a single source line.
type LineKind uint8

const (
	KindEmpty LineKind = iota
	KindComment
	KindLabel
	KindDirective
	KindInstruction
	KindUnknown
)

// LexedLine is the syntactic content of one source line.
type LexedLine struct {
	Kind LineKind

	// KindLabel: the label name.
	// KindDirective/KindInstruction: non-empty when a label shares the
	// same physical line as the statement (e.g. "start: move.l #1,d0"),
	// binding that label to the statement's address.
	Label string

	// KindDirective
	DirectiveName string
	DirectiveArgs []string

	// KindInstruction
	Mnemonic string
	HasSize  bool
	Size     machine.Size
	Operands []LexedOperand

	// KindComment
	Comment string

	// KindUnknown
	Content string
}

// ParsedLine is one physical source line after lexing.
type ParsedLine struct {
	Raw       string
	LineIndex int
	Parsed    LexedLine
}

// OperandKind tags the shape of a LexedOperand.
type OperandKind uint8

const (
	OperandRegister OperandKind = iota
	OperandImmediate
	OperandAbsolute
	OperandLabel
	OperandPreIndirect             // -(An)
	OperandPostIndirect            // (An)+
	OperandIndirectOrDisplacement  // (An) or d(An)
	OperandIndirectBaseDisplacement // d(An,Xn.s)
	OperandOther
)

// IndexSpec describes the Xn.s index register term of a
// d(An,Xn.s) addressing mode.
type IndexSpec struct {
	Reg  machine.Register
	Size machine.Size
}

// LexedOperand is the purely syntactic parse of one operand. Exactly
// the fields relevant to Kind are populated; Raw always holds the
// original operand text.
type LexedOperand struct {
	Kind OperandKind
	Raw  string

	Reg machine.Register // OperandRegister

	Expr string // OperandImmediate, OperandAbsolute: unevaluated expression text

	Label string // OperandLabel

	Inner *LexedOperand // OperandPreIndirect, OperandPostIndirect: the wrapped An register operand

	Offset string        // OperandIndirectOrDisplacement, OperandIndirectBaseDisplacement: displacement expression text (may be empty)
	Base   *LexedOperand // OperandIndirectOrDisplacement, OperandIndirectBaseDisplacement: the An register operand
	Index  *IndexSpec    // OperandIndirectBaseDisplacement
}
