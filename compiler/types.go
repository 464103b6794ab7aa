// Package compiler assigns addresses to labels and data, evaluates the
// expressions lexed operands carry, and emits a CompiledProgram: an
// instruction table keyed by address, a label/equ symbol table, and a
// sparse initial memory image. Grounded on the two-pass layout/codegen
// split used by text assemblers in this corpus, reworked so pass 2
// never emits machine code — only resolves operands into RuntimeOperand
// values the interpreter can act on directly.
package compiler

import (
	"github.com/m68kschool/interpreter/lexer"
	"github.com/m68kschool/interpreter/machine"
)

// EAMode tags how a RuntimeOperand's Indirect form computes its
// effective address.
type EAMode uint8

const (
	EAPlain EAMode = iota // (An) or d(An) or d(An,Xn)
	EAPre                 // -(An)
	EAPost                // (An)+
)

// RuntimeOperandKind tags a resolved operand.
type RuntimeOperandKind uint8

const (
	OpImmediate RuntimeOperandKind = iota
	OpRegister
	OpIndirect
	OpAbsolute
	OpAddress // a branch/subroutine target
	OpRegList // a MOVEM register list
)

// IndexSpec describes the Xn.s index term of an indexed operand.
type IndexSpec struct {
	Reg  machine.Register
	Size machine.Size
}

// RuntimeOperand is a fully resolved operand: every label and equ
// reference has been evaluated against the symbol table, so executing
// it never needs to re-consult compiler state.
type RuntimeOperand struct {
	Kind RuntimeOperandKind

	Immediate uint32 // OpImmediate

	Reg machine.Register // OpRegister, and the base register of OpIndirect

	Displacement int32      // OpIndirect
	Index        *IndexSpec // OpIndirect, optional
	Mode         EAMode     // OpIndirect

	Absolute uint32 // OpAbsolute, OpAddress

	RegMask uint16 // OpRegList: bits 0-7 are D0-D7, bits 8-15 are A0-A7

	Raw string // original source text, for diagnostics
}

// DecodedOp is one instruction ready to execute: a mnemonic, its
// effective size, and its resolved operands.
type DecodedOp struct {
	Mnemonic string
	Size     machine.Size
	Operands []RuntimeOperand
}

// InstructionLine binds a DecodedOp to its address and the source line
// it came from.
type InstructionLine struct {
	Op          DecodedOp
	Address     uint32
	LineIndex   int
	Source      string // the raw source line
	SourceLabel string // the label bound to this address, if any

	lexedOperands []lexer.LexedOperand // carried from layout to pass 2
}

// CompiledProgram is the compiler's output: an address-ordered
// instruction table, the resolved label/equ symbol table, and the
// sparse memory image laid out by dc/ds/dcb directives.
type CompiledProgram struct {
	Instructions []InstructionLine
	ByAddress    map[uint32]int // address -> index into Instructions
	Labels       map[string]uint32
	InitialMemory []MemoryRegion
}

// MemoryRegion is a contiguous run of initial memory content emitted
// by a data directive.
type MemoryRegion struct {
	Address uint32
	Bytes   []byte
}

// InstructionAt returns the instruction at addr, if any.
func (p *CompiledProgram) InstructionAt(addr uint32) (InstructionLine, bool) {
	idx, ok := p.ByAddress[addr]
	if !ok {
		return InstructionLine{}, false
	}
	return p.Instructions[idx], true
}

// NextAddress returns the address following the instruction at addr,
// or ok=false if addr is the last instruction (the program has
// "reached bottom").
func (p *CompiledProgram) NextAddress(addr uint32) (uint32, bool) {
	idx, ok := p.ByAddress[addr]
	if !ok || idx+1 >= len(p.Instructions) {
		return 0, false
	}
	return p.Instructions[idx+1].Address, true
}
