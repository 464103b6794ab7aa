package compiler

import (
	"fmt"

	"github.com/m68kschool/interpreter/expr"
	"github.com/m68kschool/interpreter/lexer"
	"github.com/m68kschool/interpreter/machine"
	"github.com/m68kschool/interpreter/semantic"
)

// DefaultOrigin is the data layout cursor's starting address when the
// source has no org directive before its first data.
const DefaultOrigin = 0x1000

// InstructionStride is the fixed distance between consecutive
// instruction addresses. Instructions live in their own table, not in
// data memory, so the stride is a bookkeeping constant rather than an
// encoding size.
const InstructionStride = 4

// Error is a compilation failure bound to its source line. These are
// rare after a clean semantic check: the checker validates syntax and
// resolvability, so what remains is ordering problems such as a layout
// directive consuming a symbol that is only defined further down.
type Error struct {
	LineIndex int
	Line      string
	Message   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.LineIndex+1, e.Message)
}

// Compile lays out the lexed unit and emits a CompiledProgram. It
// assumes the semantic checker has already passed the unit; diagnostics
// it still produces are accumulated, not fail-fast, like the checker's.
func Compile(lines []lexer.ParsedLine) (*CompiledProgram, []*Error) {
	c := &compilation{
		symbols:    map[string]int32{},
		instrLabel: map[string]bool{},
		program: &CompiledProgram{
			ByAddress: map[uint32]int{},
			Labels:    map[string]uint32{},
		},
		dataCursor: DefaultOrigin,
	}
	c.layout(lines)
	c.resolve()
	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return c.program, nil
}

// dataPlacement defers a data directive's value evaluation to pass 2,
// so dc arguments may reference labels declared further down.
type dataPlacement struct {
	pl      lexer.ParsedLine
	addr    uint32
	size    machine.Size
	count   uint32 // dcb repetition count, fixed during layout
	isDCB   bool
	isDS    bool
	dsBytes uint32
}

type compilation struct {
	program    *CompiledProgram
	symbols    map[string]int32
	instrLabel map[string]bool // labels bound to instruction addresses
	errs       []*Error

	dataCursor uint32
	instrAddr  uint32

	pending    []string // labels awaiting the next instruction or data address
	placements []dataPlacement
}

func (c *compilation) errorf(pl lexer.ParsedLine, format string, args ...interface{}) {
	c.errs = append(c.errs, &Error{
		LineIndex: pl.LineIndex,
		Line:      pl.Raw,
		Message:   fmt.Sprintf(format, args...),
	})
}

// layout is pass 1: walk the unit in order, move the data cursor,
// assign every label and data directive an address, and give each
// instruction its slot in the instruction table.
func (c *compilation) layout(lines []lexer.ParsedLine) {
	for _, pl := range lines {
		switch pl.Parsed.Kind {
		case lexer.KindLabel:
			c.pending = append(c.pending, pl.Parsed.Label)

		case lexer.KindDirective:
			c.layoutDirective(pl)

		case lexer.KindInstruction:
			if pl.Parsed.Label != "" {
				c.bindLabel(pl, pl.Parsed.Label, c.instrAddr, true)
			}
			c.flushPending(pl, c.instrAddr, true)
			c.program.Instructions = append(c.program.Instructions, InstructionLine{
				Address:     c.instrAddr,
				LineIndex:   pl.LineIndex,
				Source:      pl.Raw,
				SourceLabel: pl.Parsed.Label,
				Op: DecodedOp{
					Mnemonic: pl.Parsed.Mnemonic,
					Size:     effectiveSize(pl.Parsed),
				},
				lexedOperands: pl.Parsed.Operands,
			})
			c.program.ByAddress[c.instrAddr] = len(c.program.Instructions) - 1
			c.instrAddr += InstructionStride
		}
	}

	// Labels dangling at the bottom of the unit name the address just
	// past the last instruction, so "end:" works as a branch target.
	for _, name := range c.pending {
		c.bindSymbol(name, int32(c.instrAddr))
		c.instrLabel[name] = true
	}
	c.pending = nil
}

func (c *compilation) bindLabel(pl lexer.ParsedLine, name string, addr uint32, isInstr bool) {
	c.bindSymbol(name, int32(addr))
	if isInstr {
		c.instrLabel[name] = true
	}
}

func (c *compilation) bindSymbol(name string, value int32) {
	c.symbols[name] = value
	c.program.Labels[name] = uint32(value)
}

func (c *compilation) flushPending(pl lexer.ParsedLine, addr uint32, isInstr bool) {
	for _, name := range c.pending {
		c.bindLabel(pl, name, addr, isInstr)
	}
	c.pending = nil
}

// layoutDirective applies a directive to the layout cursor. Directive
// arguments that decide layout (org address, ds/dcb counts, equ
// values) must evaluate with the symbols seen so far; dc data values
// wait for pass 2.
func (c *compilation) layoutDirective(pl lexer.ParsedLine) {
	d := pl.Parsed
	env := expr.MapEnvironment(c.symbols)
	sz := machine.Word
	if d.HasSize {
		sz = d.Size
	}

	switch d.DirectiveName {
	case "equ":
		v, err := expr.Eval(d.DirectiveArgs[0], env)
		if err != nil {
			c.errorf(pl, "equ %s: %v", d.Label, err)
			return
		}
		c.bindSymbol(d.Label, v)

	case "org":
		v, err := expr.Eval(d.DirectiveArgs[0], env)
		if err != nil {
			c.errorf(pl, "org: %v", err)
			return
		}
		c.dataCursor = uint32(v)

	case "dc":
		addr := c.dataCursor
		if d.Label != "" {
			c.bindLabel(pl, d.Label, addr, false)
		}
		c.flushPending(pl, addr, false)
		var total uint32
		for _, arg := range d.DirectiveArgs {
			if s, ok := stringLiteral(arg); ok {
				total += uint32(len(s))
				continue
			}
			total += uint32(sz)
		}
		c.placements = append(c.placements, dataPlacement{pl: pl, addr: addr, size: sz})
		c.dataCursor += total

	case "ds":
		addr := c.dataCursor
		if d.Label != "" {
			c.bindLabel(pl, d.Label, addr, false)
		}
		c.flushPending(pl, addr, false)
		n, err := expr.Eval(d.DirectiveArgs[0], env)
		if err != nil {
			c.errorf(pl, "ds: %v", err)
			return
		}
		if n < 0 {
			c.errorf(pl, "ds: negative count %d", n)
			return
		}
		bytes := uint32(n) * uint32(sz)
		c.placements = append(c.placements, dataPlacement{pl: pl, addr: addr, size: sz, isDS: true, dsBytes: bytes})
		c.dataCursor += bytes

	case "dcb":
		addr := c.dataCursor
		if d.Label != "" {
			c.bindLabel(pl, d.Label, addr, false)
		}
		c.flushPending(pl, addr, false)
		n, err := expr.Eval(d.DirectiveArgs[0], env)
		if err != nil {
			c.errorf(pl, "dcb: %v", err)
			return
		}
		if n < 0 {
			c.errorf(pl, "dcb: negative count %d", n)
			return
		}
		c.placements = append(c.placements, dataPlacement{pl: pl, addr: addr, size: sz, isDCB: true, count: uint32(n)})
		c.dataCursor += uint32(n) * uint32(sz)
	}
}

// stringLiteral unquotes a multi-character 'string' argument. A
// single-character quote is an expression (its code point), not a
// string, so dc.b 'A' still emits one byte through the evaluator.
func stringLiteral(arg string) (string, bool) {
	if len(arg) > 3 && arg[0] == '\'' && arg[len(arg)-1] == '\'' {
		return arg[1 : len(arg)-1], true
	}
	return "", false
}

// resolve is pass 2: every symbol now has its final value, so data
// directive arguments and instruction operands evaluate to concrete
// bytes and RuntimeOperands.
func (c *compilation) resolve() {
	env := expr.MapEnvironment(c.symbols)

	for _, p := range c.placements {
		region := c.resolvePlacement(p, env)
		if region != nil {
			c.program.InitialMemory = append(c.program.InitialMemory, *region)
		}
	}

	for i := range c.program.Instructions {
		c.resolveInstruction(&c.program.Instructions[i], env)
	}
}

func (c *compilation) resolvePlacement(p dataPlacement, env expr.Environment) *MemoryRegion {
	switch {
	case p.isDS:
		if p.dsBytes == 0 {
			return nil
		}
		return &MemoryRegion{Address: p.addr, Bytes: make([]byte, p.dsBytes)}

	case p.isDCB:
		fill, err := expr.Eval(p.pl.Parsed.DirectiveArgs[1], env)
		if err != nil {
			c.errorf(p.pl, "dcb: %v", err)
			return nil
		}
		bytes := make([]byte, 0, p.count*uint32(p.size))
		for i := uint32(0); i < p.count; i++ {
			bytes = appendValue(bytes, uint32(fill), p.size)
		}
		if len(bytes) == 0 {
			return nil
		}
		return &MemoryRegion{Address: p.addr, Bytes: bytes}

	default: // dc
		var bytes []byte
		for _, arg := range p.pl.Parsed.DirectiveArgs {
			if s, ok := stringLiteral(arg); ok {
				bytes = append(bytes, []byte(s)...)
				continue
			}
			v, err := expr.Eval(arg, env)
			if err != nil {
				c.errorf(p.pl, "dc: %v", err)
				return nil
			}
			bytes = appendValue(bytes, uint32(v), p.size)
		}
		return &MemoryRegion{Address: p.addr, Bytes: bytes}
	}
}

// appendValue lays a value down big-endian at the directive's size.
func appendValue(dst []byte, v uint32, sz machine.Size) []byte {
	switch sz {
	case machine.Byte:
		return append(dst, byte(v))
	case machine.Word:
		return append(dst, byte(v>>8), byte(v))
	default:
		return append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
}

// isBranchTarget reports whether a mnemonic consumes its label operand
// as a jump target rather than a data address.
func isBranchTarget(mnemonic string) bool {
	switch mnemonic {
	case "bra", "bsr", "jmp", "jsr":
		return true
	}
	family, _, ok := semantic.ConditionFor(mnemonic)
	return ok && (family == 'b' || family == 'd')
}

func (c *compilation) resolveInstruction(ins *InstructionLine, env expr.Environment) {
	for _, lop := range ins.lexedOperands {
		rop, err := c.translateOperand(ins, lop, env)
		if err != nil {
			continue
		}
		ins.Op.Operands = append(ins.Op.Operands, rop)
	}
	ins.lexedOperands = nil
}

func (c *compilation) translateOperand(ins *InstructionLine, lop lexer.LexedOperand, env expr.Environment) (RuntimeOperand, error) {
	out := RuntimeOperand{Raw: lop.Raw}

	switch lop.Kind {
	case lexer.OperandRegister:
		out.Kind = OpRegister
		out.Reg = lop.Reg
		return out, nil

	case lexer.OperandImmediate:
		v, err := expr.Eval(lop.Expr, env)
		if err != nil {
			c.errorfIdx(ins, "immediate %q: %v", lop.Raw, err)
			return out, err
		}
		out.Kind = OpImmediate
		out.Immediate = uint32(v)
		return out, nil

	case lexer.OperandAbsolute:
		v, err := expr.Eval(lop.Expr, env)
		if err != nil {
			c.errorfIdx(ins, "address %q: %v", lop.Raw, err)
			return out, err
		}
		out.Kind = OpAbsolute
		out.Absolute = uint32(v)
		return out, nil

	case lexer.OperandLabel:
		v, ok := env.Lookup(lop.Label)
		if !ok {
			c.errorfIdx(ins, "unresolved label %q", lop.Label)
			return out, fmt.Errorf("unresolved label")
		}
		if isBranchTarget(ins.Op.Mnemonic) {
			out.Kind = OpAddress
		} else {
			out.Kind = OpAbsolute
		}
		out.Absolute = uint32(v)
		return out, nil

	case lexer.OperandPreIndirect, lexer.OperandPostIndirect:
		out.Kind = OpIndirect
		out.Reg = lop.Inner.Reg
		if lop.Kind == lexer.OperandPreIndirect {
			out.Mode = EAPre
		} else {
			out.Mode = EAPost
		}
		return out, nil

	case lexer.OperandIndirectOrDisplacement, lexer.OperandIndirectBaseDisplacement:
		out.Kind = OpIndirect
		out.Reg = lop.Base.Reg
		out.Mode = EAPlain
		if lop.Offset != "" {
			v, err := expr.Eval(lop.Offset, env)
			if err != nil {
				c.errorfIdx(ins, "displacement %q: %v", lop.Offset, err)
				return out, err
			}
			out.Displacement = v
		}
		if lop.Index != nil {
			out.Index = &IndexSpec{Reg: lop.Index.Reg, Size: lop.Index.Size}
		}
		return out, nil
	}

	// Other: the only Other the checker lets through is a MOVEM
	// register list.
	if mask, ok := lexer.ParseRegisterList(lop.Raw); ok {
		out.Kind = OpRegList
		out.RegMask = mask
		return out, nil
	}
	c.errorfIdx(ins, "cannot resolve operand %q", lop.Raw)
	return out, fmt.Errorf("unresolvable operand")
}

func (c *compilation) errorfIdx(ins *InstructionLine, format string, args ...interface{}) {
	c.errs = append(c.errs, &Error{
		LineIndex: ins.LineIndex,
		Message:   fmt.Sprintf(format, args...),
	})
}

// effectiveSize applies the per-mnemonic default when the source wrote
// no explicit suffix.
func effectiveSize(ins lexer.LexedLine) machine.Size {
	if ins.HasSize {
		return ins.Size
	}
	if sz, ok := semantic.DefaultSize(ins.Mnemonic); ok {
		return sz
	}
	return machine.Word
}
