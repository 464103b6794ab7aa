package semantic

import (
	"fmt"

	"github.com/m68kschool/interpreter/expr"
	"github.com/m68kschool/interpreter/lexer"
	"github.com/m68kschool/interpreter/machine"
)

// Check validates every parsed line and returns all diagnostics found.
// It never stops at the first error: a learner should see every
// mistake in the unit in one pass.
func Check(lines []lexer.ParsedLine) []*SemanticError {
	c := &checker{symbols: map[string]int{}}
	c.collectSymbols(lines)
	for _, pl := range lines {
		c.checkLine(pl)
	}
	return c.errs
}

type checker struct {
	errs    []*SemanticError
	symbols map[string]int // name -> line index of its declaration
}

func (c *checker) errorf(pl lexer.ParsedLine, tag ErrorTag, format string, args ...interface{}) {
	c.errs = append(c.errs, &SemanticError{
		Tag:       tag,
		Line:      pl.Raw,
		LineIndex: pl.LineIndex,
		Message:   fmt.Sprintf(format, args...),
	})
}

// collectSymbols records every label and equ name so forward
// references validate, and reports duplicates.
func (c *checker) collectSymbols(lines []lexer.ParsedLine) {
	for _, pl := range lines {
		name := ""
		switch pl.Parsed.Kind {
		case lexer.KindLabel:
			name = pl.Parsed.Label
		case lexer.KindDirective, lexer.KindInstruction:
			name = pl.Parsed.Label
		}
		if name == "" {
			continue
		}
		if first, dup := c.symbols[name]; dup {
			c.errorf(pl, DuplicateLabel, "label %q already declared on line %d", name, first+1)
			continue
		}
		c.symbols[name] = pl.LineIndex
	}
}

func (c *checker) checkLine(pl lexer.ParsedLine) {
	switch pl.Parsed.Kind {
	case lexer.KindEmpty, lexer.KindComment, lexer.KindLabel:
		return
	case lexer.KindUnknown:
		c.errorf(pl, UnknownMnemonic, "cannot parse line %q", pl.Parsed.Content)
	case lexer.KindDirective:
		c.checkDirective(pl)
	case lexer.KindInstruction:
		c.checkInstruction(pl)
	}
}

func (c *checker) checkDirective(pl lexer.ParsedLine) {
	d := pl.Parsed
	switch d.DirectiveName {
	case "equ":
		if d.Label == "" {
			c.errorf(pl, DirectiveMisuse, "equ requires a label")
		}
		if d.HasSize {
			c.errorf(pl, DirectiveMisuse, "equ takes no size suffix")
		}
		if len(d.DirectiveArgs) != 1 {
			c.errorf(pl, DirectiveMisuse, "equ takes exactly one value, got %d", len(d.DirectiveArgs))
			return
		}
		c.checkExpression(pl, d.DirectiveArgs[0])

	case "org":
		if d.HasSize {
			c.errorf(pl, DirectiveMisuse, "org takes no size suffix")
		}
		if len(d.DirectiveArgs) != 1 {
			c.errorf(pl, DirectiveMisuse, "org takes exactly one address, got %d", len(d.DirectiveArgs))
			return
		}
		c.checkExpression(pl, d.DirectiveArgs[0])

	case "dc":
		if len(d.DirectiveArgs) == 0 {
			c.errorf(pl, DirectiveMisuse, "dc requires at least one value")
			return
		}
		for _, arg := range d.DirectiveArgs {
			if isStringLiteral(arg) {
				continue
			}
			c.checkExpression(pl, arg)
		}

	case "ds":
		if len(d.DirectiveArgs) != 1 {
			c.errorf(pl, DirectiveMisuse, "ds takes exactly one count, got %d", len(d.DirectiveArgs))
			return
		}
		c.checkExpression(pl, d.DirectiveArgs[0])

	case "dcb":
		if len(d.DirectiveArgs) != 2 {
			c.errorf(pl, DirectiveMisuse, "dcb takes a count and a fill value, got %d arguments", len(d.DirectiveArgs))
			return
		}
		c.checkExpression(pl, d.DirectiveArgs[0])
		c.checkExpression(pl, d.DirectiveArgs[1])
	}
}

// isStringLiteral reports whether arg is a quoted string of more than
// one character, which dc lays out byte by byte.
func isStringLiteral(arg string) bool {
	return len(arg) > 3 && arg[0] == '\'' && arg[len(arg)-1] == '\''
}

// checkExpression validates expression syntax and that every symbol it
// references is declared somewhere in the unit.
func (c *checker) checkExpression(pl lexer.ParsedLine, src string) {
	refs, err := expr.References(src)
	if err != nil {
		c.errorf(pl, ExpressionError, "%v", err)
		return
	}
	for _, name := range refs {
		if _, ok := c.symbols[name]; !ok {
			c.errorf(pl, UnresolvedLabel, "undeclared label %q", name)
		}
	}
}

func (c *checker) checkInstruction(pl lexer.ParsedLine) {
	ins := pl.Parsed
	ct, ok := contracts[ins.Mnemonic]
	if !ok {
		c.errorf(pl, UnknownMnemonic, "unknown instruction %q", ins.Mnemonic)
		return
	}

	size := ct.defaultSize
	if ins.HasSize {
		if !ct.sizes.allows(ins.Size) {
			c.errorf(pl, UnsupportedSize, "%s does not support %s size", ins.Mnemonic, ins.Size)
		} else {
			size = ins.Size
		}
	}

	wantArity := len(ct.operands)
	gotArity := len(ins.Operands)
	if ct.rule == ruleShift && gotArity == 1 {
		wantArity = 1
	}
	if gotArity != wantArity {
		c.errorf(pl, WrongArity, "%s takes %d operand(s), got %d", ins.Mnemonic, wantArity, gotArity)
		return
	}

	// MOVEM bypasses the positional mask test entirely; its register
	// list is not an effective address.
	if ct.rule == ruleMovem {
		c.checkMovem(pl, ins)
		return
	}

	modes := make([]AddressingMode, gotArity)
	for i, op := range ins.Operands {
		mode, problem := c.classify(pl, ins.Mnemonic, i, op)
		if problem {
			return
		}
		modes[i] = mode
	}

	for i, mode := range modes {
		allowed := ct.operands[i]
		if ct.rule == ruleShift && gotArity == 1 {
			allowed = modeMemAlterable
		}
		if mode&allowed == 0 {
			c.errorf(pl, InvalidAddressingMode, "%s operand %d: addressing mode not allowed here", ins.Mnemonic, i+1)
			c.errs[len(c.errs)-1].Allowed = allowed
			continue
		}
		if mode == ModeAddrReg && size == machine.Byte && !ct.byteOnAddrReg {
			c.errorf(pl, UnsupportedSize, "byte operations on address registers are illegal")
		}
	}

	c.checkRule(pl, ins, ct, size, modes)
}

// classify maps a lexed operand onto its addressing mode, validating
// the structural constraints the lexer leaves open (a predecrement's
// inner register must be an An, a displacement base must be an An).
// Returns problem=true after reporting a diagnostic.
func (c *checker) classify(pl lexer.ParsedLine, mnemonic string, pos int, op lexer.LexedOperand) (AddressingMode, bool) {
	switch op.Kind {
	case lexer.OperandRegister:
		if op.Reg.Kind == machine.AddressReg {
			return ModeAddrReg, false
		}
		return ModeDataReg, false

	case lexer.OperandImmediate:
		c.checkExpression(pl, op.Expr)
		return ModeImmediate, false

	case lexer.OperandAbsolute:
		c.checkExpression(pl, op.Expr)
		return ModeAbs, false

	case lexer.OperandLabel:
		if _, ok := c.symbols[op.Label]; !ok {
			c.errorf(pl, UnresolvedLabel, "undeclared label %q", op.Label)
			return 0, true
		}
		return ModeLabel, false

	case lexer.OperandPreIndirect, lexer.OperandPostIndirect:
		if op.Inner == nil || op.Inner.Kind != lexer.OperandRegister || op.Inner.Reg.Kind != machine.AddressReg {
			c.errorf(pl, MalformedOperand, "%s operand %d: %q must wrap an address register", mnemonic, pos+1, op.Raw)
			return 0, true
		}
		if op.Kind == lexer.OperandPreIndirect {
			return ModePreDec, false
		}
		return ModePostInc, false

	case lexer.OperandIndirectOrDisplacement:
		if op.Base == nil || op.Base.Reg.Kind != machine.AddressReg {
			c.errorf(pl, MalformedOperand, "%s operand %d: base of %q must be an address register", mnemonic, pos+1, op.Raw)
			return 0, true
		}
		if op.Offset == "" {
			return ModeIndirect, false
		}
		c.checkExpression(pl, op.Offset)
		return ModeDisp, false

	case lexer.OperandIndirectBaseDisplacement:
		if op.Base == nil || op.Base.Reg.Kind != machine.AddressReg {
			c.errorf(pl, MalformedOperand, "%s operand %d: base of %q must be an address register", mnemonic, pos+1, op.Raw)
			return 0, true
		}
		if op.Offset != "" {
			c.checkExpression(pl, op.Offset)
		}
		return ModeIndex, false
	}

	c.errorf(pl, MalformedOperand, "%s operand %d: cannot parse %q", mnemonic, pos+1, op.Raw)
	return 0, true
}

// literalValue evaluates src only if it is a pure literal expression
// (no symbol references). Range checks are skipped for symbolic
// immediates; the compiler evaluates them without a range check, so an
// out-of-range symbolic immediate is not reported at any stage.
func literalValue(src string) (int32, bool) {
	v, err := expr.Eval(src, expr.MapEnvironment{})
	if err != nil {
		return 0, false
	}
	return v, true
}

func (c *checker) checkRule(pl lexer.ParsedLine, ins lexer.LexedLine, ct contract, size machine.Size, modes []AddressingMode) {
	switch ct.rule {
	case ruleALU:
		// Two-operand ALU forms with a memory destination must source
		// from a data register or an immediate.
		if modes[1]&modeMemAlterable != 0 && modes[0]&(ModeDataReg|ModeImmediate) == 0 {
			c.errorf(pl, InvalidAddressingMode, "%s with a memory destination requires a data register or immediate source", ins.Mnemonic)
			c.errs[len(c.errs)-1].Allowed = ModeDataReg | ModeImmediate
		}

	case ruleMoveq:
		if v, ok := literalValue(ins.Operands[0].Expr); ok && (v < -128 || v > 127) {
			c.errorf(pl, ImmediateOutOfRange, "moveq immediate %d outside [-128,127]", v)
		}

	case ruleQuick:
		if v, ok := literalValue(ins.Operands[0].Expr); ok && (v < 1 || v > 8) {
			c.errorf(pl, ImmediateOutOfRange, "%s immediate %d outside 1..8", ins.Mnemonic, v)
		}

	case ruleTrap:
		if v, ok := literalValue(ins.Operands[0].Expr); ok && v != 15 {
			c.errorf(pl, ImmediateOutOfRange, "only trap #15 is supported, got #%d", v)
		}

	case ruleShift:
		if len(ins.Operands) == 1 {
			if size != machine.Word {
				c.errorf(pl, UnsupportedSize, "memory shifts operate on words only")
			}
			return
		}
		if modes[0] == ModeImmediate {
			if v, ok := literalValue(ins.Operands[0].Expr); ok && (v < 1 || v > 8) {
				c.errorf(pl, ImmediateOutOfRange, "shift count %d outside 1..8", v)
			}
		}

	case ruleBit:
		if modes[1] == ModeDataReg {
			if ins.HasSize && size != machine.Long {
				c.errorf(pl, UnsupportedSize, "%s on a data register is a long operation", ins.Mnemonic)
			}
		} else if ins.HasSize && size != machine.Byte {
			c.errorf(pl, UnsupportedSize, "%s on memory is a byte operation", ins.Mnemonic)
		}

	case ruleMovep:
		dToM := modes[0] == ModeDataReg && modes[1]&(ModeDisp|ModeIndirect) != 0
		mToD := modes[0]&(ModeDisp|ModeIndirect) != 0 && modes[1] == ModeDataReg
		if !dToM && !mToD {
			c.errorf(pl, InvalidAddressingMode, "movep transfers between a data register and d(An)")
		}

	case ruleBCD:
		bothReg := modes[0] == ModeDataReg && modes[1] == ModeDataReg
		bothMem := modes[0] == ModePreDec && modes[1] == ModePreDec
		if !bothReg && !bothMem {
			c.errorf(pl, InvalidAddressingMode, "%s requires Dy,Dx or -(Ay),-(Ax)", ins.Mnemonic)
		}

	case ruleExg:
		// Mask test already guarantees both operands are registers.
	}
}

// checkMovem validates the two MOVEM forms: list,<ea> (store, control
// or predecrement destination) and <ea>,list (load, control or
// postincrement source).
func (c *checker) checkMovem(pl lexer.ParsedLine, ins lexer.LexedLine) {
	srcMask, srcIsList := movemList(ins.Operands[0])
	dstMask, dstIsList := movemList(ins.Operands[1])

	switch {
	case srcIsList == dstIsList:
		c.errorf(pl, InvalidAddressingMode, "movem requires a register list on exactly one side")

	case srcIsList:
		if srcMask == 0 {
			c.errorf(pl, MalformedOperand, "movem: empty register list %q", ins.Operands[0].Raw)
			return
		}
		mode, problem := c.classify(pl, "movem", 1, ins.Operands[1])
		if problem {
			return
		}
		if mode&(ModeControl|ModePreDec) == 0 {
			c.errorf(pl, InvalidAddressingMode, "movem store destination must be a control mode or -(An)")
			c.errs[len(c.errs)-1].Allowed = ModeControl | ModePreDec
		}

	default:
		if dstMask == 0 {
			c.errorf(pl, MalformedOperand, "movem: empty register list %q", ins.Operands[1].Raw)
			return
		}
		mode, problem := c.classify(pl, "movem", 0, ins.Operands[0])
		if problem {
			return
		}
		if mode&(ModeControl|ModePostInc) == 0 {
			c.errorf(pl, InvalidAddressingMode, "movem load source must be a control mode or (An)+")
			c.errs[len(c.errs)-1].Allowed = ModeControl | ModePostInc
		}
	}
}

// movemList interprets an operand as a register list: either a bare
// register or an Other operand holding list syntax.
func movemList(op lexer.LexedOperand) (uint16, bool) {
	if op.Kind == lexer.OperandRegister {
		mask, _ := lexer.ParseRegisterList(op.Raw)
		return mask, true
	}
	if op.Kind == lexer.OperandOther {
		if mask, ok := lexer.ParseRegisterList(op.Raw); ok {
			return mask, true
		}
	}
	return 0, false
}
