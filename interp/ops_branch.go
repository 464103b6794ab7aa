package interp

import (
	"github.com/m68kschool/interpreter/compiler"
	"github.com/m68kschool/interpreter/machine"
	"github.com/m68kschool/interpreter/semantic"
)

func init() {
	registerBRA()
	registerBcc()
	registerDBcc()
	registerScc()
	registerJumps()
}

// conditionSuffixes lists every Bcc/Scc/DBcc condition mnemonic
// suffix; the shared condition numbering lives in package semantic so
// checker and interpreter cannot drift apart.
var conditionSuffixes = []string{
	"t", "f", "hi", "ls", "cc", "hs", "cs", "lo",
	"ne", "eq", "vc", "vs", "pl", "mi", "ge", "lt", "gt", "le",
}

// --- BRA / BSR ---

func registerBRA() {
	opTable["bra"] = opBRA
	opTable["bsr"] = opBSR
}

func opBRA(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	it.jump(ins.Op.Operands[0].Absolute)
	return nil
}

func opBSR(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	return it.callSubroutine(ins, ins.Op.Operands[0].Absolute)
}

// callSubroutine pushes the return address and jumps, recording the
// observational call-stack frame.
func (it *Interpreter) callSubroutine(ins *compiler.InstructionLine, target uint32) *RuntimeError {
	returnAddr := ins.Address + compiler.InstructionStride
	if err := it.pushLong(returnAddr); err != nil {
		return err
	}
	it.pushCallFrame(target, returnAddr)
	it.jump(target)
	return nil
}

// --- Bcc ---

func registerBcc() {
	for _, cc := range conditionSuffixes {
		if cc == "t" || cc == "f" {
			continue // the 0/1 slots belong to BRA/BSR
		}
		opTable["b"+cc] = opBcc
	}
}

func opBcc(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	_, cc, ok := semantic.ConditionFor(ins.Op.Mnemonic)
	if !ok {
		return runtimeErrorf(ErrIllegalInstruction, "bad condition in %q", ins.Op.Mnemonic)
	}
	if it.flags.TestCondition(cc) {
		it.jump(ins.Op.Operands[0].Absolute)
	}
	return nil
}

// --- DBcc ---

func registerDBcc() {
	for _, cc := range conditionSuffixes {
		opTable["db"+cc] = opDBcc
	}
	opTable["dbra"] = opDBcc
}

// opDBcc: when the condition is false, decrement the counter's low
// word; branch unless the counter hit -1.
func opDBcc(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	_, cc, ok := semantic.ConditionFor(ins.Op.Mnemonic)
	if !ok {
		return runtimeErrorf(ErrIllegalInstruction, "bad condition in %q", ins.Op.Mnemonic)
	}
	if it.flags.TestCondition(cc) {
		return nil
	}

	dn := ins.Op.Operands[0].Reg
	counter := (it.regs.Get(dn, machine.Word) - 1) & 0xFFFF
	it.writeRegister(dn, machine.Word, counter)
	if counter != 0xFFFF {
		it.jump(ins.Op.Operands[1].Absolute)
	}
	return nil
}

// --- Scc ---

func registerScc() {
	for _, cc := range conditionSuffixes {
		opTable["s"+cc] = opScc
	}
}

func opScc(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	_, cc, ok := semantic.ConditionFor(ins.Op.Mnemonic)
	if !ok {
		return runtimeErrorf(ErrIllegalInstruction, "bad condition in %q", ins.Op.Mnemonic)
	}
	loc, err := it.resolve(ins.Op.Operands[0], machine.Byte)
	if err != nil {
		return err
	}
	var v uint32
	if it.flags.TestCondition(cc) {
		v = 0xFF
	}
	return it.write(loc, machine.Byte, v)
}

// --- JMP / JSR / RTS ---

func registerJumps() {
	opTable["jmp"] = opJMP
	opTable["jsr"] = opJSR
	opTable["rts"] = opRTS
}

func opJMP(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	target, err := it.effectiveAddress(ins.Op.Operands[0])
	if err != nil {
		return err
	}
	it.jump(target)
	return nil
}

func opJSR(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	target, err := it.effectiveAddress(ins.Op.Operands[0])
	if err != nil {
		return err
	}
	return it.callSubroutine(ins, target)
}

func opRTS(it *Interpreter, _ *compiler.InstructionLine) *RuntimeError {
	target, err := it.popLong()
	if err != nil {
		return err
	}
	it.popCallFrame()
	it.jump(target)
	return nil
}
