package interp

import (
	"github.com/m68kschool/interpreter/compiler"
	"github.com/m68kschool/interpreter/machine"
)

// locKind categorizes a resolved effective address, mirroring the
// register/memory/immediate split the CPU makes when reading or
// writing an operand.
type locKind uint8

const (
	locRegister locKind = iota
	locMemory
	locImmediate
)

// location is a resolved operand: either a register, a memory
// address, or an immediate value.
type location struct {
	kind locKind
	reg  machine.Register
	addr uint32
	imm  uint32
}

// resolve computes the location a RuntimeOperand denotes at the given
// operand size. Predecrement and postincrement adjust their address
// register here, as recorded mutations, so a faulting instruction
// rolls them back with everything else.
func (it *Interpreter) resolve(op compiler.RuntimeOperand, sz machine.Size) (location, *RuntimeError) {
	switch op.Kind {
	case compiler.OpImmediate:
		return location{kind: locImmediate, imm: op.Immediate}, nil

	case compiler.OpRegister:
		return location{kind: locRegister, reg: op.Reg}, nil

	case compiler.OpAbsolute, compiler.OpAddress:
		return location{kind: locMemory, addr: op.Absolute}, nil

	case compiler.OpIndirect:
		base := it.regs.A[op.Reg.Num]
		switch op.Mode {
		case compiler.EAPre:
			dec := stackAdjust(op.Reg, sz)
			addr := base - dec
			it.writeRegister(op.Reg, machine.Long, addr)
			return location{kind: locMemory, addr: addr}, nil

		case compiler.EAPost:
			inc := stackAdjust(op.Reg, sz)
			it.writeRegister(op.Reg, machine.Long, base+inc)
			return location{kind: locMemory, addr: base}, nil

		default:
			addr := uint32(int32(base) + op.Displacement + it.indexValue(op.Index))
			return location{kind: locMemory, addr: addr}, nil
		}
	}

	return location{}, runtimeErrorf(ErrIllegalAddressingMode, "operand %q cannot be resolved to a location", op.Raw)
}

// stackAdjust is the predecrement/postincrement step: the operand
// size, except that byte accesses through A7 move by two to keep the
// stack pointer even.
func stackAdjust(reg machine.Register, sz machine.Size) uint32 {
	if reg.Num == 7 && sz == machine.Byte {
		return 2
	}
	return uint32(sz)
}

// indexValue reads the Xn.s index term of an indexed operand: a word
// index sign-extends before the addition.
func (it *Interpreter) indexValue(idx *compiler.IndexSpec) int32 {
	if idx == nil {
		return 0
	}
	v := it.regs.Get(idx.Reg, machine.Long)
	if idx.Size == machine.Word {
		return int32(int16(v))
	}
	return int32(v)
}

// effectiveAddress resolves a control-mode operand (LEA/PEA/JMP/JSR
// destinations) to the address it names, without touching memory.
func (it *Interpreter) effectiveAddress(op compiler.RuntimeOperand) (uint32, *RuntimeError) {
	switch op.Kind {
	case compiler.OpAbsolute, compiler.OpAddress:
		return op.Absolute, nil
	case compiler.OpIndirect:
		if op.Mode != compiler.EAPlain {
			return 0, runtimeErrorf(ErrIllegalAddressingMode, "%q is not a control addressing mode", op.Raw)
		}
		return uint32(int32(it.regs.A[op.Reg.Num]) + op.Displacement + it.indexValue(op.Index)), nil
	}
	return 0, runtimeErrorf(ErrIllegalAddressingMode, "%q is not a control addressing mode", op.Raw)
}

// read fetches the value a location holds at the given size.
func (it *Interpreter) read(loc location, sz machine.Size) (uint32, *RuntimeError) {
	switch loc.kind {
	case locRegister:
		return it.regs.Get(loc.reg, sz), nil
	case locMemory:
		return it.readMemory(sz, loc.addr)
	default:
		return loc.imm & sz.Mask(), nil
	}
}

// write stores a value at a location. Immediate locations are not
// writable; the semantic checker rejects them before execution, so
// hitting one here is an internal inconsistency surfaced as a fault.
func (it *Interpreter) write(loc location, sz machine.Size, val uint32) *RuntimeError {
	switch loc.kind {
	case locRegister:
		it.writeRegister(loc.reg, sz, val)
		return nil
	case locMemory:
		return it.writeMemory(sz, loc.addr, val)
	default:
		return runtimeErrorf(ErrIllegalAddressingMode, "write to an immediate operand")
	}
}

// operandValue resolves and reads an operand in one call, the common
// source-side pattern.
func (it *Interpreter) operandValue(op compiler.RuntimeOperand, sz machine.Size) (uint32, *RuntimeError) {
	loc, err := it.resolve(op, sz)
	if err != nil {
		return 0, err
	}
	return it.read(loc, sz)
}

// signExtend widens a size-masked value to a signed 32-bit integer.
func signExtend(v uint32, sz machine.Size) int32 {
	switch sz {
	case machine.Byte:
		return int32(int8(v))
	case machine.Word:
		return int32(int16(v))
	default:
		return int32(v)
	}
}
