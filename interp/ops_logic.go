package interp

import (
	"github.com/m68kschool/interpreter/compiler"
	"github.com/m68kschool/interpreter/machine"
)

func init() {
	registerLogic()
	registerNOT()
	registerShifts()
}

// --- AND / OR / EOR and their immediate forms ---

func registerLogic() {
	opTable["and"] = logicOp(func(d, s uint32) uint32 { return d & s })
	opTable["andi"] = opTable["and"]
	opTable["or"] = logicOp(func(d, s uint32) uint32 { return d | s })
	opTable["ori"] = opTable["or"]
	opTable["eor"] = logicOp(func(d, s uint32) uint32 { return d ^ s })
	opTable["eori"] = opTable["eor"]
}

func logicOp(combine func(d, s uint32) uint32) opFunc {
	return func(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
		sz := ins.Op.Size
		s, err := it.operandValue(ins.Op.Operands[0], sz)
		if err != nil {
			return err
		}
		loc, err := it.resolve(ins.Op.Operands[1], sz)
		if err != nil {
			return err
		}
		d, err := it.read(loc, sz)
		if err != nil {
			return err
		}
		result := combine(d, s) & sz.Mask()
		if err := it.write(loc, sz, result); err != nil {
			return err
		}
		f := it.flags
		f.SetLogical(result, sz)
		it.setFlags(f)
		return nil
	}
}

// --- NOT ---

func registerNOT() {
	opTable["not"] = opNOT
}

func opNOT(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	sz := ins.Op.Size
	loc, err := it.resolve(ins.Op.Operands[0], sz)
	if err != nil {
		return err
	}
	v, err := it.read(loc, sz)
	if err != nil {
		return err
	}
	result := ^v & sz.Mask()
	if err := it.write(loc, sz, result); err != nil {
		return err
	}
	f := it.flags
	f.SetLogical(result, sz)
	it.setFlags(f)
	return nil
}

// --- ASL / ASR / LSL / LSR / ROL / ROR ---

type shiftKind uint8

const (
	shiftArith shiftKind = iota
	shiftLogic
	rotate
)

func registerShifts() {
	opTable["asl"] = shiftOp(shiftArith, true)
	opTable["asr"] = shiftOp(shiftArith, false)
	opTable["lsl"] = shiftOp(shiftLogic, true)
	opTable["lsr"] = shiftOp(shiftLogic, false)
	opTable["rol"] = shiftOp(rotate, true)
	opTable["ror"] = shiftOp(rotate, false)
}

func shiftOp(kind shiftKind, left bool) opFunc {
	return func(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
		sz := ins.Op.Size

		// One-operand form: shift a memory word by one.
		if len(ins.Op.Operands) == 1 {
			loc, err := it.resolve(ins.Op.Operands[0], machine.Word)
			if err != nil {
				return err
			}
			v, err := it.read(loc, machine.Word)
			if err != nil {
				return err
			}
			f := it.flags
			result := doShift(&f, v, 1, kind, left, machine.Word)
			if err := it.write(loc, machine.Word, result); err != nil {
				return err
			}
			it.setFlags(f)
			return nil
		}

		count := ins.Op.Operands[0].Immediate
		if ins.Op.Operands[0].Kind == compiler.OpRegister {
			count = it.regs.Get(ins.Op.Operands[0].Reg, machine.Long) & 63
		}
		dn := ins.Op.Operands[1].Reg
		val := it.regs.Get(dn, sz)

		f := it.flags
		result := doShift(&f, val, count, kind, left, sz)
		it.writeRegister(dn, sz, result)
		it.setFlags(f)
		return nil
	}
}

// doShift performs a shift or rotate of count bits and updates the
// flags: C holds the last bit shifted out (0 when count is 0), X
// follows C for shifts but not rotates, V is set only by ASL when the
// sign bit changes at any point. Counts come pre-limited (1..8
// immediate, register mod 64), so the bit-at-a-time loop is bounded.
func doShift(f *machine.Flags, val, count uint32, kind shiftKind, left bool, sz machine.Size) uint32 {
	msb := sz.MSB()
	mask := sz.Mask()
	result := val & mask

	if count == 0 {
		f.Z = result == 0
		f.N = result&msb != 0
		f.V = false
		f.C = false
		return result
	}

	var lastOut bool
	overflow := false
	sign := result & msb

	for i := uint32(0); i < count; i++ {
		if left {
			lastOut = result&msb != 0
			result = result << 1 & mask
			if kind == rotate {
				if lastOut {
					result |= 1
				}
			} else if kind == shiftArith && result&msb != sign {
				overflow = true
			}
		} else {
			lastOut = result&1 != 0
			result = result >> 1
			switch kind {
			case shiftArith:
				result |= sign
			case rotate:
				if lastOut {
					result |= msb
				}
			}
		}
	}

	f.Z = result == 0
	f.N = result&msb != 0
	f.C = lastOut
	f.V = overflow
	if kind != rotate {
		f.X = lastOut
	}
	return result
}
