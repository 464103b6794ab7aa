package interp

import (
	"github.com/m68kschool/interpreter/compiler"
	"github.com/m68kschool/interpreter/machine"
)

func init() {
	registerBitOps()
}

type bitAction uint8

const (
	bitTest bitAction = iota
	bitChange
	bitClear
	bitSet
)

func registerBitOps() {
	opTable["btst"] = bitOp(bitTest)
	opTable["bchg"] = bitOp(bitChange)
	opTable["bclr"] = bitOp(bitClear)
	opTable["bset"] = bitOp(bitSet)
}

// bitOp tests or modifies one bit of the destination. A data-register
// destination is a long operation with the bit number taken mod 32; a
// memory destination is a byte operation mod 8. Only Z changes, and
// only from the pre-modification bit value.
func bitOp(action bitAction) opFunc {
	return func(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
		bitSrc := ins.Op.Operands[0]
		dst := ins.Op.Operands[1]

		bit, err := it.operandValue(bitSrc, machine.Long)
		if err != nil {
			return err
		}

		sz := machine.Byte
		if dst.Kind == compiler.OpRegister {
			sz = machine.Long
			bit &= 31
		} else {
			bit &= 7
		}

		loc, err := it.resolve(dst, sz)
		if err != nil {
			return err
		}
		v, err := it.read(loc, sz)
		if err != nil {
			return err
		}

		f := it.flags
		f.Z = v&(1<<bit) == 0
		it.setFlags(f)

		var result uint32
		switch action {
		case bitTest:
			return nil
		case bitChange:
			result = v ^ 1<<bit
		case bitClear:
			result = v &^ (1 << bit)
		case bitSet:
			result = v | 1<<bit
		}
		return it.write(loc, sz, result)
	}
}
