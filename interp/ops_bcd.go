package interp

import (
	"github.com/m68kschool/interpreter/compiler"
	"github.com/m68kschool/interpreter/machine"
)

func init() {
	registerABCD()
	registerSBCD()
	registerNBCD()
}

// --- ABCD ---

func registerABCD() {
	opTable["abcd"] = opABCD
}

func opABCD(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	return it.bcdBinary(ins, bcdAdd)
}

// bcdBinary runs a two-operand BCD operation in either of its forms,
// Dy,Dx or -(Ay),-(Ax). The source resolves before the destination,
// matching hardware predecrement order.
func (it *Interpreter) bcdBinary(ins *compiler.InstructionLine, combine func(f *machine.Flags, s, d uint32) uint32) *RuntimeError {
	srcLoc, err := it.resolve(ins.Op.Operands[0], machine.Byte)
	if err != nil {
		return err
	}
	s, err := it.read(srcLoc, machine.Byte)
	if err != nil {
		return err
	}
	dstLoc, err := it.resolve(ins.Op.Operands[1], machine.Byte)
	if err != nil {
		return err
	}
	d, err := it.read(dstLoc, machine.Byte)
	if err != nil {
		return err
	}

	f := it.flags
	result := combine(&f, s, d)
	if err := it.write(dstLoc, machine.Byte, result); err != nil {
		return err
	}
	it.setFlags(f)
	return nil
}

// bcdAdd adds two packed BCD bytes plus the extend bit. Z is sticky:
// cleared by a nonzero result, left alone by a zero one, so multi-byte
// decimal loops accumulate a correct zero test. N follows the result's
// sign bit and V is cleared.
func bcdAdd(f *machine.Flags, s, d uint32) uint32 {
	x := uint32(0)
	if f.X {
		x = 1
	}

	lo := (s & 0x0F) + (d & 0x0F) + x
	hi := (s & 0xF0) + (d & 0xF0)
	if lo > 9 {
		lo += 6
	}
	result := hi + lo

	carry := result > 0x99
	if carry {
		result += 0x60
	}
	r8 := result & 0xFF

	f.C = carry
	f.X = carry
	f.N = r8&0x80 != 0
	f.V = false
	if r8 != 0 {
		f.Z = false
	}
	return r8
}

// --- SBCD ---

func registerSBCD() {
	opTable["sbcd"] = opSBCD
}

func opSBCD(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	return it.bcdBinary(ins, bcdSub)
}

// bcdSub subtracts s (plus the extend bit) from d in packed BCD.
func bcdSub(f *machine.Flags, s, d uint32) uint32 {
	x := uint32(0)
	if f.X {
		x = 1
	}

	binary := d - s - x
	result := binary
	if lo := (d & 0x0F) - (s & 0x0F) - x; lo&0x10 != 0 {
		result -= 6
	}
	borrow := d < s+x
	if borrow {
		result -= 0x60
	}
	r8 := result & 0xFF

	f.C = borrow
	f.X = borrow
	f.N = r8&0x80 != 0
	f.V = false
	if r8 != 0 {
		f.Z = false
	}
	return r8
}

// --- NBCD ---

func registerNBCD() {
	opTable["nbcd"] = opNBCD
}

// opNBCD negates a packed BCD byte: 0 - operand - X.
func opNBCD(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	loc, err := it.resolve(ins.Op.Operands[0], machine.Byte)
	if err != nil {
		return err
	}
	d, err := it.read(loc, machine.Byte)
	if err != nil {
		return err
	}

	f := it.flags
	result := bcdSub(&f, d, 0)
	if err := it.write(loc, machine.Byte, result); err != nil {
		return err
	}
	it.setFlags(f)
	return nil
}
