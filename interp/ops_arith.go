package interp

import (
	"github.com/m68kschool/interpreter/compiler"
	"github.com/m68kschool/interpreter/machine"
)

func init() {
	registerADD()
	registerSUB()
	registerCMP()
	registerTST()
	registerMULDIV()
	registerNEG()
	registerEXT()
}

// --- ADD / ADDA / ADDI / ADDQ ---

func registerADD() {
	opTable["add"] = opADD
	opTable["addi"] = opADD
	opTable["adda"] = opADDA
	opTable["addq"] = opADDQ
}

func opADD(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	return it.addCommon(ins.Op.Operands[0], ins.Op.Operands[1], ins.Op.Size)
}

// addCommon is the shared ADD/ADDI/ADDQ body. An address-register
// destination takes the ADDA path: the source sign-extends to 32 bits
// and the flags are untouched.
func (it *Interpreter) addCommon(src, dst compiler.RuntimeOperand, sz machine.Size) *RuntimeError {
	if isAddrRegDirect(dst) {
		return it.addaCommon(src, dst, sz)
	}
	s, err := it.operandValue(src, sz)
	if err != nil {
		return err
	}
	loc, err := it.resolve(dst, sz)
	if err != nil {
		return err
	}
	d, err := it.read(loc, sz)
	if err != nil {
		return err
	}
	result := d + s
	if err := it.write(loc, sz, result); err != nil {
		return err
	}
	f := it.flags
	f.SetAdd(s, d, result, sz)
	it.setFlags(f)
	return nil
}

func opADDA(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	return it.addaCommon(ins.Op.Operands[0], ins.Op.Operands[1], ins.Op.Size)
}

func (it *Interpreter) addaCommon(src, dst compiler.RuntimeOperand, sz machine.Size) *RuntimeError {
	s, err := it.operandValue(src, sz)
	if err != nil {
		return err
	}
	an := dst.Reg
	result := uint32(int32(it.regs.Get(an, machine.Long)) + signExtend(s, sz))
	it.writeRegister(an, machine.Long, result)
	return nil
}

func opADDQ(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	return it.addCommon(ins.Op.Operands[0], ins.Op.Operands[1], ins.Op.Size)
}

// --- SUB / SUBA / SUBI / SUBQ ---

func registerSUB() {
	opTable["sub"] = opSUB
	opTable["subi"] = opSUB
	opTable["suba"] = opSUBA
	opTable["subq"] = opSUB
}

func opSUB(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	src := ins.Op.Operands[0]
	dst := ins.Op.Operands[1]
	sz := ins.Op.Size

	if isAddrRegDirect(dst) {
		return it.subaCommon(src, dst, sz)
	}
	s, err := it.operandValue(src, sz)
	if err != nil {
		return err
	}
	loc, err := it.resolve(dst, sz)
	if err != nil {
		return err
	}
	d, err := it.read(loc, sz)
	if err != nil {
		return err
	}
	result := d - s
	if err := it.write(loc, sz, result); err != nil {
		return err
	}
	f := it.flags
	f.SetSub(s, d, result, sz)
	it.setFlags(f)
	return nil
}

func opSUBA(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	return it.subaCommon(ins.Op.Operands[0], ins.Op.Operands[1], ins.Op.Size)
}

func (it *Interpreter) subaCommon(src, dst compiler.RuntimeOperand, sz machine.Size) *RuntimeError {
	s, err := it.operandValue(src, sz)
	if err != nil {
		return err
	}
	an := dst.Reg
	result := uint32(int32(it.regs.Get(an, machine.Long)) - signExtend(s, sz))
	it.writeRegister(an, machine.Long, result)
	return nil
}

func isAddrRegDirect(op compiler.RuntimeOperand) bool {
	return op.Kind == compiler.OpRegister && op.Reg.Kind == machine.AddressReg
}

// --- CMP / CMPA / CMPI / TST ---

func registerCMP() {
	opTable["cmp"] = opCMP
	opTable["cmpi"] = opCMP
	opTable["cmpa"] = opCMP
}

func opCMP(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	src := ins.Op.Operands[0]
	dst := ins.Op.Operands[1]
	sz := ins.Op.Size

	s, err := it.operandValue(src, sz)
	if err != nil {
		return err
	}
	d, err := it.operandValue(dst, sz)
	if err != nil {
		return err
	}

	// CMPA compares the full address register against the
	// sign-extended source.
	if isAddrRegDirect(dst) {
		s = uint32(signExtend(s, sz))
		d = it.regs.Get(dst.Reg, machine.Long)
		sz = machine.Long
	}

	f := it.flags
	f.SetCmp(s, d, d-s, sz)
	it.setFlags(f)
	return nil
}

func registerTST() {
	opTable["tst"] = opTST
}

func opTST(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	sz := ins.Op.Size
	v, err := it.operandValue(ins.Op.Operands[0], sz)
	if err != nil {
		return err
	}
	f := it.flags
	f.SetCmp(0, v, v, sz)
	it.setFlags(f)
	return nil
}

// --- MULU / MULS / DIVU / DIVS ---

func registerMULDIV() {
	opTable["mulu"] = opMULU
	opTable["muls"] = opMULS
	opTable["divu"] = opDIVU
	opTable["divs"] = opDIVS
}

func opMULU(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	s, err := it.operandValue(ins.Op.Operands[0], machine.Word)
	if err != nil {
		return err
	}
	dn := ins.Op.Operands[1].Reg
	result := (it.regs.Get(dn, machine.Word)) * s
	it.writeRegister(dn, machine.Long, result)

	f := it.flags
	f.SetLogical(result, machine.Long)
	it.setFlags(f)
	return nil
}

func opMULS(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	s, err := it.operandValue(ins.Op.Operands[0], machine.Word)
	if err != nil {
		return err
	}
	dn := ins.Op.Operands[1].Reg
	result := uint32(int32(int16(it.regs.Get(dn, machine.Word))) * int32(int16(s)))
	it.writeRegister(dn, machine.Long, result)

	f := it.flags
	f.SetLogical(result, machine.Long)
	it.setFlags(f)
	return nil
}

// opDIVU divides the full 32-bit destination by a 16-bit divisor;
// the quotient lands in the low word, the remainder in the high word.
// A zero divisor or a quotient that cannot fit 16 bits faults.
func opDIVU(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	s, err := it.operandValue(ins.Op.Operands[0], machine.Word)
	if err != nil {
		return err
	}
	if s == 0 {
		return runtimeErrorf(ErrDivisionByZero, "divu by zero")
	}
	dn := ins.Op.Operands[1].Reg
	dividend := it.regs.Get(dn, machine.Long)
	quotient := dividend / s
	remainder := dividend % s
	if quotient > 0xFFFF {
		return runtimeErrorf(ErrDivisionOverflow, "divu quotient %d does not fit a word", quotient)
	}
	it.writeRegister(dn, machine.Long, remainder<<16|quotient)

	f := it.flags
	f.Z = quotient == 0
	f.N = quotient&0x8000 != 0
	f.V = false
	f.C = false
	it.setFlags(f)
	return nil
}

func opDIVS(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	s, err := it.operandValue(ins.Op.Operands[0], machine.Word)
	if err != nil {
		return err
	}
	divisor := int32(int16(s))
	if divisor == 0 {
		return runtimeErrorf(ErrDivisionByZero, "divs by zero")
	}
	dn := ins.Op.Operands[1].Reg
	dividend := int32(it.regs.Get(dn, machine.Long))
	quotient := dividend / divisor
	remainder := dividend % divisor
	if quotient > 0x7FFF || quotient < -0x8000 {
		return runtimeErrorf(ErrDivisionOverflow, "divs quotient %d does not fit a word", quotient)
	}
	it.writeRegister(dn, machine.Long, uint32(remainder)<<16|uint32(quotient)&0xFFFF)

	f := it.flags
	f.Z = quotient == 0
	f.N = quotient < 0
	f.V = false
	f.C = false
	it.setFlags(f)
	return nil
}

// --- NEG ---

func registerNEG() {
	opTable["neg"] = opNEG
}

func opNEG(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	sz := ins.Op.Size
	loc, err := it.resolve(ins.Op.Operands[0], sz)
	if err != nil {
		return err
	}
	v, err := it.read(loc, sz)
	if err != nil {
		return err
	}
	result := -v
	if err := it.write(loc, sz, result); err != nil {
		return err
	}
	f := it.flags
	f.SetSub(v, 0, result, sz)
	it.setFlags(f)
	return nil
}

// --- EXT ---

func registerEXT() {
	opTable["ext"] = opEXT
}

func opEXT(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	dn := ins.Op.Operands[0].Reg
	sz := ins.Op.Size

	var result uint32
	if sz == machine.Word {
		result = uint32(int32(int8(it.regs.Get(dn, machine.Byte)))) & 0xFFFF
		it.writeRegister(dn, machine.Word, result)
	} else {
		result = uint32(int32(int16(it.regs.Get(dn, machine.Word))))
		it.writeRegister(dn, machine.Long, result)
	}

	f := it.flags
	f.SetLogical(result, sz)
	it.setFlags(f)
	return nil
}
