package interp

import (
	"github.com/m68kschool/interpreter/compiler"
	"github.com/m68kschool/interpreter/lexer"
	"github.com/m68kschool/interpreter/machine"
)

func init() {
	registerMOVE()
	registerMOVEM()
	registerMOVEP()
	registerLEA()
	registerPEA()
	registerLINK()
	registerEXG()
	registerSWAP()
	registerCLR()
}

// --- MOVE / MOVEA / MOVEQ ---

func registerMOVE() {
	opTable["move"] = opMOVE
	opTable["movea"] = opMOVE
	opTable["moveq"] = opMOVEQ
}

func opMOVE(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	sz := ins.Op.Size
	src := ins.Op.Operands[0]
	dst := ins.Op.Operands[1]

	val, err := it.operandValue(src, sz)
	if err != nil {
		return err
	}
	loc, err := it.resolve(dst, sz)
	if err != nil {
		return err
	}

	// A move into an address register is MOVEA: word sources
	// sign-extend to the full register and the flags stay put.
	if loc.kind == locRegister && loc.reg.Kind == machine.AddressReg {
		it.writeRegister(loc.reg, sz, val)
		return nil
	}

	if err := it.write(loc, sz, val); err != nil {
		return err
	}
	f := it.flags
	f.SetLogical(val, sz)
	it.setFlags(f)
	return nil
}

func opMOVEQ(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	// The 8-bit immediate sign-extends to the full data register.
	val := uint32(signExtend(ins.Op.Operands[0].Immediate&0xFF, machine.Byte))
	it.writeRegister(ins.Op.Operands[1].Reg, machine.Long, val)

	f := it.flags
	f.SetLogical(val, machine.Long)
	it.setFlags(f)
	return nil
}

// --- MOVEM ---

func registerMOVEM() {
	opTable["movem"] = opMOVEM
}

// opMOVEM transfers a register list to or from memory. Stores through
// -(An) walk the list in reverse (A7 down to D0) at descending
// addresses; every other combination walks D0 up to A7 at ascending
// addresses. Word loads sign-extend into their register.
func opMOVEM(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	sz := ins.Op.Size
	src := ins.Op.Operands[0]
	dst := ins.Op.Operands[1]

	if src.Kind == compiler.OpRegList || src.Kind == compiler.OpRegister {
		return it.movemStore(regMaskOf(src), dst, sz)
	}
	return it.movemLoad(src, regMaskOf(dst), sz)
}

func regMaskOf(op compiler.RuntimeOperand) uint16 {
	if op.Kind == compiler.OpRegList {
		return op.RegMask
	}
	mask, _ := lexer.ParseRegisterList(op.Raw)
	return mask
}

func (it *Interpreter) movemStore(mask uint16, dst compiler.RuntimeOperand, sz machine.Size) *RuntimeError {
	regs := lexer.RegistersInMask(mask)

	if dst.Kind == compiler.OpIndirect && dst.Mode == compiler.EAPre {
		addr := it.regs.A[dst.Reg.Num]
		for i := len(regs) - 1; i >= 0; i-- {
			addr -= uint32(sz)
			if err := it.writeMemory(sz, addr, it.regs.Get(regs[i], sz)); err != nil {
				return err
			}
		}
		it.writeRegister(dst.Reg, machine.Long, addr)
		return nil
	}

	addr, err := it.effectiveAddress(dst)
	if err != nil {
		return err
	}
	for _, reg := range regs {
		if err := it.writeMemory(sz, addr, it.regs.Get(reg, sz)); err != nil {
			return err
		}
		addr += uint32(sz)
	}
	return nil
}

func (it *Interpreter) movemLoad(src compiler.RuntimeOperand, mask uint16, sz machine.Size) *RuntimeError {
	regs := lexer.RegistersInMask(mask)

	post := src.Kind == compiler.OpIndirect && src.Mode == compiler.EAPost
	var addr uint32
	if post {
		addr = it.regs.A[src.Reg.Num]
	} else {
		var err *RuntimeError
		addr, err = it.effectiveAddress(src)
		if err != nil {
			return err
		}
	}

	for _, reg := range regs {
		v, err := it.readMemory(sz, addr)
		if err != nil {
			return err
		}
		if sz == machine.Word {
			v = uint32(signExtend(v, machine.Word))
		}
		it.writeRegister(reg, machine.Long, v)
		addr += uint32(sz)
	}
	if post {
		it.writeRegister(src.Reg, machine.Long, addr)
	}
	return nil
}

// --- MOVEP ---

func registerMOVEP() {
	opTable["movep"] = opMOVEP
}

// opMOVEP transfers between a data register and alternate bytes of
// memory, high byte first, the classic peripheral-port access pattern.
func opMOVEP(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	sz := ins.Op.Size
	src := ins.Op.Operands[0]
	dst := ins.Op.Operands[1]

	bytes := uint32(sz)
	if src.Kind == compiler.OpRegister {
		addr := uint32(int32(it.regs.A[dst.Reg.Num]) + dst.Displacement)
		val := it.regs.Get(src.Reg, sz)
		for i := uint32(0); i < bytes; i++ {
			b := val >> (8 * (bytes - 1 - i)) & 0xFF
			if err := it.writeMemory(machine.Byte, addr+2*i, b); err != nil {
				return err
			}
		}
		return nil
	}

	addr := uint32(int32(it.regs.A[src.Reg.Num]) + src.Displacement)
	var val uint32
	for i := uint32(0); i < bytes; i++ {
		b, err := it.readMemory(machine.Byte, addr+2*i)
		if err != nil {
			return err
		}
		val = val<<8 | b
	}
	it.writeRegister(dst.Reg, sz, val)
	return nil
}

// --- LEA / PEA ---

func registerLEA() {
	opTable["lea"] = opLEA
}

func opLEA(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	addr, err := it.effectiveAddress(ins.Op.Operands[0])
	if err != nil {
		return err
	}
	it.writeRegister(ins.Op.Operands[1].Reg, machine.Long, addr)
	return nil
}

func registerPEA() {
	opTable["pea"] = opPEA
}

func opPEA(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	addr, err := it.effectiveAddress(ins.Op.Operands[0])
	if err != nil {
		return err
	}
	return it.pushLong(addr)
}

// --- LINK / UNLK ---

func registerLINK() {
	opTable["link"] = opLINK
	opTable["unlk"] = opUNLK
}

func opLINK(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	an := ins.Op.Operands[0].Reg
	disp := signExtend(ins.Op.Operands[1].Immediate, machine.Word)

	if err := it.pushLong(it.regs.Get(an, machine.Long)); err != nil {
		return err
	}
	sp := it.regs.SP()
	it.writeRegister(an, machine.Long, sp)
	it.writeRegister(machine.SPRegister, machine.Long, uint32(int32(sp)+disp))
	return nil
}

func opUNLK(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	an := ins.Op.Operands[0].Reg
	it.writeRegister(machine.SPRegister, machine.Long, it.regs.Get(an, machine.Long))
	v, err := it.popLong()
	if err != nil {
		return err
	}
	it.writeRegister(an, machine.Long, v)
	return nil
}

// --- EXG / SWAP / CLR ---

func registerEXG() {
	opTable["exg"] = opEXG
}

func opEXG(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	rx := ins.Op.Operands[0].Reg
	ry := ins.Op.Operands[1].Reg
	x := it.regs.Get(rx, machine.Long)
	y := it.regs.Get(ry, machine.Long)
	it.writeRegister(rx, machine.Long, y)
	it.writeRegister(ry, machine.Long, x)
	return nil
}

func registerSWAP() {
	opTable["swap"] = opSWAP
}

func opSWAP(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	reg := ins.Op.Operands[0].Reg
	v := it.regs.Get(reg, machine.Long)
	result := v>>16 | v<<16
	it.writeRegister(reg, machine.Long, result)

	f := it.flags
	f.SetLogical(result, machine.Long)
	it.setFlags(f)
	return nil
}

func registerCLR() {
	opTable["clr"] = opCLR
}

func opCLR(it *Interpreter, ins *compiler.InstructionLine) *RuntimeError {
	sz := ins.Op.Size
	loc, err := it.resolve(ins.Op.Operands[0], sz)
	if err != nil {
		return err
	}
	if err := it.write(loc, sz, 0); err != nil {
		return err
	}
	f := it.flags
	f.SetLogical(0, sz)
	it.setFlags(f)
	return nil
}
