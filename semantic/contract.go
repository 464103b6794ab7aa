package semantic

import "github.com/m68kschool/interpreter/machine"

// Mode groups, named after the 68000 effective-address categories.
const (
	// modeDataAddr is every mode usable as a readable data source,
	// excluding address register direct.
	modeDataAddr = ModeDataReg | ModeIndirect | ModePostInc | ModePreDec | ModeDisp | ModeIndex | ModeAbs | ModeLabel | ModeImmediate

	// modeAllSrc additionally allows An as a source.
	modeAllSrc = modeDataAddr | ModeAddrReg

	// modeDataAlterable is every writable mode except An.
	modeDataAlterable = ModeDataReg | ModeIndirect | ModePostInc | ModePreDec | ModeDisp | ModeIndex | ModeAbs | ModeLabel

	// modeAllAlterable also allows An as a destination.
	modeAllAlterable = modeDataAlterable | ModeAddrReg

	// modeMemAlterable is every writable memory mode.
	modeMemAlterable = modeDataAlterable &^ ModeDataReg
)

// extraRule selects a cross-operand validation beyond the plain
// per-position mode masks.
type extraRule uint8

const (
	ruleNone extraRule = iota
	ruleALU           // memory/label destination restricts source to Dn/#imm
	ruleMoveq         // immediate must fit in [-128,127]
	ruleQuick         // immediate must be 1..8
	ruleShift         // 2-operand register form or 1-operand memory form
	ruleBit           // Dn destination is long, memory destination is byte
	ruleMovem         // register list on exactly one side
	ruleMovep         // Dx,d(Ay) or d(Ay),Dx
	ruleTrap          // immediate must be 15
	ruleBCD           // Dn,Dn or -(An),-(An)
	ruleExg           // both operands register direct
)

// contract is the per-mnemonic validation entry: allowed sizes, the
// size assumed when no suffix is written, the mode mask for each
// operand position, and an optional cross-operand rule.
type contract struct {
	sizes       sizeSet
	defaultSize machine.Size
	operands    []AddressingMode
	rule        extraRule

	// byteOnAddrReg permits Byte size together with an An operand.
	// Almost nothing does; the checker rejects the combination unless
	// this is set.
	byteOnAddrReg bool
}

var bwl = sizeSetOf(machine.Byte, machine.Word, machine.Long)
var wl = sizeSetOf(machine.Word, machine.Long)
var onlyB = sizeSetOf(machine.Byte)
var onlyW = sizeSetOf(machine.Word)
var onlyL = sizeSetOf(machine.Long)

// conditionCodes maps a Bcc/Scc/DBcc suffix to its 68000 condition
// number. BRA/BSR own the 0/1 slots and are registered separately.
var conditionCodes = map[string]uint8{
	"t": 0, "f": 1,
	"hi": 2, "ls": 3,
	"cc": 4, "hs": 4,
	"cs": 5, "lo": 5,
	"ne": 6, "eq": 7,
	"vc": 8, "vs": 9,
	"pl": 10, "mi": 11,
	"ge": 12, "lt": 13,
	"gt": 14, "le": 15,
}

// contracts is the full per-mnemonic table. Built once at package
// init; never mutated afterwards.
var contracts = buildContracts()

func buildContracts() map[string]contract {
	t := map[string]contract{
		// Data movement.
		"move": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{modeAllSrc, modeAllAlterable},
		},
		"movea": {
			sizes: wl, defaultSize: machine.Word,
			operands: []AddressingMode{modeAllSrc, ModeAddrReg},
		},
		"moveq": {
			sizes: onlyL, defaultSize: machine.Long,
			operands: []AddressingMode{ModeImmediate, ModeDataReg},
			rule:     ruleMoveq,
		},
		"movem": {
			sizes: wl, defaultSize: machine.Word,
			operands: []AddressingMode{0, 0}, // checked by ruleMovem
			rule:     ruleMovem,
		},
		"movep": {
			sizes: wl, defaultSize: machine.Word,
			operands: []AddressingMode{ModeDataReg | ModeDisp | ModeIndirect, ModeDataReg | ModeDisp | ModeIndirect},
			rule:     ruleMovep,
		},
		"lea": {
			sizes: onlyL, defaultSize: machine.Long,
			operands: []AddressingMode{ModeControl, ModeAddrReg},
		},
		"pea": {
			sizes: onlyL, defaultSize: machine.Long,
			operands: []AddressingMode{ModeControl},
		},
		"link": {
			sizes: onlyW, defaultSize: machine.Word,
			operands: []AddressingMode{ModeAddrReg, ModeImmediate},
		},
		"unlk": {
			sizes: onlyW, defaultSize: machine.Word,
			operands: []AddressingMode{ModeAddrReg},
		},
		"exg": {
			sizes: onlyL, defaultSize: machine.Long,
			operands: []AddressingMode{ModeDataReg | ModeAddrReg, ModeDataReg | ModeAddrReg},
			rule:     ruleExg,
		},
		"swap": {
			sizes: onlyW, defaultSize: machine.Word,
			operands: []AddressingMode{ModeDataReg},
		},
		"ext": {
			sizes: wl, defaultSize: machine.Word,
			operands: []AddressingMode{ModeDataReg},
		},
		"clr": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{modeDataAlterable},
		},

		// Arithmetic.
		"add": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{modeAllSrc, modeAllAlterable},
			rule:     ruleALU,
		},
		"sub": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{modeAllSrc, modeAllAlterable},
			rule:     ruleALU,
		},
		"adda": {
			sizes: wl, defaultSize: machine.Word,
			operands: []AddressingMode{modeAllSrc, ModeAddrReg},
		},
		"suba": {
			sizes: wl, defaultSize: machine.Word,
			operands: []AddressingMode{modeAllSrc, ModeAddrReg},
		},
		"addi": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{ModeImmediate, modeDataAlterable},
		},
		"subi": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{ModeImmediate, modeDataAlterable},
		},
		"addq": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{ModeImmediate, modeAllAlterable},
			rule:     ruleQuick,
		},
		"subq": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{ModeImmediate, modeAllAlterable},
			rule:     ruleQuick,
		},
		"neg": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{modeDataAlterable},
		},
		// Comparison.
		"cmp": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{modeAllSrc, ModeDataReg | ModeAddrReg},
		},
		"cmpa": {
			sizes: wl, defaultSize: machine.Word,
			operands: []AddressingMode{modeAllSrc, ModeAddrReg},
		},
		"cmpi": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{ModeImmediate, modeDataAlterable},
		},
		"tst": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{modeDataAlterable},
		},

		// Multiply and divide, word operands only on the 68000.
		"muls": {
			sizes: onlyW, defaultSize: machine.Word,
			operands: []AddressingMode{modeDataAddr, ModeDataReg},
		},
		"mulu": {
			sizes: onlyW, defaultSize: machine.Word,
			operands: []AddressingMode{modeDataAddr, ModeDataReg},
		},
		"divs": {
			sizes: onlyW, defaultSize: machine.Word,
			operands: []AddressingMode{modeDataAddr, ModeDataReg},
		},
		"divu": {
			sizes: onlyW, defaultSize: machine.Word,
			operands: []AddressingMode{modeDataAddr, ModeDataReg},
		},

		// Bitwise logic.
		"and": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{modeDataAddr, modeDataAlterable},
			rule:     ruleALU,
		},
		"or": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{modeDataAddr, modeDataAlterable},
			rule:     ruleALU,
		},
		"eor": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{ModeDataReg | ModeImmediate, modeDataAlterable},
		},
		"andi": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{ModeImmediate, modeDataAlterable},
		},
		"ori": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{ModeImmediate, modeDataAlterable},
		},
		"eori": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{ModeImmediate, modeDataAlterable},
		},
		"not": {
			sizes: bwl, defaultSize: machine.Word,
			operands: []AddressingMode{modeDataAlterable},
		},

		// Bit manipulation.
		"btst": {
			sizes: sizeSetOf(machine.Byte, machine.Long), defaultSize: machine.Long,
			operands: []AddressingMode{ModeImmediate | ModeDataReg, modeDataAlterable},
			rule:     ruleBit,
		},
		"bchg": {
			sizes: sizeSetOf(machine.Byte, machine.Long), defaultSize: machine.Long,
			operands: []AddressingMode{ModeImmediate | ModeDataReg, modeDataAlterable},
			rule:     ruleBit,
		},
		"bclr": {
			sizes: sizeSetOf(machine.Byte, machine.Long), defaultSize: machine.Long,
			operands: []AddressingMode{ModeImmediate | ModeDataReg, modeDataAlterable},
			rule:     ruleBit,
		},
		"bset": {
			sizes: sizeSetOf(machine.Byte, machine.Long), defaultSize: machine.Long,
			operands: []AddressingMode{ModeImmediate | ModeDataReg, modeDataAlterable},
			rule:     ruleBit,
		},

		// Shifts and rotates.
		"asl": shiftContract(),
		"asr": shiftContract(),
		"lsl": shiftContract(),
		"lsr": shiftContract(),
		"rol": shiftContract(),
		"ror": shiftContract(),

		// Control transfer.
		"bra": {
			sizes: wl, defaultSize: machine.Word,
			operands: []AddressingMode{ModeLabel},
		},
		"bsr": {
			sizes: wl, defaultSize: machine.Word,
			operands: []AddressingMode{ModeLabel},
		},
		"jmp": {
			sizes: onlyL, defaultSize: machine.Long,
			operands: []AddressingMode{ModeControl},
		},
		"jsr": {
			sizes: onlyL, defaultSize: machine.Long,
			operands: []AddressingMode{ModeControl},
		},
		"rts": {
			sizes: onlyL, defaultSize: machine.Long,
			operands: []AddressingMode{},
		},
		"trap": {
			sizes: onlyW, defaultSize: machine.Word,
			operands: []AddressingMode{ModeImmediate},
			rule:     ruleTrap,
		},

		// BCD arithmetic.
		"abcd": {
			sizes: onlyB, defaultSize: machine.Byte,
			operands:      []AddressingMode{ModeDataReg | ModePreDec, ModeDataReg | ModePreDec},
			rule:          ruleBCD,
			byteOnAddrReg: true,
		},
		"sbcd": {
			sizes: onlyB, defaultSize: machine.Byte,
			operands:      []AddressingMode{ModeDataReg | ModePreDec, ModeDataReg | ModePreDec},
			rule:          ruleBCD,
			byteOnAddrReg: true,
		},
		"nbcd": {
			sizes: onlyB, defaultSize: machine.Byte,
			operands:      []AddressingMode{modeDataAlterable},
			byteOnAddrReg: true,
		},
	}

	// Conditional branch, set, and decrement-and-branch families share
	// one contract each across all sixteen condition codes.
	for cc := range conditionCodes {
		if cc != "t" && cc != "f" {
			t["b"+cc] = contract{
				sizes: wl, defaultSize: machine.Word,
				operands: []AddressingMode{ModeLabel},
			}
		}
		t["s"+cc] = contract{
			sizes: onlyB, defaultSize: machine.Byte,
			operands: []AddressingMode{modeDataAlterable},
		}
		t["db"+cc] = contract{
			sizes: onlyW, defaultSize: machine.Word,
			operands: []AddressingMode{ModeDataReg, ModeLabel},
		}
	}
	// dbra is the universal alias for dbf.
	t["dbra"] = t["dbf"]

	return t
}

func shiftContract() contract {
	return contract{
		sizes: bwl, defaultSize: machine.Word,
		operands: []AddressingMode{ModeImmediate | ModeDataReg, ModeDataReg},
		rule:     ruleShift,
	}
}

// DefaultSize returns the operand size a mnemonic assumes when the
// programmer writes no suffix, and whether the mnemonic is known. The
// compiler consults this so both stages agree on effective sizes.
func DefaultSize(mnemonic string) (machine.Size, bool) {
	ct, ok := contracts[mnemonic]
	if !ok {
		return 0, false
	}
	return ct.defaultSize, true
}

// ConditionFor returns the condition number a Bcc/Scc/DBcc mnemonic
// encodes, and whether the mnemonic is a member of that family. It is
// shared with the compiler and interpreter so the three stages cannot
// disagree about the condition table.
func ConditionFor(mnemonic string) (family byte, cc uint8, ok bool) {
	switch {
	case len(mnemonic) > 2 && mnemonic[:2] == "db":
		if mnemonic == "dbra" {
			return 'd', 1, true
		}
		if n, found := conditionCodes[mnemonic[2:]]; found {
			return 'd', n, true
		}
	case mnemonic[0] == 'b':
		if n, found := conditionCodes[mnemonic[1:]]; found && n >= 2 {
			return 'b', n, true
		}
	case mnemonic[0] == 's':
		if n, found := conditionCodes[mnemonic[1:]]; found {
			return 's', n, true
		}
	}
	return 0, 0, false
}
