package lexer

import (
	"strings"

	"github.com/m68kschool/interpreter/machine"
)

// ParseRegisterList parses a MOVEM register list such as
// "d0-d3/a0/a5-a6" into a 16-bit mask: bits 0-7 are D0-D7, bits 8-15
// are A0-A7. A single bare register is a valid one-element list.
// Ranges must stay within one register file and run low to high.
func ParseRegisterList(s string) (mask uint16, ok bool) {
	for _, group := range strings.Split(strings.TrimSpace(s), "/") {
		lo, hi, found := strings.Cut(group, "-")
		first, ok := isRegisterName(strings.TrimSpace(lo))
		if !ok {
			return 0, false
		}
		last := first
		if found {
			last, ok = isRegisterName(strings.TrimSpace(hi))
			if !ok || last.Kind != first.Kind || last.Num < first.Num {
				return 0, false
			}
		}
		for n := first.Num; n <= last.Num; n++ {
			mask |= 1 << registerBit(machine.Register{Kind: first.Kind, Num: n})
		}
	}
	return mask, true
}

func registerBit(r machine.Register) uint8 {
	if r.Kind == machine.AddressReg {
		return 8 + r.Num
	}
	return r.Num
}

// RegistersInMask expands a MOVEM mask back into registers, D0-D7
// then A0-A7.
func RegistersInMask(mask uint16) []machine.Register {
	var regs []machine.Register
	for n := uint8(0); n < 8; n++ {
		if mask&(1<<n) != 0 {
			regs = append(regs, machine.D(n))
		}
	}
	for n := uint8(0); n < 8; n++ {
		if mask&(1<<(8+n)) != 0 {
			regs = append(regs, machine.A(n))
		}
	}
	return regs
}
