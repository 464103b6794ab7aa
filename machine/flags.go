package machine

// Flags is the condition code register: X (extend), N (negative),
// Z (zero), V (overflow), C (carry). Bit positions match the M68k CCR
// byte: X=bit4, N=bit3, Z=bit2, V=bit1, C=bit0.
type Flags struct {
	X, N, Z, V, C bool
}

// Bitfield packs the flags into the low 5 bits of a CCR byte, in the
// order the hardware uses (X at bit 4 down to C at bit 0).
func (f Flags) Bitfield() uint8 {
	var b uint8
	if f.X {
		b |= 1 << 4
	}
	if f.N {
		b |= 1 << 3
	}
	if f.Z {
		b |= 1 << 2
	}
	if f.V {
		b |= 1 << 1
	}
	if f.C {
		b |= 1 << 0
	}
	return b
}

// SetBitfield restores flags from a packed CCR byte produced by Bitfield.
func (f *Flags) SetBitfield(b uint8) {
	f.X = b&(1<<4) != 0
	f.N = b&(1<<3) != 0
	f.Z = b&(1<<2) != 0
	f.V = b&(1<<1) != 0
	f.C = b&(1<<0) != 0
}

// Array returns the flags as [X,N,Z,V,C].
func (f Flags) Array() [5]bool {
	return [5]bool{f.X, f.N, f.Z, f.V, f.C}
}

// SetAdd sets XNZVC after an addition: result = dst + src, computed at
// size sz. Grounded on the two's-complement overflow/carry tests the
// 68000 uses for ADD/ADDI/ADDQ/ADDX.
func (f *Flags) SetAdd(src, dst, result uint32, sz Size) {
	msb := sz.MSB()
	mask := sz.Mask()
	r := result & mask
	s := src & mask
	d := dst & mask

	f.Z = r == 0
	f.N = r&msb != 0
	// Overflow: both operands same sign, result a different sign.
	f.V = (s^r)&(d^r)&msb != 0
	// Carry: unsigned overflow out of the top bit.
	f.C = result&(msb<<1) != 0 || (sz == Long && (s&d|(s|d)&^r)&msb != 0)
	f.X = f.C
}

// SetSub sets XNZVC after a subtraction: result = dst - src.
func (f *Flags) SetSub(src, dst, result uint32, sz Size) {
	msb := sz.MSB()
	mask := sz.Mask()
	r := result & mask
	s := src & mask
	d := dst & mask

	f.Z = r == 0
	f.N = r&msb != 0
	// Overflow: operands different sign, result sign differs from dst.
	f.V = (s^d)&(r^d)&msb != 0
	// Borrow.
	borrow := (s&^d | r&^d | s&r) & msb
	f.C = borrow != 0
	f.X = f.C
}

// SetCmp sets NZVC after a comparison (subtraction without storing or
// touching X). Used by CMP/CMPA/CMPI/TST.
func (f *Flags) SetCmp(src, dst, result uint32, sz Size) {
	msb := sz.MSB()
	mask := sz.Mask()
	r := result & mask
	s := src & mask
	d := dst & mask

	f.Z = r == 0
	f.N = r&msb != 0
	f.V = (s^d)&(r^d)&msb != 0
	f.C = (s&^d|r&^d|s&r)&msb != 0
}

// SetLogical sets NZ and clears VC after AND/OR/EOR/NOT/MOVE/MOVEQ/
// SWAP/EXT. X is left unchanged by the caller.
func (f *Flags) SetLogical(result uint32, sz Size) {
	f.Z = result&sz.Mask() == 0
	f.N = result&sz.MSB() != 0
	f.V = false
	f.C = false
}

// TestCondition evaluates an M68k condition code (0-15), used by
// Bcc/Scc/DBcc.
func (f Flags) TestCondition(cc uint8) bool {
	switch cc {
	case 0: // T
		return true
	case 1: // F
		return false
	case 2: // HI
		return !f.C && !f.Z
	case 3: // LS
		return f.C || f.Z
	case 4: // CC
		return !f.C
	case 5: // CS
		return f.C
	case 6: // NE
		return !f.Z
	case 7: // EQ
		return f.Z
	case 8: // VC
		return !f.V
	case 9: // VS
		return f.V
	case 10: // PL
		return !f.N
	case 11: // MI
		return f.N
	case 12: // GE
		return f.N == f.V
	case 13: // LT
		return f.N != f.V
	case 14: // GT
		return f.N == f.V && !f.Z
	case 15: // LE
		return f.Z || f.N != f.V
	}
	return false
}
