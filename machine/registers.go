package machine

// RegisterKind distinguishes the two register files.
type RegisterKind uint8

const (
	DataReg RegisterKind = iota
	AddressReg
)

// Register names a single D or A register (0-7).
type Register struct {
	Kind RegisterKind
	Num  uint8
}

func D(n uint8) Register { return Register{Kind: DataReg, Num: n} }
func A(n uint8) Register { return Register{Kind: AddressReg, Num: n} }

func (r Register) String() string {
	if r.Kind == AddressReg {
		return "A" + string(rune('0'+r.Num))
	}
	return "D" + string(rune('0'+r.Num))
}

// SPRegister is the stack pointer, an alias of A7.
var SPRegister = A(7)

// Registers holds the eight data and eight address registers plus PC.
// The condition codes live separately in Flags.
type Registers struct {
	D  [8]uint32
	A  [8]uint32
	PC uint32
}

// Get reads a register at the given size. Byte/word reads on data
// registers return only the low bits; address registers are always
// read as their full 32-bit value masked to the requested size.
func (r *Registers) Get(reg Register, sz Size) uint32 {
	if reg.Kind == DataReg {
		return r.D[reg.Num] & sz.Mask()
	}
	return r.A[reg.Num] & sz.Mask()
}

// Set writes a register at the given size.
//
// Byte writes to a data register affect only the low 8 bits; word
// writes only the low 16 bits, leaving the rest of the register
// unchanged. Address-register writes always replace the full 32 bits:
// a Word write sign-extends to 32 bits first, and a Byte write is
// illegal (callers must reject it before calling Set).
func (r *Registers) Set(reg Register, sz Size, val uint32) {
	if reg.Kind == DataReg {
		mask := sz.Mask()
		r.D[reg.Num] = (r.D[reg.Num] &^ mask) | (val & mask)
		return
	}
	switch sz {
	case Word:
		r.A[reg.Num] = uint32(int32(int16(val)))
	default:
		r.A[reg.Num] = val
	}
}

// SP returns the current stack pointer (A7).
func (r *Registers) SP() uint32 { return r.A[7] }

// SetSP sets the stack pointer (A7).
func (r *Registers) SetSP(v uint32) { r.A[7] = v }
