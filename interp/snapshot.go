package interp

import (
	"encoding/binary"
	"errors"

	"github.com/m68kschool/interpreter/machine"
)

// Snapshot is the programmer-visible CPU state at one instant,
// detached from the interpreter: a UI can hold it across steps and
// diff consecutive snapshots without touching the live machine.
type Snapshot struct {
	D     [8]uint32
	A     [8]uint32
	PC    uint32
	Flags machine.Flags
}

// CpuSnapshot captures the current registers, PC, and flags.
func (it *Interpreter) CpuSnapshot() Snapshot {
	return Snapshot{
		D:     it.regs.D,
		A:     it.regs.A,
		PC:    it.regs.PC,
		Flags: it.flags,
	}
}

// snapshotVersion is incremented whenever the binary layout changes.
const snapshotVersion = 1

// snapshotSize is the number of bytes produced by Serialize: a version
// byte, sixteen 32-bit registers, the PC, and the CCR byte.
const snapshotSize = 1 + 16*4 + 4 + 1

// SerializeSize returns the number of bytes needed for Serialize.
func (s *Snapshot) SerializeSize() int { return snapshotSize }

// Serialize writes the snapshot into buf, which must be at least
// SerializeSize() bytes, big-endian like the machine it models.
func (s *Snapshot) Serialize(buf []byte) error {
	if len(buf) < snapshotSize {
		return errors.New("interp: serialize buffer too small")
	}

	buf[0] = snapshotVersion
	be := binary.BigEndian
	off := 1

	for i := 0; i < 8; i++ {
		be.PutUint32(buf[off:], s.D[i])
		off += 4
	}
	for i := 0; i < 8; i++ {
		be.PutUint32(buf[off:], s.A[i])
		off += 4
	}
	be.PutUint32(buf[off:], s.PC)
	off += 4
	buf[off] = s.Flags.Bitfield()
	return nil
}

// DeserializeSnapshot restores a snapshot produced by Serialize.
func DeserializeSnapshot(buf []byte) (Snapshot, error) {
	var s Snapshot
	if len(buf) < snapshotSize {
		return s, errors.New("interp: serialize buffer too small")
	}
	if buf[0] != snapshotVersion {
		return s, errors.New("interp: unsupported snapshot version")
	}

	be := binary.BigEndian
	off := 1
	for i := 0; i < 8; i++ {
		s.D[i] = be.Uint32(buf[off:])
		off += 4
	}
	for i := 0; i < 8; i++ {
		s.A[i] = be.Uint32(buf[off:])
		off += 4
	}
	s.PC = be.Uint32(buf[off:])
	off += 4
	s.Flags.SetBitfield(buf[off])
	return s, nil
}
