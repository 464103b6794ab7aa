package machine

import (
	"errors"
	"testing"
)

func TestMemoryReadWriteBigEndian(t *testing.T) {
	m := NewMemory(16)
	if err := m.Write(Long, 0, 0x12345678); err != nil {
		t.Fatalf("Write: %v", err)
	}
	bytes, err := m.ReadBytes(0, 4)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	want := []byte{0x12, 0x34, 0x56, 0x78}
	for i := range want {
		if bytes[i] != want[i] {
			t.Errorf("byte %d = 0x%02X, want 0x%02X", i, bytes[i], want[i])
		}
	}

	v, err := m.Read(Long, 0)
	if err != nil || v != 0x12345678 {
		t.Errorf("Read back = 0x%08X, err=%v, want 0x12345678", v, err)
	}
}

func TestMemoryOutOfBounds(t *testing.T) {
	m := NewMemory(4)
	_, err := m.Read(Long, 2)
	var oob *OutOfBoundsError
	if !errors.As(err, &oob) {
		t.Fatalf("Read past end: got err=%v, want *OutOfBoundsError", err)
	}

	err = m.Write(Word, 3, 1)
	if !errors.As(err, &oob) {
		t.Fatalf("Write past end: got err=%v, want *OutOfBoundsError", err)
	}
}

func TestMemoryByteWordPreserve(t *testing.T) {
	m := NewMemory(4)
	m.Write(Long, 0, 0xAABBCCDD)
	m.Write(Byte, 0, 0x11)
	v, _ := m.Read(Long, 0)
	if v != 0x11BBCCDD {
		t.Errorf("byte write = 0x%08X, want 0x11BBCCDD", v)
	}
}
