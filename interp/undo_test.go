package interp

import (
	"bytes"
	"testing"

	"github.com/m68kschool/interpreter/machine"
)

// fullState captures everything undo promises to restore.
func fullState(t *testing.T, it *Interpreter) (Snapshot, []byte) {
	t.Helper()
	mem, err := it.ReadMemoryBytes(0, testMemorySize)
	if err != nil {
		t.Fatal(err)
	}
	return it.CpuSnapshot(), mem
}

func TestUndoRestoresBitIdenticalState(t *testing.T) {
	it := build(t, `
	move.l #$CAFE, d0
	move.w d0, $8000
	lea $8000, a0
	move.b #1, -(a7)
	add.l #3, d0
	asl.l #2, d0
	jsr sub
	move.l #9, d0
	trap #15
sub:	move.l #7, d1
	rts
`)
	initialSnap, initialMem := fullState(t, it)

	steps := 0
	for it.GetStatus() == Running {
		mustStep(t, it)
		steps++
	}
	if !it.CanUndo() {
		t.Fatal("history should be available")
	}

	for i := 0; i < steps; i++ {
		if err := it.Undo(); err != nil {
			t.Fatalf("undo %d: %v", i, err)
		}
	}
	if it.CanUndo() {
		t.Error("all history consumed, CanUndo must be false")
	}

	snap, mem := fullState(t, it)
	if snap != initialSnap {
		t.Errorf("cpu state differs after full undo:\n got %+v\nwant %+v", snap, initialSnap)
	}
	if !bytes.Equal(mem, initialMem) {
		t.Error("memory differs after full undo")
	}
}

func TestUndoSingleStep(t *testing.T) {
	it := build(t, "move.l #1, d0\nmove.l #2, d0")
	mustStep(t, it)
	mustStep(t, it)
	wantReg(t, it, machine.D(0), 2)

	if err := it.Undo(); err != nil {
		t.Fatal(err)
	}
	wantReg(t, it, machine.D(0), 1)
	if it.PC() != 4 {
		t.Errorf("PC after undo = %d, want 4", it.PC())
	}
	// The undone step can be re-executed.
	mustStep(t, it)
	wantReg(t, it, machine.D(0), 2)
}

func TestUndoWithoutHistoryFails(t *testing.T) {
	it := build(t, "move.l #1, d0")
	if it.CanUndo() {
		t.Error("fresh interpreter has nothing to undo")
	}
	if err := it.Undo(); err == nil {
		t.Error("undo with no history must fail")
	}
}

func TestHistoryDisabled(t *testing.T) {
	it := buildOpts(t, "move.l #1, d0\nmove.l #2, d1", Options{KeepHistory: false})
	mustStep(t, it)
	mustStep(t, it)
	if it.CanUndo() {
		t.Error("undo must be unavailable with history off")
	}
	if err := it.Undo(); err == nil {
		t.Error("undo must fail with history off")
	}
	if got := it.PreviousMutations(); got != nil {
		t.Errorf("previous mutations = %v, want none", got)
	}
	// Execution itself is unaffected.
	wantReg(t, it, machine.D(0), 1)
	wantReg(t, it, machine.D(1), 2)
}

func TestHistoryRingEvictsOldest(t *testing.T) {
	it := buildOpts(t, "move.l #1, d0\nmove.l #2, d0\nmove.l #3, d0",
		Options{KeepHistory: true, HistorySize: 2})
	mustStep(t, it)
	mustStep(t, it)
	mustStep(t, it)

	steps := it.UndoHistory(10)
	if len(steps) != 2 {
		t.Fatalf("history length = %d, want 2", len(steps))
	}
	if steps[0].PCBefore != 4 || steps[1].PCBefore != 8 {
		t.Errorf("kept steps at PC %d,%d; want 4,8 (oldest evicted)",
			steps[0].PCBefore, steps[1].PCBefore)
	}
}

func TestPreviousMutationsOrder(t *testing.T) {
	// A postincrementing store mutates An, then memory, then flags,
	// then PC.
	it := build(t, "lea $8000, a0\nmove.w #$1234, (a0)+")
	mustStep(t, it)
	mustStep(t, it)

	muts := it.PreviousMutations()
	if len(muts) != 4 {
		t.Fatalf("got %d mutations: %+v", len(muts), muts)
	}
	wantKinds := []MutationKind{MutWriteRegister, MutWriteMemory, MutWriteFlags, MutWritePc}
	for i, want := range wantKinds {
		if muts[i].Kind != want {
			t.Errorf("mutation %d kind = %v, want %v", i, muts[i].Kind, want)
		}
	}
	if muts[0].Reg != machine.A(0) || muts[0].Old != 0x8000 {
		t.Errorf("postincrement record = %+v, want old A0 0x8000", muts[0])
	}
	if muts[1].Addr != 0x8000 || muts[1].Old != 0 {
		t.Errorf("memory record = %+v, want old word 0 at 0x8000", muts[1])
	}
}

func TestUndoHistoryOrder(t *testing.T) {
	it := build(t, "move.l #1, d0\nmove.l #2, d0\nmove.l #3, d0")
	mustStep(t, it)
	mustStep(t, it)
	mustStep(t, it)

	tail := it.UndoHistory(2)
	if len(tail) != 2 {
		t.Fatalf("got %d entries, want 2", len(tail))
	}
	if tail[0].PCBefore != 4 || tail[1].PCBefore != 8 {
		t.Errorf("tail PCs = %d,%d; want 4,8 oldest first", tail[0].PCBefore, tail[1].PCBefore)
	}
}

func TestSetRegisterValueIsNotRecorded(t *testing.T) {
	it := build(t, "move.l #1, d0")
	mustStep(t, it)
	before := len(it.UndoHistory(100))
	if err := it.SetRegisterValue(machine.D(5), machine.Long, 99); err != nil {
		t.Fatal(err)
	}
	if len(it.UndoHistory(100)) != before {
		t.Error("direct register pokes must not create history")
	}
	if err := it.SetRegisterValue(machine.A(2), machine.Byte, 1); err == nil {
		t.Error("byte write to an address register must be rejected")
	}
}
