package interp

import (
	"bytes"
	"testing"

	"github.com/m68kschool/interpreter/compiler"
	"github.com/m68kschool/interpreter/lexer"
	"github.com/m68kschool/interpreter/machine"
	"github.com/m68kschool/interpreter/semantic"
)

const testMemorySize = 0x10000

// build compiles source through the full pipeline and wraps it in an
// interpreter with history enabled.
func build(t *testing.T, source string) *Interpreter {
	t.Helper()
	return buildOpts(t, source, DefaultOptions())
}

func buildOpts(t *testing.T, source string, opts Options) *Interpreter {
	t.Helper()
	lines := lexer.Lex(source)
	if errs := semantic.Check(lines); len(errs) != 0 {
		t.Fatalf("semantic errors: %v", errs)
	}
	prog, errs := compiler.Compile(lines)
	if len(errs) != 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	it, err := New(prog, testMemorySize, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return it
}

func mustStep(t *testing.T, it *Interpreter) {
	t.Helper()
	if _, _, err := it.Step(); err != nil {
		t.Fatalf("step failed: %v", err)
	}
}

func mustRun(t *testing.T, it *Interpreter) Status {
	t.Helper()
	status, err := it.Run()
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return status
}

func wantReg(t *testing.T, it *Interpreter, reg machine.Register, want uint32) {
	t.Helper()
	if got := it.RegisterValue(reg, machine.Long); got != want {
		t.Errorf("%s = 0x%08X, want 0x%08X", reg, got, want)
	}
}

func wantFlags(t *testing.T, it *Interpreter, x, n, z, v, c bool) {
	t.Helper()
	got := it.FlagsAsArray()
	want := [5]bool{x, n, z, v, c}
	if got != want {
		t.Errorf("flags [X N Z V C] = %v, want %v", got, want)
	}
}

// --- the literal scenarios ---

func TestScenarioTwoMoves(t *testing.T) {
	it := build(t, "move.l #$1, d0\nmove.l #$2, d1")
	mustStep(t, it)
	mustStep(t, it)
	wantReg(t, it, machine.D(0), 1)
	wantReg(t, it, machine.D(1), 2)
	if it.PC() != 8 {
		t.Errorf("PC = %d, want 8", it.PC())
	}
	wantFlags(t, it, false, false, false, false, false)
}

func TestScenarioWordMovePreservesUpper(t *testing.T) {
	it := build(t, "move.w #-1, d0")
	mustStep(t, it)
	wantReg(t, it, machine.D(0), 0x0000FFFF)
	if !it.GetFlag(FlagN) || it.GetFlag(FlagZ) {
		t.Errorf("flags N=%v Z=%v, want N=true Z=false", it.GetFlag(FlagN), it.GetFlag(FlagZ))
	}
}

func TestScenarioSubToZero(t *testing.T) {
	it := build(t, "move.l #5, d0\nsub.l #5, d0")
	mustRun(t, it)
	wantReg(t, it, machine.D(0), 0)
	wantFlags(t, it, false, false, true, false, false)
}

func TestScenarioDataLayout(t *testing.T) {
	it := build(t, "org $1000\narr: dc.w 1,2,3\nstart: move.w arr+2, d0")
	mustRun(t, it)
	wantReg(t, it, machine.D(0), 2)
	mem, err := it.ReadMemoryBytes(0x1000, 6)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(mem, []byte{0, 1, 0, 2, 0, 3}) {
		t.Errorf("memory at $1000 = % X, want 00 01 00 02 00 03", mem)
	}
}

func TestScenarioDisplayNumberInterrupt(t *testing.T) {
	it := build(t, "move.l #3, d0\nmove.l #10, d1\ntrap #15")
	status := mustRun(t, it)
	if status != Interrupted {
		t.Fatalf("status = %v, want Interrupt", status)
	}
	intr := it.CurrentInterrupt()
	if intr == nil || intr.Kind != DisplayNumber || intr.Value != 10 {
		t.Fatalf("interrupt = %+v, want DisplayNumber{10}", intr)
	}
	if err := it.AnswerInterrupt(InterruptResult{Kind: DisplayNumber}); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if it.GetStatus() != Running {
		t.Errorf("status after answer = %v, want Running", it.GetStatus())
	}
	if mustRun(t, it) != Terminated {
		t.Error("program should terminate after the interrupt")
	}
}

func TestScenarioDivisionByZero(t *testing.T) {
	it := build(t, "move.l #7, d0\ndivu #0, d0")
	mustStep(t, it)
	_, status, err := it.Step()
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != ErrDivisionByZero {
		t.Fatalf("err = %v, want DivisionByZero", err)
	}
	if status != TerminatedWithException {
		t.Errorf("status = %v, want TerminatedWithException", status)
	}
	// The fault rolled back cleanly; undo of the (empty) entry keeps
	// the pre-divide state intact.
	wantReg(t, it, machine.D(0), 7)
	if err := it.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	wantReg(t, it, machine.D(0), 7)
	if it.TerminalError() == nil || it.TerminalError().Kind != ErrDivisionByZero {
		t.Error("terminal error should be preserved")
	}
}

// --- stepping and termination ---

func TestRunTerminatesAtBottom(t *testing.T) {
	it := build(t, "move.l #1, d0")
	if mustRun(t, it) != Terminated {
		t.Error("want Terminated")
	}
	if !it.HasTerminated() || !it.HasReachedBottom() {
		t.Error("HasTerminated and HasReachedBottom should both be true")
	}
	// Stepping a terminated program is a no-op.
	ins, status, err := it.Step()
	if ins != nil || status != Terminated || err != nil {
		t.Errorf("step after end = %v,%v,%v", ins, status, err)
	}
}

func TestTrapTerminate(t *testing.T) {
	it := build(t, "move.l #9, d0\ntrap #15\nmove.l #1, d1")
	if mustRun(t, it) != Terminated {
		t.Error("want Terminated via trap code 9")
	}
	if it.HasReachedBottom() {
		t.Error("explicit terminate is not reaching bottom")
	}
	wantReg(t, it, machine.D(1), 0)
}

func TestRunWithLimit(t *testing.T) {
	it := build(t, "loop: add.l #1, d0\nbra loop")
	status, err := it.RunWithLimit(10)
	if err != nil {
		t.Fatal(err)
	}
	if status != Running {
		t.Errorf("status = %v, want Running at limit", status)
	}
	wantReg(t, it, machine.D(0), 5) // 10 steps = 5 loop iterations
}

func TestRunWithBreakpoints(t *testing.T) {
	it := build(t, "move.l #1, d0\nmove.l #2, d1\nmove.l #3, d2")
	status, err := it.RunWithBreakpoints(map[uint32]bool{8: true}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if status != Running || it.PC() != 8 {
		t.Fatalf("stopped with status %v at PC %d, want Running at 8", status, it.PC())
	}
	wantReg(t, it, machine.D(2), 0)
	// Resuming executes the breakpoint instruction itself.
	if _, err := it.RunWithBreakpoints(map[uint32]bool{8: true}, 0); err != nil {
		t.Fatal(err)
	}
	wantReg(t, it, machine.D(2), 3)
}

// --- addressing modes ---

func TestPostIncrementAndPreDecrement(t *testing.T) {
	it := build(t, `
	lea $2000, a0
	move.w #$1234, (a0)+
	move.w #$5678, (a0)+
	lea $2004, a1
	move.w -(a1), d0
	move.w -(a1), d1
`)
	mustRun(t, it)
	wantReg(t, it, machine.A(0), 0x2004)
	wantReg(t, it, machine.A(1), 0x2000)
	wantReg(t, it, machine.D(0), 0x5678)
	wantReg(t, it, machine.D(1), 0x1234)
}

func TestByteOnStackPointerStaysEven(t *testing.T) {
	it := build(t, "move.b #$AB, -(a7)")
	mustStep(t, it)
	if got := it.SP(); got != testMemorySize-2 {
		t.Errorf("SP = 0x%X, want 0x%X (byte push moves SP by 2)", got, testMemorySize-2)
	}
}

func TestDisplacementAndIndex(t *testing.T) {
	it := build(t, `
	org $3000
data:	dc.l $11223344, $55667788
	lea data, a0
	move.l #4, d1
	move.l 4(a0), d2
	move.l (a0,d1.l), d3
	move.l -4+8(a0), d4
`)
	mustRun(t, it)
	wantReg(t, it, machine.D(2), 0x55667788)
	wantReg(t, it, machine.D(3), 0x55667788)
	wantReg(t, it, machine.D(4), 0x55667788)
}

func TestAddressOutOfBounds(t *testing.T) {
	it := build(t, "move.l $FFFFFF00, d0")
	_, status, err := it.Step()
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != ErrAddressOutOfBounds {
		t.Fatalf("err = %v, want AddressOutOfBounds", err)
	}
	if status != TerminatedWithException {
		t.Errorf("status = %v", status)
	}
}

// --- flag laws ---

func TestAddFlagLaw(t *testing.T) {
	cases := []struct {
		src, dst   uint32
		n, z, v, c bool
	}{
		{1, 2, false, false, false, false},
		{0, 0, false, true, false, false},
		{0x7FFFFFFF, 1, true, false, true, false},
		{0xFFFFFFFF, 1, false, true, false, true},
		{0x80000000, 0x80000000, false, true, true, true},
	}
	for _, tc := range cases {
		var f machine.Flags
		result := tc.dst + tc.src
		f.SetAdd(tc.src, tc.dst, result, machine.Long)
		if f.N != tc.n || f.Z != tc.z || f.V != tc.v || f.C != tc.c {
			t.Errorf("add %X+%X: NZVC=%v%v%v%v, want %v%v%v%v",
				tc.dst, tc.src, f.N, f.Z, f.V, f.C, tc.n, tc.z, tc.v, tc.c)
		}
		if f.X != f.C {
			t.Errorf("add %X+%X: X must equal C", tc.dst, tc.src)
		}
	}
}

func TestBranchLaw(t *testing.T) {
	// Condition false: PC advances by 4. Condition true: PC = target.
	it := build(t, "move.l #1, d0\nbeq skip\nbne skip\nskip: rts")
	mustStep(t, it) // sets Z=0
	mustStep(t, it) // beq not taken
	if it.PC() != 8 {
		t.Errorf("untaken branch: PC = %d, want 8", it.PC())
	}
	mustStep(t, it) // bne taken
	if it.PC() != 12 {
		t.Errorf("taken branch: PC = %d, want 12", it.PC())
	}
}

func TestDbraLoop(t *testing.T) {
	it := build(t, "move.w #3, d0\nloop: add.l #1, d1\ndbra d0, loop")
	mustRun(t, it)
	wantReg(t, it, machine.D(1), 4) // executes for counter 3,2,1,0
	if it.RegisterValue(machine.D(0), machine.Word) != 0xFFFF {
		t.Errorf("counter = 0x%X, want 0xFFFF", it.RegisterValue(machine.D(0), machine.Word))
	}
}

func TestSccAndConditions(t *testing.T) {
	it := build(t, "move.l #5, d0\ncmp.l #5, d0\nseq d1\nsne d2")
	mustRun(t, it)
	if it.RegisterValue(machine.D(1), machine.Byte) != 0xFF {
		t.Error("seq after equal compare should set 0xFF")
	}
	if it.RegisterValue(machine.D(2), machine.Byte) != 0 {
		t.Error("sne after equal compare should set 0x00")
	}
}

// --- subroutines ---

func TestJsrRtsAndCallStack(t *testing.T) {
	it := build(t, `
	move.l #1, d0
	jsr work
	move.l #3, d2
	move.l #9, d0
	trap #15
work:	move.l #2, d1
	rts
`)
	mustStep(t, it)
	mustStep(t, it) // jsr
	stack := it.CallStack()
	if len(stack) != 1 {
		t.Fatalf("call stack depth = %d, want 1", len(stack))
	}
	if stack[0].Label != "work" || stack[0].ReturnAddress != 8 {
		t.Errorf("frame = %+v, want label work, return 8", stack[0])
	}
	mustRun(t, it)
	if len(it.CallStack()) != 0 {
		t.Error("call stack should be empty after rts")
	}
	wantReg(t, it, machine.D(1), 2)
	wantReg(t, it, machine.D(2), 3)
}

func TestLinkUnlk(t *testing.T) {
	it := build(t, "link a6, #-8\nunlk a6")
	sp := it.SP()
	mustStep(t, it)
	if it.SP() != sp-4-8 {
		t.Errorf("SP after link = 0x%X, want 0x%X", it.SP(), sp-4-8)
	}
	wantReg(t, it, machine.A(6), sp-4)
	mustStep(t, it)
	if it.SP() != sp {
		t.Errorf("SP after unlk = 0x%X, want 0x%X", it.SP(), sp)
	}
	wantReg(t, it, machine.A(6), 0)
}

func TestPeaPushesAddress(t *testing.T) {
	it := build(t, "org $4000\nbuf: ds.b 4\n pea buf")
	mustRun(t, it)
	mem, err := it.ReadMemoryBytes(it.SP(), 4)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(mem, []byte{0, 0, 0x40, 0}) {
		t.Errorf("pushed address = % X, want 00 00 40 00", mem)
	}
}

// --- movem ---

func TestMovemRoundTrip(t *testing.T) {
	it := build(t, `
	move.l #1, d0
	move.l #2, d1
	move.l #3, d2
	movem.l d0-d2, -(a7)
	move.l #0, d0
	move.l #0, d1
	move.l #0, d2
	movem.l (a7)+, d0-d2
`)
	sp := it.SP()
	mustRun(t, it)
	wantReg(t, it, machine.D(0), 1)
	wantReg(t, it, machine.D(1), 2)
	wantReg(t, it, machine.D(2), 3)
	if it.SP() != sp {
		t.Errorf("SP = 0x%X, want balanced 0x%X", it.SP(), sp)
	}
}

func TestMovemWordLoadSignExtends(t *testing.T) {
	it := build(t, "org $5000\nvals: dc.w $8000\n movem.w vals, d3")
	mustRun(t, it)
	wantReg(t, it, machine.D(3), 0xFFFF8000)
}

// --- arithmetic details ---

func TestMulDiv(t *testing.T) {
	it := build(t, `
	move.l #6, d0
	muls #-7, d0
	move.l #100, d1
	divu #7, d1
`)
	mustRun(t, it)
	wantReg(t, it, machine.D(0), 0xFFFFFFD6) // -42
	wantReg(t, it, machine.D(1), 2<<16|14)   // 100 = 7*14 + 2
}

func TestDivisionOverflow(t *testing.T) {
	it := build(t, "move.l #$10000, d0\ndivu #1, d0")
	mustStep(t, it)
	_, _, err := it.Step()
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != ErrDivisionOverflow {
		t.Fatalf("err = %v, want DivisionOverflow", err)
	}
}

func TestAddaDoesNotTouchFlags(t *testing.T) {
	it := build(t, "move.l #0, d0\nadda.l #4, a0\nadd.l #0, d0")
	mustStep(t, it)
	mustStep(t, it)
	wantReg(t, it, machine.A(0), 4)
	// The zero move set Z; adda must not have cleared it.
	if !it.GetFlag(FlagZ) {
		t.Error("adda changed the flags")
	}
}

func TestExtSwapNegNotClr(t *testing.T) {
	it := build(t, `
	move.l #$FF, d0
	ext.w d0
	move.l #$12345678, d1
	swap d1
	move.l #1, d2
	neg.l d2
	move.l #0, d3
	not.l d3
	clr.w d1
`)
	mustRun(t, it)
	wantReg(t, it, machine.D(0), 0xFFFF)
	wantReg(t, it, machine.D(1), 0x56780000)
	wantReg(t, it, machine.D(2), 0xFFFFFFFF)
	wantReg(t, it, machine.D(3), 0xFFFFFFFF)
}

func TestExg(t *testing.T) {
	it := build(t, "move.l #1, d0\nlea $2000, a0\nexg d0, a0")
	mustRun(t, it)
	wantReg(t, it, machine.D(0), 0x2000)
	wantReg(t, it, machine.A(0), 1)
}

// --- shifts ---

func TestShiftFlags(t *testing.T) {
	it := build(t, "move.w #%1000000000000001, d0\nlsl.w #1, d0")
	mustRun(t, it)
	wantReg(t, it, machine.D(0), 2)
	// MSB shifted out: C=1, X=C, V=0 for logical shifts.
	wantFlags(t, it, true, false, false, false, true)
}

func TestAslOverflow(t *testing.T) {
	it := build(t, "move.w #$4000, d0\nasl.w #1, d0")
	mustRun(t, it)
	wantReg(t, it, machine.D(0), 0x8000)
	if !it.GetFlag(FlagV) || !it.GetFlag(FlagN) {
		t.Error("asl out of bit 14 must set V and N")
	}
}

func TestRotateKeepsX(t *testing.T) {
	// Set X via a shift, then rotate: X must survive.
	it := build(t, "move.w #1, d0\nlsr.w #1, d0\nmove.w #$8000, d1\nrol.w #1, d1")
	mustRun(t, it)
	wantReg(t, it, machine.D(1), 1)
	if !it.GetFlag(FlagX) {
		t.Error("rotate must leave X unchanged")
	}
	if !it.GetFlag(FlagC) {
		t.Error("rol carries the rotated bit into C")
	}
}

func TestShiftByRegisterCount(t *testing.T) {
	it := build(t, "move.l #1, d0\nmove.l #4, d1\nlsl.l d1, d0")
	mustRun(t, it)
	wantReg(t, it, machine.D(0), 16)
}

// --- bit operations ---

func TestBitOps(t *testing.T) {
	it := build(t, `
	move.l #%1010, d0
	btst #1, d0
	seq d1
	bclr #3, d0
	bset #0, d0
	bchg #2, d0
`)
	mustRun(t, it)
	wantReg(t, it, machine.D(0), 0b0111)
	if it.RegisterValue(machine.D(1), machine.Byte) != 0 {
		t.Error("btst of a set bit must clear Z")
	}
}

func TestBitOpOnMemoryIsByteWide(t *testing.T) {
	it := build(t, "org $6000\nflags: dc.b 0\n bset #9, flags")
	mustRun(t, it)
	mem, _ := it.ReadMemoryBytes(0x6000, 1)
	if mem[0] != 2 { // bit number taken mod 8
		t.Errorf("byte = %#x, want bit 1 set", mem[0])
	}
}

// --- BCD ---

func TestAbcd(t *testing.T) {
	it := build(t, "move.b #$19, d0\nmove.b #$27, d1\nabcd d0, d1")
	mustRun(t, it)
	if got := it.RegisterValue(machine.D(1), machine.Byte); got != 0x46 {
		t.Errorf("19 + 27 BCD = %02X, want 46", got)
	}
	if it.GetFlag(FlagC) || it.GetFlag(FlagX) {
		t.Error("no decimal carry expected")
	}
}

func TestSbcdBorrow(t *testing.T) {
	it := build(t, "move.b #$25, d0\nmove.b #$11, d1\nsbcd d0, d1")
	mustRun(t, it)
	if got := it.RegisterValue(machine.D(1), machine.Byte); got != 0x86 {
		t.Errorf("11 - 25 BCD = %02X, want 86 with borrow", got)
	}
	if !it.GetFlag(FlagC) || !it.GetFlag(FlagX) {
		t.Error("borrow must set C and X")
	}
}

// --- snapshots ---

func TestSnapshotSerializeRoundTrip(t *testing.T) {
	it := build(t, "move.l #$DEAD, d3\nlea $2000, a2")
	mustRun(t, it)
	snap := it.CpuSnapshot()
	buf := make([]byte, snap.SerializeSize())
	if err := snap.Serialize(buf); err != nil {
		t.Fatal(err)
	}
	restored, err := DeserializeSnapshot(buf)
	if err != nil {
		t.Fatal(err)
	}
	if restored != snap {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", restored, snap)
	}
}
