package interp

import (
	"strings"
	"testing"

	"github.com/m68kschool/interpreter/machine"
)

func runToInterrupt(t *testing.T, source string) *Interpreter {
	t.Helper()
	it := build(t, source)
	status := mustRun(t, it)
	if status != Interrupted {
		t.Fatalf("status = %v, want Interrupt", status)
	}
	return it
}

func TestDisplayString(t *testing.T) {
	it := runToInterrupt(t, `
	org $1000
msg:	dc.b 'hello!'
	move.l #0, d0
	move.w #6, d1
	lea msg, a1
	trap #15
`)
	intr := it.CurrentInterrupt()
	if intr.Kind != DisplayStringWithCRLF || intr.Text != "hello!" {
		t.Fatalf("interrupt = %+v, want DisplayStringWithCRLF{hello!}", intr)
	}
	if err := it.AnswerInterrupt(InterruptResult{Kind: DisplayStringWithCRLF}); err != nil {
		t.Fatal(err)
	}
	if mustRun(t, it) != Terminated {
		t.Error("want Terminated after display")
	}
}

func TestReadNumberWritesD1(t *testing.T) {
	it := runToInterrupt(t, "move.l #4, d0\ntrap #15")
	if it.CurrentInterrupt().Kind != ReadNumber {
		t.Fatal("want ReadNumber")
	}
	if err := it.AnswerInterrupt(InterruptResult{Kind: ReadNumber, Number: -42}); err != nil {
		t.Fatal(err)
	}
	wantReg(t, it, machine.D(1), 0xFFFFFFD6)
}

func TestReadCharWritesD1Byte(t *testing.T) {
	it := runToInterrupt(t, "move.l #5, d0\nmove.l #$11223344, d1\ntrap #15")
	if err := it.AnswerInterrupt(InterruptResult{Kind: ReadChar, Char: 'A'}); err != nil {
		t.Fatal(err)
	}
	wantReg(t, it, machine.D(1), 0x11223341)
}

func TestReadKeyboardString(t *testing.T) {
	it := runToInterrupt(t, `
	org $2000
buf:	ds.b 80
	move.l #2, d0
	lea buf, a1
	trap #15
`)
	intr := it.CurrentInterrupt()
	if intr.Kind != ReadKeyboardString || intr.Address != 0x2000 {
		t.Fatalf("interrupt = %+v, want ReadKeyboardString at 0x2000", intr)
	}
	if err := it.AnswerInterrupt(InterruptResult{Kind: ReadKeyboardString, Text: "input"}); err != nil {
		t.Fatal(err)
	}
	mem, _ := it.ReadMemoryBytes(0x2000, 5)
	if string(mem) != "input" {
		t.Errorf("buffer = %q, want input", mem)
	}
	wantReg(t, it, machine.D(1), 5)
}

func TestReadKeyboardStringTruncatesTo80(t *testing.T) {
	it := runToInterrupt(t, `
	org $2000
buf:	ds.b 100
	move.l #2, d0
	lea buf, a1
	trap #15
`)
	long := strings.Repeat("x", 200)
	if err := it.AnswerInterrupt(InterruptResult{Kind: ReadKeyboardString, Text: long}); err != nil {
		t.Fatal(err)
	}
	if got := it.RegisterValue(machine.D(1), machine.Word); got != 80 {
		t.Errorf("length = %d, want 80", got)
	}
}

func TestGetTime(t *testing.T) {
	it := runToInterrupt(t, "move.l #8, d0\ntrap #15")
	intr := it.CurrentInterrupt()
	if intr.Kind != GetTime {
		t.Fatal("want GetTime")
	}
	if err := it.AnswerInterrupt(InterruptResult{Kind: GetTime}); err != nil {
		t.Fatal(err)
	}
	if it.RegisterValue(machine.D(1), machine.Long) != intr.Elapsed {
		t.Error("answered GetTime must store the reported counter in D1")
	}
}

func TestInterruptMismatch(t *testing.T) {
	it := runToInterrupt(t, "move.l #4, d0\ntrap #15")
	err := it.AnswerInterrupt(InterruptResult{Kind: DisplayNumber})
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != ErrInterruptMismatch {
		t.Fatalf("err = %v, want InterruptMismatch", err)
	}
	// The interrupt is still pending and answerable.
	if it.GetStatus() != Interrupted || it.CurrentInterrupt() == nil {
		t.Fatal("mismatch must leave the interrupt pending")
	}
	if err := it.AnswerInterrupt(InterruptResult{Kind: ReadNumber, Number: 1}); err != nil {
		t.Fatal(err)
	}
}

func TestAnswerWithoutPendingInterrupt(t *testing.T) {
	it := build(t, "move.l #1, d0")
	err := it.AnswerInterrupt(InterruptResult{Kind: ReadNumber})
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != ErrInterruptMismatch {
		t.Fatalf("err = %v, want InterruptMismatch", err)
	}
}

func TestStepDuringInterruptFails(t *testing.T) {
	it := runToInterrupt(t, "move.l #4, d0\ntrap #15")
	_, status, err := it.Step()
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != ErrUnansweredInterrupt {
		t.Fatalf("err = %v, want UnansweredInterrupt", err)
	}
	if status != Interrupted {
		t.Errorf("status = %v; stepping during an interrupt must not terminate", status)
	}
}

func TestUndoPastInterruptRestoresAnswer(t *testing.T) {
	it := runToInterrupt(t, "move.l #4, d0\ntrap #15")
	if err := it.AnswerInterrupt(InterruptResult{Kind: ReadNumber, Number: 1234}); err != nil {
		t.Fatal(err)
	}
	wantReg(t, it, machine.D(1), 1234)
	// Undoing the trap step also reverses the answer's D1 write.
	if err := it.Undo(); err != nil {
		t.Fatal(err)
	}
	wantReg(t, it, machine.D(1), 0)
}

func TestUnsupportedInterruptCode(t *testing.T) {
	it := build(t, "move.l #7, d0\ntrap #15")
	status, err := it.Run()
	rerr, ok := err.(*RuntimeError)
	if !ok || rerr.Kind != ErrIllegalInstruction {
		t.Fatalf("err = %v, want IllegalInstruction", err)
	}
	if status != TerminatedWithException {
		t.Errorf("status = %v", status)
	}
}
