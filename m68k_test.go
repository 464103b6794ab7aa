package m68k

import (
	"testing"

	"github.com/m68kschool/interpreter/interp"
	"github.com/m68kschool/interpreter/machine"
	"github.com/m68kschool/interpreter/semantic"
)

func TestCompileAndRun(t *testing.T) {
	it, semErrs, err := Compile(`
	org $1000
nums:	dc.w 10, 20, 30
	lea nums, a0
	move.l #0, d0
	move.w #2, d1
loop:	add.w (a0)+, d0
	dbra d1, loop
	move.l #9, d0
	trap #15
`, 0x10000, interp.DefaultOptions())
	if err != nil || len(semErrs) != 0 {
		t.Fatalf("compile failed: %v %v", semErrs, err)
	}

	status, err := it.Run()
	if err != nil {
		t.Fatal(err)
	}
	if status != interp.Terminated {
		t.Fatalf("status = %v, want Terminated", status)
	}
	if got := it.RegisterValue(machine.A(0), machine.Long); got != 0x1006 {
		t.Errorf("A0 = 0x%X, want 0x1006 after three postincrements", got)
	}
}

func TestCompileSum(t *testing.T) {
	it, semErrs, err := Compile("move.l #2, d0\nadd.l #3, d0", 0x10000, interp.DefaultOptions())
	if err != nil || len(semErrs) != 0 {
		t.Fatalf("compile failed: %v %v", semErrs, err)
	}
	if _, err := it.Run(); err != nil {
		t.Fatal(err)
	}
	if got := it.RegisterValue(machine.D(0), machine.Long); got != 5 {
		t.Errorf("D0 = %d, want 5", got)
	}
}

func TestCompileRefusesSemanticErrors(t *testing.T) {
	it, semErrs, err := Compile("moveq #500, d0\nbra nowhere", 0, interp.DefaultOptions())
	if it != nil || err != nil {
		t.Fatalf("expected semantic refusal, got it=%v err=%v", it, err)
	}
	if len(semErrs) != 2 {
		t.Fatalf("got %d diagnostics, want 2: %v", len(semErrs), semErrs)
	}
	tags := map[semantic.ErrorTag]bool{}
	for _, e := range semErrs {
		tags[e.Tag] = true
	}
	if !tags[semantic.ImmediateOutOfRange] || !tags[semantic.UnresolvedLabel] {
		t.Errorf("diagnostics = %v, want ImmediateOutOfRange and UnresolvedLabel", semErrs)
	}
}

func TestSemanticCheckHelper(t *testing.T) {
	if errs := SemanticCheck("move.l #1, d0"); len(errs) != 0 {
		t.Errorf("unexpected diagnostics: %v", errs)
	}
	if errs := SemanticCheck("frobnicate d0"); len(errs) == 0 {
		t.Error("expected a diagnostic for an unknown mnemonic")
	}
}

func TestLexHelper(t *testing.T) {
	lines := Lex("start: move.l #1, d0 ; comment")
	if len(lines) != 1 {
		t.Fatalf("got %d lines", len(lines))
	}
	parsed := lines[0].Parsed
	if parsed.Mnemonic != "move" || parsed.Label != "start" || len(parsed.Operands) != 2 {
		t.Errorf("parsed = %+v", parsed)
	}
}
