// Package m68k is an educational interpreter for a subset of the
// Motorola 68000 assembly language. Source text flows through a
// four-stage pipeline: the lexer produces typed operand trees, the
// semantic checker validates them against per-mnemonic contracts, the
// compiler resolves labels and lays out data, and the interpreter
// executes the result against a modeled CPU and memory with snapshots,
// undo, and a synchronous trap #15 I/O handshake.
//
// This package is the facade the hosting environment talks to; the
// pipeline stages live in the lexer, semantic, compiler, and interp
// packages, with the CPU/memory model in machine and persistent
// settings in config.
package m68k

import (
	"errors"

	"github.com/m68kschool/interpreter/compiler"
	"github.com/m68kschool/interpreter/interp"
	"github.com/m68kschool/interpreter/lexer"
	"github.com/m68kschool/interpreter/semantic"
)

// Lex tokenizes source into parsed lines without validating them.
func Lex(source string) []lexer.ParsedLine {
	return lexer.Lex(source)
}

// SemanticCheck returns every diagnostic for the source, pre-execution.
// An empty result means the checker found no error; the compiler can
// still reject layout-ordering problems, such as a ds count naming an
// equ defined further down.
func SemanticCheck(source string) []*semantic.SemanticError {
	return semantic.Check(lexer.Lex(source))
}

// Compile runs the full pipeline and constructs an interpreter over a
// memory of memorySize bytes (the 24-bit default when zero).
//
// Semantic diagnostics are returned as a list and refuse compilation;
// faults in the later stages (layout ordering, memory image overflow)
// surface through the error return. Exactly one of the interpreter and
// the failure results is populated.
func Compile(source string, memorySize int, opts interp.Options) (*interp.Interpreter, []*semantic.SemanticError, error) {
	lines := lexer.Lex(source)
	if semErrs := semantic.Check(lines); len(semErrs) > 0 {
		return nil, semErrs, nil
	}

	program, compileErrs := compiler.Compile(lines)
	if len(compileErrs) > 0 {
		errs := make([]error, len(compileErrs))
		for i, e := range compileErrs {
			errs[i] = e
		}
		return nil, nil, errors.Join(errs...)
	}

	it, err := interp.New(program, memorySize, opts)
	if err != nil {
		return nil, nil, err
	}
	return it, nil, nil
}
