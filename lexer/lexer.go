package lexer

import (
	"strings"

	"github.com/m68kschool/interpreter/machine"
)

// Lex splits source into physical lines and parses each into a
// ParsedLine. It never fails: syntax it cannot classify is recorded as
// KindUnknown or an OperandOther operand for the semantic checker to
// reject with a proper diagnostic.
func Lex(source string) []ParsedLine {
	rawLines := strings.Split(strings.ReplaceAll(source, "\r\n", "\n"), "\n")
	lines := make([]ParsedLine, len(rawLines))
	for i, raw := range rawLines {
		lines[i] = ParsedLine{
			Raw:       raw,
			LineIndex: i,
			Parsed:    lexLine(raw),
		}
	}
	return lines
}

func lexLine(raw string) LexedLine {
	trimmed := strings.TrimSpace(raw)

	if trimmed == "" {
		return LexedLine{Kind: KindEmpty}
	}

	// A line starting with '*' (after leading whitespace) is a
	// full-line comment, the classic 68k assembler convention.
	if trimmed[0] == '*' {
		return LexedLine{Kind: KindComment, Comment: trimmed[1:]}
	}

	line, comment, hasComment := stripInlineComment(trimmed)
	line = strings.TrimSpace(line)
	if line == "" {
		if hasComment {
			return LexedLine{Kind: KindComment, Comment: comment}
		}
		return LexedLine{Kind: KindEmpty}
	}

	// Label: "name:" optionally followed by more content on the same
	// line, or a bare identifier standing alone that is not an
	// operandless mnemonic.
	if colon := strings.IndexByte(line, ':'); colon != -1 {
		name := strings.TrimSpace(line[:colon])
		if isIdentifier(name) {
			rest := strings.TrimSpace(line[colon+1:])
			if rest == "" {
				return LexedLine{Kind: KindLabel, Label: name}
			}
			// A label sharing its line with a statement, e.g.
			// "start: move.l #1,d0", binds the label to that
			// statement's address.
			stmt := lexStatement(rest)
			stmt.Label = name
			return stmt
		}
	}
	if isIdentifier(line) && !operandlessMnemonics[strings.ToLower(line)] {
		return LexedLine{Kind: KindLabel, Label: line}
	}

	// Column-one label without a colon, the old assembler convention:
	// "size equ 10". Only directives use this form here; instructions
	// require an explicit colon on their label.
	if first, rest := splitMnemonic(line); isIdentifier(first) && rest != "" {
		dirTok, _ := splitMnemonic(rest)
		dirName, _, _ := splitSizeSuffix(dirTok)
		if directiveNames[strings.ToLower(dirName)] {
			stmt := lexStatement(rest)
			stmt.Label = first
			return stmt
		}
	}

	return lexStatement(line)
}

// stripInlineComment removes a ';'-introduced comment that starts
// outside a single-quoted character/string literal.
func stripInlineComment(line string) (code, comment string, found bool) {
	inQuote := false
	for i, r := range line {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == ';' && !inQuote:
			return line[:i], line[i+1:], true
		}
	}
	return line, "", false
}

// operandlessMnemonics are the instructions written with no operands,
// so a line holding only one of them is a statement, not a label.
var operandlessMnemonics = map[string]bool{"rts": true}

var directiveNames = map[string]bool{
	"equ": true, "org": true,
	"dc": true, "ds": true, "dcb": true,
}

func lexStatement(line string) LexedLine {
	mnemonic, operandStr := splitMnemonic(line)
	name, size, hasSize := splitSizeSuffix(mnemonic)

	base := strings.ToLower(strings.TrimPrefix(name, "."))
	if directiveNames[base] {
		args := splitOperands(operandStr)
		if operandStr == "" {
			args = nil
		}
		return LexedLine{
			Kind:          KindDirective,
			DirectiveName: base,
			DirectiveArgs: args,
			HasSize:       hasSize,
			Size:          size,
		}
	}

	var operands []LexedOperand
	if operandStr != "" {
		for _, part := range splitOperands(operandStr) {
			operands = append(operands, parseOperand(part))
		}
	}

	if name == "" || !isIdentifier(name) {
		return LexedLine{Kind: KindUnknown, Content: line}
	}

	return LexedLine{
		Kind:     KindInstruction,
		Mnemonic: strings.ToLower(name),
		HasSize:  hasSize,
		Size:     size,
		Operands: operands,
	}
}

// splitMnemonic separates the leading mnemonic/directive token from
// its operand list.
func splitMnemonic(line string) (mnemonic, operands string) {
	idx := strings.IndexAny(line, " \t")
	if idx == -1 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx:])
}

// splitSizeSuffix splits a trailing ".b"/".w"/".l" size suffix off a
// mnemonic or directive name. Default size is Word; callers that need
// an instruction-specific default apply it themselves using HasSize.
func splitSizeSuffix(mnemonic string) (name string, size machine.Size, hasSize bool) {
	dot := strings.LastIndexByte(mnemonic, '.')
	if dot == -1 {
		return mnemonic, machine.Word, false
	}
	suffix := strings.ToLower(mnemonic[dot+1:])
	switch suffix {
	case "b":
		return mnemonic[:dot], machine.Byte, true
	case "w":
		return mnemonic[:dot], machine.Word, true
	case "l":
		return mnemonic[:dot], machine.Long, true
	default:
		return mnemonic, machine.Word, false
	}
}
