package lexer

import (
	"strconv"
	"strings"

	"github.com/m68kschool/interpreter/machine"
)

// splitOperands splits an operand-list string on top-level commas,
// ignoring commas nested inside parentheses or single-quoted
// character/string literals. Grounded on the assembler's splitOperands,
// generalized to also balance quotes so a literal like 'x' or ',' never
// splits an operand early.
func splitOperands(s string) []string {
	var result []string
	parenLevel := 0
	inQuote := false
	last := 0
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case r == '\'' && !inQuote:
			inQuote = true
		case r == '\'' && inQuote:
			inQuote = false
		case inQuote:
			// inside a quote, nothing splits
		case r == '(':
			parenLevel++
		case r == ')':
			if parenLevel > 0 {
				parenLevel--
			}
		case r == ',' && parenLevel == 0:
			result = append(result, strings.TrimSpace(string(runes[last:i])))
			last = i + 1
		}
	}
	result = append(result, strings.TrimSpace(string(runes[last:])))
	return result
}

func isRegisterName(s string) (machine.Register, bool) {
	if len(s) != 2 {
		return machine.Register{}, false
	}
	kind := s[0] | 0x20 // lowercase
	digit := s[1]
	if digit < '0' || digit > '7' {
		return machine.Register{}, false
	}
	n := digit - '0'
	switch kind {
	case 'd':
		return machine.D(n), true
	case 'a':
		return machine.A(n), true
	}
	return machine.Register{}, false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if i == 0 {
			if !isAlpha {
				return false
			}
		} else if !isAlpha && !isDigit {
			return false
		}
	}
	return true
}

// looksLikeExpression reports whether s opens with syntax that only
// an arithmetic expression can start with: a digit, a radix prefix, a
// character literal, a unary sign, or a parenthesized sub-expression
// that isn't an addressing mode (callers have already ruled those out).
func looksLikeExpression(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	switch {
	case c >= '0' && c <= '9':
		return true
	case c == '$' || c == '%' || c == '@' || c == '\'' || c == '-' || c == '+' || c == '(' || c == '~':
		return true
	}
	// An identifier followed by an operator (e.g. "arr+2") is also an
	// expression, not a bare label reference.
	for _, r := range s {
		if strings.ContainsRune("+-*/%()", r) {
			return true
		}
	}
	return false
}

// parseIndexSpec parses an "Xn.s" index term, e.g. "D3.w" or "A2.l".
// The size suffix defaults to Word when omitted.
func parseIndexSpec(s string) (IndexSpec, bool) {
	s = strings.TrimSpace(s)
	regPart := s
	sz := machine.Word
	if dot := strings.LastIndexByte(s, '.'); dot != -1 {
		regPart = s[:dot]
		switch strings.ToLower(s[dot+1:]) {
		case "w":
			sz = machine.Word
		case "l":
			sz = machine.Long
		default:
			return IndexSpec{}, false
		}
	}
	reg, ok := isRegisterName(regPart)
	if !ok {
		return IndexSpec{}, false
	}
	return IndexSpec{Reg: reg, Size: sz}, true
}

// parseOperand classifies one operand's raw text into a LexedOperand.
// It performs no validation beyond recognizing syntactic shape;
// anything it cannot classify becomes OperandOther for the semantic
// checker to reject.
func parseOperand(raw string) LexedOperand {
	s := strings.TrimSpace(raw)
	base := LexedOperand{Raw: raw}

	switch {
	case s == "":
		base.Kind = OperandOther
		return base

	case strings.HasPrefix(s, "#"):
		base.Kind = OperandImmediate
		base.Expr = strings.TrimSpace(s[1:])
		return base

	case isTwoCharRegister(s):
		reg, _ := isRegisterName(s)
		base.Kind = OperandRegister
		base.Reg = reg
		return base

	case isRegisterListSyntax(s):
		// MOVEM register lists ("d0-d3/a0") are not addressing modes;
		// they pass through as Other for the downstream stages.
		base.Kind = OperandOther
		return base

	case strings.HasPrefix(s, "-(") && strings.HasSuffix(s, ")"):
		inner := parseOperand(s[2 : len(s)-1])
		base.Kind = OperandPreIndirect
		base.Inner = &inner
		return base

	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")+"):
		inner := parseOperand(s[1 : len(s)-2])
		base.Kind = OperandPostIndirect
		base.Inner = &inner
		return base

	case strings.HasSuffix(s, ")") && strings.Contains(s, "("):
		return parseIndirectOrDisplacement(s, base)

	case isIdentifier(s) && !looksLikeExpression(s):
		base.Kind = OperandLabel
		base.Label = s
		return base

	default:
		base.Kind = OperandAbsolute
		base.Expr = s
		return base
	}
}

func isTwoCharRegister(s string) bool {
	_, ok := isRegisterName(s)
	return ok
}

func isRegisterListSyntax(s string) bool {
	if !strings.ContainsAny(s, "-/") {
		return false
	}
	_, ok := ParseRegisterList(s)
	return ok
}

// parseIndirectOrDisplacement handles "d(An)", "(An)", and
// "d(An,Xn.s)" forms. The text before the final '(' is the
// displacement expression (may be empty); the text inside the
// parentheses is either "An" or "An,Xn.s".
func parseIndirectOrDisplacement(s string, base LexedOperand) LexedOperand {
	open := strings.LastIndexByte(s, '(')
	if open == -1 || !strings.HasSuffix(s, ")") {
		base.Kind = OperandOther
		return base
	}
	offset := strings.TrimSpace(s[:open])
	inside := s[open+1 : len(s)-1]
	parts := splitTopLevelComma(inside)

	switch len(parts) {
	case 1:
		reg, ok := isRegisterName(strings.TrimSpace(parts[0]))
		if !ok {
			base.Kind = OperandOther
			return base
		}
		baseOperand := LexedOperand{Kind: OperandRegister, Reg: reg, Raw: parts[0]}
		base.Kind = OperandIndirectOrDisplacement
		base.Offset = offset
		base.Base = &baseOperand
		return base

	case 2:
		reg, ok := isRegisterName(strings.TrimSpace(parts[0]))
		if !ok {
			base.Kind = OperandOther
			return base
		}
		idx, ok := parseIndexSpec(parts[1])
		if !ok {
			base.Kind = OperandOther
			return base
		}
		baseOperand := LexedOperand{Kind: OperandRegister, Reg: reg, Raw: parts[0]}
		base.Kind = OperandIndirectBaseDisplacement
		base.Offset = offset
		base.Base = &baseOperand
		base.Index = &idx
		return base
	}

	base.Kind = OperandOther
	return base
}

func splitTopLevelComma(s string) []string {
	var parts []string
	depth := 0
	last := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, s[last:])
	return parts
}

// parseNumericLiteral recognizes decimal/$hex/%bin/@oct literals.
// Nothing calls it: the expression evaluator (package expr) has its
// own tokenizer. Not part of the lexer's public surface.
func parseNumericLiteral(s string) (int64, bool) {
	switch {
	case strings.HasPrefix(s, "$"):
		v, err := strconv.ParseInt(s[1:], 16, 64)
		return v, err == nil
	case strings.HasPrefix(s, "%"):
		v, err := strconv.ParseInt(s[1:], 2, 64)
		return v, err == nil
	case strings.HasPrefix(s, "@"):
		v, err := strconv.ParseInt(s[1:], 8, 64)
		return v, err == nil
	default:
		v, err := strconv.ParseInt(s, 10, 64)
		return v, err == nil
	}
}
