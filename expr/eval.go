package expr

import "log"

// UnresolvedLabelError reports that an expression referenced a symbol
// the environment cannot resolve. The compiler reports it like any
// other evaluation error; during layout it means the symbol is only
// defined further down.
type UnresolvedLabelError struct {
	Name string
}

func (e *UnresolvedLabelError) Error() string {
	return "unresolved symbol " + quote(e.Name)
}

// DivideByZeroError reports a "/" or "%" whose right operand
// evaluates to zero, caught at compile time rather than surfacing as
// a runtime DivisionByZero fault.
type DivideByZeroError struct {
	Expr string
}

func (e *DivideByZeroError) Error() string {
	return "division by zero in expression " + quote(e.Expr)
}

// Eval parses and evaluates s against env. The result wraps modulo
// 2^32 on overflow; a diagnostic is logged rather than returned as an
// error, matching the documented behavior that overflow is a recorded
// anomaly, not a hard failure.
func Eval(s string, env Environment) (int32, error) {
	n, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return evalNode(n, env, s)
}

func evalNode(n *node, env Environment, src string) (int32, error) {
	switch n.kind {
	case nodeNumber:
		return n.value, nil

	case nodeIdent:
		v, ok := env.Lookup(n.name)
		if !ok {
			return 0, &UnresolvedLabelError{Name: n.name}
		}
		return v, nil

	case nodeUnary:
		a, err := evalNode(n.a, env, src)
		if err != nil {
			return 0, err
		}
		switch n.op {
		case opNeg:
			return wrap(-int64(a), src), nil
		case opPos:
			return a, nil
		}

	case nodeBinary:
		a, err := evalNode(n.a, env, src)
		if err != nil {
			return 0, err
		}
		b, err := evalNode(n.b, env, src)
		if err != nil {
			return 0, err
		}
		switch n.op {
		case opAdd:
			return wrap(int64(a)+int64(b), src), nil
		case opSub:
			return wrap(int64(a)-int64(b), src), nil
		case opMul:
			return wrap(int64(a)*int64(b), src), nil
		case opDiv:
			if b == 0 {
				return 0, &DivideByZeroError{Expr: src}
			}
			return wrap(int64(a)/int64(b), src), nil
		case opMod:
			if b == 0 {
				return 0, &DivideByZeroError{Expr: src}
			}
			return wrap(int64(a)%int64(b), src), nil
		}
	}
	return 0, &Error{Expr: src, Message: "malformed expression tree"}
}

func wrap(v int64, src string) int32 {
	const mod = int64(1) << 32
	wrapped := v % mod
	if wrapped != v {
		log.Printf("expr: value %d in %q overflowed 32 bits, wrapped to %d", v, src, int32(uint32(wrapped)))
	}
	return int32(uint32(wrapped))
}
