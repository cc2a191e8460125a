package expr

import (
	"fmt"

	"github.com/arbors/arbors"
)

// ExprKind discriminates the variants of Expr.
type ExprKind uint8

const (
	KindLiteral ExprKind = iota
	KindPath
	KindBinary
	KindNot
)

// BinOp identifies a binary operator.
type BinOp uint8

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

func (op BinOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	default:
		return "?"
	}
}

// Expr is a single node of a query expression tree: a literal, a field
// path, a binary operator, or a boolean negation. It is immutable;
// builder methods return new nodes.
type Expr struct {
	Kind ExprKind

	Lit  Value
	Path string

	Op          BinOp
	Left, Right *Expr
	Operand     *Expr
}

// Lit wraps a Go value as a literal expression. Supported types: nil,
// bool, int, int64, float64, string.
func Lit(v any) *Expr {
	switch x := v.(type) {
	case nil:
		return &Expr{Kind: KindLiteral, Lit: Null}
	case bool:
		return &Expr{Kind: KindLiteral, Lit: Bool(x)}
	case int:
		return &Expr{Kind: KindLiteral, Lit: Int64(int64(x))}
	case int64:
		return &Expr{Kind: KindLiteral, Lit: Int64(x)}
	case float64:
		return &Expr{Kind: KindLiteral, Lit: Float64(x)}
	case string:
		return &Expr{Kind: KindLiteral, Lit: String(x)}
	default:
		panic(fmt.Sprintf("expr.Lit: unsupported literal type %T", v))
	}
}

// Path resolves a dotted field path against the current tree root (the
// same syntax as Arbor.GetPath). A missing path evaluates to null rather
// than erroring; comparisons involving that null still yield a boolean,
// with null ordered before every other kind.
func Path(path string) *Expr {
	return &Expr{Kind: KindPath, Path: path}
}

func bin(op BinOp, l, r *Expr) *Expr {
	return &Expr{Kind: KindBinary, Op: op, Left: l, Right: r}
}

func (e *Expr) Add(r *Expr) *Expr { return bin(OpAdd, e, r) }
func (e *Expr) Sub(r *Expr) *Expr { return bin(OpSub, e, r) }
func (e *Expr) Mul(r *Expr) *Expr { return bin(OpMul, e, r) }
func (e *Expr) Div(r *Expr) *Expr { return bin(OpDiv, e, r) }
func (e *Expr) Eq(r *Expr) *Expr  { return bin(OpEq, e, r) }
func (e *Expr) Ne(r *Expr) *Expr  { return bin(OpNe, e, r) }
func (e *Expr) Lt(r *Expr) *Expr  { return bin(OpLt, e, r) }
func (e *Expr) Le(r *Expr) *Expr  { return bin(OpLe, e, r) }
func (e *Expr) Gt(r *Expr) *Expr  { return bin(OpGt, e, r) }
func (e *Expr) Ge(r *Expr) *Expr  { return bin(OpGe, e, r) }
func (e *Expr) And(r *Expr) *Expr { return bin(OpAnd, e, r) }
func (e *Expr) Or(r *Expr) *Expr  { return bin(OpOr, e, r) }

// Not negates a boolean expression.
func Not(e *Expr) *Expr {
	return &Expr{Kind: KindNot, Operand: e}
}

// String renders e as a single-line s-expression, used by the plan
// package's Explain formatter.
func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case KindLiteral:
		return e.Lit.String()
	case KindPath:
		return "path(" + e.Path + ")"
	case KindBinary:
		return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
	case KindNot:
		return fmt.Sprintf("!%s", e.Operand)
	default:
		return "?"
	}
}

// Eval evaluates e against one tree identified by root within a.
func (e *Expr) Eval(a *arbors.Arbor, root arbors.NodeID) (Value, error) {
	switch e.Kind {
	case KindLiteral:
		return e.Lit, nil
	case KindPath:
		id, ok := a.GetPath(root, e.Path)
		if !ok {
			return Null, nil
		}
		return valueAt(a, id)
	case KindNot:
		v, err := e.Operand.Eval(a, root)
		if err != nil {
			return Value{}, err
		}
		if v.Kind != KindBool {
			return Value{}, fmt.Errorf("expr: ! requires a bool operand, got %s", v)
		}
		return Bool(!v.B), nil
	case KindBinary:
		return e.evalBinary(a, root)
	default:
		return Value{}, fmt.Errorf("expr: unknown expression kind %d", e.Kind)
	}
}

func (e *Expr) evalBinary(a *arbors.Arbor, root arbors.NodeID) (Value, error) {
	if e.Op == OpAnd || e.Op == OpOr {
		l, err := e.Left.Eval(a, root)
		if err != nil {
			return Value{}, err
		}
		if l.Kind != KindBool {
			return Value{}, fmt.Errorf("expr: %s requires bool operands, got %s", e.Op, l)
		}
		if e.Op == OpAnd && !l.B {
			return Bool(false), nil
		}
		if e.Op == OpOr && l.B {
			return Bool(true), nil
		}
		r, err := e.Right.Eval(a, root)
		if err != nil {
			return Value{}, err
		}
		if r.Kind != KindBool {
			return Value{}, fmt.Errorf("expr: %s requires bool operands, got %s", e.Op, r)
		}
		return Bool(r.B), nil
	}

	l, err := e.Left.Eval(a, root)
	if err != nil {
		return Value{}, err
	}
	r, err := e.Right.Eval(a, root)
	if err != nil {
		return Value{}, err
	}

	switch e.Op {
	case OpEq:
		return Bool(Equal(l, r)), nil
	case OpNe:
		return Bool(!Equal(l, r)), nil
	case OpLt:
		return Bool(Compare(l, r) < 0), nil
	case OpLe:
		return Bool(Compare(l, r) <= 0), nil
	case OpGt:
		return Bool(Compare(l, r) > 0), nil
	case OpGe:
		return Bool(Compare(l, r) >= 0), nil
	case OpAdd, OpSub, OpMul, OpDiv:
		return evalArith(e.Op, l, r)
	default:
		return Value{}, fmt.Errorf("expr: unknown binary operator %d", e.Op)
	}
}

func evalArith(op BinOp, l, r Value) (Value, error) {
	lf, lok := l.asFloat()
	rf, rok := r.asFloat()
	if !lok || !rok {
		return Value{}, fmt.Errorf("expr: arithmetic requires numeric operands, got %s and %s", l, r)
	}
	if op == OpDiv {
		return Float64(lf / rf), nil
	}
	if l.Kind == KindInt64 && r.Kind == KindInt64 {
		switch op {
		case OpAdd:
			return Int64(l.I + r.I), nil
		case OpSub:
			return Int64(l.I - r.I), nil
		case OpMul:
			return Int64(l.I * r.I), nil
		}
	}
	switch op {
	case OpAdd:
		return Float64(lf + rf), nil
	case OpSub:
		return Float64(lf - rf), nil
	case OpMul:
		return Float64(lf * rf), nil
	default:
		return Value{}, fmt.Errorf("expr: unknown arithmetic operator %d", op)
	}
}

// valueAt reads the scalar Value stored at node id, per its NodeType.
// Array and Object nodes have no scalar representation.
func valueAt(a *arbors.Arbor, id arbors.NodeID) (Value, error) {
	n := a.Node(id)
	switch n.Type {
	case arbors.Null:
		return Null, nil
	case arbors.Bool:
		return Bool(a.GetBool(id)), nil
	case arbors.Int64:
		return Int64(a.GetInt64(id)), nil
	case arbors.Float64:
		return Float64(a.GetFloat64(id)), nil
	case arbors.String:
		return String(a.GetString(id)), nil
	case arbors.Date:
		return Int64(int64(a.GetDateDays(id))), nil
	case arbors.DateTime:
		return Int64(a.GetDateTimeMicros(id)), nil
	case arbors.Duration:
		return Int64(a.GetDurationMicros(id)), nil
	case arbors.Binary:
		return String(string(a.GetBinary(id))), nil
	default:
		return Value{}, fmt.Errorf("expr: node type %s has no scalar value", n.Type)
	}
}

// Walk calls visit for e and every expression reachable from it.
func Walk(e *Expr, visit func(*Expr)) {
	if e == nil {
		return
	}
	visit(e)
	Walk(e.Left, visit)
	Walk(e.Right, visit)
	Walk(e.Operand, visit)
}

// Paths returns every distinct field path referenced anywhere in e, used
// by the plan package's projection-pool analysis (spec §4.7).
func Paths(e *Expr) []string {
	seen := map[string]bool{}
	var out []string
	Walk(e, func(n *Expr) {
		if n.Kind == KindPath && !seen[n.Path] {
			seen[n.Path] = true
			out = append(out, n.Path)
		}
	})
	return out
}
