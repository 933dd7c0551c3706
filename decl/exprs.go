package decl

import (
	"fmt"
	"strings"

	gfn "github.com/panyam/goutils/fn"
)

// Expr represents an expression node.
type Expr interface {
	Node
	exprNode() // Marker method for expressions
	PrettyPrint(cp CodePrinter)
}

type ExprBase struct {
	NodeInfo
}

func (e *ExprBase) exprNode() {}

// NumberLiteral keeps the source text so printing reproduces the literal exactly.
type NumberLiteral struct {
	ExprBase
	Text      string
	Value     float64
	IsInteger bool
}

func (n *NumberLiteral) String() string { return n.Text }

type StringLiteral struct {
	ExprBase
	Value string
}

func (s *StringLiteral) String() string { return fmt.Sprintf("%q", s.Value) }

type BoolLiteral struct {
	ExprBase
	Value bool
}

func (b *BoolLiteral) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}

// RefPart is one segment of a component reference: `name` or `name[i, j]`.
type RefPart struct {
	NodeInfo
	Name    string
	Indices []Expr
}

func (r *RefPart) String() string {
	if len(r.Indices) == 0 {
		return r.Name
	}
	return fmt.Sprintf("%s[%s]", r.Name, strings.Join(gfn.Map(r.Indices, func(e Expr) string { return e.String() }), ", "))
}

// RefExpr is a dotted component-reference path, eg `resistor.p.v` or `x[2]`.
type RefExpr struct {
	ExprBase
	Parts []*RefPart
}

func (r *RefExpr) String() string {
	return strings.Join(gfn.Map(r.Parts, func(p *RefPart) string { return p.String() }), ".")
}

// Head returns the first segment name.
func (r *RefExpr) Head() string { return r.Parts[0].Name }

// Path returns the dotted path including any indices, eg `a.b[1].c`.
func (r *RefExpr) Path() string { return r.String() }

// HasIndices reports whether any segment is indexed.
func (r *RefExpr) HasIndices() bool {
	for _, p := range r.Parts {
		if len(p.Indices) > 0 {
			return true
		}
	}
	return false
}

// UnaryExpr represents `operator operand`
type UnaryExpr struct {
	ExprBase
	Operator string // "-", "+", "not"
	Right    Expr
}

func (u *UnaryExpr) String() string { return Print(u) }

// BinaryExpr represents `left operator right`
type BinaryExpr struct {
	ExprBase
	Left     Expr
	Operator string
	Right    Expr
}

func (b *BinaryExpr) String() string { return Print(b) }

// TernaryExpr represents `cond ? then : else`
type TernaryExpr struct {
	ExprBase
	Cond Expr
	Then Expr
	Else Expr
}

func (t *TernaryExpr) String() string { return Print(t) }

// CallExpr is a function call or an instantiation, `der(x)`, `Resistor(R=100)`.
type CallExpr struct {
	ExprBase
	Func  *Ident
	Args  []Expr
	Named []*NamedArg
}

func (c *CallExpr) Name() string   { return c.Func.Name }
func (c *CallExpr) String() string { return Print(c) }

// NamedArg returns the keyword argument with the given name if present.
func (c *CallExpr) NamedArg(name string) *NamedArg { return findArg(c.Named, name) }

// ArrayExpr represents `[a, b, c]`
type ArrayExpr struct {
	ExprBase
	Elements []Expr
}

func (a *ArrayExpr) String() string { return Print(a) }

// --- Operator table ---

// Precedence levels from lowest to highest.
const (
	PrecTernary = iota + 1
	PrecOr
	PrecAnd
	PrecNot
	PrecRelational
	PrecAdditive
	PrecMultiplicative
	PrecUnary
	PrecPower
	PrecPrimary
)

var binaryPrecedence = map[string]int{
	"or": PrecOr,
	"and": PrecAnd,
	"==": PrecRelational, "!=": PrecRelational, "<": PrecRelational, "<=": PrecRelational, ">": PrecRelational, ">=": PrecRelational,
	"+": PrecAdditive, "-": PrecAdditive, ".+": PrecAdditive, ".-": PrecAdditive,
	"*": PrecMultiplicative, "/": PrecMultiplicative, "%": PrecMultiplicative,
	".*": PrecMultiplicative, "./": PrecMultiplicative, ".%": PrecMultiplicative,
	"^": PrecPower, ".^": PrecPower,
}

// BinaryPrecedence returns the precedence of a binary operator or 0 if unknown.
func BinaryPrecedence(op string) int { return binaryPrecedence[op] }

// IsElementWise reports whether op is one of the dotted element-wise operators.
func IsElementWise(op string) bool { return len(op) == 2 && op[0] == '.' }

// ScalarOf maps an element-wise operator to its scalar counterpart (`.*` -> `*`).
func ScalarOf(op string) string {
	if IsElementWise(op) {
		return op[1:]
	}
	return op
}

// ExprPrecedence is the binding strength of the node at its root.
func ExprPrecedence(e Expr) int {
	switch n := e.(type) {
	case *TernaryExpr:
		return PrecTernary
	case *BinaryExpr:
		return BinaryPrecedence(n.Operator)
	case *UnaryExpr:
		if n.Operator == "not" {
			return PrecNot
		}
		return PrecUnary
	}
	return PrecPrimary
}
