package decl

import (
	"strconv"
	"strings"
)

// Walk visits e and its children depth first.  Returning false from visit skips the children.
func Walk(e Expr, visit func(Expr) bool) {
	if e == nil || !visit(e) {
		return
	}
	switch n := e.(type) {
	case *RefExpr:
		for _, p := range n.Parts {
			for _, idx := range p.Indices {
				Walk(idx, visit)
			}
		}
	case *UnaryExpr:
		Walk(n.Right, visit)
	case *BinaryExpr:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *TernaryExpr:
		Walk(n.Cond, visit)
		Walk(n.Then, visit)
		Walk(n.Else, visit)
	case *CallExpr:
		for _, a := range n.Args {
			Walk(a, visit)
		}
		for _, a := range n.Named {
			Walk(a.Value, visit)
		}
	case *ArrayExpr:
		for _, el := range n.Elements {
			Walk(el, visit)
		}
	}
}

// Refs returns every reference in e in visiting order.
func Refs(e Expr) (out []*RefExpr) {
	Walk(e, func(n Expr) bool {
		if r, ok := n.(*RefExpr); ok {
			out = append(out, r)
		}
		return true
	})
	return
}

// RewriteRefs returns a copy of e where every reference is replaced by fn(ref).
// Index expressions inside references are rewritten before fn sees the reference.
func RewriteRefs(e Expr, fn func(*RefExpr) Expr) Expr {
	switch n := e.(type) {
	case nil:
		return nil
	case *RefExpr:
		out := &RefExpr{ExprBase: n.ExprBase}
		for _, p := range n.Parts {
			np := &RefPart{NodeInfo: p.NodeInfo, Name: p.Name}
			for _, idx := range p.Indices {
				np.Indices = append(np.Indices, RewriteRefs(idx, fn))
			}
			out.Parts = append(out.Parts, np)
		}
		return fn(out)
	case *UnaryExpr:
		return &UnaryExpr{ExprBase: n.ExprBase, Operator: n.Operator, Right: RewriteRefs(n.Right, fn)}
	case *BinaryExpr:
		return &BinaryExpr{ExprBase: n.ExprBase, Left: RewriteRefs(n.Left, fn), Operator: n.Operator, Right: RewriteRefs(n.Right, fn)}
	case *TernaryExpr:
		return &TernaryExpr{ExprBase: n.ExprBase, Cond: RewriteRefs(n.Cond, fn), Then: RewriteRefs(n.Then, fn), Else: RewriteRefs(n.Else, fn)}
	case *CallExpr:
		out := &CallExpr{ExprBase: n.ExprBase, Func: n.Func}
		for _, a := range n.Args {
			out.Args = append(out.Args, RewriteRefs(a, fn))
		}
		for _, a := range n.Named {
			out.Named = append(out.Named, &NamedArg{NodeInfo: a.NodeInfo, NameNode: a.NameNode, Value: RewriteRefs(a.Value, fn)})
		}
		return out
	case *ArrayExpr:
		out := &ArrayExpr{ExprBase: n.ExprBase}
		for _, el := range n.Elements {
			out.Elements = append(out.Elements, RewriteRefs(el, fn))
		}
		return out
	}
	// literals are immutable
	return e
}

// CloneExpr deep copies an expression tree.
func CloneExpr(e Expr) Expr {
	return RewriteRefs(e, func(r *RefExpr) Expr { return r })
}

// Prefixed returns a copy of r with prefix (a dotted path) prepended.
func Prefixed(prefix string, r *RefExpr) *RefExpr {
	if prefix == "" {
		return r
	}
	out := &RefExpr{ExprBase: r.ExprBase}
	for _, name := range strings.Split(prefix, ".") {
		out.Parts = append(out.Parts, &RefPart{Name: name})
	}
	out.Parts = append(out.Parts, r.Parts...)
	return out
}

// --- Builders, used by later stages to synthesise expressions ---

// NewRef builds a reference from a dotted path without indices.
func NewRef(path string) *RefExpr {
	out := &RefExpr{}
	for _, name := range strings.Split(path, ".") {
		out.Parts = append(out.Parts, &RefPart{Name: name})
	}
	return out
}

func NewNumber(v float64) *NumberLiteral {
	text := strconv.FormatFloat(v, 'g', -1, 64)
	return &NumberLiteral{Text: text, Value: v, IsInteger: v == float64(int64(v)) && !strings.ContainsAny(text, "e.")}
}

func NewBinary(left Expr, op string, right Expr) *BinaryExpr {
	return &BinaryExpr{Left: left, Operator: op, Right: right}
}

// Sum folds terms into a left associative chain of additions.
func Sum(terms ...Expr) Expr {
	if len(terms) == 0 {
		return NewNumber(0)
	}
	out := terms[0]
	for _, t := range terms[1:] {
		out = NewBinary(out, "+", t)
	}
	return out
}
