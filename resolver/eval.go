package resolver

import (
	"math"

	"github.com/panyam/jsmlc/decl"
)

// Evaluate folds a numeric expression to a constant.  lookup supplies values for references
// and may be nil; `pi` is known even without one.  Booleans evaluate to 1 and 0.  The second
// result is false when anything in the tree is not constant.
func Evaluate(e decl.Expr, lookup func(ref *decl.RefExpr) (float64, bool)) (float64, bool) {
	switch n := e.(type) {
	case *decl.NumberLiteral:
		return n.Value, true
	case *decl.BoolLiteral:
		return boolValue(n.Value), true
	case *decl.RefExpr:
		if lookup != nil {
			if v, ok := lookup(n); ok {
				return v, true
			}
		}
		if n.Path() == "pi" {
			return math.Pi, true
		}
		return 0, false
	case *decl.UnaryExpr:
		v, ok := Evaluate(n.Right, lookup)
		if !ok {
			return 0, false
		}
		switch n.Operator {
		case "-":
			return -v, true
		case "not":
			return boolValue(v == 0), true
		}
		return v, true
	case *decl.BinaryExpr:
		return evalBinary(n, lookup)
	case *decl.TernaryExpr:
		cond, ok := Evaluate(n.Cond, lookup)
		if !ok {
			return 0, false
		}
		if cond != 0 {
			return Evaluate(n.Then, lookup)
		}
		return Evaluate(n.Else, lookup)
	case *decl.CallExpr:
		fn, ok := builtinFunctions[n.Name()]
		if !ok || fn.eval == nil || len(n.Args) != fn.arity || len(n.Named) > 0 {
			return 0, false
		}
		args := make([]float64, len(n.Args))
		for i, a := range n.Args {
			if args[i], ok = Evaluate(a, lookup); !ok {
				return 0, false
			}
		}
		return fn.eval(args), true
	}
	return 0, false
}

func evalBinary(n *decl.BinaryExpr, lookup func(ref *decl.RefExpr) (float64, bool)) (float64, bool) {
	l, ok := Evaluate(n.Left, lookup)
	if !ok {
		return 0, false
	}
	r, ok := Evaluate(n.Right, lookup)
	if !ok {
		return 0, false
	}
	switch decl.ScalarOf(n.Operator) {
	case "+":
		return l + r, true
	case "-":
		return l - r, true
	case "*":
		return l * r, true
	case "/":
		return l / r, true
	case "%":
		return math.Mod(l, r), true
	case "^":
		return math.Pow(l, r), true
	case "==":
		return boolValue(l == r), true
	case "!=":
		return boolValue(l != r), true
	case "<":
		return boolValue(l < r), true
	case "<=":
		return boolValue(l <= r), true
	case ">":
		return boolValue(l > r), true
	case ">=":
		return boolValue(l >= r), true
	case "and":
		return boolValue(l != 0 && r != 0), true
	case "or":
		return boolValue(l != 0 || r != 0), true
	}
	return 0, false
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
