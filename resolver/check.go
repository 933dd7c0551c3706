package resolver

import (
	"log/slog"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/units"
)

// exprInfo is what the checker knows about an expression.
type exprInfo struct {
	Kind BaseKind
	Unit units.Unit
	// The unit is a wildcard because a variable's unit is not known, as opposed to a
	// numeric literal.  Products involving such a value are not known either.
	Unknown bool
	// An error was already reported somewhere inside; suppresses follow-up errors
	Bad bool
}

var badInfo = exprInfo{Kind: Real, Unit: units.Wildcard, Bad: true}

type checker struct {
	c     *Component
	diags *diag.Collector
	// Instantiation path stamped on diagnostics that do not carry one
	path string
}

func (ck *checker) add(diags ...*diag.Diagnostic) {
	for _, d := range diags {
		if d != nil && d.Path == "" && ck.path != "" {
			d = d.WithPath(ck.path)
		}
		ck.diags.Add(d)
	}
}

func (ck *checker) errorf(kind diag.Kind, node decl.Node, format string, args ...any) {
	ck.add(errorAt(kind, ck.c.File, node, format, args...))
}

// within runs fn with diagnostics attributed to the member path c.member.
func (ck *checker) within(member string, fn func()) {
	saved := ck.path
	ck.path = ck.c.Name() + "." + member
	defer func() { ck.path = saved }()
	fn()
}

// quiet returns a checker that discards diagnostics, used while inferring units.
func (ck *checker) quiet() *checker {
	return &checker{c: ck.c, diags: &diag.Collector{}, path: ck.path}
}

// assign checks that value can initialise something of type t.
func (ck *checker) assign(value decl.Expr, t *Type, what string) {
	info := ck.expr(value)
	if info.Bad {
		return
	}
	switch {
	case t.Kind == Integer && info.Kind != Integer:
		ck.errorf(diag.TypeMismatchError, value, "%s must be Integer, not %s", what, info.Kind)
	case t.Kind.IsNumeric() != info.Kind.IsNumeric() || (!t.Kind.IsNumeric() && t.Kind != info.Kind):
		ck.errorf(diag.TypeMismatchError, value, "%s must be %s, not %s", what, t.Kind, info.Kind)
	case !t.Unit.Equal(info.Unit):
		ck.errorf(diag.UnitMismatchError, value, "%s must be in %s, not %s", what, t.Unit, info.Unit)
	}
}

func (ck *checker) equation(eq *decl.EquationStmt) {
	left, right := ck.expr(eq.Left), ck.expr(eq.Right)
	if left.Bad || right.Bad {
		return
	}
	if left.Kind.IsNumeric() != right.Kind.IsNumeric() || (!left.Kind.IsNumeric() && left.Kind != right.Kind) {
		ck.errorf(diag.TypeMismatchError, eq, "cannot equate %s with %s", left.Kind, right.Kind)
		return
	}
	if !left.Unit.Equal(right.Unit) {
		ck.errorf(diag.UnitMismatchError, eq, "equation sides have different units: %s and %s", left.Unit, right.Unit)
	}
}

func (ck *checker) connect(cs *decl.ConnectStmt) {
	for _, ep := range cs.Endpoints {
		target, d := ck.c.Resolve(ep)
		if d != nil {
			ck.add(d)
			continue
		}
		if target.Invalid {
			continue
		}
		if !target.IsConnector() {
			ck.errorf(diag.TypeMismatchError, ep, "connect endpoint %s is a %s, not a connector", ep.Path(), describe(target))
		}
		ck.indices(ep)
	}
}

func describe(t *Target) string {
	if t.Field != nil {
		return "connector field"
	}
	return t.Last().Kind.String()
}

func (ck *checker) indices(ref *decl.RefExpr) bool {
	ok := true
	for _, p := range ref.Parts {
		for _, idx := range p.Indices {
			if info := ck.expr(idx); !info.Bad && info.Kind != Integer {
				ck.errorf(diag.TypeMismatchError, idx, "array index must be Integer, not %s", info.Kind)
				ok = false
			}
		}
	}
	return ok
}

// expr computes the kind and unit of an expression, reporting problems along the way.
func (ck *checker) expr(e decl.Expr) exprInfo {
	switch n := e.(type) {
	case *decl.NumberLiteral:
		if n.IsInteger {
			return exprInfo{Kind: Integer, Unit: units.Wildcard}
		}
		return exprInfo{Kind: Real, Unit: units.Wildcard}
	case *decl.StringLiteral:
		return exprInfo{Kind: String, Unit: units.Dimensionless}
	case *decl.BoolLiteral:
		return exprInfo{Kind: Boolean, Unit: units.Dimensionless}
	case *decl.RefExpr:
		return ck.ref(n)
	case *decl.UnaryExpr:
		return ck.unary(n)
	case *decl.BinaryExpr:
		return ck.binary(n)
	case *decl.TernaryExpr:
		return ck.ternary(n)
	case *decl.CallExpr:
		return ck.call(n)
	case *decl.ArrayExpr:
		return ck.array(n)
	}
	return badInfo
}

func (ck *checker) ref(n *decl.RefExpr) exprInfo {
	target, d := ck.c.Resolve(n)
	if d != nil {
		ck.add(d)
		return badInfo
	}
	if !ck.indices(n) || target.Invalid {
		return badInfo
	}
	t := target.Type()
	if t == nil {
		ck.errorf(diag.TypeMismatchError, n, "%s is a %s and cannot be used in an expression", n.Path(), target.Last().Kind)
		return badInfo
	}
	unit := t.Unit
	if len(target.Symbols) == 1 && target.Field == nil {
		unit = ck.c.UnitOf(target.Last())
	}
	return exprInfo{Kind: t.Kind, Unit: unit, Unknown: unit.Wild}
}

func (ck *checker) unary(n *decl.UnaryExpr) exprInfo {
	right := ck.expr(n.Right)
	if right.Bad {
		return right
	}
	if n.Operator == "not" {
		if right.Kind != Boolean {
			ck.errorf(diag.TypeMismatchError, n, "operand of not must be Boolean, not %s", right.Kind)
			return badInfo
		}
		return right
	}
	if !right.Kind.IsNumeric() {
		ck.errorf(diag.TypeMismatchError, n, "operand of unary %s must be numeric, not %s", n.Operator, right.Kind)
		return badInfo
	}
	return right
}

func numericKind(a, b BaseKind) BaseKind {
	if a == Integer && b == Integer {
		return Integer
	}
	return Real
}

// concrete picks whichever unit is not a wildcard.
func concrete(a, b units.Unit) units.Unit {
	if a.Wild {
		return b
	}
	return a
}

func (ck *checker) binary(n *decl.BinaryExpr) exprInfo {
	left, right := ck.expr(n.Left), ck.expr(n.Right)
	if left.Bad || right.Bad {
		return badInfo
	}
	op := decl.ScalarOf(n.Operator)
	switch decl.BinaryPrecedence(n.Operator) {
	case decl.PrecOr, decl.PrecAnd:
		if left.Kind != Boolean || right.Kind != Boolean {
			ck.errorf(diag.TypeMismatchError, n, "operands of %s must be Boolean, got %s and %s", op, left.Kind, right.Kind)
			return badInfo
		}
		return exprInfo{Kind: Boolean, Unit: units.Dimensionless}
	case decl.PrecRelational:
		ordered := op != "==" && op != "!="
		if left.Kind.IsNumeric() != right.Kind.IsNumeric() || (!left.Kind.IsNumeric() && (ordered || left.Kind != right.Kind)) {
			ck.errorf(diag.TypeMismatchError, n, "cannot compare %s with %s using %s", left.Kind, right.Kind, op)
			return badInfo
		}
		if !left.Unit.Equal(right.Unit) {
			ck.errorf(diag.UnitMismatchError, n, "cannot compare %s with %s", left.Unit, right.Unit)
			return badInfo
		}
		return exprInfo{Kind: Boolean, Unit: units.Dimensionless}
	}

	if !left.Kind.IsNumeric() || !right.Kind.IsNumeric() {
		ck.errorf(diag.TypeMismatchError, n, "operands of %s must be numeric, got %s and %s", n.Operator, left.Kind, right.Kind)
		return badInfo
	}
	kind := numericKind(left.Kind, right.Kind)
	switch op {
	case "+", "-", "%":
		if !left.Unit.Equal(right.Unit) {
			ck.errorf(diag.UnitMismatchError, n, "operands of %s have different units: %s and %s", n.Operator, left.Unit, right.Unit)
			return badInfo
		}
		return exprInfo{Kind: kind, Unit: concrete(left.Unit, right.Unit), Unknown: left.Unknown && right.Unknown}
	case "*", "/":
		if op == "/" {
			kind = Real
		}
		if left.Unknown || right.Unknown {
			return exprInfo{Kind: kind, Unit: units.Wildcard, Unknown: true}
		}
		if op == "*" {
			return exprInfo{Kind: kind, Unit: left.Unit.Mul(right.Unit)}
		}
		return exprInfo{Kind: kind, Unit: left.Unit.Div(right.Unit)}
	}
	return ck.power(n, left, right, kind)
}

// power: the exponent is dimensionless, and a dimensioned base needs an integer constant
// exponent so the result unit is known.
func (ck *checker) power(n *decl.BinaryExpr, base, exp exprInfo, kind BaseKind) exprInfo {
	if !exp.Unit.Wild && !exp.Unit.IsDimensionless() {
		ck.errorf(diag.UnitMismatchError, n.Right, "exponent must be dimensionless, got %s", exp.Unit)
		return badInfo
	}
	if base.Unit.Wild || base.Unit.IsDimensionless() {
		return exprInfo{Kind: kind, Unit: base.Unit, Unknown: base.Unknown}
	}
	v, ok := Evaluate(n.Right, nil)
	if !ok || v != float64(int(v)) {
		ck.errorf(diag.UnitMismatchError, n.Right, "exponent of a quantity in %s must be an integer constant", base.Unit)
		return badInfo
	}
	return exprInfo{Kind: kind, Unit: base.Unit.Pow(int(v))}
}

func (ck *checker) ternary(n *decl.TernaryExpr) exprInfo {
	cond, then, els := ck.expr(n.Cond), ck.expr(n.Then), ck.expr(n.Else)
	if cond.Bad || then.Bad || els.Bad {
		return badInfo
	}
	if cond.Kind != Boolean {
		ck.errorf(diag.TypeMismatchError, n.Cond, "condition must be Boolean, not %s", cond.Kind)
		return badInfo
	}
	if then.Kind.IsNumeric() != els.Kind.IsNumeric() || (!then.Kind.IsNumeric() && then.Kind != els.Kind) {
		ck.errorf(diag.TypeMismatchError, n, "branches have different kinds: %s and %s", then.Kind, els.Kind)
		return badInfo
	}
	if !then.Unit.Equal(els.Unit) {
		ck.errorf(diag.UnitMismatchError, n, "branches have different units: %s and %s", then.Unit, els.Unit)
		return badInfo
	}
	kind := then.Kind
	if kind.IsNumeric() {
		kind = numericKind(then.Kind, els.Kind)
	}
	return exprInfo{Kind: kind, Unit: concrete(then.Unit, els.Unit), Unknown: then.Unknown && els.Unknown}
}

func (ck *checker) call(n *decl.CallExpr) exprInfo {
	fn, ok := builtinFunctions[n.Name()]
	if !ok {
		if g, found := ck.c.resolver.Globals.Get(n.Name()); found {
			ck.errorf(diag.TypeMismatchError, n, "%s %s cannot be used inside an expression", g.Kind, n.Name())
		} else {
			ck.errorf(diag.UnresolvedReferenceError, n.Func, "unknown function %s", n.Name())
		}
		return badInfo
	}
	if len(n.Named) > 0 {
		ck.errorf(diag.UnknownParameterError, n.Named[0], "%s takes no keyword arguments", n.Name())
		return badInfo
	}
	if len(n.Args) != fn.arity {
		ck.errorf(diag.TypeMismatchError, n, "%s expects %d argument(s), got %d", n.Name(), fn.arity, len(n.Args))
		return badInfo
	}
	argUnits := make([]units.Unit, len(n.Args))
	unknown := false
	for i, a := range n.Args {
		info := ck.expr(a)
		unknown = unknown || info.Unknown
		if info.Bad {
			return badInfo
		}
		if !info.Kind.IsNumeric() {
			ck.errorf(diag.TypeMismatchError, a, "argument of %s must be numeric, not %s", n.Name(), info.Kind)
			return badInfo
		}
		argUnits[i] = info.Unit
	}
	unit, err := fn.unit(argUnits)
	if err != nil {
		ck.errorf(diag.UnitMismatchError, n, "%s: %v", n.Name(), err)
		return badInfo
	}
	return exprInfo{Kind: Real, Unit: unit, Unknown: unknown && unit.Wild}
}

func (ck *checker) array(n *decl.ArrayExpr) exprInfo {
	out := exprInfo{Kind: Real, Unit: units.Wildcard}
	for idx, el := range n.Elements {
		info := ck.expr(el)
		if info.Bad {
			return badInfo
		}
		if idx == 0 {
			out = info
			continue
		}
		if info.Kind.IsNumeric() != out.Kind.IsNumeric() || (!info.Kind.IsNumeric() && info.Kind != out.Kind) {
			ck.errorf(diag.TypeMismatchError, el, "array elements have different kinds: %s and %s", out.Kind, info.Kind)
			return badInfo
		}
		if !info.Unit.Equal(out.Unit) {
			ck.errorf(diag.UnitMismatchError, el, "array elements have different units: %s and %s", out.Unit, info.Unit)
			return badInfo
		}
		if out.Kind.IsNumeric() {
			out.Kind = numericKind(out.Kind, info.Kind)
		}
		out.Unit = concrete(out.Unit, info.Unit)
	}
	return out
}

// inferUnits gives variables declared without units the unit of the other side of an
// equation `x = expr` or `der(x) = expr`, repeating until nothing changes.
func (ck *checker) inferUnits() {
	var eqs []*decl.EquationStmt
	for _, rel := range ck.c.Decl.Relations {
		if eq, ok := rel.(*decl.EquationStmt); ok {
			eqs = append(eqs, eq)
		}
	}
	q := ck.quiet()
	for changed := true; changed; {
		changed = false
		for _, eq := range eqs {
			for _, sides := range [][2]decl.Expr{{eq.Left, eq.Right}, {eq.Right, eq.Left}} {
				name, derivative := ck.inferable(sides[0])
				if name == "" {
					continue
				}
				other := q.expr(sides[1])
				if other.Bad || other.Unit.Wild {
					continue
				}
				unit := other.Unit
				if derivative {
					unit = unit.Mul(second)
				}
				ck.c.inferred[name] = unit
				changed = true
			}
		}
	}
	for name, u := range ck.c.inferred {
		slog.Debug("Inferred unit", "stage", "resolve", "component", ck.c.Name(), "variable", name, "unit", u.String())
	}
}

// inferable returns the variable whose unit side e would determine: a plain local variable
// without declared or inferred units, optionally under der().
func (ck *checker) inferable(e decl.Expr) (name string, derivative bool) {
	if call, ok := e.(*decl.CallExpr); ok && call.Name() == "der" && len(call.Args) == 1 {
		e, derivative = call.Args[0], true
	}
	ref, ok := e.(*decl.RefExpr)
	if !ok || len(ref.Parts) != 1 {
		return "", false
	}
	sym := ck.c.Symbol(ref.Head())
	if sym == nil || sym.Kind != SymVar || sym.Type == nil || sym.Type.HasUnit() {
		return "", false
	}
	if _, done := ck.c.inferred[sym.Name]; done {
		return "", false
	}
	return sym.Name, derivative
}
