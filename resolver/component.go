package resolver

import (
	"fmt"
	"log/slog"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/units"
)

// Component is the resolution result for one component declaration.  It is built by
// ResolveComponent and read-only afterwards.
type Component struct {
	Decl      *decl.ComponentDecl
	File      string
	Signature *Signature
	// Checked constructor calls of component instances, by member name
	Instances map[string]*Instantiation

	// Units inferred for variables declared without any
	inferred map[string]units.Unit
	resolver *Resolver
}

func (c *Component) Name() string        { return c.Decl.Name() }
func (c *Component) Symbols() []*Symbol  { return c.Signature.Symbols }
func (c *Component) Resolver() *Resolver { return c.resolver }

// Symbol returns a member of this component (not builtins) or nil.
func (c *Component) Symbol(name string) *Symbol { return c.Signature.Lookup(name) }

// UnitOf returns the declared unit of a value symbol, or the inferred one for variables
// declared without units.  Wildcard when nothing is known.
func (c *Component) UnitOf(sym *Symbol) units.Unit {
	if sym.Type == nil {
		return units.Wildcard
	}
	if !sym.Type.HasUnit() && sym.Kind == SymVar {
		if u, ok := c.inferred[sym.Name]; ok {
			return u
		}
	}
	return sym.Type.Unit
}

// Inferred reports the unit inferred for a variable, if any.
func (c *Component) Inferred(name string) (units.Unit, bool) {
	u, ok := c.inferred[name]
	return u, ok
}

// CheckValue checks that value, an expression written in this component's scope, can
// initialise something of type t.
func (c *Component) CheckValue(value decl.Expr, t *Type, what string) diag.List {
	ck := &checker{c: c, diags: &diag.Collector{}, path: c.Name()}
	ck.assign(value, t, what)
	return ck.diags.Diagnostics
}

// Equations returns the equation statements, split into regular and initial ones.
func (c *Component) Equations() (eqs, initial []*decl.EquationStmt) {
	for _, rel := range c.Decl.Relations {
		if eq, ok := rel.(*decl.EquationStmt); ok {
			if eq.Initial {
				initial = append(initial, eq)
			} else {
				eqs = append(eqs, eq)
			}
		}
	}
	return
}

// Connects returns the connect statements in source order.
func (c *Component) Connects() (out []*decl.ConnectStmt) {
	for _, rel := range c.Decl.Relations {
		if cs, ok := rel.(*decl.ConnectStmt); ok {
			out = append(out, cs)
		}
	}
	return
}

// Resolve walks a reference through the component scope: the first segment names a member
// (or a builtin), later segments name connector fields or members of the declared type of
// a sub-component.
func (c *Component) Resolve(ref *decl.RefExpr) (*Target, *diag.Diagnostic) {
	out := &Target{}
	unresolved := func(format string, args ...any) (*Target, *diag.Diagnostic) {
		return nil, errorAt(diag.UnresolvedReferenceError, c.File, ref, "unresolved reference %s: %s", ref.Path(), fmt.Sprintf(format, args...))
	}

	scope := c.Signature.Scope
	for idx, part := range ref.Parts {
		if out.Field != nil {
			return unresolved("field %s has no member %s", out.Field.Name, part.Name)
		}
		var sym *Symbol
		if idx == 0 {
			sym, _ = scope.Get(part.Name)
			if sym == nil {
				if g, ok := c.resolver.Globals.Get(part.Name); ok {
					return nil, errorAt(diag.TypeMismatchError, c.File, ref, "%s is a %s and cannot be used as a value", part.Name, g.Kind)
				}
				return unresolved("%s is not declared in %s", part.Name, c.Name())
			}
		} else {
			last := out.Last()
			switch last.Kind {
			case SymConnector:
				f := last.Connector.Field(part.Name)
				if f == nil {
					return unresolved("connector %s has no field %s", last.Connector.Name(), part.Name)
				}
				if len(part.Indices) > 0 {
					return nil, errorAt(diag.TypeMismatchError, c.File, ref, "field %s is not an array", part.Name)
				}
				out.Field = f
				out.Invalid = out.Invalid || f.Type == nil
				continue
			case SymInstance:
				sym = c.resolver.signatures[last.Declared].Lookup(part.Name)
				if sym == nil {
					return unresolved("component %s has no member %s", last.Declared.Name(), part.Name)
				}
			default:
				return unresolved("%s %s has no members", last.Kind, last.Name)
			}
		}

		if len(part.Indices) > len(sym.Dims) {
			return nil, errorAt(diag.TypeMismatchError, c.File, ref, "%s has %d dimension(s) but is indexed with %d", sym.Name, len(sym.Dims), len(part.Indices))
		}
		out.Symbols = append(out.Symbols, sym)
		if sym.Invalid {
			out.Invalid = true
			return out, nil
		}
	}
	return out, nil
}

// ResolveComponent checks a component body: member declarations, parameter defaults,
// array dimensions, instance arguments and relations.  It infers units for variables
// declared without any before checking equations.
func (r *Resolver) ResolveComponent(cd *decl.ComponentDecl) (*Component, diag.List) {
	sig := r.signatures[cd]
	if sig == nil {
		return nil, diag.List{errorAt(diag.UnresolvedReferenceError, "", cd, "component %s was not declared", cd.Name())}
	}
	c := &Component{
		Decl:      cd,
		File:      sig.File,
		Signature: sig,
		Instances: make(map[string]*Instantiation),
		inferred:  make(map[string]units.Unit),
		resolver:  r,
	}
	ck := &checker{c: c, diags: &diag.Collector{}, path: cd.Name()}
	ck.add(r.pending[cd]...)

	for _, sym := range sig.Symbols {
		ck.within(sym.Name, func() { ck.member(sym) })
	}
	ck.inferUnits()
	for _, rel := range cd.Relations {
		switch n := rel.(type) {
		case *decl.EquationStmt:
			ck.equation(n)
		case *decl.ConnectStmt:
			ck.connect(n)
		}
	}
	slog.Debug("Resolved component", "stage", "resolve", "component", cd.Name(), "members", len(sig.Symbols), "errors", len(ck.diags.Diagnostics.Errors()))
	return c, ck.diags.Diagnostics
}

func (ck *checker) member(sym *Symbol) {
	c := ck.c
	for _, dim := range sym.Dims {
		if info := ck.expr(dim); !info.Bad && info.Kind != Integer {
			ck.errorf(diag.TypeMismatchError, dim, "array dimension of %s must be Integer, not %s", sym.Name, info.Kind)
		}
	}
	switch sym.Kind {
	case SymParam:
		if p := sym.Decl.(*decl.ParamDecl); p.Default != nil && sym.Type != nil {
			ck.assign(p.Default, sym.Type, "default of "+sym.Name)
		}
	case SymConnector:
		inst := sym.Decl.(*decl.InstanceDecl)
		if !sym.Invalid && inst.Constructor != nil && len(inst.Constructor.Named) > 0 {
			ck.errorf(diag.UnknownParameterError, inst.Constructor.Named[0], "connector %s takes no arguments", sym.Connector.Name())
		}
	case SymInstance:
		if sym.Invalid {
			return
		}
		inst := sym.Decl.(*decl.InstanceDecl)
		if sym.Concrete != nil && sym.Declared != sym.Concrete {
			if reason := c.resolver.implements(sym.Concrete, sym.Declared); reason != "" {
				ck.errorf(diag.InterfaceMismatchError, inst.Constructor, "%s does not implement %s: %s", sym.Concrete.Name(), sym.Declared.Name(), reason)
			}
		}
		if inst.Constructor != nil {
			if in := ck.instantiate(inst.Constructor, sym.Concrete); in != nil {
				c.Instances[sym.Name] = in
			}
		}
	}
}

// instantiate checks keyword arguments against the constructed component's signature.
// Arguments are written in the scope of the component being resolved.
func (ck *checker) instantiate(call *decl.CallExpr, comp *decl.ComponentDecl) *Instantiation {
	if comp.Partial {
		ck.errorf(diag.InterfaceMismatchError, call, "%s is partial and cannot be instantiated directly", comp.Name())
	}
	if len(call.Args) > 0 {
		ck.errorf(diag.UnknownParameterError, call.Args[0], "arguments to %s must be given by name", comp.Name())
	}
	sig := ck.c.resolver.signatures[comp]
	out := &Instantiation{Component: comp, Call: call, Bindings: make(map[string]*Instantiation)}
	seen := map[string]bool{}
	for _, a := range call.Named {
		if seen[a.Name()] {
			ck.errorf(diag.DuplicateSymbolError, a, "argument %s is given twice", a.Name())
			continue
		}
		seen[a.Name()] = true

		target := sig.Lookup(a.Name())
		switch {
		case target == nil:
			ck.errorf(diag.UnknownParameterError, a, "%s has no parameter %s", comp.Name(), a.Name())
		case target.Kind == SymParam:
			if target.Type != nil {
				ck.assign(a.Value, target.Type, "argument "+a.Name())
			}
			out.Params = append(out.Params, a)
		case target.IsInterface() && !target.Invalid:
			if b := ck.binding(a, target); b != nil {
				out.Bindings[a.Name()] = b
			}
		default:
			ck.errorf(diag.UnknownParameterError, a, "%s.%s is a %s, not a parameter", comp.Name(), a.Name(), target.Kind)
		}
	}
	return out
}

// binding checks `member=Concrete(...)` used to rebind an interface member.
func (ck *checker) binding(a *decl.NamedArg, target *Symbol) *Instantiation {
	call, ok := a.Value.(*decl.CallExpr)
	if !ok {
		ck.errorf(diag.TypeMismatchError, a.Value, "%s must be bound to a component instance", a.Name())
		return nil
	}
	g, ok := ck.c.resolver.Globals.Get(call.Name())
	if !ok || g.Kind != GlobalComponent {
		ck.errorf(diag.UnresolvedReferenceError, call, "unknown component %s", call.Name())
		return nil
	}
	if g.Component != target.Declared {
		if reason := ck.c.resolver.implements(g.Component, target.Declared); reason != "" {
			ck.errorf(diag.InterfaceMismatchError, call, "%s does not implement %s: %s", g.Component.Name(), target.Declared.Name(), reason)
			return nil
		}
	}
	return ck.instantiate(call, g.Component)
}

// implements returns why concrete cannot stand in for iface, or "" when it can.
func (r *Resolver) implements(concrete, iface *decl.ComponentDecl) string {
	have := r.signatures[concrete]
	for _, want := range r.signatures[iface].Symbols {
		got := have.Lookup(want.Name)
		if got == nil {
			return fmt.Sprintf("missing %s %s", want.Kind, want.Name)
		}
		if got.Kind != want.Kind {
			return fmt.Sprintf("%s is a %s, expected a %s", want.Name, got.Kind, want.Kind)
		}
		switch want.Kind {
		case SymConnector:
			if got.Connector != want.Connector {
				return fmt.Sprintf("%s is a %s connector, expected %s", want.Name, got.Connector.Name(), want.Connector.Name())
			}
		case SymInstance:
			if got.Declared != want.Declared {
				return fmt.Sprintf("%s is a %s, expected %s", want.Name, got.Declared.Name(), want.Declared.Name())
			}
		case SymParam, SymVar:
			if got.Type == nil || want.Type == nil {
				continue
			}
			if got.Type.Kind != want.Type.Kind {
				return fmt.Sprintf("%s is %s, expected %s", want.Name, got.Type.Kind, want.Type.Kind)
			}
			if want.Type.HasUnit() && !got.Type.Unit.Equal(want.Type.Unit) {
				return fmt.Sprintf("%s has unit %s, expected %s", want.Name, got.Type.Unit, want.Type.Unit)
			}
		}
	}
	return ""
}
