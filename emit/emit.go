// Package emit flattens a root component and everything it instantiates into a single
// equation system.  Every name is qualified by its dotted instance path relative to the
// root, so `v` inside the `resistor` instance becomes `resistor.v`.
package emit

import (
	"log/slog"
	"math"
	"slices"
	"strings"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/expand"
	"github.com/panyam/jsmlc/ir"
	"github.com/panyam/jsmlc/metadata"
	"github.com/panyam/jsmlc/resolver"
)

// Output is an equation system together with the metadata found while building it.
type Output struct {
	System *ir.EquationSystem
	// Annotation of the root component, nil if it carries no metadata
	Root *metadata.Annotation
	// Annotations of the root, of every member in the instance tree and of the component
	// and connector declarations used, in visiting order
	Annotations []*metadata.Annotation
}

type Emitter struct {
	res   *resolver.Resolver
	comps map[*decl.ComponentDecl]*resolver.Component
	exps  map[*decl.ComponentDecl]*expand.Result
}

// New creates an emitter over resolved components.  exps may be nil or partial; components
// without an expansion are expanded on demand.
func New(res *resolver.Resolver, comps map[*decl.ComponentDecl]*resolver.Component, exps map[*decl.ComponentDecl]*expand.Result) *Emitter {
	if exps == nil {
		exps = map[*decl.ComponentDecl]*expand.Result{}
	}
	return &Emitter{res: res, comps: comps, exps: exps}
}

// Emit flattens root.  overrides replace parameter values by root relative path and win
// over defaults and instantiation arguments.
func (e *Emitter) Emit(root *decl.ComponentDecl, overrides map[string]decl.Expr) (*Output, diag.List) {
	c := e.comps[root]
	if c == nil {
		return nil, diag.List{diag.Errorf(diag.UnresolvedReferenceError, e.res.FileOf(root.Name()), root.Pos().Line, root.Pos().Col,
			"component %s has not been resolved", root.Name())}
	}
	em := &emission{
		Emitter: e,
		sys:     &ir.EquationSystem{Component: root.Name()},
		seen:    map[string]bool{},
	}
	em.sys.Instances = &ir.Instance{Name: root.Name(), Component: root.Name(), Description: root.Description}
	out := &Output{System: em.sys}
	if root.Metadata != nil {
		out.Root = annotation(root.Name(), c.File, root, root.Metadata)
	}
	em.seen[root.Name()] = true
	em.annotate(out.Root)

	em.flatten(&frame{comp: c, path: root.Name()}, em.sys.Instances)
	em.override(c, overrides)
	em.evaluate()
	em.dimensions()
	out.Annotations = em.annotations

	stats := em.sys.Stats()
	slog.Debug("Emitted equation system", "stage", "emit", "component", root.Name(),
		"variables", stats.Variables, "parameters", stats.Parameters, "count", stats.Equations,
		"instances", stats.Instances, "errors", len(em.diags.Errors()))
	return out, em.diags
}

func (e *Emitter) expanded(c *resolver.Component) *expand.Result {
	if res, ok := e.exps[c.Decl]; ok {
		return res
	}
	return expand.Expand(c)
}

// scope is the component an expression was written in and the instance path of that
// component.
type scope struct {
	comp   *resolver.Component
	prefix string
}

// qualify prefixes every reference to a member of the scope's component.  Builtins such as
// `t` and `pi` stay unqualified.
func (s scope) qualify(e decl.Expr) decl.Expr {
	return decl.RewriteRefs(e, func(ref *decl.RefExpr) decl.Expr {
		if s.comp.Symbol(ref.Head()) == nil {
			return ref
		}
		return decl.Prefixed(s.prefix, ref)
	})
}

// binding is an interface member rebound by an instantiating ancestor.
type binding struct {
	inst  *resolver.Instantiation
	scope scope
}

type frame struct {
	comp   *resolver.Component
	prefix string
	// Diagnostic path, starting with the root component name
	path string
	// How this instance was created and where its arguments were written; nil for the root
	inst     *resolver.Instantiation
	args     scope
	bindings map[string]binding
}

func (f *frame) qualified(name string) string { return join(f.prefix, name) }

func (f *frame) scope() scope { return scope{comp: f.comp, prefix: f.prefix} }

type param struct {
	out  *ir.Parameter
	sym  *resolver.Symbol
	path string
	// Where the effective value was written
	file string
	pos  decl.Location
}

type pendingDims struct {
	v     *ir.Variable
	exprs []decl.Expr
	path  string
	file  string
	pos   decl.Location
}

// emission is the state of a single Emit call.
type emission struct {
	*Emitter
	sys         *ir.EquationSystem
	params      []*param
	dims        []*pendingDims
	annotations []*metadata.Annotation
	// Component and connector declarations whose own metadata was recorded
	seen   map[string]bool
	values map[string]float64
	diags  diag.List
}

// flatten emits the frame's own declarations and relations, then each sub-component.  It
// reports false when a member of the frame could not be bound to a component.
func (em *emission) flatten(f *frame, node *ir.Instance) bool {
	c := f.comp
	s := f.scope()
	for _, sym := range c.Symbols() {
		if sym.Kind == resolver.SymVar {
			em.variable(f, sym, s)
		}
	}
	for _, sym := range c.Symbols() {
		if sym.Kind == resolver.SymConnector {
			em.connector(f, sym)
		}
	}
	for _, sym := range c.Symbols() {
		if sym.Kind == resolver.SymParam {
			em.parameter(f, sym, s)
		}
	}
	for _, sym := range c.Symbols() {
		if meta := sym.Decl.Meta(); meta != nil {
			em.annotate(annotation(f.qualified(sym.Name), c.File, sym.Decl, meta))
		}
	}
	em.relations(f, s)
	ok := true
	for _, sym := range c.Symbols() {
		if sym.Kind == resolver.SymInstance {
			ok = em.child(f, sym, node) && ok
		}
	}
	return ok
}

func (em *emission) variable(f *frame, sym *resolver.Symbol, s scope) {
	path := f.qualified(sym.Name)
	v := &ir.Variable{Path: path, Type: kindName(sym.Type), Unit: unitText(f.comp, sym), Description: sym.Decl.Doc()}
	if sym.Type != nil {
		v.Guess, v.Min, v.Max = sym.Type.Guess, sym.Type.Min, sym.Type.Max
	}
	if len(sym.Dims) > 0 {
		em.dims = append(em.dims, &pendingDims{
			v:     v,
			exprs: qualifyAll(s, sym.Dims),
			path:  f.path,
			file:  f.comp.File,
			pos:   sym.Decl.Pos(),
		})
	}
	em.sys.Variables = append(em.sys.Variables, v)
	em.sys.Describe(path, v.Description)
}

// connector emits one variable per connector field.
func (em *emission) connector(f *frame, sym *resolver.Symbol) {
	path := f.qualified(sym.Name)
	em.sys.Describe(path, sym.Decl.Doc())
	em.declaration(sym.Connector)
	for _, field := range sym.Connector.Fields {
		v := &ir.Variable{Path: path + "." + field.Name, Type: kindName(field.Type), Role: string(field.Role), Description: field.Decl.Description}
		if field.Type != nil {
			v.Unit = field.Type.UnitText
			v.Guess, v.Min, v.Max = field.Type.Guess, field.Type.Min, field.Type.Max
		}
		em.sys.Variables = append(em.sys.Variables, v)
		em.sys.Describe(v.Path, v.Description)
	}
}

func (em *emission) parameter(f *frame, sym *resolver.Symbol, s scope) {
	pd := sym.Decl.(*decl.ParamDecl)
	p := &param{
		out:  &ir.Parameter{Path: f.qualified(sym.Name), Type: kindName(sym.Type), Description: pd.Description},
		sym:  sym,
		path: f.path,
		file: f.comp.File,
		pos:  pd.Pos(),
	}
	if sym.Type != nil {
		p.out.Unit, p.out.Min, p.out.Max = sym.Type.UnitText, sym.Type.Min, sym.Type.Max
	}
	switch {
	case pd.Default != nil:
		p.out.DefaultExpr = s.qualify(pd.Default)
	case sym.Type != nil && sym.Type.Default != nil:
		p.out.DefaultExpr = decl.NewNumber(*sym.Type.Default)
	}
	if p.out.DefaultExpr != nil {
		p.out.Default = p.out.DefaultExpr.String()
	}
	if f.inst != nil {
		for _, a := range f.inst.Params {
			if a.Name() == sym.Name {
				p.out.OverrideExpr = f.args.qualify(a.Value)
				p.out.Override = p.out.OverrideExpr.String()
				p.file, p.pos = f.args.comp.File, a.Pos()
			}
		}
	}
	em.params = append(em.params, p)
	em.sys.Parameters = append(em.sys.Parameters, p.out)
	em.sys.Describe(p.out.Path, p.out.Description)
}

// relations emits the expanded equations, the connection sets and relation metadata.
func (em *emission) relations(f *frame, s scope) {
	res := em.expanded(f.comp)
	firstGenerated := len(res.Equations) - res.Generated
	for idx, eq := range res.Equations {
		out := ir.NewEquation(s.qualify(eq.Left), s.qualify(eq.Right))
		out.Origin, out.Connection, out.Description = f.prefix, idx >= firstGenerated, eq.Description
		em.sys.Equations = append(em.sys.Equations, out)
	}
	for _, eq := range res.Initial {
		out := ir.NewEquation(s.qualify(eq.Left), s.qualify(eq.Right))
		out.Origin, out.Description = f.prefix, eq.Description
		em.sys.Initial = append(em.sys.Initial, out)
	}
	for _, g := range res.Groups {
		members := make([]string, len(g.Members))
		for i, m := range g.Members {
			members[i] = join(f.prefix, m.Path)
		}
		em.sys.Connections = append(em.sys.Connections, &ir.ConnectionSet{Connector: g.Connector.Name(), Members: members})
	}
	for _, rel := range f.comp.Decl.Relations {
		a, ok := rel.(decl.Annotated)
		if !ok || a.Meta() == nil {
			continue
		}
		em.annotate(annotation(relationPath(rel, s), f.comp.File, rel, a.Meta()))
	}
}

// relationPath names a relation by its qualified source text, without metadata.
func relationPath(rel decl.Relation, s scope) string {
	switch n := rel.(type) {
	case *decl.ConnectStmt:
		eps := make([]string, len(n.Endpoints))
		for i, ep := range n.Endpoints {
			eps[i] = s.qualify(ep).String()
		}
		return "connect(" + strings.Join(eps, ", ") + ")"
	case *decl.EquationStmt:
		text := s.qualify(n.Left).String() + " = " + s.qualify(n.Right).String()
		if n.Initial {
			text = "initial " + text
		}
		return text
	}
	return ""
}

// child flattens a sub-component instance.  An instance with an unbound member is dropped
// from the output along with its subtree; the diagnostics are kept and the parent is
// emitted as usual.  Returns false when the member itself cannot be bound.
func (em *emission) child(f *frame, sym *resolver.Symbol, node *ir.Instance) bool {
	c := f.comp
	path := f.path + "." + sym.Name
	inst, args := c.Instances[sym.Name], f.scope()
	if b, ok := f.bindings[sym.Name]; ok {
		inst, args = b.inst, b.scope
	}
	if inst == nil {
		pos := sym.Decl.Pos()
		em.diags = append(em.diags, diag.Errorf(diag.InterfaceMismatchError, c.File, pos.Line, pos.Col,
			"%s::%s is never bound to a concrete component", sym.Name, sym.Declared.Name()).WithPath(path))
		return false
	}
	sub := em.comps[inst.Component]
	if sub == nil {
		pos := inst.Call.Pos()
		em.diags = append(em.diags, diag.Errorf(diag.UnresolvedReferenceError, c.File, pos.Line, pos.Col,
			"component %s has not been resolved", inst.Component.Name()).WithPath(path))
		return false
	}

	bindings := make(map[string]binding, len(inst.Bindings))
	for name, b := range inst.Bindings {
		bindings[name] = binding{inst: b, scope: args}
	}
	n := &ir.Instance{Name: sym.Name, Path: f.qualified(sym.Name), Component: inst.Component.Name(), Description: sym.Decl.Doc()}
	if sym.Declared != nil && sym.Declared != inst.Component {
		n.Interface = sym.Declared.Name()
	}

	mark := em.checkpoint()
	em.sys.Describe(n.Path, n.Description)
	em.declaration(sub)
	if !em.flatten(&frame{comp: sub, prefix: n.Path, path: path, inst: inst, args: args, bindings: bindings}, n) {
		em.rollback(mark, n.Path)
		return true
	}
	node.Children = append(node.Children, n)
	return true
}

type checkpoint struct {
	variables, parameters, equations, initial, connections int
	params, dims, annotations                              int
}

func (em *emission) checkpoint() checkpoint {
	return checkpoint{
		variables:   len(em.sys.Variables),
		parameters:  len(em.sys.Parameters),
		equations:   len(em.sys.Equations),
		initial:     len(em.sys.Initial),
		connections: len(em.sys.Connections),
		params:      len(em.params),
		dims:        len(em.dims),
		annotations: len(em.annotations),
	}
}

// rollback drops everything emitted since mark.  Diagnostics are kept.
func (em *emission) rollback(mark checkpoint, prefix string) {
	em.sys.Variables = em.sys.Variables[:mark.variables]
	em.sys.Parameters = em.sys.Parameters[:mark.parameters]
	em.sys.Equations = em.sys.Equations[:mark.equations]
	em.sys.Initial = em.sys.Initial[:mark.initial]
	em.sys.Connections = em.sys.Connections[:mark.connections]
	em.params = em.params[:mark.params]
	em.dims = em.dims[:mark.dims]
	for _, a := range em.annotations[mark.annotations:] {
		delete(em.seen, a.Path)
	}
	em.annotations = em.annotations[:mark.annotations]
	for path := range em.sys.Descriptions {
		if path == prefix || strings.HasPrefix(path, prefix+".") {
			delete(em.sys.Descriptions, path)
		}
	}
}

// declaration records the metadata of a component or connector declaration once, keyed by
// its name.  Connector field metadata is keyed as Connector.field.
func (em *emission) declaration(d any) {
	switch n := d.(type) {
	case *resolver.Component:
		if em.seen[n.Name()] {
			return
		}
		em.seen[n.Name()] = true
		if n.Decl.Metadata != nil {
			em.annotate(annotation(n.Name(), n.File, n.Decl, n.Decl.Metadata))
		}
	case *resolver.Connector:
		if em.seen[n.Name()] {
			return
		}
		em.seen[n.Name()] = true
		if n.Decl.Metadata != nil {
			em.annotate(annotation(n.Name(), n.File, n.Decl, n.Decl.Metadata))
		}
		for _, f := range n.Fields {
			if f.Decl.Metadata != nil {
				em.annotate(annotation(n.Name()+"."+f.Name, n.File, f.Decl, f.Decl.Metadata))
			}
		}
	}
}

func (em *emission) annotate(a *metadata.Annotation) {
	if a != nil {
		em.annotations = append(em.annotations, a)
	}
}

// override applies root level parameter overrides.
func (em *emission) override(root *resolver.Component, overrides map[string]decl.Expr) {
	paths := make([]string, 0, len(overrides))
	for path := range overrides {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	for _, path := range paths {
		var found *param
		for _, p := range em.params {
			if p.out.Path == path {
				found = p
			}
		}
		if found == nil {
			em.diags = append(em.diags, diag.Errorf(diag.UnknownParameterError, root.File, 0, 0,
				"%s has no parameter %s", root.Name(), path).WithPath(root.Name()))
			continue
		}
		value := overrides[path]
		if found.sym.Type != nil {
			if diags := root.CheckValue(value, found.sym.Type, "override of "+path); len(diags) > 0 {
				for _, d := range diags {
					// positions point into the override text, not the root file
					d.Line, d.Col = 0, 0
					em.diags = append(em.diags, d)
				}
				continue
			}
		}
		found.out.OverrideExpr = value
		found.out.Override = value.String()
		found.file, found.pos = root.File, decl.Location{}
	}
}

// evaluate folds parameter values until nothing changes, then checks them against the
// declared kind and bounds.
func (em *emission) evaluate() {
	values := map[string]float64{}
	lookup := func(ref *decl.RefExpr) (float64, bool) {
		v, ok := values[ref.Path()]
		return v, ok
	}
	for changed := true; changed; {
		changed = false
		for _, p := range em.params {
			if _, done := values[p.out.Path]; done {
				continue
			}
			e := p.out.Effective()
			if e == nil {
				continue
			}
			if v, ok := resolver.Evaluate(e, lookup); ok {
				values[p.out.Path] = v
				changed = true
			}
		}
	}

	for _, p := range em.params {
		v, ok := values[p.out.Path]
		if !ok {
			continue
		}
		p.out.Value = &v
		errorf := func(kind diag.Kind, format string, args ...any) {
			em.diags = append(em.diags, diag.Errorf(kind, p.file, p.pos.Line, p.pos.Col, format, args...).WithPath(p.path))
		}
		if p.sym.Type == nil {
			continue
		}
		t := p.sym.Type
		if t.Kind == resolver.Integer && v != math.Trunc(v) {
			errorf(diag.TypeMismatchError, "parameter %s must be Integer, got %g", p.out.Path, v)
		}
		if t.Min != nil && v < *t.Min {
			errorf(diag.ConstraintViolationError, "parameter %s = %g is below its minimum %g", p.out.Path, v, *t.Min)
		}
		if t.Max != nil && v > *t.Max {
			errorf(diag.ConstraintViolationError, "parameter %s = %g is above its maximum %g", p.out.Path, v, *t.Max)
		}
	}
	em.values = values
}

// dimensions evaluates array sizes now that parameter values are known.
func (em *emission) dimensions() {
	lookup := func(ref *decl.RefExpr) (float64, bool) {
		v, ok := em.values[ref.Path()]
		return v, ok
	}
	for _, d := range em.dims {
		for i, e := range d.exprs {
			n, ok := resolver.Evaluate(e, lookup)
			if !ok || n < 1 || n != math.Trunc(n) {
				em.diags = append(em.diags, diag.Errorf(diag.TypeMismatchError, d.file, d.pos.Line, d.pos.Col,
					"dimension %d of %s must be a positive constant, got %s", i+1, d.v.Path, e).WithPath(d.path))
				d.v.Dims = nil
				break
			}
			d.v.Dims = append(d.v.Dims, int(n))
		}
	}
}

func annotation(path, file string, node decl.Node, meta *metadata.Value) *metadata.Annotation {
	pos := node.Pos()
	return &metadata.Annotation{Path: path, File: file, Line: pos.Line, Col: pos.Col, Meta: meta}
}

func qualifyAll(s scope, exprs []decl.Expr) []decl.Expr {
	out := make([]decl.Expr, len(exprs))
	for i, e := range exprs {
		out[i] = s.qualify(e)
	}
	return out
}

func kindName(t *resolver.Type) string {
	if t == nil {
		return ""
	}
	return t.Kind.String()
}

// unitText is the declared unit, or the inferred one printed canonically.
func unitText(c *resolver.Component, sym *resolver.Symbol) string {
	if sym.Type == nil {
		return ""
	}
	if sym.Type.HasUnit() {
		return sym.Type.UnitText
	}
	if u, ok := c.Inferred(sym.Name); ok {
		return u.String()
	}
	return ""
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
