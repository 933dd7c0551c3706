// Package resolver binds names, types and units across a loaded JSML file graph.
//
// Resolution runs in two phases.  DeclareGlobals registers every top level declaration,
// folds type aliases, validates connectors and builds the member table (Signature) of each
// component.  ResolveComponent then checks one component body against those tables; it only
// reads shared state, so different components can be resolved concurrently.
package resolver

import (
	"log/slog"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
)

type Resolver struct {
	Files   []*decl.FileDecl
	Globals *decl.Env[*Global]

	// Declaring file of every global, by name
	files      map[string]string
	typeDecls  map[string]*decl.TypeDecl
	types      map[string]*Type
	connectors map[string]*Connector
	components []*decl.ComponentDecl
	signatures map[*decl.ComponentDecl]*Signature
	// Problems in member declarations, reported when the component is resolved
	pending map[*decl.ComponentDecl]diag.List

	diags diag.Collector
}

// New creates a resolver over files, which should list imports before importers.
func New(files ...*decl.FileDecl) *Resolver {
	return &Resolver{
		Files:      files,
		Globals:    decl.NewEnv[*Global](builtinGlobals),
		files:      make(map[string]string),
		typeDecls:  make(map[string]*decl.TypeDecl),
		types:      make(map[string]*Type),
		connectors: make(map[string]*Connector),
		signatures: make(map[*decl.ComponentDecl]*Signature),
	}
}

var builtinGlobals = func() *decl.Env[*Global] {
	env := decl.NewEnv[*Global](nil)
	for _, name := range baseKindNames {
		env.Set(name, &Global{Kind: GlobalType, Name: name})
	}
	for name := range builtinFunctions {
		env.Set(name, &Global{Kind: GlobalFunction, Name: name})
	}
	return env
}()

func errorAt(kind diag.Kind, file string, node decl.Node, format string, args ...any) *diag.Diagnostic {
	pos := node.Pos()
	return diag.Errorf(kind, file, pos.Line, pos.Col, format, args...)
}

// DeclareGlobals registers every top level name and validates everything that does not
// depend on a component body.
func (r *Resolver) DeclareGlobals() diag.List {
	for _, f := range r.Files {
		for _, d := range f.Declarations {
			r.declare(f.Path, d)
		}
	}

	for _, f := range r.Files {
		for _, td := range f.Types() {
			if r.typeDecls[td.Name()] == td {
				r.resolveTypeDecl(td, nil)
			}
		}
	}
	for _, f := range r.Files {
		for _, cd := range f.Connectors() {
			if g, _ := r.Globals.GetLocal(cd.Name()); g != nil && g.Node == cd {
				g.Connector = r.declareConnector(cd, f.Path)
				r.connectors[cd.Name()] = g.Connector
			}
		}
	}
	for _, cd := range r.components {
		r.signatures[cd] = r.buildSignature(cd, r.files[cd.Name()])
	}
	slog.Debug("Declared globals", "stage", "resolve", "count", len(r.Globals.Keys()), "components", len(r.components))
	return r.diags.Diagnostics
}

func (r *Resolver) declare(file string, d decl.TopLevelDecl) {
	var g *Global
	var nameNode *decl.Ident
	switch n := d.(type) {
	case *decl.TypeDecl:
		g, nameNode = &Global{Kind: GlobalType, Name: n.Name()}, n.NameNode
	case *decl.ConnectorDecl:
		g, nameNode = &Global{Kind: GlobalConnector, Name: n.Name()}, n.NameNode
	case *decl.ComponentDecl:
		g, nameNode = &Global{Kind: GlobalComponent, Name: n.Name(), Component: n}, n.NameNode
	default:
		return
	}
	g.File, g.Node = file, d

	if prev, ok := r.Globals.Get(g.Name); ok {
		if prev.Node == nil {
			r.diags.Add(errorAt(diag.DuplicateSymbolError, file, nameNode, "%s redeclares the builtin %s %s", g.Name, prev.Kind, prev.Name))
		} else {
			pos := prev.Node.Pos()
			r.diags.Add(errorAt(diag.DuplicateSymbolError, file, nameNode, "%s is already declared as a %s at %s:%d:%d", g.Name, prev.Kind, prev.File, pos.Line, pos.Col))
		}
		return
	}
	r.Globals.Define(g.Name, g)
	r.files[g.Name] = file
	switch n := d.(type) {
	case *decl.TypeDecl:
		r.typeDecls[n.Name()] = n
	case *decl.ComponentDecl:
		r.components = append(r.components, n)
	}
}

// declareConnector resolves field types and checks that roles are balanced: potentials and
// flows come in pairs and a stream needs a flow to be carried by.
func (r *Resolver) declareConnector(cd *decl.ConnectorDecl, file string) *Connector {
	out := &Connector{Decl: cd, File: file}
	seen := map[string]bool{}
	for _, fd := range cd.Fields {
		if seen[fd.Name()] {
			r.diags.Add(errorAt(diag.DuplicateSymbolError, file, fd.NameNode, "field %s is declared twice in connector %s", fd.Name(), cd.Name()))
			continue
		}
		seen[fd.Name()] = true
		t, diags := r.typeRef(fd.Type, file)
		r.diags.Add(diags...)
		if t != nil && fd.Role != decl.RoleSingleton && t.Kind != Real {
			r.diags.Add(errorAt(diag.TypeMismatchError, file, fd.Type, "%s field %s must be Real, not %s", fd.Role, fd.Name(), t.Kind))
		}
		out.Fields = append(out.Fields, &Field{Decl: fd, Name: fd.Name(), Role: fd.Role, Type: t})
	}

	potentials := len(out.FieldsWithRole(decl.RolePotential))
	flows := len(out.FieldsWithRole(decl.RoleFlow))
	streams := len(out.FieldsWithRole(decl.RoleStream))
	if potentials != flows {
		r.diags.Add(errorAt(diag.UnbalancedConnectorError, file, cd.NameNode,
			"connector %s declares %d potential and %d flow fields; they must come in pairs", cd.Name(), potentials, flows))
	}
	if streams > 0 && flows == 0 {
		r.diags.Add(errorAt(diag.UnbalancedConnectorError, file, cd.NameNode,
			"connector %s declares stream fields but no flow field to carry them", cd.Name()))
	}
	return out
}

// buildSignature turns member declarations into symbols.  Expressions (defaults, arguments,
// dimensions) are checked later by ResolveComponent; problems found here are attached to the
// component so they are reported once, when the component itself is resolved.
func (r *Resolver) buildSignature(cd *decl.ComponentDecl, file string) *Signature {
	sig := &Signature{Decl: cd, File: file, Scope: builtinScope.Push()}
	for _, m := range cd.Members {
		sym := &Symbol{Name: m.MemberName(), Decl: m}
		switch n := m.(type) {
		case *decl.ParamDecl:
			sym.Kind, sym.Dims = SymParam, n.Type.Dims
			sym.Type = r.memberType(cd, n.Type, file)
		case *decl.VarDecl:
			sym.Kind, sym.Dims = SymVar, n.Type.Dims
			sym.Type = r.memberType(cd, n.Type, file)
		case *decl.InstanceDecl:
			r.instanceSymbol(cd, sym, n, file)
		}
		sym.Invalid = sym.Invalid || (sym.IsValue() && sym.Type == nil)

		if !sig.Scope.Define(sym.Name, sym) {
			r.addComponentDiag(cd, errorAt(diag.DuplicateSymbolError, file, m, "%s is declared twice in component %s", sym.Name, cd.Name()))
			continue
		}
		sig.Symbols = append(sig.Symbols, sym)
	}
	return sig
}

func (r *Resolver) memberType(cd *decl.ComponentDecl, ref *decl.TypeRef, file string) *Type {
	t, diags := r.typeRef(ref, file)
	r.addComponentDiag(cd, diags...)
	if len(diags.Errors()) > 0 {
		return nil
	}
	return t
}

func (r *Resolver) instanceSymbol(cd *decl.ComponentDecl, sym *Symbol, n *decl.InstanceDecl, file string) {
	lookup := func(name *decl.Ident) *Global {
		g, ok := r.Globals.Get(name.Name)
		switch {
		case !ok:
			r.addComponentDiag(cd, errorAt(diag.UnresolvedReferenceError, file, name, "unknown component or connector %s", name.Name))
		case g.Kind != GlobalConnector && g.Kind != GlobalComponent:
			r.addComponentDiag(cd, errorAt(diag.TypeMismatchError, file, name, "%s is a %s and cannot be instantiated (use variable or parameter)", name.Name, g.Kind))
		default:
			return g
		}
		sym.Invalid = true
		return nil
	}

	var declared, ctor *Global
	if n.Interface != nil {
		declared = lookup(n.Interface)
	}
	if n.Constructor != nil {
		ctor = lookup(n.Constructor.Func)
	}
	if sym.Invalid {
		sym.Kind = SymInstance
		return
	}
	if declared == nil {
		declared = ctor
	}

	if declared.Kind == GlobalConnector {
		sym.Kind, sym.Connector = SymConnector, r.connectors[declared.Name]
		if ctor != nil && ctor != declared {
			r.addComponentDiag(cd, errorAt(diag.InterfaceMismatchError, file, n.Constructor, "%s is declared as connector %s but constructed as %s", sym.Name, declared.Name, ctor.Name))
			sym.Invalid = true
		}
		sym.Invalid = sym.Invalid || sym.Connector == nil
		return
	}
	sym.Kind, sym.Declared = SymInstance, declared.Component
	if ctor != nil {
		if ctor.Kind != GlobalComponent {
			r.addComponentDiag(cd, errorAt(diag.InterfaceMismatchError, file, n.Constructor, "%s is declared as component %s but constructed as connector %s", sym.Name, declared.Name, ctor.Name))
			sym.Invalid = true
			return
		}
		sym.Concrete = ctor.Component
	}
}

func (r *Resolver) addComponentDiag(cd *decl.ComponentDecl, diags ...*diag.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	if r.pending == nil {
		r.pending = make(map[*decl.ComponentDecl]diag.List)
	}
	r.pending[cd] = append(r.pending[cd], diags...)
}

// Components returns all declared components in declaration order.
func (r *Resolver) Components() []*decl.ComponentDecl { return r.components }

// Component looks up a component by name.
func (r *Resolver) Component(name string) *decl.ComponentDecl {
	if g, ok := r.Globals.Get(name); ok && g.Kind == GlobalComponent {
		return g.Component
	}
	return nil
}

func (r *Resolver) Connector(name string) *Connector { return r.connectors[name] }

// Type returns a resolved alias or base kind by name.
func (r *Resolver) Type(name string) *Type {
	if k, ok := baseKindByName(name); ok {
		return baseType(k)
	}
	return r.types[name]
}

func (r *Resolver) Signature(cd *decl.ComponentDecl) *Signature { return r.signatures[cd] }

// FileOf returns the file that declares a global.
func (r *Resolver) FileOf(name string) string { return r.files[name] }
