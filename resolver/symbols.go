package resolver

import (
	"strings"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/units"
)

type GlobalKind int

const (
	GlobalType GlobalKind = iota
	GlobalConnector
	GlobalComponent
	GlobalFunction
)

func (k GlobalKind) String() string {
	switch k {
	case GlobalType:
		return "type"
	case GlobalConnector:
		return "connector"
	case GlobalComponent:
		return "component"
	}
	return "function"
}

// Global is a top level name visible from every file of the graph.
type Global struct {
	Kind      GlobalKind
	Name      string
	File      string
	Node      decl.Node // nil for builtins
	Connector *Connector
	Component *decl.ComponentDecl
}

// Connector is a validated connector declaration with resolved field types.
type Connector struct {
	Decl   *decl.ConnectorDecl
	File   string
	Fields []*Field
}

func (c *Connector) Name() string { return c.Decl.Name() }

func (c *Connector) Field(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (c *Connector) FieldsWithRole(role decl.Role) (out []*Field) {
	for _, f := range c.Fields {
		if f.Role == role {
			out = append(out, f)
		}
	}
	return
}

type Field struct {
	Decl *decl.FieldDecl
	Name string
	Role decl.Role
	Type *Type // nil when the declared type failed to resolve
}

type SymbolKind int

const (
	SymParam SymbolKind = iota
	SymVar
	SymConnector
	SymInstance
	SymBuiltin
)

func (k SymbolKind) String() string {
	return [...]string{"parameter", "variable", "connector", "component instance", "builtin"}[k]
}

// Symbol is a name in a component scope.
type Symbol struct {
	Name string
	Kind SymbolKind
	Decl decl.Member // nil for builtins

	// Parameters, variables and builtins
	Type *Type
	Dims []decl.Expr

	// Connector instances
	Connector *Connector

	// Component instances: Declared is the interface when one is given, else the
	// constructor's component.  Concrete is nil for an unbound interface member.
	Declared *decl.ComponentDecl
	Concrete *decl.ComponentDecl

	// Set when the declaration had errors; references to it are not reported again.
	Invalid bool
}

// IsInterface reports whether the member was declared with an explicit `::Iface` and so
// can be rebound by an instantiating parent.
func (s *Symbol) IsInterface() bool {
	inst, ok := s.Decl.(*decl.InstanceDecl)
	return ok && s.Kind == SymInstance && inst.Interface != nil
}

func (s *Symbol) IsValue() bool {
	return s.Kind == SymParam || s.Kind == SymVar || s.Kind == SymBuiltin
}

// Signature is the member table of a component, shared by everything that instantiates it.
type Signature struct {
	Decl    *decl.ComponentDecl
	File    string
	Scope   *decl.Env[*Symbol]
	Symbols []*Symbol
}

func (s *Signature) Lookup(name string) *Symbol {
	sym, _ := s.Scope.GetLocal(name)
	return sym
}

// Instantiation is a checked constructor call `Resistor(R=10, load=Capacitor(C=1))`.
type Instantiation struct {
	Component *decl.ComponentDecl
	Call      *decl.CallExpr
	// Parameter overrides, written in the instantiating component's scope
	Params []*decl.NamedArg
	// Interface members rebound by keyword
	Bindings map[string]*Instantiation
}

// Target is what a reference resolves to: the chain of symbols along the path and, when the
// path ends in a connector field, that field.
type Target struct {
	Symbols []*Symbol
	Field   *Field
	Invalid bool
}

func (t *Target) Last() *Symbol { return t.Symbols[len(t.Symbols)-1] }

// IsLocal reports whether the reference names a member of the component itself.
func (t *Target) IsLocal() bool { return len(t.Symbols) == 1 && t.Field == nil }

// IsConnector reports whether the reference names a whole connector instance.
func (t *Target) IsConnector() bool { return t.Field == nil && t.Last().Kind == SymConnector }

// Type is the value type of the reference, nil for connectors and components.
func (t *Target) Type() *Type {
	if t.Field != nil {
		return t.Field.Type
	}
	return t.Last().Type
}

// Path is the dotted path without indices.
func (t *Target) Path() string {
	parts := make([]string, 0, len(t.Symbols)+1)
	for _, s := range t.Symbols {
		parts = append(parts, s.Name)
	}
	if t.Field != nil {
		parts = append(parts, t.Field.Name)
	}
	return strings.Join(parts, ".")
}

var (
	timeSymbol = &Symbol{Name: "t", Kind: SymBuiltin, Type: &Type{Name: "Real", Kind: Real, Unit: units.MustParse("s"), UnitText: "s"}}
	piSymbol   = &Symbol{Name: "pi", Kind: SymBuiltin, Type: &Type{Name: "Real", Kind: Real, Unit: units.Dimensionless}}
)

// builtinScope is the outermost scope of every component.
var builtinScope = func() *decl.Env[*Symbol] {
	env := decl.NewEnv[*Symbol](nil)
	env.Set(timeSymbol.Name, timeSymbol)
	env.Set(piSymbol.Name, piSymbol)
	return env
}()

func joinPath(names []string) string { return strings.Join(names, " -> ") }
