package decl

import (
	"fmt"

	gfn "github.com/panyam/goutils/fn"
	"github.com/panyam/jsmlc/metadata"
)

// --- Interfaces ---

// Node represents any node in the Abstract Syntax Tree.
type Node interface {
	Pos() Location  // Starting position (for error reporting)
	End() Location  // Ending position
	String() string // String representation for debugging/printing
}

// Location is a position in a source file.  Line and Col are 1-based, Col counts runes.
type Location struct {
	Pos  int // byte offset
	Line int
	Col  int
}

func (l Location) String() string { return fmt.Sprintf("%d:%d", l.Line, l.Col) }

// --- Base Struct ---

// NodeInfo embeddable struct for position tracking.
type NodeInfo struct{ StartPos, StopPos Location }

func (n *NodeInfo) Pos() Location  { return n.StartPos }
func (n *NodeInfo) End() Location  { return n.StopPos }
func (n *NodeInfo) String() string { return "{Node}" }

// Ident is a bare name in a declaration position (the name of a type, a member, a role etc).
// References inside expressions are RefExprs.
type Ident struct {
	NodeInfo
	Name string
}

func (i *Ident) String() string { return i.Name }

// NamedArg is a `name = value` pair as found in instantiation arguments and type attributes.
type NamedArg struct {
	NodeInfo
	NameNode *Ident
	Value    Expr
}

func (n *NamedArg) Name() string   { return n.NameNode.Name }
func (n *NamedArg) String() string { return fmt.Sprintf("%s=%s", n.NameNode.Name, n.Value) }

// Described is implemented by every declaration that can carry a descriptive string.
type Described interface {
	Node
	Doc() string
}

// Annotated is implemented by nodes that can carry a metadata object.
type Annotated interface {
	Node
	Meta() *metadata.Value
}

// --- Top Level declarations ---

// TopLevelDecl is one of ImportDecl, TypeDecl, ConnectorDecl or ComponentDecl
type TopLevelDecl interface {
	Node
	topLevelNode()
}

// ImportDecl represents `import "path"`
type ImportDecl struct {
	NodeInfo
	Path *StringLiteral
}

func (i *ImportDecl) topLevelNode()  {}
func (i *ImportDecl) String() string { return fmt.Sprintf("import %q", i.Path.Value) }

// TypeDecl represents `type Name = Base(attr=value, ...)`.
// Base is either a base kind (Real, Integer, Boolean, String) or another TypeDecl.
type TypeDecl struct {
	NodeInfo
	Description string
	NameNode    *Ident
	Base        *Ident
	Attrs       []*NamedArg
}

func (t *TypeDecl) topLevelNode()  {}
func (t *TypeDecl) Name() string   { return t.NameNode.Name }
func (t *TypeDecl) Doc() string    { return t.Description }
func (t *TypeDecl) String() string { return fmt.Sprintf("type %s = %s(...)", t.Name(), t.Base.Name) }

// Attr returns the attribute with the given name if it was declared.
func (t *TypeDecl) Attr(name string) *NamedArg { return findArg(t.Attrs, name) }

// Role of a connector field.
type Role string

const (
	RolePotential Role = "potential"
	RoleFlow      Role = "flow"
	RoleStream    Role = "stream"
	RoleSingleton Role = "singleton"
)

// ConnectorDecl represents
//
//	connector Name
//	  potential v::Voltage
//	  flow i::Current
//	end
type ConnectorDecl struct {
	NodeInfo
	Description string
	NameNode    *Ident
	Fields      []*FieldDecl
	Metadata    *metadata.Value
}

func (c *ConnectorDecl) topLevelNode()         {}
func (c *ConnectorDecl) Name() string          { return c.NameNode.Name }
func (c *ConnectorDecl) Doc() string           { return c.Description }
func (c *ConnectorDecl) Meta() *metadata.Value { return c.Metadata }
func (c *ConnectorDecl) String() string        { return fmt.Sprintf("connector %s ... end", c.Name()) }

// Field returns the field with the given name or nil.
func (c *ConnectorDecl) Field(name string) *FieldDecl {
	for _, f := range c.Fields {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// FieldsWithRole returns the fields declared with the given role in declaration order.
func (c *ConnectorDecl) FieldsWithRole(role Role) (out []*FieldDecl) {
	for _, f := range c.Fields {
		if f.Role == role {
			out = append(out, f)
		}
	}
	return
}

// FieldDecl is one `role name::Type` line in a connector.
type FieldDecl struct {
	NodeInfo
	Description string
	Role        Role
	NameNode    *Ident
	Type        *TypeRef
	Metadata    *metadata.Value
}

func (f *FieldDecl) Name() string          { return f.NameNode.Name }
func (f *FieldDecl) Doc() string           { return f.Description }
func (f *FieldDecl) Meta() *metadata.Value { return f.Metadata }
func (f *FieldDecl) String() string        { return fmt.Sprintf("%s %s::%s", f.Role, f.Name(), f.Type) }

// TypeRef is a reference to a type with optional attribute overrides and array dimensions:
// `Voltage`, `Real(units="V", guess=0)`, `Real[3]`.
type TypeRef struct {
	NodeInfo
	NameNode *Ident
	Attrs    []*NamedArg
	Dims     []Expr
}

func (t *TypeRef) Name() string                { return t.NameNode.Name }
func (t *TypeRef) Attr(name string) *NamedArg { return findArg(t.Attrs, name) }
func (t *TypeRef) String() string              { return Print(t) }

// ComponentDecl represents
//
//	[partial] component Name
//	  members...
//	relations
//	  equations and connects...
//	metadata {...}
//	end
type ComponentDecl struct {
	NodeInfo
	Description string
	Partial     bool
	NameNode    *Ident
	Members     []Member
	Relations   []Relation
	Metadata    *metadata.Value
}

func (c *ComponentDecl) topLevelNode()         {}
func (c *ComponentDecl) Name() string          { return c.NameNode.Name }
func (c *ComponentDecl) Doc() string           { return c.Description }
func (c *ComponentDecl) Meta() *metadata.Value { return c.Metadata }
func (c *ComponentDecl) String() string        { return fmt.Sprintf("component %s ... end", c.Name()) }

// Member returns the first member with the given name or nil.
func (c *ComponentDecl) Member(name string) Member {
	for _, m := range c.Members {
		if m.MemberName() == name {
			return m
		}
	}
	return nil
}

// MemberNames returns all member names in declaration order.
func (c *ComponentDecl) MemberNames() []string {
	return gfn.Map(c.Members, func(m Member) string { return m.MemberName() })
}

// Member marker interface for items allowed in a ComponentDecl body.
type Member interface {
	Described
	Annotated
	MemberName() string
	memberNode()
}

// ParamDecl represents `parameter name::Type [= default]`
type ParamDecl struct {
	NodeInfo
	Description string
	NameNode    *Ident
	Type        *TypeRef
	Default     Expr // Optional
	Metadata    *metadata.Value
}

func (p *ParamDecl) memberNode()           {}
func (p *ParamDecl) MemberName() string    { return p.NameNode.Name }
func (p *ParamDecl) Doc() string           { return p.Description }
func (p *ParamDecl) Meta() *metadata.Value { return p.Metadata }
func (p *ParamDecl) String() string        { return Print(p) }

// VarDecl represents `variable name::Type`
type VarDecl struct {
	NodeInfo
	Description string
	NameNode    *Ident
	Type        *TypeRef
	Metadata    *metadata.Value
}

func (v *VarDecl) memberNode()           {}
func (v *VarDecl) MemberName() string    { return v.NameNode.Name }
func (v *VarDecl) Doc() string           { return v.Description }
func (v *VarDecl) Meta() *metadata.Value { return v.Metadata }
func (v *VarDecl) String() string        { return Print(v) }

// InstanceDecl represents a connector or sub-component instance:
//
//	p = Pin()
//	resistor = Resistor(R=100)
//	load::TwoPin = Resistor(R=10)
//	load::TwoPin
//
// Interface is set when the member is typed by a (partial) component.  Constructor is nil
// for an unbound interface member that the instantiating parent has to bind.
type InstanceDecl struct {
	NodeInfo
	Description string
	NameNode    *Ident
	Interface   *Ident
	Constructor *CallExpr
	Metadata    *metadata.Value
}

func (i *InstanceDecl) memberNode()           {}
func (i *InstanceDecl) MemberName() string    { return i.NameNode.Name }
func (i *InstanceDecl) Doc() string           { return i.Description }
func (i *InstanceDecl) Meta() *metadata.Value { return i.Metadata }
func (i *InstanceDecl) String() string        { return Print(i) }

// TypeName is the declared type of the instance: the interface when given, else the
// constructor's type.
func (i *InstanceDecl) TypeName() string {
	if i.Interface != nil {
		return i.Interface.Name
	}
	return i.Constructor.Name()
}

// Relation marker interface for items in a relations block.
type Relation interface {
	Described
	Annotated
	relationNode()
}

// EquationStmt represents `[initial] lhs = rhs`
type EquationStmt struct {
	NodeInfo
	Description string
	Initial     bool
	Left        Expr
	Right       Expr
	Metadata    *metadata.Value
}

func (e *EquationStmt) relationNode()         {}
func (e *EquationStmt) Doc() string           { return e.Description }
func (e *EquationStmt) Meta() *metadata.Value { return e.Metadata }
func (e *EquationStmt) String() string        { return Print(e) }

// ConnectStmt represents `connect(a, b, ...)`
type ConnectStmt struct {
	NodeInfo
	Description string
	Endpoints   []*RefExpr
	Metadata    *metadata.Value
}

func (c *ConnectStmt) relationNode()         {}
func (c *ConnectStmt) Doc() string           { return c.Description }
func (c *ConnectStmt) Meta() *metadata.Value { return c.Metadata }
func (c *ConnectStmt) String() string        { return Print(c) }

func findArg(args []*NamedArg, name string) *NamedArg {
	for _, a := range args {
		if a.Name() == name {
			return a
		}
	}
	return nil
}
