// Package ir holds the flattened equation system produced for one root component.  Paths are
// dotted and relative to the root (`resistor.v`); expressions are kept as AST for in-process
// consumers and rendered as JSML text for serialisation.
package ir

import (
	"sort"

	"github.com/panyam/jsmlc/decl"
)

// Variable is an unknown of the system: a declared variable or a connector field.
type Variable struct {
	Path string `json:"path" yaml:"path"`
	Type string `json:"type" yaml:"type"`
	Unit string `json:"unit,omitempty" yaml:"unit,omitempty"`
	// Connector field role, empty for plain variables
	Role        string   `json:"role,omitempty" yaml:"role,omitempty"`
	Dims        []int    `json:"dims,omitempty" yaml:"dims,omitempty"`
	Guess       *float64 `json:"guess,omitempty" yaml:"guess,omitempty"`
	Min         *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// Parameter is a named constant of the system.
type Parameter struct {
	Path string `json:"path" yaml:"path"`
	Type string `json:"type" yaml:"type"`
	Unit string `json:"unit,omitempty" yaml:"unit,omitempty"`
	// Declared default and instantiation override as JSML expressions over root paths
	Default  string `json:"default,omitempty" yaml:"default,omitempty"`
	Override string `json:"override,omitempty" yaml:"override,omitempty"`
	// Set when the effective expression folds to a constant
	Value       *float64 `json:"value,omitempty" yaml:"value,omitempty"`
	Min         *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max         *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`

	DefaultExpr  decl.Expr `json:"-" yaml:"-"`
	OverrideExpr decl.Expr `json:"-" yaml:"-"`
}

// Effective is the override if there is one, else the default.
func (p *Parameter) Effective() decl.Expr {
	if p.OverrideExpr != nil {
		return p.OverrideExpr
	}
	return p.DefaultExpr
}

// Equation is `Left = Right`.  Origin is the instance path it came from, empty for the root.
type Equation struct {
	Left        string `json:"lhs" yaml:"lhs"`
	Right       string `json:"rhs" yaml:"rhs"`
	Origin      string `json:"origin,omitempty" yaml:"origin,omitempty"`
	Connection  bool   `json:"connection,omitempty" yaml:"connection,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	LeftExpr  decl.Expr `json:"-" yaml:"-"`
	RightExpr decl.Expr `json:"-" yaml:"-"`
}

// NewEquation renders both sides.
func NewEquation(left, right decl.Expr) *Equation {
	return &Equation{Left: left.String(), Right: right.String(), LeftExpr: left, RightExpr: right}
}

func (e *Equation) String() string { return e.Left + " = " + e.Right }

// Instance is a node of the instance tree.
type Instance struct {
	Name        string      `json:"name" yaml:"name"`
	Path        string      `json:"path,omitempty" yaml:"path,omitempty"`
	Component   string      `json:"component" yaml:"component"`
	Interface   string      `json:"interface,omitempty" yaml:"interface,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Children    []*Instance `json:"children,omitempty" yaml:"children,omitempty"`
}

// Walk visits the tree depth first, parents before children.
func (i *Instance) Walk(visit func(*Instance)) {
	visit(i)
	for _, c := range i.Children {
		c.Walk(visit)
	}
}

// ConnectionSet is one group of connected connectors, paths sorted.
type ConnectionSet struct {
	Connector string   `json:"connector" yaml:"connector"`
	Members   []string `json:"members" yaml:"members"`
}

// EquationSystem is the compiled form of one root component.
type EquationSystem struct {
	Component    string            `json:"component" yaml:"component"`
	Variables    []*Variable       `json:"variables" yaml:"variables"`
	Parameters   []*Parameter      `json:"parameters" yaml:"parameters"`
	Equations    []*Equation       `json:"equations" yaml:"equations"`
	Initial      []*Equation       `json:"initial,omitempty" yaml:"initial,omitempty"`
	Instances    *Instance         `json:"instances" yaml:"instances"`
	Connections  []*ConnectionSet  `json:"connections,omitempty" yaml:"connections,omitempty"`
	Descriptions map[string]string `json:"descriptions,omitempty" yaml:"descriptions,omitempty"`
}

func (s *EquationSystem) Variable(path string) *Variable {
	for _, v := range s.Variables {
		if v.Path == path {
			return v
		}
	}
	return nil
}

func (s *EquationSystem) Parameter(path string) *Parameter {
	for _, p := range s.Parameters {
		if p.Path == path {
			return p
		}
	}
	return nil
}

// HasPath reports whether path names a variable, a parameter or time.
func (s *EquationSystem) HasPath(path string) bool {
	return path == "t" || s.Variable(path) != nil || s.Parameter(path) != nil
}

// Describe records a description, ignoring empty ones.
func (s *EquationSystem) Describe(path, text string) {
	if text == "" {
		return
	}
	if s.Descriptions == nil {
		s.Descriptions = map[string]string{}
	}
	s.Descriptions[path] = text
}

// DescribedPaths returns the keys of Descriptions in sorted order.
func (s *EquationSystem) DescribedPaths() []string {
	out := make([]string, 0, len(s.Descriptions))
	for k := range s.Descriptions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Stats summarises the system size.
type Stats struct {
	Variables  int `json:"variables"`
	Parameters int `json:"parameters"`
	Equations  int `json:"equations"`
	Initial    int `json:"initial"`
	Instances  int `json:"instances"`
}

func (s *EquationSystem) Stats() Stats {
	out := Stats{
		Variables:  len(s.Variables),
		Parameters: len(s.Parameters),
		Equations:  len(s.Equations),
		Initial:    len(s.Initial),
	}
	if s.Instances != nil {
		s.Instances.Walk(func(*Instance) { out.Instances++ })
	}
	return out
}
