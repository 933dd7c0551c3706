// Package expand turns connect statements into equations.  Endpoints joined directly or
// transitively form a connection group; each group yields equalities for potential fields
// and conservation sums for flow and stream fields.
package expand

import (
	"fmt"
	"log/slog"
	"sort"

	gfn "github.com/panyam/goutils/fn"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/resolver"
)

// Member is one connector instance taking part in a connection group.
type Member struct {
	Path      string
	Connector *resolver.Connector
	// First connect statement naming this member
	Stmt *decl.ConnectStmt
	ref  *decl.RefExpr
}

// Group is a set of connectors joined together.  Members are sorted by path.
type Group struct {
	Connector *resolver.Connector
	Members   []*Member
	// Earliest connect statement contributing to the group
	Origin *decl.ConnectStmt
}

func (g *Group) Paths() []string {
	return gfn.Map(g.Members, func(m *Member) string { return m.Path })
}

// Result is the expanded relation list of one component.
type Result struct {
	Component *resolver.Component
	// Source equations in order followed by connection equations
	Equations []*decl.EquationStmt
	Initial   []*decl.EquationStmt
	Groups    []*Group
	// Number of equations produced from connections
	Generated   int
	Diagnostics diag.List
}

// Expand computes connection groups and the equations they imply.
func Expand(c *resolver.Component) *Result {
	out := &Result{Component: c}
	out.Equations, out.Initial = c.Equations()

	sets := newUnionFind()
	members := map[string]*Member{}
	for _, cs := range c.Connects() {
		var first string
		for _, ep := range cs.Endpoints {
			target, d := c.Resolve(ep)
			if d != nil || target.Invalid || !target.IsConnector() {
				// reported by the resolver
				continue
			}
			path := target.Path()
			m, seen := members[path]
			if !seen {
				m = &Member{Path: path, Connector: target.Last().Connector, Stmt: cs, ref: ep}
				members[path] = m
				sets.add(path)
			}
			if first == "" {
				first = path
				continue
			}
			head := members[sets.find(first)]
			other := members[sets.find(path)]
			if head.Connector != other.Connector {
				out.Diagnostics = append(out.Diagnostics, diag.Errorf(diag.ConnectorTypeMismatchError, c.File, ep.Pos().Line, ep.Pos().Col,
					"cannot connect %s (%s) to %s (%s)", first, members[first].Connector.Name(), path, m.Connector.Name()))
				continue
			}
			sets.union(first, path)
		}
	}

	out.Groups = groups(sets, members, c.Connects())
	for _, g := range out.Groups {
		eqs := groupEquations(g)
		out.Equations = append(out.Equations, eqs...)
		out.Generated += len(eqs)
	}
	out.Diagnostics = append(out.Diagnostics, unconnected(c, members)...)
	slog.Debug("Expanded connections", "stage", "expand", "component", c.Name(),
		"groups", len(out.Groups), "count", out.Generated)
	return out
}

func groups(sets *unionFind, members map[string]*Member, stmts []*decl.ConnectStmt) []*Group {
	order := map[*decl.ConnectStmt]int{}
	for i, cs := range stmts {
		order[cs] = i
	}
	byRoot := map[string]*Group{}
	var out []*Group
	for _, path := range sets.keys {
		root := sets.find(path)
		g := byRoot[root]
		if g == nil {
			g = &Group{Connector: members[root].Connector}
			byRoot[root] = g
			out = append(out, g)
		}
		m := members[path]
		g.Members = append(g.Members, m)
		if g.Origin == nil || order[m.Stmt] < order[g.Origin] {
			g.Origin = m.Stmt
		}
	}
	for _, g := range out {
		sort.Slice(g.Members, func(i, j int) bool { return g.Members[i].Path < g.Members[j].Path })
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Members[0].Path < out[j].Members[0].Path })
	return out
}

// groupEquations walks the connector fields in declaration order.  Potential and singleton
// fields are set equal to the first member's, flow fields sum to zero and stream fields sum
// to zero weighted by the first flow field.
func groupEquations(g *Group) (out []*decl.EquationStmt) {
	if len(g.Members) < 2 {
		return nil
	}
	var weight *resolver.Field
	if flows := g.Connector.FieldsWithRole(decl.RoleFlow); len(flows) > 0 {
		weight = flows[0]
	}
	ref := func(m *Member, f *resolver.Field) decl.Expr { return decl.NewRef(m.Path + "." + f.Name) }
	eq := func(left, right decl.Expr) *decl.EquationStmt {
		return &decl.EquationStmt{NodeInfo: g.Origin.NodeInfo, Left: left, Right: right}
	}

	for _, f := range g.Connector.Fields {
		switch f.Role {
		case decl.RolePotential, decl.RoleSingleton:
			for _, m := range g.Members[1:] {
				out = append(out, eq(ref(g.Members[0], f), ref(m, f)))
			}
		case decl.RoleFlow:
			terms := gfn.Map(g.Members, func(m *Member) decl.Expr { return ref(m, f) })
			out = append(out, eq(decl.Sum(terms...), decl.NewNumber(0)))
		case decl.RoleStream:
			if weight == nil {
				continue
			}
			terms := gfn.Map(g.Members, func(m *Member) decl.Expr {
				return decl.NewBinary(ref(m, weight), "*", ref(m, f))
			})
			out = append(out, eq(decl.Sum(terms...), decl.NewNumber(0)))
		}
	}
	return
}

// unconnected warns about ports of sub-component instances that no connect statement names,
// and about the component's own connectors when neither a connect statement nor an equation
// mentions them.
func unconnected(c *resolver.Component, members map[string]*Member) (out diag.List) {
	used := map[string]bool{}
	for _, rel := range c.Decl.Relations {
		if eq, ok := rel.(*decl.EquationStmt); ok {
			for _, r := range append(decl.Refs(eq.Left), decl.Refs(eq.Right)...) {
				used[r.Head()] = true
			}
		}
	}
	sigs := c.Resolver()
	for _, sym := range c.Symbols() {
		if sym.Kind == resolver.SymConnector && !sym.Invalid && !c.Decl.Partial {
			if _, ok := members[sym.Name]; !ok && !used[sym.Name] {
				pos := sym.Decl.Pos()
				d := diag.Warnf(diag.UnconnectedPinError, c.File, pos.Line, pos.Col,
					"connector %s of %s is not connected", sym.Name, c.Name())
				out = append(out, d.WithPath(fmt.Sprintf("%s.%s", c.Name(), sym.Name)))
			}
			continue
		}
		if sym.Kind != resolver.SymInstance || sym.Invalid || sym.Declared == nil {
			continue
		}
		sig := sigs.Signature(sym.Declared)
		if sig == nil {
			continue
		}
		for _, port := range sig.Symbols {
			if port.Kind != resolver.SymConnector {
				continue
			}
			path := sym.Name + "." + port.Name
			if _, ok := members[path]; ok {
				continue
			}
			pos := sym.Decl.Pos()
			d := diag.Warnf(diag.UnconnectedPinError, c.File, pos.Line, pos.Col,
				"port %s of %s is not connected", path, sym.Declared.Name())
			out = append(out, d.WithPath(fmt.Sprintf("%s.%s", c.Name(), sym.Name)))
		}
	}
	return
}
