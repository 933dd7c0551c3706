package resolver

import (
	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
)

type instEdge struct {
	to   *decl.ComponentDecl
	node decl.Node
}

// edges lists the components a component instantiates: constructors of its members and any
// components bound to interface members through keyword arguments.
func (r *Resolver) edges(cd *decl.ComponentDecl) (out []instEdge) {
	var visitCall func(call *decl.CallExpr)
	visitCall = func(call *decl.CallExpr) {
		if g, ok := r.Globals.Get(call.Name()); ok && g.Kind == GlobalComponent {
			out = append(out, instEdge{to: g.Component, node: call})
		}
		for _, a := range call.Named {
			if nested, ok := a.Value.(*decl.CallExpr); ok {
				visitCall(nested)
			}
		}
	}
	for _, m := range cd.Members {
		if inst, ok := m.(*decl.InstanceDecl); ok && inst.Constructor != nil {
			visitCall(inst.Constructor)
		}
	}
	return
}

// CheckCycles walks the instantiation graph depth first and reports every component that
// (transitively) instantiates itself.
func (r *Resolver) CheckCycles() diag.List {
	const (
		unvisited = iota
		visiting
		done
	)
	var out diag.List
	state := map[*decl.ComponentDecl]int{}
	var stack []string

	var visit func(cd *decl.ComponentDecl)
	visit = func(cd *decl.ComponentDecl) {
		state[cd] = visiting
		stack = append(stack, cd.Name())
		for _, e := range r.edges(cd) {
			switch state[e.to] {
			case visiting:
				start := 0
				for i, name := range stack {
					if name == e.to.Name() {
						start = i
					}
				}
				chain := append(append([]string(nil), stack[start:]...), e.to.Name())
				out = append(out, errorAt(diag.CyclicDefinitionError, r.files[cd.Name()], e.node, "instantiation cycle: %s", joinPath(chain)))
			case unvisited:
				visit(e.to)
			}
		}
		stack = stack[:len(stack)-1]
		state[cd] = done
	}
	for _, cd := range r.components {
		if state[cd] == unvisited {
			visit(cd)
		}
	}
	return out
}
