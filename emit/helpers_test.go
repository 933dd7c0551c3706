package emit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/expand"
	"github.com/panyam/jsmlc/parser"
	"github.com/panyam/jsmlc/resolver"
)

const lib = `
type Voltage = Real(units="V")
type Current = Real(units="A")
type Resistance = Real(units="Ω", min=0)
type Capacitance = Real(units="F")

connector Pin
  potential v::Voltage
  flow i::Current
end

partial component TwoPin
  p = Pin()
  n = Pin()
end

component Resistor
  p = Pin()
  n = Pin()
  parameter R::Resistance = 1
relations
  p.v - n.v = R * p.i
  p.i + n.i = 0
end

component Capacitor
  p = Pin()
  n = Pin()
  "Voltage across the plates"
  variable v::Voltage
  parameter C::Capacitance = 1
relations
  v = p.v - n.v
  p.i + n.i = 0
  C * der(v) = p.i
end

component Ground
  g = Pin()
relations
  g.v = 0
end
`

// build resolves lib plus src and returns an emitter over every component.
func build(t *testing.T, src string) (*Emitter, *resolver.Resolver) {
	t.Helper()
	libFile, err := parser.ParseString(lib, "lib.jsml")
	require.NoError(t, err)
	file, err := parser.ParseString(src, "test.jsml")
	require.NoError(t, err)

	r := resolver.New(libFile, file)
	diags := r.DeclareGlobals()
	require.False(t, diags.HasErrors(), diags.Error())
	comps := map[*decl.ComponentDecl]*resolver.Component{}
	exps := map[*decl.ComponentDecl]*expand.Result{}
	for _, cd := range r.Components() {
		c, diags := r.ResolveComponent(cd)
		require.False(t, diags.HasErrors(), diags.Error())
		comps[cd] = c
		exps[cd] = expand.Expand(c)
	}
	return New(r, comps, exps), r
}

func emitRoot(t *testing.T, src, root string, overrides map[string]decl.Expr) (*Output, diag.List) {
	t.Helper()
	e, r := build(t, src)
	cd := r.Component(root)
	require.NotNil(t, cd, root)
	return e.Emit(cd, overrides)
}

func equations(out *Output) (eqs []string) {
	for _, eq := range out.System.Equations {
		eqs = append(eqs, eq.String())
	}
	return
}

func paths[T any](items []T, path func(T) string) (out []string) {
	for _, it := range items {
		out = append(out, path(it))
	}
	return
}
