package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/parser"
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
  variable v::Voltage
  variable i::Current
  parameter R::Resistance = 1
relations
  v = p.v - n.v
  p.i + n.i = 0
  i = p.i
  v = i * R
end

component Capacitor
  p = Pin()
  n = Pin()
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

// resolveAll declares src on top of lib and resolves every component.
func resolveAll(t *testing.T, src string) (*Resolver, map[string]*Component, diag.List) {
	t.Helper()
	libFile, err := parser.ParseString(lib, "lib.jsml")
	require.NoError(t, err)
	file, err := parser.ParseString(src, "test.jsml")
	require.NoError(t, err)

	r := New(libFile, file)
	diags := r.DeclareGlobals()
	comps := map[string]*Component{}
	for _, cd := range r.Components() {
		c, d := r.ResolveComponent(cd)
		comps[cd.Name()] = c
		diags = append(diags, d...)
	}
	return r, comps, diags
}

// requireKind asserts that diags contains an error of kind and returns the first one.
func requireKind(t *testing.T, diags diag.List, kind diag.Kind) *diag.Diagnostic {
	t.Helper()
	found := diags.OfKind(kind)
	require.NotEmpty(t, found, "expected a %s, got:\n%s", kind, diags.Error())
	return found[0]
}
