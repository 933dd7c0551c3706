package expand

import (
	"testing"

	gfn "github.com/panyam/goutils/fn"
	"github.com/stretchr/testify/require"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/parser"
	"github.com/panyam/jsmlc/resolver"
)

const lib = `
type Voltage = Real(units="V")
type Current = Real(units="A")

connector Pin
  potential v::Voltage
  flow i::Current
end

connector Flange
  potential phi::Real(units="rad")
  flow tau::Real(units="N.m")
end

connector Fluid
  potential p::Real(units="Pa")
  flow m::Real(units="kg/s")
  stream h::Real(units="J/kg")
end

connector Bus
  singleton enabled::Boolean
  potential v::Voltage
  flow i::Current
end

component Resistor
  p = Pin()
  n = Pin()
  parameter R::Real(units="Ω") = 1
relations
  p.v - n.v = R * p.i
  p.i + n.i = 0
end

component Ground
  g = Pin()
relations
  g.v = 0
end

component Tank
  port = Fluid()
end
`

// expandComponent resolves lib plus src and expands the named component.
func expandComponent(t *testing.T, src, name string) *Result {
	t.Helper()
	libFile, err := parser.ParseString(lib, "lib.jsml")
	require.NoError(t, err)
	file, err := parser.ParseString(src, "test.jsml")
	require.NoError(t, err)

	r := resolver.New(libFile, file)
	diags := r.DeclareGlobals()
	require.False(t, diags.HasErrors(), diags.Error())
	cd := r.Component(name)
	require.NotNil(t, cd, name)
	c, diags := r.ResolveComponent(cd)
	require.False(t, diags.HasErrors(), diags.Error())
	return Expand(c)
}

// generated renders the connection equations of res.
func generated(res *Result) []string {
	eqs := res.Equations[len(res.Equations)-res.Generated:]
	return gfn.Map(eqs, func(eq *decl.EquationStmt) string { return decl.Print(eq) })
}
