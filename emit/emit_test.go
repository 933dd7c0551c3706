package emit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
	"github.com/panyam/jsmlc/expand"
	"github.com/panyam/jsmlc/ir"
	"github.com/panyam/jsmlc/loader"
	"github.com/panyam/jsmlc/metadata"
	"github.com/panyam/jsmlc/resolver"
)

func TestEmitExampleModel(t *testing.T) {
	res, err := loader.NewFileLoader().LoadRootFile("../examples/rlc.jsml")
	require.NoError(t, err)
	r := resolver.New(res.AllFiles()...)
	require.Empty(t, r.DeclareGlobals())
	comps := map[*decl.ComponentDecl]*resolver.Component{}
	for _, cd := range r.Components() {
		c, diags := r.ResolveComponent(cd)
		require.Empty(t, diags)
		comps[cd] = c
	}

	out, diags := New(r, comps, nil).Emit(r.Component("RLCModel"), nil)
	require.Empty(t, diags)
	sys := out.System
	assert.Equal(t, "RLCModel", sys.Component)

	// each two-pin part has v, i and four pin fields; ground has two
	assert.Len(t, sys.Variables, 26)
	assert.Len(t, sys.Equations, 26)
	assert.Equal(t, []string{"resistor.v", "resistor.i", "resistor.p.v", "resistor.p.i", "resistor.n.v", "resistor.n.i"},
		paths(sys.Variables[:6], func(v *ir.Variable) string { return v.Path }))
	assert.Equal(t, "V", sys.Variable("resistor.v").Unit)
	assert.Equal(t, "potential", sys.Variable("resistor.p.v").Role)
	assert.Equal(t, "flow", sys.Variable("ground.g.i").Role)

	assert.Equal(t, []string{"resistor.R", "capacitor.C", "inductor.L", "source.V"},
		paths(sys.Parameters, func(p *ir.Parameter) string { return p.Path }))
	R := sys.Parameter("resistor.R")
	assert.Equal(t, "1", R.Default)
	assert.Equal(t, "100", R.Override)
	require.NotNil(t, R.Value)
	assert.Equal(t, 100.0, *R.Value)
	assert.Equal(t, "Ω", R.Unit)
	require.NotNil(t, R.Min)
	assert.Equal(t, 0.0, *R.Min)
	assert.Equal(t, 1e-3, *sys.Parameter("capacitor.C").Value)

	eqs := equations(out)
	assert.Equal(t, []string{
		"capacitor.n.v = inductor.p.v",
		"capacitor.n.i + inductor.p.i = 0",
		"capacitor.p.v = resistor.n.v",
		"capacitor.p.i + resistor.n.i = 0",
		"ground.g.v = inductor.n.v",
		"ground.g.v = source.n.v",
		"ground.g.i + inductor.n.i + source.n.i = 0",
		"resistor.p.v = source.p.v",
		"resistor.p.i + source.p.i = 0",
		"resistor.v = resistor.p.v - resistor.n.v",
		"resistor.i = resistor.p.i",
		"resistor.p.i + resistor.n.i = 0",
		"resistor.v = resistor.i * resistor.R",
	}, eqs[:13])
	assert.Contains(t, eqs, "capacitor.C * der(capacitor.v) = capacitor.i")
	assert.Contains(t, eqs, "ground.g.v = 0")
	assert.True(t, sys.Equations[0].Connection)
	assert.Equal(t, "", sys.Equations[0].Origin)
	ohm := sys.Equations[12]
	assert.Equal(t, "resistor", ohm.Origin)
	assert.False(t, ohm.Connection)
	assert.Equal(t, "Ohm's law", ohm.Description)

	assert.Equal(t, []string{"capacitor.v = 0", "inductor.i = 0"},
		paths(sys.Initial, func(e *ir.Equation) string { return e.String() }))

	require.Len(t, sys.Instances.Children, 5)
	assert.Equal(t, "A series RLC circuit driven by a constant voltage source", sys.Instances.Description)
	assert.Equal(t, "Resistor", sys.Instances.Children[0].Component)
	assert.Equal(t, "resistor", sys.Instances.Children[0].Path)
	assert.Equal(t, 6, sys.Stats().Instances)

	assert.Equal(t, "Circuit load", sys.Descriptions["resistor"])
	assert.Equal(t, "Resistance", sys.Descriptions["resistor.R"])
	require.Len(t, sys.Connections, 4)
	assert.Equal(t, []string{"ground.g", "inductor.n", "source.n"}, sys.Connections[2].Members)

	require.NotNil(t, out.Root)
	assert.Equal(t, "RLCModel", out.Root.Path)
	assert.Equal(t, []string{
		"RLCModel", "resistor", "capacitor", "inductor", "source", "ground",
		"connect(source.p, resistor.p)", "Resistor", "Capacitor", "Inductor",
	}, paths(out.Annotations, func(a *metadata.Annotation) string { return a.Path }))
}

func TestParameterValues(t *testing.T) {
	src := `
component Divider
  parameter R0::Resistance = 10
  parameter scale::Real = 2
  top = Resistor(R=R0 * scale)
  bottom = Resistor(R=R0)
  g = Ground()
relations
  connect(top.n, bottom.p)
  connect(bottom.n, g.g)
end
`
	out, diags := emitRoot(t, src, "Divider", nil)
	require.Empty(t, diags)
	top := out.System.Parameter("top.R")
	assert.Equal(t, "R0 * scale", top.Override)
	assert.Equal(t, 20.0, *top.Value)
	assert.Equal(t, 10.0, *out.System.Parameter("bottom.R").Value)

	out, diags = emitRoot(t, src, "Divider", map[string]decl.Expr{"R0": decl.NewNumber(5)})
	require.Empty(t, diags)
	assert.Equal(t, "5", out.System.Parameter("R0").Override)
	assert.Equal(t, 10.0, *out.System.Parameter("top.R").Value)
	assert.Equal(t, 5.0, *out.System.Parameter("bottom.R").Value)
}

func TestParameterWithoutConstantValue(t *testing.T) {
	out, diags := emitRoot(t, `
component Timed
  variable x::Real
  parameter k::Real = t * 2
relations
  x = k
end
`, "Timed", nil)
	require.Empty(t, diags)
	k := out.System.Parameter("k")
	assert.Equal(t, "t * 2", k.Default)
	assert.Nil(t, k.Value)
}

func TestConstraintViolation(t *testing.T) {
	_, diags := emitRoot(t, `
component Broken
  r = Resistor(R=-1)
  g = Ground()
relations
  connect(r.p, g.g)
  connect(r.n, g.g)
end
`, "Broken", nil)
	errs := diags.OfKind(diag.ConstraintViolationError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Broken.r", errs[0].Path)
	assert.Equal(t, "test.jsml", errs[0].File)
	assert.Equal(t, 3, errs[0].Line)
	assert.Contains(t, errs[0].Message, "r.R = -1 is below its minimum 0")
}

func TestRootOverrides(t *testing.T) {
	src := `
component Single
  r = Resistor()
  g = Ground()
relations
  connect(r.p, g.g)
  connect(r.n, g.g)
end
`
	out, diags := emitRoot(t, src, "Single", map[string]decl.Expr{"r.R": decl.NewNumber(42)})
	require.Empty(t, diags)
	assert.Equal(t, 42.0, *out.System.Parameter("r.R").Value)

	_, diags = emitRoot(t, src, "Single", map[string]decl.Expr{"r.X": decl.NewNumber(1)})
	errs := diags.OfKind(diag.UnknownParameterError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "Single has no parameter r.X")

	_, diags = emitRoot(t, src, "Single", map[string]decl.Expr{"r.R": decl.NewNumber(-3)})
	require.Len(t, diags.OfKind(diag.ConstraintViolationError), 1)
}

func TestRootOverridesAreChecked(t *testing.T) {
	src := `
component Pair
  r = Resistor()
  c = Capacitor()
  g = Ground()
relations
  connect(r.p, c.p)
  connect(r.n, c.n, g.g)
end
`
	tests := []struct {
		name  string
		value decl.Expr
		kind  diag.Kind
	}{
		{"string", &decl.StringLiteral{Value: "hello"}, diag.TypeMismatchError},
		{"boolean", &decl.BoolLiteral{Value: true}, diag.TypeMismatchError},
		{"capacitance", decl.NewRef("c.C"), diag.UnitMismatchError},
		{"scaled capacitance", decl.NewBinary(decl.NewRef("c.C"), "*", decl.NewNumber(2)), diag.UnitMismatchError},
		{"unknown reference", decl.NewRef("c.Q"), diag.UnresolvedReferenceError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, diags := emitRoot(t, src, "Pair", map[string]decl.Expr{"r.R": tt.value})
			errs := diags.OfKind(tt.kind)
			require.Len(t, errs, 1, diags.Error())
			assert.Equal(t, "Pair", errs[0].Path)
			assert.Zero(t, errs[0].Line)
			p := out.System.Parameter("r.R")
			assert.Empty(t, p.Override)
			assert.Equal(t, 1.0, *p.Value)
		})
	}
}

const interfaces = `
component Circuit
  load::TwoPin
  g = Ground()
relations
  connect(load.p, g.g)
  connect(load.n, g.g)
end

component Top
  parameter k::Capacitance = 2
  c = Circuit(load=Capacitor(C=k))
end

component Loose
  r = Resistor()
  c = Circuit()
end
`

func TestInterfaceBinding(t *testing.T) {
	out, diags := emitRoot(t, interfaces, "Top", nil)
	require.Empty(t, diags)
	sys := out.System
	c := sys.Instances.Children[0]
	require.Len(t, c.Children, 2)
	load := c.Children[0]
	assert.Equal(t, "c.load", load.Path)
	assert.Equal(t, "Capacitor", load.Component)
	assert.Equal(t, "TwoPin", load.Interface)

	C := sys.Parameter("c.load.C")
	require.NotNil(t, C)
	// the argument was written in Top, so k stays a root path
	assert.Equal(t, "k", C.Override)
	assert.Equal(t, 2.0, *C.Value)
	assert.Equal(t, "Voltage across the plates", sys.Descriptions["c.load.v"])
	assert.Contains(t, equations(out), "c.load.C * der(c.load.v) = c.load.p.i")
	assert.Contains(t, equations(out), "c.g.g.v = c.load.n.v")
}

func TestUnboundInterfaceAtRoot(t *testing.T) {
	out, diags := emitRoot(t, interfaces, "Circuit", nil)
	errs := diags.OfKind(diag.InterfaceMismatchError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Circuit.load", errs[0].Path)
	assert.Equal(t, 3, errs[0].Line)
	assert.Contains(t, errs[0].Message, "load::TwoPin is never bound")
	// the rest of the root is still emitted
	assert.NotNil(t, out.System.Variable("g.g.v"))
}

func TestUnboundInterfaceDropsSubtree(t *testing.T) {
	out, diags := emitRoot(t, interfaces, "Loose", nil)
	errs := diags.OfKind(diag.InterfaceMismatchError)
	require.Len(t, errs, 1)
	assert.Equal(t, "Loose.c.load", errs[0].Path)

	sys := out.System
	require.Len(t, sys.Instances.Children, 1)
	assert.Equal(t, "r", sys.Instances.Children[0].Name)
	assert.NotNil(t, sys.Variable("r.p.v"))
	assert.Nil(t, sys.Variable("c.g.g.v"))
	for _, eq := range sys.Equations {
		assert.NotContains(t, eq.String(), "c.g")
	}
}

func TestArrayDimensions(t *testing.T) {
	out, diags := emitRoot(t, `
component Grid
  parameter n::Integer = 3
  variable x::Real[n, 2]
  variable y::Real[n - 3]
end
`, "Grid", nil)
	assert.Equal(t, []int{3, 2}, out.System.Variable("x").Dims)
	errs := diags.OfKind(diag.TypeMismatchError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "dimension 1 of y must be a positive constant")
}

func TestInferredUnitsInOutput(t *testing.T) {
	out, diags := emitRoot(t, `
component Probe
  p = Pin()
  variable v::Real
relations
  v = p.v
  p.i = 0
end
`, "Probe", nil)
	require.Empty(t, diags)
	assert.Equal(t, "V", out.System.Variable("v").Unit)
}

func TestExpandOnDemand(t *testing.T) {
	e, r := build(t, "component Lone\n  g = Ground()\nend\n")
	e.exps = map[*decl.ComponentDecl]*expand.Result{}
	out, diags := e.Emit(r.Component("Lone"), nil)
	require.Empty(t, diags)
	assert.Equal(t, []string{"g.g.v = 0"}, equations(out))
}
