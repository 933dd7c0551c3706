package expand

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panyam/jsmlc/decl"
	"github.com/panyam/jsmlc/diag"
)

func TestConnectTwoPins(t *testing.T) {
	res := expandComponent(t, `
component Circuit
  r1 = Resistor()
  r2 = Resistor()
relations
  connect(r1.n, r2.p)
end
`, "Circuit")
	require.Empty(t, res.Diagnostics.Errors())
	assert.Equal(t, []string{"r1.n.v = r2.p.v", "r1.n.i + r2.p.i = 0"}, generated(res))
	require.Len(t, res.Groups, 1)
	assert.Equal(t, []string{"r1.n", "r2.p"}, res.Groups[0].Paths())
	assert.Equal(t, "Pin", res.Groups[0].Connector.Name())
}

func TestConnectThreePins(t *testing.T) {
	res := expandComponent(t, `
component Junction
  p1 = Pin()
  p2 = Pin()
  p3 = Pin()
relations
  connect(p1, p2, p3)
end
`, "Junction")
	assert.Equal(t, []string{"p1.v = p2.v", "p1.v = p3.v", "p1.i + p2.i + p3.i = 0"}, generated(res))
}

func TestEquationCounts(t *testing.T) {
	for n := 2; n <= 5; n++ {
		t.Run(fmt.Sprintf("%d pins", n), func(t *testing.T) {
			var decls, names []string
			for i := 1; i <= n; i++ {
				decls = append(decls, fmt.Sprintf("  p%d = Pin()", i))
				names = append(names, fmt.Sprintf("p%d", i))
			}
			src := fmt.Sprintf("component Star\n%s\nrelations\n  connect(%s)\nend\n",
				strings.Join(decls, "\n"), strings.Join(names, ", "))
			res := expandComponent(t, src, "Star")
			// n-1 potential equalities and one flow balance
			assert.Equal(t, n, res.Generated)
			eqs := generated(res)
			assert.Equal(t, n-1, countContaining(eqs, ".v = "))
			assert.Equal(t, 1, countContaining(eqs, "= 0"))
		})
	}
}

func countContaining(eqs []string, sub string) (n int) {
	for _, eq := range eqs {
		if strings.Contains(eq, sub) {
			n++
		}
	}
	return
}

func TestConnectionOrderDoesNotMatter(t *testing.T) {
	sources := []string{
		"connect(a, b, c)",
		"connect(c, b, a)",
		"connect(c, a)\n  connect(b, c)",
		"connect(b, c)\n  connect(a, b)",
	}
	var want []string
	for idx, rel := range sources {
		src := fmt.Sprintf("component Node\n  a = Pin()\n  b = Pin()\n  c = Pin()\nrelations\n  %s\nend\n", rel)
		res := expandComponent(t, src, "Node")
		require.Len(t, res.Groups, 1, rel)
		if idx == 0 {
			want = generated(res)
			continue
		}
		assert.Equal(t, want, generated(res), rel)
	}
	assert.Equal(t, []string{"a.v = b.v", "a.v = c.v", "a.i + b.i + c.i = 0"}, want)
}

func TestTransitiveGroups(t *testing.T) {
	res := expandComponent(t, `
component Chain
  a = Pin()
  b = Pin()
  c = Pin()
  d = Pin()
  x = Pin()
  y = Pin()
relations
  connect(x, y)
  connect(a, b)
  connect(c, d)
  connect(b, c)
end
`, "Chain")
	require.Len(t, res.Groups, 2)
	assert.Equal(t, []string{"a", "b", "c", "d"}, res.Groups[0].Paths())
	assert.Equal(t, []string{"x", "y"}, res.Groups[1].Paths())
	// the a..d group starts at connect(a, b), the second statement
	assert.Equal(t, 11, res.Groups[0].Origin.Pos().Line)
	assert.Equal(t, 6, res.Generated)
}

func TestStreamFields(t *testing.T) {
	res := expandComponent(t, `
component Plant
  a = Tank()
  b = Tank()
relations
  connect(a.port, b.port)
end
`, "Plant")
	assert.Equal(t, []string{
		"a.port.p = b.port.p",
		"a.port.m + b.port.m = 0",
		"a.port.m * a.port.h + b.port.m * b.port.h = 0",
	}, generated(res))
}

func TestSingletonFields(t *testing.T) {
	res := expandComponent(t, `
component Rack
  left = Bus()
  right = Bus()
relations
  connect(left, right)
end
`, "Rack")
	assert.Equal(t, []string{"left.enabled = right.enabled", "left.v = right.v", "left.i + right.i = 0"}, generated(res))
}

func TestConnectorTypeMismatch(t *testing.T) {
	res := expandComponent(t, `
component Mixed
  p = Pin()
  q = Pin()
  f = Flange()
relations
  connect(p, q)
  connect(q, f)
end
`, "Mixed")
	errs := res.Diagnostics.OfKind(diag.ConnectorTypeMismatchError)
	require.Len(t, errs, 1)
	assert.Equal(t, 8, errs[0].Line)
	assert.Equal(t, 14, errs[0].Col)
	assert.Contains(t, errs[0].Message, "q (Pin) to f (Flange)")
	// the valid part of the connection still expands
	assert.Equal(t, []string{"p.v = q.v", "p.i + q.i = 0"}, generated(res))
}

func TestSourceEquationsComeFirst(t *testing.T) {
	res := expandComponent(t, `
component Loop
  r = Resistor()
  g = Ground()
  variable x::Real
relations
  x = 1
  initial x = 0
  connect(r.p, g.g)
  connect(r.n, g.g)
  der(x) = -x
end
`, "Loop")
	require.Len(t, res.Initial, 1)
	assert.Equal(t, "initial x = 0", decl.Print(res.Initial[0]))
	require.Len(t, res.Equations, 2+res.Generated)
	assert.Equal(t, "x = 1", decl.Print(res.Equations[0]))
	assert.Equal(t, "der(x) = -x", decl.Print(res.Equations[1]))
	assert.Equal(t, []string{"g.g.v = r.n.v", "g.g.v = r.p.v", "g.g.i + r.n.i + r.p.i = 0"}, generated(res))
	assert.Empty(t, res.Diagnostics)
}

func TestUnconnectedPins(t *testing.T) {
	res := expandComponent(t, `
component Open
  r = Resistor()
  g = Ground()
  p = Pin()
relations
  connect(r.p, g.g)
end
`, "Open")
	warnings := res.Diagnostics.Warnings()
	require.Len(t, warnings, 2)
	w := warnings[0]
	assert.Equal(t, diag.UnconnectedPinError, w.Kind)
	assert.Equal(t, "Open.r", w.Path)
	assert.Equal(t, 3, w.Line)
	assert.Contains(t, w.Message, "r.n of Resistor")

	own := warnings[1]
	assert.Equal(t, diag.UnconnectedPinError, own.Kind)
	assert.Equal(t, "Open.p", own.Path)
	assert.Equal(t, 5, own.Line)
	assert.Contains(t, own.Message, "connector p of Open")
	assert.False(t, res.Diagnostics.HasErrors())
}

func TestUnconnectedOwnConnectors(t *testing.T) {
	res := expandComponent(t, `
component Board
  a = Pin()
  b = Pin()
  c = Pin()
  r = Resistor()
relations
  connect(a, b, r.p)
end
`, "Board")
	var paths []string
	for _, w := range res.Diagnostics.Warnings() {
		paths = append(paths, w.Path)
	}
	assert.Equal(t, []string{"Board.c", "Board.r"}, paths)

	// pins used by equations belong to leaf models
	leaf := expandComponent(t, `component Leaf
  p = Pin()
relations
  p.v = 0
end
`, "Leaf")
	assert.Empty(t, leaf.Diagnostics)

	iface := expandComponent(t, `partial component Port
  p = Pin()
end
`, "Port")
	assert.Empty(t, iface.Diagnostics)
}
