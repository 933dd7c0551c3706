package viz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"

	"github.com/panyam/jsmlc/ir"
	"github.com/panyam/jsmlc/metadata"
)

func sampleSystem() *ir.EquationSystem {
	return &ir.EquationSystem{
		Component: "Net",
		Instances: &ir.Instance{Name: "Net", Component: "Net", Children: []*ir.Instance{
			{Name: "r", Path: "r", Component: "Resistor"},
			{Name: "g", Path: "g", Component: "Ground"},
			{Name: "c", Path: "c", Component: "Cell", Children: []*ir.Instance{
				{Name: "load", Path: "c.load", Component: "Capacitor", Interface: "TwoPin"},
			}},
		}},
		Connections: []*ir.ConnectionSet{
			{Connector: "Pin", Members: []string{"g.g", "r.n"}},
			{Connector: "Pin", Members: []string{"c.load.p", "p", "r.p"}},
			{Connector: "Pin", Members: []string{"c.load.n"}},
		},
	}
}

func TestGraph(t *testing.T) {
	arts := &metadata.Artifacts{Diagrams: []*metadata.DiagramRecord{
		{Path: "r", Data: metadata.NewObject(&metadata.Field{Key: "JSML", Value: metadata.NewObject(
			&metadata.Field{Key: "placement", Value: metadata.NewObject(
				&metadata.Field{Key: "x", Value: metadata.NewNumber(10)},
				&metadata.Field{Key: "y", Value: metadata.NewNumber(20)},
			)},
		)})},
		{Path: "g", Data: metadata.NewObject(&metadata.Field{Key: "icon", Value: metadata.NewString("g.svg")})},
	}}
	nodes, edges := Graph(sampleSystem(), arts, "JSML")

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	assert.Equal(t, []string{"r", "g", "c", "c.load", "Net", "junction_2"}, ids)
	assert.True(t, nodes[0].Placed)
	assert.Equal(t, 20.0, nodes[0].Y)
	assert.False(t, nodes[1].Placed)
	assert.True(t, nodes[5].Junction)

	assert.Equal(t, []Edge{
		{FromID: "g", ToID: "r", Label: "g.g - r.n"},
		{FromID: "c.load", ToID: "junction_2", Label: "c.load.p"},
		{FromID: "Net", ToID: "junction_2", Label: "p"},
		{FromID: "r", ToID: "junction_2", Label: "r.p"},
	}, edges)
}

func TestDotGenerator(t *testing.T) {
	nodes := []Node{
		{ID: "r", Name: "r", Type: "Resistor", X: 1, Y: 2, Placed: true},
		{ID: "g", Name: "g", Type: "Ground"},
		{ID: "junction_1", Name: "junction_1", Type: "Pin", Junction: true},
	}
	edges := []Edge{{FromID: "r", ToID: "g", Label: "r.n - g.g"}}
	out, err := (&DotGenerator{}).Generate("Net", nodes, edges)
	require.NoError(t, err)
	golden.Assert(t, out, "net.dot.golden")
}

func TestMermaidGenerator(t *testing.T) {
	nodes, edges := Graph(sampleSystem(), nil, "JSML")
	out, err := (&MermaidStaticGenerator{}).Generate("Net", nodes, edges)
	require.NoError(t, err)
	assert.Contains(t, out, "graph LR;\n  subgraph Net\n")
	assert.Contains(t, out, `    c_load["c.load (Capacitor)"];`)
	assert.Contains(t, out, "    junction_2((Pin));")
	assert.Contains(t, out, `    g ---|"g.g - r.n"| r;`)
}

func TestNewGenerator(t *testing.T) {
	for _, f := range []string{"dot", "DOT", "graphviz", "mermaid"} {
		g, err := NewGenerator(f)
		require.NoError(t, err, f)
		assert.NotNil(t, g)
	}
	_, err := NewGenerator("svg")
	assert.ErrorContains(t, err, "unknown diagram format")
}
