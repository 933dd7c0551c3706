package viz

import (
	"bytes"
	"fmt"
	"strconv"
)

// --- DOT Generator ---

// DotGenerator writes an undirected Graphviz graph.  Placed nodes get a pinned `pos`.
type DotGenerator struct{}

func (g *DotGenerator) Generate(systemName string, nodes []Node, edges []Edge) (string, error) {
	var b bytes.Buffer
	b.WriteString(fmt.Sprintf("graph %s {\n", strconv.Quote(systemName)))
	b.WriteString("  rankdir=LR;\n")
	b.WriteString(fmt.Sprintf("  label=%s;\n", strconv.Quote("Connection diagram for "+systemName)))
	b.WriteString("  node [shape=box];\n")

	for _, node := range nodes {
		attrs := fmt.Sprintf("label=%s", strconv.Quote(node.Name+"\n("+node.Type+")"))
		if node.Junction {
			attrs = fmt.Sprintf("shape=point, xlabel=%s", strconv.Quote(node.Type))
		}
		if node.Placed {
			attrs += fmt.Sprintf(", pos=\"%g,%g!\"", node.X, -node.Y)
		}
		b.WriteString(fmt.Sprintf("  %s [%s];\n", strconv.Quote(node.ID), attrs))
	}

	for _, edge := range edges {
		b.WriteString(fmt.Sprintf("  %s -- %s [label=%s];\n", strconv.Quote(edge.FromID), strconv.Quote(edge.ToID), strconv.Quote(edge.Label)))
	}
	b.WriteString("}\n")
	return b.String(), nil
}
