package viz

import (
	"bytes"
	"fmt"
	"strings"
)

// --- Mermaid Static Generator ---

type MermaidStaticGenerator struct{}

func (g *MermaidStaticGenerator) Generate(systemName string, nodes []Node, edges []Edge) (string, error) {
	var b bytes.Buffer
	b.WriteString("graph LR;\n")
	b.WriteString(fmt.Sprintf("  subgraph %s\n", mermaidID(systemName)))

	for _, node := range nodes {
		if node.Junction {
			b.WriteString(fmt.Sprintf("    %s((%s));\n", mermaidID(node.ID), mermaidText(node.Type)))
			continue
		}
		b.WriteString(fmt.Sprintf("    %s[\"%s (%s)\"];\n", mermaidID(node.ID), mermaidText(node.Name), mermaidText(node.Type)))
	}

	for _, edge := range edges {
		b.WriteString(fmt.Sprintf("    %s ---|\"%s\"| %s;\n", mermaidID(edge.FromID), mermaidText(edge.Label), mermaidID(edge.ToID)))
	}
	b.WriteString("  end\n")
	return b.String(), nil
}

// mermaidID keeps identifiers to letters, digits and underscores.
func mermaidID(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			return r
		}
		return '_'
	}, s)
}

func mermaidText(s string) string {
	return strings.ReplaceAll(s, "\"", "#quot;")
}
