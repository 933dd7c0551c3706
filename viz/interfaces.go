// Package viz describes the instance and connection graph of a compiled model as text that
// diagram tools (Graphviz, Mermaid) can lay out.  It does not render anything itself.
package viz

import (
	"fmt"
	"strings"
)

// --- Common Data Structures ---

// Node is a component instance, or a junction joining three or more connectors.
type Node struct {
	ID   string // Unique identifier for the node
	Name string // Display name, the instance path
	Type string // Component name, or the connector name for junctions
	// Position taken from placement metadata, when Placed
	X, Y     float64
	Placed   bool
	Junction bool
}

// Edge is a connection between two nodes.  Label names the connector endpoints.
type Edge struct {
	FromID string
	ToID   string
	Label  string
}

// --- Interfaces for Generators ---

// StaticDiagramGenerator renders a graph description.
type StaticDiagramGenerator interface {
	Generate(systemName string, nodes []Node, edges []Edge) (string, error)
}

// Formats lists the generator names accepted by NewGenerator.
var Formats = []string{"dot", "mermaid"}

func NewGenerator(format string) (StaticDiagramGenerator, error) {
	switch strings.ToLower(format) {
	case "dot", "graphviz":
		return &DotGenerator{}, nil
	case "mermaid":
		return &MermaidStaticGenerator{}, nil
	}
	return nil, fmt.Errorf("unknown diagram format %q (want one of %s)", format, strings.Join(Formats, ", "))
}
