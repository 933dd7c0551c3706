package viz

import (
	"fmt"
	"strings"

	"github.com/panyam/jsmlc/ir"
	"github.com/panyam/jsmlc/metadata"
)

// PlacementKey is the metadata key holding `{"x": .., "y": ..}` positions.
const PlacementKey = "placement"

// Graph builds nodes for the instances of sys and edges for its connection sets.  Two
// connected connectors become one edge; larger sets get a junction node with an edge to
// each member.  Connectors owned by the root component attach to a node for the root.
// When arts is given, placement metadata below namespace positions the nodes.
func Graph(sys *ir.EquationSystem, arts *metadata.Artifacts, namespace string) ([]Node, []Edge) {
	placements := Placements(arts, namespace)
	var nodes []Node
	byPath := map[string]bool{}
	addNode := func(path, name, typ string) {
		if byPath[path] {
			return
		}
		byPath[path] = true
		n := Node{ID: nodeID(sys, path), Name: name, Type: typ}
		if p, ok := placements[path]; ok {
			n.X, n.Y, n.Placed = p[0], p[1], true
		}
		nodes = append(nodes, n)
	}
	if sys.Instances != nil {
		for _, c := range sys.Instances.Children {
			c.Walk(func(inst *ir.Instance) { addNode(inst.Path, inst.Path, inst.Component) })
		}
	}

	var edges []Edge
	for idx, set := range sys.Connections {
		if len(set.Members) < 2 {
			continue
		}
		for _, m := range set.Members {
			if owner := ownerOf(m); owner == "" {
				addNode("", sys.Component, sys.Component)
			}
		}
		if len(set.Members) == 2 {
			a, b := set.Members[0], set.Members[1]
			edges = append(edges, Edge{FromID: nodeID(sys, ownerOf(a)), ToID: nodeID(sys, ownerOf(b)), Label: a + " - " + b})
			continue
		}
		junction := fmt.Sprintf("junction_%d", idx+1)
		nodes = append(nodes, Node{ID: junction, Name: junction, Type: set.Connector, Junction: true})
		for _, m := range set.Members {
			edges = append(edges, Edge{FromID: nodeID(sys, ownerOf(m)), ToID: junction, Label: m})
		}
	}
	return nodes, edges
}

// ownerOf strips the connector name from a connector path.
func ownerOf(connector string) string {
	if idx := strings.LastIndexByte(connector, '.'); idx >= 0 {
		return connector[:idx]
	}
	return ""
}

func nodeID(sys *ir.EquationSystem, path string) string {
	if path == "" {
		return sys.Component
	}
	return path
}

// Placements reads `{"<namespace>": {"placement": {"x": 1, "y": 2}}}` from diagram records.
func Placements(arts *metadata.Artifacts, namespace string) map[string][2]float64 {
	out := map[string][2]float64{}
	if arts == nil {
		return out
	}
	for _, rec := range arts.Diagrams {
		p := rec.Data.Lookup(namespace, PlacementKey)
		if p == nil {
			continue
		}
		x, xok := p.Get("x").Float()
		y, yok := p.Get("y").Float()
		if xok && yok {
			out[rec.Path] = [2]float64{x, y}
		}
	}
	return out
}
