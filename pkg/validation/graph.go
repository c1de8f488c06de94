package validation

import "github.com/dukex/flowdesigner/pkg/models"

// graph is a read-only index over a document. Degrees count only edges whose
// endpoints both exist.
type graph struct {
	nodes    []*models.Node
	byID     map[string]*models.Node
	edges    []*models.Edge
	incoming map[string]int
	outgoing map[string]int
}

func newGraph(doc *models.FlowDocument) *graph {
	g := &graph{
		byID:     make(map[string]*models.Node, len(doc.Nodes)),
		incoming: make(map[string]int),
		outgoing: make(map[string]int),
	}

	for _, id := range doc.SortedNodeIDs() {
		node := doc.Nodes[id]
		if node == nil {
			continue
		}

		g.nodes = append(g.nodes, node)
		g.byID[id] = node
	}

	for _, edge := range doc.Edges {
		if edge == nil {
			continue
		}

		g.edges = append(g.edges, edge)

		_, sourceOk := g.byID[edge.Source]
		_, targetOk := g.byID[edge.Target]

		if sourceOk && targetOk {
			g.outgoing[edge.Source]++
			g.incoming[edge.Target]++
		}
	}

	return g
}

func (g *graph) nodesOfType(t models.NodeType) []*models.Node {
	var nodes []*models.Node

	for _, node := range g.nodes {
		if node.Type == t {
			nodes = append(nodes, node)
		}
	}

	return nodes
}

func (g *graph) missingConnections(id string) string {
	switch in, out := g.incoming[id], g.outgoing[id]; {
	case in == 0 && out == 0:
		return "incoming or outgoing edges"
	case in == 0:
		return "incoming edge"
	case out == 0:
		return "outgoing edge"
	default:
		return ""
	}
}
