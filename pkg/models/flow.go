// Package models defines the core domain models for approval flow definitions
package models

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"time"
)

// NodeType identifies the kind of stage a node represents.
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeEnd       NodeType = "end"
	NodeTypeApproval  NodeType = "approval"
	NodeTypeCC        NodeType = "cc"
	NodeTypeCondition NodeType = "condition"
	NodeTypeParallel  NodeType = "parallel"
)

// NodeTypes lists every built-in node type in catalog order.
var NodeTypes = []NodeType{
	NodeTypeStart,
	NodeTypeApproval,
	NodeTypeCC,
	NodeTypeCondition,
	NodeTypeParallel,
	NodeTypeEnd,
}

// IsValid reports whether t is one of the built-in node types.
func (t NodeType) IsValid() bool {
	return slices.Contains(NodeTypes, t)
}

// IsTerminal reports whether t is a START or END node. Terminal nodes are never deleted.
func (t NodeType) IsTerminal() bool {
	return t == NodeTypeStart || t == NodeTypeEnd
}

// Position is the canvas coordinate of a node. It carries no domain meaning.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one stage of an approval flow.
type Node struct {
	ID       string   `json:"id"       validate:"required"`
	Type     NodeType `json:"type"     validate:"required"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Label returns the display label of the node, falling back to its ID.
func (n *Node) Label() string {
	if n.Data != nil {
		if label := n.Data.DisplayLabel(); label != "" {
			return label
		}
	}

	return n.ID
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	clone := *n
	if n.Data != nil {
		clone.Data = n.Data.Clone()
	}

	return &clone
}

// UnmarshalJSON decodes a node, decoding its data over the per-type defaults
// so that fields missing from older documents keep their default values.
func (n *Node) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID       string          `json:"id"`
		Type     NodeType        `json:"type"`
		Position Position        `json:"position"`
		Data     json.RawMessage `json:"data"`
	}

	err := json.Unmarshal(b, &raw)
	if err != nil {
		return err
	}

	data, err := DefaultNodeData(raw.Type)
	if err != nil {
		return err
	}

	if len(raw.Data) > 0 && string(raw.Data) != "null" {
		err = json.Unmarshal(raw.Data, data)
		if err != nil {
			return fmt.Errorf("failed to decode data of node %s: %w", raw.ID, err)
		}
	}

	n.ID = raw.ID
	n.Type = raw.Type
	n.Position = raw.Position
	n.Data = data

	return nil
}

// Edge is a directed transition between two nodes.
type Edge struct {
	ID     string `json:"id"              validate:"required"`
	Source string `json:"source"          validate:"required"`
	Target string `json:"target"          validate:"required"`
	Label  string `json:"label,omitempty"`
}

// FlowDocument is the complete definition of one approval process.
type FlowDocument struct {
	ID           string           `json:"id"           validate:"required"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	TemplateID   string           `json:"templateId"`
	Version      int              `json:"version"`
	Nodes        map[string]*Node `json:"nodes"`
	Edges        []*Edge          `json:"edges"`
	RoutingRules []*RoutingRule   `json:"routingRules"`
}

// NodesOfType returns the nodes of the given type ordered by ID.
func (d *FlowDocument) NodesOfType(t NodeType) []*Node {
	var nodes []*Node

	for _, id := range d.SortedNodeIDs() {
		if d.Nodes[id].Type == t {
			nodes = append(nodes, d.Nodes[id])
		}
	}

	return nodes
}

// SortedNodeIDs returns the node IDs in lexical order.
func (d *FlowDocument) SortedNodeIDs() []string {
	return slices.Sorted(maps.Keys(d.Nodes))
}

// CountNodes returns how many nodes of the given type exist.
func (d *FlowDocument) CountNodes(t NodeType) int {
	count := 0

	for _, node := range d.Nodes {
		if node.Type == t {
			count++
		}
	}

	return count
}

// FindEdge returns the edge with the given ID and its index.
func (d *FlowDocument) FindEdge(id string) (*Edge, int) {
	for i, edge := range d.Edges {
		if edge.ID == id {
			return edge, i
		}
	}

	return nil, -1
}

// HasEdgeBetween reports whether an edge from source to target exists.
func (d *FlowDocument) HasEdgeBetween(source, target string) bool {
	return slices.ContainsFunc(d.Edges, func(e *Edge) bool {
		return e.Source == source && e.Target == target
	})
}

// Clone returns a deep copy of the document.
func (d *FlowDocument) Clone() *FlowDocument {
	clone := *d

	clone.Nodes = make(map[string]*Node, len(d.Nodes))
	for id, node := range d.Nodes {
		clone.Nodes[id] = node.Clone()
	}

	clone.Edges = make([]*Edge, 0, len(d.Edges))
	for _, edge := range d.Edges {
		e := *edge
		clone.Edges = append(clone.Edges, &e)
	}

	clone.RoutingRules = CloneRoutingRules(d.RoutingRules)

	return &clone
}

// ExportedDocument is the interchange shape handed to the persistence collaborator.
type ExportedDocument struct {
	FlowDocument

	ExportedAt time.Time `json:"exportedAt"`
}
