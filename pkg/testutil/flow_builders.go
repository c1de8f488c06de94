// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a node of the given type with its default data.
func CreateTestNode(id string, nodeType models.NodeType, overrides ...func(*models.Node)) *models.Node {
	data, err := models.DefaultNodeData(nodeType)
	if err != nil {
		panic(err)
	}

	node := &models.Node{
		ID:       id,
		Type:     nodeType,
		Position: models.Position{X: 100, Y: 200},
		Data:     data,
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithPosition sets the node position.
func WithPosition(x, y float64) func(*models.Node) {
	return func(n *models.Node) {
		n.Position = models.Position{X: x, Y: y}
	}
}

// WithApprover sets the approver type of an approval node.
func WithApprover(approverType string) func(*models.Node) {
	return func(n *models.Node) {
		if data, ok := n.Data.(*models.ApprovalData); ok {
			data.ApproverType = approverType
		}
	}
}

// CreateTestFlow creates a document holding only START and END.
func CreateTestFlow(overrides ...func(*models.FlowDocument)) *models.FlowDocument {
	doc := &models.FlowDocument{
		ID:          "flow-1",
		Name:        "Test Flow",
		Description: "A flow for testing",
		Version:     1,
		Nodes: map[string]*models.Node{
			"start": CreateTestNode("start", models.NodeTypeStart),
			"end":   CreateTestNode("end", models.NodeTypeEnd),
		},
		Edges:        []*models.Edge{},
		RoutingRules: []*models.RoutingRule{},
	}

	for _, override := range overrides {
		override(doc)
	}

	return doc
}

// WithFlowID sets the document ID.
func WithFlowID(id string) func(*models.FlowDocument) {
	return func(d *models.FlowDocument) {
		d.ID = id
	}
}

// WithName sets the document name.
func WithName(name string) func(*models.FlowDocument) {
	return func(d *models.FlowDocument) {
		d.Name = name
	}
}

// WithNodes adds nodes to the document.
func WithNodes(nodes ...*models.Node) func(*models.FlowDocument) {
	return func(d *models.FlowDocument) {
		for _, node := range nodes {
			d.Nodes[node.ID] = node
		}
	}
}

// WithEdge connects source to target under the given edge ID.
func WithEdge(id, source, target string) func(*models.FlowDocument) {
	return func(d *models.FlowDocument) {
		d.Edges = append(d.Edges, CreateTestEdge(id, source, target))
	}
}

// WithRoutingRules sets the routing rules of the document.
func WithRoutingRules(rules ...*models.RoutingRule) func(*models.FlowDocument) {
	return func(d *models.FlowDocument) {
		d.RoutingRules = rules
	}
}

// CreateTestFlowWithApproval creates START -> approval -> END.
func CreateTestFlowWithApproval(approverType string) *models.FlowDocument {
	return CreateTestFlow(
		WithNodes(CreateTestNode("approval-1", models.NodeTypeApproval, WithApprover(approverType))),
		WithEdge("e1", "start", "approval-1"),
		WithEdge("e2", "approval-1", "end"),
	)
}

// CreateTestExport wraps doc as an exported document.
func CreateTestExport(doc *models.FlowDocument, exportedAt time.Time) *models.ExportedDocument {
	return &models.ExportedDocument{FlowDocument: *doc, ExportedAt: exportedAt}
}

// CreateTestEdge creates an edge. An empty id is replaced by a random one.
func CreateTestEdge(id, source, target string) *models.Edge {
	if id == "" {
		id = uuid.NewString()
	}

	return &models.Edge{ID: id, Source: source, Target: target}
}

// CreateTestRule creates an active AND rule routing to flowID.
func CreateTestRule(id, flowID string, order int, items ...models.ConditionItem) *models.RoutingRule {
	return &models.RoutingRule{
		ID:       id,
		Name:     "Rule " + id,
		Order:    order,
		FlowID:   flowID,
		IsActive: true,
		Conditions: models.ConditionGroup{
			Operator: models.LogicalAnd,
			Items:    items,
		},
	}
}

// Condition builds a condition item.
func Condition(field string, op models.ComparisonOperator, value any) models.ConditionItem {
	return models.ConditionItem{Field: field, Op: op, Value: value}
}
