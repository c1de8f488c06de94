// Package web provides HTTP request and response types for the flow designer API.
package web

import (
	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/dukex/flowdesigner/pkg/persistence"
)

// CreateFlowRequest represents the request body for creating a new flow.
type CreateFlowRequest struct {
	Name        string `json:"name"        validate:"omitempty,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// UpdateFlowRequest represents the request body for renaming a flow.
// All fields are optional to support partial updates.
type UpdateFlowRequest struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
}

// PositionRequest is a canvas coordinate.
type PositionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p PositionRequest) toModel() models.Position {
	return models.Position{X: p.X, Y: p.Y}
}

// AddNodeRequest represents the request body for adding a node.
type AddNodeRequest struct {
	Type     string          `json:"type"     validate:"required,oneof=start end approval cc condition parallel"`
	Position PositionRequest `json:"position"`
}

// UpdateNodeRequest carries the fields merged into the node data.
type UpdateNodeRequest struct {
	Data map[string]any `json:"data" validate:"required"`
}

// MoveNodeRequest represents the request body for repositioning a node.
type MoveNodeRequest struct {
	Position PositionRequest `json:"position"`
}

// AddEdgeRequest represents the request body for connecting two nodes.
type AddEdgeRequest struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	Label  string `json:"label"  validate:"max=200"`
}

// ReplaceRoutingRulesRequest replaces the routing rules of a flow.
type ReplaceRoutingRulesRequest struct {
	Rules []*models.RoutingRule `json:"rules" validate:"required,dive,required"`
}

// SelectionRequest selects a node or an edge. An empty request clears the selection.
type SelectionRequest struct {
	NodeID string `json:"selectedNodeId" validate:"excluded_with=EdgeID"`
	EdgeID string `json:"selectedEdgeId"`
}

// RouteRequest evaluates the routing rules of a flow against a record.
type RouteRequest struct {
	Context map[string]any `json:"context" validate:"required"`
}

// HistoryResponse reports the outcome of an undo or redo.
type HistoryResponse struct {
	Applied bool `json:"applied"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

// ListFlowsResponse is a page of stored flows.
type ListFlowsResponse struct {
	Flows       []*persistence.FlowSummary `json:"flows"`
	TotalCount  int64                      `json:"totalCount"`
	HasNextPage bool                       `json:"hasNextPage"`
	Limit       int                        `json:"limit"`
	Offset      int                        `json:"offset"`
}
