// Package designer provides the flow graph store: the single owner of a flow
// document being edited and the only way to mutate it.
package designer

import (
	"errors"
	"fmt"

	"github.com/dukex/flowdesigner/pkg/models"
	"github.com/dukex/flowdesigner/pkg/serialization"
)

// Graph mutation errors. A failed mutation never changes the document or its history.
var (
	ErrNodeLimitExceeded = errors.New("node limit exceeded")
	ErrProtectedNode     = errors.New("node cannot be deleted")
	ErrNodeNotFound      = errors.New("node not found")
	ErrEdgeNotFound      = errors.New("edge not found")
	ErrSelfLoop          = errors.New("edge source and target are the same node")
	ErrDuplicateEdge     = errors.New("edge already exists")
	ErrUnknownEndpoint   = errors.New("edge endpoint does not exist")
	ErrInvalidNodeData   = errors.New("invalid node data")

	ErrUnknownNodeType = models.ErrUnknownNodeType
	ErrInvalidDocument = serialization.ErrInvalidDocument
)

// GraphError wraps graph mutation errors with the identifiers involved.
type GraphError struct {
	Op       string          // Operation name
	NodeID   string          // Node ID if applicable
	NodeType models.NodeType // Node type if applicable
	EdgeID   string          // Edge ID if applicable
	Source   string          // Edge source if applicable
	Target   string          // Edge target if applicable
	Err      error           // Underlying error
}

func (e *GraphError) Error() string {
	switch {
	case e.EdgeID != "":
		return fmt.Sprintf("%s: edge %s: %v", e.Op, e.EdgeID, e.Err)
	case e.Source != "" || e.Target != "":
		return fmt.Sprintf("%s: edge %s -> %s: %v", e.Op, e.Source, e.Target, e.Err)
	case e.NodeID != "" && e.NodeType != "":
		return fmt.Sprintf("%s: %s node %s: %v", e.Op, e.NodeType, e.NodeID, e.Err)
	case e.NodeID != "":
		return fmt.Sprintf("%s: node %s: %v", e.Op, e.NodeID, e.Err)
	case e.NodeType != "":
		return fmt.Sprintf("%s: %s node: %v", e.Op, e.NodeType, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

func (e *GraphError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsNotFound checks if an error indicates a missing node or edge.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound) || errors.Is(err, ErrEdgeNotFound)
}

// IsConflictError checks if an error is a structural conflict with the current graph.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrNodeLimitExceeded) ||
		errors.Is(err, ErrProtectedNode) ||
		errors.Is(err, ErrDuplicateEdge)
}

// IsValidationError checks if an error is caused by invalid caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrSelfLoop) ||
		errors.Is(err, ErrUnknownEndpoint) ||
		errors.Is(err, ErrInvalidNodeData) ||
		errors.Is(err, ErrUnknownNodeType) ||
		errors.Is(err, ErrInvalidDocument)
}
