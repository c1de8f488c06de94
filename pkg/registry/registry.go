// Package registry provides the catalog of node types available to the flow designer.
package registry

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/dukex/flowdesigner/pkg/models"
)

// NodeTypeInfo describes one node type.
type NodeTypeInfo struct {
	Type     models.NodeType `json:"type"`
	Label    string          `json:"label"`
	Color    string          `json:"color"`
	MaxCount int             `json:"maxCount,omitempty"` // Zero means unlimited

	newData func() (models.NodeData, error)
}

// HasLimit reports whether the type has a cardinality cap.
func (i NodeTypeInfo) HasLimit() bool {
	return i.MaxCount > 0
}

// Registry is a read-only catalog once the default nodes are registered.
type Registry struct {
	logger    *slog.Logger
	nodeTypes map[models.NodeType]NodeTypeInfo
	order     []models.NodeType
}

// NewRegistry creates a registry with the built-in node types.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}

	r := &Registry{
		logger:    log,
		nodeTypes: make(map[models.NodeType]NodeTypeInfo),
	}

	r.RegisterDefaultNodes()

	return r
}

// RegisterNode adds or replaces a node type.
func (r *Registry) RegisterNode(info NodeTypeInfo) {
	if info.newData == nil {
		nodeType := info.Type
		info.newData = func() (models.NodeData, error) {
			return models.DefaultNodeData(nodeType)
		}
	}

	if _, exists := r.nodeTypes[info.Type]; !exists {
		r.order = append(r.order, info.Type)
	}

	r.nodeTypes[info.Type] = info

	r.logger.Debug("Registered node type", "type", info.Type, "max_count", info.MaxCount)
}

// Lookup returns the metadata of a node type.
func (r *Registry) Lookup(nodeType models.NodeType) (NodeTypeInfo, bool) {
	info, ok := r.nodeTypes[nodeType]

	return info, ok
}

// NodeTypes returns every registered type in registration order.
func (r *Registry) NodeTypes() []NodeTypeInfo {
	infos := make([]NodeTypeInfo, 0, len(r.order))
	for _, t := range r.order {
		infos = append(infos, r.nodeTypes[t])
	}

	return infos
}

// NewNodeData builds the default configuration for a node type.
//
//nolint:ireturn // NodeData is a tagged variant
func (r *Registry) NewNodeData(nodeType models.NodeType) (models.NodeData, error) {
	info, ok := r.nodeTypes[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownNodeType, nodeType)
	}

	return info.newData()
}

// HealthCheck reports whether every built-in node type is registered.
func (r *Registry) HealthCheck() (string, bool) {
	missing := make([]models.NodeType, 0)

	for _, t := range models.NodeTypes {
		if !slices.Contains(r.order, t) {
			missing = append(missing, t)
		}
	}

	if len(missing) > 0 {
		return fmt.Sprintf("Registry is missing node types: %v", missing), false
	}

	return fmt.Sprintf("Registry has %d node types", len(r.order)), true
}
